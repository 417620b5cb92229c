package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/finwire/finwire/internal/apikey"
	"github.com/finwire/finwire/internal/output"
)

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys for the JSON API",
	}
	cmd.AddCommand(keysCreateCmd())
	cmd.AddCommand(keysListCmd())
	cmd.AddCommand(keysRevokeCmd())
	cmd.AddCommand(keysAdminTokenCmd())
	return cmd
}

func keysCreateCmd() *cobra.Command {
	var scopes, allowedIPs []string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an API key and print the token once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			token, key, err := engine.Keys().Create(args[0], scopes, allowedIPs, ttl)
			if err != nil {
				return err
			}

			fmt.Printf("Created key %d (%s)\n", key.ID, key.Prefix)
			fmt.Printf("Token (shown once, store it now):\n\n  %s\n", token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{apikey.ScopeArticlesRead}, "scopes to grant (articles:read, generated:read, sources:write, reports:write, admin)")
	cmd.Flags().StringSliceVar(&allowedIPs, "ips", nil, "IP allowlist (empty: any address)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "key lifetime (0: never expires)")
	return cmd
}

func keysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List API keys (prefixes only, tokens are never stored)",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			keys, err := engine.Keys().List()
			if err != nil {
				return err
			}
			return formatter.OutputKeyList(keys)
		},
	}
}

func keysRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key ID: %w", err)
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Keys().Revoke(keyID); err != nil {
				return err
			}
			fmt.Printf("Revoked key %d\n", keyID)
			return nil
		},
	}
}

func keysAdminTokenCmd() *cobra.Command {
	var operator string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Issue a short-lived admin session token for the key management API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Web.JWTSecret == "" {
				return fmt.Errorf("web.jwt_secret is not set in the config file")
			}

			token, err := apikey.IssueAdminToken([]byte(cfg.Web.JWTSecret), operator, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "ops", "operator name recorded in the session")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "session lifetime")
	return cmd
}
