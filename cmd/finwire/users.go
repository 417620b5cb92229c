package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage editorial accounts",
	}
	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Register an editorial account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			id, err := engine.CreateUser(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Created user %d: %s\n", id, args[0])
			return nil
		},
	}
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List editorial accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			users, err := engine.ListUsers()
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return json.NewEncoder(os.Stdout).Encode(users)
			}
			for _, u := range users {
				fmt.Printf("[%d] %s (created %s)\n", u.ID, u.Name, u.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}
}
