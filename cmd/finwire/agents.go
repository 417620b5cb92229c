package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func agentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage scheduled agent configs",
	}
	cmd.AddCommand(agentsListCmd())
	cmd.AddCommand(agentsToggleCmd("enable", true))
	cmd.AddCommand(agentsToggleCmd("disable", false))
	return cmd
}

func agentsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List agent configs, including disabled ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			configs, err := engine.ListAgentConfigs()
			if err != nil {
				return err
			}

			if outputFormat == "json" {
				return json.NewEncoder(os.Stdout).Encode(configs)
			}
			for _, c := range configs {
				status := "enabled"
				if !c.Enabled {
					status = "disabled"
				}
				fmt.Printf("[%d] %s (%s) cron=%q category=%q max_sources=%d\n",
					c.ID, c.Name, status, c.CronExpr, c.Category, c.MaxSources)
			}
			return nil
		},
	}
}

func agentsToggleCmd(verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <config-id>",
		Short: verb + " a scheduled agent config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid config ID: %w", err)
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.SetAgentEnabled(configID, enabled); err != nil {
				return err
			}
			fmt.Printf("Config %d %sd\n", configID, verb)
			return nil
		},
	}
}
