package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/finwire/finwire/internal/output"
)

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage RSS sources",
	}
	cmd.AddCommand(sourcesAddCmd())
	cmd.AddCommand(sourcesListCmd())
	cmd.AddCommand(sourcesRenameCmd())
	cmd.AddCommand(sourcesRmCmd())
	cmd.AddCommand(sourcesImportCmd())
	return cmd
}

func sourcesAddCmd() *cobra.Command {
	var title, category string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a source, validating the feed URL by fetching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			sourceID, err := engine.AddSource(context.Background(), args[0], title, category)
			if err != nil {
				return err
			}
			fmt.Printf("Added source %d: %s\n", sourceID, args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "display title (default: feed's own title)")
	cmd.Flags().StringVar(&category, "category", "markets", "source category (markets, crypto, macro, ...)")
	return cmd
}

func sourcesListCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			sources, err := engine.ListSources(category)
			if err != nil {
				return err
			}
			return formatter.OutputSourceList(sources)
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}

func sourcesRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <source-id> <title>",
		Short: "Change a source's display title",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source ID: %w", err)
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.RenameSource(sourceID, args[1]); err != nil {
				return err
			}
			fmt.Printf("Renamed source %d to %q\n", sourceID, args[1])
			return nil
		},
	}
}

func sourcesRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <source-id>",
		Short: "Remove a source and its articles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source ID: %w", err)
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.RemoveSource(sourceID); err != nil {
				return err
			}
			fmt.Printf("Removed source %d\n", sourceID)
			return nil
		},
	}
}

func sourcesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <opml-file>",
		Short: "Import sources from an OPML file (folders become categories)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			added, err := engine.ImportOPML(args[0])
			if err != nil {
				return fmt.Errorf("failed to import OPML: %w", err)
			}
			fmt.Printf("Imported %d sources from %s\n", added, args[0])
			return nil
		},
	}
}
