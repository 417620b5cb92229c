package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/finwire/finwire"
	"github.com/finwire/finwire/internal/output"
	"github.com/finwire/finwire/internal/storage"
)

var (
	configPath   string
	cfg          *storage.Config
	outputFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "finwire",
		Short: "Financial news engine - RSS ingestion with scheduled multi-agent article generation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "output format: json, text, human (default: json)")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(agentsCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(initConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() error {
	if configPath == "" {
		configPath = "./config/config.yaml"
	}

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Use default config
		cfg = storage.DefaultConfig()
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	cfg = storage.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// newEngine builds an engine from the loaded config file.
func newEngine() (*finwire.Engine, error) {
	return finwire.NewEngine(finwire.EngineConfig{
		DBPath:        cfg.Database.Path,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		ReporterModel: cfg.Ollama.ReporterModel,
		EditorModel:   cfg.Ollama.EditorModel,
		DesignerModel: cfg.Ollama.DesignerModel,
		MarketerModel: cfg.Ollama.MarketerModel,
		TickInterval:  cfg.Scheduler.TickInterval,
		ArticleWindow: cfg.Scheduler.ArticleWindow,
	})
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Poll all enabled sources and store new articles",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			result, err := engine.FetchAllSources(context.Background())
			if err != nil {
				return fmt.Errorf("fetch failed: %w", err)
			}
			return formatter.OutputFetchResult(result)
		},
	}
}

func generateCmd() *cobra.Command {
	var configID int64
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the agent pipeline now, ignoring cron schedules",
		Long: `Run the reporter/editor/designer/marketer chain immediately.
With --agent, runs a single agent config; otherwise runs every enabled config.
Failed runs are recorded in the runs table, inspect them with 'finwire runs show'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := context.Background()
			if configID != 0 {
				runID, err := engine.GenerateNow(ctx, configID)
				if runID != 0 {
					if run, getErr := engine.GetRun(runID); getErr == nil {
						formatter.OutputRunDetail(run)
					}
				}
				return err
			}

			runIDs, err := engine.GenerateAll(ctx)
			if err != nil {
				return err
			}
			runs := make([]finwire.Run, 0, len(runIDs))
			for _, id := range runIDs {
				if run, err := engine.GetRun(id); err == nil {
					runs = append(runs, *run)
				}
			}
			return formatter.OutputRunList(runs)
		},
	}
	cmd.Flags().Int64VarP(&configID, "agent", "a", 0, "agent config ID to run (default: all enabled)")
	return cmd
}

func analyticsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Show ingestion and generation activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := engine.Analytics()
			if err != nil {
				return err
			}
			return formatter.OutputAnalytics(report)
		},
	}
}

func cleanupCmd() *cobra.Command {
	var keep time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune old articles and finished runs",
		Long: `Delete source articles and finished runs older than the retention window.
Articles referenced by generated articles are kept, as are RUNNING rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			articles, runs, err := engine.Cleanup(time.Now().UTC().Add(-keep))
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d articles and %d runs older than %s\n", articles, runs, keep)
			return nil
		},
	}
	cmd.Flags().DurationVar(&keep, "keep", 90*24*time.Hour, "retention window (e.g. 720h for 30 days)")
	return cmd
}

func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Create a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				configPath = "./config/config.yaml"
			}

			// Create config directory
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}

			// Check if config already exists
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("config file already exists: %s", configPath)
			}

			// Write default config
			defaults := storage.DefaultConfig()
			data, err := yaml.Marshal(defaults)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Printf("Created default config at %s\n", configPath)
			return nil
		},
	}
}
