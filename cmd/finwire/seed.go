package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/finwire/finwire"
	"github.com/finwire/finwire/internal/output"
)

// seedFile is the TOML layout consumed by `finwire seed`.
//
//	[[sources]]
//	url = "https://example.com/feed.xml"
//	title = "Example Wire"
//	category = "markets"
//
//	[[agents]]
//	name = "daily-markets"
//	cron = "0 6 * * *"
//	model = "llama3"
//	category = "markets"
//	max_sources = 5
type seedFile struct {
	Sources []seedSource `toml:"sources"`
	Agents  []seedAgent  `toml:"agents"`
}

type seedSource struct {
	URL      string `toml:"url"`
	Title    string `toml:"title"`
	Category string `toml:"category"`
}

type seedAgent struct {
	Name       string `toml:"name"`
	Cron       string `toml:"cron"`
	Model      string `toml:"model"`
	Category   string `toml:"category"`
	MaxSources int    `toml:"max_sources"`
	Disabled   bool   `toml:"disabled"`
}

func seedCmd() *cobra.Command {
	var skipValidation bool
	cmd := &cobra.Command{
		Use:   "seed <seed-file.toml>",
		Short: "Load sources and agent configs from a TOML seed file",
		Long: `Populate a fresh database from a TOML seed file. Sources that already
exist (same URL) are skipped, so re-running a seed file is safe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(output.Format(outputFormat))

			var seed seedFile
			if _, err := toml.DecodeFile(args[0], &seed); err != nil {
				return fmt.Errorf("failed to parse seed file: %w", err)
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			sourcesAdded := 0
			for _, src := range seed.Sources {
				if src.URL == "" {
					formatter.Warning("skipping source with empty URL")
					continue
				}
				var id int64
				var addErr error
				if skipValidation {
					id, addErr = engine.AddSourceUnchecked(src.URL, src.Title, src.Category)
				} else {
					id, addErr = engine.AddSource(cmd.Context(), src.URL, src.Title, src.Category)
				}
				if addErr != nil {
					formatter.Warning("source %s: %v", src.URL, addErr)
					continue
				}
				sourcesAdded++
				_ = id
			}

			agentsAdded := 0
			for _, a := range seed.Agents {
				if a.Name == "" || a.Cron == "" {
					formatter.Warning("skipping agent config without name or cron")
					continue
				}
				maxSources := a.MaxSources
				if maxSources == 0 {
					maxSources = 5
				}
				_, err := engine.AddAgentConfig(finwire.AgentConfig{
					Name:       a.Name,
					CronExpr:   a.Cron,
					Model:      a.Model,
					Category:   a.Category,
					MaxSources: maxSources,
					Enabled:    !a.Disabled,
				})
				if err != nil {
					formatter.Warning("agent config %q: %v", a.Name, err)
					continue
				}
				agentsAdded++
			}

			fmt.Printf("Seeded %d sources and %d agent configs from %s\n", sourcesAdded, agentsAdded, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipValidation, "skip-validation", false, "register sources without fetching them first")
	return cmd
}
