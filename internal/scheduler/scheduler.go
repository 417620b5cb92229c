// Package scheduler runs the agent generation pipeline on cron schedules.
// Each tick it loads the enabled agent configs, decides which are due from
// their cron expression and last run time, and for each due config runs the
// reporter -> editor -> designer -> marketer chain sequentially, recording
// progress on an agent_runs row.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/finwire/finwire/internal/ai"
	"github.com/finwire/finwire/internal/storage"
)

// AgentRunner is the four-stage generation pipeline. *ai.AgentProcessor
// implements it; tests substitute fakes.
type AgentRunner interface {
	Report(ctx context.Context, model string, articles []storage.Article) (*ai.ReporterDraft, error)
	Edit(ctx context.Context, model string, draft *ai.ReporterDraft) (*ai.EditorResult, error)
	Design(ctx context.Context, model string, article *ai.EditorResult) (*ai.DesignerBrief, error)
	Market(ctx context.Context, model string, article *ai.EditorResult) (*ai.MarketerResult, error)
}

type Scheduler struct {
	store  *storage.Store
	agents AgentRunner

	tickInterval  time.Duration
	articleWindow time.Duration
	parser        cron.Parser
	now           func() time.Time // overridable for tests
}

func New(store *storage.Store, agents AgentRunner, tickInterval, articleWindow time.Duration) *Scheduler {
	return &Scheduler{
		store:         store,
		agents:        agents,
		tickInterval:  tickInterval,
		articleWindow: articleWindow,
		parser:        cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		now:           time.Now,
	}
}

// Run ticks immediately, then on every interval until the context is
// cancelled. A run in flight finishes its current stage before shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: starting (tick=%s, window=%s)", s.tickInterval, s.articleWindow)

	if err := s.Tick(ctx); err != nil {
		log.Printf("scheduler: tick error: %v", err)
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopped")
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Printf("scheduler: tick error: %v", err)
			}
		}
	}
}

// Tick checks every enabled config and runs the pipeline for each that is
// due. Individual run failures are recorded on the run row, not returned;
// only an inability to read configs is an error.
func (s *Scheduler) Tick(ctx context.Context) error {
	configs, err := s.store.GetEnabledAgentConfigs()
	if err != nil {
		return fmt.Errorf("load agent configs: %w", err)
	}

	for _, cfg := range configs {
		due, err := s.isDue(cfg)
		if err != nil {
			log.Printf("scheduler: config %q has bad cron expression %q: %v", cfg.Name, cfg.CronExpr, err)
			continue
		}
		if !due {
			continue
		}

		if runID, err := s.RunConfig(ctx, cfg); err != nil {
			log.Printf("scheduler: run %d for config %q failed: %v", runID, cfg.Name, err)
		} else {
			log.Printf("scheduler: run %d for config %q completed", runID, cfg.Name)
		}
	}
	return nil
}

// isDue reports whether a config should run now. A config that has never
// run is due immediately; otherwise it is due once the cron schedule's next
// fire time after the last run start has passed.
func (s *Scheduler) isDue(cfg storage.AgentConfig) (bool, error) {
	sched, err := s.parser.Parse(cfg.CronExpr)
	if err != nil {
		return false, err
	}

	last, err := s.store.GetLastRunStart(cfg.ID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	return !sched.Next(*last).After(s.now()), nil
}

// RunConfig executes the full agent chain for one config, recording status
// and stage outputs on a fresh agent_runs row. Returns the run ID. Any
// stage error marks the run FAILED with the error message; stage outputs
// persisted before the failure are kept.
func (s *Scheduler) RunConfig(ctx context.Context, cfg storage.AgentConfig) (int64, error) {
	runID, err := s.store.CreateRun(cfg.ID)
	if err != nil {
		return 0, fmt.Errorf("create run: %w", err)
	}

	if err := s.executeChain(ctx, cfg, runID); err != nil {
		if failErr := s.store.FailRun(runID, err.Error()); failErr != nil {
			log.Printf("scheduler: failed to mark run %d FAILED: %v", runID, failErr)
		}
		return runID, err
	}
	return runID, nil
}

func (s *Scheduler) executeChain(ctx context.Context, cfg storage.AgentConfig, runID int64) error {
	articles, err := s.store.GetArticlesForGeneration(cfg.Category, s.articleWindow, cfg.MaxSources)
	if err != nil {
		return fmt.Errorf("select source articles: %w", err)
	}
	if len(articles) == 0 {
		return fmt.Errorf("no source articles in window for category %q", cfg.Category)
	}

	// 1. Reporter
	draft, err := s.agents.Report(ctx, cfg.Model, articles)
	if err != nil {
		return fmt.Errorf("reporter: %w", err)
	}
	if err := s.persistStage(runID, storage.StageReporter, draft); err != nil {
		return err
	}

	// 2. Editor
	edited, err := s.agents.Edit(ctx, cfg.Model, draft)
	if err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	if err := s.persistStage(runID, storage.StageEditor, edited); err != nil {
		return err
	}

	// 3. Designer
	brief, err := s.agents.Design(ctx, cfg.Model, edited)
	if err != nil {
		return fmt.Errorf("designer: %w", err)
	}
	if err := s.persistStage(runID, storage.StageDesigner, brief); err != nil {
		return err
	}

	// 4. Marketer
	marketing, err := s.agents.Market(ctx, cfg.Model, edited)
	if err != nil {
		return fmt.Errorf("marketer: %w", err)
	}
	if err := s.persistStage(runID, storage.StageMarketer, marketing); err != nil {
		return err
	}

	briefJSON, _ := json.Marshal(brief)
	postsJSON, _ := json.Marshal(marketing.Posts)

	sourceID := articles[0].ID
	articleID, err := s.store.AddGeneratedArticle(&storage.GeneratedArticle{
		RunID:           &runID,
		SourceArticleID: &sourceID,
		Headline:        edited.Headline,
		Body:            edited.Body,
		Summary:         edited.Summary,
		ImageBrief:      string(briefJSON),
		SocialPosts:     string(postsJSON),
		Status:          "published",
	})
	if err != nil {
		return fmt.Errorf("store generated article: %w", err)
	}

	if err := s.store.CompleteRun(runID, articleID); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

func (s *Scheduler) persistStage(runID int64, stage string, output interface{}) error {
	raw, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("encode %s output: %w", stage, err)
	}
	if err := s.store.UpdateRunStage(runID, stage, string(raw)); err != nil {
		return fmt.Errorf("persist %s output: %w", stage, err)
	}
	return nil
}
