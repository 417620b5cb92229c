package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/finwire/finwire/internal/ai"
	"github.com/finwire/finwire/internal/storage"
)

// fakeAgents is a canned pipeline. Setting failStage makes that stage error.
type fakeAgents struct {
	failStage string
	calls     []string
}

func (f *fakeAgents) Report(ctx context.Context, model string, articles []storage.Article) (*ai.ReporterDraft, error) {
	f.calls = append(f.calls, "reporter")
	if f.failStage == "reporter" {
		return nil, errors.New("model unavailable")
	}
	return &ai.ReporterDraft{Headline: "Markets rally", Body: "Stocks rose.", KeyPoints: []string{"rally"}}, nil
}

func (f *fakeAgents) Edit(ctx context.Context, model string, draft *ai.ReporterDraft) (*ai.EditorResult, error) {
	f.calls = append(f.calls, "editor")
	if f.failStage == "editor" {
		return nil, errors.New("model unavailable")
	}
	return &ai.EditorResult{Headline: draft.Headline, Body: draft.Body, Summary: "Stocks rose today."}, nil
}

func (f *fakeAgents) Design(ctx context.Context, model string, article *ai.EditorResult) (*ai.DesignerBrief, error) {
	f.calls = append(f.calls, "designer")
	if f.failStage == "designer" {
		return nil, errors.New("model unavailable")
	}
	return &ai.DesignerBrief{Prompt: "bull statue at dawn", AltText: article.Headline, Style: "editorial"}, nil
}

func (f *fakeAgents) Market(ctx context.Context, model string, article *ai.EditorResult) (*ai.MarketerResult, error) {
	f.calls = append(f.calls, "marketer")
	if f.failStage == "marketer" {
		return nil, errors.New("model unavailable")
	}
	return &ai.MarketerResult{
		Headlines: []string{article.Headline},
		Posts:     []ai.SocialPost{{Platform: "x", Text: "Markets rally today."}},
	}, nil
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// seedConfig inserts a source, one recent article, and an agent config.
func seedConfig(t *testing.T, store *storage.Store) storage.AgentConfig {
	t.Helper()
	sourceID, err := store.AddSource("https://example.com/feed.xml", "Example Wire", "markets")
	if err != nil {
		t.Fatalf("failed to add source: %v", err)
	}

	sentiment := 0.8
	now := time.Now().UTC()
	if _, err := store.AddArticle(&storage.Article{
		SourceID:      sourceID,
		GUID:          "guid-1",
		Title:         "Fed holds rates",
		URL:           "https://example.com/1",
		Content:       "The central bank held rates steady.",
		Tickers:       `["SPY"]`,
		Sentiment:     &sentiment,
		Impact:        "HIGH",
		PublishedDate: &now,
	}); err != nil {
		t.Fatalf("failed to add article: %v", err)
	}

	cfg := storage.AgentConfig{
		Name:       "daily-markets",
		CronExpr:   "0 6 * * *",
		Model:      "llama3",
		Category:   "markets",
		MaxSources: 5,
		Enabled:    true,
	}
	id, err := store.AddAgentConfig(&cfg)
	if err != nil {
		t.Fatalf("failed to add agent config: %v", err)
	}
	cfg.ID = id
	return cfg
}

func TestRunConfigCompletes(t *testing.T) {
	store := newTestStore(t)
	cfg := seedConfig(t, store)
	agents := &fakeAgents{}
	s := New(store, agents, time.Minute, 7*24*time.Hour)

	runID, err := s.RunConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("RunConfig failed: %v", err)
	}

	run, err := store.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != storage.RunStatusCompleted {
		t.Errorf("run status = %q, want COMPLETED", run.Status)
	}
	for _, out := range []string{run.ReporterOutput, run.EditorOutput, run.DesignerOutput, run.MarketerOutput} {
		if out == "" {
			t.Error("all stage outputs should be persisted on a completed run")
		}
	}
	if run.ArticleID == nil {
		t.Fatal("completed run should link the generated article")
	}

	ga, err := store.GetGeneratedArticle(*run.ArticleID)
	if err != nil {
		t.Fatalf("GetGeneratedArticle failed: %v", err)
	}
	if ga.Headline != "Markets rally" {
		t.Errorf("generated headline = %q", ga.Headline)
	}
	if !strings.Contains(ga.ImageBrief, "bull statue") {
		t.Errorf("image brief not persisted: %q", ga.ImageBrief)
	}
	if !strings.Contains(ga.SocialPosts, `"platform":"x"`) {
		t.Errorf("social posts not persisted: %q", ga.SocialPosts)
	}

	want := []string{"reporter", "editor", "designer", "marketer"}
	if fmt.Sprint(agents.calls) != fmt.Sprint(want) {
		t.Errorf("stage order = %v, want %v", agents.calls, want)
	}
}

func TestRunConfigStageFailure(t *testing.T) {
	store := newTestStore(t)
	cfg := seedConfig(t, store)
	agents := &fakeAgents{failStage: "editor"}
	s := New(store, agents, time.Minute, 7*24*time.Hour)

	runID, err := s.RunConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error from failing editor stage")
	}
	if !strings.Contains(err.Error(), "editor") {
		t.Errorf("error should name the failing stage: %v", err)
	}

	run, err := store.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != storage.RunStatusFailed {
		t.Errorf("run status = %q, want FAILED", run.Status)
	}
	if run.Error == nil || !strings.Contains(*run.Error, "editor") {
		t.Errorf("run error not recorded: %v", run.Error)
	}
	// Reporter output came before the failure and must survive.
	if run.ReporterOutput == "" {
		t.Error("reporter output should be kept on a later-stage failure")
	}
	if run.EditorOutput != "" {
		t.Errorf("editor output should be empty, got %q", run.EditorOutput)
	}

	// The designer and marketer must not run after the editor fails.
	if fmt.Sprint(agents.calls) != fmt.Sprint([]string{"reporter", "editor"}) {
		t.Errorf("stages after the failure should not run: %v", agents.calls)
	}

	if articles, _ := store.ListGeneratedArticles(10, 0); len(articles) != 0 {
		t.Errorf("failed run should not publish an article, got %d", len(articles))
	}
}

func TestRunConfigNoArticles(t *testing.T) {
	store := newTestStore(t)
	cfg := storage.AgentConfig{Name: "empty", CronExpr: "0 6 * * *", Category: "crypto", MaxSources: 5, Enabled: true}
	id, err := store.AddAgentConfig(&cfg)
	if err != nil {
		t.Fatalf("failed to add agent config: %v", err)
	}
	cfg.ID = id

	agents := &fakeAgents{}
	s := New(store, agents, time.Minute, 7*24*time.Hour)

	runID, err := s.RunConfig(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error when no source articles exist")
	}

	run, err := store.GetRun(runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != storage.RunStatusFailed {
		t.Errorf("run status = %q, want FAILED", run.Status)
	}
	if len(agents.calls) != 0 {
		t.Errorf("no agents should run without source articles: %v", agents.calls)
	}
}

func TestIsDue(t *testing.T) {
	store := newTestStore(t)
	cfg := seedConfig(t, store)
	s := New(store, &fakeAgents{}, time.Minute, 7*24*time.Hour)

	// Never run: due immediately.
	due, err := s.isDue(cfg)
	if err != nil {
		t.Fatalf("isDue failed: %v", err)
	}
	if !due {
		t.Error("a config that has never run should be due")
	}

	// Just ran: the next daily fire time has not passed yet.
	if _, err := store.CreateRun(cfg.ID); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	due, err = s.isDue(cfg)
	if err != nil {
		t.Fatalf("isDue failed: %v", err)
	}
	if due {
		t.Error("a config that just ran should not be due again")
	}

	// Two days later it is overdue.
	s.now = func() time.Time { return time.Now().UTC().Add(48 * time.Hour) }
	due, err = s.isDue(cfg)
	if err != nil {
		t.Fatalf("isDue failed: %v", err)
	}
	if !due {
		t.Error("a config past its next fire time should be due")
	}
}

func TestIsDueBadCron(t *testing.T) {
	store := newTestStore(t)
	s := New(store, &fakeAgents{}, time.Minute, 7*24*time.Hour)

	cfg := storage.AgentConfig{Name: "bad", CronExpr: "not a cron", Category: "markets", MaxSources: 5, Enabled: true}
	if _, err := s.isDue(cfg); err == nil {
		t.Error("expected error for an invalid cron expression")
	}
}

func TestTickRunsDueConfigs(t *testing.T) {
	store := newTestStore(t)
	seedConfig(t, store)
	agents := &fakeAgents{}
	s := New(store, agents, time.Minute, 7*24*time.Hour)

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(agents.calls) != 4 {
		t.Fatalf("first tick should run the full chain, got calls %v", agents.calls)
	}

	// The config just ran; a second tick does nothing.
	agents.calls = nil
	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(agents.calls) != 0 {
		t.Errorf("second tick should not re-run, got calls %v", agents.calls)
	}
}
