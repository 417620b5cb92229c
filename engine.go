// Package finwire is the public API for the finwire content engine: RSS
// ingestion with financial enrichment, scheduled multi-agent article
// generation, and the key-protected read API on top of both.
package finwire

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/finwire/finwire/internal/ai"
	"github.com/finwire/finwire/internal/apikey"
	"github.com/finwire/finwire/internal/cache"
	"github.com/finwire/finwire/internal/feeds"
	"github.com/finwire/finwire/internal/scheduler"
	"github.com/finwire/finwire/internal/storage"
)

const analyticsCacheKey = "analytics"

// Engine wraps the internal storage, feed fetcher, agent processor, and
// scheduler behind one public surface used by both binaries.
type Engine struct {
	store     *storage.Store
	fetcher   *feeds.Fetcher
	agents    *ai.AgentProcessor
	sched     *scheduler.Scheduler
	keys      *apikey.Manager
	analytics *cache.Cache
	config    *storage.Config
}

// NewEngine creates a finwire engine backed by the given SQLite database.
// The agent processor is created eagerly but only contacts Ollama when a
// generation run starts.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.OllamaBaseURL == "" {
		cfg.OllamaBaseURL = "http://localhost:11434"
	}
	if cfg.ReporterModel == "" {
		cfg.ReporterModel = "llama3"
	}
	if cfg.EditorModel == "" {
		cfg.EditorModel = "llama3"
	}
	if cfg.DesignerModel == "" {
		cfg.DesignerModel = "gemma3:4b"
	}
	if cfg.MarketerModel == "" {
		cfg.MarketerModel = "gemma3:4b"
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = time.Minute
	}
	if cfg.ArticleWindow == 0 {
		cfg.ArticleWindow = 7 * 24 * time.Hour
	}

	store, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storeCfg := storage.DefaultConfig()
	storeCfg.Ollama.BaseURL = cfg.OllamaBaseURL
	storeCfg.Ollama.ReporterModel = cfg.ReporterModel
	storeCfg.Ollama.EditorModel = cfg.EditorModel
	storeCfg.Ollama.DesignerModel = cfg.DesignerModel
	storeCfg.Ollama.MarketerModel = cfg.MarketerModel
	storeCfg.Scheduler.TickInterval = cfg.TickInterval
	storeCfg.Scheduler.ArticleWindow = cfg.ArticleWindow

	agents, err := ai.NewAgentProcessor(storeCfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create agent processor: %w", err)
	}

	return &Engine{
		store:     store,
		fetcher:   feeds.NewFetcher(store),
		agents:    agents,
		sched:     scheduler.New(store, agents, cfg.TickInterval, cfg.ArticleWindow),
		keys:      apikey.NewManager(store),
		analytics: cache.New(60 * time.Second),
		config:    storeCfg,
	}, nil
}

// Keys returns the API key manager.
func (e *Engine) Keys() *apikey.Manager {
	return e.keys
}

// FetchAllSources polls every enabled source and stores new articles.
func (e *Engine) FetchAllSources(ctx context.Context) (*FetchResult, error) {
	stats, err := e.fetcher.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		SourcesTotal:       stats.SourcesTotal,
		SourcesDownloaded:  stats.SourcesDownloaded,
		SourcesNotModified: stats.SourcesNotModified,
		SourcesErrored:     stats.SourcesErrored,
		NewArticles:        stats.NewArticles,
	}, nil
}

// RunDaemon runs the generation scheduler until the context is cancelled.
func (e *Engine) RunDaemon(ctx context.Context) {
	e.sched.Run(ctx)
}

// GenerateNow runs the agent pipeline for one config immediately,
// regardless of its cron schedule. Returns the run ID.
func (e *Engine) GenerateNow(ctx context.Context, configID int64) (int64, error) {
	cfg, err := e.store.GetAgentConfig(configID)
	if err != nil {
		return 0, err
	}
	return e.sched.RunConfig(ctx, *cfg)
}

// GenerateAll runs the pipeline once for every enabled config. Failed runs
// are logged and recorded on their run rows, not fatal.
func (e *Engine) GenerateAll(ctx context.Context) ([]int64, error) {
	configs, err := e.store.GetEnabledAgentConfigs()
	if err != nil {
		return nil, fmt.Errorf("load agent configs: %w", err)
	}

	var runIDs []int64
	for _, cfg := range configs {
		runID, err := e.sched.RunConfig(ctx, cfg)
		if err != nil {
			log.Printf("finwire: run for config %q failed: %v", cfg.Name, err)
		}
		if runID != 0 {
			runIDs = append(runIDs, runID)
		}
	}
	return runIDs, nil
}

// Users

// CreateUser registers an editorial account. Names are unique.
func (e *Engine) CreateUser(name string) (int64, error) {
	return e.store.CreateUser(name)
}

// ListUsers returns all registered accounts.
func (e *Engine) ListUsers() ([]User, error) {
	users, err := e.store.ListUsers()
	if err != nil {
		return nil, err
	}
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = User{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}
	}
	return out, nil
}

// Source articles

// GetRecentArticles returns recent source articles, newest first.
func (e *Engine) GetRecentArticles(limit, offset int) ([]Article, error) {
	articles, err := e.store.GetRecentArticles(limit, offset)
	if err != nil {
		return nil, err
	}
	return articlesFromInternal(articles), nil
}

// GetArticle returns a single source article by ID.
func (e *Engine) GetArticle(articleID int64) (*Article, error) {
	a, err := e.store.GetArticle(articleID)
	if err != nil {
		return nil, err
	}
	result := articleFromInternal(*a)
	return &result, nil
}

// SearchArticlesByTicker returns articles tagged with the given ticker symbol.
func (e *Engine) SearchArticlesByTicker(symbol string, limit int) ([]Article, error) {
	articles, err := e.store.SearchArticlesByTicker(symbol, limit)
	if err != nil {
		return nil, err
	}
	return articlesFromInternal(articles), nil
}

// Generated articles

// ListGeneratedArticles returns pipeline-produced articles, newest first.
func (e *Engine) ListGeneratedArticles(limit, offset int) ([]GeneratedArticle, error) {
	articles, err := e.store.ListGeneratedArticles(limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]GeneratedArticle, len(articles))
	for i, ga := range articles {
		out[i] = generatedFromInternal(ga)
	}
	return out, nil
}

// GetGeneratedArticle returns a single generated article by ID.
func (e *Engine) GetGeneratedArticle(articleID int64) (*GeneratedArticle, error) {
	ga, err := e.store.GetGeneratedArticle(articleID)
	if err != nil {
		return nil, err
	}
	result := generatedFromInternal(*ga)
	return &result, nil
}

// Sources

// AddSource registers a new RSS source. Validates the URL by fetching the
// feed first; returns an error if the URL is unreachable or not a valid
// RSS/Atom feed. Articles from the validation fetch are stored immediately.
func (e *Engine) AddSource(ctx context.Context, url, title, category string) (int64, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Validate by fetching. Catches bad URLs, non-feed pages, timeouts.
	result, err := e.fetcher.FetchSource(fetchCtx, storage.Source{URL: url})
	if err != nil {
		return 0, fmt.Errorf("validate source: %w", err)
	}

	if title == "" && result.Feed != nil && result.Feed.Title != "" {
		title = result.Feed.Title
	}
	if title == "" {
		title = url
	}
	if category == "" {
		category = "markets"
	}

	sourceID, err := e.store.AddSource(url, title, category)
	if err != nil {
		return 0, fmt.Errorf("add source: %w", err)
	}

	if result.Feed != nil {
		if stored, err := e.fetcher.StoreArticles(sourceID, result.Feed); err == nil && stored > 0 {
			log.Printf("finwire: stored %d initial articles from %s", stored, url)
		}
	}
	if result.ETag != "" || result.LastModified != "" {
		e.store.UpdateSourceCacheHeaders(sourceID, result.ETag, result.LastModified)
	}
	e.store.ClearSourceError(sourceID)

	return sourceID, nil
}

// AddSourceUnchecked registers a source without fetching it first. Used by
// seeding, where the URLs are trusted and network access may be absent.
func (e *Engine) AddSourceUnchecked(url, title, category string) (int64, error) {
	if title == "" {
		title = url
	}
	if category == "" {
		category = "markets"
	}
	return e.store.AddSource(url, title, category)
}

// RemoveSource deletes a source. CASCADE removes its articles.
func (e *Engine) RemoveSource(sourceID int64) error {
	return e.store.DeleteSource(sourceID)
}

// RenameSource updates the display title of a source.
func (e *Engine) RenameSource(sourceID int64, title string) error {
	return e.store.RenameSource(sourceID, title)
}

// ListSources returns all enabled sources, optionally filtered by category.
func (e *Engine) ListSources(category string) ([]Source, error) {
	sources, err := e.store.GetSourcesByCategory(category)
	if err != nil {
		return nil, err
	}
	out := make([]Source, len(sources))
	for i, src := range sources {
		out[i] = sourceFromInternal(src)
	}
	return out, nil
}

// ImportOPML imports sources from an OPML file. Folder names become
// categories. Returns the number of sources added.
func (e *Engine) ImportOPML(path string) (int, error) {
	return e.fetcher.ImportOPML(path)
}

// Agent configs and runs

// AddAgentConfig registers a scheduled generation config.
func (e *Engine) AddAgentConfig(cfg AgentConfig) (int64, error) {
	return e.store.AddAgentConfig(&storage.AgentConfig{
		Name:       cfg.Name,
		CronExpr:   cfg.CronExpr,
		Model:      cfg.Model,
		Category:   cfg.Category,
		MaxSources: cfg.MaxSources,
		Enabled:    cfg.Enabled,
	})
}

// ListAgentConfigs returns every registered config, disabled ones included.
func (e *Engine) ListAgentConfigs() ([]AgentConfig, error) {
	configs, err := e.store.ListAgentConfigs()
	if err != nil {
		return nil, err
	}
	out := make([]AgentConfig, len(configs))
	for i, c := range configs {
		out[i] = configFromInternal(c)
	}
	return out, nil
}

// SetAgentEnabled toggles a config on or off. Disabled configs are skipped
// by the scheduler and by GenerateAll.
func (e *Engine) SetAgentEnabled(configID int64, enabled bool) error {
	return e.store.SetAgentConfigEnabled(configID, enabled)
}

// ListRuns returns recent pipeline runs, newest first.
func (e *Engine) ListRuns(limit, offset int) ([]Run, error) {
	runs, err := e.store.ListRuns(limit, offset)
	if err != nil {
		return nil, err
	}
	out := make([]Run, len(runs))
	for i, r := range runs {
		out[i] = runFromInternal(r)
	}
	return out, nil
}

// GetRun returns a single run with its full stage outputs.
func (e *Engine) GetRun(runID int64) (*Run, error) {
	r, err := e.store.GetRun(runID)
	if err != nil {
		return nil, err
	}
	result := runFromInternal(*r)
	return &result, nil
}

// Analytics returns the aggregate activity report. Reports are cached for
// 60 seconds; concurrent callers within the window share one computation's
// result.
func (e *Engine) Analytics() (*AnalyticsReport, error) {
	if cached, ok := e.analytics.Get(analyticsCacheKey); ok {
		return cached.(*AnalyticsReport), nil
	}

	stats, err := e.store.GetSourceStats()
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	counts, err := e.store.CountRunsByStatus()
	if err != nil {
		return nil, fmt.Errorf("run counts: %w", err)
	}

	report := &AnalyticsReport{
		GeneratedAt: time.Now().UTC(),
		Sources:     make([]SourceStats, len(stats)),
		RunCounts:   counts,
	}
	for i, st := range stats {
		report.Sources[i] = SourceStats{
			SourceID:      st.SourceID,
			SourceTitle:   st.SourceTitle,
			TotalArticles: st.TotalArticles,
			HighImpact:    st.HighImpact,
			LastError:     st.LastError,
		}
	}

	e.analytics.Set(analyticsCacheKey, report)
	return report, nil
}

// Cleanup prunes old source articles and finished runs. Articles referenced
// by generated articles and RUNNING rows survive. Returns (articles, runs)
// deleted.
func (e *Engine) Cleanup(olderThan time.Time) (int64, int64, error) {
	articles, err := e.store.PruneArticles(olderThan)
	if err != nil {
		return 0, 0, fmt.Errorf("prune articles: %w", err)
	}
	runs, err := e.store.PruneRuns(olderThan)
	if err != nil {
		return articles, 0, fmt.Errorf("prune runs: %w", err)
	}
	return articles, runs, nil
}

// Close releases all resources held by the engine.
func (e *Engine) Close() error {
	return e.store.Close()
}

// --- internal type conversion helpers ---

func articleFromInternal(a storage.Article) Article {
	var tickers, entities []string
	if a.Tickers != "" {
		json.Unmarshal([]byte(a.Tickers), &tickers)
	}
	if a.Entities != "" {
		json.Unmarshal([]byte(a.Entities), &entities)
	}
	return Article{
		ID:            a.ID,
		SourceID:      a.SourceID,
		Title:         a.Title,
		URL:           a.URL,
		Content:       a.Content,
		Summary:       a.Summary,
		Author:        a.Author,
		Tickers:       tickers,
		Entities:      entities,
		Sentiment:     a.Sentiment,
		Impact:        a.Impact,
		PublishedDate: a.PublishedDate,
		FetchedDate:   a.FetchedDate,
	}
}

func articlesFromInternal(articles []storage.Article) []Article {
	out := make([]Article, len(articles))
	for i, a := range articles {
		out[i] = articleFromInternal(a)
	}
	return out
}

func sourceFromInternal(src storage.Source) Source {
	return Source{
		ID:          src.ID,
		URL:         src.URL,
		Title:       src.Title,
		Category:    src.Category,
		LastFetched: src.LastFetched,
		LastError:   src.LastError,
		Enabled:     src.Enabled,
		CreatedAt:   src.CreatedAt,
	}
}

func configFromInternal(c storage.AgentConfig) AgentConfig {
	return AgentConfig{
		ID:         c.ID,
		Name:       c.Name,
		CronExpr:   c.CronExpr,
		Model:      c.Model,
		Category:   c.Category,
		MaxSources: c.MaxSources,
		Enabled:    c.Enabled,
		CreatedAt:  c.CreatedAt,
	}
}

func generatedFromInternal(ga storage.GeneratedArticle) GeneratedArticle {
	return GeneratedArticle{
		ID:              ga.ID,
		RunID:           ga.RunID,
		SourceArticleID: ga.SourceArticleID,
		Headline:        ga.Headline,
		Body:            ga.Body,
		Summary:         ga.Summary,
		ImageBrief:      ga.ImageBrief,
		SocialPosts:     ga.SocialPosts,
		Status:          ga.Status,
		CreatedAt:       ga.CreatedAt,
	}
}

func runFromInternal(r storage.AgentRun) Run {
	return Run{
		ID:             r.ID,
		ConfigID:       r.ConfigID,
		Status:         r.Status,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Error:          r.Error,
		ReporterOutput: r.ReporterOutput,
		EditorOutput:   r.EditorOutput,
		DesignerOutput: r.DesignerOutput,
		MarketerOutput: r.MarketerOutput,
		ArticleID:      r.ArticleID,
	}
}
