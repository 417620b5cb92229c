package finwire

import "time"

// EngineConfig configures the finwire content engine.
type EngineConfig struct {
	DBPath        string
	OllamaBaseURL string
	ReporterModel string
	EditorModel   string
	DesignerModel string
	MarketerModel string
	TickInterval  time.Duration // scheduler tick
	ArticleWindow time.Duration // how far back generation looks for source articles
}

// User represents an editorial account.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Source represents an RSS/Atom news source.
type Source struct {
	ID           int64      `json:"id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	LastError    *string    `json:"last_error,omitempty"`
	Enabled      bool       `json:"enabled"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Article represents an ingested source article with its analysis fields.
type Article struct {
	ID            int64      `json:"id"`
	SourceID      int64      `json:"source_id"`
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Content       string     `json:"content"`
	Summary       string     `json:"summary"`
	Author        string     `json:"author"`
	Tickers       []string   `json:"tickers,omitempty"`
	Entities      []string   `json:"entities,omitempty"`
	Sentiment     *float64   `json:"sentiment,omitempty"`
	Impact        string     `json:"impact,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	FetchedDate   time.Time  `json:"fetched_date"`
}

// GeneratedArticle is a pipeline-produced article with its distribution assets.
type GeneratedArticle struct {
	ID              int64     `json:"id"`
	RunID           *int64    `json:"run_id,omitempty"`
	SourceArticleID *int64    `json:"source_article_id,omitempty"`
	Headline        string    `json:"headline"`
	Body            string    `json:"body"`
	Summary         string    `json:"summary"`
	ImageBrief      string    `json:"image_brief,omitempty"`
	SocialPosts     string    `json:"social_posts,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// AgentConfig is a scheduled generation configuration.
type AgentConfig struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CronExpr   string    `json:"cron_expr"`
	Model      string    `json:"model"`
	Category   string    `json:"category"`
	MaxSources int       `json:"max_sources"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// Run is one execution of the four-agent pipeline.
type Run struct {
	ID             int64      `json:"id"`
	ConfigID       int64      `json:"config_id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Error          *string    `json:"error,omitempty"`
	ReporterOutput string     `json:"reporter_output,omitempty"`
	EditorOutput   string     `json:"editor_output,omitempty"`
	DesignerOutput string     `json:"designer_output,omitempty"`
	MarketerOutput string     `json:"marketer_output,omitempty"`
	ArticleID      *int64     `json:"article_id,omitempty"`
}

// FetchResult summarizes one polling cycle over all sources.
type FetchResult struct {
	SourcesTotal       int `json:"sources_total"`
	SourcesDownloaded  int `json:"sources_downloaded"`
	SourcesNotModified int `json:"sources_not_modified"`
	SourcesErrored     int `json:"sources_errored"`
	NewArticles        int `json:"new_articles"`
}

// SourceStats holds per-source ingestion counts.
type SourceStats struct {
	SourceID      int64  `json:"source_id"`
	SourceTitle   string `json:"source_title"`
	TotalArticles int    `json:"total_articles"`
	HighImpact    int    `json:"high_impact"`
	LastError     string `json:"last_error,omitempty"`
}

// AnalyticsReport aggregates ingestion and generation activity.
type AnalyticsReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Sources     []SourceStats  `json:"sources"`
	RunCounts   map[string]int `json:"run_counts"`
}
