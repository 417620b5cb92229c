package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Run status values. A run is RUNNING from insert until the chain either
// finishes (COMPLETED) or an agent stage errors (FAILED).
const (
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// Agent stage names, in chain order.
const (
	StageReporter = "reporter"
	StageEditor   = "editor"
	StageDesigner = "designer"
	StageMarketer = "marketer"
)

type AgentConfig struct {
	ID         int64
	Name       string
	CronExpr   string
	Model      string
	Category   string
	MaxSources int
	Enabled    bool
	CreatedAt  time.Time
}

type AgentRun struct {
	ID             int64
	ConfigID       int64
	Status         string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Error          *string
	ReporterOutput string
	EditorOutput   string
	DesignerOutput string
	MarketerOutput string
	ArticleID      *int64
}

type GeneratedArticle struct {
	ID              int64
	RunID           *int64
	SourceArticleID *int64
	Headline        string
	Body            string
	Summary         string
	ImageBrief      string // JSON illustration brief from the designer agent
	SocialPosts     string // JSON post list from the marketer agent
	Status          string
	CreatedAt       time.Time
}

// Agent configs

// AddAgentConfig registers a scheduled generation config.
func (s *Store) AddAgentConfig(cfg *AgentConfig) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO agent_configs (name, cron_expr, model, category, max_sources, enabled)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cfg.Name, cfg.CronExpr, cfg.Model, cfg.Category, cfg.MaxSources, cfg.Enabled,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add agent config: %w", err)
	}
	return result.LastInsertId()
}

// GetEnabledAgentConfigs returns all enabled agent configs.
func (s *Store) GetEnabledAgentConfigs() ([]AgentConfig, error) {
	rows, err := s.db.Query(
		"SELECT id, name, cron_expr, model, category, max_sources, enabled, created_at FROM agent_configs WHERE enabled = 1 ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent configs: %w", err)
	}
	defer rows.Close()

	var configs []AgentConfig
	for rows.Next() {
		var c AgentConfig
		if err := rows.Scan(&c.ID, &c.Name, &c.CronExpr, &c.Model, &c.Category, &c.MaxSources, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// ListAgentConfigs returns every agent config, disabled ones included.
func (s *Store) ListAgentConfigs() ([]AgentConfig, error) {
	rows, err := s.db.Query(
		"SELECT id, name, cron_expr, model, category, max_sources, enabled, created_at FROM agent_configs ORDER BY id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent configs: %w", err)
	}
	defer rows.Close()

	var configs []AgentConfig
	for rows.Next() {
		var c AgentConfig
		if err := rows.Scan(&c.ID, &c.Name, &c.CronExpr, &c.Model, &c.Category, &c.MaxSources, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent config: %w", err)
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// GetAgentConfig returns a single agent config by ID.
func (s *Store) GetAgentConfig(configID int64) (*AgentConfig, error) {
	var c AgentConfig
	err := s.db.QueryRow(
		"SELECT id, name, cron_expr, model, category, max_sources, enabled, created_at FROM agent_configs WHERE id = ?",
		configID,
	).Scan(&c.ID, &c.Name, &c.CronExpr, &c.Model, &c.Category, &c.MaxSources, &c.Enabled, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get agent config %d: %w", configID, err)
	}
	return &c, nil
}

// SetAgentConfigEnabled toggles a config on or off.
func (s *Store) SetAgentConfigEnabled(configID int64, enabled bool) error {
	_, err := s.db.Exec("UPDATE agent_configs SET enabled = ? WHERE id = ?", enabled, configID)
	if err != nil {
		return fmt.Errorf("failed to toggle agent config: %w", err)
	}
	return nil
}

// Agent runs

// CreateRun inserts a RUNNING run row for a config and returns its ID.
func (s *Store) CreateRun(configID int64) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO agent_runs (config_id, status) VALUES (?, ?)",
		configID, RunStatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}
	return result.LastInsertId()
}

// UpdateRunStage persists the JSON output of one agent stage.
func (s *Store) UpdateRunStage(runID int64, stage, output string) error {
	var column string
	switch stage {
	case StageReporter:
		column = "reporter_output"
	case StageEditor:
		column = "editor_output"
	case StageDesigner:
		column = "designer_output"
	case StageMarketer:
		column = "marketer_output"
	default:
		return fmt.Errorf("unknown agent stage: %s", stage)
	}
	_, err := s.db.Exec("UPDATE agent_runs SET "+column+" = ? WHERE id = ?", output, runID)
	if err != nil {
		return fmt.Errorf("failed to update run stage %s: %w", stage, err)
	}
	return nil
}

// CompleteRun marks a run COMPLETED and links the generated article.
func (s *Store) CompleteRun(runID, articleID int64) error {
	_, err := s.db.Exec(
		"UPDATE agent_runs SET status = ?, finished_at = CURRENT_TIMESTAMP, article_id = ? WHERE id = ?",
		RunStatusCompleted, articleID, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// FailRun marks a run FAILED and records the error message. Stage outputs
// written before the failure are kept.
func (s *Store) FailRun(runID int64, errMsg string) error {
	_, err := s.db.Exec(
		"UPDATE agent_runs SET status = ?, finished_at = CURRENT_TIMESTAMP, error = ? WHERE id = ?",
		RunStatusFailed, errMsg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	return nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(runID int64) (*AgentRun, error) {
	var r AgentRun
	var reporter, editor, designer, marketer sql.NullString
	err := s.db.QueryRow(
		`SELECT id, config_id, status, started_at, finished_at, error,
		        reporter_output, editor_output, designer_output, marketer_output, article_id
		 FROM agent_runs WHERE id = ?`, runID,
	).Scan(&r.ID, &r.ConfigID, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Error,
		&reporter, &editor, &designer, &marketer, &r.ArticleID)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}
	r.ReporterOutput = reporter.String
	r.EditorOutput = editor.String
	r.DesignerOutput = designer.String
	r.MarketerOutput = marketer.String
	return &r, nil
}

// GetLastRunStart returns the start time of the most recent run for a
// config, or nil if the config has never run.
func (s *Store) GetLastRunStart(configID int64) (*time.Time, error) {
	var started time.Time
	err := s.db.QueryRow(
		"SELECT started_at FROM agent_runs WHERE config_id = ? ORDER BY started_at DESC LIMIT 1",
		configID,
	).Scan(&started)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last run start: %w", err)
	}
	return &started, nil
}

// ListRuns returns recent runs, newest first.
func (s *Store) ListRuns(limit, offset int) ([]AgentRun, error) {
	rows, err := s.db.Query(
		`SELECT id, config_id, status, started_at, finished_at, error,
		        reporter_output, editor_output, designer_output, marketer_output, article_id
		 FROM agent_runs ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []AgentRun
	for rows.Next() {
		var r AgentRun
		var reporter, editor, designer, marketer sql.NullString
		if err := rows.Scan(&r.ID, &r.ConfigID, &r.Status, &r.StartedAt, &r.FinishedAt, &r.Error,
			&reporter, &editor, &designer, &marketer, &r.ArticleID); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.ReporterOutput = reporter.String
		r.EditorOutput = editor.String
		r.DesignerOutput = designer.String
		r.MarketerOutput = marketer.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// CountRunsByStatus returns run counts keyed by status.
func (s *Store) CountRunsByStatus() (map[string]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM agent_runs GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// PruneRuns deletes finished runs older than the cutoff. Returns the number
// deleted. RUNNING rows are never pruned.
func (s *Store) PruneRuns(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(
		"DELETE FROM agent_runs WHERE status != ? AND started_at < ?",
		RunStatusRunning, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

// Generated articles

// AddGeneratedArticle stores the output of a completed pipeline run.
func (s *Store) AddGeneratedArticle(ga *GeneratedArticle) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO generated_articles (run_id, source_article_id, headline, body, summary, image_brief, social_posts, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ga.RunID, ga.SourceArticleID, ga.Headline, ga.Body, ga.Summary,
		ga.ImageBrief, ga.SocialPosts, ga.Status,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add generated article: %w", err)
	}
	return result.LastInsertId()
}

// GetGeneratedArticle returns a single generated article by ID.
func (s *Store) GetGeneratedArticle(articleID int64) (*GeneratedArticle, error) {
	var ga GeneratedArticle
	var summary, brief, posts sql.NullString
	err := s.db.QueryRow(
		`SELECT id, run_id, source_article_id, headline, body, summary, image_brief, social_posts, status, created_at
		 FROM generated_articles WHERE id = ?`, articleID,
	).Scan(&ga.ID, &ga.RunID, &ga.SourceArticleID, &ga.Headline, &ga.Body,
		&summary, &brief, &posts, &ga.Status, &ga.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get generated article %d: %w", articleID, err)
	}
	ga.Summary = summary.String
	ga.ImageBrief = brief.String
	ga.SocialPosts = posts.String
	return &ga, nil
}

// ListGeneratedArticles returns generated articles, newest first.
func (s *Store) ListGeneratedArticles(limit, offset int) ([]GeneratedArticle, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, source_article_id, headline, body, summary, image_brief, social_posts, status, created_at
		 FROM generated_articles ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list generated articles: %w", err)
	}
	defer rows.Close()

	var articles []GeneratedArticle
	for rows.Next() {
		var ga GeneratedArticle
		var summary, brief, posts sql.NullString
		if err := rows.Scan(&ga.ID, &ga.RunID, &ga.SourceArticleID, &ga.Headline, &ga.Body,
			&summary, &brief, &posts, &ga.Status, &ga.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generated article: %w", err)
		}
		ga.Summary = summary.String
		ga.ImageBrief = brief.String
		ga.SocialPosts = posts.String
		articles = append(articles, ga)
	}
	return articles, rows.Err()
}
