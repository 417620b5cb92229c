package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Source struct {
	ID           int64
	URL          string
	Title        string
	Category     string
	LastFetched  *time.Time
	LastError    *string
	ETag         string
	LastModified string
	Enabled      bool
	CreatedAt    time.Time
}

type Article struct {
	ID            int64
	SourceID      int64
	GUID          string
	Title         string
	URL           string
	Content       string
	Summary       string
	Author        string
	Tickers       string // JSON array of ticker symbols
	Entities      string // JSON array of named market entities
	Sentiment     *float64
	Impact        string
	PublishedDate *time.Time
	FetchedDate   time.Time
}

// NewStore creates a new database connection and initializes the schema
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Migrations for existing databases.
	migrations := []string{
		"ALTER TABLE sources ADD COLUMN last_error TEXT",
		"ALTER TABLE sources ADD COLUMN etag TEXT",
		"ALTER TABLE sources ADD COLUMN last_modified TEXT",
		"ALTER TABLE articles ADD COLUMN tickers TEXT",
		"ALTER TABLE articles ADD COLUMN entities TEXT",
		"ALTER TABLE articles ADD COLUMN sentiment REAL",
		"ALTER TABLE articles ADD COLUMN impact TEXT",
		"ALTER TABLE api_keys ADD COLUMN expires_at DATETIME",
	}
	for _, m := range migrations {
		db.Exec(m) // ignore "duplicate column" errors
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Users

// CreateUser adds a new user. Names are unique, case-insensitive.
func (s *Store) CreateUser(name string) (int64, error) {
	result, err := s.db.Exec("INSERT INTO users (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return result.LastInsertId()
}

// ListUsers returns all registered users.
func (s *Store) ListUsers() ([]User, error) {
	rows, err := s.db.Query("SELECT id, name, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Sources

// AddSource adds a new RSS source to the database
func (s *Store) AddSource(url, title, category string) (int64, error) {
	result, err := s.db.Exec(
		"INSERT INTO sources (url, title, category) VALUES (?, ?, ?)",
		url, title, category,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add source: %w", err)
	}
	return result.LastInsertId()
}

// GetAllSources returns all enabled sources
func (s *Store) GetAllSources() ([]Source, error) {
	rows, err := s.db.Query("SELECT id, url, title, category, last_fetched, last_error, etag, last_modified, enabled, created_at FROM sources WHERE enabled = 1")
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		var etag, lastMod sql.NullString
		if err := rows.Scan(&src.ID, &src.URL, &src.Title, &src.Category, &src.LastFetched, &src.LastError, &etag, &lastMod, &src.Enabled, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.ETag = etag.String
		src.LastModified = lastMod.String
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// GetSourcesByCategory returns enabled sources in a category. An empty
// category returns all enabled sources.
func (s *Store) GetSourcesByCategory(category string) ([]Source, error) {
	if category == "" {
		return s.GetAllSources()
	}
	rows, err := s.db.Query(
		"SELECT id, url, title, category, last_fetched, last_error, etag, last_modified, enabled, created_at FROM sources WHERE enabled = 1 AND category = ?",
		category,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources by category: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var src Source
		var etag, lastMod sql.NullString
		if err := rows.Scan(&src.ID, &src.URL, &src.Title, &src.Category, &src.LastFetched, &src.LastError, &etag, &lastMod, &src.Enabled, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.ETag = etag.String
		src.LastModified = lastMod.String
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source. CASCADE handles its articles.
func (s *Store) DeleteSource(sourceID int64) error {
	_, err := s.db.Exec("DELETE FROM sources WHERE id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return nil
}

// RenameSource updates the display title of a source.
func (s *Store) RenameSource(sourceID int64, title string) error {
	_, err := s.db.Exec("UPDATE sources SET title = ? WHERE id = ?", title, sourceID)
	if err != nil {
		return fmt.Errorf("failed to rename source: %w", err)
	}
	return nil
}

// UpdateSourceError records a fetch error for a source.
func (s *Store) UpdateSourceError(sourceID int64, errMsg string) error {
	_, err := s.db.Exec("UPDATE sources SET last_error = ? WHERE id = ?", errMsg, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update source error: %w", err)
	}
	return nil
}

// ClearSourceError clears the last error and updates last_fetched for a source.
func (s *Store) ClearSourceError(sourceID int64) error {
	_, err := s.db.Exec("UPDATE sources SET last_error = NULL, last_fetched = CURRENT_TIMESTAMP WHERE id = ?", sourceID)
	if err != nil {
		return fmt.Errorf("failed to clear source error: %w", err)
	}
	return nil
}

// UpdateSourceCacheHeaders stores the HTTP cache headers from the last successful fetch.
func (s *Store) UpdateSourceCacheHeaders(sourceID int64, etag, lastModified string) error {
	_, err := s.db.Exec("UPDATE sources SET etag = ?, last_modified = ? WHERE id = ?", etag, lastModified, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update source cache headers: %w", err)
	}
	return nil
}

// Articles

// AddArticle adds a new article to the database. Returns 0 when the
// (source_id, guid) pair already exists; last_insert_rowid() is sticky
// across no-op conflict inserts, so RowsAffected decides.
func (s *Store) AddArticle(article *Article) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO articles (source_id, guid, title, url, content, summary, author, tickers, entities, sentiment, impact, published_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(source_id, guid) DO NOTHING`,
		article.SourceID, article.GUID, article.Title, article.URL,
		article.Content, article.Summary, article.Author,
		article.Tickers, article.Entities, article.Sentiment, article.Impact, article.PublishedDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add article: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to add article: %w", err)
	}
	if affected == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

const articleColumns = `a.id, a.source_id, a.guid, a.title, a.url, a.content, a.summary,
       a.author, a.tickers, a.entities, a.sentiment, a.impact, a.published_date, a.fetched_date`

func scanArticle(rows *sql.Rows) (Article, error) {
	var a Article
	var tickers, entities, impact sql.NullString
	err := rows.Scan(&a.ID, &a.SourceID, &a.GUID, &a.Title, &a.URL,
		&a.Content, &a.Summary, &a.Author, &tickers, &entities, &a.Sentiment, &impact,
		&a.PublishedDate, &a.FetchedDate)
	if err != nil {
		return a, err
	}
	a.Tickers = tickers.String
	a.Entities = entities.String
	a.Impact = impact.String
	return a, nil
}

// GetArticle returns a single article by ID.
func (s *Store) GetArticle(articleID int64) (*Article, error) {
	var a Article
	var tickers, entities, impact sql.NullString
	err := s.db.QueryRow(
		`SELECT `+articleColumns+` FROM articles a WHERE a.id = ?`, articleID,
	).Scan(&a.ID, &a.SourceID, &a.GUID, &a.Title, &a.URL,
		&a.Content, &a.Summary, &a.Author, &tickers, &entities, &a.Sentiment, &impact,
		&a.PublishedDate, &a.FetchedDate)
	if err != nil {
		return nil, fmt.Errorf("get article %d: %w", articleID, err)
	}
	a.Tickers = tickers.String
	a.Entities = entities.String
	a.Impact = impact.String
	return &a, nil
}

// GetRecentArticles returns the most recently published articles, up to limit
// starting at offset.
func (s *Store) GetRecentArticles(limit, offset int) ([]Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		ORDER BY COALESCE(a.published_date, a.fetched_date) DESC
		LIMIT ? OFFSET ?
	`
	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// GetArticlesForGeneration returns recent articles from enabled sources in a
// category (empty = any), ordered by a time-decayed signal score:
//
//	effective = |sentiment| * (1.0 / (1.0 + days_old * 0.25))
//
// HIGH-impact articles sort before the rest regardless of decayed score, so
// a day-old rate decision still beats a fresh earnings blurb. Only articles
// from the last `window` days are considered.
func (s *Store) GetArticlesForGeneration(category string, window time.Duration, limit int) ([]Article, error) {
	days := window.Hours() / 24
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		JOIN sources s ON s.id = a.source_id
		WHERE s.enabled = 1
		  AND (? = '' OR s.category = ?)
		  AND julianday('now') - julianday(COALESCE(a.published_date, a.fetched_date)) <= ?
		ORDER BY
		  CASE WHEN a.impact = 'HIGH' THEN 0 ELSE 1 END,
		  COALESCE(ABS(a.sentiment), 0) * (1.0 / (1.0 + MAX(0, julianday('now') - julianday(COALESCE(a.published_date, a.fetched_date))) * 0.25)) DESC,
		  COALESCE(a.published_date, a.fetched_date) DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, category, category, days, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get articles for generation: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// SearchArticlesByTicker returns articles whose ticker list contains symbol.
// Tickers are stored as a JSON array; the quoted-substring match avoids
// false positives between symbols like "A" and "AAPL".
func (s *Store) SearchArticlesByTicker(symbol string, limit int) ([]Article, error) {
	query := `
		SELECT ` + articleColumns + `
		FROM articles a
		WHERE a.tickers LIKE ?
		ORDER BY COALESCE(a.published_date, a.fetched_date) DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, `%"`+symbol+`"%`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search articles by ticker: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// PruneArticles deletes articles older than the cutoff that are not
// referenced by any generated article. Returns the number deleted.
func (s *Store) PruneArticles(olderThan time.Time) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM articles
		WHERE COALESCE(published_date, fetched_date) < ?
		  AND id NOT IN (SELECT source_article_id FROM generated_articles WHERE source_article_id IS NOT NULL)`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune articles: %w", err)
	}
	return result.RowsAffected()
}

// SourceStats holds per-source article counts.
type SourceStats struct {
	SourceID      int64
	SourceTitle   string
	TotalArticles int
	HighImpact    int
	LastError     string
}

// GetSourceStats returns article counts per source.
func (s *Store) GetSourceStats() ([]SourceStats, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.title,
			COUNT(a.id),
			COALESCE(SUM(CASE WHEN a.impact = 'HIGH' THEN 1 ELSE 0 END), 0),
			COALESCE(s.last_error, '')
		FROM sources s
		LEFT JOIN articles a ON a.source_id = s.id
		WHERE s.enabled = 1
		GROUP BY s.id, s.title
		ORDER BY s.title`,
	)
	if err != nil {
		return nil, fmt.Errorf("get source stats: %w", err)
	}
	defer rows.Close()

	var stats []SourceStats
	for rows.Next() {
		var st SourceStats
		if err := rows.Scan(&st.SourceID, &st.SourceTitle, &st.TotalArticles, &st.HighImpact, &st.LastError); err != nil {
			return nil, fmt.Errorf("scan source stats: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
