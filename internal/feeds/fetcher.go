package feeds

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/finwire/finwire/internal/analysis"
	"github.com/finwire/finwire/internal/storage"
)

type Fetcher struct {
	parser *gofeed.Parser
	client *http.Client
	policy *bluemonday.Policy
	store  *storage.Store
}

// OPML structures for source-list import
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Body    OPMLBody `xml:"body"`
}

type OPMLBody struct {
	Outlines []OPMLOutline `xml:"outline"`
}

type OPMLOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	Type     string        `xml:"type,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []OPMLOutline `xml:"outline"`
}

// NewFetcher creates a new source fetcher
func NewFetcher(store *storage.Store) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = "finwire/1.0"
	return &Fetcher{
		parser: parser,
		client: &http.Client{},
		policy: bluemonday.UGCPolicy(),
		store:  store,
	}
}

// FetchResult holds the outcome of a conditional source fetch.
type FetchResult struct {
	Feed         *gofeed.Feed // nil when NotModified is true
	ETag         string       // ETag from response (empty if absent)
	LastModified string       // Last-Modified from response (empty if absent)
	NotModified  bool         // true when server returned 304
}

// FetchStats summarizes a full polling cycle over all sources.
type FetchStats struct {
	SourcesTotal       int
	SourcesDownloaded  int
	SourcesNotModified int
	SourcesErrored     int
	NewArticles        int
}

// FetchSource fetches and parses a single source using conditional HTTP
// requests. If the source has stored ETag or Last-Modified values, they are
// sent as If-None-Match / If-Modified-Since headers. A 304 response skips
// parsing entirely and returns NotModified=true.
func (f *Fetcher) FetchSource(ctx context.Context, source storage.Source) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", source.URL, err)
	}
	req.Header.Set("User-Agent", "finwire/1.0")
	if source.ETag != "" {
		req.Header.Set("If-None-Match", source.ETag)
	}
	if source.LastModified != "" {
		req.Header.Set("If-Modified-Since", source.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch source %s: %w", source.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{NotModified: true}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source %s returned status %d", source.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", source.URL, err)
	}

	parsed, err := f.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse source %s: %w", source.URL, err)
	}

	return &FetchResult{
		Feed:         parsed,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// StoreArticles sanitizes, enriches, and stores articles from a parsed
// feed. Item HTML passes through bluemonday before storage; tickers,
// entities, sentiment, and impact are computed from the title plus content.
func (f *Fetcher) StoreArticles(sourceID int64, feed *gofeed.Feed) (int, error) {
	stored := 0
	for _, item := range feed.Items {
		var author string
		if item.Author != nil {
			author = item.Author.Name
		}

		content := item.Content
		if content == "" {
			content = item.Description
		}
		content = f.policy.Sanitize(content)
		summary := f.policy.Sanitize(item.Description)

		signalText := item.Title + "\n" + content
		sentiment := analysis.Sentiment(signalText)

		var tickersJSON string
		if tickers := analysis.Tickers(signalText); len(tickers) > 0 {
			if raw, err := json.Marshal(tickers); err == nil {
				tickersJSON = string(raw)
			}
		}
		var entitiesJSON string
		if entities := analysis.Entities(signalText); len(entities) > 0 {
			if raw, err := json.Marshal(entities); err == nil {
				entitiesJSON = string(raw)
			}
		}

		article := &storage.Article{
			SourceID:  sourceID,
			GUID:      item.GUID,
			Title:     item.Title,
			URL:       item.Link,
			Content:   content,
			Summary:   summary,
			Author:    author,
			Tickers:   tickersJSON,
			Entities:  entitiesJSON,
			Sentiment: &sentiment,
			Impact:    analysis.Impact(signalText),
		}

		// Parse published date
		if item.PublishedParsed != nil {
			article.PublishedDate = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			article.PublishedDate = item.UpdatedParsed
		}

		// Store article (ignore duplicates)
		articleID, err := f.store.AddArticle(article)
		if err == nil && articleID > 0 {
			stored++
		}
	}

	return stored, nil
}

// FetchAll fetches all enabled sources and stores their articles
func (f *Fetcher) FetchAll(ctx context.Context) (*FetchStats, error) {
	sources, err := f.store.GetAllSources()
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	stats := &FetchStats{SourcesTotal: len(sources)}
	for _, source := range sources {
		// Add timeout per source
		srcCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		result, err := f.FetchSource(srcCtx, source)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to fetch source %s: %v\n", source.URL, err)
			f.store.UpdateSourceError(source.ID, err.Error())
			stats.SourcesErrored++
			continue
		}

		if result.NotModified {
			stats.SourcesNotModified++
			// Clear any previous error and update last_fetched
			if err := f.store.ClearSourceError(source.ID); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to update last_fetched for %s: %v\n", source.URL, err)
			}
			continue
		}

		stats.SourcesDownloaded++

		// Store articles
		stored, err := f.StoreArticles(source.ID, result.Feed)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error storing articles from %s: %v\n", source.URL, err)
		}
		stats.NewArticles += stored

		// Persist cache headers for next conditional request
		if result.ETag != "" || result.LastModified != "" {
			f.store.UpdateSourceCacheHeaders(source.ID, result.ETag, result.LastModified)
		}

		// Clear any previous error and update last_fetched
		if err := f.store.ClearSourceError(source.ID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to update last_fetched for %s: %v\n", source.URL, err)
		}
	}

	return stats, nil
}

// ImportOPML imports sources from an OPML file. Nested outlines (folders)
// are walked recursively; the folder name becomes the source category.
func (f *Fetcher) ImportOPML(opmlPath string) (int, error) {
	data, err := os.ReadFile(opmlPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read OPML file: %w", err)
	}

	var opml OPML
	if err := xml.Unmarshal(data, &opml); err != nil {
		return 0, fmt.Errorf("failed to parse OPML: %w", err)
	}

	added := 0
	var processOutlines func(outlines []OPMLOutline, category string)
	processOutlines = func(outlines []OPMLOutline, category string) {
		for _, outline := range outlines {
			// If this outline has a feed URL, add it
			if outline.XMLURL != "" {
				title := outline.Title
				if title == "" {
					title = outline.Text
				}
				if title == "" {
					title = outline.XMLURL
				}

				cat := category
				if cat == "" {
					cat = "markets"
				}

				if _, err := f.store.AddSource(outline.XMLURL, title, cat); err != nil {
					// Source may already exist; skip quietly
					continue
				}
				added++
			}

			// Process nested outlines (folders)
			if len(outline.Outlines) > 0 {
				folder := outline.Text
				if folder == "" {
					folder = outline.Title
				}
				processOutlines(outline.Outlines, folder)
			}
		}
	}

	processOutlines(opml.Body.Outlines, "")
	return added, nil
}
