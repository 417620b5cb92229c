// Package output renders CLI results in json, text, or human formats.
// json is the default and is what ops tooling consumes; text is a stable
// tab-separated form for shell pipelines; human is for terminals.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/finwire/finwire"
	"github.com/finwire/finwire/internal/apikey"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return &Formatter{
		format: format,
		out:    os.Stdout,
		err:    os.Stderr,
	}
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return &Formatter{
		format: format,
		out:    out,
		err:    errW,
	}
}

// OutputFetchResult outputs a polling cycle summary in the configured format
func (f *Formatter) OutputFetchResult(result *finwire.FetchResult) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(result)
	case FormatText:
		fmt.Fprintf(f.out, "sources_total=%d\n", result.SourcesTotal)
		fmt.Fprintf(f.out, "sources_downloaded=%d\n", result.SourcesDownloaded)
		fmt.Fprintf(f.out, "sources_not_modified=%d\n", result.SourcesNotModified)
		fmt.Fprintf(f.out, "sources_errored=%d\n", result.SourcesErrored)
		fmt.Fprintf(f.out, "new_articles=%d\n", result.NewArticles)
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Polled %d sources (%d downloaded, %d unchanged, %d errored)\n",
			result.SourcesTotal, result.SourcesDownloaded, result.SourcesNotModified, result.SourcesErrored)
		fmt.Fprintf(f.out, "Stored %d new articles\n", result.NewArticles)
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputArticleList outputs a list of source articles
func (f *Formatter) OutputArticleList(articles []finwire.Article) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(articles)
	case FormatText:
		for _, a := range articles {
			fmt.Fprintf(f.out, "id=%d\timpact=%s\ttickers=%s\ttitle=%s\turl=%s\tpublished=%s\n",
				a.ID, a.Impact, strings.Join(a.Tickers, ","), a.Title, a.URL, formatTime(a.PublishedDate))
		}
		return nil
	case FormatHuman:
		if len(articles) == 0 {
			fmt.Fprintln(f.out, "No articles")
			return nil
		}
		fmt.Fprintf(f.out, "Articles (%d):\n\n", len(articles))
		for _, a := range articles {
			fmt.Fprintf(f.out, "ID: %d\n", a.ID)
			fmt.Fprintf(f.out, "Title: %s\n", a.Title)
			fmt.Fprintf(f.out, "URL: %s\n", a.URL)
			if len(a.Tickers) > 0 {
				fmt.Fprintf(f.out, "Tickers: %s\n", strings.Join(a.Tickers, ", "))
			}
			if a.Impact != "" {
				fmt.Fprintf(f.out, "Impact: %s\n", a.Impact)
			}
			if a.PublishedDate != nil {
				fmt.Fprintf(f.out, "Published: %s\n", a.PublishedDate.Format("2006-01-02 15:04"))
			}
			fmt.Fprintln(f.out, "---")
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSourceList outputs the registered sources
func (f *Formatter) OutputSourceList(sources []finwire.Source) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(sources)
	case FormatText:
		for _, s := range sources {
			lastError := ""
			if s.LastError != nil {
				lastError = *s.LastError
			}
			fmt.Fprintf(f.out, "id=%d\tcategory=%s\ttitle=%s\turl=%s\tlast_error=%s\n",
				s.ID, s.Category, s.Title, s.URL, lastError)
		}
		return nil
	case FormatHuman:
		if len(sources) == 0 {
			fmt.Fprintln(f.out, "No sources")
			return nil
		}
		for _, s := range sources {
			fmt.Fprintf(f.out, "[%d] %s (%s)\n    %s\n", s.ID, s.Title, s.Category, s.URL)
			if s.LastError != nil {
				fmt.Fprintf(f.out, "    last error: %s\n", *s.LastError)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputGeneratedList outputs generated articles
func (f *Formatter) OutputGeneratedList(articles []finwire.GeneratedArticle) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(articles)
	case FormatText:
		for _, ga := range articles {
			fmt.Fprintf(f.out, "id=%d\tstatus=%s\theadline=%s\tcreated=%s\n",
				ga.ID, ga.Status, ga.Headline, ga.CreatedAt.Format(time.RFC3339))
		}
		return nil
	case FormatHuman:
		if len(articles) == 0 {
			fmt.Fprintln(f.out, "No generated articles")
			return nil
		}
		for _, ga := range articles {
			fmt.Fprintf(f.out, "[%d] %s\n", ga.ID, ga.Headline)
			if ga.Summary != "" {
				fmt.Fprintf(f.out, "    %s\n", truncate(ga.Summary, 200))
			}
			fmt.Fprintf(f.out, "    %s, %s\n", ga.Status, ga.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputRunList outputs pipeline runs
func (f *Formatter) OutputRunList(runs []finwire.Run) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(runs)
	case FormatText:
		for _, r := range runs {
			errMsg := ""
			if r.Error != nil {
				errMsg = *r.Error
			}
			fmt.Fprintf(f.out, "id=%d\tconfig=%d\tstatus=%s\tstarted=%s\terror=%s\n",
				r.ID, r.ConfigID, r.Status, r.StartedAt.Format(time.RFC3339), errMsg)
		}
		return nil
	case FormatHuman:
		if len(runs) == 0 {
			fmt.Fprintln(f.out, "No runs")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(f.out, "[%d] %s (config %d, started %s)\n",
				r.ID, r.Status, r.ConfigID, r.StartedAt.Format("2006-01-02 15:04:05"))
			if r.Error != nil {
				fmt.Fprintf(f.out, "    error: %s\n", *r.Error)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputRunDetail outputs one run with its full stage outputs
func (f *Formatter) OutputRunDetail(run *finwire.Run) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(run)
	case FormatText, FormatHuman:
		fmt.Fprintf(f.out, "Run %d: %s\n", run.ID, run.Status)
		fmt.Fprintf(f.out, "Started: %s\n", run.StartedAt.Format(time.RFC3339))
		if run.FinishedAt != nil {
			fmt.Fprintf(f.out, "Finished: %s\n", run.FinishedAt.Format(time.RFC3339))
		}
		if run.Error != nil {
			fmt.Fprintf(f.out, "Error: %s\n", *run.Error)
		}
		if run.ArticleID != nil {
			fmt.Fprintf(f.out, "Article: %d\n", *run.ArticleID)
		}
		stages := []struct {
			name   string
			output string
		}{
			{"reporter", run.ReporterOutput},
			{"editor", run.EditorOutput},
			{"designer", run.DesignerOutput},
			{"marketer", run.MarketerOutput},
		}
		for _, st := range stages {
			if st.output == "" {
				continue
			}
			fmt.Fprintf(f.out, "\n== %s ==\n%s\n", st.name, st.output)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputKeyList outputs API keys (prefix and metadata only, never hashes)
func (f *Formatter) OutputKeyList(keys []apikey.Key) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(keys)
	case FormatText:
		for _, k := range keys {
			fmt.Fprintf(f.out, "id=%d\tprefix=%s\tname=%s\tscopes=%s\tenabled=%t\n",
				k.ID, k.Prefix, k.Name, strings.Join(k.Scopes, ","), k.Enabled)
		}
		return nil
	case FormatHuman:
		if len(keys) == 0 {
			fmt.Fprintln(f.out, "No API keys")
			return nil
		}
		for _, k := range keys {
			status := "enabled"
			if !k.Enabled {
				status = "revoked"
			}
			fmt.Fprintf(f.out, "[%d] %s (%s, %s)\n    scopes: %s\n",
				k.ID, k.Name, k.Prefix, status, strings.Join(k.Scopes, ", "))
			if k.ExpiresAt != nil {
				fmt.Fprintf(f.out, "    expires: %s\n", k.ExpiresAt.Format(time.RFC3339))
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputAnalytics outputs the aggregate activity report
func (f *Formatter) OutputAnalytics(report *finwire.AnalyticsReport) error {
	switch f.format {
	case FormatJSON:
		return json.NewEncoder(f.out).Encode(report)
	case FormatText:
		for status, n := range report.RunCounts {
			fmt.Fprintf(f.out, "runs_%s=%d\n", strings.ToLower(status), n)
		}
		for _, s := range report.Sources {
			fmt.Fprintf(f.out, "source\tid=%d\ttitle=%s\tarticles=%d\thigh_impact=%d\n",
				s.SourceID, s.SourceTitle, s.TotalArticles, s.HighImpact)
		}
		return nil
	case FormatHuman:
		fmt.Fprintf(f.out, "Report generated %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))
		if len(report.RunCounts) > 0 {
			fmt.Fprintln(f.out, "Runs:")
			for status, n := range report.RunCounts {
				fmt.Fprintf(f.out, "  %s: %d\n", status, n)
			}
			fmt.Fprintln(f.out, "")
		}
		fmt.Fprintf(f.out, "Sources (%d):\n", len(report.Sources))
		for _, s := range report.Sources {
			fmt.Fprintf(f.out, "  %s: %d articles (%d high impact)\n",
				s.SourceTitle, s.TotalArticles, s.HighImpact)
			if s.LastError != "" {
				fmt.Fprintf(f.out, "    last error: %s\n", s.LastError)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...interface{}) {
	fmt.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...interface{}) {
	fmt.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// formatTime formats a time pointer for output
func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
