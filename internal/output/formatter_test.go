package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/finwire/finwire"
)

func TestOutputFetchResult_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	result := &finwire.FetchResult{
		SourcesTotal:       5,
		SourcesDownloaded:  3,
		SourcesNotModified: 1,
		SourcesErrored:     1,
		NewArticles:        12,
	}

	if err := f.OutputFetchResult(result); err != nil {
		t.Fatalf("OutputFetchResult failed: %v", err)
	}

	var decoded finwire.FetchResult
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if decoded.SourcesTotal != 5 {
		t.Errorf("SourcesTotal = %d, want 5", decoded.SourcesTotal)
	}
	if decoded.NewArticles != 12 {
		t.Errorf("NewArticles = %d, want 12", decoded.NewArticles)
	}
}

func TestOutputFetchResult_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	result := &finwire.FetchResult{SourcesTotal: 4, SourcesDownloaded: 4, NewArticles: 10}
	if err := f.OutputFetchResult(result); err != nil {
		t.Fatalf("OutputFetchResult failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "sources_total=4") {
		t.Errorf("missing sources_total=4 in output: %s", got)
	}
	if !strings.Contains(got, "new_articles=10") {
		t.Errorf("missing new_articles=10 in output: %s", got)
	}
}

func TestOutputArticleList_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	now := time.Now()
	articles := []finwire.Article{
		{ID: 1, Title: "First", URL: "https://example.com/1", Tickers: []string{"SPY"}, PublishedDate: &now},
		{ID: 2, Title: "Second", URL: "https://example.com/2"},
	}

	if err := f.OutputArticleList(articles); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}

	var decoded []finwire.Article
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}

	if len(decoded) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(decoded))
	}
	if decoded[0].Title != "First" {
		t.Errorf("first article title = %q, want %q", decoded[0].Title, "First")
	}
}

func TestOutputArticleList_Text_Tickers(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	articles := []finwire.Article{
		{ID: 1, Title: "Chips rally", Impact: "HIGH", Tickers: []string{"NVDA", "AMD"}},
	}
	if err := f.OutputArticleList(articles); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "tickers=NVDA,AMD") {
		t.Errorf("missing ticker list in output: %s", got)
	}
	if !strings.Contains(got, "impact=HIGH") {
		t.Errorf("missing impact in output: %s", got)
	}
}

func TestOutputArticleList_Human_Empty(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	if err := f.OutputArticleList(nil); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}

	if !strings.Contains(out.String(), "No articles") {
		t.Errorf("expected 'No articles', got: %s", out.String())
	}
}

func TestOutputRunDetail_ShowsStages(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	errMsg := "marketer: model unavailable"
	run := &finwire.Run{
		ID:             7,
		Status:         "FAILED",
		StartedAt:      time.Now(),
		Error:          &errMsg,
		ReporterOutput: `{"headline":"Markets rally"}`,
	}
	if err := f.OutputRunDetail(run); err != nil {
		t.Fatalf("OutputRunDetail failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "Run 7: FAILED") {
		t.Errorf("missing run header: %s", got)
	}
	if !strings.Contains(got, "== reporter ==") {
		t.Errorf("missing reporter section: %s", got)
	}
	if strings.Contains(got, "== editor ==") {
		t.Errorf("empty stages should be skipped: %s", got)
	}
	if !strings.Contains(got, errMsg) {
		t.Errorf("missing error message: %s", got)
	}
}

func TestOutputAnalytics_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	report := &finwire.AnalyticsReport{
		GeneratedAt: time.Now(),
		RunCounts:   map[string]int{"COMPLETED": 3, "FAILED": 1},
		Sources: []finwire.SourceStats{
			{SourceID: 1, SourceTitle: "Example Wire", TotalArticles: 40, HighImpact: 5},
		},
	}
	if err := f.OutputAnalytics(report); err != nil {
		t.Fatalf("OutputAnalytics failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "COMPLETED: 3") {
		t.Errorf("missing run counts: %s", got)
	}
	if !strings.Contains(got, "Example Wire: 40 articles (5 high impact)") {
		t.Errorf("missing source line: %s", got)
	}
}

func TestWarning(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.Warning("something went %s", "wrong")

	got := errBuf.String()
	if !strings.Contains(got, "Warning: something went wrong") {
		t.Errorf("expected warning on stderr, got: %q", got)
	}
	if out.Len() != 0 {
		t.Errorf("expected no stdout output, got: %q", out.String())
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"over length", "hello world", 5, "hello..."},
		{"with whitespace", "  hello  ", 10, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
