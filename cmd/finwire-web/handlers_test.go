package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	finwire "github.com/finwire/finwire"
	"github.com/finwire/finwire/internal/apikey"
	"github.com/finwire/finwire/internal/ratelimit"
	"github.com/finwire/finwire/internal/storage"
)

const testJWTSecret = "test-secret"

// testFixtures wires a router over a seeded engine: one source, one
// article, and API keys with different scopes.
type testFixtures struct {
	router    http.Handler
	engine    *finwire.Engine
	store     *storage.Store
	sourceID  int64
	articleID int64
	readToken string // articles:read + generated:read
	adminJWT  string
}

func newTestFixtures(t *testing.T) *testFixtures {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	engine, err := finwire.NewEngine(finwire.EngineConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	// A second store handle on the same file, used to seed fixtures.
	st, err := storage.NewStore(dbPath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	sourceID, err := st.AddSource("https://example.com/feed.xml", "Example Wire", "markets")
	if err != nil {
		t.Fatalf("AddSource: %v", err)
	}

	pub := time.Now().UTC().Add(-time.Hour)
	sentiment := 0.6
	articleID, err := st.AddArticle(&storage.Article{
		SourceID:      sourceID,
		GUID:          "guid-1",
		Title:         "Fed holds rates",
		URL:           "https://example.com/article/1",
		Content:       "The central bank held rates steady.",
		Tickers:       `["SPY"]`,
		Entities:      `["Federal Reserve"]`,
		Sentiment:     &sentiment,
		Impact:        "HIGH",
		PublishedDate: &pub,
	})
	if err != nil {
		t.Fatalf("AddArticle: %v", err)
	}

	readToken, _, err := engine.Keys().Create("reader",
		[]string{apikey.ScopeArticlesRead, apikey.ScopeGeneratedRead}, nil, 0)
	if err != nil {
		t.Fatalf("create read key: %v", err)
	}

	adminJWT, err := apikey.IssueAdminToken([]byte(testJWTSecret), "tester", time.Hour)
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}

	limiter := ratelimit.New(1000, 1000, time.Minute)
	router := newRouter(engine, limiter, []byte(testJWTSecret))

	t.Cleanup(func() {
		engine.Close()
		st.Close()
	})

	return &testFixtures{
		router:    router,
		engine:    engine,
		store:     st,
		sourceID:  sourceID,
		articleID: articleID,
		readToken: readToken,
		adminJWT:  adminJWT,
	}
}

// request is a convenience helper for making test HTTP requests.
func request(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:54321"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

// --- Tests ---

func TestArticlesRequireKey(t *testing.T) {
	fx := newTestFixtures(t)

	rr := request(t, fx.router, "GET", "/api/v1/articles", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"error"`) {
		t.Errorf("error body missing: %s", rr.Body.String())
	}

	rr = request(t, fx.router, "GET", "/api/v1/articles", "fw_bogus_token", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bogus token status = %d, want 401", rr.Code)
	}
}

func TestArticleListAndGet(t *testing.T) {
	fx := newTestFixtures(t)

	rr := request(t, fx.router, "GET", "/api/v1/articles", fx.readToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}

	var list struct {
		Articles []finwire.Article `json:"articles"`
		Count    int               `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || len(list.Articles) != 1 {
		t.Fatalf("expected 1 article, got %d", list.Count)
	}
	if list.Articles[0].Title != "Fed holds rates" {
		t.Errorf("title = %q", list.Articles[0].Title)
	}

	rr = request(t, fx.router, "GET", fmt.Sprintf("/api/v1/articles/%d", fx.articleID), fx.readToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var article finwire.Article
	if err := json.Unmarshal(rr.Body.Bytes(), &article); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(article.Tickers) != 1 || article.Tickers[0] != "SPY" {
		t.Errorf("tickers = %v", article.Tickers)
	}
	if len(article.Entities) != 1 || article.Entities[0] != "Federal Reserve" {
		t.Errorf("entities = %v", article.Entities)
	}

	rr = request(t, fx.router, "GET", "/api/v1/articles/999", fx.readToken, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing article status = %d, want 404", rr.Code)
	}
}

func TestArticleTickerFilter(t *testing.T) {
	fx := newTestFixtures(t)

	rr := request(t, fx.router, "GET", "/api/v1/articles?ticker=SPY", fx.readToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Fed holds rates") {
		t.Errorf("SPY filter should match the seeded article")
	}

	rr = request(t, fx.router, "GET", "/api/v1/articles?ticker=TSLA", fx.readToken, "")
	var list struct {
		Count int `json:"count"`
	}
	json.Unmarshal(rr.Body.Bytes(), &list)
	if list.Count != 0 {
		t.Errorf("TSLA filter should match nothing, got %d", list.Count)
	}
}

func TestScopeEnforcement(t *testing.T) {
	fx := newTestFixtures(t)

	// The read key lacks sources:write.
	rr := request(t, fx.router, "DELETE", fmt.Sprintf("/api/v1/sources/%d", fx.sourceID), fx.readToken, "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}

	// An admin-scoped key satisfies any scope requirement.
	adminToken, _, err := fx.engine.Keys().Create("admin", []string{apikey.ScopeAdmin}, nil, 0)
	if err != nil {
		t.Fatalf("create admin key: %v", err)
	}
	rr = request(t, fx.router, "DELETE", fmt.Sprintf("/api/v1/sources/%d", fx.sourceID), adminToken, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("admin delete status = %d, want 204", rr.Code)
	}
}

func TestSourceListAndAdd(t *testing.T) {
	fx := newTestFixtures(t)

	rr := request(t, fx.router, "GET", "/api/v1/sources", fx.readToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Example Wire") {
		t.Errorf("seeded source missing: %s", rr.Body.String())
	}

	// Adding a source validates the feed URL by fetching it.
	feedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel>
			<title>Live Wire</title>
			<item><title>Oil slides</title><guid>o1</guid><link>https://example.com/o1</link></item>
		</channel></rss>`)
	}))
	defer feedSrv.Close()

	writeToken, _, err := fx.engine.Keys().Create("writer", []string{apikey.ScopeSourcesWrite}, nil, 0)
	if err != nil {
		t.Fatalf("create write key: %v", err)
	}

	body := fmt.Sprintf(`{"url":%q,"category":"energy"}`, feedSrv.URL)
	rr = request(t, fx.router, "POST", "/api/v1/sources", writeToken, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rr.Code, rr.Body.String())
	}

	// A dead URL is rejected.
	rr = request(t, fx.router, "POST", "/api/v1/sources", writeToken, `{"url":"http://127.0.0.1:1/nope"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("dead URL status = %d, want 422", rr.Code)
	}
}

func TestGenerateReportUnknownConfig(t *testing.T) {
	fx := newTestFixtures(t)

	token, _, err := fx.engine.Keys().Create("monitor", []string{apikey.ScopeReportsWrite}, nil, 0)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}

	rr := request(t, fx.router, "POST", "/api/monitor/generate-report", token, `{"config_id":999}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	// Without any enabled configs, generate-all succeeds with zero runs.
	rr = request(t, fx.router, "POST", "/api/monitor/generate-report", token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		RunIDs []int64 `json:"run_ids"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.RunIDs) != 0 {
		t.Errorf("expected no runs, got %v", resp.RunIDs)
	}
}

func TestGenerateReportStorageError(t *testing.T) {
	fx := newTestFixtures(t)

	// With the engine's database closed, config lookup fails with
	// something other than a missing row. That is a 500, not a 404.
	fx.engine.Close()

	h := &handlers{engine: fx.engine}
	req := httptest.NewRequest("POST", "/api/monitor/generate-report", strings.NewReader(`{"config_id":1}`))
	rr := httptest.NewRecorder()
	h.handleGenerateReport(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rr.Code, rr.Body.String())
	}
}

func TestAnalyticsETag(t *testing.T) {
	fx := newTestFixtures(t)

	rr := request(t, fx.router, "GET", "/api/v1/analytics", fx.readToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	etag := rr.Header().Get("ETag")
	if etag == "" {
		t.Fatal("response missing ETag")
	}

	req := httptest.NewRequest("GET", "/api/v1/analytics", nil)
	req.RemoteAddr = "192.0.2.1:54321"
	req.Header.Set("Authorization", "Bearer "+fx.readToken)
	req.Header.Set("If-None-Match", etag)
	rr2 := httptest.NewRecorder()
	fx.router.ServeHTTP(rr2, req)
	if rr2.Code != http.StatusNotModified {
		t.Fatalf("conditional status = %d, want 304", rr2.Code)
	}
	if rr2.Body.Len() != 0 {
		t.Errorf("304 should have no body, got %q", rr2.Body.String())
	}
}

func TestKeyManagementRequiresAdminSession(t *testing.T) {
	fx := newTestFixtures(t)

	// An API key, even admin-scoped, is not an admin session.
	adminKey, _, _ := fx.engine.Keys().Create("admin", []string{apikey.ScopeAdmin}, nil, 0)
	rr := request(t, fx.router, "GET", "/api/v1/keys", adminKey, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("api key on keys endpoint: status = %d, want 401", rr.Code)
	}

	rr = request(t, fx.router, "GET", "/api/v1/keys", fx.adminJWT, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("admin session status = %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"prefix"`) {
		t.Errorf("key listing missing prefixes: %s", rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "fw_") && strings.Count(rr.Body.String(), "_") > 20 {
		t.Log("listing should never contain full tokens")
	}
}

func TestKeyCreateAndRevoke(t *testing.T) {
	fx := newTestFixtures(t)

	body := `{"name":"ci","scopes":["articles:read"],"ttl_hours":24}`
	rr := request(t, fx.router, "POST", "/api/v1/keys", fx.adminJWT, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rr.Code, rr.Body.String())
	}

	var created struct {
		Token string     `json:"token"`
		Key   apikey.Key `json:"key"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(created.Token, "fw_") {
		t.Errorf("token = %q", created.Token)
	}
	if created.Key.ExpiresAt == nil {
		t.Error("ttl_hours should set an expiry")
	}

	// The new token works until revoked.
	rr = request(t, fx.router, "GET", "/api/v1/articles", created.Token, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("new token status = %d", rr.Code)
	}

	rr = request(t, fx.router, "DELETE", fmt.Sprintf("/api/v1/keys/%d", created.Key.ID), fx.adminJWT, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("revoke status = %d", rr.Code)
	}

	rr = request(t, fx.router, "GET", "/api/v1/articles", created.Token, "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("revoked token status = %d, want 401", rr.Code)
	}
}

func TestRateLimit(t *testing.T) {
	fx := newTestFixtures(t)

	limiter := ratelimit.New(1, 2, time.Minute)
	router := newRouter(fx.engine, limiter, []byte(testJWTSecret))

	var last int
	for i := 0; i < 3; i++ {
		rr := request(t, router, "GET", "/api/v1/articles", fx.readToken, "")
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", last)
	}
}

func TestRequestIDHeader(t *testing.T) {
	fx := newTestFixtures(t)

	rr := request(t, fx.router, "GET", "/api/v1/articles", fx.readToken, "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID")
	}

	req := httptest.NewRequest("GET", "/api/v1/articles", nil)
	req.RemoteAddr = "192.0.2.1:54321"
	req.Header.Set("Authorization", "Bearer "+fx.readToken)
	req.Header.Set("X-Request-ID", "fixed-id")
	rr2 := httptest.NewRecorder()
	fx.router.ServeHTTP(rr2, req)
	if got := rr2.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("caller-supplied request ID should be echoed, got %q", got)
	}
}

func TestTokenPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"fw_abcd1234_secretpart", "fw_abcd1234"},
		{"fw_abcd1234", ""},
		{"sk_other_style", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := tokenPrefix(tt.in); got != tt.want {
			t.Errorf("tokenPrefix(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
