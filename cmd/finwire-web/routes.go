package main

import (
	"net/http"

	finwire "github.com/finwire/finwire"
	"github.com/finwire/finwire/internal/apikey"
	"github.com/finwire/finwire/internal/ratelimit"
)

// newRouter sets up all routes using Go 1.22+ enhanced routing.
func newRouter(engine *finwire.Engine, limiter *ratelimit.Limiter, jwtSecret []byte) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{engine: engine, jwtSecret: jwtSecret}

	// Read endpoints, API key with the matching read scope.
	mux.Handle("GET /api/v1/articles", h.withScope(apikey.ScopeArticlesRead, h.handleArticleList))
	mux.Handle("GET /api/v1/articles/{id}", h.withScope(apikey.ScopeArticlesRead, h.handleArticleGet))
	mux.Handle("GET /api/v1/generated", h.withScope(apikey.ScopeGeneratedRead, h.handleGeneratedList))
	mux.Handle("GET /api/v1/generated/{id}", h.withScope(apikey.ScopeGeneratedRead, h.handleGeneratedGet))
	mux.Handle("GET /api/v1/runs", h.withScope(apikey.ScopeGeneratedRead, h.handleRunList))
	mux.Handle("GET /api/v1/runs/{id}", h.withScope(apikey.ScopeGeneratedRead, h.handleRunGet))
	mux.Handle("GET /api/v1/analytics", h.withScope(apikey.ScopeArticlesRead, h.handleAnalytics))

	// Source management, write scope.
	mux.Handle("GET /api/v1/sources", h.withScope(apikey.ScopeArticlesRead, h.handleSourceList))
	mux.Handle("POST /api/v1/sources", h.withScope(apikey.ScopeSourcesWrite, h.handleSourceAdd))
	mux.Handle("DELETE /api/v1/sources/{id}", h.withScope(apikey.ScopeSourcesWrite, h.handleSourceDelete))

	// Pipeline trigger for external monitors.
	mux.Handle("POST /api/monitor/generate-report", h.withScope(apikey.ScopeReportsWrite, h.handleGenerateReport))

	// Key management, admin JWT session rather than an API key.
	mux.Handle("GET /api/v1/keys", h.withAdminSession(h.handleKeyList))
	mux.Handle("POST /api/v1/keys", h.withAdminSession(h.handleKeyCreate))
	mux.Handle("DELETE /api/v1/keys/{id}", h.withAdminSession(h.handleKeyRevoke))

	return requestID(logging(recovery(rateLimit(limiter, mux))))
}
