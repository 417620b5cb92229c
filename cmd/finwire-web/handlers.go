package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	finwire "github.com/finwire/finwire"
)

type handlers struct {
	engine    *finwire.Engine
	jwtSecret []byte
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

// parseID parses the {id} path parameter.
func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePaging reads limit/offset query parameters with sane bounds.
func parsePaging(r *http.Request) (limit, offset int) {
	limit = defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// GET /api/v1/articles?limit=&offset=&ticker=
func (h *handlers) handleArticleList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	var articles []finwire.Article
	var err error
	if ticker := r.URL.Query().Get("ticker"); ticker != "" {
		articles, err = h.engine.SearchArticlesByTicker(ticker, limit)
	} else {
		articles, err = h.engine.GetRecentArticles(limit, offset)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load articles")
		return
	}
	if articles == nil {
		articles = []finwire.Article{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

// GET /api/v1/articles/{id}
func (h *handlers) handleArticleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}
	article, err := h.engine.GetArticle(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// GET /api/v1/generated
func (h *handlers) handleGeneratedList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)
	articles, err := h.engine.ListGeneratedArticles(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load generated articles")
		return
	}
	if articles == nil {
		articles = []finwire.GeneratedArticle{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"articles": articles,
		"count":    len(articles),
	})
}

// GET /api/v1/generated/{id}
func (h *handlers) handleGeneratedGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}
	article, err := h.engine.GetGeneratedArticle(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "generated article not found")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// GET /api/v1/runs
func (h *handlers) handleRunList(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)
	runs, err := h.engine.ListRuns(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}
	if runs == nil {
		runs = []finwire.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GET /api/v1/runs/{id}
func (h *handlers) handleRunGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := h.engine.GetRun(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GET /api/v1/analytics
//
// The report itself is cached inside the engine; the ETag lets pollers skip
// the body entirely when nothing changed.
func (h *handlers) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Analytics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}
	writeJSONETag(w, r, report)
}

// GET /api/v1/sources?category=
func (h *handlers) handleSourceList(w http.ResponseWriter, r *http.Request) {
	sources, err := h.engine.ListSources(r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sources")
		return
	}
	if sources == nil {
		sources = []finwire.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

// POST /api/v1/sources
func (h *handlers) handleSourceAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Title    string `json:"title"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	sourceID, err := h.engine.AddSource(r.Context(), req.URL, req.Title, req.Category)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "source validation failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": sourceID})
}

// DELETE /api/v1/sources/{id}
func (h *handlers) handleSourceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if err := h.engine.RemoveSource(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/monitor/generate-report
//
// Kicks off the agent pipeline outside its cron schedule. With a config_id
// only that config runs; otherwise every enabled config runs. Responds once
// the runs have finished, with their IDs for follow-up via /api/v1/runs.
func (h *handlers) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID int64 `json:"config_id"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // empty body means all configs
	}

	if req.ConfigID != 0 {
		runID, err := h.engine.GenerateNow(r.Context(), req.ConfigID)
		if err != nil && runID == 0 {
			// No run row exists to inspect, so the status code has to say
			// what went wrong.
			if errors.Is(err, sql.ErrNoRows) {
				writeError(w, http.StatusNotFound, "unknown agent config")
			} else {
				writeError(w, http.StatusInternalServerError, "failed to start generation")
			}
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"run_ids": []int64{runID}})
		return
	}

	runIDs, err := h.engine.GenerateAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start generation")
		return
	}
	if runIDs == nil {
		runIDs = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"run_ids": runIDs})
}

// GET /api/v1/keys
func (h *handlers) handleKeyList(w http.ResponseWriter, r *http.Request) {
	keys, err := h.engine.Keys().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load keys")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys":  keys,
		"count": len(keys),
	})
}

// POST /api/v1/keys
func (h *handlers) handleKeyCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string   `json:"name"`
		Scopes     []string `json:"scopes"`
		AllowedIPs []string `json:"allowed_ips"`
		TTLHours   int      `json:"ttl_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	token, key, err := h.engine.Keys().Create(req.Name, req.Scopes, req.AllowedIPs,
		time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create key")
		return
	}

	// The token appears in this response and nowhere else.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token": token,
		"key":   key,
	})
}

// DELETE /api/v1/keys/{id}
func (h *handlers) handleKeyRevoke(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid key id")
		return
	}
	if err := h.engine.Keys().Revoke(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to revoke key")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
