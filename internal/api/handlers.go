package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/analytics"
	"github.com/edunet/search-gateway/internal/cache"
	"github.com/edunet/search-gateway/internal/directory"
	"github.com/edunet/search-gateway/internal/geocode"
	"github.com/edunet/search-gateway/internal/models"
	"github.com/edunet/search-gateway/internal/observability"
	"github.com/edunet/search-gateway/internal/query"
	"github.com/edunet/search-gateway/internal/session"
	"github.com/edunet/search-gateway/internal/suggest"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type Handler struct {
	sessions  *session.Registry
	directory *directory.Client
	resolver  *geocode.Resolver
	suggester *suggest.Client
	builder   *query.Builder
	cache     *cache.RedisCache
	slow      *observability.SlowQueryDetector
	analytics *analytics.Client

	queryTimeout time.Duration
	maxPageSize  int
	logger       *zap.Logger
}

// HandlerDeps bundles the collaborators. Cache and analytics may be nil; the
// gateway degrades rather than refuses to serve.
type HandlerDeps struct {
	Sessions  *session.Registry
	Directory *directory.Client
	Resolver  *geocode.Resolver
	Suggester *suggest.Client
	Cache     *cache.RedisCache
	SlowQuery *observability.SlowQueryDetector
	Analytics *analytics.Client

	QueryTimeout time.Duration
	MaxPageSize  int
	Logger       *zap.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		sessions:     deps.Sessions,
		directory:    deps.Directory,
		resolver:     deps.Resolver,
		suggester:    deps.Suggester,
		builder:      query.NewBuilder(),
		cache:        deps.Cache,
		slow:         deps.SlowQuery,
		analytics:    deps.Analytics,
		queryTimeout: deps.QueryTimeout,
		maxPageSize:  deps.MaxPageSize,
		logger:       deps.Logger,
	}
}

type createSessionRequest struct {
	PageSize int            `json:"page_size"`
	Geo      *models.GeoFix `json:"geo"`
}

type sessionView struct {
	SessionID string               `json:"session_id"`
	Filters   models.SearchFilters `json:"filters"`
	State     string               `json:"state"`
	Results   models.ResultPage    `json:"results"`
	Error     string               `json:"error,omitempty"`
}

func (h *Handler) sessionView(s *session.Session) sessionView {
	state, page, lastErr := s.Results().Snapshot()
	view := sessionView{
		SessionID: s.ID(),
		Filters:   s.Snapshot(),
		State:     state.String(),
		Results:   page,
	}
	if lastErr != nil {
		view.Error = "directory backend unavailable"
	}
	return view
}

// CreateSession opens a search session. When the request carries a
// geolocation fix the location field is prefilled with the resolved label;
// resolution failures fall back to a sentinel label and never fail the
// session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSessionRequest
	if r.Body != nil && r.ContentLength != 0 {
		limited := io.LimitReader(r.Body, maxRequestBodySize)
		if err := json.NewDecoder(limited).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}

	pageSize := req.PageSize
	if pageSize > h.maxPageSize {
		pageSize = h.maxPageSize
	}
	sess := h.sessions.Create(pageSize)

	if req.Geo != nil {
		label := h.resolver.Resolve(ctx, *req.Geo)
		var coords *models.Coordinates
		if !req.Geo.Denied {
			coords = req.Geo.Coords
		}
		sess.SeedLocation(label, coords)
	}

	h.writeJSON(w, http.StatusCreated, h.sessionView(sess))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Touch()
	h.writeJSON(w, http.StatusOK, h.sessionView(sess))
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (h *Handler) SetCategory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req categoryRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	kind, ok := models.ParseCategoryKind(req.Kind)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_category", "Unknown category kind")
		return
	}

	sess.SetCategory(kind, req.Value)
	h.writeJSON(w, http.StatusOK, h.sessionView(sess))
}

type locationRequest struct {
	Text string `json:"text"`
}

type suggestResponse struct {
	Candidates []models.Candidate   `json:"candidates"`
	Superseded bool                 `json:"superseded"`
	Filters    models.SearchFilters `json:"filters"`
}

// SetLocation records a manual edit of the location field and kicks off a
// location autocomplete lookup for the new text. The response carries the
// candidate list currently installed on the session, which may come from a
// newer edit when this one lost the race.
func (h *Handler) SetLocation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	seq := sess.SetLocationText(req.Text)

	candidates, err := h.suggester.Lookup(ctx, models.KindLocation, req.Text)
	if err != nil {
		h.writeError(w, http.StatusRequestTimeout, "lookup_cancelled", "Suggestion lookup cancelled")
		return
	}
	applied := sess.ApplyCandidates(models.KindLocation, seq, candidates)

	h.writeJSON(w, http.StatusOK, suggestResponse{
		Candidates: sess.Candidates(models.KindLocation),
		Superseded: !applied,
		Filters:    sess.Snapshot(),
	})
}

type selectRequest struct {
	ID    *int64 `json:"id"`
	Label string `json:"label"`
}

func (h *Handler) SelectLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Label == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Candidate label is required")
		return
	}

	sess.SelectCandidate(models.Candidate{ID: req.ID, Label: req.Label})
	h.writeJSON(w, http.StatusOK, h.sessionView(sess))
}

// Search submits the session's current filters to the directory backend.
// The outcome always comes back with HTTP 200: empty and failed are result
// states the caller renders, not transport errors. Only an unusable filter
// set is rejected up front.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Touch()

	filters := sess.Snapshot()
	params, err := h.builder.Build(&filters)
	if err != nil {
		if errors.Is(err, query.ErrEmptyQuery) {
			h.writeError(w, http.StatusBadRequest, "empty_query", "At least one search field is required")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	gen := sess.Results().Begin()

	ctx, cancel := context.WithTimeout(r.Context(), h.queryTimeout)
	defer cancel()

	start := time.Now()
	items, err := h.directory.Search(ctx, params)
	duration := time.Since(start)

	status := "success"
	resultCount := 0
	if err != nil {
		status = "failed"
		sess.Results().Fail(gen, err)
		h.logger.Error("search submission failed",
			zap.String("session_id", sess.ID()),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	} else {
		resultCount = len(items)
		if resultCount == 0 {
			status = "empty"
		}
		sess.Results().Complete(gen, items)
	}

	observability.SearchRequestsTotal.WithLabelValues(status).Inc()
	observability.SearchRequestDuration.WithLabelValues(status).Observe(duration.Seconds())
	h.slow.Intercept(r.Context(), sess.ID(), params, duration, resultCount, status)
	h.recordSearchEvent(r.Context(), sess.ID(), params, duration, resultCount, status)

	h.writeJSON(w, http.StatusOK, h.sessionView(sess))
}

type pageRequest struct {
	Page int `json:"page"`
}

func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	var req pageRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess.Touch()
	sess.Results().SetPage(req.Page)
	h.writeJSON(w, http.StatusOK, h.sessionView(sess))
}

// Suggest serves autocomplete candidates. With a session parameter the
// result also goes through the session's supersession check, so stale lookups
// report superseded instead of clobbering newer candidates.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, ok := models.ParseSuggestKind(r.URL.Query().Get("kind"))
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_kind", "Unknown suggestion kind")
		return
	}
	q := r.URL.Query().Get("q")

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		candidates, err := h.suggester.Lookup(ctx, kind, q)
		if err != nil {
			h.writeError(w, http.StatusRequestTimeout, "lookup_cancelled", "Suggestion lookup cancelled")
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]any{
			"candidates": candidates,
			"superseded": false,
		})
		return
	}

	sess, err := h.sessions.Get(sessionID)
	if err != nil {
		h.writeError(w, http.StatusNotFound, "session_not_found", "Unknown session")
		return
	}
	sess.Touch()

	seq := sess.NextSuggestSeq(kind)
	candidates, err := h.suggester.Lookup(ctx, kind, q)
	if err != nil {
		h.writeError(w, http.StatusRequestTimeout, "lookup_cancelled", "Suggestion lookup cancelled")
		return
	}
	applied := sess.ApplyCandidates(kind, seq, candidates)

	h.writeJSON(w, http.StatusOK, map[string]any{
		"candidates": sess.Candidates(kind),
		"superseded": !applied,
	})
}

func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cache != nil {
		meta, err := h.cache.GetMetadata(ctx)
		if err != nil {
			h.logger.Warn("metadata cache error", zap.Error(err))
		}
		if meta != nil {
			h.writeJSON(w, http.StatusOK, meta)
			return
		}
	}

	meta, err := h.directory.Metadata(ctx)
	if err != nil {
		h.logger.Error("metadata fetch failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "upstream_error", "Directory backend unavailable")
		return
	}

	if h.cache != nil {
		if err := h.cache.SetMetadata(ctx, meta); err != nil {
			h.logger.Warn("metadata cache set error", zap.Error(err))
		}
	}
	h.writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) EstablishmentDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Establishment id must be numeric")
		return
	}

	if h.cache != nil {
		detail, err := h.cache.GetDetail(ctx, id)
		if err != nil {
			h.logger.Warn("detail cache error", zap.Error(err))
		}
		if detail != nil {
			h.writeJSON(w, http.StatusOK, detail)
			return
		}
	}

	detail, err := h.directory.Detail(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "not_found", "Unknown establishment")
			return
		}
		h.logger.Error("detail fetch failed", zap.Int64("id", id), zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "upstream_error", "Directory backend unavailable")
		return
	}

	if h.cache != nil {
		if err := h.cache.SetDetail(ctx, detail); err != nil {
			h.logger.Warn("detail cache set error", zap.Error(err))
		}
	}
	h.writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) recordSearchEvent(ctx context.Context, sessionID string, params models.QueryParams, duration time.Duration, resultCount int, status string) {
	if h.analytics == nil {
		return
	}
	event := &analytics.SearchEvent{
		SessionID:   sessionID,
		QueryHash:   observability.HashParams(params),
		Status:      status,
		DurationMs:  float64(duration.Milliseconds()),
		ResultCount: int64(resultCount),
		Timestamp:   time.Now().UTC(),
		TraceID:     observability.TraceIDFromContext(ctx),
	}
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.analytics.WriteSearchEvent(writeCtx, event); err != nil {
			h.logger.Error("failed to write search event", zap.Error(err))
		}
	}()
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "session_not_found", "Unknown session")
		return nil, false
	}
	return sess, true
}

func (h *Handler) decode(r *http.Request, out any) error {
	limited := io.LimitReader(r.Body, maxRequestBodySize)
	return json.NewDecoder(limited).Decode(out)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("writing json response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
