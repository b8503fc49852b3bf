// Package chi exposes the search pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
	healthuc "github.com/treyworks/sitesearch/internal/usecase/health"
)

// Error codes of the JSON error envelope.
const (
	codeInvalidRequest = "invalid_request"
	codeForbidden      = "forbidden"
	codeNoCrossOrigin  = "no_crossorigin"
	codeAPIError       = "api_error"
)

// Pipeline runs the query-to-answer flow.
type Pipeline interface {
	Search(ctx context.Context, req domain.SearchRequest) (domain.PipelineResult, error)
	Answer(ctx context.Context, req domain.SearchRequest) (domain.PipelineResult, error)
}

// Auditor records access policy decisions.
type Auditor interface {
	Event(ctx context.Context, ev domain.AuditEvent)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the HTTP API server.
type Server struct {
	pipeline Pipeline
	health   *healthuc.Service
	nonces   *NonceService
	audit    Auditor
	logger   *zap.Logger

	siteDomain       string
	integrationToken string
	restrictOrigins  bool
	trustedOrigins   map[string]struct{}

	errorHandlers []errorHandler
}

// Config holds the access policy settings of the server.
type Config struct {
	SiteDomain       string
	IntegrationToken string
	RestrictOrigins  bool
	TrustedOrigins   []string
}

// NewServer creates an HTTP API server.
func NewServer(
	pipeline Pipeline,
	health *healthuc.Service,
	nonces *NonceService,
	audit Auditor,
	logger *zap.Logger,
	cfg Config,
) *Server {
	trusted := make(map[string]struct{}, len(cfg.TrustedOrigins))
	for _, o := range cfg.TrustedOrigins {
		if o != "" {
			trusted[strings.ToLower(o)] = struct{}{}
		}
	}

	s := &Server{
		pipeline:         pipeline,
		health:           health,
		nonces:           nonces,
		audit:            audit,
		logger:           logger,
		siteDomain:       cfg.SiteDomain,
		integrationToken: cfg.IntegrationToken,
		restrictOrigins:  cfg.RestrictOrigins,
		trustedOrigins:   trusted,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, codeInvalidRequest),
		sentinelHandler(domain.ErrInvalidNonce, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrInvalidToken, http.StatusForbidden, codeForbidden),
		sentinelHandler(domain.ErrMissingToken, http.StatusBadRequest, codeInvalidRequest),
		sentinelHandler(domain.ErrCrossOrigin, http.StatusForbidden, codeNoCrossOrigin),
	}
	return s
}

// Routes mounts all endpoints on the router.
func (s *Server) Routes(r chi.Router) {
	r.Get("/nonce", s.handleNonce)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.With(s.sameOriginGuard).Post("/search", s.handleSearch)
	r.With(s.integrationGuard).Post("/get_answer", s.handleGetAnswer)
}

// searchBody is the JSON request body of both pipeline endpoints.
type searchBody struct {
	SearchQuery string `json:"search_query"`
	PostIDs     string `json:"post_ids,omitempty"`
}

// resultItem is one document in a search response. Content is present only
// on leading full-content results.
type resultItem struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
}

// searchResponse is the body of a successful POST /search.
type searchResponse struct {
	Query     string       `json:"query"`
	Results   []resultItem `json:"results"`
	Summary   string       `json:"summary"`
	NoResults bool         `json:"no_results"`
}

// handleSearch handles POST /search.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := domain.NewSearchRequest(body.SearchQuery, domain.ParseScopeIDs(body.PostIDs), r.Referer())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	result, err := s.pipeline.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponseFrom(result))
}

// handleGetAnswer handles POST /get_answer. The response body is the
// synthesized answer as a bare JSON string.
func (s *Server) handleGetAnswer(w http.ResponseWriter, r *http.Request) {
	body, err := decodeAnswerBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := domain.NewSearchRequest(body.SearchQuery, domain.ParseScopeIDs(body.PostIDs), r.Referer())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	result, err := s.pipeline.Answer(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result.Summary)
}

// decodeAnswerBody accepts either a plain searchBody or one wrapped in an
// "args" field, where args may itself be a JSON-encoded string.
func decodeAnswerBody(r *http.Request) (searchBody, error) {
	var outer struct {
		searchBody
		Args json.RawMessage `json:"args"`
	}
	if err := json.NewDecoder(r.Body).Decode(&outer); err != nil {
		return searchBody{}, err
	}
	if len(outer.Args) == 0 {
		return outer.searchBody, nil
	}

	raw := []byte(outer.Args)
	var encoded string
	if json.Unmarshal(raw, &encoded) == nil {
		raw = []byte(encoded)
	}

	var inner searchBody
	if err := json.Unmarshal(raw, &inner); err != nil {
		return searchBody{}, err
	}
	return inner, nil
}

// handleNonce handles GET /nonce, issuing a nonce for the caller's session.
func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"nonce": s.nonces.Issue(sessionID(r)),
	})
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// handleMetrics handles GET /metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func searchResponseFrom(result domain.PipelineResult) searchResponse {
	items := make([]resultItem, len(result.Documents))
	for i, d := range result.Documents {
		items[i] = resultItem{
			ID:      d.ID,
			Title:   d.Title,
			URL:     d.URL,
			Content: d.Content,
		}
	}
	return searchResponse{
		Query:     result.Query,
		Results:   items,
		Summary:   result.Summary,
		NoResults: result.NoResults(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidQuery,
		domain.ErrInvalidNonce,
		domain.ErrInvalidToken,
		domain.ErrMissingToken,
		domain.ErrCrossOrigin,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeAPIError, "internal error")
}
