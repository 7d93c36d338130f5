// Package api exposes HTTP handlers for the enrichment service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/enrichment/internal/activity"
	"example.com/enrichment/internal/auth"
	"example.com/enrichment/internal/dedupe"
	"example.com/enrichment/internal/domain"
	"example.com/enrichment/internal/logger"
	"example.com/enrichment/internal/parser"
	"example.com/enrichment/internal/selector"
)

const (
	maxBodyBytes      = 1 << 20
	maxDiscoveryItems = 50
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	log     *logger.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{service: service, log: log}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", healthz)
	mux.HandleFunc("GET /v1/activities", h.listActivities)
	mux.HandleFunc("GET /v1/activities/recommendations", h.recommendations)
	mux.HandleFunc("GET /v1/activities/{id}", h.getActivity)
	mux.HandleFunc("POST /v1/discoveries", h.discover)
	mux.HandleFunc("POST /v1/parse", h.parse)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}

	corpus, err := h.service.ListActivities(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: toActivityViews(corpus)})
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	a, err := h.service.GetActivity(r.Context(), claims.Subject, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*a))
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesRead)
	if !ok {
		return
	}

	in, err := parseRecommendQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	ranked, err := h.service.Recommend(r.Context(), claims.Subject, in)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{
		Mode:  string(in.Mode),
		Items: toActivityViews(ranked),
	})
}

func (h *Handler) discover(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req DiscoveryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	items := make([]parser.Content, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, parser.Content{Title: item.Title, Body: item.Content, SourceURL: item.SourceURL})
	}

	report, err := h.service.Discover(r.Context(), claims.Subject, items)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDiscoveryResponse(report))
}

func (h *Handler) parse(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, auth.ScopeActivitiesRead); !ok {
		return
	}

	var req DiscoveryItem
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "content is required")
		return
	}

	parsed, accepted := h.service.Preview(parser.Content{Title: req.Title, Body: req.Content, SourceURL: req.SourceURL})
	writeJSON(w, http.StatusOK, ParseResponse{Parsed: parsed, Accepted: accepted})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrDiscoveryInProgress):
		writeError(w, http.StatusConflict, "discovery_in_progress", err.Error())
	case errors.Is(err, domain.ErrInvalidMode), errors.Is(err, domain.ErrInvalidOwner):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// authorize requires claims carrying scope; the write scope implies read.
func authorize(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) && !(scope == auth.ScopeActivitiesRead && claims.HasScope(auth.ScopeActivitiesWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("scope %s required", scope))
		return nil, false
	}
	return claims, true
}

func parseRecommendQuery(r *http.Request) (domain.RecommendInput, error) {
	q := r.URL.Query()
	in := domain.RecommendInput{Mode: domain.Mode(strings.ToLower(strings.TrimSpace(q.Get("mode"))))}
	if in.Mode == "" {
		in.Mode = domain.ModeShuffle
	}

	if raw := q.Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count < 0 {
			return in, errors.New("count must be a non-negative integer")
		}
		in.Count = count
	}
	if raw := q.Get("pillar"); raw != "" {
		pillar, ok := activity.ParsePillar(raw)
		if !ok {
			return in, fmt.Errorf("unknown pillar %q", raw)
		}
		in.Pillar = pillar
	}

	var overrides selector.Overrides
	fields := []struct {
		param  string
		target **float64
	}{
		{"library_weight", &overrides.LibraryActivity},
		{"discovered_weight", &overrides.DiscoveredActivity},
		{"quality_bonus", &overrides.QualityBonus},
		{"recent_bonus", &overrides.RecentDiscoveryBonus},
		{"approved_bonus", &overrides.ApprovedBonus},
	}
	set := false
	for _, f := range fields {
		raw := q.Get(f.param)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return in, fmt.Errorf("%s must be a non-negative number", f.param)
		}
		*f.target = &v
		set = true
	}
	if set {
		in.Overrides = &overrides
	}
	return in, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// DiscoveryItem is one raw content block submitted for discovery or preview.
type DiscoveryItem struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	SourceURL string `json:"source_url"`
}

// DiscoveryRequest is the payload for POST /v1/discoveries.
type DiscoveryRequest struct {
	Items []DiscoveryItem `json:"items"`
}

// Validate ensures request correctness.
func (r DiscoveryRequest) Validate() error {
	if len(r.Items) == 0 {
		return errors.New("items must not be empty")
	}
	if len(r.Items) > maxDiscoveryItems {
		return fmt.Errorf("at most %d items per request", maxDiscoveryItems)
	}
	for i, item := range r.Items {
		if strings.TrimSpace(item.Content) == "" {
			return fmt.Errorf("items[%d].content is required", i)
		}
	}
	return nil
}

// ActivityView exposes full details about an activity.
type ActivityView struct {
	ActivityID   string     `json:"activity_id"`
	Kind         string     `json:"kind"`
	Title        string     `json:"title"`
	Pillar       string     `json:"pillar"`
	Difficulty   string     `json:"difficulty"`
	DurationMin  int        `json:"duration_min"`
	Materials    []string   `json:"materials"`
	Instructions []string   `json:"instructions"`
	Benefits     string     `json:"benefits"`
	Tags         []string   `json:"tags"`
	Source       string     `json:"source,omitempty"`
	QualityScore *float64   `json:"quality_score,omitempty"`
	DiscoveredAt *time.Time `json:"discovered_at,omitempty"`
	Approved     *bool      `json:"approved,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// RecommendationsResponse lists activities in recommendation order.
type RecommendationsResponse struct {
	Mode  string         `json:"mode"`
	Items []ActivityView `json:"items"`
}

// DuplicateView describes a candidate dropped as a duplicate.
type DuplicateView struct {
	Title             string  `json:"title"`
	ExistingID        string  `json:"existing_id"`
	ExistingTitle     string  `json:"existing_title"`
	Reason            string  `json:"reason"`
	TitleSimilarity   float64 `json:"title_similarity"`
	ContentSimilarity float64 `json:"content_similarity"`
}

// LowConfidenceView describes a candidate dropped by the confidence gate.
type LowConfidenceView struct {
	Title      string  `json:"title"`
	Confidence float64 `json:"confidence"`
}

// DiscoveryResponse summarises a discovery run.
type DiscoveryResponse struct {
	Accepted      []ActivityView      `json:"accepted"`
	Duplicates    []DuplicateView     `json:"duplicates"`
	LowConfidence []LowConfidenceView `json:"low_confidence"`
}

// ParseResponse is the preview result for POST /v1/parse.
type ParseResponse struct {
	Parsed   parser.Parsed `json:"parsed"`
	Accepted bool          `json:"accepted"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(a activity.Activity) ActivityView {
	view := ActivityView{
		ActivityID:   a.ID,
		Kind:         string(a.Kind),
		Title:        a.Title,
		Pillar:       string(a.Pillar),
		Difficulty:   string(a.Difficulty),
		DurationMin:  a.DurationMin,
		Materials:    nonNil(a.Materials),
		Instructions: nonNil(a.Instructions),
		Benefits:     a.Benefits,
		Tags:         nonNil(a.Tags),
	}
	if d := a.Discovery; d != nil {
		quality, discoveredAt, approved := d.QualityScore, d.DiscoveredAt, d.Approved
		view.Source = d.Source
		view.QualityScore = &quality
		view.DiscoveredAt = &discoveredAt
		view.Approved = &approved
		view.SourceURL = d.SourceURL
	}
	return view
}

func toActivityViews(in []activity.Activity) []ActivityView {
	out := make([]ActivityView, 0, len(in))
	for _, a := range in {
		out = append(out, toActivityView(a))
	}
	return out
}

func toDiscoveryResponse(report domain.Report) DiscoveryResponse {
	resp := DiscoveryResponse{
		Accepted:      toActivityViews(report.Accepted),
		Duplicates:    make([]DuplicateView, 0, len(report.Duplicates)),
		LowConfidence: make([]LowConfidenceView, 0, len(report.LowConfidence)),
	}
	for _, d := range report.Duplicates {
		resp.Duplicates = append(resp.Duplicates, toDuplicateView(d))
	}
	for _, p := range report.LowConfidence {
		resp.LowConfidence = append(resp.LowConfidence, LowConfidenceView{Title: p.Title, Confidence: p.Confidence})
	}
	return resp
}

func toDuplicateView(r dedupe.Rejection) DuplicateView {
	return DuplicateView{
		Title:             r.Candidate.Title,
		ExistingID:        r.Match.ExistingID,
		ExistingTitle:     r.Match.ExistingTitle,
		Reason:            string(r.Match.Reason),
		TitleSimilarity:   r.Match.TitleSimilarity,
		ContentSimilarity: r.Match.ContentSimilarity,
	}
}

func nonNil[S ~[]E, E any](s S) []E {
	if s == nil {
		return []E{}
	}
	return s
}
