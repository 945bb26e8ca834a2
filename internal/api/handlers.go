// Package api exposes HTTP handlers for the deeds service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/deeds/internal/auth"
	"example.com/deeds/internal/domain"
	"example.com/deeds/internal/persistence"
)

const (
	defaultListLimit         = 20
	maxListLimit             = 100
	defaultInsightWindowDays = 30
	defaultImprovementDays   = 7
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service           *domain.Service
	insightWindowDays int
}

// NewHandler builds a Handler. insightWindowDays is the correlation window
// applied when the request does not name one; values <= 0 fall back to the
// package default.
func NewHandler(service *domain.Service, insightWindowDays int) *Handler {
	if insightWindowDays <= 0 {
		insightWindowDays = defaultInsightWindowDays
	}
	return &Handler{service: service, insightWindowDays: insightWindowDays}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/deeds", h.deeds)
	mux.HandleFunc("/v1/deeds/", h.deedByID)
	mux.HandleFunc("/v1/entries", h.entries)
	mux.HandleFunc("/v1/entries/", h.entryByID)
	mux.HandleFunc("/v1/scores/daily", h.dailyScores)
	mux.HandleFunc("/v1/suggestions", h.suggestions)
	mux.HandleFunc("/v1/insights/correlation", h.correlationInsight)
	mux.HandleFunc("/v1/insights/improvement", h.improvement)
	mux.HandleFunc("/v1/day-range", h.dayRange)
	mux.HandleFunc("/v1/preferences", h.preferences)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) deeds(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createDeed(w, r)
	case http.MethodGet:
		h.listDeeds(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) deedByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/deeds/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing deed id")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.updateDeed(w, r, id)
	case http.MethodDelete:
		h.deleteDeed(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) entries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.appendEntry(w, r)
	case http.MethodGet:
		h.listEntries(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) entryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/entries/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing entry id")
		return
	}

	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	h.deleteEntry(w, r, id)
}

func (h *Handler) createDeed(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsWrite)
	if !ok {
		return
	}

	var req CreateDeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	deed, err := h.service.CreateDeed(r.Context(), claims.TenantID, claims.Subject, domain.CreateDeedInput{
		Name:          req.Name,
		Emoji:         req.Emoji,
		Color:         req.Color,
		Category:      req.Category,
		Polarity:      domain.Polarity(req.Polarity),
		UnitType:      domain.UnitType(req.UnitType),
		UnitLabel:     req.UnitLabel,
		PointsPerUnit: req.PointsPerUnit,
		DailyCap:      req.DailyCap,
		Private:       req.Private,
		ShowOnStats:   req.ShowOnStats,
		SortOrder:     req.SortOrder,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toDeedView(*deed))
}

func (h *Handler) listDeeds(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	includeArchived := r.URL.Query().Get("include_archived") == "true"
	deeds, err := h.service.ListDeeds(r.Context(), claims.TenantID, claims.Subject, includeArchived)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]DeedView, 0, len(deeds))
	for _, deed := range deeds {
		items = append(items, toDeedView(deed))
	}
	writeJSON(w, http.StatusOK, ListDeedsResponse{Items: items})
}

func (h *Handler) updateDeed(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsWrite)
	if !ok {
		return
	}

	var req UpdateDeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	deed, err := h.service.UpdateDeed(r.Context(), claims.TenantID, claims.Subject, id, domain.UpdateDeedInput{
		Name:          req.Name,
		Emoji:         req.Emoji,
		Color:         req.Color,
		Category:      req.Category,
		UnitLabel:     req.UnitLabel,
		PointsPerUnit: req.PointsPerUnit,
		DailyCap:      req.DailyCap,
		ClearDailyCap: req.ClearDailyCap,
		Archived:      req.Archived,
		Private:       req.Private,
		ShowOnStats:   req.ShowOnStats,
		SortOrder:     req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDeedNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "deed not found")
			return
		}
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toDeedView(*deed))
}

func (h *Handler) deleteDeed(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteDeed(r.Context(), claims.TenantID, claims.Subject, id); err != nil {
		if errors.Is(err, domain.ErrDeedNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "deed not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) appendEntry(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsWrite)
	if !ok {
		return
	}

	var req AppendEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	var timestamp time.Time
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}
	result, err := h.service.AppendEntry(r.Context(), claims.TenantID, claims.Subject, domain.AppendEntryInput{
		DeedID:    req.DeedID,
		Timestamp: timestamp,
		Amount:    req.Amount,
		Note:      req.Note,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDeedNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "deed not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, AppendEntryResponse{
		Entry:     toEntryView(result.Entry),
		WasCapped: result.WasCapped,
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	query := domain.EntryQuery{DeedID: r.URL.Query().Get("deed_id")}
	from, ok := parseTimeParam(w, r, "from")
	if !ok {
		return
	}
	query.From = from
	to, ok := parseTimeParam(w, r, "to")
	if !ok {
		return
	}
	query.To = to

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxListLimit {
				parsed = maxListLimit
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.service.ListEntries(r.Context(), claims.TenantID, claims.Subject, query, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]EntryView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toEntryView(entry))
	}
	writeJSON(w, http.StatusOK, ListEntriesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) deleteEntry(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteEntry(r.Context(), claims.TenantID, claims.Subject, id); err != nil {
		if errors.Is(err, domain.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "entry not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dailyScores(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	from, ok := parseTimeParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(w, r, "to")
	if !ok {
		return
	}
	if from == nil || to == nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "from and to parameters are required")
		return
	}

	totals, err := h.service.DailyTotals(r.Context(), claims.TenantID, claims.Subject, *from, *to)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCutoffHour) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]DayTotalView, 0, len(totals))
	for _, total := range totals {
		items = append(items, DayTotalView{DayStart: total.DayStart, TotalPoints: total.TotalPoints})
	}
	writeJSON(w, http.StatusOK, DailyScoresResponse{Items: items})
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	suggestions, err := h.service.Suggestions(r.Context(), claims.TenantID, claims.Subject, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]SuggestionView, 0, len(suggestions))
	for _, suggestion := range suggestions {
		items = append(items, SuggestionView{
			Kind:   string(suggestion.Kind),
			DeedID: suggestion.DeedID,
		})
	}
	writeJSON(w, http.StatusOK, SuggestionsResponse{Items: items})
}

func (h *Handler) correlationInsight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	deedID := r.URL.Query().Get("deed_id")
	if deedID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing deed_id parameter")
		return
	}

	windowDays := h.insightWindowDays
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "window_days must be a positive integer")
			return
		}
		windowDays = parsed
	}

	insight, err := h.service.CorrelationInsight(r.Context(), claims.TenantID, claims.Subject, deedID, windowDays, time.Now())
	if err != nil {
		if errors.Is(err, domain.ErrDeedNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "deed not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if insight == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, InsightView{
		DeedID:      insight.DeedID,
		DeedName:    insight.DeedName,
		Coefficient: insight.Coefficient,
		SampleCount: insight.SampleCount,
	})
}

func (h *Handler) improvement(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	days := defaultImprovementDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "days must be a positive integer")
			return
		}
		days = parsed
	}

	best, err := h.service.BestImprovement(r.Context(), claims.TenantID, claims.Subject, days, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	if best == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, ImprovementView{Category: best.Category, Percent: best.Percent})
}

func (h *Handler) dayRange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "at must be RFC3339")
			return
		}
		at = parsed
	}

	start, end, err := h.service.DayRangeFor(r.Context(), claims.TenantID, claims.Subject, at)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCutoffHour) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DayRangeResponse{Start: start, End: end})
}

func (h *Handler) preferences(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getPreferences(w, r)
	case http.MethodPut:
		h.updatePreferences(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getPreferences(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsRead)
	if !ok {
		return
	}

	prefs, err := h.service.GetPreferences(r.Context(), claims.TenantID, claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PreferencesView{CutoffHour: prefs.CutoffHour})
}

func (h *Handler) updatePreferences(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeDeedsWrite)
	if !ok {
		return
	}

	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	prefs, err := h.service.UpdatePreferences(r.Context(), claims.TenantID, claims.Subject, req.CutoffHour)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCutoffHour) {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, PreferencesView{CutoffHour: prefs.CutoffHour})
}

// requireScope resolves the caller's claims and checks the scope, writing the
// error response itself on failure. Write scope implies read.
func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if claims.HasScope(scope) {
		return claims, true
	}
	if scope == auth.ScopeDeedsRead && claims.HasScope(auth.ScopeDeedsWrite) {
		return claims, true
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
	return nil, false
}

func parseTimeParam(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", name+" must be RFC3339")
		return nil, false
	}
	return &parsed, true
}

// CreateDeedRequest is the payload for POST /v1/deeds.
type CreateDeedRequest struct {
	Name          string   `json:"name"`
	Emoji         string   `json:"emoji"`
	Color         string   `json:"color"`
	Category      string   `json:"category"`
	Polarity      string   `json:"polarity"`
	UnitType      string   `json:"unit_type"`
	UnitLabel     string   `json:"unit_label"`
	PointsPerUnit float64  `json:"points_per_unit"`
	DailyCap      *float64 `json:"daily_cap,omitempty"`
	Private       bool     `json:"private"`
	ShowOnStats   bool     `json:"show_on_stats"`
	SortOrder     int      `json:"sort_order"`
}

// Validate ensures request correctness.
func (r CreateDeedRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(r.Polarity) == "" {
		return errors.New("polarity is required")
	}
	if strings.TrimSpace(r.UnitType) == "" {
		return errors.New("unit_type is required")
	}
	if r.DailyCap != nil && *r.DailyCap < 0 {
		return errors.New("daily_cap must be >= 0")
	}
	return nil
}

// UpdateDeedRequest patches an existing deed. Absent fields are left
// unchanged; clear_daily_cap removes the cap regardless of daily_cap.
type UpdateDeedRequest struct {
	Name          *string  `json:"name,omitempty"`
	Emoji         *string  `json:"emoji,omitempty"`
	Color         *string  `json:"color,omitempty"`
	Category      *string  `json:"category,omitempty"`
	UnitLabel     *string  `json:"unit_label,omitempty"`
	PointsPerUnit *float64 `json:"points_per_unit,omitempty"`
	DailyCap      *float64 `json:"daily_cap,omitempty"`
	ClearDailyCap bool     `json:"clear_daily_cap,omitempty"`
	Archived      *bool    `json:"archived,omitempty"`
	Private       *bool    `json:"private,omitempty"`
	ShowOnStats   *bool    `json:"show_on_stats,omitempty"`
	SortOrder     *int     `json:"sort_order,omitempty"`
}

// AppendEntryRequest is the payload for POST /v1/entries.
type AppendEntryRequest struct {
	DeedID    string     `json:"deed_id"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Amount    float64    `json:"amount"`
	Note      string     `json:"note,omitempty"`
}

// Validate ensures request correctness.
func (r AppendEntryRequest) Validate() error {
	if strings.TrimSpace(r.DeedID) == "" {
		return errors.New("deed_id is required")
	}
	return nil
}

// AppendEntryResponse pairs the stored entry with the cap outcome.
type AppendEntryResponse struct {
	Entry     EntryView `json:"entry"`
	WasCapped bool      `json:"was_capped"`
}

// DeedView exposes full details about a deed.
type DeedView struct {
	DeedID        string    `json:"deed_id"`
	Name          string    `json:"name"`
	Emoji         string    `json:"emoji,omitempty"`
	Color         string    `json:"color,omitempty"`
	Category      string    `json:"category,omitempty"`
	Polarity      string    `json:"polarity"`
	UnitType      string    `json:"unit_type"`
	UnitLabel     string    `json:"unit_label,omitempty"`
	PointsPerUnit float64   `json:"points_per_unit"`
	DailyCap      *float64  `json:"daily_cap,omitempty"`
	Private       bool      `json:"private"`
	ShowOnStats   bool      `json:"show_on_stats"`
	Archived      bool      `json:"archived"`
	SortOrder     int       `json:"sort_order"`
	CreatedAt     time.Time `json:"created_at"`
}

// EntryView exposes one logged entry.
type EntryView struct {
	EntryID   string    `json:"entry_id"`
	DeedID    string    `json:"deed_id"`
	Timestamp time.Time `json:"timestamp"`
	Amount    float64   `json:"amount"`
	Points    float64   `json:"points"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListDeedsResponse packages the deed catalog.
type ListDeedsResponse struct {
	Items []DeedView `json:"items"`
}

// ListEntriesResponse packages paginated entry results.
type ListEntriesResponse struct {
	Items      []EntryView `json:"items"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// DayTotalView is one app-day's net score.
type DayTotalView struct {
	DayStart    time.Time `json:"day_start"`
	TotalPoints float64   `json:"total_points"`
}

// DailyScoresResponse packages sparse daily totals.
type DailyScoresResponse struct {
	Items []DayTotalView `json:"items"`
}

// SuggestionView is one next-action suggestion.
type SuggestionView struct {
	Kind   string `json:"kind"`
	DeedID string `json:"deed_id"`
}

// SuggestionsResponse packages suggestion results.
type SuggestionsResponse struct {
	Items []SuggestionView `json:"items"`
}

// InsightView reports a surfaced correlation.
type InsightView struct {
	DeedID      string  `json:"deed_id"`
	DeedName    string  `json:"deed_name"`
	Coefficient float64 `json:"coefficient"`
	SampleCount int     `json:"sample_count"`
}

// ImprovementView reports the most-improved category.
type ImprovementView struct {
	Category string  `json:"category"`
	Percent  float64 `json:"percent"`
}

// DayRangeResponse is the half-open app-day interval for an instant.
type DayRangeResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PreferencesView exposes per-user engine settings.
type PreferencesView struct {
	CutoffHour int `json:"cutoff_hour"`
}

// UpdatePreferencesRequest is the payload for PUT /v1/preferences.
type UpdatePreferencesRequest struct {
	CutoffHour int `json:"cutoff_hour"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toDeedView(deed domain.Deed) DeedView {
	return DeedView{
		DeedID:        deed.ID,
		Name:          deed.Name,
		Emoji:         deed.Emoji,
		Color:         deed.Color,
		Category:      deed.Category,
		Polarity:      string(deed.Polarity),
		UnitType:      string(deed.UnitType),
		UnitLabel:     deed.UnitLabel,
		PointsPerUnit: deed.PointsPerUnit,
		DailyCap:      deed.DailyCap,
		Private:       deed.Private,
		ShowOnStats:   deed.ShowOnStats,
		Archived:      deed.Archived,
		SortOrder:     deed.SortOrder,
		CreatedAt:     deed.CreatedAt,
	}
}

func toEntryView(entry domain.Entry) EntryView {
	return EntryView{
		EntryID:   entry.ID,
		DeedID:    entry.DeedID,
		Timestamp: entry.Timestamp,
		Amount:    entry.Amount,
		Points:    entry.Points,
		Note:      entry.Note,
		CreatedAt: entry.CreatedAt,
	}
}
