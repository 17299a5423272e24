package handler

import (
	"net/http"
	"time"

	"github.com/bpparchive/archive/internal/service"
)

const dateLayout = "2006-01-02"

// DailyHandler serves the daily "who drew it" challenge.
type DailyHandler struct {
	daily *service.DailyService
}

// NewDailyHandler creates a new DailyHandler.
func NewDailyHandler(daily *service.DailyService) *DailyHandler {
	return &DailyHandler{daily: daily}
}

// parseDate reads an optional YYYY-MM-DD value, defaulting to today.
func (h *DailyHandler) parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return h.daily.Today(), true
	}
	d, err := time.Parse(dateLayout, raw)
	return d, err == nil
}

// GetPanel handles GET /daily?date=YYYY-MM-DD.
func (h *DailyHandler) GetPanel(w http.ResponseWriter, r *http.Request) {
	date, ok := h.parseDate(r.URL.Query().Get("date"))
	if !ok {
		RespondBadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	panel, err := h.daily.ForDate(r.Context(), date)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, panel)
}

type guessRequest struct {
	Date   string `json:"date"`
	UserID int64  `json:"user_id"`
}

// Guess handles POST /daily/guess.
func (h *DailyHandler) Guess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondBadRequest(w, "invalid request body")
		return
	}
	if req.UserID <= 0 {
		RespondBadRequest(w, "user_id is required")
		return
	}
	date, ok := h.parseDate(req.Date)
	if !ok {
		RespondBadRequest(w, "date must be YYYY-MM-DD")
		return
	}
	result, err := h.daily.Guess(r.Context(), date, req.UserID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
