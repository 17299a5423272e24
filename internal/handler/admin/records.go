package admin

import (
	"net/http"

	"github.com/bpparchive/archive/internal/handler"
	"github.com/bpparchive/archive/internal/service"
	"github.com/go-chi/chi/v5"
)

// RecordHandler is the generic editor over the archive tables.
type RecordHandler struct {
	records *service.RecordService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(records *service.RecordService) *RecordHandler {
	return &RecordHandler{records: records}
}

func kindParam(r *http.Request) service.RecordKind {
	return service.RecordKind(chi.URLParam(r, "kind"))
}

// Kinds handles GET /admin/records/kinds.
func (h *RecordHandler) Kinds(w http.ResponseWriter, r *http.Request) {
	handler.RespondJSON(w, http.StatusOK, h.records.Kinds())
}

// List handles GET /admin/records/{kind}?page=&per_page=.
func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.records.List(r.Context(), kindParam(r), handler.QueryInt(r, "page", 1), handler.QueryInt(r, "per_page", 20))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, list)
}

// Get handles GET /admin/records/{kind}/{id}.
func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	rec, err := h.records.Get(r.Context(), kindParam(r), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, rec)
}

// Create handles POST /admin/records/{kind}.
func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields service.RecordFields
	if err := handler.DecodeJSON(r, &fields); err != nil {
		handler.RespondBadRequest(w, "invalid request body")
		return
	}
	rec, err := h.records.Create(r.Context(), kindParam(r), fields)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, rec)
}

// Update handles PATCH /admin/records/{kind}/{id}.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	var fields service.RecordFields
	if err := handler.DecodeJSON(r, &fields); err != nil {
		handler.RespondBadRequest(w, "invalid request body")
		return
	}
	rec, err := h.records.Update(r.Context(), kindParam(r), id, fields)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /admin/records/{kind}/{id}.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	res, err := h.records.Delete(r.Context(), kindParam(r), id)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, res)
}
