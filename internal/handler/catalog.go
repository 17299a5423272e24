package handler

import (
	"net/http"

	"github.com/bpparchive/archive/internal/service"
)

// CatalogHandler serves the public archive views.
type CatalogHandler struct {
	catalog *service.CatalogService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// Home handles GET /.
func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Home(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// Search handles GET /search?q=.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	view, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// ListGames handles GET /games?page=&per_page=.
func (h *CatalogHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.Games(r.Context(), QueryInt(r, "page", 1), QueryInt(r, "per_page", 20))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, list)
}

// GetGame handles GET /games/{id}.
func (h *CatalogHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	view, err := h.catalog.Game(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// GetBook handles GET /books/{id}.
func (h *CatalogHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	view, err := h.catalog.Book(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// GetUser handles GET /users/{id}.
func (h *CatalogHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	view, err := h.catalog.User(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}

// GetCharacter handles GET /characters/{id}.
func (h *CatalogHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		RespondError(w, err)
		return
	}
	view, err := h.catalog.Character(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, view)
}
