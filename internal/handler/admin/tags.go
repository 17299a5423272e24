package admin

import (
	"net/http"

	"github.com/bpparchive/archive/internal/handler"
	"github.com/bpparchive/archive/internal/service"
)

// TagHandler links characters to pages.
type TagHandler struct {
	characters *service.CharacterService
}

// NewTagHandler creates a new TagHandler.
func NewTagHandler(characters *service.CharacterService) *TagHandler {
	return &TagHandler{characters: characters}
}

func tagIDs(r *http.Request) (pageID, characterID int64, err error) {
	if pageID, err = handler.PathID(r, "id"); err != nil {
		return 0, 0, err
	}
	characterID, err = handler.PathID(r, "characterID")
	return pageID, characterID, err
}

// Tag handles POST /admin/pages/{id}/characters/{characterID}.
func (h *TagHandler) Tag(w http.ResponseWriter, r *http.Request) {
	pageID, characterID, err := tagIDs(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	res, err := h.characters.Tag(r.Context(), pageID, characterID)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if res.Added {
		status = http.StatusCreated
	}
	handler.RespondJSON(w, status, res)
}

// Untag handles DELETE /admin/pages/{id}/characters/{characterID}.
func (h *TagHandler) Untag(w http.ResponseWriter, r *http.Request) {
	pageID, characterID, err := tagIDs(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if err := h.characters.Untag(r.Context(), pageID, characterID); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}
