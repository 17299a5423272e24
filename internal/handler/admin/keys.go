package admin

import (
	"net/http"

	"github.com/bpparchive/archive/internal/auth"
	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/handler"
	"github.com/bpparchive/archive/internal/service"
)

// KeyHandler manages admin keys and sessions.
type KeyHandler struct {
	admin *service.AdminService
}

// NewKeyHandler creates a new KeyHandler.
func NewKeyHandler(admin *service.AdminService) *KeyHandler {
	return &KeyHandler{admin: admin}
}

type loginRequest struct {
	Key string `json:"key"`
}

// Login handles POST /admin/login. It sits outside the admin auth group.
func (h *KeyHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondBadRequest(w, "invalid request body")
		return
	}
	res, err := h.admin.Login(r.Context(), req.Key, handler.ClientIP(r))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, res)
}

// List handles GET /admin/keys.
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.admin.ListKeys(r.Context())
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, keys)
}

type createKeyRequest struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Create handles POST /admin/keys.
func (h *KeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := handler.DecodeJSON(r, &req); err != nil {
		handler.RespondBadRequest(w, "invalid request body")
		return
	}
	key, err := h.admin.CreateKey(r.Context(), req.Name, req.Key)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, key)
}

// Delete handles DELETE /admin/keys/{id}.
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := handler.PathID(r, "id")
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		handler.RespondError(w, domain.ErrUnauthorized("missing admin session"))
		return
	}
	current, err := claims.KeyID()
	if err != nil {
		handler.RespondError(w, domain.ErrUnauthorized("malformed admin session"))
		return
	}
	if err := h.admin.DeleteKey(r.Context(), id, current); err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusNoContent, nil)
}
