package admin

import (
	"net/http"

	"github.com/bpparchive/archive/internal/handler"
	"github.com/bpparchive/archive/internal/service"
)

// OrphanHandler triggers the orphan upload sweep.
type OrphanHandler struct {
	orphans *service.OrphanService
}

// NewOrphanHandler creates a new OrphanHandler.
func NewOrphanHandler(orphans *service.OrphanService) *OrphanHandler {
	return &OrphanHandler{orphans: orphans}
}

// Sweep handles POST /admin/orphans/sweep?limit=.
func (h *OrphanHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.orphans.Sweep(r.Context(), handler.QueryInt(r, "limit", 0))
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, res)
}
