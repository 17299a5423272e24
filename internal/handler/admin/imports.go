package admin

import (
	"errors"
	"io"
	"net/http"

	"github.com/bpparchive/archive/internal/domain"
	"github.com/bpparchive/archive/internal/handler"
	"github.com/bpparchive/archive/internal/importer"
	"github.com/bpparchive/archive/internal/service"
)

// ImportHandler accepts exported game documents.
type ImportHandler struct {
	imports  *service.ImportService
	maxBytes int64
}

// NewImportHandler creates a new ImportHandler. maxBytes caps the multipart body.
func NewImportHandler(imports *service.ImportService, maxBytes int64) *ImportHandler {
	return &ImportHandler{imports: imports, maxBytes: maxBytes}
}

// readFile parses the multipart form and returns the "file" part.
func (h *ImportHandler) readFile(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, domain.ErrValidation("upload exceeds size limit")
		}
		return nil, domain.ErrValidation("expected multipart form with a file field")
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		return nil, domain.ErrValidation("file is required")
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrValidation("read uploaded file")
	}
	return raw, nil
}

// Preview handles POST /admin/import/preview.
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	raw, err := h.readFile(w, r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	preview, err := h.imports.Preview(r.Context(), raw)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, preview)
}

// Import handles POST /admin/import. Form fields: file, mapping (JSON object
// of author name to "new" or user id), optional title and folder.
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	raw, err := h.readFile(w, r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	mapping := importer.Mapping{}
	if m := r.FormValue("mapping"); m != "" {
		if mapping, err = importer.MappingFromJSON([]byte(m)); err != nil {
			handler.RespondError(w, domain.ErrMapping(err.Error(), err))
			return
		}
	}

	result, err := h.imports.Import(r.Context(), service.ImportInput{
		HTML:    raw,
		Mapping: mapping,
		Title:   r.FormValue("title"),
		Folder:  r.FormValue("folder"),
	})
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	handler.RespondJSON(w, http.StatusCreated, result)
}
