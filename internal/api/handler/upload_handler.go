package handler

import (
	"net/http"

	"noticeboard/internal/common"
	"noticeboard/internal/platform/storage"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
)

// UploadHandler serves stored attachment bytes. Files are public, like the
// notices that reference them.
type UploadHandler struct {
	store  *storage.AttachmentStore
	logger *charmlog.Logger
}

func NewUploadHandler(store *storage.AttachmentStore, logger *charmlog.Logger) *UploadHandler {
	return &UploadHandler{store: store, logger: logger}
}

func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Get("/{filename}", h.serveFile)
}

func (h *UploadHandler) serveFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	f, err := h.store.Open(name)
	if err != nil {
		if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
			h.logger.Error("opening attachment failed", "stored", name, "err", err)
		}
		common.RespondWithError(w, http.StatusNotFound, "File not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		common.RespondWithError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
