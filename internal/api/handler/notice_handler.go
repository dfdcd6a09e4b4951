package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"noticeboard/internal/api/middleware"
	"noticeboard/internal/app/service"
	"noticeboard/internal/common"
	"noticeboard/internal/domain/repository"
	"noticeboard/internal/platform/storage"

	"github.com/go-chi/chi/v5"
)

// multipartOverhead is the allowance for form fields and part headers on top
// of the attachment size limit.
const multipartOverhead = 1 << 20

type NoticeHandler struct {
	noticeService *service.NoticeService
	maxUpload     int64
}

func NewNoticeHandler(ns *service.NoticeService, maxUpload int64) *NoticeHandler {
	return &NoticeHandler{noticeService: ns, maxUpload: maxUpload}
}

func (h *NoticeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listNotices)         // GET /api/notices
	r.Get("/{noticeID}", h.getNotice) // GET /api/notices/42

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireIdentity)
		authed.Post("/", h.createNotice)
		authed.Put("/{noticeID}", h.updateNotice)
		authed.Delete("/{noticeID}", h.deleteNotice)
	})
}

func (h *NoticeHandler) listNotices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	notices, err := h.noticeService.List(r.Context(), service.ListNoticesRequest{
		Section:    q.Get("section"),
		Importance: q.Get("importance"),
		Status:     q.Get("status"),
		Search:     q.Get("search"),
	})
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"notices": notices,
	})
}

func (h *NoticeHandler) getNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := noticeIDParam(w, r)
	if !ok {
		return
	}
	notice, err := h.noticeService.Get(r.Context(), id)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"notice":  notice,
	})
}

func (h *NoticeHandler) createNotice(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithDomainError(w, storage.ErrFileTooLarge)
			return
		}
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := service.CreateNoticeRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Section:     r.FormValue("section"),
		Importance:  r.FormValue("importance"),
		DatePosted:  r.FormValue("date_posted"),
		ExpiryDate:  r.FormValue("expiry_date"),
	}

	file, header, err := r.FormFile("attachment")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		common.RespondWithError(w, http.StatusBadRequest, "Invalid attachment")
		return
	default:
		defer file.Close()
		if header.Filename != "" {
			req.Attachment = &storage.Upload{Filename: header.Filename, Size: header.Size, Content: file}
		}
	}

	id, err := h.noticeService.Create(r.Context(), middleware.IdentityFromContext(r.Context()), req)
	if err != nil {
		var attachErr *service.AttachmentError
		if errors.As(err, &attachErr) {
			common.RespondWithJSON(w, http.StatusInternalServerError, map[string]interface{}{
				"error":     "Notice created but the attachment could not be saved",
				"notice_id": attachErr.NoticeID,
			})
			return
		}
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":   true,
		"message":   "Notice created successfully",
		"notice_id": id,
	})
}

func (h *NoticeHandler) updateNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := noticeIDParam(w, r)
	if !ok {
		return
	}
	var req service.UpdateNoticeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if err := h.noticeService.Update(r.Context(), middleware.IdentityFromContext(r.Context()), id, req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notice updated successfully",
	})
}

func (h *NoticeHandler) deleteNotice(w http.ResponseWriter, r *http.Request) {
	id, ok := noticeIDParam(w, r)
	if !ok {
		return
	}
	if err := h.noticeService.Delete(r.Context(), middleware.IdentityFromContext(r.Context()), id); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Notice deleted successfully",
	})
}

// noticeIDParam writes a 404 for ids that cannot name a notice.
func noticeIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "noticeID"), 10, 64)
	if err != nil || id <= 0 {
		common.RespondWithDomainError(w, repository.ErrNoticeNotFound)
		return 0, false
	}
	return id, true
}
