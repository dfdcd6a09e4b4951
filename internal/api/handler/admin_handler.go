package handler

import (
	"net/http"

	"noticeboard/internal/api/middleware"
	"noticeboard/internal/app/service"
	"noticeboard/internal/common"

	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(as *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: as}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireIdentity)
		authed.Get("/statistics", h.statistics)
		authed.Get("/admins", h.listAdmins)
	})
}

func (h *AdminHandler) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Statistics(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"statistics": stats,
	})
}

func (h *AdminHandler) listAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.adminService.ListAdmins(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"admins":  admins,
	})
}
