package handler

import (
	"encoding/json"
	"net/http"

	"noticeboard/internal/app/service"
	"noticeboard/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/student/login", h.studentLogin)
	r.Post("/admin/login", h.adminLogin)
}

func (h *AuthHandler) studentLogin(w http.ResponseWriter, r *http.Request) {
	var req service.StudentLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	resp, err := h.authService.StudentLogin(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req service.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	resp, err := h.authService.AdminLogin(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}
