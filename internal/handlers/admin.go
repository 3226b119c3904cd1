package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/types"
)

// AdminHandler serves user management endpoints.
type AdminHandler struct {
	users  *services.UserService
	logger *slog.Logger
}

func NewAdminHandler(users *services.UserService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{users: users, logger: logger}
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteUser removes the user and all of their tasks.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())

	if err := h.users.Delete(r.Context(), actor.ID, chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "User deleted successfully")
}
