package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pickupmap/internal/service"
)

// NotificationHandler serves the in-app inbox
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        *slog.Logger
}

func NewNotificationHandler(notifications *service.NotificationService, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger}
}

// Routes mounts the inbox endpoints; all require a bearer token.
func (h *NotificationHandler) Routes(m *Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(m.RequireAuth)
	r.Get("/", h.List)
	r.Post("/read-all", h.DismissAll)
	r.Post("/{id}/read", h.Dismiss)
	return r
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.notifications.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"notifications": notes})
}

// Dismiss handles POST /api/notifications/{id}/read
func (h *NotificationHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		badRequestResponse(w, errors.New("invalid notification id"))
		return
	}
	if err := h.notifications.Dismiss(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}

// DismissAll handles POST /api/notifications/read-all
func (h *NotificationHandler) DismissAll(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.DismissAll(r.Context(), UserIDFromContext(r.Context())); err != nil {
		respondWithError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"success": true})
}
