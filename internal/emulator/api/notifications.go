package api

import (
	"log/slog"
	"net/http"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/store"
)

// NotificationsHandler handles notification endpoints.
type NotificationsHandler struct {
	store *store.Store
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(s *store.Store) *NotificationsHandler {
	return &NotificationsHandler{store: s}
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.store.ListNotifications(userID(r))
	if err != nil {
		slog.Error("failed to list notifications", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	writeJSON(w, http.StatusOK, "Notifications retrieved successfully", notifications)
}

// MarkAsRead handles PUT /api/notifications/mark-as-read.
func (h *NotificationsHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	changed, err := h.store.MarkNotificationsRead(userID(r))
	if err != nil {
		slog.Error("failed to mark notifications read", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to mark notifications as read")
		return
	}

	writeJSON(w, http.StatusOK, "Notifications marked as read", map[string]int{"updated": changed})
}
