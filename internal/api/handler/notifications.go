package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/swasthyasetu/swasthyasetu/internal/api/models"
	"github.com/swasthyasetu/swasthyasetu/internal/api/response"
	"github.com/swasthyasetu/swasthyasetu/internal/notify"
)

// NotificationsHandler serves the notification store and the live-update feed.
type NotificationsHandler struct {
	store *notify.Store
	feed  *notify.Feed
}

// NewNotificationsHandler creates a new NotificationsHandler.
func NewNotificationsHandler(store *notify.Store, feed *notify.Feed) *NotificationsHandler {
	return &NotificationsHandler{store: store, feed: feed}
}

// ListNotifications handles GET /v1/notifications.
func (h *NotificationsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	items := h.store.List()
	response.JSON(w, r, http.StatusOK, models.NotificationList{
		Items: items,
		Meta:  models.ListMeta{Count: len(items)},
	})
}

// ClearNotifications handles DELETE /v1/notifications.
func (h *NotificationsHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Cleared{Cleared: h.store.Clear()})
}

// DismissNotification handles DELETE /v1/notifications/{notificationId}.
func (h *NotificationsHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "notificationId"), 10, 64)
	if err != nil {
		response.BadRequest(w, r, "notificationId must be an integer", nil)
		return
	}

	if !h.store.Dismiss(notify.ID(id)) {
		response.NotFound(w, r, "notification not found")
		return
	}
	response.NoContent(w, r)
}

// ListUpdates handles GET /v1/updates.
func (h *NotificationsHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	items := h.feed.List()
	response.JSON(w, r, http.StatusOK, models.UpdateList{
		Items: items,
		Meta:  models.ListMeta{Count: len(items)},
	})
}
