package httpapi

import (
	"net/http"
	"strconv"

	"placement_workflow/internal/app"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NotificationHandlers serve the caller's own notifications.
type NotificationHandlers struct {
	notifs *app.NotificationService
	logger *logrus.Entry
}

func NewNotificationHandlers(notifs *app.NotificationService, logger *logrus.Entry) *NotificationHandlers {
	return &NotificationHandlers{notifs: notifs, logger: logger}
}

type notificationListData struct {
	Items       []notificationView `json:"items"`
	UnreadCount int                `json:"unreadCount"`
}

func (h *NotificationHandlers) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	unreadOnly := false
	if raw := r.URL.Query().Get("unreadOnly"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeFail(w, http.StatusBadRequest, "unreadOnly must be a boolean")
			return
		}
		unreadOnly = v
	}
	page, err := intParam(r, "page")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "page must be a number")
		return
	}
	pageSize, err := intParam(r, "pageSize")
	if err != nil {
		writeFail(w, http.StatusBadRequest, "pageSize must be a number")
		return
	}

	result, err := h.notifs.List(r.Context(), actor.ID, unreadOnly, page, pageSize)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	items := make([]notificationView, 0, len(result.Items))
	for _, n := range result.Items {
		items = append(items, toNotificationView(n))
	}
	writePage(w, notificationListData{Items: items, UnreadCount: result.UnreadCount},
		buildMeta(result.TotalCount, result.Page, result.PageSize, result.HasNext, result.HasPrev))
}

func (h *NotificationHandlers) UnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	count, err := h.notifs.UnreadCount(r.Context(), actor.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, "", map[string]int{"unreadCount": count})
}

type markReadRequest struct {
	IDs []uuid.UUID `json:"ids"`
	All bool        `json:"all"`
}

func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req markReadRequest
	if err := decodeBody(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid body")
		return
	}

	var (
		changed int
		err     error
	)
	if req.All {
		changed, err = h.notifs.MarkAllRead(r.Context(), actor.ID)
	} else {
		changed, err = h.notifs.MarkRead(r.Context(), actor.ID, req.IDs)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeOK(w, "Notifications marked as read", map[string]int{"updated": changed})
}
