package handlers

import (
	"net/http"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
	now                    func() time.Time
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
		now:                    time.Now,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.DELETE("/notifications/:id", h.DeleteNotification)
}

func (h *NotificationHandler) enrichNotifications(notifications []models.Notification) ([]models.EnrichedNotification, error) {
	enriched := make([]models.EnrichedNotification, len(notifications))
	if len(notifications) == 0 {
		return enriched, nil
	}
	actorIDs := make([]uint, len(notifications))
	for i, n := range notifications {
		actorIDs[i] = n.ActorID
	}
	actors, err := h.userRepository.GetUsersByIDs(actorIDs)
	if err != nil {
		return nil, err
	}
	for i, n := range notifications {
		enriched[i] = models.EnrichedNotification{Notification: n}
		if actor, ok := actors[n.ActorID]; ok {
			enriched[i].Actor = actor.ToCompact()
		} else {
			enriched[i].Actor = models.UserCompact{ID: n.ActorID, DisplayName: "Deleted user"}
		}
	}
	return enriched, nil
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20, 50)

	notifications, total, err := h.notificationRepository.GetByRecipientID(currentUserID, page, limit)
	if err != nil {
		return mapServiceError(err)
	}
	enriched, err := h.enrichNotifications(notifications)
	if err != nil {
		return mapServiceError(err)
	}
	return successWithMeta(c, echo.Map{"notifications": enriched}, paginationMeta(page, limit, total))
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}

	today, yesterday, thisWeek, older, err := h.notificationRepository.GetGrouped(currentUserID, h.now())
	if err != nil {
		return mapServiceError(err)
	}
	unreadCount, err := h.notificationRepository.GetUnreadCount(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}

	groups := echo.Map{}
	for name, list := range map[string][]models.Notification{
		"today":     today,
		"yesterday": yesterday,
		"thisWeek":  thisWeek,
		"older":     older,
	} {
		enriched, err := h.enrichNotifications(list)
		if err != nil {
			return mapServiceError(err)
		}
		groups[name] = enriched
	}

	return success(c, http.StatusOK, echo.Map{
		"notifications": groups,
		"unreadCount":   unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.notificationRepository.GetUnreadCount(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks one of the caller's notifications as read. Repeating it is a no-op.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	notifID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.notificationRepository.MarkAsRead(notifID, currentUserID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"success": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	updated, err := h.notificationRepository.MarkAllAsRead(currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"success": true, "updated": updated})
}

// DeleteNotification removes one of the caller's notifications
func (h *NotificationHandler) DeleteNotification(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	notifID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.notificationRepository.DeleteNotification(notifID, currentUserID); err != nil {
		if err == repositories.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
