package handlers

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
)

// Notifier is the notification fan-out used by the social handlers.
// *services.NotificationService satisfies it.
type Notifier interface {
	Notify(ctx context.Context, p services.NotifyParams) (*models.Notification, error)
	NotifyMentions(ctx context.Context, actorID uint, text, targetID, targetType string, skip ...uint)
	NotifyFollowersAsync(post models.Post)
	Retract(notifType string, actorID, recipientID uint, targetID string)
}
