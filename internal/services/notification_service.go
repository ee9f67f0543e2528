package services

import (
	"context"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/sirupsen/logrus"
)

const fanOutBatchSize = 500

// NotifyParams describes a notification to deliver. Message is derived from
// the type and actor when empty.
type NotifyParams struct {
	Type            string
	ActorID         uint
	RecipientID     uint
	TargetID        string
	TargetType      string
	PreviewImageURL string
	Message         string
}

// NotificationService stores notifications and delivers them over the hub and FCM
type NotificationService struct {
	repo    repositories.NotificationRepository
	users   repositories.UserRepository
	blocks  repositories.BlockRepository
	follows repositories.FollowRepository
	events  EventPublisher
	pusher  Pusher
	log     *logrus.Entry
}

// NewNotificationService creates the service. pusher may be nil when push is not configured.
func NewNotificationService(
	repo repositories.NotificationRepository,
	users repositories.UserRepository,
	blocks repositories.BlockRepository,
	follows repositories.FollowRepository,
	events EventPublisher,
	pusher Pusher,
	log *logrus.Entry,
) *NotificationService {
	if events == nil {
		events = NopPublisher
	}
	return &NotificationService{
		repo:    repo,
		users:   users,
		blocks:  blocks,
		follows: follows,
		events:  events,
		pusher:  pusher,
		log:     log,
	}
}

func defaultMessage(notifType, actorName, targetType string) string {
	switch notifType {
	case models.NotificationFollow:
		return fmt.Sprintf("%s started following you", actorName)
	case models.NotificationReaction:
		return fmt.Sprintf("%s reacted to your %s", actorName, targetType)
	case models.NotificationComment:
		return fmt.Sprintf("%s commented on your post", actorName)
	case models.NotificationReply:
		return fmt.Sprintf("%s replied to your comment", actorName)
	case models.NotificationMention:
		return fmt.Sprintf("%s mentioned you in a %s", actorName, targetType)
	case models.NotificationNewPost:
		return fmt.Sprintf("%s shared a new post", actorName)
	}
	return actorName
}

// Notify stores and delivers a single notification. It returns nil without
// error when the notification is suppressed: self actions, blocked pairs and
// duplicates of an unread reaction or follow notification.
func (s *NotificationService) Notify(ctx context.Context, p NotifyParams) (*models.Notification, error) {
	if p.ActorID == p.RecipientID || p.RecipientID == 0 {
		return nil, nil
	}
	blocked, err := s.blocks.IsBlockedEither(p.ActorID, p.RecipientID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, nil
	}
	if p.Type == models.NotificationReaction || p.Type == models.NotificationFollow {
		dup, err := s.repo.HasUnreadDuplicate(p.Type, p.ActorID, p.RecipientID, p.TargetID)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, nil
		}
	}

	actor, err := s.users.GetUserByID(p.ActorID)
	if err != nil {
		return nil, err
	}
	if p.Message == "" {
		p.Message = defaultMessage(p.Type, actor.Name(), p.TargetType)
	}

	n := &models.Notification{
		Type:            p.Type,
		ActorID:         p.ActorID,
		RecipientID:     p.RecipientID,
		TargetID:        p.TargetID,
		TargetType:      p.TargetType,
		PreviewImageURL: p.PreviewImageURL,
		Message:         p.Message,
	}
	if err := s.repo.CreateNotification(n); err != nil {
		return nil, err
	}
	metrics.RecordNotification(n.Type)

	s.events.PublishToUser(n.RecipientID, "notification.created", models.EnrichedNotification{
		Notification: *n,
		Actor:        actor.ToCompact(),
	})
	s.push(ctx, n)
	return n, nil
}

// NotifyMentions notifies every user mentioned in text except those in skip
func (s *NotificationService) NotifyMentions(ctx context.Context, actorID uint, text, targetID, targetType string, skip ...uint) {
	names := ExtractMentions(text)
	if len(names) == 0 {
		return
	}
	users, err := s.users.GetUsersByUsernames(names)
	if err != nil {
		s.log.WithError(err).Warn("failed to resolve mentions")
		return
	}
	skipped := make(map[uint]struct{}, len(skip))
	for _, id := range skip {
		skipped[id] = struct{}{}
	}
	for _, u := range users {
		if _, ok := skipped[u.ID]; ok {
			continue
		}
		if _, err := s.Notify(ctx, NotifyParams{
			Type:        models.NotificationMention,
			ActorID:     actorID,
			RecipientID: u.ID,
			TargetID:    targetID,
			TargetType:  targetType,
		}); err != nil {
			s.log.WithError(err).WithField("recipient_id", u.ID).Warn("failed to send mention notification")
		}
	}
}

// NotifyFollowers writes a new_post notification for every follower of the
// author not in a block relation with them. Rows are inserted in batches and
// followers are not pushed to.
func (s *NotificationService) NotifyFollowers(ctx context.Context, post *models.Post) (int, error) {
	followerIDs, err := s.follows.GetFollowerIDs(post.UserID)
	if err != nil {
		return 0, err
	}
	if len(followerIDs) == 0 {
		return 0, nil
	}
	related, err := s.blocks.GetRelatedIDs(post.UserID)
	if err != nil {
		return 0, err
	}
	excluded := make(map[uint]struct{}, len(related))
	for _, id := range related {
		excluded[id] = struct{}{}
	}
	author, err := s.users.GetUserByID(post.UserID)
	if err != nil {
		return 0, err
	}

	preview := ""
	if len(post.ImageURLs) > 0 {
		preview = post.ImageURLs[0]
	}
	message := defaultMessage(models.NotificationNewPost, author.Name(), models.ReactionTargetPost)
	notifications := make([]models.Notification, 0, len(followerIDs))
	for _, id := range followerIDs {
		if _, ok := excluded[id]; ok || id == post.UserID {
			continue
		}
		notifications = append(notifications, models.Notification{
			Type:            models.NotificationNewPost,
			ActorID:         post.UserID,
			RecipientID:     id,
			TargetID:        post.ID.Hex(),
			TargetType:      models.ReactionTargetPost,
			PreviewImageURL: preview,
			Message:         message,
		})
	}
	if err := s.repo.CreateNotifications(notifications, fanOutBatchSize); err != nil {
		return 0, err
	}

	compact := author.ToCompact()
	for _, n := range notifications {
		metrics.RecordNotification(n.Type)
		s.events.PublishToUser(n.RecipientID, "notification.created", models.EnrichedNotification{
			Notification: n,
			Actor:        compact,
		})
	}
	return len(notifications), nil
}

// NotifyFollowersAsync runs NotifyFollowers in the background
func (s *NotificationService) NotifyFollowersAsync(post models.Post) {
	go func() {
		n, err := s.NotifyFollowers(context.Background(), &post)
		if err != nil {
			s.log.WithError(err).WithField("post_id", post.ID.Hex()).Error("follower fan-out failed")
			return
		}
		s.log.WithFields(logrus.Fields{"post_id": post.ID.Hex(), "count": n}).Debug("follower fan-out done")
	}()
}

// Retract deletes unread notifications of an undone action
func (s *NotificationService) Retract(notifType string, actorID, recipientID uint, targetID string) {
	n, err := s.repo.DeleteUnread(notifType, actorID, recipientID, targetID)
	if err != nil {
		s.log.WithError(err).Warn("failed to retract notification")
		return
	}
	if n > 0 {
		s.events.PublishToUser(recipientID, "notification.retracted", map[string]interface{}{
			"type":      notifType,
			"actor_id":  actorID,
			"target_id": targetID,
		})
	}
}

func (s *NotificationService) push(ctx context.Context, n *models.Notification) {
	if s.pusher == nil {
		return
	}
	recipient, err := s.users.GetUserByID(n.RecipientID)
	if err != nil || recipient.DeviceToken == "" {
		return
	}
	_, err = s.pusher.Send(ctx, &messaging.Message{
		Token: recipient.DeviceToken,
		Notification: &messaging.Notification{
			Body: n.Message,
		},
		Data: map[string]string{
			"notification_id": strconv.FormatUint(uint64(n.ID), 10),
			"type":            n.Type,
			"target_id":       n.TargetID,
			"target_type":     n.TargetType,
		},
	})
	if err != nil {
		metrics.RecordPushFailure()
		s.log.WithError(err).WithField("recipient_id", n.RecipientID).Warn("push notification failed")
	}
}
