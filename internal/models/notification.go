package models

import "time"

const (
	NotificationFollow   = "follow"
	NotificationReaction = "reaction"
	NotificationComment  = "comment"
	NotificationReply    = "reply"
	NotificationMention  = "mention"
	NotificationNewPost  = "new_post"
)

// Notification represents a user notification (PostgreSQL)
type Notification struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Type            string     `json:"type" gorm:"size:30;index"`
	ActorID         uint       `json:"actor_id" gorm:"index"`
	RecipientID     uint       `json:"recipient_id" gorm:"index"`
	TargetID        string     `json:"target_id" gorm:"size:40"` // post ID, comment ID, user ID
	TargetType      string     `json:"target_type" gorm:"size:20"`
	PreviewImageURL string     `json:"preview_image_url"`
	Message         string     `json:"message"`
	IsRead          bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at" gorm:"index"`
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	Notification
	Actor UserCompact `json:"actor"`
}
