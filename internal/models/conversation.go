package models

import (
	"time"

	"gorm.io/datatypes"
)

// Conversation is a direct 1:1 conversation. The pair is stored normalised
// (UserAID < UserBID) so both users resolve to the same row.
type Conversation struct {
	ID                 uint       `json:"id" gorm:"primaryKey"`
	UserAID            uint       `json:"user_a_id" gorm:"uniqueIndex:idx_conversation_pair"`
	UserBID            uint       `json:"user_b_id" gorm:"uniqueIndex:idx_conversation_pair;index"`
	MessageCount       int64      `json:"message_count" gorm:"default:0"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty" gorm:"index"`
	LastMessagePreview string     `json:"last_message_preview" gorm:"size:120"`
	LastSenderID       uint       `json:"last_sender_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// PeerOf returns the other participant of the conversation
func (c *Conversation) PeerOf(userID uint) uint {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// HasParticipant reports whether userID is one of the two participants
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// ConversationParticipant keeps per-user read state of a conversation
type ConversationParticipant struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	ConversationID uint       `json:"conversation_id" gorm:"uniqueIndex:idx_participant"`
	UserID         uint       `json:"user_id" gorm:"uniqueIndex:idx_participant;index"`
	LastReadSeq    int64      `json:"last_read_seq" gorm:"default:0"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	UnreadCount    int64      `json:"unread_count" gorm:"default:0"`
	ClearedSeq     int64      `json:"cleared_seq" gorm:"default:0"` // history at or below this seq is hidden for the user
	CreatedAt      time.Time  `json:"created_at"`
}

// MessageBatch stores up to a configured number of consecutive messages as a JSON array
type MessageBatch struct {
	ID             uint                                `json:"id" gorm:"primaryKey"`
	ConversationID uint                                `json:"conversation_id" gorm:"uniqueIndex:idx_batch_no"`
	BatchNo        int                                 `json:"batch_no" gorm:"uniqueIndex:idx_batch_no"`
	FirstSeq       int64                               `json:"first_seq" gorm:"index"`
	LastSeq        int64                               `json:"last_seq"`
	Messages       datatypes.JSONSlice[BatchedMessage] `json:"messages"`
	CreatedAt      time.Time                           `json:"created_at"`
	UpdatedAt      time.Time                           `json:"updated_at"`
}

// BatchedMessage is a single direct message inside a MessageBatch
type BatchedMessage struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	SenderID  uint       `json:"sender_id"`
	Body      string     `json:"body"`
	MediaURL  string     `json:"media_url,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Deleted   bool       `json:"deleted,omitempty"`
}

// DirectMessage is the API shape of a message in a conversation
type DirectMessage struct {
	ID             string     `json:"id"`
	ConversationID uint       `json:"conversation_id"`
	Seq            int64      `json:"seq"`
	SenderID       uint       `json:"sender_id"`
	Body           string     `json:"body"`
	MediaURL       string     `json:"media_url,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	IsMine         bool       `json:"is_mine"`
	IsRead         bool       `json:"is_read"`
}

// ConversationSummary is one row of the conversation list
type ConversationSummary struct {
	ID                 uint        `json:"id"`
	Peer               UserCompact `json:"peer"`
	LastMessagePreview string      `json:"last_message_preview"`
	LastMessageAt      *time.Time  `json:"last_message_at,omitempty"`
	LastSenderID       uint        `json:"last_sender_id,omitempty"`
	UnreadCount        int64       `json:"unread_count"`
	PeerLastReadSeq    int64       `json:"peer_last_read_seq"`
	Blocked            bool        `json:"blocked"`
}

type StartConversationRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}

type SendMessageRequest struct {
	Body     string `json:"body" validate:"required_without=MediaURL,max=4000"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
}

type EditMessageRequest struct {
	Body string `json:"body" validate:"required,min=1,max=4000"`
}
