package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoomRoleOwner  = "owner"
	RoomRoleAdmin  = "admin"
	RoomRoleMember = "member"
)

// ChatRoom is a group chat
type ChatRoom struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Name          string         `json:"name" gorm:"size:80"`
	Description   string         `json:"description" gorm:"size:300"`
	OwnerID       uint           `json:"owner_id" gorm:"index"`
	IsPrivate     bool           `json:"is_private" gorm:"default:false"`
	MembersCount  int64          `json:"members_count" gorm:"default:0"`
	LastMessageAt *time.Time     `json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// ChatRoomMember links a user to a room with a role and read state
type ChatRoomMember struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	RoomID            uint      `json:"room_id" gorm:"uniqueIndex:idx_room_member"`
	UserID            uint      `json:"user_id" gorm:"uniqueIndex:idx_room_member;index"`
	Role              string    `json:"role" gorm:"size:10;default:'member'"`
	LastReadMessageID uint      `json:"last_read_message_id" gorm:"default:0"`
	JoinedAt          time.Time `json:"joined_at"`
}

// CanManage reports whether the member may add or remove other members
func (m *ChatRoomMember) CanManage() bool {
	return m.Role == RoomRoleOwner || m.Role == RoomRoleAdmin
}

// ChatMessage is a message posted to a room
type ChatMessage struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	RoomID    uint           `json:"room_id" gorm:"index"`
	SenderID  uint           `json:"sender_id" gorm:"index"`
	Body      string         `json:"body" gorm:"type:text"`
	MediaURL  string         `json:"media_url,omitempty"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// RoomSummary is one row of the caller's room list
type RoomSummary struct {
	ChatRoom
	Role        string `json:"role"`
	UnreadCount int64  `json:"unread_count"`
}

// RoomMessage is the API shape of a room message
type RoomMessage struct {
	ChatMessage
	Sender UserCompact `json:"sender"`
}

type CreateRoomRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=80"`
	Description string `json:"description" validate:"max=300"`
	IsPrivate   bool   `json:"is_private"`
	MemberIDs   []uint `json:"member_ids" validate:"max=200"`
}

type AddRoomMemberRequest struct {
	UserID uint `json:"user_id" validate:"required"`
}
