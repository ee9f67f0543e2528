package models

import "gorm.io/gorm"

// Comment represents a comment on a post. Replies point at a top-level comment through ParentID.
type Comment struct {
	gorm.Model
	PostID         string `json:"post_id" gorm:"index"` // MongoDB ObjectID as hex string
	UserID         uint   `json:"user_id" gorm:"index"`
	ParentID       *uint  `json:"parent_id,omitempty" gorm:"index"`
	Content        string `json:"content" gorm:"type:text"`
	RepliesCount   int64  `json:"replies_count" gorm:"default:0"`
	ReactionsCount int64  `json:"reactions_count" gorm:"default:0"`
}

// CreateCommentRequest defines the request body for creating a new comment
type CreateCommentRequest struct {
	Content  string `json:"content" validate:"required,min=1,max=1000"`
	ParentID *uint  `json:"parent_id,omitempty"`
}

// UpdateCommentRequest defines the request body for updating an existing comment
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required,min=1,max=1000"`
}

// CommentWithAuthor is the API shape of a comment
type CommentWithAuthor struct {
	Comment
	Author     UserCompact `json:"author"`
	MyReaction string      `json:"my_reaction,omitempty"`
}
