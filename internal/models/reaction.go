package models

import "time"

const (
	ReactionTargetPost    = "post"
	ReactionTargetComment = "comment"
)

// ReactionTypes lists the accepted reaction kinds
var ReactionTypes = []string{"like", "love", "haha", "wow", "sad", "angry"}

// Reaction is a single user's reaction on a post or comment
type Reaction struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     uint      `json:"user_id" gorm:"uniqueIndex:idx_reaction_user_target"`
	TargetType string    `json:"target_type" gorm:"size:10;uniqueIndex:idx_reaction_user_target;index:idx_reaction_target"`
	TargetID   string    `json:"target_id" gorm:"size:40;uniqueIndex:idx_reaction_user_target;index:idx_reaction_target"`
	Type       string    `json:"type" gorm:"size:10"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SetReactionRequest defines the request body for reacting to a target
type SetReactionRequest struct {
	Type string `json:"type" validate:"required,oneof=like love haha wow sad angry"`
}

// ReactionSummary aggregates reactions on a target
type ReactionSummary struct {
	Total  int64            `json:"total"`
	Counts map[string]int64 `json:"counts"`
	Mine   string           `json:"mine,omitempty"`
}
