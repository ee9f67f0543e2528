package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post represents a social media post stored in MongoDB
type Post struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID         uint               `json:"user_id" bson:"user_id"`
	Content        string             `json:"content" bson:"content"`
	ImageURLs      []string           `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	VideoURLs      []string           `json:"video_urls,omitempty" bson:"video_urls,omitempty"`
	Mentions       []string           `json:"mentions,omitempty" bson:"mentions,omitempty"`
	ReactionsCount int64              `json:"reactions_count" bson:"reactions_count"`
	CommentsCount  int64              `json:"comments_count" bson:"comments_count"`
	IsDeleted      bool               `json:"-" bson:"is_deleted"`
	DeletedAt      *time.Time         `json:"-" bson:"deleted_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content   string   `json:"content" validate:"required,min=1,max=2000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	VideoURLs []string `json:"video_urls,omitempty" validate:"omitempty,max=4,dive,url"`
}

// UpdatePostRequest defines the request body for updating an existing post
type UpdatePostRequest struct {
	Content   string   `json:"content,omitempty" validate:"omitempty,min=1,max=2000"`
	ImageURLs []string `json:"image_urls,omitempty" validate:"omitempty,max=10,dive,url"`
	VideoURLs []string `json:"video_urls,omitempty" validate:"omitempty,max=4,dive,url"`
}

// EnrichedPost is a post with author info and viewer-specific flags
type EnrichedPost struct {
	Post
	Author     UserCompact      `json:"author"`
	Reactions  map[string]int64 `json:"reactions"`
	MyReaction string           `json:"my_reaction,omitempty"`
	IsSaved    bool             `json:"is_saved"`
}
