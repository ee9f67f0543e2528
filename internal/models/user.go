package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type User struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Username       string         `json:"username" gorm:"size:30;uniqueIndex"`
	Email          string         `json:"email" gorm:"size:190;uniqueIndex"`
	Password       string         `json:"-"` // bcrypt hash
	DisplayName    string         `json:"display_name" gorm:"size:60"`
	Bio            string         `json:"bio" gorm:"size:300"`
	AvatarURL      string         `json:"avatar_url"`
	FirebaseUID    *string        `json:"-" gorm:"uniqueIndex"` // nil until linked with a Firebase account
	DeviceToken    string         `json:"-"`                    // FCM registration token
	FollowersCount int64          `json:"followers_count" gorm:"default:0"`
	FollowingCount int64          `json:"following_count" gorm:"default:0"`
	PostsCount     int64          `json:"posts_count" gorm:"default:0"`
	IsOnline       bool           `json:"is_online" gorm:"default:false;index"`
	LastSeenAt     *time.Time     `json:"last_seen_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// UserCompact is the author/actor shape embedded in other responses
type UserCompact struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	IsOnline    bool   `json:"is_online"`
}

// ToCompact converts a user into its compact representation
func (u *User) ToCompact() UserCompact {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return UserCompact{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: name,
		AvatarURL:   u.AvatarURL,
		IsOnline:    u.IsOnline,
	}
}

// Name returns the display name, falling back to the username
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// UserProfile is a user as seen by another user
type UserProfile struct {
	User
	IsFollowing bool `json:"is_following"`
	FollowsYou  bool `json:"follows_you"`
	IsBlocked   bool `json:"is_blocked"`
}

type SignupRequest struct {
	Username    string `json:"username" validate:"required,username"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	DisplayName string `json:"display_name" validate:"omitempty,min=1,max=60"`
}

type SignInRequest struct {
	Login    string `json:"login" validate:"required"` // username or email
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type UpdateUserRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=60"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=300"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

type DeviceTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}
