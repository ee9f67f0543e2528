package models

import "time"

// Follow is a one-directional follow relationship. The pair is unique.
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}

// FollowListEntry is a user in a followers or following list, with the
// viewer's own relation to that user
type FollowListEntry struct {
	UserCompact
	IsFollowing bool `json:"is_following"`
	IsMe        bool `json:"is_me"`
}
