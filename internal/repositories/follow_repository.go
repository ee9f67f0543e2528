package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// FollowRepository defines the interface for follow data operations
type FollowRepository interface {
	CreateFollow(follow *models.Follow) error
	DeleteFollow(followerID, followingID uint) error
	IsFollowing(followerID, followingID uint) (bool, error)
	GetFollowers(userID uint, excludeIDs []uint) ([]models.User, error)
	GetFollowing(userID uint, excludeIDs []uint) ([]models.User, error)
	GetFollowingIDs(userID uint) ([]uint, error)
	GetFollowerIDs(userID uint) ([]uint, error)
}

// PostgresFollowRepository implements FollowRepository for PostgreSQL
type PostgresFollowRepository struct {
	db *gorm.DB
}

// NewPostgresFollowRepository creates a new PostgresFollowRepository
func NewPostgresFollowRepository(db *gorm.DB) *PostgresFollowRepository {
	return &PostgresFollowRepository{db: db}
}

// CreateFollow stores the relation and bumps both users' counters
func (r *PostgresFollowRepository) CreateFollow(follow *models.Follow) error {
	return translate(r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(follow).Error; err != nil {
			return err
		}
		if err := adjustCounter(tx, follow.FollowerID, "following_count", 1); err != nil {
			return err
		}
		return adjustCounter(tx, follow.FollowingID, "followers_count", 1)
	}))
}

// DeleteFollow removes the relation, ErrNotFound when it does not exist
func (r *PostgresFollowRepository) DeleteFollow(followerID, followingID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return deleteFollow(tx, followerID, followingID)
	})
}

func deleteFollow(tx *gorm.DB, followerID, followingID uint) error {
	res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	if err := adjustCounter(tx, followerID, "following_count", -1); err != nil {
		return err
	}
	return adjustCounter(tx, followingID, "followers_count", -1)
}

func (r *PostgresFollowRepository) IsFollowing(followerID, followingID uint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Follow{}).Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresFollowRepository) GetFollowers(userID uint, excludeIDs []uint) ([]models.User, error) {
	var users []models.User
	q := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("follower_id").Where("following_id = ?", userID),
	)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	err := q.Order("username ASC").Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowing(userID uint, excludeIDs []uint) ([]models.User, error) {
	var users []models.User
	q := r.db.Where("id IN (?)",
		r.db.Table("follows").Select("following_id").Where("follower_id = ?", userID),
	)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	err := q.Order("username ASC").Find(&users).Error
	return users, err
}

func (r *PostgresFollowRepository) GetFollowingIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("follower_id = ?", userID).Pluck("following_id", &ids).Error
	return ids, err
}

func (r *PostgresFollowRepository) GetFollowerIDs(userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Follow{}).Where("following_id = ?", userID).Pluck("follower_id", &ids).Error
	return ids, err
}
