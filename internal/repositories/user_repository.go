package repositories

import (
	"errors"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	CreateUser(user *models.User) error
	GetUserByID(id uint) (*models.User, error)
	GetUserByLogin(login string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByFirebaseUID(firebaseUID string) (*models.User, error)
	GetUsersByIDs(ids []uint) (map[uint]models.User, error)
	GetUsersByUsernames(usernames []string) ([]models.User, error)
	UsernameTaken(username string) (bool, error)
	EmailTaken(email string) (bool, error)
	UpdateUser(user *models.User) error
	UpdateFields(id uint, fields map[string]interface{}) error
	DeleteUser(id uint) error
	SearchUsers(query string, excludeIDs []uint, limit int) ([]models.User, error)
	SetPresence(id uint, online bool, at time.Time) error
	GetOnlineUserIDs() ([]uint, error)
	SetOffline(ids []uint, at time.Time) error
	AdjustPostsCount(userID uint, delta int) error
}

// PostgresUserRepository implements UserRepository for PostgreSQL
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser creates a new user. A username or email clash yields ErrAlreadyExists.
func (r *PostgresUserRepository) CreateUser(user *models.User) error {
	return translate(r.db.Create(user).Error)
}

// GetUserByID retrieves a user by ID
func (r *PostgresUserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByLogin finds a user by username or email, case-insensitively
func (r *PostgresUserRepository) GetUserByLogin(login string) (*models.User, error) {
	var user models.User
	login = strings.TrimSpace(login)
	err := r.db.Where("LOWER(username) = LOWER(?) OR LOWER(email) = LOWER(?)", login, login).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUserByFirebaseUID retrieves a user by Firebase UID
func (r *PostgresUserRepository) GetUserByFirebaseUID(firebaseUID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("firebase_uid = ?", firebaseUID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// GetUsersByIDs loads users keyed by ID. Missing or deleted users are absent from the map.
func (r *PostgresUserRepository) GetUsersByIDs(ids []uint) (map[uint]models.User, error) {
	result := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []models.User
	if err := r.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *PostgresUserRepository) GetUsersByUsernames(usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}
	var users []models.User
	err := r.db.Where("LOWER(username) IN ?", lowered).Find(&users).Error
	return users, err
}

// UsernameTaken also counts soft-deleted accounts, their usernames stay reserved
func (r *PostgresUserRepository) UsernameTaken(username string) (bool, error) {
	var count int64
	err := r.db.Unscoped().Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error
	return count > 0, err
}

func (r *PostgresUserRepository) EmailTaken(email string) (bool, error) {
	var count int64
	err := r.db.Unscoped().Model(&models.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error
	return count > 0, err
}

// UpdateUser saves every field of the user
func (r *PostgresUserRepository) UpdateUser(user *models.User) error {
	return translate(r.db.Save(user).Error)
}

// UpdateFields updates only the given columns
func (r *PostgresUserRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	res := r.db.Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser soft deletes a user, drops the device token and removes follows
// in both directions so the account leaves every feed and counter
func (r *PostgresUserRepository) DeleteUser(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var follows []models.Follow
		if err := tx.Where("follower_id = ? OR following_id = ?", id, id).Find(&follows).Error; err != nil {
			return err
		}
		for _, f := range follows {
			if err := deleteFollow(tx, f.FollowerID, f.FollowingID); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		if err := tx.Model(&models.User{}).Where("id = ?", id).
			Updates(map[string]interface{}{"device_token": "", "is_online": false}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SearchUsers matches username, display name or email case-insensitively
func (r *PostgresUserRepository) SearchUsers(query string, excludeIDs []uint, limit int) ([]models.User, error) {
	var users []models.User
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	q := r.db.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern, pattern)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if err := q.Order("followers_count DESC, id ASC").Limit(limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetPresence stores the online flag. last_seen_at moves on every change.
func (r *PostgresUserRepository) SetPresence(id uint, online bool, at time.Time) error {
	return r.db.Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_online": online, "last_seen_at": at}).Error
}

func (r *PostgresUserRepository) GetOnlineUserIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.User{}).Where("is_online = ?", true).Pluck("id", &ids).Error
	return ids, err
}

func (r *PostgresUserRepository) SetOffline(ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&models.User{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"is_online": false, "last_seen_at": at}).Error
}

// adjustCounter moves a user counter by delta without going below zero
func adjustCounter(tx *gorm.DB, userID uint, column string, delta int) error {
	q := tx.Model(&models.User{}).Where("id = ?", userID)
	if delta < 0 {
		q = q.Where(column+" >= ?", -delta)
	}
	return q.UpdateColumn(column, gorm.Expr(column+" + ?", delta)).Error
}

// AdjustPostsCount moves posts_count of a user by delta
func (r *PostgresUserRepository) AdjustPostsCount(userID uint, delta int) error {
	return adjustCounter(r.db, userID, "posts_count", delta)
}
