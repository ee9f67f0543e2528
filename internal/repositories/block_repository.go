package repositories

import (
	"errors"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// BlockRepository defines the interface for user blocks
type BlockRepository interface {
	BlockUser(blockerID, blockedID uint) error
	UnblockUser(blockerID, blockedID uint) error
	IsBlocked(blockerID, blockedID uint) (bool, error)
	IsBlockedEither(a, b uint) (bool, error)
	GetBlockedUsers(blockerID uint) ([]models.User, error)
	GetRelatedIDs(userID uint) ([]uint, error)
}

// PostgresBlockRepository implements BlockRepository for PostgreSQL
type PostgresBlockRepository struct {
	db *gorm.DB
}

func NewPostgresBlockRepository(db *gorm.DB) *PostgresBlockRepository {
	return &PostgresBlockRepository{db: db}
}

// BlockUser stores the block and removes follows in both directions
func (r *PostgresBlockRepository) BlockUser(blockerID, blockedID uint) error {
	return translate(r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}).Error; err != nil {
			return err
		}
		for _, pair := range [][2]uint{{blockerID, blockedID}, {blockedID, blockerID}} {
			if err := deleteFollow(tx, pair[0], pair[1]); err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		return nil
	}))
}

func (r *PostgresBlockRepository) UnblockUser(blockerID, blockedID uint) error {
	res := r.db.Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).Delete(&models.UserBlock{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresBlockRepository) IsBlocked(blockerID, blockedID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBlock{}).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).Count(&count).Error
	return count > 0, err
}

// IsBlockedEither reports a block in either direction between a and b
func (r *PostgresBlockRepository) IsBlockedEither(a, b uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}

func (r *PostgresBlockRepository) GetBlockedUsers(blockerID uint) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("id IN (?)",
		r.db.Table("user_blocks").Select("blocked_id").Where("blocker_id = ?", blockerID),
	).Order("username ASC").Find(&users).Error
	return users, err
}

// GetRelatedIDs returns every user the given user blocked or was blocked by
func (r *PostgresBlockRepository) GetRelatedIDs(userID uint) ([]uint, error) {
	var blocks []models.UserBlock
	if err := r.db.Where("blocker_id = ? OR blocked_id = ?", userID, userID).Find(&blocks).Error; err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(blocks))
	seen := make(map[uint]struct{}, len(blocks))
	for _, b := range blocks {
		other := b.BlockedID
		if other == userID {
			other = b.BlockerID
		}
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	return ids, nil
}
