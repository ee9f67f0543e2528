package repositories

import (
	"errors"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// ReactionRepository defines the interface for reactions on posts and comments
type ReactionRepository interface {
	// SetReaction creates or switches the user's reaction. It returns whether
	// a new row was created and the previous type when switching.
	SetReaction(userID uint, targetType, targetID, reactionType string) (created bool, previous string, err error)
	DeleteReaction(userID uint, targetType, targetID string) (*models.Reaction, error)
	GetReaction(userID uint, targetType, targetID string) (*models.Reaction, error)
	GetSummary(targetType, targetID string) (map[string]int64, error)
	GetCountsForTargets(targetType string, targetIDs []string) (map[string]map[string]int64, error)
	GetUserReactions(userID uint, targetType string, targetIDs []string) (map[string]string, error)
	DeleteByTarget(targetType, targetID string) error
}

// PostgresReactionRepository implements ReactionRepository for PostgreSQL
type PostgresReactionRepository struct {
	db *gorm.DB
}

// NewPostgresReactionRepository creates a new PostgresReactionRepository
func NewPostgresReactionRepository(db *gorm.DB) *PostgresReactionRepository {
	return &PostgresReactionRepository{db: db}
}

func (r *PostgresReactionRepository) SetReaction(userID uint, targetType, targetID, reactionType string) (bool, string, error) {
	var (
		created  bool
		previous string
	)
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := forUpdate(tx).Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			created = true
			return tx.Create(&models.Reaction{
				UserID:     userID,
				TargetType: targetType,
				TargetID:   targetID,
				Type:       reactionType,
			}).Error
		}
		if err != nil {
			return err
		}
		previous = existing.Type
		if existing.Type == reactionType {
			return nil
		}
		return tx.Model(&existing).Update("type", reactionType).Error
	})
	if err != nil {
		return false, "", translate(err)
	}
	return created, previous, nil
}

// DeleteReaction removes the user's reaction and returns the removed row
func (r *PostgresReactionRepository) DeleteReaction(userID uint, targetType, targetID string) (*models.Reaction, error) {
	var removed models.Reaction
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
			First(&removed).Error; err != nil {
			return err
		}
		return tx.Delete(&removed).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &removed, nil
}

func (r *PostgresReactionRepository) GetReaction(userID uint, targetType, targetID string) (*models.Reaction, error) {
	var reaction models.Reaction
	if err := r.db.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, targetType, targetID).
		First(&reaction).Error; err != nil {
		return nil, translate(err)
	}
	return &reaction, nil
}

type reactionCount struct {
	TargetID string
	Type     string
	Count    int64
}

// GetSummary counts reactions per type on one target
func (r *PostgresReactionRepository) GetSummary(targetType, targetID string) (map[string]int64, error) {
	counts, err := r.GetCountsForTargets(targetType, []string{targetID})
	if err != nil {
		return nil, err
	}
	if c, ok := counts[targetID]; ok {
		return c, nil
	}
	return map[string]int64{}, nil
}

// GetCountsForTargets counts reactions per type for many targets in one query
func (r *PostgresReactionRepository) GetCountsForTargets(targetType string, targetIDs []string) (map[string]map[string]int64, error) {
	result := make(map[string]map[string]int64, len(targetIDs))
	if len(targetIDs) == 0 {
		return result, nil
	}
	var rows []reactionCount
	err := r.db.Model(&models.Reaction{}).
		Select("target_id, type, COUNT(*) AS count").
		Where("target_type = ? AND target_id IN ?", targetType, targetIDs).
		Group("target_id, type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if result[row.TargetID] == nil {
			result[row.TargetID] = make(map[string]int64)
		}
		result[row.TargetID][row.Type] = row.Count
	}
	return result, nil
}

// GetUserReactions returns the user's reaction type keyed by target ID
func (r *PostgresReactionRepository) GetUserReactions(userID uint, targetType string, targetIDs []string) (map[string]string, error) {
	result := make(map[string]string)
	if len(targetIDs) == 0 {
		return result, nil
	}
	var reactions []models.Reaction
	err := r.db.Where("user_id = ? AND target_type = ? AND target_id IN ?", userID, targetType, targetIDs).
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	for _, re := range reactions {
		result[re.TargetID] = re.Type
	}
	return result, nil
}

func (r *PostgresReactionRepository) DeleteByTarget(targetType, targetID string) error {
	return r.db.Where("target_type = ? AND target_id = ?", targetType, targetID).Delete(&models.Reaction{}).Error
}
