package repositories

import (
	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	CreateComment(comment *models.Comment) error
	GetCommentByID(id uint) (*models.Comment, error)
	GetCommentsByPostID(postID string, excludeUserIDs []uint, offset, limit int) ([]models.Comment, int64, error)
	GetReplies(parentID uint, excludeUserIDs []uint) ([]models.Comment, error)
	UpdateComment(comment *models.Comment) error
	DeleteComment(comment *models.Comment) (int64, error)
	AdjustReactionsCount(id uint, delta int) error
}

// PostgresCommentRepository implements CommentRepository for PostgreSQL
type PostgresCommentRepository struct {
	db *gorm.DB
}

// NewPostgresCommentRepository creates a new PostgresCommentRepository
func NewPostgresCommentRepository(db *gorm.DB) *PostgresCommentRepository {
	return &PostgresCommentRepository{db: db}
}

// CreateComment creates a comment and bumps the parent's replies_count for replies
func (r *PostgresCommentRepository) CreateComment(comment *models.Comment) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if comment.ParentID == nil {
			return nil
		}
		return tx.Model(&models.Comment{}).Where("id = ?", *comment.ParentID).
			UpdateColumn("replies_count", gorm.Expr("replies_count + 1")).Error
	})
}

// GetCommentByID retrieves a comment by ID
func (r *PostgresCommentRepository) GetCommentByID(id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.First(&comment, id).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

// GetCommentsByPostID returns top-level comments of a post, newest first
func (r *PostgresCommentRepository) GetCommentsByPostID(postID string, excludeUserIDs []uint, offset, limit int) ([]models.Comment, int64, error) {
	var (
		comments []models.Comment
		total    int64
	)
	q := r.db.Model(&models.Comment{}).Where("post_id = ? AND parent_id IS NULL", postID)
	if len(excludeUserIDs) > 0 {
		q = q.Where("user_id NOT IN ?", excludeUserIDs)
	}
	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&comments).Error; err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

// GetReplies returns the replies of a comment, oldest first
func (r *PostgresCommentRepository) GetReplies(parentID uint, excludeUserIDs []uint) ([]models.Comment, error) {
	var replies []models.Comment
	q := r.db.Where("parent_id = ?", parentID)
	if len(excludeUserIDs) > 0 {
		q = q.Where("user_id NOT IN ?", excludeUserIDs)
	}
	err := q.Order("created_at ASC, id ASC").Find(&replies).Error
	return replies, err
}

// UpdateComment updates an existing comment
func (r *PostgresCommentRepository) UpdateComment(comment *models.Comment) error {
	return r.db.Save(comment).Error
}

// DeleteComment soft deletes a comment together with its replies and
// returns how many comments were removed.
func (r *PostgresCommentRepository) DeleteComment(comment *models.Comment) (int64, error) {
	var removed int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Comment{}, comment.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		removed = res.RowsAffected

		if comment.ParentID != nil {
			return tx.Model(&models.Comment{}).Where("id = ? AND replies_count > 0", *comment.ParentID).
				UpdateColumn("replies_count", gorm.Expr("replies_count - 1")).Error
		}
		res = tx.Where("parent_id = ?", comment.ID).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed += res.RowsAffected
		return nil
	})
	return removed, err
}

// AdjustReactionsCount moves reactions_count by delta without going below zero
func (r *PostgresCommentRepository) AdjustReactionsCount(id uint, delta int) error {
	q := r.db.Model(&models.Comment{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("reactions_count >= ?", -delta)
	}
	return q.UpdateColumn("reactions_count", gorm.Expr("reactions_count + ?", delta)).Error
}
