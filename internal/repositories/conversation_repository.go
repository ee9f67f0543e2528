package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// ConversationRepository stores direct conversations, their read state and message batches
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	GetParticipant(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, error)
	GetParticipants(ctx context.Context, conversationIDs []uint) ([]models.ConversationParticipant, error)
	ListForUser(ctx context.Context, userID uint, offset, limit int) ([]models.Conversation, int64, error)
	AppendMessage(ctx context.Context, conversationID uint, msg models.BatchedMessage, batchSize int) (*models.BatchedMessage, *models.Conversation, error)
	GetBatchBefore(ctx context.Context, conversationID uint, beforeSeq int64) (*models.MessageBatch, error)
	UpdateMessage(ctx context.Context, conversationID uint, seq int64, apply func(*models.BatchedMessage) error) (*models.BatchedMessage, error)
	MarkRead(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, bool, error)
	ClearHistory(ctx context.Context, conversationID, userID uint) error
	UnreadTotal(ctx context.Context, userID uint) (int64, error)
}

// PostgresConversationRepository implements ConversationRepository with gorm
type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewPostgresConversationRepository(db *gorm.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

// NormalizePair orders a user pair so (a, b) and (b, a) address the same conversation
func NormalizePair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// GetOrCreate returns the conversation between two users, creating it and
// both participant rows on first use. The bool reports creation.
func (r *PostgresConversationRepository) GetOrCreate(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error) {
	a, b := NormalizePair(userA, userB)
	db := r.db.WithContext(ctx)

	var conv models.Conversation
	err := db.Where("user_a_id = ? AND user_b_id = ?", a, b).First(&conv).Error
	if err == nil {
		return &conv, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv = models.Conversation{UserAID: a, UserBID: b}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		return tx.Create([]models.ConversationParticipant{
			{ConversationID: conv.ID, UserID: a},
			{ConversationID: conv.ID, UserID: b},
		}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a concurrent create
			var existing models.Conversation
			if err := db.Where("user_a_id = ? AND user_b_id = ?", a, b).First(&existing).Error; err != nil {
				return nil, false, err
			}
			return &existing, false, nil
		}
		return nil, false, err
	}
	return &conv, true, nil
}

func (r *PostgresConversationRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *PostgresConversationRepository) GetParticipant(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, error) {
	var p models.ConversationParticipant
	if err := r.db.WithContext(ctx).Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PostgresConversationRepository) GetParticipants(ctx context.Context, conversationIDs []uint) ([]models.ConversationParticipant, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	var ps []models.ConversationParticipant
	err := r.db.WithContext(ctx).Where("conversation_id IN ?", conversationIDs).Find(&ps).Error
	return ps, err
}

// ListForUser returns the user's conversations that still have visible
// history for them (or no messages yet), most recent activity first.
func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uint, offset, limit int) ([]models.Conversation, int64, error) {
	var (
		convs []models.Conversation
		total int64
	)
	q := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Joins("JOIN conversation_participants p ON p.conversation_id = conversations.id AND p.user_id = ?", userID).
		Where("conversations.message_count = 0 OR conversations.message_count > p.cleared_seq").
		Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Select("conversations.*").
		Order("COALESCE(conversations.last_message_at, conversations.created_at) DESC, conversations.id DESC").
		Offset(offset).Limit(limit).Find(&convs).Error
	return convs, total, err
}

// AppendMessage assigns the next seq, stores the message in the open batch
// (starting a new one when it holds batchSize messages) and moves the read
// state of both participants.
func (r *PostgresConversationRepository) AppendMessage(ctx context.Context, conversationID uint, msg models.BatchedMessage, batchSize int) (*models.BatchedMessage, *models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&conv, conversationID).Error; err != nil {
			return err
		}
		msg.Seq = conv.MessageCount + 1

		var batch models.MessageBatch
		err := tx.Where("conversation_id = ?", conversationID).Order("batch_no DESC").First(&batch).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && len(batch.Messages) >= batchSize):
			batch = models.MessageBatch{
				ConversationID: conversationID,
				BatchNo:        batch.BatchNo + 1,
				FirstSeq:       msg.Seq,
				LastSeq:        msg.Seq,
				Messages:       []models.BatchedMessage{msg},
			}
			if err := tx.Create(&batch).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			batch.Messages = append(batch.Messages, msg)
			batch.LastSeq = msg.Seq
			if err := tx.Model(&batch).Updates(map[string]interface{}{
				"messages": batch.Messages,
				"last_seq": batch.LastSeq,
			}).Error; err != nil {
				return err
			}
		}

		now := msg.CreatedAt
		conv.MessageCount = msg.Seq
		conv.LastMessageAt = &now
		conv.LastMessagePreview = preview(msg)
		conv.LastSenderID = msg.SenderID
		if err := tx.Model(&conv).Updates(map[string]interface{}{
			"message_count":        conv.MessageCount,
			"last_message_at":      conv.LastMessageAt,
			"last_message_preview": conv.LastMessagePreview,
			"last_sender_id":       conv.LastSenderID,
		}).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, msg.SenderID).
			Updates(map[string]interface{}{"last_read_seq": msg.Seq, "last_read_at": now, "unread_count": 0}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id <> ?", conversationID, msg.SenderID).
			UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
	})
	if err != nil {
		return nil, nil, translate(err)
	}
	return &msg, &conv, nil
}

func preview(msg models.BatchedMessage) string {
	if msg.Body == "" && msg.MediaURL != "" {
		return "[media]"
	}
	runes := []rune(msg.Body)
	if len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return msg.Body
}

// GetBatchBefore returns the newest batch holding any seq below beforeSeq
func (r *PostgresConversationRepository) GetBatchBefore(ctx context.Context, conversationID uint, beforeSeq int64) (*models.MessageBatch, error) {
	var batch models.MessageBatch
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND first_seq < ?", conversationID, beforeSeq).
		Order("batch_no DESC").First(&batch).Error
	if err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

// UpdateMessage loads the message with the given seq, lets apply modify it
// and writes the batch back. A message that becomes deleted leaves the unread
// count of participants who had not read it, and the conversation preview is
// rebuilt when the newest message changes.
func (r *PostgresConversationRepository) UpdateMessage(ctx context.Context, conversationID uint, seq int64, apply func(*models.BatchedMessage) error) (*models.BatchedMessage, error) {
	var updated models.BatchedMessage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := forUpdate(tx).First(&conv, conversationID).Error; err != nil {
			return err
		}
		var batch models.MessageBatch
		if err := forUpdate(tx).Where("conversation_id = ? AND first_seq <= ? AND last_seq >= ?", conversationID, seq, seq).
			First(&batch).Error; err != nil {
			return err
		}
		idx := -1
		for i := range batch.Messages {
			if batch.Messages[i].Seq == seq {
				idx = i
				break
			}
		}
		if idx < 0 || batch.Messages[idx].Deleted {
			return ErrNotFound
		}
		if err := apply(&batch.Messages[idx]); err != nil {
			return err
		}
		updated = batch.Messages[idx]
		if err := tx.Model(&batch).Update("messages", batch.Messages).Error; err != nil {
			return err
		}

		if updated.Deleted {
			if err := tx.Model(&models.ConversationParticipant{}).
				Where("conversation_id = ? AND user_id <> ? AND last_read_seq < ? AND unread_count > 0", conversationID, updated.SenderID, seq).
				UpdateColumn("unread_count", gorm.Expr("unread_count - 1")).Error; err != nil {
				return err
			}
		}
		if seq != conv.MessageCount {
			return nil
		}
		latest, err := latestVisible(tx, &batch)
		if err != nil {
			return err
		}
		fields := map[string]interface{}{"last_message_preview": "", "last_sender_id": 0}
		if latest != nil {
			fields["last_message_preview"] = preview(*latest)
			fields["last_sender_id"] = latest.SenderID
		}
		return tx.Model(&conv).Updates(fields).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

// latestVisible walks batches backwards from batch and returns the newest
// message that is not deleted, nil when there is none
func latestVisible(tx *gorm.DB, batch *models.MessageBatch) (*models.BatchedMessage, error) {
	current := batch
	for {
		for i := len(current.Messages) - 1; i >= 0; i-- {
			if !current.Messages[i].Deleted {
				return &current.Messages[i], nil
			}
		}
		var prev models.MessageBatch
		err := tx.Where("conversation_id = ? AND batch_no < ?", current.ConversationID, current.BatchNo).
			Order("batch_no DESC").First(&prev).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		current = &prev
	}
}

// MarkRead moves the participant's read pointer to the latest seq. The bool
// reports whether anything changed.
func (r *PostgresConversationRepository) MarkRead(ctx context.Context, conversationID, userID uint) (*models.ConversationParticipant, bool, error) {
	var (
		p       models.ConversationParticipant
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, conversationID).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ? AND user_id = ?", conversationID, userID).First(&p).Error; err != nil {
			return err
		}
		if p.LastReadSeq >= conv.MessageCount && p.UnreadCount == 0 {
			return nil
		}
		changed = true
		now := time.Now()
		p.LastReadSeq = conv.MessageCount
		p.LastReadAt = &now
		p.UnreadCount = 0
		return tx.Model(&p).Updates(map[string]interface{}{
			"last_read_seq": p.LastReadSeq,
			"last_read_at":  p.LastReadAt,
			"unread_count":  0,
		}).Error
	})
	if err != nil {
		return nil, false, translate(err)
	}
	return &p, changed, nil
}

// ClearHistory hides every current message from the user and marks them read
func (r *PostgresConversationRepository) ClearHistory(ctx context.Context, conversationID, userID uint) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.Conversation
		if err := tx.First(&conv, conversationID).Error; err != nil {
			return err
		}
		res := tx.Model(&models.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Updates(map[string]interface{}{
				"cleared_seq":   conv.MessageCount,
				"last_read_seq": conv.MessageCount,
				"last_read_at":  time.Now(),
				"unread_count":  0,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	}))
}

func (r *PostgresConversationRepository) UnreadTotal(ctx context.Context, userID uint) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.ConversationParticipant{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(unread_count), 0)").Scan(&total).Error
	return total, err
}
