package repositories

import (
	"context"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// RoomRepository stores group chat rooms, memberships and room messages
type RoomRepository interface {
	CreateRoom(ctx context.Context, room *models.ChatRoom, memberIDs []uint) error
	GetRoom(ctx context.Context, id uint) (*models.ChatRoom, error)
	DeleteRoom(ctx context.Context, id uint) error
	ListForUser(ctx context.Context, userID uint, excludeSenderIDs []uint) ([]models.RoomSummary, error)
	GetMember(ctx context.Context, roomID, userID uint) (*models.ChatRoomMember, error)
	AddMember(ctx context.Context, roomID, userID uint, role string) error
	RemoveMember(ctx context.Context, roomID, userID uint) error
	GetMemberIDs(ctx context.Context, roomID uint) ([]uint, error)
	GetRoomIDsForUser(ctx context.Context, userID uint) ([]uint, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	GetMessage(ctx context.Context, roomID, messageID uint) (*models.ChatMessage, error)
	ListMessages(ctx context.Context, roomID, beforeID uint, excludeSenderIDs []uint, limit int) ([]models.ChatMessage, error)
	DeleteMessage(ctx context.Context, roomID, messageID uint) error
	MarkRead(ctx context.Context, roomID, userID uint) (uint, error)
	UnreadTotal(ctx context.Context, userID uint, excludeSenderIDs []uint) (int64, error)
}

// PostgresRoomRepository implements RoomRepository with gorm
type PostgresRoomRepository struct {
	db *gorm.DB
}

func NewPostgresRoomRepository(db *gorm.DB) *PostgresRoomRepository {
	return &PostgresRoomRepository{db: db}
}

// CreateRoom stores the room with its owner and the initial members
func (r *PostgresRoomRepository) CreateRoom(ctx context.Context, room *models.ChatRoom, memberIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		room.MembersCount = int64(len(memberIDs) + 1)
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		now := time.Now()
		members := make([]models.ChatRoomMember, 0, len(memberIDs)+1)
		members = append(members, models.ChatRoomMember{RoomID: room.ID, UserID: room.OwnerID, Role: models.RoomRoleOwner, JoinedAt: now})
		for _, id := range memberIDs {
			members = append(members, models.ChatRoomMember{RoomID: room.ID, UserID: id, Role: models.RoomRoleMember, JoinedAt: now})
		}
		return tx.Create(&members).Error
	})
}

func (r *PostgresRoomRepository) GetRoom(ctx context.Context, id uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	if err := r.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, translate(err)
	}
	return &room, nil
}

// DeleteRoom soft deletes the room and drops its memberships
func (r *PostgresRoomRepository) DeleteRoom(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.ChatRoom{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("room_id = ?", id).Delete(&models.ChatRoomMember{}).Error
	})
}

type roomUnread struct {
	RoomID uint
	Count  int64
}

// unreadMessages selects the messages the user has not read, leaving out their
// own and those of excluded senders
func unreadMessages(db *gorm.DB, userID uint, excludeSenderIDs []uint) *gorm.DB {
	q := db.Table("chat_messages AS m").
		Joins("JOIN chat_room_members rm ON rm.room_id = m.room_id AND rm.user_id = ?", userID).
		Where("m.id > rm.last_read_message_id AND m.sender_id <> ? AND m.deleted_at IS NULL", userID)
	if len(excludeSenderIDs) > 0 {
		q = q.Where("m.sender_id NOT IN ?", excludeSenderIDs)
	}
	return q
}

// ListForUser returns the user's rooms with role and unread count, most
// recent activity first. Messages of excluded senders are not counted.
func (r *PostgresRoomRepository) ListForUser(ctx context.Context, userID uint, excludeSenderIDs []uint) ([]models.RoomSummary, error) {
	db := r.db.WithContext(ctx)

	var members []models.ChatRoomMember
	if err := db.Where("user_id = ?", userID).Find(&members).Error; err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []models.RoomSummary{}, nil
	}
	roles := make(map[uint]string, len(members))
	ids := make([]uint, 0, len(members))
	for _, m := range members {
		roles[m.RoomID] = m.Role
		ids = append(ids, m.RoomID)
	}

	var rooms []models.ChatRoom
	if err := db.Where("id IN ?", ids).
		Order("COALESCE(last_message_at, created_at) DESC, id DESC").Find(&rooms).Error; err != nil {
		return nil, err
	}

	var unread []roomUnread
	if err := unreadMessages(db, userID, excludeSenderIDs).
		Select("m.room_id AS room_id, COUNT(*) AS count").
		Group("m.room_id").Scan(&unread).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(unread))
	for _, u := range unread {
		counts[u.RoomID] = u.Count
	}

	summaries := make([]models.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		summaries = append(summaries, models.RoomSummary{
			ChatRoom:    room,
			Role:        roles[room.ID],
			UnreadCount: counts[room.ID],
		})
	}
	return summaries, nil
}

func (r *PostgresRoomRepository) GetMember(ctx context.Context, roomID, userID uint) (*models.ChatRoomMember, error) {
	var m models.ChatRoomMember
	if err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", roomID, userID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// AddMember joins a user to a room, ErrAlreadyExists when already a member
func (r *PostgresRoomRepository) AddMember(ctx context.Context, roomID, userID uint, role string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// new members start with everything before them marked read
		var lastID uint
		if err := tx.Model(&models.ChatMessage{}).Where("room_id = ?", roomID).
			Select("COALESCE(MAX(id), 0)").Scan(&lastID).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.ChatRoomMember{
			RoomID:            roomID,
			UserID:            userID,
			Role:              role,
			LastReadMessageID: lastID,
			JoinedAt:          time.Now(),
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatRoom{}).Where("id = ?", roomID).
			UpdateColumn("members_count", gorm.Expr("members_count + 1")).Error
	}))
}

func (r *PostgresRoomRepository) RemoveMember(ctx context.Context, roomID, userID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.ChatRoomMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.ChatRoom{}).Where("id = ? AND members_count > 0", roomID).
			UpdateColumn("members_count", gorm.Expr("members_count - 1")).Error
	})
}

func (r *PostgresRoomRepository) GetMemberIDs(ctx context.Context, roomID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ChatRoomMember{}).Where("room_id = ?", roomID).Pluck("user_id", &ids).Error
	return ids, err
}

func (r *PostgresRoomRepository) GetRoomIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ChatRoomMember{}).Where("user_id = ?", userID).Pluck("room_id", &ids).Error
	return ids, err
}

// CreateMessage stores a room message, bumps the room activity and marks it read for the sender
func (r *PostgresRoomRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ChatRoom{}).Where("id = ?", msg.RoomID).
			Update("last_message_at", msg.CreatedAt).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatRoomMember{}).Where("room_id = ? AND user_id = ?", msg.RoomID, msg.SenderID).
			Update("last_read_message_id", msg.ID).Error
	})
}

func (r *PostgresRoomRepository) GetMessage(ctx context.Context, roomID, messageID uint) (*models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := r.db.WithContext(ctx).Where("room_id = ? AND id = ?", roomID, messageID).First(&msg).Error; err != nil {
		return nil, translate(err)
	}
	return &msg, nil
}

// ListMessages returns up to limit messages older than beforeID (0 = latest), oldest first
func (r *PostgresRoomRepository) ListMessages(ctx context.Context, roomID, beforeID uint, excludeSenderIDs []uint, limit int) ([]models.ChatMessage, error) {
	q := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	if len(excludeSenderIDs) > 0 {
		q = q.Where("sender_id NOT IN ?", excludeSenderIDs)
	}
	var msgs []models.ChatMessage
	if err := q.Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *PostgresRoomRepository) DeleteMessage(ctx context.Context, roomID, messageID uint) error {
	res := r.db.WithContext(ctx).Where("room_id = ? AND id = ?", roomID, messageID).Delete(&models.ChatMessage{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRead moves the member's read pointer to the newest message and returns it
func (r *PostgresRoomRepository) MarkRead(ctx context.Context, roomID, userID uint) (uint, error) {
	db := r.db.WithContext(ctx)
	var lastID uint
	if err := db.Model(&models.ChatMessage{}).Where("room_id = ?", roomID).
		Select("COALESCE(MAX(id), 0)").Scan(&lastID).Error; err != nil {
		return 0, err
	}
	res := db.Model(&models.ChatRoomMember{}).
		Where("room_id = ? AND user_id = ? AND last_read_message_id < ?", roomID, userID, lastID).
		Update("last_read_message_id", lastID)
	return lastID, res.Error
}

func (r *PostgresRoomRepository) UnreadTotal(ctx context.Context, userID uint, excludeSenderIDs []uint) (int64, error) {
	var total int64
	err := unreadMessages(r.db.WithContext(ctx), userID, excludeSenderIDs).Count(&total).Error
	return total, err
}
