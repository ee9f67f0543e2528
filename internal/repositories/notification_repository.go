package repositories

import (
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(notification *models.Notification) error
	CreateNotifications(notifications []models.Notification, batchSize int) error
	HasUnreadDuplicate(notifType string, actorID, recipientID uint, targetID string) (bool, error)
	GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error)
	GetGrouped(recipientID uint, now time.Time) ([]models.Notification, []models.Notification, []models.Notification, []models.Notification, error)
	GetUnreadCount(recipientID uint) (int64, error)
	MarkAsRead(notificationID, recipientID uint) error
	MarkAllAsRead(recipientID uint) (int64, error)
	DeleteNotification(notificationID, recipientID uint) error
	DeleteUnread(notifType string, actorID, recipientID uint, targetID string) (int64, error)
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(notification *models.Notification) error {
	return r.db.Create(notification).Error
}

// CreateNotifications inserts many rows batchSize at a time
func (r *postgresNotificationRepository) CreateNotifications(notifications []models.Notification, batchSize int) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.CreateInBatches(notifications, batchSize).Error
}

func (r *postgresNotificationRepository) HasUnreadDuplicate(notifType string, actorID, recipientID uint, targetID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("type = ? AND actor_id = ? AND recipient_id = ? AND target_id = ? AND is_read = ?",
			notifType, actorID, recipientID, targetID, false).
		Count(&count).Error
	return count > 0, err
}

func (r *postgresNotificationRepository) GetByRecipientID(recipientID uint, page, limit int) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	var total int64

	if err := r.db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := r.db.Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetGrouped(recipientID uint, now time.Time) (today, yesterday, thisWeek, older []models.Notification, retErr error) {
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	yesterdayStart := todayStart.AddDate(0, 0, -1)
	weekStart := todayStart.AddDate(0, 0, -7)

	// Today
	if err := r.db.Where("recipient_id = ? AND created_at >= ?", recipientID, todayStart).
		Order("created_at DESC").Find(&today).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	// Yesterday
	if err := r.db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, yesterdayStart, todayStart).
		Order("created_at DESC").Find(&yesterday).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	// Rest of the last seven days
	if err := r.db.Where("recipient_id = ? AND created_at >= ? AND created_at < ?", recipientID, weekStart, yesterdayStart).
		Order("created_at DESC").Find(&thisWeek).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	if err := r.db.Where("recipient_id = ? AND created_at < ?", recipientID, weekStart).
		Order("created_at DESC").Limit(50).Find(&older).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	return today, yesterday, thisWeek, older, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(recipientID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", recipientID, false).Count(&count).Error
	return count, err
}

// MarkAsRead marks a notification of the recipient as read. Marking an
// already read notification succeeds without touching read_at.
func (r *postgresNotificationRepository) MarkAsRead(notificationID, recipientID uint) error {
	var n models.Notification
	if err := r.db.Where("id = ? AND recipient_id = ?", notificationID, recipientID).First(&n).Error; err != nil {
		return translate(err)
	}
	if n.IsRead {
		return nil
	}
	return r.db.Model(&models.Notification{}).Where("id = ? AND is_read = ?", notificationID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()}).Error
}

func (r *postgresNotificationRepository) MarkAllAsRead(recipientID uint) (int64, error) {
	res := r.db.Model(&models.Notification{}).Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) DeleteNotification(notificationID, recipientID uint) error {
	res := r.db.Where("id = ? AND recipient_id = ?", notificationID, recipientID).Delete(&models.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUnread retracts unread notifications for an undone action (unfollow, unreact)
func (r *postgresNotificationRepository) DeleteUnread(notifType string, actorID, recipientID uint, targetID string) (int64, error) {
	res := r.db.Where("type = ? AND actor_id = ? AND recipient_id = ? AND target_id = ? AND is_read = ?",
		notifType, actorID, recipientID, targetID, false).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
