package repositories

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Follow{},
		&models.UserBlock{},
		&models.Comment{},
		&models.Reaction{},
		&models.SavedPost{},
		&models.Notification{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.MessageBatch{},
		&models.ChatRoom{},
		&models.ChatRoomMember{},
		&models.ChatMessage{},
	))
	return db
}

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	u := &models.User{
		Username:    username,
		Email:       fmt.Sprintf("%s@example.com", username),
		DisplayName: username,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, db.Unscoped().First(&u, id).Error)
	return u
}
