package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/sirupsen/logrus"
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
	u := &models.User{Username: username, Email: fmt.Sprintf("%s@example.com", username), DisplayName: username}
	require.NoError(t, db.Create(u).Error)
	return u
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type publishedEvent struct {
	Target string
	Type   string
	Data   interface{}
}

// recordingPublisher captures hub events
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	joins  []string
	leaves []string
}

func (p *recordingPublisher) Publish(group, eventType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Target: group, Type: eventType, Data: data})
}

func (p *recordingPublisher) PublishToUser(userID uint, eventType string, data interface{}) {
	p.Publish(fmt.Sprintf("user:%d", userID), eventType, data)
}

func (p *recordingPublisher) JoinUser(userID uint, group string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.joins = append(p.joins, fmt.Sprintf("%d>%s", userID, group))
}

func (p *recordingPublisher) LeaveUser(userID uint, group string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leaves = append(p.leaves, fmt.Sprintf("%d>%s", userID, group))
}

func (p *recordingPublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakePusher struct {
	mu   sync.Mutex
	sent []*messaging.Message
	err  error
}

func (f *fakePusher) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return "id", f.err
}

func (f *fakePusher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type staticPresence map[uint]bool

func (p staticPresence) Online(_ context.Context, ids []uint) map[uint]bool {
	out := make(map[uint]bool, len(ids))
	for _, id := range ids {
		out[id] = p[id]
	}
	return out
}
