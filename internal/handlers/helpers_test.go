package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test-secret"

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
		&models.Comment{},
		&models.Reaction{},
		&models.SavedPost{},
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

// newTestServer returns an echo instance configured like the server and
// an authenticated /api/v1 group. users may be nil to skip the account check.
func newTestServer(users middleware.UserLookup) (*echo.Echo, *echo.Group) {
	e := echo.New()
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = ErrorHandler(testLog())
	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(middleware.AuthConfig{Secret: testSecret, Users: users}))
	return e, api
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, time.Hour, u)
	require.NoError(t, err)
	return token
}

// call performs a request as user (nil for anonymous) and returns the recorder
func call(t *testing.T, e *echo.Echo, method, path string, body interface{}, user *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if user != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tokenFor(t, user))
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// memoryPostRepository keeps posts in memory
type memoryPostRepository struct {
	mu    sync.Mutex
	posts map[string]*models.Post
	clock time.Time
}

func newMemoryPostRepository() *memoryPostRepository {
	return &memoryPostRepository{posts: map[string]*models.Post{}, clock: time.Now()}
}

func (r *memoryPostRepository) CreatePost(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock = r.clock.Add(time.Second)
	post.ID = primitive.NewObjectID()
	post.CreatedAt = r.clock
	post.UpdatedAt = r.clock
	cp := *post
	r.posts[post.ID.Hex()] = &cp
	return nil
}

func (r *memoryPostRepository) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.IsDeleted {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memoryPostRepository) GetPostsByIDs(_ context.Context, ids []string) (map[string]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]models.Post{}
	for _, id := range ids {
		if p, ok := r.posts[id]; ok && !p.IsDeleted {
			out[id] = *p
		}
	}
	return out, nil
}

func (r *memoryPostRepository) filter(keep func(*models.Post) bool, skip, limit int64) ([]models.Post, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Post
	for _, p := range r.posts {
		if !p.IsDeleted && keep(p) {
			matched = append(matched, *p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	if skip >= total {
		return []models.Post{}, total
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return matched[skip:end], total
}

func (r *memoryPostRepository) GetPostsByUserID(_ context.Context, userID uint, skip, limit int64) ([]models.Post, int64, error) {
	posts, total := r.filter(func(p *models.Post) bool { return p.UserID == userID }, skip, limit)
	return posts, total, nil
}

func (r *memoryPostRepository) GetFeed(_ context.Context, authorIDs []uint, skip, limit int64) ([]models.Post, int64, error) {
	authors := map[uint]bool{}
	for _, id := range authorIDs {
		authors[id] = true
	}
	posts, total := r.filter(func(p *models.Post) bool { return authors[p.UserID] }, skip, limit)
	return posts, total, nil
}

func (r *memoryPostRepository) UpdatePost(_ context.Context, id string, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return repositories.ErrNotFound
	}
	cp := *post
	r.posts[id] = &cp
	return nil
}

func (r *memoryPostRepository) DeletePost(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.IsDeleted {
		return repositories.ErrNotFound
	}
	p.IsDeleted = true
	return nil
}

func (r *memoryPostRepository) adjust(id string, apply func(*models.Post)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	apply(p)
	return nil
}

func (r *memoryPostRepository) AdjustReactionsCount(_ context.Context, id string, delta int) error {
	return r.adjust(id, func(p *models.Post) { p.ReactionsCount += int64(delta) })
}

func (r *memoryPostRepository) AdjustCommentsCount(_ context.Context, id string, delta int) error {
	return r.adjust(id, func(p *models.Post) { p.CommentsCount += int64(delta) })
}

func (r *memoryPostRepository) add(t *testing.T, authorID uint, content string) *models.Post {
	t.Helper()
	p := &models.Post{UserID: authorID, Content: content}
	require.NoError(t, r.CreatePost(context.Background(), p))
	return p
}

// recordingNotifier captures notifications instead of delivering them
type recordingNotifier struct {
	mu        sync.Mutex
	notified  []services.NotifyParams
	mentions  []string
	fanOuts   []string
	retracted []string
	failWith  error
}

func (n *recordingNotifier) Notify(_ context.Context, p services.NotifyParams) (*models.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return nil, n.failWith
	}
	if p.ActorID == p.RecipientID {
		return nil, nil
	}
	n.notified = append(n.notified, p)
	return &models.Notification{Type: p.Type, ActorID: p.ActorID, RecipientID: p.RecipientID}, nil
}

func (n *recordingNotifier) NotifyMentions(_ context.Context, _ uint, text, targetID, _ string, _ ...uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, name := range services.ExtractMentions(text) {
		n.mentions = append(n.mentions, name+"@"+targetID)
	}
}

func (n *recordingNotifier) NotifyFollowersAsync(post models.Post) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fanOuts = append(n.fanOuts, post.ID.Hex())
}

func (n *recordingNotifier) Retract(notifType string, actorID, recipientID uint, targetID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retracted = append(n.retracted, fmt.Sprintf("%s:%d>%d:%s", notifType, actorID, recipientID, targetID))
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notified))
	for _, p := range n.notified {
		out = append(out, p.Type)
	}
	return out
}

var _ Notifier = (*recordingNotifier)(nil)
var _ repositories.PostRepository = (*memoryPostRepository)(nil)
