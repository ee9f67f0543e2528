package services

import (
	"context"
	"errors"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

type notifFixture struct {
	db      *gorm.DB
	svc     *NotificationService
	repo    repositories.NotificationRepository
	blocks  *repositories.PostgresBlockRepository
	follows *repositories.PostgresFollowRepository
	events  *recordingPublisher
	pusher  *fakePusher
}

func newNotifFixture(t *testing.T) *notifFixture {
	t.Helper()
	db := newTestDB(t)
	f := &notifFixture{
		db:      db,
		repo:    repositories.NewPostgresNotificationRepository(db),
		blocks:  repositories.NewPostgresBlockRepository(db),
		follows: repositories.NewPostgresFollowRepository(db),
		events:  &recordingPublisher{},
		pusher:  &fakePusher{},
	}
	f.svc = NewNotificationService(f.repo, repositories.NewPostgresUserRepository(db), f.blocks, f.follows, f.events, f.pusher, testLog())
	return f
}

func (f *notifFixture) count(t *testing.T, recipientID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&n).Error)
	return n
}

func TestNotifyStoresAndPublishes(t *testing.T) {
	f := newNotifFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")

	n, err := f.svc.Notify(context.Background(), NotifyParams{
		Type:        models.NotificationComment,
		ActorID:     alice.ID,
		RecipientID: bob.ID,
		TargetID:    "abc",
		TargetType:  "post",
	})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "alice commented on your post", n.Message)

	events := f.events.ofType("notification.created")
	require.Len(t, events, 1)
	assert.Equal(t, "user:2", events[0].Target)
	enriched, ok := events[0].Data.(models.EnrichedNotification)
	require.True(t, ok)
	assert.Equal(t, alice.ID, enriched.Actor.ID)

	// bob has no device token
	assert.Zero(t, f.pusher.count())
}

func TestNotifySuppressed(t *testing.T) {
	f := newNotifFixture(t)
	ctx := context.Background()
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")

	n, err := f.svc.Notify(ctx, NotifyParams{Type: models.NotificationFollow, ActorID: alice.ID, RecipientID: alice.ID})
	require.NoError(t, err)
	assert.Nil(t, n)

	require.NoError(t, f.blocks.BlockUser(bob.ID, alice.ID))
	n, err = f.svc.Notify(ctx, NotifyParams{Type: models.NotificationFollow, ActorID: alice.ID, RecipientID: bob.ID})
	require.NoError(t, err)
	assert.Nil(t, n)

	assert.Zero(t, f.count(t, alice.ID))
	assert.Zero(t, f.count(t, bob.ID))
	assert.Empty(t, f.events.ofType("notification.created"))
}

func TestNotifyReactionDeduplicatesWhileUnread(t *testing.T) {
	f := newNotifFixture(t)
	ctx := context.Background()
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	params := NotifyParams{Type: models.NotificationReaction, ActorID: alice.ID, RecipientID: bob.ID, TargetID: "p1", TargetType: "post"}

	first, err := f.svc.Notify(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := f.svc.Notify(ctx, params)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, int64(1), f.count(t, bob.ID))

	require.NoError(t, f.repo.MarkAsRead(first.ID, bob.ID))
	again, err = f.svc.Notify(ctx, params)
	require.NoError(t, err)
	assert.NotNil(t, again)
	assert.Equal(t, int64(2), f.count(t, bob.ID))
}

func TestNotifyPushesToDeviceToken(t *testing.T) {
	f := newNotifFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	require.NoError(t, f.db.Model(bob).Update("device_token", "token-1").Error)

	f.pusher.err = errors.New("unavailable")
	n, err := f.svc.Notify(context.Background(), NotifyParams{Type: models.NotificationFollow, ActorID: alice.ID, RecipientID: bob.ID, TargetType: "user"})
	require.NoError(t, err, "push failures are not returned")
	require.NotNil(t, n)

	require.Equal(t, 1, f.pusher.count())
	msg := f.pusher.sent[0]
	assert.Equal(t, "token-1", msg.Token)
	assert.Equal(t, "alice started following you", msg.Notification.Body)
	assert.Equal(t, models.NotificationFollow, msg.Data["type"])
}

func TestNotifyMentionsSkipsGivenUsers(t *testing.T) {
	f := newNotifFixture(t)
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")
	carol := createUser(t, f.db, "carol")

	f.svc.NotifyMentions(context.Background(), alice.ID, "hey @bob and @carol, also @alice and @nobody", "c1", "comment", carol.ID)

	assert.Equal(t, int64(1), f.count(t, bob.ID))
	assert.Zero(t, f.count(t, carol.ID))
	assert.Zero(t, f.count(t, alice.ID))

	var n models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", bob.ID).First(&n).Error)
	assert.Equal(t, models.NotificationMention, n.Type)
	assert.Equal(t, "alice mentioned you in a comment", n.Message)
}

func TestNotifyFollowersSkipsBlocked(t *testing.T) {
	f := newNotifFixture(t)
	author := createUser(t, f.db, "author")
	fan := createUser(t, f.db, "fan")
	foe := createUser(t, f.db, "foe")
	other := createUser(t, f.db, "other")

	for _, u := range []*models.User{fan, foe, other} {
		require.NoError(t, f.follows.CreateFollow(&models.Follow{FollowerID: u.ID, FollowingID: author.ID}))
	}
	// insert the block row directly so the follow survives
	require.NoError(t, f.db.Create(&models.UserBlock{BlockerID: author.ID, BlockedID: other.ID}).Error)

	post := &models.Post{ID: primitive.NewObjectID(), UserID: author.ID, ImageURLs: []string{"http://img/1.jpg"}}
	sent, err := f.svc.NotifyFollowers(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	assert.Equal(t, int64(1), f.count(t, fan.ID))
	assert.Equal(t, int64(1), f.count(t, foe.ID))
	assert.Zero(t, f.count(t, other.ID))

	var n models.Notification
	require.NoError(t, f.db.Where("recipient_id = ?", fan.ID).First(&n).Error)
	assert.Equal(t, models.NotificationNewPost, n.Type)
	assert.Equal(t, post.ID.Hex(), n.TargetID)
	assert.Equal(t, "http://img/1.jpg", n.PreviewImageURL)
	assert.Len(t, f.events.ofType("notification.created"), 2)
	assert.Zero(t, f.pusher.count())
}

func TestRetractRemovesUnreadAndPublishes(t *testing.T) {
	f := newNotifFixture(t)
	ctx := context.Background()
	alice := createUser(t, f.db, "alice")
	bob := createUser(t, f.db, "bob")

	_, err := f.svc.Notify(ctx, NotifyParams{Type: models.NotificationFollow, ActorID: alice.ID, RecipientID: bob.ID, TargetID: "1", TargetType: "user"})
	require.NoError(t, err)

	f.svc.Retract(models.NotificationFollow, alice.ID, bob.ID, "1")
	assert.Zero(t, f.count(t, bob.ID))
	assert.Len(t, f.events.ofType("notification.retracted"), 1)

	f.svc.Retract(models.NotificationFollow, alice.ID, bob.ID, "1")
	assert.Len(t, f.events.ofType("notification.retracted"), 1)
}
