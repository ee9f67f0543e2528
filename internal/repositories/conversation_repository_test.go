package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateNormalizesPair(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresConversationRepository(db)
	ctx := context.Background()

	first, created, err := repo.GetOrCreate(ctx, 9, 4)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint(4), first.UserAID)
	assert.Equal(t, uint(9), first.UserBID)

	second, created, err := repo.GetOrCreate(ctx, 4, 9)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	ps, err := repo.GetParticipants(ctx, []uint{first.ID})
	require.NoError(t, err)
	assert.Len(t, ps, 2)
}

func TestAppendMessageFillsBatches(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresConversationRepository(db)
	ctx := context.Background()
	conv, _, err := repo.GetOrCreate(ctx, 1, 2)
	require.NoError(t, err)

	const batchSize = 3
	for i := 1; i <= 7; i++ {
		msg, _, err := repo.AppendMessage(ctx, conv.ID, models.BatchedMessage{
			ID:        "m",
			SenderID:  1,
			Body:      "hello",
			CreatedAt: time.Now(),
		}, batchSize)
		require.NoError(t, err)
		assert.Equal(t, int64(i), msg.Seq)
	}

	var batches []models.MessageBatch
	require.NoError(t, db.Where("conversation_id = ?", conv.ID).Order("batch_no").Find(&batches).Error)
	require.Len(t, batches, 3)
	for k, b := range batches {
		assert.Equal(t, k+1, b.BatchNo)
		assert.Equal(t, int64(k*batchSize+1), b.FirstSeq)
		for j, m := range b.Messages {
			assert.Equal(t, b.FirstSeq+int64(j), m.Seq)
		}
	}
	assert.Equal(t, int64(7), batches[2].LastSeq)

	recipient, err := repo.GetParticipant(ctx, conv.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), recipient.UnreadCount)

	sender, err := repo.GetParticipant(ctx, conv.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sender.LastReadSeq)
	assert.Zero(t, sender.UnreadCount)

	older, err := repo.GetBatchBefore(ctx, conv.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, older.BatchNo)

	_, err = repo.GetBatchBefore(ctx, conv.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConversationMarkReadAndClear(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresConversationRepository(db)
	ctx := context.Background()
	conv, _, err := repo.GetOrCreate(ctx, 1, 2)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, _, err := repo.AppendMessage(ctx, conv.ID, models.BatchedMessage{SenderID: 1, Body: "hi", CreatedAt: time.Now()}, 50)
		require.NoError(t, err)
	}

	total, err := repo.UnreadTotal(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	p, changed, err := repo.MarkRead(ctx, conv.ID, 2)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, int64(2), p.LastReadSeq)

	_, changed, err = repo.MarkRead(ctx, conv.ID, 2)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, repo.ClearHistory(ctx, conv.ID, 2))
	listed, count, err := repo.ListForUser(ctx, 2, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, listed)

	listed, count, err = repo.ListForUser(ctx, 1, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, listed, 1)
}
