package repositories

import (
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentsAndReplies(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresCommentRepository(db)

	top := &models.Comment{PostID: "p1", UserID: 1, Content: "first"}
	require.NoError(t, repo.CreateComment(top))
	require.NoError(t, repo.CreateComment(&models.Comment{PostID: "p1", UserID: 2, Content: "second"}))
	require.NoError(t, repo.CreateComment(&models.Comment{PostID: "p1", UserID: 2, ParentID: &top.ID, Content: "reply"}))
	require.NoError(t, repo.CreateComment(&models.Comment{PostID: "p1", UserID: 3, ParentID: &top.ID, Content: "reply 2"}))

	comments, total, err := repo.GetCommentsByPostID("p1", nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, comments, 2)

	comments, total, err = repo.GetCommentsByPostID("p1", []uint{2}, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, comments, 1)
	assert.Equal(t, top.ID, comments[0].ID)

	parent, err := repo.GetCommentByID(top.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), parent.RepliesCount)

	replies, err := repo.GetReplies(top.ID, []uint{3})
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.Equal(t, "reply", replies[0].Content)
}

func TestDeleteTopLevelCommentRemovesReplies(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresCommentRepository(db)

	top := &models.Comment{PostID: "p1", UserID: 1, Content: "first"}
	require.NoError(t, repo.CreateComment(top))
	reply := &models.Comment{PostID: "p1", UserID: 2, ParentID: &top.ID, Content: "reply"}
	require.NoError(t, repo.CreateComment(reply))
	require.NoError(t, repo.CreateComment(&models.Comment{PostID: "p1", UserID: 2, ParentID: &top.ID, Content: "reply 2"}))

	removed, err := repo.DeleteComment(reply)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	parent, err := repo.GetCommentByID(top.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), parent.RepliesCount)

	removed, err = repo.DeleteComment(parent)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = repo.GetCommentByID(top.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
