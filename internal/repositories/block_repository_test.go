package repositories

import (
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockRemovesFollowsBothWays(t *testing.T) {
	db := newTestDB(t)
	follows := NewPostgresFollowRepository(db)
	blocks := NewPostgresBlockRepository(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	require.NoError(t, follows.CreateFollow(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	require.NoError(t, follows.CreateFollow(&models.Follow{FollowerID: bob.ID, FollowingID: alice.ID}))

	require.NoError(t, blocks.BlockUser(alice.ID, bob.ID))

	for _, pair := range [][2]uint{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		ok, err := follows.IsFollowing(pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, ok)
	}
	a, b := reloadUser(t, db, alice.ID), reloadUser(t, db, bob.ID)
	assert.Zero(t, a.FollowersCount)
	assert.Zero(t, a.FollowingCount)
	assert.Zero(t, b.FollowersCount)
	assert.Zero(t, b.FollowingCount)

	either, err := blocks.IsBlockedEither(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, either)

	direct, err := blocks.IsBlocked(bob.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, direct)

	related, err := blocks.GetRelatedIDs(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, related)
}

func TestBlockDuplicateAndUnblock(t *testing.T) {
	db := newTestDB(t)
	blocks := NewPostgresBlockRepository(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	require.NoError(t, blocks.BlockUser(alice.ID, bob.ID))
	assert.ErrorIs(t, blocks.BlockUser(alice.ID, bob.ID), ErrAlreadyExists)

	blocked, err := blocks.GetBlockedUsers(alice.ID)
	require.NoError(t, err)
	require.Len(t, blocked, 1)
	assert.Equal(t, bob.ID, blocked[0].ID)

	require.NoError(t, blocks.UnblockUser(alice.ID, bob.ID))
	assert.ErrorIs(t, blocks.UnblockUser(alice.ID, bob.ID), ErrNotFound)
}
