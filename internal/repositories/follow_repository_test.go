package repositories

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCreateFollowUpdatesCountersInOneTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "follows"`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "users" SET "following_count"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "users" SET "followers_count"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.CreateFollow(&models.Follow{FollowerID: 1, FollowingID: 2})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteFollowNotFoundRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresFollowRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "follows"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteFollow(1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowCountersAndDuplicates(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostgresFollowRepository(db)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	require.NoError(t, repo.CreateFollow(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	err := repo.CreateFollow(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	assert.Equal(t, int64(1), reloadUser(t, db, alice.ID).FollowingCount)
	assert.Equal(t, int64(1), reloadUser(t, db, bob.ID).FollowersCount)

	following, err := repo.IsFollowing(alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, following)

	followers, err := repo.GetFollowers(bob.ID, nil)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)

	require.NoError(t, repo.DeleteFollow(alice.ID, bob.ID))
	assert.ErrorIs(t, repo.DeleteFollow(alice.ID, bob.ID), ErrNotFound)
	assert.Equal(t, int64(0), reloadUser(t, db, alice.ID).FollowingCount)
	assert.Equal(t, int64(0), reloadUser(t, db, bob.ID).FollowersCount)
}
