package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type contentServer struct {
	db       *gorm.DB
	e        *echo.Echo
	posts    *memoryPostRepository
	follows  *repositories.PostgresFollowRepository
	blocks   *repositories.PostgresBlockRepository
	notifier *recordingNotifier
}

func newContentServer(t *testing.T) *contentServer {
	t.Helper()
	db := newTestDB(t)
	users := repositories.NewPostgresUserRepository(db)
	e, api := newTestServer(users)
	s := &contentServer{
		db:       db,
		e:        e,
		posts:    newMemoryPostRepository(),
		follows:  repositories.NewPostgresFollowRepository(db),
		blocks:   repositories.NewPostgresBlockRepository(db),
		notifier: &recordingNotifier{},
	}
	reactions := repositories.NewPostgresReactionRepository(db)
	saved := repositories.NewPostgresSavedPostRepository(db)
	comments := repositories.NewPostgresCommentRepository(db)

	NewPostHandler(s.posts, users, s.blocks, reactions, saved, s.notifier, testLog()).RegisterPostRoutes(api)
	NewFeedHandler(s.posts, users, s.follows, s.blocks, reactions, saved).RegisterFeedRoutes(api)
	NewSavedPostHandler(saved, s.posts, users, s.blocks).RegisterSavedPostRoutes(api)
	NewCommentHandler(comments, s.posts, users, s.blocks, reactions, s.notifier, testLog()).RegisterCommentRoutes(api)
	NewReactionHandler(reactions, s.posts, comments, users, s.blocks, s.notifier, testLog()).RegisterReactionRoutes(api)
	NewUserHandler(users, s.follows, s.blocks, nil).RegisterProfileRoutes(api)
	return s
}

func (s *contentServer) do(t *testing.T, method, path string, body interface{}, as *models.User) int {
	t.Helper()
	return call(t, s.e, method, path, body, as).Code
}

type postBody struct {
	Post models.EnrichedPost `json:"post"`
}

func TestCreateAndUpdatePost(t *testing.T) {
	s := newContentServer(t)
	alice := createUser(t, s.db, "alice")
	createUser(t, s.db, "bob")

	rec := call(t, s.e, http.MethodPost, "/api/v1/posts", echo.Map{"content": "  hello @bob  "}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created postBody
	decode(t, rec, &created)
	postID := created.Post.ID.Hex()
	assert.Equal(t, "hello @bob", created.Post.Content)
	assert.Equal(t, []string{"bob"}, created.Post.Mentions)
	assert.Equal(t, "alice", created.Post.Author.Username)
	assert.Equal(t, []string{"bob@" + postID}, s.notifier.mentions)
	assert.Equal(t, []string{postID}, s.notifier.fanOuts)

	var stored models.User
	require.NoError(t, s.db.First(&stored, alice.ID).Error)
	assert.Equal(t, int64(1), stored.PostsCount)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/posts", echo.Map{"content": "   "}, alice))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/posts", echo.Map{"content": "x", "image_urls": []string{"nope"}}, alice))

	// only the newly added mention is notified
	rec = call(t, s.e, http.MethodPut, "/api/v1/posts/"+postID, echo.Map{"content": "hello @bob and @carol"}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"bob@" + postID, "carol@" + postID}, s.notifier.mentions)
}

func TestPostOwnershipAndVisibility(t *testing.T) {
	s := newContentServer(t)
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	post := s.posts.add(t, alice.ID, "mine")
	path := "/api/v1/posts/" + post.ID.Hex()

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, nil, bob))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, path, echo.Map{"content": "yours"}, bob))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, path, nil, bob))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/posts/not-an-id", nil, bob))

	require.NoError(t, s.blocks.BlockUser(alice.ID, bob.ID))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil, bob))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/posts", alice.ID), nil, bob))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, path, nil, alice))

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, nil, alice))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil, alice))
}

func TestFeedIncludesFollowedAuthorsOnly(t *testing.T) {
	s := newContentServer(t)
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	carol := createUser(t, s.db, "carol")
	dave := createUser(t, s.db, "dave")
	require.NoError(t, s.follows.CreateFollow(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	require.NoError(t, s.follows.CreateFollow(&models.Follow{FollowerID: alice.ID, FollowingID: dave.ID}))

	s.posts.add(t, alice.ID, "alice 1")
	s.posts.add(t, bob.ID, "bob 1")
	s.posts.add(t, carol.ID, "carol 1")
	s.posts.add(t, dave.ID, "dave 1")
	s.posts.add(t, bob.ID, "bob 2")
	require.NoError(t, s.blocks.BlockUser(dave.ID, alice.ID))

	rec := call(t, s.e, http.MethodGet, "/api/v1/feed?limit=2", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Posts []models.EnrichedPost `json:"posts"`
	}
	env := decode(t, rec, &page)
	require.Len(t, page.Posts, 2)
	assert.Equal(t, "bob 2", page.Posts[0].Content)
	assert.Equal(t, "bob 1", page.Posts[1].Content)
	assert.Equal(t, float64(3), env.Meta["totalItems"])

	rec = call(t, s.e, http.MethodGet, "/api/v1/feed?limit=2&page=2", nil, alice)
	decode(t, rec, &page)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "alice 1", page.Posts[0].Content)
}

func TestDeletedAccountDisappearsFromContent(t *testing.T) {
	s := newContentServer(t)
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	require.NoError(t, s.follows.CreateFollow(&models.Follow{FollowerID: alice.ID, FollowingID: bob.ID}))
	post := s.posts.add(t, bob.ID, "bob before leaving")
	postPath := "/api/v1/posts/" + post.ID.Hex()
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, postPath+"/save", nil, alice))

	require.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/profile", nil, bob))

	rec := call(t, s.e, http.MethodGet, "/api/v1/feed", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Posts []models.EnrichedPost `json:"posts"`
	}
	decode(t, rec, &page)
	assert.Empty(t, page.Posts)

	rec = call(t, s.e, http.MethodGet, "/api/v1/saved", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Empty(t, page.Posts)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, postPath, nil, alice))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d/posts", bob.ID), nil, alice))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, postPath+"/comments", echo.Map{"content": "hi"}, alice))

	rec = call(t, s.e, http.MethodPost, "/api/v1/posts", echo.Map{"content": "still here?"}, bob)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Account no longer exists", decode(t, rec, nil).Error.Message)

	var following int64
	require.NoError(t, s.db.Model(&models.Follow{}).Where("follower_id = ?", alice.ID).Count(&following).Error)
	assert.Zero(t, following)
}

func TestSavedPosts(t *testing.T) {
	s := newContentServer(t)
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	kept := s.posts.add(t, bob.ID, "keep")
	gone := s.posts.add(t, bob.ID, "gone")

	for _, p := range []*models.Post{kept, gone} {
		assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/v1/posts/"+p.ID.Hex()+"/save", nil, alice))
	}
	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPost, "/api/v1/posts/"+kept.ID.Hex()+"/save", nil, alice))
	require.NoError(t, s.posts.DeletePost(context.Background(), gone.ID.Hex()))

	rec := call(t, s.e, http.MethodGet, "/api/v1/saved", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Posts []models.EnrichedPost `json:"posts"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "keep", page.Posts[0].Content)
	assert.True(t, page.Posts[0].IsSaved)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/posts/"+kept.ID.Hex()+"/save", nil, alice))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/v1/posts/"+kept.ID.Hex()+"/save", nil, alice))
}

func TestCommentsAndReplies(t *testing.T) {
	s := newContentServer(t)
	owner := createUser(t, s.db, "owner")
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	post := s.posts.add(t, owner.ID, "post")
	other := s.posts.add(t, owner.ID, "other")
	base := "/api/v1/posts/" + post.ID.Hex() + "/comments"

	rec := call(t, s.e, http.MethodPost, base, echo.Map{"content": "first"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var top struct {
		Comment models.CommentWithAuthor `json:"comment"`
	}
	decode(t, rec, &top)
	assert.Equal(t, "alice", top.Comment.Author.Username)
	assert.Equal(t, []string{models.NotificationComment}, s.notifier.types())

	rec = call(t, s.e, http.MethodPost, base, echo.Map{"content": "reply @owner", "parent_id": top.Comment.ID}, bob)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reply struct {
		Comment models.CommentWithAuthor `json:"comment"`
	}
	decode(t, rec, &reply)
	assert.Equal(t, []string{models.NotificationComment, models.NotificationReply, models.NotificationComment}, s.notifier.types())

	// replies to replies and cross-post replies are rejected
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, base, echo.Map{"content": "deep", "parent_id": reply.Comment.ID}, alice))
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/posts/"+other.ID.Hex()+"/comments", echo.Map{"content": "x", "parent_id": top.Comment.ID}, alice))

	p, err := s.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.CommentsCount)

	rec = call(t, s.e, http.MethodGet, fmt.Sprintf("/api/v1/comments/%d/replies", top.Comment.ID), nil, owner)
	require.Equal(t, http.StatusOK, rec.Code)
	var replies struct {
		Replies []models.CommentWithAuthor `json:"replies"`
	}
	decode(t, rec, &replies)
	require.Len(t, replies.Replies, 1)

	commentPath := fmt.Sprintf("/api/v1/comments/%d", top.Comment.ID)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPut, commentPath, echo.Map{"content": "edit"}, bob))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPut, commentPath, echo.Map{"content": "edited"}, alice))
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, commentPath, nil, bob))

	// the post owner may delete, replies go with the comment
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, commentPath, nil, owner))
	p, err = s.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Zero(t, p.CommentsCount)
}

func TestReactionLifecycle(t *testing.T) {
	s := newContentServer(t)
	alice := createUser(t, s.db, "alice")
	bob := createUser(t, s.db, "bob")
	post := s.posts.add(t, alice.ID, "react to me")
	path := "/api/v1/posts/" + post.ID.Hex() + "/reactions"

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, path, echo.Map{"type": "meh"}, bob))
	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPut, path, echo.Map{"type": "like"}, bob))
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodPut, path, echo.Map{"type": "love"}, bob))
	assert.Equal(t, []string{models.NotificationReaction}, s.notifier.types())

	p, err := s.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ReactionsCount)

	rec := call(t, s.e, http.MethodGet, path, nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary models.ReactionSummary
	decode(t, rec, &summary)
	assert.Equal(t, int64(1), summary.Total)
	assert.Equal(t, "love", summary.Mine)
	assert.Equal(t, map[string]int64{"love": 1}, summary.Counts)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, path, nil, bob))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, path, nil, bob))
	assert.Len(t, s.notifier.retracted, 1)

	p, err = s.posts.GetPostByID(context.Background(), post.ID.Hex())
	require.NoError(t, err)
	assert.Zero(t, p.ReactionsCount)

	require.NoError(t, s.blocks.BlockUser(alice.ID, bob.ID))
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, path, echo.Map{"type": "like"}, bob))
}
