package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newChatServer(t *testing.T) (*gorm.DB, *echo.Echo) {
	t.Helper()
	db := newTestDB(t)
	require.NoError(t, db.AutoMigrate(
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.MessageBatch{},
		&models.ChatRoom{},
		&models.ChatRoomMember{},
		&models.ChatMessage{},
	))
	e, api := newTestServer(nil)
	users := repositories.NewPostgresUserRepository(db)
	blocks := repositories.NewPostgresBlockRepository(db)
	chat := services.NewChatService(repositories.NewPostgresConversationRepository(db), users, blocks, nil, nil, 3, testLog())
	rooms := services.NewRoomService(repositories.NewPostgresRoomRepository(db), users, blocks, nil, testLog())
	NewChatHandler(chat, rooms).RegisterChatRoutes(api)
	NewRoomHandler(rooms).RegisterRoomRoutes(api)
	return db, e
}

func TestConversationOverHTTP(t *testing.T) {
	db, e := newChatServer(t)
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	rec := call(t, e, http.MethodPost, "/api/v1/conversations", echo.Map{"user_id": bob.ID}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started struct {
		Conversation models.ConversationSummary `json:"conversation"`
	}
	decode(t, rec, &started)
	convPath := fmt.Sprintf("/api/v1/conversations/%d", started.Conversation.ID)

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodPost, "/api/v1/conversations", echo.Map{"user_id": alice.ID}, bob).Code)
	assert.Equal(t, http.StatusBadRequest, call(t, e, http.MethodPost, "/api/v1/conversations", echo.Map{"user_id": alice.ID}, alice).Code)

	for i := 1; i <= 5; i++ {
		rec = call(t, e, http.MethodPost, convPath+"/messages", echo.Map{"body": fmt.Sprintf("m%d", i)}, alice)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	assert.Equal(t, http.StatusBadRequest, call(t, e, http.MethodPost, convPath+"/messages", echo.Map{}, alice).Code)

	rec = call(t, e, http.MethodGet, "/api/v1/chat/unread", nil, bob)
	var unread struct {
		Conversations int64 `json:"conversations"`
		Total         int64 `json:"total"`
	}
	decode(t, rec, &unread)
	assert.Equal(t, int64(5), unread.Conversations)
	assert.Equal(t, int64(5), unread.Total)

	rec = call(t, e, http.MethodGet, convPath+"/messages?limit=2", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Messages []models.DirectMessage `json:"messages"`
	}
	env := decode(t, rec, &page)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m4", page.Messages[0].Body)
	assert.Equal(t, true, env.Meta["hasMore"])
	assert.Equal(t, float64(4), env.Meta["nextBeforeSeq"])

	rec = call(t, e, http.MethodGet, convPath+"/messages?before_seq=4&limit=10", nil, bob)
	env = decode(t, rec, &page)
	require.Len(t, page.Messages, 3)
	assert.Equal(t, false, env.Meta["hasMore"])

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodPut, convPath+"/read", nil, bob).Code)
	rec = call(t, e, http.MethodGet, "/api/v1/chat/unread", nil, bob)
	decode(t, rec, &unread)
	assert.Zero(t, unread.Total)

	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodPatch, convPath+"/messages/1", echo.Map{"body": "x"}, bob).Code)
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodPatch, convPath+"/messages/1", echo.Map{"body": "first"}, alice).Code)
	assert.Equal(t, http.StatusBadRequest, call(t, e, http.MethodDelete, convPath+"/messages/zero", nil, alice).Code)
	assert.Equal(t, http.StatusNoContent, call(t, e, http.MethodDelete, convPath+"/messages/2", nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodDelete, convPath+"/messages/2", nil, alice).Code)

	carol := createUser(t, db, "carol")
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodGet, convPath+"/messages", nil, carol).Code)
	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodGet, "/api/v1/conversations/999/messages", nil, carol).Code)

	assert.Equal(t, http.StatusNoContent, call(t, e, http.MethodDelete, convPath, nil, bob).Code)
	rec = call(t, e, http.MethodGet, convPath+"/messages", nil, bob)
	decode(t, rec, &page)
	assert.Empty(t, page.Messages)
}

func TestRoomsOverHTTP(t *testing.T) {
	db, e := newChatServer(t)
	owner := createUser(t, db, "owner")
	alice := createUser(t, db, "alice")
	outsider := createUser(t, db, "outsider")

	rec := call(t, e, http.MethodPost, "/api/v1/rooms", echo.Map{"name": "team", "is_private": true, "member_ids": []uint{alice.ID}}, owner)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Room models.ChatRoom `json:"room"`
	}
	decode(t, rec, &created)
	roomPath := fmt.Sprintf("/api/v1/rooms/%d", created.Room.ID)

	assert.Equal(t, http.StatusBadRequest, call(t, e, http.MethodPost, "/api/v1/rooms", echo.Map{"name": ""}, owner).Code)
	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodGet, roomPath, nil, outsider).Code)
	assert.Equal(t, http.StatusOK, call(t, e, http.MethodGet, roomPath, nil, alice).Code)

	require.Equal(t, http.StatusCreated, call(t, e, http.MethodPost, roomPath+"/messages", echo.Map{"body": "hello"}, alice).Code)
	rec = call(t, e, http.MethodGet, "/api/v1/chat/unread", nil, owner)
	var unread struct {
		Rooms int64 `json:"rooms"`
		Total int64 `json:"total"`
	}
	decode(t, rec, &unread)
	assert.Equal(t, int64(1), unread.Rooms)
	assert.Equal(t, int64(1), unread.Total)

	rec = call(t, e, http.MethodGet, "/api/v1/rooms", nil, owner)
	var list struct {
		Rooms []models.RoomSummary `json:"rooms"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, int64(1), list.Rooms[0].UnreadCount)
	assert.Equal(t, models.RoomRoleOwner, list.Rooms[0].Role)

	assert.Equal(t, http.StatusOK, call(t, e, http.MethodPut, roomPath+"/read", nil, owner).Code)

	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodPost, roomPath+"/members", echo.Map{"user_id": outsider.ID}, alice).Code)
	assert.Equal(t, http.StatusCreated, call(t, e, http.MethodPost, roomPath+"/members", echo.Map{"user_id": outsider.ID}, owner).Code)
	assert.Equal(t, http.StatusConflict, call(t, e, http.MethodPost, roomPath+"/members", echo.Map{"user_id": outsider.ID}, owner).Code)
	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodDelete, fmt.Sprintf("%s/members/%d", roomPath, owner.ID), nil, owner).Code)
	assert.Equal(t, http.StatusNoContent, call(t, e, http.MethodDelete, fmt.Sprintf("%s/members/%d", roomPath, outsider.ID), nil, outsider).Code)

	assert.Equal(t, http.StatusForbidden, call(t, e, http.MethodDelete, roomPath, nil, alice).Code)
	assert.Equal(t, http.StatusNoContent, call(t, e, http.MethodDelete, roomPath, nil, owner).Code)
	assert.Equal(t, http.StatusNotFound, call(t, e, http.MethodGet, roomPath, nil, owner).Code)
}
