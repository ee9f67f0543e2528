package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// RoomHandler serves group chat rooms
type RoomHandler struct {
	rooms *services.RoomService
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// RegisterRoomRoutes registers room routes
func (h *RoomHandler) RegisterRoomRoutes(g *echo.Group) {
	g.POST("/rooms", h.CreateRoom)
	g.GET("/rooms", h.ListRooms)
	g.GET("/rooms/:id", h.GetRoom)
	g.DELETE("/rooms/:id", h.DeleteRoom)
	g.POST("/rooms/:id/members", h.AddMember)
	g.DELETE("/rooms/:id/members/:user_id", h.RemoveMember)
	g.POST("/rooms/:id/messages", h.SendMessage)
	g.GET("/rooms/:id/messages", h.GetMessages)
	g.PUT("/rooms/:id/read", h.MarkRead)
	g.DELETE("/rooms/:id/messages/:message_id", h.DeleteMessage)
}

// CreateRoom creates a room owned by the caller
func (h *RoomHandler) CreateRoom(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.CreateRoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	room, err := h.rooms.CreateRoom(c.Request().Context(), currentUserID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"room": room})
}

// ListRooms lists the caller's rooms with unread counts
func (h *RoomHandler) ListRooms(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	rooms, err := h.rooms.ListRooms(c.Request().Context(), currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"rooms": rooms})
}

// GetRoom returns a room and the caller's membership, if any
func (h *RoomHandler) GetRoom(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	room, member, err := h.rooms.GetRoom(c.Request().Context(), currentUserID, roomID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"room": room, "membership": member})
}

// DeleteRoom deletes a room. Only the owner may do this.
func (h *RoomHandler) DeleteRoom(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.rooms.DeleteRoom(c.Request().Context(), currentUserID, roomID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddMember adds a user to a room
func (h *RoomHandler) AddMember(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	var req models.AddRoomMemberRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.rooms.AddMember(c.Request().Context(), currentUserID, roomID, req.UserID); err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"room_id": roomID, "user_id": req.UserID})
}

// RemoveMember removes a member, or lets the caller leave
func (h *RoomHandler) RemoveMember(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	userID, err := parseUintParam(c, "user_id")
	if err != nil {
		return err
	}
	if err := h.rooms.RemoveMember(c.Request().Context(), currentUserID, roomID, userID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SendMessage posts a message to a room
func (h *RoomHandler) SendMessage(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	msg, err := h.rooms.SendMessage(c.Request().Context(), currentUserID, roomID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"message": msg})
}

// GetMessages returns room messages older than before_id, oldest first
func (h *RoomHandler) GetMessages(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	beforeID, _ := strconv.ParseUint(c.QueryParam("before_id"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 30
	}

	messages, err := h.rooms.GetMessages(c.Request().Context(), currentUserID, roomID, uint(beforeID), limit)
	if err != nil {
		return mapServiceError(err)
	}
	meta := echo.Map{"hasMore": len(messages) == limit}
	if len(messages) > 0 {
		meta["nextBeforeId"] = messages[0].ID
	}
	return successWithMeta(c, echo.Map{"messages": messages}, meta)
}

// MarkRead marks the room read up to its newest message
func (h *RoomHandler) MarkRead(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	lastID, err := h.rooms.MarkRead(c.Request().Context(), currentUserID, roomID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"last_read_message_id": lastID})
}

// DeleteMessage deletes a room message. Senders and room managers may do this.
func (h *RoomHandler) DeleteMessage(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	roomID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	messageID, err := parseUintParam(c, "message_id")
	if err != nil {
		return err
	}
	if err := h.rooms.DeleteMessage(c.Request().Context(), currentUserID, roomID, messageID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
