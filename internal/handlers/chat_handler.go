package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ChatHandler serves direct 1:1 conversations
type ChatHandler struct {
	chat  *services.ChatService
	rooms *services.RoomService
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(chat *services.ChatService, rooms *services.RoomService) *ChatHandler {
	return &ChatHandler{chat: chat, rooms: rooms}
}

// RegisterChatRoutes registers conversation routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/conversations", h.StartConversation)
	g.GET("/conversations", h.ListConversations)
	g.DELETE("/conversations/:id", h.ClearConversation)
	g.POST("/conversations/:id/messages", h.SendMessage)
	g.GET("/conversations/:id/messages", h.GetMessages)
	g.PUT("/conversations/:id/read", h.MarkRead)
	g.PATCH("/conversations/:id/messages/:seq", h.EditMessage)
	g.DELETE("/conversations/:id/messages/:seq", h.DeleteMessage)
	g.GET("/chat/unread", h.UnreadCounts)
}

func parseSeq(c echo.Context) (int64, error) {
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid seq")
	}
	return seq, nil
}

// StartConversation returns the conversation with another user, creating it when needed
func (h *ChatHandler) StartConversation(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req models.StartConversationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	summary, created, err := h.chat.StartConversation(c.Request().Context(), currentUserID, req.UserID)
	if err != nil {
		return mapServiceError(err)
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return success(c, status, echo.Map{"conversation": summary})
}

// ListConversations lists the caller's conversations, most recent activity first
func (h *ChatHandler) ListConversations(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20, 50)
	conversations, total, err := h.chat.ListConversations(c.Request().Context(), currentUserID, (page-1)*limit, limit)
	if err != nil {
		return mapServiceError(err)
	}
	return successWithMeta(c, echo.Map{"conversations": conversations}, paginationMeta(page, limit, total))
}

// SendMessage appends a message to a conversation
func (h *ChatHandler) SendMessage(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	convID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.chat.SendMessage(c.Request().Context(), currentUserID, convID, req)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusCreated, echo.Map{"message": msg})
}

// GetMessages returns a page of messages older than before_seq, oldest first
func (h *ChatHandler) GetMessages(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	convID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	beforeSeq, _ := strconv.ParseInt(c.QueryParam("before_seq"), 10, 64)
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 30
	}

	messages, hasMore, err := h.chat.GetMessages(c.Request().Context(), currentUserID, convID, beforeSeq, limit)
	if err != nil {
		return mapServiceError(err)
	}
	meta := echo.Map{"hasMore": hasMore}
	if len(messages) > 0 {
		meta["nextBeforeSeq"] = messages[0].Seq
	}
	return successWithMeta(c, echo.Map{"messages": messages}, meta)
}

// MarkRead marks the conversation read up to its newest message
func (h *ChatHandler) MarkRead(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	convID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	p, err := h.chat.MarkRead(c.Request().Context(), currentUserID, convID)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{
		"last_read_seq": p.LastReadSeq,
		"unread_count":  p.UnreadCount,
	})
}

// EditMessage replaces the body of one of the caller's messages
func (h *ChatHandler) EditMessage(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	convID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	seq, err := parseSeq(c)
	if err != nil {
		return err
	}
	var req models.EditMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.chat.EditMessage(c.Request().Context(), currentUserID, convID, seq, req.Body)
	if err != nil {
		return mapServiceError(err)
	}
	return success(c, http.StatusOK, echo.Map{"message": msg})
}

// DeleteMessage deletes one of the caller's messages
func (h *ChatHandler) DeleteMessage(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	convID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	seq, err := parseSeq(c)
	if err != nil {
		return err
	}
	if err := h.chat.DeleteMessage(c.Request().Context(), currentUserID, convID, seq); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearConversation hides the conversation history for the caller only
func (h *ChatHandler) ClearConversation(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	convID, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.chat.ClearConversation(c.Request().Context(), currentUserID, convID); err != nil {
		return mapServiceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UnreadCounts returns unread totals across conversations and rooms
func (h *ChatHandler) UnreadCounts(c echo.Context) error {
	currentUserID, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	direct, err := h.chat.UnreadCount(ctx, currentUserID)
	if err != nil {
		return mapServiceError(err)
	}
	var rooms int64
	if h.rooms != nil {
		if rooms, err = h.rooms.UnreadCount(ctx, currentUserID); err != nil {
			return mapServiceError(err)
		}
	}
	return success(c, http.StatusOK, echo.Map{
		"conversations": direct,
		"rooms":         rooms,
		"total":         direct + rooms,
	})
}
