package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ChatService implements direct 1:1 conversations on top of batched message storage
type ChatService struct {
	convs     repositories.ConversationRepository
	users     repositories.UserRepository
	blocks    repositories.BlockRepository
	events    EventPublisher
	presence  PresenceReader
	batchSize int
	log       *logrus.Entry
	now       func() time.Time
}

// NewChatService creates a ChatService. presence may be nil.
func NewChatService(
	convs repositories.ConversationRepository,
	users repositories.UserRepository,
	blocks repositories.BlockRepository,
	events EventPublisher,
	presence PresenceReader,
	batchSize int,
	log *logrus.Entry,
) *ChatService {
	if events == nil {
		events = NopPublisher
	}
	if batchSize < 1 {
		batchSize = 50
	}
	return &ChatService{
		convs:     convs,
		users:     users,
		blocks:    blocks,
		events:    events,
		presence:  presence,
		batchSize: batchSize,
		log:       log,
		now:       time.Now,
	}
}

func notFound(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// StartConversation returns the conversation between userID and peerID,
// creating it on first use. The bool reports creation.
func (s *ChatService) StartConversation(ctx context.Context, userID, peerID uint) (*models.ConversationSummary, bool, error) {
	if userID == peerID {
		return nil, false, ErrSelfAction
	}
	peer, err := s.users.GetUserByID(peerID)
	if err != nil {
		return nil, false, notFound(err)
	}
	blocked, err := s.blocks.IsBlockedEither(userID, peerID)
	if err != nil {
		return nil, false, err
	}
	if blocked {
		return nil, false, ErrBlocked
	}

	conv, created, err := s.convs.GetOrCreate(ctx, userID, peerID)
	if err != nil {
		return nil, false, err
	}
	own, err := s.convs.GetParticipant(ctx, conv.ID, userID)
	if err != nil {
		return nil, false, err
	}
	compact := peer.ToCompact()
	if s.presence != nil {
		compact.IsOnline = s.presence.Online(ctx, []uint{peer.ID})[peer.ID]
	}
	return &models.ConversationSummary{
		ID:                 conv.ID,
		Peer:               compact,
		LastMessagePreview: conv.LastMessagePreview,
		LastMessageAt:      conv.LastMessageAt,
		LastSenderID:       conv.LastSenderID,
		UnreadCount:        own.UnreadCount,
	}, created, nil
}

// ListConversations returns the user's conversations, most recent first
func (s *ChatService) ListConversations(ctx context.Context, userID uint, offset, limit int) ([]models.ConversationSummary, int64, error) {
	convs, total, err := s.convs.ListForUser(ctx, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	if len(convs) == 0 {
		return []models.ConversationSummary{}, total, nil
	}

	convIDs := make([]uint, 0, len(convs))
	peerIDs := make([]uint, 0, len(convs))
	for _, c := range convs {
		convIDs = append(convIDs, c.ID)
		peerIDs = append(peerIDs, c.PeerOf(userID))
	}
	participants, err := s.convs.GetParticipants(ctx, convIDs)
	if err != nil {
		return nil, 0, err
	}
	type key struct{ conv, user uint }
	state := make(map[key]models.ConversationParticipant, len(participants))
	for _, p := range participants {
		state[key{p.ConversationID, p.UserID}] = p
	}

	peers, err := s.users.GetUsersByIDs(peerIDs)
	if err != nil {
		return nil, 0, err
	}
	related, err := s.blocks.GetRelatedIDs(userID)
	if err != nil {
		return nil, 0, err
	}
	blocked := make(map[uint]bool, len(related))
	for _, id := range related {
		blocked[id] = true
	}
	online := map[uint]bool{}
	if s.presence != nil {
		online = s.presence.Online(ctx, peerIDs)
	}

	out := make([]models.ConversationSummary, 0, len(convs))
	for _, c := range convs {
		peerID := c.PeerOf(userID)
		peer := models.UserCompact{ID: peerID, DisplayName: "Deleted user"}
		if u, ok := peers[peerID]; ok {
			peer = u.ToCompact()
			if s.presence != nil {
				peer.IsOnline = online[peerID]
			}
		}
		own := state[key{c.ID, userID}]
		summary := models.ConversationSummary{
			ID:              c.ID,
			Peer:            peer,
			LastMessageAt:   c.LastMessageAt,
			LastSenderID:    c.LastSenderID,
			UnreadCount:     own.UnreadCount,
			PeerLastReadSeq: state[key{c.ID, peerID}].LastReadSeq,
			Blocked:         blocked[peerID],
		}
		if c.MessageCount > own.ClearedSeq {
			summary.LastMessagePreview = c.LastMessagePreview
		}
		out = append(out, summary)
	}
	return out, total, nil
}

// conversationFor loads a conversation the user takes part in
func (s *ChatService) conversationFor(ctx context.Context, userID, convID uint) (*models.Conversation, error) {
	conv, err := s.convs.GetConversation(ctx, convID)
	if err != nil {
		return nil, notFound(err)
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

func toDirectMessage(convID, viewerID uint, m models.BatchedMessage, peerLastRead int64) models.DirectMessage {
	return models.DirectMessage{
		ID:             m.ID,
		ConversationID: convID,
		Seq:            m.Seq,
		SenderID:       m.SenderID,
		Body:           m.Body,
		MediaURL:       m.MediaURL,
		CreatedAt:      m.CreatedAt,
		EditedAt:       m.EditedAt,
		IsMine:         m.SenderID == viewerID,
		IsRead:         m.Seq <= peerLastRead,
	}
}

// SendMessage appends a message to the conversation
func (s *ChatService) SendMessage(ctx context.Context, userID, convID uint, req models.SendMessageRequest) (*models.DirectMessage, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" && req.MediaURL == "" {
		return nil, ErrInvalidInput
	}
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	peerID := conv.PeerOf(userID)
	blocked, err := s.blocks.IsBlockedEither(userID, peerID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	stored, _, err := s.convs.AppendMessage(ctx, conv.ID, models.BatchedMessage{
		ID:        uuid.NewString(),
		SenderID:  userID,
		Body:      body,
		MediaURL:  req.MediaURL,
		CreatedAt: s.now().UTC(),
	}, s.batchSize)
	if err != nil {
		return nil, err
	}
	metrics.RecordChatMessage("direct")

	mine := toDirectMessage(conv.ID, userID, *stored, 0)
	s.events.PublishToUser(userID, "message.created", mine)
	s.events.PublishToUser(peerID, "message.created", toDirectMessage(conv.ID, peerID, *stored, 0))
	return &mine, nil
}

// GetMessages returns up to limit visible messages with seq below beforeSeq
// (0 for the newest), oldest first. The bool reports whether older visible
// history may exist.
func (s *ChatService) GetMessages(ctx context.Context, userID, convID uint, beforeSeq int64, limit int) ([]models.DirectMessage, bool, error) {
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return nil, false, err
	}
	own, err := s.convs.GetParticipant(ctx, conv.ID, userID)
	if err != nil {
		return nil, false, err
	}
	var peerLastRead int64
	if peer, err := s.convs.GetParticipant(ctx, conv.ID, conv.PeerOf(userID)); err == nil {
		peerLastRead = peer.LastReadSeq
	}

	cursor := beforeSeq
	if cursor <= 0 || cursor > conv.MessageCount+1 {
		cursor = conv.MessageCount + 1
	}
	floor := own.ClearedSeq

	collected := make([]models.DirectMessage, 0, limit)
	hasMore := false
walk:
	for cursor > floor+1 {
		batch, err := s.convs.GetBatchBefore(ctx, conv.ID, cursor)
		if errors.Is(err, repositories.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		for i := len(batch.Messages) - 1; i >= 0; i-- {
			m := batch.Messages[i]
			if m.Seq >= cursor || m.Deleted {
				continue
			}
			if m.Seq <= floor {
				break walk
			}
			if len(collected) == limit {
				hasMore = true
				break walk
			}
			collected = append(collected, toDirectMessage(conv.ID, userID, m, peerLastRead))
		}
		cursor = batch.FirstSeq
	}

	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return collected, hasMore, nil
}

// MarkRead moves the user's read pointer to the newest message and tells the peer
func (s *ChatService) MarkRead(ctx context.Context, userID, convID uint) (*models.ConversationParticipant, error) {
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	p, changed, err := s.convs.MarkRead(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.events.PublishToUser(conv.PeerOf(userID), "conversation.read", map[string]interface{}{
			"conversation_id": conv.ID,
			"user_id":         userID,
			"last_read_seq":   p.LastReadSeq,
		})
	}
	return p, nil
}

// EditMessage replaces the body of the user's own message
func (s *ChatService) EditMessage(ctx context.Context, userID, convID uint, seq int64, body string) (*models.DirectMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrInvalidInput
	}
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return nil, err
	}
	updated, err := s.convs.UpdateMessage(ctx, conv.ID, seq, func(m *models.BatchedMessage) error {
		if m.SenderID != userID {
			return ErrForbidden
		}
		now := s.now().UTC()
		m.Body = body
		m.EditedAt = &now
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}
	dto := toDirectMessage(conv.ID, userID, *updated, 0)
	s.events.PublishToUser(userID, "message.updated", dto)
	s.events.PublishToUser(conv.PeerOf(userID), "message.updated", toDirectMessage(conv.ID, conv.PeerOf(userID), *updated, 0))
	return &dto, nil
}

// DeleteMessage soft deletes the user's own message inside its batch
func (s *ChatService) DeleteMessage(ctx context.Context, userID, convID uint, seq int64) error {
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return err
	}
	_, err = s.convs.UpdateMessage(ctx, conv.ID, seq, func(m *models.BatchedMessage) error {
		if m.SenderID != userID {
			return ErrForbidden
		}
		m.Deleted = true
		m.Body = ""
		m.MediaURL = ""
		return nil
	})
	if err != nil {
		return notFound(err)
	}
	payload := map[string]interface{}{"conversation_id": conv.ID, "seq": seq}
	s.events.PublishToUser(userID, "message.deleted", payload)
	s.events.PublishToUser(conv.PeerOf(userID), "message.deleted", payload)
	return nil
}

// ClearConversation hides the current history from the user only
func (s *ChatService) ClearConversation(ctx context.Context, userID, convID uint) error {
	conv, err := s.conversationFor(ctx, userID, convID)
	if err != nil {
		return err
	}
	return notFound(s.convs.ClearHistory(ctx, conv.ID, userID))
}

// UnreadCount sums unread direct messages over all conversations of the user
func (s *ChatService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.convs.UnreadTotal(ctx, userID)
}

// IsParticipant reports whether the user takes part in the conversation
func (s *ChatService) IsParticipant(ctx context.Context, userID, convID uint) bool {
	_, err := s.conversationFor(ctx, userID, convID)
	return err == nil
}
