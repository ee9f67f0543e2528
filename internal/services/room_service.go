package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/sirupsen/logrus"
)

// RoomService implements group chat rooms
type RoomService struct {
	rooms  repositories.RoomRepository
	users  repositories.UserRepository
	blocks repositories.BlockRepository
	events EventPublisher
	log    *logrus.Entry
}

func NewRoomService(
	rooms repositories.RoomRepository,
	users repositories.UserRepository,
	blocks repositories.BlockRepository,
	events EventPublisher,
	log *logrus.Entry,
) *RoomService {
	if events == nil {
		events = NopPublisher
	}
	return &RoomService{rooms: rooms, users: users, blocks: blocks, events: events, log: log}
}

// CreateRoom creates a room owned by ownerID. Unknown users, the owner
// itself and users in a block relation with the owner are skipped.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uint, req models.CreateRoomRequest) (*models.ChatRoom, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	related, err := s.blocks.GetRelatedIDs(ownerID)
	if err != nil {
		return nil, err
	}
	skip := map[uint]bool{ownerID: true}
	for _, id := range related {
		skip[id] = true
	}
	existing, err := s.users.GetUsersByIDs(req.MemberIDs)
	if err != nil {
		return nil, err
	}
	members := make([]uint, 0, len(req.MemberIDs))
	for _, id := range req.MemberIDs {
		if _, ok := existing[id]; !ok || skip[id] {
			continue
		}
		skip[id] = true
		members = append(members, id)
	}

	room := &models.ChatRoom{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		OwnerID:     ownerID,
		IsPrivate:   req.IsPrivate,
	}
	if err := s.rooms.CreateRoom(ctx, room, members); err != nil {
		return nil, err
	}

	group := realtime.RoomGroup(room.ID)
	for _, id := range append([]uint{ownerID}, members...) {
		s.events.JoinUser(id, group)
		s.events.PublishToUser(id, "room.created", room)
	}
	return room, nil
}

// ListRooms lists the user's rooms. Unread counts skip senders in a block
// relation with the user, matching what ListMessages shows.
func (s *RoomService) ListRooms(ctx context.Context, userID uint) ([]models.RoomSummary, error) {
	related, err := s.blocks.GetRelatedIDs(userID)
	if err != nil {
		return nil, err
	}
	return s.rooms.ListForUser(ctx, userID, related)
}

// membership returns the user's membership or nil when not a member
func (s *RoomService) membership(ctx context.Context, roomID, userID uint) (*models.ChatRoomMember, error) {
	m, err := s.rooms.GetMember(ctx, roomID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	return m, err
}

// GetRoom returns a room. Private rooms are invisible to non-members.
func (s *RoomService) GetRoom(ctx context.Context, userID, roomID uint) (*models.ChatRoom, *models.ChatRoomMember, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, notFound(err)
	}
	member, err := s.membership(ctx, roomID, userID)
	if err != nil {
		return nil, nil, err
	}
	if room.IsPrivate && member == nil {
		return nil, nil, ErrNotFound
	}
	return room, member, nil
}

// requireMember loads the room and the caller's membership
func (s *RoomService) requireMember(ctx context.Context, userID, roomID uint) (*models.ChatRoom, *models.ChatRoomMember, error) {
	room, member, err := s.GetRoom(ctx, userID, roomID)
	if err != nil {
		return nil, nil, err
	}
	if member == nil {
		return nil, nil, ErrNotParticipant
	}
	return room, member, nil
}

// AddMember adds userID to the room. Owners and admins may add anyone not
// blocked with them, anybody may join a public room themselves.
func (s *RoomService) AddMember(ctx context.Context, actorID, roomID, userID uint) error {
	room, actor, err := s.GetRoom(ctx, actorID, roomID)
	if err != nil {
		return err
	}
	if userID != actorID {
		if actor == nil || !actor.CanManage() {
			return ErrForbidden
		}
		if _, err := s.users.GetUserByID(userID); err != nil {
			return notFound(err)
		}
		blocked, err := s.blocks.IsBlockedEither(actorID, userID)
		if err != nil {
			return err
		}
		if blocked {
			return ErrBlocked
		}
	} else if room.IsPrivate && actor == nil {
		return ErrForbidden
	}

	if err := s.rooms.AddMember(ctx, roomID, userID, models.RoomRoleMember); err != nil {
		return err
	}
	group := realtime.RoomGroup(roomID)
	s.events.JoinUser(userID, group)
	s.events.Publish(group, "room.member_joined", map[string]uint{"room_id": roomID, "user_id": userID})
	return nil
}

// RemoveMember removes userID from the room. Members may leave, owners and
// admins may remove others. The owner can neither leave nor be removed.
func (s *RoomService) RemoveMember(ctx context.Context, actorID, roomID, userID uint) error {
	room, actor, err := s.requireMember(ctx, actorID, roomID)
	if err != nil {
		return err
	}
	if userID == room.OwnerID {
		return ErrForbidden
	}
	if userID != actorID && !actor.CanManage() {
		return ErrForbidden
	}
	if err := s.rooms.RemoveMember(ctx, roomID, userID); err != nil {
		return notFound(err)
	}
	group := realtime.RoomGroup(roomID)
	payload := map[string]uint{"room_id": roomID, "user_id": userID}
	s.events.Publish(group, "room.member_left", payload)
	s.events.LeaveUser(userID, group)
	return nil
}

func (s *RoomService) senders(ids []uint) map[uint]models.UserCompact {
	users, err := s.users.GetUsersByIDs(ids)
	if err != nil {
		s.log.WithError(err).Warn("failed to load message senders")
		return map[uint]models.UserCompact{}
	}
	out := make(map[uint]models.UserCompact, len(users))
	for id, u := range users {
		out[id] = u.ToCompact()
	}
	return out
}

// SendMessage posts a message to a room the user belongs to
func (s *RoomService) SendMessage(ctx context.Context, userID, roomID uint, req models.SendMessageRequest) (*models.RoomMessage, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" && req.MediaURL == "" {
		return nil, ErrInvalidInput
	}
	if _, _, err := s.requireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	msg := &models.ChatMessage{
		RoomID:    roomID,
		SenderID:  userID,
		Body:      body,
		MediaURL:  req.MediaURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.rooms.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.RecordChatMessage("room")

	out := &models.RoomMessage{ChatMessage: *msg, Sender: s.senders([]uint{userID})[userID]}
	s.events.Publish(realtime.RoomGroup(roomID), "message.created", out)
	return out, nil
}

// GetMessages returns room history older than beforeID, oldest first,
// without messages of users in a block relation with the caller.
func (s *RoomService) GetMessages(ctx context.Context, userID, roomID, beforeID uint, limit int) ([]models.RoomMessage, error) {
	if _, _, err := s.requireMember(ctx, userID, roomID); err != nil {
		return nil, err
	}
	related, err := s.blocks.GetRelatedIDs(userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.rooms.ListMessages(ctx, roomID, beforeID, related, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	senders := s.senders(ids)
	out := make([]models.RoomMessage, 0, len(msgs))
	for _, m := range msgs {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender = models.UserCompact{ID: m.SenderID, DisplayName: "Deleted user"}
		}
		out = append(out, models.RoomMessage{ChatMessage: m, Sender: sender})
	}
	return out, nil
}

// MarkRead marks every current room message read for the user
func (s *RoomService) MarkRead(ctx context.Context, userID, roomID uint) (uint, error) {
	if _, _, err := s.requireMember(ctx, userID, roomID); err != nil {
		return 0, err
	}
	return s.rooms.MarkRead(ctx, roomID, userID)
}

// DeleteMessage soft deletes a message. Senders, owners and admins may delete.
func (s *RoomService) DeleteMessage(ctx context.Context, userID, roomID, messageID uint) error {
	_, member, err := s.requireMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	msg, err := s.rooms.GetMessage(ctx, roomID, messageID)
	if err != nil {
		return notFound(err)
	}
	if msg.SenderID != userID && !member.CanManage() {
		return ErrForbidden
	}
	if err := s.rooms.DeleteMessage(ctx, roomID, messageID); err != nil {
		return notFound(err)
	}
	s.events.Publish(realtime.RoomGroup(roomID), "message.deleted", map[string]uint{"room_id": roomID, "message_id": messageID})
	return nil
}

// DeleteRoom soft deletes a room, owner only
func (s *RoomService) DeleteRoom(ctx context.Context, userID, roomID uint) error {
	room, _, err := s.requireMember(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != userID {
		return ErrForbidden
	}
	memberIDs, err := s.rooms.GetMemberIDs(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.rooms.DeleteRoom(ctx, roomID); err != nil {
		return notFound(err)
	}
	group := realtime.RoomGroup(roomID)
	s.events.Publish(group, "room.deleted", map[string]uint{"room_id": roomID})
	for _, id := range memberIDs {
		s.events.LeaveUser(id, group)
	}
	return nil
}

func (s *RoomService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	related, err := s.blocks.GetRelatedIDs(userID)
	if err != nil {
		return 0, err
	}
	return s.rooms.UnreadTotal(ctx, userID, related)
}
