package services

import (
	"context"

	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/sirupsen/logrus"
)

// HubResolver answers hub membership questions from the chat tables
type HubResolver struct {
	convs  repositories.ConversationRepository
	rooms  repositories.RoomRepository
	blocks repositories.BlockRepository
	log    *logrus.Entry
}

func NewHubResolver(convs repositories.ConversationRepository, rooms repositories.RoomRepository, blocks repositories.BlockRepository, log *logrus.Entry) *HubResolver {
	return &HubResolver{convs: convs, rooms: rooms, blocks: blocks, log: log}
}

// CanJoin allows joining room groups of rooms the user belongs to
func (r *HubResolver) CanJoin(ctx context.Context, userID uint, group string) bool {
	roomID, ok := realtime.ParseRoomGroup(group)
	if !ok {
		return false
	}
	_, err := r.rooms.GetMember(ctx, roomID, userID)
	return err == nil
}

// TypingGroups returns where a typing indicator should go: the peer of a
// conversation (unless blocked) and/or the room group.
func (r *HubResolver) TypingGroups(ctx context.Context, userID, conversationID, roomID uint) []string {
	var groups []string
	if conversationID > 0 {
		conv, err := r.convs.GetConversation(ctx, conversationID)
		if err == nil && conv.HasParticipant(userID) {
			peer := conv.PeerOf(userID)
			if blocked, err := r.blocks.IsBlockedEither(userID, peer); err == nil && !blocked {
				groups = append(groups, realtime.UserGroup(peer))
			}
		}
	}
	if roomID > 0 && r.CanJoin(ctx, userID, realtime.RoomGroup(roomID)) {
		groups = append(groups, realtime.RoomGroup(roomID))
	}
	return groups
}

// InitialGroups returns the room groups a new connection joins
func (r *HubResolver) InitialGroups(ctx context.Context, userID uint) []string {
	ids, err := r.rooms.GetRoomIDsForUser(ctx, userID)
	if err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("failed to load rooms for connection")
		return nil
	}
	groups := make([]string, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, realtime.RoomGroup(id))
	}
	return groups
}
