// Package realtime implements the group based websocket broadcast hub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event is the outbound frame written to clients
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// UserGroup is the group every connection of a user joins
func UserGroup(userID uint) string { return "user:" + strconv.FormatUint(uint64(userID), 10) }

// RoomGroup is the group of a chat room
func RoomGroup(roomID uint) string { return "room:" + strconv.FormatUint(uint64(roomID), 10) }

// ParseRoomGroup extracts the room id from a "room:<id>" group name
func ParseRoomGroup(group string) (uint, bool) {
	rest, ok := strings.CutPrefix(group, "room:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Resolver answers membership questions for inbound client frames
type Resolver interface {
	CanJoin(ctx context.Context, userID uint, group string) bool
	TypingGroups(ctx context.Context, userID, conversationID, roomID uint) []string
	InitialGroups(ctx context.Context, userID uint) []string
}

// Hooks are called when a user's first connection opens, the last one
// closes, or a connection answers a ping.
type Hooks struct {
	Connected    func(userID uint)
	Disconnected func(userID uint)
	Heartbeat    func(userID uint)
}

const (
	opEvent = "event"
	opJoin  = "join"
	opLeave = "leave"
)

// envelope is what travels over the backplane between instances
type envelope struct {
	Op      string          `json:"op"`
	Origin  string          `json:"origin"`
	Group   string          `json:"group"`
	UserID  uint            `json:"user_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hub tracks local connections by group and fans events out to them
type Hub struct {
	mu      sync.RWMutex
	groups  map[string]map[*Client]struct{}
	byUser  map[uint]map[*Client]struct{}
	origin  string
	bp      Backplane
	hooks   Hooks
	resolve Resolver
	log     *logrus.Entry
}

// NewHub creates a hub. bp may be nil for a single instance deployment.
func NewHub(log *logrus.Entry, bp Backplane, resolver Resolver, hooks Hooks) *Hub {
	return &Hub{
		groups:  make(map[string]map[*Client]struct{}),
		byUser:  make(map[uint]map[*Client]struct{}),
		origin:  uuid.NewString(),
		bp:      bp,
		hooks:   hooks,
		resolve: resolver,
		log:     log,
	}
}

// Run consumes the backplane until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	if h.bp == nil {
		<-ctx.Done()
		return
	}
	h.log.Info("realtime backplane subscribed")
	if err := h.bp.Subscribe(ctx, h.handleRemote); err != nil && ctx.Err() == nil {
		h.log.WithError(err).Error("realtime backplane stopped")
	}
}

func (h *Hub) handleRemote(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.log.WithError(err).Warn("dropping malformed backplane message")
		return
	}
	if env.Origin == h.origin {
		return
	}
	switch env.Op {
	case opEvent:
		h.deliver(env.Group, env.Payload, nil)
	case opJoin:
		h.joinUserLocal(env.UserID, env.Group)
	case opLeave:
		h.leaveUserLocal(env.UserID, env.Group)
	}
}

// Register adds a client and joins it to its user group
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	conns, ok := h.byUser[c.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.byUser[c.userID] = conns
	}
	conns[c] = struct{}{}
	first := len(conns) == 1
	h.joinLocked(c, UserGroup(c.userID))
	h.mu.Unlock()

	metrics.ConnectionOpened()
	if first && h.hooks.Connected != nil {
		h.hooks.Connected(c.userID)
	}
}

// Unregister removes a client from every group and closes its send channel
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	conns, ok := h.byUser[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(conns, c)
	last := len(conns) == 0
	if last {
		delete(h.byUser, c.userID)
	}
	for group := range c.groups {
		h.leaveLocked(c, group)
	}
	close(c.send)
	h.mu.Unlock()

	metrics.ConnectionClosed()
	if last && h.hooks.Disconnected != nil {
		h.hooks.Disconnected(c.userID)
	}
}

func (h *Hub) joinLocked(c *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
	c.groups[group] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	delete(c.groups, group)
}

// Join adds one client to a group
func (h *Hub) Join(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.byUser[c.userID][c]; !ok {
		return
	}
	h.joinLocked(c, group)
}

// Leave removes one client from a group. The user group cannot be left.
func (h *Hub) Leave(c *Client, group string) {
	if group == UserGroup(c.userID) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, group)
}

// JoinUser adds every connection of a user, on any instance, to a group
func (h *Hub) JoinUser(userID uint, group string) {
	h.joinUserLocal(userID, group)
	h.broadcast(envelope{Op: opJoin, Group: group, UserID: userID})
}

// LeaveUser removes every connection of a user, on any instance, from a group
func (h *Hub) LeaveUser(userID uint, group string) {
	h.leaveUserLocal(userID, group)
	h.broadcast(envelope{Op: opLeave, Group: group, UserID: userID})
}

func (h *Hub) joinUserLocal(userID uint, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byUser[userID] {
		h.joinLocked(c, group)
	}
}

func (h *Hub) leaveUserLocal(userID uint, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.byUser[userID] {
		h.leaveLocked(c, group)
	}
}

// Publish sends an event to every member of a group on every instance
func (h *Hub) Publish(group, eventType string, data interface{}) {
	h.publish(group, eventType, data, nil)
}

// PublishToUser sends an event to every connection of a user
func (h *Hub) PublishToUser(userID uint, eventType string, data interface{}) {
	h.publish(UserGroup(userID), eventType, data, nil)
}

func (h *Hub) publish(group, eventType string, data interface{}, exclude *Client) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		h.log.WithError(err).WithField("event", eventType).Error("failed to encode event")
		return
	}
	h.deliver(group, payload, exclude)
	h.broadcast(envelope{Op: opEvent, Group: group, Payload: payload})
}

func (h *Hub) broadcast(env envelope) {
	if h.bp == nil {
		return
	}
	env.Origin = h.origin
	raw, err := json.Marshal(env)
	if err != nil {
		h.log.WithError(err).Error("failed to encode backplane message")
		return
	}
	if err := h.bp.Publish(context.Background(), raw); err != nil {
		h.log.WithError(err).WithField("group", env.Group).Warn("backplane publish failed")
	}
}

// deliver writes payload to local group members. Clients whose buffer is
// full are dropped.
func (h *Hub) deliver(group string, payload []byte, exclude *Client) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.groups[group] {
		if c == exclude {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.WithField("user_id", c.userID).Warn("dropping slow websocket consumer")
		metrics.SlowConsumerDropped()
		h.Unregister(c)
		c.close()
	}
}

// reply writes an event to a single registered client
func (h *Hub) reply(c *Client, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.byUser[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// IsConnected reports whether the user has a connection on this instance
func (h *Hub) IsConnected(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser[userID]) > 0
}

// GroupSize returns the number of local connections in a group
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// inboundFrame is what clients send
type inboundFrame struct {
	Type           string `json:"type"`
	Group          string `json:"group,omitempty"`
	ConversationID uint   `json:"conversation_id,omitempty"`
	RoomID         uint   `json:"room_id,omitempty"`
}

// HandleInbound processes one frame read from a client
func (h *Hub) HandleInbound(ctx context.Context, c *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.reply(c, "error", map[string]string{"message": "invalid frame"})
		return
	}
	switch frame.Type {
	case "ping":
		h.reply(c, "pong", nil)
	case "join":
		if h.resolve == nil || !h.resolve.CanJoin(ctx, c.userID, frame.Group) {
			h.reply(c, "error", map[string]string{"message": fmt.Sprintf("cannot join %s", frame.Group)})
			return
		}
		h.Join(c, frame.Group)
		h.reply(c, "joined", map[string]string{"group": frame.Group})
	case "leave":
		h.Leave(c, frame.Group)
		h.reply(c, "left", map[string]string{"group": frame.Group})
	case "typing":
		if h.resolve == nil {
			return
		}
		data := map[string]uint{"user_id": c.userID}
		if frame.ConversationID > 0 {
			data["conversation_id"] = frame.ConversationID
		}
		if frame.RoomID > 0 {
			data["room_id"] = frame.RoomID
		}
		for _, group := range h.resolve.TypingGroups(ctx, c.userID, frame.ConversationID, frame.RoomID) {
			h.publish(group, "typing", data, c)
		}
	default:
		h.reply(c, "error", map[string]string{"message": "unknown frame type"})
	}
}

// Attach registers the client and joins the groups the user belongs to
func (h *Hub) Attach(ctx context.Context, c *Client) {
	h.Register(c)
	if h.resolve == nil {
		return
	}
	for _, group := range h.resolve.InitialGroups(ctx, c.userID) {
		h.Join(c, group)
	}
}
