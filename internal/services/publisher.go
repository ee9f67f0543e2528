package services

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// EventPublisher delivers realtime events to hub groups
type EventPublisher interface {
	Publish(group, eventType string, data interface{})
	PublishToUser(userID uint, eventType string, data interface{})
	JoinUser(userID uint, group string)
	LeaveUser(userID uint, group string)
}

// Pusher sends mobile push messages. *messaging.Client satisfies it.
type Pusher interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PresenceReader answers online lookups for list views
type PresenceReader interface {
	Online(ctx context.Context, userIDs []uint) map[uint]bool
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, interface{})     {}
func (nopPublisher) PublishToUser(uint, string, interface{}) {}
func (nopPublisher) JoinUser(uint, string)                   {}
func (nopPublisher) LeaveUser(uint, string)                  {}

// NopPublisher discards every event
var NopPublisher EventPublisher = nopPublisher{}
