package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Backplane carries hub traffic between server instances
type Backplane interface {
	Publish(ctx context.Context, msg []byte) error
	// Subscribe calls handle for every message until ctx is cancelled
	Subscribe(ctx context.Context, handle func([]byte)) error
}

// RedisBackplane fans hub messages out over a Redis pub/sub channel
type RedisBackplane struct {
	client  *redis.Client
	channel string
}

func NewRedisBackplane(client *redis.Client, channel string) *RedisBackplane {
	if channel == "" {
		channel = "social:hub"
	}
	return &RedisBackplane{client: client, channel: channel}
}

func (b *RedisBackplane) Publish(ctx context.Context, msg []byte) error {
	return b.client.Publish(ctx, b.channel, msg).Err()
}

func (b *RedisBackplane) Subscribe(ctx context.Context, handle func([]byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handle([]byte(msg.Payload))
		}
	}
}
