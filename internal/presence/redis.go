package presence

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps one hash per user with a field per server instance
// holding that instance's expiry, so a user stays online while any
// instance still refreshes its claim.
type RedisTracker struct {
	client   *redis.Client
	instance string
	ttl      time.Duration
	now      func() time.Time
}

func NewRedisTracker(client *redis.Client, instance string, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, instance: instance, ttl: ttl, now: time.Now}
}

func presenceKey(userID uint) string {
	return "presence:" + strconv.FormatUint(uint64(userID), 10)
}

func (t *RedisTracker) Touch(ctx context.Context, userID uint) error {
	key := presenceKey(userID)
	exp := t.now().Add(t.ttl).Unix()
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, t.instance, exp)
	pipe.Expire(ctx, key, t.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (t *RedisTracker) Remove(ctx context.Context, userID uint) error {
	return t.client.HDel(ctx, presenceKey(userID), t.instance).Err()
}

func (t *RedisTracker) IsOnline(ctx context.Context, userID uint) (bool, error) {
	claims, err := t.client.HGetAll(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return t.anyLive(claims), nil
}

func (t *RedisTracker) Online(ctx context.Context, userIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}
	pipe := t.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, presenceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}
	for i, id := range userIDs {
		claims, err := cmds[i].Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		result[id] = t.anyLive(claims)
	}
	return result, nil
}

func (t *RedisTracker) anyLive(claims map[string]string) bool {
	now := t.now().Unix()
	for _, v := range claims {
		exp, err := strconv.ParseInt(v, 10, 64)
		if err == nil && exp > now {
			return true
		}
	}
	return false
}
