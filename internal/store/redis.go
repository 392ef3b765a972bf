package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitTTL = time.Minute

// RedisStore handles Redis operations: per-conversation unread counters,
// HTTP rate limiting, and a best-effort mirror of the online-user set for
// the admin dashboard. Every feature degrades gracefully when Redis is not
// configured.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// unreadKey returns the key for a conversation's unread-counter hash.
func unreadKey(chatID string) string {
	return fmt.Sprintf("chat:%s:unread", chatID)
}

// rateLimitKey returns the key for a caller's rate limit counter.
func rateLimitKey(callerID string) string {
	return fmt.Sprintf("ratelimit:%s", callerID)
}

// onlineSetKey is the mirror of the in-memory presence registry.
const onlineSetKey = "presence:online"

// IncrementUnread bumps the unread counter of each given participant for a
// conversation.
func (s *RedisStore) IncrementUnread(ctx context.Context, chatID string, userIDs []string) error {
	key := unreadKey(chatID)

	pipe := s.client.Pipeline()
	for _, id := range userIDs {
		pipe.HIncrBy(ctx, key, id, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ResetUnread clears a participant's unread counter for a conversation,
// called when they open it.
func (s *RedisStore) ResetUnread(ctx context.Context, chatID, userID string) error {
	return s.client.HDel(ctx, unreadKey(chatID), userID).Err()
}

// GetUnreadCounts returns the unread counters for every participant of a
// conversation.
func (s *RedisStore) GetUnreadCounts(ctx context.Context, chatID string) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, unreadKey(chatID)).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(raw))
	for id, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		counts[id] = n
	}
	return counts, nil
}

// DeleteUnread removes a conversation's unread hash entirely, called when
// the conversation is deleted.
func (s *RedisStore) DeleteUnread(ctx context.Context, chatID string) error {
	return s.client.Del(ctx, unreadKey(chatID)).Err()
}

// CheckRateLimit checks if a caller has exceeded the rate limit.
func (s *RedisStore) CheckRateLimit(ctx context.Context, callerID string, limit int) (bool, error) {
	count, err := s.client.Get(ctx, rateLimitKey(callerID)).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return count < limit, nil
}

// IncrementRateLimit increments the rate limit counter with a sliding TTL.
func (s *RedisStore) IncrementRateLimit(ctx context.Context, callerID string) error {
	key := rateLimitKey(callerID)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, rateLimitTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// MarkOnline adds a user to the online mirror set.
func (s *RedisStore) MarkOnline(ctx context.Context, userID string) error {
	return s.client.SAdd(ctx, onlineSetKey, userID).Err()
}

// MarkOffline removes a user from the online mirror set.
func (s *RedisStore) MarkOffline(ctx context.Context, userID string) error {
	return s.client.SRem(ctx, onlineSetKey, userID).Err()
}

// OnlineUserIDs returns the mirrored set of online user ids.
func (s *RedisStore) OnlineUserIDs(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, onlineSetKey).Result()
}
