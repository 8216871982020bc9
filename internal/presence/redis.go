package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// RedisTracker keeps presence in one Redis hash per board so that several
// API processes share it. Field = user id, value = JSON entry.
type RedisTracker struct {
	client   *redis.Client
	prefix   string
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewRedisTracker connects to redisURL and verifies the connection.
func NewRedisTracker(redisURL string, capacity int, ttl time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisTrackerWithClient(client, capacity, ttl), nil
}

// NewRedisTrackerWithClient creates a tracker from an existing client.
func NewRedisTrackerWithClient(client *redis.Client, capacity int, ttl time.Duration) *RedisTracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{
		client:   client,
		prefix:   "presence:",
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (t *RedisTracker) key(boardID string) string {
	return t.prefix + boardID
}

func (t *RedisTracker) Start(ctx context.Context, boardID, userID, columnID string) error {
	entry := Entry{UserID: userID, ColumnID: columnID, LastUpdated: t.now().UTC()}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal presence entry: %w", err)
	}

	key := t.key(boardID)
	pipe := t.client.TxPipeline()
	pipe.HSet(ctx, key, userID, data)
	pipe.Expire(ctx, key, t.ttl)
	size := pipe.HLen(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save presence entry: %w", err)
	}

	if size.Val() > int64(t.capacity) {
		return t.evictOldest(ctx, boardID, userID)
	}
	return nil
}

func (t *RedisTracker) Stop(ctx context.Context, boardID, userID string) error {
	if err := t.client.HDel(ctx, t.key(boardID), userID).Err(); err != nil {
		return fmt.Errorf("delete presence entry: %w", err)
	}
	return nil
}

func (t *RedisTracker) UsersAddingCardsIn(ctx context.Context, boardID, columnID, callerID string) ([]Entry, error) {
	entries, err := t.load(ctx, boardID)
	if err != nil {
		return nil, err
	}
	matching := lo.Filter(entries, func(e Entry, _ int) bool {
		return e.ColumnID == columnID && e.UserID != callerID
	})
	sortEntries(matching)
	return matching, nil
}

// load returns the fresh entries of a board and drops stale ones.
func (t *RedisTracker) load(ctx context.Context, boardID string) ([]Entry, error) {
	key := t.key(boardID)
	raw, err := t.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}

	now := t.now()
	entries := make([]Entry, 0, len(raw))
	var stale []string
	for userID, value := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(value), &entry); err != nil || now.Sub(entry.LastUpdated) > t.ttl {
			stale = append(stale, userID)
			continue
		}
		entries = append(entries, entry)
	}
	if len(stale) > 0 {
		if err := t.client.HDel(ctx, key, stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune presence: %w", err)
		}
	}
	return entries, nil
}

func (t *RedisTracker) evictOldest(ctx context.Context, boardID, keepUserID string) error {
	entries, err := t.load(ctx, boardID)
	if err != nil {
		return err
	}
	candidates := lo.Reject(entries, func(e Entry, _ int) bool {
		return e.UserID == keepUserID
	})
	sortEntries(candidates)
	excess := len(entries) - t.capacity
	if excess <= 0 || len(candidates) == 0 {
		return nil
	}
	victims := lo.Map(candidates[:min(excess, len(candidates))], func(e Entry, _ int) string {
		return e.UserID
	})
	if err := t.client.HDel(ctx, t.key(boardID), victims...).Err(); err != nil {
		return fmt.Errorf("evict presence: %w", err)
	}
	return nil
}

func (t *RedisTracker) Close() error {
	return t.client.Close()
}

func (t *RedisTracker) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}
