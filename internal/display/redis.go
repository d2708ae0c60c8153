package display

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Store abstracts the Redis operations used by RedisDisplay to make testing easier.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisStore is a concrete implementation backed by go-redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a new Redis-backed store adapter.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Set writes a value to Redis.
func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.client.Set(ctx, key, value, expiration).Err()
}

// Publish sends a message to subscribers of channel.
func (s *RedisStore) Publish(ctx context.Context, channel string, message interface{}) error {
	return s.client.Publish(ctx, channel, message).Err()
}

// RedisDisplay mirrors the current label into a Redis key and channel so
// remote dashboards can follow the demo.
type RedisDisplay struct {
	store   Store
	key     string
	channel string
	ttl     time.Duration
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

type redisPayload struct {
	Label string    `json:"label,omitempty"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// NewRedisDisplay writes to key (with ttl) and publishes on channel. An empty
// channel disables publishing.
func NewRedisDisplay(store Store, key, channel string, ttl time.Duration, logger *zap.Logger) *RedisDisplay {
	return &RedisDisplay{
		store:   store,
		key:     key,
		channel: channel,
		ttl:     ttl,
		timeout: 2 * time.Second,
		logger:  logger.Named("redis_display"),
		now:     time.Now,
	}
}

func (d *RedisDisplay) ShowLabel(label string) {
	d.write(redisPayload{Label: label, At: d.now().UTC()})
}

func (d *RedisDisplay) ShowError(err error) {
	if err == nil {
		return
	}
	d.write(redisPayload{Error: err.Error(), At: d.now().UTC()})
}

// write never fails the caller; a lost update only shows up in the logs.
func (d *RedisDisplay) write(p redisPayload) {
	serialized, err := json.Marshal(p)
	if err != nil {
		d.logger.Error("failed to serialize display payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.store.Set(ctx, d.key, string(serialized), d.ttl); err != nil {
		d.logger.Warn("failed to store current label", zap.String("key", d.key), zap.Error(err))
	}
	if d.channel == "" {
		return
	}
	if err := d.store.Publish(ctx, d.channel, string(serialized)); err != nil {
		d.logger.Warn("failed to publish current label", zap.String("channel", d.channel), zap.Error(err))
	}
}
