// Package presence mirrors the local online set into Redis so other services
// can ask "is this user connected to a realtime node" without a round trip here.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/webitel/im-realtime-service/internal/domain/registry"
)

var _ registry.PresenceObserver = (*RedisMirror)(nil)

// redisClient is the subset of go-redis the mirror needs.
type redisClient interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisMirror keeps one set per service node: {prefix}{nodeID} holds the user
// ids connected to that node.
type RedisMirror struct {
	client  redisClient
	key     string
	timeout time.Duration
	logger  *slog.Logger
}

func NewRedisMirror(client redisClient, prefix, nodeID string, timeout time.Duration, logger *slog.Logger) (*RedisMirror, error) {
	if client == nil {
		return nil, fmt.Errorf("presence: redis client cannot be nil")
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	return &RedisMirror{
		client:  client,
		key:     prefix + nodeID,
		timeout: timeout,
		logger:  logger.With("component", "presence_mirror"),
	}, nil
}

func (m *RedisMirror) Key() string { return m.key }

// OnPresenceChange runs on the hub broadcaster; each write is bounded by the
// mirror timeout and failures are only logged.
func (m *RedisMirror) OnPresenceChange(online, offline []string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if len(online) > 0 {
		if err := m.client.SAdd(ctx, m.key, toMembers(online)...).Err(); err != nil {
			m.logger.Warn("PRESENCE_MIRROR_ADD_FAILED", "key", m.key, "count", len(online), "err", err)
		}
	}

	if len(offline) > 0 {
		if err := m.client.SRem(ctx, m.key, toMembers(offline)...).Err(); err != nil {
			m.logger.Warn("PRESENCE_MIRROR_REMOVE_FAILED", "key", m.key, "count", len(offline), "err", err)
		}
	}
}

// Members returns the mirrored set of this node.
func (m *RedisMirror) Members(ctx context.Context) ([]string, error) {
	members, err := m.client.SMembers(ctx, m.key).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: smembers %s: %w", m.key, err)
	}
	return members, nil
}

// Reset drops the node set. It runs on start and stop so a crashed node does
// not leave stale users behind.
func (m *RedisMirror) Reset(ctx context.Context) error {
	if err := m.client.Del(ctx, m.key).Err(); err != nil {
		return fmt.Errorf("presence: del %s: %w", m.key, err)
	}
	return nil
}

func toMembers(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
