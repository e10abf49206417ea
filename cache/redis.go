package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/warrant"
)

// Compile-time interface check.
var _ warrant.Cache = (*Redis)(nil)

// Redis shares resolutions between processes. Entries are keyed by a
// global generation and a per-user version, both kept in Redis:
// InvalidateAll bumps the generation and InvalidateUser bumps the user's
// version instead of scanning keys, and orphaned entries age out with their
// TTL.
//
// A miss records the generation and version it observed. The following Set
// writes under that pair, so a resolution computed while another process
// invalidated the user lands on a key no reader looks up.
//
// Redis failures degrade to cache misses and are logged at Warn.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger

	pending sync.Map // userID -> stamp observed at the last miss
}

// stamp identifies the generation and user version an entry belongs to.
type stamp struct {
	gen string
	ver string
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisPrefix sets the key prefix. Defaults to "warrant".
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisTTL sets the entry time-to-live. Defaults to one minute.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithRedisLogger sets the logger for Redis failures.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRedis creates a Redis-backed cache over an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: "warrant",
		ttl:    time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns a cached resolution.
func (r *Redis) Get(ctx context.Context, userID string) (*warrant.Resolution, bool) {
	st, err := r.stamp(ctx, userID)
	if err != nil {
		r.warn("get", err)
		return nil, false
	}
	data, err := r.client.Get(ctx, r.userKey(st, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		r.pending.LoadOrStore(userID, st)
		return nil, false
	}
	if err != nil {
		r.warn("get", err)
		return nil, false
	}

	var res warrant.Resolution
	if err := json.Unmarshal(data, &res); err != nil {
		r.warn("decode", err)
		return nil, false
	}
	return &res, true
}

// Set stores a resolution in the cache under the stamp recorded by the
// user's last miss. The entry never outlives the resolution's ValidUntil.
func (r *Redis) Set(ctx context.Context, userID string, res *warrant.Resolution) {
	var st stamp
	if v, ok := r.pending.LoadAndDelete(userID); ok {
		st = v.(stamp) //nolint:forcetypeassert // pending only holds stamps
	} else {
		cur, err := r.stamp(ctx, userID)
		if err != nil {
			r.warn("set", err)
			return
		}
		st = cur
	}

	ttl := r.ttl
	if res.ValidUntil != nil {
		left := time.Until(*res.ValidUntil)
		if left <= 0 {
			return
		}
		if ttl <= 0 || left < ttl {
			ttl = left
		}
	}

	data, err := json.Marshal(res)
	if err != nil {
		r.warn("encode", err)
		return
	}
	if err := r.client.Set(ctx, r.userKey(st, userID), data, ttl).Err(); err != nil {
		r.warn("set", err)
	}
}

// InvalidateUser bumps the user's version, orphaning every entry written
// under an earlier one.
func (r *Redis) InvalidateUser(ctx context.Context, userID string) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, r.verKey(userID))
		if r.ttl > 0 {
			// Outlives every entry keyed by the previous version.
			pipe.Expire(ctx, r.verKey(userID), 2*r.ttl)
		}
		return nil
	})
	if err != nil {
		r.warn("invalidate user", err)
	}
}

// InvalidateAll bumps the generation, orphaning every cached resolution.
func (r *Redis) InvalidateAll(ctx context.Context) {
	if err := r.client.Incr(ctx, r.genKey()).Err(); err != nil {
		r.warn("invalidate all", err)
	}
}

// stamp reads the current generation and user version in one round trip.
func (r *Redis) stamp(ctx context.Context, userID string) (stamp, error) {
	vals, err := r.client.MGet(ctx, r.genKey(), r.verKey(userID)).Result()
	if err != nil {
		return stamp{}, err
	}
	return stamp{gen: counter(vals[0]), ver: counter(vals[1])}, nil
}

// counter renders a missing counter as "0".
func counter(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "0"
}

func (r *Redis) genKey() string { return r.prefix + ":gen" }

func (r *Redis) verKey(userID string) string { return r.prefix + ":ver:" + userID }

func (r *Redis) userKey(st stamp, userID string) string {
	return r.prefix + ":res:" + st.gen + ":" + st.ver + ":" + userID
}

func (r *Redis) warn(op string, err error) {
	r.logger.Warn("warrant cache: redis "+op+" failed", slog.String("error", err.Error()))
}
