package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN while sweeping keys.
const scanBatch = 500

// Redis is a Backend on a Redis server. Every method is a single Redis
// command except DeleteMatching, which walks the keyspace with SCAN.
type Redis struct {
	client *redis.Client
}

// OpenRedis builds a client from a redis://, rediss:// or unix:// URL. The
// connection is established lazily; Open pings it before handing it out.
func OpenRedis(rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("store: redis url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) ZAdd(ctx context.Context, key, member string, score float64) error {
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		return fmt.Errorf("store: zadd %s: %w", key, err)
	}
	return nil
}

func (r *Redis) ZRemRangeByScore(ctx context.Context, key string, max float64) (int64, error) {
	n, err := r.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatFloat(max, 'f', -1, 64)).Result()
	if err != nil {
		return 0, fmt.Errorf("store: zremrangebyscore %s: %w", key, err)
	}
	return n, nil
}

func (r *Redis) ZRevRange(ctx context.Context, key string) ([]string, error) {
	members, err := r.client.ZRevRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("store: zrevrange %s: %w", key, err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (r *Redis) ZCard(ctx context.Context, key string) (int64, error) {
	n, err := r.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("store: zcard %s: %w", key, err)
	}
	return n, nil
}

// DeleteMatching deletes keys matching pattern one SCAN page at a time so a
// large namespace never blocks the server the way KEYS would.
func (r *Redis) DeleteMatching(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		removed int64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("store: scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("store: del: %w", err)
			}
			removed += n
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
