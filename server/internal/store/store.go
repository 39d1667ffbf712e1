package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	// ErrNoURL is returned by Open when no store URL is configured.
	ErrNoURL = errors.New("store: no url configured")

	// ErrClosed is returned by operations on a closed in-process backend.
	ErrClosed = errors.New("store: closed")
)

// Backend is the sorted-set surface shared by every store implementation.
// Scores are float seconds since the Unix epoch; members are opaque strings.
type Backend interface {
	// ZAdd adds member to the set at key, overwriting its score if present.
	ZAdd(ctx context.Context, key, member string, score float64) error

	// ZRemRangeByScore removes every member of key with score <= max and
	// returns how many were removed.
	ZRemRangeByScore(ctx context.Context, key string, max float64) (int64, error)

	// ZRevRange returns all members of key ordered by descending score.
	ZRevRange(ctx context.Context, key string) ([]string, error)

	// ZCard returns the number of members in the set at key.
	ZCard(ctx context.Context, key string) (int64, error)

	// DeleteMatching removes every key matching the glob pattern and returns
	// the number of keys removed. Glob syntax is Redis MATCH: * ? [...] and
	// backslash escapes, with * and ? also matching '/'.
	DeleteMatching(ctx context.Context, pattern string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by rawURL:
//
//	redis://[:password@]host:port/db, rediss://..., unix:///path.sock
//	sqlite:///abs/path.db or sqlite://relative.db
//	memory://
func Open(ctx context.Context, rawURL string) (Backend, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrNoURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse url: %w", err)
	}

	var b Backend
	switch u.Scheme {
	case "redis", "rediss", "unix":
		b, err = OpenRedis(rawURL)
	case "sqlite":
		b, err = OpenSQLite(sqlitePath(u))
	case "memory":
		b = NewMemory()
	default:
		return nil, fmt.Errorf("store: unsupported scheme %q: want redis|rediss|unix|sqlite|memory", u.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if err := b.Ping(ctx); err != nil {
		b.Close() //nolint:errcheck
		return nil, fmt.Errorf("store: ping %s: %w", u.Scheme, err)
	}
	return b, nil
}

// sqlitePath maps sqlite:///abs/x.db to /abs/x.db and sqlite://x.db to x.db.
func sqlitePath(u *url.URL) string {
	if u.Host == "" {
		return u.Path
	}
	return u.Host + u.Path
}
