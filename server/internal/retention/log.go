package retention

import (
	"context"
	"time"

	"github.com/ephyphonic/uptime/server/internal/store"
)

const (
	// DefaultKey is the sorted-set key the log lives under.
	DefaultKey = "orchestrator_telemetry"

	// Window is how long an entry is retained. It is fixed on purpose and
	// reported to clients as "7_days".
	Window = 7 * 24 * time.Hour

	// WindowLabel is the client-facing name of Window.
	WindowLabel = "7_days"
)

// Log is the retention log on top of an ordered store handle. It holds no
// state of its own; concurrent callers rely on the backend's per-command
// atomicity.
type Log struct {
	backend store.Backend
	key     string
}

// New returns a Log stored under key in b. An empty key selects DefaultKey.
func New(b store.Backend, key string) *Log {
	if key == "" {
		key = DefaultKey
	}
	return &Log{backend: b, key: key}
}

// Key returns the sorted-set key the log is stored under.
func (l *Log) Key() string { return l.key }

// Insert adds line with the given score. Re-inserting an identical line only
// moves its score; distinct lines are independent members.
func (l *Log) Insert(ctx context.Context, line string, score float64) error {
	return l.backend.ZAdd(ctx, l.key, line, score)
}

// PruneOlderThan removes every entry whose score is <= cutoff and returns
// how many were removed. A second call with the same cutoff removes nothing.
func (l *Log) PruneOlderThan(ctx context.Context, cutoff float64) (int64, error) {
	return l.backend.ZRemRangeByScore(ctx, l.key, cutoff)
}

// Recent returns every entry, newest first. The order of entries with equal
// scores is unspecified. An empty log yields an empty, non-nil slice.
func (l *Log) Recent(ctx context.Context) ([]string, error) {
	lines, err := l.backend.ZRevRange(ctx, l.key)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// Len returns the number of retained entries.
func (l *Log) Len(ctx context.Context) (int64, error) {
	return l.backend.ZCard(ctx, l.key)
}

// Score converts t to the log's sort key: float seconds since the epoch.
func Score(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// Cutoff returns the prune bound for a log observed at now.
func Cutoff(now time.Time) float64 {
	return Score(now) - Window.Seconds()
}
