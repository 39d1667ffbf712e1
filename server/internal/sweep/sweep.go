// Package sweep deletes leftover job-result keys that another system writes
// into the shared store and never expires. It is maintenance, not part of
// the retention log: a failed sweep is logged and otherwise ignored.
package sweep

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ephyphonic/uptime/server/internal/store"
)

// DefaultPattern matches Celery task result keys.
const DefaultPattern = "celery-task-meta-*"

// Sweeper removes every key matching one glob pattern.
type Sweeper struct {
	backend store.Backend
	pattern string
}

// New returns a Sweeper for pattern on b. An empty pattern selects
// DefaultPattern.
func New(b store.Backend, pattern string) *Sweeper {
	if pattern == "" {
		pattern = DefaultPattern
	}
	return &Sweeper{backend: b, pattern: pattern}
}

// Pattern returns the glob this Sweeper deletes.
func (s *Sweeper) Pattern() string { return s.pattern }

// Sweep deletes matching keys and returns how many were removed. Keys deleted
// before an error are still counted.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.backend.DeleteMatching(ctx, s.pattern)
	if err != nil {
		slog.Warn("sweep: delete failed", "pattern", s.pattern, "deleted", n, "err", err)
		return n, fmt.Errorf("sweep %q: %w", s.pattern, err)
	}
	if n > 0 {
		slog.Debug("sweep: deleted keys", "pattern", s.pattern, "count", n)
	}
	return n, nil
}
