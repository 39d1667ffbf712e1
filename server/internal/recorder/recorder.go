package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ephyphonic/uptime/server/internal/metrics"
	"github.com/ephyphonic/uptime/server/internal/probe"
	"github.com/ephyphonic/uptime/server/internal/retention"
	"github.com/ephyphonic/uptime/server/internal/sweep"
)

// Setting names reported in ConfigError.
const (
	SettingStoreURL  = "STORE_URL"
	SettingTargetURL = "TARGET_URL"
)

// Outcome describes a completed cycle.
type Outcome struct {
	Entry         string
	StatusCode    int
	LatencyMillis float64
	DeletedOld    int64

	// Swept is the number of job-result keys deleted; SweepErr is set when
	// the sweep failed part way or did not run.
	Swept    int64
	SweepErr error
}

// Recorder composes the probe runner, retention log and sweeper. A nil log
// means no store is configured; a nil sweeper disables the sweep.
type Recorder struct {
	log     *retention.Log
	sweeper *sweep.Sweeper
	metrics *metrics.Metrics

	mu     sync.RWMutex
	runner *probe.Runner
}

// New creates a Recorder. Any argument may be nil.
func New(log *retention.Log, sweeper *sweep.Sweeper, runner *probe.Runner, m *metrics.Metrics) *Recorder {
	if runner == nil {
		runner = probe.New("", probe.Options{})
	}
	return &Recorder{log: log, sweeper: sweeper, runner: runner, metrics: m}
}

// SetRunner swaps the probe runner, e.g. after the target URL was reloaded.
func (r *Recorder) SetRunner(p *probe.Runner) {
	r.mu.Lock()
	r.runner = p
	r.mu.Unlock()
}

// Runner returns the probe runner currently in use.
func (r *Recorder) Runner() *probe.Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runner
}

// Run executes one cycle. A probe failure writes nothing to the log: the
// rendered line needs a status code, and there is no sentinel entry.
func (r *Recorder) Run(ctx context.Context) (Outcome, error) {
	runner := r.Runner()

	if r.log == nil {
		r.metrics.ObserveCycle(metrics.ResultConfigError)
		return Outcome{}, &ConfigError{Setting: SettingStoreURL}
	}
	if runner.Target() == "" {
		r.metrics.ObserveCycle(metrics.ResultConfigError)
		return Outcome{}, &ConfigError{Setting: SettingTargetURL}
	}

	res, err := runner.Check(ctx)
	if err != nil {
		if errors.Is(err, probe.ErrNoTarget) {
			r.metrics.ObserveCycle(metrics.ResultConfigError)
			return Outcome{}, &ConfigError{Setting: SettingTargetURL}
		}
		r.metrics.ObserveProbeFailure()
		r.metrics.ObserveCycle(metrics.ResultProbeError)
		slog.Warn("recorder: probe failed", "target", runner.Target(), "err", err)
		return Outcome{}, &ProbeError{Err: err}
	}
	r.metrics.ObserveProbe(res.StatusCode, res.LatencyMillis)
	if res.Cert != nil {
		r.metrics.ObserveCert(res.Cert.DaysLeft)
		if res.Cert.Status != "valid" {
			slog.Warn("recorder: target certificate "+res.Cert.Status,
				"target", runner.Target(),
				"not_after", res.Cert.NotAfter,
				"days_left", res.Cert.DaysLeft,
			)
		}
	}

	line := res.Line()
	if err := r.log.Insert(ctx, line, retention.Score(res.At)); err != nil {
		r.metrics.ObserveCycle(metrics.ResultStoreError)
		slog.Error("recorder: insert failed", "key", r.log.Key(), "err", err)
		return Outcome{}, &StoreError{Op: "insert", Err: err}
	}

	deleted, err := r.log.PruneOlderThan(ctx, retention.Cutoff(res.At))
	if err != nil {
		r.metrics.ObserveCycle(metrics.ResultStoreError)
		slog.Error("recorder: prune failed", "key", r.log.Key(), "err", err)
		return Outcome{}, &StoreError{Op: "prune", Err: err}
	}
	r.metrics.ObservePrune(deleted)

	out := Outcome{
		Entry:         line,
		StatusCode:    res.StatusCode,
		LatencyMillis: res.LatencyMillis,
		DeletedOld:    deleted,
	}

	if r.sweeper != nil {
		out.Swept, out.SweepErr = r.sweeper.Sweep(ctx)
		r.metrics.ObserveSweep(out.Swept)
	}

	r.metrics.ObserveCycle(metrics.ResultSuccess)
	slog.Info("recorder: cycle complete",
		"status_code", res.StatusCode,
		"latency_ms", res.LatencyMillis,
		"deleted_old", deleted,
		"swept", out.Swept,
	)
	return out, nil
}
