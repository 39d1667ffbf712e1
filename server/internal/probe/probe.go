package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Timeout bounds one probe, connection setup included.
const Timeout = 10 * time.Second

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "uptime-recorder/1.0"

// lineTimeLayout is the human-readable timestamp embedded in rendered lines.
const lineTimeLayout = "2006-01-02 15:04:05"

// ErrNoTarget is returned by Check when no target URL is configured.
var ErrNoTarget = errors.New("probe: no target url configured")

// Error reports a probe that produced no HTTP response.
type Error struct {
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result is the outcome of one probe that reached the target.
type Result struct {
	StatusCode    int
	LatencyMillis float64
	At            time.Time

	// Cert is the target's leaf certificate; nil for plain HTTP.
	Cert *Cert
}

// Line renders the result as it is stored in the retention log, e.g.
// "2026-03-14 12:00:00 | Status: 200 | 5.0ms".
func (r Result) Line() string {
	return fmt.Sprintf("%s | Status: %d | %sms",
		r.At.Format(lineTimeLayout), r.StatusCode, formatMillis(r.LatencyMillis))
}

// Options tune the HTTP client used by a Runner.
type Options struct {
	// InsecureSkipVerify disables TLS certificate verification on the target.
	InsecureSkipVerify bool

	UserAgent string

	// Now overrides the clock used for latency and timestamps; nil means
	// time.Now.
	Now func() time.Time
}

// Runner probes one target.
type Runner struct {
	target    string
	userAgent string
	client    *http.Client
	now       func() time.Time
}

// New creates a Runner for target. An empty target is accepted here and
// reported by Check, so a misconfigured recorder can still serve reads.
func New(target string, opts Options) *Runner {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		target:    strings.TrimSpace(target),
		userAgent: ua,
		client:    buildHTTPClient(opts),
		now:       now,
	}
}

// Target returns the URL this Runner probes.
func (r *Runner) Target() string { return r.target }

// Check issues one GET against the target. The returned Result's At is the
// moment the response arrived.
func (r *Runner) Check(ctx context.Context) (Result, error) {
	if r.target == "" {
		return Result{}, ErrNoTarget
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.target, nil)
	if err != nil {
		return Result{}, &Error{Target: r.target, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", r.userAgent)

	start := r.now()
	resp, err := r.client.Do(req)
	end := r.now()
	if err != nil {
		return Result{}, &Error{Target: r.target, Err: err}
	}
	// Drain so the connection can be reused; the body itself is not inspected.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)) //nolint:errcheck
	resp.Body.Close()

	return Result{
		StatusCode:    resp.StatusCode,
		LatencyMillis: roundMillis(end.Sub(start)),
		At:            end,
		Cert:          certFrom(resp.TLS, end),
	}, nil
}

// buildHTTPClient constructs the probe client. Redirects are followed, as
// any browser-facing health check would.
func buildHTTPClient(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: transport,
		Timeout:   Timeout,
	}
}

// roundMillis converts d to milliseconds rounded to 2 decimals.
func roundMillis(d time.Duration) float64 {
	ms := float64(d) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}

// formatMillis prints ms with the shortest exact decimal and at least one
// fractional digit: 5 → "5.0", 12.34 → "12.34".
func formatMillis(ms float64) string {
	s := strconv.FormatFloat(ms, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
