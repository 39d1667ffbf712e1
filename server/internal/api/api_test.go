package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/ephyphonic/uptime/server/internal/api"
	"github.com/ephyphonic/uptime/server/internal/metrics"
	"github.com/ephyphonic/uptime/server/internal/probe"
	"github.com/ephyphonic/uptime/server/internal/recorder"
	"github.com/ephyphonic/uptime/server/internal/retention"
	"github.com/ephyphonic/uptime/server/internal/store"
	"github.com/ephyphonic/uptime/server/internal/sweep"
)

// --- test helpers -----------------------------------------------------------

var info = api.Info{Project: "Ephyphonic", Owner: "Angelo Araya"}

// fixture wires a Handler over an in-memory store.
type fixture struct {
	mem *store.Memory
	log *retention.Log
	h   http.Handler
}

func newFixture(t *testing.T, target string) *fixture {
	t.Helper()
	return newFixtureSweeping(t, target, nil)
}

// newFixtureSweeping is newFixture with the key sweep running against
// sweepOn instead of the log's own store. nil means the log's store.
func newFixtureSweeping(t *testing.T, target string, sweepOn func(*store.Memory) store.Backend) *fixture {
	t.Helper()
	mem := store.NewMemory()
	log := retention.New(mem, "")
	var swept store.Backend = mem
	if sweepOn != nil {
		swept = sweepOn(mem)
	}
	start := time.Now()
	calls := 0
	runner := probe.New(target, probe.Options{Now: func() time.Time {
		calls++
		if calls%2 == 1 {
			return start
		}
		return start.Add(5 * time.Millisecond)
	}})
	m := metrics.New()
	rec := recorder.New(log, sweep.New(swept, ""), runner, m)
	return &fixture{mem: mem, log: log, h: api.New(log, rec, info, m)}
}

func okTarget(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func getAccept(t *testing.T, h http.Handler, path, accept string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Accept", accept)
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /status ----------------------------------------------------------------

func TestStatus_EmptyStore(t *testing.T) {
	f := newFixture(t, "")
	rr := get(t, f.h, "/status")

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	var resp api.StatusResponse
	decode(t, rr, &resp)

	if resp.Status != "online" {
		t.Errorf("status: got %q, want online", resp.Status)
	}
	if resp.Project != "Ephyphonic" || resp.Owner != "Angelo Araya" {
		t.Errorf("project/owner: got %q/%q", resp.Project, resp.Owner)
	}
	if resp.Retention != "7_days" {
		t.Errorf("retention: got %q, want 7_days", resp.Retention)
	}
	if resp.TotalLogs != 0 || resp.LastEvents == nil || len(resp.LastEvents) != 0 {
		t.Errorf("total_logs/last_events: got %d/%#v, want 0/[]", resp.TotalLogs, resp.LastEvents)
	}
}

func TestStatus_NewestFirst(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	now := time.Now()
	f.log.Insert(ctx, "first", retention.Score(now.Add(-2*time.Hour))) //nolint:errcheck
	f.log.Insert(ctx, "third", retention.Score(now))                   //nolint:errcheck
	f.log.Insert(ctx, "second", retention.Score(now.Add(-time.Hour)))  //nolint:errcheck

	rr := get(t, f.h, "/api")
	var resp api.StatusResponse
	decode(t, rr, &resp)

	want := []string{"third", "second", "first"}
	if resp.TotalLogs != 3 {
		t.Errorf("total_logs: got %d, want 3", resp.TotalLogs)
	}
	for i, w := range want {
		if resp.LastEvents[i] != w {
			t.Errorf("last_events[%d]: got %q, want %q", i, resp.LastEvents[i], w)
		}
	}
}

func TestStatus_StoreFailure(t *testing.T) {
	f := newFixture(t, "")
	f.mem.Close() //nolint:errcheck

	rr := get(t, f.h, "/status")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	var resp api.ErrorResponse
	decode(t, rr, &resp)
	if resp.Status != "error" || resp.Message == "" {
		t.Errorf("error body: got %+v", resp)
	}
}

func TestStatus_NoStoreConfigured(t *testing.T) {
	h := api.New(nil, recorder.New(nil, nil, nil, nil), info, nil)
	rr := get(t, h, "/status")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rr.Code)
	}
	var resp api.ErrorResponse
	decode(t, rr, &resp)
	if !strings.Contains(resp.Message, "STORE_URL") {
		t.Errorf("message: got %q, want mention of STORE_URL", resp.Message)
	}
}

func TestStatus_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, "")
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- content negotiation ----------------------------------------------------

func TestStatus_HTMLWhenPreferred(t *testing.T) {
	f := newFixture(t, "")
	f.log.Insert(context.Background(), "<script>x</script>", retention.Score(time.Now())) //nolint:errcheck

	rr := getAccept(t, f.h, "/status", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("Content-Type: got %q, want text/html", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Ephyphonic") || !strings.Contains(body, "7_days") {
		t.Errorf("html body missing project data: %s", body)
	}
	if strings.Contains(body, "<script>x</script>") {
		t.Error("event text was not escaped")
	}
}

func TestNegotiation_DefaultsToJSON(t *testing.T) {
	f := newFixture(t, "")
	for _, accept := range []string{"", "*/*", "application/json", "application/json, text/html"} {
		rr := getAccept(t, f.h, "/status", accept)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Accept %q: Content-Type got %q, want application/json", accept, ct)
		}
	}
}

func TestNegotiation_FormatQuery(t *testing.T) {
	f := newFixture(t, "")
	rr := get(t, f.h, "/status?format=html")
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("?format=html: Content-Type got %q", ct)
	}
	rr = getAccept(t, f.h, "/status?format=json", "text/html")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("?format=json: Content-Type got %q", ct)
	}
}

// --- /run -------------------------------------------------------------------

var entryPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \| Status: 200 \| 5\.0ms$`)

func TestRun_EmptyStoreScenario(t *testing.T) {
	f := newFixture(t, okTarget(t))

	rr := get(t, f.h, "/run")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp api.RunResponse
	decode(t, rr, &resp)

	if resp.Status != "success" {
		t.Errorf("status: got %q, want success", resp.Status)
	}
	if resp.DeletedOld != 0 {
		t.Errorf("deleted_old: got %d, want 0", resp.DeletedOld)
	}
	if !entryPattern.MatchString(resp.Entry) {
		t.Errorf("entry: got %q, want match for %s", resp.Entry, entryPattern)
	}

	var status api.StatusResponse
	decode(t, get(t, f.h, "/status"), &status)
	if status.TotalLogs != 1 || status.LastEvents[0] != resp.Entry {
		t.Errorf("status after run: got %d events %v, want exactly [%q]", status.TotalLogs, status.LastEvents, resp.Entry)
	}
}

// brokenSweep fails every key sweep while the log itself keeps working.
type brokenSweep struct{ *store.Memory }

func (brokenSweep) DeleteMatching(context.Context, string) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestRun_SweepFailureStillSucceeds(t *testing.T) {
	f := newFixtureSweeping(t, okTarget(t), func(m *store.Memory) store.Backend { return brokenSweep{m} })

	rr := get(t, f.h, "/run")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp api.RunResponse
	decode(t, rr, &resp)

	if resp.Status != "success" {
		t.Errorf("status: got %q, want success", resp.Status)
	}
	if !strings.Contains(resp.SweepError, "connection reset") {
		t.Errorf("sweep_error: got %q, want the sweep failure", resp.SweepError)
	}
	if resp.SweptKeys != 0 {
		t.Errorf("swept_keys: got %d, want 0", resp.SweptKeys)
	}

	lines, err := f.log.Recent(context.Background())
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(lines) != 1 || lines[0] != resp.Entry {
		t.Errorf("log after run: got %v, want [%q]", lines, resp.Entry)
	}
}

func TestRun_CronAliasAndPrune(t *testing.T) {
	f := newFixture(t, okTarget(t))
	f.log.Insert(context.Background(), "stale", retention.Score(time.Now().Add(-10*24*time.Hour))) //nolint:errcheck
	f.mem.Set("celery-task-meta-42", "{}")

	rr := get(t, f.h, "/api/cron/worker")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var resp api.RunResponse
	decode(t, rr, &resp)
	if resp.DeletedOld != 1 {
		t.Errorf("deleted_old: got %d, want 1", resp.DeletedOld)
	}
	if resp.SweptKeys != 1 {
		t.Errorf("swept_keys: got %d, want 1", resp.SweptKeys)
	}
}

func TestRun_MissingTarget(t *testing.T) {
	f := newFixture(t, "")
	f.log.Insert(context.Background(), "existing", retention.Score(time.Now())) //nolint:errcheck

	rr := get(t, f.h, "/run")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: got %d, want 503", rr.Code)
	}
	var resp api.ErrorResponse
	decode(t, rr, &resp)
	if resp.Status != "error" || !strings.Contains(resp.Message, "TARGET_URL") {
		t.Errorf("error body: got %+v", resp)
	}
	if n, _ := f.log.Len(context.Background()); n != 1 {
		t.Errorf("log length: got %d, want 1 (unchanged)", n)
	}
}

func TestRun_UnreachableTarget(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL
	srv.Close()
	f := newFixture(t, target)

	rr := get(t, f.h, "/run")
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status: got %d, want 502", rr.Code)
	}
	if n, _ := f.log.Len(context.Background()); n != 0 {
		t.Errorf("log length after failed probe: got %d, want 0", n)
	}
}

func TestRun_HTML(t *testing.T) {
	f := newFixture(t, okTarget(t))
	rr := getAccept(t, f.h, "/run", "text/html")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Status: 200") {
		t.Errorf("html body missing entry: %s", rr.Body.String())
	}
}

func TestRun_MethodNotAllowed(t *testing.T) {
	f := newFixture(t, okTarget(t))
	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/run", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

// --- misc -------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	rr := get(t, newFixture(t, "").h, "/healthz")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status: got %q, want ok", resp["status"])
	}
}

func TestFavicon(t *testing.T) {
	rr := get(t, newFixture(t, "").h, "/favicon.ico")
	if rr.Code != http.StatusNoContent {
		t.Errorf("status: got %d, want 204", rr.Code)
	}
}
