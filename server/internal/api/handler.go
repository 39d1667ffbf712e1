package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ephyphonic/uptime/server/internal/metrics"
	"github.com/ephyphonic/uptime/server/internal/recorder"
	"github.com/ephyphonic/uptime/server/internal/retention"
)

// Info is the static project metadata echoed by GET /status.
type Info struct {
	Project string
	Owner   string
}

// Handler is the HTTP handler for the status and trigger endpoints.
type Handler struct {
	log     *retention.Log // nil when no store is configured
	rec     *recorder.Recorder
	info    Info
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// New creates a Handler and registers all routes. log may be nil, in which
// case every route that needs the store answers with a configuration error.
func New(log *retention.Log, rec *recorder.Recorder, info Info, m *metrics.Metrics) *Handler {
	h := &Handler{log: log, rec: rec, info: info, metrics: m, mux: http.NewServeMux()}

	h.mux.HandleFunc("/status", h.status)
	h.mux.HandleFunc("/api", h.status)
	h.mux.HandleFunc("/run", h.run)
	h.mux.HandleFunc("/api/cron/worker", h.run)
	h.mux.HandleFunc("/healthz", h.health)
	h.mux.HandleFunc("/favicon.ico", favicon)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Status reads the retention log and builds the status payload.
func (h *Handler) Status(ctx context.Context) (StatusResponse, error) {
	if h.log == nil {
		return StatusResponse{}, &recorder.ConfigError{Setting: recorder.SettingStoreURL}
	}
	events, err := h.log.Recent(ctx)
	if err != nil {
		return StatusResponse{}, &recorder.StoreError{Op: "read", Err: err}
	}
	h.metrics.SetRetained(len(events))
	return StatusResponse{
		Status:     "online",
		Project:    h.info.Project,
		Owner:      h.info.Owner,
		Retention:  retention.WindowLabel,
		TotalLogs:  len(events),
		LastEvents: events,
	}, nil
}

// --- route handlers ---------------------------------------------------------

// status returns GET /status: project info and the retained log, newest first.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	human := prefersHTML(r)
	if r.Method != http.MethodGet {
		renderErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), human)
		return
	}

	resp, err := h.Status(r.Context())
	if err != nil {
		renderErr(w, errorStatus(err), err, human)
		return
	}
	render(w, http.StatusOK, resp, human)
}

// run returns GET /run: one probe, insert, prune and sweep cycle.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	human := prefersHTML(r)
	if r.Method != http.MethodGet {
		renderErr(w, http.StatusMethodNotAllowed, errors.New("method not allowed"), human)
		return
	}

	// A scheduler that hangs up early must not abort a cycle half way.
	out, err := h.rec.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		renderErr(w, errorStatus(err), err, human)
		return
	}

	render(w, http.StatusOK, NewRunResponse(out), human)
}

// NewRunResponse converts a completed cycle into its response payload.
func NewRunResponse(out recorder.Outcome) RunResponse {
	resp := RunResponse{
		Status:     "success",
		Entry:      out.Entry,
		DeletedOld: out.DeletedOld,
		SweptKeys:  out.Swept,
	}
	if out.SweepErr != nil {
		resp.SweepError = out.SweepErr.Error()
	}
	return resp
}

// health returns GET /healthz: process liveness only; the store is not touched.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, healthResponse{Status: "ok"}, prefersHTML(r))
}

func favicon(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ----------------------------------------------------------------

func renderErr(w http.ResponseWriter, code int, err error, human bool) {
	render(w, code, ErrorResponse{Status: "error", Message: err.Error()}, human)
}

// errorStatus maps the recorder error taxonomy onto HTTP status codes.
func errorStatus(err error) int {
	var probeErr *recorder.ProbeError
	switch {
	case errors.Is(err, recorder.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &probeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
