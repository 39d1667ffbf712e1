package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/compress/gzhttp"
	"github.com/spf13/pflag"

	"github.com/ephyphonic/uptime/server/internal/api"
	"github.com/ephyphonic/uptime/server/internal/config"
	"github.com/ephyphonic/uptime/server/internal/metrics"
	"github.com/ephyphonic/uptime/server/internal/probe"
	"github.com/ephyphonic/uptime/server/internal/recorder"
	"github.com/ephyphonic/uptime/server/internal/retention"
	"github.com/ephyphonic/uptime/server/internal/store"
	"github.com/ephyphonic/uptime/server/internal/sweep"
	"github.com/ephyphonic/uptime/server/internal/ws"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (optional; defaults plus environment when empty)")
	once := pflag.Bool("once", false, "run a single probe cycle, print the result as JSON and exit")
	addr := pflag.String("addr", "", "listen address, overrides http_port (e.g. 127.0.0.1:9000)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	slog.Info("uptime-recorder starting",
		"config", *configPath,
		"http_port", cfg.HTTPPort,
		"target", cfg.Probe.TargetURL,
		"store_key", cfg.Store.Key,
		"sweep", cfg.Sweep.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// A missing store URL is not fatal: every request reports it instead.
	var (
		backend store.Backend
		log     *retention.Log
		sweeper *sweep.Sweeper
	)
	if cfg.Store.URL != "" {
		backend, err = store.Open(ctx, cfg.Store.URL)
		if err != nil {
			slog.Error("failed to open store", "err", err)
			os.Exit(1)
		}
		defer backend.Close() //nolint:errcheck

		log = retention.New(backend, cfg.Store.Key)
		if cfg.Sweep.Enabled {
			sweeper = sweep.New(backend, cfg.Sweep.Pattern)
		}
	} else {
		slog.Warn("no store configured; runs will fail until STORE_URL is set")
	}

	m := metrics.New()
	rec := recorder.New(log, sweeper, newRunner(cfg), m)

	if *once {
		code := runOnce(ctx, rec)
		if backend != nil {
			backend.Close() //nolint:errcheck
		}
		os.Exit(code)
	}

	// Hot reload only touches the probe; store and listener changes need a restart.
	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, func(next *config.Config) {
				rec.SetRunner(newRunner(next))
				slog.Info("probe target updated", "target", next.Probe.TargetURL)
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	handler := api.New(log, rec, api.Info{Project: cfg.Project.Name, Owner: cfg.Project.Owner}, m)

	hub := ws.New(handler, cfg.Stream.Interval)
	go hub.Run(ctx)

	httpMux := http.NewServeMux()
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m)
	httpMux.Handle("/", gzhttp.GzipHandler(handler))

	listen := *addr
	if listen == "" {
		listen = fmt.Sprintf(":%d", cfg.HTTPPort)
	}
	httpSrv := &http.Server{
		Addr:    listen,
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("uptime-recorder shutting down")
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}

func newRunner(cfg *config.Config) *probe.Runner {
	return probe.New(cfg.Probe.TargetURL, probe.Options{
		InsecureSkipVerify: cfg.Probe.InsecureSkipVerify,
		UserAgent:          cfg.Probe.UserAgent,
	})
}

// runOnce executes one cycle for external schedulers and returns the exit code.
func runOnce(ctx context.Context, rec *recorder.Recorder) int {
	enc := json.NewEncoder(os.Stdout)

	out, err := rec.Run(ctx)
	if err != nil {
		enc.Encode(api.ErrorResponse{Status: "error", Message: err.Error()}) //nolint:errcheck
		return 1
	}
	enc.Encode(api.NewRunResponse(out)) //nolint:errcheck
	return 0
}
