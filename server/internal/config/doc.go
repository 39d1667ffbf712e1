// Package config loads the recorder configuration from an optional YAML file
// and the environment.
//
// Config fields:
//   - HTTPPort              port for the API, /metrics and /ws/stream (default 8080)
//   - LogLevel              debug | info | warn | error (default info)
//   - Project.Name/Owner    echoed by the status endpoint
//   - Store.URL             backing store; $STORE_URL, then $REDIS_URL, win
//   - Store.Key             sorted-set key (default "orchestrator_telemetry")
//   - Probe.TargetURL       probe target; $TARGET_URL wins
//   - Sweep.Enabled/Pattern job-result key sweep (default on, "celery-task-meta-*")
//   - Stream.Interval       websocket push interval (default 5s)
//
// Load(path) applies defaults, unmarshals the file when path is non-empty,
// applies environment overrides, then validates. Watch reloads on change.
package config
