// Package api implements the recorder's HTTP surface.
//
// New(log, recorder, info, metrics) returns an http.Handler that serves:
//
//	GET /status            project info, retention label, retained log newest first
//	GET /api               alias of /status
//	GET /run               run one probe cycle, report the entry and prune count
//	GET /api/cron/worker   alias of /run, for schedulers configured for that path
//	GET /healthz           liveness
//	GET /favicon.ico       204
//
// Every endpoint answers JSON unless the caller prefers text/html (Accept
// header or ?format=html); both forms go through one render function.
// Errors are {status:"error", message} with 503 for missing configuration,
// 502 for an unreachable target, 500 for store failures and 405 for non-GET.
package api
