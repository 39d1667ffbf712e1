// Package recorder runs one probe cycle: check the target, append the result
// to the retention log, prune entries older than the retention window, then
// sweep stale job-result keys.
//
// Errors are typed so the HTTP layer can map them to responses:
//   - *ConfigError  store or target missing; nothing was attempted
//   - *ProbeError   the target produced no HTTP response; nothing was written
//   - *StoreError   insert or prune failed; no prune count is reported
//
// A failed sweep never fails the cycle; it is reported on the Outcome.
package recorder
