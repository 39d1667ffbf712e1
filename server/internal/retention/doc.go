// Package retention implements the telemetry retention log: a time-ordered
// set of rendered probe lines scored by their measurement time.
//
// Expiry is a score-range delete rather than per-entry TTLs. Callers insert,
// then immediately prune everything at or before now minus Window, so the
// log never holds more than one window of history outside that brief gap.
package retention
