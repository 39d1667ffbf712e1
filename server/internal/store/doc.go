// Package store owns the connection to the ordered backing store used by the
// retention log and the key sweep. It exposes a small sorted-set surface
// (Backend) with three implementations selected by URL scheme: Redis,
// SQLite and an in-process map for tests and local runs.
package store
