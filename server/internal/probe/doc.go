// Package probe performs the single outbound health check behind each
// recorder cycle.
//
// A Runner issues one GET against the configured target with a fixed 10
// second timeout and measures wall-clock latency. Any HTTP response counts
// as a result, whatever its status code; transport failures (DNS, refused
// connection, timeout) are returned as *Error. There is no retry.
//
// For https targets the leaf certificate from the same connection is
// reported on the Result, classified as valid, expiring or expired.
package probe
