// Package ws streams recorder status to WebSocket clients.
//
// New(src, interval) creates a Hub. Hub.Run(ctx) pushes the current status
// to every client each interval and closes all connections when ctx is
// cancelled. Hub.ServeHTTP upgrades the request, sends the status at once,
// then relays the periodic pushes.
//
// Message format:
//
//	{"event": "status", "data": { /* same schema as GET /status */ }}
//	{"event": "error",  "error": "store error: read: ..."}
//
// The server mounts the hub at /ws/stream.
package ws
