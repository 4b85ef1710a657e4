// Package client talks to a running xrbridge relay.
//
// Client wraps the HTTP command and query endpoints. Listener keeps a
// WebSocket session open, sends a frame every interval so that piggybacked
// notifications get flushed, and reconnects with jittered exponential
// backoff when the session drops.
package client
