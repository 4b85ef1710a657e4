// Package types defines the JSON wire types shared by xrbridge-server and the
// agent CLI: coordinate and code pairs, per-user pose records, the inbound
// WebSocket frame union, and the outbound event notifications.
package types
