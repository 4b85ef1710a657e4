// Package metrics exposes Prometheus collectors for xrbridge-server.
//
// New(src) registers every collector on a private registry so tests can build
// as many instances as they like. Handler() serves that registry for GET /metrics.
//
// Series:
//
//	xrbridge_sessions_active                  gauge
//	xrbridge_frames_total{kind}               counter  pose|coords|keepalive|invalid
//	xrbridge_events_armed_total{kind}         counter  button|haptic|cue
//	xrbridge_events_delivered_total{kind}     counter  button|haptic|cue
//	xrbridge_users_known                      gauge
//	xrbridge_sequence{kind}                   gauge    current counter value
//
// All recording methods are safe on a nil *Metrics.
package metrics
