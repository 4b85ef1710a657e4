// Package ws implements the /ws duplex session handler for xrbridge-server.
//
// Each WebSocket connection becomes a session with a private watermark: a
// copy of the store's three sequence counters (button, haptic, cue) taken
// when the connection opens. Events armed before a client connected are
// therefore never delivered to it.
//
// Per inbound frame the session
//
//  1. closes on an empty frame,
//  2. parses the frame as JSON, replying "Error: <reason>" on failure,
//  3. upserts the sender's user record (pose variant) or the pointer
//     coordinates (coordinate variant, acknowledged with a text frame),
//  4. compares button, haptic, then cue counters with its watermark and
//     sends one notification per advanced counter.
//
// If a counter moved by more than one between checks, a single notification
// is sent. With Options.Delivery == "push" the hub also wakes every session
// as soon as an event is armed, so step 4 runs without waiting for inbound
// traffic.
//
// Outbound notifications:
//
//	{"pressed": true, "codeX": 0, "codeY": 1}
//	{"haptic": true}
//	{"cue_toggle": true}
//
// The upgrader accepts all origins; headsets connect by bare LAN address.
package ws
