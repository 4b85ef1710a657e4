// Package oscout forwards armed relay events as OSC messages over UDP, for
// VR runtimes and show-control tools that listen for OSC instead of opening a
// WebSocket.
//
// Addresses and int32 arguments:
//
//	/xrbridge/button  seq codeX codeY
//	/xrbridge/haptic  seq
//	/xrbridge/cue     seq
//
// Observe is registered as a store arm observer and never blocks: events are
// queued and sent by Run. A full queue drops the event with a warning.
package oscout
