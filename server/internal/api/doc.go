// Package api implements the HTTP surface of xrbridge-server.
//
// New(store, opts) returns an http.Handler that serves:
//
//	GET  /get_coordinates      latest pointer coordinates {x, y}
//	POST /receive_coordinates  {x, y} -> {status: "success"}
//	POST /update_button_index  {buttonIndex} -> {success: true}
//	GET  /get_users_data       map of user id -> user record
//	GET  /get_user?id=<id>     one user record; 404 if unknown
//	POST /set_code             {codeX, codeY} -> {status: "code_set", ...}
//	POST /press_button         optional {codeX, codeY} -> {status: "armed", seq, ...}
//	POST /trigger_haptic       -> {status: "haptic_armed", haptic_seq}
//	POST /toggle_cue           -> {status: "cue_armed", cue_seq}
//	GET  /health               session, user and sequence summary
//
// All endpoints respond with Content-Type: application/json and return 405
// for the wrong method. The POST endpoints are wrapped by Options.Auth when set.
//
// JSON types are defined in types.go. Routing uses gorilla/mux.
package api
