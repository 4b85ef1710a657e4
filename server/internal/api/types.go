package api

// statusResponse is the body of /receive_coordinates.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// buttonIndexResponse is the body of /update_button_index.
type buttonIndexResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CodeResponse is the payload for POST /set_code.
type CodeResponse struct {
	Status string `json:"status"`
	CodeX  int    `json:"codeX"`
	CodeY  int    `json:"codeY"`
}

// PressResponse is the payload for POST /press_button.
type PressResponse struct {
	Status string `json:"status"`
	Seq    uint64 `json:"seq"`
	CodeX  int    `json:"codeX"`
	CodeY  int    `json:"codeY"`
}

// HapticResponse is the payload for POST /trigger_haptic.
type HapticResponse struct {
	Status    string `json:"status"`
	HapticSeq uint64 `json:"haptic_seq"`
}

// CueResponse is the payload for POST /toggle_cue.
type CueResponse struct {
	Status string `json:"status"`
	CueSeq uint64 `json:"cue_seq"`
}

// HealthResponse is the payload for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	Users     int    `json:"users"`
	ButtonSeq uint64 `json:"button_seq"`
	HapticSeq uint64 `json:"haptic_seq"`
	CueSeq    uint64 `json:"cue_seq"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

// codeRequest is the body of /set_code and /press_button.
type codeRequest struct {
	CodeX *flexInt `json:"codeX"`
	CodeY *flexInt `json:"codeY"`
}

// buttonIndexRequest is the body of /update_button_index.
type buttonIndexRequest struct {
	ButtonIndex *flexInt `json:"buttonIndex"`
}
