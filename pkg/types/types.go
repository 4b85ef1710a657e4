package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Coordinates is the latest normalized pointer position. No range is enforced.
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CodePair is the operator-selected code delivered with every press event.
type CodePair struct {
	X int `json:"codeX"`
	Y int `json:"codeY"`
}

// DefaultCode is the CodePair a fresh process starts with.
var DefaultCode = CodePair{X: 0, Y: 1}

// NoButton is the button index value meaning "nothing selected".
const NoButton = -1

// UserRecord is the last pose/contact frame received for one user.
// HMD and hand samples are opaque to the relay and stored verbatim.
type UserRecord struct {
	HMD       json.RawMessage   `json:"hmd"`
	IsContact bool              `json:"is_contact"`
	LeftHand  []json.RawMessage `json:"left_hand"`
	RightHand []json.RawMessage `json:"right_hand"`
}

// InboundFrame is the union of every JSON object a producer may send on /ws.
// Pointer fields distinguish "absent" from the zero value. Producers are not
// consistent about field types, so the relay reads frames with DecodeFrame
// rather than json.Unmarshal.
type InboundFrame struct {
	// Pose relay variant.
	UserID    string            `json:"user_id,omitempty"`
	HMD       json.RawMessage   `json:"hmd,omitempty"`
	IsContact *bool             `json:"is_contact,omitempty"`
	LeftHand  []json.RawMessage `json:"left_hand,omitempty"`
	RightHand []json.RawMessage `json:"right_hand,omitempty"`

	// Coordinate relay variant.
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	// Tag is 0/1 as a number or a string depending on the producer.
	Tag json.RawMessage `json:"tag,omitempty"`
}

// ErrNotObject is returned by DecodeFrame for valid JSON that is not an object.
var ErrNotObject = errors.New("frame is not a JSON object")

// DecodeFrame reads one /ws text frame. Only a payload that is not a JSON
// object fails; a field of the wrong type is coerced or dropped so the rest
// of the frame still applies.
//
//   - user_id: strings as-is, other truthy values by their JSON text
//   - is_contact: JSON truthiness (true, non-zero, non-empty)
//   - left_hand, right_hand: arrays only, anything else becomes empty
//   - x, y: numbers or numeric strings; other non-null values read as 0
//   - hmd, tag: kept verbatim
func DecodeFrame(data []byte) (InboundFrame, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return InboundFrame{}, err
	}
	if raw == nil {
		return InboundFrame{}, ErrNotObject
	}

	var f InboundFrame
	f.UserID = userKey(raw["user_id"])
	if v := raw["hmd"]; !isNull(v) {
		f.HMD = v
	}
	if v, ok := raw["is_contact"]; ok {
		b := truthy(v)
		f.IsContact = &b
	}
	f.LeftHand = rawList(raw["left_hand"])
	f.RightHand = rawList(raw["right_hand"])
	if v := raw["x"]; !isNull(v) {
		x, _ := number(v)
		f.X = &x
	}
	if v := raw["y"]; !isNull(v) {
		y, _ := number(v)
		f.Y = &y
	}
	if v := raw["tag"]; !isNull(v) {
		f.Tag = v
	}
	return f, nil
}

// Record converts a pose frame into a full-replacement UserRecord.
// Absent fields become null/false/empty rather than merging with old values.
func (f *InboundFrame) Record() UserRecord {
	rec := UserRecord{
		HMD:       f.HMD,
		LeftHand:  f.LeftHand,
		RightHand: f.RightHand,
	}
	if f.IsContact != nil {
		rec.IsContact = *f.IsContact
	}
	if rec.LeftHand == nil {
		rec.LeftHand = []json.RawMessage{}
	}
	if rec.RightHand == nil {
		rec.RightHand = []json.RawMessage{}
	}
	return rec
}

// HasCoordinates reports whether the frame is the coordinate relay variant.
func (f *InboundFrame) HasCoordinates() bool {
	return f.X != nil || f.Y != nil
}

// Side maps the optional coordinate tag (0 or 1, number or string) to a hand name.
func (f *InboundFrame) Side() string {
	n, ok := number(f.Tag)
	switch {
	case !ok:
		return "unknown"
	case n == 0:
		return "left"
	case n == 1:
		return "right"
	default:
		return "unknown"
	}
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || string(v) == "null"
}

// truthy follows the usual dynamic-language rules: false, 0, "", [], {} and
// null are false.
func truthy(v json.RawMessage) bool {
	var x any
	if err := json.Unmarshal(v, &x); err != nil {
		return false
	}
	switch t := x.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return false
	}
}

func userKey(v json.RawMessage) string {
	if isNull(v) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	if !truthy(v) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return ""
	}
	return buf.String()
}

func rawList(v json.RawMessage) []json.RawMessage {
	var out []json.RawMessage
	if isNull(v) || json.Unmarshal(v, &out) != nil {
		return nil
	}
	return out
}

func number(v json.RawMessage) (float64, bool) {
	if isNull(v) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// PressNotification is sent when the button sequence advanced.
type PressNotification struct {
	Pressed bool `json:"pressed"`
	CodeX   int  `json:"codeX"`
	CodeY   int  `json:"codeY"`
}

// HapticNotification is sent when the haptic sequence advanced.
type HapticNotification struct {
	Haptic bool `json:"haptic"`
}

// CueNotification is sent when the cue-toggle sequence advanced.
type CueNotification struct {
	CueToggle bool `json:"cue_toggle"`
}
