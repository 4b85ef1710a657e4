package types

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeFrame_NumericTag(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"x":0.25, "y":0.75, "tag":0}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if !f.HasCoordinates() || *f.X != 0.25 || *f.Y != 0.75 {
		t.Errorf("coords = %v, %v", f.X, f.Y)
	}
	if got := f.Side(); got != "left" {
		t.Errorf("Side() = %q, want left", got)
	}
}

func TestSide(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{``, "unknown"},
		{`0`, "left"},
		{`"0"`, "left"},
		{`1`, "right"},
		{`"1"`, "right"},
		{`2`, "unknown"},
		{`"left"`, "unknown"},
	}
	for _, tt := range tests {
		f := InboundFrame{}
		if tt.tag != "" {
			f.Tag = json.RawMessage(tt.tag)
		}
		if got := f.Side(); got != tt.want {
			t.Errorf("Side(tag=%s) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestDecodeFrame_NonBoolIsContact(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"user_id":"u1","is_contact":1,"left_hand":[]}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if f.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", f.UserID)
	}
	rec := f.Record()
	if !rec.IsContact {
		t.Error("IsContact = false, want true for 1")
	}
	if rec.LeftHand == nil || len(rec.LeftHand) != 0 || rec.RightHand == nil {
		t.Errorf("hands = %v / %v, want empty slices", rec.LeftHand, rec.RightHand)
	}
}

func TestDecodeFrame_Truthiness(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{`true`, true},
		{`false`, false},
		{`0`, false},
		{`2`, true},
		{`""`, false},
		{`"yes"`, true},
		{`null`, false},
		{`[]`, false},
		{`{"a":1}`, true},
	}
	for _, tt := range tests {
		f, err := DecodeFrame([]byte(`{"user_id":"u","is_contact":` + tt.value + `}`))
		if err != nil {
			t.Fatalf("DecodeFrame(is_contact=%s) error = %v", tt.value, err)
		}
		if got := f.Record().IsContact; got != tt.want {
			t.Errorf("is_contact=%s: got %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestDecodeFrame_UserIDForms(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{`"abc"`, "abc"},
		{`42`, "42"},
		{`0`, ""},
		{`""`, ""},
		{`null`, ""},
		{`false`, ""},
	}
	for _, tt := range tests {
		f, err := DecodeFrame([]byte(`{"user_id":` + tt.value + `}`))
		if err != nil {
			t.Fatalf("DecodeFrame(user_id=%s) error = %v", tt.value, err)
		}
		if f.UserID != tt.want {
			t.Errorf("user_id=%s: got %q, want %q", tt.value, f.UserID, tt.want)
		}
	}
}

func TestDecodeFrame_WrongTypedFieldsKeepTheRest(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"user_id":"u2","hmd":{"pos":[1,2,3]},"left_hand":"none","right_hand":[{"j":1}]}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	rec := f.Record()
	if string(rec.HMD) != `{"pos":[1,2,3]}` {
		t.Errorf("HMD = %s", rec.HMD)
	}
	if len(rec.LeftHand) != 0 {
		t.Errorf("LeftHand = %v, want empty", rec.LeftHand)
	}
	if len(rec.RightHand) != 1 {
		t.Errorf("RightHand = %v, want one sample", rec.RightHand)
	}
}

func TestDecodeFrame_StringCoordinates(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"x":"0.5","y":"abc"}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if f.X == nil || *f.X != 0.5 {
		t.Errorf("X = %v, want 0.5", f.X)
	}
	if f.Y == nil || *f.Y != 0 {
		t.Errorf("Y = %v, want 0", f.Y)
	}
}

func TestDecodeFrame_NullCoordinatesAreAbsent(t *testing.T) {
	f, err := DecodeFrame([]byte(`{"x":null}`))
	if err != nil {
		t.Fatalf("DecodeFrame() error = %v", err)
	}
	if f.HasCoordinates() {
		t.Error("HasCoordinates() = true for null x")
	}
}

func TestDecodeFrame_NotAnObject(t *testing.T) {
	for _, in := range []string{`not json`, `[1,2]`, `"text"`, `7`} {
		if _, err := DecodeFrame([]byte(in)); err == nil {
			t.Errorf("DecodeFrame(%s) error = nil, want error", in)
		}
	}
	if _, err := DecodeFrame([]byte(`null`)); !errors.Is(err, ErrNotObject) {
		t.Errorf("DecodeFrame(null) error = %v, want ErrNotObject", err)
	}
}

func TestInboundFrame_MarshalOmitsAbsent(t *testing.T) {
	x := 0.5
	b, err := json.Marshal(InboundFrame{X: &x, Tag: json.RawMessage(`1`)})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `{"x":0.5,"tag":1}` {
		t.Errorf("Marshal() = %s", b)
	}
}
