package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xrbridge/xrbridge/pkg/types"
)

// fakeRelay records the last request and answers with a fixed status and body.
type fakeRelay struct {
	status int
	body   string

	method string
	path   string
	query  string
	header http.Header
	got    []byte
}

func (f *fakeRelay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.method = r.Method
	f.path = r.URL.Path
	f.query = r.URL.RawQuery
	f.header = r.Header.Clone()
	f.got, _ = io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	if f.status != 0 {
		w.WriteHeader(f.status)
	}
	_, _ = w.Write([]byte(f.body))
}

func newTestClient(t *testing.T, f *fakeRelay, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_RejectsUnsupportedScheme(t *testing.T) {
	if _, err := New("ftp://relay:21"); err == nil {
		t.Fatal("New(ftp://...) error = nil, want error")
	}
}

func TestClient_URLs(t *testing.T) {
	c, err := New("https://relay.example:8443/base/")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got, want := c.WebSocketURL(), "wss://relay.example:8443/base/ws"; got != want {
		t.Errorf("WebSocketURL() = %q, want %q", got, want)
	}
	if got, want := c.URL("/get_user?id=a%20b"), "https://relay.example:8443/base/get_user?id=a%20b"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}

	plain, _ := New("http://localhost:5000")
	if got, want := plain.WebSocketURL(), "ws://localhost:5000/ws"; got != want {
		t.Errorf("WebSocketURL() = %q, want %q", got, want)
	}
}

func TestClient_Coordinates(t *testing.T) {
	f := &fakeRelay{body: `{"x":0.25,"y":0.75}`}
	c := newTestClient(t, f)

	got, err := c.Coordinates(context.Background())
	if err != nil {
		t.Fatalf("Coordinates() error = %v", err)
	}
	if f.method != http.MethodGet || f.path != "/get_coordinates" {
		t.Errorf("request = %s %s, want GET /get_coordinates", f.method, f.path)
	}
	if got != (types.Coordinates{X: 0.25, Y: 0.75}) {
		t.Errorf("Coordinates() = %+v", got)
	}
}

func TestClient_SendCoordinates(t *testing.T) {
	f := &fakeRelay{body: `{"status":"success"}`}
	c := newTestClient(t, f)

	if err := c.SendCoordinates(context.Background(), 0.5, 0.1); err != nil {
		t.Fatalf("SendCoordinates() error = %v", err)
	}
	if f.method != http.MethodPost || f.path != "/receive_coordinates" {
		t.Errorf("request = %s %s, want POST /receive_coordinates", f.method, f.path)
	}
	var body types.Coordinates
	if err := json.Unmarshal(f.got, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.X != 0.5 || body.Y != 0.1 {
		t.Errorf("body = %+v, want x=0.5 y=0.1", body)
	}
}

func TestClient_SetButtonIndex(t *testing.T) {
	f := &fakeRelay{body: `{"success":true}`}
	c := newTestClient(t, f)

	if err := c.SetButtonIndex(context.Background(), 3); err != nil {
		t.Fatalf("SetButtonIndex() error = %v", err)
	}
	if string(f.got) != `{"buttonIndex":3}` {
		t.Errorf("body = %s", f.got)
	}
}

func TestClient_SetCode_BadRequest(t *testing.T) {
	f := &fakeRelay{status: http.StatusBadRequest, body: `{"error":"codeX and codeY are required"}`}
	c := newTestClient(t, f)

	_, err := c.SetCode(context.Background(), types.CodePair{X: 1, Y: 2})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("SetCode() error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusBadRequest || se.Message != "codeX and codeY are required" {
		t.Errorf("StatusError = %+v", se)
	}
}

func TestClient_Press(t *testing.T) {
	f := &fakeRelay{body: `{"status":"armed","seq":4,"codeX":7,"codeY":9}`}
	c := newTestClient(t, f)

	got, err := c.Press(context.Background(), nil)
	if err != nil {
		t.Fatalf("Press(nil) error = %v", err)
	}
	if len(f.got) != 0 {
		t.Errorf("Press(nil) sent body %q, want none", f.got)
	}
	if got.Seq != 4 || got.X != 7 || got.Y != 9 || got.Status != "armed" {
		t.Errorf("Press() = %+v", got)
	}

	if _, err := c.Press(context.Background(), &types.CodePair{X: 7, Y: 9}); err != nil {
		t.Fatalf("Press(code) error = %v", err)
	}
	if string(f.got) != `{"codeX":7,"codeY":9}` {
		t.Errorf("Press(code) body = %s", f.got)
	}
}

func TestClient_HapticAndCue(t *testing.T) {
	f := &fakeRelay{body: `{"status":"haptic_armed","haptic_seq":2}`}
	c := newTestClient(t, f)
	seq, err := c.TriggerHaptic(context.Background())
	if err != nil || seq != 2 {
		t.Errorf("TriggerHaptic() = %d, %v; want 2, nil", seq, err)
	}
	if f.path != "/trigger_haptic" {
		t.Errorf("path = %q", f.path)
	}

	f.body = `{"status":"cue_armed","cue_seq":5}`
	seq, err = c.ToggleCue(context.Background())
	if err != nil || seq != 5 {
		t.Errorf("ToggleCue() = %d, %v; want 5, nil", seq, err)
	}
	if f.path != "/toggle_cue" {
		t.Errorf("path = %q", f.path)
	}
}

func TestClient_UserNotFound(t *testing.T) {
	f := &fakeRelay{status: http.StatusNotFound, body: `{"error":"User not found"}`}
	c := newTestClient(t, f)

	_, err := c.User(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("User(ghost) error = %v, want ErrNotFound", err)
	}
	if f.path != "/get_user" || f.query != "id=ghost" {
		t.Errorf("request = %s?%s", f.path, f.query)
	}
}

func TestClient_Users(t *testing.T) {
	f := &fakeRelay{body: `{"u1":{"hmd":{"p":[0,1,2]},"is_contact":true,"left_hand":[],"right_hand":[1]}}`}
	c := newTestClient(t, f)

	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	u, ok := users["u1"]
	if !ok {
		t.Fatalf("Users() missing u1: %v", users)
	}
	if !u.IsContact || len(u.RightHand) != 1 {
		t.Errorf("u1 = %+v", u)
	}
}

func TestClient_APIKeyHeader(t *testing.T) {
	f := &fakeRelay{body: `{"status":"haptic_armed","haptic_seq":1}`}
	c := newTestClient(t, f, WithAPIKey("", "s3cret"))

	if _, err := c.TriggerHaptic(context.Background()); err != nil {
		t.Fatalf("TriggerHaptic() error = %v", err)
	}
	if got := f.header.Get("X-API-Key"); got != "s3cret" {
		t.Errorf("X-API-Key = %q, want s3cret", got)
	}
}

func TestClient_Health(t *testing.T) {
	f := &fakeRelay{body: `{"status":"ok","sessions":2,"users":1,"button_seq":3,"haptic_seq":0,"cue_seq":1}`}
	c := newTestClient(t, f)

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if h.Sessions != 2 || h.ButtonSeq != 3 || h.CueSeq != 1 {
		t.Errorf("Health() = %+v", h)
	}
}
