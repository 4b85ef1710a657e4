package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xrbridge/xrbridge/pkg/types"
)

const (
	defaultTimeout = 10 * time.Second
	defaultHeader  = "X-API-Key"
)

// ErrNotFound is returned when the relay answers 404, e.g. for an unknown user id.
var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx reply from the relay.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned %d", e.Code)
	}
	return fmt.Sprintf("relay returned %d: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 replies.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client is an HTTP client for the relay's command and query endpoints.
type Client struct {
	base   *url.URL
	http   *http.Client
	key    string
	header string
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key in header on every request. An empty header uses X-API-Key.
func WithAPIKey(header, key string) Option {
	return func(c *Client) {
		if header == "" {
			header = defaultHeader
		}
		c.header = header
		c.key = key
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New parses server (e.g. "http://localhost:5000") and returns a Client for it.
func New(server string, opts ...Option) (*Client, error) {
	u, err := url.Parse(server)
	if err != nil {
		return nil, fmt.Errorf("client: parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	c := &Client{
		base:   u,
		http:   &http.Client{Timeout: defaultTimeout},
		header: defaultHeader,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// URL returns the absolute URL for path on the relay.
func (c *Client) URL(path string) string {
	u := *c.base
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u.RawQuery = path[i+1:]
		path = path[:i]
	}
	u.Path += path
	return u.String()
}

// WebSocketURL returns the relay's /ws endpoint with a ws or wss scheme.
func (c *Client) WebSocketURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	return u.String()
}

// Coordinates fetches the latest pointer position.
func (c *Client) Coordinates(ctx context.Context) (types.Coordinates, error) {
	var out types.Coordinates
	err := c.do(ctx, http.MethodGet, "/get_coordinates", nil, &out)
	return out, err
}

// SendCoordinates overwrites the pointer position.
func (c *Client) SendCoordinates(ctx context.Context, x, y float64) error {
	return c.do(ctx, http.MethodPost, "/receive_coordinates", types.Coordinates{X: x, Y: y}, nil)
}

// SetButtonIndex updates the selected button index.
func (c *Client) SetButtonIndex(ctx context.Context, index int) error {
	body := map[string]int{"buttonIndex": index}
	return c.do(ctx, http.MethodPost, "/update_button_index", body, nil)
}

// CodeReply is the relay's answer to /set_code.
type CodeReply struct {
	Status string `json:"status"`
	types.CodePair
}

// SetCode stores the CodePair delivered with future presses.
func (c *Client) SetCode(ctx context.Context, code types.CodePair) (CodeReply, error) {
	var out CodeReply
	err := c.do(ctx, http.MethodPost, "/set_code", code, &out)
	return out, err
}

// PressReply is the relay's answer to /press_button.
type PressReply struct {
	Status string `json:"status"`
	Seq    uint64 `json:"seq"`
	types.CodePair
}

// Press arms a button event. A non-nil code is stored before arming.
func (c *Client) Press(ctx context.Context, code *types.CodePair) (PressReply, error) {
	var out PressReply
	var body any
	if code != nil {
		body = code
	}
	err := c.do(ctx, http.MethodPost, "/press_button", body, &out)
	return out, err
}

// TriggerHaptic arms a haptic event and returns the new haptic sequence.
func (c *Client) TriggerHaptic(ctx context.Context) (uint64, error) {
	var out struct {
		Seq uint64 `json:"haptic_seq"`
	}
	err := c.do(ctx, http.MethodPost, "/trigger_haptic", nil, &out)
	return out.Seq, err
}

// ToggleCue arms a cue event and returns the new cue sequence.
func (c *Client) ToggleCue(ctx context.Context) (uint64, error) {
	var out struct {
		Seq uint64 `json:"cue_seq"`
	}
	err := c.do(ctx, http.MethodPost, "/toggle_cue", nil, &out)
	return out.Seq, err
}

// Users fetches every known user record.
func (c *Client) Users(ctx context.Context) (map[string]types.UserRecord, error) {
	out := map[string]types.UserRecord{}
	err := c.do(ctx, http.MethodGet, "/get_users_data", nil, &out)
	return out, err
}

// User fetches one user record. Unknown ids yield an error matching ErrNotFound.
func (c *Client) User(ctx context.Context, id string) (types.UserRecord, error) {
	var out types.UserRecord
	err := c.do(ctx, http.MethodGet, "/get_user?id="+url.QueryEscape(id), nil, &out)
	return out, err
}

// Health is the relay's /health payload.
type Health struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	Users     int    `json:"users"`
	ButtonSeq uint64 `json:"button_seq"`
	HapticSeq uint64 `json:"haptic_seq"`
	CueSeq    uint64 `json:"cue_seq"`
}

// Health fetches relay liveness and counters.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var out Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Get performs a raw GET and returns the response body. Used for /metrics.
func (c *Client) Get(ctx context.Context, path, accept string) (io.ReadCloser, error) {
	req, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: get %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp.Body, nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), r)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.key != "" {
		req.Header.Set(c.header, c.key)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s: %w", path, err)
	}
	return nil
}

// statusError extracts the relay's error text from either {error} or {message}.
func statusError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = body.Message
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
