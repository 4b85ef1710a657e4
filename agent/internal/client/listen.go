package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xrbridge/xrbridge/pkg/types"
)

const (
	defaultInterval = time.Second
	writeTimeout    = 5 * time.Second
)

// Notification kinds as reported by ParseNotification.
const (
	KindPressed = "pressed"
	KindHaptic  = "haptic"
	KindCue     = "cue_toggle"
	KindJSON    = "json"
	KindText    = "text"
)

// Notification is one message received from the relay on /ws.
type Notification struct {
	Kind string
	// Code is set for KindPressed.
	Code types.CodePair
	Raw  []byte
}

// ParseNotification classifies a server message. Text acknowledgements
// ("Received coords: ...", "Error: ...") are returned as KindText.
func ParseNotification(msg []byte) Notification {
	n := Notification{Kind: KindText, Raw: msg}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return n
	}
	switch {
	case fields["pressed"] != nil:
		var p types.PressNotification
		if err := json.Unmarshal(msg, &p); err == nil {
			n.Kind = KindPressed
			n.Code = types.CodePair{X: p.CodeX, Y: p.CodeY}
			return n
		}
	case fields["haptic"] != nil:
		n.Kind = KindHaptic
		return n
	case fields["cue_toggle"] != nil:
		n.Kind = KindCue
		return n
	}
	n.Kind = KindJSON
	return n
}

// Listener holds a /ws session open and reports every message it receives.
type Listener struct {
	// URL is the relay's WebSocket endpoint, see Client.WebSocketURL.
	URL    string
	Header http.Header
	// Interval between outbound frames. Piggyback relays only flush
	// notifications after a frame arrives, so this bounds delivery latency.
	Interval time.Duration
	// Frame builds the next outbound frame. Nil sends an empty JSON object,
	// which the relay treats as a keepalive.
	Frame func() types.InboundFrame
	// OnMessage is called from the reader goroutine for each message.
	OnMessage func(Notification)
	// Reconnect redials with backoff after the session drops.
	Reconnect bool
	Dialer    *websocket.Dialer

	backoffInitial time.Duration
	backoffMax     time.Duration
}

// Run blocks until ctx is cancelled, or until the first session ends when
// Reconnect is false.
func (l *Listener) Run(ctx context.Context) error {
	bo := newBackoff(l.backoffInitial, l.backoffMax)
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if !l.Reconnect {
			return err
		}
		if connected {
			bo.reset()
		}
		wait := bo.next()
		slog.Warn("listener: session ended, will reconnect",
			"url", l.URL, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// session runs one connection. connected reports whether the dial succeeded.
func (l *Listener) session(ctx context.Context) (connected bool, err error) {
	dialer := l.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, l.URL, l.Header)
	if err != nil {
		return false, fmt.Errorf("listener: dial %s: %w", l.URL, err)
	}
	defer conn.Close()
	slog.Info("listener: connected", "url", l.URL)

	errc := make(chan error, 1)
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				errc <- err
				return
			}
			if l.OnMessage != nil {
				l.OnMessage(ParseNotification(msg))
			}
		}
	}()

	interval := l.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := l.send(conn); err != nil {
		return true, err
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeTimeout))
			return true, nil
		case err := <-errc:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return true, errors.New("listener: closed by relay")
			}
			return true, fmt.Errorf("listener: read: %w", err)
		case <-ticker.C:
			if err := l.send(conn); err != nil {
				return true, err
			}
		}
	}
}

func (l *Listener) send(conn *websocket.Conn) error {
	payload := []byte("{}")
	if l.Frame != nil {
		f := l.Frame()
		b, err := json.Marshal(&f)
		if err != nil {
			return fmt.Errorf("listener: encode frame: %w", err)
		}
		payload = b
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("listener: write: %w", err)
	}
	return nil
}
