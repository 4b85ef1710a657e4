package ws

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xrbridge/xrbridge/pkg/types"
	"github.com/xrbridge/xrbridge/server/internal/store"
)

// Frame kinds recorded in metrics.
const (
	framePose      = "pose"
	frameCoords    = "coords"
	frameKeepalive = "keepalive"
	frameInvalid   = "invalid"
)

// session is one open /ws connection.
type session struct {
	id   string
	conn *websocket.Conn
	hub  *Hub
	mark *watermark

	send chan []byte
	wake chan struct{}

	// deliverMu makes "advance watermark, queue notifications" atomic so the
	// read and write pumps never interleave their batches.
	deliverMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string, conn *websocket.Conn, h *Hub, mark *watermark) *session {
	return &session{
		id:   id,
		conn: conn,
		hub:  h,
		mark: mark,
		send: make(chan []byte, h.opts.SendBuffer),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// close signals the write pump to send a close frame and exit. Idempotent.
func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// enqueue queues msg for the write pump. It reports false when the session is
// closing or the client is too slow to keep up, in which case the session is
// closed.
func (s *session) enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- msg:
		return true
	default:
		slog.Warn("ws: send buffer full, closing session", "session", s.id)
		s.close()
		return false
	}
}

// readPump reads frames until the connection closes, an empty frame arrives,
// or the session is closed. Runs on the ServeHTTP goroutine. The write pump
// owns closing the connection so queued replies still go out.
func (s *session) readPump() {
	s.conn.SetReadLimit(s.hub.opts.MaxMessageBytes)
	if pw := s.hub.opts.PongWait; pw > 0 {
		s.conn.SetReadDeadline(time.Now().Add(pw)) //nolint:errcheck
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pw))
		})
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("ws: read error", "session", s.id, "err", err)
			}
			return
		}
		if len(data) == 0 {
			slog.Debug("ws: empty frame, closing session", "session", s.id)
			s.close()
			return
		}
		if !s.process(data) {
			return
		}
	}
}

// process handles one inbound frame and then queues any pending events.
// A panic while handling the frame is logged and the session continues.
func (s *session) process(data []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ws: frame handling panicked", "session", s.id, "panic", r)
			ok = true
		}
	}()

	for _, reply := range s.handle(data) {
		if !s.enqueue(reply) {
			return false
		}
	}
	return s.deliver()
}

// deliver queues a notification for every counter that moved since the last
// check. Both pumps call it; the queue keeps their output in order.
func (s *session) deliver() bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	for _, msg := range s.pending() {
		if !s.enqueue(msg) {
			return false
		}
	}
	return true
}

// handle applies one frame to the store and returns the text replies for it.
// Coordinate and unparsable frames are both answered on the coordinate
// channel, so both carry the button index echo.
func (s *session) handle(data []byte) [][]byte {
	st := s.hub.store

	f, err := types.DecodeFrame(data)
	if err != nil {
		s.hub.metrics.Frame(frameInvalid)
		slog.Debug("ws: invalid frame", "session", s.id, "err", err)
		return s.withButtonIndex([][]byte{[]byte("Error: " + err.Error())})
	}

	switch {
	case f.UserID != "":
		s.hub.metrics.Frame(framePose)
		rec := f.Record()
		st.PutUser(f.UserID, rec)
		if rec.IsContact {
			slog.Debug("ws: user in contact",
				"session", s.id,
				"user", f.UserID,
				"left_hand", len(rec.LeftHand),
				"right_hand", len(rec.RightHand),
			)
		}
		return nil

	case f.HasCoordinates():
		s.hub.metrics.Frame(frameCoords)
		var x, y float64
		if f.X != nil {
			x = *f.X
		}
		if f.Y != nil {
			y = *f.Y
		}
		st.SetCoordinates(x, y)
		slog.Debug("ws: coordinates", "session", s.id, "x", x, "y", y, "side", f.Side())

		ack := []byte(fmt.Sprintf("Received coords: x=%s, y=%s", formatFloat(x), formatFloat(y)))
		return s.withButtonIndex([][]byte{ack})

	default:
		s.hub.metrics.Frame(frameKeepalive)
		return nil
	}
}

// withButtonIndex appends "Received button index: N" when a button is selected.
func (s *session) withButtonIndex(replies [][]byte) [][]byte {
	if idx := s.hub.store.ButtonIndex(); idx != types.NoButton {
		replies = append(replies, []byte(fmt.Sprintf("Received button index: %d", idx)))
	}
	return replies
}

// pending advances the watermark and returns one notification per counter
// that moved since the last check, in button, haptic, cue order.
func (s *session) pending() [][]byte {
	seq, code := s.hub.store.EventState()
	kinds := s.mark.advance(seq)
	if len(kinds) == 0 {
		return nil
	}

	out := make([][]byte, 0, len(kinds))
	for _, k := range kinds {
		msg, err := notification(k, code)
		if err != nil {
			slog.Error("ws: encode notification", "session", s.id, "kind", k.String(), "err", err)
			continue
		}
		s.hub.metrics.Delivered(k)
		slog.Debug("ws: event queued", "session", s.id, "kind", k.String())
		out = append(out, msg)
	}
	return out
}

// writePump is the only goroutine that writes to the connection. It drains
// the send queue, turns push-mode wakes into queued notifications, and sends
// keepalive pings.
func (s *session) writePump() {
	var pingC <-chan time.Time
	if pw := s.hub.opts.PongWait; pw > 0 {
		ticker := time.NewTicker(pw * 9 / 10)
		defer ticker.Stop()
		pingC = ticker.C
	}
	defer s.conn.Close()

	for {
		select {
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.close()
				return
			}

		case <-s.wake:
			// A full queue closes the session; the done case then flushes it.
			s.deliver()

		case <-pingC:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.close()
				return
			}

		case <-s.done:
			s.flush()
			s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")) //nolint:errcheck
			return
		}
	}
}

// flush writes whatever is still queued so replies to the final frames are
// not lost when the session closes.
func (s *session) flush() {
	for {
		select {
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *session) write(messageType int, data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(s.hub.opts.WriteTimeout)) //nolint:errcheck
	return s.conn.WriteMessage(messageType, data)
}

// notification encodes the outbound JSON payload for kind k.
func notification(k store.Kind, code types.CodePair) ([]byte, error) {
	switch k {
	case store.KindButton:
		return json.Marshal(types.PressNotification{Pressed: true, CodeX: code.X, CodeY: code.Y})
	case store.KindHaptic:
		return json.Marshal(types.HapticNotification{Haptic: true})
	case store.KindCue:
		return json.Marshal(types.CueNotification{CueToggle: true})
	default:
		return nil, fmt.Errorf("unknown event kind %d", k)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
