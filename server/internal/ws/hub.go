package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xrbridge/xrbridge/pkg/types"
	"github.com/xrbridge/xrbridge/server/internal/metrics"
	"github.com/xrbridge/xrbridge/server/internal/store"
)

// Delivery modes, mirrored from the config package.
const (
	DeliveryPiggyback = "piggyback"
	DeliveryPush      = "push"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	// Allow all origins; Unity and Quest clients send none or a file:// origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Options tunes session behaviour.
type Options struct {
	// Delivery is "piggyback" (default) or "push".
	Delivery string

	// PongWait is the keepalive read deadline. Zero disables ping/pong.
	PongWait time.Duration

	// WriteTimeout is the deadline for a single write to a client.
	WriteTimeout time.Duration

	// MaxMessageBytes caps an inbound frame.
	MaxMessageBytes int64

	// SendBuffer is the per-session outgoing message buffer depth.
	SendBuffer int
}

// DefaultOptions returns the options used when fields are left zero.
func DefaultOptions() Options {
	return Options{
		Delivery:        DeliveryPiggyback,
		PongWait:        60 * time.Second,
		WriteTimeout:    10 * time.Second,
		MaxMessageBytes: 64 * 1024,
		SendBuffer:      16,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Delivery == "" {
		o.Delivery = d.Delivery
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = d.MaxMessageBytes
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	return o
}

// State is the part of the store sessions read and write.
type State interface {
	Sequences() store.Sequences
	EventState() (store.Sequences, types.CodePair)
	PutUser(id string, rec types.UserRecord)
	SetCoordinates(x, y float64)
	ButtonIndex() int
}

// Hub tracks open sessions. It upgrades connections, wakes sessions in push
// mode, and closes every session on shutdown.
type Hub struct {
	store   State
	metrics *metrics.Metrics
	opts    Options

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// New creates a Hub serving sessions backed by st. m may be nil.
func New(st State, m *metrics.Metrics, opts Options) *Hub {
	return &Hub{
		store:    st,
		metrics:  m,
		opts:     opts.withDefaults(),
		sessions: make(map[*session]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active sessions.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Wake signals every session to check its watermark now. It has the
// store.OnArm observer signature and is a no-op in piggyback mode.
func (h *Hub) Wake(store.Event) {
	if h.opts.Delivery != DeliveryPush {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.sessions {
		select {
		case s.wake <- struct{}{}:
		default:
			// A wake is already pending; it will see the newest counters.
		}
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and runs one session.
// Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Snapshot before the handshake completes: anything armed once the client
	// sees the upgrade must count as a future event for this session.
	mark := newWatermark(h.store.Sequences())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		slog.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	s := newSession(uuid.NewString(), conn, h, mark)
	h.register(s)
	defer h.unregister(s)

	if h.opts.Delivery == DeliveryPush {
		// Catch events armed between the snapshot and registration.
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}

	slog.Info("ws: session opened", "session", s.id, "remote", r.RemoteAddr)

	go s.writePump()
	s.readPump() // blocks until connection closes

	slog.Info("ws: session closed", "session", s.id)
}

// Count returns the number of currently open sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
	h.metrics.SessionOpened()
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	_, ok := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()
	s.close()
	if ok {
		h.metrics.SessionClosed()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.sessions {
		s.close()
		delete(h.sessions, s)
		h.metrics.SessionClosed()
	}
}
