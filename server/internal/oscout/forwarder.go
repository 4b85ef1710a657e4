package oscout

import (
	"context"
	"log/slog"

	"github.com/hypebeast/go-osc/osc"

	"github.com/xrbridge/xrbridge/server/internal/store"
)

const (
	addrPrefix = "/xrbridge"
	queueSize  = 64
)

// Sender is the subset of *osc.Client the forwarder uses.
type Sender interface {
	Send(packet osc.Packet) error
}

// Forwarder sends one OSC message per armed event.
type Forwarder struct {
	client Sender
	queue  chan store.Event
}

// New creates a Forwarder that sends to host:port.
func New(host string, port int) *Forwarder {
	return NewWithSender(osc.NewClient(host, port))
}

// NewWithSender creates a Forwarder around an existing sender.
func NewWithSender(s Sender) *Forwarder {
	return &Forwarder{
		client: s,
		queue:  make(chan store.Event, queueSize),
	}
}

// Observe queues ev for delivery. It has the store.OnArm observer signature.
func (f *Forwarder) Observe(ev store.Event) {
	select {
	case f.queue <- ev:
	default:
		slog.Warn("oscout: queue full, dropping event", "kind", ev.Kind.String(), "seq", ev.Seq)
	}
}

// Run drains the queue until ctx is cancelled. Send errors are logged and the
// loop continues.
func (f *Forwarder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.queue:
			msg := Message(ev)
			if err := f.client.Send(msg); err != nil {
				slog.Error("oscout: send failed", "address", msg.Address, "err", err)
				continue
			}
			slog.Debug("oscout: sent", "address", msg.Address, "seq", ev.Seq)
		}
	}
}

// Message builds the OSC message for ev.
func Message(ev store.Event) *osc.Message {
	msg := osc.NewMessage(addrPrefix + "/" + ev.Kind.String())
	msg.Append(int32(ev.Seq))
	if ev.Kind == store.KindButton {
		msg.Append(int32(ev.Code.X), int32(ev.Code.Y))
	}
	return msg
}
