package ws

import (
	"sync"

	"github.com/xrbridge/xrbridge/server/internal/store"
)

// deliveryOrder is the fixed order in which counters are checked.
var deliveryOrder = [...]store.Kind{store.KindButton, store.KindHaptic, store.KindCue}

// watermark is one session's record of the last counter values it delivered.
// Both pumps consult it, so it is guarded by its own mutex.
type watermark struct {
	mu   sync.Mutex
	seen store.Sequences
}

func newWatermark(cur store.Sequences) *watermark {
	return &watermark{seen: cur}
}

// advance returns, in delivery order, the kinds whose counter in cur is ahead
// of the watermark, and moves the watermark up to cur for each of them. A
// counter that jumped by several steps yields a single kind.
func (w *watermark) advance(cur store.Sequences) []store.Kind {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []store.Kind
	for _, k := range deliveryOrder {
		seen, now := field(&w.seen, k), value(cur, k)
		if now > *seen {
			*seen = now
			out = append(out, k)
		}
	}
	return out
}

func field(s *store.Sequences, k store.Kind) *uint64 {
	switch k {
	case store.KindButton:
		return &s.Button
	case store.KindHaptic:
		return &s.Haptic
	default:
		return &s.Cue
	}
}

func value(s store.Sequences, k store.Kind) uint64 {
	return *field(&s, k)
}
