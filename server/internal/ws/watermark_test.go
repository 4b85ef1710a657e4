package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xrbridge/xrbridge/server/internal/store"
)

func TestWatermark_NoChange(t *testing.T) {
	w := newWatermark(store.Sequences{Button: 2, Haptic: 1})
	assert.Empty(t, w.advance(store.Sequences{Button: 2, Haptic: 1}))
}

func TestWatermark_CollapsesJumps(t *testing.T) {
	w := newWatermark(store.Sequences{Button: 4})

	got := w.advance(store.Sequences{Button: 9})
	assert.Equal(t, []store.Kind{store.KindButton}, got)
	assert.Equal(t, uint64(9), w.seen.Button)

	assert.Empty(t, w.advance(store.Sequences{Button: 9}))
}

func TestWatermark_FixedOrder(t *testing.T) {
	w := newWatermark(store.Sequences{})
	got := w.advance(store.Sequences{Button: 1, Haptic: 1, Cue: 1})
	assert.Equal(t, []store.Kind{store.KindButton, store.KindHaptic, store.KindCue}, got)
}

func TestWatermark_OnlyAdvancedKinds(t *testing.T) {
	w := newWatermark(store.Sequences{Button: 1, Haptic: 1, Cue: 1})
	got := w.advance(store.Sequences{Button: 1, Haptic: 1, Cue: 3})
	assert.Equal(t, []store.Kind{store.KindCue}, got)
}

func TestWatermark_StaleSnapshotNeverRegresses(t *testing.T) {
	w := newWatermark(store.Sequences{})
	w.advance(store.Sequences{Haptic: 5})

	// An older snapshot read by the other pump must not re-deliver or lower the mark.
	assert.Empty(t, w.advance(store.Sequences{Haptic: 4}))
	assert.Equal(t, uint64(5), w.seen.Haptic)
}

func TestWatermark_ConcurrentAdvanceDeliversOnce(t *testing.T) {
	w := newWatermark(store.Sequences{})
	cur := store.Sequences{Button: 1}

	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(w.advance(cur))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
}
