package store

import "github.com/xrbridge/xrbridge/pkg/types"

// Kind identifies one of the three sequenced event streams.
type Kind int

const (
	KindButton Kind = iota
	KindHaptic
	KindCue
)

// String returns the metric/log label for k.
func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindHaptic:
		return "haptic"
	case KindCue:
		return "cue"
	default:
		return "unknown"
	}
}

// Sequences is a consistent snapshot of the three event counters.
type Sequences struct {
	Button uint64
	Haptic uint64
	Cue    uint64
}

// Event describes one arm call: which counter advanced, its new value, and
// the code pair in effect right after the call.
type Event struct {
	Kind Kind
	Seq  uint64
	Code types.CodePair
}

// Sequences returns the current value of every counter under one read lock.
func (s *Store) Sequences() Sequences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// EventState returns the counters together with the code pair that a press
// notification built from them should carry.
func (s *Store) EventState() (Sequences, types.CodePair) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, s.code
}

// ArmButton advances the button counter by one. When code is non-nil the code
// pair is replaced in the same critical section, before the increment.
func (s *Store) ArmButton(code *types.CodePair) Event {
	s.mu.Lock()
	if code != nil {
		s.code = *code
	}
	s.seq.Button++
	ev := Event{Kind: KindButton, Seq: s.seq.Button, Code: s.code}
	s.mu.Unlock()

	s.notify(ev)
	return ev
}

// ArmHaptic advances the haptic counter by one.
func (s *Store) ArmHaptic() Event {
	s.mu.Lock()
	s.seq.Haptic++
	ev := Event{Kind: KindHaptic, Seq: s.seq.Haptic, Code: s.code}
	s.mu.Unlock()

	s.notify(ev)
	return ev
}

// ArmCue advances the cue-toggle counter by one.
func (s *Store) ArmCue() Event {
	s.mu.Lock()
	s.seq.Cue++
	ev := Event{Kind: KindCue, Seq: s.seq.Cue, Code: s.code}
	s.mu.Unlock()

	s.notify(ev)
	return ev
}

// OnArm registers fn to be called after every arm call, outside the state
// lock. Observers run synchronously on the arming goroutine and must not block.
func (s *Store) OnArm(fn func(Event)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *Store) notify(ev Event) {
	s.obsMu.RLock()
	obs := s.observers
	s.obsMu.RUnlock()
	for _, fn := range obs {
		fn(ev)
	}
}
