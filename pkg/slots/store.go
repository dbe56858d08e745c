package slots

import (
	"sync"

	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/layout"
)

// Count is the fixed number of slots in a store.
const Count = layout.MaxSlots

// State is the content state of a slot. A slot is in exactly one state.
type State int

const (
	Empty State = iota
	Loading
	Ready
	Unsupported
)

var stateNames = [...]string{
	Empty:       "empty",
	Loading:     "loading",
	Ready:       "ready",
	Unsupported: "unsupported",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown slot state %q", text)
}

// Ticket identifies one load attempt. A result is installed only into the
// slot that still holds its ticket, wherever a move has put it.
type Ticket uint64

// Slot is an immutable view of one slot. Construct slots only through a
// [Store]; the zero value is an empty slot.
type Slot struct {
	state    State
	progress float64
	source   *Source
	name     string
	ticket   Ticket
}

// State returns the content state.
func (s Slot) State() State { return s.state }

// Progress returns the load progress in [0, 100]. It is 0 unless the slot
// is loading.
func (s Slot) Progress() float64 {
	if s.state != Loading {
		return 0
	}
	return s.progress
}

// Source returns the bitmap source of a ready slot, or nil.
func (s Slot) Source() *Source {
	if s.state != Ready {
		return nil
	}
	return s.source
}

// Name returns the file name of the current or last load attempt.
func (s Slot) Name() string { return s.name }

// Change is delivered to observers after every mutation.
type Change struct {
	Version uint64
	Slots   [Count]Slot
	Layout  layout.Kind
}

// Store is an ordered, fixed-size collection of slots plus the layout
// selection. It is safe for concurrent use; every mutation is applied to the
// latest sequence under one lock.
type Store struct {
	mu        sync.Mutex
	slots     [Count]Slot
	kind      layout.Kind
	next      Ticket
	version   uint64
	observers map[int]func(Change)
	nextObs   int
}

// NewStore returns an empty store using kind, or [layout.Grid] if kind is empty.
func NewStore(kind layout.Kind) *Store {
	if kind == "" {
		kind = layout.Grid
	}
	return &Store{kind: kind, observers: make(map[int]func(Change))}
}

// Snapshot returns a copy of all slots.
func (s *Store) Snapshot() [Count]Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots
}

// Slot returns the slot at index.
func (s *Store) Slot(index int) (Slot, error) {
	if err := errors.ValidateSlotIndex(index, Count); err != nil {
		return Slot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[index], nil
}

// Version returns a counter that increases with every mutation.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Layout returns the current layout selection.
func (s *Store) Layout() layout.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kind
}

// SetLayout changes the layout selection.
func (s *Store) SetLayout(kind layout.Kind) error {
	if !layout.ValidKinds[kind] {
		return errors.New(errors.ErrCodeInvalidLayout, "unknown layout %q", kind)
	}
	s.mutate(func() bool {
		if s.kind == kind {
			return false
		}
		s.kind = kind
		return true
	})
	return nil
}

// Ready returns the ready slots in store order.
func (s *Store) Ready() []Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Slot
	for _, sl := range s.slots {
		if sl.state == Ready {
			out = append(out, sl)
		}
	}
	return out
}

// Begin starts a load of name into index, overwriting whatever the slot
// held. Results of earlier attempts on the slot are discarded from now on.
// The returned flag reports whether the slot was occupied.
func (s *Store) Begin(index int, name string) (Ticket, bool, error) {
	if err := errors.ValidateSlotIndex(index, Count); err != nil {
		return 0, false, err
	}
	var (
		t        Ticket
		occupied bool
	)
	s.mutate(func() bool {
		s.next++
		t = s.next
		occupied = s.slots[index].state != Empty
		s.slots[index] = Slot{state: Loading, name: name, ticket: t}
		return true
	})
	return t, occupied, nil
}

// Progress raises the progress of the load identified by t. Progress is
// clamped to [0, 100] and never decreases. It reports whether the load is
// still current.
func (s *Store) Progress(t Ticket, p float64) bool {
	p = min(max(p, 0), 100)
	current := false
	s.mutate(func() bool {
		i := s.find(t)
		if i < 0 {
			return false
		}
		current = true
		if p <= s.slots[i].progress {
			return false
		}
		s.slots[i].progress = p
		return true
	})
	return current
}

// Resolve installs src into the slot still holding t. A stale result is
// dropped and Resolve reports false.
func (s *Store) Resolve(t Ticket, src *Source) bool {
	return s.finish(t, Slot{state: Ready, source: src})
}

// MarkUnsupported ends the load identified by t in the terminal
// unsupported state.
func (s *Store) MarkUnsupported(t Ticket) bool {
	return s.finish(t, Slot{state: Unsupported})
}

// Abandon ends the load identified by t, leaving the slot empty.
func (s *Store) Abandon(t Ticket) bool {
	return s.finish(t, Slot{})
}

func (s *Store) finish(t Ticket, next Slot) bool {
	ok := false
	s.mutate(func() bool {
		i := s.find(t)
		if i < 0 {
			return false
		}
		if next.state != Empty {
			next.name = s.slots[i].name
		}
		s.slots[i] = next
		ok = true
		return true
	})
	return ok
}

// Clear empties the slot at index, discarding any in-flight load for it.
func (s *Store) Clear(index int) error {
	if err := errors.ValidateSlotIndex(index, Count); err != nil {
		return err
	}
	s.mutate(func() bool {
		if s.slots[index] == (Slot{}) {
			return false
		}
		s.slots[index] = Slot{}
		return true
	})
	return nil
}

// Reset empties every slot. The layout selection is kept.
func (s *Store) Reset() {
	s.mutate(func() bool {
		s.slots = [Count]Slot{}
		return true
	})
}

// Move removes the slot at from and reinserts it at to, shifting the slots
// in between. In-flight loads follow their slot.
func (s *Store) Move(from, to int) error {
	if err := errors.ValidateSlotIndex(from, Count); err != nil {
		return err
	}
	if err := errors.ValidateSlotIndex(to, Count); err != nil {
		return err
	}
	s.mutate(func() bool {
		if from == to {
			return false
		}
		moved := s.slots[from]
		if from < to {
			copy(s.slots[from:to], s.slots[from+1:to+1])
		} else {
			copy(s.slots[to+1:from+1], s.slots[to:from])
		}
		s.slots[to] = moved
		return true
	})
	return nil
}

// Subscribe registers fn to receive every change. Observers run on the
// mutating goroutine after the lock is released and must not block. The
// returned function unregisters fn.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// find returns the index of the loading slot holding t, or -1.
func (s *Store) find(t Ticket) int {
	if t == 0 {
		return -1
	}
	for i, sl := range s.slots {
		if sl.ticket == t && sl.state == Loading {
			return i
		}
	}
	return -1
}

// mutate runs fn under the lock and notifies observers if fn reports a change.
func (s *Store) mutate(fn func() bool) {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	change := Change{Version: s.version, Slots: s.slots, Layout: s.kind}
	observers := make([]func(Change), 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(change)
	}
}
