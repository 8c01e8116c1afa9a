package ensemble

import (
	"fmt"

	"github.com/roach88/cascade/internal/phys"
)

// DefaultCapacity is the initial arena size used when no option overrides it.
const DefaultCapacity = 128

// tombstoneID marks a freed slot. Real record IDs are always >= 0.
const tombstoneID = -1

// Handle is a weak reference to a record in a Store: the slot it occupied
// and the identity it carried when the handle was captured. Handles are
// plain values, cheap to copy, and never keep a record alive.
type Handle struct {
	Slot      int
	ID        int64
	ProcessID int64
}

func (h Handle) String() string {
	return fmt.Sprintf("slot=%d id=%d proc=%d", h.Slot, h.ID, h.ProcessID)
}

// Store is the arena of particle records for one ensemble. It is not safe
// for concurrent use; the engine drives it from a single goroutine.
type Store struct {
	data     []phys.Particle
	used     int   // slots handed out so far, live or tombstoned
	holes    []int // tombstoned slots, reused most recent first
	nextID   int64
	nextProc int64
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithCapacity sets the initial arena capacity.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.data = make([]phys.Particle, n)
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{data: make([]phys.Particle, DefaultCapacity)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert copies p into the store, assigning the next sequential record ID
// and a fresh process ID. Fields ID and ProcessID of the argument are
// ignored. The returned handle is valid until the record is consumed.
func (s *Store) Insert(p phys.Particle) Handle {
	id := s.nextID
	s.nextID++
	proc := s.nextProc
	s.nextProc++
	return s.insertAs(p, id, proc)
}

func (s *Store) insertAs(p phys.Particle, id, proc int64) Handle {
	slot := s.alloc()
	p.ID = id
	p.ProcessID = proc
	s.data[slot] = p
	return Handle{Slot: slot, ID: id, ProcessID: proc}
}

// alloc returns the slot for the next record: the most recently freed hole
// if one exists, otherwise the next fresh slot, growing the arena when the
// used prefix reaches capacity. Growth never moves existing slots' indices.
func (s *Store) alloc() int {
	if n := len(s.holes); n > 0 {
		slot := s.holes[n-1]
		s.holes = s.holes[:n-1]
		return slot
	}
	if s.used == len(s.data) {
		grown := make([]phys.Particle, 2*len(s.data))
		copy(grown, s.data)
		s.data = grown
	}
	slot := s.used
	s.used++
	return slot
}

// Create inserts a blank, fully formed record of the given species and
// returns its handle. Kinematics start zeroed; callers sample them
// afterwards, typically through Update.
func (s *Store) Create(code phys.PDG) Handle {
	return s.Insert(phys.Particle{PDG: code, XSecScale: 1})
}

// CreateN inserts n blank records of the given species.
func (s *Store) CreateN(n int, code phys.PDG) []Handle {
	out := make([]Handle, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, s.Create(code))
	}
	return out
}

// IsValid reports whether h still refers to a live record: the slot must be
// in the used range and carry the same record and process identity that the
// handle captured.
func (s *Store) IsValid(h Handle) bool {
	if h.Slot < 0 || h.Slot >= s.used || h.ID < 0 {
		return false
	}
	r := &s.data[h.Slot]
	return r.ID == h.ID && r.ProcessID == h.ProcessID
}

// Get returns a copy of the record h refers to, or false if h is stale.
func (s *Store) Get(h Handle) (phys.Particle, bool) {
	if !s.IsValid(h) {
		return phys.Particle{}, false
	}
	return s.data[h.Slot], true
}

// Remove tombstones the record h refers to and frees its slot for reuse.
// Removing through a stale handle returns ErrStaleHandle.
func (s *Store) Remove(h Handle) error {
	if !s.IsValid(h) {
		return fmt.Errorf("remove %v: %w", h, ErrStaleHandle)
	}
	s.data[h.Slot] = phys.Particle{ID: tombstoneID}
	s.holes = append(s.holes, h.Slot)
	return nil
}

// Replace is the commit operation for a resolved process: it removes every
// incoming record and inserts the outgoing ones, all stamped with a single
// fresh process ID. If any incoming handle is stale, nothing changes and
// ErrStaleHandle is returned. The returned handles are in add order.
func (s *Store) Replace(remove []Handle, add []phys.Particle) ([]Handle, error) {
	for _, h := range remove {
		if !s.IsValid(h) {
			return nil, fmt.Errorf("replace %v: %w", h, ErrStaleHandle)
		}
	}
	proc := s.nextProc
	s.nextProc++
	for _, h := range remove {
		s.data[h.Slot] = phys.Particle{ID: tombstoneID}
		s.holes = append(s.holes, h.Slot)
	}
	out := make([]Handle, 0, len(add))
	for _, p := range add {
		id := s.nextID
		s.nextID++
		out = append(out, s.insertAs(p, id, proc))
	}
	return out, nil
}

// Len returns the number of live records.
func (s *Store) Len() int {
	return s.used - len(s.holes)
}

// IsEmpty reports whether no live records remain.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Holes returns the number of tombstoned slots awaiting reuse.
func (s *Store) Holes() int {
	return len(s.holes)
}

// Capacity returns the current arena size.
func (s *Store) Capacity() int {
	return len(s.data)
}

// ForEach calls fn for every live record in slot order with a handle and a
// copy of the record. Iteration stops early when fn returns false. The
// store must not be mutated from inside fn.
func (s *Store) ForEach(fn func(Handle, phys.Particle) bool) {
	for slot := 0; slot < s.used; slot++ {
		r := s.data[slot]
		if r.ID == tombstoneID {
			continue
		}
		h := Handle{Slot: slot, ID: r.ID, ProcessID: r.ProcessID}
		if !fn(h, r) {
			return
		}
	}
}

// Handles returns handles to all live records in slot order.
func (s *Store) Handles() []Handle {
	out := make([]Handle, 0, s.Len())
	s.ForEach(func(h Handle, _ phys.Particle) bool {
		out = append(out, h)
		return true
	})
	return out
}

// Snapshot returns a copy of all live records in slot order. Tombstoned
// slots never appear in the result.
func (s *Store) Snapshot() []phys.Particle {
	if len(s.holes) == 0 {
		out := make([]phys.Particle, s.used)
		copy(out, s.data[:s.used])
		return out
	}
	out := make([]phys.Particle, 0, s.Len())
	s.ForEach(func(_ Handle, p phys.Particle) bool {
		out = append(out, p)
		return true
	})
	return out
}

// Update applies fn to every live record in slot order, letting it modify
// kinematic and formation fields in place. Identity fields are restored
// after each call, so Update never changes which handles are valid. This
// is the propagation path: it must not run while candidate handles from
// the current tick are still pending.
func (s *Store) Update(fn func(*phys.Particle)) {
	for slot := 0; slot < s.used; slot++ {
		r := &s.data[slot]
		if r.ID == tombstoneID {
			continue
		}
		id, proc := r.ID, r.ProcessID
		fn(r)
		r.ID, r.ProcessID = id, proc
	}
}

// Front returns the first live record in slot order.
func (s *Store) Front() (phys.Particle, bool) {
	var front phys.Particle
	found := false
	s.ForEach(func(_ Handle, p phys.Particle) bool {
		front = p
		found = true
		return false
	})
	return front, found
}

// Time returns the computational-frame time of the ensemble, taken from the
// first live record. An empty store reports zero.
func (s *Store) Time() float64 {
	front, ok := s.Front()
	if !ok {
		return 0
	}
	return front.Position[0]
}

// Compact moves live records into a contiguous prefix, preserving slot
// order and record identity, and clears the freelist. Records change slots,
// so handles captured before Compact must be discarded. The engine runs
// this between ticks, when no handles are outstanding.
func (s *Store) Compact() {
	if len(s.holes) == 0 {
		return
	}
	w := 0
	for r := 0; r < s.used; r++ {
		if s.data[r].ID == tombstoneID {
			continue
		}
		if w != r {
			s.data[w] = s.data[r]
		}
		w++
	}
	for i := w; i < s.used; i++ {
		s.data[i] = phys.Particle{}
	}
	s.used = w
	s.holes = s.holes[:0]
}

// Reset clears the store for the next event: all records are dropped and
// the ID and process counters restart from zero. Capacity is retained.
func (s *Store) Reset() {
	for i := 0; i < s.used; i++ {
		s.data[i] = phys.Particle{}
	}
	s.used = 0
	s.holes = s.holes[:0]
	s.nextID = 0
	s.nextProc = 0
}
