// Package oss implements the Order State Store: the authoritative
// in-process registry of the engine's own orders, partitioned by lifecycle
// state, plus the edge-triggered intent flags the OMS reconciler and
// position executor wait on.
package oss

import (
	"sync"

	"github.com/0xtitan/perpquote/pkg/types"
)

// partition names: they select the partition a Store method acts on and
// double as dashboard labels.
const (
	PartInFlight          = "in_flight"
	PartToBeTriggered     = "to_be_triggered"
	PartInTheBook         = "in_the_book"
	PartToCancel          = "to_cancel"
	PartRecentlyCancelled = "recently_cancelled"
	PartToCreate          = "to_create"
	PartToAmend           = "to_amend"
)

// Flags bundles the four edge-triggered signals the spec names: to_create,
// to_amend, to_cancel (drained by the OMS monitor) and position (drained by
// the Position Executor).
type Flags struct {
	ToCreate *Event
	ToAmend  *Event
	ToCancel *Event
	Position *Event
}

func newFlags() Flags {
	return Flags{
		ToCreate: NewEvent(),
		ToAmend:  NewEvent(),
		ToCancel: NewEvent(),
		Position: NewEvent(),
	}
}

// Store is the Order State Store: each order lives once in an arena keyed
// by ClientOrderID; every lifecycle partition below is a set of ids, not a
// second copy of the order, so a transition is a pure id move (spec §9).
//
// Mutation comes from the User-Event Reducer, the OMS reconciler and the
// Position Executor (which queues take-profit and liquidation orders);
// other readers (quote generator, dashboard) go through Snapshot-style
// accessors. These run on separate goroutines; the mutex below serializes
// each individual Store call, not multi-call sequences.
type Store struct {
	mu sync.Mutex

	arena map[int64]*types.Order

	inFlight          map[int64]struct{}
	toBeTriggered     map[int64]struct{}
	inTheBook         map[int64]struct{}
	toCancel          map[int64]struct{}
	recentlyCancelled map[int64]struct{}
	toCreate          map[int64]struct{}
	toAmend           map[int64]struct{}

	tp map[int64]struct{}
	sl map[int64]struct{}

	Flags Flags
}

// New returns an empty OrderStateStore.
func New() *Store {
	return &Store{
		arena:             make(map[int64]*types.Order),
		inFlight:          make(map[int64]struct{}),
		toBeTriggered:     make(map[int64]struct{}),
		inTheBook:         make(map[int64]struct{}),
		toCancel:          make(map[int64]struct{}),
		recentlyCancelled: make(map[int64]struct{}),
		toCreate:          make(map[int64]struct{}),
		toAmend:           make(map[int64]struct{}),
		tp:                make(map[int64]struct{}),
		sl:                make(map[int64]struct{}),
		Flags:             newFlags(),
	}
}

func partOf(o *Store, set string) map[int64]struct{} {
	switch set {
	case PartInFlight:
		return o.inFlight
	case PartToBeTriggered:
		return o.toBeTriggered
	case PartInTheBook:
		return o.inTheBook
	case PartToCancel:
		return o.toCancel
	case PartRecentlyCancelled:
		return o.recentlyCancelled
	case PartToCreate:
		return o.toCreate
	case PartToAmend:
		return o.toAmend
	default:
		return nil
	}
}

// Put stores (or overwrites) the order in the arena and adds its id to the
// named lifecycle partition. It does not remove the id from any other
// partition: to keep the "at most one partition at a time" invariant,
// callers RemoveFrom the old partition before Put'ing into a new one (or
// use Move).
func (s *Store) Put(part string, o *types.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena[o.ClientOrderID] = o
	if set := partOf(s, part); set != nil {
		set[o.ClientOrderID] = struct{}{}
	}
}

// Move transitions an id from one lifecycle partition to another, updating
// the arena entry's Status in the same critical section. No-op if the id is
// not present in `from`.
func (s *Store) Move(from, to string, id int64, newStatus types.OrderStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromSet := partOf(s, from)
	toSet := partOf(s, to)
	if fromSet == nil || toSet == nil {
		return false
	}
	if _, ok := fromSet[id]; !ok {
		return false
	}
	delete(fromSet, id)
	toSet[id] = struct{}{}
	if o, ok := s.arena[id]; ok {
		o.Status = newStatus
	}
	return true
}

// RemoveFrom deletes an id from a single partition (not the arena).
func (s *Store) RemoveFrom(part string, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set := partOf(s, part); set != nil {
		delete(set, id)
	}
}

// Evict removes an id from every partition, every tag set, and the arena —
// used once an order is fully terminal and no longer needed even for
// diagnostics.
func (s *Store) Evict(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, part := range []string{PartInFlight, PartToBeTriggered, PartInTheBook, PartToCancel, PartRecentlyCancelled, PartToCreate, PartToAmend} {
		delete(partOf(s, part), id)
	}
	delete(s.tp, id)
	delete(s.sl, id)
	delete(s.arena, id)
}

// Get returns the arena entry for an id, if present.
func (s *Store) Get(id int64) (*types.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.arena[id]
	return o, ok
}

// Contains reports whether id is currently in the named partition.
func (s *Store) Contains(part string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := partOf(s, part)
	if set == nil {
		return false
	}
	_, ok := set[id]
	return ok
}

// Snapshot returns the ids currently in a partition, resolved to orders.
func (s *Store) Snapshot(part string) []types.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := partOf(s, part)
	out := make([]types.Order, 0, len(set))
	for id := range set {
		if o, ok := s.arena[id]; ok {
			out = append(out, *o)
		}
	}
	return out
}

// Count returns the size of a partition.
func (s *Store) Count(part string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(partOf(s, part))
}

// TagTP / TagSL mark an id as a take-profit / stop-loss order. These are
// orthogonal subset markers, not lifecycle states (spec §9): an id can be
// simultaneously InTheBook and tagged TP.
func (s *Store) TagTP(id int64) { s.mu.Lock(); s.tp[id] = struct{}{}; s.mu.Unlock() }
func (s *Store) TagSL(id int64) { s.mu.Lock(); s.sl[id] = struct{}{}; s.mu.Unlock() }

// IsTP / IsSL report tag membership.
func (s *Store) IsTP(id int64) bool { s.mu.Lock(); defer s.mu.Unlock(); _, ok := s.tp[id]; return ok }
func (s *Store) IsSL(id int64) bool { s.mu.Lock(); defer s.mu.Unlock(); _, ok := s.sl[id]; return ok }

// UntagTP / UntagSL remove the tag, e.g. once the order is fully terminal.
func (s *Store) UntagTP(id int64) { s.mu.Lock(); delete(s.tp, id); s.mu.Unlock() }
func (s *Store) UntagSL(id int64) { s.mu.Lock(); delete(s.sl, id); s.mu.Unlock() }

// TPIDs returns every id currently tagged TP.
func (s *Store) TPIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.tp))
	for id := range s.tp {
		out = append(out, id)
	}
	return out
}

// OrderError implements spec §4.7.1: remove id from to_create, to_amend,
// to_cancel, the tp/sl tags, and in_flight — but deliberately NOT from
// in_the_book, since the venue's user-event stream is still the source of
// truth for whether that order actually rests.
func (s *Store) OrderError(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.toCreate, id)
	delete(s.toAmend, id)
	delete(s.toCancel, id)
	delete(s.tp, id)
	delete(s.sl, id)
	delete(s.inFlight, id)
}
