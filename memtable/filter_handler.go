package memtable

import (
	"errors"
	"math/rand"

	"github.com/cfgdb/engine/cuckoo"
)

// ErrUnknownFilter is returned when a FilterHandler operation targets
// an index that was never initialized.
var ErrUnknownFilter = errors.New("memtable: no filter at index")

// filterSlot holds every filter generation ever allocated at one
// index. Doubling appends a new, larger generation rather than
// replacing the old one, so a key inserted before a doubling remains
// findable afterward.
type filterSlot[T cuckoo.Encodable] struct {
	index       int
	cap         int                 // table capacity of the latest generation
	generations []*cuckoo.Filter[T] // oldest first
}

func newFilterSlot[T cuckoo.Encodable](index, cap int, rng *rand.Rand) *filterSlot[T] {
	return &filterSlot[T]{
		index:       index,
		cap:         cap,
		generations: []*cuckoo.Filter[T]{cuckoo.New[T](cap, cuckoo.WithRand[T](rng))},
	}
}

func (s *filterSlot[T]) latest() *cuckoo.Filter[T] {
	return s.generations[len(s.generations)-1]
}

// grow appends a fresh, doubled-capacity generation on top of the
// existing ones.
func (s *filterSlot[T]) grow(rng *rand.Rand) {
	s.cap *= 2
	s.generations = append(s.generations, cuckoo.New[T](s.cap, cuckoo.WithRand[T](rng)))
}

func (s *filterSlot[T]) contains(key T) bool {
	for _, f := range s.generations {
		if f.Contains(key) {
			return true
		}
	}
	return false
}

// FilterHandler is the scaling collaborator for a cuckoo filter: when
// the filter at some index reports Full, a fresh filter of double the
// capacity is allocated at that index and all further inserts go
// there, but every earlier generation is kept and still consulted by
// ContainsInFilter. This is union semantics: a prior filter stays
// authoritative for the elements it already holds, matching the
// source's Vec::insert-based grow (which shifts the old filter aside
// rather than dropping it) instead of the simpler but lossier
// replace-on-Full that a first reading of "allocate and retry" might
// suggest.
type FilterHandler[T cuckoo.Encodable] struct {
	slots []*filterSlot[T]
	rng   *rand.Rand
}

// NewFilterHandler builds an empty handler. rng seeds every filter it
// creates, including ones created by doubling.
func NewFilterHandler[T cuckoo.Encodable](rng *rand.Rand) *FilterHandler[T] {
	return &FilterHandler[T]{rng: rng}
}

// InitFilter allocates a filter of the given capacity at index.
func (h *FilterHandler[T]) InitFilter(index, cap int) {
	s := newFilterSlot[T](index, cap, h.rng)
	for len(h.slots) <= index {
		h.slots = append(h.slots, nil)
	}
	h.slots[index] = s
}

// AddToFilter inserts key into the filter at index, transparently
// growing and retrying once on Full. Earlier generations at the same
// index are kept, not discarded.
func (h *FilterHandler[T]) AddToFilter(index int, key T) (cuckoo.InsertResult, error) {
	if index < 0 || index >= len(h.slots) || h.slots[index] == nil {
		return cuckoo.InsertResult{}, ErrUnknownFilter
	}

	s := h.slots[index]
	result := s.latest().Insert(key)
	if result.Outcome != cuckoo.Full {
		return result, nil
	}

	s.grow(h.rng)
	return h.AddToFilter(index, key)
}

// ContainsInFilter reports whether index's filter may contain key,
// checking every generation allocated at that index.
func (h *FilterHandler[T]) ContainsInFilter(index int, key T) (bool, error) {
	if index < 0 || index >= len(h.slots) || h.slots[index] == nil {
		return false, ErrUnknownFilter
	}
	return h.slots[index].contains(key), nil
}
