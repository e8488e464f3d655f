// Package memtable composes a skip list and a cuckoo filter into the
// engine's in-memory write buffer: every write lands in both
// structures, reads consult the filter first to short-circuit
// negative lookups, and the table reports itself Full once either a
// byte or item limit is crossed so the caller can drain it.
package memtable

import (
	"cmp"
	"errors"
	"iter"
	"math/rand"

	"github.com/cfgdb/engine/cuckoo"
	"github.com/cfgdb/engine/skiplist"
)

// defaultMaxItems and defaultMaxBytes bound a memtable when no option
// overrides them.
const (
	defaultMaxItems = 1 << 20
	defaultMaxBytes = 64 << 20
)

// defaultFilterCap is the initial cuckoo filter table capacity (must
// stay a power of two across doublings).
const defaultFilterCap = 1 << 10

// ErrFull is returned by Add once the memtable has crossed its item
// or byte limit; the caller is expected to drain it to durable
// storage and start a fresh one.
var ErrFull = errors.New("memtable: full")

// Sized lets a value report the number of bytes it occupies, so the
// memtable can track its byte budget.
type Sized interface {
	SizeInBytes() uint32
}

// Keyable is the constraint a memtable's key type must satisfy: it
// must order (for the skip list). The bytes the cuckoo filter's
// fingerprint and hash run over come from the encodeKey function
// passed to New, not from the key type.
type Keyable interface {
	cmp.Ordered
}

// keyBytes wraps a key so it can be passed through the cuckoo
// filter's Encodable constraint without the filter depending on the
// engine's own encoding package.
type keyBytes[K Keyable] struct {
	key K
	enc func(K) []byte
}

func (k keyBytes[K]) Bytes() []byte { return k.enc(k.key) }

// MemValue wraps a stored value with the millisecond timestamp of its
// last write.
type MemValue[V any] struct {
	Value      V
	UpdateTime uint64
}

// Memtable is the skip-list + cuckoo-filter composition described in
// §4.7: inserts land in both structures, lookups consult the filter
// before touching the ordered map.
type Memtable[K Keyable, V Sized] struct {
	data      *skiplist.SkipList[K, MemValue[V]]
	filter    *cuckoo.Filter[keyBytes[K]]
	encodeKey func(K) []byte
	maxItems  int
	maxBytes  uint64
	items     int
	bytes     uint64
}

// Option configures a Memtable at construction time.
type Option[K Keyable, V Sized] func(*Memtable[K, V])

// WithMaxItems overrides the item-count limit that triggers Full.
func WithMaxItems[K Keyable, V Sized](n int) Option[K, V] {
	return func(m *Memtable[K, V]) { m.maxItems = n }
}

// WithMaxBytes overrides the byte-size limit that triggers Full.
func WithMaxBytes[K Keyable, V Sized](n uint64) Option[K, V] {
	return func(m *Memtable[K, V]) { m.maxBytes = n }
}

// New builds an empty Memtable. encodeKey produces the byte
// representation of a key, used to drive the cuckoo filter's
// fingerprint and secondary hash.
func New[K Keyable, V Sized](encodeKey func(K) []byte, rng *rand.Rand, opts ...Option[K, V]) *Memtable[K, V] {
	m := &Memtable[K, V]{
		data:      skiplist.New[K, MemValue[V]](rng),
		filter:    cuckoo.New[keyBytes[K]](defaultFilterCap, cuckoo.WithRand[keyBytes[K]](rng)),
		encodeKey: encodeKey,
		maxItems:  defaultMaxItems,
		maxBytes:  defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memtable[K, V]) wrap(key K) keyBytes[K] {
	return keyBytes[K]{key: key, enc: m.encodeKey}
}

// Add inserts (key, val) with updateTimeMs as its write timestamp,
// first checking whether doing so would cross the item or byte limit.
// If it would, Add returns ErrFull WITHOUT applying the mutation — the
// caller must drain the table and retry on a fresh one.
func (m *Memtable[K, V]) Add(key K, val V, updateTimeMs uint64) error {
	existing, existed := m.data.Search(key)

	var byteDelta int64
	if existed {
		byteDelta = int64(val.SizeInBytes()) - int64(existing.Value.SizeInBytes())
	} else {
		byteDelta = int64(len(m.encodeKey(key))) + int64(val.SizeInBytes())
	}

	prospectiveItems := m.items
	if !existed {
		prospectiveItems++
	}
	prospectiveBytes := int64(m.bytes) + byteDelta

	if prospectiveItems > m.maxItems || prospectiveBytes > int64(m.maxBytes) {
		return ErrFull
	}

	m.filter.Insert(m.wrap(key))
	m.data.Insert(key, MemValue[V]{Value: val, UpdateTime: updateTimeMs})
	m.items = prospectiveItems
	m.bytes = uint64(prospectiveBytes)
	return nil
}

// Find looks up key: the filter is consulted first, and only on a
// positive result does the skip list get searched.
func (m *Memtable[K, V]) Find(key K) (V, bool) {
	var zero V
	if !m.filter.Contains(m.wrap(key)) {
		return zero, false
	}
	mv, ok := m.data.Search(key)
	if !ok {
		return zero, false
	}
	return mv.Value, true
}

// Remove deletes key from the skip list. The cuckoo filter is not
// shrunk — per its contract, it may still report false positives for
// removed keys, which Find resolves by falling through to the
// (now-empty) skip-list lookup.
func (m *Memtable[K, V]) Remove(key K) (V, bool) {
	mv, ok := m.data.Delete(key)
	if !ok {
		var zero V
		return zero, false
	}
	m.items--
	m.bytes -= uint64(len(m.encodeKey(key))) + uint64(mv.Value.SizeInBytes())
	return mv.Value, true
}

// Len returns the number of distinct keys currently stored.
func (m *Memtable[K, V]) Len() int { return m.items }

// Drain yields every (key, value) pair in ascending key order and,
// once every pair has been yielded, resets the table to empty, ready
// for reuse. If the caller stops iterating early, the table is left
// unchanged.
func (m *Memtable[K, V]) Drain() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, mv := range m.data.Iter() {
			if !yield(k, mv.Value) {
				return
			}
		}
		m.data.Clear()
		m.filter = cuckoo.New[keyBytes[K]](defaultFilterCap)
		m.items = 0
		m.bytes = 0
	}
}
