// Package cuckoo implements a cuckoo filter: a compact, fixed-capacity
// set-membership structure that stores fingerprints instead of
// key/value pairs, trading a small false-positive rate for constant
// space per element.
package cuckoo

import (
	"fmt"
	"math/rand"

	"github.com/cespare/xxhash/v2"
	"github.com/cfgdb/engine/fingerprint"
)

// defaultBucketCap is the number of fingerprint slots per bucket.
const defaultBucketCap = 8

// defaultLoadFactor is the fraction of capacity the filter is expected
// to hold comfortably before inserts start failing.
const defaultLoadFactor = 0.8

// evictionBudget bounds the number of cuckoo-eviction hops attempted
// before an insert gives up and reports Full.
const evictionBudget = 512

// baseDegree is the degree of the Rabin fingerprint's base polynomial.
const baseDegree = 53

// InsertOutcome classifies the result of an Insert call.
type InsertOutcome int

const (
	// Done reports a successful insert at the index.
	Done InsertOutcome = iota
	// Full reports that both candidate buckets were full and the
	// eviction budget was exhausted.
	Full
	// Fail reports an internal inconsistency (an out-of-range bucket
	// index); invariants should make this unreachable.
	Fail
)

// InsertResult is the outcome of an Insert call, with the landing
// index when Outcome is Done and a reason when Outcome is Fail.
type InsertResult struct {
	Outcome InsertOutcome
	Index   int
	Reason  string
}

// bucket is a fixed-capacity slot group holding optional fingerprints,
// filled at the counter and evicted from a random occupied slot.
type bucket struct {
	slots   []int64
	counter int
}

func newBucket(cap int) *bucket {
	return &bucket{slots: make([]int64, cap)}
}

func (b *bucket) isFull() bool  { return b.counter == len(b.slots) }
func (b *bucket) isEmpty() bool { return b.counter == 0 }

func (b *bucket) contains(fp int64) bool {
	for i := 0; i < b.counter; i++ {
		if b.slots[i] == fp {
			return true
		}
	}
	return false
}

// insert fills the next free slot unless fp is already present.
func (b *bucket) insert(fp int64) {
	if b.contains(fp) {
		return
	}
	b.slots[b.counter] = fp
	b.counter++
}

// swapRandom evicts the occupant of a random occupied slot in
// [0, counter) and replaces it with fp, returning the evictee.
func (b *bucket) swapRandom(r *rand.Rand, fp int64) int64 {
	idx := r.Intn(b.counter)
	old := b.slots[idx]
	b.slots[idx] = fp
	return old
}

// table is a power-of-two-sized array of buckets.
type table struct {
	buckets   []*bucket
	bucketCap int
}

func newTable(cap, bucketCap int) *table {
	buckets := make([]*bucket, cap)
	for i := range buckets {
		buckets[i] = newBucket(bucketCap)
	}
	return &table{buckets: buckets, bucketCap: bucketCap}
}

func (t *table) len() int { return len(t.buckets) }

func (t *table) contains(idx int, fp int64) bool {
	if idx < 0 || idx >= len(t.buckets) {
		return false
	}
	return t.buckets[idx].contains(fp)
}

func (t *table) insert(idx int, fp int64) InsertResult {
	if idx < 0 || idx >= len(t.buckets) {
		return InsertResult{Outcome: Fail, Reason: fmt.Sprintf("cuckoo: idx %d out of range [0,%d)", idx, len(t.buckets))}
	}
	b := t.buckets[idx]
	if b.isFull() {
		return InsertResult{Outcome: Full}
	}
	b.insert(fp)
	return InsertResult{Outcome: Done, Index: idx}
}

func (t *table) swapRandom(r *rand.Rand, idx int, fp int64) int64 {
	return t.buckets[idx].swapRandom(r, fp)
}

// Encodable is the byte-representation contract a Filter's elements
// must satisfy, matching the engine's encode convention.
type Encodable interface {
	Bytes() []byte
}

// Filter is a cuckoo filter over items of type T.
type Filter[T Encodable] struct {
	table      *table
	fpr        *fingerprint.RabinFingerprint
	loadFactor float64
	rng        *rand.Rand
}

// Option configures a Filter at construction time.
type Option[T Encodable] func(*Filter[T])

// WithBucketCapacity overrides the per-bucket slot count (default 8).
func WithBucketCapacity[T Encodable](bc int) Option[T] {
	return func(f *Filter[T]) {
		f.table = newTable(f.table.len(), bc)
	}
}

// WithLoadFactor overrides the nominal load factor (default 0.8).
func WithLoadFactor[T Encodable](lf float64) Option[T] {
	return func(f *Filter[T]) { f.loadFactor = lf }
}

// WithRand overrides the source of randomness used for tie-breaking
// and eviction; defaults to a fresh rand.Rand.
func WithRand[T Encodable](r *rand.Rand) Option[T] {
	return func(f *Filter[T]) { f.rng = r }
}

// New constructs a Filter with the given table capacity, which must
// be a power of two.
func New[T Encodable](cap int, opts ...Option[T]) *Filter[T] {
	f := &Filter[T]{
		table:      newTable(cap, defaultBucketCap),
		fpr:        fingerprint.NewDefaultRabinFingerprint(rand.New(rand.NewSource(1))),
		loadFactor: defaultLoadFactor,
		rng:        rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Cap returns the filter's total slot capacity (buckets * bucket capacity).
func (f *Filter[T]) Cap() int {
	return f.table.len() * f.table.bucketCap
}

func (f *Filter[T]) bucketIndex(hash int64) int {
	return int(hash & int64(f.table.len()-1))
}

func findHash(bytes []byte) int64 {
	return int64(xxhash.Sum64(bytes))
}

// Insert adds x to the filter: its fingerprint goes into the first of
// its two candidate buckets that has room; if both are full, occupants
// of a randomly chosen candidate are evicted to their partner buckets
// for up to evictionBudget hops. If the budget runs out, every hop is
// undone, so the table holds what it held before, and Full is returned.
func (f *Filter[T]) Insert(x T) InsertResult {
	fpr := f.fpr.Calculate(x.Bytes())
	hash := findHash(x.Bytes())

	i1 := f.bucketIndex(hash)
	if r := f.table.insert(i1, fpr); r.Outcome != Full {
		return r
	}

	i2 := f.bucketIndex(int64(i1) ^ fpr)
	if r := f.table.insert(i2, fpr); r.Outcome != Full {
		return r
	}

	idx := i1
	if f.rng.Intn(2) == 1 {
		idx = i2
	}
	v := fpr

	type hop struct {
		idx             int
		placed, evicted int64
	}
	hops := make([]hop, 0, evictionBudget)

	for i := 0; i < evictionBudget; i++ {
		evicted := f.table.swapRandom(f.rng, idx, v)
		hops = append(hops, hop{idx: idx, placed: v, evicted: evicted})
		nextIdx := f.bucketIndex(evicted ^ int64(idx))

		r := f.table.insert(nextIdx, evicted)
		if r.Outcome != Full {
			return r
		}

		v = evicted
		idx = nextIdx
	}

	for i := len(hops) - 1; i >= 0; i-- {
		slots := f.table.buckets[hops[i].idx].slots
		for j := range slots {
			if slots[j] == hops[i].placed {
				slots[j] = hops[i].evicted
				break
			}
		}
	}

	return InsertResult{Outcome: Full}
}

// Contains reports whether x may be a member. False positives are
// possible; false negatives are not, under single-filter semantics.
func (f *Filter[T]) Contains(x T) bool {
	fpr := f.fpr.Calculate(x.Bytes())
	hash := findHash(x.Bytes())

	i1 := f.bucketIndex(hash)
	if f.table.contains(i1, fpr) {
		return true
	}

	i2 := f.bucketIndex(int64(i1) ^ fpr)
	return f.table.contains(i2, fpr)
}
