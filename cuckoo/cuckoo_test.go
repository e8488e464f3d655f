package cuckoo

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type strItem string

func (s strItem) Bytes() []byte { return []byte(s) }

func newTestFilter(cap int, opts ...Option[strItem]) *Filter[strItem] {
	opts = append([]Option[strItem]{WithRand[strItem](rand.New(rand.NewSource(1)))}, opts...)
	return New[strItem](cap, opts...)
}

func TestInsertAndContains(t *testing.T) {
	f := newTestFilter(16)

	r := f.Insert(strItem("alpha"))
	require.Equal(t, Done, r.Outcome)

	require.True(t, f.Contains(strItem("alpha")))
	require.False(t, f.Contains(strItem("beta")))
}

func TestDuplicateInsertDoesNotGrowCount(t *testing.T) {
	f := newTestFilter(16, WithBucketCapacity[strItem](2))

	require.Equal(t, Done, f.Insert(strItem("alpha")).Outcome)
	require.Equal(t, Done, f.Insert(strItem("alpha")).Outcome)

	total := 0
	for _, b := range f.table.buckets {
		total += b.counter
	}
	require.Equal(t, 1, total)

	require.True(t, f.Contains(strItem("alpha")))
}

func TestInsertFillsBucketThenReportsFull(t *testing.T) {
	f := newTestFilter(1, WithBucketCapacity[strItem](4))

	for i := 0; i < 4; i++ {
		r := f.Insert(strItem(fmt.Sprintf("item-%d", i)))
		require.NotEqual(t, Full, r.Outcome)
	}

	r := f.Insert(strItem("one-too-many"))
	require.Equal(t, Full, r.Outcome)
}

func TestCapReportsBucketsTimesBucketCapacity(t *testing.T) {
	f := newTestFilter(4, WithBucketCapacity[strItem](8))
	require.Equal(t, 32, f.Cap())
}

func TestContainsFalseForNeverInserted(t *testing.T) {
	f := newTestFilter(16)
	require.False(t, f.Contains(strItem("ghost")))
}

// TestEvictionChainPreservesEarlierElements saturates a small,
// multi-bucket table with a single-slot bucket capacity, forcing
// every insert past the first few to chase an eviction chain through
// swapRandom and partner indices. If the evicted occupant of a bucket
// is ever discarded instead of re-homed at its partner index, an
// earlier element stops being found — a false negative the filter's
// contract forbids.
func TestEvictionChainPreservesEarlierElements(t *testing.T) {
	f := newTestFilter(8, WithBucketCapacity[strItem](1))

	var inserted []strItem
	for i := 0; i < 20; i++ {
		item := strItem(fmt.Sprintf("key-%02d", i))
		r := f.Insert(item)
		if r.Outcome == Done {
			inserted = append(inserted, item)
		}
	}

	require.NotEmpty(t, inserted)
	for _, item := range inserted {
		require.Truef(t, f.Contains(item), "lost %q to an eviction chain", item)
	}
}

// TestPartnerIndexIsSymmetric checks invariant 13: an element's two
// candidate buckets are reachable from each other via the same XOR
// relation, i1 ^ fp == i2 and i2 ^ fp == i1.
func TestPartnerIndexIsSymmetric(t *testing.T) {
	f := newTestFilter(16)
	item := strItem("partner-check")

	fpr := f.fpr.Calculate(item.Bytes())
	hash := findHash(item.Bytes())
	i1 := f.bucketIndex(hash)
	i2 := f.bucketIndex(int64(i1) ^ fpr)

	require.Equal(t, i1, f.bucketIndex(int64(i2)^fpr))
}
