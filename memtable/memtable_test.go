package memtable

import (
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type blob struct {
	data []byte
}

func (b blob) SizeInBytes() uint32 { return uint32(len(b.data)) }

func encodeUint64Key(k uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, k)
	return buf
}

func newTestMemtable(opts ...Option[uint64, blob]) *Memtable[uint64, blob] {
	return New[uint64, blob](encodeUint64Key, rand.New(rand.NewSource(1)), opts...)
}

func TestAddAndFind(t *testing.T) {
	m := newTestMemtable()

	err := m.Add(1, blob{data: []byte("hello")}, 1000)
	require.NoError(t, err)

	v, ok := m.Find(1)
	require.True(t, ok)
	require.Equal(t, "hello", string(v.data))

	_, ok = m.Find(2)
	require.False(t, ok)
}

func TestFilterShortCircuitsNegativeLookup(t *testing.T) {
	m := newTestMemtable()
	require.NoError(t, m.Add(1, blob{data: []byte("x")}, 1))

	require.False(t, m.filter.Contains(m.wrap(999)))
	_, ok := m.Find(999)
	require.False(t, ok)
}

func TestRemove(t *testing.T) {
	m := newTestMemtable()
	require.NoError(t, m.Add(1, blob{data: []byte("x")}, 1))

	v, ok := m.Remove(1)
	require.True(t, ok)
	require.Equal(t, "x", string(v.data))

	_, ok = m.Find(1)
	require.False(t, ok)

	_, ok = m.Remove(1)
	require.False(t, ok)
}

func TestItemLimitReportsFullWithoutMutating(t *testing.T) {
	m := newTestMemtable(WithMaxItems[uint64, blob](1))

	require.NoError(t, m.Add(1, blob{data: []byte{1}}, 1))
	err := m.Add(2, blob{data: []byte{2}}, 2)
	require.True(t, errors.Is(err, ErrFull))

	require.Equal(t, 1, m.Len())
	_, ok := m.Find(2)
	require.False(t, ok)
}

func TestByteLimitReportsFullWithoutMutating(t *testing.T) {
	m := newTestMemtable(WithMaxBytes[uint64, blob](4))

	err := m.Add(1, blob{data: []byte{1, 2, 3, 4, 5}}, 1)
	require.True(t, errors.Is(err, ErrFull))

	require.Equal(t, 0, m.Len())
	_, ok := m.Find(1)
	require.False(t, ok)
}

func TestDrainResetsAndYieldsAscending(t *testing.T) {
	m := newTestMemtable()
	require.NoError(t, m.Add(3, blob{data: []byte{3}}, 1))
	require.NoError(t, m.Add(1, blob{data: []byte{1}}, 1))
	require.NoError(t, m.Add(2, blob{data: []byte{2}}, 1))

	var keys []uint64
	for k := range m.Drain() {
		keys = append(keys, k)
	}
	require.Equal(t, []uint64{1, 2, 3}, keys)

	require.Equal(t, 0, m.Len())
	_, ok := m.Find(1)
	require.False(t, ok)
}

func TestLenTracksDistinctKeys(t *testing.T) {
	m := newTestMemtable()
	require.Equal(t, 0, m.Len())

	require.NoError(t, m.Add(1, blob{data: []byte{1}}, 1))
	require.Equal(t, 1, m.Len())

	require.NoError(t, m.Add(1, blob{data: []byte{9}}, 2))
	require.Equal(t, 1, m.Len())

	v, ok := m.Find(1)
	require.True(t, ok)
	require.Equal(t, byte(9), v.data[0])
}
