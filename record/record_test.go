package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	r := NewInsert(1234, make([]byte, 10), make([]byte, 15))

	require.Equal(t, uint32(50), r.SizeInBytes())

	encoded := Encode(r)
	require.Equal(t, int(r.SizeInBytes()), len(encoded))

	decoded, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, Insert, decoded.Operation)
	assert.Equal(t, r.Timestamp, decoded.Timestamp)
	assert.Equal(t, r.Key, decoded.Key)
	assert.Equal(t, r.Value, decoded.Value)
}

func TestRecordOperationTags(t *testing.T) {
	for _, rec := range []Record{
		NewInsert(1, []byte{1, 1, 1}, []byte{2, 2, 2}),
		NewDelete(2, []byte{1, 1, 1, 1}, []byte{2, 2, 2, 1}),
		NewLock(3, []byte{1, 1}, []byte{2}),
	} {
		encoded := Encode(rec)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, rec, decoded)
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrDecodeEmpty)

	_, err = Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrDecodeShort)

	bad := Encode(NewInsert(0, []byte{1}, []byte{2}))
	bad[0] = 99
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrBadOperation)

	short := Encode(NewInsert(0, []byte{1, 2, 3}, []byte{4, 5, 6}))
	_, err = Decode(short[:len(short)-1])
	assert.ErrorIs(t, err, ErrDecodeShort)
}

func TestIndexRoundTrip(t *testing.T) {
	idx := NewIndex(1_000_000_000)
	encoded := EncodeIndex(idx)
	require.Len(t, encoded, 4)

	decoded, err := DecodeIndex(encoded)
	require.NoError(t, err)
	assert.Equal(t, idx, decoded)
}

func TestIndexArrayRoundTrip(t *testing.T) {
	indices := []Index{
		NewIndex(1_000_000_001),
		NewIndex(1_000_000_002),
		NewIndex(1_000_000_003),
	}

	encoded := EncodeIndexArray(indices)
	decoded := DecodeIndexArray(encoded)

	require.Len(t, decoded, 3)
	assert.Contains(t, decoded, NewIndex(1_000_000_001))
	assert.Contains(t, decoded, NewIndex(1_000_000_002))
	assert.Contains(t, decoded, NewIndex(1_000_000_003))
}

func TestIndexArrayDropsTrailingFragment(t *testing.T) {
	encoded := EncodeIndexArray([]Index{NewIndex(1), NewIndex(2)})
	encoded = append(encoded, 0xFF, 0xFF) // 2 trailing bytes, not a full entry

	decoded := DecodeIndexArray(encoded)
	require.Len(t, decoded, 2)
}
