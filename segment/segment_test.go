package segment

import (
	"path/filepath"
	"testing"

	"github.com/cfgdb/engine/record"
	"github.com/stretchr/testify/require"
)

func indexItem(v uint32) record.Index { return record.NewIndex(v) }

func TestAppendAndReadSlice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.data")

	for _, v := range []uint32{1, 2, 3, 4, 5} {
		_, err := Append(path, indexItem(v))
		require.NoError(t, err)
	}

	decode := record.DecodeIndex

	got, err := ReadFromEnd(path, 4, decode)
	require.NoError(t, err)
	require.Equal(t, indexItem(5), got)

	for i, want := range []uint32{1, 2, 3, 4, 5} {
		got, err := ReadSlice(path, uint64(i*4), 4, decode)
		require.NoError(t, err)
		require.Equal(t, indexItem(want), got)
	}

	got, err = ReadSliceFromEnd(path, 8, 4, decode)
	require.NoError(t, err)
	require.Equal(t, indexItem(4), got)
}

func TestReadRangeErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.data")
	_, err := Append(path, indexItem(1))
	require.NoError(t, err)

	_, err = ReadSlice(path, 10, 4, record.DecodeIndex)
	require.ErrorIs(t, err, ErrRange)

	_, err = ReadFromEnd(path, 100, record.DecodeIndex)
	require.ErrorIs(t, err, ErrRange)
}

func TestRecordsInterleavedWithIndex(t *testing.T) {
	dir := t.TempDir()
	idxFile := filepath.Join(dir, "index.data")
	logFile := filepath.Join(dir, "log.data")

	insertRec := record.NewInsert(0, []byte{1, 1, 1}, []byte{2, 2, 2})
	deleteRec := record.NewDelete(0, []byte{1, 1, 1, 1}, []byte{2, 2, 2, 1})
	lockRec := record.NewLock(0, []byte{1, 1}, []byte{2})

	for _, r := range []record.Record{insertRec, deleteRec, lockRec} {
		_, err := Append(idxFile, record.NewIndex(r.SizeInBytes()))
		require.NoError(t, err)
		_, err = Append(logFile, r)
		require.NoError(t, err)
	}

	pos := uint64(0)
	for _, want := range []record.Record{insertRec, deleteRec, lockRec} {
		got, err := ReadSlice(logFile, pos, uint64(want.SizeInBytes()), record.Decode)
		require.NoError(t, err)
		require.Equal(t, want, got)
		pos += uint64(want.SizeInBytes())
	}
}
