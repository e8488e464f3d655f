// Package record implements the on-disk byte codec for transaction-log
// records and their length-prefixed index entries.
//
// # Record layout
//
//	| OP (1) | TIMESTAMP (16) | KEY_LEN (4) | VAL_LEN (4) | KEY | VALUE |
//
// All multi-byte integers are big-endian. OP is one of Insert, Delete,
// Lock; any other value is a decoding error.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Operation is the one-byte tag identifying what a Record represents.
type Operation byte

const (
	Insert Operation = 1
	Delete Operation = 2
	Lock   Operation = 3
)

func (op Operation) String() string {
	switch op {
	case Insert:
		return "Insert"
	case Delete:
		return "Delete"
	case Lock:
		return "Lock"
	default:
		return fmt.Sprintf("Operation(%d)", byte(op))
	}
}

func (op Operation) valid() bool {
	return op == Insert || op == Delete || op == Lock
}

// headerSize is OP(1) + TIMESTAMP(16) + KEY_LEN(4) + VAL_LEN(4).
const headerSize = 1 + 16 + 4 + 4

var (
	ErrDecodeEmpty  = errors.New("record: empty input")
	ErrDecodeShort  = errors.New("record: input shorter than header or declared field lengths")
	ErrBadOperation = errors.New("record: operation tag is not Insert, Delete or Lock")
	ErrIndexDecode  = errors.New("record: index entry must be exactly 4 bytes")
)

// Record is a single logged mutation.
type Record struct {
	Operation Operation
	Timestamp uint64 // milliseconds since epoch, stored in 16 big-endian bytes on the wire
	Key       []byte
	Value     []byte
}

// NewInsert builds an Insert record with the given timestamp (ms since epoch).
func NewInsert(timestampMs uint64, key, value []byte) Record {
	return Record{Operation: Insert, Timestamp: timestampMs, Key: key, Value: value}
}

// NewDelete builds a Delete record with the given timestamp (ms since epoch).
func NewDelete(timestampMs uint64, key, value []byte) Record {
	return Record{Operation: Delete, Timestamp: timestampMs, Key: key, Value: value}
}

// NewLock builds a Lock record with the given timestamp (ms since epoch).
func NewLock(timestampMs uint64, key, value []byte) Record {
	return Record{Operation: Lock, Timestamp: timestampMs, Key: key, Value: value}
}

// SizeInBytes is the exact length of Encode(r); klen + vlen + 25.
func (r Record) SizeInBytes() uint32 {
	return uint32(len(r.Key)) + uint32(len(r.Value)) + headerSize
}

// Bytes implements the Encodable interface the fingerprint/cuckoo
// packages consume: the record's canonical wire encoding.
func (r Record) Bytes() []byte {
	return Encode(r)
}

// Encode serializes r into its on-disk form.
func Encode(r Record) []byte {
	klen := uint32(len(r.Key))
	vlen := uint32(len(r.Value))

	buf := make([]byte, headerSize+klen+vlen)
	buf[0] = byte(r.Operation)

	var tsBytes [16]byte
	binary.BigEndian.PutUint64(tsBytes[8:16], r.Timestamp)
	copy(buf[1:17], tsBytes[:])

	binary.BigEndian.PutUint32(buf[17:21], klen)
	binary.BigEndian.PutUint32(buf[21:25], vlen)
	copy(buf[25:25+klen], r.Key)
	copy(buf[25+klen:], r.Value)

	return buf
}

// Decode is the inverse of Encode; it fails on empty input, a short
// buffer, or an operation tag outside {Insert, Delete, Lock}.
func Decode(b []byte) (Record, error) {
	if len(b) == 0 {
		return Record{}, ErrDecodeEmpty
	}
	if len(b) < headerSize {
		return Record{}, ErrDecodeShort
	}

	op := Operation(b[0])
	if !op.valid() {
		return Record{}, fmt.Errorf("%w: got %d", ErrBadOperation, b[0])
	}

	ts := binary.BigEndian.Uint64(b[9:17])
	klen := binary.BigEndian.Uint32(b[17:21])
	vlen := binary.BigEndian.Uint32(b[21:25])

	want := uint64(headerSize) + uint64(klen) + uint64(vlen)
	if uint64(len(b)) < want {
		return Record{}, ErrDecodeShort
	}

	key := make([]byte, klen)
	copy(key, b[25:25+klen])
	val := make([]byte, vlen)
	copy(val, b[25+klen:25+klen+vlen])

	return Record{Operation: op, Timestamp: ts, Key: key, Value: val}, nil
}

// Index is the fixed 4-byte big-endian length prefix addressing one
// record in the paired data file.
type Index struct {
	Value uint32
}

// NewIndex wraps a record's encoded length.
func NewIndex(sizeInBytes uint32) Index {
	return Index{Value: sizeInBytes}
}

// Bytes implements Encodable.
func (i Index) Bytes() []byte {
	return EncodeIndex(i)
}

// EncodeIndex serializes an Index to its 4-byte big-endian form.
func EncodeIndex(i Index) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], i.Value)
	return buf[:]
}

// DecodeIndex is the inverse of EncodeIndex.
func DecodeIndex(b []byte) (Index, error) {
	if len(b) != 4 {
		return Index{}, ErrIndexDecode
	}
	return Index{Value: binary.BigEndian.Uint32(b)}, nil
}

// EncodeIndexArray packs a slice of indices back to back.
func EncodeIndexArray(indices []Index) []byte {
	buf := make([]byte, 0, len(indices)*4)
	for _, idx := range indices {
		buf = append(buf, EncodeIndex(idx)...)
	}
	return buf
}

// DecodeIndexArray decodes a packed array of 4-byte index entries. A
// trailing fragment shorter than 4 bytes is silently dropped, matching
// the source's best-effort `from_bytes_array` behavior.
func DecodeIndexArray(b []byte) []Index {
	n := len(b) / 4
	out := make([]Index, 0, n)
	for i := 0; i < n; i++ {
		idx, err := DecodeIndex(b[i*4 : i*4+4])
		if err != nil {
			continue
		}
		out = append(out, idx)
	}
	return out
}
