// Package translog implements the durable transaction log: a paired
// data file and offset-index file, guarded by a lock file, living
// together in one directory. Every mutation is pushed here before it
// is applied to any in-memory structure.
package translog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cfgdb/engine/record"
	"github.com/cfgdb/engine/segment"
)

const (
	lockFileName    = "log.lock"
	idxFileName     = "log_idx.cfgdb"
	dataFileName    = "log_data.cfgdb"
	backupExtension = "cfgdb.bck"
)

var (
	// ErrLockHeld is returned by Create when another live log already
	// holds the lock file for the directory.
	ErrLockHeld = errors.New("translog: log.lock already held")
	// ErrNotDirectory is returned when the target path exists and is a file.
	ErrNotDirectory = errors.New("translog: path exists and is not a directory")
	// ErrTooFewRecords is returned when a tail read asks for more
	// records than the log currently holds.
	ErrTooFewRecords = errors.New("translog: fewer records than requested")
)

// Log is a transaction log rooted at one directory.
type Log struct {
	dir  string
	idx  string
	data string
	lock string
}

// Create ensures dir exists and creates the empty data, index, and
// lock files. It fails if dir is a regular file, or if a lock file
// from a previous opener is already present.
func Create(dir string) (*Log, error) {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, ErrNotDirectory
		}
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("translog: create dir %s: %w", dir, err)
		}
	default:
		return nil, fmt.Errorf("translog: stat %s: %w", dir, err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	if _, err := os.Stat(lockPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, lockPath)
	}

	if err := createEmptyFile(lockPath); err != nil {
		return nil, err
	}

	dataPath := filepath.Join(dir, dataFileName)
	if err := createEmptyFile(dataPath); err != nil {
		return nil, err
	}

	idxPath := filepath.Join(dir, idxFileName)
	if err := createEmptyFile(idxPath); err != nil {
		return nil, err
	}

	return &Log{dir: dir, idx: idxPath, data: dataPath, lock: lockPath}, nil
}

// CreateForce removes a stale lock file (if any) before delegating to Create.
func CreateForce(dir string) (*Log, error) {
	lockPath := filepath.Join(dir, lockFileName)
	if _, err := os.Stat(lockPath); err == nil {
		if err := os.Remove(lockPath); err != nil {
			return nil, fmt.Errorf("translog: remove stale lock %s: %w", lockPath, err)
		}
	}
	return Create(dir)
}

func createEmptyFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("translog: create %s: %w", path, err)
	}
	return f.Close()
}

// Close releases the lock file on clean shutdown. The data and index
// files are left in place.
func (l *Log) Close() error {
	if err := os.Remove(l.lock); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("translog: remove lock %s: %w", l.lock, err)
	}
	return nil
}

// RemoveFiles deletes all three files backing the log.
func (l *Log) RemoveFiles() error {
	for _, p := range []string{l.idx, l.data, l.lock} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("translog: remove %s: %w", p, err)
		}
	}
	return nil
}

// Backup copies the data and index files to siblings with the
// ".cfgdb.bck" extension. Both source files must exist.
func (l *Log) Backup() error {
	if _, err := os.Stat(l.data); err != nil {
		return fmt.Errorf("translog: backup source %s missing: %w", l.data, err)
	}
	if _, err := os.Stat(l.idx); err != nil {
		return fmt.Errorf("translog: backup source %s missing: %w", l.idx, err)
	}

	dataBackup := withExtension(l.data, backupExtension)
	idxBackup := withExtension(l.idx, backupExtension)

	if err := copyFile(l.data, dataBackup); err != nil {
		return err
	}
	return copyFile(l.idx, idxBackup)
}

func withExtension(path, ext string) string {
	trimmed := path[:len(path)-len(filepath.Ext(path))]
	return trimmed + "." + ext
}

func copyFile(src, dst string) error {
	in, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("translog: read %s for backup: %w", src, err)
	}
	if err := os.WriteFile(dst, in, 0o644); err != nil {
		return fmt.Errorf("translog: write %s for backup: %w", dst, err)
	}
	return nil
}

// Push appends record's encoded length to the index file, then the
// record itself to the data file, in that order. It returns the
// number of bytes written to the data file.
func (l *Log) Push(r record.Record) (int, error) {
	size := r.SizeInBytes()

	if _, err := segment.Append(l.idx, record.NewIndex(size)); err != nil {
		return 0, fmt.Errorf("translog: push index entry: %w", err)
	}

	n, err := segment.Append(l.data, r)
	if err != nil {
		return n, fmt.Errorf("translog: push record: %w", err)
	}
	return n, nil
}

// ReadFromEnd returns the posFromEnd-th record from the tail; 1 is the
// most recently pushed record.
func (l *Log) ReadFromEnd(posFromEnd int) (record.Record, error) {
	if posFromEnd < 1 {
		return record.Record{}, fmt.Errorf("translog: posFromEnd must be >= 1, got %d", posFromEnd)
	}

	var offsetFromEnd uint64
	var size uint64
	for i := 1; i <= posFromEnd; i++ {
		idx, err := segment.ReadSliceFromEnd(l.idx, uint64(i*4), 4, record.DecodeIndex)
		if err != nil {
			return record.Record{}, fmt.Errorf("%w: %v", ErrTooFewRecords, err)
		}
		size = uint64(idx.Value)
		offsetFromEnd += size
	}

	return segment.ReadSliceFromEnd(l.data, offsetFromEnd, size, record.Decode)
}

// ReadAllFromEnd returns the last n records in tail-to-head order.
func (l *Log) ReadAllFromEnd(n int) ([]record.Record, error) {
	if n < 1 {
		return nil, fmt.Errorf("translog: n must be >= 1, got %d", n)
	}

	records := make([]record.Record, 0, n)
	var offsetFromEnd uint64
	for i := 1; i <= n; i++ {
		idx, err := segment.ReadSliceFromEnd(l.idx, uint64(i*4), 4, record.DecodeIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTooFewRecords, err)
		}
		size := uint64(idx.Value)
		offsetFromEnd += size

		r, err := segment.ReadSliceFromEnd(l.data, offsetFromEnd, size, record.Decode)
		if err != nil {
			return nil, fmt.Errorf("translog: read record %d from end: %w", i, err)
		}
		records = append(records, r)
	}

	return records, nil
}

// Recover truncates a dangling index entry that has no matching record
// bytes in the data file — the one torn-write case §5 tolerates (an
// index entry written before its record's bytes finished landing).
// It returns the number of index entries truncated (0 or 1).
func (l *Log) Recover() (int, error) {
	idxInfo, err := os.Stat(l.idx)
	if err != nil {
		return 0, fmt.Errorf("translog: stat %s: %w", l.idx, err)
	}
	dataInfo, err := os.Stat(l.data)
	if err != nil {
		return 0, fmt.Errorf("translog: stat %s: %w", l.data, err)
	}

	idxBytes, err := os.ReadFile(l.idx)
	if err != nil {
		return 0, fmt.Errorf("translog: read %s: %w", l.idx, err)
	}
	indices := record.DecodeIndexArray(idxBytes)

	var sum uint64
	for _, idx := range indices {
		sum += uint64(idx.Value)
	}

	if sum == uint64(dataInfo.Size()) {
		return 0, nil
	}

	if sum > uint64(dataInfo.Size()) && len(indices) > 0 {
		last := indices[len(indices)-1]
		if sum-uint64(last.Value) == uint64(dataInfo.Size()) {
			truncated := idxBytes[:len(idxBytes)-4]
			if err := os.WriteFile(l.idx, truncated, 0o644); err != nil {
				return 0, fmt.Errorf("translog: truncate dangling index entry: %w", err)
			}
			return 1, nil
		}
	}

	return 0, fmt.Errorf("translog: index sum %d does not reconcile with data size %d for %s", sum, dataInfo.Size(), idxInfo.Name())
}
