// Package queue implements the on-disk file queue (C8) that VCS hooks
// append to and the background worker drains: a JSON list of QueueEntry
// records at file_queue.json, written with the write-temp-then-rename
// idiom the teacher pack uses for other on-disk state
// (bencoepp-bib/internal/storage/postgres/credentials.Storage.save).
package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

// File is a JSON-backed queue file. Every mutating method holds fileMu for
// the duration of its read-modify-write cycle, so File is safe for
// concurrent use within one process; cross-process safety relies on the
// atomic rename making concurrent writers race for "last write wins"
// rather than corrupting the file.
type File struct {
	path   string
	fileMu sync.Mutex
}

// Open returns a File bound to path. The file itself is created lazily on
// first Append; Drain/Len on a missing file behave as if it were empty.
func Open(path string) *File {
	return &File{path: path}
}

// Path returns the queue file's location.
func (f *File) Path() string {
	return f.path
}

// Append adds one entry to the queue, assigning EnqueuedAt if it is zero.
func (f *File) Append(entry docmodel.QueueEntry) error {
	return f.AppendAll([]docmodel.QueueEntry{entry})
}

// AppendAll adds multiple entries in a single read-modify-write cycle, the
// shape a pre-commit hook uses for a whole staged-file set.
func (f *File) AppendAll(entries []docmodel.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	existing, err := f.readLocked()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, e := range entries {
		if e.EnqueuedAt.IsZero() {
			e.EnqueuedAt = now
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		existing = append(existing, e)
	}

	return f.writeLocked(existing)
}

// ReadAll returns every queued entry in insertion order. A missing file
// yields an empty, non-nil slice.
func (f *File) ReadAll() ([]docmodel.QueueEntry, error) {
	f.fileMu.Lock()
	defer f.fileMu.Unlock()
	return f.readLocked()
}

// Len reports the number of queued entries.
func (f *File) Len() (int, error) {
	entries, err := f.ReadAll()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Drain atomically removes and returns up to max entries from the front
// of the queue (oldest first). Passing max <= 0 drains the whole queue.
// The entries removed are exactly the ones returned: a crash between the
// read and the rewrite leaves the queue untouched, not half-drained.
func (f *File) Drain(max int) ([]docmodel.QueueEntry, error) {
	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	entries, err := f.readLocked()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	n := len(entries)
	if max > 0 && max < n {
		n = max
	}

	taken := entries[:n]
	remaining := entries[n:]
	if err := f.writeLocked(remaining); err != nil {
		return nil, err
	}
	return taken, nil
}

// Requeue puts entries back at the front of the queue, used by the worker
// when a drained batch still fails after all its retries.
func (f *File) Requeue(entries []docmodel.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}

	f.fileMu.Lock()
	defer f.fileMu.Unlock()

	existing, err := f.readLocked()
	if err != nil {
		return err
	}
	merged := append(append([]docmodel.QueueEntry{}, entries...), existing...)
	return f.writeLocked(merged)
}

func (f *File) readLocked() ([]docmodel.QueueEntry, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []docmodel.QueueEntry{}, nil
		}
		return nil, fmt.Errorf("read queue %s: %w", f.path, fmt.Errorf("%w: %v", codequeryerr.ErrIO, err))
	}
	if len(data) == 0 {
		return []docmodel.QueueEntry{}, nil
	}

	var entries []docmodel.QueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse queue %s: %w", f.path, fmt.Errorf("%w: %v", codequeryerr.ErrIO, err))
	}
	return entries, nil
}

func (f *File) writeLocked(entries []docmodel.QueueEntry) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create queue dir: %w", fmt.Errorf("%w: %v", codequeryerr.ErrIO, err))
	}

	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write temp queue %s: %w", tmp, fmt.Errorf("%w: %v", codequeryerr.ErrIO, err))
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename queue into place: %w", fmt.Errorf("%w: %v", codequeryerr.ErrIO, err))
	}
	return nil
}
