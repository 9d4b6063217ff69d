// Package wal implements the append-only write-ahead log writer and
// reader/recovery scanner described in spec.md §4.2-4.3.
//
// Grounded on nyasuto-moz/internal/kvstore/wal.go's WAL type (file handle +
// mutex + LSN counter + sync-policy knob), stripped of its background
// flushWorker goroutine and channel-based buffering: the spec calls for
// synchronous appends under a single-writer discipline with an explicit
// sync strategy, not an async buffered writer, so AtlasKV builds its
// user-space buffer the way Jipok-go-persist/wal.go does — a bufio.Writer
// flushed and fsynced directly from Append/Sync, with no extra goroutine.
package wal

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
	"github.com/atlaskv/atlaskv/internal/config"
	"github.com/atlaskv/atlaskv/internal/logkv"
	"github.com/atlaskv/atlaskv/internal/walrecord"
)

var log = logkv.With("wal")

// writerBufSize is the user-space buffer size fronting the WAL file.
const writerBufSize = 64 * 1024

// Writer is an append-only, sync-policy-aware WAL writer with a monotonic
// LSN allocator local to the current WAL epoch.
type Writer struct {
	mu sync.Mutex

	path     string
	file     *os.File
	buffered *bufio.Writer

	strategy    config.SyncStrategy
	nextLSN     uint64
	uncommitted int
}

// Open truncates (or creates) the WAL file at path and resets the LSN
// counter to 1.
func Open(path string, strategy config.SyncStrategy) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open wal: %v", atlaserr.ErrStorage, err)
	}
	return &Writer{
		path:     path,
		file:     f,
		buffered: bufio.NewWriterSize(f, writerBufSize),
		strategy: strategy,
		nextLSN:  1,
	}, nil
}

// Append allocates the next LSN, serializes the operation with the
// caller-supplied timestamp, writes it to the user-space buffer, and applies the
// configured sync policy. On any error the caller must treat this specific
// operation as not durable; earlier successful appends are unaffected.
func (w *Writer) Append(op walrecord.Op, key, value []byte, nowMillis int64) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	lsn := w.nextLSN
	entry := walrecord.Entry{
		LSN:             lsn,
		Op:              op,
		Key:             key,
		Value:           value,
		TimestampMillis: nowMillis,
	}

	buf, err := walrecord.Encode(entry)
	if err != nil {
		return 0, err
	}

	if _, err := w.buffered.Write(buf); err != nil {
		return 0, fmt.Errorf("%w: write wal entry: %v", atlaserr.ErrStorage, err)
	}

	w.nextLSN++
	w.uncommitted++

	if w.strategy.EveryWrite {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	} else if w.uncommitted >= w.strategy.N {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	}

	log.WithField("lsn", lsn).Trace("wal append")
	return lsn, nil
}

// Sync flushes the user-space buffer, fsyncs the underlying file, and
// resets the uncommitted-entry counter.
func (w *Writer) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *Writer) syncLocked() error {
	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("%w: flush wal buffer: %v", atlaserr.ErrStorage, err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("%w: fsync wal: %v", atlaserr.ErrStorage, err)
	}
	w.uncommitted = 0
	return nil
}

// Truncate flushes the buffer, zeroes the file, seeks to the start, and
// resets the LSN counter to 1 — used after a successful flush to discard
// the WAL contents that are now durable in an SSTable.
func (w *Writer) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buffered.Flush(); err != nil {
		return fmt.Errorf("%w: flush before truncate: %v", atlaserr.ErrStorage, err)
	}
	if err := w.file.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncate wal: %v", atlaserr.ErrStorage, err)
	}
	if _, err := w.file.Seek(0, 0); err != nil {
		return fmt.Errorf("%w: seek wal: %v", atlaserr.ErrStorage, err)
	}
	w.buffered.Reset(w.file)
	w.nextLSN = 1
	w.uncommitted = 0
	return nil
}

// NextLSN returns the LSN that the next Append call will allocate.
func (w *Writer) NextLSN() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.nextLSN
}

// Close flushes and closes the underlying file. It does not sync; callers
// that need durability must call Sync first.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buffered.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}
