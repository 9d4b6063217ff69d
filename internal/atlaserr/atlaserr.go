// Package atlaserr defines the unified error categories used across the
// AtlasKV storage engine and its network/CLI front ends.
package atlaserr

import "errors"

// Sentinel errors for conditions callers are expected to check with
// errors.Is. Wrap these with fmt.Errorf("...: %w", ...) for context.
var (
	// ErrWalCorruption signals a CRC mismatch, inner/outer LSN disagreement,
	// or decode failure inside a WAL record. Only observed during recovery;
	// never surfaced through Get/Put/Delete.
	ErrWalCorruption = errors.New("wal corruption detected")

	// ErrStorage signals a logic error in the storage layer: flushing an
	// empty memtable, an invalid SSTable magic/version, and similar.
	ErrStorage = errors.New("storage error")

	// ErrSerialization signals a codec failure on a WAL record's inner payload.
	ErrSerialization = errors.New("serialization error")

	// ErrKeyNotFound names the "this SSTable doesn't have this key" case.
	// The storage path does not return it: SSTable readers and the storage
	// manager report an absent key as found=false with a nil error, and
	// the engine's Get reports it as (nil, false, nil).
	ErrKeyNotFound = errors.New("key not found")

	// ErrProtocol signals a malformed or oversized wire message, an unknown
	// command/status byte, or an unexpected PING payload.
	ErrProtocol = errors.New("protocol error")

	// ErrNetwork signals a bind failure or connection setup error at the
	// network boundary.
	ErrNetwork = errors.New("network error")

	// ErrLockPoisoned signals that a mutation path observed a prior holder
	// of the write-guard panic.
	ErrLockPoisoned = errors.New("lock poisoned")

	// ErrConfig signals an invalid configuration value.
	ErrConfig = errors.New("configuration error")
)
