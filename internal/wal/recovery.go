// Recovery and sequential scanning over a WAL file. Grounded on
// nyasuto-moz/internal/kvstore/recovery.go's RecoverFromWAL loop, adapted
// to return a recovered-entry list and stats instead of directly mutating
// a running store, and to halt (rather than skip-and-continue) on the
// first corrupt record, per spec.md §4.3's tail-truncation policy.
package wal

import (
	"fmt"
	"io"
	"os"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
	"github.com/atlaskv/atlaskv/internal/walrecord"
)

// Stats summarizes the outcome of a recovery scan.
type Stats struct {
	EntriesRecovered int
	EntriesCorrupted int
	LastLSN          uint64
	WasTruncated     bool
}

// reader performs a forward scan over a WAL file, reading one full record
// at a time with partial-write tolerance at the tail.
type reader struct {
	f   *os.File
	pos int64
	end int64
}

func newReader(f *os.File) (*reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &reader{f: f, end: info.Size()}, nil
}

// next reads the next record. It returns io.EOF with truncated=false when
// pos == end exactly (clean EOF); it returns io.ErrUnexpectedEOF with
// truncated=true when a partial header or payload is observed at the tail;
// it returns the decode error with truncated=true when the record itself
// is structurally invalid.
func (r *reader) next() (entry walrecord.Entry, truncated bool, err error) {
	if r.pos == r.end {
		return walrecord.Entry{}, false, io.EOF
	}

	remaining := r.end - r.pos
	if remaining < walrecord.HeaderSize {
		return walrecord.Entry{}, true, io.ErrUnexpectedEOF
	}

	header := make([]byte, walrecord.HeaderSize)
	if _, err := io.ReadFull(r.f, header); err != nil {
		return walrecord.Entry{}, true, io.ErrUnexpectedEOF
	}

	dataLen := int64(headerDataLen(header))
	if remaining-walrecord.HeaderSize < dataLen {
		return walrecord.Entry{}, true, io.ErrUnexpectedEOF
	}

	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r.f, data); err != nil {
		return walrecord.Entry{}, true, io.ErrUnexpectedEOF
	}

	buf := append(header, data...)
	e, n, decErr := walrecord.Decode(buf)
	if decErr != nil {
		return walrecord.Entry{}, true, decErr
	}
	r.pos += int64(n)
	return e, false, nil
}

func headerDataLen(header []byte) uint32 {
	return uint32(header[12]) | uint32(header[13])<<8 | uint32(header[14])<<16 | uint32(header[15])<<24
}

// Recover scans path from the start and returns every successfully decoded
// entry in file order, plus recovery stats. It stops at clean EOF, at a
// partial trailing write, or at the first corrupted record — never past
// one, since the semantics of the tail after corruption are undefined.
func Recover(path string) ([]walrecord.Entry, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Stats{}, nil
		}
		return nil, Stats{}, fmt.Errorf("%w: open wal for recovery: %v", atlaserr.ErrStorage, err)
	}
	defer f.Close()

	rd, err := newReader(f)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("%w: stat wal: %v", atlaserr.ErrStorage, err)
	}

	var entries []walrecord.Entry
	var stats Stats

	for {
		entry, truncated, err := rd.next()
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			stats.WasTruncated = true
			break
		}
		if err != nil {
			stats.EntriesCorrupted++
			stats.WasTruncated = true
			break
		}
		_ = truncated // always false on the success path

		entries = append(entries, entry)
		stats.EntriesRecovered++
		stats.LastLSN = entry.LSN
	}

	log.WithField("path", path).
		WithField("recovered", stats.EntriesRecovered).
		WithField("corrupted", stats.EntriesCorrupted).
		WithField("truncated", stats.WasTruncated).
		Info("wal recovery complete")

	return entries, stats, nil
}

// Verify runs the same scan as Recover but discards the decoded entries,
// returning only the resulting stats.
func Verify(path string) (Stats, error) {
	_, stats, err := Recover(path)
	return stats, err
}
