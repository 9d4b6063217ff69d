// Package sstable implements the immutable on-disk sorted-string table
// format described in spec.md §4.5-4.6: a 14-byte header, a data section,
// an index section, and a 16-byte footer.
//
// Grounded on nyasuto-moz/internal/lsm/sstable.go's SSTable type, which
// splits data and index across two files (.sst/.idx) and reserves header
// space for metadata patched in at Finalize. AtlasKV collapses that into
// the spec's single four-section file, the way
// original_source/src/storage/sstable/{builder,reader}.rs keep one
// physical file while still separating builder and reader responsibilities
// into different types.
package sstable

import (
	"encoding/binary"
)

// Magic identifies an AtlasKV SSTable file.
var Magic = [4]byte{'A', 'T', 'K', 'V'}

// Version is the current on-disk format version.
const Version uint16 = 1

// TombstoneMarker is the ValLen sentinel denoting a tombstone entry; no
// value bytes follow it.
const TombstoneMarker uint32 = 0xFFFFFFFF

// HeaderSize is the fixed header length: Magic(4) + Version(2) + EntryCount(8).
const HeaderSize = 4 + 2 + 8

// FooterSize is the fixed footer length: IndexOffset(8) + DataCRC(4) + Padding(4).
const FooterSize = 8 + 4 + 4

// Handle describes a finished, on-disk SSTable.
type Handle struct {
	Path       string
	EntryCount uint64
	MinKey     []byte
	MaxKey     []byte
	FileSize   int64
}

func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }
func getUint32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }
func getUint64(b []byte) uint64    { return binary.LittleEndian.Uint64(b) }
