package sstable

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
)

// indexEntry is one parsed entry from the index section: a key and the
// byte offset (relative to the start of the data section) where its
// record begins.
type indexEntry struct {
	key    []byte
	offset uint64
}

// Reader opens an existing, immutable SSTable for point lookups and full
// scans. The index is loaded entirely into memory at Open; the data
// section's CRC is only checked lazily, on an explicit Verify call.
type Reader struct {
	path string
	f    *os.File

	entryCount  uint64
	dataStart   int64
	dataEnd     int64
	indexOffset uint64
	dataCRC     uint32

	index  []indexEntry // sorted by key, ascending
	minKey []byte
	maxKey []byte
}

// Open validates the header and footer of path, loads the index into
// memory, and returns a ready-to-query Reader.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sstable: %v", atlaserr.ErrStorage, err)
	}

	r, err := openFile(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func openFile(path string, f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat sstable: %v", atlaserr.ErrStorage, err)
	}
	size := info.Size()
	if size < HeaderSize+FooterSize {
		return nil, fmt.Errorf("%w: sstable too small: %s", atlaserr.ErrStorage, path)
	}

	header := make([]byte, HeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("%w: read sstable header: %v", atlaserr.ErrStorage, err)
	}
	if !bytes.Equal(header[0:4], Magic[:]) {
		return nil, fmt.Errorf("%w: bad sstable magic: %s", atlaserr.ErrStorage, path)
	}
	version := uint16(header[4]) | uint16(header[5])<<8
	if version != Version {
		return nil, fmt.Errorf("%w: unsupported sstable version %d: %s", atlaserr.ErrStorage, version, path)
	}
	entryCount := getUint64(header[6:14])

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, size-FooterSize); err != nil {
		return nil, fmt.Errorf("%w: read sstable footer: %v", atlaserr.ErrStorage, err)
	}
	indexOffset := getUint64(footer[0:8])
	dataCRC := getUint32(footer[8:12])

	r := &Reader{
		path:        path,
		f:           f,
		entryCount:  entryCount,
		dataStart:   HeaderSize,
		dataEnd:     int64(indexOffset),
		indexOffset: indexOffset,
		dataCRC:     dataCRC,
	}

	if err := r.loadIndex(size); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) loadIndex(fileSize int64) error {
	indexSize := fileSize - FooterSize - int64(r.indexOffset)
	if indexSize < 0 {
		return fmt.Errorf("%w: corrupt sstable index offset: %s", atlaserr.ErrStorage, r.path)
	}
	buf := make([]byte, indexSize)
	if indexSize > 0 {
		if _, err := r.f.ReadAt(buf, int64(r.indexOffset)); err != nil {
			return fmt.Errorf("%w: read sstable index: %v", atlaserr.ErrStorage, err)
		}
	}

	r.index = make([]indexEntry, 0, r.entryCount)
	pos := 0
	for pos < len(buf) {
		if pos+4+8 > len(buf) {
			return fmt.Errorf("%w: truncated sstable index entry: %s", atlaserr.ErrStorage, r.path)
		}
		keyLen := int(getUint32(buf[pos : pos+4]))
		offset := getUint64(buf[pos+4 : pos+12])
		pos += 12
		if pos+keyLen > len(buf) {
			return fmt.Errorf("%w: truncated sstable index key: %s", atlaserr.ErrStorage, r.path)
		}
		key := append([]byte(nil), buf[pos:pos+keyLen]...)
		pos += keyLen

		r.index = append(r.index, indexEntry{key: key, offset: offset})
	}

	if len(r.index) > 0 {
		r.minKey = r.index[0].key
		r.maxKey = r.index[len(r.index)-1].key
	}

	return nil
}

// ContainsKey reports whether key falls within this table's [min, max]
// key range. It is a cheap pre-filter only: a true result does not mean
// the key is actually present.
func (r *Reader) ContainsKey(key []byte) bool {
	if len(r.index) == 0 {
		return false
	}
	return bytes.Compare(key, r.minKey) >= 0 && bytes.Compare(key, r.maxKey) <= 0
}

// Get looks up key. It returns (value, true, nil) for a live value,
// (nil, true, nil) for a tombstone — meaning the key was deleted and the
// caller must not fall through to older SSTables — and (nil, false, nil)
// when the key is absent from this table entirely.
func (r *Reader) Get(key []byte) ([]byte, bool, error) {
	if !r.ContainsKey(key) {
		return nil, false, nil
	}

	i := sort.Search(len(r.index), func(i int) bool {
		return bytes.Compare(r.index[i].key, key) >= 0
	})
	if i >= len(r.index) || !bytes.Equal(r.index[i].key, key) {
		return nil, false, nil
	}

	return r.readAt(r.index[i].offset)
}

func (r *Reader) readAt(offset uint64) ([]byte, bool, error) {
	pos := r.dataStart + int64(offset)

	entryHeader := make([]byte, 8)
	if _, err := r.f.ReadAt(entryHeader, pos); err != nil {
		return nil, false, fmt.Errorf("%w: read sstable entry header: %v", atlaserr.ErrStorage, err)
	}
	keyLen := int64(getUint32(entryHeader[0:4]))
	valLen := getUint32(entryHeader[4:8])

	if valLen == TombstoneMarker {
		return nil, true, nil
	}

	value := make([]byte, valLen)
	if valLen > 0 {
		if _, err := r.f.ReadAt(value, pos+8+keyLen); err != nil {
			return nil, false, fmt.Errorf("%w: read sstable value: %v", atlaserr.ErrStorage, err)
		}
	}
	return value, true, nil
}

// Entry is one record produced by Iterator, in ascending key order.
type Entry struct {
	Key       []byte
	Value     []byte // nil for a tombstone
	Tombstone bool
}

// Iterator returns every entry in the table, in ascending key order,
// including tombstones. Used by compaction-adjacent tooling and tests;
// the engine itself only ever needs point lookups.
func (r *Reader) Iterator() ([]Entry, error) {
	out := make([]Entry, 0, len(r.index))
	for _, ie := range r.index {
		value, _, err := r.readAt(ie.offset)
		if err != nil {
			return nil, err
		}
		tombstone := value == nil
		out = append(out, Entry{Key: ie.key, Value: value, Tombstone: tombstone})
	}
	return out, nil
}

// EntryCount returns the number of entries recorded in the header.
func (r *Reader) EntryCount() uint64 { return r.entryCount }

// MinKey and MaxKey return the table's key range, or nil if the table is
// empty.
func (r *Reader) MinKey() []byte { return r.minKey }
func (r *Reader) MaxKey() []byte { return r.maxKey }

// Path returns the filesystem path this reader was opened from.
func (r *Reader) Path() string { return r.path }

// Verify recomputes the CRC32 over the entire data section and compares
// it against the value stored in the footer. This is never called
// automatically on Open; it is an explicit, lazy integrity check.
func (r *Reader) Verify() error {
	size := r.dataEnd - r.dataStart
	if size < 0 {
		return fmt.Errorf("%w: invalid sstable data section: %s", atlaserr.ErrStorage, r.path)
	}

	section := io.NewSectionReader(r.f, r.dataStart, size)
	hasher := crc32.NewIEEE()
	if _, err := io.Copy(hasher, section); err != nil {
		return fmt.Errorf("%w: read sstable data for verify: %v", atlaserr.ErrStorage, err)
	}

	if hasher.Sum32() != r.dataCRC {
		return fmt.Errorf("%w: sstable data crc mismatch: %s", atlaserr.ErrStorage, r.path)
	}
	return nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
