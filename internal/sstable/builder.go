package sstable

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
)

// indexRecord remembers where one entry landed in the data section, for
// the index block written at Finish.
type indexRecord struct {
	key    []byte
	offset uint64
}

// Builder writes a new immutable SSTable file. Entries must be added in
// strictly non-decreasing key order; Finish writes the index, footer, and
// patches the header's EntryCount before syncing.
type Builder struct {
	path string
	f    *os.File
	w    *bufio.Writer

	offset  uint64 // bytes written to the data section so far
	index   []indexRecord
	crc     uint32
	minKey  []byte
	maxKey  []byte
	count   uint64
	lastKey []byte
	hasLast bool
	done    bool
}

// New creates (truncating if necessary) the SSTable file at path and
// writes a provisional header.
func New(path string) (*Builder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create sstable: %v", atlaserr.ErrStorage, err)
	}

	b := &Builder{
		path: path,
		f:    f,
		w:    bufio.NewWriter(f),
	}

	header := make([]byte, HeaderSize)
	copy(header[0:4], Magic[:])
	header[4] = byte(Version)
	header[5] = byte(Version >> 8)
	// EntryCount (bytes 6:14) left zero, patched in Finish.
	if _, err := b.w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: write sstable header: %v", atlaserr.ErrStorage, err)
	}

	return b, nil
}

// Add appends a live value for key. Keys must arrive in non-decreasing
// order.
func (b *Builder) Add(key, value []byte) error {
	return b.add(key, value, false)
}

// AddTombstone appends a tombstone marker for key. Keys must arrive in
// non-decreasing order.
func (b *Builder) AddTombstone(key []byte) error {
	return b.add(key, nil, true)
}

func (b *Builder) add(key, value []byte, tombstone bool) error {
	if b.done {
		return fmt.Errorf("%w: builder already finished", atlaserr.ErrStorage)
	}
	if b.hasLast && string(key) < string(b.lastKey) {
		return fmt.Errorf("%w: keys must be added in non-decreasing order", atlaserr.ErrStorage)
	}

	valLen := TombstoneMarker
	if !tombstone {
		valLen = uint32(len(value))
	}

	entryHeader := make([]byte, 8)
	putUint32(entryHeader[0:4], uint32(len(key)))
	putUint32(entryHeader[4:8], valLen)

	b.index = append(b.index, indexRecord{key: append([]byte(nil), key...), offset: b.offset})

	if err := b.writeAndHash(entryHeader); err != nil {
		return err
	}
	if err := b.writeAndHash(key); err != nil {
		return err
	}
	if !tombstone {
		if err := b.writeAndHash(value); err != nil {
			return err
		}
	}

	if b.minKey == nil {
		b.minKey = append([]byte(nil), key...)
	}
	b.maxKey = append([]byte(nil), key...)
	b.lastKey = append([]byte(nil), key...)
	b.hasLast = true
	b.count++

	return nil
}

func (b *Builder) writeAndHash(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := b.w.Write(p); err != nil {
		return fmt.Errorf("%w: write sstable data: %v", atlaserr.ErrStorage, err)
	}
	b.crc = crc32.Update(b.crc, crc32.IEEETable, p)
	b.offset += uint64(len(p))
	return nil
}

// Finish writes the index block and footer, patches EntryCount into the
// header, flushes, and durably syncs the file. It returns a Handle
// describing the finished SSTable. An error from Finish means the
// partially written file must not be installed.
func (b *Builder) Finish() (Handle, error) {
	if b.done {
		return Handle{}, fmt.Errorf("%w: builder already finished", atlaserr.ErrStorage)
	}
	b.done = true

	indexOffset := HeaderSize + b.offset

	for _, rec := range b.index {
		entry := make([]byte, 4+8+len(rec.key))
		putUint32(entry[0:4], uint32(len(rec.key)))
		putUint64(entry[4:12], rec.offset)
		copy(entry[12:], rec.key)
		if _, err := b.w.Write(entry); err != nil {
			return Handle{}, fmt.Errorf("%w: write sstable index: %v", atlaserr.ErrStorage, err)
		}
	}

	footer := make([]byte, FooterSize)
	putUint64(footer[0:8], indexOffset)
	putUint32(footer[8:12], b.crc)
	if _, err := b.w.Write(footer); err != nil {
		return Handle{}, fmt.Errorf("%w: write sstable footer: %v", atlaserr.ErrStorage, err)
	}

	if err := b.w.Flush(); err != nil {
		return Handle{}, fmt.Errorf("%w: flush sstable: %v", atlaserr.ErrStorage, err)
	}

	countBytes := make([]byte, 8)
	putUint64(countBytes, b.count)
	if _, err := b.f.WriteAt(countBytes, 6); err != nil {
		return Handle{}, fmt.Errorf("%w: patch sstable entry count: %v", atlaserr.ErrStorage, err)
	}

	if err := b.f.Sync(); err != nil {
		return Handle{}, fmt.Errorf("%w: sync sstable: %v", atlaserr.ErrStorage, err)
	}

	info, err := b.f.Stat()
	if err != nil {
		return Handle{}, fmt.Errorf("%w: stat sstable: %v", atlaserr.ErrStorage, err)
	}

	if err := b.f.Close(); err != nil {
		return Handle{}, fmt.Errorf("%w: close sstable: %v", atlaserr.ErrStorage, err)
	}

	return Handle{
		Path:       b.path,
		EntryCount: b.count,
		MinKey:     b.minKey,
		MaxKey:     b.maxKey,
		FileSize:   info.Size(),
	}, nil
}

// Abort discards a partially written SSTable after a failed Finish,
// removing the file.
func (b *Builder) Abort() {
	if b.f != nil {
		b.f.Close()
		os.Remove(b.path)
	}
}
