// Package walrecord implements the on-disk codec for a single write-ahead
// log record: a fixed 16-byte header (LSN, CRC32, DataLen) followed by a
// self-describing data section, as specified for AtlasKV's WAL.
//
// Grounded on nyasuto-moz/internal/kvstore/wal.go's writeEntry/walReader
// pair, which inlines the same header-then-payload shape directly into the
// WAL writer; AtlasKV factors the codec out so the WAL and its tests share
// one (de)serializer, mirroring the wal/entry.rs vs wal/writer.rs split in
// the original source this spec was distilled from.
package walrecord

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
)

// Op identifies the kind of mutation a WAL entry represents.
type Op uint8

const (
	OpPut Op = iota
	OpDelete
)

// HeaderSize is the fixed byte length of a record's header:
// LSN(8) + CRC32(4) + DataLen(4).
const HeaderSize = 16

// Entry is the logical content of one WAL record.
type Entry struct {
	LSN             uint64
	Op              Op
	Key             []byte
	Value           []byte // empty/nil for OpDelete
	TimestampMillis int64
}

// Encode serializes e into a complete record: header + data section.
func Encode(e Entry) ([]byte, error) {
	data, err := encodeData(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", atlaserr.ErrSerialization, err)
	}

	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], e.LSN)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(data)))

	crc := crc32.NewIEEE()
	crc.Write(header[0:8])   // LSN
	crc.Write(header[12:16]) // DataLen
	crc.Write(data)
	binary.LittleEndian.PutUint32(header[8:12], crc.Sum32())

	out := make([]byte, 0, HeaderSize+len(data))
	out = append(out, header...)
	out = append(out, data...)
	return out, nil
}

// Decode parses a complete record (header + data) from buf. buf may be
// longer than one record; only HeaderSize+DataLen bytes are consumed.
// Decode fails with ErrWalCorruption for any structural or integrity
// violation described in spec.md §4.1.
func Decode(buf []byte) (Entry, int, error) {
	if len(buf) < HeaderSize {
		return Entry{}, 0, fmt.Errorf("%w: short header (%d bytes)", atlaserr.ErrWalCorruption, len(buf))
	}

	lsn := binary.LittleEndian.Uint64(buf[0:8])
	storedCRC := binary.LittleEndian.Uint32(buf[8:12])
	dataLen := binary.LittleEndian.Uint32(buf[12:16])

	if uint64(len(buf)-HeaderSize) < uint64(dataLen) {
		return Entry{}, 0, fmt.Errorf("%w: declared data length %d exceeds remaining input", atlaserr.ErrWalCorruption, dataLen)
	}

	data := buf[HeaderSize : HeaderSize+int(dataLen)]

	crc := crc32.NewIEEE()
	crc.Write(buf[0:8])
	crc.Write(buf[12:16])
	crc.Write(data)
	if crc.Sum32() != storedCRC {
		return Entry{}, 0, fmt.Errorf("%w: crc mismatch", atlaserr.ErrWalCorruption)
	}

	e, err := decodeData(data)
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%w: %v", atlaserr.ErrWalCorruption, err)
	}
	if e.LSN != lsn {
		return Entry{}, 0, fmt.Errorf("%w: header LSN %d disagrees with entry LSN %d", atlaserr.ErrWalCorruption, lsn, e.LSN)
	}

	return e, HeaderSize + int(dataLen), nil
}

// encodeData serializes the logical entry {lsn, operation, timestamp, key,
// value} into the record's self-describing data section.
func encodeData(e Entry) ([]byte, error) {
	size := 8 + 8 + 1 + 4 + len(e.Key)
	if e.Op == OpPut {
		size += 4 + len(e.Value)
	}

	buf := make([]byte, size)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], e.LSN)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(e.TimestampMillis))
	off += 8
	buf[off] = byte(e.Op)
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Key)))
	off += 4
	off += copy(buf[off:], e.Key)

	switch e.Op {
	case OpPut:
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Value)))
		off += 4
		off += copy(buf[off:], e.Value)
	case OpDelete:
		// no value section
	default:
		return nil, fmt.Errorf("unknown op %d", e.Op)
	}

	return buf[:off], nil
}

// decodeData is the inverse of encodeData.
func decodeData(buf []byte) (Entry, error) {
	const minLen = 8 + 8 + 1 + 4
	if len(buf) < minLen {
		return Entry{}, fmt.Errorf("data section too short")
	}

	var e Entry
	off := 0
	e.LSN = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.TimestampMillis = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	e.Op = Op(buf[off])
	off++

	keyLen := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if uint64(off)+uint64(keyLen) > uint64(len(buf)) {
		return Entry{}, fmt.Errorf("key length %d exceeds data section", keyLen)
	}
	e.Key = append([]byte(nil), buf[off:off+int(keyLen)]...)
	off += int(keyLen)

	switch e.Op {
	case OpPut:
		if off+4 > len(buf) {
			return Entry{}, fmt.Errorf("missing value length")
		}
		valLen := binary.LittleEndian.Uint32(buf[off:])
		off += 4
		if uint64(off)+uint64(valLen) > uint64(len(buf)) {
			return Entry{}, fmt.Errorf("value length %d exceeds data section", valLen)
		}
		e.Value = append([]byte(nil), buf[off:off+int(valLen)]...)
		off += int(valLen)
	case OpDelete:
		e.Value = nil
	default:
		return Entry{}, fmt.Errorf("unknown op %d", e.Op)
	}

	if off != len(buf) {
		return Entry{}, fmt.Errorf("trailing %d bytes in data section", len(buf)-off)
	}

	return e, nil
}
