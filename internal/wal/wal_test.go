package wal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlaskv/atlaskv/internal/config"
	"github.com/atlaskv/atlaskv/internal/wal"
	"github.com/atlaskv/atlaskv/internal/walrecord"
)

func TestAppendAllocatesIncreasingLSNs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := wal.Open(path, config.EveryWriteStrategy())
	require.NoError(t, err)
	defer w.Close()

	lsn1, err := w.Append(walrecord.OpPut, []byte("a"), []byte("1"), 100)
	require.NoError(t, err)
	lsn2, err := w.Append(walrecord.OpPut, []byte("b"), []byte("2"), 101)
	require.NoError(t, err)

	require.Greater(t, lsn2, lsn1)
}

func TestRecoverReplaysAllAppendedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := wal.Open(path, config.EveryWriteStrategy())
	require.NoError(t, err)

	_, err = w.Append(walrecord.OpPut, []byte("a"), []byte("1"), 1)
	require.NoError(t, err)
	_, err = w.Append(walrecord.OpDelete, []byte("a"), nil, 2)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, stats, err := wal.Recover(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, 2, stats.EntriesRecovered)
	require.Equal(t, 0, stats.EntriesCorrupted)
	require.False(t, stats.WasTruncated)
}

func TestRecoverOnMissingFileReturnsEmpty(t *testing.T) {
	entries, stats, err := wal.Recover(filepath.Join(t.TempDir(), "missing.log"))
	require.NoError(t, err)
	require.Empty(t, entries)
	require.Equal(t, 0, stats.EntriesRecovered)
}

func TestRecoverTreatsTrailingPartialWriteAsTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := wal.Open(path, config.EveryWriteStrategy())
	require.NoError(t, err)
	_, err = w.Append(walrecord.OpPut, []byte("a"), []byte("1"), 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Simulate a crash mid-write: append a handful of extra bytes that
	// can't possibly form a full record.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.Write([]byte{1, 2, 3})
	require.NoError(t, f.Close())

	entries, stats, err := wal.Recover(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, 1, stats.EntriesRecovered)
	require.Equal(t, 0, stats.EntriesCorrupted)
	require.True(t, stats.WasTruncated)
}

func TestRecoverHaltsOnCorruptionWithoutSkipping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := wal.Open(path, config.EveryWriteStrategy())
	require.NoError(t, err)
	_, err = w.Append(walrecord.OpPut, []byte("a"), []byte("1"), 1)
	require.NoError(t, err)
	_, err = w.Append(walrecord.OpPut, []byte("b"), []byte("2"), 2)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF // corrupt the last record's trailing byte
	require.NoError(t, os.WriteFile(path, data, 0o600))

	entries, stats, err := wal.Recover(path)
	require.NoError(t, err)
	require.Len(t, entries, 1) // only the first, uncorrupted record
	require.Equal(t, 1, stats.EntriesRecovered)
	require.Equal(t, 1, stats.EntriesCorrupted)
	require.True(t, stats.WasTruncated)
}

func TestTruncateResetsLSNEpoch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")
	w, err := wal.Open(path, config.EveryWriteStrategy())
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Append(walrecord.OpPut, []byte("a"), []byte("1"), 1)
	require.NoError(t, err)
	_, err = w.Append(walrecord.OpPut, []byte("b"), []byte("2"), 2)
	require.NoError(t, err)

	require.NoError(t, w.Truncate())
	require.Equal(t, uint64(1), w.NextLSN())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}
