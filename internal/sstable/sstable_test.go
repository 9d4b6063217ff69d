package sstable_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlaskv/atlaskv/internal/sstable"
)

func buildTable(t *testing.T, entries []sstable.Entry) (*sstable.Reader, sstable.Handle) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sstable_000001.sst")

	b, err := sstable.New(path)
	require.NoError(t, err)

	for _, e := range entries {
		if e.Tombstone {
			require.NoError(t, b.AddTombstone(e.Key))
		} else {
			require.NoError(t, b.Add(e.Key, e.Value))
		}
	}

	handle, err := b.Finish()
	require.NoError(t, err)

	r, err := sstable.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	return r, handle
}

func TestBuilderAndReaderRoundTrip(t *testing.T) {
	entries := []sstable.Entry{
		{Key: []byte("alpha"), Value: []byte("1")},
		{Key: []byte("bravo"), Value: []byte("2")},
		{Key: []byte("charlie"), Tombstone: true},
		{Key: []byte("delta"), Value: []byte("4")},
	}
	r, handle := buildTable(t, entries)

	require.Equal(t, uint64(4), handle.EntryCount)
	require.Equal(t, []byte("alpha"), handle.MinKey)
	require.Equal(t, []byte("delta"), handle.MaxKey)

	v, ok, err := r.Get([]byte("alpha"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v)

	v, ok, err = r.Get([]byte("charlie"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Nil(t, v) // tombstone: present but deleted

	v, ok, err = r.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, v)
}

func TestReaderContainsKeyPreFilter(t *testing.T) {
	r, _ := buildTable(t, []sstable.Entry{
		{Key: []byte("m"), Value: []byte("1")},
		{Key: []byte("n"), Value: []byte("2")},
	})

	require.True(t, r.ContainsKey([]byte("m")))
	require.True(t, r.ContainsKey([]byte("n")))
	require.False(t, r.ContainsKey([]byte("a")))
	require.False(t, r.ContainsKey([]byte("z")))
}

func TestReaderIteratorPreservesOrder(t *testing.T) {
	r, _ := buildTable(t, []sstable.Entry{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Tombstone: true},
		{Key: []byte("c"), Value: []byte("3")},
	})

	entries, err := r.Iterator()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, []byte("a"), entries[0].Key)
	require.False(t, entries[0].Tombstone)
	require.Equal(t, []byte("b"), entries[1].Key)
	require.True(t, entries[1].Tombstone)
	require.Equal(t, []byte("c"), entries[2].Key)
}

func TestBuilderRejectsOutOfOrderKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sstable_000002.sst")
	b, err := sstable.New(path)
	require.NoError(t, err)

	require.NoError(t, b.Add([]byte("b"), []byte("1")))
	err = b.Add([]byte("a"), []byte("2"))
	require.Error(t, err)
}

func TestReaderVerifyDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sstable_000003.sst")
	b, err := sstable.New(path)
	require.NoError(t, err)
	require.NoError(t, b.Add([]byte("k"), []byte("v")))
	_, err = b.Finish()
	require.NoError(t, err)

	r, err := sstable.Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Verify())

	// Flip the value byte: header, 8-byte entry header, 1-byte key "k".
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[sstable.HeaderSize+8+1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	corrupted, err := sstable.Open(path)
	require.NoError(t, err)
	defer corrupted.Close()

	require.Error(t, corrupted.Verify())
}
