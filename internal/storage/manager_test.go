package storage_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlaskv/atlaskv/internal/memtable"
	"github.com/atlaskv/atlaskv/internal/storage"
)

func TestFlushAndGetRoundTrip(t *testing.T) {
	m, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	mt := memtable.New()
	mt.Put([]byte("alpha"), []byte("1"))
	mt.Put([]byte("bravo"), []byte("2"))

	_, err = m.Flush(mt)
	require.NoError(t, err)
	require.Equal(t, 1, m.TableCount())

	v, found, err := m.Get([]byte("alpha"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)

	_, found, err = m.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestFlushRejectsEmptyMemtable(t *testing.T) {
	m, err := storage.Open(t.TempDir())
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Flush(memtable.New())
	require.Error(t, err)
}

func TestNewerSSTableShadowsOlder(t *testing.T) {
	dir := t.TempDir()
	m, err := storage.Open(dir)
	require.NoError(t, err)
	defer m.Close()

	first := memtable.New()
	first.Put([]byte("k"), []byte("old"))
	_, err = m.Flush(first)
	require.NoError(t, err)

	second := memtable.New()
	second.Put([]byte("k"), []byte("new"))
	_, err = m.Flush(second)
	require.NoError(t, err)

	v, found, err := m.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("new"), v)
}

func TestDeleteTombstoneShadowsOlderSSTable(t *testing.T) {
	dir := t.TempDir()
	m, err := storage.Open(dir)
	require.NoError(t, err)
	defer m.Close()

	first := memtable.New()
	first.Put([]byte("k"), []byte("v"))
	_, err = m.Flush(first)
	require.NoError(t, err)

	second := memtable.New()
	second.Delete([]byte("k"))
	_, err = m.Flush(second)
	require.NoError(t, err)

	v, found, err := m.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Nil(t, v)
}

func TestReopenResumesIDAllocator(t *testing.T) {
	dir := t.TempDir()
	m, err := storage.Open(dir)
	require.NoError(t, err)

	mt := memtable.New()
	mt.Put([]byte("a"), []byte("1"))
	_, err = m.Flush(mt)
	require.NoError(t, err)
	require.NoError(t, m.Close())

	reopened, err := storage.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 1, reopened.TableCount())

	mt2 := memtable.New()
	mt2.Put([]byte("b"), []byte("2"))
	_, err = reopened.Flush(mt2)
	require.NoError(t, err)
	require.Equal(t, 2, reopened.TableCount())

	// Reusing the old id would overwrite the first table's file.
	v, found, err := reopened.Get([]byte("a"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("1"), v)

	v, found, err = reopened.Get([]byte("b"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("2"), v)
}
