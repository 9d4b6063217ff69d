// Package storage manages the on-disk collection of SSTables produced by
// memtable flushes, described in spec.md §4.7.
//
// Grounded on nyasuto-moz/internal/lsm/lsm_tree.go's LSMTree, which keeps
// a per-level []*SSTable slice behind a sync.RWMutex and a monotonic
// nextSSTableID. AtlasKV has a single flat, newest-first list instead of
// LSMTree's leveled hierarchy, since compaction and multi-level
// promotion are explicit spec Non-goals; what survives is the ordered
// list, the id allocator, and the flush-under-lock discipline.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/atlaskv/atlaskv/internal/atlaserr"
	"github.com/atlaskv/atlaskv/internal/logkv"
	"github.com/atlaskv/atlaskv/internal/memtable"
	"github.com/atlaskv/atlaskv/internal/sstable"
)

var log = logkv.With("storage")

var sstableNamePattern = regexp.MustCompile(`^sstable_(\d{6,})\.sst$`)

func sstableName(id uint64) string {
	return fmt.Sprintf("sstable_%06d.sst", id)
}

// Manager owns the ordered, newest-first list of on-disk SSTables and the
// id allocator for new ones. A read-write lock guards the list: Get only
// holds the read side while copying the list, and readers serve lookups
// through positional reads, so concurrent Gets against different (or the
// same) readers don't serialize on Manager's lock.
type Manager struct {
	mu sync.RWMutex

	dir     string
	readers []*sstable.Reader // newest first
	nextID  uint64
}

// Open scans dir for existing sstable_NNNNNN.sst files, opens a Reader
// for each, orders them newest-first, and resumes the id allocator from
// the highest id observed.
func Open(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage dir: %v", atlaserr.ErrStorage, err)
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read storage dir: %v", atlaserr.ErrStorage, err)
	}

	type idFile struct {
		id   uint64
		path string
	}
	var found []idFile
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m := sstableNamePattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		found = append(found, idFile{id: id, path: filepath.Join(dir, f.Name())})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].id > found[j].id })

	m := &Manager{dir: dir}
	for _, ff := range found {
		r, err := sstable.Open(ff.path)
		if err != nil {
			for _, opened := range m.readers {
				opened.Close()
			}
			return nil, err
		}
		m.readers = append(m.readers, r)
		if ff.id >= m.nextID {
			m.nextID = ff.id + 1
		}
	}

	log.WithField("dir", dir).WithField("sstables", len(m.readers)).Info("storage manager opened")
	return m, nil
}

// Get looks up key across every SSTable, newest first, applying each
// table's [min,max] pre-filter before touching disk. It returns
// (value, true, nil) for a live value, (nil, true, nil) for a tombstone
// (meaning the key was deleted and must not be considered present), and
// (nil, false, nil) if the key is absent from every table.
func (m *Manager) Get(key []byte) ([]byte, bool, error) {
	m.mu.RLock()
	readers := make([]*sstable.Reader, len(m.readers))
	copy(readers, m.readers)
	m.mu.RUnlock()

	for _, r := range readers {
		if !r.ContainsKey(key) {
			continue
		}
		value, found, err := r.Get(key)
		if err != nil {
			return nil, false, err
		}
		if found {
			return value, true, nil
		}
	}
	return nil, false, nil
}

// Flush builds a new SSTable from mt's current contents and installs it
// as the newest table. The memtable's entries must already be sorted by
// key, which memtable.Iter guarantees. Flushing an empty memtable is
// rejected with ErrStorage; the engine checks IsEmpty before calling.
func (m *Manager) Flush(mt *memtable.MemTable) (sstable.Handle, error) {
	entries := mt.Iter()
	if len(entries) == 0 {
		return sstable.Handle{}, fmt.Errorf("%w: refusing to flush an empty memtable", atlaserr.ErrStorage)
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.mu.Unlock()

	path := filepath.Join(m.dir, sstableName(id))
	b, err := sstable.New(path)
	if err != nil {
		return sstable.Handle{}, err
	}

	for _, kv := range entries {
		switch kv.Entry.Kind {
		case memtable.KindTombstone:
			err = b.AddTombstone(kv.Key)
		default:
			err = b.Add(kv.Key, kv.Entry.Value)
		}
		if err != nil {
			b.Abort()
			return sstable.Handle{}, err
		}
	}

	handle, err := b.Finish()
	if err != nil {
		b.Abort()
		return sstable.Handle{}, err
	}

	r, err := sstable.Open(path)
	if err != nil {
		return sstable.Handle{}, err
	}

	m.mu.Lock()
	m.readers = append([]*sstable.Reader{r}, m.readers...)
	m.mu.Unlock()

	log.WithField("id", id).WithField("entries", handle.EntryCount).Info("flushed sstable")
	return handle, nil
}

// TableCount returns the number of on-disk SSTables currently tracked.
func (m *Manager) TableCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.readers)
}

// Close releases every open Reader's file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for _, r := range m.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
