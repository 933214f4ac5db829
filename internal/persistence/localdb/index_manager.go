package localdb

import (
	"os"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/snowflk/statsdb/internal/gameplay/statsfile"
)

const (
	suffixPositions    = ":positions"
	suffixMetadata     = ":meta"
	indexRetentionTime = 30 * time.Minute
	memCleanupInterval = 15 * time.Minute
)

// IndexManager caches built session indexes, record positions and decoded
// footers. Entries expire after the retention time and are loaded again on demand.
type IndexManager struct {
	rootDir   string
	retention time.Duration
	mem       *cache.Cache
	keyLocks  sync.Map
}

// NewIndexManager keeps position files under rootDir, retention 0 uses the default
func NewIndexManager(rootDir string, retention time.Duration) *IndexManager {
	if retention <= 0 {
		retention = indexRetentionTime
	}
	return &IndexManager{
		rootDir:   rootDir,
		retention: retention,
		mem:       cache.New(retention, memCleanupInterval),
	}
}

// load returns the cached value of key or stores what loader returns.
// Concurrent loads of one key wait for the first.
func (m *IndexManager) load(key string, loader func() (interface{}, error)) (interface{}, error) {
	if v, ok := m.mem.Get(key); ok {
		return v, nil
	}
	m.wLock(key)
	defer m.wUnlock(key)
	if v, ok := m.mem.Get(key); ok {
		return v, nil
	}
	v, err := loader()
	if err != nil {
		return nil, err
	}
	m.mem.Set(key, v, m.retention)
	return v, nil
}

// Index returns the session index of key, building it with loader on a miss
func (m *IndexManager) Index(key string, loader func() (*SessionIndex, error)) (*SessionIndex, error) {
	v, err := m.load(key, func() (interface{}, error) { return loader() })
	if err != nil {
		return nil, err
	}
	return v.(*SessionIndex), nil
}

func (m *IndexManager) PutIndex(index *SessionIndex) {
	m.mem.Set(index.Key, index, m.retention)
}

// Metadata returns the footer of a session, decoding it with loader on a miss
func (m *IndexManager) Metadata(key string, loader func() (*statsfile.Metadata, error)) (*statsfile.Metadata, error) {
	v, err := m.load(key+suffixMetadata, func() (interface{}, error) { return loader() })
	if err != nil {
		return nil, err
	}
	return v.(*statsfile.Metadata), nil
}

// Positions returns the record offsets of a local session from its position file
func (m *IndexManager) Positions(key string) ([]int64, error) {
	v, err := m.load(key+suffixPositions, func() (interface{}, error) {
		if _, err := os.Stat(positionPath(m.rootDir, key)); os.IsNotExist(err) {
			return []int64{}, nil
		}
		idx, err := openPositions(m.rootDir, key)
		if err != nil {
			return nil, err
		}
		defer idx.Close()
		return idx.Read(0, 0)
	})
	if err != nil {
		return nil, err
	}
	return v.([]int64), nil
}

// WritePositions replaces the position file of a session
func (m *IndexManager) WritePositions(key string, positions []int64) error {
	m.wLock(key + suffixPositions)
	defer m.wUnlock(key + suffixPositions)
	if err := writePositions(m.rootDir, key, positions); err != nil {
		return err
	}
	m.mem.Set(key+suffixPositions, append([]int64(nil), positions...), m.retention)
	return nil
}

// Clear drops everything cached for a session and its position file
func (m *IndexManager) Clear(key string) error {
	m.wLock(key + suffixPositions)
	defer m.wUnlock(key + suffixPositions)
	m.mem.Delete(key)
	m.mem.Delete(key + suffixMetadata)
	m.mem.Delete(key + suffixPositions)
	return deletePositions(m.rootDir, key)
}

func (m *IndexManager) wLock(key string) {
	lock, _ := m.keyLocks.LoadOrStore(key, new(sync.Mutex))
	lock.(*sync.Mutex).Lock()
}

func (m *IndexManager) wUnlock(key string) {
	lock, _ := m.keyLocks.LoadOrStore(key, new(sync.Mutex))
	lock.(*sync.Mutex).Unlock()
}

func (m *IndexManager) Shutdown() {
	m.mem.Flush()
}
