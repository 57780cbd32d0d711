// Package assets reads model and texture files out of GRF archives and
// caches them, so textures shared by many models are decompressed once per
// run.
package assets

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/tmdl/internal/importer"
	"github.com/Faultbox/tmdl/pkg/encoding"
	"github.com/Faultbox/tmdl/pkg/grf"
)

// Manager is an importer.Source over a set of GRF archives.
type Manager struct {
	archives []*grf.Archive
	cache    *Cache
	log      *zap.Logger
	mu       sync.RWMutex
}

// NewManager creates an empty manager.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		cache: NewCache(),
		log:   log,
	}
}

// AddArchive opens a GRF archive and adds it to the manager.
// Archives are searched in reverse order (last added = highest priority).
func (m *Manager) AddArchive(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening archive %s", path)
	}
	m.Add(archive)
	m.log.Info("opened archive", zap.String("path", path), zap.Int("files", archive.Len()))
	return nil
}

// Add adds an already opened archive. The manager closes it on Close.
func (m *Manager) Add(archive *grf.Archive) {
	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()
}

// Len returns the number of archives.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.archives)
}

// Read implements importer.Source. Hits are served from the cache.
func (m *Manager) Read(name string) ([]byte, error) {
	key := encoding.NormalizeGRFPath(name)
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		data, err := m.archives[i].Read(name)
		switch {
		case err == nil:
			m.cache.Set(key, data)
			return data, nil
		case errors.Is(err, grf.ErrNotFound):
			continue
		default:
			return nil, errors.Wrapf(err, "reading %s", name)
		}
	}
	return nil, errors.Wrap(importer.ErrNotFound, name)
}

// Close closes all archives and logs the cache statistics.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, archive := range m.archives {
		err = multierr.Append(err, archive.Close())
	}
	m.archives = nil

	hits, misses := m.cache.Stats()
	m.log.Debug("archive cache", zap.Int("hits", hits), zap.Int("misses", misses))
	m.cache.Clear()
	return err
}

// Cache is a simple in-memory cache for loaded files.
type Cache struct {
	data map[string][]byte
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Clear clears the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string][]byte)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
