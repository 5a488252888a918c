// -----------------------------------------------------------------------------
// Memory Cache Driver
// -----------------------------------------------------------------------------
// In-memory cache implementation (non-persistent). Testler, tek process'li
// kurulumlar ve geliştirme ortamı içindir.
//
// Sınırlamalar:
// - Non-persistent (restart'ta kaybolur)
// - Single-server only (distributed değil)
// -----------------------------------------------------------------------------

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// memoryEntry, memory'de saklanan veri yapısı.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero value = süresiz
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore, in-memory Store implementation.
type MemoryStore struct {
	mu     sync.RWMutex
	store  map[string]*memoryEntry
	logger Logger
	hits   atomic.Int64
	misses atomic.Int64
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryStore, yeni bir memory store oluşturur ve süresi dolan kayıtları
// cleanupInterval aralıklarla temizleyen goroutine'i başlatır.
//
// Shutdown:
//
//	store := cache.NewMemoryStore(logger, time.Minute)
//	defer store.Close()
func NewMemoryStore(logger Logger, cleanupInterval time.Duration) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	m := &MemoryStore{
		store:  make(map[string]*memoryEntry),
		logger: logger,
		stop:   make(chan struct{}),
	}
	go m.startGarbageCollection(cleanupInterval)
	logger.Println("✅ Memory cache başlatıldı")
	return m
}

// Get, cache'den veri okur. Dönen slice kopyadır.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, exists := m.store[key]
	m.mu.RUnlock()

	if !exists || entry.expired(time.Now()) {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return append([]byte(nil), entry.value...), true, nil
}

// Set, cache'e veri yazar.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = &memoryEntry{value: append([]byte(nil), value...), expiresAt: expiresAt}
	return nil
}

// Delete, cache'den veri siler.
func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.store, key)
	}
	return nil
}

// Flush, tüm cache'i temizler.
func (m *MemoryStore) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = make(map[string]*memoryEntry)
	return nil
}

// Size, saklanan kayıt sayısını döndürür (süresi dolmuş ama henüz
// temizlenmemiş kayıtlar dahil).
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// Stats, hit/miss ve boyut bilgisini döndürür.
func (m *MemoryStore) Stats() map[string]interface{} {
	return map[string]interface{}{
		"driver": "memory",
		"hits":   m.hits.Load(),
		"misses": m.misses.Load(),
		"size":   m.Size(),
	}
}

// Close, temizlik goroutine'ini durdurur. Birden fazla çağrılabilir.
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

func (m *MemoryStore) startGarbageCollection(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanExpiredEntries()
		case <-m.stop:
			return
		}
	}
}

func (m *MemoryStore) cleanExpiredEntries() {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.store {
		if entry.expired(now) {
			delete(m.store, key)
		}
	}
}
