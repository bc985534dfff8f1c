package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/catalog-service/internal/domain/catalog"
	"github.com/xenking/catalog-service/internal/domain/product"
)

var _ catalog.Cache = (*Memory)(nil)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process catalog.Cache with per-entry expiry. Values are
// stored encoded, so callers never share slices with the cache.
type Memory struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	store map[string]memoryEntry
}

// NewMemory returns an empty Memory cache. A non-positive ttl falls back to
// DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:   ttl,
		now:   time.Now,
		store: make(map[string]memoryEntry),
	}
}

func (m *Memory) get(key string) ([]byte, bool) {
	m.mu.RLock()
	e, ok := m.store[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.store[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.store, key)
		}
		m.mu.Unlock()
		return nil, false
	}
	return e.data, true
}

func (m *Memory) set(key string, data []byte) {
	m.mu.Lock()
	m.store[key] = memoryEntry{data: data, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
}

// cleanup removes entries that have expired.
func (m *Memory) cleanup(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, e := range m.store {
		if !now.Before(e.expiresAt) {
			delete(m.store, key)
		}
	}
}

// StartCleanup evicts expired entries every interval until ctx is done. A
// non-positive interval falls back to the cache TTL.
func (m *Memory) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.cleanup(now)
			}
		}
	}()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// GetProductList implements catalog.Cache.
func (m *Memory) GetProductList(_ context.Context, categoryID int64, offset, limit int) ([]product.Product, bool, error) {
	data, ok := m.get(ListKey(categoryID, offset, limit))
	if !ok {
		return nil, false, nil
	}
	products, err := DecodeProducts(data)
	if err != nil {
		return nil, false, err
	}
	return products, true, nil
}

// SetProductList implements catalog.Cache.
func (m *Memory) SetProductList(_ context.Context, products []product.Product, categoryID int64, offset, limit int) error {
	m.set(ListKey(categoryID, offset, limit), EncodeProducts(products))
	return nil
}

// GetProductCount implements catalog.Cache.
func (m *Memory) GetProductCount(_ context.Context, categoryID int64) (int64, bool, error) {
	data, ok := m.get(CountKey(categoryID))
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, "parse cached count")
	}
	return n, true, nil
}

// SetProductCount implements catalog.Cache.
func (m *Memory) SetProductCount(_ context.Context, count int64, categoryID int64) error {
	m.set(CountKey(categoryID), strconv.AppendInt(nil, count, 10))
	return nil
}
