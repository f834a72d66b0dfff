package cache

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
)

// Memory — in-memory кэш чтения, защищённый RWMutex.
type Memory struct {
	mu         sync.RWMutex
	generation uint64
	entries    map[string]domain.CacheEntry
}

// NewMemory создаёт пустой in-memory кэш.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]domain.CacheEntry)}
}

// Generation возвращает текущее поколение.
func (c *Memory) Generation(_ context.Context) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation, nil
}

// Get возвращает копию записи, чтобы вызывающий код не мог изменить кэш.
func (c *Memory) Get(_ context.Context, key string) (domain.CacheEntry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.CacheEntry{}, false, nil
	}
	return cloneEntry(entry), true, nil
}

// Set сохраняет запись, если с момента чтения gen кэш не очищался.
func (c *Memory) Set(_ context.Context, gen uint64, key string, entry domain.CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return nil
	}
	c.entries[key] = cloneEntry(entry)
	return nil
}

// InvalidateAll удаляет все записи и переводит кэш в новое поколение.
func (c *Memory) InvalidateAll(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries = make(map[string]domain.CacheEntry)
	return nil
}

// Len возвращает количество записей.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cloneEntry(entry domain.CacheEntry) domain.CacheEntry {
	entry.Order = entry.Order.Clone()
	if entry.Orders != nil {
		orders := make([]domain.EnrichedOrderView, len(entry.Orders))
		for i, o := range entry.Orders {
			orders[i] = o.Clone()
		}
		entry.Orders = orders
	}
	return entry
}

var _ domain.ReadCache = (*Memory)(nil)
