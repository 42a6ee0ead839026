package repository

import (
	"sync"
	"time"
)

// MemoryRevocationCache — локальный кэш отметок отзыва токенов.
// Проверка токена — чистое чтение под RLock, писатели (отзыв, события
// с шины, sweep) сериализуются. Каждый процесс держит собственный
// экземпляр и сходится с остальными через шину событий.
type MemoryRevocationCache struct {
	mu      sync.RWMutex
	markers map[int64]time.Time
}

func NewMemoryRevocationCache() *MemoryRevocationCache {
	return &MemoryRevocationCache{
		markers: make(map[int64]time.Time),
	}
}

func (c *MemoryRevocationCache) Get(userID int64) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.markers[userID]
	return t, ok
}

// Set запоминает отметку отзыва. Более ранняя отметка не затирает более
// позднюю: события с шины могут приходить с опозданием.
func (c *MemoryRevocationCache) Set(userID int64, invalidationTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.markers[userID]; ok && existing.After(invalidationTime) {
		return
	}
	c.markers[userID] = invalidationTime
}

func (c *MemoryRevocationCache) Delete(userID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.markers, userID)
}

// Sweep удаляет отметки старше before, возвращает число удалённых.
func (c *MemoryRevocationCache) Sweep(before time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for userID, t := range c.markers {
		if t.Before(before) {
			delete(c.markers, userID)
			removed++
		}
	}
	return removed
}
