package cache

import "sync"

// ObjectiveCache maps objective names to their database IDs for the current battle
type ObjectiveCache struct {
	mu         sync.RWMutex
	objectives map[string]uint
}

// NewObjectiveCache creates a new ObjectiveCache
func NewObjectiveCache() *ObjectiveCache {
	return &ObjectiveCache{
		objectives: make(map[string]uint),
	}
}

// Get retrieves an objective ID by name
func (c *ObjectiveCache) Get(name string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.objectives[name]
	return id, ok
}

// Set stores an objective ID by name
func (c *ObjectiveCache) Set(name string, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objectives[name] = id
}

// Delete removes an objective by name
func (c *ObjectiveCache) Delete(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objectives, name)
}

// Reset clears all objectives from the cache
func (c *ObjectiveCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objectives = make(map[string]uint)
}
