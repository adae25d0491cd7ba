package service

import (
	"sync"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
)

// Index is an in-memory registry of events mirroring the event store. It is
// a cache: the store stays authoritative.
type Index struct {
	mu     sync.RWMutex
	events map[string]*model.Event
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{events: make(map[string]*model.Event)}
}

// Put adds e or replaces the entry with the same id.
func (i *Index) Put(e *model.Event) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.events[e.ID] = e
	metrics.IndexedEvents.Set(float64(len(i.events)))
}

// Remove drops the event with id and reports whether it was present.
func (i *Index) Remove(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.events[id]; !ok {
		return false
	}
	delete(i.events, id)
	metrics.IndexedEvents.Set(float64(len(i.events)))
	return true
}

// Get returns the indexed event with id.
func (i *Index) Get(id string) (*model.Event, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	e, ok := i.events[id]
	return e, ok
}

// Len returns the number of indexed events.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.events)
}
