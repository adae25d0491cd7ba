// Package repository persists the entity graph as one pretty-printed JSON
// array per collection. Each collection is held in memory, keyed by id, and
// every mutation rewrites the whole backing file.
package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrMalformedStorage is returned when a collection file cannot be decoded.
// It is fatal for the repository that hit it.
var ErrMalformedStorage = errors.New("malformed storage")

// ErrPersistenceWrite marks a failed snapshot write. It is logged, never
// returned to callers; the in-memory state stays ahead of the file until the
// next successful write.
var ErrPersistenceWrite = errors.New("persistence write failure")

// snapshotFile reads and rewrites a JSON array of records.
type snapshotFile[R any] struct {
	path string
}

// load returns the records in the file. A missing file yields no records and
// is created as an empty array; if creating it fails the returned error wraps
// ErrPersistenceWrite.
func (f snapshotFile[R]) load() ([]R, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, f.write(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []R
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedStorage, f.path, err)
	}
	return records, nil
}

// write replaces the file with records via a temp file and rename.
func (f snapshotFile[R]) write(records []R) error {
	if records == nil {
		records = []R{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersistenceWrite, f.path, err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrPersistenceWrite, dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceWrite, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %v", ErrPersistenceWrite, tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", ErrPersistenceWrite, tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("%w: rename to %s: %v", ErrPersistenceWrite, f.path, err)
	}
	return nil
}

// collection is the in-memory map behind a repository, kept in insertion
// order so snapshots are stable between writes.
type collection[E any, R any] struct {
	name   string
	mu     sync.RWMutex
	file   snapshotFile[R]
	items  map[string]E
	order  []string
	encode func(E) (R, error)
	logger zerolog.Logger
}

func newCollection[E any, R any](name, path string, encode func(E) (R, error), logger zerolog.Logger) *collection[E, R] {
	return &collection[E, R]{
		name:   name,
		file:   snapshotFile[R]{path: path},
		items:  make(map[string]E),
		encode: encode,
		logger: logger.With().Str("component", "repository").Str("collection", name).Logger(),
	}
}

// get must be called with mu held.
func (c *collection[E, R]) get(id string) (E, bool) {
	item, ok := c.items[id]
	return item, ok
}

// all must be called with mu held.
func (c *collection[E, R]) all() []E {
	out := make([]E, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// put must be called with mu held for writing.
func (c *collection[E, R]) put(id string, item E) {
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = item
}

// remove must be called with mu held for writing.
func (c *collection[E, R]) remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// persist rewrites the backing file from the current map. Failures are
// logged and counted; the in-memory mutation is kept. Must be called with mu
// held for writing.
func (c *collection[E, R]) persist() {
	metrics.StoreRecords.WithLabelValues(c.name).Set(float64(len(c.items)))

	records := make([]R, 0, len(c.order))
	for _, id := range c.order {
		record, err := c.encode(c.items[id])
		if err != nil {
			c.writeFailed(fmt.Errorf("%w: encode %s: %v", ErrPersistenceWrite, id, err))
			return
		}
		records = append(records, record)
	}
	if err := c.file.write(records); err != nil {
		c.writeFailed(err)
		return
	}
	metrics.StoreWrites.WithLabelValues(c.name, "ok").Inc()
	c.logger.Debug().Int("records", len(records)).Str("path", c.file.path).Msg("snapshot written")
}

func (c *collection[E, R]) writeFailed(err error) {
	metrics.StoreWrites.WithLabelValues(c.name, "error").Inc()
	c.logger.Error().Err(err).Str("path", c.file.path).Msg("snapshot write failed; in-memory state kept")
}
