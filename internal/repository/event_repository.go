package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/rs/zerolog"
)

const eventsCollection = "events"

// ParticipantLookup resolves participant ids when events are re-linked on load.
type ParticipantLookup interface {
	FindByID(id string) (*model.Participant, error)
}

// EventRepository stores talks and performances in one collection file.
type EventRepository struct {
	c *collection[*model.Event, eventRecord]
}

// NewEventRepository loads the events file at path, re-linking participants
// through participants. A missing file is created empty; a malformed file
// returns an error wrapping ErrMalformedStorage.
func NewEventRepository(path string, participants ParticipantLookup, logger zerolog.Logger) (*EventRepository, error) {
	r := &EventRepository{c: newCollection(eventsCollection, path, encodeEvent, logger)}

	records, err := r.c.file.load()
	if err != nil {
		if !isWriteFailure(err) {
			return nil, fmt.Errorf("load events: %w", err)
		}
		r.c.writeFailed(err)
	}

	resolve := func(id string) (*model.Participant, bool) {
		p, err := participants.FindByID(id)
		return p, err == nil
	}
	for _, record := range records {
		if record.ID == "" {
			record.ID = model.NewID()
		}
		event, dangling, err := record.decode(resolve)
		if err != nil {
			return nil, fmt.Errorf("load events: %w", err)
		}
		if len(dangling) > 0 {
			r.c.logger.Warn().
				Str("event_id", event.ID).
				Strs("participant_ids", dangling).
				Msg("dropping references to unknown participants")
		}
		r.c.put(event.ID, event)
	}

	r.c.logger.Info().Int("count", len(r.c.items)).Str("path", path).Msg("events loaded")
	return r, nil
}

// Save assigns an id if absent, upserts e and rewrites the file.
func (r *EventRepository) Save(e *model.Event) *model.Event {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if e.ID == "" {
		e.ID = model.NewID()
	}
	r.c.put(e.ID, e)
	r.c.persist()
	return e
}

// FindByID returns the event with id or ErrNotFound.
func (r *EventRepository) FindByID(id string) (*model.Event, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	e, ok := r.c.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// FindAll returns a snapshot of every event.
func (r *EventRepository) FindAll() []*model.Event {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.all()
}

// ExistsByID reports whether an event with id is stored.
func (r *EventRepository) ExistsByID(id string) bool {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	_, ok := r.c.get(id)
	return ok
}

// Delete removes e and rewrites the file.
func (r *EventRepository) Delete(e *model.Event) bool {
	return r.DeleteByID(e.ID)
}

// DeleteByID removes the event with id and rewrites the file. Nothing is
// written when id is unknown.
func (r *EventRepository) DeleteByID(id string) bool {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if !r.c.remove(id) {
		return false
	}
	r.c.persist()
	return true
}

// Count returns the number of stored events.
func (r *EventRepository) Count() int {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return len(r.c.items)
}

// ExistsByNameAndDate reports whether an event with the same name and date exists.
func (r *EventRepository) ExistsByNameAndDate(name string, date time.Time) bool {
	return len(r.filter(func(e *model.Event) bool {
		return e.Name == name && e.Date.Equal(date)
	})) > 0
}

// SearchByLocation returns events whose location contains s, ignoring case.
func (r *EventRepository) SearchByLocation(s string) []*model.Event {
	needle := strings.ToLower(s)
	return r.filter(func(e *model.Event) bool {
		return strings.Contains(strings.ToLower(e.Location), needle)
	})
}

// FindActiveWithCapacityAbove returns events that are not cancelled and whose
// capacity is greater than n.
func (r *EventRepository) FindActiveWithCapacityAbove(n int) []*model.Event {
	return r.filter(func(e *model.Event) bool {
		return !e.Cancelled && e.Capacity > n
	})
}

// FindByDateAfter returns events scheduled strictly after t.
func (r *EventRepository) FindByDateAfter(t time.Time) []*model.Event {
	return r.filter(func(e *model.Event) bool {
		return e.Date.After(t)
	})
}

func (r *EventRepository) filter(keep func(*model.Event) bool) []*model.Event {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	var out []*model.Event
	for _, e := range r.c.all() {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
