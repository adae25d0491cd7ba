package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/rs/zerolog"
)

const participantsCollection = "participants"

// ParticipantRepository stores participants and organizers in one collection file.
type ParticipantRepository struct {
	c *collection[*model.Participant, participantRecord]
}

// NewParticipantRepository loads the participants file at path. A missing
// file is created empty; a malformed file returns an error wrapping
// ErrMalformedStorage.
func NewParticipantRepository(path string, logger zerolog.Logger) (*ParticipantRepository, error) {
	r := &ParticipantRepository{c: newCollection(participantsCollection, path, encodeParticipant, logger)}

	records, err := r.c.file.load()
	if err != nil {
		if !isWriteFailure(err) {
			return nil, fmt.Errorf("load participants: %w", err)
		}
		r.c.writeFailed(err)
	}

	for _, record := range records {
		if record.ID == "" {
			record.ID = model.NewID()
		}
		p, err := record.decode()
		if err != nil {
			return nil, fmt.Errorf("load participants: %w", err)
		}
		r.c.put(p.ID, p)
	}

	r.c.logger.Info().Int("count", len(r.c.items)).Str("path", path).Msg("participants loaded")
	return r, nil
}

// Save assigns an id if absent, upserts p and rewrites the file.
func (r *ParticipantRepository) Save(p *model.Participant) *model.Participant {
	r.SaveAll(p)
	return p
}

// SaveAll upserts every participant and rewrites the file once.
func (r *ParticipantRepository) SaveAll(ps ...*model.Participant) {
	if len(ps) == 0 {
		return
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	for _, p := range ps {
		if p.ID == "" {
			p.ID = model.NewID()
		}
		r.c.put(p.ID, p)
	}
	r.c.persist()
}

// FindByID returns the participant with id or ErrNotFound.
func (r *ParticipantRepository) FindByID(id string) (*model.Participant, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	p, ok := r.c.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// FindAll returns a snapshot of every participant.
func (r *ParticipantRepository) FindAll() []*model.Participant {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.all()
}

// ExistsByID reports whether a participant with id is stored.
func (r *ParticipantRepository) ExistsByID(id string) bool {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	_, ok := r.c.get(id)
	return ok
}

// Delete removes p and rewrites the file.
func (r *ParticipantRepository) Delete(p *model.Participant) bool {
	return r.DeleteByID(p.ID)
}

// DeleteByID removes the participant with id and rewrites the file.
func (r *ParticipantRepository) DeleteByID(id string) bool {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	if !r.c.remove(id) {
		return false
	}
	r.c.persist()
	return true
}

// Count returns the number of stored participants.
func (r *ParticipantRepository) Count() int {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return len(r.c.items)
}

// FindByEmail returns the participant with exactly this email or ErrNotFound.
func (r *ParticipantRepository) FindByEmail(email string) (*model.Participant, error) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	for _, p := range r.c.all() {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// ExistsByEmail reports whether a participant uses exactly this email.
func (r *ParticipantRepository) ExistsByEmail(email string) bool {
	_, err := r.FindByEmail(email)
	return err == nil
}

// SearchByName returns participants whose name contains s, ignoring case.
func (r *ParticipantRepository) SearchByName(s string) []*model.Participant {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	needle := strings.ToLower(s)
	var out []*model.Participant
	for _, p := range r.c.all() {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

func isWriteFailure(err error) bool {
	return errors.Is(err, ErrPersistenceWrite)
}
