package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ParticipantService manages participants and organizers.
type ParticipantService struct {
	// mu guards the entity graph shared with EventService.
	mu       *sync.RWMutex
	repo     *repository.ParticipantRepository
	validate *validator.Validate
	logger   zerolog.Logger

	// detach removes a participant from every event before it is deleted.
	// Set by NewEventService; must be called with mu held.
	detach func(p *model.Participant)
}

// ParticipantUpdate carries the mutable fields of a participant.
type ParticipantUpdate struct {
	Name  string `validate:"required"`
	Email string `validate:"required,email"`
}

// NewParticipantService creates a ParticipantService with its own entity lock.
func NewParticipantService(repo *repository.ParticipantRepository, logger zerolog.Logger) *ParticipantService {
	return &ParticipantService{
		mu:       new(sync.RWMutex),
		repo:     repo,
		validate: newValidator(),
		logger:   logger.With().Str("component", "participants").Logger(),
	}
}

// Create validates p, enforces email uniqueness and persists it.
func (s *ParticipantService) Create(ctx context.Context, p *model.Participant) (*model.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.prepare(p); err != nil {
		return nil, err
	}
	if err := s.checkEmail(p.Email, p.ID); err != nil {
		return nil, err
	}
	s.repo.Save(p)

	logger := loggerFor(ctx, s.logger, "participants")
	logger.Info().
		Str("participant_id", p.ID).
		Str("kind", string(p.Kind)).
		Msg("participant created")
	return p, nil
}

// Get returns the participant with id.
func (s *ParticipantService) Get(ctx context.Context, id string) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// GetByEmail returns the participant with exactly this email.
func (s *ParticipantService) GetByEmail(ctx context.Context, email string) (*model.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.repo.FindByEmail(strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("participant with email %s: %w", email, err)
	}
	return p, nil
}

// List returns every participant in insertion order.
func (s *ParticipantService) List(ctx context.Context) []*model.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.FindAll()
}

// Update overwrites name and email.
func (s *ParticipantService) Update(ctx context.Context, id string, update ParticipantUpdate) (*model.Participant, error) {
	update.Name = strings.TrimSpace(update.Name)
	update.Email = strings.TrimSpace(update.Email)
	if err := s.validate.Struct(update); err != nil {
		return nil, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if err := s.checkEmail(update.Email, p.ID); err != nil {
		return nil, err
	}
	p.Name = update.Name
	p.Email = update.Email
	s.repo.Save(p)
	return p, nil
}

// Delete removes the participant after detaching it from every event that
// enrolls it, lists it as a speaker or is organized by it.
func (s *ParticipantService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.get(id)
	if err != nil {
		return err
	}
	if s.detach != nil {
		s.detach(p)
	}
	s.repo.Delete(p)

	logger := loggerFor(ctx, s.logger, "participants")
	logger.Info().Str("participant_id", id).Msg("participant deleted")
	return nil
}

// Search returns participants whose name contains name, ignoring case.
func (s *ParticipantService) Search(ctx context.Context, name string) []*model.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo.SearchByName(strings.TrimSpace(name))
}

// Read runs fn while holding the entity lock for reading, so fn can inspect
// entities returned by either service without racing their writers.
func (s *ParticipantService) Read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// get must be called with mu held.
func (s *ParticipantService) get(id string) (*model.Participant, error) {
	p, err := s.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("participant %s: %w", id, err)
	}
	return p, nil
}

// resolve returns the stored participant matching p, creating p when it is
// not stored yet. Must be called with mu held for writing.
func (s *ParticipantService) resolve(p *model.Participant) (*model.Participant, error) {
	if p == nil {
		return nil, ValidationError{Err: errors.New("participant is required")}
	}
	if p.ID != "" {
		if stored, err := s.repo.FindByID(p.ID); err == nil {
			return stored, nil
		}
	}
	if err := s.prepare(p); err != nil {
		return nil, err
	}
	if err := s.checkEmail(p.Email, p.ID); err != nil {
		return nil, err
	}
	return s.repo.Save(p), nil
}

func (s *ParticipantService) prepare(p *model.Participant) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	if p.Kind == "" {
		p.Kind = model.KindParticipant
	}
	if p.Kind == model.KindOrganizer && p.Organizer == nil {
		p.Organizer = &model.OrganizerDetails{}
	}
	if err := s.validate.Struct(p); err != nil {
		return validationError(err)
	}
	return nil
}

func (s *ParticipantService) checkEmail(email, selfID string) error {
	existing, err := s.repo.FindByEmail(email)
	if err == nil && existing.ID != selfID {
		return ErrDuplicateEmail
	}
	return nil
}
