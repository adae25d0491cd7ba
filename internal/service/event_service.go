package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// EventService orchestrates enrollment, cancellation and notification for
// talks and performances.
type EventService struct {
	mu       *sync.RWMutex
	events   *repository.EventRepository
	people   *ParticipantService
	index    *Index
	notifier Notifier
	validate *validator.Validate
	logger   zerolog.Logger
}

// EventUpdate carries the mutable scalar fields of an event.
type EventUpdate struct {
	Name     string    `validate:"required"`
	Date     time.Time `validate:"required"`
	Location string
	Capacity int `validate:"gt=0"`
}

// NewEventService seeds index with every stored event. It shares the entity
// lock of people, so the two services never interleave graph mutations.
//
// Participant enrollment lists are rebuilt from the stored events, which are
// authoritative, and any participant whose list disagreed is re-saved.
func NewEventService(events *repository.EventRepository, people *ParticipantService, index *Index, notifier Notifier, logger zerolog.Logger) *EventService {
	for _, e := range events.FindAll() {
		index.Put(e)
	}
	s := &EventService{
		mu:       people.mu,
		events:   events,
		people:   people,
		index:    index,
		notifier: notifier,
		validate: newValidator(),
		logger:   logger.With().Str("component", "events").Logger(),
	}
	people.mu.Lock()
	defer people.mu.Unlock()
	people.detach = s.detach
	s.reconcileEnrollments()
	return s
}

// reconcileEnrollments must be called with mu held.
func (s *EventService) reconcileEnrollments() {
	enrolled := make(map[string][]string)
	for _, e := range s.events.FindAll() {
		for _, p := range e.Participants {
			enrolled[p.ID] = append(enrolled[p.ID], e.ID)
		}
	}

	var stale []*model.Participant
	for _, p := range s.people.repo.FindAll() {
		want := enrolled[p.ID]
		if sameIDs(p.EnrolledEventIDs, want) {
			continue
		}
		s.logger.Warn().
			Str("participant_id", p.ID).
			Strs("stored", p.EnrolledEventIDs).
			Strs("rebuilt", want).
			Msg("enrollment list disagrees with events, rebuilding")
		p.EnrolledEventIDs = want
		stale = append(stale, p)
	}
	if len(stale) > 0 {
		s.people.repo.SaveAll(stale...)
	}
}

// detach removes every reference to p from the stored events and persists
// the events that changed. Must be called with mu held for writing.
func (s *EventService) detach(p *model.Participant) {
	for _, e := range s.events.FindAll() {
		if !e.Detach(p) {
			continue
		}
		s.events.Save(e)
		s.index.Put(e)
		s.logger.Debug().
			Str("event_id", e.ID).
			Str("participant_id", p.ID).
			Msg("participant detached from event")
	}
}

// Create persists a new event. It fails with ErrDuplicateEvent when an event
// with the same name and date exists. Relationships are attached afterwards
// through AddParticipant, AddSpeaker and AssignOrganizer.
func (s *EventService) Create(ctx context.Context, e *model.Event) (*model.Event, error) {
	if e == nil {
		return nil, ValidationError{Err: errors.New("event is required")}
	}
	e.Name = strings.TrimSpace(e.Name)
	e.Location = strings.TrimSpace(e.Location)
	e.Date = e.Date.UTC().Truncate(time.Second)
	e.Cancelled = false
	e.OrganizerID = ""
	e.Participants = nil
	if e.Talk != nil {
		e.Talk.Speakers = nil
	}
	if err := s.validate.Struct(e); err != nil {
		return nil, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events.ExistsByNameAndDate(e.Name, e.Date) {
		return nil, ErrDuplicateEvent
	}
	s.events.Save(e)
	s.index.Put(e)

	logger := loggerFor(ctx, s.logger, "events")
	logger.Info().
		Str("event_id", e.ID).
		Str("kind", string(e.Kind)).
		Msg("event created")
	return e, nil
}

// Get returns the event with id, consulting the index before the store.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// List returns every event in insertion order.
func (s *EventService) List(ctx context.Context) []*model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.FindAll()
}

// Update overwrites the scalar fields of an event and tells its participants.
func (s *EventService) Update(ctx context.Context, id string, update EventUpdate) (*model.Event, error) {
	update.Name = strings.TrimSpace(update.Name)
	update.Location = strings.TrimSpace(update.Location)
	update.Date = update.Date.UTC().Truncate(time.Second)
	if err := s.validate.Struct(update); err != nil {
		return nil, validationError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if update.Capacity < len(e.Participants) {
		return nil, ValidationError{Err: fmt.Errorf("capacity %d is below the %d enrolled participants", update.Capacity, len(e.Participants))}
	}
	if (update.Name != e.Name || !update.Date.Equal(e.Date)) && s.events.ExistsByNameAndDate(update.Name, update.Date) {
		return nil, ErrDuplicateEvent
	}

	e.Name = update.Name
	e.Date = update.Date
	e.Location = update.Location
	e.Capacity = update.Capacity

	logger := loggerFor(ctx, s.logger, "events")
	message := fmt.Sprintf("The event %s has been updated.", e.Name)
	s.announce(logger, e, message)
	s.events.Save(e)
	s.index.Put(e)

	logger.Info().Str("event_id", e.ID).Msg("event updated")
	return e, nil
}

// Delete removes an event after telling its participants, and detaches it
// from every participant and organizer that referenced it.
func (s *EventService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(id)
	if err != nil {
		return err
	}

	logger := loggerFor(ctx, s.logger, "events")
	message := fmt.Sprintf("The event %s has been deleted.", e.Name)
	recordBroadcastFailures(logger, e.ID, e.Broadcast(message))

	touched := make([]*model.Participant, 0, len(e.Participants)+1)
	for _, p := range e.Participants {
		p.ForgetEvent(e.ID)
		touched = append(touched, p)
	}
	if organizer := s.organizerOf(e); organizer != nil && organizer.Disown(e.ID) {
		touched = append(touched, organizer)
	}
	s.people.repo.SaveAll(touched...)

	s.index.Remove(e.ID)
	s.events.DeleteByID(e.ID)
	s.notifier.Dispatch(message, emails(e.Participants)...)

	logger.Info().Str("event_id", e.ID).Msg("event deleted")
	return nil
}

// Cancel marks an event cancelled and tells its participants.
func (s *EventService) Cancel(ctx context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	s.cancel(loggerFor(ctx, s.logger, "events"), e, e.Cancel())
	return e, nil
}

// CancelAsOrganizer cancels an event on behalf of the organizer with
// organizerID, failing with model.ErrNotOrganizer or model.ErrNotOrganizing
// when that participant may not.
func (s *EventService) CancelAsOrganizer(ctx context.Context, eventID, organizerID string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(eventID)
	if err != nil {
		return nil, err
	}
	organizer, err := s.people.get(organizerID)
	if err != nil {
		return nil, err
	}
	err = organizer.CancelOrganizedEvent(e)
	if errors.Is(err, model.ErrNotOrganizer) || errors.Is(err, model.ErrNotOrganizing) {
		return nil, err
	}
	s.cancel(loggerFor(ctx, s.logger, "events"), e, err)
	return e, nil
}

func (s *EventService) cancel(logger zerolog.Logger, e *model.Event, broadcastErr error) {
	recordBroadcastFailures(logger, e.ID, broadcastErr)
	s.people.repo.SaveAll(e.Participants...)
	s.notifier.Dispatch(e.CancellationMessage(), emails(e.Participants)...)
	s.events.Save(e)

	logger.Info().Str("event_id", e.ID).Int("participants", len(e.Participants)).Msg("event cancelled")
}

// AssignOrganizer makes the organizer with organizerID own the event,
// releasing any previous organizer.
func (s *EventService) AssignOrganizer(ctx context.Context, eventID, organizerID string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(eventID)
	if err != nil {
		return nil, err
	}
	organizer, err := s.people.get(organizerID)
	if err != nil {
		return nil, err
	}
	if !organizer.IsOrganizer() {
		return nil, model.ErrNotOrganizer
	}

	var touched []*model.Participant
	if previous := s.organizerOf(e); previous != nil && previous.ID != organizer.ID && previous.Disown(e.ID) {
		touched = append(touched, previous)
	}
	if _, err := organizer.Organize(e); err != nil {
		return nil, err
	}
	e.OrganizerID = organizer.ID
	touched = append(touched, organizer)

	s.people.repo.SaveAll(touched...)
	s.events.Save(e)

	logger := loggerFor(ctx, s.logger, "events")
	logger.Info().
		Str("event_id", e.ID).
		Str("organizer_id", organizer.ID).
		Msg("organizer assigned")
	return e, nil
}

// AddParticipant enrolls p in the event. p may be a stored participant or a
// new one, which is created first. It returns false without error when p is
// already enrolled.
func (s *EventService) AddParticipant(ctx context.Context, eventID string, p *model.Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(eventID)
	if err != nil {
		return false, err
	}

	logger := loggerFor(ctx, s.logger, "events")
	if e.IsFull() {
		metrics.Enrollments.WithLabelValues("capacity_exceeded").Inc()
		logger.Info().Str("event_id", e.ID).Msg("enrollment rejected: event full")
		return false, model.ErrCapacityExceeded
	}
	p, err = s.people.resolve(p)
	if err != nil {
		return false, err
	}

	ok, err := p.EnrollIn(e)
	switch {
	case err != nil:
		return false, err
	case !ok:
		metrics.Enrollments.WithLabelValues("already_enrolled").Inc()
		return false, nil
	}
	metrics.Enrollments.WithLabelValues("enrolled").Inc()

	s.people.repo.Save(p)
	s.events.Save(e)
	s.notifier.Dispatch(fmt.Sprintf("You are enrolled in the event: %s", e.Name), p.Email)

	logger.Info().Str("event_id", e.ID).Str("participant_id", p.ID).Msg("participant enrolled")
	return true, nil
}

// RemoveParticipant withdraws the participant from the event. It returns
// false when the participant was not enrolled.
func (s *EventService) RemoveParticipant(ctx context.Context, eventID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(eventID)
	if err != nil {
		return false, err
	}

	var p *model.Participant
	for _, candidate := range e.Participants {
		if candidate.ID == participantID {
			p = candidate
			break
		}
	}
	if p == nil || !p.WithdrawFrom(e) {
		return false, nil
	}

	s.people.repo.Save(p)
	s.events.Save(e)
	s.notifier.Dispatch(fmt.Sprintf("You have been unenrolled from the event: %s", e.Name), p.Email)

	logger := loggerFor(ctx, s.logger, "events")
	logger.Info().
		Str("event_id", e.ID).
		Str("participant_id", p.ID).
		Msg("participant withdrawn")
	return true, nil
}

// AddSpeaker lists a participant as a speaker of a talk.
func (s *EventService) AddSpeaker(ctx context.Context, eventID string, p *model.Participant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(eventID)
	if err != nil {
		return false, err
	}
	if e.Kind != model.KindTalk {
		return false, model.ErrNotTalk
	}
	p, err = s.people.resolve(p)
	if err != nil {
		return false, err
	}
	ok, err := e.AddSpeaker(p)
	return s.speakersChanged(ctx, e, ok, err)
}

// RemoveSpeaker drops a speaker from a talk.
func (s *EventService) RemoveSpeaker(ctx context.Context, eventID, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.get(eventID)
	if err != nil {
		return false, err
	}
	if e.Kind != model.KindTalk {
		return false, model.ErrNotTalk
	}
	p, err := s.people.get(participantID)
	if err != nil {
		return false, err
	}
	ok, err := e.RemoveSpeaker(p)
	return s.speakersChanged(ctx, e, ok, err)
}

func (s *EventService) speakersChanged(ctx context.Context, e *model.Event, ok bool, err error) (bool, error) {
	if errors.Is(err, model.ErrNotTalk) {
		return false, err
	}
	if !ok {
		return false, nil
	}
	recordBroadcastFailures(loggerFor(ctx, s.logger, "events"), e.ID, err)
	s.people.repo.SaveAll(e.Participants...)
	s.events.Save(e)
	return true, nil
}

// Search returns events whose location contains location, ignoring case.
func (s *EventService) Search(ctx context.Context, location string) []*model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.SearchByLocation(strings.TrimSpace(location))
}

// ListAvailable returns events that are not cancelled and still have seats.
func (s *EventService) ListAvailable(ctx context.Context) []*model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Event
	for _, e := range s.events.FindActiveWithCapacityAbove(0) {
		if !e.IsFull() {
			out = append(out, e)
		}
	}
	return out
}

// ListUpcoming returns events scheduled strictly after t.
func (s *EventService) ListUpcoming(ctx context.Context, t time.Time) []*model.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.FindByDateAfter(t)
}

// Read is ParticipantService.Read; both services share one entity lock.
func (s *EventService) Read(fn func()) {
	s.people.Read(fn)
}

// get must be called with mu held.
func (s *EventService) get(id string) (*model.Event, error) {
	if e, ok := s.index.Get(id); ok {
		return e, nil
	}
	e, err := s.events.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	s.index.Put(e)
	return e, nil
}

// announce logs message on every subscriber, persists their notification
// logs and hands the message to the notifier.
func (s *EventService) announce(logger zerolog.Logger, e *model.Event, message string) {
	recordBroadcastFailures(logger, e.ID, e.Broadcast(message))
	s.people.repo.SaveAll(e.Participants...)
	s.notifier.Dispatch(message, emails(e.Participants)...)
}

func (s *EventService) organizerOf(e *model.Event) *model.Participant {
	if e.OrganizerID == "" {
		return nil
	}
	p, err := s.people.repo.FindByID(e.OrganizerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn().Err(err).Str("event_id", e.ID).Msg("organizer lookup failed")
		}
		return nil
	}
	return p
}

// sameIDs compares a and b ignoring order.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

func emails(ps []*model.Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Email)
	}
	return out
}
