package model

import "slices"

// ParticipantKind identifies the concrete variant of a Participant.
type ParticipantKind string

const (
	KindParticipant ParticipantKind = "participant"
	KindOrganizer   ParticipantKind = "organizer"
)

// Participant is a person who may enroll in events. An organizer is a
// participant that also owns events; Organizer is set only for that variant.
type Participant struct {
	ID    string
	Kind  ParticipantKind `validate:"oneof=participant organizer"`
	Name  string          `validate:"required"`
	Email string          `validate:"required,email"`

	// EnrolledEventIDs mirrors Event.Participants, which is authoritative.
	EnrolledEventIDs []string

	// Notifications is an append-only log of received messages.
	Notifications []string

	Organizer *OrganizerDetails `validate:"required_if=Kind organizer"`
}

// OrganizerDetails holds the fields specific to an organizer.
type OrganizerDetails struct {
	OrganizedEventIDs []string
}

// NewParticipant creates a plain participant with a fresh id.
func NewParticipant(name, email string) *Participant {
	return &Participant{
		ID:    NewID(),
		Kind:  KindParticipant,
		Name:  name,
		Email: email,
	}
}

// NewOrganizer creates an organizer with a fresh id.
func NewOrganizer(name, email string) *Participant {
	return &Participant{
		ID:        NewID(),
		Kind:      KindOrganizer,
		Name:      name,
		Email:     email,
		Organizer: &OrganizerDetails{},
	}
}

// IsOrganizer reports whether p is the organizer variant.
func (p *Participant) IsOrganizer() bool {
	return p.Kind == KindOrganizer && p.Organizer != nil
}

// SubscriberID implements observer.Subscriber.
func (p *Participant) SubscriberID() string {
	return p.ID
}

// Receive implements observer.Subscriber by appending to the notification log.
func (p *Participant) Receive(message string) error {
	p.Notifications = append(p.Notifications, message)
	return nil
}

// EnrollIn enrolls p in e and records the back-reference on success.
func (p *Participant) EnrollIn(e *Event) (bool, error) {
	ok, err := e.Enroll(p)
	if err != nil || !ok {
		return ok, err
	}
	if !slices.Contains(p.EnrolledEventIDs, e.ID) {
		p.EnrolledEventIDs = append(p.EnrolledEventIDs, e.ID)
	}
	return true, nil
}

// WithdrawFrom withdraws p from e and drops the back-reference on success.
func (p *Participant) WithdrawFrom(e *Event) bool {
	if !e.Withdraw(p) {
		return false
	}
	p.ForgetEvent(e.ID)
	return true
}

// ForgetEvent drops the back-reference to eventID, if any.
func (p *Participant) ForgetEvent(eventID string) {
	p.EnrolledEventIDs, _ = removeString(p.EnrolledEventIDs, eventID)
}

// Organizes reports whether p organizes the event with eventID.
func (p *Participant) Organizes(eventID string) bool {
	return p.IsOrganizer() && slices.Contains(p.Organizer.OrganizedEventIDs, eventID)
}

// Organize records e as organized by p and points e back at p. It is a no-op
// when p already organizes e.
func (p *Participant) Organize(e *Event) (bool, error) {
	if !p.IsOrganizer() {
		return false, ErrNotOrganizer
	}
	if p.Organizes(e.ID) {
		return false, nil
	}
	p.Organizer.OrganizedEventIDs = append(p.Organizer.OrganizedEventIDs, e.ID)
	e.OrganizerID = p.ID
	return true, nil
}

// Disown drops eventID from the organized list.
func (p *Participant) Disown(eventID string) bool {
	if !p.IsOrganizer() {
		return false
	}
	var ok bool
	p.Organizer.OrganizedEventIDs, ok = removeString(p.Organizer.OrganizedEventIDs, eventID)
	return ok
}

// CancelOrganizedEvent cancels e on behalf of p. The returned error is
// ErrNotOrganizer or ErrNotOrganizing when p may not cancel e; otherwise it
// carries any broadcast delivery failures.
func (p *Participant) CancelOrganizedEvent(e *Event) error {
	if !p.IsOrganizer() {
		return ErrNotOrganizer
	}
	if !p.Organizes(e.ID) {
		return ErrNotOrganizing
	}
	return e.Cancel()
}
