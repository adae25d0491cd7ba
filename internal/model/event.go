package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/observer"
)

// Kind identifies the concrete variant of an Event.
type Kind string

const (
	KindTalk        Kind = "talk"
	KindPerformance Kind = "performance"
)

// Event is a scheduled occasion with bounded capacity. Exactly one of Talk or
// Performance is set, matching Kind.
type Event struct {
	ID        string
	Kind      Kind      `validate:"oneof=talk performance"`
	Name      string    `validate:"required"`
	Date      time.Time `validate:"required"`
	Location  string
	Capacity  int `validate:"gt=0"`
	Cancelled bool

	// OrganizerID is a back-reference; the organizer owns the forward list.
	OrganizerID string

	Participants []*Participant

	Talk        *TalkDetails        `validate:"required_if=Kind talk"`
	Performance *PerformanceDetails `validate:"required_if=Kind performance"`

	subscribers observer.Channel
}

// TalkDetails holds the fields specific to a talk.
type TalkDetails struct {
	Topic    string
	Speakers []*Participant
}

// PerformanceDetails holds the fields specific to a performance.
type PerformanceDetails struct {
	Performer string
	Genre     string
}

// NewTalk creates a talk with a fresh id.
func NewTalk(name string, date time.Time, location string, capacity int, topic string) *Event {
	return &Event{
		ID:       NewID(),
		Kind:     KindTalk,
		Name:     name,
		Date:     date,
		Location: location,
		Capacity: capacity,
		Talk:     &TalkDetails{Topic: topic},
	}
}

// NewPerformance creates a performance with a fresh id.
func NewPerformance(name string, date time.Time, location string, capacity int, performer, genre string) *Event {
	return &Event{
		ID:          NewID(),
		Kind:        KindPerformance,
		Name:        name,
		Date:        date,
		Location:    location,
		Capacity:    capacity,
		Performance: &PerformanceDetails{Performer: performer, Genre: genre},
	}
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return len(e.Participants) >= e.Capacity
}

// Remaining returns the number of available seats.
func (e *Event) Remaining() int {
	if n := e.Capacity - len(e.Participants); n > 0 {
		return n
	}
	return 0
}

// IsEnrolled reports whether the participant with id is enrolled.
func (e *Event) IsEnrolled(id string) bool {
	return indexOfParticipant(e.Participants, id) >= 0
}

// Enroll adds p to the event and subscribes it to broadcasts. It returns
// false without error when p is already enrolled, and ErrCapacityExceeded
// when the event is full.
func (e *Event) Enroll(p *Participant) (bool, error) {
	if e.IsFull() {
		return false, ErrCapacityExceeded
	}
	if e.IsEnrolled(p.ID) {
		return false, nil
	}
	e.Participants = append(e.Participants, p)
	e.subscribers.Subscribe(p)
	return true, nil
}

// Withdraw removes p from the participants and subscribers.
func (e *Event) Withdraw(p *Participant) bool {
	i := indexOfParticipant(e.Participants, p.ID)
	if i < 0 {
		return false
	}
	e.Participants = append(e.Participants[:i:i], e.Participants[i+1:]...)
	e.subscribers.Unsubscribe(p)
	return true
}

// Cancel marks the event cancelled and tells every subscriber. Cancelling an
// already cancelled event broadcasts again.
func (e *Event) Cancel() error {
	e.Cancelled = true
	return e.Broadcast(e.CancellationMessage())
}

// CancellationMessage is the text broadcast when the event is cancelled.
func (e *Event) CancellationMessage() string {
	return fmt.Sprintf("The event %s has been cancelled.", e.Name)
}

// Subscribe adds s to the broadcast list; see observer.Channel.
func (e *Event) Subscribe(s observer.Subscriber) bool {
	return e.subscribers.Subscribe(s)
}

// Unsubscribe removes s from the broadcast list.
func (e *Event) Unsubscribe(s observer.Subscriber) bool {
	return e.subscribers.Unsubscribe(s)
}

// Subscribers returns the current subscribers in subscription order.
func (e *Event) Subscribers() []observer.Subscriber {
	return e.subscribers.Subscribers()
}

// Broadcast delivers message to every subscriber; see observer.Channel.
func (e *Event) Broadcast(message string) error {
	return e.subscribers.Broadcast(message)
}

// AddSpeaker appends a speaker to a talk and announces it. Adding a speaker
// who is already listed is a no-op.
func (e *Event) AddSpeaker(p *Participant) (bool, error) {
	if e.Kind != KindTalk || e.Talk == nil {
		return false, ErrNotTalk
	}
	if indexOfParticipant(e.Talk.Speakers, p.ID) >= 0 {
		return false, nil
	}
	e.Talk.Speakers = append(e.Talk.Speakers, p)
	return true, e.Broadcast(fmt.Sprintf("New speaker added to the talk: %s", p.Name))
}

// RemoveSpeaker drops a speaker from a talk and announces it.
func (e *Event) RemoveSpeaker(p *Participant) (bool, error) {
	if e.Kind != KindTalk || e.Talk == nil {
		return false, ErrNotTalk
	}
	i := indexOfParticipant(e.Talk.Speakers, p.ID)
	if i < 0 {
		return false, nil
	}
	e.Talk.Speakers = append(e.Talk.Speakers[:i:i], e.Talk.Speakers[i+1:]...)
	return true, e.Broadcast(fmt.Sprintf("The speaker %s has been removed from the talk.", p.Name))
}

// Detach drops every reference e holds to p: enrollment, subscription,
// speaker slot and organizer. It does not broadcast. It reports whether
// anything changed.
func (e *Event) Detach(p *Participant) bool {
	changed := e.Withdraw(p)
	if e.Talk != nil {
		if i := indexOfParticipant(e.Talk.Speakers, p.ID); i >= 0 {
			e.Talk.Speakers = append(e.Talk.Speakers[:i:i], e.Talk.Speakers[i+1:]...)
			changed = true
		}
	}
	if e.OrganizerID != "" && e.OrganizerID == p.ID {
		e.OrganizerID = ""
		changed = true
	}
	return changed
}

// Details returns a human-readable multi-line description of the event.
func (e *Event) Details() string {
	var b strings.Builder
	switch e.Kind {
	case KindTalk:
		fmt.Fprintf(&b, "Talk: %s\n", e.Name)
	case KindPerformance:
		fmt.Fprintf(&b, "Performance: %s\n", e.Name)
	default:
		fmt.Fprintf(&b, "Event: %s\n", e.Name)
	}
	fmt.Fprintf(&b, "Date: %s\n", e.Date.Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, "Location: %s\n", e.Location)
	switch e.Kind {
	case KindTalk:
		if e.Talk != nil {
			fmt.Fprintf(&b, "Topic: %s\n", e.Talk.Topic)
		}
	case KindPerformance:
		if e.Performance != nil {
			fmt.Fprintf(&b, "Performer: %s\n", e.Performance.Performer)
			fmt.Fprintf(&b, "Genre: %s\n", e.Performance.Genre)
		}
	}
	fmt.Fprintf(&b, "Capacity: %d\n", e.Capacity)
	fmt.Fprintf(&b, "Enrolled: %d", len(e.Participants))
	return b.String()
}

func indexOfParticipant(list []*Participant, id string) int {
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}
