package handler

import (
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
)

// ─── Requests ─────────────────────────────────────────────────────────────────

// EventRequest is the body of POST /events. Variant fields apply according
// to "@type".
type EventRequest struct {
	Type      string `json:"@type" validate:"required,oneof=talk performance"`
	Name      string `json:"name" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Location  string `json:"location"`
	Capacity  int    `json:"capacity" validate:"gt=0"`
	Topic     string `json:"topic"`
	Performer string `json:"performer"`
	Genre     string `json:"genre"`
}

// UpdateEventRequest is the body of PUT /events/{id}.
type UpdateEventRequest struct {
	Name     string `json:"name" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Location string `json:"location"`
	Capacity int    `json:"capacity" validate:"gt=0"`
}

// ParticipantRequest is the body of POST /participants and the inline form
// of an enrollment. "@type" defaults to participant.
type ParticipantRequest struct {
	Type  string `json:"@type" validate:"omitempty,oneof=participant organizer"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// UpdateParticipantRequest is the body of PUT /participants/{id}.
type UpdateParticipantRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// EnrollRequest names an existing participant or carries a new one.
type EnrollRequest struct {
	ParticipantID string              `json:"participantId" validate:"required_without=Participant"`
	Participant   *ParticipantRequest `json:"participant" validate:"required_without=ParticipantID"`
}

// SpeakerRequest is the body of POST /events/{id}/speakers.
type SpeakerRequest struct {
	ParticipantID string `json:"participantId" validate:"required"`
}

// OrganizerRequest is the body of POST /events/{id}/organizer and the
// optional body of POST /events/{id}/cancel.
type OrganizerRequest struct {
	OrganizerID string `json:"organizerId"`
}

// ─── Responses ────────────────────────────────────────────────────────────────

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ParticipantSummary identifies a related participant inside an event view.
type ParticipantSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EventView is the JSON form of an event.
type EventView struct {
	Type         model.Kind           `json:"@type"`
	ID           string               `json:"id"`
	Name         string               `json:"name"`
	Date         string               `json:"date"`
	Location     string               `json:"location"`
	Capacity     int                  `json:"capacity"`
	Remaining    int                  `json:"remaining"`
	Cancelled    bool                 `json:"cancelled"`
	OrganizerID  string               `json:"organizerId,omitempty"`
	Participants []ParticipantSummary `json:"participants"`
	Topic        string               `json:"topic,omitempty"`
	Speakers     []ParticipantSummary `json:"speakers,omitempty"`
	Performer    string               `json:"performer,omitempty"`
	Genre        string               `json:"genre,omitempty"`
	Details      string               `json:"details"`
}

// ParticipantView is the JSON form of a participant or organizer.
type ParticipantView struct {
	Type              model.ParticipantKind `json:"@type"`
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Email             string                `json:"email"`
	EnrolledEventIDs  []string              `json:"enrolledEventIds"`
	Notifications     []string              `json:"notifications"`
	OrganizedEventIDs []string              `json:"organizedEventIds,omitempty"`
}

// EnrollmentResponse reports whether an enrollment changed anything.
type EnrollmentResponse struct {
	Enrolled bool      `json:"enrolled"`
	Event    EventView `json:"event"`
}

// ─── Conversions ──────────────────────────────────────────────────────────────

func (req EventRequest) toModel() (*model.Event, error) {
	date, err := repository.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if model.Kind(req.Type) == model.KindPerformance {
		return model.NewPerformance(req.Name, date, req.Location, req.Capacity, req.Performer, req.Genre), nil
	}
	return model.NewTalk(req.Name, date, req.Location, req.Capacity, req.Topic), nil
}

func (req ParticipantRequest) toModel() *model.Participant {
	if model.ParticipantKind(req.Type) == model.KindOrganizer {
		return model.NewOrganizer(req.Name, req.Email)
	}
	return model.NewParticipant(req.Name, req.Email)
}

func summarize(ps []*model.Participant) []ParticipantSummary {
	out := make([]ParticipantSummary, 0, len(ps))
	for _, p := range ps {
		out = append(out, ParticipantSummary{ID: p.ID, Name: p.Name, Email: p.Email})
	}
	return out
}

func newEventView(e *model.Event) EventView {
	v := EventView{
		Type:         e.Kind,
		ID:           e.ID,
		Name:         e.Name,
		Date:         e.Date.Format(repository.DateLayout),
		Location:     e.Location,
		Capacity:     e.Capacity,
		Remaining:    e.Remaining(),
		Cancelled:    e.Cancelled,
		OrganizerID:  e.OrganizerID,
		Participants: summarize(e.Participants),
		Details:      e.Details(),
	}
	if e.Talk != nil {
		v.Topic = e.Talk.Topic
		if len(e.Talk.Speakers) > 0 {
			v.Speakers = summarize(e.Talk.Speakers)
		}
	}
	if e.Performance != nil {
		v.Performer = e.Performance.Performer
		v.Genre = e.Performance.Genre
	}
	return v
}

func newEventViews(events []*model.Event) []EventView {
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, newEventView(e))
	}
	return out
}

func newParticipantView(p *model.Participant) ParticipantView {
	v := ParticipantView{
		Type:             p.Kind,
		ID:               p.ID,
		Name:             p.Name,
		Email:            p.Email,
		EnrolledEventIDs: append([]string{}, p.EnrolledEventIDs...),
		Notifications:    append([]string{}, p.Notifications...),
	}
	if p.Organizer != nil {
		v.OrganizedEventIDs = append([]string{}, p.Organizer.OrganizedEventIDs...)
	}
	return v
}

func newParticipantViews(ps []*model.Participant) []ParticipantView {
	out := make([]ParticipantView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newParticipantView(p))
	}
	return out
}
