package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/model"
)

// DateLayout is the on-disk date-time format. Dates carry no zone and are
// read back as UTC.
const DateLayout = "2006-01-02T15:04:05"

// parseLayout also accepts fractional seconds, which are dropped.
const parseLayout = "2006-01-02T15:04:05.999999999"

// localTime encodes a time.Time as a zone-less local date-time string.
type localTime struct {
	time.Time
}

func (t localTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(DateLayout))
}

func (t *localTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ParseDate parses a yyyy-MM-ddTHH:mm:ss date-time as UTC.
func ParseDate(s string) (time.Time, error) {
	parsed, err := time.ParseInLocation(parseLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must match %s", s, DateLayout)
	}
	return parsed.Truncate(time.Second), nil
}

// eventRecord is the persisted form of an Event. The "@type" discriminator
// selects which variant fields apply. Related entities are stored by id.
type eventRecord struct {
	Type           model.Kind `json:"@type"`
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Date           localTime  `json:"date"`
	Location       string     `json:"location"`
	Capacity       int        `json:"capacity"`
	Cancelled      bool       `json:"cancelled"`
	OrganizerID    string     `json:"organizerId,omitempty"`
	ParticipantIDs []string   `json:"participantIds"`

	Topic      string   `json:"topic,omitempty"`
	SpeakerIDs []string `json:"speakerIds,omitempty"`

	Performer string `json:"performer,omitempty"`
	Genre     string `json:"genre,omitempty"`
}

func encodeEvent(e *model.Event) (eventRecord, error) {
	r := eventRecord{
		Type:           e.Kind,
		ID:             e.ID,
		Name:           e.Name,
		Date:           localTime{e.Date},
		Location:       e.Location,
		Capacity:       e.Capacity,
		Cancelled:      e.Cancelled,
		OrganizerID:    e.OrganizerID,
		ParticipantIDs: participantIDs(e.Participants),
	}
	switch e.Kind {
	case model.KindTalk:
		if e.Talk != nil {
			r.Topic = e.Talk.Topic
			r.SpeakerIDs = participantIDs(e.Talk.Speakers)
		}
	case model.KindPerformance:
		if e.Performance != nil {
			r.Performer = e.Performance.Performer
			r.Genre = e.Performance.Genre
		}
	default:
		return eventRecord{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return r, nil
}

// resolveFunc maps a participant id to the live participant, reporting
// false for ids that no longer resolve.
type resolveFunc func(id string) (*model.Participant, bool)

// decode rebuilds the Event, re-linking participants and speakers by id and
// re-subscribing every enrolled participant. Unresolved ids are returned so
// the caller can report them.
func (r eventRecord) decode(resolve resolveFunc) (*model.Event, []string, error) {
	e := &model.Event{
		ID:          r.ID,
		Kind:        r.Type,
		Name:        r.Name,
		Date:        r.Date.Time,
		Location:    r.Location,
		Capacity:    r.Capacity,
		Cancelled:   r.Cancelled,
		OrganizerID: r.OrganizerID,
	}
	var dangling []string
	switch r.Type {
	case model.KindTalk:
		e.Talk = &model.TalkDetails{Topic: r.Topic}
		for _, id := range r.SpeakerIDs {
			if p, ok := resolve(id); ok {
				e.Talk.Speakers = append(e.Talk.Speakers, p)
			} else {
				dangling = append(dangling, id)
			}
		}
	case model.KindPerformance:
		e.Performance = &model.PerformanceDetails{Performer: r.Performer, Genre: r.Genre}
	default:
		return nil, nil, fmt.Errorf("%w: event %s has unknown @type %q", ErrMalformedStorage, r.ID, r.Type)
	}
	for _, id := range r.ParticipantIDs {
		p, ok := resolve(id)
		if !ok {
			dangling = append(dangling, id)
			continue
		}
		if e.IsEnrolled(p.ID) {
			continue
		}
		e.Participants = append(e.Participants, p)
		e.Subscribe(p)
	}
	return e, dangling, nil
}

// participantRecord is the persisted form of a Participant.
type participantRecord struct {
	Type              model.ParticipantKind `json:"@type"`
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	Email             string                `json:"email"`
	EnrolledEventIDs  []string              `json:"enrolledEventIds"`
	Notifications     []string              `json:"notifications"`
	OrganizedEventIDs []string              `json:"organizedEventIds,omitempty"`
}

func encodeParticipant(p *model.Participant) (participantRecord, error) {
	r := participantRecord{
		Type:             p.Kind,
		ID:               p.ID,
		Name:             p.Name,
		Email:            p.Email,
		EnrolledEventIDs: orEmpty(p.EnrolledEventIDs),
		Notifications:    orEmpty(p.Notifications),
	}
	switch p.Kind {
	case model.KindParticipant:
	case model.KindOrganizer:
		r.OrganizedEventIDs = []string{}
		if p.Organizer != nil {
			r.OrganizedEventIDs = orEmpty(p.Organizer.OrganizedEventIDs)
		}
	default:
		return participantRecord{}, fmt.Errorf("unknown participant kind %q", p.Kind)
	}
	return r, nil
}

func (r participantRecord) decode() (*model.Participant, error) {
	p := &model.Participant{
		ID:               r.ID,
		Kind:             r.Type,
		Name:             r.Name,
		Email:            r.Email,
		EnrolledEventIDs: r.EnrolledEventIDs,
		Notifications:    r.Notifications,
	}
	switch r.Type {
	case model.KindParticipant:
	case model.KindOrganizer:
		p.Organizer = &model.OrganizerDetails{OrganizedEventIDs: r.OrganizedEventIDs}
	default:
		return nil, fmt.Errorf("%w: participant %s has unknown @type %q", ErrMalformedStorage, r.ID, r.Type)
	}
	return p, nil
}

func participantIDs(list []*model.Participant) []string {
	ids := make([]string, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	return ids
}

func orEmpty(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
