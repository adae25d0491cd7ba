package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/Shivanand-hulikatti/event-roster/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var eventDate = time.Date(2026, 5, 20, 19, 0, 0, 0, time.UTC)

type dispatch struct {
	message    string
	recipients []string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []dispatch
}

func (n *recordingNotifier) Dispatch(message string, recipients ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dispatch{message: message, recipients: recipients})
}

func (n *recordingNotifier) all() []dispatch {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]dispatch(nil), n.calls...)
}

type fixture struct {
	dir      string
	people   *ParticipantService
	events   *EventService
	index    *Index
	notifier *recordingNotifier
}

func newFixture(t *testing.T, dir string) fixture {
	t.Helper()
	participants, err := repository.NewParticipantRepository(filepath.Join(dir, "participants.json"), zerolog.Nop())
	require.NoError(t, err)
	events, err := repository.NewEventRepository(filepath.Join(dir, "events.json"), participants, zerolog.Nop())
	require.NoError(t, err)

	people := NewParticipantService(participants, zerolog.Nop())
	index := NewIndex()
	notifier := &recordingNotifier{}
	return fixture{
		dir:      dir,
		people:   people,
		events:   NewEventService(events, people, index, notifier, zerolog.Nop()),
		index:    index,
		notifier: notifier,
	}
}

func (f fixture) talk(t *testing.T, name string, capacity int) *model.Event {
	t.Helper()
	e, err := f.events.Create(context.Background(), model.NewTalk(name, eventDate, "Hall A", capacity, "Go"))
	require.NoError(t, err)
	return e
}

func (f fixture) person(t *testing.T, name string) *model.Participant {
	t.Helper()
	p, err := f.people.Create(context.Background(), model.NewParticipant(name, name+"@example.com"))
	require.NoError(t, err)
	return p
}

func TestCreateRejectsDuplicateNameAndDate(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	f.talk(t, "GopherCon", 10)

	_, err := f.events.Create(ctx, model.NewPerformance("GopherCon", eventDate, "Hall B", 5, "Band", "Rock"))
	require.ErrorIs(t, err, ErrDuplicateEvent)

	_, err = f.events.Create(ctx, model.NewTalk("GopherCon", eventDate.Add(24*time.Hour), "Hall A", 10, "Go"))
	require.NoError(t, err)
	require.Len(t, f.events.List(ctx), 2)
	require.Equal(t, 2, f.index.Len())
}

func TestCreateValidatesInput(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()

	tests := []struct {
		name  string
		event *model.Event
	}{
		{"zero capacity", model.NewTalk("Zero", eventDate, "Hall", 0, "Go")},
		{"missing name", model.NewTalk(" ", eventDate, "Hall", 3, "Go")},
		{"missing date", model.NewTalk("No date", time.Time{}, "Hall", 3, "Go")},
		{"talk without details", &model.Event{Kind: model.KindTalk, Name: "Bare", Date: eventDate, Capacity: 3}},
		{"unknown kind", &model.Event{Kind: "workshop", Name: "Odd", Date: eventDate, Capacity: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.events.Create(ctx, tt.event)
			var verr ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
	require.Empty(t, f.events.List(ctx))
}

func TestGetMissingEvent(t *testing.T) {
	f := newFixture(t, t.TempDir())

	_, err := f.events.Get(context.Background(), "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestServiceSeedsIndexFromStore(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir)
	e := f.talk(t, "Seeded", 3)

	reloaded := newFixture(t, dir)

	require.Equal(t, 1, reloaded.index.Len())
	got, err := reloaded.events.Get(context.Background(), e.ID)
	require.NoError(t, err)
	require.Equal(t, "Seeded", got.Name)
}

func TestEnrollmentRespectsCapacityAcrossReload(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir)
	ctx := context.Background()
	e := f.talk(t, "Tiny", 1)
	p1 := f.person(t, "ada")
	p2 := f.person(t, "bob")

	ok, err := f.events.AddParticipant(ctx, e.ID, p1)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.events.AddParticipant(ctx, e.ID, p2)
	require.ErrorIs(t, err, model.ErrCapacityExceeded)

	ok, err = f.events.RemoveParticipant(ctx, e.ID, p1.ID)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.events.AddParticipant(ctx, e.ID, p2)
	require.NoError(t, err)
	require.True(t, ok)

	reloaded := newFixture(t, dir)
	got, err := reloaded.events.Get(ctx, e.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	require.Equal(t, p2.ID, got.Participants[0].ID)

	ada, err := reloaded.people.Get(ctx, p1.ID)
	require.NoError(t, err)
	require.Empty(t, ada.EnrolledEventIDs)
	bob, err := reloaded.people.Get(ctx, p2.ID)
	require.NoError(t, err)
	require.Equal(t, []string{e.ID}, bob.EnrolledEventIDs)

	require.Equal(t, []dispatch{
		{message: "You are enrolled in the event: Tiny", recipients: []string{p1.Email}},
		{message: "You have been unenrolled from the event: Tiny", recipients: []string{p1.Email}},
		{message: "You are enrolled in the event: Tiny", recipients: []string{p2.Email}},
	}, f.notifier.all())
}

func TestAddParticipantTwiceIsNoop(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Twice", 5)
	p := f.person(t, "ada")

	_, err := f.events.AddParticipant(ctx, e.ID, p)
	require.NoError(t, err)
	ok, err := f.events.AddParticipant(ctx, e.ID, p)
	require.NoError(t, err)
	require.False(t, ok)
	require.Len(t, e.Participants, 1)
	require.Len(t, f.notifier.all(), 1)
}

func TestAddParticipantCreatesNewParticipant(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Inline", 5)

	ok, err := f.events.AddParticipant(ctx, e.ID, &model.Participant{Name: "Cleo", Email: "cleo@example.com"})
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := f.people.GetByEmail(ctx, "cleo@example.com")
	require.NoError(t, err)
	require.Equal(t, model.KindParticipant, stored.Kind)
	require.Same(t, stored, e.Participants[0])

	_, err = f.events.AddParticipant(ctx, e.ID, &model.Participant{Name: "Other Cleo", Email: "cleo@example.com"})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestAddParticipantMissingEvent(t *testing.T) {
	f := newFixture(t, t.TempDir())
	p := f.person(t, "ada")

	_, err := f.events.AddParticipant(context.Background(), "missing", p)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRemoveParticipantNotEnrolled(t *testing.T) {
	f := newFixture(t, t.TempDir())
	e := f.talk(t, "Empty", 5)

	ok, err := f.events.RemoveParticipant(context.Background(), e.ID, "nobody")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, f.notifier.all())
}

func TestCancelNotifiesEveryParticipantOnce(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir)
	ctx := context.Background()
	e := f.talk(t, "Keynote", 5)
	ada := f.person(t, "ada")
	bob := f.person(t, "bob")
	for _, p := range []*model.Participant{ada, bob} {
		_, err := f.events.AddParticipant(ctx, e.ID, p)
		require.NoError(t, err)
	}

	cancelled, err := f.events.Cancel(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, cancelled.Cancelled)

	msg := "The event Keynote has been cancelled."
	require.Equal(t, []string{msg}, ada.Notifications)
	require.Equal(t, []string{msg}, bob.Notifications)

	calls := f.notifier.all()
	require.Equal(t, dispatch{message: msg, recipients: []string{ada.Email, bob.Email}}, calls[len(calls)-1])

	reloaded := newFixture(t, dir)
	got, err := reloaded.events.Get(ctx, e.ID)
	require.NoError(t, err)
	require.True(t, got.Cancelled)
	stored, err := reloaded.people.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.Equal(t, []string{msg}, stored.Notifications)
}

func TestCancelAsOrganizer(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Owned", 5)
	owner, err := f.people.Create(ctx, model.NewOrganizer("Olga", "olga@example.com"))
	require.NoError(t, err)
	other, err := f.people.Create(ctx, model.NewOrganizer("Otto", "otto@example.com"))
	require.NoError(t, err)
	plain := f.person(t, "pat")

	_, err = f.events.AssignOrganizer(ctx, e.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, e.OrganizerID)

	_, err = f.events.CancelAsOrganizer(ctx, e.ID, plain.ID)
	require.ErrorIs(t, err, model.ErrNotOrganizer)
	_, err = f.events.CancelAsOrganizer(ctx, e.ID, other.ID)
	require.ErrorIs(t, err, model.ErrNotOrganizing)
	require.False(t, e.Cancelled)

	_, err = f.events.CancelAsOrganizer(ctx, e.ID, owner.ID)
	require.NoError(t, err)
	require.True(t, e.Cancelled)
}

func TestAssignOrganizerReleasesPrevious(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Handover", 5)
	first, err := f.people.Create(ctx, model.NewOrganizer("First", "first@example.com"))
	require.NoError(t, err)
	second, err := f.people.Create(ctx, model.NewOrganizer("Second", "second@example.com"))
	require.NoError(t, err)

	_, err = f.events.AssignOrganizer(ctx, e.ID, first.ID)
	require.NoError(t, err)
	_, err = f.events.AssignOrganizer(ctx, e.ID, second.ID)
	require.NoError(t, err)

	require.Equal(t, second.ID, e.OrganizerID)
	require.Empty(t, first.Organizer.OrganizedEventIDs)
	require.Equal(t, []string{e.ID}, second.Organizer.OrganizedEventIDs)

	plain := f.person(t, "pat")
	_, err = f.events.AssignOrganizer(ctx, e.ID, plain.ID)
	require.ErrorIs(t, err, model.ErrNotOrganizer)
}

func TestUpdateAnnouncesChange(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Draft", 5)
	p := f.person(t, "ada")
	_, err := f.events.AddParticipant(ctx, e.ID, p)
	require.NoError(t, err)

	updated, err := f.events.Update(ctx, e.ID, EventUpdate{
		Name:     "Final",
		Date:     eventDate.Add(time.Hour),
		Location: "Hall C",
		Capacity: 8,
	})
	require.NoError(t, err)
	require.Equal(t, "Final", updated.Name)
	require.Equal(t, 8, updated.Capacity)
	require.Equal(t, []string{"The event Final has been updated."}, p.Notifications)

	calls := f.notifier.all()
	require.Equal(t, dispatch{message: "The event Final has been updated.", recipients: []string{p.Email}}, calls[len(calls)-1])
}

func TestUpdateRejectsInvalidChanges(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Busy", 2)
	f.talk(t, "Taken", 2)
	for _, name := range []string{"ada", "bob"} {
		_, err := f.events.AddParticipant(ctx, e.ID, f.person(t, name))
		require.NoError(t, err)
	}

	_, err := f.events.Update(ctx, e.ID, EventUpdate{Name: "Busy", Date: eventDate, Capacity: 1})
	var verr ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.events.Update(ctx, e.ID, EventUpdate{Name: "Taken", Date: eventDate, Capacity: 2})
	require.ErrorIs(t, err, ErrDuplicateEvent)

	_, err = f.events.Update(ctx, "missing", EventUpdate{Name: "X", Date: eventDate, Capacity: 2})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeleteDetachesRelationships(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, dir)
	ctx := context.Background()
	e := f.talk(t, "Doomed", 5)
	p := f.person(t, "ada")
	owner, err := f.people.Create(ctx, model.NewOrganizer("Olga", "olga@example.com"))
	require.NoError(t, err)
	_, err = f.events.AddParticipant(ctx, e.ID, p)
	require.NoError(t, err)
	_, err = f.events.AssignOrganizer(ctx, e.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, f.events.Delete(ctx, e.ID))

	_, err = f.events.Get(ctx, e.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.Zero(t, f.index.Len())
	require.Empty(t, p.EnrolledEventIDs)
	require.Empty(t, owner.Organizer.OrganizedEventIDs)
	require.Equal(t, []string{"The event Doomed has been deleted."}, p.Notifications)

	calls := f.notifier.all()
	require.Equal(t, dispatch{message: "The event Doomed has been deleted.", recipients: []string{p.Email}}, calls[len(calls)-1])

	reloaded := newFixture(t, dir)
	require.Empty(t, reloaded.events.List(ctx))
	stored, err := reloaded.people.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, stored.EnrolledEventIDs)

	require.ErrorIs(t, f.events.Delete(ctx, e.ID), repository.ErrNotFound)
}

func TestSpeakers(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	e := f.talk(t, "Panel", 5)
	listener := f.person(t, "ada")
	speaker := f.person(t, "rob")
	_, err := f.events.AddParticipant(ctx, e.ID, listener)
	require.NoError(t, err)

	ok, err := f.events.AddSpeaker(ctx, e.ID, speaker)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.events.AddSpeaker(ctx, e.ID, speaker)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.events.RemoveSpeaker(ctx, e.ID, speaker.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, []string{
		"New speaker added to the talk: rob",
		"The speaker rob has been removed from the talk.",
	}, listener.Notifications)

	show, err := f.events.Create(ctx, model.NewPerformance("Show", eventDate, "Stage", 50, "Band", "Jazz"))
	require.NoError(t, err)
	_, err = f.events.AddSpeaker(ctx, show.ID, speaker)
	require.ErrorIs(t, err, model.ErrNotTalk)
}

func TestQueries(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	full := f.talk(t, "Full", 1)
	open := f.talk(t, "Open", 3)
	gone := f.talk(t, "Gone", 3)
	_, err := f.events.AddParticipant(ctx, full.ID, f.person(t, "ada"))
	require.NoError(t, err)
	_, err = f.events.Cancel(ctx, gone.ID)
	require.NoError(t, err)

	available := f.events.ListAvailable(ctx)
	require.Len(t, available, 1)
	require.Equal(t, open.ID, available[0].ID)

	require.Len(t, f.events.Search(ctx, "hall a"), 3)
	require.Empty(t, f.events.Search(ctx, "stage"))
	require.Len(t, f.events.ListUpcoming(ctx, eventDate.Add(-time.Minute)), 3)
	require.Empty(t, f.events.ListUpcoming(ctx, eventDate))
}

func TestConcurrentEnrollmentNeverOverbooks(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	capacity := 5
	e := f.talk(t, "Rush", capacity)

	requests := 50
	var enrolled, full, failed int32
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func(i int) {
			defer wg.Done()
			p := model.NewParticipant(fmt.Sprintf("gopher%d", i), fmt.Sprintf("gopher%d@example.com", i))
			_, err := f.events.AddParticipant(ctx, e.ID, p)
			switch {
			case err == nil:
				atomic.AddInt32(&enrolled, 1)
			case errors.Is(err, model.ErrCapacityExceeded):
				atomic.AddInt32(&full, 1)
			default:
				atomic.AddInt32(&failed, 1)
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, capacity, enrolled)
	require.EqualValues(t, requests-capacity, full)
	require.Zero(t, failed)
	require.Len(t, e.Participants, capacity)
}

func TestParticipantLifecycle(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()

	_, err := f.people.Create(ctx, model.NewParticipant("Bad", "not-an-email"))
	var verr ValidationError
	require.ErrorAs(t, err, &verr)

	ada := f.person(t, "ada")
	bob := f.person(t, "bob")

	_, err = f.people.Create(ctx, model.NewParticipant("Ada Again", ada.Email))
	require.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = f.people.Update(ctx, bob.ID, ParticipantUpdate{Name: "Bob", Email: ada.Email})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	updated, err := f.people.Update(ctx, ada.ID, ParticipantUpdate{Name: "Ada Lovelace", Email: ada.Email})
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", updated.Name)

	require.Len(t, f.people.Search(ctx, "LOVE"), 1)
	require.Len(t, f.people.List(ctx), 2)

	require.NoError(t, f.people.Delete(ctx, bob.ID))
	_, err = f.people.Get(ctx, bob.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	require.ErrorIs(t, f.people.Delete(ctx, bob.ID), repository.ErrNotFound)

	_, err = f.people.Update(ctx, "missing", ParticipantUpdate{Name: "X", Email: "x@example.com"})
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrganizerCreatedWithDetails(t *testing.T) {
	f := newFixture(t, t.TempDir())

	o, err := f.people.Create(context.Background(), &model.Participant{
		Kind:  model.KindOrganizer,
		Name:  "Olga",
		Email: "olga@example.com",
	})
	require.NoError(t, err)
	require.True(t, o.IsOrganizer())
	require.NotEmpty(t, o.ID)
}

func TestDeletedParticipantFreesSeatAndStaysDeleted(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	talk := f.talk(t, "Keynote", 1)
	ada := f.person(t, "ada")
	olga, err := f.people.Create(ctx, model.NewOrganizer("Olga", "olga@example.com"))
	require.NoError(t, err)

	_, err = f.events.AddParticipant(ctx, talk.ID, ada)
	require.NoError(t, err)
	_, err = f.events.AddSpeaker(ctx, talk.ID, ada)
	require.NoError(t, err)
	_, err = f.events.AssignOrganizer(ctx, talk.ID, olga.ID)
	require.NoError(t, err)

	require.NoError(t, f.people.Delete(ctx, ada.ID))
	require.NoError(t, f.people.Delete(ctx, olga.ID))
	f.events.Read(func() {
		require.Empty(t, talk.Participants)
		require.Empty(t, talk.Talk.Speakers)
		require.Empty(t, talk.OrganizerID)
		require.Empty(t, talk.Subscribers())
	})

	bob := f.person(t, "bob")
	ok, err := f.events.AddParticipant(ctx, talk.ID, bob)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.events.Cancel(ctx, talk.ID)
	require.NoError(t, err)
	calls := f.notifier.all()
	require.Equal(t, []string{bob.Email}, calls[len(calls)-1].recipients)

	_, err = f.people.Get(ctx, ada.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	reloaded := newFixture(t, f.dir)
	_, err = reloaded.people.Get(ctx, ada.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
	e, err := reloaded.events.Get(ctx, talk.ID)
	require.NoError(t, err)
	require.Len(t, e.Participants, 1)
	require.Equal(t, bob.ID, e.Participants[0].ID)
	require.Empty(t, e.Talk.Speakers)
	require.Empty(t, e.OrganizerID)
}

func TestEnrollmentListsAreRebuiltFromEvents(t *testing.T) {
	f := newFixture(t, t.TempDir())
	ctx := context.Background()
	talk := f.talk(t, "Keynote", 5)
	ada := f.person(t, "ada")
	bob := f.person(t, "bob")
	_, err := f.events.AddParticipant(ctx, talk.ID, ada)
	require.NoError(t, err)

	ada.EnrolledEventIDs = []string{"ghost"}
	bob.EnrolledEventIDs = []string{talk.ID}
	f.people.repo.SaveAll(ada, bob)

	reloaded := newFixture(t, f.dir)
	got, err := reloaded.people.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.Equal(t, []string{talk.ID}, got.EnrolledEventIDs)
	got, err = reloaded.people.Get(ctx, bob.ID)
	require.NoError(t, err)
	require.Empty(t, got.EnrolledEventIDs)

	again := newFixture(t, f.dir)
	got, err = again.people.Get(ctx, ada.ID)
	require.NoError(t, err)
	require.Equal(t, []string{talk.ID}, got.EnrolledEventIDs)
}

func TestRequestLoggerIsUsed(t *testing.T) {
	f := newFixture(t, t.TempDir())
	var buf bytes.Buffer
	ctx := zerolog.New(&buf).WithContext(context.Background())

	p, err := f.people.Create(ctx, model.NewParticipant("Ada", "ada@example.com"))
	require.NoError(t, err)
	e, err := f.events.Create(ctx, model.NewTalk("Keynote", eventDate, "Hall A", 5, "Go"))
	require.NoError(t, err)
	_, err = f.events.AddParticipant(ctx, e.ID, p)
	require.NoError(t, err)
	ok, err := f.events.RemoveParticipant(ctx, e.ID, p.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, f.people.Delete(ctx, p.ID))

	out := buf.String()
	require.Contains(t, out, `"message":"participant created"`)
	require.Contains(t, out, `"message":"event created"`)
	require.Contains(t, out, `"message":"participant withdrawn"`)
	require.Contains(t, out, `"message":"participant deleted"`)
	require.Contains(t, out, `"component":"participants"`)
}
