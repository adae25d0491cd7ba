package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/metrics"
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var eventDate = time.Date(2026, 5, 20, 19, 0, 0, 0, time.UTC)

type stores struct {
	dir          string
	participants *ParticipantRepository
	events       *EventRepository
}

func openStores(t *testing.T, dir string) stores {
	t.Helper()
	participants, err := NewParticipantRepository(filepath.Join(dir, "participants.json"), zerolog.Nop())
	require.NoError(t, err)
	events, err := NewEventRepository(filepath.Join(dir, "events.json"), participants, zerolog.Nop())
	require.NoError(t, err)
	return stores{dir: dir, participants: participants, events: events}
}

func TestMissingFilesStartEmptyAndAreCreated(t *testing.T) {
	dir := t.TempDir()
	s := openStores(t, filepath.Join(dir, "data"))

	require.Zero(t, s.events.Count())
	require.Zero(t, s.participants.Count())

	for _, name := range []string{"events.json", "participants.json"} {
		data, err := os.ReadFile(filepath.Join(dir, "data", name))
		require.NoError(t, err)
		require.JSONEq(t, "[]", string(data))
	}
}

func TestMalformedFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "participants.json"), []byte("{not json"), 0o644))

	_, err := NewParticipantRepository(filepath.Join(dir, "participants.json"), zerolog.Nop())
	require.ErrorIs(t, err, ErrMalformedStorage)
}

func TestUnknownDiscriminatorIsFatal(t *testing.T) {
	dir := t.TempDir()
	participants, err := NewParticipantRepository(filepath.Join(dir, "participants.json"), zerolog.Nop())
	require.NoError(t, err)
	doc := `[{"@type":"workshop","id":"e1","name":"x","date":"2026-01-01T10:00:00","capacity":3}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.json"), []byte(doc), 0o644))

	_, err = NewEventRepository(filepath.Join(dir, "events.json"), participants, zerolog.Nop())
	require.ErrorIs(t, err, ErrMalformedStorage)
}

func TestReloadPreservesVariants(t *testing.T) {
	dir := t.TempDir()
	s := openStores(t, dir)

	attendee := s.participants.Save(model.NewParticipant("Ada", "ada@example.com"))
	speaker := s.participants.Save(model.NewParticipant("Rob", "rob@example.com"))
	org := s.participants.Save(model.NewOrganizer("Olga", "olga@example.com"))

	talk := model.NewTalk("Intro", eventDate, "Room A", 10, "Go generics")
	_, err := attendee.EnrollIn(talk)
	require.NoError(t, err)
	_, err = talk.AddSpeaker(speaker)
	require.NoError(t, err)
	_, err = org.Organize(talk)
	require.NoError(t, err)
	s.events.Save(talk)

	perf := model.NewPerformance("Jazz night", eventDate.Add(24*time.Hour), "Blue Hall", 50, "Trio", "jazz")
	s.events.Save(perf)
	s.participants.SaveAll(attendee, speaker, org)

	reloaded := openStores(t, dir)
	require.Equal(t, 2, reloaded.events.Count())
	require.Equal(t, 3, reloaded.participants.Count())

	gotTalk, err := reloaded.events.FindByID(talk.ID)
	require.NoError(t, err)
	require.Equal(t, model.KindTalk, gotTalk.Kind)
	require.Nil(t, gotTalk.Performance)
	require.Equal(t, "Go generics", gotTalk.Talk.Topic)
	require.True(t, gotTalk.Date.Equal(eventDate))
	require.Equal(t, org.ID, gotTalk.OrganizerID)
	require.Len(t, gotTalk.Participants, 1)
	require.Equal(t, attendee.ID, gotTalk.Participants[0].ID)
	require.Len(t, gotTalk.Subscribers(), 1)
	require.Len(t, gotTalk.Talk.Speakers, 1)
	require.Equal(t, speaker.ID, gotTalk.Talk.Speakers[0].ID)

	gotPerf, err := reloaded.events.FindByID(perf.ID)
	require.NoError(t, err)
	require.Equal(t, model.KindPerformance, gotPerf.Kind)
	require.Nil(t, gotPerf.Talk)
	require.Equal(t, "Trio", gotPerf.Performance.Performer)
	require.Equal(t, "jazz", gotPerf.Performance.Genre)

	gotOrg, err := reloaded.participants.FindByID(org.ID)
	require.NoError(t, err)
	require.True(t, gotOrg.IsOrganizer())
	require.Equal(t, []string{talk.ID}, gotOrg.Organizer.OrganizedEventIDs)

	gotAttendee, err := reloaded.participants.FindByID(attendee.ID)
	require.NoError(t, err)
	require.False(t, gotAttendee.IsOrganizer())
	require.Equal(t, []string{talk.ID}, gotAttendee.EnrolledEventIDs)

	// Re-linked participants are the same objects the participant store holds.
	require.Same(t, gotAttendee, gotTalk.Participants[0])
}

func TestOnDiskFormat(t *testing.T) {
	dir := t.TempDir()
	s := openStores(t, dir)
	p := s.participants.Save(model.NewParticipant("Ada", "ada@example.com"))
	talk := model.NewTalk("Intro", eventDate, "Room A", 10, "Go")
	_, err := p.EnrollIn(talk)
	require.NoError(t, err)
	s.events.Save(talk)

	data, err := os.ReadFile(filepath.Join(dir, "events.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), "\n  {")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 1)
	require.Equal(t, "talk", records[0]["@type"])
	require.Equal(t, "2026-05-20T19:00:00", records[0]["date"])
	require.Equal(t, []any{p.ID}, records[0]["participantIds"])
	require.NotContains(t, records[0], "performer")
}

func TestDanglingReferencesAreDroppedOnLoad(t *testing.T) {
	dir := t.TempDir()
	s := openStores(t, dir)
	kept := s.participants.Save(model.NewParticipant("Ada", "ada@example.com"))
	gone := s.participants.Save(model.NewParticipant("Bob", "bob@example.com"))
	talk := model.NewTalk("Intro", eventDate, "Room A", 10, "Go")
	_, err := kept.EnrollIn(talk)
	require.NoError(t, err)
	_, err = gone.EnrollIn(talk)
	require.NoError(t, err)
	s.events.Save(talk)
	require.True(t, s.participants.Delete(gone))

	reloaded := openStores(t, dir)
	got, err := reloaded.events.FindByID(talk.ID)
	require.NoError(t, err)
	require.Len(t, got.Participants, 1)
	require.Equal(t, kept.ID, got.Participants[0].ID)
}

func TestSaveAssignsMissingID(t *testing.T) {
	s := openStores(t, t.TempDir())
	p := &model.Participant{Kind: model.KindParticipant, Name: "Ada", Email: "ada@example.com"}

	s.participants.Save(p)

	require.NotEmpty(t, p.ID)
	require.True(t, s.participants.ExistsByID(p.ID))
}

func TestDeleteAndCount(t *testing.T) {
	dir := t.TempDir()
	s := openStores(t, dir)
	a := s.events.Save(model.NewTalk("A", eventDate, "Room A", 1, "x"))
	b := s.events.Save(model.NewTalk("B", eventDate, "Room B", 1, "y"))

	require.True(t, s.events.Delete(a))
	require.False(t, s.events.DeleteByID(a.ID))
	require.Equal(t, 1, s.events.Count())
	require.False(t, s.events.ExistsByID(a.ID))

	_, err := s.events.FindByID(a.ID)
	require.ErrorIs(t, err, ErrNotFound)

	reloaded := openStores(t, dir)
	require.Equal(t, 1, reloaded.events.Count())
	require.True(t, reloaded.events.ExistsByID(b.ID))
}

func TestEventQueries(t *testing.T) {
	s := openStores(t, t.TempDir())
	paris := s.events.Save(model.NewTalk("Intro", eventDate, "Paris Expo", 2, "Go"))
	lyon := s.events.Save(model.NewPerformance("Jazz", eventDate.Add(48*time.Hour), "Lyon", 100, "Trio", "jazz"))
	cancelled := model.NewTalk("Old", eventDate.Add(-48*time.Hour), "PARIS centre", 500, "Go")
	cancelled.Cancelled = true
	s.events.Save(cancelled)

	require.ElementsMatch(t, []*model.Event{paris, cancelled}, s.events.SearchByLocation("paris"))
	require.ElementsMatch(t, []*model.Event{lyon}, s.events.FindActiveWithCapacityAbove(10))
	require.ElementsMatch(t, []*model.Event{lyon}, s.events.FindByDateAfter(eventDate))
	require.True(t, s.events.ExistsByNameAndDate("Intro", eventDate))
	require.False(t, s.events.ExistsByNameAndDate("Intro", eventDate.Add(time.Hour)))
	require.Len(t, s.events.FindAll(), 3)
}

func TestParticipantQueries(t *testing.T) {
	s := openStores(t, t.TempDir())
	ada := s.participants.Save(model.NewParticipant("Ada Lovelace", "ada@example.com"))
	s.participants.Save(model.NewOrganizer("Bob", "bob@example.com"))

	got, err := s.participants.FindByEmail("ada@example.com")
	require.NoError(t, err)
	require.Same(t, ada, got)
	_, err = s.participants.FindByEmail("ADA@example.com")
	require.ErrorIs(t, err, ErrNotFound)
	require.True(t, s.participants.ExistsByEmail("bob@example.com"))

	require.Equal(t, []*model.Participant{ada}, s.participants.SearchByName("LOVE"))
}

func TestWriteFailureKeepsInMemoryState(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "data")
	s := openStores(t, dir)

	// Replace the data directory with a plain file so every write fails.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0o644))

	before := testutil.ToFloat64(metrics.StoreWrites.WithLabelValues("events", "error"))
	e := s.events.Save(model.NewTalk("Intro", eventDate, "Room A", 1, "Go"))

	require.True(t, s.events.ExistsByID(e.ID))
	require.Equal(t, before+1, testutil.ToFloat64(metrics.StoreWrites.WithLabelValues("events", "error")))
}

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2026-05-20T19:00:00")
	require.NoError(t, err)
	require.Equal(t, eventDate, got)

	got, err = ParseDate("2026-05-20T19:00:00.5")
	require.NoError(t, err)
	require.Equal(t, eventDate, got)

	_, err = ParseDate("20/05/2026")
	require.Error(t, err)
}

func TestDatesAreWrittenInWholeSeconds(t *testing.T) {
	dir := t.TempDir()
	s := openStores(t, dir)
	s.events.Save(model.NewTalk("Intro", eventDate.Add(123456789*time.Nanosecond), "Room A", 10, "Go"))

	data, err := os.ReadFile(filepath.Join(dir, "events.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"date": "2026-05-20T19:00:00"`)
	require.NotContains(t, string(data), "19:00:00.")

	reloaded := openStores(t, dir)
	all := reloaded.events.FindAll()
	require.Len(t, all, 1)
	require.Equal(t, eventDate, all[0].Date)
}
