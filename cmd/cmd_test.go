package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/event-roster/internal/config"
	"github.com/Shivanand-hulikatti/event-roster/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	root := newRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestVersionCommand(t *testing.T) {
	origVersion := Version
	defer func() { Version = origVersion }()
	Version = "1.2.3"

	out := execute(t, "version")

	require.Contains(t, out, "Event Roster")
	require.Contains(t, out, "Version:    1.2.3")
	require.Contains(t, out, "Go version:")
}

func seedData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("NOTIFY_ENABLED", "false")

	cfg, err := config.Load("")
	require.NoError(t, err)
	a, err := buildApp(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	date := time.Date(2026, 5, 20, 19, 0, 0, 0, time.UTC)
	talk, err := a.events.Create(ctx, model.NewTalk("Keynote", date, "Hall A", 1, "Go"))
	require.NoError(t, err)
	_, err = a.events.Create(ctx, model.NewPerformance("Concert", date, "Main Stage", 50, "Band", "Jazz"))
	require.NoError(t, err)
	_, err = a.events.AddParticipant(ctx, talk.ID, model.NewParticipant("Ada", "ada@example.com"))
	require.NoError(t, err)
	return dir
}

func TestEventsCommandListsStoredEvents(t *testing.T) {
	seedData(t)

	out := execute(t, "events")

	require.Contains(t, out, "Keynote")
	require.Contains(t, out, "Concert")
	require.Contains(t, out, "1/1")
	require.Contains(t, out, "full")
}

func TestEventsCommandFilters(t *testing.T) {
	seedData(t)

	out := execute(t, "events", "--available")
	require.NotContains(t, out, "Keynote")
	require.Contains(t, out, "Concert")

	out = execute(t, "events", "--location", "hall", "--verbose")
	require.Contains(t, out, "Talk: Keynote")
	require.Contains(t, out, "Topic: Go")
	require.NotContains(t, out, "Concert")
}

func TestEventsCommandEmptyDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	t.Setenv("DATA_DIR", dir)

	out := execute(t, "events")

	require.Contains(t, out, "No events found.")
	_, err := os.Stat(filepath.Join(dir, "events.json"))
	require.NoError(t, err)
}

func TestBuildAppFailsOnMalformedStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "participants.json"), []byte("{"), 0o644))
	t.Setenv("DATA_DIR", dir)

	cfg, err := config.Load("")
	require.NoError(t, err)
	_, err = buildApp(cfg, zerolog.Nop())
	require.ErrorContains(t, err, "open participant store")
}
