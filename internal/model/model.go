// Package model defines the core domain types for the event roster: events
// (talks and performances) and the people who attend or organize them.
package model

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

// ErrCapacityExceeded is returned when an event has no remaining seats.
var ErrCapacityExceeded = errors.New("event capacity exceeded")

// ErrNotTalk is returned when a talk-only operation targets another variant.
var ErrNotTalk = errors.New("event is not a talk")

// ErrNotOrganizer is returned when an organizer-only operation targets a plain participant.
var ErrNotOrganizer = errors.New("participant is not an organizer")

// ErrNotOrganizing is returned when an organizer acts on an event it does not organize.
var ErrNotOrganizing = errors.New("organizer does not organize this event")

// NewID returns a fresh opaque entity identifier.
func NewID() string {
	return uuid.New().String()
}

func removeString(list []string, v string) ([]string, bool) {
	i := slices.Index(list, v)
	if i < 0 {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}
