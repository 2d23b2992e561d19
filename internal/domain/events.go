package domain

import (
	"strconv"
	"strings"
)

// EventKind is a bitmask of the session field groups a change touched.
type EventKind uint8

const (
	EventQuestions EventKind = 1 << iota
	EventCursor
	EventTimer
	EventSettings
	EventState
	EventAnswers

	EventSession = EventQuestions | EventCursor | EventTimer | EventSettings | EventState
	EventAll     = EventSession | EventAnswers
)

// Has reports whether any bit of mask is set on k.
func (k EventKind) Has(mask EventKind) bool {
	return k&mask != 0
}

func (k EventKind) String() string {
	names := []string{"questions", "cursor", "timer", "settings", "state", "answers"}
	var parts []string
	for i, name := range names {
		if k&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event is a change notification from a SessionStore. Session holds the
// snapshot after the write; Answers is filled for EventAnswers.
type Event struct {
	Kind      EventKind
	SessionID string
	Session   GameSession
	Answers   []AnswerRecord
}

// AnswerKey builds the "{q}-{team}" slot key for an answer record.
func AnswerKey(q int, team string) string {
	return strconv.Itoa(q) + "-" + team
}
