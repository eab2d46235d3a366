package chat

import (
	"encoding/json"

	"github.com/benvon/assistant-chat/internal/models"
)

// EventKind distinguishes the events of a streamed turn
type EventKind string

const (
	EventContent          EventKind = "content"
	EventRelatedQuestions EventKind = "relatedQuestions"
)

// Event is one item of a streamed turn
type Event struct {
	Kind             EventKind
	Content          string
	RelatedQuestions []string
}

// MarshalJSON renders {"content":...} or {"relatedQuestions":[...]}
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == EventRelatedQuestions {
		return json.Marshal(struct {
			RelatedQuestions []string `json:"relatedQuestions"`
		}{e.RelatedQuestions})
	}
	return json.Marshal(struct {
		Content string `json:"content"`
	}{e.Content})
}

// Stream is a running turn. Read Events until it is closed, then check Err.
type Stream struct {
	// UserMessage is the persisted user turn that started the stream
	UserMessage *models.Message

	events chan Event
	err    error
}

// Events returns the event channel. It is closed when the turn ends.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Err reports why the turn ended early. Only valid after Events is closed.
func (s *Stream) Err() error {
	return s.err
}

// Collect drains the stream and returns every event with the final error
func (s *Stream) Collect() ([]Event, error) {
	var out []Event
	for ev := range s.events {
		out = append(out, ev)
	}
	return out, s.err
}
