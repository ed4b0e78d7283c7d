package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types
const (
	UserCreated       = "user.created"
	UserConfirmed     = "user.confirmed"
	UserDeleted       = "user.deleted"
	UserPasswordReset = "user.password_reset"

	NoteCreated = "note.created"

	MailRequested = "mail.requested"
)

// Stream names
const (
	UserEventsStream = "user.events"
	NoteEventsStream = "note.events"
	MailStream       = "mail.outbox"
)

// Event is the envelope written to every stream.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Decode re-marshals the loosely typed Data into v.
func (e Event) Decode(v any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", e.Type, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}

// User events
type UserCreatedEvent struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

type UserConfirmedEvent struct {
	UserID string `json:"userId"`
}

type UserDeletedEvent struct {
	UserID string `json:"userId"`
}

type UserPasswordResetEvent struct {
	UserID string `json:"userId"`
}

// Note events
type NoteCreatedEvent struct {
	NoteID string `json:"noteId"`
	UserID string `json:"userId"`
}

// MailRequestedEvent carries a queued outbound message.
type MailRequestedEvent struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
