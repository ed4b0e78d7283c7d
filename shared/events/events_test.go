package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	raw, err := json.Marshal(Event{
		Type:      MailRequested,
		Timestamp: time.Now().UTC(),
		Data:      MailRequestedEvent{To: "a@b.com", Subject: "hi", Body: "body"},
	})
	require.NoError(t, err)

	event, err := ParseMessage(map[string]any{"event": string(raw)})
	require.NoError(t, err)
	assert.Equal(t, MailRequested, event.Type)

	var mail MailRequestedEvent
	require.NoError(t, event.Decode(&mail))
	assert.Equal(t, "a@b.com", mail.To)
	assert.Equal(t, "hi", mail.Subject)
	assert.Equal(t, "body", mail.Body)
}

func TestParseMessage_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
	}{
		{name: "missing event field", values: map[string]any{}},
		{name: "non-string event field", values: map[string]any{"event": 42}},
		{name: "malformed json", values: map[string]any{"event": "{not json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage(tt.values)
			assert.Error(t, err)
		})
	}
}

func TestDiscardPublisher(t *testing.T) {
	assert.NoError(t, Discard{}.Publish(context.Background(), UserEventsStream, UserCreated, UserCreatedEvent{UserID: "usr-1"}))
}
