package events

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() *model.Request {
	return &model.Request{
		ID:         "req-1",
		Apprentice: model.Party{ID: "a1", Name: "Ann", Email: "ann@example.com"},
		Grandpa:    model.Party{ID: "g1", Name: "George", Email: "george@example.com"},
		Skill:      "woodworking",
		Message:    "Teach me to carve spoons",
		Status:     model.RequestStatusConfirmed,
		Address:    &model.Address{Line1: "1 Elm St", City: "Springfield", PostalCode: "12345"},
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecodeKeepsVariant(t *testing.T) {
	at := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		evt  Event
	}{
		{name: "created", evt: RequestCreated{Base: Base{Request: sampleRequest(), At: at}}},
		{name: "confirmed", evt: RequestConfirmed{Base: Base{Request: sampleRequest(), At: at}, SessionStart: &start}},
		{name: "declined", evt: RequestDeclined{Base: Base{Request: sampleRequest(), At: at}, By: model.RoleGrandpa}},
		{name: "reminder", evt: ReminderDue{
			Base:         Base{Request: sampleRequest(), At: at},
			Recipient:    model.RoleApprentice,
			SessionStart: start,
			Display:      "Monday, March 10, 2025 at 10:00 AM",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.evt)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)

			assert.IsType(t, tt.evt, got)
			assert.Equal(t, tt.evt.Type(), got.Type())
			assert.Equal(t, "req-1", got.RequestID())
			assert.True(t, at.Equal(got.OccurredAt()))
		})
	}
}

func TestDecodeReminderFields(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	data, err := Encode(ReminderDue{
		Base:         Base{Request: sampleRequest(), At: start.Add(-24 * time.Hour)},
		Recipient:    model.RoleGrandpa,
		SessionStart: start,
		Display:      "tomorrow",
	})
	require.NoError(t, err)

	evt, err := Decode(data)
	require.NoError(t, err)

	reminder, ok := evt.(ReminderDue)
	require.True(t, ok)
	assert.Equal(t, model.RoleGrandpa, reminder.Recipient)
	assert.True(t, start.Equal(reminder.SessionStart))
	assert.Equal(t, "tomorrow", reminder.Display)
	require.NotNil(t, reminder.Request.Address)
	assert.Equal(t, "Springfield", reminder.Request.Address.City)
}

func TestDecodeRejectsUnknownAndEmpty(t *testing.T) {
	_, err := Decode([]byte(`{"type":"request.exploded","payload":{}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type":"request.created","payload":{"at":"2025-03-09T10:00:00Z"}}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestMemoryBusFanOut(t *testing.T) {
	bus := NewMemoryBus()

	var first, second []Type
	bus.Subscribe(func(_ context.Context, evt Event) { first = append(first, evt.Type()) })
	bus.Subscribe(func(_ context.Context, evt Event) { second = append(second, evt.Type()) })

	require.NoError(t, bus.Publish(context.Background(), RequestCreated{Base: Base{Request: sampleRequest()}}))
	require.NoError(t, bus.Publish(context.Background(), RequestCompleted{Base: Base{Request: sampleRequest()}}))

	want := []Type{TypeRequestCreated, TypeRequestCompleted}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)
	assert.NoError(t, bus.Close())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "askgrandpa.events.reminder.due", Subject(SubjectPrefix, TypeReminderDue))
}
