package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/events"
	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func reminders(evts []events.Event) []events.ReminderDue {
	var out []events.ReminderDue
	for _, evt := range evts {
		if r, ok := evt.(events.ReminderDue); ok {
			out = append(out, r)
		}
	}
	return out
}

func TestReminderScenario(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	req := f.confirmed(t)
	f.publisher.Reset()

	// За 23.5 часа до встречи
	f.clock.Set(time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC))
	report, err := f.reminders.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Scanned: 1, Sent: 1}, report)

	sent := reminders(f.publisher.Events())
	require.Len(t, sent, 2)
	assert.Equal(t, model.RoleApprentice, sent[0].Recipient)
	assert.Equal(t, model.RoleGrandpa, sent[1].Recipient)
	for _, r := range sent {
		assert.Equal(t, req.ID, r.RequestID())
		assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), r.SessionStart)
		assert.Equal(t, "Monday, March 10, 2025 at 2:00 PM", r.Display)
	}

	at, err := f.store.ReminderSentAt(ctx, req.ID)
	require.NoError(t, err)
	require.NotNil(t, at)

	// Повторный проход через полчаса
	f.clock.Set(time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC))
	report, err = f.reminders.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Scanned: 1, AlreadySent: 1}, report)
	assert.Len(t, reminders(f.publisher.Events()), 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reminders.WithLabelValues(OutcomeSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Reminders.WithLabelValues(OutcomeAlreadySent)))
}

func TestReminderAtMostOnceBackToBack(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	f.confirmed(t)
	f.publisher.Reset()
	f.clock.Set(time.Date(2025, 3, 9, 14, 0, 0, 0, time.UTC))

	_, err := f.reminders.Scan(ctx)
	require.NoError(t, err)
	_, err = f.reminders.Scan(ctx)
	require.NoError(t, err)

	assert.Len(t, reminders(f.publisher.Events()), 2)
}

func TestReminderWindowBoundaries(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	w := DefaultReminderWindow()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "exactly 26h before", now: start.Add(-26 * time.Hour), want: true},
		{name: "exactly 22h before", now: start.Add(-22 * time.Hour), want: true},
		{name: "24h before", now: start.Add(-24 * time.Hour), want: true},
		{name: "just over 26h before", now: start.Add(-26*time.Hour - time.Second), want: false},
		{name: "just under 22h before", now: start.Add(-22*time.Hour + time.Second), want: false},
		{name: "after start", now: start.Add(time.Hour), want: false},
		{name: "a week before", now: start.Add(-7 * 24 * time.Hour), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(start, tt.now))
		})
	}
}

func TestReminderScanOutcomes(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()

	// В окне
	f.confirmed(t)

	// Только текстовое время
	vague := f.create(t)
	_, err := f.requests.Accept(ctx, AcceptInput{RequestID: vague.ID, GrandpaID: grandpaParty.ID, Response: "ok", ProposedTime: "some evening"})
	require.NoError(t, err)
	f.confirm(t, vague.ID)

	// Слишком далеко
	far := f.create(t)
	_, err = f.requests.Accept(ctx, AcceptInput{
		RequestID:    far.ID,
		GrandpaID:    grandpaParty.ID,
		Response:     "ok",
		Availability: model.AvailabilityOffer{{Date: "2025-03-20", Hours: []int{10}}},
	})
	require.NoError(t, err)
	f.confirm(t, far.ID)

	// Ожидает ответа, не сканируется
	f.create(t)

	f.publisher.Reset()
	f.clock.Set(time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC))

	report, err := f.reminders.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Scanned: 3, Sent: 1, OutOfWindow: 1, Unresolved: 1}, report)
	assert.Len(t, reminders(f.publisher.Events()), 2)

	at, err := f.store.ReminderSentAt(ctx, vague.ID)
	require.NoError(t, err)
	assert.Nil(t, at)
}

type flakyReminderStore struct {
	ReminderStore
	failFor string
}

func (s *flakyReminderStore) ClaimReminder(ctx context.Context, requestID string, at time.Time) (bool, error) {
	if requestID == s.failFor {
		return false, errors.New("connection reset")
	}
	return s.ReminderStore.ClaimReminder(ctx, requestID, at)
}

func TestReminderScanContinuesAfterFailure(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()

	broken := f.confirmed(t)
	f.clock.Set(f.clock.Now().Add(time.Second))
	healthy := f.confirmed(t)
	f.publisher.Reset()

	svc := NewReminderService(f.store, &flakyReminderStore{ReminderStore: f.store, failFor: broken.ID},
		f.publisher, f.clock, time.UTC, DefaultReminderWindow(), f.metrics, zaptest.NewLogger(t))

	f.clock.Set(time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC))
	report, err := svc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Scanned: 2, Sent: 1, Failed: 1}, report)

	sent := reminders(f.publisher.Events())
	require.Len(t, sent, 2)
	assert.Equal(t, healthy.ID, sent[0].RequestID())

	// Следующий проход повторяет только неудавшуюся заявку
	svc = NewReminderService(f.store, f.store, f.publisher, f.clock, time.UTC, DefaultReminderWindow(), f.metrics, zaptest.NewLogger(t))
	report, err = svc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Scanned: 2, Sent: 1, AlreadySent: 1}, report)
}

func TestReminderPublishFailureStillClaims(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	req := f.confirmed(t)

	f.publisher.err = errPublish
	f.clock.Set(time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC))

	report, err := f.reminders.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	at, err := f.store.ReminderSentAt(ctx, req.ID)
	require.NoError(t, err)
	assert.NotNil(t, at)

	f.publisher.err = nil
	report, err = f.reminders.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AlreadySent)
}

func TestReminderUsesStoredSessionStart(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	req := f.confirmed(t)

	// Изменение предложения после подтверждения не влияет на время встречи
	stored := f.stored(t, req.ID)
	stored.GrandpaOffer = model.AvailabilityOffer{{Date: "2025-03-10", Hours: []int{9}}}
	stored.ConfirmationMessage = "edited"
	require.NoError(t, f.store.Transition(ctx, stored, model.RequestStatusConfirmed))
	f.publisher.Reset()

	f.clock.Set(time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC))
	_, err := f.reminders.Scan(ctx)
	require.NoError(t, err)

	sent := reminders(f.publisher.Events())
	require.Len(t, sent, 2)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), sent[0].SessionStart)
}

func TestReminderWithoutPublisherIsNotCountedAsSent(t *testing.T) {
	f := newFixture(t, Policy{})
	ctx := context.Background()
	req := f.confirmed(t)

	svc := NewReminderService(f.store, f.store, nil, f.clock, time.UTC, DefaultReminderWindow(), f.metrics, zaptest.NewLogger(t))

	f.clock.Set(time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC))
	report, err := svc.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, ScanReport{Scanned: 1, Failed: 1}, report)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.Reminders.WithLabelValues(OutcomeSent)))

	// Запись не создана: после подключения публикатора напоминание уходит
	at, err := f.store.ReminderSentAt(ctx, req.ID)
	require.NoError(t, err)
	assert.Nil(t, at)

	report, err = f.reminders.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}
