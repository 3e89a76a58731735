package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/events"
	"github.com/Freeeeeet/askgrandpa/internal/metrics"
	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/Freeeeeet/askgrandpa/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func (p *recordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

var errPublish = errors.New("bus unavailable")

type fixture struct {
	store     *repository.MemoryStore
	clock     *fakeClock
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	requests  *RequestService
	reminders *ReminderService
}

var (
	apprenticeParty = model.Party{ID: "apprentice-1", Name: "Ann", Email: "ann@example.com"}
	grandpaParty    = model.Party{ID: "grandpa-1", Name: "George", Email: "george@example.com"}
	apprenticeHome  = model.Address{Line1: "12 Oak Lane", City: "Springfield", PostalCode: "12345"}
)

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	publisher := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())

	require.NoError(t, store.Upsert(context.Background(), &model.Profile{
		ID:      apprenticeParty.ID,
		Name:    apprenticeParty.Name,
		Email:   apprenticeParty.Email,
		Address: apprenticeHome,
	}))

	return &fixture{
		store:     store,
		clock:     clock,
		publisher: publisher,
		metrics:   m,
		requests:  NewRequestService(store, store, publisher, clock, time.UTC, policy, m, logger),
		reminders: NewReminderService(store, store, publisher, clock, time.UTC, DefaultReminderWindow(), m, logger),
	}
}

func (f *fixture) create(t *testing.T) *model.Request {
	t.Helper()
	req, err := f.requests.Create(context.Background(), CreateRequestInput{
		Apprentice:   apprenticeParty,
		Grandpa:      grandpaParty,
		Skill:        "plumbing",
		Message:      "Fix my sink",
		Availability: model.AvailabilityOffer{{Date: "2025-03-10", Hours: []int{14}}},
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) accept(t *testing.T, id string) *model.Request {
	t.Helper()
	req, err := f.requests.Accept(context.Background(), AcceptInput{
		RequestID:    id,
		GrandpaID:    grandpaParty.ID,
		Response:     "Happy to help",
		Availability: model.AvailabilityOffer{{Date: "2025-03-10", Hours: []int{14}}},
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) confirm(t *testing.T, id string) *model.Request {
	t.Helper()
	req, err := f.requests.Confirm(context.Background(), ConfirmInput{
		RequestID:    id,
		ApprenticeID: apprenticeParty.ID,
		Message:      "See you then",
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) confirmed(t *testing.T) *model.Request {
	t.Helper()
	req := f.create(t)
	f.accept(t, req.ID)
	return f.confirm(t, req.ID)
}

func (f *fixture) stored(t *testing.T, id string) *model.Request {
	t.Helper()
	req, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return req
}
