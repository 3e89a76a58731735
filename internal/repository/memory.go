package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
)

// MemoryStore хранилище заявок, профилей и напоминаний в памяти.
// Повторяет семантику Postgres-репозиториев: сравнение статуса при переходе,
// атомарная запись напоминания. Используется при STORAGE=memory и в тестах.
type MemoryStore struct {
	mu        sync.Mutex
	requests  map[string]*model.Request
	profiles  map[string]*model.Profile
	reminders map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests:  make(map[string]*model.Request),
		profiles:  make(map[string]*model.Profile),
		reminders: make(map[string]time.Time),
	}
}

// Create сохраняет новую заявку
func (s *MemoryStore) Create(_ context.Context, req *model.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return model.NewValidationError("create", "request %s already exists", req.ID)
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// GetByID получает заявку по ID
func (s *MemoryStore) GetByID(_ context.Context, id string) (*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "request", ID: id}
	}
	return req.Clone(), nil
}

// Transition записывает заявку, если текущий статус равен expected
func (s *MemoryStore) Transition(_ context.Context, req *model.Request, expected model.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.requests[req.ID]
	if !ok {
		return &model.NotFoundError{Kind: "request", ID: req.ID}
	}
	if current.Status != expected {
		return model.NewValidationError("transition", "request is %s, expected %s", current.Status, expected)
	}

	next := req.Clone()
	// Журнал переходов только дополняется
	next.CreatedAt = current.CreatedAt
	next.RespondedAt = keepFirst(current.RespondedAt, next.RespondedAt)
	next.ConfirmedAt = keepFirst(current.ConfirmedAt, next.ConfirmedAt)
	next.DeclinedAt = keepFirst(current.DeclinedAt, next.DeclinedAt)
	next.CompletedAt = keepFirst(current.CompletedAt, next.CompletedAt)

	s.requests[req.ID] = next
	return nil
}

// ListForParty получает заявки стороны, новые первыми
func (s *MemoryStore) ListForParty(_ context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Request
	for _, req := range s.requests {
		if filter.Matches(req) {
			result = append(result, req.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// ListByStatus получает все заявки в статусе, старые первыми
func (s *MemoryStore) ListByStatus(_ context.Context, status model.RequestStatus) ([]*model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*model.Request
	for _, req := range s.requests {
		if req.Status == status {
			result = append(result, req.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// ClaimReminder атомарно создаёт запись о напоминании
func (s *MemoryStore) ClaimReminder(_ context.Context, requestID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, sent := s.reminders[requestID]; sent {
		return false, nil
	}
	s.reminders[requestID] = at
	return true, nil
}

// ReminderSentAt возвращает время отправки напоминания
func (s *MemoryStore) ReminderSentAt(_ context.Context, requestID string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at, ok := s.reminders[requestID]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

// Upsert создаёт или обновляет профиль
func (s *MemoryStore) Upsert(_ context.Context, profile *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *profile
	if existing, ok := s.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.profiles[p.ID] = &p
	return nil
}

// GetByProfileID получает профиль по ID
func (s *MemoryStore) GetByProfileID(_ context.Context, id string) (*model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, &model.NotFoundError{Kind: "profile", ID: id}
	}
	c := *p
	return &c, nil
}

// AddressOf возвращает сохранённый адрес пользователя
func (s *MemoryStore) AddressOf(ctx context.Context, userID string) (model.Address, error) {
	p, err := s.GetByProfileID(ctx, userID)
	if err != nil {
		return model.Address{}, err
	}
	return p.Address, nil
}

func keepFirst(existing, next *time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	return next
}
