package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
)

// RequestStore хранилище заявок. Transition обязан быть атомарным
// сравнением-и-записью по ожидаемому статусу.
type RequestStore interface {
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, id string) (*model.Request, error)
	Transition(ctx context.Context, req *model.Request, expected model.RequestStatus) error
	ListForParty(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error)
	ListByStatus(ctx context.Context, status model.RequestStatus) ([]*model.Request, error)
}

// ReminderStore учёт отправленных напоминаний
type ReminderStore interface {
	// ClaimReminder возвращает true только для первого вызова по заявке
	ClaimReminder(ctx context.Context, requestID string, at time.Time) (bool, error)
	ReminderSentAt(ctx context.Context, requestID string) (*time.Time, error)
}

// ProfileLookup чтение адреса из профиля пользователя
type ProfileLookup interface {
	AddressOf(ctx context.Context, userID string) (model.Address, error)
}

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// ClockFunc адаптер функции к Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock настенные часы
var SystemClock Clock = ClockFunc(time.Now)
