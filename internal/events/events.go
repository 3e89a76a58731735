// Package events описывает закрытый набор доменных событий жизненного цикла
// заявки и шины, по которым они доставляются диспетчеру уведомлений.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/model"
)

// Type тег варианта события
type Type string

const (
	TypeRequestCreated   Type = "request.created"
	TypeRequestAccepted  Type = "request.accepted"
	TypeRequestConfirmed Type = "request.confirmed"
	TypeRequestDeclined  Type = "request.declined"
	TypeRequestCompleted Type = "request.completed"
	TypeReminderDue      Type = "reminder.due"
)

// Event доменное событие. Реализации есть только в этом пакете.
type Event interface {
	Type() Type
	RequestID() string
	OccurredAt() time.Time
	sealed()
}

// Base общие поля всех событий: полный снимок заявки после перехода
type Base struct {
	Request *model.Request `json:"request"`
	At      time.Time      `json:"at"`
}

func (b Base) RequestID() string {
	if b.Request == nil {
		return ""
	}
	return b.Request.ID
}

func (b Base) OccurredAt() time.Time { return b.At }

func (Base) sealed() {}

// RequestCreated ученик создал заявку
type RequestCreated struct {
	Base
}

func (RequestCreated) Type() Type { return TypeRequestCreated }

// RequestAccepted дедушка принял заявку, адрес раскрыт
type RequestAccepted struct {
	Base
}

func (RequestAccepted) Type() Type { return TypeRequestAccepted }

// RequestConfirmed ученик подтвердил встречу.
// SessionStart пуст, если время задано только текстом.
type RequestConfirmed struct {
	Base
	SessionStart *time.Time `json:"session_start,omitempty"`
}

func (RequestConfirmed) Type() Type { return TypeRequestConfirmed }

// RequestDeclined одна из сторон отклонила заявку
type RequestDeclined struct {
	Base
	By model.Role `json:"by"`
}

func (RequestDeclined) Type() Type { return TypeRequestDeclined }

// RequestCompleted встреча отмечена как состоявшаяся
type RequestCompleted struct {
	Base
}

func (RequestCompleted) Type() Type { return TypeRequestCompleted }

// ReminderDue напоминание одной из сторон о встрече через ~24 часа
type ReminderDue struct {
	Base
	Recipient    model.Role `json:"recipient"`
	SessionStart time.Time  `json:"session_start"`
	Display      string     `json:"display"`
}

func (ReminderDue) Type() Type { return TypeReminderDue }

// Publisher публикует события. Ошибка публикации не откатывает переход.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Handler обработчик событий на стороне подписчика
type Handler func(ctx context.Context, evt Event)

// Envelope формат события на проводе
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode упаковывает событие в конверт
func Encode(evt Event) ([]byte, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", evt.Type(), err)
	}
	return json.Marshal(Envelope{Type: evt.Type(), Payload: payload})
}

// Decode восстанавливает типизированное событие из конверта
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var evt Event
	switch env.Type {
	case TypeRequestCreated:
		evt = &RequestCreated{}
	case TypeRequestAccepted:
		evt = &RequestAccepted{}
	case TypeRequestConfirmed:
		evt = &RequestConfirmed{}
	case TypeRequestDeclined:
		evt = &RequestDeclined{}
	case TypeRequestCompleted:
		evt = &RequestCompleted{}
	case TypeReminderDue:
		evt = &ReminderDue{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if err := json.Unmarshal(env.Payload, evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	if evt.RequestID() == "" {
		return nil, fmt.Errorf("%s event without request snapshot", env.Type)
	}

	return deref(evt), nil
}

// deref возвращает значение вместо указателя, чтобы type switch у
// подписчиков не зависел от транспорта
func deref(evt Event) Event {
	switch e := evt.(type) {
	case *RequestCreated:
		return *e
	case *RequestAccepted:
		return *e
	case *RequestConfirmed:
		return *e
	case *RequestDeclined:
		return *e
	case *RequestCompleted:
		return *e
	case *ReminderDue:
		return *e
	}
	return evt
}

// Subject NATS-субъект для типа события
func Subject(prefix string, t Type) string {
	return prefix + "." + string(t)
}
