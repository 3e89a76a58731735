// Package notify превращает доменные события в исходящие сообщения сторонам
// и доставляет их через подключаемые транспорты.
package notify

import (
	"context"

	"github.com/Freeeeeet/askgrandpa/internal/model"
)

// TemplateID шаблон уведомления
type TemplateID string

const (
	TemplateRequestReceived  TemplateID = "request_received"
	TemplateRequestSubmitted TemplateID = "request_submitted"
	TemplateRequestAccepted  TemplateID = "request_accepted"
	TemplateRequestConfirmed TemplateID = "request_confirmed"
	TemplateSessionScheduled TemplateID = "session_scheduled"
	TemplateRequestDeclined  TemplateID = "request_declined"
	TemplateSessionCompleted TemplateID = "session_completed"
	TemplateSessionReminder  TemplateID = "session_reminder"
)

// Recipient адресат сообщения
type Recipient struct {
	Role  model.Role
	Party model.Party
}

// Message одно сообщение одной стороне
type Message struct {
	To       Recipient
	Template TemplateID
	Vars     map[string]string
}

// Transport доставляет сообщение. Повторы не выполняются.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// TransportFunc адаптер функции к Transport
type TransportFunc func(ctx context.Context, msg Message) error

func (f TransportFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
