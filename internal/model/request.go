package model

import (
	"strings"
	"time"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"   // Ожидает ответа дедушки
	RequestStatusAccepted  RequestStatus = "accepted"  // Дедушка согласился и предложил время
	RequestStatusConfirmed RequestStatus = "confirmed" // Ученик подтвердил встречу
	RequestStatusDeclined  RequestStatus = "declined"  // Отклонено одной из сторон
	RequestStatusCompleted RequestStatus = "completed" // Встреча состоялась
)

// ParseRequestStatus разбирает статус из строки (например из query-параметра)
func ParseRequestStatus(s string) (RequestStatus, bool) {
	switch status := RequestStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case RequestStatusPending, RequestStatusAccepted, RequestStatusConfirmed,
		RequestStatusDeclined, RequestStatusCompleted:
		return status, true
	}
	return "", false
}

// IsTerminal проверяет, что из статуса больше нет переходов
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusDeclined || s == RequestStatusCompleted
}

// DisclosesAddress статусы, в которых адрес ученика раскрыт дедушке
func (s RequestStatus) DisclosesAddress() bool {
	return s == RequestStatusAccepted || s == RequestStatusConfirmed || s == RequestStatusCompleted
}

// Role сторона заявки
type Role string

const (
	RoleApprentice Role = "apprentice"
	RoleGrandpa    Role = "grandpa"
)

// ParseRole разбирает роль стороны заявки
func ParseRole(s string) (Role, bool) {
	switch role := Role(strings.ToLower(strings.TrimSpace(s))); role {
	case RoleApprentice, RoleGrandpa:
		return role, true
	}
	return "", false
}

// Party снимок данных стороны на момент создания заявки.
// Авторитетный идентификатор ID, имя и email сохраняются для уведомлений.
type Party struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty"`
}

// Address адрес встречи, раскрывается только после принятия заявки
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
}

// String однострочное представление для писем
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.Region, a.PostalCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Request одна заявка на наставничество между учеником и дедушкой
type Request struct {
	ID         string `json:"id"`
	Apprentice Party  `json:"apprentice"`
	Grandpa    Party  `json:"grandpa"`

	Subject         string            `json:"subject"`
	Skill           string            `json:"skill"`
	Message         string            `json:"message"`
	ApprenticeOffer AvailabilityOffer `json:"apprentice_offer"`

	// Заполняются по мере переговоров
	GrandpaResponse     string            `json:"grandpa_response,omitempty"`
	GrandpaOffer        AvailabilityOffer `json:"grandpa_offer,omitempty"`
	ProposedTime        string            `json:"proposed_time,omitempty"`
	ConfirmationMessage string            `json:"confirmation_message,omitempty"`
	Address             *Address          `json:"address,omitempty"`
	SessionStart        *time.Time        `json:"session_start,omitempty"`

	Status        RequestStatus `json:"status"`
	DeclinedBy    Role          `json:"declined_by,omitempty"`
	DeclineReason string        `json:"decline_reason,omitempty"`

	// Журнал переходов: каждое поле выставляется один раз
	CreatedAt   time.Time  `json:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	DeclinedAt  *time.Time `json:"declined_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone глубокая копия для снимков событий и хранилища в памяти
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.ApprenticeOffer = cloneOffer(r.ApprenticeOffer)
	c.GrandpaOffer = cloneOffer(r.GrandpaOffer)
	if r.Address != nil {
		addr := *r.Address
		c.Address = &addr
	}
	c.SessionStart = cloneTime(r.SessionStart)
	c.RespondedAt = cloneTime(r.RespondedAt)
	c.ConfirmedAt = cloneTime(r.ConfirmedAt)
	c.DeclinedAt = cloneTime(r.DeclinedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	return &c
}

// PartyFor возвращает сторону по роли
func (r *Request) PartyFor(role Role) (Party, bool) {
	switch role {
	case RoleApprentice:
		return r.Apprentice, true
	case RoleGrandpa:
		return r.Grandpa, true
	}
	return Party{}, false
}

// Counterpart возвращает вторую сторону заявки
func (r *Request) Counterpart(role Role) (Role, Party) {
	if role == RoleApprentice {
		return RoleGrandpa, r.Grandpa
	}
	return RoleApprentice, r.Apprentice
}

// RoleOf определяет роль пользователя в заявке
func (r *Request) RoleOf(userID string) (Role, bool) {
	switch userID {
	case "":
		return "", false
	case r.Apprentice.ID:
		return RoleApprentice, true
	case r.Grandpa.ID:
		return RoleGrandpa, true
	}
	return "", false
}

func cloneOffer(o AvailabilityOffer) AvailabilityOffer {
	if o == nil {
		return nil
	}
	c := make(AvailabilityOffer, len(o))
	for i, day := range o {
		c[i] = DayOffer{Date: day.Date, Hours: append([]int(nil), day.Hours...)}
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RequestFilter выборка заявок стороны для дашборда.
// Пустые Role и Status означают "любая".
type RequestFilter struct {
	PartyID string
	Role    Role
	Status  RequestStatus
}

// Matches проверяет заявку на соответствие фильтру
func (f RequestFilter) Matches(r *Request) bool {
	switch f.Role {
	case RoleApprentice:
		if r.Apprentice.ID != f.PartyID {
			return false
		}
	case RoleGrandpa:
		if r.Grandpa.ID != f.PartyID {
			return false
		}
	default:
		if r.Apprentice.ID != f.PartyID && r.Grandpa.ID != f.PartyID {
			return false
		}
	}
	return f.Status == "" || r.Status == f.Status
}
