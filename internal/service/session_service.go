package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/formatting"
	"github.com/Freeeeeet/askgrandpa/internal/model"
)

// Session встреча, как её видят стороны
type Session struct {
	Request *model.Request `json:"request"`
	// Start пуст, когда время согласовано только текстом
	Start   *time.Time `json:"start,omitempty"`
	Display string     `json:"display"`
}

// SessionsView встречи стороны, разделённые на будущие и прошедшие
type SessionsView struct {
	Upcoming []Session `json:"upcoming"`
	Previous []Session `json:"previous"`
}

// Session возвращает разрешённое время встречи заявки.
// Используется то же правило, что и в напоминаниях.
func (s *RequestService) Session(ctx context.Context, requestID string) (Session, error) {
	req, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		return Session{}, err
	}
	return s.sessionOf(req), nil
}

// Sessions собирает подтверждённые и завершённые встречи стороны.
// Подтверждённые с прошедшим временем попадают в прошедшие;
// встречи без конкретного времени считаются будущими.
func (s *RequestService) Sessions(ctx context.Context, partyID string) (*SessionsView, error) {
	if strings.TrimSpace(partyID) == "" {
		return nil, model.NewValidationError("sessions", "party id is required")
	}

	confirmed, err := s.store.ListForParty(ctx, model.RequestFilter{PartyID: partyID, Status: model.RequestStatusConfirmed})
	if err != nil {
		return nil, err
	}
	completed, err := s.store.ListForParty(ctx, model.RequestFilter{PartyID: partyID, Status: model.RequestStatusCompleted})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	view := &SessionsView{Upcoming: []Session{}, Previous: []Session{}}

	for _, req := range confirmed {
		session := s.sessionOf(req)
		if session.Start != nil && session.Start.Before(now) {
			view.Previous = append(view.Previous, session)
			continue
		}
		view.Upcoming = append(view.Upcoming, session)
	}
	for _, req := range completed {
		view.Previous = append(view.Previous, s.sessionOf(req))
	}

	// Ближайшие первыми, без времени в конце
	sort.SliceStable(view.Upcoming, func(i, j int) bool {
		a, b := view.Upcoming[i].Start, view.Upcoming[j].Start
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})
	// Последние первыми
	sort.SliceStable(view.Previous, func(i, j int) bool {
		a, b := view.Previous[i].Start, view.Previous[j].Start
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.After(*b)
	})

	return view, nil
}

func (s *RequestService) sessionOf(req *model.Request) Session {
	session := Session{Request: req, Display: formatting.FormatSession(req, s.location)}
	if start, err := model.ResolveSessionStart(req, s.location); err == nil {
		session.Start = &start
	}
	return session
}
