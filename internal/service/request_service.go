package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/events"
	"github.com/Freeeeeet/askgrandpa/internal/metrics"
	"github.com/Freeeeeet/askgrandpa/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Policy настраиваемые правила переходов
type Policy struct {
	// AllowDeclineConfirmed разрешает отклонить уже подтверждённую встречу
	AllowDeclineConfirmed bool
	// RequireOfferSubset требует, чтобы дедушка выбирал только из слотов ученика
	RequireOfferSubset bool
}

type RequestService struct {
	store     RequestStore
	profiles  ProfileLookup
	publisher events.Publisher
	clock     Clock
	location  *time.Location
	policy    Policy
	metrics   *metrics.Metrics
	logger    *zap.Logger
	newID     func() string
}

func NewRequestService(
	store RequestStore,
	profiles ProfileLookup,
	publisher events.Publisher,
	clock Clock,
	location *time.Location,
	policy Policy,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RequestService {
	if clock == nil {
		clock = SystemClock
	}
	if location == nil {
		location = time.UTC
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &RequestService{
		store:     store,
		profiles:  profiles,
		publisher: publisher,
		clock:     clock,
		location:  location,
		policy:    policy,
		metrics:   m,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// CreateRequestInput данные новой заявки от ученика
type CreateRequestInput struct {
	Apprentice   model.Party
	Grandpa      model.Party
	Subject      string
	Skill        string
	Message      string
	Availability model.AvailabilityOffer
}

// AcceptInput ответ дедушки
type AcceptInput struct {
	RequestID    string
	GrandpaID    string
	Response     string
	Availability model.AvailabilityOffer
	ProposedTime string
}

// ConfirmInput подтверждение ученика
type ConfirmInput struct {
	RequestID    string
	ApprenticeID string
	Message      string
}

// DeclineInput отказ одной из сторон
type DeclineInput struct {
	RequestID string
	ActorID   string
	Reason    string
}

// Create создаёт заявку в статусе pending
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*model.Request, error) {
	const op = "create"

	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, s.rejected(op, model.NewValidationError(op, "message is required"))
	}
	if strings.TrimSpace(in.Apprentice.ID) == "" || strings.TrimSpace(in.Grandpa.ID) == "" {
		return nil, s.rejected(op, model.NewValidationError(op, "apprentice and grandpa ids are required"))
	}
	if in.Apprentice.ID == in.Grandpa.ID {
		return nil, s.rejected(op, model.NewValidationError(op, "apprentice and grandpa must be different users"))
	}

	offer, err := in.Availability.Normalize()
	if err != nil {
		return nil, s.rejected(op, model.NewValidationError(op, "%v", err))
	}
	if offer.IsEmpty() {
		return nil, s.rejected(op, model.NewValidationError(op, "availability is required"))
	}

	now := s.clock.Now()
	req := &model.Request{
		ID:              s.newID(),
		Apprentice:      in.Apprentice,
		Grandpa:         in.Grandpa,
		Subject:         strings.TrimSpace(in.Subject),
		Skill:           strings.TrimSpace(in.Skill),
		Message:         message,
		ApprenticeOffer: offer,
		Status:          model.RequestStatusPending,
		CreatedAt:       now,
	}

	if err := s.store.Create(ctx, req); err != nil {
		s.metrics.Transitions.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.metrics.Transitions.WithLabelValues(op, "ok").Inc()

	s.logger.Info("Request created",
		zap.String("request_id", req.ID),
		zap.String("apprentice_id", req.Apprentice.ID),
		zap.String("grandpa_id", req.Grandpa.ID),
		zap.Int("slots", offer.SlotCount()),
	)

	s.publish(ctx, events.RequestCreated{Base: events.Base{Request: req.Clone(), At: now}})

	return req, nil
}

// Accept дедушка принимает заявку и предлагает время.
// Переход раскрывает адрес ученика: он копируется из профиля в заявку.
func (s *RequestService) Accept(ctx context.Context, in AcceptInput) (*model.Request, error) {
	const op = "accept"

	return s.apply(ctx, op, in.RequestID, func(req *model.Request, now time.Time) (events.Event, error) {
		if req.Grandpa.ID != in.GrandpaID {
			return nil, model.NewValidationError(op, "only the requested grandpa can accept")
		}
		if req.Status != model.RequestStatusPending {
			return nil, model.NewValidationError(op, "request is %s, expected %s", req.Status, model.RequestStatusPending)
		}

		response := strings.TrimSpace(in.Response)
		if response == "" {
			return nil, model.NewValidationError(op, "response message is required")
		}

		offer, err := in.Availability.Normalize()
		if err != nil {
			return nil, model.NewValidationError(op, "%v", err)
		}
		proposed := strings.TrimSpace(in.ProposedTime)
		if offer.IsEmpty() && proposed == "" {
			return nil, model.NewValidationError(op, "availability or a proposed time is required")
		}
		if s.policy.RequireOfferSubset && !offer.IsSubsetOf(req.ApprenticeOffer) {
			return nil, model.NewValidationError(op, "offered slots must be chosen from the apprentice's availability")
		}

		address, err := s.profiles.AddressOf(ctx, req.Apprentice.ID)
		if err != nil {
			return nil, fmt.Errorf("resolve apprentice address: %w", err)
		}

		req.Status = model.RequestStatusAccepted
		req.GrandpaResponse = response
		req.GrandpaOffer = offer
		req.ProposedTime = proposed
		req.Address = &address
		req.RespondedAt = &now

		return events.RequestAccepted{Base: events.Base{Request: req.Clone(), At: now}}, nil
	})
}

// Confirm ученик подтверждает встречу, время сессии фиксируется
func (s *RequestService) Confirm(ctx context.Context, in ConfirmInput) (*model.Request, error) {
	const op = "confirm"

	return s.apply(ctx, op, in.RequestID, func(req *model.Request, now time.Time) (events.Event, error) {
		if req.Apprentice.ID != in.ApprenticeID {
			return nil, model.NewValidationError(op, "only the apprentice can confirm")
		}
		if req.Status != model.RequestStatusAccepted {
			return nil, model.NewValidationError(op, "request is %s, expected %s", req.Status, model.RequestStatusAccepted)
		}

		req.Status = model.RequestStatusConfirmed
		req.ConfirmationMessage = strings.TrimSpace(in.Message)
		req.ConfirmedAt = &now

		if start, err := model.ResolveSessionStart(req, s.location); err == nil {
			req.SessionStart = &start
		} else {
			s.logger.Info("Session confirmed without a concrete time",
				zap.String("request_id", req.ID),
				zap.String("proposed_time", req.ProposedTime),
			)
		}

		return events.RequestConfirmed{
			Base:         events.Base{Request: req.Clone(), At: now},
			SessionStart: req.SessionStart,
		}, nil
	})
}

// Decline одна из сторон отклоняет заявку. Раскрытый адрес убирается.
func (s *RequestService) Decline(ctx context.Context, in DeclineInput) (*model.Request, error) {
	const op = "decline"

	return s.apply(ctx, op, in.RequestID, func(req *model.Request, now time.Time) (events.Event, error) {
		role, ok := req.RoleOf(in.ActorID)
		if !ok {
			return nil, model.NewValidationError(op, "only a party of the request can decline")
		}
		if !s.canDecline(req.Status) {
			return nil, model.NewValidationError(op, "cannot decline a %s request", req.Status)
		}

		req.Status = model.RequestStatusDeclined
		req.DeclinedBy = role
		req.DeclineReason = strings.TrimSpace(in.Reason)
		req.Address = nil
		req.DeclinedAt = &now

		return events.RequestDeclined{Base: events.Base{Request: req.Clone(), At: now}, By: role}, nil
	})
}

// Complete отмечает подтверждённую встречу как состоявшуюся (административно)
func (s *RequestService) Complete(ctx context.Context, requestID string) (*model.Request, error) {
	const op = "complete"

	return s.apply(ctx, op, requestID, func(req *model.Request, now time.Time) (events.Event, error) {
		if req.Status != model.RequestStatusConfirmed {
			return nil, model.NewValidationError(op, "request is %s, expected %s", req.Status, model.RequestStatusConfirmed)
		}

		req.Status = model.RequestStatusCompleted
		req.CompletedAt = &now

		return events.RequestCompleted{Base: events.Base{Request: req.Clone(), At: now}}, nil
	})
}

// GetByID получает заявку по ID
func (s *RequestService) GetByID(ctx context.Context, id string) (*model.Request, error) {
	return s.store.GetByID(ctx, id)
}

// ListForParty заявки стороны с необязательными фильтрами роли и статуса, новые первыми
func (s *RequestService) ListForParty(ctx context.Context, filter model.RequestFilter) ([]*model.Request, error) {
	if strings.TrimSpace(filter.PartyID) == "" {
		return nil, model.NewValidationError("list", "party id is required")
	}
	return s.store.ListForParty(ctx, filter)
}

func (s *RequestService) canDecline(status model.RequestStatus) bool {
	if status.IsTerminal() {
		return false
	}
	switch status {
	case model.RequestStatusPending, model.RequestStatusAccepted:
		return true
	case model.RequestStatusConfirmed:
		return s.policy.AllowDeclineConfirmed
	}
	return false
}

// transitionFunc меняет копию заявки и возвращает событие перехода.
// Ошибка означает, что переход не применяется.
type transitionFunc func(req *model.Request, now time.Time) (events.Event, error)

// apply читает заявку, применяет переход к копии и записывает её
// сравнением-и-записью по исходному статусу. Событие публикуется после записи.
func (s *RequestService) apply(ctx context.Context, op, requestID string, fn transitionFunc) (*model.Request, error) {
	current, err := s.store.GetByID(ctx, requestID)
	if err != nil {
		s.metrics.Transitions.WithLabelValues(op, "error").Inc()
		return nil, err
	}

	expected := current.Status
	next := current.Clone()
	now := s.clock.Now()

	evt, err := fn(next, now)
	if err != nil {
		return nil, s.rejected(op, err)
	}

	if err := s.store.Transition(ctx, next, expected); err != nil {
		return nil, s.rejected(op, err)
	}
	s.metrics.Transitions.WithLabelValues(op, "ok").Inc()

	s.logger.Info("Request transitioned",
		zap.String("request_id", next.ID),
		zap.String("transition", op),
		zap.String("from", string(expected)),
		zap.String("to", string(next.Status)),
	)

	s.publish(ctx, evt)

	return next, nil
}

func (s *RequestService) rejected(op string, err error) error {
	s.metrics.Transitions.WithLabelValues(op, "rejected").Inc()
	if model.IsValidation(err) {
		s.logger.Debug("Transition rejected", zap.String("transition", op), zap.Error(err))
	} else {
		s.logger.Warn("Transition failed", zap.String("transition", op), zap.Error(err))
	}
	return err
}

// publish отправляет событие; ошибка логируется и не влияет на переход
func (s *RequestService) publish(ctx context.Context, evt events.Event) {
	if s.publisher == nil || evt == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.metrics.PublishErrors.WithLabelValues(string(evt.Type())).Inc()
		s.logger.Error("Failed to publish event",
			zap.String("type", string(evt.Type())),
			zap.String("request_id", evt.RequestID()),
			zap.Error(err),
		)
	}
}
