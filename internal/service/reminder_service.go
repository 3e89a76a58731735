package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/events"
	"github.com/Freeeeeet/askgrandpa/internal/formatting"
	"github.com/Freeeeeet/askgrandpa/internal/metrics"
	"github.com/Freeeeeet/askgrandpa/internal/model"
	"go.uber.org/zap"
)

const (
	DefaultReminderLead      = 24 * time.Hour
	DefaultReminderTolerance = 2 * time.Hour
)

// Исходы обработки одной заявки при сканировании
const (
	OutcomeSent        = "sent"
	OutcomeAlreadySent = "already_sent"
	OutcomeOutOfWindow = "out_of_window"
	OutcomeUnresolved  = "unresolved"
	OutcomeFailed      = "failed"
)

// ReminderWindow окно отправки: встреча начинается через Lead ± Tolerance
type ReminderWindow struct {
	Lead      time.Duration
	Tolerance time.Duration
}

// DefaultReminderWindow напоминание примерно за сутки
func DefaultReminderWindow() ReminderWindow {
	return ReminderWindow{Lead: DefaultReminderLead, Tolerance: DefaultReminderTolerance}
}

// Contains проверяет, попадает ли start в окно относительно now. Границы включены.
func (w ReminderWindow) Contains(start, now time.Time) bool {
	from := now.Add(w.Lead - w.Tolerance)
	to := now.Add(w.Lead + w.Tolerance)
	return !start.Before(from) && !start.After(to)
}

// ScanReport итог одного прохода сканера
type ScanReport struct {
	Scanned     int `json:"scanned"`
	Sent        int `json:"sent"`
	AlreadySent int `json:"already_sent"`
	OutOfWindow int `json:"out_of_window"`
	Unresolved  int `json:"unresolved"`
	Failed      int `json:"failed"`
}

func (r *ScanReport) add(outcome string) {
	switch outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeAlreadySent:
		r.AlreadySent++
	case OutcomeOutOfWindow:
		r.OutOfWindow++
	case OutcomeUnresolved:
		r.Unresolved++
	case OutcomeFailed:
		r.Failed++
	}
}

// ReminderService находит подтверждённые встречи, до которых осталось
// около суток, и публикует по одному напоминанию каждой стороне
type ReminderService struct {
	requests  RequestStore
	reminders ReminderStore
	publisher events.Publisher
	clock     Clock
	location  *time.Location
	window    ReminderWindow
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func NewReminderService(
	requests RequestStore,
	reminders ReminderStore,
	publisher events.Publisher,
	clock Clock,
	location *time.Location,
	window ReminderWindow,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ReminderService {
	if clock == nil {
		clock = SystemClock
	}
	if location == nil {
		location = time.UTC
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &ReminderService{
		requests:  requests,
		reminders: reminders,
		publisher: publisher,
		clock:     clock,
		location:  location,
		window:    window,
		metrics:   m,
		logger:    logger,
	}
}

// Scan выполняет один проход. Ошибка одной заявки не прерывает проход;
// ошибка возвращается, только если не удалось получить список заявок.
func (s *ReminderService) Scan(ctx context.Context) (ScanReport, error) {
	started := time.Now()
	defer func() { s.metrics.ScanDuration.Observe(time.Since(started).Seconds()) }()

	var report ScanReport

	confirmed, err := s.requests.ListByStatus(ctx, model.RequestStatusConfirmed)
	if err != nil {
		return report, fmt.Errorf("list confirmed requests: %w", err)
	}

	now := s.clock.Now()
	for _, req := range confirmed {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		report.Scanned++
		outcome := s.process(ctx, req, now)
		report.add(outcome)
		s.metrics.Reminders.WithLabelValues(outcome).Inc()
	}

	if report.Sent > 0 || report.Failed > 0 {
		s.logger.Info("Reminder scan finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("sent", report.Sent),
			zap.Int("already_sent", report.AlreadySent),
			zap.Int("unresolved", report.Unresolved),
			zap.Int("failed", report.Failed),
		)
	}

	return report, nil
}

func (s *ReminderService) process(ctx context.Context, req *model.Request, now time.Time) (outcome string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic while processing reminder",
				zap.String("request_id", req.ID),
				zap.Any("panic", r),
			)
			outcome = OutcomeFailed
		}
	}()

	start, err := model.ResolveSessionStart(req, s.location)
	if err != nil {
		s.logger.Debug("Skipping reminder for request without a concrete time",
			zap.String("request_id", req.ID),
		)
		return OutcomeUnresolved
	}

	if !s.window.Contains(start, now) {
		return OutcomeOutOfWindow
	}

	// Без публикатора напоминание не уйдёт, запись о нём не создаётся
	if s.publisher == nil {
		s.logger.Error("No publisher configured, reminder not emitted",
			zap.String("request_id", req.ID),
		)
		return OutcomeFailed
	}

	// Запись о напоминании создаётся до публикации: не больше одного напоминания на заявку
	claimed, err := s.reminders.ClaimReminder(ctx, req.ID, now)
	if err != nil {
		s.logger.Error("Failed to record reminder",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
		return OutcomeFailed
	}
	if !claimed {
		return OutcomeAlreadySent
	}

	display := formatting.FormatDateTime(start)
	failed := false
	for _, recipient := range []model.Role{model.RoleApprentice, model.RoleGrandpa} {
		evt := events.ReminderDue{
			Base:         events.Base{Request: req.Clone(), At: now},
			Recipient:    recipient,
			SessionStart: start,
			Display:      display,
		}
		if err := s.publisher.Publish(ctx, evt); err != nil {
			failed = true
			s.metrics.PublishErrors.WithLabelValues(string(evt.Type())).Inc()
			s.logger.Error("Failed to publish reminder",
				zap.String("request_id", req.ID),
				zap.String("recipient", string(recipient)),
				zap.Error(err),
			)
		}
	}
	if failed {
		return OutcomeFailed
	}

	s.logger.Info("Reminder sent",
		zap.String("request_id", req.ID),
		zap.Time("session_start", start),
	)
	return OutcomeSent
}
