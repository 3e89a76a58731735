package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/service"
	"go.uber.org/zap"
)

// ReminderScanner один проход поиска встреч для напоминания
type ReminderScanner interface {
	Scan(ctx context.Context) (service.ScanReport, error)
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	scanner  ReminderScanner
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	done chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(scanner ReminderScanner, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start запускает сканер напоминаний в отдельной горутине
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}
	s.done = make(chan struct{})

	s.logger.Info("Starting reminder scheduler", zap.Duration("interval", s.interval))
	go s.runReminderTask(ctx, s.done)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего прохода.
// Без предшествующего Start возвращается сразу.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping reminder scheduler")
		close(s.stopChan)
	})

	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (s *Scheduler) runReminderTask(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Первый запуск сразу при старте
	s.scan(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.scan(ctx)
		case <-s.stopChan:
			s.logger.Info("Reminder task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reminder task cancelled")
			return
		}
	}
}

func (s *Scheduler) scan(ctx context.Context) {
	report, err := s.scanner.Scan(ctx)
	if err != nil {
		s.logger.Error("Reminder scan failed", zap.Error(err))
		return
	}

	s.logger.Debug("Reminder scan completed",
		zap.Int("scanned", report.Scanned),
		zap.Int("sent", report.Sent),
	)
}
