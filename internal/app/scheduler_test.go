package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/askgrandpa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingScanner struct {
	calls atomic.Int32
	err   error
}

func (s *countingScanner) Scan(context.Context) (service.ScanReport, error) {
	s.calls.Add(1)
	return service.ScanReport{Scanned: 1}, s.err
}

func TestSchedulerScansOnStartAndOnTick(t *testing.T) {
	scanner := &countingScanner{}
	s := NewScheduler(scanner, 10*time.Millisecond, zaptest.NewLogger(t))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return scanner.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	calls := scanner.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, scanner.calls.Load())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	scanner := &countingScanner{err: errors.New("database is down")}
	s := NewScheduler(scanner, time.Hour, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	require.Eventually(t, func() bool { return scanner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	scanner := &countingScanner{}
	s := NewScheduler(scanner, time.Hour, zaptest.NewLogger(t))

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without Start")
	}

	// После Stop запуск сразу завершается по закрытому stopChan
	s.Start(context.Background())
	s.Stop()
	assert.LessOrEqual(t, scanner.calls.Load(), int32(1))
}
