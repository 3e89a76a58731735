package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("smtp: 451")))
}

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Notifications.WithLabelValues("session_reminder", Result(nil)).Inc()
	m.ScanDuration.Observe(0.2)

	n, err := testutil.GatherAndCount(reg, "askgrandpa_notifications_total", "askgrandpa_reminder_scan_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	// Без реестра метрики всё равно пригодны к использованию
	assert.NotPanics(t, func() { New(nil).Reminders.WithLabelValues("sent").Inc() })
}
