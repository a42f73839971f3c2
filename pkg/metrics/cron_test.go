package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	end := time.Unix(1_770_000_000, 0)

	m.ObserveRun("cycle", 250*time.Millisecond, end, nil)
	m.ObserveRun("cycle", time.Second, end.Add(time.Minute), errors.New("boom"))
	m.ObserveRun("", time.Millisecond, end, nil)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cycle", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("cycle", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("unknown", "success")))
	// a failure leaves the last success untouched
	require.Equal(t, float64(end.Unix()), testutil.ToFloat64(m.lastSuccess.WithLabelValues("cycle")))
	require.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var cron *CronJobMetrics
	cron.ObserveRun("cycle", time.Second, time.Now(), nil)
	NewCronJobMetrics(nil).ObserveRun("cycle", time.Second, time.Now(), nil)

	var outbox *OutboxMetrics
	outbox.IncPublished("fund_distributed")
	outbox.IncRetried()
	NewOutboxMetrics(nil).IncDeadLettered("max_attempts")
}

func TestOutboxMetricsCount(t *testing.T) {
	m := NewOutboxMetrics(prometheus.NewRegistry())
	m.IncPublished("remittance_confirmed")
	m.IncPublished("remittance_confirmed")
	m.IncRetried()
	m.IncDeadLettered("non_retryable")

	require.Equal(t, 2.0, testutil.ToFloat64(m.published.WithLabelValues("remittance_confirmed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.retried))
	require.Equal(t, 1.0, testutil.ToFloat64(m.deadLettered.WithLabelValues("non_retryable")))
}
