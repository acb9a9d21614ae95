package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/queue"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

type fakeQueues struct {
	depth, dlq int
	err        error
}

func (f *fakeQueues) GetQueueDepth() (int, error) { return f.depth, f.err }
func (f *fakeQueues) GetDLQDepth() (int, error)   { return f.dlq, f.err }

type fakeDeliveries map[string]int

func (f fakeDeliveries) CountDeliveriesByStatus(ctx context.Context) (map[string]int, error) {
	return f, nil
}

func TestMonitor_CollectHealthy(t *testing.T) {
	m := NewMonitor(&fakeQueues{depth: 3}, fakeDeliveries{models.WebhookDeliveryStatusPending: 2}, logging.Nop())

	require.NoError(t, m.Collect(context.Background()))

	s := m.Snapshot()
	assert.Equal(t, 3, s.QueueDepth)
	assert.Equal(t, 2, s.PendingDeliveries)
	assert.False(t, s.LastUpdated.IsZero())
	assert.Equal(t, HealthHealthy, m.Health())
	assert.Empty(t, m.Alerts())

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.QueueDepth.WithLabelValues(queue.EventsQueueName)))
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.WebhookDeliveriesByStatus.WithLabelValues(models.WebhookDeliveryStatusPending)))
}

func TestMonitor_Thresholds(t *testing.T) {
	m := NewMonitor(&fakeQueues{depth: 2000, dlq: 150}, fakeDeliveries{models.WebhookDeliveryStatusFailed: 60}, logging.Nop())
	require.NoError(t, m.Collect(context.Background()))

	assert.Equal(t, HealthCritical, m.Health())
	assert.Len(t, m.Alerts(), 3)

	m = NewMonitor(&fakeQueues{depth: 2000}, fakeDeliveries{}, logging.Nop())
	require.NoError(t, m.Collect(context.Background()))
	assert.Equal(t, HealthWarning, m.Health())
}

func TestMonitor_CollectKeepsSnapshotOnError(t *testing.T) {
	q := &fakeQueues{depth: 5}
	m := NewMonitor(q, fakeDeliveries{}, logging.Nop())
	require.NoError(t, m.Collect(context.Background()))

	q.err = errors.New("channel closed")
	assert.Error(t, m.Collect(context.Background()))
	assert.Equal(t, 5, m.Snapshot().QueueDepth)
}
