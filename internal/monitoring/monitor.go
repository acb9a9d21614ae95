package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/examprep/internal/logging"
	"github.com/therealutkarshpriyadarshi/examprep/internal/metrics"
	"github.com/therealutkarshpriyadarshi/examprep/internal/queue"
	"github.com/therealutkarshpriyadarshi/examprep/pkg/models"
)

// Alert thresholds
const (
	dlqCritical          = 100
	queueWarning         = 1000
	failedDeliveriesWarn = 50
)

// Health levels
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
)

// Snapshot holds the last observed backlog of the event pipeline
type Snapshot struct {
	QueueDepth        int       `json:"queue_depth"`
	DLQDepth          int       `json:"dlq_depth"`
	PendingDeliveries int       `json:"pending_deliveries"`
	FailedDeliveries  int       `json:"failed_deliveries"`
	LastUpdated       time.Time `json:"last_updated"`
}

// QueueProvider reports event queue depths
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// DeliveryCounter reports stored webhook deliveries per status
type DeliveryCounter interface {
	CountDeliveriesByStatus(ctx context.Context) (map[string]int, error)
}

// Monitor polls the event pipeline and exports its backlog as gauges
type Monitor struct {
	mu         sync.RWMutex
	snapshot   Snapshot
	queues     QueueProvider
	deliveries DeliveryCounter
	logger     *logging.Logger
}

// NewMonitor creates a new monitor
func NewMonitor(queues QueueProvider, deliveries DeliveryCounter, logger *logging.Logger) *Monitor {
	return &Monitor{
		queues:     queues,
		deliveries: deliveries,
		logger:     logger,
	}
}

// Run collects every interval until ctx is done
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := m.Collect(ctx); err != nil {
			m.logger.WithError(err).Warn("Failed to collect pipeline metrics")
		} else if health := m.Health(); health != HealthHealthy {
			m.logger.WithFields(map[string]interface{}{
				"health": health,
				"alerts": m.Alerts(),
			}).Warn("Event pipeline degraded")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Collect refreshes the snapshot and the exported gauges
func (m *Monitor) Collect(ctx context.Context) error {
	queueDepth, err := m.queues.GetQueueDepth()
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}

	dlqDepth, err := m.queues.GetDLQDepth()
	if err != nil {
		return fmt.Errorf("failed to get DLQ depth: %w", err)
	}

	counts, err := m.deliveries.CountDeliveriesByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count deliveries: %w", err)
	}

	metrics.QueueDepth.WithLabelValues(queue.EventsQueueName).Set(float64(queueDepth))
	metrics.QueueDepth.WithLabelValues(queue.DeadLetterQueueName).Set(float64(dlqDepth))
	for _, status := range []string{
		models.WebhookDeliveryStatusPending,
		models.WebhookDeliveryStatusDelivered,
		models.WebhookDeliveryStatusFailed,
	} {
		metrics.WebhookDeliveriesByStatus.WithLabelValues(status).Set(float64(counts[status]))
	}

	m.mu.Lock()
	m.snapshot = Snapshot{
		QueueDepth:        queueDepth,
		DLQDepth:          dlqDepth,
		PendingDeliveries: counts[models.WebhookDeliveryStatusPending],
		FailedDeliveries:  counts[models.WebhookDeliveryStatusFailed],
		LastUpdated:       time.Now(),
	}
	m.mu.Unlock()

	return nil
}

// Snapshot returns a copy of the last collected values
func (m *Monitor) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// Health summarizes the snapshot as healthy, warning or critical
func (m *Monitor) Health() string {
	s := m.Snapshot()

	if s.DLQDepth > dlqCritical {
		return HealthCritical
	}
	if s.QueueDepth > queueWarning || s.FailedDeliveries > failedDeliveriesWarn {
		return HealthWarning
	}
	return HealthHealthy
}

// Alerts describes every threshold the snapshot crosses
func (m *Monitor) Alerts() []string {
	s := m.Snapshot()

	var alerts []string
	if s.DLQDepth > dlqCritical {
		alerts = append(alerts, fmt.Sprintf("High DLQ depth: %d messages", s.DLQDepth))
	}
	if s.QueueDepth > queueWarning {
		alerts = append(alerts, fmt.Sprintf("High queue depth: %d events pending", s.QueueDepth))
	}
	if s.FailedDeliveries > failedDeliveriesWarn {
		alerts = append(alerts, fmt.Sprintf("Failed webhook deliveries: %d", s.FailedDeliveries))
	}
	return alerts
}
