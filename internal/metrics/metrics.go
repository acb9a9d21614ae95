package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examprep_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Account Metrics
	SignupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "examprep_signups_total",
			Help: "Total number of user signups",
		},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Quota Metrics
	QuotaResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_quota_resets_total",
			Help: "Total number of daily quota resets",
		},
		[]string{"plan"},
	)

	QuotaConsumptionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_quota_consumption_total",
			Help: "Quota decrement attempts by outcome",
		},
		[]string{"result"},
	)

	QuotaRefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "examprep_quota_refunds_total",
			Help: "Quota units given back after a failed AI call",
		},
	)

	// Coupon Metrics
	CouponRedemptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_coupon_redemptions_total",
			Help: "Coupon redemption attempts by outcome",
		},
		[]string{"result"},
	)

	CouponsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_coupons_created_total",
			Help: "Coupons created by plan",
		},
		[]string{"plan"},
	)

	PlanDowngradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_plan_downgrades_total",
			Help: "Paid plans downgraded after expiry",
		},
		[]string{"previous_plan"},
	)

	// AI Metrics
	AIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_ai_requests_total",
			Help: "Generative model calls by tool and status",
		},
		[]string{"tool", "status"},
	)

	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examprep_ai_request_duration_seconds",
			Help:    "Generative model call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 4, 8, 16, 32, 64, 128},
		},
		[]string{"tool"},
	)

	PDFRendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_pdf_renders_total",
			Help: "Headless browser PDF renders by status",
		},
		[]string{"status"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_storage_bytes_transferred_total",
			Help: "Total bytes transferred to and from object storage",
		},
		[]string{"operation"},
	)

	// Database Metrics
	DatabaseOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_database_operations_total",
			Help: "Total number of database operations",
		},
		[]string{"operation", "status"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "examprep_database_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Webhook Metrics
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_webhook_deliveries_total",
			Help: "Webhook delivery attempts by event and status",
		},
		[]string{"event", "status"},
	)

	WebhookDeliveriesByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "examprep_webhook_deliveries",
			Help: "Stored webhook deliveries by status",
		},
		[]string{"status"},
	)

	// Queue Metrics
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "examprep_queue_depth",
			Help: "Messages waiting in the event queues",
		},
		[]string{"queue"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Error Metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "examprep_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordLogin records a login attempt
func RecordLogin(success bool) {
	if success {
		LoginsTotal.WithLabelValues("success").Inc()
	} else {
		LoginsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordQuotaReset records a daily quota reset
func RecordQuotaReset(plan string) {
	QuotaResetsTotal.WithLabelValues(plan).Inc()
}

// RecordQuotaConsumption records a decrement attempt: consumed, exhausted or error
func RecordQuotaConsumption(result string) {
	QuotaConsumptionTotal.WithLabelValues(result).Inc()
}

// RecordCouponRedemption records a redemption attempt outcome
func RecordCouponRedemption(result string) {
	CouponRedemptionsTotal.WithLabelValues(result).Inc()
}

// RecordAIRequest records a generative model call
func RecordAIRequest(tool, status string, duration float64) {
	AIRequestsTotal.WithLabelValues(tool, status).Inc()
	AIRequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordDatabaseOperation records a database operation
func RecordDatabaseOperation(operation, status string, duration float64) {
	DatabaseOperationsTotal.WithLabelValues(operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordWebhookDelivery records a webhook delivery attempt
func RecordWebhookDelivery(event, status string) {
	WebhookDeliveriesTotal.WithLabelValues(event, status).Inc()
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
