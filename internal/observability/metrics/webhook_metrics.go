package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonDBLockTimeout        = "db_lock_timeout"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonUniqueViolation      = "unique_violation"
	FailureReasonNotFound             = "not_found"
	FailureReasonDB                   = "db"
	FailureReasonUnknown              = "unknown"
)

// WebhookMetrics captures ingest latency and failure signals scraped from
// /metrics.
type WebhookMetrics struct {
	ingestDuration    *prometheus.HistogramVec
	processingErrors  *prometheus.CounterVec
	gatewayDuration   *prometheus.HistogramVec
	lockWait          prometheus.Observer
	payloadTruncation prometheus.Counter
}

var (
	webhookMetricsOnce sync.Once
	webhookMetrics     *WebhookMetrics
)

// Webhook returns the process-wide registry using config labels.
func Webhook(cfg Config) *WebhookMetrics {
	webhookMetricsOnce.Do(func() {
		webhookMetrics = NewWebhookMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return webhookMetrics
}

func NewWebhookMetrics(registerer prometheus.Registerer, cfg Config) *WebhookMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "paybridge"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	ingestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "paybridge_webhook_ingest_duration_seconds",
		Help:        "Webhook ingest latency from receipt to response.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"outcome"})
	processingErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "paybridge_webhook_processing_errors_total",
		Help:        "Webhook processing failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"event_type", "reason"})
	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "paybridge_gateway_request_duration_seconds",
		Help:        "Outbound gateway call latency by operation.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"operation"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "paybridge_webhook_lock_wait_seconds",
		Help:        "Time spent acquiring the per-event processing lock.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		ConstLabels: constLabels,
	})
	payloadTruncation := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "paybridge_webhook_payload_truncated_total",
		Help:        "Stored webhook payloads that exceeded the size cap.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		ingestDuration,
		processingErrors,
		gatewayDuration,
		lockWait,
		payloadTruncation,
	)

	return &WebhookMetrics{
		ingestDuration:    ingestDuration,
		processingErrors:  processingErrors,
		gatewayDuration:   gatewayDuration,
		lockWait:          lockWait,
		payloadTruncation: payloadTruncation,
	}
}

func (m *WebhookMetrics) ObserveIngest(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncProcessingError classifies err and counts it against the event type.
func (m *WebhookMetrics) IncProcessingError(eventType string, err error) {
	if m == nil {
		return
	}
	m.processingErrors.WithLabelValues(eventType, ClassifyFailureReason(err)).Inc()
}

func (m *WebhookMetrics) ObserveGatewayRequest(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *WebhookMetrics) ObserveLockWait(duration time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(duration.Seconds())
}

func (m *WebhookMetrics) IncPayloadTruncated() {
	if m == nil {
		return
	}
	m.payloadTruncation.Inc()
}

// ClassifyFailureReason maps processing errors to low-cardinality reasons.
func ClassifyFailureReason(err error) string {
	if err == nil {
		return FailureReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return FailureReasonNotFound
	}
	if isDBLockTimeout(err) {
		return FailureReasonDBLockTimeout
	}
	if isSerializationFailure(err) {
		return FailureReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return FailureReasonUniqueViolation
	}
	if isDBError(err) {
		return FailureReasonDB
	}
	return FailureReasonUnknown
}

// IsRetryable reports whether a processing failure is likely transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return isDBLockTimeout(err) || isSerializationFailure(err)
}

func isDBLockTimeout(err error) bool {
	return hasPGCode(err, "55P03")
}

func isSerializationFailure(err error) bool {
	return hasPGCode(err, "40001")
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return hasPGCode(err, "23505")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
