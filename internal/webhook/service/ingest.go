package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/gateway"
	"github.com/smallbiznis/paybridge/internal/observability/metrics"
	"github.com/smallbiznis/paybridge/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
	"github.com/smallbiznis/paybridge/internal/ratelimit"
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"github.com/smallbiznis/paybridge/internal/webhook/router"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	auditTargetEvent      = "webhook_event"
	auditPayloadMaxBytes  = 2048
	defaultPayloadMaxSize = 64 * 1024
)

const (
	headerAuthAlgo         = "PAYPAL-AUTH-ALGO"
	headerCertURL          = "PAYPAL-CERT-URL"
	headerTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	headerTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	headerTransmissionTime = "PAYPAL-TRANSMISSION-TIME"
)

var errAlreadyClaimed = errors.New("event_already_claimed")

type IngestParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Events   domain.EventRepository
	Scopes   *config.ScopeTableHolder
	Gateway  gateway.Provider
	Updater  orderdomain.Updater
	Limiter  *ratelimit.WebhookLimiter `optional:"true"`
	AuditSvc auditdomain.Service       `optional:"true"`
	Metrics  *metrics.Metrics          `optional:"true"`
	Latency  *metrics.WebhookMetrics   `optional:"true"`
}

type IngestService struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	events   domain.EventRepository
	scopes   *config.ScopeTableHolder
	gateway  gateway.Provider
	updater  orderdomain.Updater
	limiter  *ratelimit.WebhookLimiter
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
	latency  *metrics.WebhookMetrics
	tracer   trace.Tracer

	webhookID  string
	maxPayload int
}

func NewIngestService(p IngestParams) *IngestService {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	maxPayload := p.Cfg.Webhook.PayloadMaxBytes
	if maxPayload <= 0 {
		maxPayload = defaultPayloadMaxSize
	}
	return &IngestService{
		db:         p.DB,
		log:        p.Log.Named("webhook.ingest"),
		genID:      p.GenID,
		clock:      clk,
		events:     p.Events,
		scopes:     p.Scopes,
		gateway:    p.Gateway,
		updater:    p.Updater,
		limiter:    p.Limiter,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
		latency:    p.Latency,
		tracer:     otel.Tracer("paybridge/webhook"),
		webhookID:  strings.TrimSpace(p.Cfg.Webhook.WebhookID),
		maxPayload: maxPayload,
	}
}

// handledEvent is what a dispatch arm reports for the audit trail.
type handledEvent struct {
	action   string
	outcome  *orderdomain.Outcome
	metadata map[string]any
}

// Ingest records and processes one notification at most once per event id.
// Processing failures are audited and acknowledged; only malformed payloads,
// bad signatures and storage failures surface as errors.
func (s *IngestService) Ingest(ctx context.Context, payload []byte, headers http.Header) (result *domain.Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "webhook.ingest")
	defer func() {
		if err != nil {
			span.RecordError(tracing.SafeError(err))
			span.SetStatus(codes.Error, "webhook.ingest")
		}
		span.End()
	}()

	event, resource, parseErr := router.Parse(payload)
	if parseErr != nil {
		s.log.Warn("malformed webhook payload", zap.Error(parseErr))
		s.audit(ctx, domain.ActionMalformedPayload, "", map[string]any{
			"payload": auditPayload(payload),
			"error":   parseErr.Error(),
		})
		s.observe(ctx, "unknown", "malformed", start)
		return nil, domain.ErrMalformedPayload
	}

	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("webhook.event_id", event.ID),
		attribute.String("webhook.event_type", event.EventType),
	)...)
	log := s.log.With(zap.String("event_id", event.ID), zap.String("event_type", event.EventType))
	base := map[string]any{
		"event_id":   event.ID,
		"event_type": event.EventType,
		"payload":    auditPayload(payload),
	}

	existing, err := s.events.FindByEventID(ctx, s.db, event.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Processed {
		log.Info("duplicate webhook event ignored")
		s.audit(ctx, domain.ActionDuplicateEvent, event.ID, base)
		s.observe(ctx, event.EventType, "duplicate", start)
		return s.result(domain.ResultAlreadyProcessed, event, domain.ActionDuplicateEvent, nil), nil
	}

	if s.webhookID != "" {
		if ok, reason := s.verifySignature(ctx, payload, headers); !ok {
			log.Warn("webhook signature rejected", zap.String("reason", reason))
			s.audit(ctx, domain.ActionSignatureInvalid, event.ID, withMetadata(base, map[string]any{"reason": reason}))
			s.observe(ctx, event.EventType, "invalid_signature", start)
			return nil, domain.ErrInvalidSignature
		}
	}

	if existing == nil {
		if err := s.record(ctx, event, resource, payload); err != nil {
			return nil, err
		}
	}

	lockStart := time.Now()
	token, locked, lockErr := s.limiter.TryLockEvent(ctx, event.ID)
	s.latency.ObserveLockWait(time.Since(lockStart))
	if lockErr != nil {
		log.Warn("event lock unavailable, relying on database claim", zap.Error(lockErr))
		locked, token = true, ""
	}
	if !locked {
		log.Info("webhook event is being processed elsewhere")
		s.observe(ctx, event.EventType, "in_progress", start)
		return s.result(domain.ResultInProgress, event, "", nil), nil
	}
	if token != "" {
		defer func() {
			if err := s.limiter.ReleaseEvent(context.WithoutCancel(ctx), event.ID, token); err != nil {
				log.Warn("release event lock failed", zap.Error(err))
			}
		}()
	}

	var handled *handledEvent
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.events.Claim(ctx, tx, event.ID, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyClaimed
		}
		handled, err = s.dispatch(ctx, tx, event, resource)
		return err
	})

	switch {
	case errors.Is(txErr, errAlreadyClaimed):
		log.Info("webhook event claimed concurrently")
		s.audit(ctx, domain.ActionDuplicateEvent, event.ID, base)
		s.observe(ctx, event.EventType, "duplicate", start)
		return s.result(domain.ResultAlreadyProcessed, event, domain.ActionDuplicateEvent, nil), nil
	case txErr != nil:
		log.Error("webhook processing failed", zap.Error(txErr))
		s.latency.IncProcessingError(event.EventType, txErr)
		s.audit(ctx, domain.ActionProcessingFailed, event.ID, withMetadata(base, map[string]any{
			"error":  txErr.Error(),
			"reason": metrics.ClassifyFailureReason(txErr),
		}))
		s.observe(ctx, event.EventType, "failed", start)
		return s.result(domain.ResultSuccess, event, domain.ActionProcessingFailed, nil), nil
	}

	log.Info("webhook event processed", zap.String("action", handled.action))
	s.audit(ctx, handled.action, event.ID, withMetadata(base, handled.metadata))
	s.observe(ctx, event.EventType, "processed", start)
	return s.result(domain.ResultSuccess, event, handled.action, handled.outcome), nil
}

func (s *IngestService) dispatch(ctx context.Context, tx *gorm.DB, event *router.Event, resource *router.Resource) (*handledEvent, error) {
	handler := router.Route(event.EventType)
	ref := router.Extract(s.scopes.Get(), resource)
	metadata := referenceMetadata(ref)
	metadata["handler"] = string(handler)

	switch handler {
	case router.HandlerCapture, router.HandlerOrderCapture:
		if !ref.Resolved {
			return &handledEvent{action: domain.ActionOrderNotFound, metadata: metadata}, nil
		}

		input := router.CaptureFor(handler, event, resource)
		metadata["capture_id"] = input.CaptureID
		metadata["gateway_status"] = input.Status

		outcome, err := s.updater.ApplyCapture(ctx, tx, ref.Target, input)
		if errors.Is(err, orderdomain.ErrTargetNotFound) {
			return &handledEvent{action: domain.ActionOrderNotFound, metadata: metadata}, nil
		}
		if err != nil {
			return nil, err
		}

		if len(outcome.Children) > 0 {
			metadata["children"] = outcome.Children
			metadata["children_updated"] = outcome.ChildrenUpdated
		}
		if !outcome.Applied {
			metadata["reason"] = outcome.SkipReason
			action := domain.ActionUnhandledEvent
			if outcome.SkipReason == orderdomain.SkipPaymentComplete {
				action = domain.ActionPaymentSettled
			}
			return &handledEvent{action: action, outcome: outcome, metadata: metadata}, nil
		}
		return &handledEvent{action: paymentAction(outcome.PaymentState), outcome: outcome, metadata: metadata}, nil

	case router.HandlerRefund:
		metadata["refund_id"] = resource.ID
		if resource.Amount != nil {
			metadata["amount"] = resource.Amount.Value
			metadata["currency"] = resource.Amount.CurrencyCode
		}
		return &handledEvent{action: domain.ActionPaymentRefunded, metadata: metadata}, nil

	default:
		return &handledEvent{action: domain.ActionUnhandledEvent, metadata: metadata}, nil
	}
}

func (s *IngestService) record(ctx context.Context, event *router.Event, resource *router.Resource, payload []byte) error {
	stored, truncated := truncatePayload(payload, s.maxPayload)
	if truncated {
		s.latency.IncPayloadTruncated()
		s.log.Info("webhook payload truncated",
			zap.String("event_id", event.ID),
			zap.Int("size", len(payload)),
			zap.Int("limit", s.maxPayload),
		)
	}

	record := domain.WebhookEvent{
		ID:           s.genID.Generate(),
		EventID:      event.ID,
		EventType:    event.EventType,
		ResourceType: optionalString(event.ResourceType),
		ResourceID:   optionalString(resource.ID),
		Summary:      optionalString(event.Summary),
		Payload:      stored,
		ReceivedAt:   s.clock.Now().UTC(),
	}
	_, err := s.events.Insert(ctx, s.db, &record)
	return err
}

func (s *IngestService) verifySignature(ctx context.Context, payload []byte, headers http.Header) (bool, string) {
	req := gateway.VerifySignatureRequest{
		AuthAlgo:         strings.TrimSpace(headers.Get(headerAuthAlgo)),
		CertURL:          strings.TrimSpace(headers.Get(headerCertURL)),
		TransmissionID:   strings.TrimSpace(headers.Get(headerTransmissionID)),
		TransmissionSig:  strings.TrimSpace(headers.Get(headerTransmissionSig)),
		TransmissionTime: strings.TrimSpace(headers.Get(headerTransmissionTime)),
		WebhookID:        s.webhookID,
		WebhookEvent:     json.RawMessage(payload),
	}
	if req.AuthAlgo == "" || req.CertURL == "" || req.TransmissionID == "" || req.TransmissionSig == "" || req.TransmissionTime == "" {
		return false, "missing_header"
	}

	client, err := s.gateway.Client(ctx)
	if err != nil {
		s.log.Error("signature verification unavailable", zap.Error(err))
		return false, "verification_unavailable"
	}
	status, err := client.VerifySignature(ctx, req)
	if err != nil {
		s.log.Error("signature verification failed", zap.Error(err))
		return false, "verification_error"
	}
	if status != gateway.VerificationSuccess {
		return false, strings.ToLower(status)
	}
	return true, ""
}

func (s *IngestService) audit(ctx context.Context, action, eventID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var targetID *string
	if eventID != "" {
		targetID = &eventID
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeGateway), nil, action, auditTargetEvent, targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *IngestService) observe(ctx context.Context, eventType, outcome string, start time.Time) {
	s.metrics.RecordWebhookEvent(ctx, eventType, outcome)
	s.latency.ObserveIngest(outcome, time.Since(start))
}

func (s *IngestService) result(status string, event *router.Event, action string, outcome *orderdomain.Outcome) *domain.Result {
	return &domain.Result{
		Status:    status,
		EventID:   event.ID,
		EventType: event.EventType,
		Action:    action,
		Outcome:   outcome,
	}
}

func paymentAction(state string) string {
	switch state {
	case orderdomain.PaymentComplete:
		return domain.ActionPaymentCompleted
	case orderdomain.PaymentPending:
		return domain.ActionPaymentPending
	default:
		return domain.ActionPaymentFailed
	}
}

func referenceMetadata(ref router.Reference) map[string]any {
	metadata := map[string]any{}
	if ref.Raw != "" {
		metadata["reference"] = ref.Raw
		metadata["reference_rule"] = ref.Rule
	}
	if ref.Resolved {
		metadata["scope"] = ref.Target.Scope
		metadata["target_id"] = ref.Target.ID
	}
	return metadata
}

func withMetadata(base map[string]any, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range extra {
		out[key] = value
	}
	return out
}

// truncatePayload cuts at limit bytes without splitting a trailing rune.
func truncatePayload(payload []byte, limit int) (string, bool) {
	if limit <= 0 || len(payload) <= limit {
		return string(payload), false
	}
	cut := payload[:limit]
	for i := 0; i < utf8.UTFMax && len(cut) > 0; i++ {
		r, size := utf8.DecodeLastRune(cut)
		if r != utf8.RuneError || size != 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return string(cut), true
}

func auditPayload(payload []byte) string {
	stored, _ := truncatePayload(payload, auditPayloadMaxBytes)
	return stored
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
