package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	auditrepository "github.com/smallbiznis/paybridge/internal/audit/repository"
	auditservice "github.com/smallbiznis/paybridge/internal/audit/service"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/gateway"
	gatewaymock "github.com/smallbiznis/paybridge/internal/gateway/mock"
	"github.com/smallbiznis/paybridge/internal/migration"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
	orderrepository "github.com/smallbiznis/paybridge/internal/order/repository"
	orderservice "github.com/smallbiznis/paybridge/internal/order/service"
	"github.com/smallbiznis/paybridge/internal/ratelimit"
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"github.com/smallbiznis/paybridge/internal/webhook/repository"
	"github.com/smallbiznis/paybridge/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const scenarioOnePayload = `{"id":"EVT1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP1","custom_id":"G-42","amount":{"value":"19.99"}}}`

type ingestFixture struct {
	db       *gorm.DB
	svc      *IngestService
	auditSvc auditdomain.Service
	clock    *clock.FakeClock
}

type ingestOptions struct {
	cfg     config.Config
	updater orderdomain.Updater
	gateway gateway.Provider
	limiter *ratelimit.WebhookLimiter
	events  domain.EventRepository
}

func setupIngest(t *testing.T, opts ingestOptions) ingestFixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.ApplySQLiteSchema(conn))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	scopes, err := config.NewStaticScopeTableHolder(config.DefaultScopeTable())
	require.NoError(t, err)

	updater := opts.updater
	if updater == nil {
		updater = orderservice.NewUpdater(orderservice.UpdaterParams{
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clk,
			Cfg:   opts.cfg,
			Repo:  orderrepository.Provide(),
		})
	}

	events := opts.events
	if events == nil {
		events = repository.ProvideEvents()
	}

	svc := NewIngestService(IngestParams{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Cfg:      opts.cfg,
		Events:   events,
		Scopes:   scopes,
		Gateway:  opts.gateway,
		Updater:  updater,
		Limiter:  opts.limiter,
		AuditSvc: auditSvc,
	})
	return ingestFixture{db: conn, svc: svc, auditSvc: auditSvc, clock: clk}
}

func newTestUpdater(t *testing.T, clk clock.Clock) orderdomain.Updater {
	t.Helper()
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	return orderservice.NewUpdater(orderservice.UpdaterParams{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  orderrepository.Provide(),
	})
}

func (f ingestFixture) seedOrder(t *testing.T, id int64, groupID *int64) {
	t.Helper()
	require.NoError(t, f.db.Exec(
		`INSERT INTO orders (id, order_group_id, status, total_amount, currency) VALUES (?, ?, 'pending', 19.99, 'USD')`,
		id, groupID,
	).Error)
}

func (f ingestFixture) seedGroup(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, f.db.Exec(
		`INSERT INTO order_groups (id, status, total_amount, currency) VALUES (?, 'processing', 40.00, 'USD')`,
		id,
	).Error)
}

func (f ingestFixture) auditActions(t *testing.T, action string) []auditdomain.AuditLog {
	t.Helper()
	resp, err := f.auditSvc.List(context.Background(), auditdomain.ListAuditLogRequest{Action: action})
	require.NoError(t, err)
	return resp.AuditLogs
}

func (f ingestFixture) event(t *testing.T, eventID string) *domain.WebhookEvent {
	t.Helper()
	event, err := repository.ProvideEvents().FindByEventID(context.Background(), f.db, eventID)
	require.NoError(t, err)
	return event
}

func (f ingestFixture) count(t *testing.T, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Raw(query, args...).Scan(&n).Error)
	return n
}

func TestIngestCaptureCompletedUpdatesPayment(t *testing.T) {
	f := setupIngest(t, ingestOptions{})
	f.seedOrder(t, 42, nil)

	result, err := f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuccess, result.Status)
	assert.Equal(t, domain.ActionPaymentCompleted, result.Action)

	payment, err := orderrepository.Provide().FindPayment(context.Background(), f.db, orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 42})
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, orderdomain.PaymentComplete, payment.Status)
	assert.True(t, payment.PaidAmount.Decimal.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, "CAP1", *payment.PaymentID)

	stored := f.event(t, "EVT1")
	require.NotNil(t, stored)
	assert.True(t, stored.Processed)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", stored.EventType)

	logs := f.auditActions(t, domain.ActionPaymentCompleted)
	require.Len(t, logs, 1)
	assert.Equal(t, "EVT1", logs[0].Metadata["event_id"])
	assert.Equal(t, "order", logs[0].Metadata["scope"])
	assert.Equal(t, string(auditdomain.ActorTypeGateway), logs[0].ActorType)
}

func TestIngestReplayIsNoOp(t *testing.T) {
	f := setupIngest(t, ingestOptions{})
	f.seedOrder(t, 42, nil)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)

	before, err := orderrepository.Provide().FindPayment(ctx, f.db, orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 42})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	replayed := strings.Replace(scenarioOnePayload, `"19.99"`, `"1.00"`, 1)
	result, err := f.svc.Ingest(ctx, []byte(replayed), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultAlreadyProcessed, result.Status)

	after, err := orderrepository.Provide().FindPayment(ctx, f.db, orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 42})
	require.NoError(t, err)
	assert.True(t, after.PaidAmount.Decimal.Equal(before.PaidAmount.Decimal))
	assert.True(t, after.UpdatedAt.Equal(before.UpdatedAt))

	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM webhook_events WHERE event_id = ?`, "EVT1"))
	assert.Len(t, f.auditActions(t, domain.ActionDuplicateEvent), 1)
	assert.Len(t, f.auditActions(t, domain.ActionPaymentCompleted), 1)
}

func TestIngestLateCaptureKeepsCompletedPayment(t *testing.T) {
	f := setupIngest(t, ingestOptions{})
	f.seedOrder(t, 42, nil)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)

	late := `{"id":"EVT2","event_type":"PAYMENT.CAPTURE.PENDING","resource":{"id":"CAP2","custom_id":"G-42","status":"PENDING","amount":{"value":"19.99"}}}`
	result, err := f.svc.Ingest(ctx, []byte(late), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuccess, result.Status)
	assert.Equal(t, domain.ActionPaymentSettled, result.Action)

	payment, err := orderrepository.Provide().FindPayment(ctx, f.db, orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 42})
	require.NoError(t, err)
	assert.Equal(t, orderdomain.PaymentComplete, payment.Status)
	assert.Equal(t, "CAP1", *payment.PaymentID)

	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM orders WHERE id = ?`, 42).Scan(&status).Error)
	assert.Equal(t, orderdomain.StatusProcessing, status)

	logs := f.auditActions(t, domain.ActionPaymentSettled)
	require.Len(t, logs, 1)
	assert.Equal(t, orderdomain.SkipPaymentComplete, logs[0].Metadata["reason"])
	assert.True(t, f.event(t, "EVT2").Processed)
}

// racingEvents lets another delivery claim the event right after the lookup
// reported it as unprocessed.
type racingEvents struct {
	domain.EventRepository
	db *gorm.DB
}

func (r *racingEvents) FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*domain.WebhookEvent, error) {
	event, err := r.EventRepository.FindByEventID(ctx, db, eventID)
	if err != nil || event == nil {
		return event, err
	}
	if _, err := r.EventRepository.Claim(ctx, r.db, eventID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return event, nil
}

func TestIngestConcurrentClaimIsDuplicate(t *testing.T) {
	events := &racingEvents{EventRepository: repository.ProvideEvents()}
	f := setupIngest(t, ingestOptions{events: events})
	events.db = f.db
	f.seedOrder(t, 42, nil)
	ctx := context.Background()

	inserted, err := repository.ProvideEvents().Insert(ctx, f.db, &domain.WebhookEvent{
		ID:         1,
		EventID:    "EVT1",
		EventType:  "PAYMENT.CAPTURE.COMPLETED",
		Payload:    scenarioOnePayload,
		ReceivedAt: f.clock.Now(),
	})
	require.NoError(t, err)
	require.True(t, inserted)

	result, err := f.svc.Ingest(ctx, []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultAlreadyProcessed, result.Status)
	assert.Equal(t, domain.ActionDuplicateEvent, result.Action)

	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments`))
	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM webhook_events WHERE event_id = ?`, "EVT1"))
	assert.Len(t, f.auditActions(t, domain.ActionDuplicateEvent), 1)
	assert.Empty(t, f.auditActions(t, domain.ActionPaymentCompleted))
}

func TestIngestGroupPendingAuditsChildren(t *testing.T) {
	f := setupIngest(t, ingestOptions{cfg: config.Config{Webhook: config.WebhookConfig{ChildPropagation: config.ChildPropagationLog}}})
	groupID := int64(7)
	f.seedGroup(t, groupID)
	f.seedOrder(t, 71, &groupID)
	f.seedOrder(t, 72, &groupID)

	payload := `{"id":"EVT3","event_type":"PAYMENT.CAPTURE.PENDING","resource":{"id":"CAP3","custom_id":"OG-7","status":"PENDING","amount":{"currency_code":"USD","value":"40.00"}}}`
	result, err := f.svc.Ingest(context.Background(), []byte(payload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPaymentPending, result.Action)
	require.NotNil(t, result.Outcome)
	assert.Equal(t, []int64{71, 72}, result.Outcome.Children)

	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM order_groups WHERE id = ?`, groupID).Scan(&status).Error)
	assert.Equal(t, orderdomain.StatusPending, status)

	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments WHERE order_id IN (71, 72)`))

	logs := f.auditActions(t, domain.ActionPaymentPending)
	require.Len(t, logs, 1)
	children, ok := logs[0].Metadata["children"].([]any)
	require.True(t, ok)
	assert.Len(t, children, 2)
}

func TestIngestUnresolvedReferenceMutatesNothing(t *testing.T) {
	f := setupIngest(t, ingestOptions{})
	f.seedOrder(t, 42, nil)

	payload := `{"id":"EVT4","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP4","custom_id":"XYZ","amount":{"value":"5.00"}}}`
	result, err := f.svc.Ingest(context.Background(), []byte(payload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuccess, result.Status)
	assert.Equal(t, domain.ActionOrderNotFound, result.Action)

	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments`))
	logs := f.auditActions(t, domain.ActionOrderNotFound)
	require.Len(t, logs, 1)
	assert.Equal(t, "XYZ", logs[0].Metadata["reference"])
	assert.NotNil(t, f.event(t, "EVT4"))
}

func TestIngestMissingTargetIsOrderNotFound(t *testing.T) {
	f := setupIngest(t, ingestOptions{})

	payload := `{"id":"EVT5","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP5","custom_id":"G-999"}}`
	result, err := f.svc.Ingest(context.Background(), []byte(payload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionOrderNotFound, result.Action)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments`))
}

func TestIngestMalformedPayload(t *testing.T) {
	f := setupIngest(t, ingestOptions{})

	_, err := f.svc.Ingest(context.Background(), []byte(`{"id":"EVT`), http.Header{})
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)

	logs := f.auditActions(t, domain.ActionMalformedPayload)
	require.Len(t, logs, 1)
	assert.Equal(t, `{"id":"EVT`, logs[0].Metadata["payload"])
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM webhook_events`))
}

func TestIngestRoutesRefundAndUnhandledToAuditOnly(t *testing.T) {
	f := setupIngest(t, ingestOptions{})
	f.seedOrder(t, 42, nil)
	ctx := context.Background()

	refund := `{"id":"EVT6","event_type":"PAYMENT.CAPTURE.REFUNDED","resource":{"id":"REF1","custom_id":"G-42","amount":{"currency_code":"USD","value":"19.99"}}}`
	result, err := f.svc.Ingest(ctx, []byte(refund), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPaymentRefunded, result.Action)

	sale := `{"id":"EVT7","event_type":"PAYMENT.SALE.COMPLETED","resource":{"id":"SALE1","custom_id":"G-42"}}`
	result, err = f.svc.Ingest(ctx, []byte(sale), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionUnhandledEvent, result.Action)

	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments`))
	assert.True(t, f.event(t, "EVT7").Processed)
}

// failingUpdater fails while err is set and delegates otherwise.
type failingUpdater struct {
	err  error
	next orderdomain.Updater
}

func (u *failingUpdater) ApplyCapture(ctx context.Context, tx *gorm.DB, target orderdomain.Target, capture orderdomain.CaptureInput) (*orderdomain.Outcome, error) {
	if u.err != nil {
		if u.next != nil {
			// the payment write must be rolled back with the claim
			if _, err := u.next.ApplyCapture(ctx, tx, target, capture); err != nil {
				return nil, err
			}
		}
		return nil, u.err
	}
	return u.next.ApplyCapture(ctx, tx, target, capture)
}

func TestIngestProcessingFailureRollsBackAndAllowsRedelivery(t *testing.T) {
	updater := &failingUpdater{err: errors.New("database is locked")}
	f := setupIngest(t, ingestOptions{updater: updater})
	updater.next = newTestUpdater(t, f.clock)
	f.seedOrder(t, 42, nil)
	ctx := context.Background()

	result, err := f.svc.Ingest(ctx, []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSuccess, result.Status)
	assert.Equal(t, domain.ActionProcessingFailed, result.Action)

	stored := f.event(t, "EVT1")
	require.NotNil(t, stored)
	assert.False(t, stored.Processed)
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments`))

	logs := f.auditActions(t, domain.ActionProcessingFailed)
	require.Len(t, logs, 1)
	assert.Equal(t, "database is locked", logs[0].Metadata["error"])

	updater.err = nil
	result, err = f.svc.Ingest(ctx, []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPaymentCompleted, result.Action)
	assert.True(t, f.event(t, "EVT1").Processed)
	assert.Equal(t, int64(1), f.count(t, `SELECT COUNT(*) FROM payments`))
}

func TestIngestTruncatesStoredPayload(t *testing.T) {
	f := setupIngest(t, ingestOptions{cfg: config.Config{Webhook: config.WebhookConfig{PayloadMaxBytes: 64}}})

	payload := `{"id":"EVT8","event_type":"PAYMENT.SALE.COMPLETED","summary":"` + strings.Repeat("x", 200) + `"}`
	_, err := f.svc.Ingest(context.Background(), []byte(payload), http.Header{})
	require.NoError(t, err)

	stored := f.event(t, "EVT8")
	require.NotNil(t, stored)
	assert.Len(t, stored.Payload, 64)
}

func TestTruncatePayloadKeepsRunesWhole(t *testing.T) {
	payload := []byte("abc€")
	out, truncated := truncatePayload(payload, 5)
	assert.True(t, truncated)
	assert.Equal(t, "abc", out)

	out, truncated = truncatePayload(payload, 0)
	assert.False(t, truncated)
	assert.Equal(t, "abc€", out)
}

func signedHeaders() http.Header {
	h := http.Header{}
	h.Set("PAYPAL-AUTH-ALGO", "SHA256withRSA")
	h.Set("PAYPAL-CERT-URL", "https://api.sandbox.paypal.com/cert.pem")
	h.Set("PAYPAL-TRANSMISSION-ID", "tx-1")
	h.Set("PAYPAL-TRANSMISSION-SIG", "sig")
	h.Set("PAYPAL-TRANSMISSION-TIME", "2026-03-01T12:00:00Z")
	return h
}

func TestIngestRejectsInvalidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := gatewaymock.NewMockAPI(ctrl)
	provider := gatewaymock.NewMockProvider(ctrl)

	f := setupIngest(t, ingestOptions{
		cfg:     config.Config{Webhook: config.WebhookConfig{WebhookID: "WH1"}},
		gateway: provider,
	})
	f.seedOrder(t, 42, nil)

	_, err := f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	provider.EXPECT().Client(gomock.Any()).Return(api, nil)
	api.EXPECT().VerifySignature(gomock.Any(), gomock.Any()).Return("FAILURE", nil)

	_, err = f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), signedHeaders())
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	assert.Nil(t, f.event(t, "EVT1"))
	assert.Zero(t, f.count(t, `SELECT COUNT(*) FROM payments`))
	assert.Len(t, f.auditActions(t, domain.ActionSignatureInvalid), 2)
}

func TestIngestAcceptsVerifiedSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := gatewaymock.NewMockAPI(ctrl)
	provider := gatewaymock.NewMockProvider(ctrl)

	f := setupIngest(t, ingestOptions{
		cfg:     config.Config{Webhook: config.WebhookConfig{WebhookID: "WH1"}},
		gateway: provider,
	})
	f.seedOrder(t, 42, nil)

	provider.EXPECT().Client(gomock.Any()).Return(api, nil)
	api.EXPECT().
		VerifySignature(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.VerifySignatureRequest) (string, error) {
			assert.Equal(t, "WH1", req.WebhookID)
			assert.Equal(t, "tx-1", req.TransmissionID)
			assert.JSONEq(t, scenarioOnePayload, string(req.WebhookEvent))
			return gateway.VerificationSuccess, nil
		})

	result, err := f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), signedHeaders())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPaymentCompleted, result.Action)
}

func TestIngestSignatureVerificationTransportErrorIsInvalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := gatewaymock.NewMockAPI(ctrl)
	provider := gatewaymock.NewMockProvider(ctrl)

	f := setupIngest(t, ingestOptions{
		cfg:     config.Config{Webhook: config.WebhookConfig{WebhookID: "WH1"}},
		gateway: provider,
	})

	provider.EXPECT().Client(gomock.Any()).Return(api, nil)
	api.EXPECT().VerifySignature(gomock.Any(), gomock.Any()).Return("", &gateway.TransportError{Op: "verify_signature", Err: errors.New("timeout")})

	_, err := f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), signedHeaders())
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestIngestSkipsEventLockedElsewhere(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := setupIngest(t, ingestOptions{limiter: ratelimit.NewWebhookLimiter(client, config.Config{})})
	f.seedOrder(t, 42, nil)
	require.NoError(t, srv.Set("paybridge:webhook:event:EVT1", "other-worker"))

	result, err := f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultInProgress, result.Status)

	stored := f.event(t, "EVT1")
	require.NotNil(t, stored)
	assert.False(t, stored.Processed)

	srv.Del("paybridge:webhook:event:EVT1")
	result, err = f.svc.Ingest(context.Background(), []byte(scenarioOnePayload), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionPaymentCompleted, result.Action)
	assert.False(t, srv.Exists("paybridge:webhook:event:EVT1"))
}
