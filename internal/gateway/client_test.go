package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:      testBaseURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Timeout:      5 * time.Second,
	}, clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	mockTokenExchange("A21AA-token", 32400)
	return client
}

func TestBaseURLFor(t *testing.T) {
	assert.Equal(t, LiveBaseURL, BaseURLFor("live", ""))
	assert.Equal(t, SandboxBaseURL, BaseURLFor("sandbox", ""))
	assert.Equal(t, SandboxBaseURL, BaseURLFor("", ""))
	assert.Equal(t, "http://localhost:9000", BaseURLFor("live", "http://localhost:9000/"))
}

func TestNewClientRequiresCredential(t *testing.T) {
	_, err := NewClient(Config{ClientID: "id"}, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestCreateOrderSendsHeaders(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/checkout/orders").
		MatchHeader("Authorization", "^Bearer A21AA-token$").
		MatchHeader("Accept-Language", "en_US").
		MatchHeader("Content-Type", "application/json").
		MatchHeader("PayPal-Request-Id", "req-123").
		Reply(http.StatusCreated).
		JSON(map[string]any{
			"id":     "5O190127TN364715T",
			"status": "CREATED",
			"links": []map[string]string{
				{"href": "https://www.sandbox.paypal.com/checkoutnow?token=5O190127TN364715T", "rel": "approve"},
			},
		})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		PurchaseUnits: []PurchaseUnitRequest{{
			CustomID: "G-42",
			Amount:   Money{CurrencyCode: "USD", Value: "19.99"},
		}},
	}, "req-123")
	require.NoError(t, err)
	assert.Equal(t, "5O190127TN364715T", order.ID)
	assert.Equal(t, OrderStatusCreated, order.Status)
	assert.Contains(t, order.ApproveURL(), "checkoutnow")
	assert.True(t, gock.IsDone())
}

func TestCreateOrderWithoutRequestIDOmitsHeader(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	var seen http.Header
	gock.New(testBaseURL).
		Post("/v2/checkout/orders").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			seen = req.Header.Clone()
			return true, nil
		}).
		Reply(http.StatusCreated).
		JSON(map[string]any{"id": "ORDER1", "status": "CREATED"})

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		PurchaseUnits: []PurchaseUnitRequest{{Amount: Money{CurrencyCode: "USD", Value: "1.00"}}},
	}, "")
	require.NoError(t, err)
	assert.Empty(t, seen.Get(requestIDHeader))
}

func TestCreateOrderRejectsEmptyUnits(t *testing.T) {
	client, err := NewClient(Config{BaseURL: testBaseURL, ClientID: "a", ClientSecret: "b"}, nil)
	require.NoError(t, err)
	_, err = client.CreateOrder(context.Background(), CreateOrderRequest{}, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCaptureOrderReturnsFirstCapture(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/checkout/orders/ORDER1/capture").
		Reply(http.StatusCreated).
		JSON(map[string]any{
			"id":     "ORDER1",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{{
				"custom_id": "G-42",
				"payments": map[string]any{
					"captures": []map[string]any{{
						"id":     "CAP1",
						"status": "COMPLETED",
						"amount": map[string]string{"currency_code": "USD", "value": "19.99"},
					}},
				},
			}},
		})

	order, err := client.CaptureOrder(context.Background(), "ORDER1", "")
	require.NoError(t, err)
	capture := order.FirstCapture()
	require.NotNil(t, capture)
	assert.Equal(t, "CAP1", capture.ID)
	assert.Equal(t, "19.99", capture.Amount.Value)
}

func TestNon2xxReturnsGatewayError(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Get("/v2/checkout/orders/MISSING").
		Reply(http.StatusNotFound).
		JSON(map[string]string{"name": "RESOURCE_NOT_FOUND"})
	gock.New(testBaseURL).
		Get("/v2/payments/captures/CAP1").
		Reply(http.StatusServiceUnavailable).
		BodyString("upstream down")

	_, err := client.GetOrder(context.Background(), "MISSING")
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	assert.Contains(t, gwErr.Body, "RESOURCE_NOT_FOUND")
	assert.False(t, IsRetryable(err))

	_, err = client.GetCapture(context.Background(), "CAP1")
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Retryable())
}

func TestUnauthorizedResponseInvalidatesToken(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Get("/v2/checkout/orders/ORDER1").
		Reply(http.StatusUnauthorized)

	_, err := client.GetOrder(context.Background(), "ORDER1")
	require.Error(t, err)

	_, ok := client.Tokens().Expiry()
	assert.False(t, ok)
}

func TestTransportErrorIsRetryable(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/payments/captures/CAP1/refund").
		ReplyError(errors.New("dial tcp: timeout"))

	_, err := client.Refund(context.Background(), "CAP1", RefundRequest{}, "")
	var trErr *TransportError
	require.True(t, errors.As(err, &trErr))
	assert.True(t, trErr.Retryable())
}

func TestAuthorizeAndCaptureAuthorization(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v2/checkout/orders/ORDER1/authorize").
		Reply(http.StatusCreated).
		JSON(map[string]any{"id": "ORDER1", "status": "COMPLETED"})
	gock.New(testBaseURL).
		Post("/v2/payments/authorizations/AUTH1/capture").
		Reply(http.StatusCreated).
		JSON(map[string]any{"id": "CAP2", "status": "PENDING"})

	order, err := client.AuthorizeOrder(context.Background(), "ORDER1", "")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusCompleted, order.Status)

	capture, err := client.CaptureAuthorization(context.Background(), "AUTH1", CaptureAuthorizationRequest{FinalCapture: true}, "")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", capture.Status)
	assert.True(t, gock.IsDone())
}

func TestWebhookOperations(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Get("/v1/notifications/webhooks").
		Reply(http.StatusOK).
		JSON(map[string]any{"webhooks": []map[string]any{{
			"id":          "WH1",
			"url":         "https://shop.example/webhooks/gateway",
			"event_types": []map[string]string{{"name": "PAYMENT.CAPTURE.COMPLETED"}},
		}}})
	gock.New(testBaseURL).
		Post("/v1/notifications/webhooks").
		Reply(http.StatusCreated).
		JSON(map[string]any{"id": "WH2", "url": "https://shop.example/hook"})
	gock.New(testBaseURL).
		Patch("/v1/notifications/webhooks/WH2").
		AddMatcher(func(req *http.Request, _ *gock.Request) (bool, error) {
			var ops []patchOperation
			if err := json.NewDecoder(req.Body).Decode(&ops); err != nil {
				return false, err
			}
			return len(ops) == 1 && ops[0].Op == "replace" && ops[0].Path == "/event_types", nil
		}).
		Reply(http.StatusOK).
		JSON(map[string]any{"id": "WH2", "event_types": []map[string]string{{"name": "CHECKOUT.ORDER.APPROVED"}}})
	gock.New(testBaseURL).
		Delete("/v1/notifications/webhooks/WH2").
		Reply(http.StatusNoContent)

	hooks, err := client.ListWebhooks(context.Background())
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, []string{"PAYMENT.CAPTURE.COMPLETED"}, hooks[0].EventNames())

	created, err := client.CreateWebhook(context.Background(), "https://shop.example/hook", []string{"PAYMENT.CAPTURE.COMPLETED"})
	require.NoError(t, err)
	assert.Equal(t, "WH2", created.ID)

	updated, err := client.UpdateWebhookEvents(context.Background(), "WH2", []string{"CHECKOUT.ORDER.APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CHECKOUT.ORDER.APPROVED"}, updated.EventNames())

	require.NoError(t, client.DeleteWebhook(context.Background(), "WH2"))
	assert.True(t, gock.IsDone())
}

func TestVerifySignature(t *testing.T) {
	defer gock.Off()
	client := newTestClient(t)

	gock.New(testBaseURL).
		Post("/v1/notifications/verify-webhook-signature").
		MatchType("json").
		JSON(map[string]any{
			"auth_algo":         "SHA256withRSA",
			"cert_url":          "https://api.sandbox.paypal.com/cert.pem",
			"transmission_id":   "tx-1",
			"transmission_sig":  "sig",
			"transmission_time": "2026-03-01T12:00:00Z",
			"webhook_id":        "WH1",
			"webhook_event":     map[string]string{"id": "EVT1"},
		}).
		Reply(http.StatusOK).
		JSON(map[string]string{"verification_status": "SUCCESS"})

	status, err := client.VerifySignature(context.Background(), VerifySignatureRequest{
		AuthAlgo:         "SHA256withRSA",
		CertURL:          "https://api.sandbox.paypal.com/cert.pem",
		TransmissionID:   "tx-1",
		TransmissionSig:  "sig",
		TransmissionTime: "2026-03-01T12:00:00Z",
		WebhookID:        "WH1",
		WebhookEvent:     json.RawMessage(`{"id":"EVT1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, VerificationSuccess, status)
}

func TestEmptyIDIsRejectedBeforeRequest(t *testing.T) {
	client, err := NewClient(Config{BaseURL: testBaseURL, ClientID: "a", ClientSecret: "b"}, nil)
	require.NoError(t, err)

	_, err = client.GetOrder(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, client.DeleteWebhook(context.Background(), ""), ErrInvalidRequest)
}
