package router

import (
	"testing"

	"github.com/smallbiznis/paybridge/internal/config"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsMalformedPayloads(t *testing.T) {
	tests := map[string]string{
		"not json":        `{"id":`,
		"missing id":      `{"event_type":"PAYMENT.CAPTURE.COMPLETED"}`,
		"missing type":    `{"id":"EVT1"}`,
		"resource string": `{"id":"EVT1","event_type":"X","resource":"oops"}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := Parse([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestParseNormalizesEnvelope(t *testing.T) {
	event, resource, err := Parse([]byte(`{"id":" EVT1 ","event_type":"payment.capture.completed","resource":null}`))
	require.NoError(t, err)
	assert.Equal(t, "EVT1", event.ID)
	assert.Equal(t, "PAYMENT.CAPTURE.COMPLETED", event.EventType)
	assert.NotNil(t, resource)
}

func TestExtractRuleOrder(t *testing.T) {
	table := config.DefaultScopeTable()

	tests := []struct {
		name     string
		payload  string
		rule     string
		target   orderdomain.Target
		resolved bool
	}{
		{
			name:     "purchase unit custom id wins",
			payload:  `{"id":"E","event_type":"CHECKOUT.ORDER.COMPLETED","resource":{"custom_id":"G-1","purchase_units":[{"custom_id":""},{"custom_id":"OG-7"}]}}`,
			rule:     "purchase_units",
			target:   orderdomain.Target{Scope: orderdomain.ScopeGroup, ID: 7},
			resolved: true,
		},
		{
			name:     "purchase unit invoice id fallback",
			payload:  `{"id":"E","event_type":"CHECKOUT.ORDER.COMPLETED","resource":{"purchase_units":[{"invoice_id":"P-3"}]}}`,
			rule:     "purchase_units",
			target:   orderdomain.Target{Scope: orderdomain.ScopeGroup, ID: 3},
			resolved: true,
		},
		{
			name:     "resource custom id",
			payload:  `{"id":"E","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"custom_id":"G-42","invoice_id":"C-9"}}`,
			rule:     "custom_id",
			target:   orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 42},
			resolved: true,
		},
		{
			name:     "resource invoice id",
			payload:  `{"id":"E","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"invoice_id":"C-9"}}`,
			rule:     "invoice_id",
			target:   orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 9},
			resolved: true,
		},
		{
			name:     "related order id",
			payload:  `{"id":"E","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"supplementary_data":{"related_ids":{"order_id":"15"}}}}`,
			rule:     "related_order_id",
			target:   orderdomain.Target{Scope: orderdomain.ScopeOrder, ID: 15},
			resolved: true,
		},
		{
			name:    "unparseable reference",
			payload: `{"id":"E","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"custom_id":"XYZ"}}`,
			rule:    "custom_id",
		},
		{
			name:    "nothing to extract",
			payload: `{"id":"E","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP1"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resource, err := Parse([]byte(tt.payload))
			require.NoError(t, err)

			ref := Extract(table, resource)
			assert.Equal(t, tt.rule, ref.Rule)
			assert.Equal(t, tt.resolved, ref.Resolved)
			assert.Equal(t, tt.target, ref.Target)
		})
	}
}

func TestRoute(t *testing.T) {
	assert.Equal(t, HandlerCapture, Route("PAYMENT.CAPTURE.COMPLETED"))
	assert.Equal(t, HandlerCapture, Route("payment.capture.declined"))
	assert.Equal(t, HandlerOrderCapture, Route("CHECKOUT.ORDER.APPROVED"))
	assert.Equal(t, HandlerRefund, Route("PAYMENT.CAPTURE.REFUNDED"))
	assert.Equal(t, HandlerUnhandled, Route("PAYMENT.SALE.COMPLETED"))
	assert.Equal(t, HandlerUnhandled, Route(""))

	for _, eventType := range HandledEventTypes() {
		assert.NotEqual(t, HandlerUnhandled, Route(eventType), eventType)
	}
}

func TestCaptureForCaptureResource(t *testing.T) {
	event, resource, err := Parse([]byte(`{"id":"E","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"CAP1","amount":{"currency_code":"USD","value":"5.00"},"supplementary_data":{"related_ids":{"order_id":"ORD1"}}}}`))
	require.NoError(t, err)

	input := CaptureFor(HandlerCapture, event, resource)
	assert.Equal(t, "CAP1", input.CaptureID)
	assert.Equal(t, "DENIED", input.Status)
	assert.Equal(t, "5.00", input.Amount)
	assert.Equal(t, "USD", input.Currency)
	assert.Equal(t, "ORD1", input.GatewayOrderID)
}

func TestCaptureForOrderResource(t *testing.T) {
	event, resource, err := Parse([]byte(`{"id":"E","event_type":"CHECKOUT.ORDER.COMPLETED","resource":{"id":"ORD1","status":"COMPLETED","purchase_units":[{"custom_id":"G-1","payments":{"captures":[{"id":"CAP1","status":"PENDING","amount":{"currency_code":"EUR","value":"12.50"}}]}}]}}`))
	require.NoError(t, err)

	input := CaptureFor(HandlerOrderCapture, event, resource)
	assert.Equal(t, "CAP1", input.CaptureID)
	assert.Equal(t, "PENDING", input.Status)
	assert.Equal(t, "12.50", input.Amount)
	assert.Equal(t, "ORD1", input.GatewayOrderID)
}

func TestCaptureForApprovedOrderWithoutCapture(t *testing.T) {
	event, resource, err := Parse([]byte(`{"id":"E","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORD1","purchase_units":[{"custom_id":"G-1","amount":{"currency_code":"USD","value":"3.00"}}]}}`))
	require.NoError(t, err)

	input := CaptureFor(HandlerOrderCapture, event, resource)
	assert.Empty(t, input.CaptureID)
	assert.Equal(t, "APPROVED", input.Status)
	assert.Equal(t, "3.00", input.Amount)
}
