package router

import (
	"strings"

	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
)

type Handler string

const (
	HandlerCapture      Handler = "capture"
	HandlerOrderCapture Handler = "order_capture"
	HandlerRefund       Handler = "refund"
	HandlerUnhandled    Handler = "unhandled"
)

var dispatchTable = map[string]Handler{
	"PAYMENT.CAPTURE.COMPLETED": HandlerCapture,
	"PAYMENT.CAPTURE.PENDING":   HandlerCapture,
	"PAYMENT.CAPTURE.DENIED":    HandlerCapture,
	"PAYMENT.CAPTURE.DECLINED":  HandlerCapture,
	"CHECKOUT.ORDER.COMPLETED":  HandlerOrderCapture,
	"CHECKOUT.ORDER.APPROVED":   HandlerOrderCapture,
	"PAYMENT.CAPTURE.REFUNDED":  HandlerRefund,
}

// Route returns the handler for an event type, HandlerUnhandled for anything
// not in the table.
func Route(eventType string) Handler {
	if handler, ok := dispatchTable[strings.ToUpper(strings.TrimSpace(eventType))]; ok {
		return handler
	}
	return HandlerUnhandled
}

// HandledEventTypes lists the routed event types, used when registering
// endpoints without an explicit subscription.
func HandledEventTypes() []string {
	return []string{
		"PAYMENT.CAPTURE.COMPLETED",
		"PAYMENT.CAPTURE.PENDING",
		"PAYMENT.CAPTURE.DENIED",
		"PAYMENT.CAPTURE.DECLINED",
		"PAYMENT.CAPTURE.REFUNDED",
		"CHECKOUT.ORDER.COMPLETED",
		"CHECKOUT.ORDER.APPROVED",
	}
}

// CaptureFor builds the updater input. The status comes from the resource
// and falls back to the event type suffix.
func CaptureFor(handler Handler, event *Event, resource *Resource) orderdomain.CaptureInput {
	input := orderdomain.CaptureInput{}
	if handler == HandlerOrderCapture {
		input.GatewayOrderID = resource.ID
		input.Status = resource.Status
		for _, unit := range resource.PurchaseUnits {
			if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
				capture := unit.Payments.Captures[0]
				input.CaptureID = capture.ID
				if capture.Status != "" {
					input.Status = capture.Status
				}
				if capture.Amount != nil {
					input.Amount = capture.Amount.Value
					input.Currency = capture.Amount.CurrencyCode
				}
				break
			}
		}
		if input.Amount == "" {
			for _, unit := range resource.PurchaseUnits {
				if unit.Amount != nil {
					input.Amount = unit.Amount.Value
					input.Currency = unit.Amount.CurrencyCode
					break
				}
			}
		}
	} else {
		input.CaptureID = resource.ID
		input.Status = resource.Status
		input.GatewayOrderID = resource.GatewayOrderID()
		if resource.Amount != nil {
			input.Amount = resource.Amount.Value
			input.Currency = resource.Amount.CurrencyCode
		}
	}

	if strings.TrimSpace(input.Status) == "" {
		input.Status = eventSuffix(event.EventType)
	}
	input.Status = strings.ToUpper(strings.TrimSpace(input.Status))
	return input
}

func eventSuffix(eventType string) string {
	if idx := strings.LastIndex(eventType, "."); idx >= 0 {
		return eventType[idx+1:]
	}
	return eventType
}
