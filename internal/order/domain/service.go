package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/paybridge/internal/gateway"
	"gorm.io/gorm"
)

// Updater applies gateway capture results to local records. It always runs
// inside the caller's transaction.
type Updater interface {
	ApplyCapture(ctx context.Context, tx *gorm.DB, target Target, capture CaptureInput) (*Outcome, error)
}

// Service drives checkout flows against the gateway on behalf of local
// orders and order groups.
type Service interface {
	CreateCheckout(ctx context.Context, req CreateCheckoutRequest) (*CheckoutResponse, error)
	GetOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error)
	CaptureOrder(ctx context.Context, gatewayOrderID string) (*CaptureResponse, error)
	AuthorizeOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error)
	CaptureAuthorization(ctx context.Context, authorizationID string, req CaptureAuthorizationRequest) (*CaptureAuthorizationResponse, error)
	Refund(ctx context.Context, captureID string, req RefundRequest) (*gateway.Refund, error)
	GetCapture(ctx context.Context, captureID string) (*gateway.Capture, error)
}

type CreateCheckoutRequest struct {
	Reference string `json:"reference" validate:"required"`
	Intent    string `json:"intent" validate:"omitempty,oneof=CAPTURE AUTHORIZE"`
	ReturnURL string `json:"return_url" validate:"omitempty,url"`
	CancelURL string `json:"cancel_url" validate:"omitempty,url"`
	BrandName string `json:"brand_name"`
}

type CheckoutResponse struct {
	Reference      string `json:"reference"`
	Target         Target `json:"target"`
	GatewayOrderID string `json:"gateway_order_id"`
	Status         string `json:"status"`
	ApproveURL     string `json:"approve_url,omitempty"`
}

type CaptureResponse struct {
	Order   *gateway.Order `json:"order"`
	Outcome *Outcome       `json:"outcome,omitempty"`
}

type CaptureAuthorizationRequest struct {
	Amount       string `json:"amount" validate:"omitempty,numeric"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	InvoiceID    string `json:"invoice_id"`
	FinalCapture *bool  `json:"final_capture"`
}

type CaptureAuthorizationResponse struct {
	Capture *gateway.Capture `json:"capture"`
	Outcome *Outcome         `json:"outcome,omitempty"`
}

type RefundRequest struct {
	Amount      string `json:"amount" validate:"omitempty,numeric"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	NoteToPayer string `json:"note_to_payer" validate:"omitempty,max=255"`
}

var (
	ErrTargetNotFound   = errors.New("target_not_found")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrOrderNotApproved = errors.New("order_not_approved")
	ErrCaptureMissing   = errors.New("capture_missing")
)
