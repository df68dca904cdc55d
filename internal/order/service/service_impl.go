package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/gateway"
	"github.com/smallbiznis/paybridge/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const auditTargetType = "gateway_order"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Gateway  gateway.Provider
	Updater  domain.Updater
	Scopes   *config.ScopeTableHolder
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	gateway  gateway.Provider
	updater  domain.Updater
	scopes   *config.ScopeTableHolder
	repo     domain.Repository
	validate *validator.Validate
	auditSvc auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("order.service"),
		gateway:  p.Gateway,
		updater:  p.Updater,
		scopes:   p.Scopes,
		repo:     p.Repo,
		validate: validator.New(),
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateCheckout(ctx context.Context, req domain.CreateCheckoutRequest) (*domain.CheckoutResponse, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	req.Intent = strings.ToUpper(strings.TrimSpace(req.Intent))
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	table := s.scopes.Get()
	scope, id, ok := table.Resolve(req.Reference)
	if !ok {
		return nil, domain.ErrInvalidReference
	}
	target := domain.Target{Scope: scope, ID: id}

	record, err := s.repo.FindTarget(ctx, s.db, target)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrTargetNotFound
	}
	if !record.TotalAmount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	reference, ok := table.Format(scope, id)
	if !ok {
		reference = req.Reference
	}

	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}

	orderReq := gateway.CreateOrderRequest{
		Intent: req.Intent,
		PurchaseUnits: []gateway.PurchaseUnitRequest{{
			ReferenceID: reference,
			CustomID:    reference,
			InvoiceID:   reference,
			Amount: gateway.Money{
				CurrencyCode: strings.ToUpper(record.Currency),
				Value:        record.TotalAmount.StringFixed(2),
			},
		}},
	}
	if req.ReturnURL != "" || req.CancelURL != "" || req.BrandName != "" {
		orderReq.ApplicationContext = &gateway.ApplicationContext{
			BrandName:  req.BrandName,
			ReturnURL:  req.ReturnURL,
			CancelURL:  req.CancelURL,
			UserAction: "PAY_NOW",
		}
	}

	order, err := client.CreateOrder(ctx, orderReq, uuid.NewString())
	if err != nil {
		return nil, err
	}

	s.log.Info("gateway checkout created",
		zap.String("target", target.String()),
		zap.String("gateway_order_id", order.ID),
	)
	s.audit(ctx, "order.checkout_created", order.ID, map[string]any{
		"reference": reference,
		"scope":     scope,
		"target_id": id,
		"amount":    orderReq.PurchaseUnits[0].Amount.Value,
		"currency":  orderReq.PurchaseUnits[0].Amount.CurrencyCode,
	})

	return &domain.CheckoutResponse{
		Reference:      reference,
		Target:         target,
		GatewayOrderID: order.ID,
		Status:         order.Status,
		ApproveURL:     order.ApproveURL(),
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error) {
	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.GetOrder(ctx, gatewayOrderID)
}

// CaptureOrder captures an approved order and applies the first capture to
// the local record named by the purchase unit reference. An order that is
// already COMPLETED is applied without a second capture call.
func (s *Service) CaptureOrder(ctx context.Context, gatewayOrderID string) (*domain.CaptureResponse, error) {
	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}

	order, err := client.GetOrder(ctx, gatewayOrderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case gateway.OrderStatusApproved:
		order, err = client.CaptureOrder(ctx, gatewayOrderID, uuid.NewString())
		if err != nil {
			return nil, err
		}
	case gateway.OrderStatusCompleted:
	default:
		return nil, fmt.Errorf("%w: status %s", domain.ErrOrderNotApproved, order.Status)
	}

	capture := order.FirstCapture()
	if capture == nil {
		return nil, domain.ErrCaptureMissing
	}

	target, ok := s.resolveTarget(orderReference(order), capture.CustomID, capture.InvoiceID)
	if !ok {
		s.log.Warn("captured order has no resolvable reference", zap.String("gateway_order_id", order.ID))
		return &domain.CaptureResponse{Order: order}, domain.ErrTargetNotFound
	}

	outcome, err := s.apply(ctx, target, captureInput(capture, order.ID))
	if err != nil {
		return &domain.CaptureResponse{Order: order}, err
	}

	metadata := map[string]any{
		"capture_id":    capture.ID,
		"target":        target.String(),
		"payment_state": outcome.PaymentState,
	}
	if outcome.SkipReason != "" {
		metadata["skip_reason"] = outcome.SkipReason
	}
	s.audit(ctx, "order.captured", order.ID, metadata)
	return &domain.CaptureResponse{Order: order, Outcome: outcome}, nil
}

func (s *Service) AuthorizeOrder(ctx context.Context, gatewayOrderID string) (*gateway.Order, error) {
	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}
	order, err := client.AuthorizeOrder(ctx, gatewayOrderID, uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "order.authorized", order.ID, map[string]any{"status": order.Status})
	return order, nil
}

func (s *Service) CaptureAuthorization(ctx context.Context, authorizationID string, req domain.CaptureAuthorizationRequest) (*domain.CaptureAuthorizationResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	amount, err := moneyFor(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}

	finalCapture := true
	if req.FinalCapture != nil {
		finalCapture = *req.FinalCapture
	}
	capture, err := client.CaptureAuthorization(ctx, authorizationID, gateway.CaptureAuthorizationRequest{
		Amount:       amount,
		InvoiceID:    strings.TrimSpace(req.InvoiceID),
		FinalCapture: finalCapture,
	}, uuid.NewString())
	if err != nil {
		return nil, err
	}

	resp := &domain.CaptureAuthorizationResponse{Capture: capture}
	target, ok := s.resolveTarget(capture.CustomID, capture.InvoiceID)
	if !ok {
		return resp, nil
	}

	gatewayOrderID := ""
	if capture.SupplementaryData != nil && capture.SupplementaryData.RelatedIDs != nil {
		gatewayOrderID = capture.SupplementaryData.RelatedIDs.OrderID
	}
	outcome, err := s.apply(ctx, target, captureInput(capture, gatewayOrderID))
	if err != nil {
		return resp, err
	}
	resp.Outcome = outcome

	s.audit(ctx, "authorization.captured", authorizationID, map[string]any{
		"capture_id": capture.ID,
		"target":     target.String(),
	})
	return resp, nil
}

func (s *Service) Refund(ctx context.Context, captureID string, req domain.RefundRequest) (*gateway.Refund, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	amount, err := moneyFor(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}

	refund, err := client.Refund(ctx, captureID, gateway.RefundRequest{
		Amount:      amount,
		NoteToPayer: strings.TrimSpace(req.NoteToPayer),
	}, uuid.NewString())
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{"refund_id": refund.ID, "status": refund.Status}
	if refund.Amount != nil {
		metadata["amount"] = refund.Amount.Value
		metadata["currency"] = refund.Amount.CurrencyCode
	}
	s.audit(ctx, "payment.refund_requested", captureID, metadata)
	return refund, nil
}

func (s *Service) GetCapture(ctx context.Context, captureID string) (*gateway.Capture, error) {
	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.GetCapture(ctx, captureID)
}

func (s *Service) apply(ctx context.Context, target domain.Target, input domain.CaptureInput) (*domain.Outcome, error) {
	var outcome *domain.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		outcome, err = s.updater.ApplyCapture(ctx, tx, target, input)
		return err
	})
	if err != nil {
		if !errors.Is(err, domain.ErrTargetNotFound) {
			s.log.Error("apply capture failed", zap.String("target", target.String()), zap.Error(err))
		}
		return nil, err
	}
	return outcome, nil
}

func (s *Service) resolveTarget(references ...string) (domain.Target, bool) {
	table := s.scopes.Get()
	for _, ref := range references {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		if scope, id, ok := table.Resolve(ref); ok {
			return domain.Target{Scope: scope, ID: id}, true
		}
	}
	return domain.Target{}, false
}

func (s *Service) audit(ctx context.Context, action, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, auditTargetType, &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

// orderReference returns the first purchase unit custom_id, falling back to
// its invoice_id.
func orderReference(order *gateway.Order) string {
	for _, unit := range order.PurchaseUnits {
		if ref := strings.TrimSpace(unit.CustomID); ref != "" {
			return ref
		}
		if ref := strings.TrimSpace(unit.InvoiceID); ref != "" {
			return ref
		}
	}
	return ""
}

func captureInput(capture *gateway.Capture, gatewayOrderID string) domain.CaptureInput {
	input := domain.CaptureInput{
		CaptureID:      capture.ID,
		Status:         capture.Status,
		GatewayOrderID: gatewayOrderID,
	}
	if capture.Amount != nil {
		input.Amount = capture.Amount.Value
		input.Currency = capture.Amount.CurrencyCode
	}
	return input
}

func moneyFor(amount, currency string) (*gateway.Money, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(amount)
	if err != nil || !value.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, domain.ErrInvalidRequest
	}
	return &gateway.Money{CurrencyCode: currency, Value: value.StringFixed(2)}, nil
}
