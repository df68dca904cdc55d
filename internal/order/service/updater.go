package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type UpdaterParams struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config
	Repo  domain.Repository
}

type Updater struct {
	log              *zap.Logger
	genID            *snowflake.Node
	clock            clock.Clock
	repo             domain.Repository
	childPropagation string
}

func NewUpdater(p UpdaterParams) *Updater {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Updater{
		log:              p.Log.Named("order.updater"),
		genID:            p.GenID,
		clock:            clk,
		repo:             p.Repo,
		childPropagation: p.Cfg.Webhook.ChildPropagation,
	}
}

// ApplyCapture upserts the target's payment row and advances the owning
// order or group. Unknown gateway statuses and captures for an already
// complete payment are reported but never applied.
func (u *Updater) ApplyCapture(ctx context.Context, tx *gorm.DB, target domain.Target, capture domain.CaptureInput) (*domain.Outcome, error) {
	if !target.Valid() {
		return nil, domain.ErrTargetNotFound
	}

	gatewayStatus := strings.ToUpper(strings.TrimSpace(capture.Status))
	outcome := &domain.Outcome{Target: target, GatewayStatus: gatewayStatus}

	record, err := u.repo.FindTarget(ctx, tx, target)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrTargetNotFound
	}
	outcome.TargetStatus = record.Status

	state, ok := domain.PaymentStateFor(gatewayStatus)
	if !ok {
		u.log.Warn("unknown capture status, nothing applied",
			zap.String("target", target.String()),
			zap.String("status", gatewayStatus),
		)
		outcome.SkipReason = domain.SkipUnknownStatus
		return outcome, nil
	}
	outcome.PaymentState = state

	amount, err := parseAmount(capture.Amount)
	if err != nil {
		return nil, err
	}

	existing, err := u.repo.FindPayment(ctx, tx, target)
	if err != nil {
		return nil, err
	}
	// A completed payment is final; later captures for the target are reported only.
	if existing != nil && existing.Status == domain.PaymentComplete {
		u.log.Info("payment already complete, capture not applied",
			zap.String("target", target.String()),
			zap.String("status", gatewayStatus),
			zap.String("capture_id", capture.CaptureID),
		)
		outcome.SkipReason = domain.SkipPaymentComplete
		return outcome, nil
	}

	now := u.clock.Now().UTC()
	if err := u.upsertPayment(ctx, tx, target, existing, state, amount, capture, now); err != nil {
		return nil, err
	}

	switch state {
	case domain.PaymentComplete:
		if err := u.repo.UpdateTargetStatus(ctx, tx, target, domain.StatusProcessing, now); err != nil {
			return nil, err
		}
		outcome.TargetStatus = domain.StatusProcessing
	case domain.PaymentPending:
		if err := u.repo.UpdateTargetStatus(ctx, tx, target, domain.StatusPending, now); err != nil {
			return nil, err
		}
		outcome.TargetStatus = domain.StatusPending
	}
	outcome.Applied = true

	if target.Scope == domain.ScopeGroup {
		if err := u.propagateToChildren(ctx, tx, target, state, capture, now, outcome); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

func (u *Updater) upsertPayment(ctx context.Context, tx *gorm.DB, target domain.Target, existing *domain.Payment, state string, amount decimal.NullDecimal, capture domain.CaptureInput, now time.Time) error {
	if existing == nil {
		payment := &domain.Payment{
			ID:             u.genID.Generate(),
			Status:         state,
			PaidAmount:     amount,
			Currency:       optionalString(strings.ToUpper(capture.Currency)),
			PaymentID:      optionalString(capture.CaptureID),
			GatewayOrderID: optionalString(capture.GatewayOrderID),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		id := target.ID
		if target.Scope == domain.ScopeGroup {
			payment.OrderGroupID = &id
		} else {
			payment.OrderID = &id
		}
		return u.repo.InsertPayment(ctx, tx, payment)
	}

	existing.Status = state
	if amount.Valid {
		existing.PaidAmount = amount
	}
	if currency := optionalString(strings.ToUpper(capture.Currency)); currency != nil {
		existing.Currency = currency
	}
	if paymentID := optionalString(capture.CaptureID); paymentID != nil {
		existing.PaymentID = paymentID
	}
	if gatewayOrderID := optionalString(capture.GatewayOrderID); gatewayOrderID != nil {
		existing.GatewayOrderID = gatewayOrderID
	}
	existing.UpdatedAt = now
	return u.repo.UpdatePayment(ctx, tx, existing)
}

// propagateToChildren lists the group's orders. Under the payments policy a
// child's existing payment row follows the group; children are never
// created or re-statused.
func (u *Updater) propagateToChildren(ctx context.Context, tx *gorm.DB, group domain.Target, state string, capture domain.CaptureInput, now time.Time, outcome *domain.Outcome) error {
	children, err := u.repo.ListChildOrderIDs(ctx, tx, group.ID)
	if err != nil {
		return err
	}
	outcome.Children = children
	if len(children) == 0 || u.childPropagation != config.ChildPropagationPayments {
		return nil
	}

	for _, childID := range children {
		child := domain.Target{Scope: domain.ScopeOrder, ID: childID}
		payment, err := u.repo.FindPayment(ctx, tx, child)
		if err != nil {
			return err
		}
		if payment == nil {
			continue
		}
		payment.Status = state
		if paymentID := optionalString(capture.CaptureID); paymentID != nil {
			payment.PaymentID = paymentID
		}
		payment.UpdatedAt = now
		if err := u.repo.UpdatePayment(ctx, tx, payment); err != nil {
			return err
		}
		outcome.ChildrenUpdated = append(outcome.ChildrenUpdated, childID)
	}

	u.log.Debug("group capture propagated",
		zap.String("group", group.String()),
		zap.Int64s("children_updated", outcome.ChildrenUpdated),
	)
	return nil
}

func parseAmount(raw string) (decimal.NullDecimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return decimal.NullDecimal{}, domain.ErrInvalidAmount
	}
	return decimal.NewNullDecimal(value), nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
