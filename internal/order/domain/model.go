package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paybridge/internal/config"
	"gorm.io/gorm"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

const (
	PaymentComplete = "complete"
	PaymentPending  = "pending"
	PaymentFailed   = "failed"
)

const (
	ScopeOrder = config.ScopeOrder
	ScopeGroup = config.ScopeGroup
)

type Order struct {
	ID           int64           `json:"id" gorm:"primaryKey"`
	OrderGroupID *int64          `json:"order_group_id,omitempty"`
	Status       string          `json:"status"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

type OrderGroup struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (OrderGroup) TableName() string { return "order_groups" }

// Payment is keyed by exactly one of OrderID or OrderGroupID.
type Payment struct {
	ID             snowflake.ID        `json:"id" gorm:"primaryKey"`
	OrderID        *int64              `json:"order_id,omitempty"`
	OrderGroupID   *int64              `json:"order_group_id,omitempty"`
	Status         string              `json:"status"`
	PaidAmount     decimal.NullDecimal `json:"paid_amount"`
	Currency       *string             `json:"currency,omitempty"`
	PaymentID      *string             `json:"payment_id,omitempty"`
	GatewayOrderID *string             `json:"gateway_order_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Target addresses the local record a gateway payment belongs to.
type Target struct {
	Scope string `json:"scope"`
	ID    int64  `json:"id"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Scope, t.ID)
}

func (t Target) Valid() bool {
	return (t.Scope == ScopeOrder || t.Scope == ScopeGroup) && t.ID > 0
}

// TargetRecord is the status and amount of an order or order group.
type TargetRecord struct {
	ID          int64
	Status      string
	TotalAmount decimal.Decimal
	Currency    string
}

// CaptureInput is the gateway capture as seen by the updater.
type CaptureInput struct {
	CaptureID      string
	Status         string
	Amount         string
	Currency       string
	GatewayOrderID string
}

// Reasons ApplyCapture leaves a target untouched.
const (
	SkipUnknownStatus   = "unknown_capture_status"
	SkipPaymentComplete = "payment_already_complete"
)

// Outcome reports what ApplyCapture did.
type Outcome struct {
	Target          Target  `json:"target"`
	GatewayStatus   string  `json:"gateway_status"`
	PaymentState    string  `json:"payment_state,omitempty"`
	TargetStatus    string  `json:"target_status,omitempty"`
	Applied         bool    `json:"applied"`
	SkipReason      string  `json:"skip_reason,omitempty"`
	Children        []int64 `json:"children,omitempty"`
	ChildrenUpdated []int64 `json:"children_updated,omitempty"`
}

// PaymentStateFor maps a gateway capture status to a local payment state.
func PaymentStateFor(gatewayStatus string) (string, bool) {
	switch gatewayStatus {
	case "COMPLETED":
		return PaymentComplete, true
	case "PENDING", "REVIEW", "APPROVED":
		return PaymentPending, true
	case "DECLINED", "FAILED", "DENIED":
		return PaymentFailed, true
	default:
		return "", false
	}
}

type Repository interface {
	FindTarget(ctx context.Context, db *gorm.DB, target Target) (*TargetRecord, error)
	UpdateTargetStatus(ctx context.Context, db *gorm.DB, target Target, status string, updatedAt time.Time) error
	ListChildOrderIDs(ctx context.Context, db *gorm.DB, groupID int64) ([]int64, error)

	FindPayment(ctx context.Context, db *gorm.DB, target Target) (*Payment, error)
	InsertPayment(ctx context.Context, db *gorm.DB, payment *Payment) error
	UpdatePayment(ctx context.Context, db *gorm.DB, payment *Payment) error
}
