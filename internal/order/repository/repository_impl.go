package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/paybridge/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func targetTable(target domain.Target) string {
	if target.Scope == domain.ScopeGroup {
		return "order_groups"
	}
	return "orders"
}

func paymentColumn(target domain.Target) string {
	if target.Scope == domain.ScopeGroup {
		return "order_group_id"
	}
	return "order_id"
}

func (r *repo) FindTarget(ctx context.Context, db *gorm.DB, target domain.Target) (*domain.TargetRecord, error) {
	var item domain.TargetRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, status, total_amount, currency
		 FROM `+targetTable(target)+`
		 WHERE id = ?
		 LIMIT 1`,
		target.ID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) UpdateTargetStatus(ctx context.Context, db *gorm.DB, target domain.Target, status string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE `+targetTable(target)+`
		 SET status = ?, updated_at = ?
		 WHERE id = ?`,
		status,
		updatedAt,
		target.ID,
	).Error
}

func (r *repo) ListChildOrderIDs(ctx context.Context, db *gorm.DB, groupID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Raw(
		`SELECT id FROM orders
		 WHERE order_group_id = ?
		 ORDER BY id ASC`,
		groupID,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) FindPayment(ctx context.Context, db *gorm.DB, target domain.Target) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, order_group_id, status, paid_amount, currency,
			payment_id, gateway_order_id, created_at, updated_at
		 FROM payments
		 WHERE `+paymentColumn(target)+` = ?
		 LIMIT 1`,
		target.ID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertPayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, order_id, order_group_id, status, paid_amount, currency,
			payment_id, gateway_order_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.OrderID,
		payment.OrderGroupID,
		payment.Status,
		payment.PaidAmount,
		payment.Currency,
		payment.PaymentID,
		payment.GatewayOrderID,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) UpdatePayment(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, paid_amount = ?, currency = ?, payment_id = ?,
			gateway_order_id = ?, updated_at = ?
		 WHERE id = ?`,
		payment.Status,
		payment.PaidAmount,
		payment.Currency,
		payment.PaymentID,
		payment.GatewayOrderID,
		payment.UpdatedAt,
		payment.ID,
	).Error
}
