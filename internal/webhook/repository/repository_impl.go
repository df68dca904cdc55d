package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"gorm.io/gorm"
)

type eventRepo struct{}

func ProvideEvents() domain.EventRepository {
	return &eventRepo{}
}

const eventColumns = `id, event_id, event_type, resource_type, resource_id, summary,
			payload, processed, processed_at, received_at`

func (r *eventRepo) FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*domain.WebhookEvent, error) {
	var item domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM webhook_events
		 WHERE event_id = ?
		 LIMIT 1`,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *eventRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WebhookEvent, error) {
	var item domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+`
		 FROM webhook_events
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *eventRepo) Insert(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, event_id, event_type, resource_type, resource_id, summary,
			payload, processed, processed_at, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		event.ID,
		event.EventID,
		event.EventType,
		event.ResourceType,
		event.ResourceID,
		event.Summary,
		event.Payload,
		event.Processed,
		event.ProcessedAt,
		event.ReceivedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepo) Claim(ctx context.Context, db *gorm.DB, eventID string, processedAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET processed = TRUE, processed_at = ?
		 WHERE event_id = ? AND processed = FALSE`,
		processedAt,
		eventID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *eventRepo) SetProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processed bool, processedAt *time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET processed = ?, processed_at = ?
		 WHERE id = ?`,
		processed,
		processedAt,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepo) List(ctx context.Context, db *gorm.DB, filter domain.EventFilter) ([]*domain.WebhookEvent, error) {
	var events []*domain.WebhookEvent
	stmt := db.WithContext(ctx).Model(&domain.WebhookEvent{})

	if filter.Processed != nil {
		stmt = stmt.Where("processed = ?", *filter.Processed)
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		stmt = stmt.Where("event_type = ?", eventType)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(received_at < ?) OR (received_at = ? AND id < ?)",
			filter.Cursor.At,
			filter.Cursor.At,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("received_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

type endpointRepo struct{}

func ProvideEndpoints() domain.EndpointRepository {
	return &endpointRepo{}
}

const endpointColumns = `id, name, url, event_types, gateway_webhook_id, is_active, created_at, updated_at`

func (r *endpointRepo) List(ctx context.Context, db *gorm.DB) ([]domain.WebhookEndpoint, error) {
	var items []domain.WebhookEndpoint
	err := db.WithContext(ctx).Raw(
		`SELECT ` + endpointColumns + `
		 FROM webhook_endpoints
		 ORDER BY created_at ASC, id ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *endpointRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WebhookEndpoint, error) {
	var item domain.WebhookEndpoint
	err := db.WithContext(ctx).Raw(
		`SELECT `+endpointColumns+`
		 FROM webhook_endpoints
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *endpointRepo) FindByGatewayID(ctx context.Context, db *gorm.DB, gatewayWebhookID string) (*domain.WebhookEndpoint, error) {
	var item domain.WebhookEndpoint
	err := db.WithContext(ctx).Raw(
		`SELECT `+endpointColumns+`
		 FROM webhook_endpoints
		 WHERE gateway_webhook_id = ?
		 LIMIT 1`,
		gatewayWebhookID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *endpointRepo) Insert(ctx context.Context, db *gorm.DB, endpoint *domain.WebhookEndpoint) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO webhook_endpoints (
			id, name, url, event_types, gateway_webhook_id, is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		endpoint.ID,
		endpoint.Name,
		endpoint.URL,
		endpoint.EventTypes,
		endpoint.GatewayWebhookID,
		endpoint.IsActive,
		endpoint.CreatedAt,
		endpoint.UpdatedAt,
	).Error
}

func (r *endpointRepo) Update(ctx context.Context, db *gorm.DB, endpoint *domain.WebhookEndpoint) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_endpoints
		 SET name = ?, url = ?, event_types = ?, gateway_webhook_id = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		endpoint.Name,
		endpoint.URL,
		endpoint.EventTypes,
		endpoint.GatewayWebhookID,
		endpoint.IsActive,
		endpoint.UpdatedAt,
		endpoint.ID,
	).Error
}

func (r *endpointRepo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(`DELETE FROM webhook_endpoints WHERE id = ?`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
