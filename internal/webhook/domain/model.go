package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paybridge/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent is one inbound notification, stored once per event id.
type WebhookEvent struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	EventID      string       `json:"event_id"`
	EventType    string       `json:"event_type"`
	ResourceType *string      `json:"resource_type,omitempty"`
	ResourceID   *string      `json:"resource_id,omitempty"`
	Summary      *string      `json:"summary,omitempty"`
	Payload      string       `json:"payload"`
	Processed    bool         `json:"processed"`
	ProcessedAt  *time.Time   `json:"processed_at,omitempty"`
	ReceivedAt   time.Time    `json:"received_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// WebhookEndpoint mirrors a gateway-side webhook registration.
type WebhookEndpoint struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	Name             string         `json:"name"`
	URL              string         `json:"url"`
	EventTypes       datatypes.JSON `json:"event_types"`
	GatewayWebhookID *string        `json:"gateway_webhook_id,omitempty"`
	IsActive         bool           `json:"is_active"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (WebhookEndpoint) TableName() string { return "webhook_endpoints" }

type EventFilter struct {
	Processed *bool
	EventType string
	Cursor    *pagination.Cursor
	Limit     int
}

type EventRepository interface {
	FindByEventID(ctx context.Context, db *gorm.DB, eventID string) (*WebhookEvent, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WebhookEvent, error)
	Insert(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	// Claim flips processed from false to true and reports whether this
	// caller won.
	Claim(ctx context.Context, db *gorm.DB, eventID string, processedAt time.Time) (bool, error)
	SetProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processed bool, processedAt *time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter EventFilter) ([]*WebhookEvent, error)
}

type EndpointRepository interface {
	List(ctx context.Context, db *gorm.DB) ([]WebhookEndpoint, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WebhookEndpoint, error)
	FindByGatewayID(ctx context.Context, db *gorm.DB, gatewayWebhookID string) (*WebhookEndpoint, error)
	Insert(ctx context.Context, db *gorm.DB, endpoint *WebhookEndpoint) error
	Update(ctx context.Context, db *gorm.DB, endpoint *WebhookEndpoint) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
