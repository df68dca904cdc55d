package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
	"github.com/smallbiznis/paybridge/pkg/db/pagination"
)

const (
	ResultSuccess          = "success"
	ResultAlreadyProcessed = "already_processed"
	ResultInProgress       = "in_progress"
)

// Audit actions written by the ingest pipeline.
const (
	ActionPaymentCompleted = "PAYMENT_COMPLETED"
	ActionPaymentPending   = "PAYMENT_PENDING"
	ActionPaymentFailed    = "PAYMENT_FAILED"
	ActionPaymentRefunded  = "PAYMENT_REFUNDED"
	ActionPaymentSettled   = "PAYMENT_ALREADY_COMPLETE"
	ActionOrderNotFound    = "ORDER_NOT_FOUND"
	ActionUnhandledEvent   = "UNHANDLED_EVENT"
	ActionDuplicateEvent   = "DUPLICATE_EVENT"
	ActionProcessingFailed = "PROCESSING_FAILED"
	ActionMalformedPayload = "MALFORMED_PAYLOAD"
	ActionSignatureInvalid = "SIGNATURE_INVALID"
)

// Result is what the inbound endpoint acknowledges with.
type Result struct {
	Status    string               `json:"status"`
	EventID   string               `json:"event_id,omitempty"`
	EventType string               `json:"event_type,omitempty"`
	Action    string               `json:"action,omitempty"`
	Outcome   *orderdomain.Outcome `json:"outcome,omitempty"`
}

type Ingestor interface {
	Ingest(ctx context.Context, payload []byte, headers http.Header) (*Result, error)
}

type EventService interface {
	List(ctx context.Context, req ListEventsRequest) (ListEventsResponse, error)
	Get(ctx context.Context, id string) (*WebhookEvent, error)
	MarkProcessed(ctx context.Context, id string) (*WebhookEvent, error)
	MarkUnprocessed(ctx context.Context, id string) (*WebhookEvent, error)
}

type EndpointService interface {
	Create(ctx context.Context, req CreateEndpointRequest) (*WebhookEndpoint, error)
	List(ctx context.Context) ([]WebhookEndpoint, error)
	Delete(ctx context.Context, id string) error
	UpdateEvents(ctx context.Context, id string, req UpdateEventsRequest) (*WebhookEndpoint, error)
	SetActive(ctx context.Context, id string, active bool) (*WebhookEndpoint, error)
	Sync(ctx context.Context) (*SyncResult, error)
}

type ListEventsRequest struct {
	pagination.Pagination
	Processed *bool  `form:"processed"`
	EventType string `form:"event_type"`
}

type ListEventsResponse struct {
	pagination.PageInfo
	Events []WebhookEvent `json:"events"`
}

type CreateEndpointRequest struct {
	Name       string   `json:"name" validate:"required,max=128"`
	URL        string   `json:"url" validate:"required,url,startswith=https://"`
	EventTypes []string `json:"event_types" validate:"required,min=1,dive,required"`
}

type UpdateEventsRequest struct {
	EventTypes []string `json:"event_types" validate:"required,min=1,dive,required"`
}

type SyncResult struct {
	Created   int               `json:"created"`
	Updated   int               `json:"updated"`
	Endpoints []WebhookEndpoint `json:"endpoints"`
}

func ParseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}

var (
	ErrMalformedPayload  = errors.New("malformed_payload")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidRequest    = errors.New("invalid_request")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrEndpointNotSynced = errors.New("endpoint_not_registered")
)
