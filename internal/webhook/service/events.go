package service

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"github.com/smallbiznis/paybridge/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type EventParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Events   domain.EventRepository
	AuditSvc auditdomain.Service `optional:"true"`
}

type EventService struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	events   domain.EventRepository
	auditSvc auditdomain.Service
}

func NewEventService(p EventParams) domain.EventService {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &EventService{
		db:       p.DB,
		log:      p.Log.Named("webhook.events"),
		clock:    clk,
		events:   p.Events,
		auditSvc: p.AuditSvc,
	}
}

func (s *EventService) List(ctx context.Context, req domain.ListEventsRequest) (domain.ListEventsResponse, error) {
	cursor, err := req.Pagination.Cursor()
	if err != nil {
		return domain.ListEventsResponse{}, domain.ErrInvalidPageToken
	}
	size := req.Pagination.Size()

	rows, err := s.events.List(ctx, s.db, domain.EventFilter{
		Processed: req.Processed,
		EventType: strings.ToUpper(strings.TrimSpace(req.EventType)),
		Cursor:    cursor,
		Limit:     size,
	})
	if err != nil {
		return domain.ListEventsResponse{}, err
	}

	events, pageInfo := pagination.Page(rows, size, func(e *domain.WebhookEvent) pagination.Cursor {
		return pagination.Cursor{ID: e.ID, At: e.ReceivedAt}
	})
	return domain.ListEventsResponse{PageInfo: pageInfo, Events: events}, nil
}

func (s *EventService) Get(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	eventID, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	event, err := s.events.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}
	return event, nil
}

func (s *EventService) MarkProcessed(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	now := s.clock.Now().UTC()
	return s.setProcessed(ctx, id, true, &now, "webhook_event.mark_processed")
}

// MarkUnprocessed re-opens an event so the next redelivery is processed again.
func (s *EventService) MarkUnprocessed(ctx context.Context, id string) (*domain.WebhookEvent, error) {
	return s.setProcessed(ctx, id, false, nil, "webhook_event.mark_unprocessed")
}

func (s *EventService) setProcessed(ctx context.Context, id string, processed bool, processedAt *time.Time, action string) (*domain.WebhookEvent, error) {
	eventID, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	ok, err := s.events.SetProcessed(ctx, s.db, eventID, processed, processedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}

	event, err := s.events.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, domain.ErrNotFound
	}

	if s.auditSvc != nil {
		targetID := event.EventID
		if err := s.auditSvc.AuditLog(ctx, "", nil, action, auditTargetEvent, &targetID, map[string]any{
			"event_type": event.EventType,
			"processed":  processed,
		}); err != nil {
			s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
		}
	}
	return event, nil
}
