package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	"github.com/smallbiznis/paybridge/internal/clock"
	"github.com/smallbiznis/paybridge/internal/gateway"
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const auditTargetEndpoint = "webhook_endpoint"

type EndpointParams struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Endpoints domain.EndpointRepository
	Gateway   gateway.Provider
	AuditSvc  auditdomain.Service `optional:"true"`
}

type EndpointService struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	endpoints domain.EndpointRepository
	gateway   gateway.Provider
	validate  *validator.Validate
	auditSvc  auditdomain.Service
}

func NewEndpointService(p EndpointParams) domain.EndpointService {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &EndpointService{
		db:        p.DB,
		log:       p.Log.Named("webhook.endpoints"),
		genID:     p.GenID,
		clock:     clk,
		endpoints: p.Endpoints,
		gateway:   p.Gateway,
		validate:  validator.New(),
		auditSvc:  p.AuditSvc,
	}
}

// Create registers the callback on the gateway first and mirrors it locally.
func (s *EndpointService) Create(ctx context.Context, req domain.CreateEndpointRequest) (*domain.WebhookEndpoint, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.URL = strings.TrimSpace(req.URL)
	req.EventTypes = normalizeEventTypes(req.EventTypes)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}
	registered, err := client.CreateWebhook(ctx, req.URL, req.EventTypes)
	if err != nil {
		return nil, err
	}

	eventTypes, err := encodeEventTypes(req.EventTypes)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	endpoint := domain.WebhookEndpoint{
		ID:               s.genID.Generate(),
		Name:             req.Name,
		URL:              req.URL,
		EventTypes:       eventTypes,
		GatewayWebhookID: optionalString(registered.ID),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.endpoints.Insert(ctx, s.db, &endpoint); err != nil {
		s.log.Error("gateway webhook registered but local insert failed",
			zap.String("gateway_webhook_id", registered.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.audit(ctx, "webhook_endpoint.create", endpoint.ID.String(), map[string]any{
		"url":                req.URL,
		"event_types":        req.EventTypes,
		"gateway_webhook_id": registered.ID,
	})
	return &endpoint, nil
}

func (s *EndpointService) List(ctx context.Context) ([]domain.WebhookEndpoint, error) {
	return s.endpoints.List(ctx, s.db)
}

// Delete removes the gateway registration, tolerating one that is already
// gone, and then the local row.
func (s *EndpointService) Delete(ctx context.Context, id string) error {
	endpoint, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	if endpoint.GatewayWebhookID != nil {
		client, err := s.gateway.Client(ctx)
		if err != nil {
			return err
		}
		if err := client.DeleteWebhook(ctx, *endpoint.GatewayWebhookID); err != nil && !isGatewayNotFound(err) {
			return err
		}
	}

	if _, err := s.endpoints.Delete(ctx, s.db, endpoint.ID); err != nil {
		return err
	}
	s.audit(ctx, "webhook_endpoint.delete", endpoint.ID.String(), map[string]any{"url": endpoint.URL})
	return nil
}

func (s *EndpointService) UpdateEvents(ctx context.Context, id string, req domain.UpdateEventsRequest) (*domain.WebhookEndpoint, error) {
	req.EventTypes = normalizeEventTypes(req.EventTypes)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}

	endpoint, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if endpoint.GatewayWebhookID == nil {
		return nil, domain.ErrEndpointNotSynced
	}

	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := client.UpdateWebhookEvents(ctx, *endpoint.GatewayWebhookID, req.EventTypes); err != nil {
		return nil, err
	}

	eventTypes, err := encodeEventTypes(req.EventTypes)
	if err != nil {
		return nil, err
	}
	endpoint.EventTypes = eventTypes
	endpoint.UpdatedAt = s.clock.Now().UTC()
	if err := s.endpoints.Update(ctx, s.db, endpoint); err != nil {
		return nil, err
	}

	s.audit(ctx, "webhook_endpoint.update_events", endpoint.ID.String(), map[string]any{"event_types": req.EventTypes})
	return endpoint, nil
}

// SetActive only toggles the local flag; the gateway has no notion of a
// paused registration.
func (s *EndpointService) SetActive(ctx context.Context, id string, active bool) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if endpoint.IsActive == active {
		return endpoint, nil
	}

	endpoint.IsActive = active
	endpoint.UpdatedAt = s.clock.Now().UTC()
	if err := s.endpoints.Update(ctx, s.db, endpoint); err != nil {
		return nil, err
	}

	action := "webhook_endpoint.deactivate"
	if active {
		action = "webhook_endpoint.activate"
	}
	s.audit(ctx, action, endpoint.ID.String(), nil)
	return endpoint, nil
}

// Sync mirrors every gateway registration into webhook_endpoints. Local rows
// the gateway no longer knows about are left in place.
func (s *EndpointService) Sync(ctx context.Context) (*domain.SyncResult, error) {
	client, err := s.gateway.Client(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := client.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}

	result := &domain.SyncResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		for _, hook := range remote {
			eventTypes, err := encodeEventTypes(hook.EventNames())
			if err != nil {
				return err
			}

			existing, err := s.endpoints.FindByGatewayID(ctx, tx, hook.ID)
			if err != nil {
				return err
			}
			if existing == nil {
				endpoint := domain.WebhookEndpoint{
					ID:               s.genID.Generate(),
					Name:             endpointName(hook),
					URL:              hook.URL,
					EventTypes:       eventTypes,
					GatewayWebhookID: optionalString(hook.ID),
					IsActive:         true,
					CreatedAt:        now,
					UpdatedAt:        now,
				}
				if err := s.endpoints.Insert(ctx, tx, &endpoint); err != nil {
					return err
				}
				result.Created++
				continue
			}

			existing.URL = hook.URL
			existing.EventTypes = eventTypes
			existing.UpdatedAt = now
			if err := s.endpoints.Update(ctx, tx, existing); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	endpoints, err := s.endpoints.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	result.Endpoints = endpoints

	s.log.Info("webhook endpoints synced", zap.Int("created", result.Created), zap.Int("updated", result.Updated))
	s.audit(ctx, "webhook_endpoint.sync", "", map[string]any{"created": result.Created, "updated": result.Updated})
	return result, nil
}

func (s *EndpointService) find(ctx context.Context, id string) (*domain.WebhookEndpoint, error) {
	endpointID, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	endpoint, err := s.endpoints.FindByID(ctx, s.db, endpointID)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, domain.ErrNotFound
	}
	return endpoint, nil
}

func (s *EndpointService) audit(ctx context.Context, action, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	var target *string
	if targetID != "" {
		target = &targetID
	}
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, auditTargetEndpoint, target, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeEventTypes(types []string) []string {
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func encodeEventTypes(types []string) (datatypes.JSON, error) {
	if types == nil {
		types = []string{}
	}
	raw, err := json.Marshal(types)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func endpointName(hook gateway.Webhook) string {
	if parsed, err := url.Parse(hook.URL); err == nil && parsed.Host != "" {
		return parsed.Host + parsed.Path
	}
	return "gateway-" + hook.ID
}

func isGatewayNotFound(err error) bool {
	var gwErr *gateway.GatewayError
	return errors.As(err, &gwErr) && gwErr.StatusCode == http.StatusNotFound
}
