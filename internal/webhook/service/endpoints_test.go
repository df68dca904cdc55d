package service

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/paybridge/internal/gateway"
	gatewaymock "github.com/smallbiznis/paybridge/internal/gateway/mock"
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"github.com/smallbiznis/paybridge/internal/webhook/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type endpointFixture struct {
	ingestFixture
	svc domain.EndpointService
	api *gatewaymock.MockAPI
}

func setupEndpoints(t *testing.T) endpointFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	api := gatewaymock.NewMockAPI(ctrl)
	provider := gatewaymock.NewMockProvider(ctrl)
	provider.EXPECT().Client(gomock.Any()).Return(api, nil).AnyTimes()

	f := setupIngest(t, ingestOptions{})
	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	svc := NewEndpointService(EndpointParams{
		DB:        f.db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     f.clock,
		Endpoints: repository.ProvideEndpoints(),
		Gateway:   provider,
		AuditSvc:  f.auditSvc,
	})
	return endpointFixture{ingestFixture: f, svc: svc, api: api}
}

func eventTypesOf(t *testing.T, endpoint domain.WebhookEndpoint) []string {
	t.Helper()
	var types []string
	require.NoError(t, json.Unmarshal(endpoint.EventTypes, &types))
	return types
}

func TestEndpointServiceCreateRegistersOnGateway(t *testing.T) {
	f := setupEndpoints(t)
	ctx := context.Background()

	f.api.EXPECT().
		CreateWebhook(gomock.Any(), "https://shop.example.com/webhooks/paypal", []string{"PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.DENIED"}).
		Return(&gateway.Webhook{ID: "WH-1", URL: "https://shop.example.com/webhooks/paypal"}, nil)

	endpoint, err := f.svc.Create(ctx, domain.CreateEndpointRequest{
		Name:       "shop",
		URL:        " https://shop.example.com/webhooks/paypal ",
		EventTypes: []string{"payment.capture.completed", "PAYMENT.CAPTURE.DENIED", "payment.capture.completed"},
	})
	require.NoError(t, err)
	require.NotNil(t, endpoint.GatewayWebhookID)
	assert.Equal(t, "WH-1", *endpoint.GatewayWebhookID)
	assert.True(t, endpoint.IsActive)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.DENIED"}, eventTypesOf(t, list[0]))
	assert.Len(t, f.auditActions(t, "webhook_endpoint.create"), 1)
}

func TestEndpointServiceCreateValidates(t *testing.T) {
	f := setupEndpoints(t)

	_, err := f.svc.Create(context.Background(), domain.CreateEndpointRequest{
		Name:       "plain",
		URL:        "http://shop.example.com/hook",
		EventTypes: []string{"PAYMENT.CAPTURE.COMPLETED"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = f.svc.Create(context.Background(), domain.CreateEndpointRequest{
		Name: "empty",
		URL:  "https://shop.example.com/hook",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestEndpointServiceDeleteToleratesGatewayNotFound(t *testing.T) {
	f := setupEndpoints(t)
	ctx := context.Background()

	f.api.EXPECT().CreateWebhook(gomock.Any(), gomock.Any(), gomock.Any()).Return(&gateway.Webhook{ID: "WH-2"}, nil)
	endpoint, err := f.svc.Create(ctx, domain.CreateEndpointRequest{
		Name:       "shop",
		URL:        "https://shop.example.com/hook",
		EventTypes: []string{"PAYMENT.CAPTURE.COMPLETED"},
	})
	require.NoError(t, err)

	f.api.EXPECT().DeleteWebhook(gomock.Any(), "WH-2").Return(&gateway.GatewayError{Op: "delete_webhook", StatusCode: http.StatusNotFound})
	require.NoError(t, f.svc.Delete(ctx, endpoint.ID.String()))

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, f.svc.Delete(ctx, endpoint.ID.String()), domain.ErrNotFound)
}

func TestEndpointServiceDeleteKeepsRowOnGatewayFailure(t *testing.T) {
	f := setupEndpoints(t)
	ctx := context.Background()

	f.api.EXPECT().CreateWebhook(gomock.Any(), gomock.Any(), gomock.Any()).Return(&gateway.Webhook{ID: "WH-3"}, nil)
	endpoint, err := f.svc.Create(ctx, domain.CreateEndpointRequest{
		Name:       "shop",
		URL:        "https://shop.example.com/hook",
		EventTypes: []string{"PAYMENT.CAPTURE.COMPLETED"},
	})
	require.NoError(t, err)

	f.api.EXPECT().DeleteWebhook(gomock.Any(), "WH-3").Return(&gateway.GatewayError{Op: "delete_webhook", StatusCode: http.StatusBadGateway})
	var gwErr *gateway.GatewayError
	assert.ErrorAs(t, f.svc.Delete(ctx, endpoint.ID.String()), &gwErr)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEndpointServiceSyncMirrorsGateway(t *testing.T) {
	f := setupEndpoints(t)
	ctx := context.Background()

	f.api.EXPECT().CreateWebhook(gomock.Any(), gomock.Any(), gomock.Any()).Return(&gateway.Webhook{ID: "WH-1"}, nil)
	_, err := f.svc.Create(ctx, domain.CreateEndpointRequest{
		Name:       "shop",
		URL:        "https://old.example.com/hook",
		EventTypes: []string{"PAYMENT.CAPTURE.COMPLETED"},
	})
	require.NoError(t, err)

	f.api.EXPECT().ListWebhooks(gomock.Any()).Return([]gateway.Webhook{
		{
			ID:         "WH-1",
			URL:        "https://new.example.com/hook",
			EventTypes: []gateway.EventType{{Name: "PAYMENT.CAPTURE.COMPLETED"}, {Name: "PAYMENT.CAPTURE.REFUNDED"}},
		},
		{
			ID:         "WH-9",
			URL:        "https://other.example.com/paypal",
			EventTypes: []gateway.EventType{{Name: "*"}},
		},
	}, nil)

	result, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Endpoints, 2)

	byGatewayID := map[string]domain.WebhookEndpoint{}
	for _, endpoint := range result.Endpoints {
		byGatewayID[*endpoint.GatewayWebhookID] = endpoint
	}
	assert.Equal(t, "https://new.example.com/hook", byGatewayID["WH-1"].URL)
	assert.Equal(t, []string{"PAYMENT.CAPTURE.COMPLETED", "PAYMENT.CAPTURE.REFUNDED"}, eventTypesOf(t, byGatewayID["WH-1"]))
	assert.Equal(t, "other.example.com/paypal", byGatewayID["WH-9"].Name)
}

func TestEndpointServiceUpdateEventsRequiresGatewayRegistration(t *testing.T) {
	f := setupEndpoints(t)
	ctx := context.Background()

	f.api.EXPECT().ListWebhooks(gomock.Any()).Return([]gateway.Webhook{{ID: "WH-5", URL: "https://shop.example.com/hook"}}, nil)
	result, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	endpoint := result.Endpoints[0]

	f.api.EXPECT().
		UpdateWebhookEvents(gomock.Any(), "WH-5", []string{"PAYMENT.CAPTURE.DENIED"}).
		Return(&gateway.Webhook{ID: "WH-5"}, nil)
	updated, err := f.svc.UpdateEvents(ctx, endpoint.ID.String(), domain.UpdateEventsRequest{EventTypes: []string{"payment.capture.denied"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"PAYMENT.CAPTURE.DENIED"}, eventTypesOf(t, *updated))

	require.NoError(t, f.db.Exec(`UPDATE webhook_endpoints SET gateway_webhook_id = NULL WHERE id = ?`, endpoint.ID).Error)
	_, err = f.svc.UpdateEvents(ctx, endpoint.ID.String(), domain.UpdateEventsRequest{EventTypes: []string{"PAYMENT.CAPTURE.DENIED"}})
	assert.ErrorIs(t, err, domain.ErrEndpointNotSynced)
}

func TestEndpointServiceSetActiveIsLocal(t *testing.T) {
	f := setupEndpoints(t)
	ctx := context.Background()

	f.api.EXPECT().ListWebhooks(gomock.Any()).Return([]gateway.Webhook{{ID: "WH-6", URL: "https://shop.example.com/hook"}}, nil)
	result, err := f.svc.Sync(ctx)
	require.NoError(t, err)
	id := result.Endpoints[0].ID.String()

	endpoint, err := f.svc.SetActive(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, endpoint.IsActive)

	endpoint, err = f.svc.SetActive(ctx, id, false)
	require.NoError(t, err)
	assert.False(t, endpoint.IsActive)
	assert.Len(t, f.auditActions(t, "webhook_endpoint.deactivate"), 1)
}
