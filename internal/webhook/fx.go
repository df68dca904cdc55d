package webhook

import (
	"github.com/smallbiznis/paybridge/internal/webhook/domain"
	"github.com/smallbiznis/paybridge/internal/webhook/repository"
	"github.com/smallbiznis/paybridge/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(repository.ProvideEvents),
	fx.Provide(repository.ProvideEndpoints),
	fx.Provide(service.NewIngestService),
	fx.Provide(func(s *service.IngestService) domain.Ingestor { return s }),
	fx.Provide(service.NewEventService),
	fx.Provide(service.NewEndpointService),
)
