package order

import (
	"github.com/smallbiznis/paybridge/internal/order/domain"
	"github.com/smallbiznis/paybridge/internal/order/repository"
	"github.com/smallbiznis/paybridge/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewUpdater),
	fx.Provide(func(u *service.Updater) domain.Updater { return u }),
	fx.Provide(service.NewService),
)
