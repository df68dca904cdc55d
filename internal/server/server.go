package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/paybridge/internal/audit"
	auditdomain "github.com/smallbiznis/paybridge/internal/audit/domain"
	"github.com/smallbiznis/paybridge/internal/config"
	"github.com/smallbiznis/paybridge/internal/credential"
	credentialdomain "github.com/smallbiznis/paybridge/internal/credential/domain"
	"github.com/smallbiznis/paybridge/internal/gateway"
	"github.com/smallbiznis/paybridge/internal/observability"
	obsmiddleware "github.com/smallbiznis/paybridge/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/paybridge/internal/observability/metrics"
	obstracing "github.com/smallbiznis/paybridge/internal/observability/tracing"
	"github.com/smallbiznis/paybridge/internal/order"
	orderdomain "github.com/smallbiznis/paybridge/internal/order/domain"
	"github.com/smallbiznis/paybridge/internal/ratelimit"
	"github.com/smallbiznis/paybridge/internal/webhook"
	webhookdomain "github.com/smallbiznis/paybridge/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	credential.Module,
	gateway.Module,
	order.Module,
	webhook.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	credentialSvc credentialdomain.Service
	ingestor      webhookdomain.Ingestor
	eventSvc      webhookdomain.EventService
	endpointSvc   webhookdomain.EndpointService
	orderSvc      orderdomain.Service
	auditSvc      auditdomain.Service
	obsMetrics    *obsmetrics.Metrics
	limiter       *ratelimit.WebhookLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	CredentialSvc credentialdomain.Service
	Ingestor      webhookdomain.Ingestor
	EventSvc      webhookdomain.EventService
	EndpointSvc   webhookdomain.EndpointService
	OrderSvc      orderdomain.Service
	AuditSvc      auditdomain.Service
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	Limiter       *ratelimit.WebhookLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		credentialSvc: p.CredentialSvc,
		ingestor:      p.Ingestor,
		eventSvc:      p.EventSvc,
		endpointSvc:   p.EndpointSvc,
		orderSvc:      p.OrderSvc,
		auditSvc:      p.AuditSvc,
		obsMetrics:    p.ObsMetrics,
		limiter:       p.Limiter,
	}

	svc.registerWebhookRoutes()
	svc.registerAdminRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/gateway", s.WebhookRateLimit(), s.HandleGatewayWebhook)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminAuthRequired())

	admin.GET("/credentials", s.ListCredentials)
	admin.POST("/credentials", s.StoreCredential)
	admin.GET("/credentials/active", s.GetActiveCredential)
	admin.GET("/credentials/:name", s.GetCredential)
	admin.PATCH("/credentials/:name", s.UpdateCredential)
	admin.DELETE("/credentials/:name", s.DeleteCredential)
	admin.POST("/credentials/:name/activate", s.ActivateCredential)
	admin.POST("/credentials/:name/deactivate", s.DeactivateCredential)

	admin.GET("/webhook-events", s.ListWebhookEvents)
	admin.GET("/webhook-events/:id", s.GetWebhookEvent)
	admin.POST("/webhook-events/:id/mark-processed", s.MarkWebhookEventProcessed)
	admin.POST("/webhook-events/:id/mark-unprocessed", s.MarkWebhookEventUnprocessed)

	admin.GET("/webhook-endpoints", s.ListWebhookEndpoints)
	admin.POST("/webhook-endpoints", s.CreateWebhookEndpoint)
	admin.POST("/webhook-endpoints/sync", s.SyncWebhookEndpoints)
	admin.DELETE("/webhook-endpoints/:id", s.DeleteWebhookEndpoint)
	admin.PUT("/webhook-endpoints/:id/events", s.UpdateWebhookEndpointEvents)
	admin.POST("/webhook-endpoints/:id/activate", s.ActivateWebhookEndpoint)
	admin.POST("/webhook-endpoints/:id/deactivate", s.DeactivateWebhookEndpoint)

	admin.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.AdminAuthRequired())

	api.POST("/orders", s.CreateCheckout)
	api.GET("/orders/:gateway_order_id", s.GetGatewayOrder)
	api.POST("/orders/:gateway_order_id/capture", s.CaptureGatewayOrder)
	api.POST("/orders/:gateway_order_id/authorize", s.AuthorizeGatewayOrder)
	api.POST("/authorizations/:id/capture", s.CaptureAuthorization)
	api.POST("/captures/:id/refund", s.RefundCapture)
	api.GET("/captures/:id", s.GetCapture)
}
