// Package router wires middleware and handlers into the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/auth"
	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/handler"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
)

// Handlers bundles every handler the router mounts
type Handlers struct {
	Webhook    *handler.WebhookHandler
	Callback   *handler.CallbackHandler
	Sync       *handler.SyncHandler
	Mapping    *handler.MappingHandler
	Credential *handler.CredentialHandler
	System     *handler.SystemHandler
}

// Deps carries the cross-cutting dependencies the router needs
type Deps struct {
	Config     *config.Config
	Logger     *zap.Logger
	JWTService *auth.JWTService
	Tenants    tenant.Repository
	Registry   *prometheus.Registry
}

// systemPaths bypass tenant resolution
var systemPaths = []string{"/health", "/ready", "/metrics"}

// New builds the gin engine with the full middleware chain. Webhooks name
// their tenant in the route; callbacks carry no tenant; the admin API
// resolves the tenant from the host subdomain and additionally requires a
// tenant-bound JWT.
func New(deps Deps, h Handlers) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	_ = engine.SetTrustedProxies(deps.Config.HTTP.TrustedProxies)

	engine.Use(logger.GinMiddleware(deps.Logger))
	engine.Use(logger.Recovery(deps.Logger))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.BodyLimit(deps.Config.Sync.CallbackBodyLimit))

	// System surface, no tenant context
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	var limiter *middleware.RateLimiter
	if deps.Config.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(deps.Config.HTTP.RateLimitRequests, deps.Config.HTTP.RateLimitWindow)
	}

	// Platform-facing surface on the bare domain, authenticated by signature
	// or api key. Webhooks name the tenant as a route token; callbacks carry
	// no tenant at all, the correlation id recovers it.
	webhooks := engine.Group("/webhook")
	webhooks.Use(middleware.TenantFromRoute("tenant", deps.Tenants))
	if limiter != nil {
		webhooks.Use(middleware.RateLimit(limiter))
	}
	{
		webhooks.POST("/:platform/:tenant", h.Webhook.ReceiveOrder)
	}
	callbacks := engine.Group("/callbacks")
	{
		callbacks.POST("/:platform", h.Callback.ReceiveCatalogResult)
	}

	engine.Use(middleware.TenantResolver(middleware.TenantConfig{
		BaseDomain: deps.Config.App.BaseDomain,
		Tenants:    deps.Tenants,
		SkipPaths:  systemPaths,
	}))

	if limiter != nil {
		engine.Use(middleware.RateLimit(limiter))
	}

	// Admin surface, JWT bound to the resolved tenant
	api := engine.Group("/api/v1")
	api.Use(middleware.JWTAuth(deps.JWTService))
	{
		api.POST("/menus/:id/sync/:platform", h.Sync.TriggerMenuSync)
		api.GET("/menus/:id/sync/:platform", h.Sync.GetMenuSyncStatus)
		api.GET("/menu-syncs/failed", h.Sync.ListFailedMenuSyncs)

		api.GET("/orders/failed", h.Sync.ListFailedOrders)
		api.GET("/orders/:id", h.Sync.GetOrder)
		api.POST("/orders/:id/retry", h.Sync.RetryOrder)

		api.PUT("/mappings", h.Mapping.UpsertMapping)
		api.GET("/mappings/:platform", h.Mapping.ListMappings)

		api.PUT("/credentials", h.Credential.PutCredential)
		api.DELETE("/credentials", h.Credential.DeactivateCredential)

		api.GET("/system/queue", h.System.QueueStats)
	}

	return engine
}
