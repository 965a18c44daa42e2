package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// Gin context keys for tenant information
const (
	TenantIDKey        = "tenant_id"
	TenantSubdomainKey = "tenant_subdomain"
)

// TenantConfig holds tenant resolution middleware configuration
type TenantConfig struct {
	// BaseDomain is the domain tenant subdomains hang off (e.g. "orderbridge.io")
	BaseDomain string
	// Tenants resolves subdomains to tenant rows
	Tenants tenant.Repository
	// SkipPaths bypass tenant resolution (health, metrics)
	SkipPaths []string
}

// TenantResolver resolves the tenant from the request host's subdomain,
// rejects suspended and cancelled tenants, and binds the tenant into both
// the gin context and the request context. Everything scoped runs after it.
func TenantResolver(cfg TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		subdomain := extractSubdomain(c.Request.Host, cfg.BaseDomain)
		if subdomain == "" {
			c.AbortWithStatusJSON(http.StatusNotFound,
				dto.NewErrorResponse(dto.ErrCodeNotFound, "Unknown tenant host"))
			return
		}

		resolveAndBind(c, cfg.Tenants, subdomain)
	}
}

// TenantFromRoute resolves the tenant from a route token instead of the
// host. Platforms deliver webhooks to the bare domain, so those endpoints
// carry the tenant's subdomain identifier in the path, e.g.
// POST /webhook/careem/acme.
func TenantFromRoute(param string, tenants tenant.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Param(param)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound,
				dto.NewErrorResponse(dto.ErrCodeNotFound, "Unknown tenant"))
			return
		}
		resolveAndBind(c, tenants, token)
	}
}

// resolveAndBind looks the tenant identifier up, fails closed on suspended
// and cancelled tenants, and binds the tenant into the gin and request
// contexts before handing off.
func resolveAndBind(c *gin.Context, tenants tenant.Repository, identifier string) {
	ctx := c.Request.Context()
	t, err := tenants.FindBySubdomain(ctx, identifier)
	if err != nil {
		logger.L(ctx).Warn("tenant resolution failed",
			zap.String("tenant_identifier", identifier),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusNotFound,
			dto.NewErrorResponse(dto.ErrCodeNotFound, "Unknown tenant"))
		return
	}
	if !t.Status.AcceptsWork() {
		c.AbortWithStatusJSON(http.StatusForbidden,
			dto.NewErrorResponse(dto.ErrCodeTenantInactive, "Tenant is suspended or cancelled"))
		return
	}

	c.Set(TenantIDKey, t.ID.String())
	c.Set(TenantSubdomainKey, t.Subdomain)
	c.Request = c.Request.WithContext(bindTenant(ctx, t.ID.String()))

	c.Next()
}

func bindTenant(ctx context.Context, tenantID string) context.Context {
	log := logger.FromContext(ctx)
	ctx, _ = logger.WithTenantID(ctx, log, tenantID)
	return ctx
}

// reservedSubdomains never resolve to a tenant
var reservedSubdomains = map[string]bool{
	"www":   true,
	"admin": true,
	"api":   true,
}

// extractSubdomain returns the tenant subdomain of host under baseDomain.
// "acme.orderbridge.io" with base "orderbridge.io" yields "acme"; the bare
// domain and reserved subdomains resolve to nothing.
func extractSubdomain(host, baseDomain string) string {
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	if !strings.HasSuffix(host, "."+baseDomain) {
		return ""
	}
	subdomain := strings.TrimSuffix(host, "."+baseDomain)
	if subdomain == "" || reservedSubdomains[subdomain] {
		return ""
	}
	parts := strings.Split(subdomain, ".")
	return parts[len(parts)-1]
}
