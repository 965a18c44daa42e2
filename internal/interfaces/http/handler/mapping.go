package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
)

// MappingHandler manages the tenant's platform SKU to POS product mappings
type MappingHandler struct {
	BaseHandler
	mappings ordersync.MappingRepository
}

// NewMappingHandler creates a MappingHandler
func NewMappingHandler(mappings ordersync.MappingRepository) *MappingHandler {
	return &MappingHandler{mappings: mappings}
}

type upsertMappingRequest struct {
	Platform     string `json:"platform" binding:"required"`
	PlatformSKU  string `json:"platform_sku" binding:"required"`
	POSProductID string `json:"pos_product_id" binding:"required"`
}

// UpsertMapping handles PUT /api/v1/mappings
func (h *MappingHandler) UpsertMapping(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req upsertMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if !platform.Code(req.Platform).IsValid() {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUnknownPlatform), dto.ErrCodeUnknownPlatform, "Unknown platform")
		return
	}

	ctx := c.Request.Context()
	mapping, err := h.mappings.FindByPlatformSKU(ctx, req.Platform, req.PlatformSKU)
	if err != nil {
		mapping = ordersync.NewProductMapping(tenantID, req.Platform, req.PlatformSKU, req.POSProductID)
	} else {
		mapping.POSProductID = req.POSProductID
		mapping.Touch()
	}
	if err := h.mappings.Save(ctx, mapping); err != nil {
		h.Internal(c, "Failed to save mapping")
		return
	}

	h.Success(c, gin.H{
		"id":             mapping.ID,
		"platform":       mapping.Platform,
		"platform_sku":   mapping.PlatformSKU,
		"pos_product_id": mapping.POSProductID,
	})
}

// ListMappings handles GET /api/v1/mappings/:platform
func (h *MappingHandler) ListMappings(c *gin.Context) {
	code := platform.Code(c.Param("platform"))
	if !code.IsValid() {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUnknownPlatform), dto.ErrCodeUnknownPlatform, "Unknown platform")
		return
	}

	mappings, err := h.mappings.FindByPlatform(c.Request.Context(), code.String())
	if err != nil {
		h.Internal(c, "Failed to list mappings")
		return
	}

	out := make([]gin.H, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, gin.H{
			"id":             m.ID,
			"platform":       m.Platform,
			"platform_sku":   m.PlatformSKU,
			"pos_product_id": m.POSProductID,
		})
	}
	h.Success(c, out)
}
