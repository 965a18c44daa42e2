package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/application/menusync"
	appordersync "github.com/orderbridge/backend/internal/application/ordersync"
	"github.com/orderbridge/backend/internal/domain/catalog"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// SyncHandler exposes the admin sync surface: menu sync triggers and status,
// failed listings, and manual retries.
type SyncHandler struct {
	BaseHandler
	menuSync *menusync.SyncService
	ingest   *appordersync.IngestService
}

// NewSyncHandler creates a SyncHandler
func NewSyncHandler(menuSync *menusync.SyncService, ingest *appordersync.IngestService) *SyncHandler {
	return &SyncHandler{
		menuSync: menuSync,
		ingest:   ingest,
	}
}

// ---------------------------------------------------------------------------
// Menu sync
// ---------------------------------------------------------------------------

// TriggerMenuSync handles POST /api/v1/menus/:id/sync/:platform
func (h *SyncHandler) TriggerMenuSync(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}
	menuID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid menu id")
		return
	}
	code := platform.Code(c.Param("platform"))
	if !code.IsValid() {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUnknownPlatform), dto.ErrCodeUnknownPlatform, "Unknown platform")
		return
	}

	link, err := h.menuSync.TriggerSync(c.Request.Context(), tenantID, menuID, code)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrMenuNotFound):
			h.NotFound(c, "Menu not found")
		case errors.Is(err, catalog.ErrSyncInFlight):
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeSyncInFlight), dto.ErrCodeSyncInFlight, "A sync is already in flight for this menu and platform")
		default:
			h.Internal(c, "Failed to queue menu sync")
		}
		return
	}

	h.Accepted(c, newLinkResponse(link))
}

// GetMenuSyncStatus handles GET /api/v1/menus/:id/sync/:platform
func (h *SyncHandler) GetMenuSyncStatus(c *gin.Context) {
	menuID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid menu id")
		return
	}
	code := platform.Code(c.Param("platform"))
	if !code.IsValid() {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeUnknownPlatform), dto.ErrCodeUnknownPlatform, "Unknown platform")
		return
	}

	link, history, err := h.menuSync.GetLink(c.Request.Context(), menuID, code)
	if err != nil {
		if errors.Is(err, catalog.ErrLinkNotFound) {
			h.NotFound(c, "Menu has never been synced to this platform")
			return
		}
		h.Internal(c, "Failed to load sync status")
		return
	}

	h.Success(c, gin.H{
		"link":    newLinkResponse(link),
		"history": newHistoryResponse(history),
	})
}

// ListFailedMenuSyncs handles GET /api/v1/menu-syncs/failed
func (h *SyncHandler) ListFailedMenuSyncs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	links, err := h.menuSync.ListFailed(c.Request.Context(), limit)
	if err != nil {
		h.Internal(c, "Failed to list failed syncs")
		return
	}
	out := make([]gin.H, 0, len(links))
	for i := range links {
		out = append(out, newLinkResponse(&links[i]))
	}
	h.Success(c, out)
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// GetOrder handles GET /api/v1/orders/:id
func (h *SyncHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order id")
		return
	}
	order, history, err := h.ingest.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, ordersync.ErrOrderNotFound) {
			h.NotFound(c, "Order not found")
			return
		}
		h.Internal(c, "Failed to load order")
		return
	}
	h.Success(c, gin.H{
		"order":   newOrderResponse(order),
		"history": newHistoryResponse(history),
	})
}

// ListFailedOrders handles GET /api/v1/orders/failed
func (h *SyncHandler) ListFailedOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := h.ingest.ListFailed(c.Request.Context(), limit)
	if err != nil {
		h.Internal(c, "Failed to list failed orders")
		return
	}
	out := make([]gin.H, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderResponse(&orders[i]))
	}
	h.Success(c, out)
}

// RetryOrder handles POST /api/v1/orders/:id/retry
func (h *SyncHandler) RetryOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid order id")
		return
	}
	order, err := h.ingest.RetryOrder(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, ordersync.ErrOrderNotFound):
			h.NotFound(c, "Order not found")
		case errors.Is(err, shared.ErrInvalidState):
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeInvalidState), dto.ErrCodeInvalidState, "Only failed orders can be retried")
		default:
			h.Internal(c, "Failed to queue retry")
		}
		return
	}
	h.Accepted(c, newOrderResponse(order))
}

// ---------------------------------------------------------------------------
// Response shapes
// ---------------------------------------------------------------------------

func newOrderResponse(o *ordersync.Order) gin.H {
	return gin.H{
		"id":                o.ID,
		"platform":          o.Platform,
		"platform_order_id": o.PlatformOrderID,
		"status":            o.Status,
		"attempt_count":     o.AttemptCount,
		"last_error":        o.LastError,
		"created_at":        o.CreatedAt,
		"updated_at":        o.UpdatedAt,
	}
}

func newLinkResponse(l *catalog.MenuPlatformLink) gin.H {
	return gin.H{
		"id":               l.ID,
		"menu_id":          l.MenuID,
		"platform":         l.Platform,
		"sync_status":      l.SyncStatus,
		"platform_menu_id": l.PlatformMenuID,
		"sync_error":       l.SyncError,
		"attempt_count":    l.AttemptCount,
		"last_synced_at":   l.LastSyncedAt,
		"published_at":     l.PublishedAt,
	}
}

func newHistoryResponse(entries []ordersync.SyncLog) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		out = append(out, gin.H{
			"stage":       e.Stage,
			"attempt":     e.Attempt,
			"outcome":     e.Outcome,
			"detail":      e.Detail,
			"duration_ms": e.DurationMS,
			"at":          e.CreatedAt,
		})
	}
	return out
}
