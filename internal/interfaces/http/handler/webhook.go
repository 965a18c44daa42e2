package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appordersync "github.com/orderbridge/backend/internal/application/ordersync"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// WebhookHandler receives platform order webhooks
type WebhookHandler struct {
	BaseHandler
	ingest      *appordersync.IngestService
	webhookLogs ordersync.WebhookLogRepository
}

// NewWebhookHandler creates a WebhookHandler
func NewWebhookHandler(ingest *appordersync.IngestService, webhookLogs ordersync.WebhookLogRepository) *WebhookHandler {
	return &WebhookHandler{
		ingest:      ingest,
		webhookLogs: webhookLogs,
	}
}

// ReceiveOrder handles POST /webhook/:platform/:tenant. Every delivery is
// recorded in the webhook log, raw payload included, accepted or not,
// before the response leaves.
func (h *WebhookHandler) ReceiveOrder(c *gin.Context) {
	ctx := c.Request.Context()

	code := platform.Code(c.Param("platform"))
	if !code.IsValid() {
		h.Error(c, http.StatusNotFound, dto.ErrCodeUnknownPlatform, "Unknown platform")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logDelivery(c, code, body, http.StatusRequestEntityTooLarge, false, "body read failed")
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Request body too large")
		return
	}

	order, err := h.ingest.AcceptWebhook(ctx, tenantID, code, c.Request.Header, body)
	if err != nil {
		status, errCode := webhookErrorStatus(err)
		h.logDelivery(c, code, body, status, false, err.Error())
		h.Error(c, status, errCode, "Webhook rejected")
		return
	}

	h.logDelivery(c, code, body, http.StatusOK, true, "")
	h.Success(c, gin.H{
		"order_id": order.ID,
		"status":   order.Status,
	})
}

func (h *WebhookHandler) logDelivery(c *gin.Context, code platform.Code, body []byte, status int, accepted bool, errText string) {
	ctx := c.Request.Context()
	tenantID, err := getTenantID(c)
	if err != nil {
		return
	}
	// The body is already bounded by the body-limit middleware, so storing
	// it whole is safe.
	entry := &ordersync.WebhookLog{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Platform:     code.String(),
		Kind:         "order",
		RemoteAddr:   c.ClientIP(),
		StatusCode:   status,
		Accepted:     accepted,
		Error:        errText,
		Payload:      body,
		BodySize:     len(body),
	}
	if appendErr := h.webhookLogs.Append(ctx, entry); appendErr != nil {
		logger.L(ctx).Warn("failed to append webhook log", zap.Error(appendErr))
	}
}

// webhookErrorStatus maps verification and parse errors to HTTP statuses.
// Signature failures are 401, platform misconfiguration 403, bad payloads
// 400; anything else is a 500 that tells the platform to redeliver.
func webhookErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, platform.ErrMissingSignature),
		errors.Is(err, platform.ErrBadSignature),
		errors.Is(err, platform.ErrBadAPIKey):
		return http.StatusUnauthorized, dto.ErrCodeUnauthorized
	case errors.Is(err, platform.ErrNotConfigured):
		return http.StatusForbidden, dto.ErrCodeForbidden
	case errors.Is(err, platform.ErrInvalidOrder):
		return http.StatusBadRequest, dto.ErrCodeBadRequest
	case errors.Is(err, platform.ErrUnknownPlatform):
		return http.StatusNotFound, dto.ErrCodeUnknownPlatform
	default:
		return http.StatusInternalServerError, dto.ErrCodeInternal
	}
}
