package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/application/callback"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// CallbackHandler receives asynchronous catalog validation callbacks
type CallbackHandler struct {
	BaseHandler
	reconciler *callback.Reconciler
}

// NewCallbackHandler creates a CallbackHandler
func NewCallbackHandler(reconciler *callback.Reconciler) *CallbackHandler {
	return &CallbackHandler{reconciler: reconciler}
}

// ReceiveCatalogResult handles POST /callbacks/:platform. A delivery whose
// correlation id matches no sync record answers 404 without mutating
// anything; the callback may be stale or for data already cleaned up, and
// the miss is non-fatal on our side.
func (h *CallbackHandler) ReceiveCatalogResult(c *gin.Context) {
	ctx := c.Request.Context()

	code := platform.Code(c.Param("platform"))
	if !code.IsValid() {
		h.Error(c, http.StatusNotFound, dto.ErrCodeUnknownPlatform, "Unknown platform")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Request body too large")
		return
	}

	if err := h.reconciler.HandleCallback(ctx, code, body); err != nil {
		switch {
		case errors.Is(err, callback.ErrUnmatchedCallback):
			h.NotFound(c, "No sync operation matches this callback")
		case errors.Is(err, platform.ErrInvalidCallback):
			h.BadRequest(c, "Invalid callback payload")
		default:
			logger.L(ctx).Error("callback reconciliation failed",
				zap.String("platform", code.String()),
				zap.Error(err),
			)
			h.Internal(c, "Callback processing failed")
		}
		return
	}

	h.Success(c, gin.H{"matched": true})
}
