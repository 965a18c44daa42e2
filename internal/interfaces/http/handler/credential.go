package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/orderbridge/backend/internal/domain/credential"
	"github.com/orderbridge/backend/internal/interfaces/http/middleware"
)

// CredentialHandler manages tenant platform and POS credentials. Secret
// values are write-only: they are never echoed back in any response.
type CredentialHandler struct {
	BaseHandler
	store credential.Store
}

// NewCredentialHandler creates a CredentialHandler
func NewCredentialHandler(store credential.Store) *CredentialHandler {
	return &CredentialHandler{store: store}
}

type putCredentialRequest struct {
	Service string `json:"service" binding:"required,oneof=careem talabat pos"`
	Type    string `json:"type" binding:"required,oneof=webhook_secret api_key client_id client_secret account_id"`
	Value   string `json:"value" binding:"required"`
}

// PutCredential handles PUT /api/v1/credentials. Storing a credential
// rotates out the previous active one for the same (service, type).
func (h *CredentialHandler) PutCredential(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req putCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	err = h.store.Put(c.Request.Context(), tenantID,
		credential.Service(req.Service), credential.Type(req.Type), req.Value)
	if err != nil {
		h.Internal(c, "Failed to store credential")
		return
	}

	h.Success(c, gin.H{
		"service": req.Service,
		"type":    req.Type,
		"active":  true,
	})
}

type deleteCredentialRequest struct {
	Service string `json:"service" binding:"required,oneof=careem talabat pos"`
	Type    string `json:"type" binding:"required,oneof=webhook_secret api_key client_id client_secret account_id"`
}

// DeactivateCredential handles DELETE /api/v1/credentials
func (h *CredentialHandler) DeactivateCredential(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant not resolved")
		return
	}

	var req deleteCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	err = h.store.Deactivate(c.Request.Context(), tenantID,
		credential.Service(req.Service), credential.Type(req.Type))
	if err != nil {
		if errors.Is(err, credential.ErrCredentialNotFound) {
			h.NotFound(c, "No active credential to deactivate")
			return
		}
		h.Internal(c, "Failed to deactivate credential")
		return
	}

	h.NoContent(c)
}
