// Package pos contains the HTTP client for the point-of-sale backend.
package pos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/orderbridge/backend/internal/domain/credential"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/infrastructure/config"
)

const maxResponseSize = 10 * 1024 * 1024

// Client submits receipts to the POS backend. Requests are rate limited per
// tenant; a submit blocks until the tenant's bucket has a token or the
// context expires.
type Client struct {
	config     *config.POSConfig
	creds      credential.Store
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

// NewClient creates a POS client
func NewClient(cfg *config.POSConfig, creds credential.Store) *Client {
	return &Client{
		config: cfg,
		creds:  creds,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiters: make(map[uuid.UUID]*rate.Limiter),
	}
}

func (c *Client) limiterFor(tenantID uuid.UUID) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(c.config.RatePerSecond), c.config.Burst)
		c.limiters[tenantID] = limiter
	}
	return limiter
}

type receiptRequest struct {
	ExternalRef   string            `json:"external_ref"`
	Source        string            `json:"source"`
	AccountID     string            `json:"account_id"`
	CustomerName  string            `json:"customer_name,omitempty"`
	CustomerPhone string            `json:"customer_phone,omitempty"`
	Note          string            `json:"note,omitempty"`
	Total         string            `json:"total"`
	Currency      string            `json:"currency"`
	PlacedAt      time.Time         `json:"placed_at"`
	Lines         []receiptLineItem `json:"lines"`
}

type receiptLineItem struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Quantity  int      `json:"quantity"`
	UnitPrice string   `json:"unit_price"`
	Modifiers []string `json:"modifiers,omitempty"`
}

type receiptResponse struct {
	ReceiptID string `json:"receipt_id"`
	Message   string `json:"message"`
}

// SubmitReceipt posts a receipt to the POS backend. The backend deduplicates
// on external_ref, so resubmitting the same receipt returns the existing
// receipt id instead of creating a second one.
func (c *Client) SubmitReceipt(ctx context.Context, tenantID uuid.UUID, receipt *ordersync.Receipt) (*ordersync.ReceiptResult, error) {
	apiKey, err := c.creds.Get(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ordersync.ErrPOSAuthFailed, err)
	}
	accountID, err := c.creds.Get(ctx, tenantID, credential.ServicePOS, credential.TypeAccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ordersync.ErrPOSAuthFailed, err)
	}

	if err := c.limiterFor(tenantID).Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ordersync.ErrPOSUnavailable, err)
	}

	request := receiptRequest{
		ExternalRef:   receipt.ExternalRef,
		Source:        receipt.Source,
		AccountID:     accountID,
		CustomerName:  receipt.CustomerName,
		CustomerPhone: receipt.CustomerPhone,
		Note:          receipt.Note,
		Total:         receipt.Total.StringFixed(2),
		Currency:      receipt.Currency,
		PlacedAt:      receipt.PlacedAt,
	}
	for _, line := range receipt.Lines {
		request.Lines = append(request.Lines, receiptLineItem{
			ProductID: line.POSProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Modifiers: line.Modifiers,
		})
	}

	bodyBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("pos: failed to marshal receipt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/v1/receipts", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("pos: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Idempotency-Key", receipt.ExternalRef)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ordersync.ErrPOSUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("pos: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ordersync.ErrPOSAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ordersync.POSRateLimitError{RetryAfter: retryAfter(resp.Header)}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", ordersync.ErrPOSRejected, strings.TrimSpace(string(respBody)))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ordersync.ErrPOSUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode != http.StatusConflict:
		return nil, fmt.Errorf("%w: HTTP %d", ordersync.ErrPOSRejected, resp.StatusCode)
	}

	// 409 means the external_ref was already submitted; the body carries the
	// existing receipt id.
	var receiptResp receiptResponse
	if err := json.Unmarshal(respBody, &receiptResp); err != nil {
		return nil, fmt.Errorf("%w: bad response body: %v", ordersync.ErrPOSUnavailable, err)
	}
	if receiptResp.ReceiptID == "" {
		return nil, fmt.Errorf("%w: missing receipt_id", ordersync.ErrPOSUnavailable)
	}
	return &ordersync.ReceiptResult{POSReceiptID: receiptResp.ReceiptID}, nil
}

// retryAfter parses the Retry-After header, seconds form only
func retryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

var _ ordersync.POSGateway = (*Client)(nil)
