package platform

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/credential"
	domainplatform "github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/config"
)

const (
	// maxResponseSize limits response bodies to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024 // 10MB

	careemSignatureHeader = "X-Careem-Signature"
	careemClientIDHeader  = "X-Careem-Client-Id"
	careemSignaturePrefix = "sha256="
)

// CareemAdapter implements the DeliveryPlatform port for Careem Now.
// Webhooks authenticate with an HMAC-SHA256 body signature; outbound calls
// use OAuth client credentials with tokens cached per tenant.
type CareemAdapter struct {
	config     *config.CareemConfig
	creds      credential.Store
	tokens     TokenCache
	httpClient *http.Client
}

// NewCareemAdapter creates a new Careem adapter
func NewCareemAdapter(cfg *config.CareemConfig, creds credential.Store, tokens TokenCache) *CareemAdapter {
	return &CareemAdapter{
		config: cfg,
		creds:  creds,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Code returns the platform code this adapter handles
func (a *CareemAdapter) Code() domainplatform.Code {
	return domainplatform.CodeCareem
}

// ---------------------------------------------------------------------------
// Webhook verification
// ---------------------------------------------------------------------------

// VerifyWebhook checks the client id header and the HMAC-SHA256 signature of
// the raw body against the tenant's stored webhook secret. Comparison is
// constant-time and any missing piece fails closed.
func (a *CareemAdapter) VerifyWebhook(ctx context.Context, tenantID uuid.UUID, header http.Header, body []byte) error {
	clientID := header.Get(careemClientIDHeader)
	signature := header.Get(careemSignatureHeader)
	if clientID == "" || signature == "" {
		return domainplatform.ErrMissingSignature
	}
	if !strings.HasPrefix(signature, careemSignaturePrefix) {
		return domainplatform.ErrBadSignature
	}

	wantClientID, err := a.creds.Get(ctx, tenantID, credential.ServiceCareem, credential.TypeClientID)
	if err != nil {
		return fmt.Errorf("%w: %v", domainplatform.ErrNotConfigured, err)
	}
	secret, err := a.creds.Get(ctx, tenantID, credential.ServiceCareem, credential.TypeWebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", domainplatform.ErrNotConfigured, err)
	}

	if !hmac.Equal([]byte(clientID), []byte(wantClientID)) {
		return domainplatform.ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	got := strings.TrimPrefix(signature, careemSignaturePrefix)
	if !hmac.Equal([]byte(strings.ToLower(got)), []byte(want)) {
		return domainplatform.ErrBadSignature
	}
	return nil
}

// ---------------------------------------------------------------------------
// Order parsing
// ---------------------------------------------------------------------------

// ParseOrder validates the payload shape and extracts the order
func (a *CareemAdapter) ParseOrder(body []byte) (*domainplatform.IncomingOrder, error) {
	var payload careemOrderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrInvalidOrder, err)
	}
	if payload.ID == "" || len(payload.Items) == 0 {
		return nil, domainplatform.ErrInvalidOrder
	}

	total, err := decimal.NewFromString(payload.Total)
	if err != nil {
		return nil, fmt.Errorf("%w: bad total %q", domainplatform.ErrInvalidOrder, payload.Total)
	}

	currency := payload.Currency
	if currency == "" {
		currency = "AED"
	}

	order := &domainplatform.IncomingOrder{
		PlatformOrderID: payload.ID,
		CustomerName:    payload.Customer.Name,
		CustomerPhone:   payload.Customer.Phone,
		DeliveryAddress: payload.Delivery.Address,
		Note:            payload.Note,
		TotalAmount:     total,
		Currency:        currency,
		PlacedAt:        payload.PlacedAt,
		RawPayload:      body,
	}

	for _, item := range payload.Items {
		if item.SKU == "" || item.Quantity <= 0 {
			return nil, domainplatform.ErrInvalidOrder
		}
		unitPrice, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: bad unit price %q", domainplatform.ErrInvalidOrder, item.UnitPrice)
		}
		order.Items = append(order.Items, domainplatform.IncomingOrderItem{
			PlatformSKU: item.SKU,
			Name:        item.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			Modifiers:   item.Modifiers,
		})
	}
	return order, nil
}

// ---------------------------------------------------------------------------
// Catalog submission
// ---------------------------------------------------------------------------

// SubmitCatalog transforms the snapshot into the Careem catalog schema and
// submits it. Careem validates asynchronously: the returned catalog id is
// the correlation id matched against the later callback.
func (a *CareemAdapter) SubmitCatalog(ctx context.Context, tenantID uuid.UUID, snapshot *domainplatform.CatalogSnapshot) (*domainplatform.SubmitResult, error) {
	token, err := a.accessToken(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	request := careemCatalogRequest{
		Name:      snapshot.MenuName,
		Currency:  snapshot.Currency,
		Locations: snapshot.Locations,
	}
	for _, item := range snapshot.Items {
		catalogItem := careemCatalogItem{
			SKU:         item.SKU,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price.StringFixed(2),
			Available:   item.IsAvailable,
		}
		for _, group := range item.ModifierGroups {
			catalogGroup := careemCatalogGroup{
				Name:      group.Name,
				MinSelect: group.MinSelect,
				MaxSelect: group.MaxSelect,
			}
			for _, mod := range group.Modifiers {
				catalogGroup.Options = append(catalogGroup.Options, careemCatalogModifier{
					Name:  mod.Name,
					Price: mod.Price.StringFixed(2),
				})
			}
			catalogItem.ModifierGroups = append(catalogItem.ModifierGroups, catalogGroup)
		}
		request.Items = append(request.Items, catalogItem)
	}

	bodyBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("careem: failed to marshal catalog: %w", err)
	}

	respBody, status, retryAfter, err := a.doRequest(ctx, http.MethodPost,
		a.config.APIBaseURL+"/v1/catalogs", token, bodyBytes)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Token may be stale; drop it so the next attempt re-authenticates
		_ = a.tokens.Delete(ctx, a.Code().String(), tenantID)
		return nil, domainplatform.ErrAuthFailed
	case status == http.StatusTooManyRequests:
		return nil, &domainplatform.RateLimitError{RetryAfter: retryAfter}
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", domainplatform.ErrCatalogRejected, strings.TrimSpace(string(respBody)))
	case status >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", domainplatform.ErrUnavailable, status)
	case status >= 400:
		return nil, fmt.Errorf("%w: HTTP %d", domainplatform.ErrRequestFailed, status)
	}

	var resp careemCatalogResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrInvalidResponse, err)
	}
	if resp.CatalogID == "" {
		return nil, fmt.Errorf("%w: missing catalog_id", domainplatform.ErrInvalidResponse)
	}
	return &domainplatform.SubmitResult{CorrelationID: resp.CatalogID}, nil
}

// ---------------------------------------------------------------------------
// Callback parsing
// ---------------------------------------------------------------------------

// ParseCallback extracts the correlation id and status from an asynchronous
// validation callback
func (a *CareemAdapter) ParseCallback(body []byte) (*domainplatform.CallbackResult, error) {
	var payload careemCallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrInvalidCallback, err)
	}
	if payload.CatalogID == "" {
		return nil, domainplatform.ErrInvalidCallback
	}

	result := &domainplatform.CallbackResult{
		CorrelationID: payload.CatalogID,
		Detail:        strings.Join(payload.Errors, "; "),
	}
	switch strings.ToLower(payload.Status) {
	case "success", "approved", "published":
		result.Status = domainplatform.CallbackStatusSuccess
	case "failed", "rejected", "error":
		result.Status = domainplatform.CallbackStatusFailure
	case "processing", "pending", "in_progress":
		result.Status = domainplatform.CallbackStatusInProgress
	default:
		result.Status = domainplatform.CallbackStatusUnknown
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// accessToken returns a cached OAuth token or fetches a fresh one with the
// tenant's client credentials.
func (a *CareemAdapter) accessToken(ctx context.Context, tenantID uuid.UUID) (string, error) {
	if token, err := a.tokens.Get(ctx, a.Code().String(), tenantID); err == nil && token != "" {
		return token, nil
	}

	clientID, err := a.creds.Get(ctx, tenantID, credential.ServiceCareem, credential.TypeClientID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainplatform.ErrNotConfigured, err)
	}
	clientSecret, err := a.creds.Get(ctx, tenantID, credential.ServiceCareem, credential.TypeClientSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainplatform.ErrNotConfigured, err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("careem: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainplatform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("careem: failed to read token response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", domainplatform.ErrAuthFailed
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: token endpoint HTTP %d", domainplatform.ErrUnavailable, resp.StatusCode)
	}

	var tokenResp careemTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("%w: %v", domainplatform.ErrInvalidResponse, err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", domainplatform.ErrInvalidResponse)
	}

	ttl := time.Duration(tokenResp.ExpiresIn) * time.Second
	if ttl > time.Minute {
		// Refresh slightly early so a token never expires mid-request
		ttl -= 30 * time.Second
	}
	if ttl > 0 {
		_ = a.tokens.Set(ctx, a.Code().String(), tenantID, tokenResp.AccessToken, ttl)
	}
	return tokenResp.AccessToken, nil
}

// doRequest performs an authenticated JSON request and returns body, status
// and any advertised Retry-After delay.
func (a *CareemAdapter) doRequest(ctx context.Context, method, endpoint, token string, body []byte) ([]byte, int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("careem: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", domainplatform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("careem: failed to read response: %w", err)
	}
	return respBody, resp.StatusCode, parseRetryAfter(resp.Header), nil
}

// parseRetryAfter reads a Retry-After header in seconds form
func parseRetryAfter(header http.Header) time.Duration {
	raw := header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// Ensure CareemAdapter implements the DeliveryPlatform interface
var _ domainplatform.DeliveryPlatform = (*CareemAdapter)(nil)
