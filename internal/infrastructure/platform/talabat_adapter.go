package platform

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/credential"
	domainplatform "github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/config"
)

const talabatAPIKeyHeader = "X-API-Key"

// TalabatAdapter implements the DeliveryPlatform port for Talabat.
// Webhooks authenticate with the tenant's static API key; outbound calls use
// the same key, no token exchange involved.
type TalabatAdapter struct {
	config     *config.TalabatConfig
	creds      credential.Store
	httpClient *http.Client
}

// NewTalabatAdapter creates a new Talabat adapter
func NewTalabatAdapter(cfg *config.TalabatConfig, creds credential.Store) *TalabatAdapter {
	return &TalabatAdapter{
		config: cfg,
		creds:  creds,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}
}

// Code returns the platform code this adapter handles
func (a *TalabatAdapter) Code() domainplatform.Code {
	return domainplatform.CodeTalabat
}

// ---------------------------------------------------------------------------
// Webhook verification
// ---------------------------------------------------------------------------

// VerifyWebhook compares the presented API key against the tenant's stored
// one. The key arrives either as a bearer token or in the X-API-Key header.
func (a *TalabatAdapter) VerifyWebhook(ctx context.Context, tenantID uuid.UUID, header http.Header, _ []byte) error {
	presented := header.Get(talabatAPIKeyHeader)
	if presented == "" {
		authz := header.Get("Authorization")
		if strings.HasPrefix(authz, "Bearer ") {
			presented = strings.TrimPrefix(authz, "Bearer ")
		}
	}
	if presented == "" {
		return domainplatform.ErrMissingSignature
	}

	want, err := a.creds.Get(ctx, tenantID, credential.ServiceTalabat, credential.TypeAPIKey)
	if err != nil {
		return fmt.Errorf("%w: %v", domainplatform.ErrNotConfigured, err)
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(want)) != 1 {
		return domainplatform.ErrBadAPIKey
	}
	return nil
}

// ---------------------------------------------------------------------------
// Order parsing
// ---------------------------------------------------------------------------

// ParseOrder validates the payload shape and extracts the order. Talabat
// sends quantities and prices as strings.
func (a *TalabatAdapter) ParseOrder(body []byte) (*domainplatform.IncomingOrder, error) {
	var payload talabatOrderPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrInvalidOrder, err)
	}

	orderID := payload.Token
	if orderID == "" {
		orderID = payload.Code
	}
	if orderID == "" || len(payload.Products) == 0 {
		return nil, domainplatform.ErrInvalidOrder
	}

	total, err := decimal.NewFromString(payload.Price.GrandTotal)
	if err != nil {
		return nil, fmt.Errorf("%w: bad grand total %q", domainplatform.ErrInvalidOrder, payload.Price.GrandTotal)
	}

	currency := payload.Price.Currency
	if currency == "" {
		currency = "AED"
	}

	name := strings.TrimSpace(payload.Customer.FirstName + " " + payload.Customer.LastName)
	address := strings.TrimSpace(strings.Join(nonEmpty(
		payload.Delivery.Address.Street,
		payload.Delivery.Address.Number,
		payload.Delivery.Address.FlatName,
		payload.Delivery.Address.City,
	), ", "))

	order := &domainplatform.IncomingOrder{
		PlatformOrderID: orderID,
		CustomerName:    name,
		CustomerPhone:   payload.Customer.MobilePhone,
		DeliveryAddress: address,
		Note:            payload.Comments.CustomerComment,
		TotalAmount:     total,
		Currency:        currency,
		PlacedAt:        payload.CreatedAt,
		RawPayload:      body,
	}

	for _, product := range payload.Products {
		if product.RemoteCode == "" {
			return nil, domainplatform.ErrInvalidOrder
		}
		quantity, err := strconv.Atoi(product.Quantity)
		if err != nil || quantity <= 0 {
			return nil, fmt.Errorf("%w: bad quantity %q", domainplatform.ErrInvalidOrder, product.Quantity)
		}
		unitPrice, err := decimal.NewFromString(product.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: bad unit price %q", domainplatform.ErrInvalidOrder, product.UnitPrice)
		}
		item := domainplatform.IncomingOrderItem{
			PlatformSKU: product.RemoteCode,
			Name:        product.Name,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		}
		for _, topping := range product.SelectedToppings {
			item.Modifiers = append(item.Modifiers, topping.Name)
		}
		order.Items = append(order.Items, item)
	}
	return order, nil
}

// ---------------------------------------------------------------------------
// Catalog submission
// ---------------------------------------------------------------------------

// SubmitCatalog transforms the snapshot into the Talabat catalog schema and
// starts an import. The returned import id is the correlation id matched
// against the later callback.
func (a *TalabatAdapter) SubmitCatalog(ctx context.Context, tenantID uuid.UUID, snapshot *domainplatform.CatalogSnapshot) (*domainplatform.SubmitResult, error) {
	apiKey, err := a.creds.Get(ctx, tenantID, credential.ServiceTalabat, credential.TypeAPIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrNotConfigured, err)
	}

	request := talabatCatalogRequest{
		CatalogName: snapshot.MenuName,
		Currency:    snapshot.Currency,
		Vendors:     snapshot.Locations,
	}
	for _, item := range snapshot.Items {
		catalogItem := talabatCatalogItem{
			RemoteCode:  item.SKU,
			Title:       item.Name,
			Description: item.Description,
			Price:       item.Price.StringFixed(2),
			Active:      item.IsAvailable,
		}
		for _, group := range item.ModifierGroups {
			toppingGroup := talabatToppingGroup{
				Title:    group.Name,
				MinCount: group.MinSelect,
				MaxCount: group.MaxSelect,
			}
			for _, mod := range group.Modifiers {
				toppingGroup.Options = append(toppingGroup.Options, talabatToppingOption{
					Title: mod.Name,
					Price: mod.Price.StringFixed(2),
				})
			}
			catalogItem.Toppings = append(catalogItem.Toppings, toppingGroup)
		}
		request.Items = append(request.Items, catalogItem)
	}

	bodyBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("talabat: failed to marshal catalog: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.APIBaseURL+"/v2/catalog", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("talabat: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(talabatAPIKeyHeader, apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("talabat: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domainplatform.ErrAuthFailed
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &domainplatform.RateLimitError{RetryAfter: parseRetryAfter(resp.Header)}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: %s", domainplatform.ErrCatalogRejected, strings.TrimSpace(string(respBody)))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", domainplatform.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: HTTP %d", domainplatform.ErrRequestFailed, resp.StatusCode)
	}

	var catalogResp talabatCatalogResponse
	if err := json.Unmarshal(respBody, &catalogResp); err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrInvalidResponse, err)
	}
	if catalogResp.ImportID == "" {
		return nil, fmt.Errorf("%w: missing importId", domainplatform.ErrInvalidResponse)
	}
	return &domainplatform.SubmitResult{CorrelationID: catalogResp.ImportID}, nil
}

// ---------------------------------------------------------------------------
// Callback parsing
// ---------------------------------------------------------------------------

// ParseCallback extracts the correlation id and status from an import
// result callback
func (a *TalabatAdapter) ParseCallback(body []byte) (*domainplatform.CallbackResult, error) {
	var payload talabatCallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", domainplatform.ErrInvalidCallback, err)
	}
	if payload.ImportID == "" {
		return nil, domainplatform.ErrInvalidCallback
	}

	result := &domainplatform.CallbackResult{
		CorrelationID: payload.ImportID,
		Detail:        payload.Details,
	}
	switch strings.ToUpper(payload.Status) {
	case "SUCCESS", "DONE", "COMPLETED":
		result.Status = domainplatform.CallbackStatusSuccess
	case "FAILURE", "FAILED", "ERROR":
		result.Status = domainplatform.CallbackStatusFailure
	case "IN_PROGRESS", "PROCESSING", "PENDING":
		result.Status = domainplatform.CallbackStatusInProgress
	default:
		result.Status = domainplatform.CallbackStatusUnknown
	}
	return result, nil
}

// nonEmpty filters out empty strings
func nonEmpty(parts ...string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ensure TalabatAdapter implements the DeliveryPlatform interface
var _ domainplatform.DeliveryPlatform = (*TalabatAdapter)(nil)
