package ordersync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/shared"
)

var (
	// ErrPOSUnavailable signals a transient POS outage or timeout
	ErrPOSUnavailable = errors.New("ordersync: pos backend unavailable")
	// ErrPOSRejected signals the POS rejected the receipt as invalid
	ErrPOSRejected = errors.New("ordersync: pos rejected receipt")
	// ErrPOSAuthFailed signals the tenant's POS credentials were refused
	ErrPOSAuthFailed = errors.New("ordersync: pos authentication failed")
	// ErrMappingNotFound is returned when a platform SKU has no POS mapping
	ErrMappingNotFound = errors.New("ordersync: product mapping not found")
	// ErrSyncRecordNotFound is returned when no pos sync record matches
	ErrSyncRecordNotFound = errors.New("ordersync: pos sync record not found")
)

// POSRateLimitError signals POS throttling and carries the advertised retry
// delay, if any.
type POSRateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *POSRateLimitError) Error() string {
	return "ordersync: pos rate limited"
}

// ---------------------------------------------------------------------------
// Receipt
// ---------------------------------------------------------------------------

// Receipt is the POS-facing form of an order, produced by translating an
// ingested order through the tenant's product mappings.
type Receipt struct {
	// ExternalRef is the platform order id, used by the POS for dedupe
	ExternalRef string
	// Source is the originating platform code
	Source string
	// Lines are the mapped receipt lines
	Lines []ReceiptLine
	// CustomerName is the buyer's display name, if provided
	CustomerName string
	// CustomerPhone is the buyer's phone number, if provided
	CustomerPhone string
	// Note is the buyer's note to the merchant
	Note string
	// Total is the order total as reported by the platform
	Total decimal.Decimal
	// Currency is the ISO currency code
	Currency string
	// PlacedAt is when the order was placed on the platform
	PlacedAt time.Time
}

// ReceiptLine is one mapped line of a Receipt.
type ReceiptLine struct {
	// POSProductID is the tenant's POS product reference
	POSProductID string
	Name         string
	Quantity     int
	UnitPrice    decimal.Decimal
	Modifiers    []string
}

// ReceiptResult is returned by a successful POS submission.
type ReceiptResult struct {
	// POSReceiptID is the receipt id assigned by the POS
	POSReceiptID string
}

// POSGateway is the outbound port to the tenant's POS backend.
type POSGateway interface {
	// SubmitReceipt pushes a receipt to the POS using the tenant's
	// credentials. Submission is idempotent on ExternalRef.
	SubmitReceipt(ctx context.Context, tenantID uuid.UUID, receipt *Receipt) (*ReceiptResult, error)
}

// ---------------------------------------------------------------------------
// POS sync record
// ---------------------------------------------------------------------------

/// POSSyncRecord tracks the POS leg of one order, 1:1 with Order. Split from
// the order row so ingestion outcome and POS outcome evolve independently.
type POSSyncRecord struct {
	shared.TenantEntity
	OrderID      uuid.UUID
	POSReceiptID string
	SyncedAt     *time.Time
}

// NewPOSSyncRecord creates the record for an order entering stage two.
func NewPOSSyncRecord(tenantID, orderID uuid.UUID) *POSSyncRecord {
	return &POSSyncRecord{
		TenantEntity: shared.NewTenantEntity(tenantID),
		OrderID:      orderID,
	}
}

// MarkSynced stamps the POS receipt id and completion time.
func (r *POSSyncRecord) MarkSynced(posReceiptID string, now time.Time) {
	r.POSReceiptID = posReceiptID
	t := now
	r.SyncedAt = &t
	r.Touch()
}

// POSSyncRepository defines persistence for POS sync records.
type POSSyncRepository interface {
	// FindByOrderID finds the record for an order within the bound tenant
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*POSSyncRecord, error)

	// Save creates or updates a record
	Save(ctx context.Context, r *POSSyncRecord) error
}

// ---------------------------------------------------------------------------
// Product mapping
// ---------------------------------------------------------------------------

// ProductMapping links a platform SKU to the tenant's POS product. Unique on
// (tenant, platform, platform_sku).
type ProductMapping struct {
	shared.TenantEntity
	Platform     string
	PlatformSKU  string
	POSProductID string
}

// NewProductMapping creates a mapping row for a tenant.
func NewProductMapping(tenantID uuid.UUID, platformCode, platformSKU, posProductID string) *ProductMapping {
	return &ProductMapping{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Platform:     platformCode,
		PlatformSKU:  platformSKU,
		POSProductID: posProductID,
	}
}

// MappingRepository defines persistence for product mappings.
type MappingRepository interface {
	// FindByPlatformSKU finds the mapping for (platform, platform_sku)
	// within the bound tenant
	FindByPlatformSKU(ctx context.Context, platformCode, platformSKU string) (*ProductMapping, error)

	// FindByPlatform lists mappings for a platform within the bound tenant
	FindByPlatform(ctx context.Context, platformCode string) ([]ProductMapping, error)

	// Save creates or updates a mapping
	Save(ctx context.Context, m *ProductMapping) error
}
