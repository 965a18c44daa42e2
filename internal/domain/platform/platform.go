// Package platform defines the port interface for third-party delivery
// platforms (Careem, Talabat).
//
// The interface follows the Ports & Adapters pattern: it is defined here in
// the domain layer, and concrete adapters live in the infrastructure layer.
// Dispatch by platform string is replaced by a registry of capability
// implementations keyed on Code.
package platform

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrUnknownPlatform  = errors.New("platform: unknown platform code")
	ErrNotConfigured    = errors.New("platform: credentials not configured for tenant")
	ErrMissingSignature = errors.New("platform: missing webhook signature")
	ErrBadSignature     = errors.New("platform: webhook signature mismatch")
	ErrBadAPIKey        = errors.New("platform: webhook api key mismatch")
	ErrUnavailable      = errors.New("platform: temporarily unavailable")
	ErrRequestFailed    = errors.New("platform: request failed")
	ErrInvalidResponse  = errors.New("platform: invalid response")
	ErrAuthFailed       = errors.New("platform: authentication failed")
	ErrCatalogRejected  = errors.New("platform: catalog rejected")
	ErrInvalidCallback  = errors.New("platform: invalid callback payload")
	ErrInvalidOrder     = errors.New("platform: invalid order payload")
)

// RateLimitError signals platform throttling and carries the advertised
// retry delay, if any.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return "platform: rate limited"
}

// ---------------------------------------------------------------------------
// Code
// ---------------------------------------------------------------------------

// Code identifies a delivery platform.
type Code string

const (
	// CodeCareem represents the Careem Now platform
	CodeCareem Code = "careem"
	// CodeTalabat represents the Talabat platform
	CodeTalabat Code = "talabat"
)

// IsValid returns true if the platform code is valid
func (c Code) IsValid() bool {
	switch c {
	case CodeCareem, CodeTalabat:
		return true
	default:
		return false
	}
}

// String returns the string representation of Code
func (c Code) String() string {
	return string(c)
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// IncomingOrder is the platform-neutral view of an order webhook payload.
type IncomingOrder struct {
	// PlatformOrderID is the order ID on the platform
	PlatformOrderID string
	// Items contains the order line items
	Items []IncomingOrderItem
	// CustomerName is the buyer's display name, if provided
	CustomerName string
	// CustomerPhone is the buyer's phone number, if provided
	CustomerPhone string
	// DeliveryAddress is the free-form delivery address, if provided
	DeliveryAddress string
	// Note is the buyer's note to the merchant
	Note string
	// TotalAmount is the order total as reported by the platform
	TotalAmount decimal.Decimal
	// Currency is the ISO currency code (default AED)
	Currency string
	// PlacedAt is when the order was placed on the platform
	PlacedAt time.Time
	// RawPayload is the original webhook body, kept verbatim for audit
	RawPayload []byte
}

// IncomingOrderItem is a line item of an IncomingOrder.
type IncomingOrderItem struct {
	// PlatformSKU is the platform's product reference, mapped to a POS
	// product through the tenant's product mappings
	PlatformSKU string
	// Name is the product name as shown on the platform
	Name string
	// Quantity is the ordered quantity
	Quantity int
	// UnitPrice is the unit price
	UnitPrice decimal.Decimal
	// Modifiers are the selected modifier names, if any
	Modifiers []string
}

// CatalogSnapshot is the platform-neutral catalog document built from a
// tenant's menu tree. Adapters transform it into their platform schema.
type CatalogSnapshot struct {
	MenuID    uuid.UUID
	MenuName  string
	Currency  string
	Items     []CatalogItem
	Locations []string
}

// CatalogItem is one sellable item in a CatalogSnapshot.
type CatalogItem struct {
	SKU            string
	Name           string
	Description    string
	Price          decimal.Decimal
	IsAvailable    bool
	ModifierGroups []CatalogModifierGroup
}

// CatalogModifierGroup groups selectable modifiers under an item.
type CatalogModifierGroup struct {
	Name      string
	MinSelect int
	MaxSelect int
	Modifiers []CatalogModifier
}

// CatalogModifier is one selectable option within a modifier group.
type CatalogModifier struct {
	Name  string
	Price decimal.Decimal
}

// SubmitResult is returned by a successful catalog submission. The platform
// validates asynchronously; CorrelationID matches the later callback to the
// originating sync record.
type SubmitResult struct {
	CorrelationID string
}

// CallbackStatus is the three-way outcome reported by a platform callback.
type CallbackStatus string

const (
	CallbackStatusSuccess    CallbackStatus = "success"
	CallbackStatusFailure    CallbackStatus = "failure"
	CallbackStatusInProgress CallbackStatus = "in_progress"
	// CallbackStatusUnknown maps unrecognized platform vocabulary; callers
	// treat it as still pending rather than erroring
	CallbackStatusUnknown CallbackStatus = "unknown"
)

// CallbackResult is the parsed form of an asynchronous validation callback.
type CallbackResult struct {
	// CorrelationID is the catalog/import id the callback refers to
	CorrelationID string
	// Status is the mapped three-way outcome
	Status CallbackStatus
	// Detail carries the platform's validation error text, if any
	Detail string
}

// ---------------------------------------------------------------------------
// DeliveryPlatform Port
// ---------------------------------------------------------------------------

// DeliveryPlatform is the capability set implemented per platform.
type DeliveryPlatform interface {
	// Code returns the platform code this adapter handles
	Code() Code

	// VerifyWebhook authenticates an inbound webhook request using the
	// tenant's stored credentials. It must run against the raw body and
	// fail closed before the body is interpreted any further.
	VerifyWebhook(ctx context.Context, tenantID uuid.UUID, header http.Header, body []byte) error

	// ParseOrder validates the payload shape and extracts the order
	ParseOrder(body []byte) (*IncomingOrder, error)

	// SubmitCatalog transforms the snapshot into the platform schema and
	// submits it to the platform's catalog API
	SubmitCatalog(ctx context.Context, tenantID uuid.UUID, snapshot *CatalogSnapshot) (*SubmitResult, error)

	// ParseCallback extracts the correlation id and status from an
	// asynchronous validation callback
	ParseCallback(body []byte) (*CallbackResult, error)
}

// Registry provides access to configured platform adapters.
type Registry interface {
	// Get returns the adapter for the given code
	Get(code Code) (DeliveryPlatform, error)

	// List returns all registered adapters
	List() []DeliveryPlatform
}
