// Package ordersync defines the order aggregate, its POS sync record, the
// append-only sync log, and the error classification that drives retry
// scheduling.
package ordersync

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
)

var (
	// ErrOrderNotFound is returned when no order matches the lookup
	ErrOrderNotFound = errors.New("ordersync: order not found")
	// ErrDuplicateOrder is returned when the natural key already exists
	ErrDuplicateOrder = errors.New("ordersync: order already ingested")
)

// Status is the bounded state machine on an Order:
// pending → processing → {synced | failed}; failed re-enters pending only
// via an explicit manual retry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSynced     Status = "synced"
	StatusFailed     Status = "failed"
)

// IsValid returns true if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSynced, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true for synced and failed
func (s Status) IsTerminal() bool {
	return s == StatusSynced || s == StatusFailed
}

// Order is one platform order captured by webhook ingestion. Unique on
// (tenant, platform, platform_order_id): duplicate webhook deliveries must
// not create duplicate orders. Never deleted in normal operation.
type Order struct {
	shared.TenantEntity
	Platform        platform.Code
	PlatformOrderID string
	// RawPayload is the webhook body as received, kept verbatim
	RawPayload   []byte
	Status       Status
	AttemptCount int
	LastError    string
}

// NewOrder creates a pending order from an ingested webhook payload.
func NewOrder(tenantID uuid.UUID, code platform.Code, platformOrderID string, rawPayload []byte) *Order {
	return &Order{
		TenantEntity:    shared.NewTenantEntity(tenantID),
		Platform:        code,
		PlatformOrderID: platformOrderID,
		RawPayload:      rawPayload,
		Status:          StatusPending,
	}
}

// MarkProcessing transitions pending → processing.
func (o *Order) MarkProcessing() error {
	if o.Status != StatusPending {
		return shared.ErrInvalidState
	}
	o.Status = StatusProcessing
	o.AttemptCount++
	o.Touch()
	return nil
}

// MarkSynced transitions processing → synced.
func (o *Order) MarkSynced() error {
	if o.Status != StatusProcessing {
		return shared.ErrInvalidState
	}
	o.Status = StatusSynced
	o.LastError = ""
	o.Touch()
	return nil
}

// MarkFailed records a terminal failure.
func (o *Order) MarkFailed(reason string) {
	o.Status = StatusFailed
	o.LastError = reason
	o.Touch()
}

// RequeueForRetry moves a transiently failed attempt back to pending so the
// next scheduled attempt can pick it up.
func (o *Order) RequeueForRetry(reason string) {
	o.Status = StatusPending
	o.LastError = reason
	o.Touch()
}

// ResetForManualRetry re-enters pending from failed. This is the only path
// out of failed and is driven by an explicit operator action.
func (o *Order) ResetForManualRetry() error {
	if o.Status != StatusFailed {
		return shared.ErrInvalidState
	}
	o.Status = StatusPending
	o.LastError = ""
	o.AttemptCount = 0
	o.Touch()
	return nil
}

// Repository defines persistence for orders.
type Repository interface {
	// FindByID finds an order by id
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByNaturalKey finds an order by (platform, platform_order_id)
	// within the bound tenant
	FindByNaturalKey(ctx context.Context, code platform.Code, platformOrderID string) (*Order, error)

	// FindFailed lists failed orders for the bound tenant
	FindFailed(ctx context.Context, limit int) ([]Order, error)

	// Create inserts a new order, returning ErrDuplicateOrder when the
	// natural key already exists
	Create(ctx context.Context, o *Order) error

	// Save updates an existing order
	Save(ctx context.Context, o *Order) error
}
