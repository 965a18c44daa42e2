package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
)

// OrderModel is the persistence model for the Order domain entity. Fields
// are declared flat so the natural key unique index can span tenant_id.
type OrderModel struct {
	ID              uuid.UUID        `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_orders_natural_key,priority:1"`
	Platform        platform.Code    `gorm:"type:varchar(20);not null;uniqueIndex:idx_orders_natural_key,priority:2"`
	PlatformOrderID string           `gorm:"type:varchar(100);not null;uniqueIndex:idx_orders_natural_key,priority:3"`
	RawPayload      []byte           `gorm:"type:bytea;not null"`
	Status          ordersync.Status `gorm:"type:varchar(20);not null;default:'pending';index"`
	AttemptCount    int              `gorm:"not null;default:0"`
	LastError       string           `gorm:"type:text"`
	CreatedAt       time.Time        `gorm:"not null"`
	UpdatedAt       time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *ordersync.Order {
	return &ordersync.Order{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			TenantID:   m.TenantID,
		},
		Platform:        m.Platform,
		PlatformOrderID: m.PlatformOrderID,
		RawPayload:      m.RawPayload,
		Status:          m.Status,
		AttemptCount:    m.AttemptCount,
		LastError:       m.LastError,
	}
}

// FromDomain populates the persistence model from a domain Order
func (m *OrderModel) FromDomain(o *ordersync.Order) {
	m.ID = o.ID
	m.TenantID = o.TenantID
	m.Platform = o.Platform
	m.PlatformOrderID = o.PlatformOrderID
	m.RawPayload = o.RawPayload
	m.Status = o.Status
	m.AttemptCount = o.AttemptCount
	m.LastError = o.LastError
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt
}

// POSSyncRecordModel is the persistence model for POSSyncRecord, 1:1 with
// orders.
type POSSyncRecordModel struct {
	TenantModel
	OrderID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	POSReceiptID string     `gorm:"type:varchar(100)"`
	SyncedAt     *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (POSSyncRecordModel) TableName() string {
	return "pos_sync_records"
}

// ToDomain converts the persistence model to a domain POSSyncRecord
func (m *POSSyncRecordModel) ToDomain() *ordersync.POSSyncRecord {
	return &ordersync.POSSyncRecord{
		TenantEntity: m.ToDomainTenantEntity(),
		OrderID:      m.OrderID,
		POSReceiptID: m.POSReceiptID,
		SyncedAt:     m.SyncedAt,
	}
}

// FromDomain populates the persistence model from a domain POSSyncRecord
func (m *POSSyncRecordModel) FromDomain(r *ordersync.POSSyncRecord) {
	m.FromDomainTenantEntity(r.TenantEntity)
	m.OrderID = r.OrderID
	m.POSReceiptID = r.POSReceiptID
	m.SyncedAt = r.SyncedAt
}

// ProductMappingModel is the persistence model for ProductMapping. Unique on
// (tenant_id, platform, platform_sku).
type ProductMappingModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_product_mappings_sku,priority:1"`
	Platform     string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_product_mappings_sku,priority:2"`
	PlatformSKU  string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_mappings_sku,priority:3"`
	POSProductID string    `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductMappingModel) TableName() string {
	return "product_mappings"
}

// ToDomain converts the persistence model to a domain ProductMapping
func (m *ProductMappingModel) ToDomain() *ordersync.ProductMapping {
	return &ordersync.ProductMapping{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			TenantID:   m.TenantID,
		},
		Platform:     m.Platform,
		PlatformSKU:  m.PlatformSKU,
		POSProductID: m.POSProductID,
	}
}

// FromDomain populates the persistence model from a domain ProductMapping
func (m *ProductMappingModel) FromDomain(pm *ordersync.ProductMapping) {
	m.ID = pm.ID
	m.TenantID = pm.TenantID
	m.Platform = pm.Platform
	m.PlatformSKU = pm.PlatformSKU
	m.POSProductID = pm.POSProductID
	m.CreatedAt = pm.CreatedAt
	m.UpdatedAt = pm.UpdatedAt
}
