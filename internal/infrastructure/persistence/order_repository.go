package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/models"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/tenant"
)

// GormOrderRepository implements ordersync.Repository using GORM. All reads
// and writes go through the tenant-scoped DB.
type GormOrderRepository struct {
	db *tenant.TenantDB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *tenant.TenantDB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID finds an order by id
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*ordersync.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ordersync.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNaturalKey finds an order by (platform, platform_order_id) within
// the bound tenant
func (r *GormOrderRepository) FindByNaturalKey(ctx context.Context, code platform.Code, platformOrderID string) (*ordersync.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND platform_order_id = ?", code, platformOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ordersync.ErrOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindFailed lists failed orders for the bound tenant
func (r *GormOrderRepository) FindFailed(ctx context.Context, limit int) ([]ordersync.Order, error) {
	var orderModels []models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", ordersync.StatusFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]ordersync.Order, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// Create inserts a new order. A natural key collision maps to
// ErrDuplicateOrder so ingestion can treat redelivery as success.
func (r *GormOrderRepository) Create(ctx context.Context, o *ordersync.Order) error {
	var model models.OrderModel
	model.FromDomain(o)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ordersync.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

// Save updates an existing order
func (r *GormOrderRepository) Save(ctx context.Context, o *ordersync.Order) error {
	var model models.OrderModel
	model.FromDomain(o)
	return r.db.WithContext(ctx).Save(&model).Error
}

var _ ordersync.Repository = (*GormOrderRepository)(nil)

// GormPOSSyncRepository implements ordersync.POSSyncRepository using GORM
type GormPOSSyncRepository struct {
	db *tenant.TenantDB
}

// NewGormPOSSyncRepository creates a new GormPOSSyncRepository
func NewGormPOSSyncRepository(db *tenant.TenantDB) *GormPOSSyncRepository {
	return &GormPOSSyncRepository{db: db}
}

// FindByOrderID finds the record for an order within the bound tenant
func (r *GormPOSSyncRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*ordersync.POSSyncRecord, error) {
	var model models.POSSyncRecordModel
	if err := r.db.WithContext(ctx).First(&model, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ordersync.ErrSyncRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a record
func (r *GormPOSSyncRepository) Save(ctx context.Context, rec *ordersync.POSSyncRecord) error {
	var model models.POSSyncRecordModel
	model.FromDomain(rec)
	return r.db.WithContext(ctx).Save(&model).Error
}

var _ ordersync.POSSyncRepository = (*GormPOSSyncRepository)(nil)

// GormMappingRepository implements ordersync.MappingRepository using GORM
type GormMappingRepository struct {
	db *tenant.TenantDB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *tenant.TenantDB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// FindByPlatformSKU finds the mapping for (platform, platform_sku) within
// the bound tenant
func (r *GormMappingRepository) FindByPlatformSKU(ctx context.Context, platformCode, platformSKU string) (*ordersync.ProductMapping, error) {
	var model models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND platform_sku = ?", platformCode, platformSKU).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ordersync.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPlatform lists mappings for a platform within the bound tenant
func (r *GormMappingRepository) FindByPlatform(ctx context.Context, platformCode string) ([]ordersync.ProductMapping, error) {
	var mappingModels []models.ProductMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform = ?", platformCode).
		Order("platform_sku ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]ordersync.ProductMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// Save creates or updates a mapping
func (r *GormMappingRepository) Save(ctx context.Context, m *ordersync.ProductMapping) error {
	var model models.ProductMappingModel
	model.FromDomain(m)
	return r.db.WithContext(ctx).Save(&model).Error
}

var _ ordersync.MappingRepository = (*GormMappingRepository)(nil)
