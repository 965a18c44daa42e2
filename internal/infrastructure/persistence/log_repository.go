package persistence

import (
	"context"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/models"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/tenant"
)

// GormSyncLogRepository implements ordersync.SyncLogRepository using GORM.
// The table is append-only; there is no update or delete path.
type GormSyncLogRepository struct {
	db *tenant.TenantDB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *tenant.TenantDB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

// Append inserts an attempt record
func (r *GormSyncLogRepository) Append(ctx context.Context, entry *ordersync.SyncLog) error {
	var model models.SyncLogModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindBySubject lists attempts for a subject within the bound tenant,
// newest first
func (r *GormSyncLogRepository) FindBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]ordersync.SyncLog, error) {
	var logModels []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]ordersync.SyncLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, nil
}

var _ ordersync.SyncLogRepository = (*GormSyncLogRepository)(nil)

// GormWebhookLogRepository implements ordersync.WebhookLogRepository using
// GORM. Append-only.
type GormWebhookLogRepository struct {
	db *tenant.TenantDB
}

// NewGormWebhookLogRepository creates a new GormWebhookLogRepository
func NewGormWebhookLogRepository(db *tenant.TenantDB) *GormWebhookLogRepository {
	return &GormWebhookLogRepository{db: db}
}

// Append inserts a delivery record
func (r *GormWebhookLogRepository) Append(ctx context.Context, entry *ordersync.WebhookLog) error {
	var model models.WebhookLogModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// FindRecent lists recent deliveries for the bound tenant, newest first
func (r *GormWebhookLogRepository) FindRecent(ctx context.Context, limit int) ([]ordersync.WebhookLog, error) {
	var logModels []models.WebhookLogModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, err
	}

	logs := make([]ordersync.WebhookLog, len(logModels))
	for i, model := range logModels {
		logs[i] = *model.ToDomain()
	}
	return logs, nil
}

var _ ordersync.WebhookLogRepository = (*GormWebhookLogRepository)(nil)
