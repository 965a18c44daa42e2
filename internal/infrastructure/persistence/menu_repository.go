package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/domain/catalog"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/models"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/tenant"
)

// GormMenuRepository implements catalog.MenuRepository using GORM
type GormMenuRepository struct {
	db *tenant.TenantDB
}

// NewGormMenuRepository creates a new GormMenuRepository
func NewGormMenuRepository(db *tenant.TenantDB) *GormMenuRepository {
	return &GormMenuRepository{db: db}
}

// FindByID finds a menu without its subtree
func (r *GormMenuRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Menu, error) {
	var model models.MenuModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrMenuNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindTree loads the menu with its full subtree fresh from storage. The
// sync pipeline always snapshots from here, never from a cached tree.
func (r *GormMenuRepository) FindTree(ctx context.Context, id uuid.UUID) (*catalog.Menu, error) {
	var model models.MenuModel
	if err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("menu_items.sort_order ASC")
		}).
		Preload("Items.ModifierGroups").
		Preload("Items.ModifierGroups.Modifiers").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrMenuNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

var _ catalog.MenuRepository = (*GormMenuRepository)(nil)

// GormLinkRepository implements catalog.LinkRepository using GORM
type GormLinkRepository struct {
	db *tenant.TenantDB
}

// NewGormLinkRepository creates a new GormLinkRepository
func NewGormLinkRepository(db *tenant.TenantDB) *GormLinkRepository {
	return &GormLinkRepository{db: db}
}

// FindByID finds a link by id
func (r *GormLinkRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.MenuPlatformLink, error) {
	var model models.MenuPlatformLinkModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByMenuAndPlatform finds the unique link for (menu, platform)
func (r *GormLinkRepository) FindByMenuAndPlatform(ctx context.Context, menuID uuid.UUID, code platform.Code) (*catalog.MenuPlatformLink, error) {
	var model models.MenuPlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("menu_id = ? AND platform = ?", menuID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCorrelationID finds the link whose stored correlation id is
// contained in the given value. Runs privileged: callbacks carry no tenant
// identity, so this is the one cross-tenant read in the pipeline.
func (r *GormLinkRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*catalog.MenuPlatformLink, error) {
	ctx = tenant.WithPrivileged(ctx)
	var model models.MenuPlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("correlation_id <> '' AND ? LIKE '%' || correlation_id || '%'", correlationID).
		Order("updated_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrLinkNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindFailed lists failed links for the bound tenant
func (r *GormLinkRepository) FindFailed(ctx context.Context, limit int) ([]catalog.MenuPlatformLink, error) {
	var linkModels []models.MenuPlatformLinkModel
	if err := r.db.WithContext(ctx).
		Where("sync_status = ?", catalog.SyncStatusFailed).
		Order("updated_at DESC").
		Limit(limit).
		Find(&linkModels).Error; err != nil {
		return nil, err
	}

	links := make([]catalog.MenuPlatformLink, len(linkModels))
	for i, model := range linkModels {
		links[i] = *model.ToDomain()
	}
	return links, nil
}

// Save creates or updates a link
func (r *GormLinkRepository) Save(ctx context.Context, link *catalog.MenuPlatformLink) error {
	var model models.MenuPlatformLinkModel
	model.FromDomain(link)
	return r.db.WithContext(ctx).Save(&model).Error
}

var _ catalog.LinkRepository = (*GormLinkRepository)(nil)
