package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/catalog"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
)

// MenuModel is the persistence model for the Menu domain entity.
type MenuModel struct {
	TenantModel
	Name        string          `gorm:"type:varchar(255);not null"`
	Description string          `gorm:"type:text"`
	IsActive    bool            `gorm:"not null;default:true"`
	Items       []MenuItemModel `gorm:"foreignKey:MenuID"`
}

// TableName returns the table name for GORM
func (MenuModel) TableName() string {
	return "menus"
}

// ToDomain converts the persistence model to a domain Menu with whatever
// subtree was loaded
func (m *MenuModel) ToDomain() *catalog.Menu {
	menu := &catalog.Menu{
		TenantEntity: m.ToDomainTenantEntity(),
		Name:         m.Name,
		Description:  m.Description,
		IsActive:     m.IsActive,
	}
	for i := range m.Items {
		menu.Items = append(menu.Items, *m.Items[i].ToDomain())
	}
	return menu
}

// MenuItemModel is the persistence model for MenuItem.
type MenuItemModel struct {
	TenantModel
	MenuID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	SKU            string               `gorm:"type:varchar(100);not null"`
	Name           string               `gorm:"type:varchar(255);not null"`
	Description    string               `gorm:"type:text"`
	Price          decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	IsAvailable    bool                 `gorm:"not null;default:true"`
	SortOrder      int                  `gorm:"not null;default:0"`
	ModifierGroups []ModifierGroupModel `gorm:"foreignKey:MenuItemID"`
}

// TableName returns the table name for GORM
func (MenuItemModel) TableName() string {
	return "menu_items"
}

// ToDomain converts the persistence model to a domain MenuItem
func (m *MenuItemModel) ToDomain() *catalog.MenuItem {
	item := &catalog.MenuItem{
		TenantEntity: m.ToDomainTenantEntity(),
		MenuID:       m.MenuID,
		SKU:          m.SKU,
		Name:         m.Name,
		Description:  m.Description,
		Price:        m.Price,
		IsAvailable:  m.IsAvailable,
		SortOrder:    m.SortOrder,
	}
	for i := range m.ModifierGroups {
		item.ModifierGroups = append(item.ModifierGroups, *m.ModifierGroups[i].ToDomain())
	}
	return item
}

// ModifierGroupModel is the persistence model for ModifierGroup.
type ModifierGroupModel struct {
	TenantModel
	MenuItemID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name       string          `gorm:"type:varchar(255);not null"`
	MinSelect  int             `gorm:"not null;default:0"`
	MaxSelect  int             `gorm:"not null;default:1"`
	Modifiers  []ModifierModel `gorm:"foreignKey:ModifierGroupID"`
}

// TableName returns the table name for GORM
func (ModifierGroupModel) TableName() string {
	return "modifier_groups"
}

// ToDomain converts the persistence model to a domain ModifierGroup
func (m *ModifierGroupModel) ToDomain() *catalog.ModifierGroup {
	group := &catalog.ModifierGroup{
		TenantEntity: m.ToDomainTenantEntity(),
		MenuItemID:   m.MenuItemID,
		Name:         m.Name,
		MinSelect:    m.MinSelect,
		MaxSelect:    m.MaxSelect,
	}
	for i := range m.Modifiers {
		group.Modifiers = append(group.Modifiers, *m.Modifiers[i].ToDomain())
	}
	return group
}

// ModifierModel is the persistence model for Modifier.
type ModifierModel struct {
	TenantModel
	ModifierGroupID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name            string          `gorm:"type:varchar(255);not null"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// TableName returns the table name for GORM
func (ModifierModel) TableName() string {
	return "modifiers"
}

// ToDomain converts the persistence model to a domain Modifier
func (m *ModifierModel) ToDomain() *catalog.Modifier {
	return &catalog.Modifier{
		TenantEntity:    m.ToDomainTenantEntity(),
		ModifierGroupID: m.ModifierGroupID,
		Name:            m.Name,
		Price:           m.Price,
	}
}

// MenuPlatformLinkModel is the persistence model for MenuPlatformLink.
// Unique on (tenant_id, menu_id, platform); correlation_id is indexed for
// the reconciler's cross-tenant lookup.
type MenuPlatformLinkModel struct {
	ID             uuid.UUID          `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_menu_links_target,priority:1"`
	MenuID         uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_menu_links_target,priority:2"`
	Platform       platform.Code      `gorm:"type:varchar(20);not null;uniqueIndex:idx_menu_links_target,priority:3"`
	SyncStatus     catalog.SyncStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PlatformMenuID string             `gorm:"type:varchar(100)"`
	CorrelationID  string             `gorm:"type:varchar(100);index"`
	SyncError      string             `gorm:"type:text"`
	AttemptCount   int                `gorm:"not null;default:0"`
	FirstAttemptAt *time.Time
	LastSyncedAt   *time.Time
	PublishedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MenuPlatformLinkModel) TableName() string {
	return "menu_platform_links"
}

// ToDomain converts the persistence model to a domain MenuPlatformLink
func (m *MenuPlatformLinkModel) ToDomain() *catalog.MenuPlatformLink {
	return &catalog.MenuPlatformLink{
		TenantEntity: shared.TenantEntity{
			BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
			TenantID:   m.TenantID,
		},
		MenuID:         m.MenuID,
		Platform:       m.Platform,
		SyncStatus:     m.SyncStatus,
		PlatformMenuID: m.PlatformMenuID,
		CorrelationID:  m.CorrelationID,
		SyncError:      m.SyncError,
		AttemptCount:   m.AttemptCount,
		FirstAttemptAt: m.FirstAttemptAt,
		LastSyncedAt:   m.LastSyncedAt,
		PublishedAt:    m.PublishedAt,
	}
}

// FromDomain populates the persistence model from a domain MenuPlatformLink
func (m *MenuPlatformLinkModel) FromDomain(l *catalog.MenuPlatformLink) {
	m.ID = l.ID
	m.TenantID = l.TenantID
	m.MenuID = l.MenuID
	m.Platform = l.Platform
	m.SyncStatus = l.SyncStatus
	m.PlatformMenuID = l.PlatformMenuID
	m.CorrelationID = l.CorrelationID
	m.SyncError = l.SyncError
	m.AttemptCount = l.AttemptCount
	m.FirstAttemptAt = l.FirstAttemptAt
	m.LastSyncedAt = l.LastSyncedAt
	m.PublishedAt = l.PublishedAt
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}
