// Package catalog defines the tenant-owned menu tree and its per-platform
// sync links. The tree (menu → items → modifier groups → modifiers) is
// mutated by catalog-management tooling and is read-only to the sync
// pipeline, which always reloads it fresh from storage before a sync.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderbridge/backend/internal/domain/shared"
)

var (
	// ErrMenuNotFound is returned when no menu matches the id
	ErrMenuNotFound = errors.New("catalog: menu not found")
)

// Menu is the root of a tenant's catalog tree.
type Menu struct {
	shared.TenantEntity
	Name        string
	Description string
	IsActive    bool
	Items       []MenuItem
}

// MenuItem is one sellable item within a menu.
type MenuItem struct {
	shared.TenantEntity
	MenuID         uuid.UUID
	SKU            string
	Name           string
	Description    string
	Price          decimal.Decimal
	IsAvailable    bool
	SortOrder      int
	ModifierGroups []ModifierGroup
}

// ModifierGroup groups selectable modifiers under an item, with selection
// bounds enforced by the platforms.
type ModifierGroup struct {
	shared.TenantEntity
	MenuItemID uuid.UUID
	Name       string
	MinSelect  int
	MaxSelect  int
	Modifiers  []Modifier
}

// Modifier is one selectable option within a group.
type Modifier struct {
	shared.TenantEntity
	ModifierGroupID uuid.UUID
	Name            string
	Price           decimal.Decimal
}

// MenuRepository defines read access to the catalog tree. The sync pipeline
// only reads; writes come from catalog-management collaborators outside this
// module.
type MenuRepository interface {
	// FindByID finds a menu without its subtree
	FindByID(ctx context.Context, id uuid.UUID) (*Menu, error)

	// FindTree loads the menu with its full subtree (items, modifier
	// groups, modifiers) fresh from storage
	FindTree(ctx context.Context, id uuid.UUID) (*Menu, error)
}
