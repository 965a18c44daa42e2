// Package tenant provides multi-tenant database scoping for GORM.
//
// Every read, update and delete issued through a scoped DB carries a
// WHERE tenant_id = ? condition taken from the request context, and every
// create has tenant_id populated from the same source. A read outside any
// tenant context matches no rows instead of returning cross-tenant data;
// writes outside any tenant context are rejected.
//
// Usage:
//
//	db := tenant.NewTenantDB(gormDB)
//	scoped := db.WithContext(ctx) // tenant filter applied automatically
//	scoped.Find(&orders)          // WHERE tenant_id = 'xxx' is auto-added
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/infrastructure/logger"
)

// ErrTenantIDRequired is returned when tenant_id is required but not found
var ErrTenantIDRequired = errors.New("tenant_id is required but not found in context")

// ErrInvalidTenantID is returned when tenant_id format is invalid
var ErrInvalidTenantID = errors.New("invalid tenant_id format")

// ErrTenantReassignment is returned when an update tries to move a row to
// another tenant
var ErrTenantReassignment = errors.New("tenant_id of an existing row cannot be changed")

// emptyResultCondition matches no rows. Reads that carry no tenant get it
// so they return empty sets rather than cross-tenant data.
const emptyResultCondition = "1 = 0"

type privilegedKey struct{}

// WithPrivileged marks the context as exempt from tenant filtering. The only
// caller is the callback reconciler, which must look a correlation id up
// across tenants because platform callbacks carry no tenant identity.
func WithPrivileged(ctx context.Context) context.Context {
	return context.WithValue(ctx, privilegedKey{}, true)
}

// IsPrivileged reports whether the context bypasses tenant filtering
func IsPrivileged(ctx context.Context) bool {
	ok, _ := ctx.Value(privilegedKey{}).(bool)
	return ok
}

// TenantScope applies tenant filtering to GORM queries
func TenantScope(tenantID uuid.UUID) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// TenantScopeString applies tenant filtering using a string tenant ID
func TenantScopeString(tenantID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tenant_id = ?", tenantID)
	}
}

// TenantDB wraps GORM DB with automatic tenant scoping
type TenantDB struct {
	db           *gorm.DB
	tenantColumn string
	required     bool
}

// Config holds configuration for TenantDB
type Config struct {
	// TenantColumn is the name of the tenant ID column (default: "tenant_id")
	TenantColumn string
	// Required determines if tenant_id is mandatory (default: true)
	Required bool
}

// DefaultConfig returns default TenantDB configuration
func DefaultConfig() Config {
	return Config{
		TenantColumn: "tenant_id",
		Required:     true,
	}
}

// NewTenantDB creates a new TenantDB with default configuration
func NewTenantDB(db *gorm.DB) *TenantDB {
	return NewTenantDBWithConfig(db, DefaultConfig())
}

// NewTenantDBWithConfig creates a new TenantDB with custom configuration
func NewTenantDBWithConfig(db *gorm.DB, cfg Config) *TenantDB {
	if cfg.TenantColumn == "" {
		cfg.TenantColumn = "tenant_id"
	}
	return &TenantDB{
		db:           db,
		tenantColumn: cfg.TenantColumn,
		required:     cfg.Required,
	}
}

// DB returns the underlying GORM DB without tenant scoping.
// Use with caution - this bypasses tenant isolation.
func (t *TenantDB) DB() *gorm.DB {
	return t.db
}

// WithContext returns a GORM DB scoped to the tenant from context.
//
// With no tenant in context and Required set, reads match no rows; the
// create and update callbacks still reject writes. A privileged context
// skips scoping entirely.
func (t *TenantDB) WithContext(ctx context.Context) *gorm.DB {
	if IsPrivileged(ctx) {
		return t.db.WithContext(ctx)
	}

	tenantID := logger.GetTenantID(ctx)
	if tenantID == "" {
		db := t.db.WithContext(ctx)
		if t.required {
			return db.Where(emptyResultCondition)
		}
		return db
	}

	if _, err := uuid.Parse(tenantID); err != nil {
		db := t.db.WithContext(ctx)
		_ = db.AddError(ErrInvalidTenantID)
		return db
	}

	return t.db.WithContext(ctx).Scopes(TenantScopeString(tenantID))
}

// ForTenant returns a GORM DB scoped to a specific tenant ID. Use this when
// the tenant is known directly rather than from context, e.g. the job
// dispatcher re-binding a job's stored tenant.
func (t *TenantDB) ForTenant(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	if tenantID == uuid.Nil {
		db := t.db.WithContext(ctx)
		if t.required {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return db
	}
	return t.db.WithContext(ctx).Scopes(TenantScope(tenantID))
}

// Transaction executes fn within a database transaction with tenant scope
func (t *TenantDB) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tenantID := logger.GetTenantID(ctx)
	if tenantID == "" && t.required && !IsPrivileged(ctx) {
		return ErrTenantIDRequired
	}

	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if tenantID != "" && !IsPrivileged(ctx) {
			tx = tx.Scopes(TenantScopeString(tenantID))
		}
		return fn(tx)
	})
}

// Unscoped returns the underlying DB without any tenant scoping.
// WARNING: bypasses tenant isolation. Only for system-level operations
// and migrations.
func (t *TenantDB) Unscoped() *gorm.DB {
	return t.db
}
