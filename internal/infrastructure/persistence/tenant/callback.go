package tenant

import (
	"reflect"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	"github.com/orderbridge/backend/internal/infrastructure/logger"
)

// TenantCallback provides GORM callback hooks for automatic tenant filtering
// and create-time tenant stamping.
type TenantCallback struct {
	tenantColumn string
	fieldName    string
	required     bool
}

// NewTenantCallback creates a new tenant callback handler
func NewTenantCallback(tenantColumn string, required bool) *TenantCallback {
	if tenantColumn == "" {
		tenantColumn = "tenant_id"
	}
	return &TenantCallback{
		tenantColumn: tenantColumn,
		fieldName:    "TenantID",
		required:     required,
	}
}

// RegisterCallbacks registers tenant callbacks with GORM
func (tc *TenantCallback) RegisterCallbacks(db *gorm.DB) {
	_ = db.Callback().Query().Before("gorm:query").Register("tenant:before_query", tc.beforeQuery)
	_ = db.Callback().Update().Before("gorm:update").Register("tenant:before_update", tc.beforeUpdate)
	_ = db.Callback().Delete().Before("gorm:delete").Register("tenant:before_delete", tc.beforeDelete)
	_ = db.Callback().Row().Before("gorm:row").Register("tenant:before_row", tc.beforeQuery)
	_ = db.Callback().Create().Before("gorm:create").Register("tenant:before_create", tc.beforeCreate)
}

func (tc *TenantCallback) beforeQuery(db *gorm.DB) {
	tc.addTenantFilter(db, false)
}

func (tc *TenantCallback) beforeUpdate(db *gorm.DB) {
	tc.rejectReassignment(db)
	tc.addTenantFilter(db, true)
}

func (tc *TenantCallback) beforeDelete(db *gorm.DB) {
	tc.addTenantFilter(db, true)
}

// beforeCreate stamps tenant_id on inserted rows from the context. A row
// that already carries a different tenant than the context is rejected.
func (tc *TenantCallback) beforeCreate(db *gorm.DB) {
	if db.Statement.Context == nil || db.Statement.Schema == nil {
		return
	}
	if IsPrivileged(db.Statement.Context) {
		return
	}

	field := db.Statement.Schema.LookUpField(tc.fieldName)
	if field == nil {
		// Model is not tenant-owned
		return
	}

	tenantID := logger.GetTenantID(db.Statement.Context)
	if tenantID == "" {
		// Rows stamped by the caller pass through, e.g. a repository
		// writing on behalf of a tenant it resolved itself. Only unstamped
		// rows need the context tenant.
		if tc.required && tc.anyRowUnstamped(db, field) {
			_ = db.AddError(ErrTenantIDRequired)
		}
		return
	}
	parsed, err := uuid.Parse(tenantID)
	if err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}

	switch db.Statement.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < db.Statement.ReflectValue.Len(); i++ {
			tc.stampRow(db, field, db.Statement.ReflectValue.Index(i), parsed)
		}
	case reflect.Struct:
		tc.stampRow(db, field, db.Statement.ReflectValue, parsed)
	}
}

func (tc *TenantCallback) anyRowUnstamped(db *gorm.DB, field *schema.Field) bool {
	switch db.Statement.ReflectValue.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < db.Statement.ReflectValue.Len(); i++ {
			if _, isZero := field.ValueOf(db.Statement.Context, db.Statement.ReflectValue.Index(i)); isZero {
				return true
			}
		}
	case reflect.Struct:
		_, isZero := field.ValueOf(db.Statement.Context, db.Statement.ReflectValue)
		return isZero
	}
	return false
}

func (tc *TenantCallback) stampRow(db *gorm.DB, field *schema.Field, row reflect.Value, tenantID uuid.UUID) {
	current, isZero := field.ValueOf(db.Statement.Context, row)
	if !isZero {
		if existing, ok := current.(uuid.UUID); ok && existing != tenantID {
			_ = db.AddError(ErrTenantReassignment)
		}
		return
	}
	_ = field.Set(db.Statement.Context, row, tenantID)
}

// rejectReassignment blocks updates that assign the tenant column. Rows
// never move between tenants.
func (tc *TenantCallback) rejectReassignment(db *gorm.DB) {
	if db.Statement.Context == nil || IsPrivileged(db.Statement.Context) {
		return
	}

	switch dest := db.Statement.Dest.(type) {
	case map[string]interface{}:
		for key := range dest {
			if key == tc.tenantColumn || key == tc.fieldName {
				_ = db.AddError(ErrTenantReassignment)
				return
			}
		}
	}

	if set, ok := db.Statement.Clauses["SET"]; ok {
		if assignments, ok := set.Expression.(clause.Set); ok {
			for _, assignment := range assignments {
				if assignment.Column.Name == tc.tenantColumn {
					_ = db.AddError(ErrTenantReassignment)
					return
				}
			}
		}
	}
}

// addTenantFilter adds tenant filtering to the statement. With no tenant in
// context, writes error when failOnMissing is set; reads instead get a
// condition that matches nothing, so they come back empty.
func (tc *TenantCallback) addTenantFilter(db *gorm.DB, failOnMissing bool) {
	if db.Statement.Context == nil {
		return
	}
	if db.Statement.Unscoped || IsPrivileged(db.Statement.Context) {
		return
	}
	if db.Statement.Schema != nil && db.Statement.Schema.LookUpField(tc.fieldName) == nil {
		// Model is not tenant-owned
		return
	}
	if tc.hasTenantCondition(db) {
		return
	}

	tenantID := logger.GetTenantID(db.Statement.Context)
	if tenantID == "" {
		if !tc.required {
			return
		}
		if failOnMissing {
			_ = db.AddError(ErrTenantIDRequired)
			return
		}
		if !tc.hasEmptyResultCondition(db) {
			db.Statement.AddClause(clause.Where{
				Exprs: []clause.Expression{clause.Expr{SQL: emptyResultCondition}},
			})
		}
		return
	}
	if _, err := uuid.Parse(tenantID); err != nil {
		_ = db.AddError(ErrInvalidTenantID)
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: tc.tenantColumn},
				Value:  tenantID,
			},
		},
	})
}

// hasEmptyResultCondition reports whether the statement already carries the
// match-nothing condition, e.g. added by TenantDB.WithContext.
func (tc *TenantCallback) hasEmptyResultCondition(db *gorm.DB) bool {
	whereClause, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return false
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, expr := range where.Exprs {
		if e, ok := expr.(clause.Expr); ok && e.SQL == emptyResultCondition {
			return true
		}
	}
	return false
}

// hasTenantCondition checks if a tenant_id condition is already present
func (tc *TenantCallback) hasTenantCondition(db *gorm.DB) bool {
	if whereClause, ok := db.Statement.Clauses["WHERE"]; ok {
		if where, ok := whereClause.Expression.(clause.Where); ok {
			for _, expr := range where.Exprs {
				if tc.exprContainsTenant(expr) {
					return true
				}
			}
		}
	}

	sql := db.Statement.SQL.String()
	return sql != "" && strings.Contains(sql, tc.tenantColumn)
}

func (tc *TenantCallback) exprContainsTenant(expr clause.Expression) bool {
	switch e := expr.(type) {
	case clause.Expr:
		return strings.Contains(e.SQL, tc.tenantColumn)
	case clause.NamedExpr:
		return strings.Contains(e.SQL, tc.tenantColumn)
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.tenantColumn
		}
	case clause.IN:
		if col, ok := e.Column.(clause.Column); ok {
			return col.Name == tc.tenantColumn
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsTenant(cond) {
				return true
			}
		}
	case clause.OrConditions:
		for _, cond := range e.Exprs {
			if tc.exprContainsTenant(cond) {
				return true
			}
		}
	}
	return false
}

// EnableAutoTenantFilter registers callbacks that add tenant_id filtering
// and create stamping to all queries on the given DB instance.
func EnableAutoTenantFilter(db *gorm.DB, required bool) {
	tc := NewTenantCallback("tenant_id", required)
	tc.RegisterCallbacks(db)
}

// DisableAutoTenantFilter removes the tenant callbacks. Mainly for tests.
func DisableAutoTenantFilter(db *gorm.DB) {
	_ = db.Callback().Query().Remove("tenant:before_query")
	_ = db.Callback().Update().Remove("tenant:before_update")
	_ = db.Callback().Delete().Remove("tenant:before_delete")
	_ = db.Callback().Row().Remove("tenant:before_row")
	_ = db.Callback().Create().Remove("tenant:before_create")
}
