package tenant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/infrastructure/logger"
)

// TestModel is a simple model for testing tenant scoping
type TestModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name     string    `gorm:"size:100"`
}

func (TestModel) TableName() string {
	return "test_models"
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func createTestContext(tenantID string) context.Context {
	ctx := context.Background()
	if tenantID != "" {
		log := logger.FromContext(ctx)
		ctx, _ = logger.WithTenantID(ctx, log, tenantID)
	}
	return ctx
}

func TestTenantScope(t *testing.T) {
	tenantID := uuid.New()

	t.Run("applies tenant filter to query", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE tenant_id = \$1`).
			WithArgs(tenantID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := db.Scopes(TenantScope(tenantID)).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantScopeString(t *testing.T) {
	tenantID := uuid.New().String()

	t.Run("applies tenant filter with string ID", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE tenant_id = \$1`).
			WithArgs(tenantID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := db.Scopes(TenantScopeString(tenantID)).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantDB_WithContext(t *testing.T) {
	t.Run("extracts tenant from context and scopes query", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		tenantID := uuid.New()
		ctx := createTestContext(tenantID.String())

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE tenant_id = \$1`).
			WithArgs(tenantID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.WithContext(ctx).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reads come back empty when tenant required but missing", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db) // required=true by default
		ctx := createTestContext("")

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE 1 = 0`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.WithContext(ctx).Find(&results).Error

		require.NoError(t, err)
		assert.Empty(t, results)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("allows missing tenant when not required", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDBWithConfig(db, Config{
			TenantColumn: "tenant_id",
			Required:     false,
		})
		ctx := createTestContext("")

		mock.ExpectQuery(`SELECT \* FROM "test_models"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.WithContext(ctx).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("errors on invalid UUID format", func(t *testing.T) {
		db, _, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		ctx := createTestContext("invalid-uuid")

		scopedDB := tenantDB.WithContext(ctx)

		assert.ErrorIs(t, scopedDB.Error, ErrInvalidTenantID)
	})

	t.Run("privileged context bypasses scoping", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		ctx := WithPrivileged(context.Background())

		mock.ExpectQuery(`SELECT \* FROM "test_models"`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.WithContext(ctx).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantDB_ForTenant(t *testing.T) {
	t.Run("scopes to the given tenant", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE tenant_id = \$1`).
			WithArgs(tenantID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.ForTenant(context.Background(), tenantID).Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("errors on nil UUID when required", func(t *testing.T) {
		db, _, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		scopedDB := tenantDB.ForTenant(context.Background(), uuid.Nil)

		assert.ErrorIs(t, scopedDB.Error, ErrTenantIDRequired)
	})
}

func TestTenantDB_Transaction(t *testing.T) {
	t.Run("transaction errors without tenant when required", func(t *testing.T) {
		db, _, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		ctx := createTestContext("")

		err := tenantDB.Transaction(ctx, func(tx *gorm.DB) error {
			return nil
		})

		assert.ErrorIs(t, err, ErrTenantIDRequired)
	})

	t.Run("transaction executes with tenant context", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		tenantID := uuid.New()
		ctx := createTestContext(tenantID.String())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tenantDB.Transaction(ctx, func(tx *gorm.DB) error {
			return nil
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("privileged transaction runs without tenant", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		ctx := WithPrivileged(context.Background())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tenantDB.Transaction(ctx, func(tx *gorm.DB) error {
			return nil
		})

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTenantDB_Unscoped(t *testing.T) {
	db, _, mockDB := setupMockDB(t)
	defer mockDB.Close()

	tenantDB := NewTenantDB(db)

	assert.Equal(t, db, tenantDB.Unscoped())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "tenant_id", cfg.TenantColumn)
	assert.True(t, cfg.Required)
}

func TestNewTenantDBWithConfig_DefaultColumn(t *testing.T) {
	db, _, mockDB := setupMockDB(t)
	defer mockDB.Close()

	tenantDB := NewTenantDBWithConfig(db, Config{
		TenantColumn: "",
		Required:     true,
	})

	assert.NotNil(t, tenantDB)
	assert.Equal(t, "tenant_id", tenantDB.tenantColumn)
}

func TestPrivilegedContext(t *testing.T) {
	assert.False(t, IsPrivileged(context.Background()))
	assert.True(t, IsPrivileged(WithPrivileged(context.Background())))
}

func TestTenantDB_ChainedQueries(t *testing.T) {
	t.Run("tenant scope chains with additional where clauses", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		tenantID := uuid.New()
		ctx := createTestContext(tenantID.String())

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE .+ AND .+`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.WithContext(ctx).Where("name = ?", "Test").Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("tenant scope preserves ordering", func(t *testing.T) {
		db, mock, mockDB := setupMockDB(t)
		defer mockDB.Close()

		tenantDB := NewTenantDB(db)
		tenantID := uuid.New()
		ctx := createTestContext(tenantID.String())

		mock.ExpectQuery(`SELECT \* FROM "test_models" WHERE tenant_id = \$1 ORDER BY name ASC`).
			WithArgs(tenantID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}))

		var results []TestModel
		err := tenantDB.WithContext(ctx).Order("name ASC").Find(&results).Error
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
