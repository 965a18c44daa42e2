package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/domain/catalog"
	"github.com/orderbridge/backend/internal/domain/credential"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
	domaintenant "github.com/orderbridge/backend/internal/domain/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/crypto"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/models"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/tenant"
)

const testCipherKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

func setupTestDB(t *testing.T) *tenant.TenantDB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.TenantModelRow{},
		&models.CredentialModel{},
		&models.OrderModel{},
		&models.POSSyncRecordModel{},
		&models.ProductMappingModel{},
		&models.MenuModel{},
		&models.MenuItemModel{},
		&models.ModifierGroupModel{},
		&models.ModifierModel{},
		&models.MenuPlatformLinkModel{},
		&models.SyncLogModel{},
		&models.WebhookLogModel{},
	))
	tenant.EnableAutoTenantFilter(db, true)
	return tenant.NewTenantDB(db)
}

func tenantCtx(tenantID uuid.UUID) context.Context {
	ctx := context.Background()
	ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID.String())
	return ctx
}

func newTenantModel(tenantID uuid.UUID) models.TenantModel {
	now := time.Now()
	return models.TenantModel{
		BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:  tenantID,
	}
}

func TestGormOrderRepository(t *testing.T) {
	t.Run("create and find round trip", func(t *testing.T) {
		repo := NewGormOrderRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)

		order := ordersync.NewOrder(tenantID, platform.CodeCareem, "ORD-1", []byte(`{"id":"ORD-1"}`))
		require.NoError(t, repo.Create(ctx, order))

		byID, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.PlatformOrderID, byID.PlatformOrderID)
		assert.Equal(t, ordersync.StatusPending, byID.Status)

		byKey, err := repo.FindByNaturalKey(ctx, platform.CodeCareem, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, order.ID, byKey.ID)
	})

	t.Run("a redelivered order maps to ErrDuplicateOrder", func(t *testing.T) {
		repo := NewGormOrderRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)

		require.NoError(t, repo.Create(ctx, ordersync.NewOrder(tenantID, platform.CodeCareem, "ORD-1", []byte(`{}`))))
		err := repo.Create(ctx, ordersync.NewOrder(tenantID, platform.CodeCareem, "ORD-1", []byte(`{}`)))

		assert.ErrorIs(t, err, ordersync.ErrDuplicateOrder)
	})

	t.Run("the same platform order id may exist under two tenants", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewGormOrderRepository(db)
		tenantA := uuid.New()
		tenantB := uuid.New()

		require.NoError(t, repo.Create(tenantCtx(tenantA), ordersync.NewOrder(tenantA, platform.CodeTalabat, "ORD-9", []byte(`{}`))))
		require.NoError(t, repo.Create(tenantCtx(tenantB), ordersync.NewOrder(tenantB, platform.CodeTalabat, "ORD-9", []byte(`{}`))))
	})

	t.Run("orders are invisible to other tenants", func(t *testing.T) {
		repo := NewGormOrderRepository(setupTestDB(t))
		tenantA := uuid.New()

		order := ordersync.NewOrder(tenantA, platform.CodeCareem, "ORD-1", []byte(`{}`))
		require.NoError(t, repo.Create(tenantCtx(tenantA), order))

		_, err := repo.FindByID(tenantCtx(uuid.New()), order.ID)
		assert.ErrorIs(t, err, ordersync.ErrOrderNotFound)
	})

	t.Run("save persists state transitions", func(t *testing.T) {
		repo := NewGormOrderRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)

		order := ordersync.NewOrder(tenantID, platform.CodeCareem, "ORD-1", []byte(`{}`))
		require.NoError(t, repo.Create(ctx, order))
		require.NoError(t, order.MarkProcessing())
		require.NoError(t, repo.Save(ctx, order))

		stored, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, ordersync.StatusProcessing, stored.Status)
		assert.Equal(t, 1, stored.AttemptCount)
	})

	t.Run("find failed lists only failed orders", func(t *testing.T) {
		repo := NewGormOrderRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)

		failed := ordersync.NewOrder(tenantID, platform.CodeCareem, "ORD-1", []byte(`{}`))
		require.NoError(t, repo.Create(ctx, failed))
		require.NoError(t, failed.MarkProcessing())
		failed.MarkFailed("pos rejected")
		require.NoError(t, repo.Save(ctx, failed))
		require.NoError(t, repo.Create(ctx, ordersync.NewOrder(tenantID, platform.CodeCareem, "ORD-2", []byte(`{}`))))

		orders, err := repo.FindFailed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, failed.ID, orders[0].ID)
		assert.Equal(t, "pos rejected", orders[0].LastError)
	})
}

func TestGormPOSSyncRepository(t *testing.T) {
	repo := NewGormPOSSyncRepository(setupTestDB(t))
	tenantID := uuid.New()
	ctx := tenantCtx(tenantID)
	orderID := uuid.New()

	_, err := repo.FindByOrderID(ctx, orderID)
	assert.ErrorIs(t, err, ordersync.ErrSyncRecordNotFound)

	rec := ordersync.NewPOSSyncRecord(tenantID, orderID)
	now := time.Now()
	rec.POSReceiptID = "rcpt-1"
	rec.SyncedAt = &now
	require.NoError(t, repo.Save(ctx, rec))

	stored, err := repo.FindByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, "rcpt-1", stored.POSReceiptID)
	require.NotNil(t, stored.SyncedAt)
}

func TestGormMappingRepository(t *testing.T) {
	repo := NewGormMappingRepository(setupTestDB(t))
	tenantID := uuid.New()
	ctx := tenantCtx(tenantID)

	_, err := repo.FindByPlatformSKU(ctx, "careem", "SKU-1")
	assert.ErrorIs(t, err, ordersync.ErrMappingNotFound)

	require.NoError(t, repo.Save(ctx, ordersync.NewProductMapping(tenantID, "careem", "SKU-2", "pos-2")))
	require.NoError(t, repo.Save(ctx, ordersync.NewProductMapping(tenantID, "careem", "SKU-1", "pos-1")))
	require.NoError(t, repo.Save(ctx, ordersync.NewProductMapping(tenantID, "talabat", "SKU-1", "pos-1")))

	mapping, err := repo.FindByPlatformSKU(ctx, "careem", "SKU-1")
	require.NoError(t, err)
	assert.Equal(t, "pos-1", mapping.POSProductID)

	mappings, err := repo.FindByPlatform(ctx, "careem")
	require.NoError(t, err)
	require.Len(t, mappings, 2)
	assert.Equal(t, "SKU-1", mappings[0].PlatformSKU)
	assert.Equal(t, "SKU-2", mappings[1].PlatformSKU)
}

func TestGormTenantRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTenantRepository(db.Unscoped())

	t.Run("save and find", func(t *testing.T) {
		acme, err := domaintenant.New("Acme", "acme")
		require.NoError(t, err)
		require.NoError(t, repo.Save(context.Background(), acme))

		byID, err := repo.FindByID(context.Background(), acme.ID)
		require.NoError(t, err)
		assert.Equal(t, "acme", byID.Subdomain)

		bySub, err := repo.FindBySubdomain(context.Background(), "acme")
		require.NoError(t, err)
		assert.Equal(t, acme.ID, bySub.ID)
	})

	t.Run("duplicate subdomain is rejected", func(t *testing.T) {
		dup, err := domaintenant.New("Acme Clone", "acme")
		require.NoError(t, err)

		assert.ErrorIs(t, repo.Save(context.Background(), dup), domaintenant.ErrSubdomainTaken)
	})

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := repo.FindByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domaintenant.ErrTenantNotFound)

		_, err = repo.FindBySubdomain(context.Background(), "ghost")
		assert.ErrorIs(t, err, domaintenant.ErrTenantNotFound)
	})
}

func TestEncryptedCredentialStore(t *testing.T) {
	db := setupTestDB(t)
	cipher, err := crypto.NewCipher(testCipherKey)
	require.NoError(t, err)
	repo := NewGormCredentialRepository(db)
	store := NewEncryptedCredentialStore(repo, cipher)
	tenantID := uuid.New()
	ctx := context.Background()

	t.Run("put and get round trip", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey, "s3cret"))

		value, err := store.Get(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey)
		require.NoError(t, err)
		assert.Equal(t, "s3cret", value)
	})

	t.Run("only ciphertext is stored", func(t *testing.T) {
		stored, err := repo.FindActive(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey)
		require.NoError(t, err)
		assert.NotContains(t, string(stored.EncryptedValue), "s3cret")
	})

	t.Run("put rotates the previous secret", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey, "rotated"))

		value, err := store.Get(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey)
		require.NoError(t, err)
		assert.Equal(t, "rotated", value)

		var active int64
		require.NoError(t, db.ForTenant(ctx, tenantID).
			Model(&models.CredentialModel{}).
			Where("is_active = ?", true).
			Count(&active).Error)
		assert.EqualValues(t, 1, active)
	})

	t.Run("credentials are tenant scoped", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New(), credential.ServicePOS, credential.TypeAPIKey)
		assert.ErrorIs(t, err, credential.ErrCredentialNotFound)
	})

	t.Run("deactivate removes the active secret", func(t *testing.T) {
		require.NoError(t, store.Deactivate(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey))

		_, err := store.Get(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey)
		assert.ErrorIs(t, err, credential.ErrCredentialNotFound)
	})
}

func TestGormMenuRepository_FindTree(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormMenuRepository(db)
	tenantID := uuid.New()
	ctx := tenantCtx(tenantID)

	menu := models.MenuModel{TenantModel: newTenantModel(tenantID), Name: "Lunch", IsActive: true}
	require.NoError(t, db.WithContext(ctx).Create(&menu).Error)

	second := models.MenuItemModel{
		TenantModel: newTenantModel(tenantID), MenuID: menu.ID,
		SKU: "SKU-2", Name: "Fries", Price: decimal.RequireFromString("9.00"),
		IsAvailable: true, SortOrder: 2,
	}
	first := models.MenuItemModel{
		TenantModel: newTenantModel(tenantID), MenuID: menu.ID,
		SKU: "SKU-1", Name: "Burger", Price: decimal.RequireFromString("24.50"),
		IsAvailable: true, SortOrder: 1,
	}
	require.NoError(t, db.WithContext(ctx).Create(&second).Error)
	require.NoError(t, db.WithContext(ctx).Create(&first).Error)

	group := models.ModifierGroupModel{
		TenantModel: newTenantModel(tenantID), MenuItemID: first.ID,
		Name: "Extras", MinSelect: 0, MaxSelect: 3,
	}
	require.NoError(t, db.WithContext(ctx).Create(&group).Error)
	modifier := models.ModifierModel{
		TenantModel: newTenantModel(tenantID), ModifierGroupID: group.ID,
		Name: "Extra cheese", Price: decimal.RequireFromString("3.00"),
	}
	require.NoError(t, db.WithContext(ctx).Create(&modifier).Error)

	tree, err := repo.FindTree(ctx, menu.ID)
	require.NoError(t, err)
	require.Len(t, tree.Items, 2)
	assert.Equal(t, "SKU-1", tree.Items[0].SKU)
	assert.Equal(t, "SKU-2", tree.Items[1].SKU)
	require.Len(t, tree.Items[0].ModifierGroups, 1)
	require.Len(t, tree.Items[0].ModifierGroups[0].Modifiers, 1)
	assert.Equal(t, "Extra cheese", tree.Items[0].ModifierGroups[0].Modifiers[0].Name)

	_, err = repo.FindTree(ctx, uuid.New())
	assert.ErrorIs(t, err, catalog.ErrMenuNotFound)
}

func TestGormLinkRepository(t *testing.T) {
	t.Run("save and find", func(t *testing.T) {
		repo := NewGormLinkRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)
		menuID := uuid.New()

		link := catalog.NewMenuPlatformLink(tenantID, menuID, platform.CodeCareem)
		require.NoError(t, repo.Save(ctx, link))

		byID, err := repo.FindByID(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, catalog.SyncStatusPending, byID.SyncStatus)

		byTarget, err := repo.FindByMenuAndPlatform(ctx, menuID, platform.CodeCareem)
		require.NoError(t, err)
		assert.Equal(t, link.ID, byTarget.ID)

		_, err = repo.FindByMenuAndPlatform(ctx, menuID, platform.CodeTalabat)
		assert.ErrorIs(t, err, catalog.ErrLinkNotFound)
	})

	t.Run("find by correlation id crosses tenants", func(t *testing.T) {
		repo := NewGormLinkRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)

		link := catalog.NewMenuPlatformLink(tenantID, uuid.New(), platform.CodeCareem)
		link.CorrelationID = "corr-abc-123"
		require.NoError(t, repo.Save(ctx, link))

		// callbacks carry no tenant, lookup runs without one
		found, err := repo.FindByCorrelationID(context.Background(), "corr-abc-123")
		require.NoError(t, err)
		assert.Equal(t, link.ID, found.ID)

		// the platform may echo the id embedded in a larger reference
		found, err = repo.FindByCorrelationID(context.Background(), "cb:corr-abc-123:v2")
		require.NoError(t, err)
		assert.Equal(t, link.ID, found.ID)

		_, err = repo.FindByCorrelationID(context.Background(), "unknown")
		assert.ErrorIs(t, err, catalog.ErrLinkNotFound)
	})

	t.Run("find failed lists only failed links", func(t *testing.T) {
		repo := NewGormLinkRepository(setupTestDB(t))
		tenantID := uuid.New()
		ctx := tenantCtx(tenantID)

		failed := catalog.NewMenuPlatformLink(tenantID, uuid.New(), platform.CodeCareem)
		require.NoError(t, failed.BeginSync(time.Now()))
		failed.MarkFailed("catalog rejected")
		require.NoError(t, repo.Save(ctx, failed))
		require.NoError(t, repo.Save(ctx, catalog.NewMenuPlatformLink(tenantID, uuid.New(), platform.CodeTalabat)))

		links, err := repo.FindFailed(ctx, 10)
		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, failed.ID, links[0].ID)
	})
}

func TestGormSyncLogRepository(t *testing.T) {
	repo := NewGormSyncLogRepository(setupTestDB(t))
	tenantID := uuid.New()
	ctx := tenantCtx(tenantID)
	subjectID := uuid.New()

	require.NoError(t, repo.Append(ctx, ordersync.NewSyncLog(
		tenantID, ordersync.StagePOSSync, subjectID, 1, ordersync.LogOutcomeRetry, "pos unavailable", 120*time.Millisecond)))
	require.NoError(t, repo.Append(ctx, ordersync.NewSyncLog(
		tenantID, ordersync.StagePOSSync, subjectID, 2, ordersync.LogOutcomeSuccess, "", 80*time.Millisecond)))
	require.NoError(t, repo.Append(ctx, ordersync.NewSyncLog(
		tenantID, ordersync.StagePOSSync, uuid.New(), 1, ordersync.LogOutcomeFailure, "other subject", time.Millisecond)))

	logs, err := repo.FindBySubject(ctx, subjectID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, entry := range logs {
		assert.Equal(t, subjectID, entry.SubjectID)
	}
}

func TestGormWebhookLogRepository(t *testing.T) {
	repo := NewGormWebhookLogRepository(setupTestDB(t))
	tenantID := uuid.New()
	ctx := tenantCtx(tenantID)

	rawBody := []byte(`{"order_id":"ORD-1001"}`)
	entry := &ordersync.WebhookLog{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Platform:     "careem",
		Kind:         "order",
		RemoteAddr:   "203.0.113.9",
		StatusCode:   202,
		Accepted:     true,
		Payload:      rawBody,
		BodySize:     len(rawBody),
	}
	require.NoError(t, repo.Append(ctx, entry))

	logs, err := repo.FindRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "careem", logs[0].Platform)
	assert.True(t, logs[0].Accepted)
	assert.Equal(t, rawBody, logs[0].Payload)

	// other tenants see nothing
	logs, err = repo.FindRecent(tenantCtx(uuid.New()), 10)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
