package ordersync

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/queue"
)

// memOrderRepo is an in-memory ordersync.Repository
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]ordersync.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]ordersync.Order)}
}

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*ordersync.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ordersync.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) FindByNaturalKey(_ context.Context, code platform.Code, platformOrderID string) (*ordersync.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.Platform == code && o.PlatformOrderID == platformOrderID {
			return &o, nil
		}
	}
	return nil, ordersync.ErrOrderNotFound
}

func (r *memOrderRepo) FindFailed(_ context.Context, limit int) ([]ordersync.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failed []ordersync.Order
	for _, o := range r.orders {
		if o.Status == ordersync.StatusFailed && len(failed) < limit {
			failed = append(failed, o)
		}
	}
	return failed, nil
}

func (r *memOrderRepo) Create(_ context.Context, o *ordersync.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.TenantID == o.TenantID && existing.Platform == o.Platform &&
			existing.PlatformOrderID == o.PlatformOrderID {
			return ordersync.ErrDuplicateOrder
		}
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepo) Save(_ context.Context, o *ordersync.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = *o
	return nil
}

// memMappingRepo is an in-memory ordersync.MappingRepository
type memMappingRepo struct {
	mappings map[string]*ordersync.ProductMapping
}

func newMemMappingRepo() *memMappingRepo {
	return &memMappingRepo{mappings: make(map[string]*ordersync.ProductMapping)}
}

func (r *memMappingRepo) put(m *ordersync.ProductMapping) {
	r.mappings[m.Platform+"/"+m.PlatformSKU] = m
}

func (r *memMappingRepo) FindByPlatformSKU(_ context.Context, platformCode, platformSKU string) (*ordersync.ProductMapping, error) {
	m, ok := r.mappings[platformCode+"/"+platformSKU]
	if !ok {
		return nil, ordersync.ErrMappingNotFound
	}
	return m, nil
}

func (r *memMappingRepo) FindByPlatform(_ context.Context, platformCode string) ([]ordersync.ProductMapping, error) {
	var out []ordersync.ProductMapping
	for _, m := range r.mappings {
		if m.Platform == platformCode {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *memMappingRepo) Save(_ context.Context, m *ordersync.ProductMapping) error {
	r.put(m)
	return nil
}

// memSyncLogRepo is an in-memory ordersync.SyncLogRepository
type memSyncLogRepo struct {
	mu      sync.Mutex
	entries []ordersync.SyncLog
}

func (r *memSyncLogRepo) Append(_ context.Context, entry *ordersync.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memSyncLogRepo) FindBySubject(_ context.Context, subjectID uuid.UUID, limit int) ([]ordersync.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ordersync.SyncLog
	for _, e := range r.entries {
		if e.SubjectID == subjectID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

// memPOSSyncRepo is an in-memory ordersync.POSSyncRepository
type memPOSSyncRepo struct {
	records map[uuid.UUID]*ordersync.POSSyncRecord
}

func newMemPOSSyncRepo() *memPOSSyncRepo {
	return &memPOSSyncRepo{records: make(map[uuid.UUID]*ordersync.POSSyncRecord)}
}

func (r *memPOSSyncRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*ordersync.POSSyncRecord, error) {
	rec, ok := r.records[orderID]
	if !ok {
		return nil, ordersync.ErrSyncRecordNotFound
	}
	return rec, nil
}

func (r *memPOSSyncRepo) Save(_ context.Context, rec *ordersync.POSSyncRecord) error {
	r.records[rec.OrderID] = rec
	return nil
}

// fakeTenants resolves every id to an active tenant unless overridden
type fakeTenants struct {
	inactive map[uuid.UUID]bool
}

func newFakeTenants() *fakeTenants {
	return &fakeTenants{inactive: make(map[uuid.UUID]bool)}
}

func (r *fakeTenants) FindByID(_ context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	t, err := tenant.New("Fixture", "fixture")
	if err != nil {
		return nil, err
	}
	t.ID = id
	if r.inactive[id] {
		t.Suspend()
	}
	return t, nil
}

func (r *fakeTenants) FindBySubdomain(_ context.Context, _ string) (*tenant.Tenant, error) {
	return nil, tenant.ErrTenantNotFound
}

func (r *fakeTenants) Save(_ context.Context, _ *tenant.Tenant) error {
	return nil
}

// fakeGateway is a scriptable ordersync.POSGateway
type fakeGateway struct {
	submit func(ctx context.Context, tenantID uuid.UUID, receipt *ordersync.Receipt) (*ordersync.ReceiptResult, error)
	calls  int
}

func (g *fakeGateway) SubmitReceipt(ctx context.Context, tenantID uuid.UUID, receipt *ordersync.Receipt) (*ordersync.ReceiptResult, error) {
	g.calls++
	return g.submit(ctx, tenantID, receipt)
}

// fakeAdapter is a scriptable platform.DeliveryPlatform
type fakeAdapter struct {
	code        platform.Code
	verifyErr   error
	order       *platform.IncomingOrder
	parseErr    error
	submit      func(ctx context.Context, tenantID uuid.UUID, snapshot *platform.CatalogSnapshot) (*platform.SubmitResult, error)
	callback    *platform.CallbackResult
	callbackErr error
}

func (a *fakeAdapter) Code() platform.Code { return a.code }

func (a *fakeAdapter) VerifyWebhook(_ context.Context, _ uuid.UUID, _ http.Header, _ []byte) error {
	return a.verifyErr
}

func (a *fakeAdapter) ParseOrder(_ []byte) (*platform.IncomingOrder, error) {
	if a.parseErr != nil {
		return nil, a.parseErr
	}
	return a.order, nil
}

func (a *fakeAdapter) SubmitCatalog(ctx context.Context, tenantID uuid.UUID, snapshot *platform.CatalogSnapshot) (*platform.SubmitResult, error) {
	return a.submit(ctx, tenantID, snapshot)
}

func (a *fakeAdapter) ParseCallback(_ []byte) (*platform.CallbackResult, error) {
	if a.callbackErr != nil {
		return nil, a.callbackErr
	}
	return a.callback, nil
}

// fakeRegistry is a platform.Registry over a fixed adapter set
type fakeRegistry struct {
	adapters map[platform.Code]platform.DeliveryPlatform
}

func newFakeRegistry(adapters ...platform.DeliveryPlatform) *fakeRegistry {
	r := &fakeRegistry{adapters: make(map[platform.Code]platform.DeliveryPlatform)}
	for _, a := range adapters {
		r.adapters[a.Code()] = a
	}
	return r
}

func (r *fakeRegistry) Get(code platform.Code) (platform.DeliveryPlatform, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, platform.ErrNotConfigured
	}
	return a, nil
}

func (r *fakeRegistry) List() []platform.DeliveryPlatform {
	out := make([]platform.DeliveryPlatform, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// newJobsRepo backs the queue repository with an in-memory database
func newJobsRepo(t *testing.T) (*queue.Repository, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&queue.Job{}))
	return queue.NewRepository(db), db
}

func jobsOfType(t *testing.T, db *gorm.DB, jt queue.JobType) []queue.Job {
	t.Helper()
	var jobs []queue.Job
	require.NoError(t, db.Where("job_type = ?", jt).Find(&jobs).Error)
	return jobs
}
