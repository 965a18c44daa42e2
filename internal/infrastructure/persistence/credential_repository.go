package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/orderbridge/backend/internal/domain/credential"
	"github.com/orderbridge/backend/internal/infrastructure/crypto"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/models"
	"github.com/orderbridge/backend/internal/infrastructure/persistence/tenant"
)

// GormCredentialRepository implements credential.Repository using GORM.
// Lookups take the tenant explicitly because credential reads happen both
// inside requests and inside jobs where the adapter knows the tenant id.
type GormCredentialRepository struct {
	db *tenant.TenantDB
}

// NewGormCredentialRepository creates a new GormCredentialRepository
func NewGormCredentialRepository(db *tenant.TenantDB) *GormCredentialRepository {
	return &GormCredentialRepository{db: db}
}

// FindActive finds the active credential for (tenant, service, type)
func (r *GormCredentialRepository) FindActive(ctx context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) (*credential.Credential, error) {
	var model models.CredentialModel
	if err := r.db.ForTenant(ctx, tenantID).
		Where("service = ? AND credential_type = ? AND is_active = ?", service, credType, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, credential.ErrCredentialNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a credential row
func (r *GormCredentialRepository) Save(ctx context.Context, c *credential.Credential) error {
	var model models.CredentialModel
	model.FromDomain(c)
	return r.db.ForTenant(ctx, c.TenantID).Save(&model).Error
}

// DeactivateAll deactivates every active row for (tenant, service, type)
func (r *GormCredentialRepository) DeactivateAll(ctx context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) error {
	return r.db.ForTenant(ctx, tenantID).
		Model(&models.CredentialModel{}).
		Where("service = ? AND credential_type = ? AND is_active = ?", service, credType, true).
		Update("is_active", false).Error
}

var _ credential.Repository = (*GormCredentialRepository)(nil)

// EncryptedCredentialStore implements credential.Store on top of the
// repository and the at-rest cipher. Plaintext exists only in the return
// value of Get and the argument of Put.
type EncryptedCredentialStore struct {
	repo   credential.Repository
	cipher *crypto.Cipher
}

// NewEncryptedCredentialStore creates a credential store
func NewEncryptedCredentialStore(repo credential.Repository, cipher *crypto.Cipher) *EncryptedCredentialStore {
	return &EncryptedCredentialStore{repo: repo, cipher: cipher}
}

// Get returns the decrypted active secret for the tenant
func (s *EncryptedCredentialStore) Get(ctx context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) (string, error) {
	c, err := s.repo.FindActive(ctx, tenantID, service, credType)
	if err != nil {
		return "", err
	}
	return s.cipher.Decrypt(c.EncryptedValue)
}

// Put encrypts and stores a secret, rotating out the previous one
func (s *EncryptedCredentialStore) Put(ctx context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type, plaintext string) error {
	encrypted, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}
	if err := s.repo.DeactivateAll(ctx, tenantID, service, credType); err != nil {
		return err
	}
	return s.repo.Save(ctx, credential.New(tenantID, service, credType, encrypted))
}

// Deactivate rotates out the active secret without a replacement
func (s *EncryptedCredentialStore) Deactivate(ctx context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) error {
	return s.repo.DeactivateAll(ctx, tenantID, service, credType)
}

var _ credential.Store = (*EncryptedCredentialStore)(nil)
