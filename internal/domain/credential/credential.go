// Package credential defines the per-tenant encrypted credential store.
//
// Outbound API clients and webhook authentication read secrets through the
// Store port; values are encrypted at rest and never logged in plaintext.
// Rotation deactivates the old row rather than deleting it.
package credential

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/shared"
)

var (
	// ErrCredentialNotFound is returned when no active credential matches
	ErrCredentialNotFound = errors.New("credential: not found")
	// ErrCredentialInactive is returned when only deactivated rows match
	ErrCredentialInactive = errors.New("credential: deactivated")
)

// Service identifies the external system a credential belongs to.
type Service string

const (
	ServiceCareem  Service = "careem"
	ServiceTalabat Service = "talabat"
	ServicePOS     Service = "pos"
)

// Type identifies the kind of secret within a service.
type Type string

const (
	TypeWebhookSecret Type = "webhook_secret"
	TypeAPIKey        Type = "api_key"
	TypeClientID      Type = "client_id"
	TypeClientSecret  Type = "client_secret"
	TypeAccountID     Type = "account_id"
)

// Credential is one (tenant, service, type) secret. EncryptedValue holds the
// ciphertext; the plaintext exists only transiently in Store.Get callers.
type Credential struct {
	shared.TenantEntity
	Service        Service
	CredentialType Type
	EncryptedValue []byte
	IsActive       bool
}

// New creates an active credential row for a tenant.
func New(tenantID uuid.UUID, service Service, credType Type, encrypted []byte) *Credential {
	return &Credential{
		TenantEntity:   shared.NewTenantEntity(tenantID),
		Service:        service,
		CredentialType: credType,
		EncryptedValue: encrypted,
		IsActive:       true,
	}
}

// Deactivate marks the credential as rotated out.
func (c *Credential) Deactivate() {
	c.IsActive = false
	c.Touch()
}

// Store is the read/write port for tenant secrets. Get returns the decrypted
// value of the active credential; Put encrypts and upserts, deactivating any
// previous active row for the same (service, type).
type Store interface {
	// Get returns the decrypted active secret for the tenant
	Get(ctx context.Context, tenantID uuid.UUID, service Service, credType Type) (string, error)

	// Put encrypts and stores a secret, rotating out the previous one
	Put(ctx context.Context, tenantID uuid.UUID, service Service, credType Type, plaintext string) error

	// Deactivate rotates out the active secret without a replacement
	Deactivate(ctx context.Context, tenantID uuid.UUID, service Service, credType Type) error
}

// Repository defines persistence for credential rows.
type Repository interface {
	// FindActive finds the active credential for (tenant, service, type)
	FindActive(ctx context.Context, tenantID uuid.UUID, service Service, credType Type) (*Credential, error)

	// Save creates or updates a credential row
	Save(ctx context.Context, c *Credential) error

	// DeactivateAll deactivates every active row for (tenant, service, type)
	DeactivateAll(ctx context.Context, tenantID uuid.UUID, service Service, credType Type) error
}
