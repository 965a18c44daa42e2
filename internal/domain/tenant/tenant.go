// Package tenant defines the tenant aggregate and its resolution rules.
//
// Every unit of work in the system is bound to exactly one tenant. Tenants
// are resolved from the request host (subdomain) or an explicit route token,
// and suspended or cancelled tenants reject all new work.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/shared"
)

var (
	// ErrTenantNotFound is returned when no tenant matches the identifier
	ErrTenantNotFound = errors.New("tenant: not found")
	// ErrTenantInactive is returned when the resolved tenant is suspended or cancelled
	ErrTenantInactive = errors.New("tenant: suspended or cancelled")
	// ErrSubdomainTaken is returned when creating a tenant with an existing subdomain
	ErrSubdomainTaken = errors.New("tenant: subdomain already registered")
)

// Status represents the lifecycle status of a tenant account.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// IsValid returns true if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusSuspended, StatusCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// AcceptsWork returns true if the tenant may start new sync work.
// Suspended and cancelled tenants fail closed.
func (s Status) AcceptsWork() bool {
	return s == StatusActive || s == StatusTrial
}

// Tenant is an isolated customer account. All business data is partitioned
// by its ID; the subdomain is the unique public identifier.
type Tenant struct {
	shared.BaseEntity
	Name      string
	Subdomain string
	Status    Status
}

// New creates an active tenant with the given name and subdomain.
func New(name, subdomain string) (*Tenant, error) {
	if name == "" || subdomain == "" {
		return nil, shared.ErrInvalidInput
	}
	return &Tenant{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Subdomain:  subdomain,
		Status:     StatusTrial,
	}, nil
}

// Suspend moves the tenant to suspended; new work is rejected from here on.
func (t *Tenant) Suspend() {
	t.Status = StatusSuspended
	t.Touch()
}

// Activate moves the tenant to active.
func (t *Tenant) Activate() {
	t.Status = StatusActive
	t.Touch()
}

// Cancel marks the account as cancelled. Referenced data is kept.
func (t *Tenant) Cancel() {
	t.Status = StatusCancelled
	t.Touch()
}

// Repository defines persistence for tenants. Tenant rows are the one
// aggregate that is never tenant-scoped themselves.
type Repository interface {
	// FindByID finds a tenant by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)

	// FindBySubdomain finds a tenant by its unique subdomain
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)

	// Save creates or updates a tenant
	Save(ctx context.Context, t *Tenant) error
}

// RequireActive loads the tenant and fails closed unless it accepts work.
// Jobs call this to re-validate the tenant captured at enqueue time.
func RequireActive(ctx context.Context, repo Repository, id uuid.UUID) (*Tenant, error) {
	t, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.AcceptsWork() {
		return nil, ErrTenantInactive
	}
	return t, nil
}
