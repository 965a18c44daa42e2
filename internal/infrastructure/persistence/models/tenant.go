package models

import (
	"github.com/orderbridge/backend/internal/domain/credential"
	"github.com/orderbridge/backend/internal/domain/tenant"
)

// TenantModelRow is the persistence model for the Tenant domain entity.
// Named to avoid clashing with the embedded TenantModel base.
type TenantModelRow struct {
	BaseModel
	Name      string        `gorm:"type:varchar(255);not null"`
	Subdomain string        `gorm:"type:varchar(63);not null;uniqueIndex"`
	Status    tenant.Status `gorm:"type:varchar(20);not null;default:'trial'"`
}

// TableName returns the table name for GORM
func (TenantModelRow) TableName() string {
	return "tenants"
}

// ToDomain converts the persistence model to a domain Tenant
func (m *TenantModelRow) ToDomain() *tenant.Tenant {
	return &tenant.Tenant{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		Subdomain:  m.Subdomain,
		Status:     m.Status,
	}
}

// FromDomain populates the persistence model from a domain Tenant
func (m *TenantModelRow) FromDomain(t *tenant.Tenant) {
	m.FromDomainBaseEntity(t.BaseEntity)
	m.Name = t.Name
	m.Subdomain = t.Subdomain
	m.Status = t.Status
}

// CredentialModel is the persistence model for the Credential domain entity.
// Value holds ciphertext only.
type CredentialModel struct {
	TenantModel
	Service        credential.Service `gorm:"type:varchar(20);not null;index:idx_credentials_lookup,priority:1"`
	CredentialType credential.Type    `gorm:"type:varchar(30);not null;index:idx_credentials_lookup,priority:2"`
	EncryptedValue []byte             `gorm:"type:bytea;not null"`
	IsActive       bool               `gorm:"not null;default:true;index:idx_credentials_lookup,priority:3"`
}

// TableName returns the table name for GORM
func (CredentialModel) TableName() string {
	return "credentials"
}

// ToDomain converts the persistence model to a domain Credential
func (m *CredentialModel) ToDomain() *credential.Credential {
	return &credential.Credential{
		TenantEntity:   m.ToDomainTenantEntity(),
		Service:        m.Service,
		CredentialType: m.CredentialType,
		EncryptedValue: m.EncryptedValue,
		IsActive:       m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain Credential
func (m *CredentialModel) FromDomain(c *credential.Credential) {
	m.FromDomainTenantEntity(c.TenantEntity)
	m.Service = c.Service
	m.CredentialType = c.CredentialType
	m.EncryptedValue = c.EncryptedValue
	m.IsActive = c.IsActive
}
