package models

import (
	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/ordersync"
)

// SyncLogModel is the persistence model for SyncLog. Append-only.
type SyncLogModel struct {
	TenantModel
	Stage      ordersync.LogStage   `gorm:"type:varchar(20);not null;index:idx_sync_logs_subject,priority:1"`
	SubjectID  uuid.UUID            `gorm:"type:uuid;not null;index:idx_sync_logs_subject,priority:2"`
	Attempt    int                  `gorm:"not null"`
	Outcome    ordersync.LogOutcome `gorm:"type:varchar(20);not null"`
	Detail     string               `gorm:"type:text"`
	DurationMS int64                `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *ordersync.SyncLog {
	return &ordersync.SyncLog{
		TenantEntity: m.ToDomainTenantEntity(),
		Stage:        m.Stage,
		SubjectID:    m.SubjectID,
		Attempt:      m.Attempt,
		Outcome:      m.Outcome,
		Detail:       m.Detail,
		DurationMS:   m.DurationMS,
	}
}

// FromDomain populates the persistence model from a domain SyncLog
func (m *SyncLogModel) FromDomain(l *ordersync.SyncLog) {
	m.FromDomainTenantEntity(l.TenantEntity)
	m.Stage = l.Stage
	m.SubjectID = l.SubjectID
	m.Attempt = l.Attempt
	m.Outcome = l.Outcome
	m.Detail = l.Detail
	m.DurationMS = l.DurationMS
}

// WebhookLogModel is the persistence model for WebhookLog. Append-only.
type WebhookLogModel struct {
	TenantModel
	Platform   string `gorm:"type:varchar(20);not null;index"`
	Kind       string `gorm:"type:varchar(20);not null"`
	RemoteAddr string `gorm:"type:varchar(64)"`
	StatusCode int    `gorm:"not null"`
	Accepted   bool   `gorm:"not null;default:false"`
	Error      string `gorm:"type:text"`
	Payload    []byte `gorm:"type:bytea"`
	BodySize   int    `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (WebhookLogModel) TableName() string {
	return "webhook_logs"
}

// ToDomain converts the persistence model to a domain WebhookLog
func (m *WebhookLogModel) ToDomain() *ordersync.WebhookLog {
	return &ordersync.WebhookLog{
		TenantEntity: m.ToDomainTenantEntity(),
		Platform:     m.Platform,
		Kind:         m.Kind,
		RemoteAddr:   m.RemoteAddr,
		StatusCode:   m.StatusCode,
		Accepted:     m.Accepted,
		Error:        m.Error,
		Payload:      m.Payload,
		BodySize:     m.BodySize,
	}
}

// FromDomain populates the persistence model from a domain WebhookLog
func (m *WebhookLogModel) FromDomain(l *ordersync.WebhookLog) {
	m.FromDomainTenantEntity(l.TenantEntity)
	m.Platform = l.Platform
	m.Kind = l.Kind
	m.RemoteAddr = l.RemoteAddr
	m.StatusCode = l.StatusCode
	m.Accepted = l.Accepted
	m.Error = l.Error
	m.Payload = l.Payload
	m.BodySize = l.BodySize
}
