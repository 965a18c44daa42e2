package ordersync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/shared"
)

// LogOutcome is the per-attempt outcome recorded in the sync log.
type LogOutcome string

const (
	LogOutcomeSuccess LogOutcome = "success"
	LogOutcomeRetry   LogOutcome = "retry"
	LogOutcomeFailure LogOutcome = "failure"
)

// LogStage names the pipeline stage an attempt belongs to.
type LogStage string

const (
	StageIngest  LogStage = "ingest"
	StagePOSSync LogStage = "pos_sync"
	StageMenu    LogStage = "menu_sync"
)

// SyncLog is one append-only attempt record. Rows are never updated or
// deleted; the log is the audit trail operators read when a sync misbehaves.
type SyncLog struct {
	shared.TenantEntity
	Stage LogStage
	// SubjectID is the order or menu platform link the attempt belongs to
	SubjectID  uuid.UUID
	Attempt    int
	Outcome    LogOutcome
	Detail     string
	DurationMS int64
}

// NewSyncLog records one attempt.
func NewSyncLog(tenantID uuid.UUID, stage LogStage, subjectID uuid.UUID, attempt int, outcome LogOutcome, detail string, took time.Duration) *SyncLog {
	return &SyncLog{
		TenantEntity: shared.NewTenantEntity(tenantID),
		Stage:        stage,
		SubjectID:    subjectID,
		Attempt:      attempt,
		Outcome:      outcome,
		Detail:       detail,
		DurationMS:   took.Milliseconds(),
	}
}

// SyncLogRepository defines append and read access to the sync log.
type SyncLogRepository interface {
	// Append inserts an attempt record
	Append(ctx context.Context, entry *SyncLog) error

	// FindBySubject lists attempts for a subject within the bound tenant,
	// newest first
	FindBySubject(ctx context.Context, subjectID uuid.UUID, limit int) ([]SyncLog, error)
}

// WebhookLog is one received webhook delivery, recorded before any business
// handling so every delivery is accounted for even when processing fails.
type WebhookLog struct {
	shared.TenantEntity
	Platform   string
	Kind       string
	RemoteAddr string
	StatusCode int
	Accepted   bool
	Error      string
	Payload    []byte
	BodySize   int
}

// WebhookLogRepository defines append access to the webhook audit log.
type WebhookLogRepository interface {
	// Append inserts a delivery record
	Append(ctx context.Context, entry *WebhookLog) error

	// FindRecent lists recent deliveries for the bound tenant, newest first
	FindRecent(ctx context.Context, limit int) ([]WebhookLog, error)
}
