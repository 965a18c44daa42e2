// Package queue implements a durable database-backed job queue. Jobs survive
// restarts, are claimed atomically by a polling dispatcher, and are executed
// by a channel-fed worker pool. The retry decision lives with the handler:
// a handler returns a Result and the queue only applies it.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType names a registered handler.
type JobType string

const (
	// JobOrderIngest parses an ingested order and prepares its POS receipt
	JobOrderIngest JobType = "order.ingest"
	// JobOrderPOSSync pushes a prepared receipt to the POS backend
	JobOrderPOSSync JobType = "order.pos_sync"
	// JobMenuSync submits a menu snapshot to a delivery platform
	JobMenuSync JobType = "menu.sync"
)

// JobStatus is the queue-side lifecycle of a job.
type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Job is one unit of queued work. TenantID is stored on the row so the
// dispatcher can rebind the tenant context before the handler runs.
type Job struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	JobType  JobType   `gorm:"type:varchar(40);not null"`
	// SubjectID is the order or menu platform link the job operates on
	SubjectID uuid.UUID `gorm:"type:uuid;not null;index"`
	// DedupeKey suppresses duplicate enqueues while a job is live. It is
	// cleared on completion so the same subject can be queued again later.
	DedupeKey *string   `gorm:"type:varchar(200);uniqueIndex"`
	Payload   []byte    `gorm:"type:jsonb"`
	Status    JobStatus `gorm:"type:varchar(20);not null;default:'pending';index:idx_jobs_due,priority:1"`
	Attempt   int       `gorm:"not null;default:0"`
	RunAt     time.Time `gorm:"not null;index:idx_jobs_due,priority:2"`
	LeasedAt  *time.Time
	LastError string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Job) TableName() string {
	return "jobs"
}

// ResultKind is the handler's verdict on an attempt.
type ResultKind int

const (
	// KindDone completes the job
	KindDone ResultKind = iota
	// KindRetry reschedules the job after a delay
	KindRetry
	// KindFail terminates the job
	KindFail
)

// Result is returned by a job handler. The queue applies it verbatim and
// never invents retries of its own.
type Result struct {
	Kind ResultKind
	// Delay is how long to wait before the next attempt (KindRetry)
	Delay time.Duration
	// Reason is recorded as the job's last error (KindRetry, KindFail)
	Reason string
	// CountAttempt controls whether the retry consumes the attempt counter.
	// Rate-limit waits retry without burning budget.
	CountAttempt bool
}

// Done completes the job.
func Done() Result {
	return Result{Kind: KindDone}
}

// Retry reschedules the job after delay, consuming one attempt.
func Retry(delay time.Duration, reason string) Result {
	return Result{Kind: KindRetry, Delay: delay, Reason: reason, CountAttempt: true}
}

// RetryNoCharge reschedules the job after delay without consuming an attempt.
func RetryNoCharge(delay time.Duration, reason string) Result {
	return Result{Kind: KindRetry, Delay: delay, Reason: reason}
}

// Fail terminates the job.
func Fail(reason string) Result {
	return Result{Kind: KindFail, Reason: reason}
}
