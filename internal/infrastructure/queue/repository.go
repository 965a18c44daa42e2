package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrJobNotFound is returned when no job matches the lookup
var ErrJobNotFound = errors.New("queue: job not found")

// Repository persists jobs. It operates on the unscoped DB: the jobs table
// is system-owned and carries tenant_id as data, not as an isolation scope.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a job repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EnqueueOptions controls scheduling of a new job
type EnqueueOptions struct {
	// Delay postpones the first attempt
	Delay time.Duration
	// DedupeKey suppresses the enqueue when a live job carries the same key
	DedupeKey string
	// Payload is an optional JSON document passed to the handler
	Payload []byte
}

// Enqueue inserts a job. With a DedupeKey set, a conflicting live job makes
// the insert a no-op, which is how duplicate webhook deliveries and racing
// sync triggers collapse into one run.
func (r *Repository) Enqueue(ctx context.Context, tenantID uuid.UUID, jobType JobType, subjectID uuid.UUID, opts EnqueueOptions) error {
	now := time.Now()
	job := &Job{
		ID:        uuid.New(),
		TenantID:  tenantID,
		JobType:   jobType,
		SubjectID: subjectID,
		Payload:   opts.Payload,
		Status:    JobStatusPending,
		RunAt:     now.Add(opts.Delay),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if opts.DedupeKey != "" {
		key := opts.DedupeKey
		job.DedupeKey = &key
	}

	tx := r.db.WithContext(ctx)
	if job.DedupeKey != nil {
		tx = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedupe_key"}},
			DoNothing: true,
		})
	}
	if err := tx.Create(job).Error; err != nil {
		return fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return nil
}

// ClaimDue atomically claims up to limit due jobs, moving them to running.
// Jobs whose lease expired are reclaimed as well so a crashed worker does
// not strand them.
func (r *Repository) ClaimDue(ctx context.Context, limit int, leaseTimeout time.Duration) ([]Job, error) {
	now := time.Now()
	staleLease := now.Add(-leaseTimeout)

	var jobs []Job
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? AND run_at <= ?) OR (status = ? AND leased_at < ?)",
				JobStatusPending, now, JobStatusRunning, staleLease).
			Order("run_at").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}
		if len(jobs) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, len(jobs))
		for i := range jobs {
			ids[i] = jobs[i].ID
		}
		if err := tx.Model(&Job{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     JobStatusRunning,
				"leased_at":  now,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		for i := range jobs {
			jobs[i].Status = JobStatusRunning
			jobs[i].LeasedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim due jobs: %w", err)
	}
	return jobs, nil
}

// Apply records a handler result on a claimed job.
func (r *Repository) Apply(ctx context.Context, job *Job, res Result) error {
	now := time.Now()
	updates := map[string]interface{}{
		"updated_at": now,
		"leased_at":  nil,
	}

	switch res.Kind {
	case KindDone:
		updates["status"] = JobStatusDone
		updates["dedupe_key"] = nil
		updates["last_error"] = ""
	case KindRetry:
		updates["status"] = JobStatusPending
		updates["run_at"] = now.Add(res.Delay)
		updates["last_error"] = res.Reason
		if res.CountAttempt {
			updates["attempt"] = gorm.Expr("attempt + 1")
		}
	case KindFail:
		updates["status"] = JobStatusFailed
		updates["dedupe_key"] = nil
		updates["last_error"] = res.Reason
	}

	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", job.ID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("apply job result: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FindByID finds a job by id
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var job Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

// DeleteCompletedBefore removes done jobs older than the cutoff. Failed jobs
// are kept for inspection.
func (r *Repository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", JobStatusDone, cutoff).
		Delete(&Job{})
	return result.RowsAffected, result.Error
}

// CountByStatus returns job counts grouped by status for monitoring
func (r *Repository) CountByStatus(ctx context.Context) (map[JobStatus]int64, error) {
	type row struct {
		Status JobStatus
		N      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&Job{}).
		Select("status, count(*) as n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[JobStatus]int64, len(rows))
	for _, rr := range rows {
		counts[rr.Status] = rr.N
	}
	return counts, nil
}
