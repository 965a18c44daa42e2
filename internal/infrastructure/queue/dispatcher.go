package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/infrastructure/logger"
)

// Handler executes one job attempt and returns the verdict.
type Handler func(ctx context.Context, job *Job) Result

// FailureHook marks a job's subject terminally failed after its handler
// panicked. The handler never got to write a terminal state itself, so
// without the hook the subject would sit in an in-flight status forever.
type FailureHook func(ctx context.Context, job *Job, reason string)

// Config holds dispatcher configuration
type Config struct {
	Workers      int
	BatchSize    int
	PollInterval time.Duration
	LeaseTimeout time.Duration
}

// DefaultConfig returns default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		Workers:      8,
		BatchSize:    50,
		PollInterval: 2 * time.Second,
		LeaseTimeout: 5 * time.Minute,
	}
}

// Dispatcher polls the jobs table for due work and fans it out to a worker
// pool. Before a handler runs, the job's stored tenant is rebound into the
// context so tenant scoping applies inside jobs exactly as it does inside
// requests.
type Dispatcher struct {
	repo         *Repository
	config       Config
	logger       *zap.Logger
	handlers     map[JobType]Handler
	failureHooks map[JobType]FailureHook
	observer     Observer

	jobs   chan Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
}

// Observer receives job lifecycle notifications, used for metrics.
type Observer interface {
	JobStarted(jobType string)
	JobFinished(jobType string, outcome string, took time.Duration)
}

// NewDispatcher creates a dispatcher
func NewDispatcher(repo *Repository, config Config, log *zap.Logger) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.LeaseTimeout <= 0 {
		config.LeaseTimeout = DefaultConfig().LeaseTimeout
	}
	return &Dispatcher{
		repo:         repo,
		config:       config,
		logger:       log.Named("queue"),
		handlers:     make(map[JobType]Handler),
		failureHooks: make(map[JobType]FailureHook),
		jobs:         make(chan Job, config.BatchSize),
	}
}

// Register binds a handler to a job type. Registering twice panics: two
// handlers racing for one type is a wiring bug.
func (d *Dispatcher) Register(jobType JobType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[jobType]; exists {
		panic(fmt.Sprintf("queue: handler already registered for %s", jobType))
	}
	d.handlers[jobType] = h
}

// RegisterFailureHook binds a terminal-failure hook to a job type. It runs
// only when the type's handler panics.
func (d *Dispatcher) RegisterFailureHook(jobType JobType, h FailureHook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.failureHooks[jobType]; exists {
		panic(fmt.Sprintf("queue: failure hook already registered for %s", jobType))
	}
	d.failureHooks[jobType] = h
}

// SetObserver attaches a lifecycle observer
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// Start launches the poll loop and worker pool
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.workerLoop(ctx)
	}

	d.wg.Add(1)
	go d.pollLoop(ctx)

	d.logger.Info("job dispatcher started",
		zap.Int("workers", d.config.Workers),
		zap.Int("batch_size", d.config.BatchSize),
		zap.Duration("poll_interval", d.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the dispatcher, waiting for in-flight jobs
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("job dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

func (d *Dispatcher) pollOnce(ctx context.Context) {
	jobs, err := d.repo.ClaimDue(ctx, d.config.BatchSize, d.config.LeaseTimeout)
	if err != nil {
		d.logger.Error("failed to claim due jobs", zap.Error(err))
		return
	}
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return
		case d.jobs <- job:
		}
	}
}

func (d *Dispatcher) workerLoop(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			d.runJob(ctx, job)
		}
	}
}

func (d *Dispatcher) runJob(ctx context.Context, job Job) {
	d.mu.RLock()
	handler, ok := d.handlers[job.JobType]
	d.mu.RUnlock()
	if !ok {
		d.logger.Error("no handler registered for job type",
			zap.String("job_type", string(job.JobType)),
			zap.String("job_id", job.ID.String()),
		)
		d.applyResult(ctx, &job, Fail("no handler registered"), time.Now())
		return
	}

	// Rebind the job's tenant into the context
	jobCtx, _ := logger.WithTenantID(logger.WithContext(ctx, d.logger), d.logger, job.TenantID.String())

	start := time.Now()
	if d.observer != nil {
		d.observer.JobStarted(string(job.JobType))
	}

	res, panicked := d.runSafely(jobCtx, handler, &job)
	if panicked {
		d.runFailureHook(jobCtx, &job, res.Reason)
	}
	d.applyResult(jobCtx, &job, res, start)
}

// runSafely converts a handler panic into a terminal failure instead of
// taking down the worker pool.
func (d *Dispatcher) runSafely(ctx context.Context, handler Handler, job *Job) (res Result, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("job handler panicked",
				zap.String("job_type", string(job.JobType)),
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
				zap.Stack("stacktrace"),
			)
			res = Fail(fmt.Sprintf("panic: %v", r))
			panicked = true
		}
	}()
	return handler(ctx, job), false
}

// runFailureHook gives the job's owner a chance to write the subject's
// terminal state after a panic. A hook panicking too is swallowed; the job
// row itself still fails via applyResult.
func (d *Dispatcher) runFailureHook(ctx context.Context, job *Job, reason string) {
	d.mu.RLock()
	hook, ok := d.failureHooks[job.JobType]
	d.mu.RUnlock()
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("failure hook panicked",
				zap.String("job_type", string(job.JobType)),
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
			)
		}
	}()
	hook(ctx, job, reason)
}

func (d *Dispatcher) applyResult(ctx context.Context, job *Job, res Result, start time.Time) {
	took := time.Since(start)
	outcome := "done"
	switch res.Kind {
	case KindRetry:
		outcome = "retry"
	case KindFail:
		outcome = "failed"
	}

	if err := d.repo.Apply(ctx, job, res); err != nil {
		d.logger.Error("failed to apply job result",
			zap.String("job_id", job.ID.String()),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}
	if d.observer != nil {
		d.observer.JobFinished(string(job.JobType), outcome, took)
	}

	fields := []zap.Field{
		zap.String("job_type", string(job.JobType)),
		zap.String("job_id", job.ID.String()),
		zap.String("tenant_id", job.TenantID.String()),
		zap.Int("attempt", job.Attempt),
		zap.Duration("took", took),
	}
	switch res.Kind {
	case KindDone:
		d.logger.Debug("job completed", fields...)
	case KindRetry:
		d.logger.Warn("job scheduled for retry",
			append(fields, zap.Duration("delay", res.Delay), zap.String("reason", res.Reason))...)
	case KindFail:
		d.logger.Error("job failed terminally",
			append(fields, zap.String("reason", res.Reason))...)
	}
}
