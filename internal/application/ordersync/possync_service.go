package ordersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/queue"
)

// POSSyncService runs the second pipeline stage: submitting the prepared
// receipt to the tenant's POS backend, with classification-driven retries.
type POSSyncService struct {
	orders   ordersync.Repository
	records  ordersync.POSSyncRepository
	syncLogs ordersync.SyncLogRepository
	tenants  tenant.Repository
	gateway  ordersync.POSGateway
	policy   config.SyncConfig
}

// NewPOSSyncService creates a POSSyncService
func NewPOSSyncService(
	orders ordersync.Repository,
	records ordersync.POSSyncRepository,
	syncLogs ordersync.SyncLogRepository,
	tenants tenant.Repository,
	gateway ordersync.POSGateway,
	policy config.SyncConfig,
) *POSSyncService {
	return &POSSyncService{
		orders:   orders,
		records:  records,
		syncLogs: syncLogs,
		tenants:  tenants,
		gateway:  gateway,
		policy:   policy,
	}
}

// HandlePOSSync is the order.pos_sync job handler. The receipt travels in
// the job payload; each attempt revalidates the tenant, submits, and turns
// the outcome into a queue verdict. The handler owns the retry decision.
func (s *POSSyncService) HandlePOSSync(ctx context.Context, job *queue.Job) queue.Result {
	start := time.Now()

	order, err := s.orders.FindByID(ctx, job.SubjectID)
	if err != nil {
		if errors.Is(err, ordersync.ErrOrderNotFound) {
			return queue.Fail("order not found")
		}
		return queue.Retry(s.policy.OrderRetryBase, err.Error())
	}
	if order.Status == ordersync.StatusSynced {
		return queue.Done()
	}
	if order.Status == ordersync.StatusFailed {
		// Terminal until an operator resets it
		return queue.Done()
	}

	if _, err := tenant.RequireActive(ctx, s.tenants, order.TenantID); err != nil {
		if errors.Is(err, tenant.ErrTenantInactive) {
			return s.fail(ctx, order, job.Attempt, start, "tenant suspended or cancelled")
		}
		return queue.Retry(s.policy.OrderRetryBase, err.Error())
	}

	var receipt ordersync.Receipt
	if err := json.Unmarshal(job.Payload, &receipt); err != nil {
		return s.fail(ctx, order, job.Attempt, start, fmt.Sprintf("bad receipt payload: %v", err))
	}

	charged := false
	switch order.Status {
	case ordersync.StatusPending:
		if err := order.MarkProcessing(); err != nil {
			return queue.Retry(s.policy.OrderRetryBase, err.Error())
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return queue.Retry(s.policy.OrderRetryBase, err.Error())
		}
		charged = true
	case ordersync.StatusProcessing:
		// A previous worker died mid-attempt and the lease expired. The
		// attempt is already charged and the POS submit is idempotent via
		// external_ref, so resume from here instead of stalling forever.
		logger.L(ctx).Warn("resuming order left in processing state",
			zap.String("order_id", order.ID.String()),
			zap.Int("attempt", order.AttemptCount),
		)
	default:
		return queue.Fail(fmt.Sprintf("order in unexpected state %q", order.Status))
	}

	result, err := s.gateway.SubmitReceipt(ctx, order.TenantID, &receipt)
	if err != nil {
		return s.handleSubmitError(ctx, order, start, charged, err)
	}

	if err := order.MarkSynced(); err != nil {
		return queue.Retry(s.policy.OrderRetryBase, err.Error())
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return queue.Retry(s.policy.OrderRetryBase, err.Error())
	}
	s.saveRecord(ctx, order, result.POSReceiptID)
	s.appendLog(ctx, order, ordersync.StagePOSSync, order.AttemptCount, ordersync.LogOutcomeSuccess, result.POSReceiptID, time.Since(start))

	logger.L(ctx).Info("order synced to pos",
		zap.String("order_id", order.ID.String()),
		zap.String("pos_receipt_id", result.POSReceiptID),
		zap.Int("attempts", order.AttemptCount),
	)
	return queue.Done()
}

// HandleSyncFailure is the order.pos_sync terminal-failure hook, run when
// the handler panics. It converges the order to failed so nothing is left
// mid-pipeline; a crash racing a successful submit loses to MarkSynced.
func (s *POSSyncService) HandleSyncFailure(ctx context.Context, job *queue.Job, reason string) {
	order, err := s.orders.FindByID(ctx, job.SubjectID)
	if err != nil {
		logger.L(ctx).Error("failed to load order for terminal failure",
			zap.String("order_id", job.SubjectID.String()),
			zap.Error(err),
		)
		return
	}
	if order.Status.IsTerminal() {
		return
	}
	order.MarkFailed(reason)
	if err := s.orders.Save(ctx, order); err != nil {
		logger.L(ctx).Error("failed to mark order failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.appendLog(ctx, order, ordersync.StagePOSSync, job.Attempt, ordersync.LogOutcomeFailure, reason, 0)
}

func (s *POSSyncService) handleSubmitError(ctx context.Context, order *ordersync.Order, start time.Time, charged bool, submitErr error) queue.Result {
	class, retryAfter := ordersync.Classify(submitErr)

	switch class {
	case ordersync.ClassPermanent:
		return s.fail(ctx, order, order.AttemptCount, start, submitErr.Error())

	case ordersync.ClassRateLimit:
		// Rate limiting is the POS pushing back, not the attempt failing, so
		// the retry budget is not charged.
		delay := retryAfter
		if delay <= 0 {
			delay = s.policy.OrderRetryBase
		}
		order.RequeueForRetry(submitErr.Error())
		if charged {
			// MarkProcessing charged it; the wait hands it back. A resumed
			// attempt keeps its charge from the interrupted worker.
			order.AttemptCount--
		}
		if err := s.orders.Save(ctx, order); err != nil {
			return queue.Retry(s.policy.OrderRetryBase, err.Error())
		}
		s.appendLog(ctx, order, ordersync.StagePOSSync, order.AttemptCount, ordersync.LogOutcomeRetry, submitErr.Error(), time.Since(start))
		return queue.RetryNoCharge(delay, submitErr.Error())

	default:
		if order.AttemptCount >= s.policy.OrderMaxRetries {
			return s.fail(ctx, order, order.AttemptCount, start,
				fmt.Sprintf("retry budget exhausted after %d attempts: %v", order.AttemptCount, submitErr))
		}
		order.RequeueForRetry(submitErr.Error())
		if err := s.orders.Save(ctx, order); err != nil {
			return queue.Retry(s.policy.OrderRetryBase, err.Error())
		}
		delay := s.backoff(order.AttemptCount)
		s.appendLog(ctx, order, ordersync.StagePOSSync, order.AttemptCount, ordersync.LogOutcomeRetry, submitErr.Error(), time.Since(start))
		return queue.Retry(delay, submitErr.Error())
	}
}

// backoff doubles the base delay per consumed attempt, capped at the ceiling
func (s *POSSyncService) backoff(attempt int) time.Duration {
	delay := s.policy.OrderRetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.policy.OrderRetryCeiling {
			return s.policy.OrderRetryCeiling
		}
	}
	if delay > s.policy.OrderRetryCeiling {
		return s.policy.OrderRetryCeiling
	}
	return delay
}

func (s *POSSyncService) fail(ctx context.Context, order *ordersync.Order, attempt int, start time.Time, reason string) queue.Result {
	order.MarkFailed(reason)
	if err := s.orders.Save(ctx, order); err != nil {
		return queue.Retry(s.policy.OrderRetryBase, err.Error())
	}
	s.appendLog(ctx, order, ordersync.StagePOSSync, attempt, ordersync.LogOutcomeFailure, reason, time.Since(start))
	logger.L(ctx).Error("order failed terminally",
		zap.String("order_id", order.ID.String()),
		zap.String("reason", reason),
	)
	return queue.Fail(reason)
}

func (s *POSSyncService) saveRecord(ctx context.Context, order *ordersync.Order, posReceiptID string) {
	record, err := s.records.FindByOrderID(ctx, order.ID)
	if err != nil {
		if !errors.Is(err, ordersync.ErrSyncRecordNotFound) {
			logger.L(ctx).Warn("failed to load pos sync record", zap.Error(err))
			return
		}
		record = ordersync.NewPOSSyncRecord(order.TenantID, order.ID)
	}
	record.MarkSynced(posReceiptID, time.Now())
	if err := s.records.Save(ctx, record); err != nil {
		logger.L(ctx).Warn("failed to save pos sync record",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *POSSyncService) appendLog(ctx context.Context, order *ordersync.Order, stage ordersync.LogStage, attempt int, outcome ordersync.LogOutcome, detail string, took time.Duration) {
	entry := ordersync.NewSyncLog(order.TenantID, stage, order.ID, attempt, outcome, detail, took)
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		logger.L(ctx).Warn("failed to append sync log",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
