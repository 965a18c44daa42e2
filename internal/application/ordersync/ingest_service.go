// Package ordersync implements the two-stage order pipeline: webhook
// ingestion followed by POS submission, both executed as queued jobs.
package ordersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/metrics"
	"github.com/orderbridge/backend/internal/infrastructure/queue"
)

// IngestService accepts platform order webhooks and runs the first pipeline
// stage: parsing the stored payload and translating it into a POS receipt
// through the tenant's product mappings.
type IngestService struct {
	registry platform.Registry
	orders   ordersync.Repository
	mappings ordersync.MappingRepository
	syncLogs ordersync.SyncLogRepository
	jobs     *queue.Repository
	metrics  *metrics.Metrics
}

// NewIngestService creates an IngestService
func NewIngestService(
	registry platform.Registry,
	orders ordersync.Repository,
	mappings ordersync.MappingRepository,
	syncLogs ordersync.SyncLogRepository,
	jobs *queue.Repository,
	m *metrics.Metrics,
) *IngestService {
	return &IngestService{
		registry: registry,
		orders:   orders,
		mappings: mappings,
		syncLogs: syncLogs,
		jobs:     jobs,
		metrics:  m,
	}
}

// ---------------------------------------------------------------------------
// Webhook acceptance
// ---------------------------------------------------------------------------

// AcceptWebhook verifies and records an inbound order webhook, then queues
// the ingest job. The order's natural key makes redelivery idempotent: a
// duplicate delivery returns the already-ingested order and queues nothing.
func (s *IngestService) AcceptWebhook(ctx context.Context, tenantID uuid.UUID, code platform.Code, header http.Header, body []byte) (*ordersync.Order, error) {
	adapter, err := s.registry.Get(code)
	if err != nil {
		return nil, err
	}
	if err := adapter.VerifyWebhook(ctx, tenantID, header, body); err != nil {
		s.recordIngested(code, "rejected")
		return nil, err
	}

	// Parse up front only to obtain the natural key; the ingest job re-parses
	// from the stored payload.
	incoming, err := adapter.ParseOrder(body)
	if err != nil {
		s.recordIngested(code, "invalid")
		return nil, err
	}

	order := ordersync.NewOrder(tenantID, code, incoming.PlatformOrderID, body)
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, ordersync.ErrDuplicateOrder) {
			existing, findErr := s.orders.FindByNaturalKey(ctx, code, incoming.PlatformOrderID)
			if findErr != nil {
				return nil, findErr
			}
			s.recordIngested(code, "duplicate")
			logger.L(ctx).Info("duplicate order webhook ignored",
				zap.String("platform", code.String()),
				zap.String("platform_order_id", incoming.PlatformOrderID),
			)
			return existing, nil
		}
		return nil, err
	}

	if err := s.jobs.Enqueue(ctx, tenantID, queue.JobOrderIngest, order.ID, queue.EnqueueOptions{
		DedupeKey: fmt.Sprintf("%s:%s", queue.JobOrderIngest, order.ID),
	}); err != nil {
		return nil, err
	}

	s.recordIngested(code, "accepted")
	logger.L(ctx).Info("order accepted",
		zap.String("platform", code.String()),
		zap.String("platform_order_id", incoming.PlatformOrderID),
		zap.String("order_id", order.ID.String()),
	)
	return order, nil
}

// ---------------------------------------------------------------------------
// Stage one: parse and map
// ---------------------------------------------------------------------------

// HandleIngest is the order.ingest job handler. It re-parses the stored
// payload, maps every platform SKU to a POS product, and queues the POS
// submission with the prepared receipt as the job payload.
func (s *IngestService) HandleIngest(ctx context.Context, job *queue.Job) queue.Result {
	start := time.Now()

	order, err := s.orders.FindByID(ctx, job.SubjectID)
	if err != nil {
		if errors.Is(err, ordersync.ErrOrderNotFound) {
			return queue.Fail("order not found")
		}
		return queue.Retry(30*time.Second, err.Error())
	}
	if order.Status.IsTerminal() {
		return queue.Done()
	}

	adapter, err := s.registry.Get(order.Platform)
	if err != nil {
		return s.failOrder(ctx, order, job.Attempt, start, err.Error())
	}
	incoming, err := adapter.ParseOrder(order.RawPayload)
	if err != nil {
		// The payload is immutable, so a parse failure never heals
		return s.failOrder(ctx, order, job.Attempt, start, err.Error())
	}

	receipt, err := s.buildReceipt(ctx, order, incoming)
	if err != nil {
		class, _ := ordersync.Classify(err)
		if class == ordersync.ClassPermanent {
			return s.failOrder(ctx, order, job.Attempt, start, err.Error())
		}
		return queue.Retry(30*time.Second, err.Error())
	}

	payload, err := json.Marshal(receipt)
	if err != nil {
		return s.failOrder(ctx, order, job.Attempt, start, fmt.Sprintf("marshal receipt: %v", err))
	}
	if err := s.jobs.Enqueue(ctx, order.TenantID, queue.JobOrderPOSSync, order.ID, queue.EnqueueOptions{
		DedupeKey: fmt.Sprintf("%s:%s", queue.JobOrderPOSSync, order.ID),
		Payload:   payload,
	}); err != nil {
		return queue.Retry(30*time.Second, err.Error())
	}

	s.appendLog(ctx, order, ordersync.StageIngest, job.Attempt, ordersync.LogOutcomeSuccess, "", time.Since(start))
	return queue.Done()
}

// HandleIngestFailure is the order.ingest terminal-failure hook, run when
// the handler panics. The order would otherwise sit at pending with no job
// left to move it.
func (s *IngestService) HandleIngestFailure(ctx context.Context, job *queue.Job, reason string) {
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
	s.appendLog(ctx, order, ordersync.StageIngest, job.Attempt, ordersync.LogOutcomeFailure, reason, 0)
}

// buildReceipt translates an incoming order through the tenant's product
// mappings. Any unmapped SKU aborts the whole order: a partial receipt would
// silently drop lines.
func (s *IngestService) buildReceipt(ctx context.Context, order *ordersync.Order, incoming *platform.IncomingOrder) (*ordersync.Receipt, error) {
	receipt := &ordersync.Receipt{
		ExternalRef:   order.PlatformOrderID,
		Source:        order.Platform.String(),
		CustomerName:  incoming.CustomerName,
		CustomerPhone: incoming.CustomerPhone,
		Note:          incoming.Note,
		Total:         incoming.TotalAmount,
		Currency:      incoming.Currency,
		PlacedAt:      incoming.PlacedAt,
	}
	for _, item := range incoming.Items {
		mapping, err := s.mappings.FindByPlatformSKU(ctx, order.Platform.String(), item.PlatformSKU)
		if err != nil {
			if errors.Is(err, ordersync.ErrMappingNotFound) {
				return nil, fmt.Errorf("%w: sku %q", ordersync.ErrMappingNotFound, item.PlatformSKU)
			}
			return nil, err
		}
		receipt.Lines = append(receipt.Lines, ordersync.ReceiptLine{
			POSProductID: mapping.POSProductID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Modifiers:    item.Modifiers,
		})
	}
	return receipt, nil
}

// ---------------------------------------------------------------------------
// Manual retry
// ---------------------------------------------------------------------------

// RetryOrder re-enters a failed order into the pipeline from stage one, so a
// corrected product mapping is picked up on the rerun.
func (s *IngestService) RetryOrder(ctx context.Context, orderID uuid.UUID) (*ordersync.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.ResetForManualRetry(); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}
	if err := s.jobs.Enqueue(ctx, order.TenantID, queue.JobOrderIngest, order.ID, queue.EnqueueOptions{
		DedupeKey: fmt.Sprintf("%s:%s", queue.JobOrderIngest, order.ID),
	}); err != nil {
		return nil, err
	}
	logger.L(ctx).Info("order queued for manual retry", zap.String("order_id", order.ID.String()))
	return order, nil
}

// ListFailed lists failed orders for the bound tenant
func (s *IngestService) ListFailed(ctx context.Context, limit int) ([]ordersync.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.orders.FindFailed(ctx, limit)
}

// GetOrder returns one order with its attempt history
func (s *IngestService) GetOrder(ctx context.Context, orderID uuid.UUID) (*ordersync.Order, []ordersync.SyncLog, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.syncLogs.FindBySubject(ctx, orderID, 50)
	if err != nil {
		return nil, nil, err
	}
	return order, history, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *IngestService) failOrder(ctx context.Context, order *ordersync.Order, attempt int, start time.Time, reason string) queue.Result {
	order.MarkFailed(reason)
	if err := s.orders.Save(ctx, order); err != nil {
		return queue.Retry(30*time.Second, err.Error())
	}
	s.appendLog(ctx, order, ordersync.StageIngest, attempt, ordersync.LogOutcomeFailure, reason, time.Since(start))
	s.recordIngested(order.Platform, "failed")
	return queue.Fail(reason)
}

func (s *IngestService) appendLog(ctx context.Context, order *ordersync.Order, stage ordersync.LogStage, attempt int, outcome ordersync.LogOutcome, detail string, took time.Duration) {
	entry := ordersync.NewSyncLog(order.TenantID, stage, order.ID, attempt, outcome, detail, took)
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		logger.L(ctx).Warn("failed to append sync log",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *IngestService) recordIngested(code platform.Code, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordOrderIngested(code.String(), outcome)
	}
}
