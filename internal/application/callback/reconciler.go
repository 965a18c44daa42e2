// Package callback reconciles asynchronous platform validation callbacks
// with the menu sync records that await them.
package callback

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/catalog"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/metrics"
)

// ErrUnmatchedCallback is returned when no sync record awaits the
// correlation id. Nothing is mutated; the HTTP layer answers 404.
var ErrUnmatchedCallback = errors.New("callback: no sync record matches correlation id")

// Reconciler matches a callback's correlation id to its menu platform link
// and applies the reported outcome.
type Reconciler struct {
	registry platform.Registry
	links    catalog.LinkRepository
	syncLogs ordersync.SyncLogRepository
	metrics  *metrics.Metrics
}

// NewReconciler creates a Reconciler
func NewReconciler(
	registry platform.Registry,
	links catalog.LinkRepository,
	syncLogs ordersync.SyncLogRepository,
	m *metrics.Metrics,
) *Reconciler {
	return &Reconciler{
		registry: registry,
		links:    links,
		syncLogs: syncLogs,
		metrics:  m,
	}
}

// HandleCallback parses and applies one callback delivery. Callbacks carry
// no tenant identity; the correlation lookup recovers the tenant, which is
// then rebound into the context before any scoped write.
func (r *Reconciler) HandleCallback(ctx context.Context, code platform.Code, body []byte) error {
	adapter, err := r.registry.Get(code)
	if err != nil {
		return err
	}
	result, err := adapter.ParseCallback(body)
	if err != nil {
		r.record(code, "invalid")
		return err
	}

	link, err := r.links.FindByCorrelationID(ctx, result.CorrelationID)
	if err != nil {
		if errors.Is(err, catalog.ErrLinkNotFound) {
			r.record(code, "unmatched")
			logger.L(ctx).Warn("callback matched no sync record",
				zap.String("platform", code.String()),
				zap.String("correlation_id", result.CorrelationID),
			)
			return ErrUnmatchedCallback
		}
		return err
	}

	ctx, log := logger.WithTenantID(ctx, logger.FromContext(ctx), link.TenantID.String())

	switch result.Status {
	case platform.CallbackStatusSuccess:
		link.MarkSynced("", time.Now())
		if err := r.links.Save(ctx, link); err != nil {
			return err
		}
		r.recordTransition(code, catalog.SyncStatusSynced)
		r.appendLog(ctx, link, ordersync.LogOutcomeSuccess, result.Detail)
		log.Info("menu sync confirmed by platform",
			zap.String("link_id", link.ID.String()),
			zap.String("correlation_id", result.CorrelationID),
		)

	case platform.CallbackStatusFailure:
		link.MarkFailed(result.Detail)
		if err := r.links.Save(ctx, link); err != nil {
			return err
		}
		r.recordTransition(code, catalog.SyncStatusFailed)
		r.appendLog(ctx, link, ordersync.LogOutcomeFailure, result.Detail)
		log.Warn("menu sync rejected by platform",
			zap.String("link_id", link.ID.String()),
			zap.String("correlation_id", result.CorrelationID),
			zap.String("detail", result.Detail),
		)

	default:
		// in_progress and unknown leave the link untouched; a later
		// callback delivers the terminal outcome
		log.Info("menu sync still validating",
			zap.String("link_id", link.ID.String()),
			zap.String("correlation_id", result.CorrelationID),
			zap.String("status", string(result.Status)),
		)
	}

	r.record(code, "applied")
	return nil
}

func (r *Reconciler) appendLog(ctx context.Context, link *catalog.MenuPlatformLink, outcome ordersync.LogOutcome, detail string) {
	entry := ordersync.NewSyncLog(link.TenantID, ordersync.StageMenu, link.ID, link.AttemptCount, outcome, detail, 0)
	if err := r.syncLogs.Append(ctx, entry); err != nil {
		logger.L(ctx).Warn("failed to append sync log",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) record(code platform.Code, outcome string) {
	if r.metrics != nil {
		r.metrics.RecordCallback(code.String(), outcome)
	}
}

func (r *Reconciler) recordTransition(code platform.Code, to catalog.SyncStatus) {
	if r.metrics != nil {
		r.metrics.RecordMenuSyncTransition(code.String(), to.String())
	}
}
