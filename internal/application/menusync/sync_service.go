// Package menusync implements the menu catalog sync pipeline: snapshot a
// tenant's menu tree, submit it to a delivery platform, and wait for the
// platform's asynchronous validation callback.
package menusync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderbridge/backend/internal/domain/catalog"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/tenant"
	"github.com/orderbridge/backend/internal/infrastructure/config"
	"github.com/orderbridge/backend/internal/infrastructure/logger"
	"github.com/orderbridge/backend/internal/infrastructure/metrics"
	"github.com/orderbridge/backend/internal/infrastructure/queue"
)

const defaultCurrency = "AED"

// SyncService drives menu platform links through their state machine. A sync
// run is one queued job; retries reuse the job, and the terminal transition
// to synced happens in the callback reconciler, not here.
type SyncService struct {
	registry platform.Registry
	menus    catalog.MenuRepository
	links    catalog.LinkRepository
	syncLogs ordersync.SyncLogRepository
	tenants  tenant.Repository
	jobs     *queue.Repository
	policy   config.SyncConfig
	metrics  *metrics.Metrics
}

// NewSyncService creates a SyncService
func NewSyncService(
	registry platform.Registry,
	menus catalog.MenuRepository,
	links catalog.LinkRepository,
	syncLogs ordersync.SyncLogRepository,
	tenants tenant.Repository,
	jobs *queue.Repository,
	policy config.SyncConfig,
	m *metrics.Metrics,
) *SyncService {
	return &SyncService{
		registry: registry,
		menus:    menus,
		links:    links,
		syncLogs: syncLogs,
		tenants:  tenants,
		jobs:     jobs,
		policy:   policy,
		metrics:  m,
	}
}

// ---------------------------------------------------------------------------
// Triggering
// ---------------------------------------------------------------------------

// TriggerSync targets a menu at a platform and queues the sync run. A link
// already syncing rejects the trigger so two runs cannot race for the
// correlation id; the dedupe key collapses concurrent triggers that slip
// past the status check.
func (s *SyncService) TriggerSync(ctx context.Context, tenantID, menuID uuid.UUID, code platform.Code) (*catalog.MenuPlatformLink, error) {
	if _, err := s.registry.Get(code); err != nil {
		return nil, err
	}
	menu, err := s.menus.FindByID(ctx, menuID)
	if err != nil {
		return nil, err
	}

	link, err := s.links.FindByMenuAndPlatform(ctx, menuID, code)
	if err != nil {
		if !errors.Is(err, catalog.ErrLinkNotFound) {
			return nil, err
		}
		link = catalog.NewMenuPlatformLink(tenantID, menu.ID, code)
		if err := s.links.Save(ctx, link); err != nil {
			return nil, err
		}
	}

	switch link.SyncStatus {
	case catalog.SyncStatusSyncing:
		return nil, catalog.ErrSyncInFlight
	case catalog.SyncStatusFailed:
		if err := link.ResetForRetry(); err != nil {
			return nil, err
		}
		if err := s.links.Save(ctx, link); err != nil {
			return nil, err
		}
	}

	if err := s.jobs.Enqueue(ctx, tenantID, queue.JobMenuSync, link.ID, queue.EnqueueOptions{
		DedupeKey: fmt.Sprintf("%s:%s", queue.JobMenuSync, link.ID),
	}); err != nil {
		return nil, err
	}

	logger.L(ctx).Info("menu sync queued",
		zap.String("menu_id", menuID.String()),
		zap.String("platform", code.String()),
		zap.String("link_id", link.ID.String()),
	)
	return link, nil
}

// GetLink returns the link and its attempt history for a (menu, platform)
func (s *SyncService) GetLink(ctx context.Context, menuID uuid.UUID, code platform.Code) (*catalog.MenuPlatformLink, []ordersync.SyncLog, error) {
	link, err := s.links.FindByMenuAndPlatform(ctx, menuID, code)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.syncLogs.FindBySubject(ctx, link.ID, 50)
	if err != nil {
		return nil, nil, err
	}
	return link, history, nil
}

// ListFailed lists failed links for the bound tenant
func (s *SyncService) ListFailed(ctx context.Context, limit int) ([]catalog.MenuPlatformLink, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.links.FindFailed(ctx, limit)
}

// ---------------------------------------------------------------------------
// Job handler
// ---------------------------------------------------------------------------

// HandleMenuSync is the menu.sync job handler. Each attempt reloads the menu
// tree fresh, submits the snapshot, and records the correlation id. The link
// stays at syncing until the platform's callback arrives.
func (s *SyncService) HandleMenuSync(ctx context.Context, job *queue.Job) queue.Result {
	start := time.Now()
	now := time.Now()

	link, err := s.links.FindByID(ctx, job.SubjectID)
	if err != nil {
		if errors.Is(err, catalog.ErrLinkNotFound) {
			return queue.Fail("menu platform link not found")
		}
		return queue.Retry(time.Minute, err.Error())
	}
	if link.SyncStatus == catalog.SyncStatusSynced {
		return queue.Done()
	}
	if link.SyncStatus == catalog.SyncStatusFailed {
		return queue.Done()
	}

	// Wall-clock deadline across the whole run, callbacks included
	if link.FirstAttemptAt != nil && now.Sub(*link.FirstAttemptAt) > s.policy.MenuSyncDeadline {
		return s.fail(ctx, link, job.Attempt, start, "sync deadline exceeded")
	}

	if _, err := tenant.RequireActive(ctx, s.tenants, link.TenantID); err != nil {
		if errors.Is(err, tenant.ErrTenantInactive) {
			return s.fail(ctx, link, job.Attempt, start, "tenant suspended or cancelled")
		}
		return queue.Retry(time.Minute, err.Error())
	}

	if link.SyncStatus != catalog.SyncStatusSyncing {
		if err := link.BeginSync(now); err != nil {
			return queue.Retry(time.Minute, err.Error())
		}
		if err := s.links.Save(ctx, link); err != nil {
			return queue.Retry(time.Minute, err.Error())
		}
		s.recordTransition(link.Platform, catalog.SyncStatusSyncing)
	}

	menu, err := s.menus.FindTree(ctx, link.MenuID)
	if err != nil {
		if errors.Is(err, catalog.ErrMenuNotFound) {
			return s.fail(ctx, link, job.Attempt, start, "menu deleted")
		}
		return s.verdict(ctx, link, job, start, err)
	}

	adapter, err := s.registry.Get(link.Platform)
	if err != nil {
		return s.fail(ctx, link, job.Attempt, start, err.Error())
	}

	result, err := adapter.SubmitCatalog(ctx, link.TenantID, buildSnapshot(menu))
	if err != nil {
		return s.verdict(ctx, link, job, start, err)
	}

	link.RecordSubmission(result.CorrelationID)
	if err := s.links.Save(ctx, link); err != nil {
		return queue.Retry(time.Minute, err.Error())
	}
	s.appendLog(ctx, link, job.Attempt, ordersync.LogOutcomeSuccess,
		fmt.Sprintf("submitted, correlation %s", result.CorrelationID), time.Since(start))

	logger.L(ctx).Info("menu catalog submitted",
		zap.String("link_id", link.ID.String()),
		zap.String("platform", link.Platform.String()),
		zap.String("correlation_id", result.CorrelationID),
	)
	return queue.Done()
}

// HandleSyncFailure is the menu.sync terminal-failure hook, run when the
// handler panics. It converges the link to failed instead of leaving it at
// syncing with no retry coming. A callback that already delivered the
// terminal outcome wins: terminal links are left alone.
func (s *SyncService) HandleSyncFailure(ctx context.Context, job *queue.Job, reason string) {
	link, err := s.links.FindByID(ctx, job.SubjectID)
	if err != nil {
		logger.L(ctx).Error("failed to load link for terminal failure",
			zap.String("link_id", job.SubjectID.String()),
			zap.Error(err),
		)
		return
	}
	if link.SyncStatus == catalog.SyncStatusSynced || link.SyncStatus == catalog.SyncStatusFailed {
		return
	}
	link.MarkFailed(reason)
	if err := s.links.Save(ctx, link); err != nil {
		logger.L(ctx).Error("failed to mark link failed",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.recordTransition(link.Platform, catalog.SyncStatusFailed)
	s.appendLog(ctx, link, job.Attempt, ordersync.LogOutcomeFailure, reason, 0)
}

// verdict turns a submit error into a queue result per its classification
func (s *SyncService) verdict(ctx context.Context, link *catalog.MenuPlatformLink, job *queue.Job, start time.Time, submitErr error) queue.Result {
	class, retryAfter := ordersync.Classify(submitErr)

	switch class {
	case ordersync.ClassPermanent:
		return s.fail(ctx, link, job.Attempt, start, submitErr.Error())

	case ordersync.ClassRateLimit:
		delay := retryAfter
		if delay <= 0 {
			delay = s.policy.MenuRetryDelays[0]
		}
		s.appendLog(ctx, link, job.Attempt, ordersync.LogOutcomeRetry, submitErr.Error(), time.Since(start))
		return queue.RetryNoCharge(delay, submitErr.Error())

	default:
		if job.Attempt >= s.policy.MenuMaxRetries {
			return s.fail(ctx, link, job.Attempt, start,
				fmt.Sprintf("retry budget exhausted: %v", submitErr))
		}
		delay := s.policy.MenuRetryDelays[job.Attempt]
		s.appendLog(ctx, link, job.Attempt, ordersync.LogOutcomeRetry, submitErr.Error(), time.Since(start))
		return queue.Retry(delay, submitErr.Error())
	}
}

func (s *SyncService) fail(ctx context.Context, link *catalog.MenuPlatformLink, attempt int, start time.Time, reason string) queue.Result {
	link.MarkFailed(reason)
	if err := s.links.Save(ctx, link); err != nil {
		return queue.Retry(time.Minute, err.Error())
	}
	s.recordTransition(link.Platform, catalog.SyncStatusFailed)
	s.appendLog(ctx, link, attempt, ordersync.LogOutcomeFailure, reason, time.Since(start))
	logger.L(ctx).Error("menu sync failed terminally",
		zap.String("link_id", link.ID.String()),
		zap.String("platform", link.Platform.String()),
		zap.String("reason", reason),
	)
	return queue.Fail(reason)
}

func (s *SyncService) appendLog(ctx context.Context, link *catalog.MenuPlatformLink, attempt int, outcome ordersync.LogOutcome, detail string, took time.Duration) {
	entry := ordersync.NewSyncLog(link.TenantID, ordersync.StageMenu, link.ID, attempt, outcome, detail, took)
	if err := s.syncLogs.Append(ctx, entry); err != nil {
		logger.L(ctx).Warn("failed to append sync log",
			zap.String("link_id", link.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *SyncService) recordTransition(code platform.Code, to catalog.SyncStatus) {
	if s.metrics != nil {
		s.metrics.RecordMenuSyncTransition(code.String(), to.String())
	}
}

// buildSnapshot flattens the menu tree into the platform-neutral catalog
// document handed to adapters
func buildSnapshot(menu *catalog.Menu) *platform.CatalogSnapshot {
	snapshot := &platform.CatalogSnapshot{
		MenuID:   menu.ID,
		MenuName: menu.Name,
		Currency: defaultCurrency,
	}
	for _, item := range menu.Items {
		catalogItem := platform.CatalogItem{
			SKU:         item.SKU,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			IsAvailable: item.IsAvailable,
		}
		for _, group := range item.ModifierGroups {
			catalogGroup := platform.CatalogModifierGroup{
				Name:      group.Name,
				MinSelect: group.MinSelect,
				MaxSelect: group.MaxSelect,
			}
			for _, mod := range group.Modifiers {
				catalogGroup.Modifiers = append(catalogGroup.Modifiers, platform.CatalogModifier{
					Name:  mod.Name,
					Price: mod.Price,
				})
			}
			catalogItem.ModifierGroups = append(catalogItem.ModifierGroups, catalogGroup)
		}
		snapshot.Items = append(snapshot.Items, catalogItem)
	}
	return snapshot
}
