package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
)

var (
	// ErrLinkNotFound is returned when no link matches the lookup
	ErrLinkNotFound = errors.New("catalog: platform link not found")
	// ErrSyncInFlight is returned when a sync is requested while one is running
	ErrSyncInFlight = errors.New("catalog: sync already in flight for this menu and platform")
)

// SyncStatus is the bounded state machine on a MenuPlatformLink:
// pending → syncing → {synced | failed}, failed → syncing on retry.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// IsValid returns true if the status is a known value
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSyncing, SyncStatusSynced, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// IsTerminal returns true for synced and failed
func (s SyncStatus) IsTerminal() bool {
	return s == SyncStatusSynced || s == SyncStatusFailed
}

// MenuPlatformLink is the single source of truth for whether a menu is live
// on a platform. Unique on (menu_id, platform); transitioned exclusively by
// the menu sync pipeline and the callback reconciler.
type MenuPlatformLink struct {
	shared.TenantEntity
	MenuID         uuid.UUID
	Platform       platform.Code
	SyncStatus     SyncStatus
	PlatformMenuID string
	// CorrelationID is the catalog/import id returned by the platform on
	// submission, matched against asynchronous callbacks
	CorrelationID  string
	SyncError      string
	AttemptCount   int
	FirstAttemptAt *time.Time
	LastSyncedAt   *time.Time
	PublishedAt    *time.Time
}

// NewMenuPlatformLink targets a menu at a platform for the first time.
func NewMenuPlatformLink(tenantID, menuID uuid.UUID, code platform.Code) *MenuPlatformLink {
	return &MenuPlatformLink{
		TenantEntity: shared.NewTenantEntity(tenantID),
		MenuID:       menuID,
		Platform:     code,
		SyncStatus:   SyncStatusPending,
	}
}

// BeginSync transitions the link to syncing. A second sync for the same
// (menu, platform) while one is in flight is rejected so both cannot race
// to overwrite the correlation id.
func (l *MenuPlatformLink) BeginSync(now time.Time) error {
	if l.SyncStatus == SyncStatusSyncing {
		return ErrSyncInFlight
	}
	l.SyncStatus = SyncStatusSyncing
	l.SyncError = ""
	l.AttemptCount++
	if l.FirstAttemptAt == nil {
		t := now
		l.FirstAttemptAt = &t
	}
	l.Touch()
	return nil
}

// RecordSubmission stores the platform's correlation id. The link stays at
// syncing: the platform validates asynchronously and the callback reconciler
// performs the terminal transition.
func (l *MenuPlatformLink) RecordSubmission(correlationID string) {
	l.CorrelationID = correlationID
	l.Touch()
}

// MarkSynced records a successful validation callback.
func (l *MenuPlatformLink) MarkSynced(platformMenuID string, now time.Time) {
	l.SyncStatus = SyncStatusSynced
	l.SyncError = ""
	if platformMenuID != "" {
		l.PlatformMenuID = platformMenuID
	}
	t := now
	l.LastSyncedAt = &t
	l.PublishedAt = &t
	l.Touch()
}

// MarkFailed records a terminal failure. Idempotent: the terminal-failure
// hook and the last attempt's own failure handling may both call this and
// the net state converges to failed.
func (l *MenuPlatformLink) MarkFailed(reason string) {
	l.SyncStatus = SyncStatusFailed
	if reason != "" {
		l.SyncError = reason
	}
	l.Touch()
}

// ResetForRetry clears the attempt window so a manual re-trigger starts a
// fresh retry budget. Only failed links can be reset.
func (l *MenuPlatformLink) ResetForRetry() error {
	if l.SyncStatus != SyncStatusFailed {
		return shared.ErrInvalidState
	}
	l.SyncStatus = SyncStatusPending
	l.SyncError = ""
	l.AttemptCount = 0
	l.FirstAttemptAt = nil
	l.Touch()
	return nil
}

// LinkRepository defines persistence for menu platform links.
type LinkRepository interface {
	// FindByID finds a link by id
	FindByID(ctx context.Context, id uuid.UUID) (*MenuPlatformLink, error)

	// FindByMenuAndPlatform finds the unique link for (menu, platform)
	FindByMenuAndPlatform(ctx context.Context, menuID uuid.UUID, code platform.Code) (*MenuPlatformLink, error)

	// FindByCorrelationID finds the link whose stored correlation id is
	// contained in the given value. Callbacks carry no tenant identity, so
	// this is the one privileged cross-tenant lookup in the pipeline.
	FindByCorrelationID(ctx context.Context, correlationID string) (*MenuPlatformLink, error)

	// FindFailed lists failed links for the bound tenant
	FindFailed(ctx context.Context, limit int) ([]MenuPlatformLink, error)

	// Save creates or updates a link
	Save(ctx context.Context, link *MenuPlatformLink) error
}
