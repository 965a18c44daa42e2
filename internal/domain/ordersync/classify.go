package ordersync

import (
	"context"
	"errors"
	"time"

	"github.com/orderbridge/backend/internal/domain/platform"
)

// Class buckets an attempt error for retry scheduling.
type Class int

const (
	// ClassTransient retries with exponential backoff and consumes the
	// retry budget
	ClassTransient Class = iota
	// ClassRateLimit retries after the advertised delay without consuming
	// the retry budget
	ClassRateLimit
	// ClassPermanent fails the subject terminally
	ClassPermanent
)

// Classify buckets an error from an outbound platform or POS call. Unknown
// errors are treated as transient so a new failure mode is retried rather
// than silently dropped.
func Classify(err error) (Class, time.Duration) {
	var prl *POSRateLimitError
	if errors.As(err, &prl) {
		return ClassRateLimit, prl.RetryAfter
	}
	var rl *platform.RateLimitError
	if errors.As(err, &rl) {
		return ClassRateLimit, rl.RetryAfter
	}
	switch {
	case errors.Is(err, ErrPOSRejected),
		errors.Is(err, ErrPOSAuthFailed),
		errors.Is(err, ErrMappingNotFound),
		errors.Is(err, platform.ErrCatalogRejected),
		errors.Is(err, platform.ErrAuthFailed),
		errors.Is(err, platform.ErrNotConfigured),
		errors.Is(err, platform.ErrInvalidOrder):
		return ClassPermanent, 0
	case errors.Is(err, ErrPOSUnavailable),
		errors.Is(err, platform.ErrUnavailable),
		errors.Is(err, platform.ErrRequestFailed),
		errors.Is(err, platform.ErrInvalidResponse),
		errors.Is(err, context.DeadlineExceeded):
		return ClassTransient, 0
	default:
		return ClassTransient, 0
	}
}
