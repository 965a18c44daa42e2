package ordersync

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/backend/internal/domain/platform"
	"github.com/orderbridge/backend/internal/domain/shared"
)

func newTestOrder() *Order {
	return NewOrder(uuid.New(), platform.CodeCareem, "ORD-1001", []byte(`{"id":"ORD-1001"}`))
}

func TestNewOrder(t *testing.T) {
	tenantID := uuid.New()
	o := NewOrder(tenantID, platform.CodeTalabat, "T-42", []byte(`{}`))

	assert.Equal(t, tenantID, o.TenantID)
	assert.Equal(t, platform.CodeTalabat, o.Platform)
	assert.Equal(t, "T-42", o.PlatformOrderID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Zero(t, o.AttemptCount)
	assert.NotEqual(t, uuid.Nil, o.ID)
}

func TestOrderMarkProcessing(t *testing.T) {
	t.Run("transitions pending to processing and counts the attempt", func(t *testing.T) {
		o := newTestOrder()

		err := o.MarkProcessing()

		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, o.Status)
		assert.Equal(t, 1, o.AttemptCount)
	})

	t.Run("rejects non-pending states", func(t *testing.T) {
		for _, status := range []Status{StatusProcessing, StatusSynced, StatusFailed} {
			o := newTestOrder()
			o.Status = status

			err := o.MarkProcessing()

			assert.ErrorIs(t, err, shared.ErrInvalidState, "from %s", status)
		}
	})
}

func TestOrderMarkSynced(t *testing.T) {
	t.Run("transitions processing to synced and clears the error", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, o.MarkProcessing())
		o.LastError = "previous attempt failed"

		err := o.MarkSynced()

		require.NoError(t, err)
		assert.Equal(t, StatusSynced, o.Status)
		assert.Empty(t, o.LastError)
	})

	t.Run("rejects transition from pending", func(t *testing.T) {
		o := newTestOrder()

		err := o.MarkSynced()

		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestOrderRequeueForRetry(t *testing.T) {
	o := newTestOrder()
	require.NoError(t, o.MarkProcessing())

	o.RequeueForRetry("pos backend unavailable")

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "pos backend unavailable", o.LastError)
	// attempt count is preserved so the retry budget keeps accumulating
	assert.Equal(t, 1, o.AttemptCount)
}

func TestOrderResetForManualRetry(t *testing.T) {
	t.Run("re-enters pending from failed with a fresh budget", func(t *testing.T) {
		o := newTestOrder()
		require.NoError(t, o.MarkProcessing())
		o.MarkFailed("retry budget exhausted")

		err := o.ResetForManualRetry()

		require.NoError(t, err)
		assert.Equal(t, StatusPending, o.Status)
		assert.Empty(t, o.LastError)
		assert.Zero(t, o.AttemptCount)
	})

	t.Run("rejects reset of non-failed orders", func(t *testing.T) {
		for _, status := range []Status{StatusPending, StatusProcessing, StatusSynced} {
			o := newTestOrder()
			o.Status = status

			err := o.ResetForManualRetry()

			assert.ErrorIs(t, err, shared.ErrInvalidState, "from %s", status)
		}
	})
}

func TestOrderStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusSynced.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestOrderStatusIsValid(t *testing.T) {
	assert.True(t, StatusPending.IsValid())
	assert.False(t, Status("shipped").IsValid())
}
