package pos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbridge/backend/internal/domain/credential"
	"github.com/orderbridge/backend/internal/domain/ordersync"
	"github.com/orderbridge/backend/internal/infrastructure/config"
)

// stubCredStore is an in-memory credential.Store for client tests
type stubCredStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newStubCredStore() *stubCredStore {
	return &stubCredStore{secrets: make(map[string]string)}
}

func (s *stubCredStore) key(tenantID uuid.UUID, service credential.Service, credType credential.Type) string {
	return tenantID.String() + "/" + string(service) + "/" + string(credType)
}

func (s *stubCredStore) Get(_ context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.secrets[s.key(tenantID, service, credType)]
	if !ok {
		return "", credential.ErrCredentialNotFound
	}
	return value, nil
}

func (s *stubCredStore) Put(_ context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type, plaintext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[s.key(tenantID, service, credType)] = plaintext
	return nil
}

func (s *stubCredStore) Deactivate(_ context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, s.key(tenantID, service, credType))
	return nil
}

func newTestClient(t *testing.T, baseURL string) (*Client, uuid.UUID) {
	t.Helper()
	tenantID := uuid.New()
	creds := newStubCredStore()
	ctx := context.Background()
	require.NoError(t, creds.Put(ctx, tenantID, credential.ServicePOS, credential.TypeAPIKey, "pos-key"))
	require.NoError(t, creds.Put(ctx, tenantID, credential.ServicePOS, credential.TypeAccountID, "acct-77"))

	client := NewClient(&config.POSConfig{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		RatePerSecond:  100,
		Burst:          100,
	}, creds)
	return client, tenantID
}

func testReceipt() *ordersync.Receipt {
	return &ordersync.Receipt{
		ExternalRef:  "ORD-1001",
		Source:       "careem",
		CustomerName: "Sara",
		Total:        decimal.RequireFromString("57.00"),
		Currency:     "AED",
		PlacedAt:     time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
		Lines: []ordersync.ReceiptLine{
			{POSProductID: "pos-brg", Name: "Burger", Quantity: 2,
				UnitPrice: decimal.RequireFromString("24.50"), Modifiers: []string{"extra cheese"}},
		},
	}
}

func TestSubmitReceipt(t *testing.T) {
	t.Run("submits with credentials and idempotency key", func(t *testing.T) {
		var got receiptRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/v1/receipts", r.URL.Path)
			assert.Equal(t, "Bearer pos-key", r.Header.Get("Authorization"))
			assert.Equal(t, "ORD-1001", r.Header.Get("Idempotency-Key"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(map[string]string{"receipt_id": "rcpt-555"})
		}))
		defer server.Close()

		client, tenantID := newTestClient(t, server.URL)

		result, err := client.SubmitReceipt(context.Background(), tenantID, testReceipt())

		require.NoError(t, err)
		assert.Equal(t, "rcpt-555", result.POSReceiptID)
		assert.Equal(t, "acct-77", got.AccountID)
		assert.Equal(t, "57.00", got.Total)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "pos-brg", got.Lines[0].ProductID)
		assert.Equal(t, "24.50", got.Lines[0].UnitPrice)
	})

	t.Run("treats a duplicate submission as success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"receipt_id": "rcpt-existing"})
		}))
		defer server.Close()

		client, tenantID := newTestClient(t, server.URL)

		result, err := client.SubmitReceipt(context.Background(), tenantID, testReceipt())

		require.NoError(t, err)
		assert.Equal(t, "rcpt-existing", result.POSReceiptID)
	})

	t.Run("missing credentials fail as auth errors", func(t *testing.T) {
		client, _ := newTestClient(t, "http://unused")

		_, err := client.SubmitReceipt(context.Background(), uuid.New(), testReceipt())

		assert.ErrorIs(t, err, ordersync.ErrPOSAuthFailed)
	})

	t.Run("maps error statuses", func(t *testing.T) {
		cases := []struct {
			name   string
			status int
			want   error
		}{
			{"unauthorized", http.StatusUnauthorized, ordersync.ErrPOSAuthFailed},
			{"forbidden", http.StatusForbidden, ordersync.ErrPOSAuthFailed},
			{"bad request", http.StatusBadRequest, ordersync.ErrPOSRejected},
			{"unprocessable", http.StatusUnprocessableEntity, ordersync.ErrPOSRejected},
			{"server error", http.StatusInternalServerError, ordersync.ErrPOSUnavailable},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
				}))
				defer server.Close()

				client, tenantID := newTestClient(t, server.URL)

				_, err := client.SubmitReceipt(context.Background(), tenantID, testReceipt())

				assert.ErrorIs(t, err, tc.want)
			})
		}
	})

	t.Run("maps throttling to a rate limit error with the advertised delay", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "20")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		client, tenantID := newTestClient(t, server.URL)

		_, err := client.SubmitReceipt(context.Background(), tenantID, testReceipt())

		var rl *ordersync.POSRateLimitError
		require.ErrorAs(t, err, &rl)
		assert.Equal(t, 20*time.Second, rl.RetryAfter)
	})

	t.Run("rejects a success response without a receipt id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
		}))
		defer server.Close()

		client, tenantID := newTestClient(t, server.URL)

		_, err := client.SubmitReceipt(context.Background(), tenantID, testReceipt())

		assert.ErrorIs(t, err, ordersync.ErrPOSUnavailable)
	})
}

func TestRetryAfterParsing(t *testing.T) {
	h := http.Header{}
	assert.Zero(t, retryAfter(h))

	h.Set("Retry-After", "30")
	assert.Equal(t, 30*time.Second, retryAfter(h))

	h.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	assert.Zero(t, retryAfter(h))
}

func TestLimiterIsPerTenant(t *testing.T) {
	client, _ := newTestClient(t, "http://unused")
	a := uuid.New()
	b := uuid.New()

	assert.Same(t, client.limiterFor(a), client.limiterFor(a))
	assert.NotSame(t, client.limiterFor(a), client.limiterFor(b))
}
