package platform

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orderbridge/backend/internal/domain/credential"
)

// fakeCredStore is an in-memory credential.Store for adapter tests
type fakeCredStore struct {
	mu      sync.Mutex
	secrets map[string]string
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{secrets: make(map[string]string)}
}

func credKey(tenantID uuid.UUID, service credential.Service, credType credential.Type) string {
	return tenantID.String() + "/" + string(service) + "/" + string(credType)
}

func (s *fakeCredStore) Get(_ context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.secrets[credKey(tenantID, service, credType)]
	if !ok {
		return "", credential.ErrCredentialNotFound
	}
	return value, nil
}

func (s *fakeCredStore) Put(_ context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type, plaintext string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[credKey(tenantID, service, credType)] = plaintext
	return nil
}

func (s *fakeCredStore) Deactivate(_ context.Context, tenantID uuid.UUID, service credential.Service, credType credential.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, credKey(tenantID, service, credType))
	return nil
}

// memoryTokenCache is an in-memory TokenCache for adapter tests
type memoryTokenCache struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemoryTokenCache() *memoryTokenCache {
	return &memoryTokenCache{tokens: make(map[string]string)}
}

func (c *memoryTokenCache) Get(_ context.Context, code string, tenantID uuid.UUID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[tokenKey(code, tenantID)], nil
}

func (c *memoryTokenCache) Set(_ context.Context, code string, tenantID uuid.UUID, token string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[tokenKey(code, tenantID)] = token
	return nil
}

func (c *memoryTokenCache) Delete(_ context.Context, code string, tenantID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tokens, tokenKey(code, tenantID))
	return nil
}
