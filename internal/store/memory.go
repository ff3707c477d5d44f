package store

import (
	"sync"
	"time"

	"github.com/onboardly/onboardly/internal/errors"
	"github.com/onboardly/onboardly/internal/models"
)

// MemoryStore provides in-memory credential storage. It is thread-safe
// and intended for tests and single-process development runs.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials map[string]*models.Credential
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		credentials: make(map[string]*models.Credential),
	}
}

// GetCredential retrieves the credential for an owner
func (s *MemoryStore) GetCredential(ownerID string) (*models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[ownerID]
	if !ok {
		return nil, false
	}
	copied := *cred
	return &copied, true
}

// UpsertCredential creates or replaces the credential keyed by OwnerID
func (s *MemoryStore) UpsertCredential(cred *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *cred
	copied.UpdatedAt = time.Now()
	s.credentials[cred.OwnerID] = &copied
	return nil
}

// UpdateTokens rewrites token material for an owner after a refresh
func (s *MemoryStore) UpdateTokens(ownerID, accessToken, refreshToken string, expiresIn int64, issuedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[ownerID]
	if !ok {
		return &errors.ErrCredentialNotFound{OwnerID: ownerID}
	}

	cred.AccessToken = accessToken
	if refreshToken != "" {
		cred.RefreshToken = refreshToken
	}
	cred.ExpiresIn = expiresIn
	cred.IssuedAt = issuedAt
	cred.UpdatedAt = time.Now()
	return nil
}

// ListCredentials returns all stored credentials
func (s *MemoryStore) ListCredentials() []*models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Credential, 0, len(s.credentials))
	for _, cred := range s.credentials {
		copied := *cred
		result = append(result, &copied)
	}
	return result
}

// LatestCredential returns the most recently written credential
func (s *MemoryStore) LatestCredential() (*models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Credential
	for _, cred := range s.credentials {
		if latest == nil || cred.UpdatedAt.After(latest.UpdatedAt) {
			latest = cred
		}
	}
	if latest == nil {
		return nil, false
	}
	copied := *latest
	return &copied, true
}

// Close implements Store Close (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)
