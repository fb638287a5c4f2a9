package credential

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/notewell/crmbridge/internal/crm"
)

// InMemoryStore is an in-memory credential store (for tests and one-off
// operations)
type InMemoryStore struct {
	credentials map[uuid.UUID]*crm.Credential
	mu          sync.RWMutex
}

// NewInMemoryStore creates a new in-memory credential store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		credentials: make(map[uuid.UUID]*crm.Credential),
	}
}

// Create stores a new credential, assigning an ID if unset
func (s *InMemoryStore) Create(ctx context.Context, cred *crm.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cred.ID == uuid.Nil {
		cred.ID = uuid.New()
	}

	// Enforce one active credential per user+provider slot
	for _, existing := range s.credentials {
		if existing.UserID == cred.UserID && existing.Provider == cred.Provider {
			return fmt.Errorf("credential already exists for user %s and provider %s", cred.UserID, cred.Provider)
		}
	}

	s.credentials[cred.ID] = copyCredential(cred)
	return nil
}

// Get retrieves a credential by ID
func (s *InMemoryStore) Get(ctx context.Context, id uuid.UUID) (*crm.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, exists := s.credentials[id]
	if !exists {
		return nil, ErrNotFound
	}

	return copyCredential(cred), nil
}

// GetByUserProvider retrieves the credential for a user's integration
// slot with the given provider
func (s *InMemoryStore) GetByUserProvider(ctx context.Context, userID string, provider crm.Provider) (*crm.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cred := range s.credentials {
		if cred.UserID == userID && cred.Provider == provider {
			return copyCredential(cred), nil
		}
	}

	return nil, ErrNotFound
}

// Update applies the change-set to a stored credential under the write
// lock and returns a copy of the stored result
func (s *InMemoryStore) Update(ctx context.Context, id uuid.UUID, changes Changes) (*crm.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, exists := s.credentials[id]
	if !exists {
		return nil, ErrNotFound
	}

	applyChanges(cred, changes)
	return copyCredential(cred), nil
}

// ListExpiring returns all credentials for a provider whose expiry
// falls before the given cutoff
func (s *InMemoryStore) ListExpiring(ctx context.Context, provider crm.Provider, before time.Time) ([]*crm.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var creds []*crm.Credential
	for _, cred := range s.credentials {
		if cred.Provider != provider || cred.ExpiresAt == nil {
			continue
		}
		if cred.ExpiresAt.Before(before) {
			creds = append(creds, copyCredential(cred))
		}
	}

	return creds, nil
}

// copyCredential returns a deep copy so callers never share the stored
// map or the store's own mutable state
func copyCredential(cred *crm.Credential) *crm.Credential {
	out := *cred
	if cred.ExpiresAt != nil {
		expiresAt := *cred.ExpiresAt
		out.ExpiresAt = &expiresAt
	}
	if cred.Metadata != nil {
		out.Metadata = make(map[string]string, len(cred.Metadata))
		for k, v := range cred.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
