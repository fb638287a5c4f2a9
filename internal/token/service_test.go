package token_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
	"github.com/stretchr/testify/assert"
)

// tokenEndpoint is a fake provider OAuth token endpoint. The response
// map is returned as JSON on every hit; calls counts requests.
type tokenEndpoint struct {
	calls    atomic.Int64
	status   int
	response map[string]any
}

func (e *tokenEndpoint) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e.calls.Add(1)

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if e.status != 0 {
			w.WriteHeader(e.status)
		}
		json.NewEncoder(w).Encode(e.response)
	}
}

func newTestService(t *testing.T, endpoint *tokenEndpoint, store credential.Store) *token.Service {
	t.Helper()

	server := httptest.NewServer(endpoint.handler())
	t.Cleanup(server.Close)

	cfg := utils.NewConfig(map[string]string{
		"HUBSPOT_CLIENT_ID":        "client-id",
		"HUBSPOT_CLIENT_SECRET":    "client-secret",
		"HUBSPOT_TOKEN_URL":        server.URL,
		"SALESFORCE_CLIENT_ID":     "client-id",
		"SALESFORCE_CLIENT_SECRET": "client-secret",
		"SALESFORCE_TOKEN_URL":     server.URL,
	})

	return token.NewService(cfg, store)
}

func storedCredential(t *testing.T, store credential.Store, provider crm.Provider, refreshToken string, expiresAt *time.Time) *crm.Credential {
	t.Helper()

	cred := &crm.Credential{
		ID:           uuid.New(),
		UserID:       "user-1",
		Provider:     provider,
		AccessToken:  "access-old",
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Metadata:     map[string]string{crm.MetadataInstanceURL: "https://na1.example.com", "org_id": "org-9"},
	}
	assert.Nil(t, store.Create(context.Background(), cred))
	return cred
}

func TestEnsureValidFreshCredentialUntouched(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{"access_token": "access-new"}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	expiresAt := time.Now().Add(time.Hour)
	cred := storedCredential(t, store, crm.ProviderHubSpot, "refresh-1", &expiresAt)

	got, err := svc.EnsureValid(context.Background(), cred)
	assert.Nil(err)
	assert.Equal(cred, got)
	assert.EqualValues(0, endpoint.calls.Load(), "no network call for a fresh credential")
}

func TestEnsureValidRefreshesNilExpiry(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{
		"access_token":  "access-new",
		"refresh_token": "refresh-2",
		"expires_in":    1800,
	}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	cred := storedCredential(t, store, crm.ProviderHubSpot, "refresh-1", nil)

	got, err := svc.EnsureValid(context.Background(), cred)
	assert.Nil(err)
	assert.Equal("access-new", got.AccessToken)
	assert.Equal("refresh-2", got.RefreshToken)
	assert.EqualValues(1, endpoint.calls.Load(), "exactly one refresh attempt")
}

func TestEnsureValidRefreshesNearExpiry(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{
		"access_token": "access-new",
		"expires_in":   1800,
	}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	// Inside the five-minute staleness buffer
	expiresAt := time.Now().Add(2 * time.Minute)
	cred := storedCredential(t, store, crm.ProviderHubSpot, "refresh-1", &expiresAt)

	got, err := svc.EnsureValid(context.Background(), cred)
	assert.Nil(err)
	assert.Equal("access-new", got.AccessToken)
	assert.EqualValues(1, endpoint.calls.Load())
}

func TestEnsureValidUsesStoreCopyWhenAlreadyRotated(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{"access_token": "access-new"}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	expiresAt := time.Now().Add(time.Hour)
	cred := storedCredential(t, store, crm.ProviderHubSpot, "refresh-1", &expiresAt)

	// Simulate a borrowed stale copy while the store already holds a
	// rotated credential
	staleExpiry := time.Now().Add(-time.Minute)
	staleCopy := *cred
	staleCopy.ExpiresAt = &staleExpiry

	got, err := svc.EnsureValid(context.Background(), &staleCopy)
	assert.Nil(err)
	assert.Equal("access-old", got.AccessToken, "store copy wins, no refresh needed")
	assert.EqualValues(0, endpoint.calls.Load())
}

func TestRefreshRequiresRefreshToken(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{"access_token": "access-new"}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	cred := storedCredential(t, store, crm.ProviderHubSpot, "", nil)

	_, err := svc.Refresh(context.Background(), cred)
	assert.ErrorIs(err, crm.ErrNoRefreshToken)
	assert.EqualValues(0, endpoint.calls.Load(), "no network call without a refresh token")
}

func TestRefreshUnknownProvider(t *testing.T) {
	assert := assert.New(t)

	store := credential.NewInMemoryStore()
	svc := token.NewService(utils.NewConfig(nil), store)

	cred := &crm.Credential{
		ID:           uuid.New(),
		UserID:       "user-1",
		Provider:     crm.ProviderHubSpot,
		RefreshToken: "refresh-1",
	}
	assert.Nil(store.Create(context.Background(), cred))

	_, err := svc.Refresh(context.Background(), cred)
	assert.ErrorIs(err, crm.ErrInvalidProvider)
}

func TestRefreshRetainsOmittedFields(t *testing.T) {
	assert := assert.New(t)

	// Salesforce-style response: no refresh_token, no expires_in, no
	// instance_url this time around
	endpoint := &tokenEndpoint{response: map[string]any{"access_token": "access-new"}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	cred := storedCredential(t, store, crm.ProviderSalesforce, "refresh-1", nil)

	before := time.Now()
	got, err := svc.Refresh(context.Background(), cred)
	assert.Nil(err)

	// Refresh token retained rather than cleared
	assert.Equal("refresh-1", got.RefreshToken)

	// Prior metadata preserved unchanged
	assert.Equal("https://na1.example.com", got.Metadata[crm.MetadataInstanceURL])
	assert.Equal("org-9", got.Metadata["org_id"])

	// Expiry defaulted to now + 7200s
	assert.NotNil(got.ExpiresAt)
	assert.WithinDuration(before.Add(7200*time.Second), *got.ExpiresAt, time.Minute)

	// The stored credential matches what was returned
	stored, err := store.Get(context.Background(), cred.ID)
	assert.Nil(err)
	assert.Equal(got.AccessToken, stored.AccessToken)
	assert.Equal(got.RefreshToken, stored.RefreshToken)
}

func TestRefreshMergesInstanceURL(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{
		"access_token": "access-new",
		"instance_url": "https://na2.example.com",
	}}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	cred := storedCredential(t, store, crm.ProviderSalesforce, "refresh-1", nil)

	got, err := svc.Refresh(context.Background(), cred)
	assert.Nil(err)
	assert.Equal("https://na2.example.com", got.Metadata[crm.MetadataInstanceURL])
	assert.Equal("org-9", got.Metadata["org_id"], "unrelated metadata keys survive the merge")
}

func TestRefreshTokenEndpointFailure(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{
		status:   http.StatusBadRequest,
		response: map[string]any{"error": "invalid_grant"},
	}
	store := credential.NewInMemoryStore()
	svc := newTestService(t, endpoint, store)

	cred := storedCredential(t, store, crm.ProviderHubSpot, "refresh-1", nil)

	_, err := svc.Refresh(context.Background(), cred)

	var refreshErr *crm.TokenRefreshError
	assert.ErrorAs(err, &refreshErr)
	assert.Equal(http.StatusBadRequest, refreshErr.Status)
	assert.Contains(refreshErr.Body, "invalid_grant")

	// The stored credential is untouched by a failed refresh
	stored, getErr := store.Get(context.Background(), cred.ID)
	assert.Nil(getErr)
	assert.Equal("access-old", stored.AccessToken)
}

// failingStore wraps the in-memory store and rejects updates
type failingStore struct {
	credential.Store
}

func (s *failingStore) Update(ctx context.Context, id uuid.UUID, changes credential.Changes) (*crm.Credential, error) {
	return nil, errors.New("disk full")
}

func TestRefreshPersistenceFailure(t *testing.T) {
	assert := assert.New(t)

	endpoint := &tokenEndpoint{response: map[string]any{"access_token": "access-new"}}
	inner := credential.NewInMemoryStore()
	store := &failingStore{Store: inner}
	svc := newTestService(t, endpoint, store)

	cred := storedCredential(t, inner, crm.ProviderHubSpot, "refresh-1", nil)

	_, err := svc.Refresh(context.Background(), cred)
	assert.ErrorIs(err, crm.ErrUpdateFailed)
}
