package credential_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/stretchr/testify/assert"
)

func newTestCredential(provider crm.Provider, expiresAt *time.Time) *crm.Credential {
	return &crm.Credential{
		ID:           uuid.New(),
		UserID:       "user-1",
		Provider:     provider,
		AccessToken:  "access-old",
		RefreshToken: "refresh-old",
		ExpiresAt:    expiresAt,
		Metadata:     map[string]string{"instance_url": "https://na1.example.com", "org_id": "org-9"},
	}
}

func TestInMemoryStoreCreateAndGet(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := credential.NewInMemoryStore()
	cred := newTestCredential(crm.ProviderHubSpot, nil)
	assert.Nil(store.Create(ctx, cred))

	got, err := store.Get(ctx, cred.ID)
	assert.Nil(err)
	assert.Equal(cred.AccessToken, got.AccessToken)
	assert.Equal(cred.Metadata, got.Metadata)

	byUser, err := store.GetByUserProvider(ctx, "user-1", crm.ProviderHubSpot)
	assert.Nil(err)
	assert.Equal(cred.ID, byUser.ID)

	_, err = store.GetByUserProvider(ctx, "user-1", crm.ProviderSalesforce)
	assert.ErrorIs(err, credential.ErrNotFound)
}

func TestInMemoryStoreOneCredentialPerSlot(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := credential.NewInMemoryStore()
	assert.Nil(store.Create(ctx, newTestCredential(crm.ProviderHubSpot, nil)))

	// A second credential for the same user+provider slot is rejected
	err := store.Create(ctx, newTestCredential(crm.ProviderHubSpot, nil))
	assert.NotNil(err)
}

func TestInMemoryStoreUpdateMergesMetadata(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := credential.NewInMemoryStore()
	cred := newTestCredential(crm.ProviderSalesforce, nil)
	assert.Nil(store.Create(ctx, cred))

	expiresAt := time.Now().Add(2 * time.Hour).UTC()
	updated, err := store.Update(ctx, cred.ID, credential.Changes{
		AccessToken: "access-new",
		ExpiresAt:   &expiresAt,
		Metadata:    map[string]string{"instance_url": "https://na2.example.com"},
	})
	assert.Nil(err)

	// Access token and expiry replaced, refresh token retained since the
	// change-set carried none
	assert.Equal("access-new", updated.AccessToken)
	assert.Equal("refresh-old", updated.RefreshToken)
	assert.Equal(expiresAt, *updated.ExpiresAt)

	// instance_url replaced, other metadata keys preserved
	assert.Equal("https://na2.example.com", updated.Metadata["instance_url"])
	assert.Equal("org-9", updated.Metadata["org_id"])
}

func TestInMemoryStoreUpdateReplacesRefreshToken(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := credential.NewInMemoryStore()
	cred := newTestCredential(crm.ProviderHubSpot, nil)
	assert.Nil(store.Create(ctx, cred))

	updated, err := store.Update(ctx, cred.ID, credential.Changes{
		AccessToken:  "access-new",
		RefreshToken: "refresh-new",
	})
	assert.Nil(err)
	assert.Equal("refresh-new", updated.RefreshToken)
}

func TestInMemoryStoreListExpiring(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Now()

	store := credential.NewInMemoryStore()

	soon := now.Add(5 * time.Minute)
	later := now.Add(2 * time.Hour)

	expiring := newTestCredential(crm.ProviderHubSpot, &soon)
	assert.Nil(store.Create(ctx, expiring))

	healthy := newTestCredential(crm.ProviderHubSpot, &later)
	healthy.UserID = "user-2"
	assert.Nil(store.Create(ctx, healthy))

	// Nil expiry is excluded from the window query
	nilExpiry := newTestCredential(crm.ProviderHubSpot, nil)
	nilExpiry.UserID = "user-3"
	assert.Nil(store.Create(ctx, nilExpiry))

	// Other providers are excluded
	otherProvider := newTestCredential(crm.ProviderSalesforce, &soon)
	otherProvider.UserID = "user-4"
	assert.Nil(store.Create(ctx, otherProvider))

	creds, err := store.ListExpiring(ctx, crm.ProviderHubSpot, now.Add(10*time.Minute))
	assert.Nil(err)
	assert.Len(creds, 1)
	assert.Equal(expiring.ID, creds[0].ID)
}

func TestInMemoryStoreReturnsCopies(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	store := credential.NewInMemoryStore()
	cred := newTestCredential(crm.ProviderHubSpot, nil)
	assert.Nil(store.Create(ctx, cred))

	got, err := store.Get(ctx, cred.ID)
	assert.Nil(err)

	// Mutating the returned copy must not leak into the store
	got.AccessToken = "tampered"
	got.Metadata["org_id"] = "tampered"

	fresh, err := store.Get(ctx, cred.ID)
	assert.Nil(err)
	assert.Equal("access-old", fresh.AccessToken)
	assert.Equal("org-9", fresh.Metadata["org_id"])
}
