package providers_test

import (
	"context"
	"encoding/json"
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

// fixture wires a provider client against an httptest API server and a
// fake token endpoint so the full ensure/refresh/retry path is
// exercised without real providers
type fixture struct {
	store     *credential.InMemoryStore
	tokens    *token.Service
	cfg       *utils.Config
	refreshes atomic.Int64
}

// newFixture builds the fixture. apiURL is the base URL of the fake
// provider API server.
func newFixture(t *testing.T, apiURL string) *fixture {
	t.Helper()

	f := &fixture{store: credential.NewInMemoryStore()}

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-refreshed",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	f.cfg = utils.NewConfig(map[string]string{
		"HUBSPOT_CLIENT_ID":        "client-id",
		"HUBSPOT_CLIENT_SECRET":    "client-secret",
		"HUBSPOT_TOKEN_URL":        tokenServer.URL,
		"HUBSPOT_API_URL":          apiURL,
		"SALESFORCE_CLIENT_ID":     "client-id",
		"SALESFORCE_CLIENT_SECRET": "client-secret",
		"SALESFORCE_TOKEN_URL":     tokenServer.URL,
	})

	f.tokens = token.NewService(f.cfg, f.store)
	return f
}

// freshCredential stores and returns a credential whose token is well
// outside the staleness buffer
func (f *fixture) freshCredential(t *testing.T, provider crm.Provider, instanceURL string) *crm.Credential {
	t.Helper()

	expiresAt := time.Now().Add(time.Hour)
	cred := &crm.Credential{
		ID:           uuid.New(),
		UserID:       "user-1",
		Provider:     provider,
		AccessToken:  "access-live",
		RefreshToken: "refresh-live",
		ExpiresAt:    &expiresAt,
	}
	if instanceURL != "" {
		cred.Metadata = map[string]string{crm.MetadataInstanceURL: instanceURL}
	}

	assert.Nil(t, f.store.Create(context.Background(), cred))
	return cred
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
