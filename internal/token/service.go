package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/notewell/crmbridge/pkg/utils"
	"golang.org/x/oauth2"
)

const (
	// StalenessBuffer is the look-ahead window before actual expiry
	// during which a token is proactively treated as unusable
	StalenessBuffer = 5 * time.Minute

	// defaultExpiry is assumed when the token endpoint omits
	// expires_in (Salesforce's refresh response does not always
	// include it)
	defaultExpiry = 7200 * time.Second
)

// Service manages the credential token lifecycle: staleness detection,
// provider token refresh, and atomic persistence of the result. The
// credential store stays the single source of truth; the service never
// trusts an in-memory copy across a refresh without re-reading it.
type Service struct {
	store      credential.Store
	configs    map[crm.Provider]*oauth2.Config
	httpClient *http.Client
}

// NewService creates a token lifecycle service wired with the OAuth
// endpoints of every provider configured in the environment
func NewService(cfg *utils.Config, store credential.Store) *Service {
	configs := make(map[crm.Provider]*oauth2.Config)

	if clientID := cfg.Get("HUBSPOT_CLIENT_ID"); clientID != "" {
		configs[crm.ProviderHubSpot] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: cfg.Get("HUBSPOT_CLIENT_SECRET"),
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.GetWithDefault("HUBSPOT_TOKEN_URL", "https://api.hubapi.com/oauth/v1/token"),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	}

	if clientID := cfg.Get("SALESFORCE_CLIENT_ID"); clientID != "" {
		configs[crm.ProviderSalesforce] = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: cfg.Get("SALESFORCE_CLIENT_SECRET"),
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.GetWithDefault("SALESFORCE_TOKEN_URL", "https://login.salesforce.com/services/oauth2/token"),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		}
	}

	timeout := time.Duration(cfg.GetIntWithDefault("CRM_HTTP_TIMEOUT_SECONDS", 30)) * time.Second

	return &Service{
		store:      store,
		configs:    configs,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Stale reports whether the credential's access token should be treated
// as unusable. A nil expiry is always stale; otherwise the token is
// stale once the current time is within the staleness buffer of the
// absolute expiry timestamp.
func (s *Service) Stale(cred *crm.Credential) bool {
	if cred.ExpiresAt == nil {
		return true
	}
	return !time.Now().Add(StalenessBuffer).Before(*cred.ExpiresAt)
}

// EnsureValid returns the credential unchanged when its token is still
// usable. Otherwise it re-reads the credential from the store and
// refreshes that fresh copy: a user-triggered request and the scheduled
// sweep may observe the same near-expiry credential concurrently, and
// re-reading immediately before refreshing narrows (but does not
// eliminate) the window in which both burn the same refresh token.
func (s *Service) EnsureValid(ctx context.Context, cred *crm.Credential) (*crm.Credential, error) {
	if !s.Stale(cred) {
		return cred, nil
	}

	fresh, err := s.store.Get(ctx, cred.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read credential before refresh: %w", err)
	}

	// Another caller may already have rotated the token
	if !s.Stale(fresh) {
		return fresh, nil
	}

	return s.Refresh(ctx, fresh)
}

// Refresh exchanges the stored refresh token for a new access token at
// the provider's token endpoint and persists the result atomically.
// Providers that omit a new refresh token keep the existing one, and
// provider routing metadata such as instance_url is merged into the
// stored metadata without discarding other keys.
func (s *Service) Refresh(ctx context.Context, cred *crm.Credential) (*crm.Credential, error) {
	if cred.RefreshToken == "" {
		return nil, crm.ErrNoRefreshToken
	}

	conf, ok := s.configs[cred.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crm.ErrInvalidProvider, cred.Provider)
	}

	// Bound the exchange with the service's HTTP client timeout
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)

	tok, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, &crm.TokenRefreshError{
				Provider: cred.Provider,
				Status:   retrieveErr.Response.StatusCode,
				Body:     string(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}

	expiresAt := tok.Expiry.UTC()
	if tok.Expiry.IsZero() {
		expiresAt = time.Now().Add(defaultExpiry).UTC()
	}

	changes := credential.Changes{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken, // empty keeps the stored one
		ExpiresAt:    &expiresAt,
	}

	if instanceURL, ok := tok.Extra(crm.MetadataInstanceURL).(string); ok && instanceURL != "" {
		changes.Metadata = map[string]string{crm.MetadataInstanceURL: instanceURL}
	}

	updated, err := s.store.Update(ctx, cred.ID, changes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crm.ErrUpdateFailed, err)
	}

	return updated, nil
}
