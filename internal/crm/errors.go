package crm

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the token lifecycle and provider
// clients. Callers distinguish failure classes with errors.Is and
// errors.As so the boundary layer can show an actionable message
// (re-authorize vs. provider unreachable vs. record missing).
var (
	// ErrNoRefreshToken means the stored credential has no refresh
	// token, so a refresh is impossible and the user must re-authorize
	ErrNoRefreshToken = errors.New("credential has no refresh token")

	// ErrInvalidProvider means a refresh was requested for a provider
	// with no token endpoint wired
	ErrInvalidProvider = errors.New("no refresh implementation for provider")

	// ErrUnsupportedProvider means a contact operation was requested
	// against a provider with no client implementation
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrNotFound means the provider reported no matching record
	ErrNotFound = errors.New("record not found")

	// ErrUpdateFailed means the refreshed credential could not be
	// persisted to the credential store
	ErrUpdateFailed = errors.New("failed to persist refreshed credential")
)

// TokenRefreshError wraps a non-200 response from a provider's OAuth
// token endpoint
type TokenRefreshError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("token refresh failed for %s: status %d: %s", e.Provider, e.Status, e.Body)
}

// APIError wraps a provider-side rejection of a contact API call
type APIError struct {
	Provider Provider
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error: status %d: %s", e.Provider, e.Status, e.Body)
}
