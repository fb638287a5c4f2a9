package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/token"
)

// searchLimit bounds free-text search results for every provider
const searchLimit = 10

// ContactClient performs contact operations against one CRM provider.
// Every implementation follows the same shape; only the wire format and
// endpoint paths differ.
type ContactClient interface {
	// SearchContacts performs a free-text search bounded to a small
	// result count. An empty result set is success with an empty list.
	SearchContacts(ctx context.Context, cred *crm.Credential, query string) ([]crm.ContactRecord, error)

	// GetContact fetches a contact by provider-native ID. Returns
	// crm.ErrNotFound when the provider reports no matching record.
	GetContact(ctx context.Context, cred *crm.Credential, contactID string) (*crm.ContactRecord, error)

	// UpdateContact writes a canonical field->value map to the contact,
	// dropping fields with no writable provider mapping, and returns
	// the post-update state of the record.
	UpdateContact(ctx context.Context, cred *crm.Credential, contactID string, updates map[string]string) (*crm.ContactRecord, error)

	// ApplyUpdates collapses the entries marked Apply into a single
	// update and delegates to UpdateContact. When nothing is marked for
	// application it returns (nil, nil): no updates were performed, and
	// callers must not treat that as a failure.
	ApplyUpdates(ctx context.Context, cred *crm.Credential, contactID string, updates []crm.FieldUpdate) (*crm.ContactRecord, error)
}

// authExpiredFunc classifies a provider rejection as token
// invalidity/expiry (worth a forced refresh) versus any other
// authorization failure (surfaced as-is)
type authExpiredFunc func(apiErr *crm.APIError) bool

// baseClient carries the plumbing shared by every provider client
type baseClient struct {
	provider   crm.Provider
	tokens     *token.Service
	httpClient *http.Client
}

// withAuthRetry runs a provider call with a valid token and a single
// bounded retry: when the call fails with a 401/403 whose body signals
// an expired token, the credential is force-refreshed (bypassing the
// staleness check, since the token was just rejected) and the call is
// retried exactly once. A second failure is returned unmodified.
func (b *baseClient) withAuthRetry(ctx context.Context, cred *crm.Credential, expired authExpiredFunc, call func(current *crm.Credential) error) error {
	current, err := b.tokens.EnsureValid(ctx, cred)
	if err != nil {
		return err
	}

	err = call(current)
	if err == nil {
		return nil
	}

	var apiErr *crm.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	if apiErr.Status != http.StatusUnauthorized && apiErr.Status != http.StatusForbidden {
		return err
	}
	if !expired(apiErr) {
		// Some other authorization problem (e.g. missing scope); a
		// refresh would not help
		return err
	}

	refreshed, err := b.tokens.Refresh(ctx, current)
	if err != nil {
		return err
	}

	return call(refreshed)
}

// doJSON performs an authenticated JSON request against the provider
// API. Returns whether the response carried a decodable body: some
// providers acknowledge updates with an empty success body, which
// callers must follow with a re-fetch. Non-2xx responses become
// *crm.APIError carrying the status and body.
func (b *baseClient) doJSON(ctx context.Context, accessToken, method, url string, in any, out any) (bool, error) {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return false, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewBuffer(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request to %s failed: %w", b.provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("failed to read %s response: %w", b.provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, &crm.APIError{Provider: b.provider, Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("failed to decode %s response: %w", b.provider, err)
	}

	return true, nil
}

// collapseUpdates filters a suggestion list to the entries marked for
// application and collapses them into one field->value map, last write
// winning on duplicate fields. Returns nil when nothing survives.
func collapseUpdates(updates []crm.FieldUpdate) map[string]string {
	out := make(map[string]string)
	for _, update := range updates {
		if update.Apply {
			out[update.Field] = update.NewValue
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// oauthErrorExpired recognizes OAuth-style error bodies that name an
// expired or invalid grant
func oauthErrorExpired(body string) bool {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return false
	}
	return payload.Error == "invalid_grant" || payload.Error == "expired_token"
}
