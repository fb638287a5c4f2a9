package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client wraps calls to the CRM bridge backend
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SearchContacts performs a free-text contact search against the user's
// connected provider
func (c *Client) SearchContacts(ctx context.Context, req *SearchContactsRequest) ([]Contact, error) {
	path := "/api/contacts/search"

	var out ApiResponse[[]Contact]
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	if err := out.asError(); err != nil {
		return nil, fmt.Errorf("failed to search contacts: %w", err)
	}

	return out.Data, nil
}

// GetContact fetches one contact by its provider-native ID
func (c *Client) GetContact(ctx context.Context, userID, provider, contactID string) (*Contact, error) {
	path := fmt.Sprintf("/api/contacts/%s?user_id=%s&provider=%s",
		url.PathEscape(contactID), url.QueryEscape(userID), url.QueryEscape(provider))

	var out ApiResponse[Contact]
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if err := out.asError(); err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &out.Data, nil
}

// UpdateContact applies a canonical field map directly to a contact
func (c *Client) UpdateContact(ctx context.Context, contactID string, req *UpdateContactRequest) (*Contact, error) {
	path := fmt.Sprintf("/api/contacts/%s", url.PathEscape(contactID))

	var out ApiResponse[Contact]
	if err := c.doJSON(ctx, http.MethodPatch, path, req, &out); err != nil {
		return nil, err
	}
	if err := out.asError(); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}

	return &out.Data, nil
}

// ReconcileSuggestions diffs proposed suggestions against the live
// record and returns only the ones that would change stored data
func (c *Client) ReconcileSuggestions(ctx context.Context, contactID string, req *ReconcileRequest) ([]Suggestion, error) {
	path := fmt.Sprintf("/api/contacts/%s/suggestions", url.PathEscape(contactID))

	var out ApiResponse[[]Suggestion]
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	if err := out.asError(); err != nil {
		return nil, fmt.Errorf("failed to reconcile suggestions: %w", err)
	}

	return out.Data, nil
}

// ApplySuggestions commits a reviewed suggestion list. The response says
// whether any write happened.
func (c *Client) ApplySuggestions(ctx context.Context, contactID string, req *ApplyRequest) (*ApplyResponse, error) {
	path := fmt.Sprintf("/api/contacts/%s/suggestions/apply", url.PathEscape(contactID))

	var out ApiResponse[ApplyResponse]
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	if err := out.asError(); err != nil {
		return nil, fmt.Errorf("failed to apply suggestions: %w", err)
	}

	return &out.Data, nil
}

// SuggestFromNotes generates reconciled suggestions from meeting notes
func (c *Client) SuggestFromNotes(ctx context.Context, contactID string, req *SuggestRequest) ([]Suggestion, error) {
	path := fmt.Sprintf("/api/contacts/%s/suggest", url.PathEscape(contactID))

	var out ApiResponse[[]Suggestion]
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	if err := out.asError(); err != nil {
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}

	return out.Data, nil
}

// asError converts a non-success envelope into an error
func (r ApiResponse[T]) asError() error {
	switch r.Status {
	case StatusFail:
		return fmt.Errorf("%s", r.Message)
	case StatusError:
		return fmt.Errorf("%s: %v", r.Message, r.Error)
	}
	return nil
}

// doJSON is a helper to perform JSON requests to the backend
func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any) error {
	// Create request body if input is provided
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(b)
	}

	// Create the request
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	// Perform the request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// On error, read body and return error
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("backend '%s %s' failed: %d: %s", method, path, resp.StatusCode, string(b))
	}

	// If no output expected, return early
	if out == nil {
		return nil
	}

	// Decode the response body into the output struct
	dec := json.NewDecoder(resp.Body)
	return dec.Decode(out)
}
