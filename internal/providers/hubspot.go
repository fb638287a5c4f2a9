package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
)

// HubSpotClient performs contact operations against the HubSpot CRM v3
// API
type HubSpotClient struct {
	baseClient
	baseURL string
	mapper  *crm.FieldMapper
}

// NewHubSpotClient creates a HubSpot contact client
func NewHubSpotClient(cfg *utils.Config, tokens *token.Service) *HubSpotClient {
	timeout := time.Duration(cfg.GetIntWithDefault("CRM_HTTP_TIMEOUT_SECONDS", 30)) * time.Second

	return &HubSpotClient{
		baseClient: baseClient{
			provider:   crm.ProviderHubSpot,
			tokens:     tokens,
			httpClient: &http.Client{Timeout: timeout},
		},
		baseURL: cfg.GetWithDefault("HUBSPOT_API_URL", "https://api.hubapi.com"),
		mapper:  crm.HubSpotFields,
	}
}

// hubspotContact is the raw shape HubSpot returns for one contact.
// Property values can be JSON null, which means "no value" rather than
// empty string.
type hubspotContact struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
}

// toRecord normalizes a raw HubSpot contact onto the canonical record
func (c *HubSpotClient) toRecord(raw *hubspotContact) *crm.ContactRecord {
	props := make(map[string]string, len(raw.Properties))
	for key, value := range raw.Properties {
		if value != nil {
			props[key] = *value
		}
	}
	return c.mapper.RecordFromWire(raw.ID, props)
}

// SearchContacts performs a free-text search over HubSpot contacts
func (c *HubSpotClient) SearchContacts(ctx context.Context, cred *crm.Credential, query string) ([]crm.ContactRecord, error) {
	var records []crm.ContactRecord

	err := c.withAuthRetry(ctx, cred, hubspotTokenExpired, func(current *crm.Credential) error {
		body := map[string]any{
			"query":      query,
			"limit":      searchLimit,
			"properties": c.mapper.WireFields(),
		}

		var out struct {
			Results []hubspotContact `json:"results"`
		}
		if _, err := c.doJSON(ctx, current.AccessToken, http.MethodPost, c.baseURL+"/crm/v3/objects/contacts/search", body, &out); err != nil {
			return err
		}

		records = make([]crm.ContactRecord, 0, len(out.Results))
		for i := range out.Results {
			records = append(records, *c.toRecord(&out.Results[i]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetContact fetches a HubSpot contact by ID
func (c *HubSpotClient) GetContact(ctx context.Context, cred *crm.Credential, contactID string) (*crm.ContactRecord, error) {
	var record *crm.ContactRecord

	err := c.withAuthRetry(ctx, cred, hubspotTokenExpired, func(current *crm.Credential) error {
		var err error
		record, err = c.getContact(ctx, current, contactID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// getContact performs the fetch with an already-validated credential
func (c *HubSpotClient) getContact(ctx context.Context, current *crm.Credential, contactID string) (*crm.ContactRecord, error) {
	endpoint := c.baseURL + "/crm/v3/objects/contacts/" + url.PathEscape(contactID) +
		"?properties=" + url.QueryEscape(strings.Join(c.mapper.WireFields(), ","))

	var out hubspotContact
	if _, err := c.doJSON(ctx, current.AccessToken, http.MethodGet, endpoint, nil, &out); err != nil {
		var apiErr *crm.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, crm.ErrNotFound
		}
		return nil, err
	}

	return c.toRecord(&out), nil
}

// UpdateContact patches a HubSpot contact with the mapped fields and
// returns the updated record
func (c *HubSpotClient) UpdateContact(ctx context.Context, cred *crm.Credential, contactID string, updates map[string]string) (*crm.ContactRecord, error) {
	var record *crm.ContactRecord

	err := c.withAuthRetry(ctx, cred, hubspotTokenExpired, func(current *crm.Credential) error {
		body := map[string]any{
			"properties": c.mapper.ToProvider(updates),
		}

		endpoint := c.baseURL + "/crm/v3/objects/contacts/" + url.PathEscape(contactID)

		var out hubspotContact
		hasBody, err := c.doJSON(ctx, current.AccessToken, http.MethodPatch, endpoint, body, &out)
		if err != nil {
			var apiErr *crm.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return crm.ErrNotFound
			}
			return err
		}

		// An empty acknowledgment means the caller would otherwise see
		// a stale pre-update snapshot, so fetch the current state
		if !hasBody {
			record, err = c.getContact(ctx, current, contactID)
			return err
		}

		record = c.toRecord(&out)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ApplyUpdates applies the suggestions marked for application. Returns
// (nil, nil) when nothing is marked.
func (c *HubSpotClient) ApplyUpdates(ctx context.Context, cred *crm.Credential, contactID string, updates []crm.FieldUpdate) (*crm.ContactRecord, error) {
	collapsed := collapseUpdates(updates)
	if collapsed == nil {
		return nil, nil
	}

	return c.UpdateContact(ctx, cred, contactID, collapsed)
}

// hubspotTokenExpired reports whether a HubSpot rejection names an
// expired token, as opposed to some other authorization failure such as
// a missing scope
func hubspotTokenExpired(apiErr *crm.APIError) bool {
	var payload struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(apiErr.Body), &payload); err == nil {
		if payload.Category == "EXPIRED_AUTHENTICATION" {
			return true
		}
	}

	return oauthErrorExpired(apiErr.Body)
}
