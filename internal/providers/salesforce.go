package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
)

// salesforceAPIVersion pins the REST API version used for every call
const salesforceAPIVersion = "v59.0"

// SalesforceClient performs contact operations against the Salesforce
// REST API. Salesforce is multi-tenant: every request is routed through
// the per-org instance URL stored in the credential's metadata.
type SalesforceClient struct {
	baseClient
	mapper *crm.FieldMapper
}

// NewSalesforceClient creates a Salesforce contact client
func NewSalesforceClient(cfg *utils.Config, tokens *token.Service) *SalesforceClient {
	timeout := time.Duration(cfg.GetIntWithDefault("CRM_HTTP_TIMEOUT_SECONDS", 30)) * time.Second

	return &SalesforceClient{
		baseClient: baseClient{
			provider:   crm.ProviderSalesforce,
			tokens:     tokens,
			httpClient: &http.Client{Timeout: timeout},
		},
		mapper: crm.SalesforceFields,
	}
}

// instanceURL resolves the per-org API base URL from the credential
func (c *SalesforceClient) instanceURL(cred *crm.Credential) (string, error) {
	instanceURL := cred.InstanceURL()
	if instanceURL == "" {
		return "", fmt.Errorf("salesforce credential %s has no instance_url metadata", cred.ID)
	}
	return strings.TrimSuffix(instanceURL, "/"), nil
}

// fieldList returns the stable, comma-joined field selection for
// Contact queries, including the read-only Account.Name relationship
func (c *SalesforceClient) fieldList() string {
	fields := c.mapper.WireFields()
	sort.Strings(fields)
	return "Id, " + strings.Join(fields, ", ")
}

// flattenRecord converts a raw Salesforce record into a flat wire
// property map, folding one level of relationship objects into dotted
// names (Account -> Account.Name) and skipping null values
func flattenRecord(raw map[string]any) (string, map[string]string) {
	var id string
	props := make(map[string]string, len(raw))

	for key, value := range raw {
		if key == "attributes" {
			continue
		}

		switch v := value.(type) {
		case string:
			if key == "Id" {
				id = v
				continue
			}
			props[key] = v
		case map[string]any:
			for nested, nestedValue := range v {
				if nested == "attributes" {
					continue
				}
				if s, ok := nestedValue.(string); ok {
					props[key+"."+nested] = s
				}
			}
		}
	}

	return id, props
}

// SearchContacts performs a SOSL free-text search over contacts
func (c *SalesforceClient) SearchContacts(ctx context.Context, cred *crm.Credential, query string) ([]crm.ContactRecord, error) {
	var records []crm.ContactRecord

	err := c.withAuthRetry(ctx, cred, salesforceTokenExpired, func(current *crm.Credential) error {
		base, err := c.instanceURL(current)
		if err != nil {
			return err
		}

		sosl := fmt.Sprintf("FIND {%s} IN ALL FIELDS RETURNING Contact(%s) LIMIT %d",
			escapeSearchTerm(query), c.fieldList(), searchLimit)
		endpoint := fmt.Sprintf("%s/services/data/%s/search/?q=%s",
			base, salesforceAPIVersion, url.QueryEscape(sosl))

		var out struct {
			SearchRecords []map[string]any `json:"searchRecords"`
		}
		if _, err := c.doJSON(ctx, current.AccessToken, http.MethodGet, endpoint, nil, &out); err != nil {
			return err
		}

		records = make([]crm.ContactRecord, 0, len(out.SearchRecords))
		for _, raw := range out.SearchRecords {
			id, props := flattenRecord(raw)
			records = append(records, *c.mapper.RecordFromWire(id, props))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// GetContact fetches a contact by ID via a SOQL query, which is the
// only way to pull the related account name in the same round trip
func (c *SalesforceClient) GetContact(ctx context.Context, cred *crm.Credential, contactID string) (*crm.ContactRecord, error) {
	var record *crm.ContactRecord

	err := c.withAuthRetry(ctx, cred, salesforceTokenExpired, func(current *crm.Credential) error {
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
func (c *SalesforceClient) getContact(ctx context.Context, current *crm.Credential, contactID string) (*crm.ContactRecord, error) {
	base, err := c.instanceURL(current)
	if err != nil {
		return nil, err
	}

	soql := fmt.Sprintf("SELECT %s FROM Contact WHERE Id = '%s'",
		c.fieldList(), strings.ReplaceAll(contactID, "'", "\\'"))
	endpoint := fmt.Sprintf("%s/services/data/%s/query/?q=%s",
		base, salesforceAPIVersion, url.QueryEscape(soql))

	var out struct {
		TotalSize int              `json:"totalSize"`
		Records   []map[string]any `json:"records"`
	}
	if _, err := c.doJSON(ctx, current.AccessToken, http.MethodGet, endpoint, nil, &out); err != nil {
		var apiErr *crm.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, crm.ErrNotFound
		}
		return nil, err
	}

	if out.TotalSize == 0 || len(out.Records) == 0 {
		return nil, crm.ErrNotFound
	}

	id, props := flattenRecord(out.Records[0])
	return c.mapper.RecordFromWire(id, props), nil
}

// UpdateContact patches a Contact sobject. Salesforce acknowledges the
// update with 204 No Content, so the record is always re-fetched before
// returning.
func (c *SalesforceClient) UpdateContact(ctx context.Context, cred *crm.Credential, contactID string, updates map[string]string) (*crm.ContactRecord, error) {
	var record *crm.ContactRecord

	err := c.withAuthRetry(ctx, cred, salesforceTokenExpired, func(current *crm.Credential) error {
		base, err := c.instanceURL(current)
		if err != nil {
			return err
		}

		endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/Contact/%s",
			base, salesforceAPIVersion, url.PathEscape(contactID))

		if _, err := c.doJSON(ctx, current.AccessToken, http.MethodPatch, endpoint, c.mapper.ToProvider(updates), nil); err != nil {
			var apiErr *crm.APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return crm.ErrNotFound
			}
			return err
		}

		// The 204 acknowledgment carries no representation, so fetch
		// the current state before returning
		record, err = c.getContact(ctx, current, contactID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// ApplyUpdates applies the suggestions marked for application. Returns
// (nil, nil) when nothing is marked.
func (c *SalesforceClient) ApplyUpdates(ctx context.Context, cred *crm.Credential, contactID string, updates []crm.FieldUpdate) (*crm.ContactRecord, error) {
	collapsed := collapseUpdates(updates)
	if collapsed == nil {
		return nil, nil
	}

	return c.UpdateContact(ctx, cred, contactID, collapsed)
}

// salesforceTokenExpired reports whether a Salesforce rejection names
// an expired session. Salesforce error bodies are JSON arrays.
func salesforceTokenExpired(apiErr *crm.APIError) bool {
	var payload []struct {
		ErrorCode string `json:"errorCode"`
	}
	if err := json.Unmarshal([]byte(apiErr.Body), &payload); err == nil {
		for _, entry := range payload {
			if entry.ErrorCode == "INVALID_SESSION_ID" {
				return true
			}
		}
	}

	return oauthErrorExpired(apiErr.Body)
}

// soslMetaChars are the characters reserved by the SOSL search language
var soslMetaChars = map[rune]bool{
	'\\': true, '?': true, '&': true, '|': true, '!': true,
	'{': true, '}': true, '[': true, ']': true, '(': true, ')': true,
	'^': true, '~': true, ':': true, '"': true, '\'': true,
}

// escapeSearchTerm backslash-escapes every SOSL metacharacter in a
// free-text query before it is embedded in a FIND clause
func escapeSearchTerm(query string) string {
	var b strings.Builder
	b.Grow(len(query))

	for _, r := range query {
		if soslMetaChars[r] {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}

	return b.String()
}
