package crm

import (
	"time"

	"github.com/google/uuid"
)

// Provider identifies a supported CRM provider
type Provider string

const (
	ProviderHubSpot    Provider = "hubspot"
	ProviderSalesforce Provider = "salesforce"
)

// Valid reports whether the provider is one of the supported CRMs
func (p Provider) Valid() bool {
	switch p {
	case ProviderHubSpot, ProviderSalesforce:
		return true
	}
	return false
}

// Metadata keys for provider-specific out-of-band data
const (
	// MetadataInstanceURL holds the per-tenant API base URL returned by
	// Salesforce's token endpoint
	MetadataInstanceURL = "instance_url"
)

// Credential represents one user's authorization against one provider.
// A user has at most one active credential per provider. The credential
// store owns these records; everything else holds a borrowed, possibly
// stale, copy for the duration of one logical operation.
type Credential struct {
	ID           uuid.UUID         `json:"id"`
	UserID       string            `json:"user_id"`
	Provider     Provider          `json:"provider"`
	AccessToken  string            `json:"-"`
	RefreshToken string            `json:"-"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// InstanceURL returns the provider instance URL from metadata, if set
func (c *Credential) InstanceURL() string {
	return c.Metadata[MetadataInstanceURL]
}
