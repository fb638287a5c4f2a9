package providers

import (
	"fmt"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
)

// Registry resolves the contact client for a credential's provider tag.
// The set of providers is closed: dispatch is a lookup on the tag, not
// reflection.
type Registry struct {
	clients map[crm.Provider]ContactClient
}

// NewRegistry creates a registry with every supported provider wired
func NewRegistry(cfg *utils.Config, tokens *token.Service) *Registry {
	return &Registry{
		clients: map[crm.Provider]ContactClient{
			crm.ProviderHubSpot:    NewHubSpotClient(cfg, tokens),
			crm.ProviderSalesforce: NewSalesforceClient(cfg, tokens),
		},
	}
}

// Get returns the contact client for a provider
func (r *Registry) Get(provider crm.Provider) (ContactClient, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crm.ErrUnsupportedProvider, provider)
	}
	return client, nil
}

// Providers returns the provider tags with a wired client
func (r *Registry) Providers() []crm.Provider {
	providers := make([]crm.Provider, 0, len(r.clients))
	for provider := range r.clients {
		providers = append(providers, provider)
	}
	return providers
}
