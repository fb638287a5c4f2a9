package contacts

import (
	"context"
	"fmt"
	"log"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/providers"
	"github.com/notewell/crmbridge/internal/reconcile"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/notewell/crmbridge/internal/suggest"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
)

// clientResolver resolves the contact client for a provider tag
type clientResolver interface {
	Get(provider crm.Provider) (providers.ContactClient, error)
}

// suggestionProducer generates proposed field updates from note text
type suggestionProducer interface {
	Suggest(ctx context.Context, notes string, contact *crm.ContactRecord) ([]crm.FieldUpdate, error)
}

// Service wires the credential store, provider clients, suggestion
// producer, and reconciliation policy behind the contact endpoints
type Service struct {
	store    credential.Store
	clients  clientResolver
	producer suggestionProducer
	policy   *reconcile.Policy
}

var service *Service

// NewService creates a contacts service from its collaborators
func NewService(store credential.Store, clients clientResolver, producer suggestionProducer, policy *reconcile.Policy) *Service {
	if policy == nil {
		policy = reconcile.DefaultPolicy()
	}

	return &Service{
		store:    store,
		clients:  clients,
		producer: producer,
		policy:   policy,
	}
}

// Init creates the service the controllers run off of
func Init(cfg *utils.Config) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.Get("MYSQL_USER"), cfg.Get("MYSQL_ROOT_PASSWORD"),
		cfg.Get("MYSQL_HOST"), cfg.Get("MYSQL_PORT"), cfg.Get("MYSQL_DATABASE"))

	store, err := credential.NewMySqlStore(dsn)
	if err != nil {
		log.Fatalf("[CONTACTS]: Failed to initialize credential store: %v", err)
	}

	policy := reconcile.DefaultPolicy()
	if path := cfg.Get("RECONCILE_POLICY_PATH"); path != "" {
		policy, err = reconcile.LoadPolicy(path)
		if err != nil {
			log.Fatalf("[CONTACTS]: Failed to load reconcile policy: %v", err)
		}
	}

	tokens := token.NewService(cfg, store)
	service = NewService(store, providers.NewRegistry(cfg, tokens), suggest.NewProducer(cfg), policy)
}

// GetService returns the service instance
func GetService() *Service {
	if service == nil {
		log.Fatal("[CONTACTS]: Service is not initialized")
	}
	return service
}

// resolve looks up the user's credential for the provider and the
// matching contact client
func (s *Service) resolve(ctx context.Context, userID string, provider crm.Provider) (*crm.Credential, providers.ContactClient, error) {
	if !provider.Valid() {
		return nil, nil, fmt.Errorf("%w: %s", crm.ErrUnsupportedProvider, provider)
	}

	cred, err := s.store.GetByUserProvider(ctx, userID, provider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load credential: %w", err)
	}

	client, err := s.clients.Get(provider)
	if err != nil {
		return nil, nil, err
	}

	return cred, client, nil
}

// Search performs a free-text contact search for the user's provider
func (s *Service) Search(ctx context.Context, userID string, provider crm.Provider, query string) ([]crm.ContactRecord, error) {
	cred, client, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	return client.SearchContacts(ctx, cred, query)
}

// Get fetches one contact by its provider-native ID
func (s *Service) Get(ctx context.Context, userID string, provider crm.Provider, contactID string) (*crm.ContactRecord, error) {
	cred, client, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	return client.GetContact(ctx, cred, contactID)
}

// Update applies a canonical field map directly to a contact
func (s *Service) Update(ctx context.Context, userID string, provider crm.Provider, contactID string, updates map[string]string) (*crm.ContactRecord, error) {
	cred, client, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	return client.UpdateContact(ctx, cred, contactID, updates)
}

// Reconcile fetches the live record and keeps only the suggestions that
// would actually change it
func (s *Service) Reconcile(ctx context.Context, userID string, provider crm.Provider, contactID string, suggestions []crm.FieldUpdate) ([]crm.FieldUpdate, error) {
	cred, client, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	live, err := client.GetContact(ctx, cred, contactID)
	if err != nil {
		return nil, err
	}

	return reconcile.Merge(suggestions, live, s.policy), nil
}

// Apply commits the suggestions marked for application. Returns
// (nil, nil) when nothing was marked; callers must not treat that as a
// failure.
func (s *Service) Apply(ctx context.Context, userID string, provider crm.Provider, contactID string, suggestions []crm.FieldUpdate) (*crm.ContactRecord, error) {
	cred, client, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	return client.ApplyUpdates(ctx, cred, contactID, suggestions)
}

// SuggestFromNotes generates suggestions from meeting notes and
// reconciles them against the live record before returning
func (s *Service) SuggestFromNotes(ctx context.Context, userID string, provider crm.Provider, contactID string, notes string) ([]crm.FieldUpdate, error) {
	cred, client, err := s.resolve(ctx, userID, provider)
	if err != nil {
		return nil, err
	}

	live, err := client.GetContact(ctx, cred, contactID)
	if err != nil {
		return nil, err
	}

	proposed, err := s.producer.Suggest(ctx, notes, live)
	if err != nil {
		return nil, fmt.Errorf("failed to generate suggestions: %w", err)
	}

	return reconcile.Merge(proposed, live, s.policy), nil
}
