// Package sweep proactively refreshes credentials that are about to
// expire, independent of any user-triggered request.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
)

// LookAhead is the sweep's expiry window. Wider than the on-demand
// staleness buffer so a credential is normally rotated here before a
// user request ever sees it stale.
const LookAhead = 10 * time.Minute

// Result aggregates one pass over the expiring population
type Result struct {
	Scanned   int
	Refreshed int
	Failed    int
}

// Sweeper runs the periodic refresh pass over every supported provider
type Sweeper struct {
	store     credential.Store
	tokens    *token.Service
	providers []crm.Provider
	cron      *cron.Cron
	spec      string
}

// NewSweeper creates a sweeper. The schedule is a cron spec taken from
// SWEEP_CRON_SPEC, defaulting to every five minutes.
func NewSweeper(cfg *utils.Config, store credential.Store, tokens *token.Service, providers []crm.Provider) *Sweeper {
	return &Sweeper{
		store:     store,
		tokens:    tokens,
		providers: providers,
		cron:      cron.New(),
		spec:      cfg.GetWithDefault("SWEEP_CRON_SPEC", "*/5 * * * *"),
	}
}

// Start schedules the sweep and begins running it
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		result := s.Run(context.Background())
		log.Printf("[SWEEP]: pass complete (scanned=%d refreshed=%d failed=%d)",
			result.Scanned, result.Refreshed, result.Failed)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the schedule. A pass already in flight finishes.
func (s *Sweeper) Stop() {
	s.cron.Stop()
}

// Run performs one pass: for each provider, list every credential
// expiring within the look-ahead window and force-refresh it. Individual
// failures are logged and counted but never abort the batch; the pass
// itself always completes.
func (s *Sweeper) Run(ctx context.Context) Result {
	var result Result
	before := time.Now().Add(LookAhead)

	for _, provider := range s.providers {
		creds, err := s.store.ListExpiring(ctx, provider, before)
		if err != nil {
			log.Printf("[SWEEP]: failed to list expiring %s credentials: %v", provider, err)
			continue
		}

		result.Scanned += len(creds)
		for _, cred := range creds {
			if _, err := s.tokens.Refresh(ctx, cred); err != nil {
				result.Failed++
				log.Printf("[SWEEP]: refresh failed for credential %s (%s): %v", cred.ID, cred.Provider, err)
				continue
			}
			result.Refreshed++
		}
	}

	return result
}
