package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/notewell/crmbridge/internal/crm"
	"github.com/notewell/crmbridge/internal/stores/credential"
	"github.com/notewell/crmbridge/internal/sweep"
	"github.com/notewell/crmbridge/internal/token"
	"github.com/notewell/crmbridge/pkg/utils"
)

// Run the scheduled token refresh sweep
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// Connect the credential store
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.Get("MYSQL_USER"), cfg.Get("MYSQL_ROOT_PASSWORD"),
		cfg.Get("MYSQL_HOST"), cfg.Get("MYSQL_PORT"), cfg.Get("MYSQL_DATABASE"))

	store, err := credential.NewMySqlStore(dsn)
	if err != nil {
		log.Fatalf("[SWEEP-MAIN]: Failed to initialize credential store: %v", err)
	}
	defer store.Close()

	// Start the sweeper over every supported provider
	tokens := token.NewService(cfg, store)
	s := sweep.NewSweeper(cfg, store, tokens, []crm.Provider{crm.ProviderHubSpot, crm.ProviderSalesforce})
	if err := s.Start(); err != nil {
		log.Fatalf("[SWEEP-MAIN]: Failed to start sweeper: %v", err)
	}
	defer s.Stop()

	log.Printf("[SWEEP-MAIN]: Sweeper running")

	// Block until interrupted
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("[SWEEP-MAIN]: Shutting down")
}
