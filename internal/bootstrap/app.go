// Package bootstrap wires and runs the entity-discovery service.
package bootstrap

import (
	"context"
	"flag"
	"fmt"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/config"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
)

const (
	serviceName       = "entity-discovery"
	version           = "dev"
	defaultConfigPath = "config.yml"
)

// Start loads configuration and runs the HTTP server until shutdown.
func Start() error {
	configPath := flag.String("config", config.GetConfigPath(defaultConfigPath), "path to config.yml")
	flag.Parse()

	// Phase 1: config and logger
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	log = log.With(logger.String("service", serviceName), logger.String("version", version))
	defer func() { _ = log.Sync() }()

	// Phase 2: storage
	infra, err := setupInfrastructure(cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)

	// Phase 3: discovery service and HTTP server
	server := setupServer(cfg, infra, log)

	if runErr := server.Run(context.Background()); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
