package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/entity-discovery/internal/config"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/database"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/events"
	"github.com/jonesrussell/north-cloud/entity-discovery/internal/logger"
)

// infrastructure holds the long-lived connections.
type infrastructure struct {
	db    *sqlx.DB
	redis *redis.Client
}

func setupInfrastructure(cfg *config.Config, log logger.Logger) (*infrastructure, error) {
	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	infra := &infrastructure{db: db}

	// Redis only carries events; the service runs without it.
	if !cfg.Redis.Enabled {
		log.Info("Redis events disabled")
		return infra, nil
	}
	client, err := events.NewRedisClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("Redis unavailable, events disabled",
			logger.String("address", cfg.Redis.Address),
			logger.Error(err),
		)
		return infra, nil
	}
	log.Info("Redis connected", logger.String("address", cfg.Redis.Address))
	infra.redis = client
	return infra, nil
}

// Close releases every connection, logging failures.
func (i *infrastructure) Close(log logger.Logger) {
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Error("Failed to close redis", logger.Error(err))
		}
	}
	if err := i.db.Close(); err != nil {
		log.Error("Failed to close database", logger.Error(err))
	}
}
