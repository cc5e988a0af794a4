// Package container wires the application dependencies together: storage
// backends, the persistence gateway, the domain store and the services
// built on top of them.
package container

import (
	"time"

	"fotochallenge-api/internal/blob"
	"fotochallenge-api/internal/config"
	"fotochallenge-api/internal/persistence"
	"fotochallenge-api/internal/service"
	"fotochallenge-api/internal/service/critique"
	"fotochallenge-api/internal/store"
	"fotochallenge-api/pkg/localcache"
	"fotochallenge-api/pkg/logger"
	"fotochallenge-api/pkg/redis"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *logger.Logger
	RedisClient  *redis.Client // nil in offline/dev deployments
	LocalCache   *localcache.Cache
	Gateway      *persistence.Gateway
	Store        *store.Store
	BlobStore    *blob.MemoryStore
	Contest      *service.ContestService
	PhaseWatcher *service.PhaseWatcher
}

// New creates a new dependency injection container
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	cache, err := localcache.Open(cfg.DataDir, cfg.LocalCacheMaxBytes)
	if err != nil {
		return nil, err
	}

	// The remote mirror is optional; without Redis the gateway runs
	// local-only and the app stays usable offline-first.
	var redisClient *redis.Client
	var remote persistence.Backend
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Redis client, proceeding with local cache only")
		} else {
			redisClient = client
			remote = persistence.NewRemoteBackend(client)
			log.Info("Redis client initialized successfully")
		}
	} else {
		log.Info("Redis URL not configured, proceeding with local cache only")
	}

	gateway := persistence.NewGateway(persistence.NewLocalBackend(cache), remote, log)
	st := store.New()
	blobs := blob.NewMemoryStore(cfg.PublicBaseURL)
	critiqueSvc := critique.NewService(cfg.GeminiAPIKey, cfg.GeminiModel, log)

	contest := service.NewContestService(st, gateway, blobs, critiqueSvc, time.Now, log)
	watcher := service.NewPhaseWatcher(st, time.Now, log)

	return &Container{
		Config:       cfg,
		Logger:       log,
		RedisClient:  redisClient,
		LocalCache:   cache,
		Gateway:      gateway,
		Store:        st,
		BlobStore:    blobs,
		Contest:      contest,
		PhaseWatcher: watcher,
	}, nil
}

// HasRedis returns true if the remote mirror is available
func (c *Container) HasRedis() bool {
	return c.RedisClient != nil
}
