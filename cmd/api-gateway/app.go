package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/projecthub-api/internal/handler"
	"github.com/noah-isme/projecthub-api/internal/repository"
	"github.com/noah-isme/projecthub-api/internal/repository/memory"
	"github.com/noah-isme/projecthub-api/internal/service"
	"github.com/noah-isme/projecthub-api/pkg/cache"
	"github.com/noah-isme/projecthub-api/pkg/config"
	"github.com/noah-isme/projecthub-api/pkg/database"
	"github.com/noah-isme/projecthub-api/pkg/jobs"
	"github.com/noah-isme/projecthub-api/pkg/storage"
)

// app holds the wired services and the resources that need closing.
type app struct {
	auth       *service.AuthService
	metrics    *service.MetricsService
	hub        *service.ProgressHub
	purge      *jobs.Queue
	pingers    map[string]handler.Pinger
	projects   *handler.ProjectHandler
	milestones *handler.MilestoneHandler
	files      *handler.FileHandler
	progress   *handler.ProgressHandler
	authH      *handler.AuthHandler
	metricsH   *handler.MetricsHandler

	db    *sqlx.DB
	redis *redis.Client
}

type stores struct {
	users      service.UserStore
	projects   service.ProjectStore
	milestones service.MilestoneStore
	files      service.FileStore
}

func newApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	a := &app{pingers: map[string]handler.Pinger{}}
	validate := validator.New()
	a.metrics = service.NewMetricsService()
	a.hub = service.NewProgressHub(logr)

	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	purgeHandler := func(context.Context, jobs.Job) error { return nil }
	if blobs != nil {
		purgeHandler = repository.NewBlobPurgeHandler(blobs)
	}
	a.purge = jobs.NewQueue(repository.BlobPurgeJob, purgeHandler, jobs.QueueConfig{
		Workers:    cfg.Purge.Workers,
		MaxRetries: cfg.Purge.Retries,
		RetryDelay: cfg.Purge.RetryDelay,
		Logger:     logr,
		OnDone: func(job jobs.Job, err error) {
			a.metrics.PurgeFinished(err)
			if err != nil {
				logr.Warn("blob purge gave up", zap.String("key", job.Key), zap.Error(err))
			}
		},
	})
	a.purge.Start(ctx)

	st, err := a.newStores(ctx, cfg, blobs, logr)
	if err != nil {
		a.Close()
		return nil, err
	}

	cacheSvc, err := a.newCache(ctx, cfg, logr)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.auth = service.NewAuthService(st.users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	projectSvc := service.NewProjectService(st.projects, validate, logr)
	milestoneSvc := service.NewMilestoneService(st.milestones, projectSvc, validate, a.metrics, logr, service.MilestoneServiceConfig{
		EnforceTransitions: cfg.Milestones.EnforceTransitions,
		UpcomingWindow:     cfg.Milestones.UpcomingWindow,
	})
	uploadSvc := service.NewUploadService(st.files, projectSvc, a.hub, cacheSvc, a.metrics, logr, service.UploadServiceConfig{
		MaxConcurrent: cfg.Uploads.MaxConcurrent,
	})
	signer := storage.NewSignedURLSigner(cfg.Downloads.SignedURLSecret, cfg.Downloads.SignedURLTTL)
	fileSvc := service.NewFileService(st.files, projectSvc, signer, cacheSvc, logr, service.FileServiceConfig{
		APIPrefix: cfg.APIPrefix,
		CacheTTL:  cfg.Cache.TTL,
	})

	a.authH = handler.NewAuthHandler(a.auth)
	a.projects = handler.NewProjectHandler(projectSvc)
	a.milestones = handler.NewMilestoneHandler(milestoneSvc)
	a.files = handler.NewFileHandler(uploadSvc, fileSvc, cfg.Uploads.MaxRequestBytes)
	a.progress = handler.NewProgressHandler(a.hub, cfg.Uploads.ProgressBuffer, logr)
	a.metricsH = handler.NewMetricsHandler(a.metrics, a.pingers)
	return a, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.Storage.Blob {
	case config.BlobMock:
		return nil, nil
	case config.BlobS3:
		store, err := storage.NewS3Store(ctx, cfg.Storage.S3)
		if err != nil {
			return nil, fmt.Errorf("init s3 store: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local store: %w", err)
		}
		return store, nil
	}
}

func (a *app) newStores(ctx context.Context, cfg *config.Config, blobs storage.BlobStore, logr *zap.Logger) (*stores, error) {
	demo, err := memory.DemoUsers(cfg.Auth.DemoPassword, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("build demo users: %w", err)
	}

	if cfg.Storage.Backend == config.StoragePostgres {
		if blobs == nil {
			return nil, fmt.Errorf("blob backend %q requires the memory storage backend", cfg.Storage.Blob)
		}
		if err := database.Migrate(cfg.Database); err != nil {
			return nil, err
		}
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.db = db
		a.pingers["database"] = db

		users := repository.NewUserRepository(db)
		if cfg.Env != config.EnvProduction {
			for i := range demo {
				if err := users.Upsert(ctx, &demo[i]); err != nil {
					return nil, fmt.Errorf("seed demo user %s: %w", demo[i].Email, err)
				}
			}
		}
		return &stores{
			users:      users,
			projects:   repository.NewProjectRepository(db),
			milestones: repository.NewMilestoneRepository(db),
			files:      repository.NewObjectFileStore(repository.NewFileRepository(db), blobs, a.purge, cfg.APIPrefix, logr),
		}, nil
	}

	var files service.FileStore
	if blobs == nil {
		files = memory.NewSimulatedFileStore(cfg.Storage.MockTick, cfg.Storage.MockFailure, cfg.APIPrefix)
	} else {
		files = repository.NewObjectFileStore(memory.NewFileMetadata(), blobs, a.purge, cfg.APIPrefix, logr)
	}
	logr.Info("using in-memory stores with demo accounts", zap.Int("users", len(demo)))
	return &stores{
		users:      memory.NewUserStore(demo...),
		projects:   memory.NewProjectStore(),
		milestones: memory.NewMilestoneStore(),
		files:      files,
	}, nil
}

func (a *app) newCache(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*service.CacheService, error) {
	if !cfg.Cache.Enabled {
		return service.NewCacheService(nil, a.metrics, cfg.Cache.TTL, logr, false), nil
	}
	if cfg.Cache.Backend == config.CacheRedis {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.pingers["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return service.NewCacheService(repository.NewCacheRepository(client, logr), a.metrics, cfg.Cache.TTL, logr, true), nil
	}
	lru := cache.NewLRU(cfg.Cache.LRUSize, cfg.Cache.TTL)
	return service.NewCacheService(repository.NewLRUCacheRepository(lru), a.metrics, cfg.Cache.TTL, logr, true), nil
}

// Close releases database and cache connections.
func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
