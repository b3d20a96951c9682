package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nosotros/api/internal/app"
	"nosotros/api/internal/email"
	"nosotros/api/internal/export"
	"nosotros/api/internal/history"
	"nosotros/api/internal/media"
	"nosotros/api/internal/search"
	"nosotros/api/internal/session"
	"nosotros/api/internal/store"
)

// memoryCacheURL selects the process-local cache instead of Redis.
const memoryCacheURL = "memory"

// runtime is the wired service and the resources it owns.
type runtime struct {
	service *app.Service
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	s, err := store.OpenStore(ctx, store.Options{
		Engine:      cfg.StoreEngine,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return s, nil
}

type localCache interface {
	app.Cache
	Close() error
}

func openCache() (localCache, error) {
	if strings.EqualFold(strings.TrimSpace(cfg.RedisURL), memoryCacheURL) {
		logger.Warn("using in-memory local cache; pairing is lost on restart")
		return session.NewMemoryCache(), nil
	}
	return session.NewRedisCache(cfg.RedisURL, cfg.CachePrefix)
}

// openRuntime wires the store, local cache and optional integrations into a
// started service.
func openRuntime(ctx context.Context) (*runtime, error) {
	rt := &runtime{}

	dataStore, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() { _ = dataStore.Close() })

	cache, err := openCache()
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("open local cache: %w", err)
	}
	rt.closers = append(rt.closers, func() { _ = cache.Close() })

	deps := app.Dependencies{
		Store:  dataStore,
		Cache:  cache,
		Export: export.NewService(),
		Logger: logger,
	}

	if strings.TrimSpace(cfg.MinIOEndpoint) != "" {
		uploader, err := media.NewMinIOUploader(media.Options{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
		})
		if err != nil && !errors.Is(err, media.ErrUnavailable) {
			rt.Close()
			return nil, err
		}
		if uploader != nil {
			deps.Uploader = uploader
		}
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, logger)
	deps.Search = searchService
	rt.closers = append(rt.closers, searchService.Close)

	if strings.TrimSpace(cfg.SMTPHost) != "" {
		deps.Mailer = email.NewService(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: "Nosotros",
		})
	}

	if dir := strings.TrimSpace(cfg.HistoryDir); dir != "" {
		deps.History = history.New(dir)
	}

	service := app.New(cfg, deps)
	rt.closers = append(rt.closers, service.Close)
	if err := service.Start(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("start service: %w", err)
	}
	rt.service = service

	logger.Info("runtime ready",
		zap.String("store", cfg.StoreEngine),
		zap.Bool("uploads", deps.Uploader != nil),
		zap.Bool("meilisearch", meiliClient != nil),
		zap.Bool("history", deps.History != nil),
		zap.Bool("email", deps.Mailer.IsConfigured()),
	)
	return rt, nil
}
