package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"contentcal/internal/assistant"
	"contentcal/internal/backup"
	"contentcal/internal/codec"
	"contentcal/internal/config"
	"contentcal/internal/contentapi"
	"contentcal/internal/exporter"
	"contentcal/internal/fetch"
	"contentcal/internal/importer"
	appLog "contentcal/internal/log"
	"contentcal/internal/metrics"
	"contentcal/internal/settings"
	"contentcal/internal/store"
	"contentcal/internal/web"
)

// app holds the wired components and the resources to release on exit.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	content  web.ContentBackend
	importer *importer.Importer
	exporter *exporter.Exporter
	settings *settings.Service
	backup   *backup.Job

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)
	a.metrics = m

	content, err := a.openContent(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.content = content

	codecOpts := codec.Options{
		Location:  cfg.Location(),
		UIDDomain: cfg.Export.UIDDomain,
	}
	a.importer = importer.New(content, importer.Config{
		MaxFileBytes: cfg.Import.MaxFileBytes,
		Pace:         cfg.Pace(),
		Codec:        codecOpts,
	}, m)
	a.exporter = exporter.New(exporter.Config{
		FilenamePrefix: cfg.Export.FilenamePrefix,
		Codec:          codecOpts,
	}, m)

	st, err := a.openSettings(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.settings = settings.NewService(st)

	if cfg.Backup.Enabled {
		a.backup, err = backup.New(backup.Config{
			Schedule: cfg.Backup.Cron,
			Dir:      cfg.Backup.Dir,
			Keep:     cfg.Backup.Keep,
		}, content, a.exporter, m)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) openContent(ctx context.Context) (web.ContentBackend, error) {
	switch a.cfg.Content.Backend {
	case config.BackendPostgres:
		db, err := store.Open(ctx, a.cfg.Content.Database.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		repo := store.NewContentRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		appLog.Info("content backend ready", "backend", "postgres", "stats", dbStats(db))
		return repo, nil
	default:
		api := a.cfg.Content.API
		var opts []contentapi.Option
		switch {
		case api.JWTSecret != "":
			opts = append(opts, contentapi.WithJWTSecret(api.JWTSecret, "contentcal"))
		case api.Token != "":
			opts = append(opts, contentapi.WithToken(api.Token))
		}
		appLog.Info("content backend ready", "backend", "api", "base_url", api.BaseURL)
		return contentapi.NewClient(api.BaseURL, opts...), nil
	}
}

func (a *app) openSettings(ctx context.Context) (settings.Store, error) {
	if a.cfg.Settings.Backend == config.SettingsRedis {
		rc := a.cfg.Settings.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis %s: %w", rc.Addr, err)
		}
		return settings.NewRedisStore(client, rc.Prefix), nil
	}
	return settings.NewFileStore(a.cfg.Settings.Path)
}

// Serve runs the HTTP API and, when enabled, the backup scheduler until ctx
// is cancelled.
func (a *app) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var backupDone <-chan struct{}
	if a.backup != nil {
		backupDone = a.backup.Start(ctx)
	}

	srv := web.NewServer(a.cfg, web.Deps{
		Importer:  a.importer,
		Exporter:  a.exporter,
		Content:   a.content,
		Fetcher:   fetch.New(a.cfg.Fetch.CacheDir, a.cfg.Fetch.MaxBytes, a.metrics),
		Settings:  a.settings,
		Assistant: assistant.New(a.cfg.Assistant.Rules, a.cfg.Assistant.Fallback),
		Backup:    a.backup,
		Gatherer:  a.registry,
	})
	err := srv.Run(ctx)

	cancel()
	if backupDone != nil {
		<-backupDone
	}
	return err
}

func (a *app) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		appLog.Error("shutdown cleanup failed", err)
	}
}

func dbStats(db *sqlx.DB) string {
	s := db.Stats()
	return fmt.Sprintf("open=%d idle=%d", s.OpenConnections, s.Idle)
}
