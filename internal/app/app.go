// Package app assembles the application from configuration: fetching,
// crawler discovery, history, anomaly detection, persistence and the
// optional cloud sinks.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/nmoreaux/techwatch/internal/anomaly"
	"github.com/nmoreaux/techwatch/internal/api"
	"github.com/nmoreaux/techwatch/internal/archive"
	archivegcs "github.com/nmoreaux/techwatch/internal/archive/gcs"
	"github.com/nmoreaux/techwatch/internal/clock/system"
	"github.com/nmoreaux/techwatch/internal/config"
	_ "github.com/nmoreaux/techwatch/internal/crawlers" // register all source crawlers
	"github.com/nmoreaux/techwatch/internal/fetch"
	"github.com/nmoreaux/techwatch/internal/fetch/headless"
	historymemory "github.com/nmoreaux/techwatch/internal/history/memory"
	historypostgres "github.com/nmoreaux/techwatch/internal/history/postgres"
	"github.com/nmoreaux/techwatch/internal/merge"
	"github.com/nmoreaux/techwatch/internal/orchestrator"
	"github.com/nmoreaux/techwatch/internal/publisher"
	publisherpubsub "github.com/nmoreaux/techwatch/internal/publisher/pubsub"
	"github.com/nmoreaux/techwatch/internal/registry"
	"github.com/nmoreaux/techwatch/internal/service"
	"github.com/nmoreaux/techwatch/internal/store"
	"github.com/nmoreaux/techwatch/internal/techwatch"
)

// App holds the wired application.
type App struct {
	Cfg     config.Config
	Logger  *zap.Logger
	Service *service.Service

	renderer  *headless.Renderer
	pgHistory *historypostgres.Store
	archiver  *archivegcs.Archiver
	publisher *publisherpubsub.Publisher
}

// New wires every component from cfg. Cloud sinks and Postgres history
// are optional: leaving their config empty selects local stand-ins.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Logger: logger}

	client, err := fetch.NewClient(fetch.ClientConfig{
		UserAgent:      cfg.Crawler.UserAgent,
		RequestTimeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("building fetch client: %w", err)
	}

	deps := registry.Deps{
		Fetcher:  client,
		Detector: fetch.NewScriptDetector(cfg.Headless.MinHTMLBytes, cfg.Headless.JSKeywords),
		Feeds:    gofeed.NewParser(),
		Clock:    system.New(),
		Logger:   logger,
	}
	if cfg.Headless.Enabled {
		renderer, err := headless.New(headless.Config{
			Enabled:     true,
			UserAgent:   cfg.Crawler.UserAgent,
			NavTimeout:  time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			MaxParallel: cfg.Headless.MaxParallel,
		}, logger)
		if err != nil && !errors.Is(err, headless.ErrDisabled) {
			a.close()
			return nil, fmt.Errorf("starting headless renderer: %w", err)
		}
		if err == nil {
			a.renderer = renderer
			deps.Renderer = renderer
		}
	}

	crawlers := registry.Build(deps)
	if len(crawlers) == 0 {
		a.close()
		return nil, errors.New("no crawlers registered")
	}

	var history techwatch.HistoryStore
	if cfg.History.DSN != "" {
		pg, err := historypostgres.New(ctx, historypostgres.Config{
			DSN:   cfg.History.DSN,
			Table: cfg.History.Table,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting yield history store: %w", err)
		}
		a.pgHistory = pg
		history = pg
	} else {
		logger.Info("no history DSN configured, keeping yield history in memory")
		history = historymemory.New()
	}

	detector := anomaly.New(history, anomaly.Thresholds{
		MinHistoryRuns:      cfg.Anomaly.MinHistoryRuns,
		MaxConsecutiveEmpty: cfg.Anomaly.MaxConsecutiveEmpty,
		LowYieldRatio:       cfg.Anomaly.LowYieldRatio,
	}, logger)

	clock := system.New()
	orch := orchestrator.New(crawlers, detector, history, clock, orchestrator.Config{
		Workers:       cfg.Crawler.Workers,
		SourceTimeout: cfg.SourceTimeout(),
		ProbeOnEmpty:  cfg.Crawler.ProbeOnEmpty,
	}, logger)

	var archiver techwatch.Archiver = archive.Noop{}
	if cfg.Archive.GCSBucket != "" {
		gcs, err := archivegcs.New(ctx, cfg.Archive.GCSBucket, cfg.Archive.Prefix, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting archive bucket: %w", err)
		}
		a.archiver = gcs
		archiver = gcs
	}

	var pub techwatch.Publisher = publisher.Noop{}
	if cfg.PubSub.ProjectID != "" {
		ps, err := publisherpubsub.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting pubsub: %w", err)
		}
		a.publisher = ps
		pub = ps
	}

	repo := store.NewRepository(cfg.Storage.Path, logger)
	a.Service = service.New(orch, merge.New(clock, logger), repo, archiver, pub, logger)
	return a, nil
}

// Server builds the HTTP front end over the wired service.
func (a *App) Server() *api.Server {
	return api.NewServer(a.Service, system.New(), api.Config{
		RequestTimeout:   a.Cfg.RequestTimeout(),
		DefaultRangeDays: a.Cfg.Crawler.DefaultRangeDays,
	}, a.Logger)
}

// Close releases every held connection. Safe on a partially built App.
func (a *App) Close() {
	a.close()
}

func (a *App) close() {
	if a.renderer != nil {
		if err := a.renderer.Close(); err != nil {
			a.Logger.Warn("closing headless renderer", zap.Error(err))
		}
	}
	if a.pgHistory != nil {
		a.pgHistory.Close()
	}
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.Logger.Warn("closing archive client", zap.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.Logger.Warn("closing pubsub client", zap.Error(err))
		}
	}
}
