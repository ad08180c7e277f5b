package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonnyspicer/mango"
	"golang.org/x/sync/errgroup"

	"autopilot/internal/browser"
	"autopilot/internal/collector"
	"autopilot/internal/config"
	"autopilot/internal/db"
	"autopilot/internal/domain"
	"autopilot/internal/engine"
	"autopilot/internal/execution"
	"autopilot/internal/market"
	"autopilot/internal/optimizer"
	"autopilot/internal/performance"
	"autopilot/internal/pipeline"
	"autopilot/internal/scheduler"
	"autopilot/internal/server"
	"autopilot/internal/store"
	"autopilot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to the TOML config file")
	autostart := flag.Bool("start", true, "Start the engine immediately")
	flag.Parse()

	if p := os.Getenv("AUTOPILOT_CONFIG_PATH"); p != "" {
		*configPath = p
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("autopilot starting", "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closers, err := buildSink(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialise storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	loc, _ := cfg.Location()
	cadences, err := buildCadences(cfg, loc)
	if err != nil {
		logger.Error("invalid schedule", "error", err)
		os.Exit(1)
	}

	mode, err := performance.ParseMode(cfg.Engine.ReportMode)
	if err != nil {
		logger.Error("invalid report mode", "error", err)
		os.Exit(1)
	}

	port := buildPort(cfg, logger)
	hub := server.NewHub(logger)

	p, err := pipeline.New(pipeline.Deps{
		Port:      port,
		Sink:      sink,
		Publisher: hub,
		Source:    buildSource(cfg, port),
		Scorer:    market.NewScorer(cfg.Scan.Keywords, cfg.Scan.RecencyMarkers),
		Cache:     market.NewCache(cfg.Scan.CacheTTL.Duration),
		Collector: collector.NewCollector(port),
		Strategies: []strategy.Strategy{
			strategy.NewStatic(true),
			strategy.NewHotMarket(true, cfg.Engine.UrgentPriority, logger),
		},
		Executor:  execution.NewExecutor(execution.DefaultHandlers(logger), logger),
		Optimizer: optimizer.New(optimizer.NewStaticAnalyzer(), optimizer.LogApplier{Logger: logger}, logger),
		Tracker:   performance.NewTracker(mode),
		Logger:    logger,
	}, pipeline.Options{
		Markets:               cfg.Scan.Markets,
		Competitors:           cfg.Competitors.URLs,
		Projects:              projects(cfg.Projects),
		MaxOpportunities:      cfg.Engine.MaxOpportunities,
		MaxTasks:              cfg.Engine.MaxTasks,
		HighPriorityThreshold: cfg.Engine.HighPriorityThreshold,
		HeapWarnMB:            cfg.Engine.HeapWarnMB,
		Concurrency:           cfg.Engine.Concurrency,
	})
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	eng := engine.New(ctx, engine.Options{
		Pipeline:  p,
		Port:      port,
		Cadences:  cadences,
		Defaults:  cfg.Engine.EngineConfig,
		Publisher: hub,
		Logger:    logger,
	})

	if *autostart {
		if err := eng.Start(ctx, domain.ConfigPatch{}); err != nil {
			logger.Error("failed to start engine", "error", err)
			os.Exit(1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(server.Config{Addr: cfg.Server.Addr}, eng, hub, logger)
		g.Go(srv.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, eng.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("autopilot exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("autopilot stopped")
}

// buildSink opens every configured backend and fans writes out to all of
// them. The returned closers release connections on exit.
func buildSink(ctx context.Context, cfg *config.Config) (domain.Sink, []io.Closer, error) {
	var (
		sinks   []store.Named
		closers []io.Closer
	)
	for _, backend := range cfg.Store.Backends {
		switch backend {
		case "file":
			sinks = append(sinks, store.NewFile(cfg.Store.Dir))

		case "sqlite":
			database, err := openDB(cfg.Store.DBPath)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, database)
			sinks = append(sinks, store.NewSQLite(database))

		case "redis":
			r, err := store.NewRedis(ctx, store.RedisConfig{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
				Prefix:   cfg.Redis.Prefix,
			})
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, r)
			sinks = append(sinks, r)

		case "s3":
			s, err := store.NewS3(ctx, store.S3Config{
				Endpoint:       cfg.S3.Endpoint,
				Region:         cfg.S3.Region,
				Bucket:         cfg.S3.Bucket,
				AccessKey:      cfg.S3.AccessKey,
				SecretKey:      cfg.S3.SecretKey,
				ForcePathStyle: cfg.S3.ForcePathStyle,
				Prefix:         cfg.S3.Prefix,
			})
			if err != nil {
				return nil, closers, err
			}
			sinks = append(sinks, s)
		}
	}
	return store.NewMulti(sinks...), closers, nil
}

func openDB(path string) (*sql.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return database, nil
}

func buildPort(cfg *config.Config, logger *slog.Logger) domain.Port {
	switch cfg.Browser.Mode {
	case "headless":
		return browser.NewRod(browser.RodConfig{
			RemoteURL:    cfg.Browser.RemoteURL,
			NoSandbox:    cfg.Browser.NoSandbox,
			FetchTimeout: cfg.Browser.FetchTimeout.Duration,
			UserAgent:    cfg.Browser.UserAgent,
			Logger:       logger,
		})
	case "http":
		return browser.NewHTTP(cfg.Browser.FetchTimeout.Duration, cfg.Browser.UserAgent)
	default:
		return browser.Off{}
	}
}

func buildSource(cfg *config.Config, port domain.Port) market.TrendSource {
	if cfg.Scan.Source == "manifold" {
		return market.NewManifoldSource(mango.DefaultClientInstance(), 0, cfg.Scan.MaxTrends)
	}
	return market.NewSearchSource(port, cfg.Scan.SearchURL, cfg.Scan.QuerySuffix, cfg.Scan.MaxTrends)
}

func buildCadences(cfg *config.Config, loc *time.Location) (engine.Cadences, error) {
	optH, optM, err := config.ParseClock(cfg.Schedule.OptimizeAt)
	if err != nil {
		return engine.Cadences{}, err
	}
	repH, repM, err := config.ParseClock(cfg.Schedule.ReportAt)
	if err != nil {
		return engine.Cadences{}, err
	}
	return engine.Cadences{
		MarketScan:   scheduler.EveryHours(cfg.Schedule.MarketScanHours, loc),
		Competitors:  scheduler.EveryHours(cfg.Schedule.CompetitorHours, loc),
		Detection:    scheduler.EveryHours(cfg.Schedule.DetectionHours, loc),
		Optimization: scheduler.Daily(optH, optM, loc),
		Report:       scheduler.Daily(repH, repM, loc),
		QuickScan:    scheduler.FixedInterval{Every: cfg.Schedule.QuickScanInterval.Duration},
		HealthCheck:  scheduler.FixedInterval{Every: cfg.Schedule.HealthCheckInterval.Duration},
	}, nil
}

func projects(in []config.ProjectConfig) []optimizer.Project {
	out := make([]optimizer.Project, 0, len(in))
	for _, p := range in {
		out = append(out, optimizer.Project{ID: p.ID, Name: p.Name, URL: p.URL})
	}
	return out
}
