package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"harvester/internal/config"
	"harvester/internal/core/engine"
	"harvester/internal/core/job"
	"harvester/internal/core/proxy"
	"harvester/internal/core/ratelimit"
	"harvester/internal/core/scrape"
	"harvester/internal/ingest"
	"harvester/internal/logger"
	rds "harvester/internal/platform/redis"
	"harvester/internal/platform/storage"
	"harvester/internal/server"
)

func main() {
	_ = godotenv.Load()
	logr := logger.New("main")

	cfg, err := config.Load()
	if err != nil {
		logr.LogFatalf("config: %v", err)
	}
	logr.LogInfof("Starting harvester at %s (env=%s)", cfg.HTTPAddr, cfg.AppEnv)

	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logr.LogFatalf("redis: %v", err)
	}
	defer redisSvc.Close()

	store, err := storage.New(storage.Config{
		AppEnv:     cfg.AppEnv,
		URL:        cfg.SupabaseURL,
		ServiceKey: cfg.SupabaseServiceKey,
		Bucket:     cfg.SupabaseBucket,
		DataDir:    cfg.DataDir,
	})
	if err != nil {
		logr.LogFatalf("export storage: %v", err)
	}

	strategy, err := proxy.ParseStrategy(cfg.Proxy.Strategy)
	if err != nil {
		logr.LogFatalf("proxy strategy: %v", err)
	}

	// Engine with its Redis mirror
	mirror := job.NewMirror(redisSvc)
	eng := engine.New(engine.Config{
		Workers:               cfg.Engine.Workers,
		Permits:               cfg.Engine.Permits,
		RequestDelay:          cfg.Engine.RequestDelay,
		IdleWait:              100 * time.Millisecond,
		MaxConcurrentBulkJobs: cfg.Engine.MaxConcurrentBulkJobs,
		DefaultMaxRetries:     cfg.Engine.JobMaxRetries,
		MaxBulkTargets:        cfg.Engine.MaxBulkTargets,
		HealthCheckInterval:   cfg.Proxy.HealthInterval,
		RateLimit: ratelimit.Config{
			BaseDelay:  cfg.RateLimit.BaseDelay,
			MaxDelay:   cfg.RateLimit.MaxDelay,
			Multiplier: cfg.RateLimit.Multiplier,
			MaxRetries: cfg.RateLimit.MaxRetries,
			Cooldown:   cfg.RateLimit.Cooldown,
		},
		Proxy: proxy.Config{
			Strategy:     strategy,
			MaxPerMinute: cfg.Proxy.MaxPerMinute,
			TestURL:      cfg.Proxy.TestURL,
		},
	}, engine.WithSink(mirror))

	if n, err := eng.Proxies().AddAll(cfg.Proxy.List); err != nil {
		logr.LogWarnf("Some proxies from PROXY_LIST were skipped: %v", err)
	} else if n > 0 {
		logr.LogInfof("Loaded %d proxies from PROXY_LIST", n)
	}
	if cfg.Proxy.File != "" {
		n, err := eng.Proxies().LoadFile(cfg.Proxy.File)
		if err != nil {
			logr.LogWarnf("Proxy file %s: %v", cfg.Proxy.File, err)
		}
		logr.LogInfof("Loaded %d proxies from %s", n, cfg.Proxy.File)
	}

	web := scrape.New(scrape.Config{
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   cfg.Scrape.Timeout,
		Attempts:  cfg.Scrape.Attempts,
		SearchURL: cfg.Scrape.SearchURL,
		RenderJS:  cfg.Scrape.RenderJS,
	}, eng.Proxies(), eng.Limiter())
	defer web.Close()
	if err := eng.RegisterCapability(scrape.Platform, web); err != nil {
		logr.LogFatalf("register web capability: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := eng.Start(ctx); err != nil {
		logr.LogFatalf("engine: %v", err)
	}

	// Ingest: asynq tasks feed the engine
	mux := ingest.NewMux()
	ingest.NewHandlers(eng, store, mirror).Register(mux)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{cfg.TaskQueue: 1},
	})
	if err := asynqServer.Start(mux.Mux()); err != nil {
		logr.LogFatalf("ingest: %v", err)
	}

	// Ops server
	app := fiber.New(fiber.Config{
		AppName:               "Harvester",
		DisableStartupMessage: cfg.IsProduction(),
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})
	if !store.Remote() {
		// local exports are served from DATA_DIR
		app.Static("/files", cfg.DataDir)
	}
	healthHandler := server.RegisterRoutes(app, server.Dependencies{Engine: eng, Redis: redisSvc})
	healthHandler.SetReady()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		if err := eng.Stop(); err != nil {
			logr.LogWarnf("engine stop: %v", err)
		}
		cancel()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logr.LogFatalf("server listen: %v", err)
	}
}
