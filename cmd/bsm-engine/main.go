package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-bsm/internal/alarms"
	"github.com/miradorstack/mirador-bsm/internal/api"
	"github.com/miradorstack/mirador-bsm/internal/cache"
	"github.com/miradorstack/mirador-bsm/internal/config"
	"github.com/miradorstack/mirador-bsm/internal/definitions"
	"github.com/miradorstack/mirador-bsm/internal/engine"
	"github.com/miradorstack/mirador-bsm/internal/metrics"
	"github.com/miradorstack/mirador-bsm/internal/services"
	"github.com/miradorstack/mirador-bsm/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	logger.Info("starting mirador-bsm",
		slog.String("address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("definitions", cfg.Definitions.Source),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("status cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	var source definitions.Source
	switch cfg.Definitions.Source {
	case config.SourceHTTP:
		source = definitions.NewHTTPSource(cfg.Definitions.URL, cfg.Definitions.Timeout, cacheProvider, logger)
	default:
		source = definitions.NewFileSource(cfg.Definitions.Path)
	}

	machine := engine.NewStateMachine(logger)
	bsmService := services.NewBSMService(logger, source, machine, definitions.NewCatalog())

	server, err := api.NewServer(cfg.Server)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	healthBridge := api.NewHealthBridge(server.Health())
	machine.AddHandler(healthBridge.Handle, nil)
	bsmService.OnRemoved(healthBridge.Forget)

	if cfg.Cache.Enabled {
		publisher := cache.NewStatusPublisher(cacheProvider, cfg.Cache.KeyPrefix, cfg.Cache.StatusTTL, logger)
		machine.AddHandler(publisher.Handle, nil)
		bsmService.OnRemoved(func(ctx context.Context, name string) {
			if err := publisher.Forget(ctx, name); err != nil {
				logger.Warn("failed to drop published status", slog.String("business_service", name), slog.Any("error", err))
			}
		})
	}

	if err := bsmService.Reload(context.Background()); err != nil {
		logger.Error("failed to load business service definitions", slog.Any("error", err))
		os.Exit(1)
	}
	healthBridge.Sync(machine.BusinessServiceStatuses())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Alarms.Enabled {
		consumer, err := alarms.NewConsumer(alarms.Config{
			Addr:         cfg.Alarms.Addr,
			Password:     cfg.Alarms.Password,
			DB:           cfg.Alarms.DB,
			Key:          cfg.Alarms.Key,
			BlockTimeout: cfg.Alarms.BlockTimeout,
		})
		if err != nil {
			logger.Error("failed to create alarm consumer", slog.Any("error", err))
			os.Exit(1)
		}
		defer consumer.Close()

		pipeline := alarms.NewPipeline(consumer, machine, logger, cfg.Alarms.RetryDelay)
		go func() {
			_ = pipeline.Run(ctx)
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				logger.Info("reload requested by SIGHUP")
				if err := bsmService.Reload(ctx); err == nil {
					healthBridge.Sync(machine.BusinessServiceStatuses())
				}
			}
		}
	}()

	if cfg.Definitions.Source == config.SourceFile && cfg.Definitions.Watch {
		watcher, err := definitions.NewWatcher(cfg.Definitions.Path, cfg.Definitions.Debounce, func(ctx context.Context) {
			if err := bsmService.Reload(ctx); err == nil {
				healthBridge.Sync(machine.BusinessServiceStatuses())
			}
		}, logger)
		if err != nil {
			logger.Warn("definition watch unavailable", slog.Any("error", err))
		} else {
			go func() {
				_ = watcher.Run(ctx)
			}()
		}
	}

	var httpServer *api.HTTPServer
	if cfg.Server.HTTPAddress != "" {
		router := api.NewRouter(api.RouterDeps{
			Machine:  machine,
			Reloader: bsmService,
			Lookup:   bsmService.Catalog(),
			Gatherer: prometheus.DefaultGatherer,
			Logger:   logger,
		})
		httpServer, err = api.NewHTTPServer(cfg.Server.HTTPAddress, router)
		if err != nil {
			logger.Error("failed to create http server", slog.Any("error", err))
			os.Exit(1)
		}
		go func() {
			logger.Info("http server listening", slog.String("address", httpServer.Address()))
			if err := httpServer.Start(); err != nil {
				logger.Error("http server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("gRPC server listening", slog.String("address", server.Address()))
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("mirador-bsm stopped")
}
