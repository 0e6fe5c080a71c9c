package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"whaleflow/config"
	"whaleflow/internal/archive"
	"whaleflow/internal/cache"
	"whaleflow/internal/metrics"
	"whaleflow/internal/reader/binance"
	"whaleflow/internal/reader/bybit"
	"whaleflow/internal/reader/hyperliquid"
	"whaleflow/internal/reader/kucoin"
	"whaleflow/internal/reader/okx"
	"whaleflow/internal/server"
	"whaleflow/internal/service"
	"whaleflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Whaleflow.Name,
		"version":     cfg.Whaleflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting whaleflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.Init()
	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
		metrics.StartCloudWatchMirror(ctx, cfg.Metrics.CloudWatch.Interval)
	}

	var store *cache.RedisStore
	if cfg.Redis.Enabled {
		store = cache.NewRedisStore(cfg.Redis)
		if err := store.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unreachable, continuing with memory tier only")
		}
		defer store.Close()
	}

	hlClient := hyperliquid.NewClient(cfg)
	mids := hyperliquid.NewMidsStream(cfg)

	var sources []service.MarketSource
	if cfg.Source.Hyperliquid.Enabled {
		sources = append(sources, hyperliquid.NewMarketSource(hlClient, mids))
	}
	if cfg.Source.Binance.Enabled {
		sources = append(sources, binance.NewMarketReader(cfg))
	}
	if cfg.Source.Bybit.Enabled {
		sources = append(sources, bybit.NewMarketReader(cfg))
	}
	if cfg.Source.Kucoin.Enabled {
		sources = append(sources, kucoin.NewMarketReader(cfg))
	}
	if cfg.Source.Okx.Enabled {
		sources = append(sources, okx.NewMarketReader(cfg))
	}

	whaleService := service.NewWhaleService(hlClient, store, cfg.Whales)
	marketService := service.NewMarketService(sources, store)

	if cfg.Source.Hyperliquid.Enabled {
		if err := mids.Start(ctx); err != nil {
			log.WithError(err).Warn("mids stream failed to start")
		}
	}

	var archiver *archive.Archiver
	if cfg.Storage.S3.Enabled {
		archiver, err = archive.NewArchiver(cfg, whaleService)
		if err != nil {
			log.WithError(err).Error("failed to create archiver")
			os.Exit(1)
		}
		if err := archiver.Start(ctx); err != nil {
			log.WithError(err).Warn("archiver failed to start")
		}
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping archiver")
	}

	srv := server.NewServer(cfg.Server, whaleService, marketService)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverDown := false
	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		serverDown = true
		if err != nil {
			log.WithError(err).Error("http server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	done := make(chan struct{})
	go func() {
		if archiver != nil {
			archiver.Stop()
		}
		if cfg.Source.Hyperliquid.Enabled {
			mids.Stop()
		}
		if !serverDown {
			<-serverErr
		}
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("whaleflow stopped")
}
