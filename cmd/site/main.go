package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advocat/internal/api"
	"advocat/internal/collection"
	"advocat/internal/config"
	"advocat/internal/domain"
	"advocat/internal/events"
	"advocat/internal/google"
	"advocat/internal/logging"
	"advocat/internal/metrics"
	"advocat/internal/remote"
	"advocat/internal/repository"
	"advocat/internal/schedule"
	"advocat/internal/service"
	"advocat/internal/visitor"
	"advocat/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := base.With().Str("component", "site-main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer (func() { _ = repository.Close(redisClient) })()
	}

	stateRepo, cleanup, err := initStateRepository(ctx, cfg, redisClient, base)
	if err != nil {
		return err
	}
	defer cleanup()
	state := service.NewStateService(stateRepo, base)

	remoteClient := remote.NewClient(cfg.Remote, base)
	if redisClient != nil && cfg.Remote.CacheTTL > 0 {
		remoteClient.UseRedisCache(redisClient, cfg.Remote.CacheTTL)
	}

	eventBus := events.NewEventBus(base)
	initSheetsWorker(ctx, cfg, redisClient, eventBus, base)
	initTelegram(ctx, cfg, eventBus, base)

	sched, err := schedule.New(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	registry := visitor.NewRegistry(remoteClient, state, eventBus, collection.Options{
		Limit:     cfg.Pagination.Limit,
		MinSearch: cfg.Pagination.MinSearchLength,
	}, cfg.Session.IdleTTL, base)
	go registry.RunJanitor(ctx, time.Minute)

	ready := []api.ReadyCheck{{Name: "remote", Check: remoteClient.Ping}}
	if redisClient != nil {
		ready = append(ready, api.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return repository.Ping(ctx, redisClient)
		}})
	}

	httpServer := api.NewHTTPServer(api.Deps{
		Config:   cfg,
		Registry: registry,
		Catalog:  service.NewCatalogService(remoteClient, cfg.Remote.CatalogMaxAge, base),
		Contacts: service.NewContactService(remoteClient, eventBus, base),
		State:    state,
		Schedule: sched,
		Ready:    ready,
		Logger:   base,
	})

	var grpcServer *api.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.GRPC, ready, base)
		if err != nil {
			return err
		}
		go grpcServer.RunProbes(ctx, 15*time.Second)
	}

	if cfg.Monitoring.PrometheusEnabled && cfg.Monitoring.PrometheusPort != cfg.Server.Port {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	return startServers(ctx, httpServer, grpcServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initStateRepository picks the visitor state store. Redis backed stores
// degrade to memory when redis is not reachable.
func initStateRepository(
	ctx context.Context,
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (domain.StateRepository, func(), error) {
	ttl := cfg.Session.TTL
	noop := func() {}

	switch cfg.Session.Store {
	case config.StoreSQLite:
		repo, err := repository.NewSQLiteStateRepository(cfg.Session.SQLitePath, ttl)
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite state store: %w", err)
		}
		go purgeExpired(ctx, repo, logger)
		return repo, func() { _ = repo.Close() }, nil
	case config.StoreRedis:
		if redisClient != nil {
			return repository.NewRedisStateRepository(redisClient, ttl), noop, nil
		}
		logger.Warn().Msg("redis state store unavailable, using memory")
	case config.StoreFailover:
		memory := repository.NewMemoryStateRepository(ttl)
		if redisClient != nil {
			return repository.NewFailoverStateRepository(repository.NewRedisStateRepository(redisClient, ttl), memory, logger), noop, nil
		}
		logger.Warn().Msg("redis state store unavailable, using memory")
		return memory, noop, nil
	}
	return repository.NewMemoryStateRepository(ttl), noop, nil
}

func purgeExpired(ctx context.Context, repo *repository.SQLiteStateRepository, logger *zerolog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.PurgeExpired(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("purge expired visitor state")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("rows", n).Msg("expired visitor state purged")
			}
		}
	}
}

func initSheetsWorker(ctx context.Context, cfg *config.Config, redisClient *redis.Client, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Google.Enabled() {
		return
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return
	}
	if err := sheets.EnsureHeaders(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets headers not written")
	}

	w := worker.NewSheetsWorker(sheets, redisClient, worker.RetryPolicy{}, logger)
	w.Subscribe(bus)
	go w.Start(ctx)
	logger.Info().Msg("google sheets connected")
}

func initTelegram(ctx context.Context, cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled() {
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	bot.Debug = cfg.Telegram.Debug

	notifier := service.NewTelegramNotifier(bot, cfg.Telegram.NotifyChatIDs, logger)
	notifier.Subscribe(bus)
	go notifier.Start(ctx)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func startServers(
	ctx context.Context,
	httpServer *api.HTTPServer,
	grpcServer *api.GRPCServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	errCh := make(chan error, 2)

	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	logger.Info().Int("http_port", cfg.Server.Port).Bool("grpc", grpcServer != nil).Msg("site gateway started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("site gateway stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
