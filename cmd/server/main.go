package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"unispace/internal/api"
	"unispace/internal/config"
	"unispace/internal/database"
	"unispace/internal/domain"
	"unispace/internal/events"
	"unispace/internal/logging"
	"unispace/internal/metrics"
	"unispace/internal/notify"
	"unispace/internal/repository"
	"unispace/internal/service"
	"unispace/internal/worker"

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
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg); err != nil {
		logger.Error().Err(err).Msg("failed to prepare directories")
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to open database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, state := initRequestState(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	metrics.Register()
	eventBus := events.NewEventBus()
	subscribeBookingEvents(eventBus, &logger)

	pol := cfg.BookingPolicy()
	bookingService := service.NewBookingService(
		db, eventBus, state, pol,
		time.Duration(cfg.Scan.IdempotencyTTLSeconds)*time.Second, &logger,
	)
	attendanceService := service.NewAttendanceService(
		db, eventBus, state, pol,
		cfg.Scan.RateLimit, time.Duration(cfg.Scan.RateWindowSeconds)*time.Second, &logger,
	)
	facilityService := service.NewFacilityService(db, &logger)

	if err := facilityService.Seed(ctx, cfg.Facilities); err != nil {
		logger.Error().Err(err).Msg("failed to seed facilities")
		return err
	}

	if cfg.Sweep.Enabled {
		sweepWorker := worker.NewSweepWorker(
			attendanceService,
			time.Duration(cfg.Sweep.IntervalMinutes)*time.Minute,
			&logger,
		)
		go sweepWorker.Start(ctx)
	}

	if cfg.Outbox.Enabled {
		retry := worker.RetryPolicy{
			MaxAttempts:   cfg.Outbox.MaxAttempts,
			InitialDelay:  time.Duration(cfg.Outbox.InitialDelaySeconds) * time.Second,
			MaxDelay:      time.Duration(cfg.Outbox.MaxDelaySeconds) * time.Second,
			BackoffFactor: float64(cfg.Outbox.BackoffMultiplier),
		}
		outboxWorker := worker.NewOutboxWorker(
			db, notify.NewLogNotifier(&logger), retry,
			time.Duration(cfg.Outbox.IntervalSeconds)*time.Second,
			cfg.Outbox.BatchSize, &logger,
		)
		go outboxWorker.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	var apiServer *api.HTTPServer
	if cfg.API.Enabled {
		apiServer = api.NewHTTPServer(cfg.API, bookingService, attendanceService, facilityService, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "server").Logger()
	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config) error {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.MkdirAll(cfg.Exports.Path, 0o755)
}

// initRequestState builds the idempotency and rate-limit store: Redis
// with in-memory failover when an address is configured, plain
// in-memory otherwise.
func initRequestState(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.RequestState) {
	fallback := repository.NewMemoryRequestState()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("Redis not configured, using in-memory request state")
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, failover will use memory")
	}
	primary := repository.NewRedisRequestState(redisClient)
	return redisClient, repository.NewFailoverRequestState(primary, fallback, logger)
}

func subscribeBookingEvents(bus *events.EventBus, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		logger.Debug().
			Str("event_type", event.Type).
			RawJSON("payload", event.Payload).
			Msg("booking event")
		return nil
	}
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingApproved,
		events.EventBookingRejected,
		events.EventBookingCanceled,
		events.EventBookingCheckedIn,
		events.EventBookingCheckedOut,
	} {
		bus.Subscribe(eventType, handler)
	}
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
