package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/hackgods/clinic-slot-scheduling/internal/api"
	"github.com/hackgods/clinic-slot-scheduling/internal/appointment"
	"github.com/hackgods/clinic-slot-scheduling/internal/assistant"
	"github.com/hackgods/clinic-slot-scheduling/internal/availability"
	"github.com/hackgods/clinic-slot-scheduling/internal/calendar"
	"github.com/hackgods/clinic-slot-scheduling/internal/config"
	"github.com/hackgods/clinic-slot-scheduling/internal/db"
	"github.com/hackgods/clinic-slot-scheduling/internal/notify"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability"
	"github.com/hackgods/clinic-slot-scheduling/internal/observability/metrics"
	redisclient "github.com/hackgods/clinic-slot-scheduling/internal/redis"
	"github.com/hackgods/clinic-slot-scheduling/internal/session"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("config load error")
	}

	logger := observability.NewLogger("clinic-api", cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("calendar_backend", cfg.CalendarBackend).
		Str("state_backend", cfg.StateBackend).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(rootCtx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api-server stopped with error")
	}
	logger.Info().Msg("api-server shut down")
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	shutdownTracing, err := observability.SetupTracing(ctx, "clinic-api", version, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("error flushing traces")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSchedulingMetrics(reg)

	policy := cfg.Policy()

	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var (
		recorder appointment.EventRecorder = appointment.NopRecorder{}
		pgPinger api.Pinger
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{}, logger)
		cancelPg()
		if err != nil {
			return err
		}
		defer pool.Close()
		recorder = appointment.NewPgRepository(pool)
		pgPinger = pool
	} else {
		logger.Warn().Msg("POSTGRES_DSN not set, audit log disabled")
	}

	var (
		locker      redisclient.Locker
		store       session.Store
		redisPinger api.Pinger
	)
	switch cfg.StateBackend {
	case config.BackendRedis:
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis")
			}
		}()
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to redis")
		locker = redisclient.NewRedisCalendarLocker(rdb, cfg.LockTTL, cfg.LockWait)
		store = redisclient.NewSessionStore(rdb, cfg.SessionTTL)
		redisPinger = api.RedisPinger{Client: rdb}
	default:
		logger.Warn().Msg("in-process lock and sessions: run a single replica only")
		locker = redisclient.NewLocalLocker()
		mem := session.NewMemoryStore()
		go sweepSessions(ctx, mem, cfg.SessionTTL, cfg.SweepInterval, logger)
		store = mem
	}

	resolver := availability.NewResolver(policy, gateway, availability.Options{
		Workers:            cfg.AvailabilityWorkers,
		NearestHorizonDays: cfg.NearestHorizonDays,
		MaxRangeDays:       cfg.RangeMaxDays,
		Metrics:            m,
		Logger:             logger,
	})
	svc := appointment.NewService(policy, gateway, locker, appointment.Options{
		Location:        cfg.ClinicLocation,
		ExcludedPlans:   appointment.ParseExcludedPlans(cfg.ExcludedPlans),
		CancelRequireID: cfg.CancelRequireID,
		Recorder:        recorder,
		Metrics:         m,
		Logger:          logger,
	})

	var chat api.ChatService
	if cfg.OpenAIAPIKey != "" {
		dispatcher := assistant.NewDispatcher(resolver, svc, cfg.Location, assistant.DispatcherOptions{Logger: logger})
		interpreter := assistant.NewOpenAIInterpreter(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
		chat = assistant.New(store, interpreter, dispatcher, assistant.Options{Logger: logger})
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, /chat disabled")
	}

	var sender notify.Sender = notify.NopSender{Logger: logger}
	if cfg.WhatsAppToken != "" && cfg.WhatsAppPhoneNumberID != "" {
		wa, err := notify.NewWhatsAppSender(cfg.WhatsAppToken, cfg.WhatsAppPhoneNumberID, &http.Client{Timeout: 10 * time.Second})
		if err != nil {
			return err
		}
		sender = wa
	}

	router := api.NewRouter(api.RouterConfig{
		Availability:   resolver,
		Service:        svc,
		Assistant:      chat,
		Calendar:       gateway,
		Sender:         sender,
		Health:         api.NewHealthHandler(pgPinger, redisPinger, cfg.Env, version),
		Metrics:        m,
		Gatherer:       reg,
		AdminJWTSecret: cfg.AdminJWTSecret,
		Location:       cfg.Location,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           otelhttp.NewHandler(router, "clinic-api"),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildGateway(ctx context.Context, cfg config.Config, logger zerolog.Logger) (calendar.Gateway, error) {
	if cfg.CalendarBackend == config.BackendGoogle {
		return calendar.NewGoogleGateway(ctx, calendar.GoogleConfig{
			CalendarID:      cfg.GoogleCalendarID,
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			Timeout:         cfg.CalendarTimeout,
			Location:        cfg.Location,
		}, logger)
	}
	logger.Warn().Msg("using in-memory calendar; bookings are lost on restart")
	return calendar.NewMemoryGateway("memory", cfg.Location), nil
}

// sweepSessions drops idle in-memory sessions until ctx ends.
func sweepSessions(ctx context.Context, store *session.MemoryStore, ttl, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.Sweep(now, ttl); n > 0 {
				logger.Debug().Int("removed", n).Int("remaining", store.Len()).Msg("swept idle sessions")
			}
		}
	}
}
