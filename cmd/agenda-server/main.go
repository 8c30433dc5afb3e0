package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"padelagenda/backend/internal/config"
	"padelagenda/backend/internal/domain"
	"padelagenda/backend/internal/service/access"
	"padelagenda/backend/internal/service/availability"
	"padelagenda/backend/internal/service/bookings"
	"padelagenda/backend/internal/service/schedule"
	"padelagenda/backend/internal/store"
	"padelagenda/backend/internal/store/memory"
	"padelagenda/backend/internal/store/postgres"
	"padelagenda/backend/internal/telemetry"
	grpcTransport "padelagenda/backend/internal/transport/grpc"
	"padelagenda/backend/internal/transport/httpapi"
)

const serviceName = "agenda-server"

func main() {
	log := newLogger("info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.Any("err", err))
		}
	}()

	defaultLoc := domain.LoadLocation(cfg.DefaultCoachTimezone, nil)
	repo, closeStore, err := openStore(ctx, log, cfg, defaultLoc)
	if err != nil {
		return err
	}
	defer closeStore()

	acc := access.NewService(repo)
	agenda := grpcTransport.NewAgendaServer(grpcTransport.Services{
		Availability: availability.NewService(repo, domain.SystemClock{}, availability.Config{
			DefaultLocation: defaultLoc,
			MaxSlotsPerDay:  cfg.WeekMaxSlotsPerDay,
			MaxTotalSlots:   cfg.WeekMaxTotalSlots,
			WeekConcurrency: cfg.WeekConcurrency,
		}),
		Bookings: bookings.NewService(repo, acc, domain.SystemClock{}, defaultLoc),
		Schedule: schedule.NewService(repo, acc),
		Viewers:  acc,
		DB:       repo,
	}, log)

	interceptors := []grpc.UnaryServerInterceptor{
		grpcTransport.RequestIDInterceptor(),
		grpcTransport.TimeoutInterceptor(cfg.GRPCRequestTimeout),
		grpcTransport.AccessTokenInterceptor(cfg.AccessToken),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		interceptors = append(interceptors, grpcTransport.RateLimitInterceptor(grpcTransport.RateLimit{
			Counter:   grpcTransport.NewRedisWindowCounter(rdb),
			Limit:     cfg.RateLimitRequests,
			PeerLimit: cfg.RateLimitPeerRequests,
			Window:    cfg.RateLimitWindow,
			FailOpen:  cfg.RateLimitFailOpen,
		}, log))
		log.Info("rate limiting enabled", slog.String("redis_addr", cfg.RedisAddr), slog.Int("limit", cfg.RateLimitRequests))
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(interceptors...),
	)
	grpcTransport.RegisterAgendaServiceServer(grpcServer, agenda)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(grpcTransport.ServiceName, healthpb.HealthCheckResponse_SERVING)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("grpc listen on %s: %w", cfg.GRPCAddr(), err)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(repo, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr()), slog.String("http_addr", cfg.HTTPAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
			return err
		}
		return nil
	}
}

func openStore(ctx context.Context, log *slog.Logger, cfg config.Config, defaultLoc *time.Location) (store.AgendaRepository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		st := memory.New()
		if cfg.SeedDemo {
			coach, err := seedDemo(ctx, st, defaultLoc.String())
			if err != nil {
				return nil, nil, fmt.Errorf("seed demo data: %w", err)
			}
			log.Info("demo data seeded", slog.String("coach_id", coach.ID.String()), slog.String("coach_actor", demoCoachActor))
		}
		log.Warn("using in-memory store; data is lost on restart")
		return st, func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, postgres.Options{
		DatabaseURL:     cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}
	return postgres.NewAgendaRepo(db), closeDB, nil
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", serviceName),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	host, port, name := u.Hostname(), u.Port(), strings.TrimPrefix(u.Path, "/")
	if host == "" {
		host = "unknown"
	}
	if port == "" {
		port = "default"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
