package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"speak-assessment-service/internal/app"
	"speak-assessment-service/internal/catalog"
	"speak-assessment-service/internal/config"
	"speak-assessment-service/internal/infra/memory"
	pgloader "speak-assessment-service/internal/infra/postgres"
	redisstore "speak-assessment-service/internal/infra/redis"
	"speak-assessment-service/internal/logging"
	"speak-assessment-service/internal/selection"
	transport "speak-assessment-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := poolLoader(cfg, pool)
	if err != nil {
		return err
	}

	poolTTL := config.TTLDuration(cfg.Pools.TTL, 10*time.Minute)
	var pools selection.PoolRepository
	if redisClient != nil {
		pools = redisstore.NewPoolRepository(redisClient, loader, poolTTL)
	} else {
		pools = memory.NewPoolRepository(loader, poolTTL)
	}

	resultTTL := config.TTLDuration(cfg.Results.TTL, 30*time.Minute)
	var store app.SessionRepository
	var results app.ResultRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
		results = redisstore.NewResultStore(redisClient, resultTTL)
	} else {
		store = memory.NewSessionStore()
		results = memory.NewResultStore(resultTTL)
	}

	var selectorOpts []selection.Option
	if budget := config.TTLDuration(cfg.Session.TimeBudget, 0); budget > 0 {
		selectorOpts = append(selectorOpts, selection.WithTimeBudget(budget))
	}
	selector := selection.NewSelector(pools, nil, selectorOpts...)

	service := app.NewAssessmentService(store, results, selector,
		app.WithServiceLogger(logger),
		app.WithRecognitionLocale(cfg.Session.Locale),
	)
	limits := transportTimeouts(cfg)
	wsHandler := transport.NewWSHandler(service,
		transport.WithWSLogger(logger),
		transport.WithPermissionTimeout(limits.permission),
		transport.WithRecognitionStopTimeout(limits.recognitionStop),
	)
	router := transport.NewRouter(wsHandler, transport.NewAPI(service, logger), logger, transport.RouterConfig{
		AllowedOrigins: splitOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RequestTimeout: limits.request,
	})

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting assessment service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// poolLoader picks where question pools come from: Postgres when configured, else a
// YAML file, else the pools embedded in the binary.
func poolLoader(cfg config.Config, pool *pgxpool.Pool) (memory.PoolLoader, error) {
	if pool != nil {
		return pgloader.NewPoolLoader(pool), nil
	}
	loader, err := catalogLoader(cfg.Pools.File)
	if err != nil {
		return nil, err
	}
	return loader, nil
}

func catalogLoader(file string) (*catalog.Loader, error) {
	if file != "" {
		loader, err := catalog.NewFileLoader(file)
		if err != nil {
			return nil, fmt.Errorf("pools file %s: %w", file, err)
		}
		return loader, nil
	}
	return catalog.NewEmbeddedLoader()
}

type timeouts struct {
	permission      time.Duration
	recognitionStop time.Duration
	request         time.Duration
}

func transportTimeouts(cfg config.Config) timeouts {
	return timeouts{
		permission:      config.TTLDuration(cfg.Session.PermissionTimeout, 30*time.Second),
		recognitionStop: config.TTLDuration(cfg.Session.RecognitionStopTimeout, 2*time.Second),
		request:         config.TTLDuration(cfg.Server.RequestTimeout, 30*time.Second),
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
