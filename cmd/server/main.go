package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/UkralStul/matchboard/api"
	"github.com/UkralStul/matchboard/internal/board"
	"github.com/UkralStul/matchboard/internal/config"
	"github.com/UkralStul/matchboard/internal/storage"
	"github.com/UkralStul/matchboard/internal/storage/inmemory"
	"github.com/UkralStul/matchboard/internal/storage/postgres"
	"github.com/UkralStul/matchboard/internal/trust"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	app := cli.App{
		Name:   "matchboard",
		Usage:  "trust-gated messaging for the photographer/model board",
		Action: runServer,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bind",
				Usage:   "address to listen on",
				Value:   ":8080",
				EnvVars: []string{"MATCHBOARD_BIND"},
			},
			&cli.StringFlag{
				Name:    "metrics-bind",
				Usage:   "address for the prometheus endpoint; empty serves /metrics on the main listener",
				EnvVars: []string{"MATCHBOARD_METRICS_BIND"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "postgres://... or sqlite://path; empty runs in-memory with demo data",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.IntFlag{
				Name:    "max-db-connections",
				Usage:   "connection pool size for postgres",
				Value:   20,
				EnvVars: []string{"MAX_DB_CONNECTIONS"},
			},
			&cli.BoolFlag{
				Name:    "strict-link-mode",
				Usage:   "quarantine every post containing an external link, regardless of account age",
				EnvVars: []string{"STRICT_LINK_MODE"},
			},
			&cli.DurationFlag{
				Name:    "new-account-age",
				Usage:   "accounts younger than this get the stricter post limit and link quarantine",
				Value:   config.Default().NewAccountAge,
				EnvVars: []string{"NEW_ACCOUNT_AGE"},
			},
			&cli.StringFlag{
				Name:    "identity-header",
				Usage:   "request header set by the authentication gateway",
				Value:   "X-User-ID",
				EnvVars: []string{"IDENTITY_HEADER"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func runServer(cctx *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cctx.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config.Default()
	cfg.StrictLinkMode = cctx.Bool("strict-link-mode")
	cfg.NewAccountAge = cctx.Duration("new-account-age")

	var store storage.Storage
	if dsn := cctx.String("database-url"); dsn != "" {
		pg, err := postgres.New(dsn, cctx.Int("max-db-connections"))
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		store = pg
		logger.Info("using database storage")
	} else {
		mem := inmemory.New()
		// Заполним данными для ручной проверки
		if err := fillWithMockData(cctx.Context, mem, logger); err != nil {
			return err
		}
		store = mem
		logger.Info("using in-memory storage")
	}

	core := trust.New(store, cfg, trust.WithLogger(logger))
	resolver := &api.Resolver{
		Storage:  store,
		Core:     core,
		Board:    board.New(store, core, cfg, logger, nil),
		Identity: api.HeaderIdentity{Header: cctx.String("identity-header")},
		Logger:   logger,
	}

	router := chi.NewRouter()
	router.Mount("/", api.NewRouter(resolver))

	servers := []*http.Server{{
		Addr:              cctx.String("bind"),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if addr := cctx.String("metrics-bind"); addr != "" {
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	} else {
		router.Handle("/metrics", promhttp.Handler())
	}

	ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
