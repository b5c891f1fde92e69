package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/tgvault/tgvault/internal/accounts"
	"github.com/tgvault/tgvault/internal/config"
	"github.com/tgvault/tgvault/internal/credentials"
	"github.com/tgvault/tgvault/internal/db"
	"github.com/tgvault/tgvault/internal/files"
	"github.com/tgvault/tgvault/internal/handlers"
	"github.com/tgvault/tgvault/internal/logger"
	"github.com/tgvault/tgvault/internal/reconcile"
	"github.com/tgvault/tgvault/internal/server"
	"github.com/tgvault/tgvault/internal/telegram"
	"github.com/tgvault/tgvault/internal/version"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBTX,
			accounts.NewService,
			credentials.NewService,
			telegram.NewAdapter,
			files.NewStore,
			provideTransport,
			provideMetadataStore,
			provideCredentialSource,
			files.NewService,
			provideReconcileRunner,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideSetupHandler),
			provideServerHandler(provideFilesHandler),
			provideServer,
		),
		fx.Invoke(
			ensureAdminUser,
			startReconcileRunner,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return config.Config{}, fmt.Errorf("auth.jwt_secret is required in config.toml")
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBTX(conn *pgxpool.Pool) db.DBTX { return conn }

func provideTransport(adapter *telegram.Adapter) files.Transport { return adapter }

func provideMetadataStore(store *files.Store) files.MetadataStore { return store }

func provideCredentialSource(svc *credentials.Service) files.CredentialSource { return svc }

func provideReconcileRunner(log *slog.Logger, cfg config.Config) *reconcile.Runner {
	return reconcile.NewRunner(log, cfg.Reconcile.Schedule)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideAuthHandler(log *slog.Logger, accountService *accounts.Service, cfg config.Config) (*handlers.AuthHandler, error) {
	expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("parse auth.jwt_expires_in: %w", err)
	}
	return handlers.NewAuthHandler(log, accountService, cfg.Auth.JWTSecret, expiresIn), nil
}

func provideSetupHandler(log *slog.Logger, credentialService *credentials.Service) *handlers.SetupHandler {
	return handlers.NewSetupHandler(log, credentialService)
}

func provideFilesHandler(log *slog.Logger, fileService *files.Service) *handlers.FilesHandler {
	return handlers.NewFilesHandler(log, fileService)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.Logger, params.ServerHandlers)
}

func ensureAdminUser(lc fx.Lifecycle, accountService *accounts.Service, cfg config.Config) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		return accountService.EnsureAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
	}})
}

func startReconcileRunner(lc fx.Lifecycle, runner *reconcile.Runner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return runner.Start() },
		OnStop:  func(ctx context.Context) error { return runner.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting tgvault %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
