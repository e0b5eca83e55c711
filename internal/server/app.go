// Package server initializes and runs the certificate server: it opens the
// PostgreSQL store, applies migrations, and serves the HTTP API with
// graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pressly/goose/v3"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/certsync/certsync/internal/logging"
	"github.com/certsync/certsync/internal/server/config"
	"github.com/certsync/certsync/internal/server/httpapi"
	"github.com/certsync/certsync/internal/server/migrations"
	"github.com/certsync/certsync/internal/server/repositories/certificates"
	"github.com/certsync/certsync/internal/server/repositories/users"
	"github.com/certsync/certsync/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	router *httpapi.Router
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	userService := services.NewUserService(users.NewPostgresRepository(db), c)
	certService := services.NewCertificateService(certificates.NewPostgresRepository(db), c)

	router := httpapi.NewRouter(userService, certService, logger, []byte(c.SecretKey))

	return &App{config: c, logger: logger, db: db, router: router}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.Up(db, ".")
}

func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.router.Handler(),
	}

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		app.logger.Info(context.Background(), "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return app.db.Close()
	})

	return g.Wait()
}
