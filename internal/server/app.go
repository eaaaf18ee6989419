// Package server initializes and runs the back-office auth server. It
// wires the storage backends, the secret store, the mail and audit
// dispatchers and the workflow services, ensures the seed superadmin
// account, and serves the HTTP API until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/logging"
	"github.com/dkravets/backoffice/internal/server/audit"
	"github.com/dkravets/backoffice/internal/server/config"
	"github.com/dkravets/backoffice/internal/server/httpapi"
	"github.com/dkravets/backoffice/internal/server/mail"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/password"
	"github.com/dkravets/backoffice/internal/server/repositories/repomanager"
	"github.com/dkravets/backoffice/internal/server/roles"
	"github.com/dkravets/backoffice/internal/server/secrets"
	"github.com/dkravets/backoffice/internal/server/services"
	"github.com/dkravets/backoffice/internal/server/shared/db"
)

const auditBufferSize = 256

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	repos   repomanager.RepositoryManager
	store   *secrets.RedisStore
	mailer  *mail.SMTPDispatcher
	auditor *audit.Dispatcher
	router  http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger()

	repos := repomanager.NewPostgresRepositoryManager()
	conn, err := db.Open(ctx, cfg.DatabaseDSN, repos)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := secrets.Open(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	mailer, err := mail.NewSMTPDispatcher(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPUser,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("smtp init error: %w", err)
	}

	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sink = audit.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaAuditTopic, logger)
	} else {
		sink = audit.NewLogSink(logger)
	}
	auditor := audit.NewDispatcher(sink, auditBufferSize)

	policy := password.NewPolicy(bcrypt.DefaultCost)
	throttle := services.NewThrottle(store,
		cfg.LoginAttemptLimit, cfg.LoginAttemptWindow, cfg.LoginLockoutDuration)

	sessions := services.NewSessionService(conn, repos, policy, throttle, auditor, logger, cfg)
	verification := services.NewVerificationService(conn, repos, store, policy, mailer, auditor, logger, cfg)
	escalation := services.NewEscalationService(conn, repos, store, mailer, auditor, logger, cfg)

	handler := httpapi.NewHandler(sessions, verification, escalation, auditor, logger, cfg)

	app := &App{
		config:  cfg,
		logger:  logger,
		db:      conn,
		repos:   repos,
		store:   store,
		mailer:  mailer,
		auditor: auditor,
		router:  httpapi.NewRouter(handler),
	}

	if err := app.ensureSeedAdmin(ctx, policy); err != nil {
		return nil, fmt.Errorf("seed admin error: %w", err)
	}

	return app, nil
}

// ensureSeedAdmin creates the configured superadmin account when it does
// not exist yet, so a fresh deployment always has a confirming admin.
func (app *App) ensureSeedAdmin(ctx context.Context, policy *password.Policy) error {
	if app.config.AdminEmail == "" || app.config.AdminPassword == "" {
		return nil
	}

	repo := app.repos.Users(app.db)
	_, err := repo.GetByEmail(ctx, app.config.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	hash, err := policy.Hash(app.config.AdminPassword)
	if err != nil {
		return err
	}

	_, err = repo.Create(ctx, &models.User{
		Email:        app.config.AdminEmail,
		PasswordHash: hash,
		Role:         roles.SuperAdmin,
		IsActive:     true,
		IsVerified:   true,
	})
	if err != nil {
		return err
	}

	app.logger.Info(ctx, "seed superadmin created", "email", app.config.AdminEmail)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
	}

	app.mailer.Close()
	app.auditor.Close()
	if err := app.store.Close(); err != nil {
		app.logger.Error(shutdownCtx, "redis close error", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "db close error", "error", err)
	}

	return nil
}
