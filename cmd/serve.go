package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apibase/user-api/internal/command"
	"github.com/apibase/user-api/internal/config"
	"github.com/apibase/user-api/internal/handler"
	"github.com/apibase/user-api/internal/mailer"
	"github.com/apibase/user-api/internal/metrics"
	"github.com/apibase/user-api/internal/policy"
	"github.com/apibase/user-api/internal/query"
	"github.com/apibase/user-api/internal/repository"
	"github.com/apibase/user-api/internal/token"
	"github.com/apibase/user-api/shared/events"
	sharedredis "github.com/apibase/user-api/shared/redis"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}
}

type userStore interface {
	command.UserStore
	repository.UserFinder
}

type noteStore interface {
	command.NoteStore
	query.NoteLister
}

// app is the wired service: the router plus whatever must be started and
// released around it.
type app struct {
	router  *gin.Engine
	workers []func(context.Context) error
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	var users userStore
	var notes noteStore
	switch cfg.Store.Driver {
	case config.DriverMemory:
		mem := repository.NewMemoryStore()
		users, notes = mem, mem
	default:
		if cfg.Store.AutoMigrate {
			if err := migrateUp(cfg.Store.DatabaseURL); err != nil {
				return nil, err
			}
		}
		db, err := sql.Open("postgres", cfg.Store.DatabaseURL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.PingContext(ctx); err != nil {
			a.Close()
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
		}
		users, notes = repository.NewUserWriteRepository(db), repository.NewNoteRepository(db)
	}

	var redisClient *goredis.Client
	var publisher command.Publisher = events.Discard{}
	if cfg.Redis.Addr != "" {
		rc, err := sharedredis.NewClient(ctx, sharedredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").Wrap(err)
		}
		a.closers = append(a.closers, rc.Close)
		redisClient = rc.Client
		publisher = events.NewPublisher(redisClient)
	}

	transport, err := mailTransport(cfg, logger, redisClient, &a.workers)
	if err != nil {
		a.Close()
		return nil, err
	}

	issuer, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		a.Close()
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}

	var m *metrics.Metrics
	if cfg.HTTP.Metrics {
		m = metrics.New()
	}

	sessions := repository.NewSessionReadRepository(users, redisClient, cfg.Redis.SessionTTL, logger)
	userCommands := command.NewUserCommandService(
		users,
		policy.NewPasswordPolicy(cfg.Auth.MinPasswordLength),
		issuer,
		mailer.NewNotifier(transport, cfg.HTTP.PublicURL),
		publisher,
		sessions,
		logger,
		command.WithBcryptCost(cfg.Auth.BcryptCost),
		command.WithRecorder(m),
	)
	noteCommands := command.NewNoteCommandService(notes, publisher, logger)

	a.router = handler.NewRouter(
		handler.RouterConfig{APIKey: cfg.APIKey, Logger: logger, Metrics: m},
		handler.NewUserHandler(userCommands, logger),
		handler.NewNoteHandler(noteCommands, query.NewNoteQueryService(notes), logger),
		handler.NewAuthHandler(query.NewAuthQueryService(users), logger),
		query.NewUserQueryService(issuer, sessions),
	)
	return a, nil
}

// mailTransport picks the outbound transport. In queue mode the API only
// enqueues; delivery happens in the worker, over SendGrid when a key is set.
func mailTransport(cfg *config.Config, logger *slog.Logger, client *goredis.Client, workers *[]func(context.Context) error) (mailer.Transport, error) {
	sendgrid := func() mailer.Transport {
		return mailer.NewSendGridTransport(cfg.Mail.SendGridAPIKey, cfg.Mail.From, cfg.Mail.FromName)
	}

	switch cfg.Mail.Transport {
	case config.MailSendGrid:
		return sendgrid(), nil
	case config.MailQueue:
		if client == nil {
			return nil, oops.Code("CONFIG_INVALID").Errorf("mail queue requires redis")
		}
		if cfg.Mail.Worker {
			var delivery mailer.Transport = mailer.NewLogTransport(logger)
			if cfg.Mail.SendGridAPIKey != "" {
				delivery = sendgrid()
			}
			worker := mailer.NewWorker(delivery, logger)
			consumer := consumerName()
			*workers = append(*workers, func(ctx context.Context) error {
				return worker.Run(ctx, client, consumer)
			})
		}
		return mailer.NewQueueTransport(events.NewPublisher(client)), nil
	default:
		return mailer.NewLogTransport(logger), nil
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return fmt.Sprintf("%s-%s-%d", serviceName, host, os.Getpid())
}

func migrateUp(databaseURL string) error {
	m, err := repository.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, run := range a.workers {
		go func(run func(context.Context) error) {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background worker stopped", "error", err)
			}
		}(run)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: a.router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("user api starting",
			"port", cfg.HTTP.Port,
			"store", cfg.Store.Driver,
			"mail", cfg.Mail.Transport,
			"redis", cfg.Redis.Addr != "",
			"api_key_gate", cfg.APIKey != "",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return oops.Code("SERVER_FAILED").Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error during shutdown", "error", err)
	}
	logger.Info("shutdown complete")
	return nil
}
