package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/contacts/internal/db"
	"github.com/nkiryanov/contacts/internal/handlers"
	"github.com/nkiryanov/contacts/internal/logger"
	"github.com/nkiryanov/contacts/internal/objectstore"
	"github.com/nkiryanov/contacts/internal/repository/postgres"
	"github.com/nkiryanov/contacts/internal/service/auth"
	"github.com/nkiryanov/contacts/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/contacts/internal/service/contact"
	"github.com/nkiryanov/contacts/internal/service/mailer"
	"github.com/nkiryanov/contacts/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool   *pgxpool.Pool
	mailer *mailer.Dispatcher
	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration. Err: %w", err)
	}

	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:       c.SecretKey,
		AccessTTL:       c.AccessTokenTTL,
		RefreshTTL:      c.RefreshTokenTTL,
		VerificationTTL: c.VerificationTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	dispatcher, err := newMailDispatcher(c, logger)
	if err != nil {
		return nil, err
	}

	var avatars user.AvatarStore
	if c.S3Bucket != "" {
		avatars, err = objectstore.New(ctx, objectstore.Config{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			AccessKey: c.S3AccessKey,
			SecretKey: c.S3SecretKey,
			Bucket:    c.S3Bucket,
			PublicURL: c.S3PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating avatar storage. Err: %w", err)
		}
	} else {
		logger.Warn("S3 bucket is not set, avatar upload is disabled")
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Initialize services
	authService, err := auth.NewService(auth.Config{}, tokenManager, storage.User(), dispatcher, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	contactService := contact.NewService(storage.Contact())
	userService := user.NewService(storage.User(), avatars)

	router := handlers.NewRouter(authService, contactService, userService, storage, logger)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		pool:       pool,
		mailer:     dispatcher,
		logger:     logger,
	}, nil
}

// Real SMTP if host is configured, log only otherwise
func newMailDispatcher(c *Config, l logger.Logger) (*mailer.Dispatcher, error) {
	renderer, err := mailer.NewRenderer(c.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("invalid public url. Err: %w", err)
	}

	var sender mailer.Sender = mailer.LogSender{Logger: l}
	if c.SMTPHost != "" {
		sender, err = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.MailFrom,
		})
		if err != nil {
			return nil, fmt.Errorf("error while creating smtp sender. Err: %w", err)
		}
	} else {
		l.Warn("SMTP host is not set, emails will be logged only")
	}

	return mailer.NewDispatcher(mailer.Config{Workers: c.MailWorkers}, renderer, sender, l), nil
}

// Run starts http server and mail workers, closes them gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	mailCtx, mailCancel := context.WithCancel(context.WithoutCancel(ctx))
	mailDone := s.mailer.Run(mailCtx)

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	// Handlers are done, nobody enqueues anymore: let workers drain the queue
	mailCancel()
	<-mailDone
	s.logger.Info("Mail workers stopped")

	return err
}
