package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kraman82351/Task-management/config"
	"github.com/kraman82351/Task-management/internal/auth"
	"github.com/kraman82351/Task-management/internal/db"
	"github.com/kraman82351/Task-management/internal/docstore"
	"github.com/kraman82351/Task-management/internal/handlers"
	"github.com/kraman82351/Task-management/internal/mailer"
	"github.com/kraman82351/Task-management/internal/memstore"
	"github.com/kraman82351/Task-management/internal/metrics"
	"github.com/kraman82351/Task-management/internal/mq"
	"github.com/kraman82351/Task-management/internal/ratelimit"
	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/internal/storage"
	"github.com/kraman82351/Task-management/internal/store"
)

// Server wraps the HTTP server and the backends it owns.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
	closers    []func(context.Context) error
	stopWorker context.CancelFunc
}

// Repositories are the persistence backends chosen by STORE_DRIVER.
type Repositories struct {
	Users  services.UserRepository
	Tasks  services.TaskRepository
	Health handlers.HealthCheck
	Close  func(context.Context) error
}

// OpenRepositories connects the store selected by cfg.Store.Driver.
func OpenRepositories(ctx context.Context, cfg config.Config) (Repositories, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Driver)) {
	case "", "postgres":
		conn, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return Repositories{}, fmt.Errorf("open postgres: %w", err)
		}
		return Repositories{
			Users:  store.NewUserRepository(conn),
			Tasks:  store.NewTaskRepository(conn),
			Health: conn.PingContext,
			Close:  func(context.Context) error { return conn.Close() },
		}, nil
	case "mongo":
		client, err := docstore.Connect(ctx, cfg.Mongo)
		if err != nil {
			return Repositories{}, err
		}
		database := client.Database(cfg.Mongo.Database)
		if err := docstore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(ctx)
			return Repositories{}, err
		}
		return Repositories{
			Users:  docstore.NewUserRepository(database),
			Tasks:  docstore.NewTaskRepository(database),
			Health: docstore.Healthcheck(client),
			Close:  client.Disconnect,
		}, nil
	case "memory":
		st := memstore.New()
		return Repositories{
			Users:  st.Users(),
			Tasks:  st.Tasks(),
			Health: st.Ping,
			Close:  func(context.Context) error { return nil },
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// New wires every backend selected by cfg and builds the HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (srv *Server, err error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{logger: logger}
	defer func() {
		if err != nil {
			_ = s.closeAll(context.Background())
		}
	}()

	repos, err := OpenRepositories(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, repos.Close)

	m := metrics.New()

	sender, err := mailer.NewSender(cfg.Email, logger)
	if err != nil {
		return nil, err
	}

	backend, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}
	var publisher mq.Publisher
	if backend != nil {
		publisher = backend
		s.closers = append(s.closers, func(context.Context) error { return backend.Close() })
	}
	if strings.EqualFold(cfg.MQ.Driver, "memory") {
		// The in-process queue has no external consumer.
		workerCtx, cancel := context.WithCancel(context.Background())
		s.stopWorker = cancel
		worker := mailer.NewWorker(backend, cfg.MQ.EmailChannel, sender, m, logger)
		go func() {
			if err := worker.Run(workerCtx); err != nil {
				logger.Error("email worker stopped", slog.Any("error", err))
			}
		}()
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if objects != nil {
		s.closers = append(s.closers, func(context.Context) error { return objects.Close() })
	}

	var limiter handlers.Limiter
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		s.closers = append(s.closers, func(context.Context) error { return rdb.Close() })
		limiter = ratelimit.New(rdb, "", cfg.Redis.RateLimitRate, cfg.Redis.RateLimitBurst)
	}

	tasks := services.NewTaskService(repos.Tasks, objects, logger)
	users := services.NewUserService(
		repos.Users,
		auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency),
		mailer.NewDispatcher(sender, publisher, cfg.MQ.EmailChannel, m, logger),
		tasks,
		services.UserServiceConfig{
			ClientURL:       cfg.ClientURL,
			VerificationTTL: cfg.Auth.VerificationTTL,
			ResetTTL:        cfg.Auth.ResetTTL,
		},
		logger,
	)

	s.handler = handlers.NewRouter(handlers.Deps{
		Users:    users,
		Tasks:    tasks,
		Sessions: auth.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		Cookie: handlers.CookieConfig{
			Name:     cfg.Auth.CookieName,
			Secure:   cfg.Auth.CookieSecure,
			SameSite: handlers.ParseSameSite(cfg.Auth.CookieSameSite),
		},
		ClientURL: cfg.ClientURL,
		Limiter:   limiter,
		Metrics:   m,
		Health:    repos.Health,
		Logger:    logger,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler exposes the routing table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the HTTP server. It returns nil once Shutdown has been called.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and then releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, s.closeAll(ctx))
	return errors.Join(errs...)
}

func (s *Server) closeAll(ctx context.Context) error {
	if s.stopWorker != nil {
		s.stopWorker()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
