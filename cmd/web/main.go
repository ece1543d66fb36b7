package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"finitefield.org/mercadito/internal/cart"
	"finitefield.org/mercadito/internal/catalog"
	"finitefield.org/mercadito/internal/i18n"
	mw "finitefield.org/mercadito/internal/middleware"
	"finitefield.org/mercadito/internal/offline"
	"finitefield.org/mercadito/internal/platform/config"
	"finitefield.org/mercadito/internal/platform/observability"
)

// app bundles the dependencies handlers need.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	bundle    *i18n.Bundle
	templates *templateSet
	catalog   *catalog.Holder
	carts     cart.Backend
	sessions  *mw.SessionManager
	offline   *offline.Cache
	redis     *redis.Client
}

func main() {
	ctx := context.Background()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("web")
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise app", zap.Error(err))
	}
	defer a.close()

	if err := a.offline.Precache(ctx); err != nil {
		logger.Warn("offline precache failed", zap.Error(err))
	}

	// The catalog loads in the background; pages render empty until it lands.
	loader := &catalog.Loader{
		Source:  catalog.NewSource(cfg.Catalog.Source, cfg.Catalog.Timeout),
		Holder:  a.catalog,
		Logger:  logger.Named("catalog"),
		Timeout: cfg.Catalog.Timeout,
	}
	go loader.Run(ctx)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      a.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("mercadito listening",
			zap.Bool("dev", cfg.Web.DevMode),
			zap.String("cart_backend", a.carts.Name()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	bundle, err := i18n.Load(cfg.Web.LocalesDir, cfg.Web.DefaultLocale, []string{"es", "en"})
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}
	templates, err := newTemplateSet(cfg.Web.TemplatesDir, cfg.Web.DevMode, bundle)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if len(cfg.Session.HashKey) == 0 {
		logger.Warn("session: using ephemeral signing key; set MERCADITO_SESSION_HASH_KEY to keep carts across restarts")
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		bundle:    bundle,
		templates: templates,
		catalog:   &catalog.Holder{},
		sessions: mw.NewSessionManager(mw.SessionConfig{
			HashKey:  cfg.Session.HashKey,
			BlockKey: cfg.Session.BlockKey,
			Secure:   cfg.Session.Secure,
			Lifetime: cfg.Cart.TTL,
		}),
		offline: offline.New(cfg.Offline.CacheName, cfg.Web.PublicDir, cfg.Offline.Assets, logger.Named("offline")),
	}

	switch cfg.Cart.Backend {
	case config.CartBackendRedis:
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cart.Redis.Addr,
			Password: cfg.Cart.Redis.Password,
			DB:       cfg.Cart.Redis.DB,
		})
		backend := cart.NewRedisBackend(a.redis, cfg.Cart.TTL)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Catalog.Timeout)
		defer cancel()
		if err := backend.Ping(ctx); err != nil {
			logger.Warn("redis unavailable at startup", zap.Error(err))
		}
		a.carts = backend
	case config.CartBackendMemory:
		a.carts = cart.NewMemoryBackend()
	default:
		a.carts = cart.NewCookieBackend(cart.CookieConfig{
			Name:     cfg.Cart.CookieName,
			HashKey:  cfg.Session.HashKey,
			BlockKey: cfg.Session.BlockKey,
			TTL:      cfg.Cart.TTL,
			Secure:   cfg.Session.Secure,
		})
	}
	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close error", zap.Error(err))
		}
	}
}
