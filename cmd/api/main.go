package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"pantrychef/internal/api"
	"pantrychef/internal/auth"
	"pantrychef/internal/config"
	"pantrychef/internal/inference"
	"pantrychef/internal/logging"
	"pantrychef/internal/platform/gemini"
	"pantrychef/internal/platform/imagestore"
	"pantrychef/internal/platform/localllm"
	"pantrychef/internal/platform/postgres"
	"pantrychef/internal/profile"
	"pantrychef/internal/quota"
	"pantrychef/internal/recipe"
	"pantrychef/internal/search"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App.LogLevel, cfg.App.Development())
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// stores groups the persistence backends chosen by configuration.
type stores struct {
	bookmarks recipe.Store
	profiles  profile.Store
	quota     quota.Store
	closers   []func() error
}

func (s *stores) close(logger *zap.Logger) {
	for _, c := range s.closers {
		if err := c(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.App.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close(logger)

	generator, closeGenerator, err := newGenerator(ctx, cfg.AI)
	if err != nil {
		return err
	}
	defer closeGenerator()

	tracker := quota.NewTracker(st.quota, cfg.Quota.MaxCalls, logger.Named("quota"))
	images := imagestore.NewLocalStore(cfg.Images.Dir, cfg.Images.BaseURL)
	cache := search.NewCache(cfg.Cache.TTL)
	if cfg.Cache.CleanupInterval > 0 {
		go cache.RunCleanup(ctx, cfg.Cache.CleanupInterval)
	}

	svc := search.NewService(generator, tracker, images, st.bookmarks, logger.Named("search"), search.WithCache(cache))

	handler := api.NewHandler(svc, st.bookmarks, st.profiles, tracker, logger.Named("api"))
	handler.MaxFiles = cfg.Images.MaxFiles

	router := api.NewRouter(handler, api.RouterConfig{
		AuthMode:       cfg.Auth.Mode,
		Verifier:       auth.NewTokenVerifier(cfg.Auth.Users),
		AllowOrigins:   cfg.Server.AllowOrigins,
		MaxUploadBytes: cfg.Images.MaxUploadBytes,
		ImagesDir:      cfg.Images.Dir,
		ImagesURL:      cfg.Images.BaseURL,
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("store", cfg.Store.Driver),
			zap.String("quota_backend", cfg.Quota.Backend),
			zap.String("ai_provider", cfg.AI.Provider),
			zap.String("auth_mode", cfg.Auth.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	logger.Info("server exited")
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := &stores{}

	switch cfg.Store.Driver {
	case config.DriverFirestore:
		var opts []option.ClientOption
		if cfg.Store.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Store.CredentialsFile))
		}
		client, err := firestore.NewClient(ctx, cfg.Store.ProjectID, opts...)
		if err != nil {
			return nil, fmt.Errorf("error creating firestore client: %w", err)
		}
		st.closers = append(st.closers, client.Close)
		st.bookmarks = recipe.NewFirestoreStore(client)
		profiles := profile.NewFirestoreStore(client)
		st.profiles, st.quota = profiles, profiles

	default:
		db, err := postgres.Connect(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)

		bookmarks, err := recipe.NewPostgresStore(db)
		if err != nil {
			st.close(zap.NewNop())
			return nil, fmt.Errorf("error creating bookmark store: %w", err)
		}
		profiles, err := profile.NewPostgresStore(db)
		if err != nil {
			st.close(zap.NewNop())
			return nil, fmt.Errorf("error creating profile store: %w", err)
		}
		st.bookmarks = bookmarks
		st.profiles, st.quota = profiles, profiles
	}

	if cfg.Quota.Backend == config.QuotaBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Quota.RedisAddr,
			Password: cfg.Quota.RedisPassword,
			DB:       cfg.Quota.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			st.close(zap.NewNop())
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		st.closers = append(st.closers, client.Close)
		st.quota = quota.NewRedisStore(client, "")
	}

	return st, nil
}

func newGenerator(ctx context.Context, cfg config.AIConfig) (inference.Generator, func(), error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		return localllm.NewClient(cfg.LocalURL, cfg.LocalModel, cfg.Timeout), func() {}, nil
	default:
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("error creating gemini client: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	}
}
