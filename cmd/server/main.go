package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"carlot/internal/config"
	"carlot/internal/events"
	apphttp "carlot/internal/http"
	"carlot/internal/metrics"
	"carlot/internal/repository"
	"carlot/internal/repository/cache"
	"carlot/internal/repository/mongodb"
	"carlot/internal/repository/sqlite"
	"carlot/internal/service"
	"carlot/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	listings, closeRepo, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup repository: %v", err)
	}
	closers = append(closers, closeRepo)

	if err := listings.Init(ctx); err != nil {
		logger.Fatalf("init listing repository: %v", err)
	}

	if cfg.Cache.RedisAddr != "" {
		client, err := cache.NewClient(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			logger.Fatalf("connect redis: %v", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		listings = cache.NewListingRepository(listings, client, cfg.Cache.TTL, logger)
		logger.Infof("caching listings in redis at %s", cfg.Cache.RedisAddr)
	}

	images, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}

	appMetrics := metrics.New()

	var publisher service.EventPublisher
	if cfg.Events.NatsURL != "" {
		pub, err := events.Connect(cfg.Events.NatsURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.Fatalf("connect nats: %v", err)
		}
		closers = append(closers, pub.Close)
		publisher = pub
		logger.Infof("publishing listing events to %s.*", cfg.Events.SubjectPrefix)
	}

	listingService := service.NewListingService(listings, images, service.Config{
		Folder:       cfg.Storage.Folder,
		MaxFiles:     cfg.Upload.MaxFiles,
		MaxFileBytes: cfg.Upload.MaxFileBytes,
		Concurrency:  cfg.Upload.Concurrency,
		Logger:       logger,
		Events:       publisher,
		Recorder:     appMetrics,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	// multipart bodies beyond this spill to temp files
	router.MaxMultipartMemory = int64(cfg.Upload.MaxFiles) * cfg.Upload.MaxFileBytes
	handler := apphttp.NewHandler(listingService, apphttp.Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxFileBytes:   cfg.Upload.MaxFileBytes,
		Logger:         logger,
		Middleware:     []gin.HandlerFunc{appMetrics.Middleware()},
		Metrics:        appMetrics.Handler(),
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func buildRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.ListingRepository, func(), error) {
	switch cfg.Database.Driver {
	case "mongo":
		client, err := mongodb.Connect(ctx, cfg.Database.URI)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using mongodb database %s (collection %s)", cfg.Database.Name, cfg.Database.Collection)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warnf("mongodb disconnect: %v", err)
			}
		}
		return mongodb.NewListingRepository(client.Database(cfg.Database.Name), cfg.Database.Collection), closeFn, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return sqlite.NewListingRepository(db), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.ImageStore, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	if cfg.Storage.Driver == "minio" {
		store, err := storage.NewMinioStore(ctx, storage.MinioOptions{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("using minio bucket %s at %s", cfg.Storage.Bucket, cfg.Storage.Endpoint)
		return store, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Store(client, cfg.Storage.Bucket, cfg.Storage.PublicURL), nil
}
