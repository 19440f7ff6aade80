package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dishevent/dishevent-server/config"
	"github.com/dishevent/dishevent-server/controllers"
	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/middleware"
	"github.com/dishevent/dishevent-server/realtime"
	"github.com/dishevent/dishevent-server/repository"
	"github.com/dishevent/dishevent-server/routes"
	"github.com/dishevent/dishevent-server/services"
	"github.com/dishevent/dishevent-server/telemetry"
	"github.com/dishevent/dishevent-server/uploads"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		ServiceName: cfg.App.Name,
		Development: cfg.Log.Development,
	})
	defer logger.Sync()

	ctx := context.Background()
	if _, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	}); err != nil {
		logger.Fatal("init telemetry", zap.Error(err))
	}

	db, err := config.ConnectDB(&cfg.Database, cfg.App.Debug)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	eventRepo := repository.NewGormEventRepository(db)
	guestRepo := repository.NewGormGuestRepository(db)

	broker := newBroker(ctx, cfg)
	bridge := newBridge(ctx, cfg)
	uploader := newUploader(cfg)

	eventSvc := services.NewEventService(eventRepo, broker)
	accessSvc := services.NewAccessService(eventRepo, cfg.Session.AccessSecret)
	guestSvc := services.NewGuestService(eventRepo, guestRepo, accessSvc, broker)

	secure := cfg.IsProduction()
	limiters := middleware.NewLimiters()
	defer limiters.Stop()

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-Match", middleware.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", "ETag", middleware.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, routes.Deps{
		ServiceName: cfg.OTel.ServiceName,
		CookieName:  cfg.Session.CookieName,
		StaticDir:   cfg.Server.StaticDir,
		Resolver:    bridge,
		Events:      eventRepo,
		Limiters:    limiters,
		Session:     controllers.NewSessionController(bridge, cfg.Session.CookieName, int(cfg.Session.MaxAge.Seconds()), secure),
		Event:       controllers.NewEventController(eventSvc),
		Guest:       controllers.NewGuestController(guestSvc),
		Export:      controllers.NewExportController(guestSvc),
		Public:      controllers.NewPublicController(accessSvc, guestSvc, secure),
		Upload:      controllers.NewUploadController(uploader),
		Health: controllers.NewHealthController(cfg.App.Version, map[string]controllers.Pinger{
			"database": eventRepo,
			"broker":   broker,
		}),
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("env", cfg.App.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Closing the broker first ends open SSE streams.
	if err := broker.Close(); err != nil {
		logger.Warn("close broker", zap.Error(err))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", zap.Error(err))
	}
}

func newBroker(ctx context.Context, cfg *config.Config) realtime.Broker {
	if !cfg.Redis.Enabled {
		logger.Info("using in-process change broker")
		return realtime.NewMemoryBroker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("connect redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
	}
	return realtime.NewRedisBroker(client)
}

// newBridge returns nil when the service account is missing or unusable.
// The session endpoints then answer with a configuration error instead of
// the process refusing to start.
func newBridge(ctx context.Context, cfg *config.Config) *identity.Bridge {
	sa, err := identity.ParseServiceAccount(cfg.Session.ServiceAccountJSON)
	if err != nil {
		logger.Warn("session bridge disabled", zap.Error(err))
		return nil
	}
	sessions, err := identity.NewSessionManager(sa, cfg.Session.MaxAge)
	if err != nil {
		logger.Warn("session bridge disabled", zap.Error(err))
		return nil
	}
	audience := cfg.Session.ClientID
	if audience == "" {
		audience = sa.ProjectID
	}
	verifier, err := identity.NewGoogleVerifier(ctx, audience)
	if err != nil {
		logger.Warn("session bridge disabled", zap.Error(err))
		return nil
	}
	return identity.NewBridge(verifier, sessions)
}

func newUploader(cfg *config.Config) *uploads.Uploader {
	if !cfg.Storage.Enabled() {
		logger.Warn("file storage not configured, uploads disabled")
		return nil
	}
	store := uploads.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.Key, cfg.Storage.Bucket)
	return uploads.NewUploader(store, uploads.Options{
		Bucket:        cfg.Storage.Bucket,
		PublicURL:     cfg.App.PublicURL,
		UploadTimeout: cfg.Storage.UploadTimeout,
		URLTimeout:    cfg.Storage.URLTimeout,
	})
}
