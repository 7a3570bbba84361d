package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/app"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/domain/delivery"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/config"
	idb "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/database"
	infradir "github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/directory"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/email"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/httpapi"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/logger"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/push"
	"github.com/beyito/INMOBILIARIA-BACKEND-sub000/internal/infra/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	fmt.Println("Brokerage alert service starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Initialize Repositories
	alertRepo := idb.NewPostgresAlertRepository(db)
	contractRepo := idb.NewPostgresContractRepository(db)
	directoryRepo := idb.NewPostgresDirectoryRepository(db)
	log.Info("Repositories initialized.")

	// Optional redis cache in front of the recipient directory
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warnf("Redis at %s not reachable, directory cache disabled: %v", cfg.RedisAddr, err)
			rdb = nil
		} else {
			log.Infof("Redis directory cache enabled (%s).", cfg.RedisAddr)
		}
	}
	cachedDirectory := infradir.NewCachedRepository(directoryRepo, rdb, log)

	// Channel transports
	emailSender := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	log.Info("SMTP email transport initialized.")

	var pushSender delivery.PushSender
	if cfg.FCMCredentialsFile != "" {
		fcmSender, err := push.NewFCMSender(context.Background(), cfg.FCMCredentialsFile, log)
		if err != nil {
			log.Fatalf("Could not initialize FCM push transport: %v", err)
		}
		pushSender = fcmSender
		log.Info("FCM push transport initialized.")
	} else {
		log.Warn("FCM_CREDENTIALS_FILE not set. Push channel disabled.")
	}

	// Services
	scanService := app.NewAlertScanService(alertRepo, contractRepo, cachedDirectory, emailSender, pushSender, log, cfg.OverrideEmail)
	lifecycleService := app.NewAlertLifecycleService(alertRepo, contractRepo, log)
	log.Info("Alert services initialized.")

	// Scheduler
	alertScheduler := scheduler.NewAlertScheduler(scanService, log, cfg.CronSpecAlertScan)
	if err := alertScheduler.Start(); err != nil {
		log.Fatalf("Could not start alert scheduler: %v", err)
	}

	// HTTP API
	if cfg.Environment == "production" || cfg.Environment == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	alertHandler := httpapi.NewAlertHandler(scanService, lifecycleService, log)
	httpapi.RegisterRoutes(router, alertHandler, []byte(cfg.JWTSecret))

	server := &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: router,
	}
	go func() {
		log.Infof("HTTP server listening on %s", cfg.HTTPListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	log.Info("Application setup complete. Scheduler and HTTP server are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	alertScheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	// db.Close() is handled by defer
	log.Info("Application shut down gracefully.")
}
