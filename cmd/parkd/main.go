package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	log "github.com/sirupsen/logrus"

	"park-timer-backend/config"
	"park-timer-backend/internal/alert"
	"park-timer-backend/internal/api"
	"park-timer-backend/internal/db"
	"park-timer-backend/internal/engine"
	"park-timer-backend/internal/mw"
	"park-timer-backend/internal/store"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	config.ConfigureLogger(cfg.Log)
	log.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		log.Warn("VAPID keys are not configured; expiration alerts will not reach front-desk browsers")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	log.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)

	broadcaster := alert.NewWebPushBroadcaster(appStore, &webpushOptions)
	dispatcher := alert.NewDispatcher(cfg.WorkerPool.Size, broadcaster, broadcaster)
	dispatcher.SetMuted(cfg.Alerts.Muted)
	dispatcher.Start(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	timers := engine.New(appStore, dispatcher, cfg.Park.Location,
		engine.WithMetrics(engine.NewMetrics(registry)))
	timers.StartPolling(ctx)

	limiter := mw.NewIPRateLimiter(cfg.Server.RateLimit(), cfg.Server.RateLimitBurst)
	go limiter.EvictLoop(ctx, 10*time.Minute)

	handler := api.NewHandler(timers, appStore, dispatcher, &webpushOptions)
	router := api.NewRouter(handler, cfg.Server, limiter, registry)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	log.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server Shutdown: %v", err)
	}

	// Stop ticking before the workers so no alert is queued after they exit.
	timers.StopPolling()
	cancel()
	dispatcher.Wait()

	log.Println("Server gracefully stopped")
}
