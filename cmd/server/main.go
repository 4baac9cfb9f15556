package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"hr-workflow/internal/app"
	"hr-workflow/internal/config"
	"hr-workflow/internal/i18n"
	"hr-workflow/internal/telemetry"
)

var version = "dev"

func main() {
	cfg := config.Load()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := i18n.Init(cfg.DefaultLocale); err != nil {
		log.Fatalf("Failed to load locales: %v", err)
	}
	if err := telemetry.Init(context.Background(), telemetry.Options{
		Enabled:     cfg.OtelEnabled,
		Stdout:      cfg.OtelStdout,
		ServiceName: "hr-workflow",
		Version:     version,
	}); err != nil {
		log.Fatalf("Failed to init telemetry: %v", err)
	}

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	// Background side effects: outbox workers plus the periodic sweep and
	// calendar reconcile.
	bgCtx, stopBackground := context.WithCancel(context.Background())
	go a.Processor.Run(bgCtx)
	go a.Processor.SweepEvery(bgCtx, cfg.SweepInterval, a.Reconcile)

	// Replay whatever a previous process left pending.
	if n, err := a.Processor.Sweep(bgCtx); err != nil {
		log.Printf("ERROR startup sweep: %v", err)
	} else if n > 0 {
		log.Printf("[outbox] startup sweep replayed %d events", n)
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     a.Router(),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /notifications/stream is long-lived
	}

	go func() {
		log.Printf("HR workflow service started on :%s (env: %s)", cfg.Port, cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("ERROR shutdown: %v", err)
	}
	stopBackground()
	a.Close(ctx)
	telemetry.Shutdown(ctx)
}
