package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coldreach/internal/api"
	"coldreach/internal/config"
	"coldreach/internal/db"
	"coldreach/internal/engine"
	"coldreach/internal/mail"
	"coldreach/internal/metrics"
	"coldreach/internal/scheduler"
	"coldreach/internal/template"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	if err := store.InitSchema(ctx, cfg.DailyLimit); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Mail Transport + Renderer
	// ------------------------------------------------
	sender := &mail.Sender{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		RetryWindow: 30 * time.Second,
	}

	inbox := &mail.IMAPDialer{
		Host:     cfg.IMAPHost,
		Port:     cfg.IMAPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
	}

	renderer := &template.Renderer{Overrides: store}

	// ------------------------------------------------
	// Engine Tasks
	// ------------------------------------------------
	processor := &engine.Processor{
		Leads:             store,
		Campaign:          store,
		Renderer:          renderer,
		Transport:         sender,
		Limiter:           rate.NewLimiter(rate.Limit(cfg.SendRateCeiling), 1),
		Log:               logger,
		Followup1Interval: cfg.Followup1Interval,
		Followup2Interval: cfg.Followup2Interval,
		MinDelay:          cfg.MinSendDelay,
		MaxDelay:          cfg.MaxSendDelay,
		PauseEveryN:       cfg.PauseEveryN,
		PauseMin:          cfg.PauseMin,
		PauseMax:          cfg.PauseMax,
		CalendarLink:      cfg.CalendarLink,
	}

	reconciler := &engine.Reconciler{
		Leads:        store,
		Campaign:     store,
		Activity:     store,
		Dialer:       inbox,
		Renderer:     renderer,
		Transport:    sender,
		Log:          logger,
		CalendarLink: cfg.CalendarLink,
	}

	reset := &engine.DailyReset{
		Campaign: store,
		Log:      logger,
	}

	// ------------------------------------------------
	// Scheduler
	// ------------------------------------------------
	var wg sync.WaitGroup

	sched := &scheduler.Scheduler{Log: logger}
	sched.Start(ctx, &wg,
		scheduler.Task{Name: "email_queue", Interval: cfg.QueueTick, Run: processor.Tick},
		scheduler.Task{Name: "reply_check", Interval: cfg.ReplyTick, Run: reconciler.Tick},
		scheduler.Task{Name: "daily_reset", Interval: cfg.DailyResetTick, Run: reset.Tick},
	)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Store: store,
		Log:   logger,
	}

	apiServer := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: apiHandler.Router(),
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	// Let in-flight ticks finish and commit
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", zap.Error(err))
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}
