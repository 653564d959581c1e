package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"stratopt-go/internal/app"
	"stratopt-go/internal/config"
	"stratopt-go/internal/metrics"
	"stratopt-go/internal/optimizer"
	"stratopt-go/internal/scheduler"
	"stratopt-go/internal/server"
	"stratopt-go/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		bootLog := util.NewLogger("info", nil)
		bootLog.Fatal().Err(err).Msg("load config")
	}

	var errLog io.Writer
	if cfg.App.ErrorLog != "" {
		f, err := util.OpenErrorLog(cfg.App.ErrorLog)
		if err != nil {
			bootLog := util.NewLogger("info", nil)
			bootLog.Fatal().Err(err).Msg("open error log")
		}
		defer f.Close()
		errLog = f
	}
	log := util.NewLogger(cfg.App.LogLevel, errLog).With().Str("app", cfg.App.Name).Logger()

	if cfg.App.MetricsAddr != "" {
		_ = metrics.Serve(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("wire application")
	}
	defer a.Close()

	hub := server.NewHub(log)
	go hub.Run(ctx)
	a.Service.Subscribe(hub.Publish)

	if cfg.Analysis.Enabled && cfg.Analysis.Schedule != "" {
		sched := scheduler.New(log)
		if err := sched.AddJob(cfg.Analysis.Schedule, optimizer.NewAnalysisJob(a.Service, 5*time.Minute)); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Analysis.Schedule).Msg("register analysis job")
		}
		sched.Start()
		defer sched.Stop()
	}

	srv, err := server.New(server.Config{
		Port:         cfg.Server.Port,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Log:          log,
		Optimizer:    a.Service,
		Hub:          hub,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build server")
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
