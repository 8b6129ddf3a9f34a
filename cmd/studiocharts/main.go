package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"studiocharts/internal/amqp"
	"studiocharts/internal/animate"
	"studiocharts/internal/cli"
	"studiocharts/internal/dataset"
	apphttp "studiocharts/internal/http"
	"studiocharts/internal/log"
	"studiocharts/internal/services"
	"studiocharts/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting studiocharts",
		log.FieldOperation, log.OpStartup,
		log.FieldSource, cfg.DataBackend)

	res := cli.InitBackend(context.Background(), cfg, logger)
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	}()

	loader := dataset.NewLoader(res.Backend, cfg.TopN, logger)
	instanceID := uuid.NewString()

	// Reload fan-out between instances (optional).
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, reloads stay local", log.FieldError, err)
		} else {
			amqpClient = c
			defer amqpClient.Close()
		}
	} else {
		logger.Info("AMQP disabled, reloads stay local")
	}

	opts := apphttp.DefaultOptions()
	opts.TopN = cfg.TopN
	opts.Animation = animate.Config{Interval: cfg.FrameInterval, DecayK: cfg.DecayK}
	opts.CacheTTL = cfg.CacheTTL
	opts.Source = cfg.DataBackend
	opts.InstanceID = instanceID
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}
	srv := apphttp.NewServer(":"+cfg.Port, loader, opts, logger)
	srv.MaxHeaderBytes = 1 << 16

	var refresher *services.RefreshProcessor
	if cfg.RefreshInterval > 0 {
		refresher = services.NewRefreshProcessor(loader, services.RefreshProcessorConfig{Interval: cfg.RefreshInterval}, logger)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if refresher != nil {
			if err := refresher.Stop(shutdownCtx); err != nil {
				logger.Warn("Refresh processor stop failed", log.FieldError, err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	// The server starts even when the first load fails; /readyz reports it.
	if d, err := loader.Load(ctx); err != nil {
		logger.Error("Initial dataset load failed",
			log.FieldOperation, log.OpLoad,
			log.FieldError, err)
	} else {
		logger.Info("Dataset ready",
			log.FieldDatasetVersion, d.Version,
			"studios", len(d.Studios),
			"dropped_rows", d.Dropped)
	}

	if amqpClient != nil {
		w := worker.NewReloadWorker(loader, res.History, logger)
		w.SetOrigin(instanceID)
		if err := w.StartupCheck(ctx); err != nil {
			logger.Error("Startup import check failed", log.FieldError, err)
		}
		go func() {
			if err := amqpClient.ConsumeWithReconnect(ctx, w.HandleReloadMessage); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Reload consumption stopped", log.FieldError, err)
			}
		}()
	}

	if refresher != nil {
		if err := refresher.Start(ctx); err != nil {
			logger.Error("Failed to start refresh processor", log.FieldError, err)
		}
	}

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
