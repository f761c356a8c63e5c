package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	httpadapter "github.com/jefferypippitt/essential-todo/internal/adapter/http"
	telemetryadapter "github.com/jefferypippitt/essential-todo/internal/adapter/telemetry"
	"github.com/jefferypippitt/essential-todo/pkg/config"
	"github.com/jefferypippitt/essential-todo/pkg/logger"
)

const serviceVersion = "1.0.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load(flag.CommandLine, os.Args[1:])

	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	lokiLogger, err := logger.NewLokiLogger(cfg.Telemetry.ServiceName, cfg.Telemetry.LokiURL, cfg.IsProduction())

	if err != nil {
		log.Fatal("Failed to initialize Loki logger:", err)
	}

	defer lokiLogger.Sync()

	telemetry, err := telemetryadapter.NewContainer(ctx, telemetryadapter.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    cfg.Environment,
		MetricsPort:    cfg.Telemetry.MetricsPort,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
	}, slog.Default())

	if err != nil {
		log.Fatal("Failed to initialize telemetry:", err)
	}

	telemetry.AppMetrics.StartSystemMetrics(ctx)
	telemetry.StartMetricsServer()

	server, err := httpadapter.NewServer(ctx, cfg, telemetry.AppMetrics, telemetry.NewTelemetryProbe(), lokiLogger)

	if err != nil {
		log.Fatal("Failed to build server:", err)
	}

	go func() {
		if err := server.Start(); err != nil {
			lokiLogger.Zap().Fatal(err.Error())
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				lokiLogger.Zap().Info("Shutting down gracefully...")
				return server.Shutdown(ctx)
			},
			"telemetry": func(ctx context.Context) error {
				return telemetry.Shutdown(ctx)
			},
			"loki-logger": func(ctx context.Context) error {
				return lokiLogger.Close(ctx)
			},
		},
	)

	exitCode := <-wait
	slog.Info("Application exited", "code", exitCode)
	os.Exit(exitCode)
}
