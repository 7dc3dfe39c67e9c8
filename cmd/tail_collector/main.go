package main

import (
	"net/http"

	"github.com/asaskevich/EventBus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tailspan/tailspan/pkg/config"
	converterService "github.com/tailspan/tailspan/pkg/converter/service"
	"github.com/tailspan/tailspan/pkg/event_bus"
	"github.com/tailspan/tailspan/pkg/exporter"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	tailServer "github.com/tailspan/tailspan/pkg/tail/server"
	tailService "github.com/tailspan/tailspan/pkg/tail/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.Logging.Development {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var spanExporter exporter.Exporter
	if cfg.Collector.Transport == "grpc" {
		spanExporter, err = exporter.NewGRPCExporterImpl(cfg.Collector.GRPCTarget, logger)
		if err != nil {
			logger.Fatal("Failed to create gRPC exporter", zap.Error(err))
		}
	} else {
		spanExporter = exporter.NewHTTPExporterImpl(cfg.Collector.Endpoint, logger)
	}

	bus := event_bus.NewTailEventBus[tailModel.InvocationSummary](EventBus.New(), logger)
	err = bus.Subscribe(
		tailService.TopicInvocationCompleted,
		func(summary tailModel.InvocationSummary) error {
			logger.Info("Invocation completed",
				zap.String("invocation_id", summary.InvocationID),
				zap.String("trace_id", summary.TraceID),
				zap.String("outcome", summary.Outcome),
				zap.Int("event_count", summary.EventCount),
			)
			return nil
		},
		false,
	)
	if err != nil {
		logger.Fatal("Failed to subscribe to invocation summaries", zap.Error(err))
	}

	newSession := func() tailService.TailSession {
		manager := converterService.NewSpanLifecycleManagerImpl(logger)
		router := converterService.NewEventRouterImpl(manager, spanExporter, logger)
		return tailService.NewTailSessionImpl(router, bus, logger)
	}

	mux := http.NewServeMux()
	mux.Handle("/tail", tailServer.NewTailServerImpl(newSession, logger))
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("Tail collector started, listening for lifecycle event streams...",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("collector_transport", cfg.Collector.Transport),
	)
	if err := http.ListenAndServe(cfg.Server.ListenAddr, mux); err != nil {
		logger.Fatal("Failed to serve", zap.Error(err))
	}
}
