package main

import (
	"context"
	"net/http"

	"github.com/asaskevich/EventBus"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/tailspan/tailspan/pkg/config"
	converterService "github.com/tailspan/tailspan/pkg/converter/service"
	"github.com/tailspan/tailspan/pkg/demo/bindings"
	demoService "github.com/tailspan/tailspan/pkg/demo/service"
	"github.com/tailspan/tailspan/pkg/event_bus"
	"github.com/tailspan/tailspan/pkg/exporter"
	hostService "github.com/tailspan/tailspan/pkg/host/service"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	tailService "github.com/tailspan/tailspan/pkg/tail/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	es, err := elasticsearch.NewDefaultClient()
	if err != nil {
		logger.Fatal("Failed to create elasticsearch client", zap.Error(err))
	}
	cache, err := bindings.NewRistrettoCacheImpl()
	if err != nil {
		logger.Fatal("Failed to create kv cache", zap.Error(err))
	}
	store, err := bindings.NewPgxStoreImpl(context.Background(), cfg.Demo.PostgresURL)
	if err != nil {
		logger.Fatal("Failed to create postgres store", zap.Error(err))
	}
	defer store.Close()
	queue, err := bindings.NewNatsQueueImpl(cfg.Demo.NatsURL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to nats", zap.Error(err))
	}

	worker := demoService.NewOrderWorkerImpl(
		cache,
		store,
		bindings.NewElasticDocStoreImpl(es),
		queue,
		bindings.NewRestyFetcherImpl(),
		cfg.Demo.WebhookURL,
		logger,
	)

	unsubscribe, err := queue.Consume(demoService.OrderViewedSubject, func(body []byte) error {
		logger.Info("Order viewed", zap.ByteString("order_id", body))
		return nil
	})
	if err != nil {
		logger.Warn("Failed to consume order views", zap.Error(err))
	} else {
		defer unsubscribe()
	}

	spanExporter := exporter.NewHTTPExporterImpl(cfg.Collector.Endpoint, logger)
	bus := event_bus.NewTailEventBus[tailModel.InvocationSummary](EventBus.New(), logger)
	newSession := func() tailService.TailSession {
		manager := converterService.NewSpanLifecycleManagerImpl(logger)
		router := converterService.NewEventRouterImpl(manager, spanExporter, logger)
		return tailService.NewTailSessionImpl(router, bus, logger)
	}
	dispatcher := hostService.NewHostDispatcherImpl(newSession, "demo-order-worker", "1.0.0", logger)

	mux := http.NewServeMux()
	mux.Handle("/orders", dispatcher.Instrument(worker))

	logger.Info("Demo worker started", zap.String("addr", cfg.Demo.ListenAddr))
	if err := http.ListenAndServe(cfg.Demo.ListenAddr, mux); err != nil {
		logger.Fatal("Failed to serve", zap.Error(err))
	}
}
