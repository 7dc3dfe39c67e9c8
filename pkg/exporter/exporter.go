package exporter

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tailspan/tailspan/pkg/otel"
	spanModel "github.com/tailspan/tailspan/pkg/span/model"
	"go.uber.org/zap"
)

const DefaultCollectorEndpoint = "http://localhost:4318/v1/traces"

// Exporter sends one batch of spans to the collector. Implementations log
// transport failures themselves; the returned error exists for callers that
// want to observe the failure, and is never fatal to event processing.
type Exporter interface {
	Export(ctx context.Context, spans []*spanModel.Span) error
}

// HTTPExporterImpl posts the OTLP JSON payload to the collector's HTTP
// endpoint. No retries are attempted within a flush.
type HTTPExporterImpl struct {
	client   *resty.Client
	endpoint string
	logger   *zap.Logger
}

func NewHTTPExporterImpl(endpoint string, logger *zap.Logger) *HTTPExporterImpl {
	if endpoint == "" {
		endpoint = DefaultCollectorEndpoint
	}
	return &HTTPExporterImpl{
		client:   resty.New(),
		endpoint: endpoint,
		logger:   logger,
	}
}

func (e *HTTPExporterImpl) Export(ctx context.Context, spans []*spanModel.Span) error {
	exportAttempts.Inc()
	payload := otel.FormatSpans(spans)
	res, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(e.endpoint)
	if err != nil {
		exportFailures.Inc()
		e.logger.Error("Failed to export spans to collector",
			zap.String("endpoint", e.endpoint),
			zap.Error(err),
		)
		return fmt.Errorf("failed to export spans to %s: %w", e.endpoint, err)
	}
	if res.IsError() {
		exportFailures.Inc()
		e.logger.Error("Collector rejected span export",
			zap.String("endpoint", e.endpoint),
			zap.Int("status_code", res.StatusCode()),
		)
		return fmt.Errorf("collector rejected span export with status %d", res.StatusCode())
	}
	exportedSpans.Add(float64(len(spans)))
	return nil
}
