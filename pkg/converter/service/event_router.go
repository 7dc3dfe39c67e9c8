package service

import (
	"context"

	"github.com/tailspan/tailspan/pkg/exporter"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	"go.uber.org/zap"
)

// EventRouter dispatches each incoming event to exactly one lifecycle-manager
// handler. Unknown kinds are ignored. The terminal outcome event additionally
// flushes the span table through the exporter; an export failure is logged and
// swallowed so it can never halt event processing.
type EventRouter interface {
	Route(ctx context.Context, event tailModel.Event)
}

type EventRouterImpl struct {
	manager  SpanLifecycleManager
	exporter exporter.Exporter
	logger   *zap.Logger
}

func NewEventRouterImpl(
	manager SpanLifecycleManager,
	spanExporter exporter.Exporter,
	logger *zap.Logger,
) *EventRouterImpl {
	return &EventRouterImpl{
		manager:  manager,
		exporter: spanExporter,
		logger:   logger,
	}
}

func (r *EventRouterImpl) Route(ctx context.Context, event tailModel.Event) {
	switch event.Kind {
	case tailModel.KindOnset:
		r.manager.HandleOnset(event)
	case tailModel.KindSpanOpen:
		r.manager.HandleSpanOpen(event)
	case tailModel.KindAttributes:
		r.manager.HandleAttributes(event)
	case tailModel.KindLog:
		r.manager.HandleLog(event)
	case tailModel.KindSpanClose:
		r.manager.HandleSpanClose(event)
	case tailModel.KindException:
		r.manager.HandleException(event)
	case tailModel.KindReturn:
		r.manager.HandleReturn(event)
	case tailModel.KindOutcome:
		r.manager.HandleOutcome(event)
		r.flush(ctx)
	case tailModel.KindDiagnosticChannel:
		r.manager.HandleDiagnosticChannel(event)
	default:
		// Newer hosts may emit kinds this converter predates.
	}
}

func (r *EventRouterImpl) flush(ctx context.Context) {
	spans := r.manager.SpanSnapshot()
	if len(spans) == 0 {
		return
	}
	if err := r.exporter.Export(ctx, spans); err != nil {
		r.logger.Error("Span export failed, dropping closed spans", zap.Error(err))
	}
	r.manager.ClearClosed()
}
