package service

import (
	"context"

	"github.com/google/uuid"
	converterService "github.com/tailspan/tailspan/pkg/converter/service"
	"github.com/tailspan/tailspan/pkg/event_bus"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	"go.uber.org/zap"
)

const TopicInvocationCompleted = "invocation.completed"

// TailSession is the per-invocation converter instance: one session per event
// stream, constructed when the host's first event arrives and discarded after
// the terminal outcome event. Sessions are never reused.
type TailSession interface {
	Dispatch(ctx context.Context, event tailModel.Event)
	Finished() bool
}

// SessionFactory builds a fresh session for each incoming invocation.
type SessionFactory func() TailSession

type TailSessionImpl struct {
	invocationID string
	router       converterService.EventRouter
	bus          event_bus.TailEventBus[tailModel.InvocationSummary]
	logger       *zap.Logger
	traceID      string
	eventCount   int
	finished     bool
}

func NewTailSessionImpl(
	router converterService.EventRouter,
	bus event_bus.TailEventBus[tailModel.InvocationSummary],
	logger *zap.Logger,
) *TailSessionImpl {
	return &TailSessionImpl{
		invocationID: uuid.NewString(),
		router:       router,
		bus:          bus,
		logger:       logger,
	}
}

func (s *TailSessionImpl) Dispatch(ctx context.Context, event tailModel.Event) {
	if s.finished {
		s.logger.Warn("Dropping event dispatched after the terminal outcome event",
			zap.String("invocation_id", s.invocationID),
			zap.String("kind", string(event.Kind)),
		)
		return
	}
	if s.traceID == "" {
		s.traceID = event.Context.TraceID
	}
	s.eventCount++
	s.router.Route(ctx, event)
	if event.Kind == tailModel.KindOutcome {
		s.finished = true
		s.publishSummary(event)
	}
}

func (s *TailSessionImpl) Finished() bool {
	return s.finished
}

func (s *TailSessionImpl) publishSummary(event tailModel.Event) {
	if s.bus == nil {
		return
	}
	outcome := ""
	if event.Outcome != nil {
		outcome = event.Outcome.Outcome
	}
	err := s.bus.Publish(TopicInvocationCompleted, tailModel.InvocationSummary{
		InvocationID: s.invocationID,
		TraceID:      s.traceID,
		Outcome:      outcome,
		EventCount:   s.eventCount,
	})
	if err != nil {
		s.logger.Error("Failed to publish invocation summary", zap.Error(err))
	}
}
