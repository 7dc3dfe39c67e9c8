package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	converterService "github.com/tailspan/tailspan/pkg/converter/service"
	"github.com/tailspan/tailspan/pkg/event_bus"
	spanModel "github.com/tailspan/tailspan/pkg/span/model"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	"go.uber.org/zap"
)

type fakeExporter struct {
	batches [][]*spanModel.Span
}

func (e *fakeExporter) Export(ctx context.Context, spans []*spanModel.Span) error {
	e.batches = append(e.batches, spans)
	return nil
}

type fakeBus struct {
	topics    []string
	summaries []tailModel.InvocationSummary
}

func (b *fakeBus) Subscribe(
	topic string,
	handler func(payload tailModel.InvocationSummary) error,
	transactional bool,
) error {
	return nil
}

func (b *fakeBus) Publish(topic string, payload tailModel.InvocationSummary) error {
	b.topics = append(b.topics, topic)
	b.summaries = append(b.summaries, payload)
	return nil
}

func newTestSession(exp *fakeExporter, bus event_bus.TailEventBus[tailModel.InvocationSummary]) *TailSessionImpl {
	logger := zap.NewNop()
	manager := converterService.NewSpanLifecycleManagerImpl(logger)
	router := converterService.NewEventRouterImpl(manager, exp, logger)
	return NewTailSessionImpl(router, bus, logger)
}

func onsetEvent() tailModel.Event {
	return tailModel.Event{
		TimestampNano: 1000,
		Context:       tailModel.SpanContext{TraceID: "abc"},
		Kind:          tailModel.KindOnset,
		Onset: &tailModel.OnsetPayload{
			SpanID:     "1",
			ScriptName: "checkout",
			Trigger: tailModel.TriggerInfo{
				Type:  "fetch",
				Fetch: &tailModel.FetchTrigger{Method: "GET", URL: "https://example.com/"},
			},
		},
	}
}

func outcomeEvent() tailModel.Event {
	return tailModel.Event{
		TimestampNano: 5000,
		Context:       tailModel.SpanContext{TraceID: "abc"},
		Kind:          tailModel.KindOutcome,
		Outcome:       &tailModel.OutcomePayload{Outcome: "ok", CPUTimeMs: 5, WallTimeMs: 10},
	}
}

func TestTailSessionImpl_Dispatch(t *testing.T) {
	t.Run("Finishes after the terminal outcome event and publishes a summary", func(t *testing.T) {
		exp := &fakeExporter{}
		bus := &fakeBus{}
		session := newTestSession(exp, bus)
		ctx := context.Background()

		session.Dispatch(ctx, onsetEvent())
		assert.False(t, session.Finished())
		session.Dispatch(ctx, outcomeEvent())
		assert.True(t, session.Finished())

		require.Len(t, exp.batches, 1)
		require.Len(t, bus.summaries, 1)
		assert.Equal(t, []string{TopicInvocationCompleted}, bus.topics)
		summary := bus.summaries[0]
		assert.Equal(t, "abc", summary.TraceID)
		assert.Equal(t, "ok", summary.Outcome)
		assert.Equal(t, 2, summary.EventCount)
		assert.NotEmpty(t, summary.InvocationID)
	})

	t.Run("Drops events dispatched after the outcome", func(t *testing.T) {
		exp := &fakeExporter{}
		session := newTestSession(exp, &fakeBus{})
		ctx := context.Background()

		session.Dispatch(ctx, onsetEvent())
		session.Dispatch(ctx, outcomeEvent())
		session.Dispatch(ctx, onsetEvent())

		assert.Len(t, exp.batches, 1)
	})

	t.Run("Works without an event bus", func(t *testing.T) {
		exp := &fakeExporter{}
		session := newTestSession(exp, nil)
		ctx := context.Background()

		session.Dispatch(ctx, onsetEvent())
		session.Dispatch(ctx, outcomeEvent())
		assert.True(t, session.Finished())
	})
}
