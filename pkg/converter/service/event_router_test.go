package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	spanModel "github.com/tailspan/tailspan/pkg/span/model"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	"go.uber.org/zap"
)

type capturingExporter struct {
	batches [][]*spanModel.Span
	err     error
}

func (e *capturingExporter) Export(ctx context.Context, spans []*spanModel.Span) error {
	batch := make([]*spanModel.Span, len(spans))
	copy(batch, spans)
	e.batches = append(e.batches, batch)
	return e.err
}

func newRouterWithExporter(exp *capturingExporter) (*EventRouterImpl, *SpanLifecycleManagerImpl) {
	manager := NewSpanLifecycleManagerImpl(zap.NewNop())
	return NewEventRouterImpl(manager, exp, zap.NewNop()), manager
}

func TestEventRouterImpl_Route(t *testing.T) {
	t.Run("Exports both spans of a root-and-child invocation on outcome", func(t *testing.T) {
		exp := &capturingExporter{}
		router, manager := newRouterWithExporter(exp)
		ctx := context.Background()

		router.Route(ctx, onsetEvent("", fetchOnsetPayload("1")))
		router.Route(ctx, tailModel.Event{
			TimestampNano: 2000,
			Context:       tailModel.SpanContext{TraceID: testTraceID},
			Kind:          tailModel.KindSpanOpen,
			SpanOpen:      &tailModel.SpanOpenPayload{SpanID: "2", Name: "child"},
		})
		router.Route(ctx, spanCloseEvent("2", "ok"))
		router.Route(ctx, tailModel.Event{
			TimestampNano: 5000,
			Context:       tailModel.SpanContext{TraceID: testTraceID},
			Kind:          tailModel.KindOutcome,
			Outcome:       &tailModel.OutcomePayload{Outcome: "ok", CPUTimeMs: 5, WallTimeMs: 10},
		})

		require.Len(t, exp.batches, 1)
		batch := exp.batches[0]
		require.Len(t, batch, 2)
		assert.Equal(t, "1", batch[0].SpanID)
		assert.Equal(t, "child", batch[1].OperationName)
		assert.Equal(t, "1", batch[1].ParentSpanID)
		require.NotNil(t, batch[0].Status)
		assert.Equal(t, spanModel.StatusCodeOk, batch[0].Status.Code)
		cpu, _ := batch[0].GetTag("cpu.time.ms")
		wall, _ := batch[0].GetTag("wall.time.ms")
		assert.Equal(t, float64(5), cpu)
		assert.Equal(t, float64(10), wall)

		assert.Empty(t, manager.SpanSnapshot())
	})

	t.Run("Ignores events of unknown kind", func(t *testing.T) {
		exp := &capturingExporter{}
		router, manager := newRouterWithExporter(exp)
		router.Route(context.Background(), onsetEvent("", fetchOnsetPayload("1")))
		router.Route(context.Background(), tailModel.Event{
			Context: tailModel.SpanContext{TraceID: testTraceID},
			Kind:    tailModel.EventKind("somethingNew"),
		})
		assert.Len(t, manager.SpanSnapshot(), 1)
		assert.Empty(t, exp.batches)
	})

	t.Run("Swallows export failures and still clears closed spans", func(t *testing.T) {
		exp := &capturingExporter{err: errors.New("connection refused")}
		router, manager := newRouterWithExporter(exp)
		ctx := context.Background()

		router.Route(ctx, onsetEvent("", fetchOnsetPayload("1")))
		router.Route(ctx, tailModel.Event{
			TimestampNano: 5000,
			Context:       tailModel.SpanContext{TraceID: testTraceID},
			Kind:          tailModel.KindOutcome,
			Outcome:       &tailModel.OutcomePayload{Outcome: "ok", CPUTimeMs: 1, WallTimeMs: 1},
		})

		require.Len(t, exp.batches, 1)
		assert.Empty(t, manager.SpanSnapshot())

		// A fresh converter for the next invocation is unaffected.
		nextExp := &capturingExporter{}
		nextRouter, _ := newRouterWithExporter(nextExp)
		nextRouter.Route(ctx, onsetEvent("", fetchOnsetPayload("1")))
		nextRouter.Route(ctx, tailModel.Event{
			TimestampNano: 6000,
			Context:       tailModel.SpanContext{TraceID: testTraceID},
			Kind:          tailModel.KindOutcome,
			Outcome:       &tailModel.OutcomePayload{Outcome: "ok", CPUTimeMs: 1, WallTimeMs: 1},
		})
		require.Len(t, nextExp.batches, 1)
	})

	t.Run("Does not export when the table is empty", func(t *testing.T) {
		exp := &capturingExporter{}
		router, _ := newRouterWithExporter(exp)
		router.Route(context.Background(), tailModel.Event{
			Context: tailModel.SpanContext{TraceID: testTraceID},
			Kind:    tailModel.KindOutcome,
			Outcome: &tailModel.OutcomePayload{Outcome: "ok"},
		})
		assert.Empty(t, exp.batches)
	})
}
