package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	converterService "github.com/tailspan/tailspan/pkg/converter/service"
	spanModel "github.com/tailspan/tailspan/pkg/span/model"
	tailService "github.com/tailspan/tailspan/pkg/tail/service"
	"go.uber.org/zap"
)

type capturingExporter struct {
	batches [][]*spanModel.Span
}

func (e *capturingExporter) Export(ctx context.Context, spans []*spanModel.Span) error {
	e.batches = append(e.batches, spans)
	return nil
}

func newTestDispatcher(exp *capturingExporter) *HostDispatcherImpl {
	logger := zap.NewNop()
	newSession := func() tailService.TailSession {
		manager := converterService.NewSpanLifecycleManagerImpl(logger)
		router := converterService.NewEventRouterImpl(manager, exp, logger)
		return tailService.NewTailSessionImpl(router, nil, logger)
	}
	return NewHostDispatcherImpl(newSession, "demo", "1.0.0", logger)
}

func TestHostDispatcherImpl_Instrument(t *testing.T) {
	t.Run("Exports a root span for an uninstrumented handler", func(t *testing.T) {
		exp := &capturingExporter{}
		handler := newTestDispatcher(exp).Instrument(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			},
		))
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/orders?order=7", nil))

		require.Len(t, exp.batches, 1)
		batch := exp.batches[0]
		require.Len(t, batch, 1)
		root := batch[0]
		assert.Empty(t, root.ParentSpanID)
		assert.Contains(t, root.OperationName, "GET ")
		status, found := root.GetTag("http.response.status_code")
		require.True(t, found)
		assert.Equal(t, http.StatusNoContent, status)
		serviceName, _ := root.GetTag("service.name")
		assert.Equal(t, "demo", serviceName)
		require.NotNil(t, root.Status)
		assert.Equal(t, spanModel.StatusCodeOk, root.Status.Code)
	})

	t.Run("Parents handler-opened spans on the root span", func(t *testing.T) {
		exp := &capturingExporter{}
		handler := newTestDispatcher(exp).Instrument(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				trace := TraceFromContext(r.Context())
				require.NotNil(t, trace)
				spanID := trace.OpenSpan(r.Context(), "db.query")
				trace.CloseSpan(r.Context(), spanID, "ok")
			},
		))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders", nil))

		require.Len(t, exp.batches, 1)
		batch := exp.batches[0]
		require.Len(t, batch, 2)
		root, child := batch[0], batch[1]
		assert.Equal(t, "db.query", child.OperationName)
		assert.Equal(t, root.SpanID, child.ParentSpanID)
		require.NotNil(t, child.Status)
		assert.Equal(t, spanModel.StatusCodeOk, child.Status.Code)
	})

	t.Run("Reports an error outcome for 5xx responses", func(t *testing.T) {
		exp := &capturingExporter{}
		handler := newTestDispatcher(exp).Instrument(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders", nil))

		require.Len(t, exp.batches, 1)
		root := exp.batches[0][0]
		require.NotNil(t, root.Status)
		assert.Equal(t, spanModel.StatusCodeError, root.Status.Code)
	})
}
