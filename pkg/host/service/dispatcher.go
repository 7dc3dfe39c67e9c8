package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	tailService "github.com/tailspan/tailspan/pkg/tail/service"
	"go.uber.org/zap"
)

type traceContextKey struct{}

// HostDispatcherImpl is an in-process stand-in for the host runtime: it wraps
// an application handler and synthesizes the lifecycle-event stream around
// each request — onset when the request arrives, spanOpen/spanClose from the
// application via InvocationTrace, then return and outcome. It exists for the
// demo worker and end-to-end tests; production converters receive their
// stream from a real host over the tail server.
type HostDispatcherImpl struct {
	newSession  tailService.SessionFactory
	serviceName string
	version     string
	logger      *zap.Logger
}

func NewHostDispatcherImpl(
	newSession tailService.SessionFactory,
	serviceName string,
	version string,
	logger *zap.Logger,
) *HostDispatcherImpl {
	return &HostDispatcherImpl{
		newSession:  newSession,
		serviceName: serviceName,
		version:     version,
		logger:      logger,
	}
}

func (h *HostDispatcherImpl) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace := newInvocationTrace(h.newSession(), h.logger)
		start := time.Now()
		trace.emitOnset(r.Context(), h.serviceName, h.version, r.Method, requestURL(r))

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), traceContextKey{}, trace)
		next.ServeHTTP(recorder, r.WithContext(ctx))

		elapsedMs := float64(time.Since(start).Milliseconds())
		trace.emitReturn(r.Context(), recorder.status)
		outcome := "ok"
		if recorder.status >= http.StatusInternalServerError {
			outcome = "error"
		}
		// The in-process host cannot separate cpu time from wall time.
		trace.emitOutcome(r.Context(), outcome, elapsedMs, elapsedMs)
	})
}

// TraceFromContext returns the request's InvocationTrace, or nil when the
// handler runs uninstrumented.
func TraceFromContext(ctx context.Context) *InvocationTrace {
	trace, _ := ctx.Value(traceContextKey{}).(*InvocationTrace)
	return trace
}

// InvocationTrace lets application code open and close child spans on the
// invocation's event stream.
type InvocationTrace struct {
	session    tailService.TailSession
	traceID    string
	rootSpanID string
	spanSerial int
	logger     *zap.Logger
}

func newInvocationTrace(session tailService.TailSession, logger *zap.Logger) *InvocationTrace {
	traceID := strings.ReplaceAll(uuid.NewString(), "-", "")
	return &InvocationTrace{
		session:    session,
		traceID:    traceID,
		rootSpanID: traceID[:16],
		logger:     logger,
	}
}

// OpenSpan emits a spanOpen and returns the new span's id for CloseSpan.
func (t *InvocationTrace) OpenSpan(ctx context.Context, name string, attributes ...tailModel.Attribute) string {
	t.spanSerial++
	spanID := fmt.Sprintf("%016x", t.spanSerial)
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID},
		Kind:          tailModel.KindSpanOpen,
		SpanOpen: &tailModel.SpanOpenPayload{
			SpanID:     spanID,
			Name:       name,
			Attributes: attributes,
		},
	})
	return spanID
}

func (t *InvocationTrace) CloseSpan(ctx context.Context, spanID string, outcome string) {
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID, SpanID: spanID},
		Kind:          tailModel.KindSpanClose,
		SpanClose:     &tailModel.SpanClosePayload{Outcome: outcome},
	})
}

func (t *InvocationTrace) AddAttributes(ctx context.Context, spanID string, attributes []tailModel.Attribute) {
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID, SpanID: spanID},
		Kind:          tailModel.KindAttributes,
		Attributes:    &tailModel.AttributesPayload{Attributes: attributes},
	})
}

func (t *InvocationTrace) Log(ctx context.Context, level string, message string) {
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID},
		Kind:          tailModel.KindLog,
		Log:           &tailModel.LogPayload{Level: level, Message: message},
	})
}

func (t *InvocationTrace) emitOnset(ctx context.Context, serviceName, version, method, url string) {
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID},
		Kind:          tailModel.KindOnset,
		Onset: &tailModel.OnsetPayload{
			SpanID:         t.rootSpanID,
			ScriptName:     serviceName,
			ScriptVersion:  version,
			ExecutionModel: "stateless",
			Trigger: tailModel.TriggerInfo{
				Type:  "fetch",
				Fetch: &tailModel.FetchTrigger{Method: method, URL: url},
			},
		},
	})
}

func (t *InvocationTrace) emitReturn(ctx context.Context, statusCode int) {
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID, SpanID: t.rootSpanID},
		Kind:          tailModel.KindReturn,
		Return:        &tailModel.ReturnPayload{Fetch: &tailModel.FetchReturn{StatusCode: statusCode}},
	})
}

func (t *InvocationTrace) emitOutcome(ctx context.Context, outcome string, cpuMs, wallMs float64) {
	t.session.Dispatch(ctx, tailModel.Event{
		TimestampNano: time.Now().UnixNano(),
		Context:       tailModel.SpanContext{TraceID: t.traceID},
		Kind:          tailModel.KindOutcome,
		Outcome: &tailModel.OutcomePayload{
			Outcome:    outcome,
			CPUTimeMs:  cpuMs,
			WallTimeMs: wallMs,
		},
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}
