package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	spanModel "github.com/tailspan/tailspan/pkg/span/model"
	tailModel "github.com/tailspan/tailspan/pkg/tail/model"
	"go.uber.org/zap"
)

// DefaultServiceName is used when the onset payload carries no script name.
const DefaultServiceName = "unknown_service"

// SpanLifecycleManager owns the span table for a single invocation. Events are
// delivered strictly sequentially, so the table needs no locking. Target and
// parent spans are resolved stack-based: the manager keeps a stack of open span
// ids, pushed on onset/spanOpen and popped on spanClose; a spanOpen's parent is
// the top of the stack, and mutation events target the context's current span
// id when the host supplies one, else the stack top.
type SpanLifecycleManager interface {
	HandleOnset(event tailModel.Event)
	HandleSpanOpen(event tailModel.Event)
	HandleAttributes(event tailModel.Event)
	HandleLog(event tailModel.Event)
	HandleSpanClose(event tailModel.Event)
	HandleException(event tailModel.Event)
	HandleReturn(event tailModel.Event)
	HandleOutcome(event tailModel.Event)
	HandleDiagnosticChannel(event tailModel.Event)
	// SpanSnapshot returns every span currently in the table in creation order.
	SpanSnapshot() []*spanModel.Span
	// ClearClosed removes spans with a set end time from the table, after an
	// export attempt. Open spans stay behind for a later flush.
	ClearClosed()
}

type SpanLifecycleManagerImpl struct {
	spans  map[string]*spanModel.Span
	order  []string
	stack  []string
	logger *zap.Logger
}

func NewSpanLifecycleManagerImpl(logger *zap.Logger) *SpanLifecycleManagerImpl {
	return &SpanLifecycleManagerImpl{
		spans:  make(map[string]*spanModel.Span),
		logger: logger,
	}
}

func (m *SpanLifecycleManagerImpl) HandleOnset(event tailModel.Event) {
	payload := event.Onset
	if payload == nil {
		return
	}
	span := &spanModel.Span{
		TraceID:       event.Context.TraceID,
		SpanID:        payload.SpanID,
		ParentSpanID:  event.Context.SpanID,
		OperationName: onsetOperationName(payload.Trigger),
		StartTimeNano: event.TimestampNano,
	}
	m.applyOnsetTags(span, payload)
	m.insert(span)
}

func (m *SpanLifecycleManagerImpl) HandleSpanOpen(event tailModel.Event) {
	payload := event.SpanOpen
	if payload == nil {
		return
	}
	parentID := m.stackTop()
	if parentID == "" {
		parentID = event.Context.SpanID
	}
	span := &spanModel.Span{
		TraceID:       event.Context.TraceID,
		SpanID:        payload.SpanID,
		ParentSpanID:  parentID,
		OperationName: payload.Name,
		StartTimeNano: event.TimestampNano,
	}
	for _, attr := range payload.Attributes {
		span.SetTag(attr.Name, attr.Value)
	}
	m.insert(span)
}

func (m *SpanLifecycleManagerImpl) HandleAttributes(event tailModel.Event) {
	payload := event.Attributes
	span := m.targetSpan(event.Context)
	if payload == nil || span == nil {
		return
	}
	for _, attr := range payload.Attributes {
		span.SetTag(attr.Name, attr.Value)
	}
}

func (m *SpanLifecycleManagerImpl) HandleLog(event tailModel.Event) {
	payload := event.Log
	span := m.targetSpan(event.Context)
	if payload == nil || span == nil {
		return
	}
	span.AppendLog(event.TimestampNano, []spanModel.Tag{
		{Key: "level", Value: payload.Level},
		{Key: "message", Value: stringifyMessage(payload.Message)},
	})
}

func (m *SpanLifecycleManagerImpl) HandleSpanClose(event tailModel.Event) {
	payload := event.SpanClose
	span := m.targetSpan(event.Context)
	if payload == nil || span == nil {
		return
	}
	if !span.Closed() {
		span.EndTimeNano = event.TimestampNano
	}
	span.Status = &spanModel.SpanStatus{
		Code:    statusCodeForOutcome(payload.Outcome),
		Message: payload.Outcome,
	}
	m.removeFromStack(span.SpanID)
}

func (m *SpanLifecycleManagerImpl) HandleException(event tailModel.Event) {
	payload := event.Exception
	span := m.targetSpan(event.Context)
	if payload == nil || span == nil {
		return
	}
	span.AppendLog(event.TimestampNano, []spanModel.Tag{
		{Key: "level", Value: "error"},
		{Key: "exception.type", Value: payload.Name},
		{Key: "exception.message", Value: payload.Message},
		{Key: "exception.stacktrace", Value: payload.Stack},
	})
	span.Status = &spanModel.SpanStatus{
		Code:    spanModel.StatusCodeError,
		Message: payload.Message,
	}
}

func (m *SpanLifecycleManagerImpl) HandleReturn(event tailModel.Event) {
	payload := event.Return
	span := m.targetSpan(event.Context)
	if payload == nil || span == nil {
		return
	}
	if payload.Fetch != nil {
		span.SetTag("http.response.status_code", payload.Fetch.StatusCode)
	}
}

func (m *SpanLifecycleManagerImpl) HandleOutcome(event tailModel.Event) {
	payload := event.Outcome
	if payload == nil {
		return
	}
	span := m.rootSpan(event.Context)
	if span == nil {
		m.logger.Warn("Outcome event arrived with no root span in the table")
		return
	}
	if !span.Closed() {
		span.EndTimeNano = event.TimestampNano
	}
	span.Status = &spanModel.SpanStatus{
		Code:    statusCodeForOutcome(payload.Outcome),
		Message: payload.Outcome,
	}
	span.SetTag("cpu.time.ms", payload.CPUTimeMs)
	span.SetTag("wall.time.ms", payload.WallTimeMs)
	m.removeFromStack(span.SpanID)
}

func (m *SpanLifecycleManagerImpl) HandleDiagnosticChannel(event tailModel.Event) {
	payload := event.DiagnosticChannel
	span := m.targetSpan(event.Context)
	if payload == nil || span == nil {
		return
	}
	span.AppendLog(event.TimestampNano, []spanModel.Tag{
		{Key: "level", Value: "debug"},
		{Key: "channel", Value: payload.Channel},
		{Key: "message", Value: stringifyMessage(payload.Message)},
	})
}

func (m *SpanLifecycleManagerImpl) SpanSnapshot() []*spanModel.Span {
	snapshot := make([]*spanModel.Span, 0, len(m.order))
	for _, spanID := range m.order {
		snapshot = append(snapshot, m.spans[spanID])
	}
	return snapshot
}

func (m *SpanLifecycleManagerImpl) ClearClosed() {
	remaining := make([]string, 0, len(m.order))
	for _, spanID := range m.order {
		if m.spans[spanID].Closed() {
			delete(m.spans, spanID)
			m.removeFromStack(spanID)
		} else {
			remaining = append(remaining, spanID)
		}
	}
	m.order = remaining
}

func (m *SpanLifecycleManagerImpl) insert(span *spanModel.Span) {
	if _, exists := m.spans[span.SpanID]; exists {
		m.logger.Warn("Span id already present in the table, dropping duplicate",
			zap.String("span_id", span.SpanID),
		)
		return
	}
	m.spans[span.SpanID] = span
	m.order = append(m.order, span.SpanID)
	m.stack = append(m.stack, span.SpanID)
}

// targetSpan resolves the span a mutation event applies to. A missing target
// means the span was never opened or is already exported; the event is dropped.
func (m *SpanLifecycleManagerImpl) targetSpan(ctx tailModel.SpanContext) *spanModel.Span {
	if ctx.SpanID != "" {
		return m.spans[ctx.SpanID]
	}
	if top := m.stackTop(); top != "" {
		return m.spans[top]
	}
	return nil
}

// rootSpan resolves by context id when the host supplies one, otherwise the
// table's single parentless span.
func (m *SpanLifecycleManagerImpl) rootSpan(ctx tailModel.SpanContext) *spanModel.Span {
	if ctx.SpanID != "" {
		if span, found := m.spans[ctx.SpanID]; found {
			return span
		}
	}
	for _, spanID := range m.order {
		if m.spans[spanID].ParentSpanID == "" {
			return m.spans[spanID]
		}
	}
	return nil
}

func (m *SpanLifecycleManagerImpl) stackTop() string {
	if len(m.stack) == 0 {
		return ""
	}
	return m.stack[len(m.stack)-1]
}

func (m *SpanLifecycleManagerImpl) removeFromStack(spanID string) {
	for i := len(m.stack) - 1; i >= 0; i-- {
		if m.stack[i] == spanID {
			m.stack = append(m.stack[:i], m.stack[i+1:]...)
			return
		}
	}
}

func (m *SpanLifecycleManagerImpl) applyOnsetTags(span *spanModel.Span, payload *tailModel.OnsetPayload) {
	serviceName := payload.ScriptName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	span.SetTag("service.name", serviceName)
	span.SetTag("service.version", payload.ScriptVersion)
	span.SetTag("execution.model", payload.ExecutionModel)
	if payload.DispatchNamespace != "" {
		span.SetTag("dispatch.namespace", payload.DispatchNamespace)
	}
	if payload.Entrypoint != "" {
		span.SetTag("entrypoint", payload.Entrypoint)
	}
	if len(payload.ScriptTags) > 0 {
		span.SetTag("script.tags", strings.Join(payload.ScriptTags, ","))
	}
	m.applyTriggerTags(span, payload.Trigger)
	for _, attr := range payload.Attributes {
		span.SetTag(attr.Name, attr.Value)
	}
}

func (m *SpanLifecycleManagerImpl) applyTriggerTags(span *spanModel.Span, trigger tailModel.TriggerInfo) {
	switch {
	case trigger.Fetch != nil:
		span.SetTag("http.method", trigger.Fetch.Method)
		span.SetTag("http.url", trigger.Fetch.URL)
		if len(trigger.Fetch.Cf) > 0 {
			cfJSON, err := json.Marshal(trigger.Fetch.Cf)
			if err != nil {
				m.logger.Warn("Failed to serialize cf properties", zap.Error(err))
			} else {
				span.SetTag("cf", string(cfJSON))
			}
		}
	case trigger.Scheduled != nil:
		span.SetTag("cron.expression", trigger.Scheduled.Cron)
		span.SetTag("scheduled.time", trigger.Scheduled.ScheduledTime.UTC().Format(time.RFC3339))
	case trigger.Queue != nil:
		span.SetTag("queue.name", trigger.Queue.QueueName)
		span.SetTag("queue.batch_size", trigger.Queue.BatchSize)
	}
}

func onsetOperationName(trigger tailModel.TriggerInfo) string {
	switch trigger.Type {
	case "fetch":
		if trigger.Fetch != nil {
			return fmt.Sprintf("%s %s", trigger.Fetch.Method, trigger.Fetch.URL)
		}
		return "fetch"
	case "scheduled":
		if trigger.Scheduled != nil {
			return fmt.Sprintf("scheduled:%s", trigger.Scheduled.Cron)
		}
		return "scheduled"
	case "queue":
		if trigger.Queue != nil {
			return fmt.Sprintf("queue:%s", trigger.Queue.QueueName)
		}
		return "queue"
	case "email":
		if trigger.Email != nil {
			return fmt.Sprintf("email:%s", trigger.Email.MailFrom)
		}
		return "email"
	case "jsrpc":
		if trigger.RPC != nil {
			return fmt.Sprintf("rpc:%s", trigger.RPC.MethodName)
		}
		return "jsrpc"
	case "alarm", "custom", "trace":
		return trigger.Type
	case "hibernatableWebSocket":
		if trigger.WebSocket != nil {
			return fmt.Sprintf("websocket:%s", trigger.WebSocket.InnerType)
		}
		return "websocket"
	default:
		return "unknown"
	}
}

func statusCodeForOutcome(outcome string) spanModel.StatusCode {
	if outcome == "ok" {
		return spanModel.StatusCodeOk
	}
	return spanModel.StatusCodeError
}

// stringifyMessage flattens a host log message. String sequences are joined
// with single spaces; anything non-textual falls back to its Go representation.
func stringifyMessage(message interface{}) string {
	switch typed := message.(type) {
	case string:
		return typed
	case []string:
		return strings.Join(typed, " ")
	case []interface{}:
		parts := make([]string, 0, len(typed))
		for _, part := range typed {
			if text, ok := part.(string); ok {
				parts = append(parts, text)
			} else {
				parts = append(parts, fmt.Sprintf("%v", part))
			}
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("%v", message)
	}
}
