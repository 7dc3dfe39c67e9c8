package model

import "time"

type EventKind string

const (
	KindOnset             EventKind = "onset"
	KindSpanOpen          EventKind = "spanOpen"
	KindAttributes        EventKind = "attributes"
	KindLog               EventKind = "log"
	KindSpanClose         EventKind = "spanClose"
	KindException         EventKind = "exception"
	KindReturn            EventKind = "return"
	KindOutcome           EventKind = "outcome"
	KindDiagnosticChannel EventKind = "diagnosticChannel"
)

// SpanContext identifies the trace an event belongs to, plus the span the host
// considers current when the event was emitted. SpanID may be empty.
type SpanContext struct {
	TraceID string `json:"traceId"`
	SpanID  string `json:"spanId,omitempty"`
}

// Event is one element of the ordered lifecycle stream delivered by the host
// during a single invocation. Exactly one payload pointer is set, matching Kind.
// Events with a Kind the converter does not know are ignored.
type Event struct {
	TimestampNano     int64                     `json:"timestampNano"`
	Context           SpanContext               `json:"context"`
	Kind              EventKind                 `json:"kind"`
	Onset             *OnsetPayload             `json:"onset,omitempty"`
	SpanOpen          *SpanOpenPayload          `json:"spanOpen,omitempty"`
	Attributes        *AttributesPayload        `json:"attributes,omitempty"`
	Log               *LogPayload               `json:"log,omitempty"`
	SpanClose         *SpanClosePayload         `json:"spanClose,omitempty"`
	Exception         *ExceptionPayload         `json:"exception,omitempty"`
	Return            *ReturnPayload            `json:"return,omitempty"`
	Outcome           *OutcomePayload           `json:"outcome,omitempty"`
	DiagnosticChannel *DiagnosticChannelPayload `json:"diagnosticChannel,omitempty"`
}

// Attribute is a single key/value pair attached to an event. Value is whatever
// scalar or sequence the host serialized; typing happens at export time.
type Attribute struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

type OnsetPayload struct {
	SpanID            string      `json:"spanId"`
	ScriptName        string      `json:"scriptName,omitempty"`
	ScriptVersion     string      `json:"scriptVersion,omitempty"`
	ExecutionModel    string      `json:"executionModel,omitempty"`
	DispatchNamespace string      `json:"dispatchNamespace,omitempty"`
	Entrypoint        string      `json:"entrypoint,omitempty"`
	ScriptTags        []string    `json:"scriptTags,omitempty"`
	Attributes        []Attribute `json:"attributes,omitempty"`
	Trigger           TriggerInfo `json:"trigger"`
}

// TriggerInfo describes what started the invocation. Type selects which of the
// optional detail structs is populated; none of them is required.
type TriggerInfo struct {
	Type      string            `json:"type"`
	Fetch     *FetchTrigger     `json:"fetch,omitempty"`
	Scheduled *ScheduledTrigger `json:"scheduled,omitempty"`
	Queue     *QueueTrigger     `json:"queue,omitempty"`
	Email     *EmailTrigger     `json:"email,omitempty"`
	RPC       *RPCTrigger       `json:"rpc,omitempty"`
	WebSocket *WebSocketTrigger `json:"webSocket,omitempty"`
}

type FetchTrigger struct {
	Method string                 `json:"method"`
	URL    string                 `json:"url"`
	Cf     map[string]interface{} `json:"cf,omitempty"`
}

type ScheduledTrigger struct {
	Cron          string    `json:"cron"`
	ScheduledTime time.Time `json:"scheduledTime"`
}

type QueueTrigger struct {
	QueueName string `json:"queueName"`
	BatchSize int    `json:"batchSize"`
}

type EmailTrigger struct {
	MailFrom string `json:"mailFrom"`
}

type RPCTrigger struct {
	MethodName string `json:"methodName"`
}

type WebSocketTrigger struct {
	InnerType string `json:"innerType"`
}

type SpanOpenPayload struct {
	SpanID     string      `json:"spanId"`
	Name       string      `json:"name"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

type AttributesPayload struct {
	Attributes []Attribute `json:"attributes"`
}

// LogPayload's Message is either a single string or a sequence of strings; a
// sequence is joined with single spaces before being stored on the span.
type LogPayload struct {
	Level   string      `json:"level"`
	Message interface{} `json:"message"`
}

type SpanClosePayload struct {
	Outcome string `json:"outcome"`
}

type ExceptionPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ReturnPayload carries the result handed back by the application. Only
// fetch-style returns influence the span (response status code).
type ReturnPayload struct {
	Fetch *FetchReturn `json:"fetch,omitempty"`
}

type FetchReturn struct {
	StatusCode int `json:"statusCode"`
}

type OutcomePayload struct {
	Outcome    string  `json:"outcome"`
	CPUTimeMs  float64 `json:"cpuTimeMs"`
	WallTimeMs float64 `json:"wallTimeMs"`
}

type DiagnosticChannelPayload struct {
	Channel string      `json:"channel"`
	Message interface{} `json:"message"`
}
