package model

// InvocationSummary is published on the process event bus once an invocation's
// terminal outcome event has been handled and the span table flushed.
type InvocationSummary struct {
	InvocationID string `json:"invocationId"`
	TraceID      string `json:"traceId"`
	Outcome      string `json:"outcome"`
	EventCount   int    `json:"eventCount"`
}
