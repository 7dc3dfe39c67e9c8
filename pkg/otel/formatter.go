package otel

import (
	"strconv"
	"strings"

	otelModel "github.com/tailspan/tailspan/pkg/otel/model"
	spanModel "github.com/tailspan/tailspan/pkg/span/model"
)

const (
	scopeName    = "tailspan"
	scopeVersion = "0.1.0"

	traceIDHexLength = 32
	spanIDHexLength  = 16
)

// FormatSpans assembles the OTLP export envelope: one resource-span group with
// a single scope holding every converted span. The resource's service.name is
// taken from the first span that carries one.
func FormatSpans(spans []*spanModel.Span) otelModel.ExportTraceRequest {
	converted := make([]otelModel.Span, 0, len(spans))
	for _, span := range spans {
		converted = append(converted, formatSpan(span))
	}
	return otelModel.ExportTraceRequest{
		ResourceSpans: []otelModel.ResourceSpans{
			{
				Resource: otelModel.Resource{
					Attributes: []otelModel.KeyValue{
						{Key: "service.name", Value: EncodeValue(resourceServiceName(spans))},
					},
				},
				ScopeSpans: []otelModel.ScopeSpans{
					{
						Scope: otelModel.InstrumentationScope{Name: scopeName, Version: scopeVersion},
						Spans: converted,
					},
				},
			},
		},
	}
}

func formatSpan(span *spanModel.Span) otelModel.Span {
	formatted := otelModel.Span{
		TraceID:           PadTraceID(span.TraceID),
		SpanID:            PadSpanID(span.SpanID),
		Name:              span.OperationName,
		Kind:              otelModel.SpanKindServer,
		StartTimeUnixNano: strconv.FormatInt(span.StartTimeNano, 10),
		Attributes:        formatTags(span.Tags),
	}
	if span.ParentSpanID != "" {
		formatted.ParentSpanID = PadSpanID(span.ParentSpanID)
	}
	if span.EndTimeNano != 0 {
		formatted.EndTimeUnixNano = strconv.FormatInt(span.EndTimeNano, 10)
	}
	for _, log := range span.Logs {
		formatted.Events = append(formatted.Events, otelModel.SpanEvent{
			TimeUnixNano: strconv.FormatInt(log.TimestampNano, 10),
			Name:         "log",
			Attributes:   formatTags(log.Fields),
		})
	}
	if span.Status != nil {
		formatted.Status = &otelModel.Status{
			Code:    int(span.Status.Code),
			Message: span.Status.Message,
		}
	}
	return formatted
}

func formatTags(tags []spanModel.Tag) []otelModel.KeyValue {
	if len(tags) == 0 {
		return nil
	}
	formatted := make([]otelModel.KeyValue, 0, len(tags))
	for _, tag := range tags {
		formatted = append(formatted, otelModel.KeyValue{Key: tag.Key, Value: EncodeValue(tag.Value)})
	}
	return formatted
}

func resourceServiceName(spans []*spanModel.Span) string {
	for _, span := range spans {
		if value, found := span.GetTag("service.name"); found {
			if name, ok := value.(string); ok && name != "" {
				return name
			}
		}
	}
	return "unknown_service"
}

// PadTraceID lower-cases a trace id and left-pads it with zeros to 32 hex
// characters. Already-correct ids pass through unchanged.
func PadTraceID(id string) string {
	return padHexID(id, traceIDHexLength)
}

// PadSpanID lower-cases a span id and left-pads it with zeros to 16 hex
// characters. Already-correct ids pass through unchanged.
func PadSpanID(id string) string {
	return padHexID(id, spanIDHexLength)
}

func padHexID(id string, width int) string {
	lowered := strings.ToLower(id)
	if len(lowered) >= width {
		return lowered
	}
	return strings.Repeat("0", width-len(lowered)) + lowered
}
