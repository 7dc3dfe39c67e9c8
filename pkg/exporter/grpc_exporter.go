package exporter

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/tailspan/tailspan/pkg/otel"
	otelModel "github.com/tailspan/tailspan/pkg/otel/model"
	spanModel "github.com/tailspan/tailspan/pkg/span/model"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonPb "go.opentelemetry.io/proto/otlp/common/v1"
	resourcePb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracePb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCExporterImpl sends the span batch over the OTLP gRPC trace service
// instead of the HTTP endpoint. The JSON wire shapes map one to one onto the
// generated protobuf types; ids decode from hex back to bytes.
type GRPCExporterImpl struct {
	client protoTrace.TraceServiceClient
	target string
	logger *zap.Logger
}

func NewGRPCExporterImpl(target string, logger *zap.Logger) (*GRPCExporterImpl, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to collector at %s: %w", target, err)
	}
	return &GRPCExporterImpl{
		client: protoTrace.NewTraceServiceClient(conn),
		target: target,
		logger: logger,
	}, nil
}

func (e *GRPCExporterImpl) Export(ctx context.Context, spans []*spanModel.Span) error {
	exportAttempts.Inc()
	payload := otel.FormatSpans(spans)
	request := &protoTrace.ExportTraceServiceRequest{
		ResourceSpans: toProtoResourceSpans(payload.ResourceSpans),
	}
	_, err := e.client.Export(ctx, request)
	if err != nil {
		exportFailures.Inc()
		e.logger.Error("Failed to export spans over gRPC",
			zap.String("target", e.target),
			zap.Error(err),
		)
		return fmt.Errorf("failed to export spans to %s: %w", e.target, err)
	}
	exportedSpans.Add(float64(len(spans)))
	return nil
}

func toProtoResourceSpans(groups []otelModel.ResourceSpans) []*tracePb.ResourceSpans {
	protoGroups := make([]*tracePb.ResourceSpans, 0, len(groups))
	for _, group := range groups {
		protoScopes := make([]*tracePb.ScopeSpans, 0, len(group.ScopeSpans))
		for _, scope := range group.ScopeSpans {
			protoSpans := make([]*tracePb.Span, 0, len(scope.Spans))
			for _, span := range scope.Spans {
				protoSpans = append(protoSpans, toProtoSpan(span))
			}
			protoScopes = append(protoScopes, &tracePb.ScopeSpans{
				Scope: &commonPb.InstrumentationScope{
					Name:    scope.Scope.Name,
					Version: scope.Scope.Version,
				},
				Spans: protoSpans,
			})
		}
		protoGroups = append(protoGroups, &tracePb.ResourceSpans{
			Resource: &resourcePb.Resource{
				Attributes: toProtoKeyValues(group.Resource.Attributes),
			},
			ScopeSpans: protoScopes,
		})
	}
	return protoGroups
}

func toProtoSpan(span otelModel.Span) *tracePb.Span {
	protoSpan := &tracePb.Span{
		TraceId:           decodeHexID(span.TraceID),
		SpanId:            decodeHexID(span.SpanID),
		Name:              span.Name,
		Kind:              tracePb.Span_SpanKind(span.Kind),
		StartTimeUnixNano: parseUnixNano(span.StartTimeUnixNano),
		EndTimeUnixNano:   parseUnixNano(span.EndTimeUnixNano),
		Attributes:        toProtoKeyValues(span.Attributes),
	}
	if span.ParentSpanID != "" {
		protoSpan.ParentSpanId = decodeHexID(span.ParentSpanID)
	}
	for _, event := range span.Events {
		protoSpan.Events = append(protoSpan.Events, &tracePb.Span_Event{
			TimeUnixNano: parseUnixNano(event.TimeUnixNano),
			Name:         event.Name,
			Attributes:   toProtoKeyValues(event.Attributes),
		})
	}
	if span.Status != nil {
		protoSpan.Status = &tracePb.Status{
			Code:    tracePb.Status_StatusCode(span.Status.Code),
			Message: span.Status.Message,
		}
	}
	return protoSpan
}

func toProtoKeyValues(attributes []otelModel.KeyValue) []*commonPb.KeyValue {
	if len(attributes) == 0 {
		return nil
	}
	protoAttributes := make([]*commonPb.KeyValue, 0, len(attributes))
	for _, attribute := range attributes {
		protoAttributes = append(protoAttributes, &commonPb.KeyValue{
			Key:   attribute.Key,
			Value: toProtoAnyValue(attribute.Value),
		})
	}
	return protoAttributes
}

func toProtoAnyValue(value otelModel.AnyValue) *commonPb.AnyValue {
	switch {
	case value.StringValue != nil:
		return &commonPb.AnyValue{Value: &commonPb.AnyValue_StringValue{StringValue: *value.StringValue}}
	case value.IntValue != nil:
		parsed, err := strconv.ParseInt(*value.IntValue, 10, 64)
		if err != nil {
			return &commonPb.AnyValue{Value: &commonPb.AnyValue_StringValue{StringValue: *value.IntValue}}
		}
		return &commonPb.AnyValue{Value: &commonPb.AnyValue_IntValue{IntValue: parsed}}
	case value.DoubleValue != nil:
		return &commonPb.AnyValue{Value: &commonPb.AnyValue_DoubleValue{DoubleValue: *value.DoubleValue}}
	case value.BoolValue != nil:
		return &commonPb.AnyValue{Value: &commonPb.AnyValue_BoolValue{BoolValue: *value.BoolValue}}
	case value.ArrayValue != nil:
		values := make([]*commonPb.AnyValue, 0, len(value.ArrayValue.Values))
		for _, element := range value.ArrayValue.Values {
			values = append(values, toProtoAnyValue(element))
		}
		return &commonPb.AnyValue{Value: &commonPb.AnyValue_ArrayValue{ArrayValue: &commonPb.ArrayValue{Values: values}}}
	default:
		return &commonPb.AnyValue{}
	}
}

func decodeHexID(id string) []byte {
	decoded, err := hex.DecodeString(id)
	if err != nil {
		return nil
	}
	return decoded
}

func parseUnixNano(rendered string) uint64 {
	if rendered == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(rendered, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
