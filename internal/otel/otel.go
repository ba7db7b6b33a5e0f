// Package otel exports traces of requests, operations and schema builds. It
// learns about them from the event bus.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	reqid "github.com/hanpama/classgraph/internal/reqid"
)

// Setup exports spans over OTLP/gRPC to endpoint. An empty endpoint turns
// tracing off and returns a no-op shutdown.
func Setup(endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service))),
	)
	otel.SetTracerProvider(tp)
	unsubscribe := register(otel.Tracer("classgraph"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// register subscribes span bookkeeping to the process bus. Open spans are
// keyed by request id.
func register(t trace.Tracer) (unsubscribe func()) {
	var requests, operations, builds sync.Map

	offs := []func(){
		track(t, &requests, nil, "http.request",
			func(e events.HTTPStart) []attribute.KeyValue {
				return []attribute.KeyValue{
					semconv.HTTPMethodKey.String(e.Request.Method),
					attribute.String("http.target", e.Request.URL.Path),
				}
			},
			func(span trace.Span, e events.HTTPFinish) {
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
			}),
		track(t, &operations, &requests, "graphql.operation",
			func(e events.GraphQLStart) []attribute.KeyValue {
				return []attribute.KeyValue{
					attribute.String("graphql.operation.name", e.OperationName),
					attribute.String("graphql.operation.type", e.OperationType),
				}
			},
			func(span trace.Span, e events.GraphQLFinish) {
				span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
			}),
		track(t, &builds, nil, "classgraph.schema_build",
			func(e events.SchemaBuildStart) []attribute.KeyValue {
				return []attribute.KeyValue{
					attribute.Int("classgraph.classes", e.Classes),
					attribute.StringSlice("classgraph.roots", e.Roots),
				}
			},
			func(span trace.Span, e events.SchemaBuildFinish) {
				span.SetAttributes(
					attribute.Int("classgraph.types", e.Types),
					attribute.Int("classgraph.interfaces", e.Interfaces),
					attribute.Int("classgraph.fallbacks", e.Fallbacks),
				)
				if e.Err != nil {
					span.RecordError(e.Err)
					span.SetStatus(codes.Error, e.Err.Error())
				}
			}),
		// only degraded resolutions are worth an event
		eventbus.Subscribe(func(ctx context.Context, e events.TypeResolved) {
			if !e.Fallback && e.Err == nil {
				return
			}
			v, ok := operations.Load(requestKey(ctx))
			if !ok {
				return
			}
			attrs := []attribute.KeyValue{
				attribute.String("class", e.Class),
				attribute.String("expected", e.Expected),
				attribute.String("resolved", e.Resolved),
			}
			if e.Err != nil {
				attrs = append(attrs, attribute.String("error", e.Err.Error()))
			}
			v.(trace.Span).AddEvent("classgraph.type_resolution", trace.WithAttributes(attrs...))
		}),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// track opens a span named name on each Start event and ends it on the
// matching Finish event of the same request. When parents holds a span for
// the request, the new span becomes its child.
func track[Start, Finish any](
	t trace.Tracer,
	open, parents *sync.Map,
	name string,
	attrs func(Start) []attribute.KeyValue,
	end func(trace.Span, Finish),
) func() {
	offStart := eventbus.Subscribe(func(ctx context.Context, e Start) {
		key := requestKey(ctx)
		if parents != nil {
			if v, ok := parents.Load(key); ok {
				ctx = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
		}
		_, span := t.Start(ctx, name, trace.WithAttributes(attrs(e)...))
		span.SetAttributes(attribute.String("request.id", key))
		open.Store(key, span)
	})
	offFinish := eventbus.Subscribe(func(ctx context.Context, e Finish) {
		v, ok := open.LoadAndDelete(requestKey(ctx))
		if !ok {
			return
		}
		span := v.(trace.Span)
		end(span, e)
		span.End()
	})
	return func() {
		offStart()
		offFinish()
	}
}

func requestKey(ctx context.Context) string {
	rid, _ := reqid.FromContext(ctx)
	return rid
}
