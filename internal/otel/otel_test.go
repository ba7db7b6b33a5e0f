package otel

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	reqid "github.com/hanpama/classgraph/internal/reqid"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup("", "classgraph")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSubscriberRecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	defer register(tp.Tracer("test"))()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.SchemaBuildStart{Classes: 3, Roots: []string{"allItems"}})
	eventbus.Publish(ctx, events.SchemaBuildFinish{Err: errors.New("dangling reference")})

	ctx, _ = reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, events.TypeResolved{Class: "MavenProject", Expected: "Job", Resolved: "AbstractProject__", Fallback: true})
	eventbus.Publish(ctx, events.TypeResolved{Class: "Project", Expected: "Job", Resolved: "Project"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Q"})

	spans := rec.Ended()
	require.Len(t, spans, 2)

	build := spans[0]
	require.Equal(t, "classgraph.schema_build", build.Name())
	require.Equal(t, codes.Error, build.Status().Code)

	op := spans[1]
	require.Equal(t, "graphql.operation", op.Name())
	require.Len(t, op.Events(), 1)
	require.Equal(t, "classgraph.type_resolution", op.Events()[0].Name)
}

func TestOperationSpanIsChildOfRequestSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	off := register(tp.Tracer("test"))

	ctx, rid := reqid.NewContext(context.Background())
	req := httptest.NewRequest("POST", "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: req})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Q", Errors: []error{errors.New("boom")}})
	eventbus.Publish(ctx, events.HTTPFinish{Request: req, Status: 200})
	off()
	eventbus.Publish(ctx, events.HTTPStart{Request: req})

	spans := rec.Ended()
	require.Len(t, spans, 2)
	op, http := spans[0], spans[1]
	require.Equal(t, "graphql.operation", op.Name())
	require.Equal(t, "http.request", http.Name())
	require.Equal(t, http.SpanContext().SpanID(), op.Parent().SpanID())
	require.Contains(t, op.Attributes(), attribute.String("request.id", rid))
	require.Contains(t, op.Attributes(), attribute.Int("graphql.error_count", 1))
	require.Len(t, rec.Started(), 2)
}
