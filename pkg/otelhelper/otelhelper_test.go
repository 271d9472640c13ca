package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := StartSpan(context.Background(), provider.Tracer("test"), "workflow.run",
		attribute.String(WorkflowIDKey, "wf-1"),
		attribute.String(RunIDKey, "run-1"),
	)
	SetError(span, errors.New("boom"), attribute.String(StepIDKey, "s1"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)

	ended := spans[0]
	assert.Equal(t, "workflow.run", ended.Name())
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "boom", ended.Status().Description)
	assert.Contains(t, ended.Attributes(), attribute.String(WorkflowIDKey, "wf-1"))

	require.Len(t, ended.Events(), 1)
	assert.Contains(t, ended.Events()[0].Attributes, attribute.String(StepIDKey, "s1"))
	assert.Contains(t, ended.Events()[0].Attributes, attribute.String(ErrorTypeKey, "*errors.errorString"))
}
