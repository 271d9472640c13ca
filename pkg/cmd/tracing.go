package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/engageflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer returns an OTLP tracer for serviceName when enabled. A nil tracer
// makes the executor use the global, no-op by default, provider.
//
//nolint:ireturn // trace.Tracer is the otel contract
func NewTracer(ctx context.Context, logger *slog.Logger, enabled bool, serviceName string) trace.Tracer {
	if !enabled {
		return nil
	}

	tracer, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		logger.WarnContext(ctx, "Tracing disabled", "error", err)

		return nil
	}

	return tracer
}
