package analytics

import (
	"context"
	"time"

	"github.com/replypipe/replypipe/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer initializes OpenTelemetry tracing with a stdout exporter and
// returns a shutdown function to flush pending spans.
func InitTracer(serviceName string, logger logging.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", "service", serviceName)

	return tp.Shutdown, nil
}

// Tracer emits one span per router delivery and stage execution. It is a
// thin convenience wrapper so the router does not depend on otel directly.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer backed by the global tracer provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer("github.com/replypipe/replypipe")}
}

// StartDelivery opens a span covering one topic delivery. The returned end
// function records duration and must be called exactly once.
func (t *Tracer) StartDelivery(ctx context.Context, topic, conversationID, taskID string) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, "router.deliver",
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("conversation_id", conversationID),
			attribute.String("task_id", taskID),
		))
	start := time.Now()
	return ctx, func(err error) {
		span.SetAttributes(attribute.Int64("duration_ms", time.Since(start).Milliseconds()))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// StartStage opens a span covering one stage execution within a turn.
func (t *Tracer) StartStage(ctx context.Context, stage, taskID string) (context.Context, func(err error)) {
	ctx, span := t.tracer.Start(ctx, "pipeline."+stage,
		trace.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("task_id", taskID),
		))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}
