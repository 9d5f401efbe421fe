package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelProvider implements Telemetry with OpenTelemetry, exporting traces
// and metrics via OTLP/HTTP. Grounded on the teacher's telemetry/otel.go
// OTelProvider, trimmed to the pieces this engine's Handler and Routing
// Controller actually exercise (span-per-route-decision and
// span-per-task-execution, plus duration/token histograms) — the
// teacher's cardinality guards and framework-integration shims are
// dropped since nothing here produces unbounded label sets.
type OTelProvider struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider
	metricProv    *sdkmetric.MeterProvider

	instrMu    sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram

	shutdownOnce sync.Once
}

// NewOTelProvider builds an OTLP/HTTP exporting provider for serviceName,
// sending traces and metrics to endpoint (default localhost:4318).
func NewOTelProvider(serviceName, endpoint string) (*OTelProvider, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("service name cannot be empty")
	}
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	ctx := context.Background()
	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("trace exporter for %s: %w", endpoint, err)
	}
	metricExporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("metric exporter for %s: %w", endpoint, err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter), sdktrace.WithResource(res))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(30*time.Second))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &OTelProvider{
		tracer:        tp.Tracer("acengine"),
		meter:         mp.Meter("acengine"),
		traceProvider: tp,
		metricProv:    mp,
		counters:      make(map[string]metric.Float64Counter),
		histograms:    make(map[string]metric.Float64Histogram),
	}, nil
}

// StartSpan implements Telemetry.
func (o *OTelProvider) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	if o.tracer == nil {
		return ctx, &NoOpSpan{}
	}
	ctx, span := o.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements Telemetry, routing timing-shaped names to a
// histogram and count-shaped names to a counter.
func (o *OTelProvider) RecordMetric(name string, value float64, labels map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	ctx := context.Background()

	if strings.Contains(name, "duration") || strings.Contains(name, "latency") || strings.Contains(name, "tokens") {
		h, err := o.histogramFor(name)
		if err == nil {
			h.Record(ctx, value, metric.WithAttributes(attrs...))
		}
		return
	}
	c, err := o.counterFor(name)
	if err == nil {
		c.Add(ctx, value, metric.WithAttributes(attrs...))
	}
}

func (o *OTelProvider) histogramFor(name string) (metric.Float64Histogram, error) {
	o.instrMu.Lock()
	defer o.instrMu.Unlock()
	if h, ok := o.histograms[name]; ok {
		return h, nil
	}
	h, err := o.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	o.histograms[name] = h
	return h, nil
}

func (o *OTelProvider) counterFor(name string) (metric.Float64Counter, error) {
	o.instrMu.Lock()
	defer o.instrMu.Unlock()
	if c, ok := o.counters[name]; ok {
		return c, nil
	}
	c, err := o.meter.Float64Counter(name)
	if err != nil {
		return nil, err
	}
	o.counters[name] = c
	return c, nil
}

// Shutdown flushes and stops both exporters. Idempotent.
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	var err error
	o.shutdownOnce.Do(func() {
		var errs []error
		if o.metricProv != nil {
			if e := o.metricProv.Shutdown(ctx); e != nil {
				errs = append(errs, e)
			}
		}
		if o.traceProvider != nil {
			if e := o.traceProvider.Shutdown(ctx); e != nil {
				errs = append(errs, e)
			}
		}
		if len(errs) > 0 {
			err = fmt.Errorf("otel shutdown: %v", errs)
		}
	})
	return err
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

var _ Telemetry = (*OTelProvider)(nil)
