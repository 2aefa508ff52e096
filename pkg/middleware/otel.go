package middleware

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pantry-dev/pantry/pkg/pantry"
)

// Default tracer name for pantry applications.
const defaultTracerName = "pantry"

// OTelConfig configures the OpenTelemetry plugin.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "pantry").
	TracerName string

	// IncludeArgs includes the stringified action arguments in spans.
	// May contain sensitive information - disabled by default.
	IncludeArgs bool

	// Filter determines which stores to trace.
	// Return true to trace the store, false to skip it entirely.
	// If nil, all stores are traced.
	Filter func(s *pantry.Store) bool

	// AttributeExtractor extracts custom attributes from the call.
	// Called for each traced action invocation.
	AttributeExtractor func(call *pantry.ActionCall) []attribute.KeyValue

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry plugin.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithIncludeArgs enables including action arguments in traces.
func WithIncludeArgs(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeArgs = include
	}
}

// WithStoreFilter sets a filter function for stores.
func WithStoreFilter(filter func(s *pantry.Store) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(call *pantry.ActionCall) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:  defaultTracerName,
		IncludeArgs: false,
		Filter:      nil,
	}
}

// OpenTelemetry creates a plugin that traces every action dispatch on
// stores created after registration.
//
// The plugin:
//   - Creates a span per action invocation named pantry.<store>.<action>
//   - Records store id, action name and call sequence as attributes
//   - Records errors and sets span status on failure
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before creating stores:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	)
//	otel.SetTracerProvider(tp)
//
//	reg := pantry.NewRegistry()
//	reg.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	))
func OpenTelemetry(opts ...OTelOption) pantry.Plugin {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	return func(pc *pantry.PluginContext) (map[string]any, error) {
		// Apply filter if configured
		if config.Filter != nil && !config.Filter(pc.Store) {
			return nil, nil
		}

		pc.Store.OnAction(func(call *pantry.ActionCall) error {
			attrs := []attribute.KeyValue{
				attribute.String("pantry.store", call.StoreID),
				attribute.String("pantry.action", call.Name),
				attribute.Int64("pantry.call_seq", int64(call.Seq)),
			}

			if config.IncludeArgs {
				attrs = append(attrs, attribute.String("pantry.args", fmt.Sprintf("%v", call.Args)))
			}

			if config.AttributeExtractor != nil {
				attrs = append(attrs, config.AttributeExtractor(call)...)
			}

			_, span := config.tracer.Start(
				context.Background(),
				fmt.Sprintf("pantry.%s.%s", call.StoreID, call.Name),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(attrs...),
				trace.WithTimestamp(time.Now()),
			)

			call.After(func(any) {
				span.SetStatus(codes.Ok, "")
				span.End()
			})
			call.OnError(func(err error) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				span.End()
			})
			return nil
		})

		return nil, nil
	}
}
