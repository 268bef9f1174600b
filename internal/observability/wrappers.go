package observability

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/cloudbase-mcp/internal/auth"
	"github.com/jkaninda/cloudbase-mcp/internal/cloudapi"
	"github.com/jkaninda/cloudbase-mcp/internal/config"
	"github.com/jkaninda/cloudbase-mcp/internal/envid"
	"github.com/jkaninda/cloudbase-mcp/internal/manager"
)

func tracerOf(ts *TracerSetup) trace.Tracer {
	if ts == nil {
		return nil
	}
	return ts.Tracer()
}

func recordSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// --- InstrumentedCredentialSource ---

// InstrumentedCredentialSource wraps a manager.CredentialSource with metrics and tracing.
type InstrumentedCredentialSource struct {
	inner   manager.CredentialSource
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedCredentialSource wraps a credential source with observability.
func NewInstrumentedCredentialSource(inner manager.CredentialSource, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedCredentialSource {
	return &InstrumentedCredentialSource{inner: inner, metrics: metrics, tracer: tracerOf(ts)}
}

func (s *InstrumentedCredentialSource) Resolve(ctx context.Context, opts auth.ResolveOptions) (*auth.Credential, error) {
	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "auth.resolve",
			trace.WithAttributes(
				attribute.String("auth.region", opts.Region),
				attribute.Bool("auth.ignore_env_vars", opts.IgnoreEnvVars),
			))
		defer span.End()
	}

	cred, err := s.inner.Resolve(ctx, opts)

	source := "error"
	if err != nil {
		if s.tracer != nil {
			recordSpanError(ctx, err)
		}
	} else {
		source = string(cred.Source)
		if s.tracer != nil {
			trace.SpanFromContext(ctx).SetAttributes(attribute.String("auth.source", source))
		}
	}
	if s.metrics != nil {
		s.metrics.CredentialResolutionsTotal.WithLabelValues(source).Inc()
	}
	return cred, err
}

// --- InstrumentedEnvIDSource ---

// InstrumentedEnvIDSource wraps a manager.EnvIDSource with metrics, tracing
// and anomaly detection.
type InstrumentedEnvIDSource struct {
	inner   manager.EnvIDSource
	metrics *MetricsCollector
	tracer  trace.Tracer
	anomaly *AnomalyDetector
}

// NewInstrumentedEnvIDSource wraps an environment id source with observability.
func NewInstrumentedEnvIDSource(inner manager.EnvIDSource, metrics *MetricsCollector, ts *TracerSetup, anomaly *AnomalyDetector) *InstrumentedEnvIDSource {
	return &InstrumentedEnvIDSource{inner: inner, metrics: metrics, tracer: tracerOf(ts), anomaly: anomaly}
}

func (s *InstrumentedEnvIDSource) Peek() (string, bool) { return s.inner.Peek() }

func (s *InstrumentedEnvIDSource) Resolve(ctx context.Context, ide config.IDE) (string, error) {
	if _, ok := s.inner.Peek(); ok {
		if s.metrics != nil {
			s.metrics.EnvIDResolutionsTotal.WithLabelValues("cached").Inc()
		}
		return s.inner.Resolve(ctx, ide)
	}

	if s.tracer != nil {
		var span trace.Span
		ctx, span = s.tracer.Start(ctx, "envid.resolve",
			trace.WithAttributes(attribute.String("envid.ide", string(ide))))
		defer span.End()
	}

	start := time.Now()
	id, err := s.inner.Resolve(ctx, ide)
	duration := time.Since(start).Seconds()

	outcome := "resolved"
	if err != nil {
		outcome = EnvIDOutcome(err)
		if s.tracer != nil {
			recordSpanError(ctx, err)
		}
	}
	if s.metrics != nil {
		s.metrics.EnvIDResolutionsTotal.WithLabelValues(outcome).Inc()
		s.metrics.EnvIDResolutionDuration.Observe(duration)
	}
	s.anomaly.Record("envid.resolve", err)
	return id, err
}

// EnvIDOutcome maps a resolution error to a metric label.
func EnvIDOutcome(err error) string {
	var resErr *envid.ResolutionError
	switch {
	case err == nil:
		return "resolved"
	case errors.As(err, &resErr):
		return string(resErr.Reason())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	default:
		return "error"
	}
}

// --- InstrumentedClientBuilder ---

// InstrumentedClientBuilder wraps a manager.ClientBuilder with metrics and tracing.
type InstrumentedClientBuilder struct {
	inner   manager.ClientBuilder
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// NewInstrumentedClientBuilder wraps a client builder with observability.
func NewInstrumentedClientBuilder(inner manager.ClientBuilder, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedClientBuilder {
	return &InstrumentedClientBuilder{inner: inner, metrics: metrics, tracer: tracerOf(ts)}
}

func (b *InstrumentedClientBuilder) Build(ctx context.Context, opts ...manager.BuildOption) (*cloudapi.Client, error) {
	mode := manager.Settings(opts...).Mode()
	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.Start(ctx, "client.build",
			trace.WithAttributes(attribute.String("client.mode", mode)))
		defer span.End()
	}

	client, err := b.inner.Build(ctx, opts...)

	status := "success"
	if err != nil {
		status = "error"
		if b.tracer != nil {
			recordSpanError(ctx, err)
		}
	}
	if b.metrics != nil {
		b.metrics.ClientBuildsTotal.WithLabelValues(mode, status).Inc()
	}
	return client, err
}

// --- Tool handlers ---

// InstrumentToolHandler records metrics, a span and anomaly samples for every
// call of the named tool. A result flagged IsError counts as an error.
func InstrumentToolHandler(name string, h server.ToolHandlerFunc, metrics *MetricsCollector, ts *TracerSetup, anomaly *AnomalyDetector) server.ToolHandlerFunc {
	if metrics == nil && ts == nil && anomaly == nil {
		return h
	}
	tracer := tracerOf(ts)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if tracer != nil {
			var span trace.Span
			ctx, span = tracer.Start(ctx, "tool.call",
				trace.WithAttributes(attribute.String("tool.name", name)))
			defer span.End()
		}
		if metrics != nil {
			metrics.ActiveRequests.Inc()
			defer metrics.ActiveRequests.Dec()
		}

		start := time.Now()
		result, err := h(ctx, req)
		duration := time.Since(start).Seconds()

		callErr := err
		if callErr == nil && result != nil && result.IsError {
			callErr = errToolResult
		}
		status := "success"
		if callErr != nil {
			status = "error"
			if tracer != nil {
				recordSpanError(ctx, callErr)
			}
		}
		if metrics != nil {
			metrics.ToolCallsTotal.WithLabelValues(name, status).Inc()
			metrics.ToolCallDuration.WithLabelValues(name).Observe(duration)
		}
		anomaly.Record(name, callErr)
		return result, err
	}
}

var errToolResult = errors.New("tool returned an error result")
