// Package observability wires OpenTelemetry trace export into Genkit's
// TracerProvider.
//
// Spans are exported over OTLP HTTP to a local collector or agent. The
// endpoint is plain host:port (default localhost:4318); TLS is not used
// because the collector is expected to run on the same host and handle
// authentication and forwarding itself.
//
// Tracing is opt-in: an empty endpoint in the service config disables
// export entirely and Setup returns a no-op shutdown.
package observability

import (
	"context"
	"os"
	"time"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/gambitlabs/gambit/internal/log"
)

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP endpoint as host:port. Empty disables tracing.
	Endpoint string
	// ServiceName tags exported spans (default "gambit").
	ServiceName string
	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string
}

// ShutdownTimeout bounds the final span flush during teardown.
const ShutdownTimeout = 5 * time.Second

// Setup registers an OTLP span exporter with Genkit's TracerProvider
// and returns a shutdown function that flushes pending spans. With an
// empty endpoint, or if the exporter cannot be created, tracing is
// disabled and the returned shutdown is a no-op.
//
// Must run before genkit.Init so the TracerProvider is ready when the
// first flow executes. Setup runs exactly once during startup, before
// any goroutines are spawned, which is what makes the os.Setenv calls
// safe.
func Setup(ctx context.Context, cfg Config, logger log.Logger) func() {
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint configured")
		return func() {}
	}

	// Genkit's TracerProvider reads service identity from the standard
	// OTEL environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
