// Package apm sets up OpenTelemetry tracing & metrics for the application. Until New
// is called and the result passed to SetGlobal, Global returns a noop instance.
package apm

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/naughtygopher/errors"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

type Options struct {
	Debug          bool
	Environment    string
	ServiceName    string
	ServiceVersion string
	// TracesSampleRate is the ratio of root spans sampled, 0 disables sampling of new traces
	TracesSampleRate float64
	// CollectorURL with http(s):// scheme uses OTLP/HTTP, anything else is dialed as an OTLP/gRPC endpoint
	CollectorURL         string
	PrometheusScrapePort uint16
	UseStdOut            bool
}

type APM struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	appTracer      trace.Tracer
	appMeter       metric.Meter
	shutdowns      []func(ctx context.Context) error
}

var (
	globalLocker = &sync.RWMutex{}
	globalAPM    = newNoop()
)

func newNoop() *APM {
	tp := tracenoop.NewTracerProvider()
	mp := metricnoop.NewMeterProvider()
	return &APM{
		tracerProvider: tp,
		meterProvider:  mp,
		appTracer:      tp.Tracer(""),
		appMeter:       mp.Meter(""),
	}
}

// Global returns the APM instance used by all the instrumentation helpers of this package.
func Global() *APM {
	globalLocker.RLock()
	defer globalLocker.RUnlock()
	return globalAPM
}

// SetGlobal replaces the global APM, and registers its providers with the otel SDK globals.
func SetGlobal(apm *APM) {
	globalLocker.Lock()
	defer globalLocker.Unlock()
	globalAPM = apm
	otel.SetTracerProvider(apm.tracerProvider)
	otel.SetMeterProvider(apm.meterProvider)
}

func (apm *APM) GetTracerProvider() trace.TracerProvider { //nolint:ireturn // that's how otel sdk works
	return apm.tracerProvider
}

func (apm *APM) GetMeterProvider() metric.MeterProvider { //nolint:ireturn // that's how otel sdk works
	return apm.meterProvider
}

func (apm *APM) AppTracer() trace.Tracer { //nolint:ireturn // that's how otel sdk works
	return apm.appTracer
}

func (apm *APM) AppMeter() metric.Meter { //nolint:ireturn // that's how otel sdk works
	return apm.appMeter
}

// Shutdown flushes and stops all exporters concurrently.
func (apm *APM) Shutdown(ctx context.Context) error {
	grp := &errgroup.Group{}
	for _, shutdown := range apm.shutdowns {
		grp.Go(func() error {
			return shutdown(ctx)
		})
	}

	err := grp.Wait()
	if err != nil {
		return errors.Wrap(err, "failed to shutdown apm")
	}
	return nil
}

func traceExporter(ctx context.Context, opts *Options) (sdktrace.SpanExporter, error) { //nolint:ireturn // that's how otel sdk works
	switch {
	case opts.UseStdOut:
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, errors.Wrap(err, "stdouttrace.New")
		}
		return exporter, nil

	case strings.HasPrefix(opts.CollectorURL, "http://"), strings.HasPrefix(opts.CollectorURL, "https://"):
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.CollectorURL))
		if err != nil {
			return nil, errors.Wrap(err, "otlptracehttp.New")
		}
		return exporter, nil

	case opts.CollectorURL != "":
		exporter, err := otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpoint(opts.CollectorURL),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Wrap(err, "otlptracegrpc.New")
		}
		return exporter, nil
	}

	return nil, nil //nolint:nilnil // no exporter configured
}

func meterReaders(opts *Options) ([]sdkmetric.Reader, *http.Server, error) {
	readers := make([]sdkmetric.Reader, 0, 2)
	var scraper *http.Server

	if opts.PrometheusScrapePort != 0 {
		exporter, err := prometheusExporter()
		if err != nil {
			return nil, nil, err
		}
		readers = append(readers, exporter)
		scraper = prometheusScraper(opts)
	}

	if opts.UseStdOut {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, errors.Wrap(err, "stdoutmetric.New")
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter))
	}

	return readers, scraper, nil
}

func New(ctx context.Context, opts *Options) (*APM, error) {
	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
			semconv.DeploymentEnvironment(opts.Environment),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create otel resource")
	}

	exporter, err := traceExporter(ctx, opts)
	if err != nil {
		return nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(
			sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.TracesSampleRate)),
		),
	}
	if exporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter))
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)

	readers, scraper, err := meterReaders(opts)
	if err != nil {
		return nil, err
	}
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		mpOpts = append(mpOpts, sdkmetric.WithReader(reader))
	}
	meterProvider := sdkmetric.NewMeterProvider(mpOpts...)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		b3.New(),
	))

	if opts.Debug {
		otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
			logger.Error("[otel] error", zap.Error(err))
		}))
	}

	ins := &APM{
		tracerProvider: tracerProvider,
		meterProvider:  meterProvider,
		appTracer:      tracerProvider.Tracer(opts.ServiceName),
		appMeter:       meterProvider.Meter(opts.ServiceName),
		shutdowns: []func(ctx context.Context) error{
			tracerProvider.Shutdown,
			meterProvider.Shutdown,
		},
	}
	if scraper != nil {
		ins.shutdowns = append(ins.shutdowns, scraper.Shutdown)
	}

	return ins, nil
}
