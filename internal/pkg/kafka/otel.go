package kafka

import (
	"context"

	"github.com/naughtygopher/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
)

// kotelHooks binds kotel to the global APM providers. The text map propagator is the
// otel global one, so producers using b3 headers are traced as well.
func kotelHooks(ins *apm.APM) (*kotel.Tracer, kgo.Opt) { //nolint:ireturn // that's how otel sdk works
	tracer := kotel.NewTracer(
		kotel.TracerProvider(ins.GetTracerProvider()),
		kotel.TracerPropagator(otel.GetTextMapPropagator()),
	)
	kmeter := kotel.NewMeter(kotel.MeterProvider(ins.GetMeterProvider()))

	kotelsvc := kotel.NewKotel(
		kotel.WithTracer(tracer),
		kotel.WithMeter(kmeter),
	)
	return tracer, kgo.WithHooks(kotelsvc.Hooks()...)
}

func handlerLatency(ins *apm.APM) (metric.Int64Histogram, error) { //nolint:ireturn // that's how otel sdk works
	hist, err := ins.AppMeter().Int64Histogram(
		"kafka.handler.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("time taken by a subscriber handler to process one record"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "meter.Int64Histogram")
	}
	return hist, nil
}

func withOTEL(ctx context.Context, cfg *Config, opts ...kgo.Opt) (*Kafka, error) {
	ins := apm.Global()
	latencyInstrument, err := handlerLatency(ins)
	if err != nil {
		return nil, err
	}

	tracer, hooks := kotelHooks(ins)
	kcli, err := newCli(ctx, cfg, append(opts, hooks)...)
	if err != nil {
		return nil, err
	}

	commitTimeout := cfg.CommitTimeout
	if commitTimeout <= 0 {
		commitTimeout = defaultCommitTimeout
	}

	return &Kafka{
		cfg:               cfg,
		client:            kcli,
		tracer:            tracer,
		commitTimeout:     commitTimeout,
		latencyInstrument: latencyInstrument,
	}, nil
}
