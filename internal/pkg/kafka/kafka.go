// Package kafka wraps a franz-go consumer group client with tracing, handler latency
// metrics and commit-after-success semantics.
package kafka

import (
	"context"
	"time"

	"github.com/naughtygopher/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"

	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

const defaultCommitTimeout = time.Second * 5

type Config struct {
	LogLevel int8

	Seeds         []string
	Topics        []string
	ConsumerGroup string

	IdleTimeout            time.Duration
	RequestTimeoutOverhead time.Duration
	RetryTimeout           time.Duration
	SessionTimeout         time.Duration
	CommitTimeout          time.Duration

	AuthMechanism string
	SASLUsername  string
	SASLPassword  string
	CACertificate string

	FetchMaxBytes int32

	EnableTLSDialer bool
}

// Handler processes a single record value. Records are committed only when it returns nil.
type Handler func(ctx context.Context, payload []byte) error

type Kafka struct {
	cfg               *Config
	client            *kgo.Client
	tracer            *kotel.Tracer
	commitTimeout     time.Duration
	latencyInstrument metric.Int64Histogram
}

func (kfk *Kafka) Ping(ctx context.Context) error {
	err := kfk.client.Ping(ctx)
	if err != nil {
		return errors.Wrap(err, "kafka ping failed")
	}
	return nil
}

func (kfk *Kafka) Shutdown(ctx context.Context) error {
	kfk.client.PauseFetchTopics(kfk.cfg.Topics...)

	// offsets of handled records are committed explicitly, nothing is left to flush
	// other than a possibly in-flight commit
	cctx, cancel := context.WithTimeout(ctx, kfk.commitTimeout)
	defer cancel()
	err := kfk.client.CommitUncommittedOffsets(cctx)
	kfk.client.Close()
	if err != nil {
		return errors.Wrap(err, "failed committing offsets on shutdown")
	}

	return nil
}

func (kfk *Kafka) PollFetches(ctx context.Context) kgo.Fetches {
	return kfk.client.PollFetches(ctx)
}

func (kfk *Kafka) CommitRecords(ctx context.Context, records ...*kgo.Record) error {
	if len(records) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, kfk.commitTimeout)
	defer cancel()
	err := kfk.client.CommitRecords(ctx, records...)
	if err != nil {
		return errors.Wrap(err, "kafka commit failed")
	}

	return nil
}

// HandleTopic runs fn for record inside a process span, and appends record to commitRecords
// if fn succeeded.
func (kfk *Kafka) HandleTopic(
	ctx context.Context,
	commitRecords *[]*kgo.Record,
	record *kgo.Record,
	fn Handler,
) {
	childCtx, span := kfk.tracer.WithProcessSpan(record)

	if deadLine, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		childCtx, cancel = context.WithDeadline(childCtx, deadLine)
		defer cancel()
	}

	attr := []attribute.KeyValue{
		{Key: semconv.MessagingKafkaConsumerGroupKey, Value: attribute.StringValue(kfk.cfg.ConsumerGroup)},
		{Key: "kafka.topic", Value: attribute.StringValue(record.Topic)},
	}
	defer func(t time.Time) {
		span.SetAttributes(attr...)
		kfk.latencyInstrument.Record(childCtx, time.Since(t).Milliseconds(), metric.WithAttributes(attr...))
		span.End()
	}(time.Now())

	err := fn(childCtx, record.Value)
	if err != nil {
		logger.ErrorCtx(
			childCtx,
			"[kafka] handler failed",
			zap.Error(err),
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
		)
		return
	}
	*commitRecords = append(*commitRecords, record)
}

func New(ctx context.Context, cfg *Config, opts ...kgo.Opt) (*Kafka, error) {
	return withOTEL(ctx, cfg, opts...)
}
