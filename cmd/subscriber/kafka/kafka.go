// Package kafka is responsible for all subscription interfaces with Kafka
// Similar to the HTTP package, this should only have the "handlers" and none of the business logic.
// It listens on the refresh bus, where pricing configuration updates are published.
package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/naughtygopher/errors"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/onlydevelop/restaurant-service-demo/internal/api"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
	"github.com/onlydevelop/restaurant-service-demo/internal/pricing"
)

type Config struct {
	TopicPricingRefresh string
}

type refresher interface {
	PricingRefresh(ctx context.Context, cfg pricing.Config) error
}

type consumer interface {
	PollFetches(ctx context.Context) kgo.Fetches
	HandleTopic(ctx context.Context, commitRecords *[]*kgo.Record, record *kgo.Record, fn kafka.Handler)
	CommitRecords(ctx context.Context, records ...*kgo.Record) error
	Shutdown(ctx context.Context) error
}

type Kafka struct {
	client consumer
	apiSvc refresher

	// unix nano timestamps of the first and the latest non-empty poll, zero until then
	firstPollAt atomic.Int64
	lastPollAt  atomic.Int64

	topicPricingRefresh string
}

func NewService(kfk *kafka.Kafka, apiSvc *api.API, cfg *Config) (*Kafka, error) {
	if kfk == nil {
		return nil, errors.New("kafka client is required")
	}
	if cfg.TopicPricingRefresh == "" {
		return nil, errors.New("pricing refresh topic is required")
	}

	return &Kafka{
		client:              kfk,
		apiSvc:              apiSvc,
		topicPricingRefresh: cfg.TopicPricingRefresh,
	}, nil
}

func (kfk *Kafka) Shutdown(ctx context.Context) error {
	if kfk == nil || kfk.client == nil {
		return nil
	}
	return kfk.client.Shutdown(ctx)
}

func unixNanoTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(0, ts)
	return &t
}

// ReceivedFirstMessageAt is nil until the subscriber receives its first batch of records.
func (kfk *Kafka) ReceivedFirstMessageAt() *time.Time {
	if kfk == nil {
		return nil
	}
	return unixNanoTime(kfk.firstPollAt.Load())
}

func (kfk *Kafka) ReceivedLastMessageAt() *time.Time {
	if kfk == nil {
		return nil
	}
	return unixNanoTime(kfk.lastPollAt.Load())
}

func (kfk *Kafka) markReceived() {
	now := time.Now().UnixNano()
	kfk.firstPollAt.CompareAndSwap(0, now)
	kfk.lastPollAt.Store(now)
}

// Subscribe polls until ctx is done or the client is closed, which is a clean exit.
func (kfk *Kafka) Subscribe(ctx context.Context) error {
	for {
		fetches := kfk.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		if errs := fetches.Errors(); len(errs) > 0 {
			// All errors are retried internally when fetching, but non-retriable errors are
			// returned from polls.
			return errors.Errorf("%+v", errs)
		}

		if fetches.NumRecords() == 0 {
			continue
		}
		kfk.markReceived()

		recordCommits := make([]*kgo.Record, 0, fetches.NumRecords())
		fetches.EachRecord(func(record *kgo.Record) {
			if record.Topic != kfk.topicPricingRefresh {
				return
			}
			kfk.client.HandleTopic(ctx, &recordCommits, record, kfk.PricingRefresh)
		})

		err := kfk.client.CommitRecords(ctx, recordCommits...)
		if err != nil {
			// the subscriber should not exit if there's a commit error. It should just log
			// and continue listening
			logger.ErrWithStacktrace(err)
		}
	}
}
