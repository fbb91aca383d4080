package main

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/naughtygopher/proberesponder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkaSubs "github.com/onlydevelop/restaurant-service-demo/cmd/subscriber/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/config"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/sysignals"
	"github.com/onlydevelop/restaurant-service-demo/internal/pricing"
)

func TestExitStatus(t *testing.T) {
	t.Cleanup(func() { errExit = nil })

	errExit = nil
	code, _ := exitStatus(nil)
	assert.Equal(t, 0, code)

	errExit = sysignals.ErrSigQuit
	code, _ = exitStatus(nil)
	assert.Equal(t, 0, code)

	errExit = errors.New("listen tcp :5001: bind: address already in use")
	code, info := exitStatus(nil)
	assert.Equal(t, 3, code)
	assert.Equal(t, errExit, info)

	code, _ = exitStatus(errors.New("failed to ping PostgreSQL"))
	assert.Equal(t, 1, code)

	code, info = exitStatus("boom")
	assert.Equal(t, 2, code)
	assert.Equal(t, "boom", info)
}

func TestReportingHolder(t *testing.T) {
	holder, err := pricing.NewHolder(pricing.Config{Factor: 1.5})
	require.NoError(t, err)

	rh := newReportingHolder(holder, proberesponder.New())
	require.NoError(t, rh.Replace(pricing.Config{Factor: 2}))
	assert.Equal(t, 2.0, rh.Factor())

	require.Error(t, rh.Replace(pricing.Config{Factor: math.NaN()}))
	assert.Equal(t, 2.0, rh.Factor())

	require.NoError(t, rh.Replace(pricing.Config{Factor: 0}))
	assert.Equal(t, 0.0, rh.Factor())
}

func TestReportingHolderReportsFactorInUse(t *testing.T) {
	holder, err := pricing.NewHolder(pricing.Config{Factor: 1})
	require.NoError(t, err)

	var reported string
	rh := &reportingHolder{
		Holder: holder,
		report: func(key, value string) {
			if key == healthKeyPricingFactor {
				reported = value
			}
		},
	}

	// file watch and kafka refreshes racing each other
	wg := sync.WaitGroup{}
	for i := range 50 {
		wg.Add(1)
		go func(factor float64) {
			defer wg.Done()
			_ = rh.Replace(pricing.Config{Factor: factor})
		}(float64(i%5) + 0.5)
	}
	wg.Wait()

	assert.Equal(t, strconv.FormatFloat(rh.Factor(), 'f', -1, 64), reported)
}

type pingMocker struct {
	err error
}

func (pm *pingMocker) Ping(context.Context) error {
	return pm.err
}

type trackerMocker struct {
	last *time.Time
}

func (tm *trackerMocker) ReceivedLastMessageAt() *time.Time {
	return tm.last
}

func TestDependencyProbes(t *testing.T) {
	noReport := func(string, string) {}
	assert.Empty(t, dependencyProbes(&dependencies{}, (*kafkaSubs.Kafka)(nil), noReport))
}

func TestKafkaChecker(t *testing.T) {
	reported := map[string]string{}
	report := func(key, value string) {
		reported[key] = value
	}
	ctx := context.Background()

	t.Run("no message received yet", func(t *testing.T) {
		check := kafkaChecker(&pingMocker{}, &trackerMocker{}, report)
		require.NoError(t, check(ctx))
		assert.Equal(t, "never", reported[healthKeyKafkaLastMessage])
	})

	t.Run("last message time is published", func(t *testing.T) {
		last := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
		check := kafkaChecker(&pingMocker{}, &trackerMocker{last: &last}, report)
		require.NoError(t, check(ctx))
		assert.Equal(t, "2026-10-17T09:30:00Z", reported[healthKeyKafkaLastMessage])
	})

	t.Run("unreachable brokers publish nothing", func(t *testing.T) {
		delete(reported, healthKeyKafkaLastMessage)
		check := kafkaChecker(&pingMocker{err: errors.New("dial tcp: connection refused")}, &trackerMocker{}, report)
		require.Error(t, check(ctx))
		assert.NotContains(t, reported, healthKeyKafkaLastMessage)
	})

	t.Run("nil subscriber reports never", func(t *testing.T) {
		check := kafkaChecker(&pingMocker{}, (*kafkaSubs.Kafka)(nil), report)
		require.NoError(t, check(ctx))
		assert.Equal(t, "never", reported[healthKeyKafkaLastMessage])
	})
}

func TestInitItemStoreUnsupportedDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Driver = "sqlite"

	_, err := initItemStore(context.Background(), cfg, &dependencies{})
	require.Error(t, err)
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, isDevelopment(&config.Config{Environment: config.EnvCI}))
	assert.False(t, isDevelopment(&config.Config{Environment: config.EnvLive}))
}
