package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/naughtygopher/errors"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
	"go.uber.org/zap"

	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

// kgoLogger routes the client's internal logs to the app logger.
type kgoLogger struct {
	level kgo.LogLevel
}

func (kl kgoLogger) Level() kgo.LogLevel {
	return kl.level
}

func (kl kgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	fields := make([]zap.Field, 0, len(keyvals)/2+1)
	for i := 0; i+1 < len(keyvals); i += 2 {
		fields = append(fields, zap.Any(fmt.Sprint(keyvals[i]), keyvals[i+1]))
	}
	msg = "[kgo] " + msg

	switch level {
	case kgo.LogLevelError:
		logger.Error(msg, fields...)
	case kgo.LogLevelWarn:
		logger.Warn(msg, fields...)
	case kgo.LogLevelInfo:
		logger.Info(msg, fields...)
	case kgo.LogLevelDebug:
		logger.Debug(msg, fields...)
	case kgo.LogLevelNone:
	}
}

func (cfg *Config) tlsDialer() (*tls.Dialer, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: cfg.RetryTimeout},
	}
	if cfg.CACertificate == "" {
		return dialer, nil
	}

	pemCert, err := base64.StdEncoding.DecodeString(cfg.CACertificate)
	if err != nil {
		return nil, errors.Wrap(err, "kafka ca certificate is not base64 encoded")
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemCert) {
		return nil, errors.Validation("kafka ca certificate is not a valid PEM")
	}
	dialer.Config = &tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}

	return dialer, nil
}

// clientOpts builds the consumer group options. Auto commit is always off, records are
// committed by the subscriber after HandleTopic.
func (cfg *Config) clientOpts(extra ...kgo.Opt) ([]kgo.Opt, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Seeds...),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumerGroup(cfg.ConsumerGroup),
		// a new group replays the topic so the latest published factor is applied on start
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.DisableAutoCommit(),
		kgo.ConnIdleTimeout(cfg.IdleTimeout),
		kgo.RetryTimeout(cfg.RetryTimeout),
		kgo.RequestTimeoutOverhead(cfg.RequestTimeoutOverhead),
		kgo.SessionTimeout(cfg.SessionTimeout),
		kgo.WithLogger(kgoLogger{level: kgo.LogLevel(cfg.LogLevel)}),
	}

	if cfg.FetchMaxBytes > 0 {
		opts = append(
			opts,
			kgo.FetchMaxBytes(cfg.FetchMaxBytes),
			kgo.BrokerMaxReadBytes(2*cfg.FetchMaxBytes),
		)
	}

	if strings.EqualFold(cfg.AuthMechanism, "SASL") {
		mechanism := plain.Auth{User: cfg.SASLUsername, Pass: cfg.SASLPassword}.AsMechanism()
		opts = append(opts, kgo.SASL(mechanism))
	}

	if cfg.EnableTLSDialer {
		dialer, err := cfg.tlsDialer()
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.Dialer(dialer.DialContext))
	}

	return append(opts, extra...), nil
}

// pingUntilReady pings the brokers up to attempts times, waiting interval in between.
func pingUntilReady(ctx context.Context, cli *kgo.Client, attempts int, interval time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err = cli.Ping(pingCtx)
		cancel()
		if err == nil {
			return nil
		}

		logger.Warn("[kafka] brokers not reachable", zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "kafka ping cancelled")
		case <-time.After(interval):
		}
	}
	return errors.Wrap(err, "kafka ping failed")
}

func newCli(ctx context.Context, cfg *Config, opts ...kgo.Opt) (*kgo.Client, error) {
	kgoOpts, err := cfg.clientOpts(opts...)
	if err != nil {
		return nil, err
	}

	cli, err := kgo.NewClient(kgoOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "kafka client initialization failed")
	}

	const (
		pingAttempts = 4
		pingInterval = time.Second * 3
	)
	err = pingUntilReady(ctx, cli, pingAttempts, pingInterval)
	if err != nil {
		cli.Close()
		return nil, err
	}

	return cli, nil
}
