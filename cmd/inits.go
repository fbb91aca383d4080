package main

import (
	"context"
	"fmt"
	"os"
	"slices"

	mongoprom "github.com/globocom/mongo-go-prometheus"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naughtygopher/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/onlydevelop/restaurant-service-demo/internal/config"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

type ctxKey string

const (
	CtxKeyEnv ctxKey = "env"
)

func isDevelopment(cfg *config.Config) bool {
	return slices.Contains([]string{config.EnvDevelopment, config.EnvCI}, cfg.Environment)
}

func initLogger(cfg *config.Config) error {
	err := logger.SetLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	if isDevelopment(cfg) {
		zl, err := logger.New(true)
		if err != nil {
			return err
		}
		logger.SetGlobal(zl)
	}

	logger.SetContextFieldsSetter(func(ctx context.Context) []zap.Field {
		fields := make([]zap.Field, 0, 2)
		if env, ok := ctx.Value(CtxKeyEnv).(string); ok {
			fields = append(fields, zap.String(string(CtxKeyEnv), env))
		}

		traceID := trace.SpanContextFromContext(ctx).TraceID()
		if traceID.IsValid() {
			fields = append(fields, zap.String("trace_id", traceID.String()))
		}

		return fields
	})

	return nil
}

func initAPM(ctx context.Context, cfg *config.Config) error {
	ins, err := apm.New(ctx, &apm.Options{
		Environment:          cfg.Environment,
		Debug:                cfg.APM.Debug,
		ServiceName:          cfg.AppName,
		ServiceVersion:       cfg.Version,
		TracesSampleRate:     cfg.APM.TracesSampleRate,
		CollectorURL:         cfg.APM.TracesCollectorURL,
		PrometheusScrapePort: cfg.APM.MetricScrapePort,
		UseStdOut:            isDevelopment(cfg),
	})
	if err != nil {
		return errors.Wrap(err, "failed to initialize APM")
	}
	apm.SetGlobal(ins)
	return nil
}

func initializePostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN())
	if err != nil {
		return nil, errors.Wrap(err, "invalid PostgreSQL config")
	}
	poolCfg.MaxConns = cfg.Postgres.MaxConns
	poolCfg.MinConns = cfg.Postgres.MinConns
	poolCfg.MaxConnLifetime = cfg.Postgres.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Postgres.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.Store.PingTimeout)
	defer cancel()
	err = pool.Ping(pctx)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping PostgreSQL")
	}

	return pool, nil
}

func initializeMongoDB(ctx context.Context, cfg *config.Config) (*mongo.Client, *mongo.Database, error) {
	monitor := mongoprom.NewCommandMonitor(
		mongoprom.WithInstanceName(cfg.MongoDB.Database),
		mongoprom.WithNamespace(cfg.MongoDB.Namespace),
		mongoprom.WithDurationBuckets([]float64{.001, .005, .01}),
	)

	opts := options.Client().SetMonitor(monitor)
	opts.Hosts = cfg.MongoDB.Hosts
	opts.Auth = &options.Credential{
		AuthMechanism:           cfg.MongoDB.AuthMechanism,
		AuthMechanismProperties: nil,
		AuthSource:              cfg.MongoDB.AuthDatabase,
		Username:                cfg.MongoDB.Username,
		Password:                cfg.MongoDB.Password,

		PasswordSet:         false,
		OIDCMachineCallback: nil,
		OIDCHumanCallback:   nil,
	}
	opts.MaxConnIdleTime = &cfg.MongoDB.MaxConnIdleTime
	opts.SetAppName(cfg.AppFullname())

	mongoClient, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to MongoDB")
	}
	pctx, cancel := context.WithTimeout(ctx, cfg.Store.PingTimeout)
	defer cancel()

	err = mongoClient.Ping(pctx, nil)
	if err != nil {
		_ = mongoClient.Disconnect(ctx)
		return nil, nil, errors.Wrap(err, "failed to ping MongoDB")
	}

	return mongoClient, mongoClient.Database(cfg.MongoDB.Database), nil
}

// initKafka returns a nil client when the refresh bus is disabled.
func initKafka(
	ctx context.Context,
	cfg *config.Config,
) (*kafka.Kafka, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil //nolint:nilnil // kafka is optional
	}
	if len(cfg.Kafka.Topics) == 0 {
		return nil, errors.New("kafka enabled without any topic")
	}

	kfCfg := kafka.Config{
		LogLevel:               cfg.Kafka.LogLevel,
		Seeds:                  cfg.Kafka.Seeds,
		Topics:                 cfg.Kafka.Topics,
		ConsumerGroup:          cfg.Kafka.ConsumerGroup,
		IdleTimeout:            cfg.Kafka.IdleTimeout,
		RequestTimeoutOverhead: cfg.Kafka.RequestTimeoutOverhead,
		RetryTimeout:           cfg.Kafka.RetryTimeout,
		SessionTimeout:         cfg.Kafka.SessionTimeout,
		CommitTimeout:          cfg.Kafka.CommitTimeout,
		AuthMechanism:          cfg.Kafka.AuthMechanism,
		SASLUsername:           cfg.Kafka.SASLUsername,
		SASLPassword:           cfg.Kafka.SASLPassword,
		CACertificate:          cfg.Kafka.CACertificate,
		FetchMaxBytes:          cfg.Kafka.FetchMaxBytes,
		EnableTLSDialer:        cfg.Kafka.EnableTLSDialer,
	}
	// every replica should receive every refresh, hence a consumer group per instance
	if kfCfg.ConsumerGroup == "" {
		host, _ := os.Hostname()
		kfCfg.ConsumerGroup = fmt.Sprintf("%s-%s", cfg.AppFullname(), host)
	}

	return kafka.New(ctx, &kfCfg)
}
