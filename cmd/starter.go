package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/naughtygopher/errors"
	"github.com/naughtygopher/proberesponder"
	proberespHTTP "github.com/naughtygopher/proberesponder/extensions/http"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/onlydevelop/restaurant-service-demo/cmd/server/grpc"
	xhttp "github.com/onlydevelop/restaurant-service-demo/cmd/server/http"
	kafkaSubs "github.com/onlydevelop/restaurant-service-demo/cmd/subscriber/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/api"
	"github.com/onlydevelop/restaurant-service-demo/internal/config"
	"github.com/onlydevelop/restaurant-service-demo/internal/item"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
	"github.com/onlydevelop/restaurant-service-demo/internal/pricing"
)

const healthKeyPricingFactor = "pricing->factor"

// dependencies are the external clients initialized at startup. Only the client of the
// configured store driver is set, kafkaClient is nil when the refresh bus is disabled.
type dependencies struct {
	pgPool      *pgxpool.Pool
	mongoClient *mongo.Client
	kafkaClient *kafka.Kafka
}

type itemStore interface {
	Item(ctx context.Context, id int64) (*item.Item, error)
}

// reportingHolder publishes every accepted pricing configuration on the health endpoint.
// Replace calls are serialized so the reported factor is always the one in use.
type reportingHolder struct {
	*pricing.Holder
	report func(key, value string)
	locker sync.Mutex
}

func newReportingHolder(holder *pricing.Holder, pResp *proberesponder.ProbeResponder) *reportingHolder {
	rh := &reportingHolder{
		Holder: holder,
		report: func(key, value string) {
			pResp.AppendHealthResponse(key, value)
		},
	}
	rh.reportFactor(holder.Factor())
	return rh
}

func (rh *reportingHolder) Replace(cfg pricing.Config) error {
	rh.locker.Lock()
	defer rh.locker.Unlock()

	err := rh.Holder.Replace(cfg)
	if err != nil {
		return err
	}
	rh.reportFactor(cfg.Factor)
	return nil
}

func (rh *reportingHolder) reportFactor(factor float64) {
	rh.report(healthKeyPricingFactor, strconv.FormatFloat(factor, 'f', -1, 64))
}

func startItemHTTPServer(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	apis *api.API,
	cfg *xhttp.Config,
) (*xhttp.HTTP, error) { //nolint:unparam,nolintlint
	itemServer := xhttp.New(apis, cfg)
	go func() {
		defer logger.InfoCtx(ctx, fmt.Sprintf("[http] %s:%d shutdown complete", cfg.Host, cfg.Port))
		logger.InfoCtx(ctx, fmt.Sprintf("[http] listening on %s:%d", cfg.Host, cfg.Port))
		pResp.AppendHealthResponse(
			"http/itemserver",
			fmt.Sprintf("OK: %s", time.Now().Format(time.RFC3339)),
		)
		err := itemServer.Start()
		if err != nil {
			fatalErr <- err
		}
	}()

	return itemServer, nil
}

func startItemGrpcServer(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	apis *api.API,
	cfg *grpc.Config,
) (*grpc.GRPC, error) { //nolint:unparam,nolintlint
	itemServer := grpc.New(apis, cfg)
	go func() {
		defer logger.InfoCtx(ctx, "[grpc] shutdown complete", zap.String("addr", itemServer.Address()))
		logger.InfoCtx(ctx, "[grpc] listening", zap.String("addr", itemServer.Address()))
		pResp.AppendHealthResponse(
			"grpc/itemserver",
			fmt.Sprintf("OK: %s", time.Now().Format(time.RFC3339)),
		)
		err := itemServer.Start()
		if err != nil {
			fatalErr <- err
		}
	}()

	return itemServer, nil
}

func startHealthResponder(
	ctx context.Context,
	ps *proberesponder.ProbeResponder,
	fatalErr chan<- error,
) (*http.Server, error) { //nolint:unparam,nolintlint
	const port = uint16(2000)
	srv := proberespHTTP.Server(ps, "", port)
	go func() {
		defer logger.InfoCtx(ctx, fmt.Sprintf("[http/healthresponder] :%d shutdown complete", port))
		logger.InfoCtx(ctx, fmt.Sprintf("[http/healthresponder] listening on :%d", port))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatalErr <- err
		}
	}()
	return srv, nil
}

// startPricingSubscriber returns a nil subscriber if kafkaClient is nil.
func startPricingSubscriber(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	kafkaClient *kafka.Kafka,
	apiService *api.API,
	cfg *kafkaSubs.Config,
) (*kafkaSubs.Kafka, error) {
	if kafkaClient == nil {
		logger.InfoCtx(ctx, "[kafka] refresh bus disabled")
		return nil, nil //nolint:nilnil // subscriber is optional
	}

	ksub, err := kafkaSubs.NewService(kafkaClient, apiService, cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		logger.InfoCtx(
			ctx,
			fmt.Sprintf("[kafka] subscribing to topic(s): '%s'", cfg.TopicPricingRefresh),
		)
		pResp.AppendHealthResponse(
			"kafka/subscriber",
			fmt.Sprintf("OK: %s", time.Now().Format(time.RFC3339)),
		)
		err := ksub.Subscribe(ctx)
		if err != nil {
			fatalErr <- err
		}
	}()

	return ksub, nil
}

// watchConfig applies the pricing factor and log level of every config file change. Previous
// values are kept if the file cannot be read, or for any invalid value.
func watchConfig(ctx context.Context, cfg *config.Config, apis *api.API) {
	if cfg.FileInUse() == "" {
		return
	}

	logger.InfoCtx(ctx, "[config] watching for changes", zap.String("file", cfg.FileInUse()))
	cfg.Watch(func(updated *config.Config, err error) {
		if err != nil {
			logger.ErrorCtx(ctx, "[config] failed reloading config", zap.Error(err))
			return
		}

		err = apis.PricingRefresh(ctx, pricing.Config{Factor: updated.ItemService.Factor})
		if err != nil {
			logger.ErrorCtx(ctx, "[config] pricing refresh rejected", zap.Error(err))
		}

		err = logger.SetLevel(updated.LogLevel)
		if err != nil {
			logger.ErrorCtx(ctx, "[config] log level change rejected", zap.Error(err))
		}
	})
}

func startServices(
	ctx context.Context,
	pResp *proberesponder.ProbeResponder,
	fatalErr chan<- error,
	cfg *config.Config,
	kafkaClient *kafka.Kafka,
	apiService *api.API,
) (ksub *kafkaSubs.Kafka, hserver *xhttp.HTTP, gserver *grpc.GRPC, err error) {
	kcfg := &kafkaSubs.Config{}
	if len(cfg.Kafka.Topics) > 0 {
		kcfg.TopicPricingRefresh = cfg.Kafka.Topics[0]
	}
	ksub, err = startPricingSubscriber(ctx, pResp, fatalErr, kafkaClient, apiService, kcfg)
	if err != nil {
		return nil, nil, nil, err
	}

	accessLog := isDevelopment(cfg)

	hConfig := xhttp.Config(cfg.HTTP)
	hConfig.EnableAccesslog = accessLog
	hserver, err = startItemHTTPServer(ctx, pResp, fatalErr, apiService, &hConfig)
	if err != nil {
		return nil, nil, nil, err
	}

	gcfg := grpc.Config(cfg.GRPC)
	gcfg.EnableAccesslog = accessLog
	gserver, err = startItemGrpcServer(ctx, pResp, fatalErr, apiService, &gcfg)
	if err != nil {
		return nil, nil, nil, err
	}

	return ksub, hserver, gserver, nil
}

func initItemStore(ctx context.Context, cfg *config.Config, deps *dependencies) (itemStore, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := initializePostgres(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.pgPool = pool
		return item.NewPostgresStore(pool)

	case config.StoreDriverMongoDB:
		mongoClient, mongoDB, err := initializeMongoDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		deps.mongoClient = mongoClient
		return item.NewMongoStore(mongoDB)
	}

	return nil, errors.Validation(fmt.Sprintf("unsupported store driver '%s'", cfg.Store.Driver))
}

func start(
	ctx context.Context,
	cfg *config.Config,
	probestatus *proberesponder.ProbeResponder,
	fatalErr chan<- error,
) (
	deps *dependencies,
	hserver *xhttp.HTTP,
	gserver *grpc.GRPC,
	ksub *kafkaSubs.Kafka,
) {
	err := initAPM(ctx, cfg)
	if err != nil {
		panic(err)
	}

	deps = &dependencies{}
	itemPersistence, err := initItemStore(ctx, cfg, deps)
	if err != nil {
		panic(err)
	}

	deps.kafkaClient, err = initKafka(ctx, cfg)
	if err != nil {
		panic(err)
	}

	holder, err := pricing.NewHolder(pricing.Config{Factor: cfg.ItemService.Factor})
	if err != nil {
		panic(err)
	}
	pricingHolder := newReportingHolder(holder, probestatus)

	itemService, err := item.NewService(itemPersistence, pricingHolder)
	if err != nil {
		panic(err)
	}

	apiService := api.NewService(itemService, pricingHolder)
	watchConfig(ctx, cfg, apiService)

	ksub, hserver, gserver, err = startServices(
		ctx,
		probestatus,
		fatalErr,
		cfg,
		deps.kafkaClient,
		apiService,
	)
	if err != nil {
		panic(err)
	}

	return deps, hserver, gserver, ksub
}
