package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/naughtygopher/proberesponder"

	"github.com/onlydevelop/restaurant-service-demo/cmd/server/grpc"
	xhttp "github.com/onlydevelop/restaurant-service-demo/cmd/server/http"
	kafkaSubs "github.com/onlydevelop/restaurant-service-demo/cmd/subscriber/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

// shutdownStep runs fn in its own goroutine, recording when it started and completed in the
// health response under "shutdown/<name>".
func shutdownStep(
	ctx context.Context,
	wgroup *sync.WaitGroup,
	pResp *proberesponder.ProbeResponder,
	name string,
	fn func(ctx context.Context) error,
) {
	key := fmt.Sprintf("shutdown/%s", name)
	wgroup.Add(1)
	go func() {
		defer func() {
			wgroup.Done()
			pResp.AppendHealthResponse(key, fmt.Sprintf("completed %s", time.Now().Format(time.RFC3339)))
		}()
		pResp.AppendHealthResponse(key, fmt.Sprintf("initiated %s", time.Now().Format(time.RFC3339)))

		err := fn(ctx)
		if err != nil {
			logger.ErrWithStacktrace(err)
		}
	}()
}

func shutdown(
	pResp *proberesponder.ProbeResponder,
	healthResp *http.Server,
	httpServer *xhttp.HTTP,
	grpcServer *grpc.GRPC,
	ksub *kafkaSubs.Kafka,
	deps *dependencies,
	apmHandler *apm.APM,
) {
	// should be less than terminationGracePeriodSeconds of the pod
	const shutdownTimeout = time.Second * 60
	pResp.AppendHealthResponse("shutdown", fmt.Sprintf("initiated %s", time.Now().Format(time.RFC3339)))
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// the health server goes last, so probes can follow the shutdown progress
	defer func() {
		_ = healthResp.Shutdown(ctx)
	}()

	wgroup := &sync.WaitGroup{}

	// transports first, no new lookups or refreshes may start once dependencies are closed
	shutdownStep(ctx, wgroup, pResp, "http-itemserver", httpServer.Shutdown)
	shutdownStep(ctx, wgroup, pResp, "grpc-itemserver", func(context.Context) error {
		grpcServer.Shutdown()
		return nil
	})
	// also closes the kafka client
	shutdownStep(ctx, wgroup, pResp, "kafka-subscriber", ksub.Shutdown)
	wgroup.Wait()

	if deps.pgPool != nil {
		shutdownStep(ctx, wgroup, pResp, "postgres-pool", func(context.Context) error {
			// blocks until all acquired connections are released
			deps.pgPool.Close()
			return nil
		})
	}
	if deps.mongoClient != nil {
		shutdownStep(ctx, wgroup, pResp, "mongodb-driver", deps.mongoClient.Disconnect)
	}
	shutdownStep(ctx, wgroup, pResp, "apm", apmHandler.Shutdown)
	wgroup.Wait()
}
