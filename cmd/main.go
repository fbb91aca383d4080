// Package main is the entry point of the item service. It reads configs, initializes the
// store drivers, the refresh bus and telemetry, then starts the HTTP & gRPC servers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/naughtygopher/errors"
	"github.com/naughtygopher/proberesponder"
	"github.com/naughtygopher/proberesponder/extensions/depprober"

	"github.com/onlydevelop/restaurant-service-demo/cmd/server/grpc"
	xhttp "github.com/onlydevelop/restaurant-service-demo/cmd/server/http"
	kafkaSubs "github.com/onlydevelop/restaurant-service-demo/cmd/subscriber/kafka"
	"github.com/onlydevelop/restaurant-service-demo/internal/config"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/sysignals"
)

// errExit is the error which made main return, nil if it is still running.
var errExit error

// exitStatus maps the reason main stopped to the process exit code. A quit signal is a clean
// exit.
func exitStatus(rec any) (int, any) {
	if err, ok := rec.(error); ok && err != nil {
		return 1, err
	}
	if rec != nil {
		return 2, rec
	}
	if errExit != nil && !errors.Is(errExit, sysignals.ErrSigQuit) {
		return 3, errExit
	}
	return 0, errExit
}

// recoverer logs why the app is exiting, including panics of main (not of the HTTP/gRPC
// handlers), then exits.
func recoverer() {
	exitCode, exitInfo := exitStatus(recover())
	if exitCode == 0 {
		logger.Info(fmt.Sprintf("shutdown complete: %+v", exitInfo))
	} else {
		logger.Error(fmt.Sprintf("shutdown complete (exit: %d): %+v", exitCode, exitInfo))
	}
	logger.Sync()

	os.Exit(exitCode)
}

type servers struct {
	health *http.Server
	http   *xhttp.HTTP
	grpc   *grpc.GRPC
	ksub   *kafkaSubs.Kafka
}

// drain marks the app unavailable, waits for the orchestrator to notice, then shuts down
// all servers and dependencies.
func drain(
	probestatus *proberesponder.ProbeResponder,
	depProbeStopper depprober.Stopper,
	srvs *servers,
	deps *dependencies,
) {
	probestatus.SetNotReady(true)
	probestatus.SetNotStarted(true)
	probestatus.SetNotLive(true)
	depProbeStopper.Stop()

	// Kubernetes keeps routing requests until its next readiness probe fails, so the servers
	// keep serving for a little longer than the probe interval (2s).
	const k8sProbeInterval = time.Second * 3
	time.Sleep(k8sProbeInterval)

	logger.Info("initiating shutdown")
	shutdown(
		probestatus,
		srvs.health,
		srvs.http,
		srvs.grpc,
		srvs.ksub,
		deps,
		apm.Global(),
	)
}

func main() {
	defer recoverer()

	var (
		ctx      = context.Background()
		fatalErr = make(chan error, 1)
		// by default all probe responses are negative.
		probestatus = proberesponder.New()
	)

	healthResponder, err := startHealthResponder(ctx, probestatus, fatalErr)
	if err != nil {
		panic(err)
	}

	go sysignals.NotifyErrorOnQuit(fatalErr)

	// ./config.yaml is optional, env variables alone are enough
	cfg, err := config.Load(".", "config")
	if err != nil {
		panic(err)
	}
	ctx = context.WithValue(ctx, CtxKeyEnv, cfg.Environment)

	probestatus.AppendHealthResponse("app->version", cfg.AppFullname())
	probestatus.AppendHealthResponse("app->built", cfg.AppBuildDate)
	probestatus.AppendHealthResponse("app->config", cfg.FileInUse())
	probestatus.AppendHealthResponse("store->driver", cfg.Store.Driver)

	err = initLogger(cfg)
	if err != nil {
		panic(err)
	}

	deps, hserver, gserver, ksub := start(ctx, cfg, probestatus, fatalErr)

	const probeInterval = time.Second * 30
	depProbeStopper := healthStatus(probeInterval, probestatus, deps, ksub)

	defer drain(
		probestatus,
		depProbeStopper,
		&servers{health: healthResponder, http: hserver, grpc: gserver, ksub: ksub},
		deps,
	)

	probestatus.SetNotStarted(false)
	probestatus.SetNotReady(false)
	probestatus.SetNotLive(false)

	errExit = <-fatalErr
}
