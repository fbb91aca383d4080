// Package grpc exposes the item pricing APIs over gRPC, along with the standard gRPC
// health service.
package grpc

import (
	"fmt"
	"net"
	"time"

	"github.com/naughtygopher/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/onlydevelop/restaurant-service-demo/internal/api"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
)

type Config struct {
	Host            string
	Port            int
	ConnTimeout     time.Duration
	EnableAccesslog bool
}

type GRPC struct {
	hostaddress string
	grpcServer  *grpc.Server
	health      *health.Server
	apis        *api.API
}

// Start listens on the configured address and serves until Shutdown.
func (grp *GRPC) Start() error {
	lis, err := net.Listen("tcp", grp.hostaddress)
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}
	return grp.Serve(lis)
}

// Serve accepts connections on lis until Shutdown is called.
func (grp *GRPC) Serve(lis net.Listener) error {
	err := grp.grpcServer.Serve(lis)
	if err != nil {
		return errors.Wrap(err, "failed to serve")
	}

	return nil
}

func (grp *GRPC) Address() string {
	return grp.hostaddress
}

// Shutdown reports NOT_SERVING to health checks, then stops the server gracefully.
func (grp *GRPC) Shutdown() {
	grp.health.Shutdown()
	grp.grpcServer.GracefulStop()
}

func serverOptions(cfg *Config) []grpc.ServerOption {
	const (
		maxConnIdle       = time.Minute
		graceShutdownTime = time.Second * 5
	)

	interceptors := []grpc.UnaryServerInterceptor{MwErrWrapper, MwRecoverer}
	if cfg.EnableAccesslog {
		interceptors = append(interceptors, MwAccessLog)
	}

	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     maxConnIdle,
			MaxConnectionAgeGrace: graceShutdownTime,
		}),
		// plaintext, TLS is expected to be terminated by the mesh/ingress
		grpc.Creds(insecure.NewCredentials()),
		grpc.ConnectionTimeout(cfg.ConnTimeout),
		grpc.StatsHandler(apm.OtelGRPCNewServerHandler(healthpb.Health_Check_FullMethodName)),
		grpc.ChainUnaryInterceptor(interceptors...),
	}
}

// New returns a server with items.v1.ItemsService and grpc.health.v1.Health registered.
func New(apis *api.API, cfg *Config) *GRPC {
	grp := &GRPC{
		hostaddress: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		grpcServer:  grpc.NewServer(serverOptions(cfg)...),
		health:      health.NewServer(),
		apis:        apis,
	}
	grp.grpcServer.RegisterService(&itemsServiceDesc, grp)

	// grpc_health_probe -addr localhost:5002 -service items.v1.ItemsService
	grp.health.SetServingStatus(itemsServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grp.grpcServer, grp.health)

	return grp
}

func responseError(err error) error {
	code, message, _ := errors.GRPCStatusCodeMessage(err)
	return status.Error(code, message) //nolint:wrapcheck // raw unwrapped error is expected
}
