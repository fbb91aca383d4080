package apm

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc/stats"
)

// OtelGRPCNewServerHandler instruments every RPC except ignoredMethods (full method names,
// e.g. "/grpc.health.v1.Health/Check").
func OtelGRPCNewServerHandler(ignoredMethods ...string) stats.Handler { //nolint:ireturn // that's how otel sdk works
	ignored := make(map[string]struct{}, len(ignoredMethods))
	for _, m := range ignoredMethods {
		ignored[m] = struct{}{}
	}

	gb := Global()
	return otelgrpc.NewServerHandler(
		otelgrpc.WithTracerProvider(gb.GetTracerProvider()),
		otelgrpc.WithMeterProvider(gb.GetMeterProvider()),
		otelgrpc.WithFilter(func(info *stats.RPCTagInfo) bool {
			_, skip := ignored[info.FullMethodName]
			return !skip
		}),
	)
}
