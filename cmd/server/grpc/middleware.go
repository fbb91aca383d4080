package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/naughtygopher/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

// MwAccessLog logs every call with its status code and latency.
func MwAccessLog( //nolint:nonamedreturns //nolint:nolintlint
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	start := time.Now()
	resp, err = handler(ctx, req)

	// runs inside MwErrWrapper, err is not a status error yet
	code := codes.OK
	if err != nil {
		code, _ = errors.GRPCStatusCode(err)
	}

	logger.InfoCtx(
		ctx,
		"[grpc] access",
		zap.String("method", info.FullMethod),
		zap.String("code", code.String()),
		zap.Duration("took", time.Since(start)),
	)

	return resp, err
}

// MwRecoverer turns a panic in a handler into an error, so a single bad call does not bring
// the server down. It must be chained after MwErrWrapper.
func MwRecoverer( //nolint:nonamedreturns //nolint:nolintlint
	ctx context.Context,
	req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		resp = nil
		err = errors.Internal(fmt.Sprintf("panic recovered: %v", rec))
	}()

	return handler(ctx, req)
}

// MwErrWrapper converts errors returned by handlers into gRPC status errors.
func MwErrWrapper( //nolint:nonamedreturns //nolint:nolintlint
	ctx context.Context, req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	resp, err = handler(ctx, req)
	if err == nil {
		return resp, nil
	}

	return nil, responseErrWithLogs(ctx, info.FullMethod, err)
}

func responseErrWithLogs(ctx context.Context, method string, err error) error {
	code, _ := errors.GRPCStatusCode(err)
	switch code {
	case codes.InvalidArgument,
		codes.AlreadyExists,
		codes.NotFound:
		logger.WarnCtx(ctx, err.Error(), zap.String("method", method))
	default:
		logger.ErrorCtx(ctx, errors.Stacktrace(err), zap.String("method", method))
	}

	return responseError(err)
}
