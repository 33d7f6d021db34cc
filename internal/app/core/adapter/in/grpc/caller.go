package grpc

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

// CallerMetadataKey 呼叫者帳戶地址的 metadata key
const CallerMetadataKey = "x-caller-address"

type callerKey struct{}

// WithCaller 在 outgoing context 附上呼叫者地址 (客戶端使用)
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	return metadata.AppendToOutgoingContext(ctx, CallerMetadataKey, caller.Hex())
}

// CallerFromContext 取出 CallerInterceptor 解析好的呼叫者
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	caller, ok := ctx.Value(callerKey{}).(common.Address)
	return caller, ok
}

// CallerInterceptor 從 metadata 解析呼叫者地址
// 沒帶地址的請求照常放行 (例如 health check)，由需要呼叫者的方法自行拒絕
func CallerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return handler(ctx, req)
		}
		values := md.Get(CallerMetadataKey)
		if len(values) == 0 {
			return handler(ctx, req)
		}
		caller, err := domain.ParseAddress(values[0])
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return handler(context.WithValue(ctx, callerKey{}, caller), req)
	}
}

// LoggingInterceptor 記錄每個請求的方法、耗時與狀態碼
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("elapsed", time.Since(start)),
			zap.Stringer("code", code),
		}
		switch code {
		case codes.OK:
			logger.Debug("rpc", fields...)
		case codes.Internal, codes.Unknown, codes.Unavailable:
			logger.Error("rpc", append(fields, zap.Error(err))...)
		default:
			logger.Info("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}

func requireCaller(ctx context.Context) (common.Address, error) {
	caller, ok := CallerFromContext(ctx)
	if !ok {
		return common.Address{}, status.Errorf(codes.Unauthenticated, "missing %s metadata", CallerMetadataKey)
	}
	return caller, nil
}
