package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
)

type GrpcServer struct {
	core *usecase.CoreUseCase
}

func NewGrpcServer(core *usecase.CoreUseCase) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

// NewServer 建立 gRPC Server 並註冊金庫服務、health 與 reflection
//
// 參數:
//
//	handler: 金庫服務實作
//	logger: 請求日誌
//
// 回傳值:
//
//	*grpc.Server: 尚未 Serve 的 gRPC Server
//	*health.Server: health 狀態，關機時設為 NOT_SERVING
func NewServer(handler VaultServer, logger *zap.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(logger),
			CallerInterceptor(),
		),
		// 客戶端連線池每 10 秒 Ping 一次
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	RegisterVaultServer(s, handler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	reflection.Register(s) // 方便 grpcurl 等工具查詢服務
	return s, healthServer
}

func (s *GrpcServer) Deposit(ctx context.Context, req *DepositRequest) (*ReceiptResponse, error) {
	// 1. 呼叫者
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 金額解析 (空字串為 0，由帳本回 ZeroDeposit)
	amount, err := domain.ParseWei(req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}

	// 3. 執行存款
	receipt, err := s.core.Deposit(ctx, caller, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return newReceiptResponse(receipt), nil
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *WithdrawRequest) (*ReceiptResponse, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	amount, err := domain.ParseWei(req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	receipt, err := s.core.Withdraw(ctx, caller, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return newReceiptResponse(receipt), nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *GetBalanceRequest) (*BalanceResponse, error) {
	account, err := domain.ParseAddress(req.Account)
	if err != nil {
		return nil, toStatus(err)
	}
	balance, err := s.core.GetBalance(ctx, account)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BalanceResponse{
		Account: account.Hex(),
		Balance: balance.Dec(),
	}, nil
}

func (s *GrpcServer) GetMyBalance(ctx context.Context, _ *Empty) (*BalanceResponse, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := s.core.GetMyBalance(ctx, caller)
	if err != nil {
		return nil, toStatus(err)
	}
	return &BalanceResponse{
		Account: caller.Hex(),
		Balance: balance.Dec(),
	}, nil
}

func (s *GrpcServer) GetWithdrawalLimit(_ context.Context, _ *Empty) (*LimitResponse, error) {
	return &LimitResponse{
		Limit: s.core.GetWithdrawalLimit().Dec(),
	}, nil
}

var _ VaultServer = (*GrpcServer)(nil)
