package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName gRPC 服務全名
const ServiceName = "vault.v1.Vault"

// VaultServer 金庫服務
type VaultServer interface {
	Deposit(context.Context, *DepositRequest) (*ReceiptResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*ReceiptResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error)
	GetMyBalance(context.Context, *Empty) (*BalanceResponse, error)
	GetWithdrawalLimit(context.Context, *Empty) (*LimitResponse, error)
}

// VaultServiceDesc 服務描述，訊息以 JSON codec 編碼
var VaultServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VaultServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Deposit", VaultServer.Deposit),
		unaryMethod("Withdraw", VaultServer.Withdraw),
		unaryMethod("GetBalance", VaultServer.GetBalance),
		unaryMethod("GetMyBalance", VaultServer.GetMyBalance),
		unaryMethod("GetWithdrawalLimit", VaultServer.GetWithdrawalLimit),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterVaultServer 將服務註冊到 gRPC Server
func RegisterVaultServer(s grpc.ServiceRegistrar, srv VaultServer) {
	s.RegisterService(&VaultServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryMethod[Req, Resp any](method string, call func(VaultServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VaultServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VaultServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
