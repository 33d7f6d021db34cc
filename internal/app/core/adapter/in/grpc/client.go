package grpc

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"google.golang.org/grpc"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	vaultgrpc "github.com/JoeShih716/go-mem-vault/pkg/grpc"
)

// Client 金庫服務的客戶端
// 帳本業務錯誤會還原成 domain 的哨兵錯誤，可直接 errors.Is 比對
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	err := c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(vaultgrpc.CodecName))
	if err != nil {
		return fromStatus(err)
	}
	return nil
}

// Deposit 以 caller 身分存入 amount
func (c *Client) Deposit(ctx context.Context, caller common.Address, amount *uint256.Int) (domain.Receipt, error) {
	resp := new(ReceiptResponse)
	if err := c.invoke(WithCaller(ctx, caller), "Deposit", &DepositRequest{Amount: amount.Dec()}, resp); err != nil {
		return domain.Receipt{}, err
	}
	return resp.receipt()
}

// Withdraw 以 caller 身分提領 amount
func (c *Client) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (domain.Receipt, error) {
	resp := new(ReceiptResponse)
	if err := c.invoke(WithCaller(ctx, caller), "Withdraw", &WithdrawRequest{Amount: amount.Dec()}, resp); err != nil {
		return domain.Receipt{}, err
	}
	return resp.receipt()
}

func (c *Client) GetBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	resp := new(BalanceResponse)
	if err := c.invoke(ctx, "GetBalance", &GetBalanceRequest{Account: account.Hex()}, resp); err != nil {
		return nil, err
	}
	return domain.ParseWei(resp.Balance)
}

func (c *Client) GetMyBalance(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	resp := new(BalanceResponse)
	if err := c.invoke(WithCaller(ctx, caller), "GetMyBalance", &Empty{}, resp); err != nil {
		return nil, err
	}
	return domain.ParseWei(resp.Balance)
}

func (c *Client) GetWithdrawalLimit(ctx context.Context) (*uint256.Int, error) {
	resp := new(LimitResponse)
	if err := c.invoke(ctx, "GetWithdrawalLimit", &Empty{}, resp); err != nil {
		return nil, err
	}
	return domain.ParseWei(resp.Limit)
}

func (r *ReceiptResponse) receipt() (domain.Receipt, error) {
	id, err := uuid.Parse(r.TransactionID)
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("invalid transaction id %q: %w", r.TransactionID, err)
	}
	account, err := domain.ParseAddress(r.Account)
	if err != nil {
		return domain.Receipt{}, err
	}
	amount, err := domain.ParseWei(r.Amount)
	if err != nil {
		return domain.Receipt{}, err
	}
	balance, err := domain.ParseWei(r.NewBalance)
	if err != nil {
		return domain.Receipt{}, err
	}
	return domain.Receipt{
		TransactionID: id,
		Account:       account,
		Amount:        amount,
		NewBalance:    balance,
	}, nil
}
