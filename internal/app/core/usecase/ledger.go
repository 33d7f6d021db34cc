package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

//go:generate mockgen -source=ledger.go -destination=mock_ports_test.go -package=usecase_test

// Ledger 是帳務引擎的介面
//
// 每個寫入操作都是單一、序列化的原子步驟: 失敗時不留下任何狀態變更
type Ledger interface {
	// Deposit 存款，回傳存款後餘額
	Deposit(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error)
	// Withdraw 檢查並扣款 (不含出金)，回傳扣款後餘額
	Withdraw(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error)
	// RevertWithdrawal 出金失敗時沖回已扣的金額
	RevertWithdrawal(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error)
	// GetAccountBalance 取得帳戶餘額，未出現過的帳戶為 0
	GetAccountBalance(ctx context.Context, account common.Address) (*uint256.Int, error)
	// WithdrawalLimit 單筆提款上限，建立後不可變
	WithdrawalLimit() *uint256.Int
	// Totals 帳本總量 (守恆檢查用)
	Totals(ctx context.Context) (domain.Totals, error)
}

// Payout 把提領的金額交給呼叫者 (外部互動，可能重入帳本)
type Payout interface {
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// EventPublisher 發送存款/提款通知
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
