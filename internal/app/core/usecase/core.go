package usecase

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

// CoreUseCase 是核心業務邏輯層
//
// 提款遵守 checks-effects-interactions:
//
//	Ledger.Withdraw (檢查 + 扣款) -> Payout.Transfer (出金) -> Publish (通知)
//
// 出金時帳本已經反映扣款，重入的呼叫只會看到扣款後的餘額
type CoreUseCase struct {
	ledger Ledger
	payout Payout
	events EventPublisher
	logger *zap.Logger
}

func NewCoreUseCase(ledger Ledger, payout Payout, events EventPublisher, logger *zap.Logger) *CoreUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CoreUseCase{
		ledger: ledger,
		payout: payout,
		events: events,
		logger: logger,
	}
}

// Deposit 存款
//
// 參數:
//
//	ctx: 上下文
//	caller: 呼叫者帳戶
//	amount: 附帶的金額 (必須大於 0)
//
// 回傳:
//
//	domain.Receipt: (caller, amount, newBalance)
//	error: ZeroDeposit 或基礎設施錯誤
func (c *CoreUseCase) Deposit(ctx context.Context, caller common.Address, amount *uint256.Int) (domain.Receipt, error) {
	tran := domain.NewTransaction(domain.TransactionTypeDeposit, caller, amount)
	balance, err := c.ledger.Deposit(ctx, tran)
	if err != nil {
		c.logRejected(tran, err)
		return domain.Receipt{}, err
	}

	receipt := domain.Receipt{
		LedgerSequence: tran.Sequence,
		TransactionID:  tran.TransactionID,
		Account:        caller,
		Amount:         tran.Amount.Clone(),
		NewBalance:     balance,
	}
	c.publish(ctx, receipt.Event(domain.EventKindDeposit))
	return receipt, nil
}

// Withdraw 提款
//
// 參數:
//
//	ctx: 上下文
//	caller: 呼叫者帳戶
//	amount: 提款金額
//
// 回傳:
//
//	domain.Receipt: (caller, amount, newBalance)
//	error: ZeroWithdrawal / InsufficientBalance / WithdrawalLimitExceeded / TransferFailed
func (c *CoreUseCase) Withdraw(ctx context.Context, caller common.Address, amount *uint256.Int) (domain.Receipt, error) {
	tran := domain.NewTransaction(domain.TransactionTypeWithdraw, caller, amount)

	// 1. checks + effects
	balance, err := c.ledger.Withdraw(ctx, tran)
	if err != nil {
		c.logRejected(tran, err)
		return domain.Receipt{}, err
	}

	// 2. interactions
	if err := c.payout.Transfer(ctx, caller, tran.Amount.Clone()); err != nil {
		return domain.Receipt{}, c.revert(ctx, tran, err)
	}

	receipt := domain.Receipt{
		LedgerSequence: tran.Sequence,
		TransactionID:  tran.TransactionID,
		Account:        caller,
		Amount:         tran.Amount.Clone(),
		NewBalance:     balance,
	}
	c.publish(ctx, receipt.Event(domain.EventKindWithdrawal))
	return receipt, nil
}

// revert 出金失敗，沖回扣款讓整筆提款等同沒發生
func (c *CoreUseCase) revert(ctx context.Context, tran *domain.Transaction, cause error) error {
	transferErr := &domain.LedgerError{
		Kind:    domain.ErrorKindTransferFailed,
		Account: tran.Account,
		Amount:  tran.Amount.Clone(),
		Err:     cause,
	}
	// 呼叫端取消不能阻止沖正
	if _, err := c.ledger.RevertWithdrawal(context.WithoutCancel(ctx), tran.Revert()); err != nil {
		c.logger.Error("failed to revert withdrawal",
			zap.Stringer("tx_id", tran.TransactionID),
			zap.Stringer("account", tran.Account),
			zap.String("amount", tran.Amount.Dec()),
			zap.Error(err),
		)
		return errors.Join(transferErr, err)
	}
	c.logger.Warn("payout failed, withdrawal reverted",
		zap.Stringer("tx_id", tran.TransactionID),
		zap.Stringer("account", tran.Account),
		zap.String("amount", tran.Amount.Dec()),
		zap.Error(cause),
	)
	return transferErr
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	return c.ledger.GetAccountBalance(ctx, account)
}

// GetMyBalance 取得呼叫者自己的餘額 (等同 GetBalance(caller))
func (c *CoreUseCase) GetMyBalance(ctx context.Context, caller common.Address) (*uint256.Int, error) {
	return c.GetBalance(ctx, caller)
}

// GetWithdrawalLimit 取得單筆提款上限
func (c *CoreUseCase) GetWithdrawalLimit() *uint256.Int {
	return c.ledger.WithdrawalLimit()
}

// Totals 帳本總量
func (c *CoreUseCase) Totals(ctx context.Context) (domain.Totals, error) {
	return c.ledger.Totals(ctx)
}

func (c *CoreUseCase) publish(ctx context.Context, event domain.Event) {
	if c.events == nil {
		return
	}
	// 狀態已提交，通知失敗只記錄
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Error("failed to publish event",
			zap.Stringer("kind", event.Kind),
			zap.Stringer("tx_id", event.TransactionID),
			zap.Error(err),
		)
	}
}

func (c *CoreUseCase) logRejected(tran *domain.Transaction, err error) {
	kind := domain.KindOf(err)
	if kind == domain.ErrorKindUnknown {
		c.logger.Error("transaction failed",
			zap.Stringer("type", tran.Type),
			zap.Stringer("account", tran.Account),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("transaction rejected",
		zap.Stringer("type", tran.Type),
		zap.Stringer("account", tran.Account),
		zap.String("amount", tran.Amount.Dec()),
		zap.Stringer("reason", kind),
	)
}
