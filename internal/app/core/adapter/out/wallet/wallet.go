package wallet

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
)

// ReceiveHook 收款方在收到款項時執行的邏輯 (類似合約的 receive/fallback)
// 可以重入帳本；回傳錯誤代表收款失敗，整筆轉帳會被撤回
type ReceiveHook func(ctx context.Context, to common.Address, amount *uint256.Int) error

// Wallet 帳本外部的持有量，提款出金時把金額轉入這裡
//
// 每筆轉帳扣除固定手續費 (transfer overhead)，不足手續費時收款方實收 0
type Wallet struct {
	mu       sync.Mutex
	holdings map[common.Address]*uint256.Int
	fee      uint256.Int
	fees     uint256.Int
	hook     ReceiveHook
	logger   *zap.Logger
}

// Option 定義了 Wallet 的配置選項函數
type Option func(*Wallet)

// WithFee 設定每筆轉帳的手續費
func WithFee(fee *uint256.Int) Option {
	return func(w *Wallet) {
		if fee != nil {
			w.fee.Set(fee)
		}
	}
}

// WithReceiveHook 設定收款 hook
func WithReceiveHook(hook ReceiveHook) Option {
	return func(w *Wallet) {
		w.hook = hook
	}
}

// WithLogger 設定日誌
func WithLogger(logger *zap.Logger) Option {
	return func(w *Wallet) {
		w.logger = logger
	}
}

// New 建立並回傳一個新的 Wallet
func New(opts ...Option) *Wallet {
	w := &Wallet{
		holdings: make(map[common.Address]*uint256.Int),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Transfer 把 amount 轉給 to
//
// 先入帳再執行 hook (不持有鎖)，hook 失敗時撤回入帳
func (w *Wallet) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	net, fee := w.split(amount)

	w.mu.Lock()
	w.credit(to, net)
	w.fees.Add(&w.fees, fee)
	w.mu.Unlock()

	if w.hook == nil {
		return nil
	}
	if err := w.hook(ctx, to, amount.Clone()); err != nil {
		w.mu.Lock()
		w.holdings[to].Sub(w.holdings[to], net)
		w.fees.Sub(&w.fees, fee)
		w.mu.Unlock()
		w.logger.Debug("receive hook rejected transfer", zap.Stringer("to", to), zap.Error(err))
		return err
	}
	return nil
}

// split 拆出實收金額與手續費
func (w *Wallet) split(amount *uint256.Int) (net, fee *uint256.Int) {
	if amount.Lt(&w.fee) {
		return new(uint256.Int), amount.Clone()
	}
	return new(uint256.Int).Sub(amount, &w.fee), w.fee.Clone()
}

func (w *Wallet) credit(to common.Address, amount *uint256.Int) {
	holding, ok := w.holdings[to]
	if !ok {
		holding = new(uint256.Int)
		w.holdings[to] = holding
	}
	holding.Add(holding, amount)
}

// Holdings 取得帳戶在帳本外的持有量
func (w *Wallet) Holdings(account common.Address) *uint256.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if holding, ok := w.holdings[account]; ok {
		return holding.Clone()
	}
	return new(uint256.Int)
}

// Fees 累計收取的手續費
func (w *Wallet) Fees() *uint256.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fees.Clone()
}

var _ usecase.Payout = (*Wallet)(nil)
