package memory

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-vault/pkg/wal"
)

// MutexLedger 是一個使用 Mutex 實現的帳本
//
// 結構:
//
//	book: 帳戶資料與總量
//	mu: RWMutex 保護 book，寫入序列化、讀取可並行
//	wal: Write-Ahead Log 實例 (可為 nil)
type MutexLedger struct {
	book   *book
	mu     sync.RWMutex
	wal    *wal.WAL
	logger *zap.Logger
}

// NewMutexLedger 建立一個新的 MutexLedger 實例
//
// 參數:
//
//	limit: 單筆提款上限 (建立後不可變)
//	wal: Write-Ahead Log 實例，nil 表示不落地
//	logger: 日誌
//
// 回傳:
//
//	*MutexLedger: MutexLedger 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexLedger(limit *uint256.Int, wal *wal.WAL, logger *zap.Logger) (*MutexLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := &MutexLedger{
		book:   newBook(limit),
		wal:    wal,
		logger: logger,
	}
	count, err := recoverFromWAL(wal, ledger.book)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		logger.Info("recovered ledger from wal", zap.Int("transactions", count))
	}
	return ledger, nil
}

// Deposit 存款 (Level 1: Mutex Lock)
func (m *MutexLedger) Deposit(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return m.commit(tran)
}

// Withdraw 檢查並扣款，出金由呼叫端在解鎖後進行
func (m *MutexLedger) Withdraw(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return m.commit(tran)
}

// RevertWithdrawal 沖回出金失敗的提款
func (m *MutexLedger) RevertWithdrawal(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return m.commit(tran)
}

// commit 執行交易核心邏輯: 檢查 -> WAL -> 套用
//
// 參數:
//
//	tran: 交易物件 (Sequence 由此處配發)
//
// 回傳:
//
//	*uint256.Int: 異動後餘額
//	error: 業務錯誤或 WAL 錯誤，皆不會留下狀態變更
func (m *MutexLedger) commit(tran *domain.Transaction) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.book.check(tran); err != nil {
		return nil, err
	}
	tran.Sequence = m.book.nextSequence()
	if err := appendWAL(m.wal, tran); err != nil {
		m.logger.Error("failed to write wal", zap.Uint64("seq", tran.Sequence), zap.Error(err))
		return nil, err
	}
	return m.book.apply(tran)
}

// GetAccountBalance 取得指定帳戶的當前餘額，未出現過的帳戶為 0
func (m *MutexLedger) GetAccountBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.balance(account), nil
}

// WithdrawalLimit 單筆提款上限 (回傳複本)
func (m *MutexLedger) WithdrawalLimit() *uint256.Int {
	// limit 建立後不再寫入，不需要 Lock
	return m.book.limit.Clone()
}

// Totals 帳本總量
func (m *MutexLedger) Totals(ctx context.Context) (domain.Totals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.book.totals(), nil
}

var _ usecase.Ledger = (*MutexLedger)(nil)
