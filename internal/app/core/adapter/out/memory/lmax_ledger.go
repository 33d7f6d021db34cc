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

// DefaultQueueSize 輸送帶預設容量
const DefaultQueueSize = 1000

type commandKind uint8

const (
	commandCommit commandKind = iota
	commandBalance
	commandTotals
)

// command 請求包裝channel，讓呼叫端可以等待結果
type command struct {
	kind    commandKind
	tran    *domain.Transaction
	account common.Address
	result  chan commandResult
}

type commandResult struct {
	balance *uint256.Int
	totals  domain.Totals
	err     error
}

// LMAXLedger 單一 goroutine 處理所有請求的帳本
// 所有讀寫都經過輸送帶，book 只被 run loop 存取
type LMAXLedger struct {
	book *book
	// Write-Ahead Logging
	wal *wal.WAL
	// 輸送帶 負責接收請求
	commands chan *command
	// run loop 結束後關閉
	done chan struct{}
	// Pool 減少 GC 壓力
	commandPool sync.Pool
	startOnce   sync.Once
	logger      *zap.Logger
}

// NewLMAXLedger 建立一個新的 LMAXLedger 實例，需呼叫 Start 啟動
//
// 參數:
//
//	limit: 單筆提款上限 (建立後不可變)
//	wal: Write-Ahead Log 實例，nil 表示不落地
//	queueSize: 輸送帶容量，<= 0 使用 DefaultQueueSize
//	logger: 日誌
//
// 回傳:
//
//	*LMAXLedger: LMAXLedger 實例
//	error: 初始化錯誤
func NewLMAXLedger(limit *uint256.Int, wal *wal.WAL, queueSize int, logger *zap.Logger) (*LMAXLedger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ledger := &LMAXLedger{
		book:     newBook(limit),
		wal:      wal,
		commands: make(chan *command, queueSize),
		done:     make(chan struct{}),
		commandPool: sync.Pool{
			New: func() interface{} {
				return &command{
					result: make(chan commandResult, 1),
				}
			},
		},
		logger: logger,
	}

	// 在啟動前先恢復資料
	count, err := recoverFromWAL(wal, ledger.book)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		logger.Info("recovered ledger from wal", zap.Int("transactions", count))
	}
	return ledger, nil
}

// Start 啟動核心引擎 (非同步)，ctx 結束時處理完剩餘請求後停止
func (l *LMAXLedger) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go l.run(ctx)
	})
}

// Done run loop 結束後關閉
func (l *LMAXLedger) Done() <-chan struct{} {
	return l.done
}

func (l *LMAXLedger) run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			// 收到關閉信號，把剩下的請求處理完
			l.drain()
			return
		case cmd := <-l.commands:
			l.process(cmd)
		}
	}
}

func (l *LMAXLedger) drain() {
	for {
		select {
		case cmd := <-l.commands:
			l.process(cmd)
		default:
			return
		}
	}
}

// process 處理單筆請求並回傳結果
func (l *LMAXLedger) process(cmd *command) {
	switch cmd.kind {
	case commandBalance:
		cmd.result <- commandResult{balance: l.book.balance(cmd.account)}
	case commandTotals:
		cmd.result <- commandResult{totals: l.book.totals()}
	default:
		balance, err := l.commit(cmd.tran)
		cmd.result <- commandResult{balance: balance, err: err}
	}
}

func (l *LMAXLedger) commit(tran *domain.Transaction) (*uint256.Int, error) {
	if err := l.book.check(tran); err != nil {
		return nil, err
	}
	tran.Sequence = l.book.nextSequence()
	// 1. 寫入 WAL (Critical Path)
	if err := appendWAL(l.wal, tran); err != nil {
		l.logger.Error("failed to write wal", zap.Uint64("seq", tran.Sequence), zap.Error(err))
		return nil, err
	}
	// 2. 更新記憶體
	return l.book.apply(tran)
}

// submit 放入輸送帶並等待結果
//
// ctx 只在排隊階段有效: 請求一旦進入輸送帶就一定會被處理，
// 必須等到結果，否則呼叫端會誤以為扣款沒有發生
func (l *LMAXLedger) submit(ctx context.Context, cmd *command) commandResult {
	// 清空 Channel (雖然理論上應該是空的，但保險起見)
	select {
	case <-cmd.result:
	default:
	}

	select {
	case l.commands <- cmd:
	case <-l.done:
		l.release(cmd)
		return commandResult{err: domain.ErrLedgerClosed}
	case <-ctx.Done():
		l.release(cmd)
		return commandResult{err: ctx.Err()}
	}

	select {
	case res := <-cmd.result:
		l.release(cmd)
		return res
	case <-l.done:
		select {
		case res := <-cmd.result:
			l.release(cmd)
			return res
		default:
			// 引擎已停止，請求不會被處理，也不放回 Pool
			return commandResult{err: domain.ErrLedgerClosed}
		}
	}
}

func (l *LMAXLedger) acquire(kind commandKind) *command {
	cmd := l.commandPool.Get().(*command)
	cmd.kind = kind
	return cmd
}

func (l *LMAXLedger) release(cmd *command) {
	cmd.tran = nil
	cmd.account = common.Address{}
	l.commandPool.Put(cmd)
}

// Deposit 存款
//
// Deposit(等待) -> Channel -> Run Loop (核心) -> WAL -> Map Update -> Result Channel -> Deposit(收到結果)
func (l *LMAXLedger) Deposit(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return l.post(ctx, tran)
}

// Withdraw 檢查並扣款
func (l *LMAXLedger) Withdraw(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return l.post(ctx, tran)
}

// RevertWithdrawal 沖回出金失敗的提款
func (l *LMAXLedger) RevertWithdrawal(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return l.post(ctx, tran)
}

func (l *LMAXLedger) post(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	cmd := l.acquire(commandCommit)
	cmd.tran = tran
	res := l.submit(ctx, cmd)
	return res.balance, res.err
}

// GetAccountBalance 取得指定帳戶的當前餘額
func (l *LMAXLedger) GetAccountBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	cmd := l.acquire(commandBalance)
	cmd.account = account
	res := l.submit(ctx, cmd)
	return res.balance, res.err
}

// WithdrawalLimit 單筆提款上限 (回傳複本)
func (l *LMAXLedger) WithdrawalLimit() *uint256.Int {
	return l.book.limit.Clone()
}

// Totals 帳本總量
func (l *LMAXLedger) Totals(ctx context.Context) (domain.Totals, error) {
	res := l.submit(ctx, l.acquire(commandTotals))
	return res.totals, res.err
}

var _ usecase.Ledger = (*LMAXLedger)(nil)
