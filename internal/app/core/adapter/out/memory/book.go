package memory

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

// book 帳戶餘額與總量，兩種記憶體帳本共用
// 不做任何同步，呼叫端必須保證序列化 (Mutex 或單一 goroutine)
type book struct {
	accounts  map[common.Address]*domain.Account
	limit     uint256.Int
	deposited uint256.Int
	withdrawn uint256.Int
	sequence  uint64
}

func newBook(limit *uint256.Int) *book {
	b := &book{
		accounts: make(map[common.Address]*domain.Account),
	}
	b.limit.Set(limit)
	return b
}

// peek 取得帳戶，不存在時回傳餘額為 0 的暫時帳戶 (不寫入 map)
func (b *book) peek(address common.Address) *domain.Account {
	if account, ok := b.accounts[address]; ok {
		return account
	}
	return domain.NewAccount(address, nil)
}

// account 取得帳戶，不存在時建立
func (b *book) account(address common.Address) *domain.Account {
	account, ok := b.accounts[address]
	if !ok {
		account = domain.NewAccount(address, nil)
		b.accounts[address] = account
	}
	return account
}

func (b *book) balance(address common.Address) *uint256.Int {
	if account, ok := b.accounts[address]; ok {
		return account.Balance.Clone()
	}
	return new(uint256.Int)
}

// check 驗證交易但不改變任何狀態，讓 WAL 可以在套用前寫入
func (b *book) check(tran *domain.Transaction) error {
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		if err := b.peek(tran.Account).CheckDeposit(tran.Amount); err != nil {
			return err
		}
		var total uint256.Int
		if _, overflow := total.AddOverflow(&b.deposited, tran.Amount); overflow {
			return &domain.LedgerError{Kind: domain.ErrorKindBalanceOverflow, Account: tran.Account, Amount: tran.Amount.Clone()}
		}
		return nil
	case domain.TransactionTypeWithdraw:
		return b.peek(tran.Account).CheckWithdraw(tran.Amount, &b.limit)
	case domain.TransactionTypeWithdrawRevert:
		if tran.Amount.Gt(&b.withdrawn) {
			return fmt.Errorf("%w: revert %s exceeds withdrawn total %s", domain.ErrInvalidRevert, tran.Amount.Dec(), b.withdrawn.Dec())
		}
		return nil
	}
	return fmt.Errorf("%w: %d", domain.ErrUnknownTransactionType, tran.Type)
}

// apply 套用已通過 check 的交易，回傳異動後餘額
func (b *book) apply(tran *domain.Transaction) (*uint256.Int, error) {
	var (
		balance *uint256.Int
		err     error
	)
	switch tran.Type {
	case domain.TransactionTypeDeposit:
		balance, err = b.account(tran.Account).Deposit(tran.Amount)
		if err == nil {
			b.deposited.Add(&b.deposited, tran.Amount)
		}
	case domain.TransactionTypeWithdraw:
		balance, err = b.account(tran.Account).Withdraw(tran.Amount, &b.limit)
		if err == nil {
			b.withdrawn.Add(&b.withdrawn, tran.Amount)
		}
	case domain.TransactionTypeWithdrawRevert:
		balance, err = b.account(tran.Account).Refund(tran.Amount)
		if err == nil {
			b.withdrawn.Sub(&b.withdrawn, tran.Amount)
		}
	default:
		err = fmt.Errorf("%w: %d", domain.ErrUnknownTransactionType, tran.Type)
	}
	if err != nil {
		return nil, err
	}
	if tran.Sequence > b.sequence {
		b.sequence = tran.Sequence
	}
	return balance, nil
}

// nextSequence 配發下一個交易序號
func (b *book) nextSequence() uint64 {
	return b.sequence + 1
}

func (b *book) totals() domain.Totals {
	totals := domain.Totals{Accounts: len(b.accounts)}
	totals.Deposited.Set(&b.deposited)
	totals.Withdrawn.Set(&b.withdrawn)
	for _, account := range b.accounts {
		totals.Balances.Add(&totals.Balances, &account.Balance)
	}
	return totals
}
