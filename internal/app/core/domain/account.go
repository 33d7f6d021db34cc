package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account 帳戶，第一次存款時隱式建立，之後不會被刪除
type Account struct {
	Address common.Address
	Balance uint256.Int
}

func NewAccount(address common.Address, balance *uint256.Int) *Account {
	account := &Account{Address: address}
	if balance != nil {
		account.Balance.Set(balance)
	}
	return account
}

// CheckDeposit 存款檢查 (不改變狀態)
func (a *Account) CheckDeposit(amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return &LedgerError{Kind: ErrorKindZeroDeposit, Account: a.Address}
	}
	var next uint256.Int
	if _, overflow := next.AddOverflow(&a.Balance, amount); overflow {
		return &LedgerError{Kind: ErrorKindBalanceOverflow, Account: a.Address, Amount: amount.Clone()}
	}
	return nil
}

// Deposit 存款，回傳存款後餘額
func (a *Account) Deposit(amount *uint256.Int) (*uint256.Int, error) {
	if err := a.CheckDeposit(amount); err != nil {
		return nil, err
	}
	a.Balance.Add(&a.Balance, amount)
	return a.Balance.Clone(), nil
}

// CheckWithdraw 提款檢查 (不改變狀態)
//
// 檢查順序固定:
//
//	1. 金額為 0 -> ZeroWithdrawal
//	2. 金額大於餘額 -> InsufficientBalance
//	3. 金額大於單筆上限 -> WithdrawalLimitExceeded
func (a *Account) CheckWithdraw(amount, limit *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return &LedgerError{Kind: ErrorKindZeroWithdrawal, Account: a.Address}
	}
	if amount.Gt(&a.Balance) {
		return &LedgerError{
			Kind:    ErrorKindInsufficientBalance,
			Account: a.Address,
			Amount:  amount.Clone(),
			Balance: a.Balance.Clone(),
		}
	}
	if amount.Gt(limit) {
		return &LedgerError{
			Kind:    ErrorKindWithdrawalLimitExceeded,
			Account: a.Address,
			Amount:  amount.Clone(),
			Limit:   limit.Clone(),
		}
	}
	return nil
}

// Withdraw 提款，回傳提款後餘額
func (a *Account) Withdraw(amount, limit *uint256.Int) (*uint256.Int, error) {
	if err := a.CheckWithdraw(amount, limit); err != nil {
		return nil, err
	}
	a.Balance.Sub(&a.Balance, amount)
	return a.Balance.Clone(), nil
}

// Refund 沖回一筆出金失敗的提款
func (a *Account) Refund(amount *uint256.Int) (*uint256.Int, error) {
	var next uint256.Int
	if _, overflow := next.AddOverflow(&a.Balance, amount); overflow {
		return nil, &LedgerError{Kind: ErrorKindBalanceOverflow, Account: a.Address, Amount: amount.Clone()}
	}
	a.Balance = next
	return a.Balance.Clone(), nil
}
