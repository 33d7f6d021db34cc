package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrorKind 帳本拒絕請求的原因 (封閉集合，呼叫端可依此分支處理)
type ErrorKind uint8

const (
	ErrorKindUnknown ErrorKind = iota
	// 存款金額為 0
	ErrorKindZeroDeposit
	// 提款金額為 0
	ErrorKindZeroWithdrawal
	// 提款金額大於帳戶餘額
	ErrorKindInsufficientBalance
	// 提款金額大於單筆提款上限
	ErrorKindWithdrawalLimitExceeded
	// 出金 (轉給呼叫者) 失敗，整筆提款已沖回
	ErrorKindTransferFailed
	// 餘額或累計金額超出 uint256
	ErrorKindBalanceOverflow
)

var errorKindNames = map[ErrorKind]string{
	ErrorKindZeroDeposit:             "ZeroDeposit",
	ErrorKindZeroWithdrawal:          "ZeroWithdrawal",
	ErrorKindInsufficientBalance:     "InsufficientBalance",
	ErrorKindWithdrawalLimitExceeded: "WithdrawalLimitExceeded",
	ErrorKindTransferFailed:          "TransferFailed",
	ErrorKindBalanceOverflow:         "BalanceOverflow",
}

func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseErrorKind 由名稱還原 ErrorKind (用於 gRPC ErrorInfo.Reason)
func ParseErrorKind(name string) ErrorKind {
	for kind, n := range errorKindNames {
		if n == name {
			return kind
		}
	}
	return ErrorKindUnknown
}

// LedgerError 帳本業務錯誤，帶上被拒絕請求的細節
type LedgerError struct {
	Kind    ErrorKind
	Account common.Address
	// Amount 請求金額
	Amount *uint256.Int
	// Balance 檢查當下的餘額 (InsufficientBalance)
	Balance *uint256.Int
	// Limit 單筆提款上限 (WithdrawalLimitExceeded)
	Limit *uint256.Int
	// Err 底層原因 (TransferFailed)
	Err error
}

func (e *LedgerError) Error() string {
	msg := kindMessages[e.Kind]
	if msg == "" {
		msg = "ledger error"
	}
	switch e.Kind {
	case ErrorKindInsufficientBalance:
		if e.Amount != nil && e.Balance != nil {
			msg = fmt.Sprintf("%s: account %s has %s, requested %s", msg, e.Account.Hex(), e.Balance.Dec(), e.Amount.Dec())
		}
	case ErrorKindWithdrawalLimitExceeded:
		if e.Amount != nil && e.Limit != nil {
			msg = fmt.Sprintf("%s: requested %s, limit %s", msg, e.Amount.Dec(), e.Limit.Dec())
		}
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// Is 只比對 Kind，讓 errors.Is(err, ErrInsufficientBalance) 成立
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Kind == e.Kind
}

var kindMessages = map[ErrorKind]string{
	ErrorKindZeroDeposit:             "deposit amount must be greater than zero",
	ErrorKindZeroWithdrawal:          "withdrawal amount must be greater than zero",
	ErrorKindInsufficientBalance:     "insufficient balance",
	ErrorKindWithdrawalLimitExceeded: "withdrawal limit exceeded",
	ErrorKindTransferFailed:          "transfer to caller failed",
	ErrorKindBalanceOverflow:         "balance overflow",
}

var (
	// ErrZeroDeposit 存款金額為 0
	ErrZeroDeposit = &LedgerError{Kind: ErrorKindZeroDeposit}

	// ErrZeroWithdrawal 提款金額為 0
	ErrZeroWithdrawal = &LedgerError{Kind: ErrorKindZeroWithdrawal}

	// ErrInsufficientBalance 餘額不足
	ErrInsufficientBalance = &LedgerError{Kind: ErrorKindInsufficientBalance}

	// ErrWithdrawalLimitExceeded 超過單筆提款上限
	ErrWithdrawalLimitExceeded = &LedgerError{Kind: ErrorKindWithdrawalLimitExceeded}

	// ErrTransferFailed 出金失敗
	ErrTransferFailed = &LedgerError{Kind: ErrorKindTransferFailed}

	// ErrBalanceOverflow 金額溢位
	ErrBalanceOverflow = &LedgerError{Kind: ErrorKindBalanceOverflow}
)

// Sentinel 回傳該 Kind 對應的哨兵錯誤
func Sentinel(kind ErrorKind) error {
	switch kind {
	case ErrorKindZeroDeposit:
		return ErrZeroDeposit
	case ErrorKindZeroWithdrawal:
		return ErrZeroWithdrawal
	case ErrorKindInsufficientBalance:
		return ErrInsufficientBalance
	case ErrorKindWithdrawalLimitExceeded:
		return ErrWithdrawalLimitExceeded
	case ErrorKindTransferFailed:
		return ErrTransferFailed
	case ErrorKindBalanceOverflow:
		return ErrBalanceOverflow
	}
	return nil
}

// KindOf 取出錯誤鏈中的 ErrorKind，非帳本錯誤回傳 ErrorKindUnknown
func KindOf(err error) ErrorKind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ErrorKindUnknown
}

// 基礎設施錯誤
var (
	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")

	// ErrSelectTransactionFailed 查詢交易失敗
	ErrSelectTransactionFailed = errors.New("select transaction failed")

	// ErrUnknownTransactionType 未知的交易類型
	ErrUnknownTransactionType = errors.New("unknown transaction type")

	// ErrLedgerClosed 帳本引擎已停止
	ErrLedgerClosed = errors.New("ledger closed")

	// ErrInvalidAmount 金額格式錯誤
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidAddress 帳戶地址格式錯誤
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidRevert 沖正金額大於累計提款 (帳本資料不一致)
	ErrInvalidRevert = errors.New("invalid withdrawal revert")

	// ErrLimitMismatch 設定的提款上限與帳本建立時不同
	ErrLimitMismatch = errors.New("withdrawal limit differs from the one the ledger was created with")
)
