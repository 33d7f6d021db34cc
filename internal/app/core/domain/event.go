package domain

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EventKind 通知種類
type EventKind uint8

const (
	EventKindDeposit    EventKind = 1
	EventKindWithdrawal EventKind = 2
)

func (k EventKind) String() string {
	switch k {
	case EventKindDeposit:
		return "Deposit"
	case EventKindWithdrawal:
		return "Withdrawal"
	}
	return "Unknown"
}

// Receipt 成功的存款/提款結果 (caller, amount, newBalance)
type Receipt struct {
	// LedgerSequence 帳本提交順序，由引擎配發
	LedgerSequence uint64
	TransactionID  uuid.UUID
	Account        common.Address
	Amount         *uint256.Int
	NewBalance     *uint256.Int
}

// Event 對外通知，每筆成功的存款/提款恰好一筆
// NewBalance 為該筆交易異動後的餘額
type Event struct {
	// Sequence 由事件日誌依送達順序配發，嚴格遞增
	Sequence uint64
	// LedgerSequence 對應交易在帳本的提交順序
	// 重入或並發時送達順序可能與提交順序不同，重播一律依此排序
	LedgerSequence uint64
	Kind           EventKind
	TransactionID  uuid.UUID
	Account        common.Address
	Amount         *uint256.Int
	NewBalance     *uint256.Int
	OccurredAt     time.Time
}

// Event 由交易結果產生通知
func (r Receipt) Event(kind EventKind) Event {
	return Event{
		LedgerSequence: r.LedgerSequence,
		Kind:           kind,
		TransactionID:  r.TransactionID,
		Account:        r.Account,
		Amount:         r.Amount,
		NewBalance:     r.NewBalance,
		OccurredAt:     time.Now(),
	}
}

type eventJSON struct {
	Sequence       uint64         `json:"seq"`
	LedgerSequence uint64         `json:"ledger_seq"`
	Kind           string         `json:"kind"`
	TransactionID  uuid.UUID      `json:"transaction_id"`
	Account        common.Address `json:"account"`
	Amount         string         `json:"amount"`
	NewBalance     string         `json:"new_balance"`
	OccurredAt     time.Time      `json:"occurred_at"`
}

// MarshalJSON 金額以十進位字串輸出，避免 JSON number 精度問題
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Sequence:       e.Sequence,
		LedgerSequence: e.LedgerSequence,
		Kind:           e.Kind.String(),
		TransactionID:  e.TransactionID,
		Account:        e.Account,
		Amount:         decString(e.Amount),
		NewBalance:     decString(e.NewBalance),
		OccurredAt:     e.OccurredAt,
	})
}

func decString(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

// Totals 帳本總量，用來驗證守恆: Balances == Deposited - Withdrawn
type Totals struct {
	Deposited uint256.Int
	Withdrawn uint256.Int
	Balances  uint256.Int
	Accounts  int
}

// Conserved 檢查守恆不變量
func (t Totals) Conserved() bool {
	if t.Withdrawn.Gt(&t.Deposited) {
		return false
	}
	var net uint256.Int
	net.Sub(&t.Deposited, &t.Withdrawn)
	return net.Eq(&t.Balances)
}
