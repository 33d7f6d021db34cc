package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// TransactionType 交易類型
// 為了極致節省記憶體，使用 uint8
type TransactionType uint8

const (
	// 存款
	TransactionTypeDeposit TransactionType = 1
	// 提款
	TransactionTypeWithdraw TransactionType = 2
	// 提款沖正 (出金失敗時把金額加回帳戶)
	TransactionTypeWithdrawRevert TransactionType = 3
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "deposit"
	case TransactionTypeWithdraw:
		return "withdraw"
	case TransactionTypeWithdrawRevert:
		return "withdraw_revert"
	}
	return "unknown"
}

// Transaction 交易 注意欄位排序以避免 Padding
type Transaction struct {
	// Sequence: 全局唯一的順序號 (由核心引擎分配，1, 2, 3...)
	// 用於 WAL 重放確保順序一致
	Sequence uint64
	// Amount: 金額 (最小單位)
	Amount *uint256.Int
	// CreatedAt: 交易時間
	CreatedAt int64
	// TransactionID: 外部追蹤號 (UUID)
	TransactionID uuid.UUID
	// ParentID: 沖正交易所沖回的原提款
	ParentID uuid.UUID
	// Account: 呼叫者帳戶
	Account common.Address
	// Type: 放到最後面，利用 Padding 空間
	Type TransactionType
}

// NewTransaction 建立一筆新交易並配發 TransactionID
func NewTransaction(typ TransactionType, account common.Address, amount *uint256.Int) *Transaction {
	tran := &Transaction{
		TransactionID: uuid.New(),
		Account:       account,
		CreatedAt:     time.Now().UnixNano(),
		Type:          typ,
	}
	if amount != nil {
		tran.Amount = amount.Clone()
	} else {
		tran.Amount = new(uint256.Int)
	}
	return tran
}

// Revert 建立沖正此筆提款的交易
func (t *Transaction) Revert() *Transaction {
	revert := NewTransaction(TransactionTypeWithdrawRevert, t.Account, t.Amount)
	revert.ParentID = t.TransactionID
	return revert
}
