package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/pkg/wal"
)

// recordTypeGenesis WAL 第一筆記錄，保存建立帳本時的提款上限
const recordTypeGenesis domain.TransactionType = 0

// ErrLimitMismatch 設定的提款上限與 WAL 建立時不同
var ErrLimitMismatch = domain.ErrLimitMismatch

// walRecord WAL 中的一筆交易，金額以十進位字串保存
type walRecord struct {
	Sequence      uint64                 `json:"seq"`
	Type          domain.TransactionType `json:"type"`
	TransactionID uuid.UUID              `json:"tx_id"`
	ParentID      uuid.UUID              `json:"parent_id"`
	Account       common.Address         `json:"account"`
	Amount        string                 `json:"amount"`
	Limit         string                 `json:"limit,omitempty"`
	CreatedAt     int64                  `json:"created_at"`
}

func newWALRecord(tran *domain.Transaction) walRecord {
	return walRecord{
		Sequence:      tran.Sequence,
		Type:          tran.Type,
		TransactionID: tran.TransactionID,
		ParentID:      tran.ParentID,
		Account:       tran.Account,
		Amount:        tran.Amount.Dec(),
		CreatedAt:     tran.CreatedAt,
	}
}

func (r walRecord) transaction() (*domain.Transaction, error) {
	amount, err := domain.ParseWei(r.Amount)
	if err != nil {
		return nil, err
	}
	return &domain.Transaction{
		Sequence:      r.Sequence,
		Amount:        amount,
		CreatedAt:     r.CreatedAt,
		TransactionID: r.TransactionID,
		ParentID:      r.ParentID,
		Account:       r.Account,
		Type:          r.Type,
	}, nil
}

// appendWAL 寫入 WAL 並刷入硬碟 (Critical Path)
func appendWAL(w *wal.WAL, tran *domain.Transaction) error {
	if w == nil {
		return nil
	}
	if err := w.Write(newWALRecord(tran)); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWALWriteFailed, err)
	}
	return nil
}

// recoverFromWAL 從 WAL 檔案恢復帳本狀態
// 只在建構時呼叫 (單執行緒)，不需要 Lock
// 全新的 WAL 會先寫入 genesis 記錄鎖定提款上限
//
// 回傳:
//
//	int: 恢復的交易筆數
//	error: 恢復過程錯誤 (WAL 損毀、上限不符或記錄與帳本規則不符)
func recoverFromWAL(w *wal.WAL, b *book) (int, error) {
	if w == nil {
		return 0, nil
	}
	count := 0
	genesis := false
	err := w.ReadAll(func(jsonRaw []byte) error {
		var record walRecord
		if err := json.Unmarshal(jsonRaw, &record); err != nil {
			return err
		}
		if record.Type == recordTypeGenesis {
			genesis = true
			if record.Limit != b.limit.Dec() {
				return fmt.Errorf("%w: wal has %s, configured %s", ErrLimitMismatch, record.Limit, b.limit.Dec())
			}
			return nil
		}
		tran, err := record.transaction()
		if err != nil {
			return err
		}
		if err := b.check(tran); err != nil {
			return fmt.Errorf("wal record seq %d: %w", record.Sequence, err)
		}
		if _, err := b.apply(tran); err != nil {
			return fmt.Errorf("wal record seq %d: %w", record.Sequence, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	if !genesis && count == 0 {
		record := walRecord{Type: recordTypeGenesis, Limit: b.limit.Dec(), CreatedAt: time.Now().UnixNano()}
		if err := w.Write(record); err != nil {
			return 0, err
		}
		if err := w.Flush(); err != nil {
			return 0, err
		}
	}
	return count, nil
}
