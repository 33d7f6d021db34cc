package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-vault/pkg/mysql"
)

const (
	// totalsBatchSize 計算總量時每批讀取的交易筆數
	totalsBatchSize = 1000
	// metaWithdrawalLimit vault_meta 中保存提款上限的鍵
	metaWithdrawalLimit = "withdrawal_limit"
)

// sqlAccount 對應資料庫的 vault_accounts 表
// uint256 超過 DECIMAL(65) 的範圍，餘額以十進位字串保存
type sqlAccount struct {
	Address   string `gorm:"primaryKey;type:char(42)"`
	Balance   string `gorm:"type:varchar(78);not null"`
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"` // 自動更新時間
}

func (*sqlAccount) TableName() string {
	return "vault_accounts"
}

// sqlTransaction 對應資料庫的 vault_transactions 表
type sqlTransaction struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	RefID       []byte `gorm:"column:ref_id;type:binary(16);uniqueIndex"` // 對應 domain.TransactionID
	ParentRefID []byte `gorm:"column:parent_ref_id;type:binary(16)"`
	Account     string `gorm:"type:char(42);index"`
	Amount      string `gorm:"type:varchar(78);not null"`
	Balance     string `gorm:"type:varchar(78);not null"` // 交易後餘額
	Type        uint8
	CreatedAt   int64 `gorm:"autoCreateTime:milli"` // 自動寫入時間
}

func (*sqlTransaction) TableName() string {
	return "vault_transactions"
}

// sqlMeta 對應 vault_meta 表，保存建立帳本時決定、之後不可變更的設定
type sqlMeta struct {
	Name  string `gorm:"primaryKey;type:varchar(64)"`
	Value string `gorm:"type:varchar(78);not null"`
}

func (*sqlMeta) TableName() string {
	return "vault_meta"
}

// MySQLLedger 以 MySQL 為狀態的帳本 (Level 0)
// 同一帳戶的寫入靠 SELECT ... FOR UPDATE 序列化
type MySQLLedger struct {
	client *mysql.Client
	limit  uint256.Int
	logger *zap.Logger
}

func NewMySQLLedger(client *mysql.Client, limit *uint256.Int, logger *zap.Logger) *MySQLLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := &MySQLLedger{
		client: client,
		logger: logger,
	}
	ledger.limit.Set(limit)
	return ledger
}

// Migrate 建立/更新資料表，並確認提款上限與帳本建立時相同
//
// 回傳:
//
//	error: 資料表建立失敗，或 domain.ErrLimitMismatch
func (ledger *MySQLLedger) Migrate(ctx context.Context) error {
	db := ledger.client.DB().WithContext(ctx)
	if err := db.AutoMigrate(&sqlAccount{}, &sqlTransaction{}, &sqlMeta{}); err != nil {
		return err
	}
	return ledger.checkLimit(db)
}

// checkLimit 第一次啟動時寫入提款上限，之後的啟動必須使用相同的上限
func (ledger *MySQLLedger) checkLimit(db *gorm.DB) error {
	var stored sqlMeta
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&sqlMeta{Name: metaWithdrawalLimit, Value: ledger.limit.Dec()}).Error; err != nil {
			return err
		}
		return tx.Where("name = ?", metaWithdrawalLimit).Take(&stored).Error
	})
	if err != nil {
		return err
	}
	return verifyLimit(stored.Value, &ledger.limit)
}

// verifyLimit 比對資料庫保存的提款上限
func verifyLimit(stored string, limit *uint256.Int) error {
	value, err := domain.ParseWei(stored)
	if err != nil {
		return fmt.Errorf("stored %s: %w", metaWithdrawalLimit, err)
	}
	if !value.Eq(limit) {
		return fmt.Errorf("%w: database has %s, configured %s", domain.ErrLimitMismatch, value.Dec(), limit.Dec())
	}
	return nil
}

// Deposit 存款
func (ledger *MySQLLedger) Deposit(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	// 先檢查金額，避免為 0 元存款開交易
	if tran.Amount == nil || tran.Amount.IsZero() {
		return nil, &domain.LedgerError{Kind: domain.ErrorKindZeroDeposit, Account: tran.Account}
	}
	return ledger.post(ctx, tran, true, func(account *domain.Account) (*uint256.Int, error) {
		return account.Deposit(tran.Amount)
	})
}

// Withdraw 檢查並扣款
func (ledger *MySQLLedger) Withdraw(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return ledger.post(ctx, tran, false, func(account *domain.Account) (*uint256.Int, error) {
		return account.Withdraw(tran.Amount, &ledger.limit)
	})
}

// RevertWithdrawal 沖回出金失敗的提款
func (ledger *MySQLLedger) RevertWithdrawal(ctx context.Context, tran *domain.Transaction) (*uint256.Int, error) {
	return ledger.post(ctx, tran, true, func(account *domain.Account) (*uint256.Int, error) {
		return account.Refund(tran.Amount)
	})
}

// post 在同一個 DB Transaction 內鎖定帳戶、套用規則、寫回餘額與交易紀錄
//
// 參數:
//
//	create: 帳戶不存在時是否建立 (存款/沖正)
//	apply: 對帳戶套用的業務規則
func (ledger *MySQLLedger) post(ctx context.Context, tran *domain.Transaction, create bool, apply func(*domain.Account) (*uint256.Int, error)) (*uint256.Int, error) {
	var balance *uint256.Int
	address := tran.Account.Hex()

	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if create {
			// 隱式建立帳戶，並發建立時由唯一鍵擋下
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&sqlAccount{Address: address, Balance: "0"}).Error; err != nil {
				return err
			}
		}

		// 悲觀鎖
		var row sqlAccount
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("address = ?", address).
			Take(&row).Error
		found := true
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = false
		} else if err != nil {
			return err
		}

		account := domain.NewAccount(tran.Account, nil)
		if found {
			if account, err = row.toDomain(); err != nil {
				return err
			}
		}

		balance, err = apply(account)
		if err != nil {
			return err
		}

		row.Address = address
		row.Balance = balance.Dec()
		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		record := newSQLTransaction(tran, balance)
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		tran.Sequence = uint64(record.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return balance, nil
}

// GetAccountBalance 取得帳戶餘額，未出現過的帳戶為 0
func (ledger *MySQLLedger) GetAccountBalance(ctx context.Context, account common.Address) (*uint256.Int, error) {
	var row sqlAccount
	err := ledger.client.DB().WithContext(ctx).Where("address = ?", account.Hex()).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	acc, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return acc.Balance.Clone(), nil
}

// WithdrawalLimit 單筆提款上限 (回傳複本)
func (ledger *MySQLLedger) WithdrawalLimit() *uint256.Int {
	return ledger.limit.Clone()
}

// Totals 由交易紀錄與帳戶表計算總量
// 兩次讀取在同一個唯讀交易內，看到同一份快照
func (ledger *MySQLLedger) Totals(ctx context.Context) (domain.Totals, error) {
	var totals domain.Totals
	err := ledger.client.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var transactions []sqlTransaction
		err := tx.Model(&sqlTransaction{}).
			Select("id", "type", "amount").
			FindInBatches(&transactions, totalsBatchSize, func(batchTx *gorm.DB, batch int) error {
				for _, record := range transactions {
					if err := record.addTo(&totals); err != nil {
						return err
					}
				}
				return nil
			}).Error
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrSelectTransactionFailed, err)
		}

		var accounts []sqlAccount
		if err := tx.Find(&accounts).Error; err != nil {
			return err
		}
		for _, row := range accounts {
			acc, err := row.toDomain()
			if err != nil {
				return err
			}
			totals.Balances.Add(&totals.Balances, &acc.Balance)
		}
		totals.Accounts = len(accounts)
		return nil
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.Totals{}, err
	}
	return totals, nil
}

func (row *sqlAccount) toDomain() (*domain.Account, error) {
	balance, err := domain.ParseWei(row.Balance)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", row.Address, err)
	}
	return domain.NewAccount(common.HexToAddress(row.Address), balance), nil
}

func newSQLTransaction(tran *domain.Transaction, balance *uint256.Int) sqlTransaction {
	record := sqlTransaction{
		RefID:   tran.TransactionID[:],
		Account: tran.Account.Hex(),
		Amount:  tran.Amount.Dec(),
		Balance: balance.Dec(),
		Type:    uint8(tran.Type),
	}
	if tran.Type == domain.TransactionTypeWithdrawRevert {
		record.ParentRefID = tran.ParentID[:]
	}
	return record
}

// addTo 累加到總量
func (record *sqlTransaction) addTo(totals *domain.Totals) error {
	amount, err := domain.ParseWei(record.Amount)
	if err != nil {
		return err
	}
	switch domain.TransactionType(record.Type) {
	case domain.TransactionTypeDeposit:
		totals.Deposited.Add(&totals.Deposited, amount)
	case domain.TransactionTypeWithdraw:
		totals.Withdrawn.Add(&totals.Withdrawn, amount)
	case domain.TransactionTypeWithdrawRevert:
		totals.Withdrawn.Sub(&totals.Withdrawn, amount)
	default:
		return fmt.Errorf("%w: %d", domain.ErrUnknownTransactionType, record.Type)
	}
	return nil
}

var _ usecase.Ledger = (*MySQLLedger)(nil)
