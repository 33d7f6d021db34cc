package mysql

import (
	"context"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/pkg/mysql"
)

// startMySQL 啟動一次性的 MySQL 容器，沒有 Docker 時略過
func startMySQL(t *testing.T) *mysql.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MySQL engine tests in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := tcmysql.Run(ctx,
		"mysql:8.0.36",
		tcmysql.WithDatabase("vault"),
		tcmysql.WithUsername("vault"),
		tcmysql.WithPassword("vault"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "charset=utf8mb4", "parseTime=True", "loc=Local")
	require.NoError(t, err)

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	client := mysql.NewClientFromDB(db)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newEngine(t *testing.T, client *mysql.Client) *MySQLLedger {
	t.Helper()
	ledger := NewMySQLLedger(client, domain.MustParseUnits("1"), nil)
	require.NoError(t, ledger.Migrate(context.Background()))
	return ledger
}

func balanceOf(t *testing.T, ledger *MySQLLedger, account common.Address) *uint256.Int {
	t.Helper()
	balance, err := ledger.GetAccountBalance(context.Background(), account)
	require.NoError(t, err)
	return balance
}

func countRows(t *testing.T, client *mysql.Client, account common.Address) int64 {
	t.Helper()
	var n int64
	require.NoError(t, client.DB().Model(&sqlTransaction{}).Where("account = ?", account.Hex()).Count(&n).Error)
	return n
}

func TestMySQLLedger_Engine(t *testing.T) {
	client := startMySQL(t)
	ledger := newEngine(t, client)
	ctx := context.Background()

	t.Run("deposit and withdraw", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c01")

		deposit := domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("1"))
		balance, err := ledger.Deposit(ctx, deposit)
		require.NoError(t, err)
		assert.Equal(t, domain.MustParseUnits("1"), balance)
		assert.NotZero(t, deposit.Sequence)

		withdraw := domain.NewTransaction(domain.TransactionTypeWithdraw, account, domain.MustParseUnits("0.4"))
		balance, err = ledger.Withdraw(ctx, withdraw)
		require.NoError(t, err)
		assert.Equal(t, domain.MustParseUnits("0.6"), balance)
		assert.Greater(t, withdraw.Sequence, deposit.Sequence)

		assert.Equal(t, domain.MustParseUnits("0.6"), balanceOf(t, ledger, account))
		assert.Equal(t, int64(2), countRows(t, client, account))
	})

	t.Run("rejections leave the account unchanged", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c02")
		_, err := ledger.Deposit(ctx, domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("0.5")))
		require.NoError(t, err)

		tests := []struct {
			name   string
			amount *uint256.Int
			target error
		}{
			{"zero", new(uint256.Int), domain.ErrZeroWithdrawal},
			// 餘額不足先於上限檢查
			{"insufficient and over limit", domain.MustParseUnits("2"), domain.ErrInsufficientBalance},
			{"insufficient", domain.MustParseUnits("0.6"), domain.ErrInsufficientBalance},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ledger.Withdraw(ctx, domain.NewTransaction(domain.TransactionTypeWithdraw, account, tt.amount))
				assert.ErrorIs(t, err, tt.target)
			})
		}

		assert.Equal(t, domain.MustParseUnits("0.5"), balanceOf(t, ledger, account))
		assert.Equal(t, int64(1), countRows(t, client, account))
	})

	t.Run("over limit with enough balance", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c03")
		for i := 0; i < 2; i++ {
			_, err := ledger.Deposit(ctx, domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("1")))
			require.NoError(t, err)
		}

		_, err := ledger.Withdraw(ctx, domain.NewTransaction(domain.TransactionTypeWithdraw, account, domain.MustParseUnits("1.5")))
		assert.ErrorIs(t, err, domain.ErrWithdrawalLimitExceeded)

		_, err = ledger.Withdraw(ctx, domain.NewTransaction(domain.TransactionTypeWithdraw, account, domain.MustParseUnits("1")))
		require.NoError(t, err)
		assert.Equal(t, domain.MustParseUnits("1"), balanceOf(t, ledger, account))
	})

	t.Run("unknown account is not created by a withdrawal", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c04")
		_, err := ledger.Withdraw(ctx, domain.NewTransaction(domain.TransactionTypeWithdraw, account, domain.MustParseUnits("0.1")))
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		var n int64
		require.NoError(t, client.DB().Model(&sqlAccount{}).Where("address = ?", account.Hex()).Count(&n).Error)
		assert.Zero(t, n)
		assert.True(t, balanceOf(t, ledger, account).IsZero())
	})

	t.Run("revert restores the balance", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c05")
		_, err := ledger.Deposit(ctx, domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("0.8")))
		require.NoError(t, err)

		withdraw := domain.NewTransaction(domain.TransactionTypeWithdraw, account, domain.MustParseUnits("0.3"))
		_, err = ledger.Withdraw(ctx, withdraw)
		require.NoError(t, err)

		balance, err := ledger.RevertWithdrawal(ctx, withdraw.Revert())
		require.NoError(t, err)
		assert.Equal(t, domain.MustParseUnits("0.8"), balance)
		assert.Equal(t, domain.MustParseUnits("0.8"), balanceOf(t, ledger, account))

		var row sqlTransaction
		require.NoError(t, client.DB().
			Where("account = ? AND type = ?", account.Hex(), uint8(domain.TransactionTypeWithdrawRevert)).
			Take(&row).Error)
		assert.Equal(t, withdraw.TransactionID[:], row.ParentRefID)
		assert.Equal(t, "800000000000000000", row.Balance)
	})

	t.Run("concurrent writes conserve totals", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c06")
		_, err := ledger.Deposit(ctx, domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("0.5")))
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = ledger.Deposit(ctx, domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("0.1")))
				_, _ = ledger.Withdraw(ctx, domain.NewTransaction(domain.TransactionTypeWithdraw, account, domain.MustParseUnits("0.05")))
			}()
		}
		wg.Wait()
		assert.Equal(t, domain.MustParseUnits("1.5"), balanceOf(t, ledger, account))

		totals, err := ledger.Totals(ctx)
		require.NoError(t, err)
		assert.True(t, totals.Conserved())
		assert.False(t, totals.Deposited.IsZero())
		assert.NotZero(t, totals.Accounts)
	})

	t.Run("totals are consistent while writes are in flight", func(t *testing.T) {
		account := common.HexToAddress("0x0000000000000000000000000000000000000c07")
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 50; i++ {
				_, _ = ledger.Deposit(ctx, domain.NewTransaction(domain.TransactionTypeDeposit, account, domain.MustParseUnits("0.01")))
			}
		}()

		for {
			totals, err := ledger.Totals(ctx)
			require.NoError(t, err)
			require.True(t, totals.Conserved())
			select {
			case <-done:
				return
			default:
			}
		}
	})
}

func TestMySQLLedger_PersistsWithdrawalLimit(t *testing.T) {
	client := startMySQL(t)
	ctx := context.Background()
	newEngine(t, client)

	// 相同上限可重複啟動
	require.NoError(t, NewMySQLLedger(client, domain.MustParseUnits("1"), nil).Migrate(ctx))

	err := NewMySQLLedger(client, domain.MustParseUnits("2"), nil).Migrate(ctx)
	assert.ErrorIs(t, err, domain.ErrLimitMismatch)
}
