package domain

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func TestAccount_Deposit(t *testing.T) {
	account := NewAccount(testAddr, nil)

	balance, err := account.Deposit(MustParseUnits("0.3"))
	require.NoError(t, err)
	assert.Equal(t, MustParseUnits("0.3"), balance)

	balance, err = account.Deposit(MustParseUnits("0.2"))
	require.NoError(t, err)
	assert.Equal(t, MustParseUnits("0.5"), balance)
}

func TestAccount_DepositZero(t *testing.T) {
	account := NewAccount(testAddr, MustParseUnits("1"))

	_, err := account.Deposit(new(uint256.Int))
	require.ErrorIs(t, err, ErrZeroDeposit)
	assert.Equal(t, ErrorKindZeroDeposit, KindOf(err))
	assert.Equal(t, MustParseUnits("1"), &account.Balance)

	_, err = account.Deposit(nil)
	require.ErrorIs(t, err, ErrZeroDeposit)
}

func TestAccount_DepositOverflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	account := NewAccount(testAddr, max)

	_, err := account.Deposit(uint256.NewInt(1))
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, max, &account.Balance)
}

func TestAccount_WithdrawCheckOrder(t *testing.T) {
	limit := MustParseUnits("1")

	tests := []struct {
		name    string
		balance string
		amount  string
		want    error
	}{
		{name: "zero on empty account", balance: "0", amount: "0", want: ErrZeroWithdrawal},
		{name: "zero on funded account", balance: "0.5", amount: "0", want: ErrZeroWithdrawal},
		{name: "more than balance", balance: "0.5", amount: "0.6", want: ErrInsufficientBalance},
		// 同時超過餘額與上限時，餘額檢查優先
		{name: "more than balance and limit", balance: "0.5", amount: "1.5", want: ErrInsufficientBalance},
		{name: "more than limit", balance: "2", amount: "1.1", want: ErrWithdrawalLimitExceeded},
		{name: "exactly the limit", balance: "2", amount: "1"},
		{name: "whole balance", balance: "0.5", amount: "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := NewAccount(testAddr, MustParseUnits(tt.balance))
			before := account.Balance

			balance, err := account.Withdraw(MustParseUnits(tt.amount), limit)
			if tt.want != nil {
				require.ErrorIs(t, err, tt.want)
				assert.Nil(t, balance)
				assert.Equal(t, before, account.Balance)
				return
			}
			require.NoError(t, err)
			want := new(uint256.Int).Sub(MustParseUnits(tt.balance), MustParseUnits(tt.amount))
			assert.Equal(t, want, balance)
			assert.Equal(t, want, &account.Balance)
		})
	}
}

func TestAccount_ReturnedBalanceIsCopy(t *testing.T) {
	account := NewAccount(testAddr, nil)
	balance, err := account.Deposit(uint256.NewInt(10))
	require.NoError(t, err)

	balance.SetUint64(999)
	assert.Equal(t, uint64(10), account.Balance.Uint64())
}

func TestAccount_Refund(t *testing.T) {
	account := NewAccount(testAddr, MustParseUnits("0.2"))
	balance, err := account.Refund(MustParseUnits("0.3"))
	require.NoError(t, err)
	assert.Equal(t, MustParseUnits("0.5"), balance)
}

func TestLedgerError_Message(t *testing.T) {
	err := NewAccount(testAddr, uint256.NewInt(5)).CheckWithdraw(uint256.NewInt(6), uint256.NewInt(100))
	assert.EqualError(t, err, "insufficient balance: account "+testAddr.Hex()+" has 5, requested 6")

	err = NewAccount(testAddr, uint256.NewInt(500)).CheckWithdraw(uint256.NewInt(101), uint256.NewInt(100))
	assert.EqualError(t, err, "withdrawal limit exceeded: requested 101, limit 100")

	cause := errors.New("connection reset")
	err = &LedgerError{Kind: ErrorKindTransferFailed, Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.NotErrorIs(t, err, ErrInsufficientBalance)
}

func TestErrorKind_RoundTrip(t *testing.T) {
	for kind := ErrorKindZeroDeposit; kind <= ErrorKindBalanceOverflow; kind++ {
		assert.Equal(t, kind, ParseErrorKind(kind.String()))
		assert.Equal(t, kind, KindOf(Sentinel(kind)))
	}
	assert.Equal(t, ErrorKindUnknown, ParseErrorKind("Reentrancy"))
	assert.Equal(t, ErrorKindUnknown, KindOf(errors.New("boom")))
	assert.Nil(t, Sentinel(ErrorKindUnknown))
}
