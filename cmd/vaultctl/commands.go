package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	grpc_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	vaultgrpc "github.com/JoeShih716/go-mem-vault/pkg/grpc"
)

var DepositCmd = cli.Command{
	Action:    doDeposit,
	Name:      "deposit",
	Usage:     "deposit native units into the caller's account",
	ArgsUsage: "<amount>",
}

var WithdrawCmd = cli.Command{
	Action:    doWithdraw,
	Name:      "withdraw",
	Usage:     "withdraw native units from the caller's account",
	ArgsUsage: "<amount>",
}

var BalanceCmd = cli.Command{
	Action:    doBalance,
	Name:      "balance",
	Usage:     "show the balance of an account",
	ArgsUsage: "<address>",
}

var MyBalanceCmd = cli.Command{
	Action: doMyBalance,
	Name:   "my-balance",
	Usage:  "show the caller's balance",
}

var LimitCmd = cli.Command{
	Action: doLimit,
	Name:   "limit",
	Usage:  "show the per-call withdrawal limit",
}

// session 一次指令執行所需的連線與上下文
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *vaultgrpc.Pool
	client *grpc_adapter.Client
}

func openSession(c *cli.Context) (*session, error) {
	pool := vaultgrpc.NewPool()
	conn, err := pool.GetConnection(c.String(addrFlag.Name))
	if err != nil {
		return nil, err
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := c.Duration(timeoutFlag.Name); timeout > 0 {
		ctx, cancel = context.WithTimeout(c.Context, timeout)
	} else {
		ctx, cancel = context.WithCancel(c.Context)
	}
	return &session{
		ctx:    ctx,
		cancel: cancel,
		pool:   pool,
		client: grpc_adapter.NewClient(conn),
	}, nil
}

func (s *session) Close() {
	s.cancel()
	_ = s.pool.Close()
}

func callerOf(c *cli.Context) (common.Address, error) {
	if !c.IsSet(callerFlag.Name) {
		return common.Address{}, fmt.Errorf("you need to specify --%s", callerFlag.Name)
	}
	return domain.ParseAddress(c.String(callerFlag.Name))
}

func printReceipt(r domain.Receipt) {
	fmt.Printf("tx:      %s\n", r.TransactionID)
	fmt.Printf("account: %s\n", r.Account.Hex())
	fmt.Printf("amount:  %s\n", domain.FormatUnits(r.Amount))
	fmt.Printf("balance: %s\n", domain.FormatUnits(r.NewBalance))
}

func doDeposit(c *cli.Context) error {
	return doTransfer(c, func(s *session, caller common.Address, amount string) (domain.Receipt, error) {
		value, err := domain.ParseUnits(amount)
		if err != nil {
			return domain.Receipt{}, err
		}
		return s.client.Deposit(s.ctx, caller, value)
	})
}

func doWithdraw(c *cli.Context) error {
	return doTransfer(c, func(s *session, caller common.Address, amount string) (domain.Receipt, error) {
		value, err := domain.ParseUnits(amount)
		if err != nil {
			return domain.Receipt{}, err
		}
		return s.client.Withdraw(s.ctx, caller, value)
	})
}

func doTransfer(c *cli.Context, call func(*session, common.Address, string) (domain.Receipt, error)) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("missing amount parameter")
	}
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	receipt, err := call(s, caller, c.Args().Get(0))
	if err != nil {
		if kind := domain.KindOf(err); kind != domain.ErrorKindUnknown {
			return fmt.Errorf("%s: %w", kind, err)
		}
		return err
	}
	printReceipt(receipt)
	return nil
}

func doBalance(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("missing address parameter")
	}
	account, err := domain.ParseAddress(c.Args().Get(0))
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	balance, err := s.client.GetBalance(s.ctx, account)
	if err != nil {
		return err
	}
	fmt.Println(domain.FormatUnits(balance))
	return nil
}

func doMyBalance(c *cli.Context) error {
	caller, err := callerOf(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	balance, err := s.client.GetMyBalance(s.ctx, caller)
	if err != nil {
		return err
	}
	fmt.Println(domain.FormatUnits(balance))
	return nil
}

func doLimit(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	limit, err := s.client.GetWithdrawalLimit(s.ctx)
	if err != nil {
		return err
	}
	fmt.Println(domain.FormatUnits(limit))
	return nil
}
