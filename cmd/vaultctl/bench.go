package main

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
)

var (
	totalFlag = cli.IntFlag{
		Name:  "total",
		Usage: "number of deposit/withdraw pairs to send",
		Value: 100000,
	}
	concurrencyFlag = cli.IntFlag{
		Name:  "concurrency",
		Usage: "number of in-flight requests",
		Value: 1000,
	}
	accountsFlag = cli.IntFlag{
		Name:  "accounts",
		Usage: "number of distinct caller accounts",
		Value: 100,
	}
	amountFlag = cli.StringFlag{
		Name:  "amount",
		Usage: "amount per request in native units",
		Value: "0.001",
	}
)

var BenchCmd = cli.Command{
	Action: doBench,
	Name:   "bench",
	Usage:  "send concurrent deposit + withdraw pairs and report throughput",
	Flags: []cli.Flag{
		&totalFlag,
		&concurrencyFlag,
		&accountsFlag,
		&amountFlag,
	},
}

func doBench(c *cli.Context) error {
	amount, err := domain.ParseUnits(c.String(amountFlag.Name))
	if err != nil {
		return err
	}
	totalCount := c.Int(totalFlag.Name)
	concurrency := c.Int(concurrencyFlag.Name)
	if totalCount <= 0 || concurrency <= 0 || c.Int(accountsFlag.Name) <= 0 {
		return fmt.Errorf("--%s, --%s and --%s must be positive", totalFlag.Name, concurrencyFlag.Name, accountsFlag.Name)
	}

	// 每次執行使用新的帳戶，避免受先前資料影響
	accounts := make([]common.Address, c.Int(accountsFlag.Name))
	for i := range accounts {
		id := uuid.New()
		accounts[i] = common.BytesToAddress(id[:])
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	var (
		wg       sync.WaitGroup
		failures atomic.Int64
	)
	wg.Add(totalCount)
	sem := make(chan struct{}, concurrency)

	startTime := time.Now()

	for i := 0; i < totalCount; i++ {
		sem <- struct{}{}

		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			caller := accounts[idx%len(accounts)]
			_, err := s.client.Deposit(s.ctx, caller, amount)
			if err == nil {
				_, err = s.client.Withdraw(s.ctx, caller, amount)
			}
			if err != nil {
				failures.Add(1)
				if idx%10000 == 0 {
					log.Printf("request %d failed: %v", idx, err)
				}
			}
		}(i)
	}

	wg.Wait()

	elapsed := time.Since(startTime)
	requests := 2 * totalCount
	fmt.Printf("Completed %d requests in %v (%d failed pairs)\n", requests, elapsed, failures.Load())
	fmt.Printf("TPS: %.2f\n", float64(requests)/elapsed.Seconds())
	return nil
}
