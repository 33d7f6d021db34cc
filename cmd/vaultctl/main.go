package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./cmd/vaultctl --caller <address> <command> <args>

var (
	addrFlag = cli.StringFlag{
		Name:    "addr",
		Usage:   "vault gRPC server address",
		Value:   "localhost:50051",
		EnvVars: []string{"VAULT_ADDR"},
	}
	callerFlag = cli.StringFlag{
		Name:    "caller",
		Usage:   "caller account address (0x...)",
		EnvVars: []string{"VAULT_CALLER"},
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Usage: "per-command timeout",
		Value: 0,
	}
)

func main() {
	app := &cli.App{
		Name:  "vaultctl",
		Usage: "custodial vault client",
		Flags: []cli.Flag{
			&addrFlag,
			&callerFlag,
			&timeoutFlag,
		},
		Commands: []*cli.Command{
			&DepositCmd,
			&WithdrawCmd,
			&BalanceCmd,
			&MyBalanceCmd,
			&LimitCmd,
			&BenchCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
