package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpc_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/in/grpc"
	event_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/out/event"
	kafka_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/out/kafka"
	memory_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/out/mysql"
	wallet_adapter "github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/out/wallet"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-vault/internal/config"
	"github.com/JoeShih716/go-mem-vault/pkg/logger"
	"github.com/JoeShih716/go-mem-vault/pkg/mysql"
	"github.com/JoeShih716/go-mem-vault/pkg/wal"
)

// EnvConfigPath 覆寫設定檔位置
const EnvConfigPath = "VAULT_CONFIG"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// 1. 載入設定
	path := config.DefaultPath
	if v, ok := os.LookupEnv(EnvConfigPath); ok && v != "" {
		path = v
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	limit, err := cfg.WithdrawalLimit()
	if err != nil {
		return err
	}
	fee, err := cfg.PayoutFee()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳本
	ledger, cleanup, err := newLedger(ctx, cfg, limit, log)
	if err != nil {
		return err
	}
	defer cleanup()

	// 3. 出金與通知
	payout := wallet_adapter.New(wallet_adapter.WithFee(fee), wallet_adapter.WithLogger(log))

	var sinks []usecase.EventPublisher
	if cfg.Kafka.Enabled {
		publisher := kafka_adapter.NewPublisher(cfg.Kafka, log)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("failed to close kafka publisher", zap.Error(err))
			}
		}()
		sinks = append(sinks, publisher)
		log.Info("kafka notifications enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.Duration("batch_timeout", cfg.Kafka.BatchTimeout),
			zap.Bool("async", cfg.Kafka.Async),
		)
	}
	events := event_adapter.NewFanout(event_adapter.NewJournal(), log, sinks...)

	// 4. 初始化 UseCase
	coreUseCase := usecase.NewCoreUseCase(ledger, payout, events, log)

	// 5. 初始化 gRPC Adapter (Driving Adapter)
	server, healthServer := grpc_adapter.NewServer(grpc_adapter.NewGrpcServer(coreUseCase), log)

	// 6. 啟動 gRPC Server
	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting gRPC server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("engine", string(cfg.Ledger.Engine)),
			zap.String("withdrawal_limit", domain.FormatUnits(limit)),
		)
		serveErr <- server.Serve(lis)
	}()

	// Graceful Shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down server")
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	}

	healthServer.SetServingStatus(grpc_adapter.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	server.GracefulStop()

	totals, err := ledger.Totals(context.Background())
	if err != nil {
		log.Error("failed to read totals", zap.Error(err))
	} else {
		log.Info("server exited",
			zap.String("deposited", domain.FormatUnits(&totals.Deposited)),
			zap.String("withdrawn", domain.FormatUnits(&totals.Withdrawn)),
			zap.String("balances", domain.FormatUnits(&totals.Balances)),
			zap.Int("accounts", totals.Accounts),
			zap.Bool("conserved", totals.Conserved()),
		)
	}
	return nil
}

// newLedger 依設定建立帳本引擎，cleanup 在 gRPC Server 停止後呼叫
func newLedger(ctx context.Context, cfg config.Config, limit *uint256.Int, log *zap.Logger) (usecase.Ledger, func(), error) {
	switch cfg.Ledger.Engine {
	case config.EngineMySQL:
		dbClient, err := mysql.NewClient(cfg.MySQL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		ledger := mysql_adapter.NewMySQLLedger(dbClient, limit, log)
		if err := ledger.Migrate(ctx); err != nil {
			_ = dbClient.Close()
			return nil, nil, fmt.Errorf("failed to migrate: %w", err)
		}
		log.Info("connected to MySQL", zap.String("host", cfg.MySQL.Host))
		return ledger, func() { _ = dbClient.Close() }, nil

	case config.EngineMutex, config.EngineLMAX:
		var walFile *wal.WAL
		if cfg.Ledger.WALPath != "" {
			var err error
			walFile, err = wal.NewWAL(cfg.Ledger.WALPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to init WAL: %w", err)
			}
		}
		closeWAL := func() {
			if walFile == nil {
				return
			}
			if err := walFile.Close(); err != nil {
				log.Error("failed to close WAL", zap.Error(err))
			}
		}

		if cfg.Ledger.Engine == config.EngineMutex {
			ledger, err := memory_adapter.NewMutexLedger(limit, walFile, log)
			if err != nil {
				closeWAL()
				return nil, nil, err
			}
			return ledger, closeWAL, nil
		}

		ledger, err := memory_adapter.NewLMAXLedger(limit, walFile, cfg.Ledger.QueueSize, log)
		if err != nil {
			closeWAL()
			return nil, nil, err
		}
		// 輸送帶在 Server 停止後才結束，避免進行中的請求拿到 ErrLedgerClosed
		loopCtx, cancel := context.WithCancel(context.Background())
		ledger.Start(loopCtx)
		return ledger, func() {
			cancel()
			<-ledger.Done()
			closeWAL()
		}, nil
	}
	return nil, nil, errors.New("invalid ledger engine: " + string(cfg.Ledger.Engine))
}
