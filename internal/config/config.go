package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-mem-vault/internal/app/core/adapter/out/kafka"
	"github.com/JoeShih716/go-mem-vault/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-vault/pkg/logger"
	"github.com/JoeShih716/go-mem-vault/pkg/mysql"
)

// DefaultPath 預設設定檔位置
const DefaultPath = "config/config.yaml"

// Engine 帳本引擎種類
type Engine string

const (
	// Level 0: 直接以 MySQL 為狀態
	EngineMySQL Engine = "mysql"
	// Level 1: 記憶體 + Mutex
	EngineMutex Engine = "mutex"
	// Level 2: 記憶體 + LMAX 單執行緒輸送帶
	EngineLMAX Engine = "lmax"
)

// 環境變數覆寫 (可放在 .env)
const (
	EnvMySQLPassword = "VAULT_MYSQL_PASSWORD"
	EnvKafkaBrokers  = "VAULT_KAFKA_BROKERS"
	EnvLogLevel      = "VAULT_LOG_LEVEL"
)

type Config struct {
	Server ServerConfig  `yaml:"server"`
	Ledger LedgerConfig  `yaml:"ledger"`
	Payout PayoutConfig  `yaml:"payout"`
	MySQL  mysql.Config  `yaml:"mysql"`
	Kafka  kafka.Config  `yaml:"kafka"`
	Log    logger.Config `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LedgerConfig struct {
	Engine Engine `yaml:"engine"`
	// WithdrawalLimit 單筆提款上限，以原生單位表示 (例如 "1" 或 "0.5")
	WithdrawalLimit string `yaml:"withdrawal_limit"`
	// WALPath 記憶體引擎的 WAL 檔案，空字串表示不落地
	WALPath   string `yaml:"wal_path"`
	QueueSize int    `yaml:"queue_size"`
}

type PayoutConfig struct {
	// Fee 每筆出金的手續費，以原生單位表示
	Fee string `yaml:"fee"`
}

// Load 讀取設定檔
// 先載入 .env (不存在則略過)，再以環境變數覆寫，最後補上預設值並驗證
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfgData, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(cfgData)
}

// Parse 解析 YAML 設定
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvMySQLPassword); ok {
		c.MySQL.Password = v
	}
	if v, ok := os.LookupEnv(EnvKafkaBrokers); ok && v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// ApplyDefaults 補全預設配置
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":50051"
	}
	if c.Ledger.Engine == "" {
		c.Ledger.Engine = EngineMutex
	}
	if c.Ledger.WithdrawalLimit == "" {
		c.Ledger.WithdrawalLimit = "1"
	}
	if c.Payout.Fee == "" {
		c.Payout.Fee = "0"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Ledger.Engine == EngineMySQL {
		c.MySQL.ApplyDefaults()
	}
	if c.Kafka.Enabled {
		c.Kafka.ApplyDefaults()
	}
}

// Validate 驗證設定
func (c *Config) Validate() error {
	switch c.Ledger.Engine {
	case EngineMySQL, EngineMutex, EngineLMAX:
	default:
		return fmt.Errorf("invalid ledger engine %q", c.Ledger.Engine)
	}
	if _, err := c.WithdrawalLimit(); err != nil {
		return fmt.Errorf("invalid withdrawal_limit: %w", err)
	}
	if _, err := c.PayoutFee(); err != nil {
		return fmt.Errorf("invalid payout fee: %w", err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka enabled without brokers")
	}
	return nil
}

// WithdrawalLimit 以最小單位表示的提款上限
func (c *Config) WithdrawalLimit() (*uint256.Int, error) {
	return domain.ParseUnits(c.Ledger.WithdrawalLimit)
}

// PayoutFee 以最小單位表示的出金手續費
func (c *Config) PayoutFee() (*uint256.Int, error) {
	return domain.ParseUnits(c.Payout.Fee)
}
