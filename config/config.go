package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerConfig       ServerConfig       `json:"server"`
	DatabaseConfig     DatabaseConfig     `json:"database"`
	AuthConfig         AuthConfig         `json:"auth"`
	RedisConfig        RedisConfig        `json:"redis"`
	VaultConfig        VaultConfig        `json:"vault"`
	BSCConfig          BSCConfig          `json:"bsc"`
	DistributionConfig DistributionConfig `json:"distribution"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// AuthConfig holds JWT authentication settings
type AuthConfig struct {
	JWTSecret            string        `json:"jwt_secret"`
	AccessTokenDuration  time.Duration `json:"access_token_duration"`
	RefreshTokenDuration time.Duration `json:"refresh_token_duration"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// BSCConfig holds the on-chain withdrawal gateway settings.
// Everything except GasLimit and TransferTimeout is required when the
// gateway is enabled; Validate enforces that at startup.
type BSCConfig struct {
	Enabled                   bool          `json:"enabled"`
	RPCURL                    string        `json:"rpc_url"`
	ChainID                   int64         `json:"chain_id"`
	PaymentContractAddress    string        `json:"payment_contract_address"`
	StablecoinContractAddress string        `json:"stablecoin_contract_address"`
	AdminFeeWallet            string        `json:"admin_fee_wallet"`
	GlobalAdminWallet         string        `json:"global_admin_wallet"`
	PrivateKey                string        `json:"-"` // env or Vault only, never the config file
	GasLimit                  uint64        `json:"gas_limit"`
	TransferTimeout           time.Duration `json:"transfer_timeout"`
}

// DistributionConfig controls the profit distribution engine.
// Grain decides both the period-key format and the accrual divisor, so the
// idempotency boundary always matches the accrual cadence.
type DistributionConfig struct {
	Grain      string `json:"grain"` // "daily" or "hourly"
	CronSpec   string `json:"cron_spec"`
	CronSecret string `json:"cron_secret"`
	RunOnStart bool   `json:"run_on_start"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// Load reads config.json if present, then applies environment variable
// overrides (these take precedence), then fills remaining defaults.
// A missing config.json is fine; a malformed one is a startup error.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	if v := os.Getenv("PRODUCTION_MODE"); v != "" {
		cfg.ServerConfig.ProductionMode = v == "true"
	}

	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	// Auth
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("JWT_ACCESS_DURATION", cfg.AuthConfig.AccessTokenDuration)
	cfg.AuthConfig.RefreshTokenDuration = getEnvDurationOrDefault("JWT_REFRESH_DURATION", cfg.AuthConfig.RefreshTokenDuration)

	// Redis
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Vault
	if v := os.Getenv("VAULT_ENABLED"); v != "" {
		cfg.VaultConfig.Enabled = v == "true"
	}
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)

	// BSC gateway
	if v := os.Getenv("BSC_ENABLED"); v != "" {
		cfg.BSCConfig.Enabled = v == "true"
	}
	cfg.BSCConfig.RPCURL = getEnvOrDefault("BSC_RPC_URL", cfg.BSCConfig.RPCURL)
	cfg.BSCConfig.ChainID = int64(getEnvIntOrDefault("BSC_CHAIN_ID", int(cfg.BSCConfig.ChainID)))
	cfg.BSCConfig.PaymentContractAddress = getEnvOrDefault("PAYMENT_CONTRACT_ADDRESS", cfg.BSCConfig.PaymentContractAddress)
	cfg.BSCConfig.StablecoinContractAddress = getEnvOrDefault("USDT_CONTRACT_ADDRESS", cfg.BSCConfig.StablecoinContractAddress)
	cfg.BSCConfig.AdminFeeWallet = getEnvOrDefault("ADMIN_FEE_WALLET", cfg.BSCConfig.AdminFeeWallet)
	cfg.BSCConfig.GlobalAdminWallet = getEnvOrDefault("GLOBAL_ADMIN_WALLET", cfg.BSCConfig.GlobalAdminWallet)
	cfg.BSCConfig.PrivateKey = getEnvOrDefault("BSC_PRIVATE_KEY", cfg.BSCConfig.PrivateKey)
	cfg.BSCConfig.TransferTimeout = getEnvDurationOrDefault("BSC_TRANSFER_TIMEOUT", cfg.BSCConfig.TransferTimeout)

	// Distribution
	cfg.DistributionConfig.Grain = getEnvOrDefault("DISTRIBUTION_GRAIN", cfg.DistributionConfig.Grain)
	cfg.DistributionConfig.CronSpec = getEnvOrDefault("DISTRIBUTION_CRON", cfg.DistributionConfig.CronSpec)
	cfg.DistributionConfig.CronSecret = getEnvOrDefault("CRON_SECRET", cfg.DistributionConfig.CronSecret)
	if v := os.Getenv("DISTRIBUTION_RUN_ON_START"); v != "" {
		cfg.DistributionConfig.RunOnStart = v == "true"
	}

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LoggingConfig.Pretty = v == "true"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.AuthConfig.AccessTokenDuration == 0 {
		cfg.AuthConfig.AccessTokenDuration = 15 * time.Minute
	}
	if cfg.AuthConfig.RefreshTokenDuration == 0 {
		cfg.AuthConfig.RefreshTokenDuration = 7 * 24 * time.Hour
	}
	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}
	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.BSCConfig.RPCURL == "" {
		cfg.BSCConfig.RPCURL = "https://bsc-dataseed1.binance.org/"
	}
	if cfg.BSCConfig.ChainID == 0 {
		cfg.BSCConfig.ChainID = 56
	}
	if cfg.BSCConfig.StablecoinContractAddress == "" {
		cfg.BSCConfig.StablecoinContractAddress = "0x55d398326f99059fF775485246999027B3197955"
	}
	if cfg.BSCConfig.GasLimit == 0 {
		cfg.BSCConfig.GasLimit = 100000
	}
	if cfg.BSCConfig.TransferTimeout == 0 {
		cfg.BSCConfig.TransferTimeout = 90 * time.Second
	}
	if cfg.DistributionConfig.Grain == "" {
		cfg.DistributionConfig.Grain = "hourly"
	}
	if cfg.DistributionConfig.CronSpec == "" {
		cfg.DistributionConfig.CronSpec = "0 * * * *"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

// Validate fails fast on configuration that would otherwise surface as
// runtime failures deep inside the withdrawal or distribution paths.
func (c *Config) Validate() error {
	if c.AuthConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.DistributionConfig.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if g := c.DistributionConfig.Grain; g != "daily" && g != "hourly" {
		return fmt.Errorf("distribution grain must be \"daily\" or \"hourly\", got %q", g)
	}

	if c.BSCConfig.Enabled {
		required := []struct{ name, value string }{
			{"BSC_RPC_URL", c.BSCConfig.RPCURL},
			{"PAYMENT_CONTRACT_ADDRESS", c.BSCConfig.PaymentContractAddress},
			{"USDT_CONTRACT_ADDRESS", c.BSCConfig.StablecoinContractAddress},
			{"ADMIN_FEE_WALLET", c.BSCConfig.AdminFeeWallet},
			{"GLOBAL_ADMIN_WALLET", c.BSCConfig.GlobalAdminWallet},
		}
		for _, r := range required {
			if r.value == "" {
				return fmt.Errorf("%s is required when the BSC gateway is enabled", r.name)
			}
		}
		if c.BSCConfig.PrivateKey == "" && !c.VaultConfig.Enabled {
			return fmt.Errorf("BSC_PRIVATE_KEY is required when the BSC gateway is enabled and Vault is disabled")
		}
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
