package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bsc-invest-platform/config"
	"bsc-invest-platform/internal/api"
	"bsc-invest-platform/internal/auth"
	"bsc-invest-platform/internal/bsc"
	"bsc-invest-platform/internal/cache"
	"bsc-invest-platform/internal/database"
	"bsc-invest-platform/internal/ledger"
	"bsc-invest-platform/internal/scheduler"
	"bsc-invest-platform/internal/vault"
)

// signingKeyName is the Vault slot for the hot wallet key.
const signingKeyName = "bsc-hot-wallet"

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LoggingConfig)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	// Database + migrations
	db, err := database.NewDB(cfg.DatabaseConfig, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := database.NewRepository(db)

	if err := auth.SeedAdminUser(ctx, repo, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to seed admin user")
	}

	// Vault (optional) supplies the signing key when the env does not
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create vault client")
	}

	gateway, err := buildGateway(ctx, cfg, vaultClient, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize BSC gateway")
	}

	// Ledger services
	grain, err := ledger.ParseGrain(cfg.DistributionConfig.Grain)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid distribution grain")
	}

	distributor := ledger.NewDistributor(repo, grain, logger)
	withdrawals := ledger.NewWithdrawalService(repo, gateway, bsc.IsValidAddress, cfg.BSCConfig.TransferTimeout, logger)

	// Redis cache (optional)
	var cacheService *cache.CacheService
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewCacheService(cfg.RedisConfig, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("cache disabled")
			cacheService = nil
		} else {
			defer cacheService.Close()
		}
	}

	// Auth stack
	jwtManager := auth.NewJWTManager(
		cfg.AuthConfig.JWTSecret,
		cfg.AuthConfig.AccessTokenDuration,
		cfg.AuthConfig.RefreshTokenDuration,
	)
	authService := auth.NewService(repo, jwtManager, logger)
	authMiddleware := auth.NewMiddleware(jwtManager)

	// Cron-driven distribution
	var invalidator scheduler.CycleInvalidator
	if cacheService != nil {
		invalidator = cacheService
	}
	distScheduler := scheduler.NewDistributionScheduler(
		distributor,
		invalidator,
		cfg.DistributionConfig.CronSpec,
		cfg.DistributionConfig.RunOnStart,
		logger,
	)
	if err := distScheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start distribution scheduler")
	}
	defer distScheduler.Stop()

	// HTTP API
	server := api.NewServer(
		api.ServerConfig{
			Port:           cfg.ServerConfig.Port,
			Host:           cfg.ServerConfig.Host,
			ProductionMode: cfg.ServerConfig.ProductionMode,
			CronSecret:     cfg.DistributionConfig.CronSecret,
		},
		repo,
		withdrawals,
		distributor,
		authService,
		authMiddleware,
		cacheService,
		logger,
	)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.Info().
		Str("grain", string(grain)).
		Bool("bsc_enabled", cfg.BSCConfig.Enabled).
		Msg("platform started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// buildGateway resolves the signing key (env first, then Vault) and dials
// the chain. When the gateway is disabled, approvals get a stub that fails
// every transfer so the workflow rejects-and-refunds instead of paying out.
func buildGateway(ctx context.Context, cfg *config.Config, vaultClient *vault.Client, logger zerolog.Logger) (ledger.TransferGateway, error) {
	if !cfg.BSCConfig.Enabled {
		logger.Warn().Msg("BSC gateway disabled, withdrawal approvals will be rejected")
		return disabledGateway{}, nil
	}

	privateKey := cfg.BSCConfig.PrivateKey
	if privateKey == "" && vaultClient.IsEnabled() {
		key, err := vaultClient.GetSigningKey(ctx, signingKeyName)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch signing key from vault: %w", err)
		}
		privateKey = key
	}

	return bsc.NewGateway(cfg.BSCConfig, privateKey, logger)
}

type disabledGateway struct{}

func (disabledGateway) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	return "", fmt.Errorf("on-chain gateway is disabled")
}
