// Package bsc is the on-chain transfer gateway for withdrawals: a narrow
// wrapper around a BEP-20 token transfer on BNB Smart Chain.
package bsc

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bsc-invest-platform/config"
)

// tokenDecimals is the decimal scale of USDT on BSC.
const tokenDecimals = 18

// transferMethodID is the 4-byte selector of transfer(address,uint256).
var transferMethodID = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// Gateway sends stablecoin transfers from the platform hot wallet.
type Gateway struct {
	client   *ethclient.Client
	key      *ecdsa.PrivateKey
	from     common.Address
	token    common.Address
	chainID  *big.Int
	gasLimit uint64
	logger   zerolog.Logger
}

// NewGateway constructs a gateway from the BSC configuration and the signing
// key (hex, fetched from Vault or environment by the caller).
func NewGateway(cfg config.BSCConfig, privateKeyHex string, logger zerolog.Logger) (*Gateway, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid BSC private key: %w", err)
	}

	if !common.IsHexAddress(cfg.StablecoinContractAddress) {
		return nil, fmt.Errorf("invalid stablecoin contract address %q", cfg.StablecoinContractAddress)
	}

	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial BSC RPC %s: %w", cfg.RPCURL, err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)

	g := &Gateway{
		client:   client,
		key:      key,
		from:     from,
		token:    common.HexToAddress(cfg.StablecoinContractAddress),
		chainID:  big.NewInt(cfg.ChainID),
		gasLimit: cfg.GasLimit,
		logger:   logger.With().Str("component", "bsc-gateway").Logger(),
	}

	g.logger.Info().
		Str("rpc", cfg.RPCURL).
		Str("hot_wallet", from.Hex()).
		Str("token", g.token.Hex()).
		Int64("chain_id", cfg.ChainID).
		Msg("BSC gateway initialized")

	return g, nil
}

// Close releases the RPC connection.
func (g *Gateway) Close() {
	g.client.Close()
}

// Transfer sends amount of the stablecoin to the destination address and
// returns the transaction hash. The caller supplies the deadline via ctx;
// every RPC round trip below honors it.
func (g *Gateway) Transfer(ctx context.Context, to string, amount decimal.Decimal) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid destination address %q", to)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	value := amount.Shift(tokenDecimals).BigInt()
	data := packTransfer(common.HexToAddress(to), value)

	tx := types.NewTransaction(nonce, g.token, big.NewInt(0), g.gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	g.logger.Info().
		Str("to", to).
		Str("amount", amount.String()).
		Str("tx_hash", hash).
		Msg("token transfer broadcast")

	return hash, nil
}

// packTransfer builds the calldata for transfer(address,uint256).
func packTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferMethodID...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// IsValidAddress reports whether s is a syntactically valid BSC address.
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}
