package solana

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/model"
)

// Client Solana 链客户端，持有金库密钥和两种代币的 mint 配置
type Client struct {
	rpc      *rpc.Client
	treasury solana.PrivateKey

	UsdcMint      solana.PublicKey
	IndexMint     solana.PublicKey
	UsdcDecimals  uint8
	IndexDecimals uint8
}

func Init(cfg config.SolanaConfig) (*Client, error) {
	if cfg.RpcURL == "" {
		return nil, fmt.Errorf("solana.rpc_url is empty in config")
	}

	// 解析金库私钥（base58）
	treasury, err := solana.PrivateKeyFromBase58(cfg.TreasurySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to parse treasury_secret as base58: %w", err)
	}

	usdcMint, err := solana.PublicKeyFromBase58(cfg.UsdcMint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse usdc_mint: %w", err)
	}

	indexMint, err := solana.PublicKeyFromBase58(cfg.IndexMint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index_mint: %w", err)
	}

	return &Client{
		rpc:           rpc.New(cfg.RpcURL),
		treasury:      treasury,
		UsdcMint:      usdcMint,
		IndexMint:     indexMint,
		UsdcDecimals:  cfg.UsdcDecimals,
		IndexDecimals: cfg.IndexDecimals,
	}, nil
}

// RPC 获取底层 RPC 客户端
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// TreasuryKey 金库私钥
func (c *Client) TreasuryKey() solana.PrivateKey {
	return c.treasury
}

// TreasuryAddress 金库公钥地址
func (c *Client) TreasuryAddress() solana.PublicKey {
	return c.treasury.PublicKey()
}

// PayoutMint 根据入金方向返回支付代币的 mint 和精度
// mint 方向存USDC付指数代币，burn 方向存指数代币付USDC
func (c *Client) PayoutMint(direction model.Direction) (solana.PublicKey, uint8) {
	if direction == model.DirectionMint {
		return c.IndexMint, c.IndexDecimals
	}
	return c.UsdcMint, c.UsdcDecimals
}

// TreasuryTokenAccount 金库在指定 mint 下的关联代币账户
func (c *Client) TreasuryTokenAccount(mint solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(c.treasury.PublicKey(), mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive treasury token account: %w", err)
	}
	return ata, nil
}

// LatestBlockhash 获取最新 blockhash
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}
