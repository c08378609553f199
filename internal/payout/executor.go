package payout

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	ata "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/muse0509/axis-settlement/internal/model"
	"github.com/muse0509/axis-settlement/internal/quote"
	solclient "github.com/muse0509/axis-settlement/internal/solana"
)

var (
	// ErrInvalidInput 入参非法（地址格式错、金额为零），不可重试
	ErrInvalidInput = errors.New("invalid payout input")
	// ErrSubmitFailed 交易提交失败（网络/余额类），是否重试由运维决定
	ErrSubmitFailed = errors.New("payout submission failed")
	// ErrTxFailed 交易上链但执行失败
	ErrTxFailed = errors.New("payout transaction failed on chain")
	// ErrConfirmTimeout 已提交但在期限内未观察到确认，结果不确定
	ErrConfirmTimeout = errors.New("payout confirmation timed out")
)

// Executor 出金执行器
//
// 返回出金交易签名。返回 ErrConfirmTimeout 时签名仍然有效：
// 交易已提交、不可撤销，只是确认未被观察到，由对账任务兜底。
type Executor interface {
	Execute(ctx context.Context, depositor string, amount float64, direction model.Direction) (string, error)
}

// SolanaExecutor 基于 SPL Token 的出金执行器
type SolanaExecutor struct {
	client *solclient.Client
	cfg    config.SolanaConfig
}

// NewSolanaExecutor 创建出金执行器
func NewSolanaExecutor(client *solclient.Client, cfg config.SolanaConfig) *SolanaExecutor {
	return &SolanaExecutor{client: client, cfg: cfg}
}

// Execute 解析目标账户、构建并提交 checked 转账、等待确认
func (e *SolanaExecutor) Execute(ctx context.Context, depositor string, amount float64, direction model.Direction) (string, error) {
	depositorPk, err := solana.PublicKeyFromBase58(depositor)
	if err != nil {
		return "", fmt.Errorf("%w: bad depositor address %q: %v", ErrInvalidInput, depositor, err)
	}

	mint, decimals := e.client.PayoutMint(direction)

	// 换算成最小单位，向零截断；截断后为零的金额不值得上链
	baseUnits := quote.ToBaseUnits(amount, decimals)
	if baseUnits == 0 {
		return "", fmt.Errorf("%w: payout amount %f truncates to zero base units", ErrInvalidInput, amount)
	}

	sourceAccount, err := e.client.TreasuryTokenAccount(mint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	destAccount, _, err := solana.FindAssociatedTokenAddress(depositorPk, mint)
	if err != nil {
		return "", fmt.Errorf("%w: derive destination token account: %v", ErrInvalidInput, err)
	}

	treasury := e.client.TreasuryAddress()

	instructions := []solana.Instruction{
		buildComputeUnitLimitInstruction(e.computeUnitCap()),
		buildComputeUnitPriceInstruction(e.priorityFee()),
	}

	// 惰性创建目标代币账户：已存在则跳过，创建即幂等
	exists, err := e.accountExists(ctx, destAccount)
	if err != nil {
		return "", fmt.Errorf("%w: check destination token account: %v", ErrSubmitFailed, err)
	}
	if !exists {
		createIx, err := ata.NewCreateInstruction(treasury, depositorPk, mint).ValidateAndBuild()
		if err != nil {
			return "", fmt.Errorf("%w: build create account instruction: %v", ErrInvalidInput, err)
		}
		instructions = append(instructions, createIx)
		logger.Info("Destination token account %s missing, will create", destAccount)
	}

	// checked 转账: mint、精度、金额全部显式，提交时链上交叉校验，
	// 不一致直接失败而不是错付
	transferIx, err := token.NewTransferCheckedInstruction(
		baseUnits,
		decimals,
		sourceAccount,
		mint,
		destAccount,
		treasury,
		nil,
	).ValidateAndBuild()
	if err != nil {
		return "", fmt.Errorf("%w: build transfer instruction: %v", ErrInvalidInput, err)
	}
	instructions = append(instructions, transferIx)

	blockhash, err := e.client.LatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(treasury))
	if err != nil {
		return "", fmt.Errorf("%w: build transaction: %v", ErrSubmitFailed, err)
	}

	treasuryKey := e.client.TreasuryKey()
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(treasury) {
			return &treasuryKey
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("%w: sign transaction: %v", ErrSubmitFailed, err)
	}

	sig, err := e.client.RPC().SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	logger.Info("Payout submitted: %s (%f %s to %s)", sig, amount, direction, depositor)

	// 一旦提交就不可撤销，确认阶段的错误不等于支付失败
	if err := e.awaitConfirmation(ctx, sig); err != nil {
		return sig.String(), err
	}

	logger.Info("Payout confirmed: %s", sig)
	return sig.String(), nil
}

// accountExists 查询账户是否已存在
func (e *SolanaExecutor) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	_, err := e.client.RPC().GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// awaitConfirmation 轮询签名状态直到确认或超时
func (e *SolanaExecutor) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	timeout := time.Duration(e.cfg.ConfirmTimeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	interval := time.Duration(e.cfg.ConfirmInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrConfirmTimeout, ctx.Err())
		case <-ticker.C:
			statuses, err := e.client.RPC().GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				logger.Warn("Failed to query signature status for %s: %v", sig, err)
			} else if len(statuses.Value) > 0 && statuses.Value[0] != nil {
				status := statuses.Value[0]
				if status.Err != nil {
					return fmt.Errorf("%w: %v", ErrTxFailed, status.Err)
				}
				if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
					status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
					return nil
				}
			}
			if time.Now().After(deadline) {
				return ErrConfirmTimeout
			}
		}
	}
}

func (e *SolanaExecutor) computeUnitCap() uint32 {
	if e.cfg.ComputeUnitCap > 0 {
		return e.cfg.ComputeUnitCap
	}
	return 200000
}

func (e *SolanaExecutor) priorityFee() uint64 {
	fee := e.cfg.PriorityFee
	if fee == 0 {
		fee = 5000
	}
	if e.cfg.MaxPriorityFee > 0 && fee > e.cfg.MaxPriorityFee {
		fee = e.cfg.MaxPriorityFee
	}
	return fee
}

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// buildComputeUnitLimitInstruction 设置计算单元限制
// 指令格式: discriminator 2 (SetComputeUnitLimit) + uint32 LE
func buildComputeUnitLimitInstruction(computeUnitLimit uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = 2
	binary.LittleEndian.PutUint32(data[1:5], computeUnitLimit)

	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}

// buildComputeUnitPriceInstruction 设置优先级费用
// 指令格式: discriminator 3 (SetComputeUnitPrice) + uint64 LE
func buildComputeUnitPriceInstruction(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], microLamports)

	return solana.NewInstruction(computeBudgetProgramID, solana.AccountMetaSlice{}, data)
}
