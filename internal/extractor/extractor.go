package extractor

import (
	"math"
	"strconv"

	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/muse0509/axis-settlement/internal/model"
)

// RawEvent webhook 投递的原始事件
// 两种已知形态显式建模：tokenTransfers 列表和 accountData 余额变动
type RawEvent struct {
	Signature      string          `json:"signature"`
	Type           string          `json:"type,omitempty"`
	FeePayer       string          `json:"feePayer,omitempty"`
	TokenTransfers []TokenTransfer `json:"tokenTransfers,omitempty"`
	AccountData    []AccountData   `json:"accountData,omitempty"`
}

// TokenTransfer 代币转账记录，金额已是UI单位
type TokenTransfer struct {
	FromUserAccount string  `json:"fromUserAccount"`
	ToUserAccount   string  `json:"toUserAccount"`
	Mint            string  `json:"mint"`
	TokenAmount     float64 `json:"tokenAmount"`
}

// AccountData 单账户数据，含嵌套余额变动
type AccountData struct {
	Account             string               `json:"account"`
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges,omitempty"`
}

// TokenBalanceChange 代币余额变动，金额为最小单位字符串
type TokenBalanceChange struct {
	Mint           string         `json:"mint"`
	TokenAccount   string         `json:"tokenAccount"`
	UserAccount    string         `json:"userAccount"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount 最小单位金额和精度
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    uint8  `json:"decimals"`
}

// Extractor 入金事件解析器
//
// 依次尝试两种匹配策略，先命中先赢：
//  1. tokenTransfers 列表: mint 匹配 + 收款人为金库所有者
//  2. 余额变动回退: mint 匹配 + 代币账户为金库代币账户 + 正向变动
//
// 提供方根据交易形态可能缺失其中一种表示，两种都不命中是正常情况
type Extractor struct {
	usdcMint      string
	indexMint     string
	treasuryOwner string

	treasuryUsdcAccount  string
	treasuryIndexAccount string
}

// Params 解析器静态配置
type Params struct {
	UsdcMint             string // USDC mint 地址
	IndexMint            string // 指数代币 mint 地址
	TreasuryOwner        string // 金库所有者地址
	TreasuryUsdcAccount  string // 金库USDC代币账户
	TreasuryIndexAccount string // 金库指数代币账户
}

// New 创建解析器
func New(p Params) *Extractor {
	return &Extractor{
		usdcMint:             p.UsdcMint,
		indexMint:            p.IndexMint,
		treasuryOwner:        p.TreasuryOwner,
		treasuryUsdcAccount:  p.TreasuryUsdcAccount,
		treasuryIndexAccount: p.TreasuryIndexAccount,
	}
}

// Extract 从原始事件解析入金，不匹配时返回 nil（静默跳过，不是错误）
func (e *Extractor) Extract(raw RawEvent) *model.DepositEvent {
	if dep := e.fromTransferList(raw); dep != nil {
		return dep
	}
	if dep := e.fromBalanceChanges(raw); dep != nil {
		return dep
	}
	logger.Debug("Event %s did not match any deposit shape, skipping", raw.Signature)
	return nil
}

// fromTransferList 策略1: 扫描转账列表
func (e *Extractor) fromTransferList(raw RawEvent) *model.DepositEvent {
	for _, t := range raw.TokenTransfers {
		if t.ToUserAccount != e.treasuryOwner || t.TokenAmount <= 0 {
			continue
		}
		direction, ok := e.directionForMint(t.Mint)
		if !ok {
			continue
		}
		if t.FromUserAccount == "" {
			logger.Debug("Event %s matched transfer but depositor is empty, skipping", raw.Signature)
			return nil
		}
		return &model.DepositEvent{
			DepositSignature: raw.Signature,
			Direction:        direction,
			Depositor:        t.FromUserAccount,
			Amount:           t.TokenAmount,
			Shape:            model.ShapeTransferList,
		}
	}
	return nil
}

// fromBalanceChanges 策略2: 余额变动回退
func (e *Extractor) fromBalanceChanges(raw RawEvent) *model.DepositEvent {
	for _, ad := range raw.AccountData {
		for _, bc := range ad.TokenBalanceChanges {
			direction, ok := e.directionForMint(bc.Mint)
			if !ok || !e.isTreasuryTokenAccount(bc.TokenAccount) {
				continue
			}
			rawAmount, err := strconv.ParseInt(bc.RawTokenAmount.TokenAmount, 10, 64)
			if err != nil || rawAmount <= 0 {
				continue
			}
			depositor := e.findDepositor(raw, bc.Mint)
			if depositor == "" {
				logger.Debug("Event %s matched balance change but depositor is empty, skipping", raw.Signature)
				return nil
			}
			// 最小单位 → UI单位
			amount := float64(rawAmount) / math.Pow10(int(bc.RawTokenAmount.Decimals))
			return &model.DepositEvent{
				DepositSignature: raw.Signature,
				Direction:        direction,
				Depositor:        depositor,
				Amount:           amount,
				Shape:            model.ShapeBalanceChange,
			}
		}
	}
	return nil
}

// findDepositor 同一 mint 的负向余额变动指向入金人，缺失时退回 feePayer
func (e *Extractor) findDepositor(raw RawEvent, mint string) string {
	for _, ad := range raw.AccountData {
		for _, bc := range ad.TokenBalanceChanges {
			if bc.Mint != mint || e.isTreasuryTokenAccount(bc.TokenAccount) {
				continue
			}
			rawAmount, err := strconv.ParseInt(bc.RawTokenAmount.TokenAmount, 10, 64)
			if err != nil || rawAmount >= 0 {
				continue
			}
			if bc.UserAccount != "" {
				return bc.UserAccount
			}
		}
	}
	return raw.FeePayer
}

// directionForMint 入金 mint 决定方向: USDC → mint, 指数代币 → burn
func (e *Extractor) directionForMint(mint string) (model.Direction, bool) {
	switch mint {
	case e.usdcMint:
		return model.DirectionMint, true
	case e.indexMint:
		return model.DirectionBurn, true
	default:
		return "", false
	}
}

func (e *Extractor) isTreasuryTokenAccount(account string) bool {
	return account == e.treasuryUsdcAccount || account == e.treasuryIndexAccount
}
