package quote

import (
	"errors"
	"math"

	"github.com/muse0509/axis-settlement/internal/model"
)

var (
	// ErrInvalidIndexValue 指数值必须为有限正数
	ErrInvalidIndexValue = errors.New("index value must be a positive finite number")
	// ErrInvalidAmount 入金金额必须为有限正数
	ErrInvalidAmount = errors.New("deposit amount must be a positive finite number")
	// ErrUnknownDirection 未知的入金方向
	ErrUnknownDirection = errors.New("unknown deposit direction")
)

// Payout 根据方向和指数值计算支付金额（UI单位）
//
// mint: 存入USDC，支付 deposit / indexValue 个指数代币
// burn: 存入指数代币，支付 deposit × indexValue USDC
func Payout(direction model.Direction, depositAmount, indexValue float64) (float64, error) {
	if math.IsNaN(depositAmount) || math.IsInf(depositAmount, 0) || depositAmount <= 0 {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(indexValue) || math.IsInf(indexValue, 0) || indexValue <= 0 {
		return 0, ErrInvalidIndexValue
	}

	switch direction {
	case model.DirectionMint:
		return depositAmount / indexValue, nil
	case model.DirectionBurn:
		return depositAmount * indexValue, nil
	default:
		return 0, ErrUnknownDirection
	}
}

// ToBaseUnits 把UI单位金额换算成代币最小单位，向零截断
// 截断是明确的舍入策略：宁可少付尘埃量，也不多付
func ToBaseUnits(amount float64, decimals uint8) uint64 {
	if math.IsNaN(amount) || amount <= 0 {
		return 0
	}
	scaled := amount * math.Pow10(int(decimals))
	if scaled >= math.MaxUint64 {
		return 0
	}
	return uint64(scaled)
}
