package model

import (
	"time"
)

// SettlementPhase 结算阶段
type SettlementPhase string

const (
	PhasePending SettlementPhase = "pending" // 已登记，等待支付
	PhasePaid    SettlementPhase = "paid"    // 支付已确认
	PhaseFailed  SettlementPhase = "failed"  // 终态失败
)

// Terminal 是否为终态
func (p SettlementPhase) Terminal() bool {
	return p == PhasePaid || p == PhaseFailed
}

// Direction 入金方向
type Direction string

const (
	DirectionMint Direction = "mint" // 存入USDC，换取指数代币
	DirectionBurn Direction = "burn" // 存入指数代币，换回USDC
)

// SettlementRecord 结算记录
// 以入金交易签名为唯一键，只追加不删除，阶段只能从 pending 走向终态
type SettlementRecord struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DepositSignature string          `json:"deposit_signature" gorm:"uniqueIndex;not null"`
	Direction        Direction       `json:"direction" gorm:"not null"`
	Phase            SettlementPhase `json:"phase" gorm:"default:'pending'"`
	RequestedAmount  float64         `json:"requested_amount" gorm:"not null"` // 入金金额（UI单位）
	IndexValue       float64         `json:"index_value,omitempty"`            // 结算时计算的指数值
	PayoutAmount     float64         `json:"payout_amount,omitempty"`          // 支付金额（UI单位）
	PayoutSignature  string          `json:"payout_signature,omitempty"`       // 出金交易签名
	ErrorMessage     string          `json:"error_message,omitempty"`          // 终态失败原因
}
