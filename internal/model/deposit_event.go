package model

// SourceShape 入金事件的解析来源
type SourceShape string

const (
	ShapeTransferList  SourceShape = "transfer_list"  // tokenTransfers 列表
	ShapeBalanceChange SourceShape = "balance_change" // 账户余额变动回退
)

// DepositEvent 归一化后的入金事件（瞬时，不落库）
type DepositEvent struct {
	DepositSignature string      // 入金交易签名，唯一
	Direction        Direction   // mint / burn
	Depositor        string      // 入金人地址
	Amount           float64     // 入金金额（UI单位）
	Shape            SourceShape // 命中的解析策略
}
