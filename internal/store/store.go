package store

import (
	"sync"
	"time"

	"github.com/muse0509/axis-settlement/internal/model"
)

// PayoutInfo 支付结果信息
type PayoutInfo struct {
	IndexValue      float64 // 结算时的指数值
	PayoutAmount    float64 // 支付金额（UI单位）
	PayoutSignature string  // 出金交易签名
}

// Store 结算记录存储
//
// 所有写操作按入金签名逐键串行；不同键的结算可以完全并发。
// PutPending 幂等，重复投递同一事件只会产生一条记录；
// 终态一经写入不可更改，后到的 MarkPaid/MarkFailed 为空操作。
type Store interface {
	// PutPending 登记 pending 记录，已存在时返回现有记录和 created=false
	PutPending(depositSignature string, direction model.Direction, amount float64) (*model.SettlementRecord, bool, error)
	// RecordSubmission 在确认前落盘已提交的出金签名和计算结果，阶段保持 pending
	RecordSubmission(depositSignature string, info PayoutInfo) error
	// MarkPaid pending → paid，已是终态时返回 applied=false
	MarkPaid(depositSignature string, info PayoutInfo) (bool, error)
	// MarkFailed pending → failed，已是终态时返回 applied=false
	MarkFailed(depositSignature string, message string) (bool, error)
	// Get 查询记录，不存在时返回 (nil, nil)
	Get(depositSignature string) (*model.SettlementRecord, error)
	// ListPendingOlderThan 列出超过指定年龄仍为 pending 的记录
	ListPendingOlderThan(age time.Duration) ([]model.SettlementRecord, error)
}

// keyedMutex 逐键互斥锁
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*entry)}
}

// Lock 锁定指定键，返回解锁函数
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
