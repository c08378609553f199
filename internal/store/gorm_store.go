package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/muse0509/axis-settlement/internal/model"
	"gorm.io/gorm"
)

// GormStore 数据库存储
//
// 逐键互斥锁串行化同一入金签名上的写操作，终态保护额外依赖
// 带 phase 条件的 UPDATE，避免多实例部署时互相覆盖。
type GormStore struct {
	db   *gorm.DB
	keys *keyedMutex
}

// NewGormStore 创建数据库存储
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, keys: newKeyedMutex()}
}

// PutPending 登记 pending 记录，幂等
func (s *GormStore) PutPending(depositSignature string, direction model.Direction, amount float64) (*model.SettlementRecord, bool, error) {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	var existing model.SettlementRecord
	err := s.db.Where("deposit_signature = ?", depositSignature).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("query settlement record: %w", err)
	}

	rec := model.SettlementRecord{
		DepositSignature: depositSignature,
		Direction:        direction,
		Phase:            model.PhasePending,
		RequestedAmount:  amount,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		// 唯一索引冲突说明并发写入已抢先，按已存在处理
		var dup model.SettlementRecord
		if qerr := s.db.Where("deposit_signature = ?", depositSignature).First(&dup).Error; qerr == nil {
			return &dup, false, nil
		}
		return nil, false, fmt.Errorf("create settlement record: %w", err)
	}
	return &rec, true, nil
}

// RecordSubmission 落盘已提交的出金签名，阶段保持 pending
func (s *GormStore) RecordSubmission(depositSignature string, info PayoutInfo) error {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	res := s.db.Model(&model.SettlementRecord{}).
		Where("deposit_signature = ? AND phase = ?", depositSignature, model.PhasePending).
		Updates(map[string]interface{}{
			"index_value":      info.IndexValue,
			"payout_amount":    info.PayoutAmount,
			"payout_signature": info.PayoutSignature,
		})
	if res.Error != nil {
		return fmt.Errorf("record submission: %w", res.Error)
	}
	return nil
}

// MarkPaid pending → paid
func (s *GormStore) MarkPaid(depositSignature string, info PayoutInfo) (bool, error) {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	res := s.db.Model(&model.SettlementRecord{}).
		Where("deposit_signature = ? AND phase = ?", depositSignature, model.PhasePending).
		Updates(map[string]interface{}{
			"phase":            model.PhasePaid,
			"index_value":      info.IndexValue,
			"payout_amount":    info.PayoutAmount,
			"payout_signature": info.PayoutSignature,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark paid: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, s.ensureExists(depositSignature)
	}
	return true, nil
}

// MarkFailed pending → failed
func (s *GormStore) MarkFailed(depositSignature string, message string) (bool, error) {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	res := s.db.Model(&model.SettlementRecord{}).
		Where("deposit_signature = ? AND phase = ?", depositSignature, model.PhasePending).
		Updates(map[string]interface{}{
			"phase":         model.PhaseFailed,
			"error_message": message,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return false, s.ensureExists(depositSignature)
	}
	return true, nil
}

// Get 查询记录
func (s *GormStore) Get(depositSignature string) (*model.SettlementRecord, error) {
	var rec model.SettlementRecord
	err := s.db.Where("deposit_signature = ?", depositSignature).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settlement record: %w", err)
	}
	return &rec, nil
}

// ListPendingOlderThan 列出超龄的 pending 记录
func (s *GormStore) ListPendingOlderThan(age time.Duration) ([]model.SettlementRecord, error) {
	cutoff := time.Now().Add(-age)
	var recs []model.SettlementRecord
	err := s.db.Where("phase = ? AND created_at < ?", model.PhasePending, cutoff).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	return recs, nil
}

// ensureExists 区分"记录不存在"和"已是终态"
func (s *GormStore) ensureExists(depositSignature string) error {
	var count int64
	if err := s.db.Model(&model.SettlementRecord{}).
		Where("deposit_signature = ?", depositSignature).
		Count(&count).Error; err != nil {
		return fmt.Errorf("query settlement record: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
