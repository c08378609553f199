package store

import (
	"errors"
	"sync"
	"time"

	"github.com/muse0509/axis-settlement/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("settlement record not found")

// MemoryStore 内存存储，用于测试和无数据库的本地运行
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*model.SettlementRecord
	keys    *keyedMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*model.SettlementRecord),
		keys:    newKeyedMutex(),
	}
}

// PutPending 登记 pending 记录，幂等
func (s *MemoryStore) PutPending(depositSignature string, direction model.Direction, amount float64) (*model.SettlementRecord, bool, error) {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[depositSignature]; ok {
		return cloneRecord(rec), false, nil
	}

	now := time.Now()
	rec := &model.SettlementRecord{
		CreatedAt:        now,
		UpdatedAt:        now,
		DepositSignature: depositSignature,
		Direction:        direction,
		Phase:            model.PhasePending,
		RequestedAmount:  amount,
	}
	s.records[depositSignature] = rec
	return cloneRecord(rec), true, nil
}

// RecordSubmission 落盘已提交的出金签名，阶段保持 pending
func (s *MemoryStore) RecordSubmission(depositSignature string, info PayoutInfo) error {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[depositSignature]
	if !ok {
		return ErrNotFound
	}
	if rec.Phase.Terminal() {
		return nil
	}
	rec.IndexValue = info.IndexValue
	rec.PayoutAmount = info.PayoutAmount
	rec.PayoutSignature = info.PayoutSignature
	rec.UpdatedAt = time.Now()
	return nil
}

// MarkPaid pending → paid
func (s *MemoryStore) MarkPaid(depositSignature string, info PayoutInfo) (bool, error) {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[depositSignature]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Phase.Terminal() {
		return false, nil
	}
	rec.Phase = model.PhasePaid
	rec.IndexValue = info.IndexValue
	rec.PayoutAmount = info.PayoutAmount
	rec.PayoutSignature = info.PayoutSignature
	rec.UpdatedAt = time.Now()
	return true, nil
}

// MarkFailed pending → failed
func (s *MemoryStore) MarkFailed(depositSignature string, message string) (bool, error) {
	unlock := s.keys.Lock(depositSignature)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[depositSignature]
	if !ok {
		return false, ErrNotFound
	}
	if rec.Phase.Terminal() {
		return false, nil
	}
	rec.Phase = model.PhaseFailed
	rec.ErrorMessage = message
	rec.UpdatedAt = time.Now()
	return true, nil
}

// Get 查询记录
func (s *MemoryStore) Get(depositSignature string) (*model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[depositSignature]
	if !ok {
		return nil, nil
	}
	return cloneRecord(rec), nil
}

// ListPendingOlderThan 列出超龄的 pending 记录
func (s *MemoryStore) ListPendingOlderThan(age time.Duration) ([]model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-age)
	var out []model.SettlementRecord
	for _, rec := range s.records {
		if rec.Phase == model.PhasePending && rec.CreatedAt.Before(cutoff) {
			out = append(out, *cloneRecord(rec))
		}
	}
	return out, nil
}

func cloneRecord(rec *model.SettlementRecord) *model.SettlementRecord {
	cp := *rec
	return &cp
}
