package store

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muse0509/axis-settlement/internal/model"
	"github.com/stretchr/testify/require"
)

func TestPutPendingIdempotent(t *testing.T) {
	s := NewMemoryStore()

	rec, created, err := s.PutPending("sig-1", model.DirectionMint, 100)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, model.PhasePending, rec.Phase)
	require.Equal(t, 100.0, rec.RequestedAmount)

	// 第二次登记必须是空操作
	rec2, created2, err := s.PutPending("sig-1", model.DirectionBurn, 999)
	require.NoError(t, err)
	require.False(t, created2)
	require.Equal(t, model.DirectionMint, rec2.Direction)
	require.Equal(t, 100.0, rec2.RequestedAmount)
}

func TestTerminalImmutability(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.PutPending("sig-1", model.DirectionMint, 100)
	require.NoError(t, err)

	applied, err := s.MarkPaid("sig-1", PayoutInfo{IndexValue: 2, PayoutAmount: 50, PayoutSignature: "pay-1"})
	require.NoError(t, err)
	require.True(t, applied)

	// 终态后的任何标记都是空操作
	applied, err = s.MarkFailed("sig-1", "late failure")
	require.NoError(t, err)
	require.False(t, applied)

	applied, err = s.MarkPaid("sig-1", PayoutInfo{PayoutSignature: "pay-2"})
	require.NoError(t, err)
	require.False(t, applied)

	rec, err := s.Get("sig-1")
	require.NoError(t, err)
	require.Equal(t, model.PhasePaid, rec.Phase)
	require.Equal(t, "pay-1", rec.PayoutSignature)
	require.Empty(t, rec.ErrorMessage)
}

func TestMarkFailedKeepsMessage(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.PutPending("sig-1", model.DirectionBurn, 10)
	require.NoError(t, err)

	applied, err := s.MarkFailed("sig-1", "oracle unavailable: boom")
	require.NoError(t, err)
	require.True(t, applied)

	rec, err := s.Get("sig-1")
	require.NoError(t, err)
	require.Equal(t, model.PhaseFailed, rec.Phase)
	require.Equal(t, "oracle unavailable: boom", rec.ErrorMessage)
}

func TestMarkUnknownRecord(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.MarkPaid("missing", PayoutInfo{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	rec, err := s.Get("missing")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestRecordSubmissionKeepsPending(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.PutPending("sig-1", model.DirectionMint, 100)
	require.NoError(t, err)

	err = s.RecordSubmission("sig-1", PayoutInfo{IndexValue: 4, PayoutAmount: 25, PayoutSignature: "pay-1"})
	require.NoError(t, err)

	rec, err := s.Get("sig-1")
	require.NoError(t, err)
	require.Equal(t, model.PhasePending, rec.Phase)
	require.Equal(t, "pay-1", rec.PayoutSignature)
	require.Equal(t, 25.0, rec.PayoutAmount)
}

func TestListPendingOlderThan(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.PutPending("old", model.DirectionMint, 1)
	require.NoError(t, err)
	_, _, err = s.PutPending("done", model.DirectionMint, 1)
	require.NoError(t, err)
	_, err = s.MarkPaid("done", PayoutInfo{PayoutSignature: "p"})
	require.NoError(t, err)

	// 把 old 的创建时间拨回过去
	s.mu.Lock()
	s.records["old"].CreatedAt = time.Now().Add(-10 * time.Minute)
	s.mu.Unlock()

	recs, err := s.ListPendingOlderThan(5 * time.Minute)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "old", recs[0].DepositSignature)
}

func TestConcurrentPutPendingSingleWinner(t *testing.T) {
	s := NewMemoryStore()

	var created int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.PutPending("sig-race", model.DirectionMint, 100)
			require.NoError(t, err)
			if ok {
				atomic.AddInt64(&created, 1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, created)
}

func TestConcurrentTerminalSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	_, _, err := s.PutPending("sig-race", model.DirectionMint, 100)
	require.NoError(t, err)

	var applied int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			var ok bool
			if i%2 == 0 {
				ok, _ = s.MarkPaid("sig-race", PayoutInfo{PayoutSignature: "p"})
			} else {
				ok, _ = s.MarkFailed("sig-race", "lost the race")
			}
			if ok {
				atomic.AddInt64(&applied, 1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, applied)

	rec, err := s.Get("sig-race")
	require.NoError(t, err)
	require.True(t, rec.Phase.Terminal())
}
