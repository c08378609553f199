package task

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/go-co-op/gocron/v2"
	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/muse0509/axis-settlement/internal/model"
	solclient "github.com/muse0509/axis-settlement/internal/solana"
	"github.com/muse0509/axis-settlement/internal/store"
	"github.com/panjf2000/ants/v2"
)

// PendingReconcileJob pending 记录对账任务
//
// 覆盖"已提交但确认丢失"的不确定场景：支付可能已经上链而记录
// 仍停在 pending。对带出金签名的超龄记录直接查链上状态收尾；
// 没有签名的超龄记录只告警，是否补偿由运维决定，引擎绝不自动重付。
type PendingReconcileJob struct {
	store  store.Store
	client *solclient.Client
	config *config.Config
	pool   *ants.Pool
}

// NewPendingReconcileJob 创建对账任务
func NewPendingReconcileJob(st store.Store, client *solclient.Client, cfg *config.Config) (*PendingReconcileJob, error) {
	workers := cfg.Task.Workers
	if workers <= 0 {
		workers = 8
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &PendingReconcileJob{
		store:  st,
		client: client,
		config: cfg,
		pool:   pool,
	}, nil
}

// GetName 获取任务名称
func (j *PendingReconcileJob) GetName() string {
	return "pending_settlement_reconciler"
}

// GetSchedule 获取调度配置
func (j *PendingReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Task.Interval) * time.Second)
}

// Execute 执行一轮对账
func (j *PendingReconcileJob) Execute() {
	age := time.Duration(j.config.Task.PendingAge) * time.Second
	records, err := j.store.ListPendingOlderThan(age)
	if err != nil {
		logger.Error("Failed to list pending settlements: %v", err)
		return
	}
	if len(records) == 0 {
		return
	}
	logger.Info("Reconciling %d pending settlements older than %s", len(records), age)

	var wg sync.WaitGroup
	for _, rec := range records {
		rec := rec
		if rec.PayoutSignature == "" {
			// 从未提交过出金的超龄 pending：大声告警，留给运维
			logger.Error("ALERT: settlement %s pending for over %s with no payout submitted (age %s)",
				rec.DepositSignature, age, time.Since(rec.CreatedAt).Round(time.Second))
			continue
		}

		wg.Add(1)
		if err := j.pool.Submit(func() {
			defer wg.Done()
			j.resolve(rec)
		}); err != nil {
			wg.Done()
			logger.Error("Failed to submit reconcile task for %s: %v", rec.DepositSignature, err)
		}
	}
	wg.Wait()
}

// resolve 按链上状态把单条记录推进到终态
func (j *PendingReconcileJob) resolve(rec model.SettlementRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sig, err := solana.SignatureFromBase58(rec.PayoutSignature)
	if err != nil {
		logger.Error("Settlement %s carries unparsable payout signature %q: %v",
			rec.DepositSignature, rec.PayoutSignature, err)
		return
	}

	statuses, err := j.client.RPC().GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		logger.Warn("Reconcile: failed to query status for %s: %v", rec.PayoutSignature, err)
		return
	}
	if len(statuses.Value) == 0 || statuses.Value[0] == nil {
		// 签名查不到：交易可能已被丢弃，但不能据此断言没付过，继续告警
		logger.Error("ALERT: payout %s for settlement %s not found on chain, manual review required",
			rec.PayoutSignature, rec.DepositSignature)
		return
	}

	status := statuses.Value[0]
	if status.Err != nil {
		applied, err := j.store.MarkFailed(rec.DepositSignature, "payout failed on chain")
		if err != nil {
			logger.Error("Reconcile: failed to mark %s failed: %v", rec.DepositSignature, err)
			return
		}
		if applied {
			logger.Info("Reconciled settlement %s to failed (payout %s errored on chain)",
				rec.DepositSignature, rec.PayoutSignature)
		}
		return
	}

	if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		applied, err := j.store.MarkPaid(rec.DepositSignature, store.PayoutInfo{
			IndexValue:      rec.IndexValue,
			PayoutAmount:    rec.PayoutAmount,
			PayoutSignature: rec.PayoutSignature,
		})
		if err != nil {
			logger.Error("Reconcile: failed to mark %s paid: %v", rec.DepositSignature, err)
			return
		}
		if applied {
			logger.Info("Reconciled settlement %s to paid (payout %s confirmed)",
				rec.DepositSignature, rec.PayoutSignature)
		}
	}
}

// Release 释放协程池
func (j *PendingReconcileJob) Release() {
	j.pool.Release()
}
