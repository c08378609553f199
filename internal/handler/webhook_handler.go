package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/muse0509/axis-settlement/internal/extractor"
	"github.com/muse0509/axis-settlement/internal/logger"
	"github.com/muse0509/axis-settlement/internal/model"
	"github.com/muse0509/axis-settlement/internal/oracle"
	"github.com/muse0509/axis-settlement/internal/payout"
	"github.com/muse0509/axis-settlement/internal/quote"
	"github.com/muse0509/axis-settlement/internal/store"
)

// IndexSource 指数值来源
type IndexSource interface {
	IndexValue(ctx context.Context) (*oracle.Snapshot, error)
}

// WebhookHandler webhook 接入处理器
// 编排 登记 → 取价 → 计算 → 出金 → 终态 的完整结算流程
type WebhookHandler struct {
	secret    string
	extractor *extractor.Extractor
	store     store.Store
	oracle    IndexSource
	executor  payout.Executor
}

// NewWebhookHandler 创建 webhook 处理器
func NewWebhookHandler(secret string, ex *extractor.Extractor, st store.Store, idx IndexSource, exec payout.Executor) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		extractor: ex,
		store:     st,
		oracle:    idx,
		executor:  exec,
	}
}

// EventResult 单个事件的处理结果
type EventResult struct {
	Signature       string                `json:"signature,omitempty"`
	Status          string                `json:"status"`
	Phase           model.SettlementPhase `json:"phase,omitempty"`
	PayoutSignature string                `json:"payout_signature,omitempty"`
	Error           string                `json:"error,omitempty"`
}

// 处理结果状态
const (
	StatusIgnored   = "ignored"   // 未匹配任何入金形态
	StatusDuplicate = "duplicate" // 重复投递，已有记录
	StatusPaid      = "paid"      // 支付已确认
	StatusFailed    = "failed"    // 终态失败
	StatusSubmitted = "submitted" // 已提交但确认未观察到，留在 pending
	StatusError     = "error"     // 存储层错误
)

// HandleWebhook POST /webhook
//
// 鉴权失败是请求级错误，在任何事件副作用之前拒绝。
// 鉴权通过后每个事件独立处理，单个结算失败不会变成HTTP错误：
// webhook 提供方的重试语义是固定的，重复投递是预期内的正常情况。
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	if c.GetHeader("Authorization") != h.secret {
		ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "malformed body")
		return
	}

	events, err := normalizeEvents(body)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "malformed body")
		return
	}

	// 同一请求内的事件顺序处理
	results := make([]EventResult, 0, len(events))
	for _, ev := range events {
		results = append(results, h.processEvent(c.Request.Context(), ev))
	}

	OkResponse(c, http.StatusOK, gin.H{"results": results})
}

// normalizeEvents 接受裸数组、{events:[...]} 包装或单个对象，归一化成列表
func normalizeEvents(body []byte) ([]extractor.RawEvent, error) {
	trimmed := json.RawMessage(body)
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n' || trimmed[0] == '\r') {
		trimmed = trimmed[1:]
	}
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var events []extractor.RawEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var envelope struct {
		Events *json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Events != nil {
		var events []extractor.RawEvent
		if err := json.Unmarshal(*envelope.Events, &events); err != nil {
			return nil, err
		}
		return events, nil
	}

	var single extractor.RawEvent
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return []extractor.RawEvent{single}, nil
}

// processEvent 处理单个事件，任何失败都只体现在结果里
func (h *WebhookHandler) processEvent(ctx context.Context, raw extractor.RawEvent) EventResult {
	dep := h.extractor.Extract(raw)
	if dep == nil {
		return EventResult{Signature: raw.Signature, Status: StatusIgnored}
	}

	// 任何网络调用之前先落 pending 记录
	rec, created, err := h.store.PutPending(dep.DepositSignature, dep.Direction, dep.Amount)
	if err != nil {
		logger.Error("Failed to put pending record for %s: %v", dep.DepositSignature, err)
		return EventResult{Signature: dep.DepositSignature, Status: StatusError, Error: err.Error()}
	}
	if !created {
		// 只有首次登记的投递触发支付，保证同一入金恰好一次出金
		logger.Info("Duplicate delivery for %s (phase %s), skipping", dep.DepositSignature, rec.Phase)
		return EventResult{Signature: dep.DepositSignature, Status: StatusDuplicate, Phase: rec.Phase}
	}

	logger.Info("Settling deposit %s: %s %f from %s (%s)",
		dep.DepositSignature, dep.Direction, dep.Amount, dep.Depositor, dep.Shape)

	snap, err := h.oracle.IndexValue(ctx)
	if err != nil {
		// 预言机整体不可用必须走终态，绝不能留在 pending
		return h.fail(dep.DepositSignature, "oracle unavailable: "+err.Error())
	}

	amount, err := quote.Payout(dep.Direction, dep.Amount, snap.IndexValue)
	if err != nil {
		return h.fail(dep.DepositSignature, "quote failed: "+err.Error())
	}

	payoutSig, err := h.executor.Execute(ctx, dep.Depositor, amount, dep.Direction)
	info := store.PayoutInfo{IndexValue: snap.IndexValue, PayoutAmount: amount, PayoutSignature: payoutSig}
	switch {
	case err == nil:
		if _, err := h.store.MarkPaid(dep.DepositSignature, info); err != nil {
			logger.Error("Failed to mark %s paid: %v", dep.DepositSignature, err)
		}
		return EventResult{
			Signature:       dep.DepositSignature,
			Status:          StatusPaid,
			Phase:           model.PhasePaid,
			PayoutSignature: payoutSig,
		}
	case errors.Is(err, payout.ErrConfirmTimeout) && payoutSig != "":
		// 已提交、结果不确定：留在 pending，签名落盘交给对账任务
		logger.Warn("Payout for %s submitted but unconfirmed (%s): %v", dep.DepositSignature, payoutSig, err)
		if serr := h.store.RecordSubmission(dep.DepositSignature, info); serr != nil {
			logger.Error("Failed to record submission for %s: %v", dep.DepositSignature, serr)
		}
		return EventResult{
			Signature:       dep.DepositSignature,
			Status:          StatusSubmitted,
			Phase:           model.PhasePending,
			PayoutSignature: payoutSig,
		}
	default:
		return h.fail(dep.DepositSignature, "payout failed: "+err.Error())
	}
}

// fail 标记终态失败，保留底层错误信息
func (h *WebhookHandler) fail(depositSignature, message string) EventResult {
	logger.Error("Settlement %s failed: %s", depositSignature, message)
	if _, err := h.store.MarkFailed(depositSignature, message); err != nil {
		logger.Error("Failed to mark %s failed: %v", depositSignature, err)
	}
	return EventResult{
		Signature: depositSignature,
		Status:    StatusFailed,
		Phase:     model.PhaseFailed,
		Error:     message,
	}
}
