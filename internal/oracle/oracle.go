package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/muse0509/axis-settlement/internal/config"
	"github.com/muse0509/axis-settlement/internal/logger"
)

var (
	// ErrOracleUnavailable 批量行情查询整体失败
	ErrOracleUnavailable = errors.New("oracle batch query failed")
	// ErrEmptyBasket 篮子为空，无法计算指数
	ErrEmptyBasket = errors.New("price basket is empty")
)

// Snapshot 单次结算使用的价格快照（瞬时，不落库）
// 每次结算都重新拉取，保证新鲜度优先于吞吐
type Snapshot struct {
	BasketVersion string             // 篮子版本
	IndexValue    float64            // 指数值
	Prices        map[string]float64 // 符号 → 当前价格
	Missing       []string           // 本次缺失的符号，按比率0计入
	FetchedAt     time.Time
}

// Client 批量价格查询客户端
type Client struct {
	httpClient *http.Client
	endpoint   string
	basket     config.BasketConfig
}

// NewClient 创建价格查询客户端
func NewClient(cfg config.OracleConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Endpoint,
		basket:     cfg.Basket,
	}
}

// feedPrice 单个 feed 的行情
type feedPrice struct {
	ID    string `json:"id"`
	Price struct {
		Price string `json:"price"`
		Expo  int    `json:"expo"`
	} `json:"price"`
}

// batchResponse Hermes 风格的批量响应
type batchResponse struct {
	Parsed []feedPrice `json:"parsed"`
}

// IndexValue 发起一次批量查询并计算指数值
//
// indexValue = 100 × Σ(currentPrice/baselinePrice) / N
// 单个 feed 缺失按比率0计入而不是整体失败；只有整个请求失败才返回错误
func (c *Client) IndexValue(ctx context.Context) (*Snapshot, error) {
	if len(c.basket.Assets) == 0 {
		return nil, ErrEmptyBasket
	}

	prices, err := c.fetchBatch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	snap := &Snapshot{
		BasketVersion: c.basket.Version,
		Prices:        make(map[string]float64, len(c.basket.Assets)),
		FetchedAt:     time.Now(),
	}

	var sum float64
	for _, asset := range c.basket.Assets {
		price, ok := prices[normalizeFeedID(asset.FeedID)]
		if !ok || price <= 0 || asset.BaselinePrice <= 0 {
			// 缺失的 feed 按比率0计入，牺牲精度换可用性
			snap.Missing = append(snap.Missing, asset.Symbol)
			logger.Warn("Oracle feed missing for %s (feed %s), counting ratio as 0", asset.Symbol, asset.FeedID)
			continue
		}
		snap.Prices[asset.Symbol] = price
		sum += price / asset.BaselinePrice
	}

	snap.IndexValue = 100 * sum / float64(len(c.basket.Assets))
	logger.Info("Computed index value %.6f (basket %s, %d/%d feeds)",
		snap.IndexValue, c.basket.Version, len(snap.Prices), len(c.basket.Assets))
	return snap, nil
}

// fetchBatch 一次请求查询全部 feed
func (c *Client) fetchBatch(ctx context.Context) (map[string]float64, error) {
	params := url.Values{}
	for _, asset := range c.basket.Assets {
		params.Add("ids[]", asset.FeedID)
	}

	reqURL := c.endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	prices := make(map[string]float64, len(parsed.Parsed))
	for _, fp := range parsed.Parsed {
		raw, err := strconv.ParseFloat(fp.Price.Price, 64)
		if err != nil {
			logger.Warn("Oracle returned unparsable price %q for feed %s", fp.Price.Price, fp.ID)
			continue
		}
		// 归一化: price × 10^expo
		prices[normalizeFeedID(fp.ID)] = raw * math.Pow10(fp.Price.Expo)
	}
	return prices, nil
}

// normalizeFeedID feed id 允许带或不带 0x 前缀，大小写不敏感
func normalizeFeedID(id string) string {
	return strings.ToLower(strings.TrimPrefix(id, "0x"))
}
