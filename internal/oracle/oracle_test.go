package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muse0509/axis-settlement/internal/config"
)

func basketOf(n int) config.BasketConfig {
	basket := config.BasketConfig{Version: "2024-q1", EffectiveDate: "2024-01-01"}
	for i := 0; i < n; i++ {
		basket.Assets = append(basket.Assets, config.BasketAsset{
			Symbol:        fmt.Sprintf("ASSET%d", i),
			FeedID:        fmt.Sprintf("feed%02d", i),
			BaselinePrice: 100,
		})
	}
	return basket
}

func newTestClient(endpoint string, basket config.BasketConfig) *Client {
	return NewClient(config.OracleConfig{Endpoint: endpoint, Timeout: 5, Basket: basket})
}

// serveFeeds 返回指定 feed 集合的 Hermes 风格响应
func serveFeeds(t *testing.T, feeds map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query()["ids[]"]; len(got) == 0 {
			t.Errorf("expected ids[] query params, got none")
		}
		var resp batchResponse
		for id, price := range feeds {
			fp := feedPrice{ID: id}
			fp.Price.Price = price
			fp.Price.Expo = 0
			resp.Parsed = append(resp.Parsed, fp)
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestIndexValueFullBasket(t *testing.T) {
	feeds := map[string]string{}
	for i := 0; i < 4; i++ {
		// 全部资产价格等于定基价 → 指数 = 100
		feeds[fmt.Sprintf("feed%02d", i)] = "100"
	}
	server := serveFeeds(t, feeds)
	defer server.Close()

	c := newTestClient(server.URL, basketOf(4))
	snap, err := c.IndexValue(context.Background())
	if err != nil {
		t.Fatalf("index value: %v", err)
	}
	if math.Abs(snap.IndexValue-100) > 1e-9 {
		t.Fatalf("expected index 100, got %v", snap.IndexValue)
	}
	if len(snap.Missing) != 0 {
		t.Fatalf("expected no missing feeds, got %v", snap.Missing)
	}
	if snap.BasketVersion != "2024-q1" {
		t.Fatalf("expected basket version on snapshot, got %q", snap.BasketVersion)
	}
}

func TestIndexValueDegradedBasket(t *testing.T) {
	// 10个资产缺2个 → 指数仍为有限值，缺失按比率0计入
	feeds := map[string]string{}
	for i := 0; i < 8; i++ {
		feeds[fmt.Sprintf("feed%02d", i)] = "100"
	}
	server := serveFeeds(t, feeds)
	defer server.Close()

	c := newTestClient(server.URL, basketOf(10))
	snap, err := c.IndexValue(context.Background())
	if err != nil {
		t.Fatalf("index value: %v", err)
	}
	if math.IsNaN(snap.IndexValue) || math.IsInf(snap.IndexValue, 0) {
		t.Fatalf("expected finite index, got %v", snap.IndexValue)
	}
	if math.Abs(snap.IndexValue-80) > 1e-9 {
		t.Fatalf("expected index 80 with 8/10 feeds, got %v", snap.IndexValue)
	}
	if len(snap.Missing) != 2 {
		t.Fatalf("expected 2 missing feeds, got %v", snap.Missing)
	}
}

func TestIndexValueNormalizesExponent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var resp batchResponse
		fp := feedPrice{ID: "feed00"}
		fp.Price.Price = "20000000000"
		fp.Price.Expo = -8 // 200.0
		resp.Parsed = append(resp.Parsed, fp)
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	c := newTestClient(server.URL, basketOf(1))
	snap, err := c.IndexValue(context.Background())
	if err != nil {
		t.Fatalf("index value: %v", err)
	}
	if math.Abs(snap.IndexValue-200) > 1e-9 {
		t.Fatalf("expected index 200, got %v", snap.IndexValue)
	}
}

func TestIndexValueFeedIDPrefixInsensitive(t *testing.T) {
	// 响应带 0x 前缀，配置不带，仍应匹配
	server := serveFeeds(t, map[string]string{"0xfeed00": "100"})
	defer server.Close()

	c := newTestClient(server.URL, basketOf(1))
	snap, err := c.IndexValue(context.Background())
	if err != nil {
		t.Fatalf("index value: %v", err)
	}
	if len(snap.Missing) != 0 {
		t.Fatalf("expected feed to match despite 0x prefix, missing: %v", snap.Missing)
	}
}

func TestIndexValueTotalFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oracle down", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(server.URL, basketOf(3))
	_, err := c.IndexValue(context.Background())
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("expected ErrOracleUnavailable, got %v", err)
	}
}

func TestIndexValueEmptyBasket(t *testing.T) {
	c := newTestClient("http://localhost:0", config.BasketConfig{})
	if _, err := c.IndexValue(context.Background()); !errors.Is(err, ErrEmptyBasket) {
		t.Fatalf("expected ErrEmptyBasket, got %v", err)
	}
}
