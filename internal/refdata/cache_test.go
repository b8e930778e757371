package refdata

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"okx-market-maker/internal/okx"
)

// almostEqual 浮点近似比较
func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPriceInUSDTIdentity(t *testing.T) {
	c := NewCache()
	if got := c.PriceInUSDT("USDT", true); got != 1 {
		t.Fatalf("USDT 本币应为 1, got %v", got)
	}
}

func TestPriceInUSDTDirect(t *testing.T) {
	c := NewCache()
	c.UpdateTickers([]okx.TickerData{
		{InstID: "BTC-USDT", InstType: "SPOT", AskPx: "50001", BidPx: "49999", Last: "50000.5"},
	}, 1)

	if got := c.PriceInUSDT("BTC", true); !almostEqual(got, 50000) {
		t.Fatalf("中间价折算错误: %v", got)
	}
	if got := c.PriceInUSDT("BTC", false); !almostEqual(got, 50000.5) {
		t.Fatalf("最新价折算错误: %v", got)
	}
}

func TestPriceInUSDTTwoHop(t *testing.T) {
	c := NewCache()
	c.UpdateTickers([]okx.TickerData{
		{InstID: "ETH-USDT", InstType: "SPOT", AskPx: "2000", BidPx: "1998", Last: "1999.5"},
		{InstID: "FOO-ETH", InstType: "SPOT", AskPx: "0.1", BidPx: "0.09", Last: "0.095"},
	}, 1)

	// 无直接 FOO-USDT，经 ETH 两跳: 0.095 × 1999
	if got := c.PriceInUSDT("FOO", true); !almostEqual(got, 0.095*1999) {
		t.Fatalf("两跳折算错误: %v", got)
	}
}

func TestPriceInUSDTIntermediateOrder(t *testing.T) {
	c := NewCache()
	// USDC 在 ETH 之前，应优先选 USDC 路径
	c.UpdateTickers([]okx.TickerData{
		{InstID: "USDC-USDT", InstType: "SPOT", AskPx: "1.0001", BidPx: "0.9999"},
		{InstID: "ETH-USDT", InstType: "SPOT", AskPx: "2000", BidPx: "1998"},
		{InstID: "FOO-USDC", InstType: "SPOT", AskPx: "10", BidPx: "10"},
		{InstID: "FOO-ETH", InstType: "SPOT", AskPx: "0.1", BidPx: "0.09"},
	}, 1)

	if got := c.PriceInUSDT("FOO", true); !almostEqual(got, 10*1.0) {
		t.Fatalf("应优先经 USDC 折算: %v", got)
	}
}

func TestPriceInUSDTNoPath(t *testing.T) {
	c := NewCache()
	c.UpdateTickers([]okx.TickerData{
		{InstID: "ETH-USDT", InstType: "SPOT", AskPx: "2000", BidPx: "1998"},
	}, 1)

	if got := c.PriceInUSDT("BAR", true); got != 0 {
		t.Fatalf("无折算路径应返回 0: %v", got)
	}
}

func TestCacheUpsertMerge(t *testing.T) {
	c := NewCache()
	c.UpdateTickers([]okx.TickerData{
		{InstID: "BTC-USDT", InstType: "SPOT", Last: "100"},
		{InstID: "ETH-USDT", InstType: "SPOT", Last: "10"},
	}, 1)
	c.UpdateTickers([]okx.TickerData{
		{InstID: "BTC-USDT", InstType: "SPOT", Last: "101"},
	}, 2)

	bt, ok := c.TickerByInstID("BTC-USDT")
	if !ok || !almostEqual(bt.Last, 101) {
		t.Fatalf("BTC 行情未更新: %+v", bt)
	}
	// 未出现在第二批的产品保留旧值
	et, ok := c.TickerByInstID("ETH-USDT")
	if !ok || !almostEqual(et.Last, 10) {
		t.Fatalf("ETH 行情不应被清除: %+v", et)
	}
	if c.LastUpdateTs() != 2 {
		t.Fatalf("刷新时间错误: %d", c.LastUpdateTs())
	}
}

func TestUpdateMarkPricesSkipsMalformed(t *testing.T) {
	c := NewCache()
	c.UpdateMarkPrices([]okx.MarkPxData{
		{InstID: "BTC-USDT-SWAP", MarkPx: "50000.1"},
		{InstID: "ETH-USDT-SWAP", MarkPx: "not-a-number"},
	}, 1)

	if _, ok := c.MarkPxByInstID("BTC-USDT-SWAP"); !ok {
		t.Fatalf("合法标记价格应入缓存")
	}
	if _, ok := c.MarkPxByInstID("ETH-USDT-SWAP"); ok {
		t.Fatalf("非法标记价格不应入缓存")
	}
}

// fakeFetcher 可编程的行情获取器
type fakeFetcher struct {
	// tickerCalls 行情调用计数
	tickerCalls int64
	// failTickers 是否让行情调用失败
	failTickers atomic.Bool
}

func (f *fakeFetcher) Tickers(_ context.Context, _ string) ([]okx.TickerData, error) {
	atomic.AddInt64(&f.tickerCalls, 1)
	if f.failTickers.Load() {
		return nil, errors.New("接口超时")
	}
	return []okx.TickerData{{InstID: "BTC-USDT", InstType: "SPOT", Last: "100"}}, nil
}

func (f *fakeFetcher) MarkPrices(_ context.Context, _ string) ([]okx.MarkPxData, error) {
	return []okx.MarkPxData{{InstID: "BTC-USDT-SWAP", MarkPx: "100.5"}}, nil
}

func TestPollerRefreshesAndSurvivesErrors(t *testing.T) {
	cache := NewCache()
	fetcher := &fakeFetcher{}
	poller := NewPoller(fetcher, cache, 5*time.Millisecond, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	// 等待至少一轮成功刷新
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := cache.TickerByInstID("BTC-USDT"); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if _, ok := cache.TickerByInstID("BTC-USDT"); !ok {
		t.Fatalf("轮询未刷新行情")
	}
	if _, ok := cache.MarkPxByInstID("BTC-USDT-SWAP"); !ok {
		t.Fatalf("轮询未刷新标记价格")
	}

	// 出错后轮询不退出，恢复后继续刷新
	fetcher.failTickers.Store(true)
	time.Sleep(20 * time.Millisecond)
	fetcher.failTickers.Store(false)

	before := atomic.LoadInt64(&fetcher.tickerCalls)
	deadline = time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(&fetcher.tickerCalls) > before {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt64(&fetcher.tickerCalls) <= before {
		t.Fatalf("出错恢复后轮询应继续")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("取消后轮询未退出")
	}
}
