// Package refdata 维护行情参考数据缓存。
// 现货行情与标记价格由 REST 轮询周期刷新，供估值与库存折算使用。
package refdata

import (
	"sync"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/okx"
	"okx-market-maker/internal/util/fastparse"
)

// usdtIntermediates 两跳折算的中间货币，按优先级排列
var usdtIntermediates = []string{"USDC", "BTC", "ETH", "DAI", "OKB", "DOT", "EURT"}

// Ticker 单产品行情快照
type Ticker struct {
	// InstType 产品类型
	InstType string
	// InstID 产品 ID
	InstID string
	// Last 最新成交价
	Last float64
	// LastSz 最新成交量
	LastSz float64
	// AskPx 卖一价
	AskPx float64
	// AskSz 卖一量
	AskSz float64
	// BidPx 买一价
	BidPx float64
	// BidSz 买一量
	BidSz float64
	// Open24h 24 小时开盘价
	Open24h float64
	// High24h 24 小时最高价
	High24h float64
	// Low24h 24 小时最低价
	Low24h float64
	// VolCcy24h 24 小时成交额
	VolCcy24h float64
	// Vol24h 24 小时成交量
	Vol24h float64
	// Ts 数据产生时间（毫秒）
	Ts int64
}

// mid 中间价，任一侧缺失时为 0
func (t Ticker) mid() float64 {
	return (t.AskPx + t.BidPx) / 2
}

// tickerFromWire 从 REST 行情数据构建快照
// 缺失字段按 0 处理，与交易所空串语义一致
func tickerFromWire(d okx.TickerData) Ticker {
	return Ticker{
		InstType:  d.InstType,
		InstID:    d.InstID,
		Last:      fastparse.MustParseFloat(d.Last),
		LastSz:    fastparse.MustParseFloat(d.LastSz),
		AskPx:     fastparse.MustParseFloat(d.AskPx),
		AskSz:     fastparse.MustParseFloat(d.AskSz),
		BidPx:     fastparse.MustParseFloat(d.BidPx),
		BidSz:     fastparse.MustParseFloat(d.BidSz),
		Open24h:   fastparse.MustParseFloat(d.Open24h),
		High24h:   fastparse.MustParseFloat(d.High24h),
		Low24h:    fastparse.MustParseFloat(d.Low24h),
		VolCcy24h: fastparse.MustParseFloat(d.VolCcy24h),
		Vol24h:    fastparse.MustParseFloat(d.Vol24h),
		Ts:        fastparse.MustParseInt(d.Ts),
	}
}

// Cache 参考数据缓存
// 单写多读：轮询协程写入，策略与估值读取
type Cache struct {
	// mu 读写锁
	mu sync.RWMutex
	// tickers 行情表，键为产品 ID
	tickers map[string]Ticker
	// markPx 标记价格表，键为产品 ID
	markPx map[string]decimal.Decimal
	// lastUpdateTs 最近一次成功刷新时间（毫秒）
	lastUpdateTs int64
}

// NewCache 创建参考数据缓存
func NewCache() *Cache {
	return &Cache{
		tickers: make(map[string]Ticker),
		markPx:  make(map[string]decimal.Decimal),
	}
}

// UpdateTickers 合并一批行情数据
func (c *Cache) UpdateTickers(data []okx.TickerData, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range data {
		c.tickers[d.InstID] = tickerFromWire(d)
	}
	c.lastUpdateTs = nowMs
}

// UpdateMarkPrices 合并一批标记价格
// 解析失败的条目跳过
func (c *Cache) UpdateMarkPrices(data []okx.MarkPxData, nowMs int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range data {
		px, err := decimal.NewFromString(d.MarkPx)
		if err != nil {
			continue
		}
		c.markPx[d.InstID] = px
	}
	c.lastUpdateTs = nowMs
}

// TickerByInstID 获取指定产品的行情快照
func (c *Cache) TickerByInstID(instID string) (Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tickers[instID]
	return t, ok
}

// MarkPxByInstID 获取指定产品的标记价格
func (c *Cache) MarkPxByInstID(instID string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	px, ok := c.markPx[instID]
	return px, ok
}

// LastUpdateTs 最近一次成功刷新时间（毫秒）
func (c *Cache) LastUpdateTs() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdateTs
}

// PriceInUSDT 将货币折算为 USDT 价格
// 折算顺序：USDT 本币恒为 1 → 直接交易对 ccy-USDT → 经固定中间货币两跳折算。
// 均不可达时返回 0，调用方按无价处理。
// 参数 useMid: true 取买卖中间价，false 取最新成交价
func (c *Cache) PriceInUSDT(ccy string, useMid bool) float64 {
	if ccy == "USDT" {
		return 1
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if t, ok := c.tickers[ccy+"-USDT"]; ok {
		if useMid {
			return t.mid()
		}
		return t.Last
	}

	for _, quote := range usdtIntermediates {
		t, ok := c.tickers[ccy+"-"+quote]
		if !ok {
			continue
		}
		qt, ok := c.tickers[quote+"-USDT"]
		if !ok {
			continue
		}
		if useMid {
			return t.mid() * qt.mid()
		}
		return t.Last * qt.Last
	}

	return 0
}
