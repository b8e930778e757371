package refdata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"okx-market-maker/internal/okx"
	"okx-market-maker/internal/util/timeutil"
)

// markPxInstTypes 轮询标记价格的产品类型
var markPxInstTypes = []string{"MARGIN", "SWAP", "FUTURES", "OPTION"}

// Fetcher 行情获取接口，便于测试替换
type Fetcher interface {
	// Tickers 获取指定产品类型的全部行情
	Tickers(ctx context.Context, instType string) ([]okx.TickerData, error)
	// MarkPrices 获取指定产品类型的全部标记价格
	MarkPrices(ctx context.Context, instType string) ([]okx.MarkPxData, error)
}

// Poller 参考数据轮询器
// 周期刷新现货行情与各类衍生品标记价格；出错时告警并延长休眠，永不退出
type Poller struct {
	// fetcher 行情获取器
	fetcher Fetcher
	// cache 目标缓存
	cache *Cache
	// interval 正常轮询间隔
	interval time.Duration
	// errBackoff 出错后的休眠时长
	errBackoff time.Duration
	// logger 日志记录器
	logger *zap.Logger
}

// NewPoller 创建轮询器
func NewPoller(fetcher Fetcher, cache *Cache, interval, errBackoff time.Duration, logger *zap.Logger) *Poller {
	if interval == 0 {
		interval = 2 * time.Second
	}
	if errBackoff == 0 {
		errBackoff = 10 * time.Second
	}
	return &Poller{
		fetcher:    fetcher,
		cache:      cache,
		interval:   interval,
		errBackoff: errBackoff,
		logger:     logger.Named("refdata"),
	}
}

// Run 轮询主循环，阻塞至 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	for {
		delay := p.interval
		if err := p.refreshOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("刷新参考数据失败", zap.Error(err))
			delay = p.errBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// refreshOnce 执行一轮刷新
func (p *Poller) refreshOnce(ctx context.Context) error {
	tickers, err := p.fetcher.Tickers(ctx, "SPOT")
	if err != nil {
		return err
	}
	p.cache.UpdateTickers(tickers, timeutil.NowMs())

	for _, instType := range markPxInstTypes {
		marks, err := p.fetcher.MarkPrices(ctx, instType)
		if err != nil {
			return err
		}
		p.cache.UpdateMarkPrices(marks, timeutil.NowMs())
	}
	return nil
}
