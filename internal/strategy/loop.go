package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"okx-market-maker/internal/account"
	"okx-market-maker/internal/book"
	"okx-market-maker/internal/instrument"
	"okx-market-maker/internal/okx"
	"okx-market-maker/internal/orders"
	"okx-market-maker/internal/output/jsonl"
	"okx-market-maker/internal/util/timeutil"
)

// ErrEmptyBook 双边订单簿均为空，本周期无法报价
var ErrEmptyBook = errors.New("订单簿双边为空")

// OrderGateway 订单操作通道，由私有 WebSocket 客户端实现
type OrderGateway interface {
	// PlaceOrders 批量下单
	PlaceOrders(reqs []okx.PlaceOrderRequest) error
	// AmendOrders 批量改单
	AmendOrders(reqs []okx.AmendOrderRequest) error
	// CancelOrders 批量撤单
	CancelOrders(reqs []okx.CancelOrderRequest) error
}

// BookSource 订单簿来源，由行情监督器实现
type BookSource interface {
	// Book 获取当前订单簿副本
	Book() *book.Replica
}

// Journal 订单操作流水
type Journal interface {
	// Append 追加一条操作记录
	Append(rec jsonl.OpRecord) error
}

// Params 策略参数
type Params struct {
	// StepPct 每档相对盘口的价格间隔比例
	StepPct decimal.Decimal
	// NumOfOrderEachSide 每侧基准档数
	NumOfOrderEachSide int
	// SingleSizeAsMultipleOfLotSz 单笔数量为 lot size 的倍数
	SingleSizeAsMultipleOfLotSz int64
	// MaximumNetBuy 买向最大净头寸
	MaximumNetBuy decimal.Decimal
	// MaximumNetSell 卖向最大净头寸
	MaximumNetSell decimal.Decimal
	// CycleInterval 决策周期
	CycleInterval time.Duration
	// RecoveryDelay 周期出错后的恢复等待
	RecoveryDelay time.Duration
	// BookStaleAfter 订单簿数据过期阈值
	BookStaleAfter time.Duration
	// AccountStaleAfter 账户数据过期阈值
	AccountStaleAfter time.Duration
	// StaleOrderTimeout 在途订单在订单频道查无推送的清理阈值
	StaleOrderTimeout time.Duration
}

// setDefaults 填充缺省值
func (p *Params) setDefaults() {
	if p.CycleInterval == 0 {
		p.CycleInterval = time.Second
	}
	if p.RecoveryDelay == 0 {
		p.RecoveryDelay = 20 * time.Second
	}
	if p.BookStaleAfter == 0 {
		p.BookStaleAfter = 60 * time.Second
	}
	if p.AccountStaleAfter == 0 {
		p.AccountStaleAfter = 60 * time.Second
	}
	if p.StaleOrderTimeout == 0 {
		p.StaleOrderTimeout = 30 * time.Second
	}
}

// Loop 做市策略主循环
// 每周期：同步订单状态 → 读取盘口 → 库存偏斜调档 → 生成阶梯 → 对账 → 提交操作
type Loop struct {
	// inst 交易产品
	inst *instrument.Instrument
	// tdMode 下单交易模式
	tdMode instrument.TdMode
	// params 策略参数
	params Params

	// gateway 订单操作通道
	gateway OrderGateway
	// books 订单簿来源
	books BookSource
	// orderStore 订单状态容器
	orderStore *orders.Store
	// acctStore 账户状态容器
	acctStore *account.Store
	// journal 操作流水，可为 nil
	journal Journal
	// logger 日志记录器
	logger *zap.Logger

	// strategyOrders 在途策略订单，仅本循环协程读写
	strategyOrders orderBook
	// measurement 累计成交度量
	measurement Measurement
}

// NewLoop 创建策略主循环
func NewLoop(
	inst *instrument.Instrument,
	tdMode instrument.TdMode,
	params Params,
	gateway OrderGateway,
	books BookSource,
	orderStore *orders.Store,
	acctStore *account.Store,
	journal Journal,
	logger *zap.Logger,
) *Loop {
	params.setDefaults()
	return &Loop{
		inst:           inst,
		tdMode:         tdMode,
		params:         params,
		gateway:        gateway,
		books:          books,
		orderStore:     orderStore,
		acctStore:      acctStore,
		journal:        journal,
		logger:         logger.Named("strategy").With(zap.String("instId", inst.InstID)),
		strategyOrders: make(orderBook),
		measurement:    Measurement{InstID: inst.InstID},
	}
}

// Measurement 当前累计成交度量的副本
func (l *Loop) Measurement() Measurement {
	return l.measurement
}

// Run 策略主循环，阻塞至 ctx 取消
// 空盘口跳过本周期；其他周期错误撤掉全部在途单并等待恢复
func (l *Loop) Run(ctx context.Context) {
	for {
		err := l.cycle()
		delay := l.params.CycleInterval

		switch {
		case err == nil:
		case errors.Is(err, ErrEmptyBook):
			l.logger.Warn("订单簿为空，跳过本周期")
		default:
			l.logger.Error("策略周期失败，撤掉全部在途单", zap.Error(err))
			if cancelErr := l.CancelAll(); cancelErr != nil {
				l.logger.Error("撤销全部在途单失败", zap.Error(cancelErr))
			}
			delay = l.params.RecoveryDelay
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// cycle 执行一个决策周期
func (l *Loop) cycle() error {
	if !l.healthCheck() {
		return nil
	}

	l.syncOrders()

	ops, err := l.decide()
	if err != nil {
		return err
	}
	if err := l.submit(ops); err != nil {
		return fmt.Errorf("提交订单操作失败: %w", err)
	}

	l.recordCycle(ops)
	return nil
}

// healthCheck 数据健康巡检
// 订单簿或账户数据过期时跳过本周期，等数据恢复
func (l *Loop) healthCheck() bool {
	nowMs := timeutil.NowMs()

	bookTs := l.books.Book().Timestamp()
	if bookTs == 0 {
		l.logger.Warn("订单簿尚未就绪")
		return false
	}
	if delay := nowMs - bookTs; delay > l.params.BookStaleAfter.Milliseconds() {
		l.logger.Warn("订单簿数据过期", zap.Int64("delayMs", delay))
		return false
	}

	acctTs := l.acctStore.AccountUTime()
	if acctTs == 0 {
		l.logger.Warn("账户数据尚未就绪")
		return false
	}
	if delay := nowMs - acctTs; delay > l.params.AccountStaleAfter.Milliseconds() {
		l.logger.Warn("账户数据过期", zap.Int64("delayMs", delay))
		return false
	}

	return true
}

// syncOrders 以订单频道推送为准同步策略订单，并累计成交增量
func (l *Loop) syncOrders() {
	for cid, so := range l.strategyOrders {
		exch, ok := l.orderStore.Get(cid)
		if !ok {
			// 提交被拒绝的订单不会产生订单频道推送，超时后清理
			if time.Since(so.CreatedAt) > l.params.StaleOrderTimeout {
				l.logger.Warn("策略订单在订单频道查无推送，清理",
					zap.String("clOrdId", cid), zap.String("status", string(so.Status)))
				delete(l.strategyOrders, cid)
			}
			continue
		}

		fillDelta := exch.AccFillSz.Sub(so.FilledSz)
		if fillDelta.IsPositive() {
			l.measurement.recordFill(string(so.Side), fillDelta)
		}

		switch exch.State {
		case orders.StateLive:
			so.Status = StatusLive
			so.OrdID = exch.OrdID
		case orders.StatePartiallyFilled:
			so.Status = StatusPartiallyFilled
			so.FilledSz = exch.AccFillSz
			so.AvgFillPx = exch.AvgPx
		case orders.StateFilled, orders.StateCanceled, orders.StateMmpCanceled:
			delete(l.strategyOrders, cid)
			l.orderStore.Remove(cid)
		}
	}
}

// decide 读取盘口并生成本周期的订单操作
func (l *Loop) decide() (Ops, error) {
	replica := l.books.Book()
	bid, bidOK := replica.BestLevel(book.SideBid, 1)
	ask, askOK := replica.BestLevel(book.SideAsk, 1)

	if !bidOK && !askOK {
		return Ops{}, ErrEmptyBook
	}
	// 只缺一边时用另一边锚定，维持降级报价
	if !askOK {
		ask = bid
	}
	if !bidOK {
		bid = ask
	}

	buyRungs, sellRungs := l.skewedRungCounts()

	singleSz := l.inst.LotSz.Mul(decimal.NewFromInt(l.params.SingleSizeAsMultipleOfLotSz))
	if singleSz.LessThan(l.inst.MinSz) {
		singleSz = l.inst.MinSz
	}
	singleSz = l.inst.TrimQtyByLot(singleSz)

	desiredBids := l.ladder(bid.Px, instrument.SideBuy, buyRungs, singleSz)
	desiredAsks := l.ladder(ask.Px, instrument.SideSell, sellRungs, singleSz)

	buyOps := Reconcile(desiredBids, l.strategyOrders.bySide(instrument.SideBuy),
		instrument.SideBuy, l.inst, l.tdMode)
	sellOps := Reconcile(desiredAsks, l.strategyOrders.bySide(instrument.SideSell),
		instrument.SideSell, l.inst, l.tdMode)

	return buyOps.merge(sellOps), nil
}

// skewedRungCounts 按净头寸偏斜收缩档数
// 净头寸偏买时收缩买侧: ceil(base × max(1 − net/maxNetBuy, 0))；卖侧对称
func (l *Loop) skewedRungCounts() (buy, sell int) {
	buy = l.params.NumOfOrderEachSide
	sell = l.params.NumOfOrderEachSide
	net := l.measurement.NetFilledQty

	if net.IsPositive() && l.params.MaximumNetBuy.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(net.Div(l.params.MaximumNetBuy))
		if factor.IsNegative() {
			factor = decimal.Zero
		}
		buy = int(decimal.NewFromInt(int64(buy)).Mul(factor).Ceil().IntPart())
	}
	if net.IsNegative() && l.params.MaximumNetSell.IsPositive() {
		factor := decimal.NewFromInt(1).Add(net.Div(l.params.MaximumNetSell))
		if factor.IsNegative() {
			factor = decimal.Zero
		}
		sell = int(decimal.NewFromInt(int64(sell)).Mul(factor).Ceil().IntPart())
	}
	return buy, sell
}

// ladder 从盘口价逐档外推生成期望阶梯，价格对齐 tick size
func (l *Loop) ladder(touch decimal.Decimal, side instrument.Side, rungs int, sz decimal.Decimal) []Rung {
	out := make([]Rung, 0, rungs)
	one := decimal.NewFromInt(1)

	for i := 0; i < rungs; i++ {
		step := l.params.StepPct.Mul(decimal.NewFromInt(int64(i + 1)))
		var px decimal.Decimal
		if side == instrument.SideBuy {
			px = touch.Mul(one.Sub(step))
		} else {
			px = touch.Mul(one.Add(step))
		}
		out = append(out, Rung{Px: l.inst.TrimPriceByTick(px, side), Sz: sz})
	}
	return out
}

// submit 提交订单操作并维护策略订单影子状态
func (l *Loop) submit(ops Ops) error {
	if len(ops.Place) > 0 {
		for _, req := range ops.Place {
			l.strategyOrders[req.ClOrdID] = &StrategyOrder{
				ClOrdID:   req.ClOrdID,
				InstID:    req.InstID,
				Side:      instrument.Side(req.Side),
				Px:        mustDecimal(req.Px),
				Sz:        mustDecimal(req.Sz),
				Status:    StatusSent,
				CreatedAt: time.Now(),
			}
			l.logger.Info("下单",
				zap.String("clOrdId", req.ClOrdID), zap.String("side", req.Side),
				zap.String("px", req.Px), zap.String("sz", req.Sz))
		}
		if err := l.gateway.PlaceOrders(ops.Place); err != nil {
			for _, req := range ops.Place {
				delete(l.strategyOrders, req.ClOrdID)
			}
			return err
		}
	}

	if len(ops.Amend) > 0 {
		for _, req := range ops.Amend {
			so, ok := l.strategyOrders[req.ClOrdID]
			if !ok {
				continue
			}
			if req.NewPx != "" {
				so.Px = mustDecimal(req.NewPx)
			}
			if req.NewSz != "" {
				so.Sz = mustDecimal(req.NewSz)
			}
			so.AmendReqID = req.ReqID
			so.Status = StatusAmendSent
			l.logger.Info("改单",
				zap.String("clOrdId", req.ClOrdID),
				zap.String("newPx", req.NewPx), zap.String("newSz", req.NewSz))
		}
		if err := l.gateway.AmendOrders(ops.Amend); err != nil {
			return err
		}
	}

	if len(ops.Cancel) > 0 {
		for _, req := range ops.Cancel {
			if so, ok := l.strategyOrders[req.ClOrdID]; ok {
				so.Status = StatusCancelSent
			}
			l.logger.Info("撤单", zap.String("clOrdId", req.ClOrdID))
		}
		if err := l.gateway.CancelOrders(ops.Cancel); err != nil {
			return err
		}
	}

	return nil
}

// CancelAll 撤销全部在途策略订单
func (l *Loop) CancelAll() error {
	if len(l.strategyOrders) == 0 {
		return nil
	}

	reqs := make([]okx.CancelOrderRequest, 0, len(l.strategyOrders))
	for cid, so := range l.strategyOrders {
		reqs = append(reqs, okx.CancelOrderRequest{InstID: so.InstID, ClOrdID: cid})
		so.Status = StatusCancelSent
	}
	return l.gateway.CancelOrders(reqs)
}

// recordCycle 记录本周期的操作流水
func (l *Loop) recordCycle(ops Ops) {
	if l.journal == nil || ops.Empty() {
		return
	}
	rec := jsonl.OpRecord{
		Ts:           time.Now().UnixMilli(),
		InstID:       l.inst.InstID,
		Places:       len(ops.Place),
		Amends:       len(ops.Amend),
		Cancels:      len(ops.Cancel),
		NetFilledQty: l.measurement.NetFilledQty.String(),
		BidOrders:    len(l.strategyOrders.bySide(instrument.SideBuy)),
		AskOrders:    len(l.strategyOrders.bySide(instrument.SideSell)),
	}
	if err := l.journal.Append(rec); err != nil {
		l.logger.Warn("写入操作流水失败", zap.Error(err))
	}
}

// mustDecimal 解析由本进程生成的数值字符串
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
