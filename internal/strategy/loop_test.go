package strategy

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"okx-market-maker/internal/book"
	"okx-market-maker/internal/instrument"
	"okx-market-maker/internal/okx"
	"okx-market-maker/internal/orders"

	acct "okx-market-maker/internal/account"
)

// fakeGateway 记录提交的订单操作
type fakeGateway struct {
	places  []okx.PlaceOrderRequest
	amends  []okx.AmendOrderRequest
	cancels []okx.CancelOrderRequest
}

func (g *fakeGateway) PlaceOrders(reqs []okx.PlaceOrderRequest) error {
	g.places = append(g.places, reqs...)
	return nil
}

func (g *fakeGateway) AmendOrders(reqs []okx.AmendOrderRequest) error {
	g.amends = append(g.amends, reqs...)
	return nil
}

func (g *fakeGateway) CancelOrders(reqs []okx.CancelOrderRequest) error {
	g.cancels = append(g.cancels, reqs...)
	return nil
}

// fakeBooks 固定副本的订单簿来源
type fakeBooks struct {
	replica *book.Replica
}

func (b *fakeBooks) Book() *book.Replica { return b.replica }

// freshBook 构造带盘口的副本，时间戳为当前
func freshBook(bidPx, askPx string) *book.Replica {
	r := book.NewReplica("BTC-USDT")
	batch := book.Batch{Snapshot: true, Ts: time.Now().UnixMilli()}
	if bidPx != "" {
		batch.Bids = []book.Level{{
			Px: decimal.RequireFromString(bidPx), Qty: decimal.NewFromInt(1),
			PxRaw: bidPx, QtyRaw: "1",
		}}
	}
	if askPx != "" {
		batch.Asks = []book.Level{{
			Px: decimal.RequireFromString(askPx), Qty: decimal.NewFromInt(1),
			PxRaw: askPx, QtyRaw: "1",
		}}
	}
	r.Apply(batch)
	return r
}

// readyAccount 构造账户数据就绪的容器
func readyAccount() *acct.Store {
	s := acct.NewStore()
	s.ApplyAccount(okx.AccountData{
		UTime:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		TotalEq: "10000",
	})
	return s
}

// newTestLoop 构造测试用策略循环
func newTestLoop(books BookSource, gw *fakeGateway, store *orders.Store) *Loop {
	return NewLoop(
		testInstrument(),
		instrument.TdModeCash,
		Params{
			StepPct:                     decimal.RequireFromString("0.01"),
			NumOfOrderEachSide:          3,
			SingleSizeAsMultipleOfLotSz: 10,
			MaximumNetBuy:               decimal.NewFromInt(5),
			MaximumNetSell:              decimal.NewFromInt(5),
		},
		gw, books, store, readyAccount(), nil, zap.NewNop(),
	)
}

func TestCyclePlacesInitialLadders(t *testing.T) {
	gw := &fakeGateway{}
	loop := newTestLoop(&fakeBooks{replica: freshBook("100", "101")}, gw, orders.NewStore())

	if err := loop.cycle(); err != nil {
		t.Fatalf("周期失败: %v", err)
	}
	if len(gw.places) != 6 {
		t.Fatalf("首周期应双边各挂 3 档: %d", len(gw.places))
	}
	if len(gw.amends) != 0 || len(gw.cancels) != 0 {
		t.Fatalf("首周期不应有改撤单")
	}

	// 买一档: 100×(1−0.01) = 99，向下对齐 0.1
	if gw.places[0].Px != "99" {
		t.Fatalf("买一档价格错误: %s", gw.places[0].Px)
	}
	// 数量 = lot 0.0001 × 10
	if gw.places[0].Sz != "0.001" {
		t.Fatalf("档位数量错误: %s", gw.places[0].Sz)
	}

	// 盘口不变时第二周期应无操作
	before := len(gw.places)
	if err := loop.cycle(); err != nil {
		t.Fatalf("第二周期失败: %v", err)
	}
	if len(gw.places) != before || len(gw.amends) != 0 || len(gw.cancels) != 0 {
		t.Fatalf("盘口不变不应产生操作")
	}
}

func TestCycleEmptyBook(t *testing.T) {
	gw := &fakeGateway{}
	r := book.NewReplica("BTC-USDT")
	r.SetTimestamp(time.Now().UnixMilli())
	loop := newTestLoop(&fakeBooks{replica: r}, gw, orders.NewStore())

	if err := loop.cycle(); err == nil {
		t.Fatalf("双边为空应返回 ErrEmptyBook")
	}
	if len(gw.places) != 0 {
		t.Fatalf("空盘口不应下单")
	}
}

func TestCycleOneSideAnchoring(t *testing.T) {
	gw := &fakeGateway{}
	// 只有买盘，卖侧用买一价锚定
	loop := newTestLoop(&fakeBooks{replica: freshBook("100", "")}, gw, orders.NewStore())

	if err := loop.cycle(); err != nil {
		t.Fatalf("单边盘口应降级报价: %v", err)
	}

	var sells int
	for _, p := range gw.places {
		if p.Side == "sell" {
			sells++
			// 卖一档: 100×1.01 = 101，向上对齐
			if sells == 1 && p.Px != "101" {
				t.Fatalf("锚定卖一档价格错误: %s", p.Px)
			}
		}
	}
	if sells != 3 {
		t.Fatalf("缺失侧也应报满档数: %d", sells)
	}
}

func TestCycleSkipsWhenBookStale(t *testing.T) {
	gw := &fakeGateway{}
	r := book.NewReplica("BTC-USDT")
	r.Apply(book.Batch{Snapshot: true, Ts: time.Now().Add(-5 * time.Minute).UnixMilli(),
		Bids: []book.Level{{Px: decimal.NewFromInt(100), Qty: decimal.NewFromInt(1), PxRaw: "100", QtyRaw: "1"}}})
	loop := newTestLoop(&fakeBooks{replica: r}, gw, orders.NewStore())

	if err := loop.cycle(); err != nil {
		t.Fatalf("数据过期应跳过而非报错: %v", err)
	}
	if len(gw.places) != 0 {
		t.Fatalf("数据过期时不应下单")
	}
}

func TestSkewedRungCounts(t *testing.T) {
	loop := newTestLoop(&fakeBooks{replica: freshBook("100", "101")}, &fakeGateway{}, orders.NewStore())
	loop.params.NumOfOrderEachSide = 5

	// 净头寸为 0 不收缩
	buy, sell := loop.skewedRungCounts()
	if buy != 5 || sell != 5 {
		t.Fatalf("无偏斜时不应收缩: buy=%d sell=%d", buy, sell)
	}

	// 净买 3，上限 5: buy = ceil(5×(1−3/5)) = 2
	loop.measurement.NetFilledQty = decimal.NewFromInt(3)
	buy, sell = loop.skewedRungCounts()
	if buy != 2 {
		t.Fatalf("买侧收缩错误: %d", buy)
	}
	if sell != 5 {
		t.Fatalf("卖侧不应收缩: %d", sell)
	}

	// 净买达到上限: 买侧归零
	loop.measurement.NetFilledQty = decimal.NewFromInt(5)
	buy, _ = loop.skewedRungCounts()
	if buy != 0 {
		t.Fatalf("达到上限买侧应归零: %d", buy)
	}

	// 净卖 3: sell = ceil(5×(1−3/5)) = 2
	loop.measurement.NetFilledQty = decimal.NewFromInt(-3)
	buy, sell = loop.skewedRungCounts()
	if sell != 2 || buy != 5 {
		t.Fatalf("卖侧收缩错误: buy=%d sell=%d", buy, sell)
	}
}

func TestSyncOrdersFillsAndTerminal(t *testing.T) {
	gw := &fakeGateway{}
	store := orders.NewStore()
	loop := newTestLoop(&fakeBooks{replica: freshBook("100", "101")}, gw, store)

	if err := loop.cycle(); err != nil {
		t.Fatalf("首周期失败: %v", err)
	}
	buyCid := ""
	for _, p := range gw.places {
		if p.Side == "buy" && p.Px == "99" {
			buyCid = p.ClOrdID
		}
	}
	if buyCid == "" {
		t.Fatalf("未找到买一档订单")
	}

	// 部分成交推送
	store.Apply([]okx.OrderData{{
		ClOrdID: buyCid, InstID: "BTC-USDT", Side: "buy",
		Px: "99", Sz: "0.001", AccFillSz: "0.0004",
		State: "partially_filled", UTime: "1",
	}})
	loop.syncOrders()

	if !loop.measurement.NetFilledQty.Equal(decimal.RequireFromString("0.0004")) {
		t.Fatalf("净成交错误: %s", loop.measurement.NetFilledQty)
	}
	if !loop.measurement.BuyFilledQty.Equal(decimal.RequireFromString("0.0004")) {
		t.Fatalf("买向成交错误: %s", loop.measurement.BuyFilledQty)
	}
	so := loop.strategyOrders[buyCid]
	if so.Status != StatusPartiallyFilled {
		t.Fatalf("策略订单状态错误: %s", so.Status)
	}

	// 完全成交推送：增量只累计一次，订单移出
	store.Apply([]okx.OrderData{{
		ClOrdID: buyCid, InstID: "BTC-USDT", Side: "buy",
		Px: "99", Sz: "0.001", AccFillSz: "0.001",
		State: "filled", UTime: "2",
	}})
	loop.syncOrders()

	if !loop.measurement.NetFilledQty.Equal(decimal.RequireFromString("0.001")) {
		t.Fatalf("终态后净成交错误: %s", loop.measurement.NetFilledQty)
	}
	if _, ok := loop.strategyOrders[buyCid]; ok {
		t.Fatalf("终态订单应移出策略缓存")
	}
	if _, ok := store.Get(buyCid); ok {
		t.Fatalf("终态订单应从订单容器移除")
	}
}

func TestSyncOrdersPrunesStaleSent(t *testing.T) {
	loop := newTestLoop(&fakeBooks{replica: freshBook("100", "101")}, &fakeGateway{}, orders.NewStore())

	loop.strategyOrders["ghost"] = &StrategyOrder{
		ClOrdID:   "ghost",
		Side:      instrument.SideBuy,
		Status:    StatusSent,
		CreatedAt: time.Now().Add(-time.Minute),
	}
	loop.strategyOrders["young"] = &StrategyOrder{
		ClOrdID:   "young",
		Side:      instrument.SideBuy,
		Status:    StatusSent,
		CreatedAt: time.Now(),
	}

	loop.syncOrders()
	if _, ok := loop.strategyOrders["ghost"]; ok {
		t.Fatalf("超时无推送的订单应被清理")
	}
	if _, ok := loop.strategyOrders["young"]; !ok {
		t.Fatalf("未超时的订单应保留")
	}
}

func TestCancelAll(t *testing.T) {
	gw := &fakeGateway{}
	loop := newTestLoop(&fakeBooks{replica: freshBook("100", "101")}, gw, orders.NewStore())

	if err := loop.cycle(); err != nil {
		t.Fatalf("周期失败: %v", err)
	}
	if err := loop.CancelAll(); err != nil {
		t.Fatalf("撤销全部失败: %v", err)
	}
	if len(gw.cancels) != 6 {
		t.Fatalf("应撤销全部在途单: %d", len(gw.cancels))
	}
	for _, so := range loop.strategyOrders {
		if so.Status != StatusCancelSent {
			t.Fatalf("撤单状态未标记: %s", so.Status)
		}
	}
}
