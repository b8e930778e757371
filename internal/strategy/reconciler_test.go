package strategy

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"

	"okx-market-maker/internal/instrument"
)

// testInstrument 测试用现货产品
func testInstrument() *instrument.Instrument {
	return &instrument.Instrument{
		InstID:   "BTC-USDT",
		InstType: instrument.InstTypeSpot,
		BaseCcy:  "BTC",
		QuoteCcy: "USDT",
		TickSz:   decimal.RequireFromString("0.1"),
		LotSz:    decimal.RequireFromString("0.0001"),
		MinSz:    decimal.RequireFromString("0.0001"),
	}
}

// mkRung 构造一档
func mkRung(px, sz string) Rung {
	return Rung{Px: decimal.RequireFromString(px), Sz: decimal.RequireFromString(sz)}
}

// mkOrder 构造在途策略订单
func mkOrder(cid, px, sz, filled string, side instrument.Side) *StrategyOrder {
	return &StrategyOrder{
		ClOrdID:  cid,
		InstID:   "BTC-USDT",
		Side:     side,
		Px:       decimal.RequireFromString(px),
		Sz:       decimal.RequireFromString(sz),
		FilledSz: decimal.RequireFromString(filled),
		Status:   StatusLive,
	}
}

func TestReconcileIdempotence(t *testing.T) {
	inst := testInstrument()
	desired := []Rung{mkRung("100", "1"), mkRung("99", "1")}
	current := []*StrategyOrder{
		mkOrder("a1", "100", "1", "0", instrument.SideBuy),
		mkOrder("a2", "99", "1", "0", instrument.SideBuy),
	}

	ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
	if !ops.Empty() {
		t.Fatalf("期望与在途一致时不应产生操作: %+v", ops)
	}
}

func TestReconcileTailPlace(t *testing.T) {
	inst := testInstrument()
	desired := []Rung{mkRung("100", "1"), mkRung("99", "1"), mkRung("98", "1")}
	current := []*StrategyOrder{
		mkOrder("a1", "100", "1", "0", instrument.SideBuy),
		mkOrder("a2", "99", "1", "0", instrument.SideBuy),
	}

	ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
	if len(ops.Place) != 1 || len(ops.Amend) != 0 || len(ops.Cancel) != 0 {
		t.Fatalf("应恰好一笔尾部下单: %+v", ops)
	}
	if ops.Place[0].Px != "98" || ops.Place[0].Sz != "1" {
		t.Fatalf("下单价格数量错误: %+v", ops.Place[0])
	}
	if ops.Place[0].ClOrdID == "" {
		t.Fatalf("下单必须携带客户端订单 ID")
	}
	if ops.Place[0].OrdType != "limit" || ops.Place[0].PosSide != "net" {
		t.Fatalf("下单固定字段错误: %+v", ops.Place[0])
	}
}

func TestReconcileTailCancel(t *testing.T) {
	inst := testInstrument()
	desired := []Rung{mkRung("100", "1"), mkRung("99", "1")}
	current := []*StrategyOrder{
		mkOrder("a1", "100", "1", "0", instrument.SideBuy),
		mkOrder("a2", "99", "1", "0", instrument.SideBuy),
		mkOrder("a3", "98", "1", "0", instrument.SideBuy),
	}

	ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
	if len(ops.Place) != 0 || len(ops.Amend) != 0 || len(ops.Cancel) != 1 {
		t.Fatalf("应恰好一笔尾部撤单: %+v", ops)
	}
	if ops.Cancel[0].ClOrdID != "a3" {
		t.Fatalf("应撤销尾部订单 a3: %s", ops.Cancel[0].ClOrdID)
	}
}

func TestReconcileAmendPriceOnly(t *testing.T) {
	inst := testInstrument()
	desired := []Rung{mkRung("101", "1")}
	current := []*StrategyOrder{mkOrder("a1", "100", "1", "0", instrument.SideBuy)}

	ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
	if len(ops.Amend) != 1 || len(ops.Place) != 0 || len(ops.Cancel) != 0 {
		t.Fatalf("应恰好一笔改单: %+v", ops)
	}
	am := ops.Amend[0]
	if am.NewPx != "101" {
		t.Fatalf("新价格错误: %q", am.NewPx)
	}
	if am.NewSz != "" {
		t.Fatalf("数量未变不应携带新数量: %q", am.NewSz)
	}
	if am.ReqID == "" {
		t.Fatalf("改单必须携带请求 ID")
	}
}

func TestReconcileAmendSizeAddsFilled(t *testing.T) {
	inst := testInstrument()
	// 在途订单 2 已成交 0.5，剩余 1.5；期望剩余 2 → 新绝对数量 = 0.5 + 2 = 2.5
	desired := []Rung{mkRung("100", "2")}
	current := []*StrategyOrder{mkOrder("a1", "100", "2", "0.5", instrument.SideBuy)}

	ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
	if len(ops.Amend) != 1 {
		t.Fatalf("应恰好一笔改单: %+v", ops)
	}
	am := ops.Amend[0]
	if am.NewPx != "" {
		t.Fatalf("价格未变不应携带新价格: %q", am.NewPx)
	}
	if am.NewSz != "2.5" {
		t.Fatalf("新绝对数量应为已成交加期望剩余: %q", am.NewSz)
	}
}

func TestReconcileRetentionUsesRemainingSize(t *testing.T) {
	inst := testInstrument()
	// 在途订单 2 已成交 1，剩余 1，与期望 (100, 1) 精确匹配，不产生操作
	desired := []Rung{mkRung("100", "1")}
	current := []*StrategyOrder{mkOrder("a1", "100", "2", "1", instrument.SideBuy)}

	ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
	if !ops.Empty() {
		t.Fatalf("剩余数量匹配时不应产生操作: %+v", ops)
	}
}

func TestReconcileMarginCcy(t *testing.T) {
	inst := testInstrument()
	inst.InstType = instrument.InstTypeMargin

	buy := Reconcile([]Rung{mkRung("100", "1")}, nil, instrument.SideBuy, inst, instrument.TdModeCross)
	if buy.Place[0].Ccy != "BTC" {
		t.Fatalf("杠杆买单保证金币种应为交易货币: %q", buy.Place[0].Ccy)
	}
	sell := Reconcile([]Rung{mkRung("101", "1")}, nil, instrument.SideSell, inst, instrument.TdModeCross)
	if sell.Place[0].Ccy != "USDT" {
		t.Fatalf("杠杆卖单保证金币种应为计价货币: %q", sell.Place[0].Ccy)
	}

	inst.InstType = instrument.InstTypeSpot
	spot := Reconcile([]Rung{mkRung("100", "1")}, nil, instrument.SideBuy, inst, instrument.TdModeCash)
	if spot.Place[0].Ccy != "" {
		t.Fatalf("现货下单不应携带保证金币种: %q", spot.Place[0].Ccy)
	}
}

// 守恒性质：执行对账操作后，在途订单数等于期望阶梯长度
func TestReconcileConservationProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	inst := testInstrument()

	properties.Property("下单数-撤单数 = 期望档数-在途档数", prop.ForAll(
		func(desiredPx []int, currentPx []int) bool {
			desired := make([]Rung, 0, len(desiredPx))
			for _, p := range desiredPx {
				desired = append(desired, Rung{
					Px: decimal.NewFromInt(int64(100 + p)),
					Sz: decimal.NewFromInt(1),
				})
			}
			current := make([]*StrategyOrder, 0, len(currentPx))
			for i, p := range currentPx {
				current = append(current, &StrategyOrder{
					ClOrdID: string(rune('a' + i)),
					InstID:  "BTC-USDT",
					Side:    instrument.SideBuy,
					Px:      decimal.NewFromInt(int64(100 + p)),
					Sz:      decimal.NewFromInt(1),
					Status:  StatusLive,
				})
			}

			ops := Reconcile(desired, current, instrument.SideBuy, inst, instrument.TdModeCash)
			return len(ops.Place)-len(ops.Cancel) == len(desired)-len(current)
		},
		gen.SliceOf(gen.IntRange(0, 9)),
		gen.SliceOf(gen.IntRange(0, 9)),
	))

	properties.TestingRun(t)
}
