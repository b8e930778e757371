package strategy

import (
	"github.com/shopspring/decimal"

	"okx-market-maker/internal/instrument"
	"okx-market-maker/internal/okx"
	"okx-market-maker/internal/util/reqid"
)

// Rung 期望阶梯中的一档（价格、数量），已对齐 tick size 与 lot size
type Rung struct {
	// Px 价格
	Px decimal.Decimal
	// Sz 数量
	Sz decimal.Decimal
}

// Ops 一次对账产生的订单操作
type Ops struct {
	// Place 下单请求
	Place []okx.PlaceOrderRequest
	// Amend 改单请求
	Amend []okx.AmendOrderRequest
	// Cancel 撤单请求
	Cancel []okx.CancelOrderRequest
}

// Empty 是否无任何操作
func (o Ops) Empty() bool {
	return len(o.Place) == 0 && len(o.Amend) == 0 && len(o.Cancel) == 0
}

// merge 合并另一侧的操作
func (o Ops) merge(other Ops) Ops {
	return Ops{
		Place:  append(o.Place, other.Place...),
		Amend:  append(o.Amend, other.Amend...),
		Cancel: append(o.Cancel, other.Cancel...),
	}
}

// Reconcile 将期望阶梯与同侧在途策略订单对账，生成下单/改单/撤单操作
//
// 1. 精确保留：在途订单的 (价格, 剩余数量) 在期望阶梯中存在时，双方移出工作集，不产生操作。
// 2. 按位对账，遍历到两侧较长的长度：
//    超出在途 → 下新单；超出期望 → 撤尾部在途单；否则改单。
// 3. 改单只携带实际变化的字段：价格不同带新价格；剩余数量不同带新绝对数量
//    （已成交 + 期望剩余）。两者均未变化时不产生操作。
//
// 两侧列表均须激进优先排序，尾部撤/尾部放保证贴近盘口的档位跨周期稳定。
func Reconcile(
	desired []Rung,
	current []*StrategyOrder,
	side instrument.Side,
	inst *instrument.Instrument,
	tdMode instrument.TdMode,
) Ops {
	var ops Ops

	// 精确保留
	remainDesired := make([]Rung, 0, len(desired))
	remainDesired = append(remainDesired, desired...)
	remainCurrent := make([]*StrategyOrder, 0, len(current))

	for _, o := range current {
		remaining := inst.TrimQtyByLot(o.Remaining())
		matched := -1
		for i, r := range remainDesired {
			if r.Px.Equal(o.Px) && r.Sz.Equal(remaining) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			remainDesired = append(remainDesired[:matched], remainDesired[matched+1:]...)
			continue
		}
		remainCurrent = append(remainCurrent, o)
	}

	// 按位对账
	n := len(remainDesired)
	if len(remainCurrent) > n {
		n = len(remainCurrent)
	}
	for i := 0; i < n; i++ {
		// 下新单
		if i >= len(remainCurrent) {
			r := remainDesired[i]
			ops.Place = append(ops.Place, okx.PlaceOrderRequest{
				InstID:  inst.InstID,
				TdMode:  string(tdMode),
				Side:    string(side),
				OrdType: "limit",
				Sz:      r.Sz.String(),
				Px:      r.Px.String(),
				ClOrdID: reqid.New("order"),
				PosSide: "net",
				Ccy:     marginCcy(inst, side),
			})
			continue
		}
		// 撤尾部在途单
		if i >= len(remainDesired) {
			o := remainCurrent[i]
			ops.Cancel = append(ops.Cancel, okx.CancelOrderRequest{
				InstID:  o.InstID,
				ClOrdID: o.ClOrdID,
			})
			continue
		}
		// 改单
		o := remainCurrent[i]
		r := remainDesired[i]
		req := okx.AmendOrderRequest{
			InstID:  o.InstID,
			ClOrdID: o.ClOrdID,
			ReqID:   reqid.New("amend"),
		}
		changed := false
		if !r.Px.Equal(o.Px) {
			req.NewPx = r.Px.String()
			changed = true
		}
		if !r.Sz.Equal(o.Remaining()) {
			req.NewSz = o.FilledSz.Add(r.Sz).String()
			changed = true
		}
		if !changed {
			continue
		}
		ops.Amend = append(ops.Amend, req)
	}

	return ops
}

// marginCcy 杠杆产品的保证金币种：买方用交易货币，卖方用计价货币
func marginCcy(inst *instrument.Instrument, side instrument.Side) string {
	if inst.InstType != instrument.InstTypeMargin {
		return ""
	}
	if side == instrument.SideBuy {
		return inst.BaseCcy
	}
	return inst.QuoteCcy
}
