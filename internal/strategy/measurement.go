package strategy

import "github.com/shopspring/decimal"

// Measurement 策略累计成交度量
// 成交量由每周期对账时的成交增量累加得出
type Measurement struct {
	// InstID 交易产品 ID
	InstID string
	// NetFilledQty 净成交数量（买正卖负）
	NetFilledQty decimal.Decimal
	// BuyFilledQty 买方向累计成交
	BuyFilledQty decimal.Decimal
	// SellFilledQty 卖方向累计成交
	SellFilledQty decimal.Decimal
	// TradingVolume 累计成交量（双向绝对值）
	TradingVolume decimal.Decimal
}

// recordFill 记录一笔成交增量
func (m *Measurement) recordFill(side string, delta decimal.Decimal) {
	if delta.IsZero() {
		return
	}
	m.TradingVolume = m.TradingVolume.Add(delta)
	if side == "buy" {
		m.NetFilledQty = m.NetFilledQty.Add(delta)
		m.BuyFilledQty = m.BuyFilledQty.Add(delta)
		return
	}
	m.NetFilledQty = m.NetFilledQty.Sub(delta)
	m.SellFilledQty = m.SellFilledQty.Add(delta)
}
