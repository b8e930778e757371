// Package strategy 实现阶梯报价做市策略。
// 策略订单是策略视角的订单影子，权威状态由订单频道推送确认。
package strategy

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/instrument"
)

// Status 策略订单状态
type Status string

// 策略订单状态阶梯
// 下单: Sent → Ack → Live → PartiallyFilled → Filled
// 改单: AmendSent → AmendAck → Live/PartiallyFilled
// 撤单: CancelSent → CancelAck → Canceled
const (
	StatusSent            Status = "SENT"
	StatusAck             Status = "ACK"
	StatusLive            Status = "LIVE"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCanceled        Status = "CANCELED"
	StatusAmendSent       Status = "AMD_SENT"
	StatusAmendAck        Status = "AMD_ACK"
	StatusCancelSent      Status = "CXL_SENT"
	StatusCancelAck       Status = "CXL_ACK"
)

// StrategyOrder 策略订单
type StrategyOrder struct {
	// ClOrdID 客户端订单 ID
	ClOrdID string
	// OrdID 交易所订单 ID，下单确认后回填
	OrdID string
	// InstID 产品 ID
	InstID string
	// Side 方向
	Side instrument.Side
	// Px 委托价格
	Px decimal.Decimal
	// Sz 委托数量
	Sz decimal.Decimal
	// FilledSz 累计成交数量
	FilledSz decimal.Decimal
	// AvgFillPx 成交均价
	AvgFillPx decimal.Decimal
	// Status 策略订单状态
	Status Status
	// AmendReqID 在途改单请求 ID
	AmendReqID string
	// CreatedAt 创建时间
	CreatedAt time.Time
}

// Remaining 剩余未成交数量
func (o *StrategyOrder) Remaining() decimal.Decimal {
	return o.Sz.Sub(o.FilledSz)
}

// orderBook 策略订单集合，键为客户端订单 ID
type orderBook map[string]*StrategyOrder

// bySide 返回指定方向的订单，买单价格降序、卖单价格升序（激进优先）
func (b orderBook) bySide(side instrument.Side) []*StrategyOrder {
	out := make([]*StrategyOrder, 0, len(b))
	for _, o := range b {
		if o.Side == side {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if side == instrument.SideBuy {
			return out[i].Px.GreaterThan(out[j].Px)
		}
		return out[i].Px.LessThan(out[j].Px)
	})
	return out
}
