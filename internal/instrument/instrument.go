// Package instrument 封装产品静态数据与交易模式推导。
package instrument

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/okx"
)

// InstType 产品类型
type InstType string

// 产品类型枚举
const (
	InstTypeSpot    InstType = "SPOT"
	InstTypeMargin  InstType = "MARGIN"
	InstTypeSwap    InstType = "SWAP"
	InstTypeFutures InstType = "FUTURES"
	InstTypeOption  InstType = "OPTION"
)

// TdMode 交易模式
type TdMode string

// 交易模式枚举
const (
	TdModeCash     TdMode = "cash"
	TdModeIsolated TdMode = "isolated"
	TdModeCross    TdMode = "cross"
)

// valid 判断是否为合法交易模式
func (m TdMode) valid() bool {
	return m == TdModeCash || m == TdModeIsolated || m == TdModeCross
}

// AcctMode 账户配置模式（acctLv）
type AcctMode int

// 账户配置模式枚举
const (
	// AcctModeCash 现货模式
	AcctModeCash AcctMode = 1
	// AcctModeSingleCcyMargin 单币种杠杆模式
	AcctModeSingleCcyMargin AcctMode = 2
	// AcctModeMultiCcyMargin 多币种杠杆模式
	AcctModeMultiCcyMargin AcctMode = 3
	// AcctModePortfolioMargin 组合保证金模式
	AcctModePortfolioMargin AcctMode = 4
)

// Side 订单方向
type Side string

// 订单方向枚举
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Instrument 产品静态数据
type Instrument struct {
	// InstID 产品 ID
	InstID string
	// InstType 产品类型
	InstType InstType
	// BaseCcy 交易货币
	BaseCcy string
	// QuoteCcy 计价货币
	QuoteCcy string
	// SettleCcy 结算货币（衍生品）
	SettleCcy string
	// CtVal 合约面值
	CtVal decimal.Decimal
	// TickSz 价格最小变动单位
	TickSz decimal.Decimal
	// LotSz 数量最小变动单位
	LotSz decimal.Decimal
	// MinSz 最小下单数量
	MinSz decimal.Decimal
	// State 产品状态，live 为可交易
	State string
}

// FromWire 从 REST 产品规格构建 Instrument
func FromWire(d okx.InstrumentData) (*Instrument, error) {
	inst := &Instrument{
		InstID:    d.InstID,
		InstType:  InstType(d.InstType),
		BaseCcy:   d.BaseCcy,
		QuoteCcy:  d.QuoteCcy,
		SettleCcy: d.SettleCcy,
		State:     d.State,
	}

	var err error
	if inst.TickSz, err = decimal.NewFromString(d.TickSz); err != nil {
		return nil, fmt.Errorf("解析 tickSz %q 失败: %w", d.TickSz, err)
	}
	if inst.LotSz, err = decimal.NewFromString(d.LotSz); err != nil {
		return nil, fmt.Errorf("解析 lotSz %q 失败: %w", d.LotSz, err)
	}
	if inst.MinSz, err = decimal.NewFromString(d.MinSz); err != nil {
		return nil, fmt.Errorf("解析 minSz %q 失败: %w", d.MinSz, err)
	}
	if d.CtVal != "" {
		if inst.CtVal, err = decimal.NewFromString(d.CtVal); err != nil {
			return nil, fmt.Errorf("解析 ctVal %q 失败: %w", d.CtVal, err)
		}
	}

	if inst.TickSz.IsZero() || inst.LotSz.IsZero() {
		return nil, fmt.Errorf("产品 %s 的 tickSz/lotSz 为零", d.InstID)
	}
	return inst, nil
}

// TrimPriceByTick 将价格修整到最小变动单位的整数倍
// 买单向下取整（避免买贵），卖单向上取整（避免卖贱）
func (i *Instrument) TrimPriceByTick(px decimal.Decimal, side Side) decimal.Decimal {
	ticks := px.Div(i.TickSz)
	if side == SideBuy {
		return ticks.Floor().Mul(i.TickSz)
	}
	return ticks.Ceil().Mul(i.TickSz)
}

// TrimQtyByLot 将数量向下修整到最小数量单位的整数倍
func (i *Instrument) TrimQtyByLot(qty decimal.Decimal) decimal.Decimal {
	return qty.Div(i.LotSz).Floor().Mul(i.LotSz)
}

// GuessInstTypeFromInstID 从产品 ID 推断产品类型
// BTC-USDT → SPOT；BTC-USDT-SWAP → SWAP；BTC-USDT-240927 → FUTURES；
// BTC-USD-240927-50000-C → OPTION
func GuessInstTypeFromInstID(instID string) InstType {
	parts := strings.Split(instID, "-")
	switch {
	case len(parts) >= 5:
		return InstTypeOption
	case len(parts) == 3 && parts[2] == "SWAP":
		return InstTypeSwap
	case len(parts) == 3:
		return InstTypeFutures
	default:
		return InstTypeSpot
	}
}
