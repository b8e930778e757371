// Package orders 维护订单频道推送的订单状态。
// 订单以客户端订单 ID 为键，推送按更新时间幂等合并。
package orders

import (
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/okx"
)

// State 交易所订单状态
type State string

// 订单状态枚举
const (
	StateLive            State = "live"
	StatePartiallyFilled State = "partially_filled"
	StateFilled          State = "filled"
	StateCanceled        State = "canceled"
	StateMmpCanceled     State = "mmp_canceled"
)

// Terminal 判断状态是否为终态
func (s State) Terminal() bool {
	return s == StateFilled || s == StateCanceled || s == StateMmpCanceled
}

// Side 订单方向
type Side string

// 订单方向枚举
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order 订单状态快照
type Order struct {
	// ClOrdID 客户端订单 ID
	ClOrdID string
	// OrdID 交易所订单 ID
	OrdID string
	// InstID 产品 ID
	InstID string
	// Side 方向
	Side Side
	// Px 委托价格
	Px decimal.Decimal
	// Sz 委托数量
	Sz decimal.Decimal
	// AccFillSz 累计成交数量
	AccFillSz decimal.Decimal
	// AvgPx 成交均价
	AvgPx decimal.Decimal
	// State 订单状态
	State State
	// UTime 更新时间（毫秒）
	UTime int64
}

// Remaining 剩余未成交数量
func (o Order) Remaining() decimal.Decimal {
	return o.Sz.Sub(o.AccFillSz)
}

// fromWire 从订单推送构建快照
func fromWire(d okx.OrderData) Order {
	return Order{
		ClOrdID:   d.ClOrdID,
		OrdID:     d.OrdID,
		InstID:    d.InstID,
		Side:      Side(d.Side),
		Px:        parseDecimal(d.Px),
		Sz:        parseDecimal(d.Sz),
		AccFillSz: parseDecimal(d.AccFillSz),
		AvgPx:     parseDecimal(d.AvgPx),
		State:     State(d.State),
		UTime:     parseMs(d.UTime),
	}
}

// parseDecimal 解析数值字符串，空串或非法值返回零
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// parseMs 解析毫秒时间戳字符串
func parseMs(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Store 订单状态容器
type Store struct {
	// mu 读写锁
	mu sync.RWMutex
	// orders 订单表，键为客户端订单 ID
	orders map[string]Order
}

// NewStore 创建订单状态容器
func NewStore() *Store {
	return &Store{orders: make(map[string]Order)}
}

// Apply 应用一批订单推送
// 乱序推送按更新时间丢弃旧数据；无客户端订单 ID 的推送跳过
func (s *Store) Apply(data []okx.OrderData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range data {
		if d.ClOrdID == "" {
			continue
		}
		incoming := fromWire(d)
		if existing, ok := s.orders[d.ClOrdID]; ok && existing.UTime > incoming.UTime {
			continue
		}
		s.orders[d.ClOrdID] = incoming
	}
}

// Get 获取指定客户端订单 ID 的订单
func (s *Store) Get(clOrdID string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[clOrdID]
	return o, ok
}

// Live 获取全部未终态订单的副本
func (s *Store) Live() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.State.Terminal() {
			continue
		}
		out = append(out, o)
	}
	return out
}

// Remove 移除已确认终态的订单
func (s *Store) Remove(clOrdID string) {
	s.mu.Lock()
	delete(s.orders, clOrdID)
	s.mu.Unlock()
}

// Len 订单表大小（含终态）
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
