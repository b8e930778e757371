// Package account 维护私有频道推送的账户、持仓与资产状态。
// 账户频道为全量快照，持仓与资产频道为增量合并。
package account

import (
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/okx"
)

// Detail 单币种账户明细
type Detail struct {
	// Ccy 币种
	Ccy string
	// Eq 币种权益
	Eq decimal.Decimal
	// CashBal 现金余额
	CashBal decimal.Decimal
	// AvailBal 可用余额
	AvailBal decimal.Decimal
	// FrozenBal 冻结余额
	FrozenBal decimal.Decimal
	// UTime 更新时间（毫秒）
	UTime int64
}

// Snapshot 账户快照
type Snapshot struct {
	// TotalEq 美元层面总权益
	TotalEq decimal.Decimal
	// AdjEq 调整后权益
	AdjEq decimal.Decimal
	// UTime 更新时间（毫秒）
	UTime int64
	// Details 各币种明细，键为币种
	Details map[string]Detail
}

// PositionKey 持仓唯一键
type PositionKey struct {
	// InstID 产品 ID
	InstID string
	// PosSide 持仓方向
	PosSide string
	// MgnMode 保证金模式
	MgnMode string
}

// Position 单条持仓
type Position struct {
	// Key 持仓唯一键
	Key PositionKey
	// InstType 产品类型
	InstType string
	// Pos 持仓数量
	Pos decimal.Decimal
	// AvgPx 开仓均价
	AvgPx decimal.Decimal
	// Upl 未实现盈亏
	Upl decimal.Decimal
	// Ccy 保证金币种
	Ccy string
	// UTime 更新时间（毫秒）
	UTime int64
}

// Balance 单币种现金余额（资产与持仓频道）
type Balance struct {
	// Ccy 币种
	Ccy string
	// CashBal 现金余额
	CashBal decimal.Decimal
	// UTime 更新时间（毫秒）
	UTime int64
}

// Store 账户状态容器
// 单写多读：推送分发协程写入，策略读取
type Store struct {
	// mu 读写锁
	mu sync.RWMutex
	// account 最近账户快照，未就绪时为 nil
	account *Snapshot
	// positions 持仓表
	positions map[PositionKey]Position
	// balances 资产与持仓频道的余额表，键为币种
	balances map[string]Balance
}

// NewStore 创建账户状态容器
func NewStore() *Store {
	return &Store{
		positions: make(map[PositionKey]Position),
		balances:  make(map[string]Balance),
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

// ApplyAccount 应用账户频道推送（全量快照，整体替换）
func (s *Store) ApplyAccount(data okx.AccountData) {
	snap := &Snapshot{
		TotalEq: parseDecimal(data.TotalEq),
		AdjEq:   parseDecimal(data.AdjEq),
		UTime:   parseMs(data.UTime),
		Details: make(map[string]Detail, len(data.Details)),
	}
	for _, d := range data.Details {
		snap.Details[d.Ccy] = Detail{
			Ccy:       d.Ccy,
			Eq:        parseDecimal(d.Eq),
			CashBal:   parseDecimal(d.CashBal),
			AvailBal:  parseDecimal(d.AvailBal),
			FrozenBal: parseDecimal(d.FrozenBal),
			UTime:     parseMs(d.UTime),
		}
	}

	s.mu.Lock()
	s.account = snap
	s.mu.Unlock()
}

// ApplyPositions 应用持仓频道推送（按键合并，数量归零移除）
func (s *Store) ApplyPositions(data []okx.PositionData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range data {
		key := PositionKey{InstID: d.InstID, PosSide: d.PosSide, MgnMode: d.MgnMode}
		pos := parseDecimal(d.Pos)
		if pos.IsZero() {
			delete(s.positions, key)
			continue
		}
		s.positions[key] = Position{
			Key:      key,
			InstType: d.InstType,
			Pos:      pos,
			AvgPx:    parseDecimal(d.AvgPx),
			Upl:      parseDecimal(d.Upl),
			Ccy:      d.Ccy,
			UTime:    parseMs(d.UTime),
		}
	}
}

// ApplyBalanceAndPosition 应用资产与持仓频道推送（按币种/持仓键合并）
func (s *Store) ApplyBalanceAndPosition(data okx.BalanceAndPositionData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range data.BalData {
		s.balances[b.Ccy] = Balance{
			Ccy:     b.Ccy,
			CashBal: parseDecimal(b.CashBal),
			UTime:   parseMs(b.UTime),
		}
	}
	for _, p := range data.PosData {
		key := PositionKey{InstID: p.InstID, PosSide: p.PosSide, MgnMode: p.MgnMode}
		pos := parseDecimal(p.Pos)
		if pos.IsZero() {
			delete(s.positions, key)
			continue
		}
		s.positions[key] = Position{
			Key:      key,
			InstType: p.InstType,
			Pos:      pos,
			AvgPx:    parseDecimal(p.AvgPx),
			Ccy:      p.Ccy,
			UTime:    parseMs(p.UTime),
		}
	}
}

// Account 获取最近账户快照
// 第二个返回值表示账户数据是否已就绪
func (s *Store) Account() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return Snapshot{}, false
	}
	return *s.account, true
}

// Detail 获取单币种账户明细
func (s *Store) Detail(ccy string) (Detail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return Detail{}, false
	}
	d, ok := s.account.Details[ccy]
	return d, ok
}

// Positions 获取全部持仓的副本
func (s *Store) Positions() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Position 获取指定键的持仓
func (s *Store) Position(key PositionKey) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[key]
	return p, ok
}

// Balance 获取资产与持仓频道的单币种余额
func (s *Store) Balance(ccy string) (Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[ccy]
	return b, ok
}

// AccountUTime 账户快照更新时间（毫秒），未就绪返回 0
func (s *Store) AccountUTime() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.account == nil {
		return 0
	}
	return s.account.UTime
}
