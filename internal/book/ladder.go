// Package book 实现单个交易产品的本地订单簿副本。
// 买卖双方各维护一个有序的价格阶梯（Ladder），由快照整体替换、由增量更新逐档修改，
// 并通过交易所约定的 CRC32 校验和检测副本与权威行情的偏离。
package book

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Side 订单簿方向
type Side int

const (
	// SideBid 买盘（价格降序）
	SideBid Side = iota
	// SideAsk 卖盘（价格升序）
	SideAsk
)

// String 返回方向的可读名称
func (s Side) String() string {
	if s == SideBid {
		return "bid"
	}
	return "ask"
}

// Level 订单簿单个价格档位
// PxRaw/QtyRaw 保留交易所下发的原始字符串，校验和必须逐字节使用原始表示
type Level struct {
	// Px 价格
	Px decimal.Decimal
	// Qty 数量（0 表示删除该档位）
	Qty decimal.Decimal
	// OrderCount 该价位上的订单数
	OrderCount int64
	// PxRaw 价格原始字符串
	PxRaw string
	// QtyRaw 数量原始字符串
	QtyRaw string
}

// ladder 单边价格阶梯
// levels 始终有序：买盘降序、卖盘升序；不存在重复价格和零数量档位
type ladder struct {
	// levels 有序档位列表
	levels []Level
	// side 方向，决定排序顺序
	side Side
}

// newLadder 创建空阶梯
func newLadder(side Side) *ladder {
	return &ladder{side: side}
}

// before 判断价格 a 是否应排在价格 b 之前
// 买盘价格高者在前，卖盘价格低者在前
func (l *ladder) before(a, b decimal.Decimal) bool {
	if l.side == SideBid {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

// replaceAll 用快照整体替换阶梯
// 输入档位会被复制并按本方向排序；零数量档位被丢弃
func (l *ladder) replaceAll(levels []Level) {
	next := make([]Level, 0, len(levels))
	for _, lv := range levels {
		if lv.Qty.IsZero() {
			continue
		}
		next = append(next, lv)
	}
	sort.Slice(next, func(i, j int) bool {
		return l.before(next[i].Px, next[j].Px)
	})
	l.levels = next
}

// upsert 按价格插入或更新单个档位
// 数量为 0 时删除该价格（不存在则为 no-op）
func (l *ladder) upsert(lv Level) {
	// 二分查找插入位置：第一个不排在 lv 之前的下标
	i := sort.Search(len(l.levels), func(i int) bool {
		return !l.before(l.levels[i].Px, lv.Px)
	})

	if i < len(l.levels) && l.levels[i].Px.Equal(lv.Px) {
		if lv.Qty.IsZero() {
			l.levels = append(l.levels[:i], l.levels[i+1:]...)
			return
		}
		l.levels[i] = lv
		return
	}

	if lv.Qty.IsZero() {
		return
	}

	l.levels = append(l.levels, Level{})
	copy(l.levels[i+1:], l.levels[i:])
	l.levels[i] = lv
}

// at 返回第 n 优档位（1 起始）
func (l *ladder) at(n int) (Level, bool) {
	if n < 1 || n > len(l.levels) {
		return Level{}, false
	}
	return l.levels[n-1], true
}

// depth 返回档位数量
func (l *ladder) depth() int {
	return len(l.levels)
}
