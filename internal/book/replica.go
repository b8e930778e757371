// 订单簿副本与校验和。
// 校验和算法为交易所公开约定：取买卖双方前 25 档，按档位序号交替拼接
// "买价:买量:卖价:卖量"（原始字符串），以冒号分隔，做 CRC32（IEEE），
// 结果按 32 位有符号整数解释后与交易所下发值比较。
package book

import (
	"hash/crc32"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// checksumDepth 校验和覆盖的档位深度（交易所约定）
const checksumDepth = 25

// Batch 一条行情消息携带的全部变更
// 同一消息内的档位变更、时间戳与校验和必须原子地应用，
// 保证校验和始终对应它所描述的簿状态
type Batch struct {
	// Snapshot 为 true 时整体替换，否则逐档增量更新
	Snapshot bool
	// Bids 买盘档位变更
	Bids []Level
	// Asks 卖盘档位变更
	Asks []Level
	// Ts 交易所时间戳（毫秒）
	Ts int64
	// Checksum 交易所下发的校验和（0 表示未提供）
	Checksum int32
}

// Replica 单个产品的订单簿副本
// 由一个行情监督器独占写入；任意 goroutine 可并发读取
type Replica struct {
	// instID 产品 ID，如 BTC-USDT-SWAP
	instID string

	mu sync.RWMutex
	// bids 买盘阶梯
	bids *ladder
	// asks 卖盘阶梯
	asks *ladder
	// ts 最后应用的交易所时间戳（毫秒）
	ts int64
	// exchChecksum 最后下发的交易所校验和
	exchChecksum int32
}

// NewReplica 创建空订单簿副本
func NewReplica(instID string) *Replica {
	return &Replica{
		instID: instID,
		bids:   newLadder(SideBid),
		asks:   newLadder(SideAsk),
	}
}

// InstID 返回产品 ID
func (r *Replica) InstID() string {
	return r.instID
}

// Apply 原子地应用一条消息的全部变更
func (r *Replica) Apply(b Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.Snapshot {
		if b.Bids != nil {
			r.bids.replaceAll(b.Bids)
		}
		if b.Asks != nil {
			r.asks.replaceAll(b.Asks)
		}
	} else {
		for _, lv := range b.Bids {
			r.bids.upsert(lv)
		}
		for _, lv := range b.Asks {
			r.asks.upsert(lv)
		}
	}

	if b.Ts != 0 {
		r.ts = b.Ts
	}
	if b.Checksum != 0 {
		r.exchChecksum = b.Checksum
	}
}

// ApplySnapshot 整体替换单边阶梯
func (r *Replica) ApplySnapshot(side Side, levels []Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.side(side).replaceAll(levels)
}

// ApplyUpdate 按价格更新单边的一个档位
func (r *Replica) ApplyUpdate(side Side, lv Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.side(side).upsert(lv)
}

// SetTimestamp 记录交易所时间戳（毫秒）
func (r *Replica) SetTimestamp(ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ts = ts
}

// SetExchChecksum 记录交易所下发的校验和
func (r *Replica) SetExchChecksum(v int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exchChecksum = v
}

// Timestamp 返回最后应用的交易所时间戳（毫秒）
func (r *Replica) Timestamp() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ts
}

// BestLevel 返回单边第 n 优档位（1 起始）
// 档位不足 n 时第二个返回值为 false
func (r *Replica) BestLevel(side Side, n int) (Level, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.side(side).at(n)
}

// Depth 返回单边档位数量
func (r *Replica) Depth(side Side) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.side(side).depth()
}

// MidPrice 返回买一卖一的中间价
// 任意一边为空时第二个返回值为 false
func (r *Replica) MidPrice() (decimal.Decimal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bid, okBid := r.bids.at(1)
	ask, okAsk := r.asks.at(1)
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Px.Add(ask.Px).Div(decimal.NewFromInt(2)), true
}

// VerifyChecksum 校验本地簿状态与交易所下发校验和是否一致
// 交易所尚未下发校验和（0）时视为一致
func (r *Replica) VerifyChecksum() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.exchChecksum == 0 {
		return true
	}
	return r.currentChecksum() == r.exchChecksum
}

// currentChecksum 计算当前簿状态的校验和
// 调用方必须持有读锁
func (r *Replica) currentChecksum() int32 {
	var sb strings.Builder

	bids := r.bids.levels
	asks := r.asks.levels
	n := len(bids)
	if len(asks) > n {
		n = len(asks)
	}

	for i := 0; i < n; i++ {
		if i < len(bids) {
			sb.WriteString(bids[i].PxRaw)
			sb.WriteByte(':')
			sb.WriteString(bids[i].QtyRaw)
			sb.WriteByte(':')
		}
		if i < len(asks) {
			sb.WriteString(asks[i].PxRaw)
			sb.WriteByte(':')
			sb.WriteString(asks[i].QtyRaw)
			sb.WriteByte(':')
		}
		if i+1 >= checksumDepth {
			break
		}
	}

	s := sb.String()
	if len(s) > 0 {
		s = s[:len(s)-1]
	}
	return int32(crc32.ChecksumIEEE([]byte(s)))
}

// side 返回指定方向的阶梯
func (r *Replica) side(s Side) *ladder {
	if s == SideBid {
		return r.bids
	}
	return r.asks
}
