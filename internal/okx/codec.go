// 订单簿消息向副本变更批次的解码。
// 档位数组格式: [价格, 数量, 废弃字段, 订单数]；原始字符串必须保留给校验和。
package okx

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/book"
)

// IsSnapshot 判断消息是否为全量快照
// 缺省 action 按快照处理（REST 深度接口与部分频道不带 action）
func (m *BooksMsg) IsSnapshot() bool {
	return m.Action == "" || m.Action == "snapshot"
}

// Batch 将单条深度数据解码为订单簿变更批次
func (d *BooksData) Batch(snapshot bool) (book.Batch, error) {
	bids, err := parseLevels(d.Bids)
	if err != nil {
		return book.Batch{}, fmt.Errorf("解码买盘档位失败: %w", err)
	}
	asks, err := parseLevels(d.Asks)
	if err != nil {
		return book.Batch{}, fmt.Errorf("解码卖盘档位失败: %w", err)
	}

	var ts int64
	if d.Ts != "" {
		ts, err = strconv.ParseInt(d.Ts, 10, 64)
		if err != nil {
			return book.Batch{}, fmt.Errorf("解码时间戳失败: %w", err)
		}
	}

	return book.Batch{
		Snapshot: snapshot,
		Bids:     bids,
		Asks:     asks,
		Ts:       ts,
		Checksum: d.Checksum,
	}, nil
}

// parseLevels 解码档位数组
func parseLevels(raw [][]string) ([]book.Level, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	levels := make([]book.Level, 0, len(raw))
	for _, entry := range raw {
		if len(entry) < 4 {
			return nil, fmt.Errorf("档位字段不足: %v", entry)
		}
		px, err := decimal.NewFromString(entry[0])
		if err != nil {
			return nil, fmt.Errorf("解码价格 %q 失败: %w", entry[0], err)
		}
		qty, err := decimal.NewFromString(entry[1])
		if err != nil {
			return nil, fmt.Errorf("解码数量 %q 失败: %w", entry[1], err)
		}
		count, err := strconv.ParseInt(entry[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("解码订单数 %q 失败: %w", entry[3], err)
		}
		levels = append(levels, book.Level{
			Px:         px,
			Qty:        qty,
			OrderCount: count,
			PxRaw:      entry[0],
			QtyRaw:     entry[1],
		})
	}
	return levels, nil
}

// IsPong 判断是否为心跳响应
func IsPong(data []byte) bool {
	return string(data) == "pong"
}
