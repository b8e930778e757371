// Package book 阶梯属性测试
package book

import (
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/shopspring/decimal"
)

// **Property: 任意快照/更新序列后，阶梯无零数量档位、无重复价格且保持本方向有序**

func TestLadder_Invariants_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// 档位生成器：有限价格域保证高概率触发同价更新与删除
	genLevel := gopter.CombineGens(
		gen.IntRange(1, 40),
		gen.IntRange(0, 5),
	).Map(func(vals []interface{}) Level {
		px := strconv.Itoa(vals[0].(int) * 10)
		qty := strconv.Itoa(vals[1].(int))
		return Level{
			Px:         decimal.RequireFromString(px),
			Qty:        decimal.RequireFromString(qty),
			OrderCount: 1,
			PxRaw:      px,
			QtyRaw:     qty,
		}
	})

	check := func(side Side) func([]Level) bool {
		return func(updates []Level) bool {
			l := newLadder(side)
			for _, lv := range updates {
				l.upsert(lv)
			}

			seen := map[string]bool{}
			for i, lv := range l.levels {
				if lv.Qty.IsZero() {
					return false
				}
				if seen[lv.Px.String()] {
					return false
				}
				seen[lv.Px.String()] = true
				if i > 0 && !l.before(l.levels[i-1].Px, lv.Px) {
					return false
				}
			}
			return true
		}
	}

	properties.Property("买盘任意更新序列后保持降序且无零档", prop.ForAll(
		check(SideBid), gen.SliceOf(genLevel),
	))
	properties.Property("卖盘任意更新序列后保持升序且无零档", prop.ForAll(
		check(SideAsk), gen.SliceOf(genLevel),
	))

	properties.TestingRun(t)
}
