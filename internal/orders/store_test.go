package orders

import (
	"testing"

	"github.com/shopspring/decimal"

	"okx-market-maker/internal/okx"
)

func TestApplyUpsert(t *testing.T) {
	s := NewStore()

	s.Apply([]okx.OrderData{{
		ClOrdID: "a1", OrdID: "1001", InstID: "BTC-USDT", Side: "buy",
		Px: "100", Sz: "2", AccFillSz: "0", State: "live", UTime: "10",
	}})

	o, ok := s.Get("a1")
	if !ok {
		t.Fatalf("订单未写入")
	}
	if o.Side != SideBuy || !o.Px.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("订单字段错误: %+v", o)
	}
	if !o.Remaining().Equal(decimal.NewFromInt(2)) {
		t.Fatalf("剩余数量错误: %s", o.Remaining())
	}

	// 部分成交更新
	s.Apply([]okx.OrderData{{
		ClOrdID: "a1", InstID: "BTC-USDT", Side: "buy",
		Px: "100", Sz: "2", AccFillSz: "0.5", State: "partially_filled", UTime: "20",
	}})
	o, _ = s.Get("a1")
	if o.State != StatePartiallyFilled {
		t.Fatalf("状态未更新: %s", o.State)
	}
	if !o.Remaining().Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("剩余数量错误: %s", o.Remaining())
	}
}

func TestApplyDropsStaleUpdate(t *testing.T) {
	s := NewStore()

	s.Apply([]okx.OrderData{{ClOrdID: "a1", Sz: "1", State: "filled", UTime: "30"}})
	// 乱序到达的旧推送不应回退状态
	s.Apply([]okx.OrderData{{ClOrdID: "a1", Sz: "1", State: "live", UTime: "20"}})

	o, _ := s.Get("a1")
	if o.State != StateFilled {
		t.Fatalf("旧推送不应覆盖新状态: %s", o.State)
	}
}

func TestApplySkipsMissingClOrdID(t *testing.T) {
	s := NewStore()
	s.Apply([]okx.OrderData{{OrdID: "1001", Sz: "1", State: "live", UTime: "1"}})
	if s.Len() != 0 {
		t.Fatalf("无客户端订单 ID 的推送不应入表")
	}
}

func TestLiveFiltersTerminal(t *testing.T) {
	s := NewStore()
	s.Apply([]okx.OrderData{
		{ClOrdID: "a1", Sz: "1", State: "live", UTime: "1"},
		{ClOrdID: "a2", Sz: "1", State: "partially_filled", UTime: "1"},
		{ClOrdID: "a3", Sz: "1", State: "filled", UTime: "1"},
		{ClOrdID: "a4", Sz: "1", State: "canceled", UTime: "1"},
		{ClOrdID: "a5", Sz: "1", State: "mmp_canceled", UTime: "1"},
	})

	live := s.Live()
	if len(live) != 2 {
		t.Fatalf("未终态订单数错误: %d", len(live))
	}
	// 终态订单保留在表中，由调用方确认后移除
	if s.Len() != 5 {
		t.Fatalf("终态订单应保留: %d", s.Len())
	}

	s.Remove("a3")
	if _, ok := s.Get("a3"); ok {
		t.Fatalf("移除失败")
	}
}

func TestStateTerminal(t *testing.T) {
	for _, st := range []State{StateFilled, StateCanceled, StateMmpCanceled} {
		if !st.Terminal() {
			t.Errorf("%s 应为终态", st)
		}
	}
	for _, st := range []State{StateLive, StatePartiallyFilled} {
		if st.Terminal() {
			t.Errorf("%s 不应为终态", st)
		}
	}
}
