package orderbook

import (
	"errors"
	"testing"

	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

func rest(t *testing.T, b *Book, id core.OrderID, side core.Side, price, qty int64) {
	t.Helper()
	err := b.Submit(&core.Order{ID: id, Side: side, Price: price, Qty: qty, Type: core.GTC})
	if err != nil {
		t.Fatalf("submit %d: %v", id, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	b := New()

	tests := []struct {
		name  string
		order *core.Order
	}{
		{"zero price", &core.Order{ID: 1, Side: core.Buy, Price: 0, Qty: 100}},
		{"negative price", &core.Order{ID: 2, Side: core.Buy, Price: -1, Qty: 100}},
		{"zero qty", &core.Order{ID: 3, Side: core.Sell, Price: 100, Qty: 0}},
		{"bad side", &core.Order{ID: 4, Side: 0, Price: 100, Qty: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Submit(tt.order)
			if !errors.Is(err, core.ErrInvalidOrder) {
				t.Errorf("want ErrInvalidOrder, got %v", err)
			}
		})
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := New()
	// Two sellers at 1000 (FIFO order 1 then 2), a better one at 990.
	rest(t, b, 1, core.Sell, 1000, 50)
	rest(t, b, 2, core.Sell, 1000, 30)
	rest(t, b, 3, core.Sell, 990, 40)

	taker := &core.Order{ID: 4, Side: core.Buy, Price: 1005, Qty: 100, Type: core.GTC}
	trades := b.Match(taker, 1)

	want := []struct {
		maker core.OrderID
		price int64
		qty   int64
	}{
		{3, 990, 40},  // best price first
		{1, 1000, 50}, // then FIFO within the level
		{2, 1000, 10},
	}
	if len(trades) != len(want) {
		t.Fatalf("got %d trades, want %d", len(trades), len(want))
	}
	for i, w := range want {
		if trades[i].MakerID != w.maker || trades[i].Price != w.price || trades[i].Qty != w.qty {
			t.Errorf("trade %d: got maker=%d price=%d qty=%d, want maker=%d price=%d qty=%d",
				i, trades[i].MakerID, trades[i].Price, trades[i].Qty, w.maker, w.price, w.qty)
		}
	}
	if taker.Qty != 0 {
		t.Errorf("taker remainder = %d, want 0", taker.Qty)
	}
	// Order 2 keeps its 20 remaining lots at the front of 1000.
	if got := b.RestingQty(core.Sell); got != 20 {
		t.Errorf("resting ask qty = %d, want 20", got)
	}
	if ask, ok := b.BestAsk(); !ok || ask != 1000 {
		t.Errorf("best ask = %d,%v; want 1000,true", ask, ok)
	}
	if b.LastPrice() != 1000 {
		t.Errorf("last price = %d, want 1000", b.LastPrice())
	}
}

func TestPartialFillRests(t *testing.T) {
	b := New()
	rest(t, b, 1, core.Buy, 1000, 100)

	taker := &core.Order{ID: 2, Side: core.Sell, Price: 1000, Qty: 40, Type: core.GTC}
	trades := b.Match(taker, 1)
	if len(trades) != 1 || trades[0].Qty != 40 {
		t.Fatalf("got %v, want one 40-lot fill", trades)
	}
	if got := b.RestingQty(core.Buy); got != 60 {
		t.Errorf("resting bid qty = %d, want 60", got)
	}
}

func TestNoCrossNoMatch(t *testing.T) {
	b := New()
	rest(t, b, 1, core.Sell, 1000, 50)

	taker := &core.Order{ID: 2, Side: core.Buy, Price: 990, Qty: 50, Type: core.GTC}
	if trades := b.Match(taker, 1); len(trades) != 0 {
		t.Fatalf("uncrossed taker produced trades: %v", trades)
	}
	if taker.Qty != 50 {
		t.Errorf("taker qty = %d, want unchanged 50", taker.Qty)
	}
}

func TestMarketTakerIgnoresPrice(t *testing.T) {
	b := New()
	rest(t, b, 1, core.Sell, 5000, 10)
	rest(t, b, 2, core.Sell, 6000, 10)

	taker := &core.Order{ID: 3, Side: core.Buy, Qty: 20, Type: core.Market}
	trades := b.Match(taker, 1)
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}
	if trades[0].Price != 5000 || trades[1].Price != 6000 {
		t.Errorf("fill prices %d,%d; want 5000,6000", trades[0].Price, trades[1].Price)
	}
	if ask, ok := b.BestAsk(); ok {
		t.Errorf("ask side not empty, best = %d", ask)
	}
}

func TestCancel(t *testing.T) {
	b := New()
	rest(t, b, 1, core.Buy, 1000, 50)
	rest(t, b, 2, core.Buy, 1000, 30)

	if !b.Cancel(1) {
		t.Fatal("cancel of resting order returned false")
	}
	if b.Cancel(1) {
		t.Error("second cancel of same id returned true")
	}
	if b.Cancel(99) {
		t.Error("cancel of unknown id returned true")
	}
	if got := b.RestingQty(core.Buy); got != 30 {
		t.Errorf("resting bid qty = %d, want 30", got)
	}

	// Cancelling the last order at a level prunes it.
	if !b.Cancel(2) {
		t.Fatal("cancel of order 2 returned false")
	}
	if _, ok := b.BestBid(); ok {
		t.Error("bid side should be empty after cancelling both orders")
	}
}

func TestDepth(t *testing.T) {
	b := New()
	rest(t, b, 1, core.Buy, 1000, 50)
	rest(t, b, 2, core.Buy, 1000, 30)
	rest(t, b, 3, core.Buy, 990, 20)
	rest(t, b, 4, core.Buy, 980, 10)
	rest(t, b, 5, core.Sell, 1010, 25)

	levels := b.Depth(core.Buy, 2)
	want := []Level{{Price: 1000, Qty: 80}, {Price: 990, Qty: 20}}
	if len(levels) != 2 {
		t.Fatalf("got %d levels, want 2", len(levels))
	}
	for i, w := range want {
		if levels[i] != w {
			t.Errorf("level %d = %+v, want %+v", i, levels[i], w)
		}
	}

	asks := b.Depth(core.Sell, 5)
	if len(asks) != 1 || asks[0].Price != 1010 || asks[0].Qty != 25 {
		t.Errorf("ask depth = %+v, want one 25@1010 level", asks)
	}
}

func TestMid(t *testing.T) {
	b := New()
	if _, ok := b.Mid(); ok {
		t.Error("empty book reported a mid")
	}
	rest(t, b, 1, core.Buy, 990, 10)
	if _, ok := b.Mid(); ok {
		t.Error("one-sided book reported a mid")
	}
	rest(t, b, 2, core.Sell, 1010, 10)
	if mid, ok := b.Mid(); !ok || mid != 1000 {
		t.Errorf("mid = %d,%v; want 1000,true", mid, ok)
	}
}
