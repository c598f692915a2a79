package strategy

import (
	"testing"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

func quoterCfg() params.Strategy {
	return params.Strategy{
		QuoteSpreadBps:      10,
		OrderSizeLots:       1_000,
		MaxInventoryLots:    50_000,
		InventorySkewFactor: 0.5,
	}
}

func findSide(intents []QuoteIntent, side core.Side) (QuoteIntent, bool) {
	for _, in := range intents {
		if in.Side == side {
			return in, true
		}
	}
	return QuoteIntent{}, false
}

func TestQuotesFlat(t *testing.T) {
	q := NewInventoryQuoter(quoterCfg())
	intents := q.Quotes(100_000, 0)

	if len(intents) != 2 {
		t.Fatalf("got %d intents, want 2", len(intents))
	}
	bid, _ := findSide(intents, core.Buy)
	ask, _ := findSide(intents, core.Sell)

	// half-spread = 100000 * 10bps / 2 = 50 ticks, no skew when flat.
	if bid.Price != 99_950 || ask.Price != 100_050 {
		t.Errorf("quotes %d/%d, want 99950/100050", bid.Price, ask.Price)
	}
	if bid.Qty != 1_000 || ask.Qty != 1_000 {
		t.Errorf("sizes %d/%d, want full 1000 lots when flat", bid.Qty, ask.Qty)
	}
}

func TestLongInventoryLowersQuotes(t *testing.T) {
	q := NewInventoryQuoter(quoterCfg())
	intents := q.Quotes(100_000, 25_000) // half of max inventory

	bid, okB := findSide(intents, core.Buy)
	ask, okA := findSide(intents, core.Sell)
	if !okB || !okA {
		t.Fatalf("missing a side: %+v", intents)
	}

	// skew = round(0.5 * 0.5 * 50) = 13; both quotes shift down.
	if bid.Price != 99_937 || ask.Price != 100_037 {
		t.Errorf("quotes %d/%d, want 99937/100037", bid.Price, ask.Price)
	}
	// Size tapers to 0.75 and the position-growing bid is halved again.
	if bid.Qty != 375 || ask.Qty != 750 {
		t.Errorf("sizes %d/%d, want 375/750", bid.Qty, ask.Qty)
	}
}

func TestShortInventoryRaisesQuotes(t *testing.T) {
	q := NewInventoryQuoter(quoterCfg())
	intents := q.Quotes(100_000, -25_000)

	bid, _ := findSide(intents, core.Buy)
	ask, _ := findSide(intents, core.Sell)
	if bid.Price != 99_963 || ask.Price != 100_063 {
		t.Errorf("quotes %d/%d, want 99963/100063", bid.Price, ask.Price)
	}
	if bid.Qty != 750 || ask.Qty != 375 {
		t.Errorf("sizes %d/%d, want 750/375", bid.Qty, ask.Qty)
	}
}

func TestMaxInventorySuppressesSide(t *testing.T) {
	q := NewInventoryQuoter(quoterCfg())

	intents := q.Quotes(100_000, 50_000) // at long cap
	if _, ok := findSide(intents, core.Buy); ok {
		t.Error("bid quoted at max long inventory")
	}
	if _, ok := findSide(intents, core.Sell); !ok {
		t.Error("ask missing at max long inventory")
	}

	intents = q.Quotes(100_000, -50_000) // at short cap
	if _, ok := findSide(intents, core.Sell); ok {
		t.Error("ask quoted at max short inventory")
	}
	if _, ok := findSide(intents, core.Buy); !ok {
		t.Error("bid missing at max short inventory")
	}
}

func TestNoQuotesWithoutMid(t *testing.T) {
	q := NewInventoryQuoter(quoterCfg())
	if intents := q.Quotes(0, 0); intents != nil {
		t.Errorf("quoted with no mid: %+v", intents)
	}
}

// ---- market maker state machine ----

type fakeExec struct {
	nextID  core.OrderID
	submits []QuoteIntent
	cancels []core.OrderID
}

func (f *fakeExec) Submit(side core.Side, price, qty int64, owner core.Owner, typ core.OrderType, now int64) (core.OrderID, error) {
	f.nextID++
	f.submits = append(f.submits, QuoteIntent{Side: side, Price: price, Qty: qty})
	return f.nextID, nil
}

func (f *fakeExec) Cancel(id core.OrderID) error {
	f.cancels = append(f.cancels, id)
	return nil
}

type fakeBook struct{ bid, ask int64 }

func (f fakeBook) BestBid() (int64, bool) { return f.bid, f.bid > 0 }
func (f fakeBook) BestAsk() (int64, bool) { return f.ask, f.ask > 0 }
func (f fakeBook) Mid() (int64, bool) {
	if f.bid > 0 && f.ask > 0 {
		return (f.bid + f.ask) / 2, true
	}
	return 0, false
}

type fakeRisk struct {
	dd  float64
	pos int64
}

func (f *fakeRisk) Drawdown() float64   { return f.dd }
func (f *fakeRisk) PositionLots() int64 { return f.pos }

func mmCfg(recovery float64) params.Strategy {
	cfg := quoterCfg()
	cfg.DrawdownHalt = 0.10
	cfg.HaltRecovery = recovery
	return cfg
}

func TestHaltOnDrawdown(t *testing.T) {
	exec := &fakeExec{}
	risk := &fakeRisk{}
	mm := NewMarketMaker(exec, fakeBook{bid: 99_990, ask: 100_010}, risk, NewInventoryQuoter(mmCfg(-1)), mmCfg(-1), nil)

	mm.OnTick(0, 100_000)
	if mm.State() != Active || len(exec.submits) != 2 {
		t.Fatalf("state=%v submits=%d, want active with 2 quotes", mm.State(), len(exec.submits))
	}

	risk.dd = 0.12
	mm.OnTick(100, 100_000)
	if mm.State() != Halted {
		t.Fatalf("state = %v, want halted at 12%% drawdown", mm.State())
	}
	if len(exec.cancels) != 2 {
		t.Errorf("cancels = %d, want both live quotes pulled", len(exec.cancels))
	}
	if len(exec.submits) != 2 {
		t.Errorf("submits = %d, want no new quotes on the halt tick", len(exec.submits))
	}

	// HaltRecovery < 0: the halt is final even after full recovery.
	risk.dd = 0
	mm.OnTick(200, 100_000)
	mm.OnTick(300, 100_000)
	if mm.State() != Halted {
		t.Errorf("state = %v, want halted forever under never-resume policy", mm.State())
	}
	if len(exec.submits) != 2 {
		t.Errorf("submits = %d, halted strategy placed orders", len(exec.submits))
	}
}

func TestHaltRecoveryHysteresis(t *testing.T) {
	exec := &fakeExec{}
	risk := &fakeRisk{}
	cfg := mmCfg(0.05)
	mm := NewMarketMaker(exec, fakeBook{bid: 99_990, ask: 100_010}, risk, NewInventoryQuoter(cfg), cfg, nil)

	risk.dd = 0.12
	mm.OnTick(0, 100_000)
	if mm.State() != Halted {
		t.Fatalf("state = %v, want halted", mm.State())
	}

	// Above the recovery threshold: stay halted.
	risk.dd = 0.08
	mm.OnTick(100, 100_000)
	if mm.State() != Halted {
		t.Fatalf("resumed at 8%% drawdown with 5%% recovery threshold")
	}

	risk.dd = 0.04
	mm.OnTick(200, 100_000)
	if mm.State() != Active {
		t.Fatalf("state = %v, want active below recovery threshold", mm.State())
	}
	if len(exec.submits) != 2 {
		t.Errorf("submits = %d, want quoting resumed", len(exec.submits))
	}
}

func TestMidFallbackToReference(t *testing.T) {
	exec := &fakeExec{}
	cfg := mmCfg(-1)
	mm := NewMarketMaker(exec, fakeBook{}, &fakeRisk{}, NewInventoryQuoter(cfg), cfg, nil)

	// Empty book: quotes center on the feed reference.
	mm.OnTick(0, 100_000)
	if len(exec.submits) != 2 {
		t.Fatalf("submits = %d, want 2 around the reference price", len(exec.submits))
	}
	bid, _ := findSide(exec.submits, core.Buy)
	ask, _ := findSide(exec.submits, core.Sell)
	if bid.Price != 99_950 || ask.Price != 100_050 {
		t.Errorf("quotes %d/%d, want 99950/100050 around ref", bid.Price, ask.Price)
	}

	// No book and no reference: nothing to quote against.
	exec.submits = nil
	mm2 := NewMarketMaker(exec, fakeBook{}, &fakeRisk{}, NewInventoryQuoter(cfg), cfg, nil)
	mm2.OnTick(0, 0)
	if len(exec.submits) != 0 {
		t.Errorf("quoted with no price information: %+v", exec.submits)
	}
}

func TestRequoteCancelsPrevious(t *testing.T) {
	exec := &fakeExec{}
	cfg := mmCfg(-1)
	mm := NewMarketMaker(exec, fakeBook{bid: 99_990, ask: 100_010}, &fakeRisk{}, NewInventoryQuoter(cfg), cfg, nil)

	mm.OnTick(0, 100_000)
	mm.OnTick(100, 100_000)

	if len(exec.submits) != 4 {
		t.Errorf("submits = %d, want 4 over two ticks", len(exec.submits))
	}
	// The second tick pulls the first tick's two quotes (ids 1 and 2).
	if len(exec.cancels) != 2 || exec.cancels[0] != 1 || exec.cancels[1] != 2 {
		t.Errorf("cancels = %v, want [1 2]", exec.cancels)
	}
}
