package engine

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
	"github.com/uhyunpark/lobsim/pkg/sim/core/orderbook"
)

// Stats accumulates execution totals across a run.
type Stats struct {
	Trades        int
	VolumeLots    int64
	SlippageTicks int64 // total adverse ticks charged to market-type takers
}

// Engine accepts orders, applies the latency model, matches them against the
// book under price-time priority and applies the slippage model to
// market-type fills. Matching itself is ideal and deterministic; latency and
// slippage are layered on top so each is independently testable.
type Engine struct {
	book *orderbook.Book
	cfg  params.Engine
	log  *zap.SugaredLogger

	nextID  core.OrderID
	pending []*core.Order

	stats Stats
}

func New(book *orderbook.Book, cfg params.Engine, log *zap.SugaredLogger) *Engine {
	return &Engine{book: book, cfg: cfg, log: log}
}

// Submit validates an order, assigns it the next monotonic id and queues it.
// The order becomes matchable LatencyMs after now; nothing reaches the book
// until Advance. Market orders carry no limit price.
func (e *Engine) Submit(side core.Side, price, qty int64, owner core.Owner, typ core.OrderType, now int64) (core.OrderID, error) {
	if qty <= 0 {
		return 0, fmt.Errorf("qty %d: %w", qty, core.ErrInvalidOrder)
	}
	if typ != core.Market && price <= 0 {
		return 0, fmt.Errorf("price %d: %w", price, core.ErrInvalidOrder)
	}
	if side != core.Buy && side != core.Sell {
		return 0, fmt.Errorf("side %d: %w", side, core.ErrInvalidOrder)
	}

	e.nextID++
	o := &core.Order{
		ID:          e.nextID,
		Side:        side,
		Price:       price,
		Qty:         qty,
		Type:        typ,
		Owner:       owner,
		SubmittedAt: now,
		EffectiveAt: now + e.cfg.LatencyMs,
	}
	e.pending = append(e.pending, o)
	return o.ID, nil
}

// Cancel removes an order whether it is still in the latency queue or
// resting on the book. Unknown ids are a non-fatal ErrOrderNotFound.
func (e *Engine) Cancel(id core.OrderID) error {
	for i, o := range e.pending {
		if o.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return nil
		}
	}
	if e.book.Cancel(id) {
		return nil
	}
	return fmt.Errorf("cancel %d: %w", id, core.ErrOrderNotFound)
}

// Advance drains every queued order whose effective time has arrived, in
// (EffectiveAt, ID) order, and matches it. This is where near-simultaneous
// orders from different sources reorder against each other under the latency
// model. GTC remainders rest; IOC and Market remainders are discarded.
func (e *Engine) Advance(now int64) []core.Trade {
	sort.SliceStable(e.pending, func(i, j int) bool {
		if e.pending[i].EffectiveAt != e.pending[j].EffectiveAt {
			return e.pending[i].EffectiveAt < e.pending[j].EffectiveAt
		}
		return e.pending[i].ID < e.pending[j].ID
	})

	var out []core.Trade
	var rest []*core.Order
	for _, o := range e.pending {
		if o.EffectiveAt > now {
			rest = append(rest, o)
			continue
		}
		out = append(out, e.execute(o)...)
	}
	e.pending = rest
	return out
}

// Pending reports how many orders are still waiting out their latency.
func (e *Engine) Pending() int { return len(e.pending) }

func (e *Engine) Stats() Stats { return e.stats }

func (e *Engine) execute(o *core.Order) []core.Trade {
	trades := e.book.Match(o, o.EffectiveAt)

	if o.Type == core.Market && len(trades) > 0 {
		for i := range trades {
			adj := (trades[i].Price*e.cfg.SlippageBps + 5_000) / 10_000
			if o.Side == core.Buy {
				trades[i].TakerPrice = trades[i].Price + adj
			} else {
				trades[i].TakerPrice = trades[i].Price - adj
			}
			e.stats.SlippageTicks += adj
		}
	}

	for _, t := range trades {
		e.stats.Trades++
		e.stats.VolumeLots += t.Qty
	}

	if o.Qty > 0 {
		if o.Type == core.GTC {
			if err := e.book.Submit(o); err != nil {
				// Validated at Submit; a rejection here is an engine defect.
				panic(fmt.Sprintf("engine: resting validated order %d: %v", o.ID, err))
			}
		} else if e.log != nil {
			e.log.Debugw("remainder_discarded", "order", o.ID, "type", o.Type.String(), "qty", o.Qty)
		}
	}
	return trades
}

// ExecReport summarizes the taker-side execution of one order.
type ExecReport struct {
	OrderID       core.OrderID
	FilledLots    int64
	VWAPTicks     int64 // volume-weighted average taker price
	SlippageTicks int64 // total adverse ticks vs the book prices
}

// Report builds the execution report for a taker order from a trade log,
// false when the order never filled as taker.
func Report(trades []core.Trade, id core.OrderID) (ExecReport, bool) {
	rep := ExecReport{OrderID: id}
	var notional int64
	for _, t := range trades {
		if t.TakerID != id {
			continue
		}
		rep.FilledLots += t.Qty
		notional += t.TakerPrice * t.Qty
		adj := t.TakerPrice - t.Price
		if adj < 0 {
			adj = -adj
		}
		rep.SlippageTicks += adj
	}
	if rep.FilledLots == 0 {
		return ExecReport{OrderID: id}, false
	}
	rep.VWAPTicks = notional / rep.FilledLots
	return rep, true
}

// VWAP returns the volume-weighted average fill price in ticks for the given
// taker order across trades, false when it never filled.
func VWAP(trades []core.Trade, id core.OrderID) (int64, bool) {
	rep, ok := Report(trades, id)
	return rep.VWAPTicks, ok
}
