package backtest

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
	"github.com/uhyunpark/lobsim/pkg/sim/core/engine"
	"github.com/uhyunpark/lobsim/pkg/sim/core/orderbook"
	"github.com/uhyunpark/lobsim/pkg/sim/feed"
	"github.com/uhyunpark/lobsim/pkg/sim/flow"
	"github.com/uhyunpark/lobsim/pkg/sim/pnl"
	"github.com/uhyunpark/lobsim/pkg/sim/strategy"
)

// Snapshot is one per-tick output row.
type Snapshot struct {
	Time          int64           `json:"time"`
	BestBid       int64           `json:"best_bid"` // 0 when the side is empty
	BestAsk       int64           `json:"best_ask"`
	Equity        decimal.Decimal `json:"equity"`
	Drawdown      float64         `json:"drawdown"`
	InventoryLots int64           `json:"inventory_lots"`
	Halted        bool            `json:"halted"`
}

// Result is the full recorded history of one run, handed to the analytics
// and reporting layers.
type Result struct {
	Snapshots   []Snapshot
	Trades      []core.Trade
	SkippedRows int
	EngineStats engine.Stats
	FinalState  strategy.State
}

// Runner drives one backtest: a single logical clock over the feed, with
// each tick's work (synthetic flow, strategy decision, matching, mark to
// market, snapshot) run to completion before the next tick. Every Run call
// builds its own component instances, so independent runs can execute in
// parallel with no shared state.
type Runner struct {
	cfg params.Config
	log *zap.SugaredLogger
}

func NewRunner(cfg params.Config, log *zap.SugaredLogger) *Runner {
	return &Runner{cfg: cfg, log: log}
}

// Run replays the feed in strictly increasing timestamp order. Malformed or
// out-of-order rows are skipped with a warning and the last valid reference
// price carries forward; they never abort the run. Cancellation is honored
// between ticks only.
func (r *Runner) Run(ctx context.Context, f feed.Feed) (*Result, error) {
	book := orderbook.New()
	eng := engine.New(book, r.cfg.Engine, r.log)
	flowSim := flow.New(r.cfg.Flow, r.cfg.RandomSeed)
	tracker := pnl.NewTracker(r.cfg.InitialCash, r.cfg.PriceScale, r.cfg.QtyScale, r.log)
	mm := strategy.NewMarketMaker(
		eng, book, tracker,
		strategy.NewInventoryQuoter(r.cfg.Strategy),
		r.cfg.Strategy, r.log,
	)

	res := &Result{}
	var lastTime int64
	var ref int64 // last valid reference price in ticks
	seeded := false

	for {
		select {
		case <-ctx.Done():
			res.EngineStats = eng.Stats()
			res.FinalState = mm.State()
			return res, ctx.Err()
		default:
		}

		c, ok := f.Next()
		if !ok {
			break
		}
		if !c.Valid() || c.Time <= lastTime {
			res.SkippedRows++
			if r.log != nil {
				r.log.Warnw("tick_skipped", "time", c.Time, "last_time", lastTime, "valid", c.Valid())
			}
			continue
		}

		now := c.Time
		ref = r.toTicks(c.Close)

		dt := r.cfg.TickIntervalMs
		if lastTime > 0 {
			dt = now - lastTime
		}

		if !seeded {
			for _, a := range flowSim.SeedBook(ref) {
				if _, err := eng.Submit(a.Side, a.Price, a.Qty, core.OwnerReplay, a.Type, now); err != nil {
					r.warnReject("seed", a, err)
				}
			}
			seeded = true
		}

		// (a) synthetic background flow
		q := r.quote(book, ref)
		for _, a := range flowSim.NextArrivals(now, dt, q) {
			if _, err := eng.Submit(a.Side, a.Price, a.Qty, core.OwnerFlow, a.Type, now); err != nil {
				r.warnReject("flow", a, err)
			}
		}

		// (b) strategy decision
		mm.OnTick(now, ref)

		// matching: everything submitted this tick has served its latency by
		// now+LatencyMs, so the whole tick's activity settles here.
		trades := eng.Advance(now + r.cfg.Engine.LatencyMs)
		for _, t := range trades {
			tracker.OnFill(t)
		}
		res.Trades = append(res.Trades, trades...)

		// (c) mark to market, (d) snapshot
		bid, _ := book.BestBid()
		ask, _ := book.BestAsk()
		tracker.MarkToMarket(bid, ask, ref)

		res.Snapshots = append(res.Snapshots, Snapshot{
			Time:          now,
			BestBid:       bid,
			BestAsk:       ask,
			Equity:        tracker.Equity(),
			Drawdown:      tracker.Drawdown(),
			InventoryLots: tracker.PositionLots(),
			Halted:        mm.State() == strategy.Halted,
		})

		lastTime = now
	}

	res.EngineStats = eng.Stats()
	res.FinalState = mm.State()
	if r.log != nil {
		r.log.Infow("run_complete",
			"ticks", len(res.Snapshots),
			"trades", len(res.Trades),
			"skipped_rows", res.SkippedRows,
			"final_state", res.FinalState.String(),
		)
	}
	return res, nil
}

func (r *Runner) quote(book *orderbook.Book, ref int64) flow.Quote {
	bid, hasBid := book.BestBid()
	ask, hasAsk := book.BestAsk()
	return flow.Quote{Bid: bid, Ask: ask, HasBid: hasBid, HasAsk: hasAsk, Ref: ref}
}

func (r *Runner) toTicks(price float64) int64 {
	return int64(math.Round(price * math.Pow10(int(r.cfg.PriceScale))))
}

func (r *Runner) warnReject(source string, a flow.Arrival, err error) {
	if r.log != nil {
		r.log.Warnw("order_rejected", "source", source, "side", a.Side.String(), "price", a.Price, "qty", a.Qty, "err", err)
	}
}
