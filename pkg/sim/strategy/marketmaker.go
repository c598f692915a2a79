package strategy

import (
	"errors"

	"go.uber.org/zap"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

type State int8

const (
	Active State = iota
	Halted
)

func (s State) String() string {
	if s == Halted {
		return "halted"
	}
	return "active"
}

// MarketMaker requotes a bid and an ask every tick while Active, and runs
// the risk-halt state machine: drawdown at or above the configured threshold
// cancels everything and stops quoting. Whether the strategy may resume is
// explicit configuration: HaltRecovery < 0 means never within the run,
// otherwise it resumes once drawdown falls below the recovery threshold.
type MarketMaker struct {
	exec   Execer
	book   BookView
	risk   RiskView
	quoter Quoter
	cfg    params.Strategy
	log    *zap.SugaredLogger

	state     State
	activeBid core.OrderID // 0 when no live quote
	activeAsk core.OrderID
}

func NewMarketMaker(exec Execer, book BookView, risk RiskView, quoter Quoter, cfg params.Strategy, log *zap.SugaredLogger) *MarketMaker {
	mm := &MarketMaker{
		exec:   exec,
		book:   book,
		risk:   risk,
		quoter: quoter,
		cfg:    cfg,
		log:    log,
		state:  Active,
	}
	if log != nil {
		policy := "never"
		if cfg.HaltRecovery >= 0 {
			policy = "hysteresis"
		}
		log.Infow("marketmaker_init",
			"spread_bps", cfg.QuoteSpreadBps,
			"max_inventory_lots", cfg.MaxInventoryLots,
			"drawdown_halt", cfg.DrawdownHalt,
			"halt_recovery", policy,
		)
	}
	return mm
}

func (mm *MarketMaker) State() State { return mm.state }

// OnTick runs one decision cycle. ref is the feed reference price in ticks,
// used as the mid fallback when the book is one-sided or empty.
func (mm *MarketMaker) OnTick(now int64, ref int64) {
	dd := mm.risk.Drawdown()

	switch mm.state {
	case Active:
		if mm.cfg.DrawdownHalt > 0 && dd >= mm.cfg.DrawdownHalt {
			mm.state = Halted
			mm.cancelQuotes()
			if mm.log != nil {
				mm.log.Warnw("strategy_halted", "drawdown", dd, "threshold", mm.cfg.DrawdownHalt)
			}
			return
		}
	case Halted:
		if mm.cfg.HaltRecovery < 0 || dd >= mm.cfg.HaltRecovery {
			return
		}
		mm.state = Active
		if mm.log != nil {
			mm.log.Infow("strategy_resumed", "drawdown", dd, "recovery_threshold", mm.cfg.HaltRecovery)
		}
	}

	mid, ok := mm.book.Mid()
	if !ok {
		mid = ref
	}
	if mid <= 0 {
		return
	}

	intents := mm.quoter.Quotes(mid, mm.risk.PositionLots())
	mm.cancelQuotes()

	for _, in := range intents {
		id, err := mm.exec.Submit(in.Side, in.Price, in.Qty, core.OwnerStrategy, core.GTC, now)
		if err != nil {
			if mm.log != nil {
				mm.log.Warnw("quote_rejected", "side", in.Side.String(), "price", in.Price, "qty", in.Qty, "err", err)
			}
			continue
		}
		if in.Side == core.Buy {
			mm.activeBid = id
		} else {
			mm.activeAsk = id
		}
	}
}

// cancelQuotes pulls both live quotes. A quote that already filled or was
// never placed cancels to ErrOrderNotFound, which is fine.
func (mm *MarketMaker) cancelQuotes() {
	for _, id := range []core.OrderID{mm.activeBid, mm.activeAsk} {
		if id == 0 {
			continue
		}
		if err := mm.exec.Cancel(id); err != nil && !errors.Is(err, core.ErrOrderNotFound) {
			if mm.log != nil {
				mm.log.Warnw("quote_cancel_failed", "order", id, "err", err)
			}
		}
	}
	mm.activeBid, mm.activeAsk = 0, 0
}
