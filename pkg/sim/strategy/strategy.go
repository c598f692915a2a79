package strategy

import (
	"math"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

// BookView is the read-only market state a quoting rule may consult.
type BookView interface {
	BestBid() (int64, bool)
	BestAsk() (int64, bool)
	Mid() (int64, bool)
}

// Execer is the order submission surface the strategy drives (the matching
// engine in a backtest).
type Execer interface {
	Submit(side core.Side, price, qty int64, owner core.Owner, typ core.OrderType, now int64) (core.OrderID, error)
	Cancel(id core.OrderID) error
}

// RiskView is what the strategy reads from the PnL tracker.
type RiskView interface {
	Drawdown() float64
	PositionLots() int64
}

// QuoteIntent is one desired resting quote.
type QuoteIntent struct {
	Side  core.Side
	Price int64
	Qty   int64
}

// Quoter decides quotes given the mid reference and current inventory.
// Quoting variants are alternative implementations of this interface, not
// branches on a strategy-type field.
type Quoter interface {
	Quotes(mid int64, positionLots int64) []QuoteIntent
}

// InventoryQuoter quotes symmetrically around mid and skews both prices
// against inventory: a long position lowers both quotes to encourage
// selling, a short position raises them.
type InventoryQuoter struct {
	cfg params.Strategy
}

func NewInventoryQuoter(cfg params.Strategy) *InventoryQuoter {
	return &InventoryQuoter{cfg: cfg}
}

func (q *InventoryQuoter) Quotes(mid int64, positionLots int64) []QuoteIntent {
	if mid <= 0 || q.cfg.MaxInventoryLots <= 0 {
		return nil
	}

	half := mid * q.cfg.QuoteSpreadBps / 20_000
	if half < 1 {
		half = 1
	}

	util := float64(positionLots) / float64(q.cfg.MaxInventoryLots)
	skew := int64(math.Round(q.cfg.InventorySkewFactor * util * float64(half)))

	bid := mid - half - skew
	ask := mid + half - skew
	if bid < 1 {
		bid = 1
	}
	if ask <= bid {
		ask = bid + 1
	}

	// Taper size as inventory builds, and halve the side that would grow the
	// position further.
	mult := 1 - math.Abs(util)*0.5
	if mult < 0.1 {
		mult = 0.1
	}
	bidMult, askMult := mult, mult
	if positionLots > 0 {
		bidMult *= 0.5
	} else if positionLots < 0 {
		askMult *= 0.5
	}

	var out []QuoteIntent
	if positionLots < q.cfg.MaxInventoryLots {
		if qty := int64(float64(q.cfg.OrderSizeLots) * bidMult); qty >= 1 {
			out = append(out, QuoteIntent{Side: core.Buy, Price: bid, Qty: qty})
		}
	}
	if positionLots > -q.cfg.MaxInventoryLots {
		if qty := int64(float64(q.cfg.OrderSizeLots) * askMult); qty >= 1 {
			out = append(out, QuoteIntent{Side: core.Sell, Price: ask, Qty: qty})
		}
	}
	return out
}
