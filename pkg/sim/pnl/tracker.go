package pnl

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

// Tracker owns the strategy's inventory position and PnL state. Fills not
// involving a strategy-owned order are ignored. Money amounts are decimals
// so the weighted-average cost basis never drifts; only the derived
// drawdown fraction is a float.
type Tracker struct {
	priceScale int32
	qtyScale   int32

	positionLots int64
	avgCost      decimal.Decimal // per-unit cost basis, zero when flat

	realized    decimal.Decimal
	unrealized  decimal.Decimal
	initialCash decimal.Decimal

	peak     decimal.Decimal // historical equity peak, updated monotonically
	drawdown float64

	fills int
	log   *zap.SugaredLogger
}

func NewTracker(initialCash float64, priceScale, qtyScale int32, log *zap.SugaredLogger) *Tracker {
	cash := decimal.NewFromFloat(initialCash)
	return &Tracker{
		priceScale:  priceScale,
		qtyScale:    qtyScale,
		initialCash: cash,
		peak:        cash,
		log:         log,
	}
}

func (tr *Tracker) price(ticks int64) decimal.Decimal {
	return decimal.New(ticks, -tr.priceScale)
}

func (tr *Tracker) qty(lots int64) decimal.Decimal {
	return decimal.New(lots, -tr.qtyScale)
}

// OnFill applies a trade to the strategy position. A trade where the
// strategy sits on both sides contributes both legs and nets out.
func (tr *Tracker) OnFill(t core.Trade) {
	if t.TakerOwner == core.OwnerStrategy {
		tr.apply(t.TakerSide, t.TakerPrice, t.Qty)
	}
	if t.MakerOwner == core.OwnerStrategy {
		tr.apply(t.TakerSide.Opposite(), t.Price, t.Qty)
	}
}

func (tr *Tracker) apply(side core.Side, priceTicks, qtyLots int64) {
	tr.fills++
	price := tr.price(priceTicks)

	signed := qtyLots
	if side == core.Sell {
		signed = -qtyLots
	}

	pos := tr.positionLots
	switch {
	case pos == 0 || (pos > 0) == (signed > 0):
		// Opening or adding: weighted-average cost basis.
		oldAbs := tr.qty(abs(pos))
		addAbs := tr.qty(qtyLots)
		total := oldAbs.Add(addAbs)
		tr.avgCost = tr.avgCost.Mul(oldAbs).Add(price.Mul(addAbs)).Div(total)
		tr.positionLots = pos + signed

	default:
		// Reducing (possibly flipping): realize cost-basis proceeds on the
		// closed quantity.
		closeLots := min(qtyLots, abs(pos))
		closed := tr.qty(closeLots)
		diff := price.Sub(tr.avgCost)
		if pos > 0 {
			tr.realized = tr.realized.Add(diff.Mul(closed))
		} else {
			tr.realized = tr.realized.Sub(diff.Mul(closed))
		}

		tr.positionLots = pos + signed
		if tr.positionLots == 0 {
			tr.avgCost = decimal.Zero
		} else if (tr.positionLots > 0) != (pos > 0) {
			// Flipped through zero: remainder opens at the fill price.
			tr.avgCost = price
		}
	}
}

// MarkToMarket recomputes unrealized PnL against the liquidation side of the
// book: best bid when long, best ask when short. A zero bid/ask means that
// side is empty and fallback (the last valid feed reference) is used.
// Updates the equity peak and drawdown.
func (tr *Tracker) MarkToMarket(bid, ask, fallback int64) {
	if tr.positionLots == 0 {
		tr.unrealized = decimal.Zero
	} else {
		ref := bid
		if tr.positionLots < 0 {
			ref = ask
		}
		if ref == 0 {
			ref = fallback
		}
		if ref > 0 {
			mark := tr.price(ref)
			tr.unrealized = mark.Sub(tr.avgCost).Mul(tr.qty(tr.positionLots))
		}
	}

	equity := tr.Equity()
	if equity.GreaterThan(tr.peak) {
		tr.peak = equity
	}
	if tr.peak.IsPositive() {
		dd, _ := tr.peak.Sub(equity).Div(tr.peak).Float64()
		if dd < 0 {
			dd = 0
		}
		tr.drawdown = dd
	} else {
		tr.drawdown = 0
	}
}

// Equity is initial cash plus realized and unrealized PnL.
func (tr *Tracker) Equity() decimal.Decimal {
	return tr.initialCash.Add(tr.realized).Add(tr.unrealized)
}

// Drawdown is (peak-equity)/peak, floored at zero.
func (tr *Tracker) Drawdown() float64 { return tr.drawdown }

func (tr *Tracker) PositionLots() int64         { return tr.positionLots }
func (tr *Tracker) AvgCost() decimal.Decimal    { return tr.avgCost }
func (tr *Tracker) Realized() decimal.Decimal   { return tr.realized }
func (tr *Tracker) Unrealized() decimal.Decimal { return tr.unrealized }
func (tr *Tracker) Fills() int                  { return tr.fills }

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
