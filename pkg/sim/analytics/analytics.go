package analytics

import (
	"math"
	"sort"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/backtest"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

// Report summarizes a run. Degenerate inputs produce sentinels instead of
// faults: zero return variance gives a 0 Sharpe, no downside returns a 0
// Sortino, no losing round trips a +Inf profit factor, and an empty history
// an all-zero report.
type Report struct {
	Ticks  int
	Trades int

	TotalReturn float64 // fraction over the run
	Sharpe      float64
	Sortino     float64
	// VaR is the VarPercentile quantile of period returns; negative values
	// are losses.
	VaR         float64
	MaxDrawdown float64

	RoundTrips   int
	Wins         int
	Losses       int
	WinRate      float64
	ProfitFactor float64
	GrossProfit  float64 // tick·lot units
	GrossLoss    float64
}

// Analyze is a pure function over the recorded history.
func Analyze(res *backtest.Result, cfg params.Analytics) Report {
	rep := Report{Ticks: len(res.Snapshots), Trades: len(res.Trades)}
	if len(res.Snapshots) == 0 {
		rep.ProfitFactor = profitFactor(0, 0)
		return rep
	}

	equity := make([]float64, len(res.Snapshots))
	for i, s := range res.Snapshots {
		equity[i] = s.Equity.InexactFloat64()
		if s.Drawdown > rep.MaxDrawdown {
			rep.MaxDrawdown = s.Drawdown
		}
	}

	returns := periodReturns(equity)
	if equity[0] > 0 {
		rep.TotalReturn = equity[len(equity)-1]/equity[0] - 1
	}

	mean, std := meanStd(returns)
	if std > 0 {
		rep.Sharpe = mean / std * math.Sqrt(cfg.AnnualizationFactor)
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	_, dstd := meanStd(downside)
	if dstd > 0 {
		rep.Sortino = mean / dstd * math.Sqrt(cfg.AnnualizationFactor)
	}

	rep.VaR = quantile(returns, cfg.VarPercentile)

	rep.RoundTrips, rep.Wins, rep.Losses, rep.GrossProfit, rep.GrossLoss = roundTrips(res.Trades)
	if rep.RoundTrips > 0 {
		rep.WinRate = float64(rep.Wins) / float64(rep.RoundTrips)
	}
	rep.ProfitFactor = profitFactor(rep.GrossProfit, rep.GrossLoss)

	return rep
}

func periodReturns(equity []float64) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			out = append(out, equity[i]/equity[i-1]-1)
		}
	}
	return out
}

// meanStd returns the mean and sample standard deviation.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

func quantile(xs []float64, p float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// roundTrips pairs strategy buys with the following strategy sell and scores
// each pair's realized PnL in tick·lot units.
func roundTrips(trades []core.Trade) (n, wins, losses int, grossProfit, grossLoss float64) {
	var buyPrice int64
	var haveBuy bool

	for _, t := range trades {
		side, price, ok := strategyLeg(t)
		if !ok {
			continue
		}
		switch side {
		case core.Buy:
			buyPrice = price
			haveBuy = true
		case core.Sell:
			if !haveBuy {
				continue
			}
			pnl := float64(price-buyPrice) * float64(t.Qty)
			n++
			if pnl > 0 {
				wins++
				grossProfit += pnl
			} else {
				losses++
				grossLoss += -pnl
			}
			haveBuy = false
		}
	}
	return
}

// strategyLeg extracts the strategy's side and price from a trade, false if
// the strategy was not involved. A self-cross (strategy on both sides) nets
// to nothing and is ignored.
func strategyLeg(t core.Trade) (core.Side, int64, bool) {
	taker := t.TakerOwner == core.OwnerStrategy
	maker := t.MakerOwner == core.OwnerStrategy
	switch {
	case taker && maker:
		return 0, 0, false
	case taker:
		return t.TakerSide, t.TakerPrice, true
	case maker:
		return t.TakerSide.Opposite(), t.Price, true
	}
	return 0, 0, false
}

// profitFactor is gross profit over gross loss; +Inf marks the "no losing
// trades" case so callers can render it as undefined rather than dividing.
func profitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossProfit / grossLoss
}
