package flow

import (
	"math"
	"math/rand"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

// Quote is the simulator's view of the market when generating an arrival.
// Ref is the last valid feed reference price, used when a book side is empty.
type Quote struct {
	Bid, Ask       int64
	HasBid, HasAsk bool
	Ref            int64
}

func (q Quote) bid() int64 {
	if q.HasBid {
		return q.Bid
	}
	return q.Ref
}

func (q Quote) ask() int64 {
	if q.HasAsk {
		return q.Ask
	}
	return q.Ref
}

// Arrival is one synthetic order ready for submission.
type Arrival struct {
	Side  core.Side
	Price int64 // ticks; 0 for Market arrivals
	Qty   int64 // lots
	Type  core.OrderType
}

// Simulator generates background order flow: Poisson arrival times,
// 50/50 sides, ~30% aggressive takers, log-normal sizes. All randomness
// comes from one explicitly seeded generator, so a given seed reproduces the
// exact arrival sequence. The simulator never reads PnL state and never
// halts.
type Simulator struct {
	rng *rand.Rand
	cfg params.Flow

	nextAt float64 // ms timestamp of the next arrival; <0 before first use
}

func New(cfg params.Flow, seed int64) *Simulator {
	return &Simulator{
		rng:    rand.New(rand.NewSource(seed)),
		cfg:    cfg,
		nextAt: -1,
	}
}

// NextArrivals returns every synthetic order arriving in (now, now+dt],
// in arrival order. The count over many calls follows Poisson(λ·dt).
func (s *Simulator) NextArrivals(now, dt int64, q Quote) []Arrival {
	if s.cfg.ArrivalRateLambda <= 0 || dt <= 0 {
		return nil
	}
	if s.nextAt < 0 {
		s.nextAt = float64(now) + s.interArrival()
	}

	var out []Arrival
	horizon := float64(now + dt)
	for s.nextAt <= horizon {
		out = append(out, s.generate(q))
		s.nextAt += s.interArrival()
	}
	return out
}

// interArrival samples an exponential gap in ms for rate λ per second.
func (s *Simulator) interArrival() float64 {
	return s.rng.ExpFloat64() / s.cfg.ArrivalRateLambda * 1000
}

func (s *Simulator) generate(q Quote) Arrival {
	side := core.Buy
	if s.rng.Float64() < 0.5 {
		side = core.Sell
	}
	aggressive := s.rng.Float64() < 0.3

	bid, ask := q.bid(), q.ask()
	mid := (bid + ask) / 2
	if mid <= 0 {
		mid = q.Ref
	}

	qty := s.size()

	if aggressive {
		// Takers cross the spread; priced as market orders so the slippage
		// model applies to them.
		return Arrival{Side: side, Price: 0, Qty: qty, Type: core.Market}
	}

	// Passive orders join 0-4 price increments behind the touch. One
	// increment is 1 bps of mid, floored at a single tick.
	incr := mid / 10_000
	if incr < 1 {
		incr = 1
	}
	offset := int64(s.rng.Intn(5)) * incr

	var price int64
	if side == core.Buy {
		price = bid - offset
	} else {
		price = ask + offset
	}
	if price < 1 {
		price = 1
	}
	return Arrival{Side: side, Price: price, Qty: qty, Type: core.GTC}
}

// size draws a log-normal quantity around BaseSizeLots, clipped.
func (s *Simulator) size() int64 {
	mu := math.Log(float64(s.cfg.BaseSizeLots))
	lots := int64(math.Exp(s.rng.NormFloat64()*0.5 + mu))
	if lots < s.cfg.MinSizeLots {
		lots = s.cfg.MinSizeLots
	}
	if lots > s.cfg.MaxSizeLots {
		lots = s.cfg.MaxSizeLots
	}
	return lots
}

// SeedBook builds the opening liquidity ladder: SeedLevels passive orders on
// each side stepping away from ref, with ±20% size jitter. Submitted once
// before the first tick so the strategy and takers meet a populated book.
func (s *Simulator) SeedBook(ref int64) []Arrival {
	incr := ref / 10_000
	if incr < 1 {
		incr = 1
	}
	step := incr * 5

	out := make([]Arrival, 0, 2*s.cfg.SeedLevels)
	for i := 0; i < s.cfg.SeedLevels; i++ {
		qty := s.jitter(s.cfg.SeedQtyLots)
		price := ref - step*int64(i+1)
		if price < 1 {
			price = 1
		}
		out = append(out, Arrival{Side: core.Buy, Price: price, Qty: qty, Type: core.GTC})
	}
	for i := 0; i < s.cfg.SeedLevels; i++ {
		qty := s.jitter(s.cfg.SeedQtyLots)
		out = append(out, Arrival{Side: core.Sell, Price: ref + step*int64(i+1), Qty: qty, Type: core.GTC})
	}
	return out
}

func (s *Simulator) jitter(base int64) int64 {
	q := int64(float64(base) * (1 + (s.rng.Float64()-0.5)*0.4))
	if q < 1 {
		q = 1
	}
	return q
}
