package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder rejects non-positive price or quantity; the order never
	// enters the book.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderNotFound reports a cancel for an order that is not resting or
	// pending. Non-fatal; callers may ignore it.
	ErrOrderNotFound = errors.New("order not found")
)

type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return fmt.Sprintf("Side(%d)", int8(s))
}

// Opposite returns the resting side an order of side s matches against.
func (s Side) Opposite() Side { return -s }

// Owner tags who placed an order so fills can be routed to the right
// consumer (the PnL tracker only cares about strategy-owned fills).
type Owner int8

const (
	OwnerFlow Owner = iota // synthetic background flow
	OwnerStrategy
	OwnerReplay // historical replay / book seeding
)

func (o Owner) String() string {
	switch o {
	case OwnerFlow:
		return "flow"
	case OwnerStrategy:
		return "strategy"
	case OwnerReplay:
		return "replay"
	}
	return fmt.Sprintf("Owner(%d)", int8(o))
}

type OrderType int8

const (
	// GTC rests any unfilled remainder on the book.
	GTC OrderType = iota
	// IOC discards any unfilled remainder.
	IOC
	// Market crosses at any price; remainder is discarded and the taker's
	// reported price carries the slippage adjustment.
	Market
)

func (t OrderType) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case Market:
		return "MKT"
	}
	return fmt.Sprintf("OrderType(%d)", int8(t))
}

// OrderID is assigned monotonically by the matching engine; it doubles as the
// tie-breaker for orders sharing an effective timestamp.
type OrderID uint64

// Order is a live order. Prices are integer ticks, quantities integer lots;
// Qty is decremented as the order fills and the order is removed at zero.
type Order struct {
	ID    OrderID
	Side  Side
	Price int64 // ticks; ignored for Market orders
	Qty   int64 // lots remaining
	Type  OrderType
	Owner Owner

	// SubmittedAt is the logical submission time in ms. EffectiveAt is
	// SubmittedAt plus the engine latency; matching priority among
	// near-simultaneous orders follows EffectiveAt.
	SubmittedAt int64
	EffectiveAt int64
}

// Trade is an immutable fill record between a resting (maker) and an
// incoming (taker) order.
type Trade struct {
	Time       int64
	Price      int64 // ticks, the resting order's price
	Qty        int64 // lots
	TakerID    OrderID
	MakerID    OrderID
	TakerSide  Side
	TakerOwner Owner
	MakerOwner Owner
	// TakerPrice is the taker-reported execution price after slippage; equal
	// to Price except for Market-type takers.
	TakerPrice int64
}
