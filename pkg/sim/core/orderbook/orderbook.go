package orderbook

import (
	"container/heap"
	"fmt"
	"sort"

	"github.com/uhyunpark/lobsim/pkg/sim/core"
)

// Level is one aggregated price level, used by depth consumers.
type Level struct {
	Price int64
	Qty   int64
}

// Book is a single-instrument limit order book with price-time priority.
// Best prices are tracked with heaps (O(1) peek), each price holds a FIFO
// queue of resting orders, and an order index gives O(1) cancellation.
//
// The book owns every resting order. It is mutated only by the matching
// engine, synchronously; every method leaves it in a consistent state.
type Book struct {
	bidHeap *MaxPriceHeap
	askHeap *MinPriceHeap

	bids map[int64][]*core.Order // price -> FIFO queue
	asks map[int64][]*core.Order

	index map[core.OrderID]indexEntry

	lastPrice int64 // most recent fill price, 0 before the first trade
}

type indexEntry struct {
	price int64
	side  core.Side
}

func New() *Book {
	bidHeap := &MaxPriceHeap{}
	askHeap := &MinPriceHeap{}
	heap.Init(bidHeap)
	heap.Init(askHeap)

	return &Book{
		bidHeap: bidHeap,
		askHeap: askHeap,
		bids:    make(map[int64][]*core.Order),
		asks:    make(map[int64][]*core.Order),
		index:   make(map[core.OrderID]indexEntry),
	}
}

// BestBid returns the highest bid price, false if the side is empty.
func (b *Book) BestBid() (int64, bool) {
	if b.bidHeap.Len() == 0 {
		return 0, false
	}
	return b.bidHeap.Peek(), true
}

// BestAsk returns the lowest ask price, false if the side is empty.
func (b *Book) BestAsk() (int64, bool) {
	if b.askHeap.Len() == 0 {
		return 0, false
	}
	return b.askHeap.Peek(), true
}

// Mid returns the mid price when both sides are populated.
func (b *Book) Mid() (int64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid + ask) / 2, true
}

// LastPrice returns the price of the most recent fill, 0 if none.
func (b *Book) LastPrice() int64 { return b.lastPrice }

// Submit rests o at the tail of its price level. It does not match; the
// matching engine crosses incoming orders before resting them.
func (b *Book) Submit(o *core.Order) error {
	if o.Price <= 0 || o.Qty <= 0 {
		return fmt.Errorf("submit order %d (price=%d qty=%d): %w", o.ID, o.Price, o.Qty, core.ErrInvalidOrder)
	}
	if _, dup := b.index[o.ID]; dup {
		panic(fmt.Sprintf("orderbook: duplicate order id %d", o.ID))
	}

	switch o.Side {
	case core.Buy:
		if len(b.bids[o.Price]) == 0 {
			heap.Push(b.bidHeap, o.Price)
		}
		b.bids[o.Price] = append(b.bids[o.Price], o)
	case core.Sell:
		if len(b.asks[o.Price]) == 0 {
			heap.Push(b.askHeap, o.Price)
		}
		b.asks[o.Price] = append(b.asks[o.Price], o)
	default:
		return fmt.Errorf("submit order %d: side %d: %w", o.ID, o.Side, core.ErrInvalidOrder)
	}
	b.index[o.ID] = indexEntry{price: o.Price, side: o.Side}
	return nil
}

// Cancel removes a resting order. Returns false if the id is unknown.
func (b *Book) Cancel(id core.OrderID) bool {
	ent, ok := b.index[id]
	if !ok {
		return false
	}

	queues := b.bids
	if ent.side == core.Sell {
		queues = b.asks
	}
	arr, exists := queues[ent.price]
	if !exists {
		panic(fmt.Sprintf("orderbook: indexed order %d has no price level %d", id, ent.price))
	}
	for i, o := range arr {
		if o.ID == id {
			queues[ent.price] = append(arr[:i], arr[i+1:]...)
			if len(queues[ent.price]) == 0 {
				delete(queues, ent.price)
				b.removeLevel(ent.side, ent.price)
			}
			delete(b.index, id)
			return true
		}
	}
	panic(fmt.Sprintf("orderbook: indexed order %d missing from level %d", id, ent.price))
}

// Match crosses taker against the opposite side while price compatibility
// holds and quantity remains, filling FIFO within each level. Exhausted
// resting orders are removed and empty levels pruned immediately. Market
// takers are compatible with any price. Taker quantity is decremented in
// place; the caller decides what to do with any remainder.
func (b *Book) Match(taker *core.Order, now int64) []core.Trade {
	var trades []core.Trade

	for taker.Qty > 0 {
		var restPrice int64
		var ok bool
		if taker.Side == core.Buy {
			restPrice, ok = b.BestAsk()
			if !ok || (taker.Type != core.Market && restPrice > taker.Price) {
				break
			}
		} else {
			restPrice, ok = b.BestBid()
			if !ok || (taker.Type != core.Market && restPrice < taker.Price) {
				break
			}
		}

		queues := b.asks
		if taker.Side == core.Sell {
			queues = b.bids
		}
		level, exists := queues[restPrice]
		if !exists || len(level) == 0 {
			panic(fmt.Sprintf("orderbook: best price %d has no level queue", restPrice))
		}

		maker := level[0]
		if maker.Qty <= 0 {
			panic(fmt.Sprintf("orderbook: resting order %d has non-positive qty %d", maker.ID, maker.Qty))
		}
		match := min(taker.Qty, maker.Qty)
		taker.Qty -= match
		maker.Qty -= match
		b.lastPrice = restPrice

		trades = append(trades, core.Trade{
			Time:       now,
			Price:      restPrice,
			Qty:        match,
			TakerID:    taker.ID,
			MakerID:    maker.ID,
			TakerSide:  taker.Side,
			TakerOwner: taker.Owner,
			MakerOwner: maker.Owner,
			TakerPrice: restPrice,
		})

		if maker.Qty == 0 {
			queues[restPrice] = level[1:]
			delete(b.index, maker.ID)
			if len(queues[restPrice]) == 0 {
				delete(queues, restPrice)
				b.removeLevel(maker.Side, restPrice)
			}
		}
	}
	return trades
}

// Depth returns up to levels aggregated (price, qty) pairs best-first.
func (b *Book) Depth(side core.Side, levels int) []Level {
	queues := b.bids
	h := make([]int64, b.bidHeap.Len())
	if side == core.Sell {
		queues = b.asks
		h = make([]int64, b.askHeap.Len())
	}

	// Sorted copy of the heap backing array; depth is a read path for
	// visualization consumers, not the matching hot path.
	if side == core.Buy {
		copy(h, *b.bidHeap)
		sort.Slice(h, func(i, j int) bool { return h[i] > h[j] })
	} else {
		copy(h, *b.askHeap)
		sort.Slice(h, func(i, j int) bool { return h[i] < h[j] })
	}

	out := make([]Level, 0, levels)
	for _, price := range h {
		if len(out) == levels {
			break
		}
		var total int64
		for _, o := range queues[price] {
			total += o.Qty
		}
		out = append(out, Level{Price: price, Qty: total})
	}
	return out
}

// RestingQty returns the total outstanding quantity on one side. Used by
// conservation checks and run summaries.
func (b *Book) RestingQty(side core.Side) int64 {
	queues := b.bids
	if side == core.Sell {
		queues = b.asks
	}
	var total int64
	for _, level := range queues {
		for _, o := range level {
			total += o.Qty
		}
	}
	return total
}

func (b *Book) removeLevel(side core.Side, price int64) {
	if side == core.Buy {
		for i := 0; i < b.bidHeap.Len(); i++ {
			if (*b.bidHeap)[i] == price {
				heap.Remove(b.bidHeap, i)
				return
			}
		}
	} else {
		for i := 0; i < b.askHeap.Len(); i++ {
			if (*b.askHeap)[i] == price {
				heap.Remove(b.askHeap, i)
				return
			}
		}
	}
	panic(fmt.Sprintf("orderbook: price level %d not in %v heap", price, side))
}
