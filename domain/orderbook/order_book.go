package orderbook

// OrderBook is single-writer: only the goroutine that applies market
// data may call its mutating methods.
type OrderBook struct {
	Bids *RBTree
	Asks *RBTree

	index map[uint64]orderKey
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		Bids:  NewRBTree(),
		Asks:  NewRBTree(),
		index: make(map[uint64]orderKey),
	}
}

func (b *OrderBook) tree(s Side) *RBTree {
	if s == Buy {
		return b.Bids
	}
	return b.Asks
}

// AddOrder rests an order. A reused id replaces the earlier order so
// the index never points at two levels.
func (b *OrderBook) AddOrder(id uint64, price, qty uint32, side Side) {
	if _, ok := b.index[id]; ok {
		b.RemoveOrder(id)
	}

	b.tree(side).UpsertLevel(price).add(Order{
		ID:       id,
		Price:    price,
		Quantity: qty,
		Side:     side,
	})
	b.index[id] = orderKey{side: side, price: price}
}

// RemoveOrder drops an order and prunes its level once empty.
// Unknown ids are ignored.
func (b *OrderBook) RemoveOrder(id uint64) {
	key, ok := b.index[id]
	if !ok {
		return
	}
	delete(b.index, id)

	t := b.tree(key.side)
	lvl := t.FindLevel(key.price)
	if lvl == nil {
		return
	}
	lvl.remove(id)
	if lvl.Empty() {
		t.DeleteLevel(key.price)
	}
}

// ModifyOrder replaces the quantity of a resting order in place.
// Zero is accepted and leaves the order resting. Unknown ids are ignored.
func (b *OrderBook) ModifyOrder(id uint64, qty uint32) {
	key, ok := b.index[id]
	if !ok {
		return
	}
	if lvl := b.tree(key.side).FindLevel(key.price); lvl != nil {
		lvl.setQuantity(id, qty)
	}
}

func (b *OrderBook) BestBid() uint32 {
	if lvl := b.Bids.MaxLevel(); lvl != nil {
		return lvl.Price
	}
	return NoBid
}

func (b *OrderBook) BestAsk() uint32 {
	if lvl := b.Asks.MinLevel(); lvl != nil {
		return lvl.Price
	}
	return NoAsk
}

func (b *OrderBook) Lookup(id uint64) (Order, bool) {
	key, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	lvl := b.tree(key.side).FindLevel(key.price)
	if lvl == nil {
		return Order{}, false
	}
	o, ok := lvl.orders[id]
	return o, ok
}

// Len reports the number of resting orders.
func (b *OrderBook) Len() int {
	return len(b.index)
}

// Levels reports the number of distinct prices on a side.
func (b *OrderBook) Levels(s Side) int {
	return b.tree(s).Size()
}

// ---- traversal helpers ----

func (b *OrderBook) BidsWalk(fn func(*PriceLevel) bool) {
	b.Bids.ForEachDescending(fn)
}

func (b *OrderBook) AsksWalk(fn func(*PriceLevel) bool) {
	b.Asks.ForEachAscending(fn)
}

// Walk visits every resting order, bids best to worst, then asks best
// to worst.
func (b *OrderBook) Walk(fn func(Order)) {
	visit := func(lvl *PriceLevel) bool {
		lvl.Each(fn)
		return true
	}
	b.BidsWalk(visit)
	b.AsksWalk(visit)
}

// LevelView is an aggregated price level.
type LevelView struct {
	Price    uint32
	Quantity uint64
	Orders   int
}

// Depth returns up to n aggregated levels of a side, best first.
func (b *OrderBook) Depth(s Side, n int) []LevelView {
	if n <= 0 {
		return nil
	}
	out := make([]LevelView, 0, n)
	collect := func(lvl *PriceLevel) bool {
		if len(out) == n {
			return false
		}
		out = append(out, LevelView{Price: lvl.Price, Quantity: lvl.TotalQty, Orders: lvl.Len()})
		return true
	}
	if s == Buy {
		b.BidsWalk(collect)
	} else {
		b.AsksWalk(collect)
	}
	return out
}
