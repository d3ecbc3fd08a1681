package orderbook

// PriceLevel holds every resting order at one price on one side.
type PriceLevel struct {
	Price    uint32
	TotalQty uint64

	orders map[uint64]Order
}

func newPriceLevel(price uint32) *PriceLevel {
	return &PriceLevel{
		Price:  price,
		orders: make(map[uint64]Order),
	}
}

func (p *PriceLevel) add(o Order) {
	p.orders[o.ID] = o
	p.TotalQty += uint64(o.Quantity)
}

func (p *PriceLevel) remove(id uint64) {
	o, ok := p.orders[id]
	if !ok {
		return
	}
	delete(p.orders, id)
	p.TotalQty -= uint64(o.Quantity)
}

func (p *PriceLevel) setQuantity(id uint64, qty uint32) {
	o, ok := p.orders[id]
	if !ok {
		return
	}
	p.TotalQty = p.TotalQty - uint64(o.Quantity) + uint64(qty)
	o.Quantity = qty
	p.orders[id] = o
}

func (p *PriceLevel) Len() int {
	return len(p.orders)
}

func (p *PriceLevel) Empty() bool {
	return len(p.orders) == 0
}

// Each visits the orders of the level in no particular order.
func (p *PriceLevel) Each(fn func(Order)) {
	for _, o := range p.orders {
		fn(o)
	}
}
