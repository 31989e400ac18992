package schema

// CloneTrader returns a deep copy of the trader suitable for handing across
// goroutine boundaries. The dispatcher and command surface render from clones
// so the scheduler remains the sole mutator of live ledger state.
func CloneTrader(t *Trader) *Trader {
	if t == nil {
		return nil
	}
	clone := &Trader{
		Name:      t.Name,
		Address:   t.Address,
		Pnl:       t.Pnl,
		Roi:       t.Roi,
		Positions: nil,
	}
	if t.Positions != nil {
		clone.Positions = make(map[string]*Position, len(t.Positions))
		for coin, pos := range t.Positions {
			clone.Positions[coin] = ClonePosition(pos)
		}
	}
	return clone
}

// ClonePosition returns a deep copy of the position, including order lists.
func ClonePosition(p *Position) *Position {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TakeProfit = cloneOrderPtr(p.TakeProfit)
	clone.StopLoss = cloneOrderPtr(p.StopLoss)
	clone.BuyOrders = cloneOrders(p.BuyOrders)
	clone.SellOrders = cloneOrders(p.SellOrders)
	clone.MarketOrders = cloneOrders(p.MarketOrders)
	return &clone
}

func cloneOrderPtr(o *Order) *Order {
	if o == nil {
		return nil
	}
	copied := *o
	return &copied
}

func cloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	copy(out, orders)
	return out
}
