package ledger

import (
	"context"

	"github.com/coachpo/hyperwatch/internal/schema"
)

// Refresher fetches a fresh authoritative position snapshot for the trader and
// applies it. The classifier calls it when a raw order references an
// instrument the trader does not yet track.
type Refresher interface {
	RefreshPositions(ctx context.Context, trader *schema.Trader) error
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, trader *schema.Trader) error

// RefreshPositions calls the wrapped function.
func (f RefresherFunc) RefreshPositions(ctx context.Context, trader *schema.Trader) error {
	return f(ctx, trader)
}

const orderTypeLimit = "Limit"

// Classify partitions the raw resting orders into each position's buy queue,
// sell queue and TP/SL slots. All previously classified orders are cleared
// first so stale orders never survive a refresh. Orders for untracked
// instruments trigger a snapshot refresh; if the instrument still cannot be
// found a flat placeholder position is synthesized rather than dropping the
// order.
func Classify(ctx context.Context, trader *schema.Trader, raw []schema.OpenOrder, refresher Refresher) {
	for _, pos := range trader.Positions {
		pos.BuyOrders = nil
		pos.SellOrders = nil
		pos.MarketOrders = nil
		pos.TakeProfit = nil
		pos.StopLoss = nil
	}

	for _, o := range raw {
		pos := trader.Position(o.Coin)
		if pos == nil {
			if refresher != nil {
				_ = refresher.RefreshPositions(ctx, trader)
				pos = trader.Position(o.Coin)
			}
			if pos == nil {
				pos = schema.NewFlatPosition(o.Coin)
				trader.SetPosition(o.Coin, pos)
			}
		}

		switch {
		case o.IsTrigger && o.IsPositionTPSL:
			classifyTrigger(pos, o)
		case o.OrderType == orderTypeLimit:
			classifyLimit(pos, o)
		}
	}
}

// classifyTrigger assigns a position-level trigger order to the TP or SL slot.
// For a long, a trigger above entry is profit and below is loss; inverted for
// a short. A later trigger of the same kind overwrites the former.
func classifyTrigger(pos *schema.Position, o schema.OpenOrder) {
	order := &schema.Order{
		OID:        o.OID,
		Limit:      o.TriggerPrice,
		Size:       o.OrigSize,
		RemainSize: o.RemainSize,
		Timestamp:  o.Timestamp,
		Side:       o.Side,
		Action:     schema.ActionExit,
	}

	long := pos.Direction == schema.DirectionLong
	switch {
	case long && pos.Entry.GreaterThan(o.TriggerPrice):
		pos.StopLoss = order
	case long && pos.Entry.LessThan(o.TriggerPrice):
		pos.TakeProfit = order
	case !long && pos.Entry.GreaterThan(o.TriggerPrice):
		pos.TakeProfit = order
	case !long && pos.Entry.LessThan(o.TriggerPrice):
		pos.StopLoss = order
	}
}

// classifyLimit routes a plain limit order into the buy or sell queue,
// deduplicating by order id within the pass.
func classifyLimit(pos *schema.Position, o schema.OpenOrder) {
	action := schema.ActionEntry
	if o.ReduceOnly {
		action = schema.ActionExit
	}
	order := schema.Order{
		OID:        o.OID,
		Limit:      o.LimitPrice,
		Size:       o.OrigSize,
		RemainSize: o.RemainSize,
		Timestamp:  o.Timestamp,
		Side:       o.Side,
		Action:     action,
	}

	if o.Side == schema.SideBuy {
		if !containsOID(pos.BuyOrders, o.OID) {
			pos.BuyOrders = append(pos.BuyOrders, order)
		}
		return
	}
	if !containsOID(pos.SellOrders, o.OID) {
		pos.SellOrders = append(pos.SellOrders, order)
	}
}

func containsOID(orders []schema.Order, oid int64) bool {
	for _, o := range orders {
		if o.OID == oid {
			return true
		}
	}
	return false
}
