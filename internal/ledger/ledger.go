// Package ledger reconstructs trader positions from fill events and
// authoritative snapshots, and classifies resting orders against them.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/internal/schema"
)

// ApplyFill mutates pos with the effect of a single fill event. Fills must be
// applied in ascending time order per instrument: each event's StartPosition
// is the exchange-reported size immediately before the fill, so out-of-order
// application breaks the running size.
func ApplyFill(pos *schema.Position, ev schema.FillEvent) {
	switch {
	case ev.OpensLong():
		pos.Size = ev.StartPosition.Add(ev.Size)
	case ev.ClosesLong():
		pos.Size = ev.StartPosition.Sub(ev.Size)
	case ev.OpensShort():
		pos.Size = ev.StartPosition.Sub(ev.Size)
	case ev.ClosesShort():
		pos.Size = ev.StartPosition.Add(ev.Size)
	}

	// Realized PnL is folded into the running unrealized figure as a negative
	// adjustment. The flat reset below discards it when the position closes
	// entirely; partial closes retain it. Keep the order of operations.
	pos.UnrealizedPnl = pos.UnrealizedPnl.Sub(ev.ClosedPnl)

	switch {
	case pos.Size.IsZero():
		pos.Direction = schema.DirectionFlat
		pos.Leverage = 0
		pos.Value = decimal.Zero
		pos.Entry = decimal.Zero
		pos.UnrealizedPnl = decimal.Zero
	case pos.Size.IsPositive():
		pos.Direction = schema.DirectionLong
		pos.Value = ev.Price.Mul(pos.Size)
	default:
		pos.Direction = schema.DirectionShort
		pos.Value = ev.Price.Mul(pos.Size)
	}
	pos.Modified = true
}

// ApplySnapshot replaces the trader's positions with the authoritative
// snapshot entries. Only one-way mode entries are applied; hedge-mode rows are
// skipped. Each applied instrument replaces any previously reconstructed
// position wholesale, correcting drift accumulated by incremental fills.
func ApplySnapshot(trader *schema.Trader, snaps []schema.PositionSnapshot) {
	for _, snap := range snaps {
		if snap.Mode != schema.PositionModeOneWay {
			continue
		}
		direction := schema.DirectionFlat
		switch {
		case snap.Size.IsPositive():
			direction = schema.DirectionLong
		case snap.Size.IsNegative():
			direction = schema.DirectionShort
		}
		trader.SetPosition(snap.Coin, &schema.Position{
			Coin:          snap.Coin,
			Value:         snap.Value,
			Size:          snap.Size,
			Entry:         snap.Entry,
			Direction:     direction,
			Leverage:      snap.Leverage,
			UnrealizedPnl: snap.UnrealizedPnl,
			Modified:      true,
			TakeProfit:    nil,
			StopLoss:      nil,
			BuyOrders:     nil,
			SellOrders:    nil,
			MarketOrders:  nil,
		})
	}
}
