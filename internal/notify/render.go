package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/internal/schema"
)

const explorerBase = "https://hypurrscan.io/address/"

var renderHundred = decimal.NewFromInt(100)

// Message headers by transition kind.
const (
	headerOpened = "OPENED NEW POSITION!"
	headerUpdate = "UPDATE POSITION!"
	headerClosed = "POSITION CLOSED!"
)

// renderFillMessage composes one Markdown notification for a single
// instrument: header, trader identity, one line per fill and the resulting
// position state. firstThread marks that no earlier message exists for this
// trader/instrument pair.
func renderFillMessage(trader *schema.Trader, pos *schema.Position, fills []schema.FillEvent, firstThread bool) string {
	var b strings.Builder

	b.WriteString("*")
	b.WriteString(headerFor(pos, fills, firstThread))
	b.WriteString("*\n")
	writeTraderHeader(&b, trader)
	b.WriteString("\n")

	for _, ev := range fills {
		writeFillLine(&b, ev)
	}

	if pos != nil && pos.Direction != schema.DirectionFlat {
		b.WriteString("\n")
		writePositionBlock(&b, pos)
	}
	return b.String()
}

// headerFor picks the message header. A thread with no prior message, or a
// fill starting from zero, announces a new position; a flat result announces
// a close; everything else is an update.
func headerFor(pos *schema.Position, fills []schema.FillEvent, firstThread bool) string {
	if pos == nil || pos.Direction == schema.DirectionFlat {
		return headerClosed
	}
	if firstThread || startsFromZero(fills) {
		return headerOpened
	}
	return headerUpdate
}

// startsFromZero reports whether any fill grew the position out of flat.
func startsFromZero(fills []schema.FillEvent) bool {
	for _, ev := range fills {
		if ev.StartPosition.IsZero() {
			return true
		}
	}
	return false
}

func writeTraderHeader(b *strings.Builder, trader *schema.Trader) {
	name := trader.Name
	if name == "" {
		name = "anon"
	}
	fmt.Fprintf(b, "*%s* [%s](%s%s)\n", name, shortAddress(trader.Address), explorerBase, trader.Address)
	fmt.Fprintf(b, "PnL: $%s | ROI: %s%%\n", trader.Pnl.StringFixed(2), trader.Roi.StringFixed(2))
}

func writeFillLine(b *strings.Builder, ev schema.FillEvent) {
	arrow := "🔴"
	if ev.Side == schema.SideBuy {
		arrow = "🟢"
	}
	end := endSize(ev)
	fmt.Fprintf(b, "%s *%s* %s %s @ $%s (%s → %s%s)",
		arrow, ev.Direction, ev.Coin,
		ev.Size.String(), ev.Price.String(),
		ev.StartPosition.String(), end.String(), changePercent(ev.StartPosition, end))
	if !ev.ClosedPnl.IsZero() {
		fmt.Fprintf(b, " | realized $%s", ev.ClosedPnl.StringFixed(2))
	}
	fmt.Fprintf(b, " | %s\n", time.UnixMilli(ev.Time).UTC().Format("15:04:05"))
}

func writePositionBlock(b *strings.Builder, pos *schema.Position) {
	fmt.Fprintf(b, "*%s* %s %dx | size %s | entry $%s | value $%s | uPnL $%s\n",
		pos.Coin, pos.Direction, pos.Leverage,
		pos.Size.String(), pos.Entry.String(),
		pos.Value.StringFixed(2), pos.UnrealizedPnl.StringFixed(2))
	for _, o := range pos.BuyOrders {
		fmt.Fprintf(b, "buy %s @ $%s\n", o.RemainSize.String(), o.Limit.String())
	}
	for _, o := range pos.SellOrders {
		fmt.Fprintf(b, "sell %s @ $%s\n", o.RemainSize.String(), o.Limit.String())
	}
	if pos.TakeProfit != nil {
		fmt.Fprintf(b, "TP @ $%s\n", pos.TakeProfit.Limit.String())
	}
	if pos.StopLoss != nil {
		fmt.Fprintf(b, "SL @ $%s\n", pos.StopLoss.Limit.String())
	}
}

// endSize derives the post-fill size from the event itself so rendering does
// not depend on ledger state.
func endSize(ev schema.FillEvent) decimal.Decimal {
	switch {
	case ev.OpensLong(), ev.ClosesShort():
		return ev.StartPosition.Add(ev.Size)
	case ev.ClosesLong(), ev.OpensShort():
		return ev.StartPosition.Sub(ev.Size)
	}
	return ev.StartPosition
}

func changePercent(start, end decimal.Decimal) string {
	if start.IsZero() {
		return ""
	}
	pct := end.Sub(start).Div(start.Abs()).Mul(renderHundred)
	if pct.IsNegative() {
		return fmt.Sprintf(", %s%%", pct.StringFixed(1))
	}
	return fmt.Sprintf(", +%s%%", pct.StringFixed(1))
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
