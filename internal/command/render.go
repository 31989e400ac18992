package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/internal/schema"
)

// Telegram caps messages at 4096 characters; leave headroom for Markdown.
const maxMessageLen = 3800

const btcCoin = "BTC"

var hundred = decimal.NewFromInt(100)

// chunkMessage splits text on line boundaries into sendable chunks.
func chunkMessage(text string) []string {
	if len(text) <= maxMessageLen {
		return []string{text}
	}
	var chunks []string
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if b.Len() > 0 && b.Len()+len(line)+1 > maxMessageLen {
			chunks = append(chunks, strings.TrimRight(b.String(), "\n"))
			b.Reset()
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if b.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(b.String(), "\n"))
	}
	return chunks
}

// textBar renders a ten-cell 🟩🟥 ratio bar for percent in [0,1].
func textBar(percent float64) string {
	const size = 10
	if percent < 0 {
		percent = 0
	}
	if percent > 1 {
		percent = 1
	}
	filled := int(percent * size)
	return strings.Repeat("🟩", filled) + strings.Repeat("🟥", size-filled)
}

func directionTag(pos *schema.Position) string {
	switch pos.Direction {
	case schema.DirectionLong:
		return "🟢 LONG"
	case schema.DirectionShort:
		return "🔴 SHORT"
	}
	return "🔫 WAIT ORDER"
}

// renderActive lists tracked positions grouped by trader. Traders with no
// position change since their last reconciliation are omitted. With waitsOnly
// set only flat positions that still carry resting orders are included.
func renderActive(traders []*schema.Trader, waitsOnly bool) string {
	var b strings.Builder
	for _, trader := range traders {
		if !anyModified(trader) {
			continue
		}
		lines := positionLines(trader, waitsOnly)
		if len(lines) == 0 {
			continue
		}
		name := trader.Name
		if name == "" {
			name = "anon"
		}
		fmt.Fprintf(&b, "👤 *%s* `%s` ROI %s%% PnL $%s\n",
			name, trader.Address, trader.Roi.StringFixed(1), trader.Pnl.StringFixed(1))
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func anyModified(trader *schema.Trader) bool {
	for _, pos := range trader.Positions {
		if pos.Modified {
			return true
		}
	}
	return false
}

func positionLines(trader *schema.Trader, waitsOnly bool) []string {
	coins := make([]string, 0, len(trader.Positions))
	for coin := range trader.Positions {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	var lines []string
	for _, coin := range coins {
		pos := trader.Positions[coin]
		flat := pos.Direction == schema.DirectionFlat
		resting := len(pos.BuyOrders)+len(pos.SellOrders) > 0
		if waitsOnly && (!flat || !resting) {
			continue
		}
		if !waitsOnly && flat && !resting {
			continue
		}
		lines = append(lines, positionLine(pos))
		for _, o := range pos.BuyOrders {
			lines = append(lines, fmt.Sprintf("  🟢 %s @ $%s (%s/%s)", orderAct(o), o.Limit, o.RemainSize, o.Size))
		}
		for _, o := range pos.SellOrders {
			lines = append(lines, fmt.Sprintf("  🔴 %s @ $%s (%s/%s)", orderAct(o), o.Limit, o.RemainSize, o.Size))
		}
		if pos.TakeProfit != nil {
			lines = append(lines, fmt.Sprintf("  🚩 TP $%s", pos.TakeProfit.Limit))
		}
		if pos.StopLoss != nil {
			lines = append(lines, fmt.Sprintf("  🏁 SL $%s", pos.StopLoss.Limit))
		}
	}
	return lines
}

func positionLine(pos *schema.Position) string {
	lev := ""
	if pos.Leverage >= 2 {
		lev = fmt.Sprintf(" 🕹 %dX", pos.Leverage)
	}
	return fmt.Sprintf("%s `#%s`%s size %s ($%s) entry $%s uPnL $%s",
		directionTag(pos), pos.Coin, lev,
		pos.Size, pos.Value.StringFixed(0), pos.Entry, pos.UnrealizedPnl.StringFixed(1))
}

func orderAct(o schema.Order) string {
	if o.Action == schema.ActionExit {
		return "EXIT"
	}
	return "ENTER"
}

// renderVolume aggregates absolute position value across the tracked set and
// contrasts BTC against everything else, plus the top five coins.
func renderVolume(traders []*schema.Trader) string {
	coinVolumes := make(map[string]decimal.Decimal)
	btc := decimal.Zero
	alt := decimal.Zero
	for _, trader := range traders {
		for coin, pos := range trader.Positions {
			if pos.Direction == schema.DirectionFlat {
				continue
			}
			value := pos.Value.Abs()
			coinVolumes[coin] = coinVolumes[coin].Add(value)
			if coin == btcCoin {
				btc = btc.Add(value)
			} else {
				alt = alt.Add(value)
			}
		}
	}

	total := btc.Add(alt)
	if total.IsZero() {
		return ""
	}
	btcPct := btc.Div(total)

	var b strings.Builder
	b.WriteString("📊 *BTC vs Altcoins Volume*\n\n")
	fmt.Fprintf(&b, "💰 *Total:* $%s\n", total.StringFixed(0))
	fmt.Fprintf(&b, "₿ *BTC:* $%s (%s%%)\n", btc.StringFixed(0), btcPct.Mul(hundred).StringFixed(1))
	fmt.Fprintf(&b, "🔸 *Altcoins:* $%s (%s%%)\n\n", alt.StringFixed(0), hundred.Sub(btcPct.Mul(hundred)).StringFixed(1))
	b.WriteString(textBar(btcPct.InexactFloat64()))
	b.WriteString("\n\n📈 *Top Coins:*\n")

	type coinVolume struct {
		coin  string
		value decimal.Decimal
	}
	ranked := make([]coinVolume, 0, len(coinVolumes))
	for coin, value := range coinVolumes {
		ranked = append(ranked, coinVolume{coin: coin, value: value})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].value.Equal(ranked[j].value) {
			return ranked[i].coin < ranked[j].coin
		}
		return ranked[i].value.GreaterThan(ranked[j].value)
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	for i, cv := range ranked {
		pct := cv.value.Div(total).Mul(hundred)
		fmt.Fprintf(&b, "%d. `#%s`: $%s (%s%%)\n", i+1, cv.coin, cv.value.StringFixed(0), pct.StringFixed(1))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderLongShort counts long versus short positions, either across all
// coins together or per coin.
func renderLongShort(traders []*schema.Trader, perCoin bool) string {
	type tally struct{ longs, shorts int }
	perCoinTally := make(map[string]*tally)
	var all tally

	for _, trader := range traders {
		for coin, pos := range trader.Positions {
			switch pos.Direction {
			case schema.DirectionLong:
				all.longs++
			case schema.DirectionShort:
				all.shorts++
			default:
				continue
			}
			t, ok := perCoinTally[coin]
			if !ok {
				t = new(tally)
				perCoinTally[coin] = t
			}
			if pos.Direction == schema.DirectionLong {
				t.longs++
			} else {
				t.shorts++
			}
		}
	}

	if all.longs+all.shorts == 0 {
		return ""
	}

	if !perCoin {
		ratio := float64(all.longs) / float64(all.longs+all.shorts)
		return fmt.Sprintf("All crypto, Longs %d%% / Shorts %d%%\n%s",
			int(ratio*100), 100-int(ratio*100), textBar(ratio))
	}

	coins := make([]string, 0, len(perCoinTally))
	for coin := range perCoinTally {
		coins = append(coins, coin)
	}
	sort.Strings(coins)

	var b strings.Builder
	for _, coin := range coins {
		t := perCoinTally[coin]
		total := t.longs + t.shorts
		ratio := float64(t.longs) / float64(total)
		fmt.Fprintf(&b, "`#%s` Longs %d%% / Shorts %d%%\n%s\n\n",
			coin, int(ratio*100), 100-int(ratio*100), textBar(ratio))
	}
	return strings.TrimRight(b.String(), "\n")
}
