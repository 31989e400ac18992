// Package leaderboard selects the traders to track from raw leaderboard rows.
package leaderboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/internal/schema"
)

// Timeframes accepted by the stats endpoint.
const (
	TimeframeDay     = "day"
	TimeframeWeek    = "week"
	TimeframeMonth   = "month"
	TimeframeAllTime = "allTime"
)

// ValidTimeframe reports whether tf is an accepted leaderboard window.
func ValidTimeframe(tf string) bool {
	switch tf {
	case TimeframeDay, TimeframeWeek, TimeframeMonth, TimeframeAllTime:
		return true
	}
	return false
}

var hundred = decimal.NewFromInt(100)

// Criteria bounds trader selection.
type Criteria struct {
	Timeframe string
	MinPnl    decimal.Decimal
	MinRoi    decimal.Decimal
	Limit     int
}

// Select filters rows by the minimum PnL/ROI thresholds for the timeframe,
// sorts descending by PnL and truncates to the limit. ROI is converted from
// the wire fraction to percent. Pure; no state is retained.
func Select(rows []schema.LeaderboardRow, criteria Criteria) []*schema.Trader {
	timeframe := criteria.Timeframe
	if !ValidTimeframe(timeframe) {
		timeframe = TimeframeAllTime
	}

	traders := make([]*schema.Trader, 0, len(rows))
	for _, row := range rows {
		perf, ok := row.Performance[timeframe]
		if !ok {
			continue
		}
		roi := perf.Roi.Mul(hundred)
		if perf.Pnl.LessThan(criteria.MinPnl) || roi.LessThan(criteria.MinRoi) {
			continue
		}
		traders = append(traders, &schema.Trader{
			Name:      row.Name,
			Address:   row.Address,
			Pnl:       perf.Pnl,
			Roi:       roi,
			Positions: make(map[string]*schema.Position),
		})
	}

	sort.SliceStable(traders, func(i, j int) bool {
		return traders[i].Pnl.GreaterThan(traders[j].Pnl)
	})

	if criteria.Limit > 0 && len(traders) > criteria.Limit {
		traders = traders[:criteria.Limit]
	}
	return traders
}
