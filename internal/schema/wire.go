package schema

import "github.com/shopspring/decimal"

// PositionModeOneWay is the exchange position mode handled by the ledger;
// hedge-mode entries are ignored.
const PositionModeOneWay = "oneWay"

// PositionSnapshot is one authoritative per-instrument entry from a
// clearinghouse state fetch.
type PositionSnapshot struct {
	Coin          string
	Size          decimal.Decimal
	Entry         decimal.Decimal
	Leverage      int
	Value         decimal.Decimal
	UnrealizedPnl decimal.Decimal
	Mode          string
}

// OpenOrder is one raw resting order as returned by the open-orders fetch,
// before classification.
type OpenOrder struct {
	Coin           string
	OID            int64
	OrigSize       decimal.Decimal
	RemainSize     decimal.Decimal
	Timestamp      int64
	Side           Side
	OrderType      string
	IsTrigger      bool
	IsPositionTPSL bool
	TriggerPrice   decimal.Decimal
	LimitPrice     decimal.Decimal
	ReduceOnly     bool
}

// WindowPerformance holds one timeframe's PnL and ROI for a leaderboard row.
type WindowPerformance struct {
	Pnl decimal.Decimal
	Roi decimal.Decimal
}

// LeaderboardRow is one raw leaderboard entry with per-timeframe performance.
type LeaderboardRow struct {
	Address     string
	Name        string
	Performance map[string]WindowPerformance
}
