package hyperliquid

import (
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/errs"
	"github.com/coachpo/hyperwatch/internal/observability"
	"github.com/coachpo/hyperwatch/internal/schema"
)

// spotPrefix marks spot-market symbols in fill records; only derivatives
// fills are processed.
const spotPrefix = "@"

type fillPayload struct {
	Coin          string          `json:"coin"`
	Px            decimal.Decimal `json:"px"`
	Sz            decimal.Decimal `json:"sz"`
	Side          string          `json:"side"`
	Time          int64           `json:"time"`
	StartPosition decimal.Decimal `json:"startPosition"`
	Dir           string          `json:"dir"`
	ClosedPnl     decimal.Decimal `json:"closedPnl"`
	Hash          string          `json:"hash"`
	OID           int64           `json:"oid"`
	Crossed       bool            `json:"crossed"`
	Fee           decimal.Decimal `json:"fee"`
	FeeToken      string          `json:"feeToken"`
	BuilderFee    decimal.Decimal `json:"builderFee"`
	TID           int64           `json:"tid"`
}

// parseFills decodes a fills response. A record that fails to decode is
// dropped with a diagnostic; sibling records in the batch are still returned.
// The result is sorted ascending by fill time.
func parseFills(body []byte) ([]schema.FillEvent, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.New(venue, errs.CodeDecode, errs.WithMessage("fills envelope"), errs.WithCause(err))
	}

	events := make([]schema.FillEvent, 0, len(raw))
	for _, item := range raw {
		var fill fillPayload
		if err := json.Unmarshal(item, &fill); err != nil {
			observability.Log().Error("drop undecodable fill record",
				observability.Field{Key: "error", Value: err})
			continue
		}
		if strings.HasPrefix(fill.Coin, spotPrefix) {
			continue
		}
		events = append(events, schema.FillEvent{
			Coin:          fill.Coin,
			Direction:     fill.Dir,
			Price:         fill.Px,
			Size:          fill.Sz,
			StartPosition: fill.StartPosition,
			ClosedPnl:     fill.ClosedPnl,
			Fee:           fill.Fee,
			FeeToken:      fill.FeeToken,
			BuilderFee:    fill.BuilderFee,
			Time:          fill.Time,
			TID:           fill.TID,
			OID:           fill.OID,
			Hash:          fill.Hash,
			Crossed:       fill.Crossed,
			Side:          schema.Side(fill.Side),
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Time < events[j].Time })
	return events, nil
}

type clearinghousePayload struct {
	AssetPositions []assetPosition `json:"assetPositions"`
}

type assetPosition struct {
	Type     string       `json:"type"`
	Position *rawPosition `json:"position"`
}

type rawPosition struct {
	Coin          string          `json:"coin"`
	Szi           decimal.Decimal `json:"szi"`
	EntryPx       decimal.Decimal `json:"entryPx"`
	PositionValue decimal.Decimal `json:"positionValue"`
	UnrealizedPnl decimal.Decimal `json:"unrealizedPnl"`
	Leverage      struct {
		Value int `json:"value"`
	} `json:"leverage"`
}

func parsePositions(body []byte) ([]schema.PositionSnapshot, error) {
	var payload clearinghousePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errs.New(venue, errs.CodeDecode, errs.WithMessage("clearinghouse envelope"), errs.WithCause(err))
	}

	snaps := make([]schema.PositionSnapshot, 0, len(payload.AssetPositions))
	for _, ap := range payload.AssetPositions {
		if ap.Position == nil {
			continue
		}
		snaps = append(snaps, schema.PositionSnapshot{
			Coin:          ap.Position.Coin,
			Size:          ap.Position.Szi,
			Entry:         ap.Position.EntryPx,
			Leverage:      ap.Position.Leverage.Value,
			Value:         ap.Position.PositionValue,
			UnrealizedPnl: ap.Position.UnrealizedPnl,
			Mode:          ap.Type,
		})
	}
	return snaps, nil
}

type openOrderPayload struct {
	Coin           string          `json:"coin"`
	OID            int64           `json:"oid"`
	OrigSz         decimal.Decimal `json:"origSz"`
	Sz             decimal.Decimal `json:"sz"`
	Timestamp      int64           `json:"timestamp"`
	Side           string          `json:"side"`
	OrderType      string          `json:"orderType"`
	IsTrigger      bool            `json:"isTrigger"`
	IsPositionTpsl bool            `json:"isPositionTpsl"`
	TriggerPx      decimal.Decimal `json:"triggerPx"`
	LimitPx        decimal.Decimal `json:"limitPx"`
	ReduceOnly     bool            `json:"reduceOnly"`
}

func parseOpenOrders(body []byte) ([]schema.OpenOrder, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errs.New(venue, errs.CodeDecode, errs.WithMessage("open orders envelope"), errs.WithCause(err))
	}

	orders := make([]schema.OpenOrder, 0, len(raw))
	for _, item := range raw {
		var o openOrderPayload
		if err := json.Unmarshal(item, &o); err != nil {
			observability.Log().Error("drop undecodable open order",
				observability.Field{Key: "error", Value: err})
			continue
		}
		orders = append(orders, schema.OpenOrder{
			Coin:           o.Coin,
			OID:            o.OID,
			OrigSize:       o.OrigSz,
			RemainSize:     o.Sz,
			Timestamp:      o.Timestamp,
			Side:           schema.Side(o.Side),
			OrderType:      o.OrderType,
			IsTrigger:      o.IsTrigger,
			IsPositionTPSL: o.IsPositionTpsl,
			TriggerPrice:   o.TriggerPx,
			LimitPrice:     o.LimitPx,
			ReduceOnly:     o.ReduceOnly,
		})
	}
	return orders, nil
}

type leaderboardPayload struct {
	Rows []leaderboardRowPayload `json:"leaderboardRows"`
}

type leaderboardRowPayload struct {
	EthAddress         string              `json:"ethAddress"`
	DisplayName        string              `json:"displayName"`
	WindowPerformances [][]json.RawMessage `json:"windowPerformances"`
}

type windowPerformancePayload struct {
	Pnl decimal.Decimal `json:"pnl"`
	Roi decimal.Decimal `json:"roi"`
}

func parseLeaderboard(body []byte) ([]schema.LeaderboardRow, error) {
	var payload leaderboardPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errs.New(venue, errs.CodeDecode, errs.WithMessage("leaderboard envelope"), errs.WithCause(err))
	}

	rows := make([]schema.LeaderboardRow, 0, len(payload.Rows))
	for _, raw := range payload.Rows {
		if raw.EthAddress == "" {
			continue
		}
		row := schema.LeaderboardRow{
			Address:     raw.EthAddress,
			Name:        raw.DisplayName,
			Performance: make(map[string]schema.WindowPerformance, len(raw.WindowPerformances)),
		}
		for _, tuple := range raw.WindowPerformances {
			if len(tuple) != 2 {
				continue
			}
			var timeframe string
			if err := json.Unmarshal(tuple[0], &timeframe); err != nil {
				continue
			}
			var perf windowPerformancePayload
			if err := json.Unmarshal(tuple[1], &perf); err != nil {
				observability.Log().Error("drop undecodable leaderboard window",
					observability.Field{Key: "address", Value: raw.EthAddress},
					observability.Field{Key: "error", Value: err})
				continue
			}
			row.Performance[timeframe] = schema.WindowPerformance{Pnl: perf.Pnl, Roi: perf.Roi}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
