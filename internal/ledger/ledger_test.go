package ledger

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/coachpo/hyperwatch/internal/schema"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestApplyFillOpenLongFromFlat(t *testing.T) {
	pos := schema.NewFlatPosition("BTC")
	ev := schema.FillEvent{
		Coin:          "BTC",
		Direction:     "Open Long",
		Size:          d("10"),
		StartPosition: d("0"),
		Price:         d("100"),
		ClosedPnl:     d("0"),
	}

	ApplyFill(pos, ev)

	if !pos.Size.Equal(d("10")) {
		t.Errorf("size = %s, want 10", pos.Size)
	}
	if pos.Direction != schema.DirectionLong {
		t.Errorf("direction = %s, want long", pos.Direction)
	}
	if !pos.Value.Equal(d("1000")) {
		t.Errorf("value = %s, want 1000", pos.Value)
	}
	if !pos.UnrealizedPnl.IsZero() {
		t.Errorf("unrealized pnl = %s, want 0", pos.UnrealizedPnl)
	}
	if !pos.Modified {
		t.Error("expected modified flag")
	}
}

func TestApplyFillCloseLongToFlat(t *testing.T) {
	pos := schema.NewFlatPosition("BTC")
	pos.Size = d("10")
	pos.Direction = schema.DirectionLong
	pos.Entry = d("100")
	pos.Leverage = 5

	ev := schema.FillEvent{
		Coin:          "BTC",
		Direction:     "Close Long",
		Size:          d("10"),
		StartPosition: d("10"),
		Price:         d("110"),
		ClosedPnl:     d("100"),
	}

	ApplyFill(pos, ev)

	if !pos.Size.IsZero() {
		t.Errorf("size = %s, want 0", pos.Size)
	}
	if pos.Direction != schema.DirectionFlat {
		t.Errorf("direction = %s, want flat", pos.Direction)
	}
	if pos.Leverage != 0 {
		t.Errorf("leverage = %d, want 0", pos.Leverage)
	}
	if !pos.Value.IsZero() || !pos.Entry.IsZero() {
		t.Errorf("value/entry = %s/%s, want 0/0", pos.Value, pos.Entry)
	}
	// The -100 adjustment is erased by the flat reset.
	if !pos.UnrealizedPnl.IsZero() {
		t.Errorf("unrealized pnl = %s, want 0", pos.UnrealizedPnl)
	}
}

func TestApplyFillPartialCloseKeepsPnlAdjustment(t *testing.T) {
	pos := schema.NewFlatPosition("ETH")
	pos.Size = d("10")
	pos.Direction = schema.DirectionLong
	pos.UnrealizedPnl = d("50")

	ev := schema.FillEvent{
		Direction:     "Close Long",
		Size:          d("4"),
		StartPosition: d("10"),
		Price:         d("200"),
		ClosedPnl:     d("30"),
	}

	ApplyFill(pos, ev)

	if !pos.Size.Equal(d("6")) {
		t.Errorf("size = %s, want 6", pos.Size)
	}
	if !pos.UnrealizedPnl.Equal(d("20")) {
		t.Errorf("unrealized pnl = %s, want 20", pos.UnrealizedPnl)
	}
	if !pos.Value.Equal(d("1200")) {
		t.Errorf("value = %s, want 1200", pos.Value)
	}
}

func TestApplyFillShortDeltas(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		start    string
		size     string
		wantSize string
		wantDir  schema.Direction
	}{
		{"open short from flat", "Open Short", "0", "5", "-5", schema.DirectionShort},
		{"open short adds", "Open Short", "-5", "3", "-8", schema.DirectionShort},
		{"close short reduces", "Close Short", "-8", "3", "-5", schema.DirectionShort},
		{"close short to flat", "Close Short", "-5", "5", "0", schema.DirectionFlat},
		{"open long adds", "Open Long", "2", "3", "5", schema.DirectionLong},
		{"close long reduces", "Close Long", "5", "2", "3", schema.DirectionLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := schema.NewFlatPosition("SOL")
			ev := schema.FillEvent{
				Direction:     tt.dir,
				Size:          d(tt.size),
				StartPosition: d(tt.start),
				Price:         d("10"),
			}

			ApplyFill(pos, ev)

			if !pos.Size.Equal(d(tt.wantSize)) {
				t.Errorf("size = %s, want %s", pos.Size, tt.wantSize)
			}
			if pos.Direction != tt.wantDir {
				t.Errorf("direction = %s, want %s", pos.Direction, tt.wantDir)
			}
		})
	}
}

func TestApplyFillShortValueIsNegative(t *testing.T) {
	pos := schema.NewFlatPosition("SOL")
	ev := schema.FillEvent{
		Direction:     "Open Short",
		Size:          d("4"),
		StartPosition: d("0"),
		Price:         d("25"),
	}

	ApplyFill(pos, ev)

	if !pos.Value.Equal(d("-100")) {
		t.Errorf("value = %s, want -100", pos.Value)
	}
}

// Applying a fill sequence and then its inverse returns the position to flat.
func TestApplyFillInverseSequenceReturnsToFlat(t *testing.T) {
	pos := schema.NewFlatPosition("BTC")

	opens := []schema.FillEvent{
		{Direction: "Open Long", Size: d("3"), StartPosition: d("0"), Price: d("100")},
		{Direction: "Open Long", Size: d("2"), StartPosition: d("3"), Price: d("101")},
		{Direction: "Open Long", Size: d("5"), StartPosition: d("5"), Price: d("102")},
	}
	closes := []schema.FillEvent{
		{Direction: "Close Long", Size: d("5"), StartPosition: d("10"), Price: d("103")},
		{Direction: "Close Long", Size: d("2"), StartPosition: d("5"), Price: d("104")},
		{Direction: "Close Long", Size: d("3"), StartPosition: d("3"), Price: d("105")},
	}

	for _, ev := range opens {
		ApplyFill(pos, ev)
	}
	if !pos.Size.Equal(d("10")) {
		t.Fatalf("size after opens = %s, want 10", pos.Size)
	}
	for _, ev := range closes {
		ApplyFill(pos, ev)
	}

	if !pos.Size.IsZero() {
		t.Errorf("size = %s, want 0", pos.Size)
	}
	if pos.Direction != schema.DirectionFlat {
		t.Errorf("direction = %s, want flat", pos.Direction)
	}
	if !pos.UnrealizedPnl.IsZero() {
		t.Errorf("unrealized pnl = %s, want 0", pos.UnrealizedPnl)
	}
}

func TestApplyFillUnknownDirectionLeavesSize(t *testing.T) {
	pos := schema.NewFlatPosition("BTC")
	pos.Size = d("7")
	pos.Direction = schema.DirectionLong

	ApplyFill(pos, schema.FillEvent{Direction: "Liquidation", Price: d("100"), ClosedPnl: d("1")})

	if !pos.Size.Equal(d("7")) {
		t.Errorf("size = %s, want 7", pos.Size)
	}
	// Sign-derived fields are still re-evaluated.
	if pos.Direction != schema.DirectionLong {
		t.Errorf("direction = %s, want long", pos.Direction)
	}
	if !pos.UnrealizedPnl.Equal(d("-1")) {
		t.Errorf("unrealized pnl = %s, want -1", pos.UnrealizedPnl)
	}
}

func TestApplySnapshotReplacesOneWayPositions(t *testing.T) {
	trader := &schema.Trader{Address: "0xabc"}
	stale := schema.NewFlatPosition("BTC")
	stale.Size = d("999")
	stale.BuyOrders = []schema.Order{{OID: 1}}
	trader.SetPosition("BTC", stale)

	snaps := []schema.PositionSnapshot{
		{Coin: "BTC", Size: d("2"), Entry: d("50000"), Leverage: 10, Value: d("100000"), UnrealizedPnl: d("250"), Mode: schema.PositionModeOneWay},
		{Coin: "ETH", Size: d("-3"), Entry: d("2000"), Leverage: 5, Value: d("-6000"), UnrealizedPnl: d("-10"), Mode: schema.PositionModeOneWay},
		{Coin: "SOL", Size: d("1"), Mode: "hedge"},
	}

	ApplySnapshot(trader, snaps)

	btc := trader.Position("BTC")
	if !btc.Size.Equal(d("2")) || btc.Direction != schema.DirectionLong || btc.Leverage != 10 {
		t.Errorf("unexpected BTC position: %+v", btc)
	}
	if btc.BuyOrders != nil {
		t.Error("snapshot replacement must drop reconstructed orders")
	}
	eth := trader.Position("ETH")
	if eth == nil || eth.Direction != schema.DirectionShort {
		t.Errorf("unexpected ETH position: %+v", eth)
	}
	if trader.Position("SOL") != nil {
		t.Error("hedge-mode entry must be ignored")
	}
}

// Applying the same unchanged snapshot twice yields an identical position.
func TestApplySnapshotIdempotent(t *testing.T) {
	trader := &schema.Trader{Address: "0xabc"}
	snaps := []schema.PositionSnapshot{
		{Coin: "BTC", Size: d("2"), Entry: d("50000"), Leverage: 10, Value: d("100000"), UnrealizedPnl: d("250"), Mode: schema.PositionModeOneWay},
	}

	ApplySnapshot(trader, snaps)
	first := *trader.Position("BTC")
	ApplySnapshot(trader, snaps)
	second := *trader.Position("BTC")

	if !first.Size.Equal(second.Size) || !first.Entry.Equal(second.Entry) ||
		!first.Value.Equal(second.Value) || !first.UnrealizedPnl.Equal(second.UnrealizedPnl) ||
		first.Direction != second.Direction || first.Leverage != second.Leverage {
		t.Errorf("snapshot application not idempotent: %+v vs %+v", first, second)
	}
}
