// Package schema defines the canonical record types reconstructed from
// exchange data: traders, positions, resting orders and fill events.
package schema

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Direction describes the net exposure of a position.
type Direction int

const (
	// DirectionFlat marks a position with zero size; the direction is unknown.
	DirectionFlat Direction = iota
	// DirectionLong marks a positive net position.
	DirectionLong
	// DirectionShort marks a negative net position.
	DirectionShort
)

func (d Direction) String() string {
	switch d {
	case DirectionLong:
		return "long"
	case DirectionShort:
		return "short"
	default:
		return "flat"
	}
}

// Side identifies the book side of an order as reported by the exchange.
type Side string

const (
	// SideBuy is the bid side ("B" on the wire).
	SideBuy Side = "B"
	// SideSell is the ask side ("A" on the wire).
	SideSell Side = "A"
)

// OrderAction classifies whether a resting order would increase or reduce exposure.
type OrderAction string

const (
	// ActionEntry marks an order that opens or increases exposure.
	ActionEntry OrderAction = "entry"
	// ActionExit marks a reduce-only order.
	ActionExit OrderAction = "exit"
)

// Order is a resting order observed at the exchange. Orders are immutable
// within a poll cycle and replaced wholesale on each classification pass.
type Order struct {
	OID        int64
	Limit      decimal.Decimal
	Size       decimal.Decimal
	RemainSize decimal.Decimal
	Timestamp  int64
	Side       Side
	Action     OrderAction
}

// Position is the reconstructed per-instrument state of a trader.
type Position struct {
	Coin          string
	Value         decimal.Decimal
	Size          decimal.Decimal
	Entry         decimal.Decimal
	Direction     Direction
	Leverage      int
	UnrealizedPnl decimal.Decimal
	Modified      bool

	TakeProfit   *Order
	StopLoss     *Order
	BuyOrders    []Order
	SellOrders   []Order
	MarketOrders []Order // reserved, not populated by classification
}

// NewFlatPosition returns a zeroed placeholder position for the instrument.
func NewFlatPosition(coin string) *Position {
	return &Position{
		Coin:          coin,
		Value:         decimal.Zero,
		Size:          decimal.Zero,
		Entry:         decimal.Zero,
		Direction:     DirectionFlat,
		Leverage:      1,
		UnrealizedPnl: decimal.Zero,
		Modified:      true,
		TakeProfit:    nil,
		StopLoss:      nil,
		BuyOrders:     nil,
		SellOrders:    nil,
		MarketOrders:  nil,
	}
}

// Trader is a tracked market participant with its reconstructed positions.
type Trader struct {
	Name      string
	Address   string
	Pnl       decimal.Decimal
	Roi       decimal.Decimal
	Positions map[string]*Position
}

// Position returns the tracked position for the instrument, or nil.
func (t *Trader) Position(coin string) *Position {
	if t == nil || t.Positions == nil {
		return nil
	}
	return t.Positions[coin]
}

// SetPosition stores the position for the instrument, allocating the map on first use.
func (t *Trader) SetPosition(coin string, pos *Position) {
	if t.Positions == nil {
		t.Positions = make(map[string]*Position)
	}
	t.Positions[coin] = pos
}

// FillEvent is an immutable execution record consumed exactly once by the ledger.
type FillEvent struct {
	Coin          string
	Direction     string
	Price         decimal.Decimal
	Size          decimal.Decimal
	StartPosition decimal.Decimal
	ClosedPnl     decimal.Decimal
	Fee           decimal.Decimal
	FeeToken      string
	BuilderFee    decimal.Decimal
	Time          int64
	TID           int64
	OID           int64
	Hash          string
	Crossed       bool
	Side          Side
}

// OpensLong reports whether the fill increases a long position.
func (f FillEvent) OpensLong() bool { return f.mentions("Long") && f.mentions("Open") }

// ClosesLong reports whether the fill reduces a long position.
func (f FillEvent) ClosesLong() bool { return f.mentions("Long") && f.mentions("Close") }

// OpensShort reports whether the fill increases a short position.
func (f FillEvent) OpensShort() bool { return f.mentions("Short") && f.mentions("Open") }

// ClosesShort reports whether the fill reduces a short position.
func (f FillEvent) ClosesShort() bool { return f.mentions("Short") && f.mentions("Close") }

func (f FillEvent) mentions(word string) bool {
	return strings.Contains(f.Direction, word)
}
