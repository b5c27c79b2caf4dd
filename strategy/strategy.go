// Package strategy implements the strategy framework: a Strategy is
// consulted after every replayed event with a read-only Snapshot of pool,
// position, and indicator state, and returns at most one Action for the
// driver to apply.
package strategy

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantforge/v3-backtester/indicator"
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
)

// Snapshot is the read-only view a Strategy consults on each event:
// (timestamp, pool, my_positions, my_idle, indicators).
type Snapshot struct {
	Timestamp     int64
	Pool          *pool.PoolState
	Owner         common.Address
	MyPositions   []*pool.Position
	Idle0, Idle1  decimal.Decimal
	Indicators    *indicator.Window
}

// ActionKind tags which variant an Action carries.
type ActionKind int

const (
	ActionHold ActionKind = iota
	ActionOpenPosition
	ActionClosePosition
	ActionRebalance
)

// Action is the tagged variant a Strategy returns. Only the fields
// relevant to Kind are populated.
type Action struct {
	Kind ActionKind

	// OpenPosition / Rebalance (new range)
	TickLower, TickUpper     int
	Amount0Max, Amount1Max   decimal.Decimal

	// ClosePosition / Rebalance (range to tear down)
	CloseTickLower, CloseTickUpper int
}

// Hold is the zero-cost no-op action.
var Hold = Action{Kind: ActionHold}

// Strategy is the state machine consulted once per replayed event.
// Implementations must treat an indicator's "not ready" as Hold, never as
// a zero value.
type Strategy interface {
	// Name identifies the strategy for reporting and the config's `strategy`
	// enum.
	Name() string

	// OnEvent is called once per replayed event with the current snapshot
	// and returns the action to take, if any.
	OnEvent(snap Snapshot) (Action, error)
}
