// Package replay implements the deterministic event replayer: it advances a
// pool.PoolState (and its position book) through a chronologically ordered
// stream of mint/burn/swap records, preserving pool invariants, and never
// halts on a bad individual record — only a NumericalOverflow, or a first
// Swap that cannot bootstrap the pool, is fatal.
package replay

import (
	"fmt"
	"sort"

	"github.com/quantforge/v3-backtester/event"
	"github.com/quantforge/v3-backtester/pool"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrorKind tags a Discrepancy or a fatal error with its failure category.
type ErrorKind int

const (
	KindInputShape ErrorKind = iota
	KindInvariantViolation
	KindStrategyPrecondition
	KindNumericalOverflow
	KindSkipped
)

func (k ErrorKind) String() string {
	switch k {
	case KindInputShape:
		return "InputShape"
	case KindInvariantViolation:
		return "InvariantViolation"
	case KindStrategyPrecondition:
		return "StrategyPrecondition"
	case KindNumericalOverflow:
		return "NumericalOverflow"
	case KindSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// FatalError is returned by Apply only for NumericalOverflow conditions and
// for an InputShape failure to bootstrap the pool from the first Swap; every
// other problem is recorded as a Discrepancy and replay continues.
type FatalError struct {
	Kind       ErrorKind
	EventIndex int
	Err        error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("replay: fatal %s at event %d: %v", e.Kind, e.EventIndex, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Discrepancy is one entry of the non-fatal warning ledger surfaced in the
// final report.
type Discrepancy struct {
	EventIndex int
	Timestamp  int64
	Kind       ErrorKind
	Message    string
}

// Replayer drives a pool.PoolState through an ordered event stream.
type Replayer struct {
	Pool          *pool.PoolState
	Discrepancies []Discrepancy
	Applied       int
	Skipped       int
}

func NewReplayer(p *pool.PoolState) *Replayer {
	return &Replayer{Pool: p}
}

// SortRecords returns a stable-sorted copy of records ordered by
// (blockTimestamp, blockNumber, logIndex), the order a chain would have
// emitted them in.
func SortRecords(records []event.Record) []event.Record {
	out := make([]event.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (r *Replayer) record(idx int, ts int64, kind ErrorKind, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Discrepancies = append(r.Discrepancies, Discrepancy{EventIndex: idx, Timestamp: ts, Kind: kind, Message: msg})
	logrus.WithFields(logrus.Fields{"event": idx, "kind": kind.String()}).Warn(msg)
}

// Apply replays a single record against the pool, lazily bootstrapping the
// pool's initial price from the first Swap event if it has not been
// initialized yet. It returns a *FatalError only for NumericalOverflow or
// when that bootstrap Initialize fails (InputShape); every other failure is appended to Discrepancies and nil is returned so
// the driver can continue to the next event.
func (r *Replayer) Apply(idx int, rec event.Record) error {
	if !r.Pool.Initialized() {
		if rec.Kind != event.KindSwap {
			r.record(idx, rec.BlockTimestamp, KindInputShape, "event %d (%s) seen before pool was initialized", idx, rec.Kind)
			r.Skipped++
			return nil
		}
		if err := r.Pool.Initialize(rec.Swap.SqrtPriceX96, r.Pool.FeeTier, r.Pool.TickSpacing); err != nil {
			return &FatalError{Kind: KindInputShape, EventIndex: idx, Err: err}
		}
	}

	var err error
	switch rec.Kind {
	case event.KindMint:
		err = r.applyMint(idx, rec)
	case event.KindBurn:
		err = r.applyBurn(idx, rec)
	case event.KindSwap:
		err = r.applySwap(idx, rec)
	default:
		r.record(idx, rec.BlockTimestamp, KindInputShape, "unknown event kind %q at index %d", rec.Kind, idx)
		r.Skipped++
		return nil
	}
	if err != nil {
		if fe, ok := err.(*FatalError); ok {
			return fe
		}
		r.record(idx, rec.BlockTimestamp, KindSkipped, "event %d could not be applied: %v", idx, err)
		r.Skipped++
		return nil
	}
	r.Applied++
	return nil
}

func (r *Replayer) applyMint(idx int, rec event.Record) error {
	m := rec.Mint
	amount0, amount1, err := r.Pool.Mint(m.Owner, m.TickLower, m.TickUpper, m.Liquidity)
	if err != nil {
		if pool.IsOverflow(err) {
			return &FatalError{Kind: KindNumericalOverflow, EventIndex: idx, Err: err}
		}
		return err
	}
	checkEpsilon(amount0, m.Amount0, func(msg string) { r.record(idx, rec.BlockTimestamp, KindInvariantViolation, "mint amount0: %s", msg) })
	checkEpsilon(amount1, m.Amount1, func(msg string) { r.record(idx, rec.BlockTimestamp, KindInvariantViolation, "mint amount1: %s", msg) })
	return nil
}

func (r *Replayer) applyBurn(idx int, rec event.Record) error {
	b := rec.Burn
	_, _, err := r.Pool.Burn(b.Owner, b.TickLower, b.TickUpper, b.Liquidity)
	if err != nil {
		if pool.IsOverflow(err) {
			return &FatalError{Kind: KindNumericalOverflow, EventIndex: idx, Err: err}
		}
		return err
	}
	return nil
}

func (r *Replayer) applySwap(idx int, rec event.Record) error {
	s := rec.Swap
	if !s.Amount0.IsZero() && !s.Amount1.IsZero() {
		if (s.Amount0.IsPositive() && s.Amount1.IsPositive()) || (s.Amount0.IsNegative() && s.Amount1.IsNegative()) {
			r.record(idx, rec.BlockTimestamp, KindInvariantViolation, "swap amount0/amount1 signs should be opposite: %s / %s", s.Amount0, s.Amount1)
		}
	}

	discrepancy, err := r.Pool.ApplySwap(s.Amount0, s.Amount1, s.SqrtPriceX96, s.Tick, s.Liquidity)
	if err != nil {
		if pool.IsOverflow(err) {
			return &FatalError{Kind: KindNumericalOverflow, EventIndex: idx, Err: err}
		}
		return err
	}
	if discrepancy {
		r.record(idx, rec.BlockTimestamp, KindInvariantViolation, "swap liquidity disagreed with tick-walk by more than one unit")
	}
	return nil
}

func checkEpsilon(computed, reported decimal.Decimal, onViolation func(string)) {
	if reported.IsZero() && computed.IsZero() {
		return
	}
	if computed.Sub(reported).Abs().GreaterThan(pool.ONE) {
		onViolation(fmt.Sprintf("computed=%s reported=%s", computed, reported))
	}
}
