// Package event defines the in-memory record types the replayer consumes.
// Decoding these from line-delimited JSON is an external collaborator's
// concern; this package only defines the shapes and the chronological
// ordering rule applied to them.
package event

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Kind tags which variant a Record carries.
type Kind string

const (
	KindMint Kind = "Mint"
	KindBurn Kind = "Burn"
	KindSwap Kind = "Swap"
)

// Record is one line of the input event stream. Exactly one of Mint, Burn,
// or Swap is populated, selected by Kind. Extra input fields are tolerated
// by construction: this struct only names what the replayer reads.
type Record struct {
	Kind            Kind
	BlockNumber     uint64
	BlockTimestamp  int64 // unix seconds
	TransactionHash common.Hash
	LogIndex        uint // optional; zero if absent, used only as a tie-breaker

	Mint *MintRecord
	Burn *BurnRecord
	Swap *SwapRecord
}

// MintRecord is a Mint event: liquidity added to [TickLower, TickUpper].
type MintRecord struct {
	Owner     common.Address
	TickLower int
	TickUpper int
	Liquidity decimal.Decimal
	Amount0   decimal.Decimal
	Amount1   decimal.Decimal
}

// BurnRecord is a Burn event: liquidity removed from [TickLower, TickUpper].
type BurnRecord struct {
	Owner     common.Address
	TickLower int
	TickUpper int
	Liquidity decimal.Decimal
}

// SwapRecord is a Swap event carrying the pool's authoritative post-state.
type SwapRecord struct {
	Amount0      decimal.Decimal // signed; positive means token0 into the pool
	Amount1      decimal.Decimal // signed; positive means token1 into the pool
	SqrtPriceX96 decimal.Decimal
	Liquidity    decimal.Decimal // post-swap active liquidity
	Tick         int             // post-swap tick
}

// SortKey orders records by (blockTimestamp, blockNumber, logIndex), the
// stable replay order a chain would have emitted them in.
func (r Record) SortKey() (int64, uint64, uint) {
	return r.BlockTimestamp, r.BlockNumber, r.LogIndex
}

// Less reports whether r sorts strictly before other under SortKey.
func (r Record) Less(other Record) bool {
	rt, rb, rl := r.SortKey()
	ot, ob, ol := other.SortKey()
	if rt != ot {
		return rt < ot
	}
	if rb != ob {
		return rb < ob
	}
	return rl < ol
}
