// Package indicator maintains a sliding window of OHLC bars built from swap
// price samples and exposes ATR, SMA, and standard deviation over that
// window. Every indicator reports "not ready" until its full window of
// closed bars exists, rather than substituting a zero value.
package indicator

import (
	"math"

	"github.com/shopspring/decimal"
)

// Bar is one closed OHLC bar over a fixed wall-clock interval (1 minute by
// default).
type Bar struct {
	StartTimestamp int64
	High, Low, Open, Close decimal.Decimal
}

// BarBuilder aggregates swap price samples into fixed-width bars and emits
// each one as it closes.
type BarBuilder struct {
	intervalSeconds int64
	current         *Bar
}

func NewBarBuilder(intervalSeconds int64) *BarBuilder {
	if intervalSeconds <= 0 {
		intervalSeconds = 60
	}
	return &BarBuilder{intervalSeconds: intervalSeconds}
}

// Add feeds one price sample at timestamp. It returns the bar that just
// closed (if the sample started a new interval) and whether one closed.
func (b *BarBuilder) Add(timestamp int64, price decimal.Decimal) (Bar, bool) {
	start := (timestamp / b.intervalSeconds) * b.intervalSeconds

	if b.current == nil {
		b.current = &Bar{StartTimestamp: start, Open: price, High: price, Low: price, Close: price}
		return Bar{}, false
	}

	if start == b.current.StartTimestamp {
		if price.GreaterThan(b.current.High) {
			b.current.High = price
		}
		if price.LessThan(b.current.Low) {
			b.current.Low = price
		}
		b.current.Close = price
		return Bar{}, false
	}

	closed := *b.current
	b.current = &Bar{StartTimestamp: start, Open: price, High: price, Low: price, Close: price}
	return closed, true
}

// Flush force-closes the in-progress bar (used at end-of-stream); it
// reports ok=false if no sample has arrived yet.
func (b *BarBuilder) Flush() (Bar, bool) {
	if b.current == nil {
		return Bar{}, false
	}
	closed := *b.current
	b.current = nil
	return closed, true
}

// Window holds the closed-bar history an indicator set reads from, plus the
// incremental Wilder ATR state that cannot be recomputed from a short tail
// of the window alone.
type Window struct {
	bars          []Bar
	prevClose     decimal.Decimal
	havePrevClose bool

	atrPeriod int
	atrValue  decimal.Decimal
	atrReady  bool
	trSeed    []decimal.Decimal // true ranges collected before the seed mean is available
}

// NewWindow constructs an indicator window that seeds its ATR over
// atrPeriod bars.
func NewWindow(atrPeriod int) *Window {
	return &Window{atrPeriod: atrPeriod}
}

// PushBar appends a newly closed bar and advances ATR, per Wilder's rule:
// seeded as the simple mean of the first n true ranges, thereafter
// ATR_k = ((n-1)*ATR_{k-1} + TR_k) / n.
func (w *Window) PushBar(bar Bar) {
	w.bars = append(w.bars, bar)

	if w.havePrevClose {
		tr := trueRange(bar.High, bar.Low, w.prevClose)
		w.advanceATR(tr)
	}
	w.prevClose = bar.Close
	w.havePrevClose = true
}

func trueRange(high, low, prevClose decimal.Decimal) decimal.Decimal {
	hl := high.Sub(low).Abs()
	hc := high.Sub(prevClose).Abs()
	lc := low.Sub(prevClose).Abs()
	tr := hl
	if hc.GreaterThan(tr) {
		tr = hc
	}
	if lc.GreaterThan(tr) {
		tr = lc
	}
	return tr
}

func (w *Window) advanceATR(tr decimal.Decimal) {
	if w.atrReady {
		n := decimal.NewFromInt(int64(w.atrPeriod))
		w.atrValue = w.atrValue.Mul(n.Sub(decimal.NewFromInt(1))).Add(tr).Div(n)
		return
	}

	w.trSeed = append(w.trSeed, tr)
	if len(w.trSeed) < w.atrPeriod {
		return
	}
	sum := decimal.Zero
	for _, v := range w.trSeed {
		sum = sum.Add(v)
	}
	w.atrValue = sum.Div(decimal.NewFromInt(int64(w.atrPeriod)))
	w.atrReady = true
	w.trSeed = nil
}

// ATR returns Wilder's average true range over the configured period, and
// false if not yet ready.
func (w *Window) ATR() (decimal.Decimal, bool) {
	if !w.atrReady {
		return decimal.Zero, false
	}
	return w.atrValue, true
}

// SMA returns the simple mean of the last n bars' closes, or false if fewer
// than n closed bars exist yet.
func (w *Window) SMA(n int) (decimal.Decimal, bool) {
	if n <= 0 || len(w.bars) < n {
		return decimal.Zero, false
	}
	tail := w.bars[len(w.bars)-n:]
	sum := decimal.Zero
	for _, bar := range tail {
		sum = sum.Add(bar.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

// StdDev returns the population standard deviation of the last n bars'
// closes, or false if fewer than n closed bars exist yet.
func (w *Window) StdDev(n int) (decimal.Decimal, bool) {
	mean, ok := w.SMA(n)
	if !ok {
		return decimal.Zero, false
	}
	tail := w.bars[len(w.bars)-n:]
	sumSq := decimal.Zero
	for _, bar := range tail {
		d := bar.Close.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(n)))
	f, _ := variance.Float64()
	return decimal.NewFromFloat(math.Sqrt(f)), true
}

// Len reports how many closed bars are currently held.
func (w *Window) Len() int { return len(w.bars) }
