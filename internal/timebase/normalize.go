// Package timebase detects the physical unit of raw timestamp columns and
// rewrites them to zero-based seconds.
//
// Sensor exports disagree wildly on time units: nanoseconds since boot,
// milliseconds since epoch, plain sample counters. Rather than asking the
// user, the normalizer searches power-of-ten scale factors for one that
// puts the stream inside a physically plausible sampling envelope.
package timebase

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// statsWindow bounds how many leading rows feed the median-delta
	// estimate. The unit does not change mid-stream, so a prefix is enough.
	statsWindow = 200

	// Plausible envelope for one inter-sample delta, in seconds.
	minDeltaSeconds = 0.0005 // 2 kHz
	maxDeltaSeconds = 2.0    // 0.5 Hz

	// Plausible envelope for the implied sample rate, in Hz.
	minRateHz = 1.0
	maxRateHz = 500.0
)

// candidateScales are tried largest first so nanosecond exports are
// recognized before a degenerate small-scale match.
var candidateScales = []float64{1e9, 1e8, 1e7, 1e6, 1e5, 1e4, 1e3, 1e2, 1e1, 1, 1e-1, 1e-2, 1e-3}

// Normalization describes how a raw timestamp column was rebased.
type Normalization struct {
	T0        float64 // rebased origin, always 0 for non-empty input
	MaxT      float64 // scaled span of the stream in seconds
	RawOrigin float64 // first finite raw timestamp
	RawSpan   float64 // last finite raw timestamp minus RawOrigin
	Scale     float64 // divisor applied to raw deltas (raw units per second)
}

// Normalize rewrites raw in place to zero-based seconds and reports the
// scale that was applied. Non-finite entries are skipped when computing
// statistics but still rewritten with the chosen scale. Inputs with fewer
// than two finite timestamps are left untouched with scale 1.
func Normalize(raw []float64) Normalization {
	finite := finitePrefix(raw, statsWindow)
	if len(finite) < 2 {
		return Normalization{Scale: 1}
	}

	medianDelta := medianPositiveDelta(finite)
	rawOrigin := firstFinite(raw)
	rawSpan := lastFinite(raw) - rawOrigin
	validCount := countFinite(raw)

	scale := chooseScale(medianDelta, rawSpan, validCount)

	for i, v := range raw {
		raw[i] = (v - rawOrigin) / scale
	}

	return Normalization{
		T0:        0,
		MaxT:      rawSpan / scale,
		RawOrigin: rawOrigin,
		RawSpan:   rawSpan,
		Scale:     scale,
	}
}

// chooseScale picks the first candidate scale whose scaled median delta and
// implied sample rate both land in the plausible envelope. If nothing
// matches, the stream is assumed to be 100 Hz and the scale forces the
// median delta to exactly 10 ms.
func chooseScale(medianDelta, rawSpan float64, validCount int) float64 {
	if medianDelta <= 0 {
		return 1
	}
	for _, scale := range candidateScales {
		delta := medianDelta / scale
		if delta < minDeltaSeconds || delta > maxDeltaSeconds {
			continue
		}
		span := rawSpan / scale
		if span <= 0 {
			continue
		}
		rate := float64(validCount) / span
		if rate < minRateHz || rate > maxRateHz {
			continue
		}
		return scale
	}
	// Fallback: force median delta to 10 ms (100 Hz assumption).
	return medianDelta / 0.01
}

// finitePrefix collects up to max finite values from the front of raw.
func finitePrefix(raw []float64, max int) []float64 {
	out := make([]float64, 0, max)
	for _, v := range raw {
		if !isFinite(v) {
			continue
		}
		out = append(out, v)
		if len(out) >= max {
			break
		}
	}
	return out
}

// medianPositiveDelta returns the median of positive consecutive deltas.
func medianPositiveDelta(values []float64) float64 {
	deltas := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		d := values[i] - values[i-1]
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 0
	}
	sort.Float64s(deltas)
	return stat.Quantile(0.5, stat.Empirical, deltas, nil)
}

func firstFinite(raw []float64) float64 {
	for _, v := range raw {
		if isFinite(v) {
			return v
		}
	}
	return 0
}

func lastFinite(raw []float64) float64 {
	for i := len(raw) - 1; i >= 0; i-- {
		if isFinite(raw[i]) {
			return raw[i]
		}
	}
	return 0
}

func countFinite(raw []float64) int {
	n := 0
	for _, v := range raw {
		if isFinite(v) {
			n++
		}
	}
	return n
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
