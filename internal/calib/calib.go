// Package calib prepares raw sensor triplets for attitude estimation.
//
// Magnetometer streams carry a constant hard-iron offset from nearby
// ferromagnetic material; accelerometer streams are in arbitrary device
// units. Both corrections are estimated from the stream itself, so no
// bench calibration step is required of the user.
package calib

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/dsp"
)

// DebiasMagnetometer subtracts the per-axis median from each magnetometer
// axis. Median rather than mean so that outlier spikes do not drag the
// bias estimate.
func DebiasMagnetometer(x, y, z []float64) (outX, outY, outZ []float64) {
	return subtractMedian(x), subtractMedian(y), subtractMedian(z)
}

func subtractMedian(axis []float64) []float64 {
	out := make([]float64, len(axis))
	m := median(axis)
	for i, v := range axis {
		out[i] = v - m
	}
	return out
}

func median(values []float64) float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	sort.Float64s(finite)
	return stat.Quantile(0.5, stat.Empirical, finite, nil)
}

// NormalizeAccelerometer scales the accelerometer triplet so the mean
// sample magnitude is 1 g. A 0.5 Hz high-pass is applied first so that
// sustained non-gravity accelerations do not dominate the mean; the scale
// derived from the filtered stream is then applied to the raw stream.
//
// This assumes the sensor spends most of the recording near static 1 g.
// For recordings with sustained motion the estimate is biased; callers
// wanting better can supply an explicit stationary window upstream.
func NormalizeAccelerometer(x, y, z []float64, sampleRateHz float64) (outX, outY, outZ []float64) {
	hx := dsp.HighPass(x, sampleRateHz, 0.5)
	hy := dsp.HighPass(y, sampleRateHz, 0.5)
	hz := dsp.HighPass(z, sampleRateHz, 0.5)

	// The high-passed stream is zero-mean; measure residual dynamics on it
	// and the gravity magnitude on the raw stream minus those dynamics.
	n := minLen(x, y, z)
	mags := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		gx := x[i] - hx[i]
		gy := y[i] - hy[i]
		gz := z[i] - hz[i]
		m := math.Sqrt(gx*gx + gy*gy + gz*gz)
		if !math.IsNaN(m) && !math.IsInf(m, 0) {
			mags = append(mags, m)
		}
	}

	meanMag := stat.Mean(mags, nil)
	if len(mags) == 0 || meanMag <= 0 || math.IsNaN(meanMag) {
		// Degenerate stream: return copies unchanged.
		return copySlice(x), copySlice(y), copySlice(z)
	}

	scale := 1.0 / meanMag
	outX = make([]float64, len(x))
	outY = make([]float64, len(y))
	outZ = make([]float64, len(z))
	for i := range x {
		outX[i] = x[i] * scale
	}
	for i := range y {
		outY[i] = y[i] * scale
	}
	for i := range z {
		outZ[i] = z[i] * scale
	}
	return outX, outY, outZ
}

func minLen(x, y, z []float64) int {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if len(z) < n {
		n = len(z)
	}
	return n
}

func copySlice(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
