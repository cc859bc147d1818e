// Package dsp provides the causal filters and series helpers used to
// condition raw IMU axis data for display and analysis.
//
// All functions are stateless and operate on plain float64 slices so they
// can be composed freely. None of them mutate their input.
package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// DefaultSampleRateHz is assumed when a time series is too short to
// estimate a rate from.
const DefaultSampleRateHz = 100.0

// MovingAverage smooths data with a centered symmetric window. Windows at
// the boundaries shrink instead of wrapping, so output length always
// equals input length.
func MovingAverage(data []float64, windowSize int) []float64 {
	if windowSize <= 1 || len(data) == 0 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}

	half := windowSize / 2
	out := make([]float64, len(data))
	for i := range data {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(data)-1 {
			hi = len(data) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += data[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}

// LowPass applies a single-pole IIR low-pass filter.
// alpha = dt/(RC+dt) with RC = 1/(2*pi*cutoff).
func LowPass(data []float64, sampleRateHz, cutoffHz float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	if sampleRateHz <= 0 || cutoffHz <= 0 {
		copy(out, data)
		return out
	}

	dt := 1.0 / sampleRateHz
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	alpha := dt / (rc + dt)

	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = out[i-1] + alpha*(data[i]-out[i-1])
	}
	return out
}

// HighPass applies the complementary single-pole IIR high-pass filter.
// alpha = RC/(RC+dt). The first output is forced to zero.
func HighPass(data []float64, sampleRateHz, cutoffHz float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	if sampleRateHz <= 0 || cutoffHz <= 0 {
		copy(out, data)
		return out
	}

	dt := 1.0 / sampleRateHz
	rc := 1.0 / (2 * math.Pi * cutoffHz)
	alpha := rc / (rc + dt)

	out[0] = 0
	for i := 1; i < len(data); i++ {
		out[i] = alpha * (out[i-1] + data[i] - data[i-1])
	}
	return out
}

// EWMA applies standard exponential smoothing. The first output equals the
// first input. Alpha outside (0,1] passes the data through unchanged.
func EWMA(data []float64, alpha float64) []float64 {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out
	}
	if alpha <= 0 || alpha > 1 {
		copy(out, data)
		return out
	}
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = alpha*data[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EstimateSampleRateHz derives the sample rate from a time series as the
// reciprocal of the median positive consecutive delta. Streams with fewer
// than three samples get DefaultSampleRateHz.
func EstimateSampleRateHz(times []float64) float64 {
	if len(times) < 3 {
		return DefaultSampleRateHz
	}
	deltas := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		d := times[i] - times[i-1]
		if d > 0 {
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return DefaultSampleRateHz
	}
	sort.Float64s(deltas)
	median := stat.Quantile(0.5, stat.Empirical, deltas, nil)
	if median <= 0 {
		return DefaultSampleRateHz
	}
	return 1.0 / median
}

// Magnitude computes the elementwise Euclidean norm of three axis series,
// truncated to the shortest input length.
func Magnitude(x, y, z []float64) []float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if len(z) < n {
		n = len(z)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Sqrt(x[i]*x[i] + y[i]*y[i] + z[i]*z[i])
	}
	return out
}

// DownsampleXY stride-samples a paired time/value series so that at most
// maxPoints points remain. No averaging is applied; charts only need the
// visual envelope. Series already under the cap are returned as copies.
func DownsampleXY(times, values []float64, maxPoints int) (outTimes, outValues []float64) {
	n := len(times)
	if len(values) < n {
		n = len(values)
	}
	if maxPoints <= 0 || n <= maxPoints {
		outTimes = make([]float64, n)
		outValues = make([]float64, n)
		copy(outTimes, times[:n])
		copy(outValues, values[:n])
		return outTimes, outValues
	}

	stride := int(math.Ceil(float64(n) / float64(maxPoints)))
	outTimes = make([]float64, 0, maxPoints)
	outValues = make([]float64, 0, maxPoints)
	for i := 0; i < n; i += stride {
		outTimes = append(outTimes, times[i])
		outValues = append(outValues, values[i])
	}
	return outTimes, outValues
}

// FilterAccelerationAxis runs the display conditioning pipeline for one
// accelerometer axis: moving average, 10 Hz low-pass, and optionally a
// 0.5 Hz high-pass to strip gravity and DC bias. This pipeline is for
// plotting only; the attitude estimator calibrates its own gravity
// reference from the unfiltered signal.
func FilterAccelerationAxis(axis, times []float64, removeGravity bool) []float64 {
	rate := EstimateSampleRateHz(times)
	out := MovingAverage(axis, 5)
	out = LowPass(out, rate, 10)
	if removeGravity {
		out = HighPass(out, rate, 0.5)
	}
	return out
}
