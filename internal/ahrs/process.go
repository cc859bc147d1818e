package ahrs

import (
	"fmt"
	"math"

	"github.com/banshee-data/motion.report/internal/calib"
	"github.com/banshee-data/motion.report/internal/imucsv"
)

// Algorithm names accepted by Process.
const (
	AlgorithmMadgwick = "madgwick"
	AlgorithmMahony   = "mahony"
)

// OrientationSample is one estimated orientation, stored in all three
// representations the presentation layer consumes.
type OrientationSample struct {
	Quaternion     Quaternion    `json:"quaternion"`
	Euler          Euler         `json:"euler"`
	RotationMatrix [3][3]float64 `json:"rotation_matrix"`
}

// FusionResult is the output of running the attitude filter over one IMU
// stream. Times ascend and parallel Orientations one-to-one.
type FusionResult struct {
	Times        []float64           `json:"times"`
	Orientations []OrientationSample `json:"orientations"`
	Algorithm    string              `json:"algorithm"`
	SampleRateHz float64             `json:"sample_rate_hz"`
}

// Len returns the number of fused samples.
func (r *FusionResult) Len() int { return len(r.Orientations) }

// Options configures a Process run.
type Options struct {
	Algorithm string  // madgwick (default) or mahony
	Beta      float64 // Madgwick gain, default 0.1
	Kp        float64 // Mahony proportional gain, default 0.5
	Ki        float64 // Mahony integral gain, default 0
}

// filter is the per-sample update loop both algorithms satisfy.
type filter interface {
	Update(gx, gy, gz, ax, ay, az, mx, my, mz, dt float64)
	Quaternion() Quaternion
}

// degreesPerSecThreshold decides gyro units: a stationary-ish first sample
// whose absolute axis sum exceeds this cannot plausibly be rad/s.
const degreesPerSecThreshold = 10.0

// Process runs the attitude filter over a full stream. The table must
// contain all nine sensor axes (located by header-name matching); times is
// the normalized zero-based seconds column. dt is held constant at
// 1/sampleRateHz, an accepted approximation given near-uniform sampling
// after normalization.
func Process(table *imucsv.Table, times []float64, sampleRateHz float64, opts Options) (*FusionResult, error) {
	accel, gyro, mag, err := table.NineDOF()
	if err != nil {
		return nil, fmt.Errorf("stream is not 9-DOF: %w", err)
	}

	f, err := newFilter(opts)
	if err != nil {
		return nil, err
	}

	if sampleRateHz <= 0 {
		return nil, fmt.Errorf("invalid sample rate %v Hz", sampleRateHz)
	}

	// Calibration: 1 g-normalized accelerometer, hard-iron-debiased
	// magnetometer. The gyroscope needs only a unit check.
	ax, ay, az := calib.NormalizeAccelerometer(accel.X, accel.Y, accel.Z, sampleRateHz)
	mx, my, mz := calib.DebiasMagnetometer(mag.X, mag.Y, mag.Z)
	gx, gy, gz := gyro.X, gyro.Y, gyro.Z

	gyroScale := 1.0
	if len(gx) > 0 && math.Abs(gx[0])+math.Abs(gy[0])+math.Abs(gz[0]) > degreesPerSecThreshold {
		// Degrees per second; convert to rad/s.
		gyroScale = math.Pi / 180.0
	}

	n := len(times)
	for _, s := range [][]float64{ax, ay, az, gx, gy, gz, mx, my, mz} {
		if len(s) < n {
			n = len(s)
		}
	}

	dt := 1.0 / sampleRateHz
	result := &FusionResult{
		Times:        make([]float64, 0, n),
		Orientations: make([]OrientationSample, 0, n),
		Algorithm:    opts.algorithmOrDefault(),
		SampleRateHz: sampleRateHz,
	}

	for i := 0; i < n; i++ {
		f.Update(
			gx[i]*gyroScale, gy[i]*gyroScale, gz[i]*gyroScale,
			sanitize(ax[i]), sanitize(ay[i]), sanitize(az[i]),
			sanitize(mx[i]), sanitize(my[i]), sanitize(mz[i]),
			dt,
		)
		q := f.Quaternion()
		result.Times = append(result.Times, times[i])
		result.Orientations = append(result.Orientations, OrientationSample{
			Quaternion:     q,
			Euler:          q.ToEuler(),
			RotationMatrix: q.RotationMatrix(),
		})
	}

	return result, nil
}

func newFilter(opts Options) (filter, error) {
	switch opts.algorithmOrDefault() {
	case AlgorithmMadgwick:
		beta := opts.Beta
		if beta <= 0 {
			beta = 0.1
		}
		return NewMadgwick(beta), nil
	case AlgorithmMahony:
		kp := opts.Kp
		if kp <= 0 {
			kp = 0.5
		}
		return NewMahony(kp, opts.Ki), nil
	default:
		return nil, fmt.Errorf("unknown fusion algorithm %q (want %s or %s)",
			opts.Algorithm, AlgorithmMadgwick, AlgorithmMahony)
	}
}

func (o Options) algorithmOrDefault() string {
	if o.Algorithm == "" {
		return AlgorithmMadgwick
	}
	return o.Algorithm
}

// sanitize maps non-finite sensor readings to zero, which both filters
// treat as "measurement invalid, skip correction".
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
