package ahrs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/imucsv"
)

// stationaryCSV builds a 9-DOF stream at rest: gravity on +z, no angular
// rate, constant magnetic field in the x/z plane.
func stationaryCSV(t *testing.T, n int, gyroUnits float64) (*imucsv.Table, []float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,ax,ay,az,gx,gy,gz,mx,my,mz\n")
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i) / 100.0
		fmt.Fprintf(&b, "%g,0,0,1,%g,%g,%g,0.4,0,0.3\n",
			times[i], 0*gyroUnits, 0*gyroUnits, 0*gyroUnits)
	}
	table, err := imucsv.Parse(b.String())
	require.NoError(t, err)
	return table, times
}

func TestProcessStationaryStaysIdentity(t *testing.T) {
	for _, algo := range []string{AlgorithmMadgwick, AlgorithmMahony} {
		t.Run(algo, func(t *testing.T) {
			table, times := stationaryCSV(t, 400, 1)

			result, err := Process(table, times, 100, Options{Algorithm: algo})
			require.NoError(t, err)
			require.Equal(t, 400, result.Len())

			for i, o := range result.Orientations {
				q := o.Quaternion.Canonical()
				assert.InDelta(t, 1, q.W, 1e-3, "sample %d", i)
				assert.InDelta(t, 0, q.X, 1e-3, "sample %d", i)
				assert.InDelta(t, 0, q.Y, 1e-3, "sample %d", i)
				assert.InDelta(t, 0, q.Z, 1e-3, "sample %d", i)
			}
		})
	}
}

func TestProcessQuaternionsAreUnitNorm(t *testing.T) {
	table, times := stationaryCSV(t, 100, 1)
	result, err := Process(table, times, 100, Options{})
	require.NoError(t, err)

	for i, o := range result.Orientations {
		q := o.Quaternion
		norm := q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z
		assert.InDelta(t, 1, norm, 1e-9, "sample %d", i)
	}
}

func TestProcessGyroUnitDetection(t *testing.T) {
	// Constant 90 deg/s yaw rate expressed in deg/s; the first sample's
	// absolute axis sum (90) exceeds the rad/s plausibility threshold, so
	// the stream must be converted before integration.
	var b strings.Builder
	b.WriteString("time,ax,ay,az,gx,gy,gz,mx,my,mz\n")
	n := 101
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = float64(i) / 100.0
		// Magnetometer zeroed: pure gyro integration (IMU fallback), and
		// accel zeroed so no gravity correction fights the spin.
		fmt.Fprintf(&b, "%g,0,0,0,0,0,90,0,0,0\n", times[i])
	}
	table, err := imucsv.Parse(b.String())
	require.NoError(t, err)

	result, err := Process(table, times, 100, Options{})
	require.NoError(t, err)

	// After 1 s at 90 deg/s the yaw should be close to 90 degrees.
	last := result.Orientations[result.Len()-1]
	yawDeg := last.Euler.Yaw * 180 / 3.141592653589793
	assert.InDelta(t, 90, yawDeg, 2)
}

func TestProcessMissingAxesFails(t *testing.T) {
	table, err := imucsv.Parse("time,ax,ay,az\n0,0,0,1\n0.01,0,0,1\n")
	require.NoError(t, err)

	_, err = Process(table, []float64{0, 0.01}, 100, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gyroscope")
}

func TestProcessUnknownAlgorithmFails(t *testing.T) {
	table, times := stationaryCSV(t, 10, 1)
	_, err := Process(table, times, 100, Options{Algorithm: "kalman"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kalman")
}

func TestProcessInvalidSampleRateFails(t *testing.T) {
	table, times := stationaryCSV(t, 10, 1)
	_, err := Process(table, times, 0, Options{})
	require.Error(t, err)
}
