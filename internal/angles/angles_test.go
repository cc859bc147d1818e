package angles

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/motion.report/internal/ahrs"
)

// fixedResult builds a FusionResult holding the same orientation for n
// samples at 100 Hz.
func fixedResult(q ahrs.Quaternion, n int) *ahrs.FusionResult {
	r := &ahrs.FusionResult{Algorithm: "madgwick", SampleRateHz: 100}
	for i := 0; i < n; i++ {
		r.Times = append(r.Times, float64(i)/100)
		r.Orientations = append(r.Orientations, ahrs.OrientationSample{
			Quaternion:     q,
			Euler:          q.ToEuler(),
			RotationMatrix: q.RotationMatrix(),
		})
	}
	return r
}

func rotZ(angleDeg float64) ahrs.Quaternion {
	half := angleDeg * math.Pi / 360
	return ahrs.Quaternion{W: math.Cos(half), Z: math.Sin(half)}
}

func TestComputeKnownRelativeRotations(t *testing.T) {
	shoulder := fixedResult(rotZ(0), 100)
	elbow := fixedResult(rotZ(30), 100)
	wrist := fixedResult(rotZ(75), 100)

	result, err := Compute(shoulder, elbow, wrist, [3]int{0, 1, 2})
	require.NoError(t, err)

	assert.Len(t, result.Series.Elbow, 100)
	assert.InDelta(t, 30, result.Elbow.Mean, 1e-9)
	assert.InDelta(t, 45, result.Wrist.Mean, 1e-9)

	// Static scenario: range collapses to zero.
	assert.InDelta(t, 0, result.Elbow.Range, 1e-9)
	assert.InDelta(t, 0, result.Wrist.Range, 1e-9)
}

func TestComputeTruncatesToShortest(t *testing.T) {
	shoulder := fixedResult(rotZ(0), 100)
	elbow := fixedResult(rotZ(10), 60)
	wrist := fixedResult(rotZ(20), 80)

	result, err := Compute(shoulder, elbow, wrist, [3]int{0, 1, 2})
	require.NoError(t, err)
	assert.Len(t, result.Series.Times, 60)
	assert.Len(t, result.Series.Wrist, 60)
	assert.Len(t, result.Series.Shoulder, 60)
}

func TestComputeRejectsNilResults(t *testing.T) {
	elbow := fixedResult(rotZ(10), 10)
	wrist := fixedResult(rotZ(20), 10)

	_, err := Compute(nil, elbow, wrist, [3]int{0, 1, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shoulder")
}

func TestComputeRejectsDuplicateSlots(t *testing.T) {
	r := fixedResult(rotZ(0), 10)
	_, err := Compute(r, r, r, [3]int{0, 0, 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "distinct")
}

func TestComputeSignAmbiguity(t *testing.T) {
	// Elbow orientation stored as -q: physically identical, the relative
	// angle must not jump to ~360°.
	q := rotZ(30)
	neg := ahrs.Quaternion{W: -q.W, X: -q.X, Y: -q.Y, Z: -q.Z}

	shoulder := fixedResult(rotZ(0), 10)
	elbow := fixedResult(neg, 10)
	wrist := fixedResult(rotZ(50), 10)

	result, err := Compute(shoulder, elbow, wrist, [3]int{0, 1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 30, result.Elbow.Mean, 1e-9)
	assert.InDelta(t, 20, result.Wrist.Mean, 1e-9)
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{10, 20, 30})
	assert.InDelta(t, 20, s.Mean, 1e-12)
	assert.Equal(t, 10.0, s.Min)
	assert.Equal(t, 30.0, s.Max)
	assert.Equal(t, 20.0, s.Range)
}

func TestSummarizeEmptyIsNaN(t *testing.T) {
	s := Summarize(nil)
	assert.True(t, math.IsNaN(s.Mean))
	assert.True(t, math.IsNaN(s.Min))
	assert.True(t, math.IsNaN(s.Max))
	assert.True(t, math.IsNaN(s.Range))
}
