// Package angles derives relative joint angles from the fused orientation
// streams of three body-segment sensors.
//
// The three sensors are independently clocked, so their streams rarely
// have equal lengths. Alignment policy is truncation to the shortest
// stream; no interpolation is attempted.
package angles

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/motion.report/internal/ahrs"
)

// Roles of the three sensors along the arm.
const (
	RoleShoulder = "shoulder"
	RoleElbow    = "elbow"
	RoleWrist    = "wrist"
)

// Series is the per-sample output of an arm-angle analysis. Elbow and
// Wrist are relative rotation angles in degrees; Shoulder carries the
// shoulder sensor's absolute Euler triple for posture display.
type Series struct {
	Times    []float64    `json:"times"`
	Elbow    []float64    `json:"elbow"`
	Wrist    []float64    `json:"wrist"`
	Shoulder []ahrs.Euler `json:"shoulder"`
}

// Stats summarizes one joint's angle series.
type Stats struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
}

// Result bundles the series with per-joint summary statistics.
type Result struct {
	Series Series `json:"series"`
	Elbow  Stats  `json:"elbow_stats"`
	Wrist  Stats  `json:"wrist_stats"`
}

// Compute derives the relative angle series from three fused streams.
// The shoulder/elbow pair yields the elbow angle, the elbow/wrist pair
// the wrist angle. All three results must be present and come from
// distinct IMU slots.
func Compute(shoulder, elbow, wrist *ahrs.FusionResult, slots [3]int) (*Result, error) {
	for role, r := range map[string]*ahrs.FusionResult{
		RoleShoulder: shoulder,
		RoleElbow:    elbow,
		RoleWrist:    wrist,
	} {
		if r == nil {
			return nil, fmt.Errorf("no fusion result for %s sensor", role)
		}
	}
	if slots[0] == slots[1] || slots[0] == slots[2] || slots[1] == slots[2] {
		return nil, fmt.Errorf("shoulder/elbow/wrist must use three distinct IMUs, got %v", slots)
	}

	n := shoulder.Len()
	for _, r := range []*ahrs.FusionResult{elbow, wrist} {
		if r.Len() < n {
			n = r.Len()
		}
	}
	if len(shoulder.Times) < n {
		n = len(shoulder.Times)
	}

	s := Series{
		Times:    make([]float64, n),
		Elbow:    make([]float64, n),
		Wrist:    make([]float64, n),
		Shoulder: make([]ahrs.Euler, n),
	}
	for i := 0; i < n; i++ {
		qs := shoulder.Orientations[i].Quaternion
		qe := elbow.Orientations[i].Quaternion
		qw := wrist.Orientations[i].Quaternion

		s.Times[i] = shoulder.Times[i]
		s.Elbow[i] = ahrs.RelativeAngle(qs, qe)
		s.Wrist[i] = ahrs.RelativeAngle(qe, qw)
		s.Shoulder[i] = shoulder.Orientations[i].Euler
	}

	return &Result{
		Series: s,
		Elbow:  Summarize(s.Elbow),
		Wrist:  Summarize(s.Wrist),
	}, nil
}

// Summarize computes mean/min/max/range for an angle series. An empty
// series yields NaN statistics rather than an error; the caller decides
// how to present "no data".
func Summarize(values []float64) Stats {
	if len(values) == 0 {
		nan := math.NaN()
		return Stats{Mean: nan, Min: nan, Max: nan, Range: nan}
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return Stats{
		Mean:  stat.Mean(values, nil),
		Min:   min,
		Max:   max,
		Range: max - min,
	}
}
