package imucsv

import (
	"fmt"
	"math"
	"strings"
)

var nan = math.NaN()

// Sensor identifies one of the three 9-DOF sensor groups.
type Sensor string

const (
	Accelerometer Sensor = "accelerometer"
	Gyroscope     Sensor = "gyroscope"
	Magnetometer  Sensor = "magnetometer"
)

// axisCandidates maps sensor -> axis -> ordered candidate header names.
// Names are compared after normalization (lower-case, separators removed),
// first match wins. Extend this table when a new export format shows up
// rather than adding ad-hoc matching logic.
var axisCandidates = map[Sensor][3][]string{
	Accelerometer: {
		{"ax", "accx", "accelx", "accelerometerx", "accelerationx"},
		{"ay", "accy", "accely", "accelerometery", "accelerationy"},
		{"az", "accz", "accelz", "accelerometerz", "accelerationz"},
	},
	Gyroscope: {
		{"gx", "gyrox", "gyrx", "gyroscopex", "angularvelocityx"},
		{"gy", "gyroy", "gyry", "gyroscopey", "angularvelocityy"},
		{"gz", "gyroz", "gyrz", "gyroscopez", "angularvelocityz"},
	},
	Magnetometer: {
		{"mx", "magx", "magnx", "magnetometerx", "magneticfieldx"},
		{"my", "magy", "magny", "magnetometery", "magneticfieldy"},
		{"mz", "magz", "magnz", "magnetometerz", "magneticfieldz"},
	},
}

// timeCandidates are the recognized timestamp column names, normalized.
var timeCandidates = []string{"time", "timestamp", "t", "seconds", "secondselapsed", "ms", "micros", "nanos"}

// normalizeHeader lower-cases a header and strips separators so that
// "Acc_X", "acc x" and "accX" all compare equal.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	for _, sep := range []string{"_", "-", " ", ".", "(", ")"} {
		h = strings.ReplaceAll(h, sep, "")
	}
	return h
}

// findColumn returns the index of the first header matching any candidate,
// or -1.
func (t *Table) findColumn(candidates []string) int {
	for _, cand := range candidates {
		for i, h := range t.Headers {
			if normalizeHeader(h) == cand {
				return i
			}
		}
	}
	return -1
}

// TimeColumn locates the timestamp column, or returns -1 if the table has
// no recognizable time header.
func (t *Table) TimeColumn() int {
	return t.findColumn(timeCandidates)
}

// Triplet holds the three axis series of one sensor.
type Triplet struct {
	X, Y, Z []float64
}

// SensorTriplet extracts the X/Y/Z series for the given sensor. Missing
// axes produce an error naming the sensor and the axis so the message can
// be surfaced directly to the user.
func (t *Table) SensorTriplet(sensor Sensor) (Triplet, error) {
	candidates, ok := axisCandidates[sensor]
	if !ok {
		return Triplet{}, fmt.Errorf("unknown sensor %q", sensor)
	}

	var out Triplet
	axes := []struct {
		name string
		dst  *[]float64
	}{
		{"X", &out.X}, {"Y", &out.Y}, {"Z", &out.Z},
	}
	for i, axis := range axes {
		idx := t.findColumn(candidates[i])
		if idx < 0 {
			return Triplet{}, fmt.Errorf("missing %s %s-axis column (looked for %s)",
				sensor, axis.name, strings.Join(candidates[i], ", "))
		}
		*axis.dst = t.NumericColumn(idx)
	}
	return out, nil
}

// NineDOF extracts all three sensor triplets, failing with a descriptive
// error if any axis of any sensor cannot be located.
func (t *Table) NineDOF() (accel, gyro, mag Triplet, err error) {
	if accel, err = t.SensorTriplet(Accelerometer); err != nil {
		return
	}
	if gyro, err = t.SensorTriplet(Gyroscope); err != nil {
		return
	}
	mag, err = t.SensorTriplet(Magnetometer)
	return
}
