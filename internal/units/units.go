// Package units provides shared constants and validation for angle units
package units

import "math"

// Unit constants
const (
	Degrees = "degrees"
	Radians = "radians"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Degrees, Radians}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "degrees, radians"
}

// ConvertAngle converts an angle from degrees to the target units.
// Angle series are computed in degrees internally.
func ConvertAngle(angleDeg float64, targetUnits string) float64 {
	switch targetUnits {
	case Radians:
		return angleDeg * math.Pi / 180.0
	case Degrees:
		return angleDeg
	default:
		return angleDeg
	}
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
