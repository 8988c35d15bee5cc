// Package units provides shared constants and validation for length
// units. Mesh coordinates are stored in meters; API responses convert
// on the way out.
package units

// Unit constants
const (
	Meters      = "m"
	Millimeters = "mm"
	Centimeters = "cm"
	Inches      = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Meters, Millimeters, Centimeters, Inches}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units
// for error messages
func GetValidUnitsString() string {
	return "m, mm, cm, in"
}

// ConvertLength converts a length from meters to the target units.
func ConvertLength(meters float64, targetUnits string) float64 {
	switch targetUnits {
	case Millimeters:
		return meters * 1000
	case Centimeters:
		return meters * 100
	case Inches:
		return meters * 39.3700787
	case Meters:
		return meters // no conversion needed
	default:
		return meters // default to meters if unknown unit
	}
}
