// Package coordinates holds the unit conversions between the aviation units
// carried by SBS reports and the SI units expected by XGPS receivers.
package coordinates

// Constants for unit conversions
const (
	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// KnotsToMetersPerSecond converts knots to meters per second
	KnotsToMetersPerSecond = 0.514444
)

// FeetToMetersAlt converts a barometric altitude in feet to meters.
func FeetToMetersAlt(ft float64) float64 {
	return ft * FeetToMeters
}

// KnotsToMPS converts a ground speed in knots to meters per second.
func KnotsToMPS(kt float64) float64 {
	return kt * KnotsToMetersPerSecond
}
