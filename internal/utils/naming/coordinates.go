package naming

import (
	"fmt"
	"math"
)

// FormatCoordinate formats a coordinate for display (no minus sign, uses N/S/E/W)
func FormatCoordinate(coord float64, isLat bool) string {
	var dir string
	if isLat {
		if coord < 0 {
			dir = "S"
		} else {
			dir = "N"
		}
	} else {
		if coord < 0 {
			dir = "W"
		} else {
			dir = "E"
		}
	}
	return fmt.Sprintf("%.4f%s", math.Abs(coord), dir)
}

// CircleLabel describes a manually entered point+radius zone
// Format: "{lat} {lon} ±{radius}km"
func CircleLabel(lat, lon, radiusKm float64) string {
	return fmt.Sprintf("%s %s ±%gkm", FormatCoordinate(lat, true), FormatCoordinate(lon, false), radiusKm)
}

// BoundsLabel describes a drawn zone by its bounding box
func BoundsLabel(south, west, north, east float64) string {
	return fmt.Sprintf("%s-%s %s-%s",
		FormatCoordinate(south, true),
		FormatCoordinate(north, true),
		FormatCoordinate(west, false),
		FormatCoordinate(east, false))
}
