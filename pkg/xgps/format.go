package xgps

import (
	"fmt"
	"strconv"

	"github.com/unklstewy/adsb-xgps/pkg/adsb"
	"github.com/unklstewy/adsb-xgps/pkg/coordinates"
)

// FormatMessage builds the XGPS sentence for pos:
//
//	XGPS<id>,<lon>,<lat>,<alt m>,<track deg>,<ground speed m/s>
//
// Longitude and latitude use the shortest decimal that round-trips.
// Altitude and ground speed have one decimal, track has two.
func FormatMessage(deviceID string, pos adsb.Position) string {
	return fmt.Sprintf("XGPS%s,%s,%s,%.1f,%.2f,%.1f",
		deviceID,
		strconv.FormatFloat(pos.Longitude, 'f', -1, 64),
		strconv.FormatFloat(pos.Latitude, 'f', -1, 64),
		coordinates.FeetToMetersAlt(pos.AltitudeFt),
		pos.TrackDeg,
		coordinates.KnotsToMPS(pos.GroundSpeed),
	)
}
