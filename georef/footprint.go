package georef

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Footprint returns the outline of a geographic grid as a closed polygon
// through the centres of its four corner pixels, starting at the top-left
// and going clockwise in image space.
func Footprint(lon, lat [][]float64) (orb.Polygon, error) {
	if len(lon) == 0 || len(lon[0]) == 0 {
		return nil, &InvalidRasterError{Reason: "empty geographic grid"}
	}
	if len(lat) != len(lon) || len(lat[0]) != len(lon[0]) {
		return nil, &InvalidRasterError{Reason: "lon and lat grids differ in shape"}
	}

	last := len(lon) - 1
	end := len(lon[0]) - 1
	corner := func(i, j int) orb.Point { return orb.Point{lon[i][j], lat[i][j]} }

	ring := orb.Ring{
		corner(0, 0),
		corner(0, end),
		corner(last, end),
		corner(last, 0),
		corner(0, 0),
	}
	return orb.Polygon{ring}, nil
}

// FootprintWKT is Footprint rendered as WKT.
func FootprintWKT(lon, lat [][]float64) (string, error) {
	poly, err := Footprint(lon, lat)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(poly), nil
}
