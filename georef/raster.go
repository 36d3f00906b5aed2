// Package georef derives projected and geographic coordinate grids from
// georeferenced raster datasets.
//
// Raster access goes through GDAL and coordinate transforms through a PROJ4
// engine; this package only orchestrates those libraries and reshapes their
// outputs. Only axis-aligned rasters are supported: the rotation terms of the
// geotransform are ignored.
package georef

import (
	"github.com/airbusgeo/godal"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("pkg", "georef")

// Raster is the subset of a GDAL dataset used by this package.
// *godal.Dataset satisfies it.
type Raster interface {
	Structure() godal.DatasetStructure
	GeoTransform(opts ...godal.GetGeoTransformOption) ([6]float64, error)
	Projection() string
}

// Open opens a raster read-only. The caller must Close the returned dataset.
func Open(path string) (*godal.Dataset, error) {
	ds, err := godal.Open(path, godal.RasterOnly())
	if err != nil {
		return nil, &InvalidRasterError{Reason: "open " + path, Err: err}
	}
	return ds, nil
}

// Shape returns the number of bands, columns and rows of ds.
func Shape(ds Raster) (bands, cols, rows int) {
	st := ds.Structure()
	return st.NBands, st.SizeX, st.SizeY
}
