package georef

import (
	log "github.com/sirupsen/logrus"
)

// Geotransform coefficient positions.
const (
	gtXOrigin = iota
	gtXRes
	gtXRot
	gtYOrigin
	gtYRot
	gtYRes
)

// XYArrays returns the projected x coordinate of every column and the y
// coordinate of every row of ds, computed as origin + index*pixel size.
func XYArrays(ds Raster) (x, y []float64, err error) {
	_, cols, rows := Shape(ds)

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, nil, &InvalidRasterError{Reason: "no geotransform", Err: err}
	}
	if gt[gtXRot] != 0 || gt[gtYRot] != 0 {
		logger.WithFields(log.Fields{"x_rotation": gt[gtXRot], "y_rotation": gt[gtYRot]}).
			Warn("rotated geotransform: rotation terms are ignored")
	}

	x = make([]float64, cols)
	for i := range x {
		x[i] = gt[gtXOrigin] + float64(i)*gt[gtXRes]
	}
	y = make([]float64, rows)
	for i := range y {
		y[i] = gt[gtYOrigin] + float64(i)*gt[gtYRes]
	}
	return x, y, nil
}
