package georef

import (
	log "github.com/sirupsen/logrus"
)

// LatLonArrays returns the geographic coordinates of every pixel of ds as
// two rows x cols grids in degrees. lon[i][j] and lat[i][j] belong to the
// pixel at row i, column j.
func LatLonArrays(ds Raster) (lon, lat [][]float64, err error) {
	return GridArrays(ds, Geographic)
}

// GridArrays is LatLonArrays for an arbitrary destination definition.
func GridArrays(ds Raster, dst string) (gx, gy [][]float64, err error) {
	sr, proj4, err := Projection(ds)
	if err != nil {
		return nil, nil, err
	}
	sr.Close()

	t, err := NewTransformer(proj4, dst)
	if err != nil {
		return nil, nil, err
	}

	x, y, err := XYArrays(ds)
	if err != nil {
		return nil, nil, err
	}
	if len(x) == 0 || len(y) == 0 {
		return [][]float64{}, [][]float64{}, nil
	}

	// Fail early on a broken transform before the full grid is built.
	if _, _, err := t.Point(x[0], y[0]); err != nil {
		return nil, nil, err
	}

	xs, ys := Meshgrid(x, y)
	oxs, oys, err := t.Batch(xs, ys)
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(log.Fields{"rows": len(y), "cols": len(x), "transform": t.String()}).Debug("grid computed")
	return Reshape(oxs, len(y), len(x)), Reshape(oys, len(y), len(x)), nil
}

// Meshgrid expands the 1-D axes x and y into flattened row-major grids of
// len(x)*len(y) points.
func Meshgrid(x, y []float64) (xs, ys []float64) {
	cols := len(x)
	xs = make([]float64, cols*len(y))
	ys = make([]float64, cols*len(y))
	for i, yv := range y {
		row := i * cols
		copy(xs[row:row+cols], x)
		for j := 0; j < cols; j++ {
			ys[row+j] = yv
		}
	}
	return xs, ys
}

// Reshape splits a flattened row-major slice into rows slices of cols values.
// The rows share storage with flat.
func Reshape(flat []float64, rows, cols int) [][]float64 {
	out := make([][]float64, rows)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out
}
