package georef

import (
	"fmt"

	"github.com/nci/envigeo/crs"
)

// InvalidRasterError indicates the raster handle lacks the shape,
// geotransform or projection metadata an operation needs.
type InvalidRasterError struct {
	Reason string
	Err    error
}

func (e *InvalidRasterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("georef: invalid raster: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("georef: invalid raster: %s", e.Reason)
}

func (e *InvalidRasterError) Unwrap() error { return e.Err }

// ProjectionError indicates a spatial reference definition could not be
// parsed or exported.
type ProjectionError = crs.ProjectionError

// TransformError indicates a numeric failure while transforming
// coordinates. Index is the position in the batch, or -1 for a single point.
type TransformError struct {
	Index int
	X, Y  float64
	Err   error
}

func (e *TransformError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("georef: transform (%v, %v): %v", e.X, e.Y, e.Err)
	}
	return fmt.Sprintf("georef: transform point %d (%v, %v): %v", e.Index, e.X, e.Y, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }
