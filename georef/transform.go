package georef

import (
	"errors"
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"

	"github.com/nci/envigeo/crs"
)

// Geographic is the identifier of the WGS 84 longitude/latitude system all
// geographic grids are expressed in.
const Geographic = crs.Geographic

// Transformer converts coordinates from one spatial reference system to
// another. Output angles are in degrees, ordered longitude then latitude.
type Transformer struct {
	src, dst string
	fn       proj.Transformer
}

// NewTransformer builds a Transformer between two definitions, each a PROJ4
// string, a WKT string or a well-known EPSG identifier.
func NewTransformer(src, dst string) (*Transformer, error) {
	srcSR, srcDef, err := parseSR(src)
	if err != nil {
		return nil, err
	}
	dstSR, dstDef, err := parseSR(dst)
	if err != nil {
		return nil, err
	}

	fn, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, &ProjectionError{Definition: srcDef, Err: err}
	}
	return &Transformer{src: srcDef, dst: dstDef, fn: fn}, nil
}

func parseSR(def string) (*proj.SR, string, error) {
	resolved, err := crs.ResolveDefinition(def)
	if err != nil {
		return nil, "", err
	}
	sr, err := proj.Parse(resolved)
	if err != nil {
		return nil, "", &ProjectionError{Definition: resolved, Err: err}
	}
	return sr, resolved, nil
}

func (t *Transformer) String() string {
	return fmt.Sprintf("%s -> %s", t.src, t.dst)
}

// Point transforms a single coordinate.
func (t *Transformer) Point(x, y float64) (float64, float64, error) {
	if !finite(x, y) {
		return 0, 0, &TransformError{Index: -1, X: x, Y: y, Err: errors.New("non-finite input")}
	}
	ox, oy, err := t.fn(x, y)
	if err != nil {
		return 0, 0, &TransformError{Index: -1, X: x, Y: y, Err: err}
	}
	if !finite(ox, oy) {
		return 0, 0, &TransformError{Index: -1, X: x, Y: y, Err: errors.New("non-finite result")}
	}
	return ox, oy, nil
}

// Batch transforms xs and ys element-wise and returns new slices of the same
// length. The inputs are not modified.
func (t *Transformer) Batch(xs, ys []float64) ([]float64, []float64, error) {
	if len(xs) != len(ys) {
		return nil, nil, fmt.Errorf("georef: batch length mismatch: %d x values, %d y values", len(xs), len(ys))
	}

	mp := make(geom.MultiPoint, len(xs))
	for i := range xs {
		if !finite(xs[i], ys[i]) {
			return nil, nil, &TransformError{Index: i, X: xs[i], Y: ys[i], Err: errors.New("non-finite input")}
		}
		mp[i] = geom.Point{X: xs[i], Y: ys[i]}
	}

	g, err := mp.Transform(t.fn)
	if err != nil {
		// The library does not say which point failed; find it.
		for i, p := range mp {
			if _, _, perr := t.fn(p.X, p.Y); perr != nil {
				return nil, nil, &TransformError{Index: i, X: p.X, Y: p.Y, Err: perr}
			}
		}
		return nil, nil, &TransformError{Index: 0, Err: err}
	}

	out := g.(geom.MultiPoint)
	ox := make([]float64, len(out))
	oy := make([]float64, len(out))
	for i, p := range out {
		if !finite(p.X, p.Y) {
			return nil, nil, &TransformError{Index: i, X: xs[i], Y: ys[i], Err: errors.New("non-finite result")}
		}
		ox[i], oy[i] = p.X, p.Y
	}
	return ox, oy, nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
