// Package ncout writes derived coordinate grids to CF-1.6 netCDF files.
package ncout

import (
	"fmt"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	log "github.com/sirupsen/logrus"

	"github.com/nci/envigeo/crs"
	"github.com/nci/envigeo/envi"
)

// Grid is everything written to one output file. Lon and Lat hold
// geographic coordinates unless CRS names a projected system, in which case
// they are written with projected coordinate metadata.
type Grid struct {
	X, Y       []float64
	Lon, Lat   [][]float64
	Proj4      string
	CRS        string
	Attributes envi.GlobalAttributes
}

func (g *Grid) geographic() bool {
	return g.CRS == "" || crs.IsGeographic(g.CRS)
}

func (g *Grid) validate() error {
	rows, cols := len(g.Y), len(g.X)
	if rows == 0 || cols == 0 {
		return fmt.Errorf("ncout: empty grid")
	}
	if len(g.Lon) != rows || len(g.Lat) != rows {
		return fmt.Errorf("ncout: expected %d rows of lon/lat, got %d and %d", rows, len(g.Lon), len(g.Lat))
	}
	for i := 0; i < rows; i++ {
		if len(g.Lon[i]) != cols || len(g.Lat[i]) != cols {
			return fmt.Errorf("ncout: row %d: expected %d columns", i, cols)
		}
	}
	return nil
}

type variable struct {
	name, standardName, longName, units string
	dims                                []string
}

var variables = []variable{
	{"x", "projection_x_coordinate", "x coordinate of projection", "m", []string{"x"}},
	{"y", "projection_y_coordinate", "y coordinate of projection", "m", []string{"y"}},
	{"lon", "longitude", "longitude", "degrees_east", []string{"y", "x"}},
	{"lat", "latitude", "latitude", "degrees_north", []string{"y", "x"}},
}

// Header builds the netCDF header for g.
func Header(g *Grid) (*cdf.Header, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}

	h := cdf.NewHeader([]string{"y", "x"}, []int{len(g.Y), len(g.X)})

	keys := make([]string, 0, len(g.Attributes))
	for k := range g.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := g.Attributes[k]; v != "" {
			h.AddAttribute("", k, v)
		}
	}
	if g.Attributes["Conventions"] == "" {
		h.AddAttribute("", "Conventions", envi.Conventions)
	}

	for _, v := range variables {
		if len(v.dims) == 2 && !g.geographic() {
			if v.name == "lon" {
				v.standardName = "projection_x_coordinate"
			} else {
				v.standardName = "projection_y_coordinate"
			}
			v.longName = v.name + " coordinate in " + g.CRS
			v.units = "m"
		}
		h.AddVariable(v.name, v.dims, []float64{0})
		h.AddAttribute(v.name, "standard_name", v.standardName)
		h.AddAttribute(v.name, "long_name", v.longName)
		h.AddAttribute(v.name, "units", v.units)
		if len(v.dims) == 1 && g.Proj4 != "" {
			h.AddAttribute(v.name, "crs", g.Proj4)
		}
		if len(v.dims) == 2 && !g.geographic() {
			h.AddAttribute(v.name, "crs", g.CRS)
		}
	}
	h.Define()

	for _, err := range h.Check() {
		return nil, fmt.Errorf("ncout: invalid header: %v", err)
	}
	return h, nil
}

// Write encodes g into w.
func Write(w cdf.ReaderWriterAt, g *Grid) error {
	h, err := Header(g)
	if err != nil {
		return err
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("ncout: creating file: %v", err)
	}

	data := map[string][]float64{
		"x":   g.X,
		"y":   g.Y,
		"lon": flatten(g.Lon),
		"lat": flatten(g.Lat),
	}
	for _, v := range variables {
		end := f.Header.Lengths(v.name)
		start := make([]int, len(end))
		if _, err := f.Writer(v.name, start, end).Write(data[v.name]); err != nil {
			return fmt.Errorf("ncout: writing %s: %v", v.name, err)
		}
	}
	return nil
}

// WriteFile writes g to a new file at path, replacing any existing file.
func WriteFile(path string, g *Grid) error {
	ff, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(ff, g); err != nil {
		ff.Close()
		os.Remove(path)
		return err
	}
	if err := ff.Close(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"path": path, "rows": len(g.Y), "cols": len(g.X)}).Info("netCDF written")
	return nil
}

func flatten(grid [][]float64) []float64 {
	if len(grid) == 0 {
		return nil
	}
	out := make([]float64, 0, len(grid)*len(grid[0]))
	for _, row := range grid {
		out = append(out, row...)
	}
	return out
}
