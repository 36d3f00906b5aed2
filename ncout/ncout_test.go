package ncout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/google/go-cmp/cmp"

	"github.com/nci/envigeo/envi"
)

func testGrid() *Grid {
	return &Grid{
		X:     []float64{500000, 500010, 500020},
		Y:     []float64{100, 90},
		Lon:   [][]float64{{9, 9.0001, 9.0002}, {9, 9.0001, 9.0002}},
		Lat:   [][]float64{{0.0009, 0.0009, 0.0009}, {0.0008, 0.0008, 0.0008}},
		Proj4: "+proj=utm +zone=32 +datum=WGS84 +units=m +no_defs",
		Attributes: envi.GlobalAttributes{
			"description": "test scene",
			"samples":     "3",
			"lines":       "2",
			"byte_order":  "",
			"Conventions": envi.Conventions,
		},
	}
}

func readVar(t *testing.T, f *cdf.File, name string) []float64 {
	t.Helper()
	n := 1
	for _, l := range f.Header.Lengths(name) {
		n *= l
	}
	r := f.Reader(name, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("reading %s: %v", name, err)
	}
	return buf.([]float64)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.nc")
	g := testGrid()
	if err := WriteFile(path, g); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ff, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatalf("cdf.Open: %v", err)
	}

	if conv, _ := f.Header.GetAttribute("", "Conventions").(string); conv != "CF-1.6" {
		t.Errorf("expected Conventions CF-1.6, actual %v", f.Header.GetAttribute("", "Conventions"))
	}
	if desc, _ := f.Header.GetAttribute("", "description").(string); desc != "test scene" {
		t.Errorf("expected description attribute, actual %v", f.Header.GetAttribute("", "description"))
	}
	if f.Header.GetAttribute("", "byte_order") != nil {
		t.Errorf("empty attributes should not be written")
	}

	if diff := cmp.Diff([]int{2, 3}, f.Header.Lengths("lon")); diff != "" {
		t.Errorf("lon lengths (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"y", "x"}, f.Header.Dimensions("lat")); diff != "" {
		t.Errorf("lat dimensions (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(g.X, readVar(t, f, "x")); diff != "" {
		t.Errorf("x (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(g.Y, readVar(t, f, "y")); diff != "" {
		t.Errorf("y (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(flatten(g.Lat), readVar(t, f, "lat")); diff != "" {
		t.Errorf("lat (-want +got):\n%s", diff)
	}
	if crs, _ := f.Header.GetAttribute("x", "crs").(string); crs != g.Proj4 {
		t.Errorf("expected crs %q on x, actual %v", g.Proj4, f.Header.GetAttribute("x", "crs"))
	}
}

func TestWriteAddsConventions(t *testing.T) {
	g := testGrid()
	g.Attributes = nil

	h, err := Header(g)
	if err != nil {
		t.Fatal(err)
	}
	if conv, _ := h.GetAttribute("", "Conventions").(string); conv != envi.Conventions {
		t.Errorf("expected Conventions %s, actual %v", envi.Conventions, h.GetAttribute("", "Conventions"))
	}
}

func TestHeaderProjectedGrid(t *testing.T) {
	g := testGrid()
	g.CRS = "EPSG:3857"

	h, err := Header(g)
	if err != nil {
		t.Fatal(err)
	}
	if sn, _ := h.GetAttribute("lon", "standard_name").(string); sn != "projection_x_coordinate" {
		t.Errorf("unexpected lon standard_name %v", h.GetAttribute("lon", "standard_name"))
	}
	if crs, _ := h.GetAttribute("lat", "crs").(string); crs != "EPSG:3857" {
		t.Errorf("unexpected lat crs %v", h.GetAttribute("lat", "crs"))
	}
}

func TestHeaderGeographicSpellings(t *testing.T) {
	for _, def := range []string{"EPSG:4326", "+init=epsg:4326", "+proj=longlat +datum=WGS84"} {
		g := testGrid()
		g.CRS = def

		h, err := Header(g)
		if err != nil {
			t.Fatal(err)
		}
		if sn, _ := h.GetAttribute("lon", "standard_name").(string); sn != "longitude" {
			t.Errorf("%s: unexpected lon standard_name %v", def, h.GetAttribute("lon", "standard_name"))
		}
		if units, _ := h.GetAttribute("lat", "units").(string); units != "degrees_north" {
			t.Errorf("%s: unexpected lat units %v", def, h.GetAttribute("lat", "units"))
		}
		if h.GetAttribute("lat", "crs") != nil {
			t.Errorf("%s: geographic grids carry no crs attribute", def)
		}
	}
}

func TestWriteShapeMismatch(t *testing.T) {
	g := testGrid()
	g.Lon = g.Lon[:1]
	path := filepath.Join(t.TempDir(), "bad.nc")
	if err := WriteFile(path, g); err == nil {
		t.Fatal("expected an error for mismatched grids")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("failed write should not leave %s behind", path)
	}
}
