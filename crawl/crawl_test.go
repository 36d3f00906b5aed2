package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	extr "github.com/nci/envigeo/crawl/extractor"
	"github.com/nci/envigeo/utils"
)

const sceneName = "ang20170709t220611_rfl"

// writeENVIScene writes a single band Byte ENVI raster with the fixture
// header's georeferencing.
func writeENVIScene(t *testing.T, dir string) (dataPath, hdrPath string) {
	t.Helper()
	raw, err := os.ReadFile("../envi/testdata/" + sceneName + ".hdr")
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "bands ="):
			lines[i] = "bands = 1"
		case strings.HasPrefix(line, "data type ="):
			lines[i] = "data type = 1"
		case strings.HasPrefix(line, "interleave ="):
			lines[i] = "interleave = bsq"
		}
	}

	hdrPath = filepath.Join(dir, sceneName+".hdr")
	if err := os.WriteFile(hdrPath, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatal(err)
	}
	dataPath = filepath.Join(dir, sceneName+".img")
	if err := os.WriteFile(dataPath, make([]byte, 100*50), 0644); err != nil {
		t.Fatal(err)
	}
	return dataPath, hdrPath
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg = utils.NewConfig()
	resetFlags(Root)

	var out bytes.Buffer
	Root.SetOut(&out)
	Root.SetErr(&out)
	Root.SetArgs(args)
	err := Root.Execute()
	closeMetrics()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "envigeo crawl ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestInfo(t *testing.T) {
	dataPath, hdrPath := writeENVIScene(t, t.TempDir())

	for _, arg := range []string{hdrPath, dataPath} {
		out, err := run(t, "info", arg)
		if err != nil {
			t.Fatalf("info %s: %v", arg, err)
		}

		var geo extr.GeoFile
		if err := json.Unmarshal([]byte(out), &geo); err != nil {
			t.Fatalf("decoding %q: %v", out, err)
		}
		if geo.FileName != dataPath || len(geo.DataSets) != 1 {
			t.Fatalf("unexpected record %+v", geo)
		}
		ds := geo.DataSets[0]
		if ds.XSize != 100 || ds.YSize != 50 || ds.RasterCount != 1 {
			t.Errorf("unexpected shape %d x %d x %d", ds.RasterCount, ds.XSize, ds.YSize)
		}
		if ds.HeaderFile != hdrPath {
			t.Errorf("expected header %s, actual %s", hdrPath, ds.HeaderFile)
		}
		if !strings.HasPrefix(ds.Polygon, "POLYGON((") {
			t.Errorf("unexpected footprint %s", ds.Polygon)
		}
	}
}

func TestInfoStdin(t *testing.T) {
	_, hdrPath := writeENVIScene(t, t.TempDir())

	Root.SetIn(strings.NewReader(hdrPath + "\n"))
	defer Root.SetIn(nil)
	out, err := run(t, "info", "-")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"header_file":"`+hdrPath+`"`) {
		t.Errorf("unexpected output %s", out)
	}
}

func TestInfoMissing(t *testing.T) {
	if _, err := run(t, "info", filepath.Join(t.TempDir(), "missing.hdr")); err == nil {
		t.Error("expected an error for a missing header")
	}
}

func TestLatLon(t *testing.T) {
	dir := t.TempDir()
	_, hdrPath := writeENVIScene(t, dir)
	ncPath := filepath.Join(dir, "grid.nc")

	if _, err := run(t, "latlon", hdrPath, "-o", ncPath); err != nil {
		t.Fatalf("latlon: %v", err)
	}

	ff, err := os.Open(ncPath)
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
	if il, _ := f.Header.GetAttribute("", "interleave").(string); il != "bsq" {
		t.Errorf("expected header attributes in the output, interleave %v", f.Header.GetAttribute("", "interleave"))
	}
	lengths := f.Header.Lengths("lon")
	if len(lengths) != 2 || lengths[0] != 50 || lengths[1] != 100 {
		t.Fatalf("unexpected lon lengths %v", lengths)
	}

	r := f.Reader("lon", []int{0, 0}, []int{1, 1})
	buf := r.Zero(1)
	if _, err := r.Read(buf); err != nil {
		t.Fatal(err)
	}
	if lon := buf.([]float64)[0]; math.Abs(lon-9) > 1e-6 {
		t.Errorf("expected the origin on the central meridian, actual lon %v", lon)
	}
}

func TestLatLonGeographicDstCRS(t *testing.T) {
	dir := t.TempDir()
	_, hdrPath := writeENVIScene(t, dir)
	ncPath := filepath.Join(dir, "grid.nc")

	if _, err := run(t, "latlon", hdrPath, "-o", ncPath, "--dst-crs", "+init=epsg:4326"); err != nil {
		t.Fatalf("latlon: %v", err)
	}
	ff, err := os.Open(ncPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatal(err)
	}
	if sn, _ := f.Header.GetAttribute("lon", "standard_name").(string); sn != "longitude" {
		t.Errorf("expected geographic lon metadata, standard_name %v", f.Header.GetAttribute("lon", "standard_name"))
	}
}

func TestLatLonRequiresOutput(t *testing.T) {
	_, hdrPath := writeENVIScene(t, t.TempDir())
	if _, err := run(t, "latlon", hdrPath); err == nil {
		t.Error("expected an error without --output")
	}
}

func TestCrawlConfigOverride(t *testing.T) {
	dir := t.TempDir()
	writeENVIScene(t, dir)

	confPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(confPath, []byte("concurrency: 3\noutput_format: geojson\n"), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "crawl", dir, "--config", confPath, "--format", "tsv", "--conc", "2")
	if err != nil {
		t.Fatalf("crawl: %v", err)
	}
	if cfg.Concurrency != 2 || cfg.OutputFormat != "tsv" {
		t.Errorf("flags should override the config file: %+v", cfg)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, actual %q", out)
	}
	fields := strings.SplitN(lines[0], "\t", 3)
	if len(fields) != 3 || fields[1] != "envi" || !strings.HasSuffix(fields[0], sceneName+".img") {
		t.Errorf("unexpected TSV record %q", lines[0])
	}
}

func TestCrawlBadFormat(t *testing.T) {
	if _, err := run(t, "crawl", t.TempDir(), "--format", "csv"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
