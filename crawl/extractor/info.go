package extractor

import (
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/nci/envigeo/envi"
	"github.com/nci/envigeo/georef"
)

const DriverName = "ENVI"

// ENVI data type codes as written in the "data type" header field.
var ENVITypes = map[string]string{
	"1": "Byte", "2": "Int16", "3": "Int32", "4": "Float32", "5": "Float64",
	"6": "CFloat32", "9": "CFloat64", "12": "UInt16", "13": "UInt32",
	"14": "Int64", "15": "UInt64",
}

// Acquisition times are encoded in the file names of the airborne
// spectrometer products this tool is used with.
var nameRules = []*regexp.Regexp{
	// AVIRIS-NG: ang20170709t220611
	regexp.MustCompile(`^ang(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})t(?P<hour>\d{2})(?P<minute>\d{2})(?P<second>\d{2})`),
	// AVIRIS classic: f130612t01p00r11
	regexp.MustCompile(`^f(?P<yy>\d{2})(?P<month>\d{2})(?P<day>\d{2})t\d{2}p\d{2}`),
	regexp.MustCompile(`(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})[tT_]?(?P<hour>\d{2})?(?P<minute>\d{2})?(?P<second>\d{2})?`),
}

var logger = log.WithField("pkg", "extractor")

// ExtractENVIInfo describes the ENVI raster at path, which may name either
// the data file or its header. When withGrid is set the footprint and
// bounds are computed from the full geographic grid instead of the four
// corner pixels.
func ExtractENVIInfo(path string, withGrid bool) (*GeoFile, error) {
	hdrPath, dataPath, err := resolvePair(path)
	if err != nil {
		return &GeoFile{}, err
	}

	atts, err := envi.ReadGlobalAttributes(hdrPath)
	if err != nil {
		return &GeoFile{}, err
	}

	ds, err := georef.Open(dataPath)
	if err != nil {
		return &GeoFile{}, err
	}
	defer ds.Close()

	md, err := getDataSetInfo(dataPath, ds, atts, withGrid)
	if err != nil {
		return &GeoFile{}, fmt.Errorf("%s: %w", dataPath, err)
	}
	md.HeaderFile = hdrPath

	return &GeoFile{FileName: dataPath, Driver: DriverName, DataSets: []*GeoMetaData{md}}, nil
}

func resolvePair(path string) (hdrPath, dataPath string, err error) {
	if envi.IsHeader(path) {
		dataPath, err = envi.DataFor(path)
		return path, dataPath, err
	}
	hdrPath, err = envi.HeaderFor(path)
	return hdrPath, path, err
}

func getDataSetInfo(dataPath string, ds georef.Raster, atts envi.GlobalAttributes, withGrid bool) (*GeoMetaData, error) {
	bands, cols, rows := georef.Shape(ds)

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, &georef.InvalidRasterError{Reason: "no geotransform", Err: err}
	}

	sr, proj4, err := georef.Projection(ds)
	if err != nil {
		return nil, err
	}
	epsg := identifyEPSG(sr.AutoIdentifyEPSG, sr.AuthorityCode)
	sr.Close()

	var lon, lat [][]float64
	if withGrid {
		lon, lat, err = georef.LatLonArrays(ds)
	} else {
		lon, lat, err = cornerGrid(ds, proj4)
	}
	if err != nil {
		return nil, err
	}

	poly, err := georef.Footprint(lon, lat)
	if err != nil {
		return nil, err
	}
	polyWkt, err := georef.FootprintWKT(lon, lat)
	if err != nil {
		return nil, err
	}
	bound := poly.Bound()

	md := &GeoMetaData{
		DataSetName:     dataPath,
		Description:     atts["description"],
		Type:            ENVITypes[atts["data_type"]],
		Interleave:      atts["interleave"],
		ByteOrder:       atts["byte_order"],
		WavelengthUnits: atts["wavelength_units"],
		RasterCount:     int32(bands),
		TimeStamps:      []time.Time{parseName(dataPath)},
		XSize:           int32(cols),
		YSize:           int32(rows),
		GeoTransform:    gt[:],
		Polygon:         polyWkt,
		Bounds:          []float64{bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1]},
		ProjWKT:         ds.Projection(),
		Proj4:           proj4,
		EPSG:            epsg,
		Attributes:      atts,
	}
	if md.Type == "" {
		md.Type = "Unknown"
	}
	if nodata, err := strconv.ParseFloat(atts["missing_value"], 64); err == nil && !math.IsNaN(nodata) && !math.IsInf(nodata, 0) {
		md.NoData = nodata
	}

	logger.WithFields(log.Fields{"path": dataPath, "bands": bands, "cols": cols, "rows": rows, "epsg": epsg}).Debug("dataset extracted")
	return md, nil
}

// cornerGrid returns a 2x2 geographic grid holding the four corner pixels.
func cornerGrid(ds georef.Raster, proj4 string) (lon, lat [][]float64, err error) {
	x, y, err := georef.XYArrays(ds)
	if err != nil {
		return nil, nil, err
	}
	if len(x) == 0 || len(y) == 0 {
		return nil, nil, &georef.InvalidRasterError{Reason: "empty raster"}
	}

	t, err := georef.NewTransformer(proj4, georef.Geographic)
	if err != nil {
		return nil, nil, err
	}
	xs, ys := georef.Meshgrid([]float64{x[0], x[len(x)-1]}, []float64{y[0], y[len(y)-1]})
	lons, lats, err := t.Batch(xs, ys)
	if err != nil {
		return nil, nil, err
	}
	return georef.Reshape(lons, 2, 2), georef.Reshape(lats, 2, 2), nil
}

func identifyEPSG(autoIdentify func() error, authorityCode func(string) string) int {
	// Identification failures only leave the code unset.
	_ = autoIdentify()
	for _, target := range []string{"", "PROJCS", "GEOGCS"} {
		if code, err := strconv.Atoi(authorityCode(target)); err == nil {
			return code
		}
	}
	return 0
}

func parseName(path string) time.Time {
	_, basename := filepath.Split(path)

	for _, re := range nameRules {
		for _, match := range re.FindAllStringSubmatch(basename, -1) {
			result := make(map[string]string)
			for i, name := range re.SubexpNames() {
				if i != 0 && name != "" && match[i] != "" {
					result[name] = match[i]
				}
			}
			if yy, ok := result["yy"]; ok {
				result["year"] = expandYear(yy)
			}
			if t, ok := parseTime(result); ok {
				return t
			}
		}
	}
	return time.Time{}
}

func expandYear(yy string) string {
	y, _ := strconv.Atoi(yy)
	if y < 70 {
		return strconv.Itoa(2000 + y)
	}
	return strconv.Itoa(1900 + y)
}

// parseTime builds a UTC time from the named fields. Digit runs that only
// look like a date, e.g. month 56, are rejected rather than normalised.
func parseTime(nameFields map[string]string) (time.Time, bool) {
	if _, ok := nameFields["year"]; !ok {
		return time.Time{}, false
	}
	field := func(name string, def int) int {
		v, err := strconv.Atoi(nameFields[name])
		if err != nil {
			return def
		}
		return v
	}

	year, month, day := field("year", 1), field("month", 1), field("day", 1)
	hour, minute, second := field("hour", 0), field("minute", 0), field("second", 0)
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, false
	}
	return t, true
}
