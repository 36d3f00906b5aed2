// Package crs resolves coordinate reference system definitions into the
// PROJ4 form understood by the transform engine.
package crs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Geographic is the identifier of the WGS 84 longitude/latitude system all
// geographic grids are expressed in.
const Geographic = "EPSG:4326"

var wellKnown = map[string]string{
	"EPSG:4326": "+proj=longlat +datum=WGS84 +no_defs",
	"EPSG:3857": "+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0 +x_0=0 +y_0=0 +k=1 +units=m +nadgrids=@null +no_defs",
}

var utmCode = regexp.MustCompile(`^EPSG:32([67])(\d\d)$`)

// PROJ4 parameters emitted by GDAL that carry no meaning for the transform.
var ignoredParams = map[string]bool{
	"+type=crs": true,
	"+wktext":   true,
}

var geographicProjs = map[string]bool{
	"+proj=longlat": true,
	"+proj=latlong": true,
	"+proj=lonlat":  true,
	"+proj=latlon":  true,
}

// ProjectionError indicates a spatial reference definition could not be
// parsed or exported.
type ProjectionError struct {
	Definition string
	Err        error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("crs: projection %q: %v", abbreviate(e.Definition, 80), e.Err)
}

func (e *ProjectionError) Unwrap() error { return e.Err }

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ResolveDefinition turns an identifier such as "EPSG:4326", "epsg:32755" or
// "+init=epsg:3857" into a PROJ4 string. WKT and PROJ4 definitions are
// returned cleaned but otherwise unchanged.
func ResolveDefinition(def string) (string, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return "", &ProjectionError{Definition: def, Err: errors.New("empty definition")}
	}

	code := strings.ToUpper(def)
	code = strings.TrimPrefix(code, "+INIT=")
	if strings.HasPrefix(code, "EPSG:") {
		if p, ok := wellKnown[code]; ok {
			return p, nil
		}
		if m := utmCode.FindStringSubmatch(code); m != nil {
			zone, _ := strconv.Atoi(m[2])
			if zone < 1 || zone > 60 {
				return "", &ProjectionError{Definition: def, Err: fmt.Errorf("invalid UTM zone %d", zone)}
			}
			p := fmt.Sprintf("+proj=utm +zone=%d", zone)
			if m[1] == "7" {
				p += " +south"
			}
			return p + " +datum=WGS84 +units=m +no_defs", nil
		}
		return "", &ProjectionError{Definition: def, Err: errors.New("unknown identifier")}
	}

	if strings.HasPrefix(def, "+") {
		var kept []string
		for _, tok := range strings.Fields(def) {
			if !ignoredParams[tok] {
				kept = append(kept, tok)
			}
		}
		return strings.Join(kept, " "), nil
	}
	return def, nil
}

// IsGeographic reports whether def resolves to a longitude/latitude system,
// whatever spelling it is given in. Unresolvable definitions are not
// geographic.
func IsGeographic(def string) bool {
	resolved, err := ResolveDefinition(def)
	if err != nil {
		return false
	}
	if strings.HasPrefix(resolved, "+") {
		for _, tok := range strings.Fields(resolved) {
			if geographicProjs[strings.ToLower(tok)] {
				return true
			}
		}
		return false
	}
	wkt := strings.ToUpper(resolved)
	return strings.HasPrefix(wkt, "GEOGCS[") || strings.HasPrefix(wkt, "GEOGCRS[")
}
