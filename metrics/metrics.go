package metrics

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geo"
	log "github.com/sirupsen/logrus"
)

const ISOFormat = "2006-01-02T15:04:05.000Z"

type MetricsInfo struct {
	ReqTime       string        `json:"req_time"`
	Duration      time.Duration `json:"duration"`
	FilePath      string        `json:"file_path"`
	Operation     string        `json:"operation"`
	Bands         int           `json:"bands"`
	Cols          int           `json:"cols"`
	Rows          int           `json:"rows"`
	Pixels        int           `json:"pixels"`
	Footprint     string        `json:"footprint"`
	FootprintArea float64       `json:"footprint_area"`
	Error         string        `json:"error,omitempty"`
}

type MetricsCollector struct {
	Info   *MetricsInfo
	logger Logger
	start  time.Time
}

// NewMetricsCollector starts timing an operation on filePath.
func NewMetricsCollector(logger Logger, operation, filePath string) *MetricsCollector {
	now := time.Now()
	return &MetricsCollector{
		Info: &MetricsInfo{
			ReqTime:   now.UTC().Format(ISOFormat),
			FilePath:  filePath,
			Operation: operation,
		},
		logger: logger,
		start:  now,
	}
}

// SetShape records the raster dimensions of the operation.
func (m *MetricsCollector) SetShape(bands, cols, rows int) {
	m.Info.Bands = bands
	m.Info.Cols = cols
	m.Info.Rows = rows
	m.Info.Pixels = cols * rows
}

// Log stops the timer and hands the record to the logger. err may be nil.
func (m *MetricsCollector) Log(err error) {
	m.Info.Duration = time.Since(m.start)
	if err != nil {
		m.Info.Error = err.Error()
	}
	if m.logger != nil {
		m.logger.Log(m.Info)
	}
}

func (i *MetricsInfo) ToJSON() (string, error) {
	err := i.normaliseGeometry()
	if err != nil {
		log.Warnf("metrics: normaliseGeometry() error: %v", err)
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err = enc.Encode(i)
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// normaliseGeometry fills in the geodesic area, in square metres, of a
// footprint given as WKT in longitude/latitude.
func (i *MetricsInfo) normaliseGeometry() error {
	if len(i.Footprint) == 0 {
		i.Footprint = "POLYGON EMPTY"
		return nil
	}
	if i.FootprintArea > 0 || i.Footprint == "POLYGON EMPTY" {
		return nil
	}

	g, err := wkt.Unmarshal(i.Footprint)
	if err != nil {
		return err
	}
	switch p := g.(type) {
	case orb.Polygon:
		i.FootprintArea = geo.Area(p)
	case orb.MultiPolygon:
		i.FootprintArea = geo.Area(p)
	}
	if i.FootprintArea < 0 {
		i.FootprintArea = -i.FootprintArea
	}
	return nil
}
