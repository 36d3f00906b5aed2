package extractor

import "time"

type GeoMetaData struct {
	DataSetName     string            `json:"ds_name"`
	HeaderFile      string            `json:"header_file"`
	Description     string            `json:"description,omitempty"`
	Type            string            `json:"array_type"`
	Interleave      string            `json:"interleave,omitempty"`
	ByteOrder       string            `json:"byte_order,omitempty"`
	WavelengthUnits string            `json:"wavelength_units,omitempty"`
	RasterCount     int32             `json:"raster_count"`
	TimeStamps      []time.Time       `json:"timestamps"`
	XSize           int32             `json:"x_size"`
	YSize           int32             `json:"y_size"`
	GeoTransform    []float64         `json:"geotransform"`
	Polygon         string            `json:"polygon"`
	Bounds          []float64         `json:"bbox,omitempty"`
	ProjWKT         string            `json:"proj_wkt"`
	Proj4           string            `json:"proj4"`
	EPSG            int               `json:"epsg,omitempty"`
	NoData          float64           `json:"nodata,omitempty"`
	Attributes      map[string]string `json:"attributes"`
}

type GeoFile struct {
	FileName string         `json:"filename,omitempty"`
	Driver   string         `json:"file_type"`
	DataSets []*GeoMetaData `json:"geo_metadata"`
}

type PosixInfo struct {
	FilePath string    `json:"file_path"`
	INode    uint64    `json:"inode"`
	Size     int64     `json:"size"`
	MTime    time.Time `json:"mtime"`
	CTime    time.Time `json:"ctime"`
	ID       string    `json:"id"`
}

// CrawlRecord is one line of crawler output.
type CrawlRecord struct {
	Posix *PosixInfo `json:"posix"`
	Geo   *GeoFile   `json:"geo,omitempty"`
	Error string     `json:"error,omitempty"`
}
