package extractor

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
	"unsafe"

	goeval "github.com/edisonguo/govaluate"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/nci/envigeo/envi"
	"github.com/nci/envigeo/metrics"
)

// Output formats understood by the crawler.
const (
	FormatJSON    = "json"
	FormatTSV     = "tsv"
	FormatGeoJSON = "geojson"
)

type CrawlOptions struct {
	Concurrency   int
	Pattern       string
	FollowSymlink bool
	OutputFormat  string
	WithGrid      bool
	Metrics       metrics.Logger
}

// CrawlENVI walks rootDir and writes one record per ENVI raster found to
// out. Per-file failures are reported in the returned error once the walk
// has finished.
func CrawlENVI(rootDir string, opts CrawlOptions, out io.Writer) error {
	absRootDir, err := filepath.Abs(rootDir)
	if err != nil {
		return err
	}

	switch opts.OutputFormat {
	case "":
		opts.OutputFormat = FormatJSON
	case FormatJSON, FormatTSV, FormatGeoJSON:
	default:
		return fmt.Errorf("unknown output format %q", opts.OutputFormat)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	expr, err := parsePatternExpression(opts.Pattern)
	if err != nil {
		return err
	}

	crawler := NewENVICrawler(opts, expr, out)
	return crawler.Crawl(absRootDir)
}

func GetPosixInfo(filePath string, fStat os.FileInfo) *PosixInfo {
	stat := fStat.Sys().(*syscall.Stat_t)
	fileSignature := fmt.Sprintf("%s%d%d%d%d", filePath, stat.Ino, stat.Size, stat.Mtim.Sec, stat.Mtim.Nsec)
	return &PosixInfo{
		FilePath: filePath,
		INode:    stat.Ino,
		Size:     stat.Size,
		MTime:    time.Unix(int64(stat.Mtim.Sec), int64(stat.Mtim.Nsec)).UTC(),
		CTime:    time.Unix(int64(stat.Ctim.Sec), int64(stat.Ctim.Nsec)).UTC(),
		ID:       fmt.Sprintf("%x", md5.Sum([]byte(fileSignature))),
	}
}

func parsePatternExpression(pattern string) (*goeval.EvaluableExpression, error) {
	if len(strings.TrimSpace(pattern)) == 0 {
		return nil, nil
	}

	expr, err := goeval.NewEvaluableExpression(pattern)
	if err != nil {
		return nil, err
	}

	validVariables := map[string]struct{}{"path": struct{}{}, "type": struct{}{}}
	for _, token := range expr.Tokens() {
		if token.Kind == goeval.VARIABLE {
			varName, ok := token.Value.(string)
			if !ok {
				return nil, fmt.Errorf("variable token '%v' failed to cast string", token.Value)
			}
			if _, found := validVariables[varName]; !found {
				return nil, fmt.Errorf("variable %v is not supported. Valid variables are path, type", varName)
			}
		}
	}
	return expr, nil
}

const DefaultMaxPosixErrors = 1000

type ENVICrawler struct {
	Outputs    chan *CrawlRecord
	Error      chan error
	wg         sync.WaitGroup
	concLimit  chan struct{}
	outputDone chan error
	pattern    *goeval.EvaluableExpression
	opts       CrawlOptions
	out        io.Writer
}

type DirEntInfo struct {
	Name string
	Mode uint8
}

func NewENVICrawler(opts CrawlOptions, pattern *goeval.EvaluableExpression, out io.Writer) *ENVICrawler {
	conc := opts.Concurrency
	if conc <= 0 {
		conc = 1
	}
	return &ENVICrawler{
		Outputs:    make(chan *CrawlRecord, 4096),
		Error:      make(chan error, DefaultMaxPosixErrors),
		wg:         sync.WaitGroup{},
		concLimit:  make(chan struct{}, conc),
		outputDone: make(chan error, 1),
		pattern:    pattern,
		opts:       opts,
		out:        out,
	}
}

func (pc *ENVICrawler) Crawl(currPath string) error {
	go pc.outputResult()

	pc.wg.Add(1)
	pc.concLimit <- struct{}{}
	pc.crawlDir(currPath, false)
	pc.wg.Wait()

	close(pc.Outputs)
	outErr := <-pc.outputDone

	close(pc.Error)
	var errors []string
	if outErr != nil {
		errors = append(errors, outErr.Error())
	}
	errCount := 0
	for err := range pc.Error {
		errors = append(errors, err.Error())
		errCount++
		if errCount >= DefaultMaxPosixErrors {
			errors = append(errors, " ... too many errors")
			break
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "\n"))
	}
	return nil
}

func (pc *ENVICrawler) reportError(err error) {
	select {
	case pc.Error <- err:
	default:
	}
}

func (pc *ENVICrawler) crawlDir(currPath string, serialised bool) {
	defer pc.wg.Done()
	if !serialised {
		defer func() { <-pc.concLimit }()
	}
	files, err := readDir(currPath)
	if err != nil {
		pc.reportError(err)
		return
	}

	for _, fi := range files {
		filePath := path.Join(currPath, fi.Name)
		fileMode := fi.Mode

		var fStat os.FileInfo
		if fileMode == syscall.DT_LNK {
			if !pc.opts.FollowSymlink {
				continue
			}
			fStat, err = os.Stat(filePath)
			if err != nil {
				pc.reportError(err)
				continue
			}

			fMode := fStat.Mode()
			if fMode.IsDir() {
				fileMode = syscall.DT_DIR
			} else if fMode.IsRegular() {
				fileMode = syscall.DT_REG
			}
		}

		validFileMode := fileMode == syscall.DT_DIR || fileMode == syscall.DT_REG
		if !validFileMode {
			continue
		}

		if pc.pattern != nil {
			result, err := pc.evaluatePatternExpression(filePath, fileMode)
			if err != nil {
				pc.reportError(err)
				continue
			}
			if !result {
				continue
			}
		}

		if fileMode == syscall.DT_DIR {
			pc.wg.Add(1)
			select {
			case pc.concLimit <- struct{}{}:
				go func(p string) {
					pc.crawlDir(p, false)
				}(filePath)
			default:
				pc.crawlDir(filePath, true)
			}
			continue
		}

		if !envi.IsHeader(filePath) {
			continue
		}

		if fStat == nil {
			fStat, err = os.Lstat(filePath)
			if err != nil {
				pc.reportError(err)
				continue
			}
		}

		rec, err := pc.extract(filePath, fStat)
		if err != nil {
			pc.reportError(err)
			continue
		}
		pc.Outputs <- rec
	}
}

func (pc *ENVICrawler) extract(hdrPath string, fStat os.FileInfo) (*CrawlRecord, error) {
	m := metrics.NewMetricsCollector(pc.opts.Metrics, "crawl", hdrPath)

	geoFile, err := ExtractENVIInfo(hdrPath, pc.opts.WithGrid)
	if err == nil && len(geoFile.DataSets) > 0 {
		ds := geoFile.DataSets[0]
		m.SetShape(int(ds.RasterCount), int(ds.XSize), int(ds.YSize))
		m.Info.Footprint = ds.Polygon
	}
	m.Log(err)
	if err != nil {
		return nil, err
	}

	// The record is keyed on the data file; fall back to the header stat.
	if dStat, err := os.Stat(geoFile.FileName); err == nil {
		fStat = dStat
	}
	return &CrawlRecord{Posix: GetPosixInfo(geoFile.FileName, fStat), Geo: geoFile}, nil
}

func readDir(currDir string) ([]DirEntInfo, error) {
	parentDir := filepath.Dir(currDir)

	dhParent, err := os.Open(parentDir)
	if err != nil {
		return nil, fmt.Errorf("Could not open dir: %s", err.Error())
	}
	defer dhParent.Close()
	dirFd := int(dhParent.Fd())

	file := filepath.Base(currDir)

	dh, err := syscall.Openat(dirFd, file, syscall.O_RDONLY, 0777)
	if err != nil {
		return nil, fmt.Errorf("Could not open %s: %s", currDir, err.Error())
	}
	defer syscall.Close(dh)

	origBuf := make([]byte, 4096)
	var entries []DirEntInfo
	for {
		n, errno := syscall.ReadDirent(dh, origBuf)
		if errno != nil {
			return nil, fmt.Errorf("Could not read dirent: %v", errno)
		}
		if n <= 0 {
			break
		}

		buf := origBuf[0:n]
		for len(buf) > 0 {
			dirent := (*syscall.Dirent)(unsafe.Pointer(&buf[0]))
			buf = buf[dirent.Reclen:]
			if dirent.Ino == 0 {
				continue
			}
			ii := 0
			for ; ii < len(dirent.Name); ii++ {
				if dirent.Name[ii] == 0 {
					break
				}
			}
			bytes := (*[256]byte)(unsafe.Pointer(&dirent.Name[0]))
			name := string(bytes[:][:ii])
			if name == "." || name == ".." {
				continue
			}

			if dirent.Type == syscall.DT_UNKNOWN {
				st, err := os.Lstat(path.Join(currDir, name))
				if err != nil {
					return nil, err
				}
				mode := st.Mode()
				if mode.IsDir() {
					dirent.Type = syscall.DT_DIR
				} else if mode.IsRegular() {
					dirent.Type = syscall.DT_REG
				} else if mode&os.ModeSymlink == os.ModeSymlink {
					dirent.Type = syscall.DT_LNK
				}
			}

			entries = append(entries, DirEntInfo{Name: name, Mode: dirent.Type})
		}
	}
	return entries, nil
}

func (pc *ENVICrawler) evaluatePatternExpression(filePath string, fileMode uint8) (bool, error) {
	var fileType string
	if fileMode == syscall.DT_DIR {
		fileType = "d"
	} else if fileMode == syscall.DT_REG {
		fileType = "f"
	}

	parameters := map[string]interface{}{"type": fileType, "path": filePath}
	result, err := pc.pattern.Evaluate(parameters)
	if err != nil {
		return false, fmt.Errorf("pattern expression: %v", err)
	}

	val, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("pattern expression: result '%v' is not boolean", result)
	}
	return val, nil
}

func (pc *ENVICrawler) outputResult() {
	var err error
	fc := geojson.NewFeatureCollection()

	for rec := range pc.Outputs {
		if err != nil {
			continue
		}
		switch pc.opts.OutputFormat {
		case FormatGeoJSON:
			var f *geojson.Feature
			f, err = recordFeature(rec)
			if err == nil {
				fc.Append(f)
			}
		default:
			var out []byte
			out, err = json.Marshal(rec)
			if err != nil {
				continue
			}
			line := string(out)
			if pc.opts.OutputFormat == FormatTSV {
				line = fmt.Sprintf("%s\tenvi\t%s", rec.Geo.FileName, line)
			}
			_, err = fmt.Fprintf(pc.out, "%s\n", line)
		}
	}

	if err == nil && pc.opts.OutputFormat == FormatGeoJSON {
		var out []byte
		out, err = json.Marshal(fc)
		if err == nil {
			_, err = fmt.Fprintf(pc.out, "%s\n", out)
		}
	}
	pc.outputDone <- err
}

func recordFeature(rec *CrawlRecord) (*geojson.Feature, error) {
	md := rec.Geo.DataSets[0]
	g, err := wkt.Unmarshal(md.Polygon)
	if err != nil {
		return nil, fmt.Errorf("%s: footprint: %v", rec.Geo.FileName, err)
	}

	f := geojson.NewFeature(g)
	f.ID = rec.Posix.ID
	f.Properties["filename"] = rec.Geo.FileName
	f.Properties["header_file"] = md.HeaderFile
	f.Properties["bands"] = md.RasterCount
	f.Properties["x_size"] = md.XSize
	f.Properties["y_size"] = md.YSize
	f.Properties["epsg"] = md.EPSG
	f.Properties["array_type"] = md.Type
	if len(md.TimeStamps) > 0 && !md.TimeStamps[0].IsZero() {
		f.Properties["timestamp"] = md.TimeStamps[0].Format(time.RFC3339)
	}
	return f, nil
}
