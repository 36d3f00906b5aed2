package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	extr "github.com/nci/envigeo/crawl/extractor"
	"github.com/nci/envigeo/crs"
	"github.com/nci/envigeo/envi"
	"github.com/nci/envigeo/georef"
	"github.com/nci/envigeo/metrics"
	"github.com/nci/envigeo/ncout"
	"github.com/nci/envigeo/utils"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	cfg           = utils.NewConfig()
	metricsLogger metrics.Logger

	configFile string
	verbose    bool
	logJSON    bool
	metricsDir string
	withGrid   bool
	outputFile string
	dstCRS     string
	pattern    string
	conc       int
	format     string
	followLink bool
)

func init() {
	pf := Root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "YAML configuration file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	pf.BoolVar(&logJSON, "log-json", false, "log in JSON instead of text")
	pf.StringVar(&metricsDir, "metrics-dir", "", "directory for rotating metrics logs; metrics go to stderr when empty")

	infoCmd.Flags().BoolVar(&withGrid, "with-grid", false, "compute the footprint from the full geographic grid")

	latlonCmd.Flags().StringVarP(&outputFile, "output", "o", "", "netCDF file to write")
	latlonCmd.Flags().StringVar(&dstCRS, "dst-crs", utils.DefaultDstCRS, "destination coordinate reference system")
	latlonCmd.MarkFlagRequired("output")

	cf := crawlCmd.Flags()
	cf.StringVar(&pattern, "pattern", "", `govaluate filter over "path" and "type" ("f" or "d")`)
	cf.IntVar(&conc, "conc", utils.DefaultConcurrency, "number of directories crawled concurrently")
	cf.StringVar(&format, "format", utils.DefaultOutputFormat, "output format: json, tsv or geojson")
	cf.BoolVar(&followLink, "follow-symlink", false, "follow symbolic links")
	cf.BoolVar(&withGrid, "with-grid", false, "compute footprints from the full geographic grid")

	Root.AddCommand(versionCmd)
	Root.AddCommand(infoCmd)
	Root.AddCommand(latlonCmd)
	Root.AddCommand(crawlCmd)
}

var Root = &cobra.Command{
	Use:   "crawl",
	Short: "Inspect ENVI rasters and derive their coordinate grids.",
	Long: `crawl reads the fixed-layout ENVI headers written alongside airborne
spectrometer rasters, derives projected and geographic coordinate grids
from the raster georeferencing, and crawls directory trees to index them.

Settings are read from the file given with --config and may be overridden
with command line flags.`,
	SilenceUsage:      true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setConfig(cmd.Flags())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("envigeo crawl %s\n", Version)
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info <raster|header|->",
	Short: "Print the metadata of one ENVI raster as JSON",
	Long: `info extracts the header attributes, shape, georeferencing and
geographic footprint of one ENVI raster. The path may name the data file
or its .hdr sidecar; '-' reads the path from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveArg(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}

		m := metrics.NewMetricsCollector(metricsLogger, "info", path)
		geoFile, err := extr.ExtractENVIInfo(path, cfg.WithGrid)
		if err == nil {
			ds := geoFile.DataSets[0]
			m.SetShape(int(ds.RasterCount), int(ds.XSize), int(ds.YSize))
			m.Info.Footprint = ds.Polygon
		}
		m.Log(err)
		if err != nil {
			return err
		}

		out, err := json.Marshal(&geoFile)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", out)
		return err
	},
	DisableAutoGenTag: true,
}

var latlonCmd = &cobra.Command{
	Use:   "latlon <raster|header>",
	Short: "Write the coordinate grids of a raster to netCDF",
	Long: `latlon computes the projected x/y axes and the per-pixel geographic
longitude/latitude grids of a raster and writes them, together with the ENVI
header attributes, to a CF-1.6 netCDF file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := metrics.NewMetricsCollector(metricsLogger, "latlon", args[0])
		err := writeLatLon(args[0], outputFile, cfg.DstCRS, m)
		m.Log(err)
		return err
	},
	DisableAutoGenTag: true,
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <dir>",
	Short: "Extract every ENVI raster under a directory",
	Long: `crawl walks a directory tree concurrently and prints one record per
ENVI header found. Failures on individual files are reported once the walk
has finished and do not stop it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := extr.CrawlOptions{
			Concurrency:   cfg.Concurrency,
			Pattern:       cfg.Pattern,
			FollowSymlink: cfg.FollowSymlink,
			OutputFormat:  cfg.OutputFormat,
			WithGrid:      cfg.WithGrid,
			Metrics:       metricsLogger,
		}
		return extr.CrawlENVI(args[0], opts, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

func setConfig(flags *pflag.FlagSet) error {
	if configFile != "" {
		if err := cfg.LoadConfigFile(configFile); err != nil {
			return err
		}
	}

	if flags.Changed("pattern") {
		cfg.Pattern = pattern
	}
	if flags.Changed("conc") {
		cfg.Concurrency = conc
	}
	if flags.Changed("format") {
		cfg.OutputFormat = format
	}
	if flags.Changed("follow-symlink") {
		cfg.FollowSymlink = followLink
	}
	if flags.Changed("with-grid") {
		cfg.WithGrid = withGrid
	}
	if flags.Changed("dst-crs") {
		cfg.DstCRS = dstCRS
	}
	if flags.Changed("metrics-dir") {
		cfg.MetricsLogDir = metricsDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging()

	if cfg.MetricsLogDir != "" {
		if err := os.MkdirAll(cfg.MetricsLogDir, 0755); err != nil {
			return err
		}
		metricsLogger = metrics.NewFileLogger(cfg.MetricsLogDir, cfg.MaxLogFileSize, cfg.MaxLogFiles, verbose)
	} else {
		metricsLogger = metrics.NewStdoutLogger()
	}

	return utils.InitGdal(cfg)
}

func setupLogging() {
	log.SetOutput(os.Stderr)
	if logJSON {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

func resolveArg(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no path on standard input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func writeLatLon(path, outFile, dst string, m *metrics.MetricsCollector) error {
	hdrPath, dataPath := path, path
	var err error
	if envi.IsHeader(path) {
		dataPath, err = envi.DataFor(path)
	} else {
		hdrPath, err = envi.HeaderFor(path)
	}
	if err != nil {
		return err
	}

	atts, err := envi.ReadGlobalAttributes(hdrPath)
	if err != nil {
		return err
	}

	ds, err := georef.Open(dataPath)
	if err != nil {
		return err
	}
	defer ds.Close()

	m.SetShape(georef.Shape(ds))

	x, y, err := georef.XYArrays(ds)
	if err != nil {
		return err
	}
	sr, proj4, err := georef.Projection(ds)
	if err != nil {
		return err
	}
	sr.Close()

	gx, gy, err := georef.GridArrays(ds, dst)
	if err != nil {
		return err
	}
	if fp, err := georef.FootprintWKT(gx, gy); err == nil && crs.IsGeographic(dst) {
		m.Info.Footprint = fp
	}

	return ncout.WriteFile(outFile, &ncout.Grid{
		X:          x,
		Y:          y,
		Lon:        gx,
		Lat:        gy,
		Proj4:      proj4,
		CRS:        dst,
		Attributes: atts,
	})
}

func closeMetrics() {
	if fl, ok := metricsLogger.(*metrics.FileLogger); ok {
		fl.Close()
	}
}

func main() {
	err := Root.Execute()
	closeMetrics()
	if err != nil {
		log.Fatal(err)
	}
}
