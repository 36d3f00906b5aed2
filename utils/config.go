package utils

import (
	"fmt"
	"io/ioutil"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	DefaultConcurrency    = 8
	DefaultOutputFormat   = "json"
	DefaultDstCRS         = "EPSG:4326"
	DefaultMaxLogFileSize = 1024 * 1024 * 1024
	DefaultMaxLogFiles    = 10
)

// Config holds the crawler settings read from a YAML file. Command line
// flags override whatever is set here.
type Config struct {
	Concurrency    int               `yaml:"concurrency"`
	OutputFormat   string            `yaml:"output_format"`
	Pattern        string            `yaml:"pattern"`
	FollowSymlink  bool              `yaml:"follow_symlink"`
	WithGrid       bool              `yaml:"with_grid"`
	DstCRS         string            `yaml:"dst_crs"`
	MetricsLogDir  string            `yaml:"metrics_log_dir"`
	MaxLogFileSize int64             `yaml:"max_log_file_size"`
	MaxLogFiles    int               `yaml:"max_log_files"`
	GDALConfig     map[string]string `yaml:"gdal_config"`
}

// NewConfig returns a Config with every default applied.
func NewConfig() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// LoadConfigFile replaces config with the contents of configFile, filling
// unset fields with defaults.
func (config *Config) LoadConfigFile(configFile string) error {
	*config = Config{}
	cfg, err := ioutil.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("Error while reading config file: %s. Error: %v", configFile, err)
	}

	err = yaml.UnmarshalStrict(cfg, config)
	if err != nil {
		return fmt.Errorf("Error at YAML parsing config document: %s. Error: %v", configFile, err)
	}

	config.applyDefaults()
	return config.Validate()
}

func (config *Config) applyDefaults() {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConcurrency
	}
	if len(strings.TrimSpace(config.OutputFormat)) == 0 {
		config.OutputFormat = DefaultOutputFormat
	}
	if len(strings.TrimSpace(config.DstCRS)) == 0 {
		config.DstCRS = DefaultDstCRS
	}
	if config.MaxLogFileSize <= 0 {
		config.MaxLogFileSize = DefaultMaxLogFileSize
	}
	if config.MaxLogFiles <= 0 {
		config.MaxLogFiles = DefaultMaxLogFiles
	}
}

func (config *Config) Validate() error {
	switch config.OutputFormat {
	case "json", "tsv", "geojson":
	default:
		return fmt.Errorf("output_format must be one of json, tsv, geojson: %q", config.OutputFormat)
	}
	return nil
}
