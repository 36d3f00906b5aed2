package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
concurrency: 4
output_format: geojson
pattern: 'type == "d" || path =~ "ang.*_rfl"'
follow_symlink: true
metrics_log_dir: /var/log/envigeo
gdal_config:
  GDAL_CACHEMAX: "512"
`)

	config := &Config{}
	if err := config.LoadConfigFile(path); err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}

	expected := &Config{
		Concurrency:    4,
		OutputFormat:   "geojson",
		Pattern:        `type == "d" || path =~ "ang.*_rfl"`,
		FollowSymlink:  true,
		DstCRS:         DefaultDstCRS,
		MetricsLogDir:  "/var/log/envigeo",
		MaxLogFileSize: DefaultMaxLogFileSize,
		MaxLogFiles:    DefaultMaxLogFiles,
		GDALConfig:     map[string]string{"GDAL_CACHEMAX": "512"},
	}
	if diff := cmp.Diff(expected, config); diff != "" {
		t.Errorf("unexpected config (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileDefaults(t *testing.T) {
	config := &Config{Concurrency: 99}
	if err := config.LoadConfigFile(writeConfig(t, "{}\n")); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(NewConfig(), config); diff != "" {
		t.Errorf("expected defaults only (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFileErrors(t *testing.T) {
	config := &Config{}
	if err := config.LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
	if err := config.LoadConfigFile(writeConfig(t, "concurency: 3\n")); err == nil {
		t.Errorf("expected an error for an unknown field")
	}
	if err := config.LoadConfigFile(writeConfig(t, "output_format: csv\n")); err == nil {
		t.Errorf("expected an error for an unknown output format")
	}
}

func TestSetDefaultEnv(t *testing.T) {
	const key = "ENVIGEO_TEST_DEFAULT_ENV"
	os.Unsetenv(key)
	defer os.Unsetenv(key)

	setDefaultEnv(key, "a")
	setDefaultEnv(key, "b")
	if v := os.Getenv(key); v != "a" {
		t.Errorf("expected the first value to stick, actual %q", v)
	}
}

func TestInitGdalKeepsDirectoryListing(t *testing.T) {
	const key = "GDAL_DISABLE_READDIR_ON_OPEN"
	prev, had := os.LookupEnv(key)
	os.Unsetenv(key)
	defer func() {
		if had {
			os.Setenv(key, prev)
		}
	}()

	if err := InitGdal(NewConfig()); err != nil {
		t.Fatalf("InitGdal: %v", err)
	}
	if v, ok := os.LookupEnv(key); ok {
		t.Errorf("%s should stay unset for ENVI sidecar lookup, actual %q", key, v)
	}
}
