package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/airbusgeo/godal"
)

const envi godal.DriverName = "ENVI"

// InitGdal applies GDAL environment defaults and registers the raster
// drivers. Values already present in the environment win over both the
// built-in defaults and those from config.
func InitGdal(config *Config) error {
	if config != nil {
		for k, v := range config.GDALConfig {
			setDefaultEnv(k, v)
		}
	}
	setDefaultEnv("GDAL_PAM_ENABLED", "NO")
	// GDAL_DISABLE_READDIR_ON_OPEN stays unset: the ENVI driver finds the
	// .hdr sidecar through the directory listing.
	setDefaultEnv("GDAL_MAX_DATASET_POOL_SIZE", "10")

	exeFilePath, err := os.Executable()
	if err == nil {
		setDefaultEnv("GDAL_DRIVER_PATH", filepath.Dir(exeFilePath))
	}

	return registerGDALDrivers()
}

func setDefaultEnv(envVar string, defaultVal string) {
	if _, ok := os.LookupEnv(envVar); !ok {
		os.Setenv(envVar, defaultVal)
	}
}

// Drivers are interrogated in a linear scan when a file is opened, so the
// ones this tool reads most are registered ahead of everything else.
func registerGDALDrivers() error {
	if err := godal.RegisterRaster(envi); err != nil {
		return fmt.Errorf("registering %s driver: %v", envi, err)
	}
	godal.RegisterInternalDrivers()
	godal.RegisterAll()

	if _, ok := godal.RasterDriver(envi); !ok {
		return fmt.Errorf("GDAL was built without the %s driver", envi)
	}
	return nil
}
