package envi

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HeaderExt is the extension of ENVI header sidecar files.
const HeaderExt = ".hdr"

var dataExts = []string{"", ".img", ".dat", ".bin", ".raw", ".bsq", ".bil", ".bip"}

// IsHeader reports whether path names an ENVI header sidecar.
func IsHeader(path string) bool {
	return strings.EqualFold(filepath.Ext(path), HeaderExt)
}

// HeaderFor returns the header sidecar of the raster at dataPath. Both the
// "scene.hdr" and "scene.img.hdr" naming schemes are recognised.
func HeaderFor(dataPath string) (string, error) {
	if IsHeader(dataPath) {
		return dataPath, nil
	}
	candidates := []string{
		strings.TrimSuffix(dataPath, filepath.Ext(dataPath)) + HeaderExt,
		dataPath + HeaderExt,
	}
	for _, c := range candidates {
		if isRegular(c) {
			return c, nil
		}
	}
	return "", &FileAccessError{Path: dataPath, Err: fmt.Errorf("no %s sidecar found", HeaderExt)}
}

// DataFor returns the raster file described by the header at hdrPath.
func DataFor(hdrPath string) (string, error) {
	base := strings.TrimSuffix(hdrPath, filepath.Ext(hdrPath))
	for _, ext := range dataExts {
		c := base + ext
		if c != hdrPath && isRegular(c) {
			return c, nil
		}
	}
	return "", &FileAccessError{Path: hdrPath, Err: fmt.Errorf("no raster file found next to header")}
}

func isRegular(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
