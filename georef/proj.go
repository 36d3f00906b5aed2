package georef

// #include <stdlib.h>
// #include <string.h>
// #include "cpl_conv.h"
// #include "ogr_srs_api.h"
// #cgo pkg-config: gdal
//char *getProj4(const char *srsText)
//{
//	char *pszProj4 = NULL;
//	char *result;
//	OGRSpatialReferenceH hSRS;
//
//	hSRS = OSRNewSpatialReference(NULL);
//	if(OSRSetFromUserInput(hSRS, srsText) != OGRERR_NONE) {
//		OSRDestroySpatialReference(hSRS);
//		return NULL;
//	}
//
//	if(OSRExportToProj4(hSRS, &pszProj4) != OGRERR_NONE || pszProj4 == NULL) {
//		CPLFree(pszProj4);
//		OSRDestroySpatialReference(hSRS);
//		return NULL;
//	}
//
//	result = strdup(pszProj4);
//
//	CPLFree(pszProj4);
//	OSRDestroySpatialReference(hSRS);
//
//	return result;
//}
import "C"

import (
	"errors"
	"strings"
	"unsafe"

	"github.com/airbusgeo/godal"
)

// Projection returns the spatial reference stored with ds and its PROJ4
// form. The caller must Close the returned SpatialRef.
func Projection(ds Raster) (*godal.SpatialRef, string, error) {
	wkt := ds.Projection()
	if strings.TrimSpace(wkt) == "" {
		return nil, "", &InvalidRasterError{Reason: "no projection"}
	}

	sr, err := godal.NewSpatialRefFromWKT(wkt)
	if err != nil {
		return nil, "", &ProjectionError{Definition: wkt, Err: err}
	}

	proj4, err := ExportProj4(wkt)
	if err != nil {
		sr.Close()
		return nil, "", err
	}
	return sr, proj4, nil
}

// ExportProj4 converts any definition understood by OSRSetFromUserInput
// (WKT, EPSG:n, PROJ4) into a PROJ4 string.
func ExportProj4(srsText string) (string, error) {
	cSrs := C.CString(srsText)
	defer C.free(unsafe.Pointer(cSrs))

	cProj4 := C.getProj4(cSrs)
	if cProj4 == nil {
		return "", &ProjectionError{Definition: srsText, Err: errors.New("cannot export to PROJ4")}
	}
	proj4 := strings.TrimSpace(C.GoString(cProj4))
	C.free(unsafe.Pointer(cProj4))

	if proj4 == "" {
		return "", &ProjectionError{Definition: srsText, Err: errors.New("empty PROJ4 export")}
	}
	return proj4, nil
}
