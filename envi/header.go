// Package envi reads the fixed-layout ENVI headers written alongside the
// hyperspectral rasters processed by this module.
//
// The parser is positional: values are taken from known line numbers rather
// than looked up by key, so headers produced by other software with a
// different field order are not supported.
package envi

import (
	"bufio"
	"os"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

// Conventions is the CF metadata convention version written with every set
// of global attributes.
const Conventions = "CF-1.6"

// MinHeaderLines is the smallest number of lines a header must have for
// every positional field to be present.
const MinHeaderLines = 25

// GlobalAttributes maps attribute names to the raw string values found in
// the header. No numeric coercion is applied.
type GlobalAttributes map[string]string

type field struct {
	name string
	line int
}

// Line numbers are 0-based and fixed by the software producing the headers.
var keyValueFields = []field{
	{"samples", 3},
	{"lines", 4},
	{"bands", 5},
	{"data_type", 8},
	{"source_type", 7},
	{"interleave", 9},
	{"byte_order", 10},
	{"map_info", 11},
	{"wavelength_units", 13},
	{"missing_value", 24},
}

const descriptionLine = 2

// Keys returns the attribute names produced by ReadGlobalAttributes in a
// stable order.
func Keys() []string {
	keys := []string{"description"}
	for _, f := range keyValueFields {
		keys = append(keys, f.name)
	}
	return append(keys, "Conventions")
}

// ReadGlobalAttributes parses the ENVI header at path.
func ReadGlobalAttributes(path string) (GlobalAttributes, error) {
	header, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return parseHeader(path, header)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Path: path, Err: err}
	}
	defer f.Close()

	var header []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		header = append(header, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, &FileAccessError{Path: path, Err: err}
	}
	return header, nil
}

func parseHeader(path string, header []string) (GlobalAttributes, error) {
	if len(header) < MinHeaderLines {
		return nil, &MalformedHeaderError{
			Path:   path,
			Line:   -1,
			Reason: "expected at least 25 lines",
		}
	}

	atts := make(GlobalAttributes, len(keyValueFields)+2)

	// The description block closes on this line; drop the trailing brace.
	desc := header[descriptionLine]
	_, size := utf8.DecodeLastRuneInString(desc)
	desc = desc[:len(desc)-size]
	atts["description"] = desc

	for _, f := range keyValueFields {
		parts := strings.Split(header[f.line], "=")
		if len(parts) < 2 {
			return nil, &MalformedHeaderError{
				Path:   path,
				Line:   f.line,
				Reason: "missing '=' separator for " + f.name,
			}
		}
		atts[f.name] = strings.TrimSpace(parts[1])
	}
	atts["Conventions"] = Conventions

	log.WithFields(log.Fields{"path": path, "samples": atts["samples"], "lines": atts["lines"]}).Debug("envi: header parsed")
	return atts, nil
}
