package envi

import "fmt"

// FileAccessError indicates the header file could not be opened or read.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("envi: cannot read header %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// MalformedHeaderError indicates the header does not have the fixed layout
// expected by ReadGlobalAttributes.
type MalformedHeaderError struct {
	Path   string
	Line   int
	Reason string
}

func (e *MalformedHeaderError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("envi: malformed header %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("envi: malformed header %s: line %d: %s", e.Path, e.Line, e.Reason)
}
