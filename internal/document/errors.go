package document

import "fmt"

// UnsupportedFormatError is returned for file extensions that have no reader.
type UnsupportedFormatError struct {
	Name string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("unsupported document %q: file has no extension (want %s)", e.Name, supportedList())
	}
	return fmt.Sprintf("unsupported document format %q for %q (want %s)", e.Ext, e.Name, supportedList())
}

// ExtractionError is returned when a supported document cannot be turned into text.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract text from %q: %v", e.Name, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
