package parser

import "fmt"

// ParseSourceError reports that a trace source could not be opened or read.
// Individual malformed lines never produce it.
type ParseSourceError struct {
	Path string
	Err  error
}

func (e *ParseSourceError) Error() string {
	return fmt.Sprintf("reading trace source %s: %v", e.Path, e.Err)
}

func (e *ParseSourceError) Unwrap() error {
	return e.Err
}
