package cmd

import "fmt"

// ConfigurationError reports a missing or invalid setting: a required flag,
// a malformed config file or an out-of-range value.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// InputNotFoundError reports that the input path is not an existing regular file.
type InputNotFoundError struct {
	Path string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("input file %q does not exist or is not a regular file", e.Path)
}
