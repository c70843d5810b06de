package qcloud

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned by components that gave up waiting on an external
// dependency. A component which returns it has disabled itself.
var ErrTimeout = errors.New("timed out waiting for dependency")

// ConfigurationError reports a required external reference (a file, a
// loader, a renderer) that was never supplied. It is not recoverable by the
// component that returned it.
type ConfigurationError struct {
	What string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is missing", e.What)
}

// DataFormatError reports a source file which is absent, unreadable, or
// which does not contain what it is supposed to.
type DataFormatError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DataFormatError) Error() string {
	msg := e.Reason
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// FormatError is a small constructor for DataFormatError.
func FormatError(path string, err error, format string, args ...interface{}) error {
	return &DataFormatError{Path: path, Reason: fmt.Sprintf(format, args...), Err: err}
}
