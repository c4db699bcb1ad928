package model

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnrecognizedName is returned when a file name does not follow the naming
	// grammar of its category, so no identity can be derived from it.
	ErrUnrecognizedName = errors.New("unrecognized file name")
	// ErrUnsupportedContent is returned for files that are not plain text.
	ErrUnsupportedContent = errors.New("unsupported file content")
)

// ParseFailure reports that a whole file could not be parsed.
type ParseFailure struct {
	Path string
	Err  error
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ParseFailure) Unwrap() error {
	return e.Err
}
