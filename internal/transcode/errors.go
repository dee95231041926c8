package transcode

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDestinationBusy  = errors.New("destination directory is locked by another conversion")
	ErrWatchUnavailable = errors.New("source directory watch unavailable")
)

// ConversionError wraps a decode or serialize failure for one source image.
type ConversionError struct {
	Source string
	Err    error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return "conversion failed"
	}
	return fmt.Sprintf("convert %s: %v", filepath.Base(e.Source), e.Err)
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
