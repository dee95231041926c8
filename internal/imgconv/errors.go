package imgconv

import "errors"

var (
	ErrUnknownColorFormat = errors.New("unknown color format")
	ErrUnknownCompression = errors.New("unknown compression method")
	ErrInvalidColor       = errors.New("invalid color")
	ErrEmptyImage         = errors.New("image has no pixels")
)
