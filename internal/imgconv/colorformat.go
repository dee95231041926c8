package imgconv

import (
	"fmt"
	"strings"
)

// ColorFormat selects the pixel encoding written into the C array.
type ColorFormat int

const (
	RGB565A8 ColorFormat = iota
	RGB565
	ARGB8565
	RGB888
	ARGB8888
	XRGB8888
	L8
	A8
)

// DefaultColorFormat is used when no format is configured.
const DefaultColorFormat = RGB565A8

type formatInfo struct {
	name     string
	lvglName string
	id       int
	bpp      int
	alpha    bool
	rgb565   bool
}

var formats = map[ColorFormat]formatInfo{
	RGB565A8: {name: "RGB565A8", lvglName: "LV_COLOR_FORMAT_RGB565A8", id: 0x14, bpp: 16, alpha: true, rgb565: true},
	RGB565:   {name: "RGB565", lvglName: "LV_COLOR_FORMAT_RGB565", id: 0x12, bpp: 16, rgb565: true},
	ARGB8565: {name: "ARGB8565", lvglName: "LV_COLOR_FORMAT_ARGB8565", id: 0x13, bpp: 24, alpha: true, rgb565: true},
	RGB888:   {name: "RGB888", lvglName: "LV_COLOR_FORMAT_RGB888", id: 0x0F, bpp: 24},
	ARGB8888: {name: "ARGB8888", lvglName: "LV_COLOR_FORMAT_ARGB8888", id: 0x10, bpp: 32, alpha: true},
	XRGB8888: {name: "XRGB8888", lvglName: "LV_COLOR_FORMAT_XRGB8888", id: 0x11, bpp: 32},
	L8:       {name: "L8", lvglName: "LV_COLOR_FORMAT_L8", id: 0x06, bpp: 8},
	A8:       {name: "A8", lvglName: "LV_COLOR_FORMAT_A8", id: 0x0E, bpp: 8, alpha: true},
}

// ColorFormats lists every supported format in declaration order.
func ColorFormats() []ColorFormat {
	return []ColorFormat{RGB565A8, RGB565, ARGB8565, RGB888, ARGB8888, XRGB8888, L8, A8}
}

func ParseColorFormat(value string) (ColorFormat, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefaultColorFormat, nil
	}
	trimmed = strings.TrimPrefix(strings.ToUpper(trimmed), "LV_COLOR_FORMAT_")
	for _, cf := range ColorFormats() {
		if formats[cf].name == trimmed {
			return cf, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownColorFormat, value)
}

func (cf ColorFormat) String() string {
	if info, ok := formats[cf]; ok {
		return info.name
	}
	return fmt.Sprintf("ColorFormat(%d)", int(cf))
}

// MarshalText lets formats appear by name in JSON settings and log fields.
func (cf ColorFormat) MarshalText() ([]byte, error) {
	if _, ok := formats[cf]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownColorFormat, int(cf))
	}
	return []byte(cf.String()), nil
}

func (cf *ColorFormat) UnmarshalText(text []byte) error {
	parsed, err := ParseColorFormat(string(text))
	if err != nil {
		return err
	}
	*cf = parsed
	return nil
}

// LVGLName is the LV_COLOR_FORMAT_* constant written into image descriptors.
func (cf ColorFormat) LVGLName() string { return formats[cf].lvglName }

// ID is the numeric lv_color_format_t value.
func (cf ColorFormat) ID() int { return formats[cf].id }

// BPP is the bits per pixel of the colour plane. RGB565A8 reports 16; its
// alpha plane is stored separately after the colour plane.
func (cf ColorFormat) BPP() int { return formats[cf].bpp }

func (cf ColorFormat) HasAlpha() bool { return formats[cf].alpha }

// Dithers reports whether ordered dithering applies when reducing to cf.
func (cf ColorFormat) Dithers() bool { return formats[cf].rgb565 }

// BytesPerPixel is the colour-plane size of one pixel, at least one byte.
func (cf ColorFormat) BytesPerPixel() int {
	n := (cf.BPP() + 7) / 8
	if n < 1 {
		return 1
	}
	return n
}
