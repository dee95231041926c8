package imgconv

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// DefaultBackground is the flattening colour for formats without alpha.
var DefaultBackground = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// ParseColor accepts "#rrggbb", "rrggbb", "0xrrggbb" and the short "#rgb" form.
func ParseColor(value string) (color.NRGBA, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefaultBackground, nil
	}
	hex := strings.ToLower(trimmed)
	hex = strings.TrimPrefix(hex, "0x")
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	parsed, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, value)
	}
	r, g, b := parsed.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
}

// FormatColor renders c as "#rrggbb".
func FormatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
