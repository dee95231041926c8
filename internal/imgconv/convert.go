package imgconv

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"
)

// Image is a decoded picture packed into a target colour format.
type Image struct {
	Width  int
	Height int
	Format ColorFormat
	// Stride is the byte length of one colour-plane row.
	Stride int
	Data   []byte
}

type DecodeOptions struct {
	Format     ColorFormat
	Background color.NRGBA
	Dither     bool
}

// DefaultDecodeOptions matches the batch defaults: RGB565A8, white background,
// dithering on.
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{Format: DefaultColorFormat, Background: DefaultBackground, Dither: true}
}

func Decode(path string, opts DecodeOptions) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	src, err := png.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode png %s: %w", path, err)
	}
	return Convert(src, opts)
}

// Convert packs src into opts.Format.
func Convert(src image.Image, opts DecodeOptions) (*Image, error) {
	if _, ok := formats[opts.Format]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownColorFormat, int(opts.Format))
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}
	pixels := toNRGBA(src)
	width, height := bounds.Dx(), bounds.Dy()
	cf := opts.Format
	bpp := cf.BytesPerPixel()
	stride := width * bpp

	size := stride * height
	alphaPlane := size
	if cf == RGB565A8 {
		size += width * height
	}
	data := make([]byte, size)
	bg := opts.Background

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			px := pixels.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			r, g, b, a := px.R, px.G, px.B, px.A
			if !cf.HasAlpha() {
				r, g, b = blend(r, a, bg.R), blend(g, a, bg.G), blend(b, a, bg.B)
				a = 0xFF
			}
			if opts.Dither && cf.Dithers() {
				r, g, b = ditherRGB565(x, y, r, g, b)
			}

			off := y*stride + x*bpp
			switch cf {
			case RGB565:
				binary.LittleEndian.PutUint16(data[off:], packRGB565(r, g, b))
			case RGB565A8:
				binary.LittleEndian.PutUint16(data[off:], packRGB565(r, g, b))
				data[alphaPlane+y*width+x] = a
			case ARGB8565:
				binary.LittleEndian.PutUint16(data[off:], packRGB565(r, g, b))
				data[off+2] = a
			case RGB888:
				data[off], data[off+1], data[off+2] = b, g, r
			case ARGB8888:
				data[off], data[off+1], data[off+2], data[off+3] = b, g, r, a
			case XRGB8888:
				data[off], data[off+1], data[off+2], data[off+3] = b, g, r, 0xFF
			case L8:
				data[off] = luminance(r, g, b)
			case A8:
				data[off] = a
			}
		}
	}

	return &Image{Width: width, Height: height, Format: cf, Stride: stride, Data: data}, nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok {
		return n
	}
	bounds := src.Bounds()
	dst := image.NewNRGBA(bounds)
	draw.Copy(dst, bounds.Min, src, bounds, draw.Src, nil)
	return dst
}

func blend(c, alpha, bg uint8) uint8 {
	return uint8((uint32(c)*uint32(alpha) + uint32(bg)*(0xFF-uint32(alpha))) / 0xFF)
}

func luminance(r, g, b uint8) uint8 {
	return uint8((uint32(r)*76 + uint32(g)*150 + uint32(b)*29) >> 8)
}
