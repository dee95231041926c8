package imgconv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

const (
	imageFlagsCompressed = "LV_IMAGE_FLAGS_COMPRESSED"
	compressedBytesLine  = 16
)

type SerializeOptions struct {
	// Name is the C identifier of the descriptor; the byte array is Name+"_map".
	Name     string
	Compress Compression
}

// EncodePayload returns the bytes stored in the C array and the compression
// actually applied. LZ4 falls back to CompressNone when it cannot shrink the data.
func EncodePayload(img *Image, method Compression) ([]byte, Compression, error) {
	payload, err := Compress(img.Data, method, img.Format.BytesPerPixel())
	if errors.Is(err, ErrIncompressible) {
		return append([]byte(nil), img.Data...), CompressNone, nil
	}
	if err != nil {
		return nil, method, err
	}
	return payload, method, nil
}

// Serialize writes img as a C source file at path, replacing any existing file.
func Serialize(img *Image, path string, opts SerializeOptions) (Compression, error) {
	file, err := os.Create(path)
	if err != nil {
		return opts.Compress, err
	}
	applied, writeErr := WriteCArray(file, img, opts)
	closeErr := file.Close()
	if writeErr != nil {
		return applied, writeErr
	}
	if closeErr != nil {
		return applied, fmt.Errorf("close %s: %w", path, closeErr)
	}
	return applied, nil
}

func WriteCArray(w io.Writer, img *Image, opts SerializeOptions) (Compression, error) {
	if img == nil || len(img.Data) == 0 {
		return opts.Compress, ErrEmptyImage
	}
	name := CIdentifier(opts.Name)
	payload, applied, err := EncodePayload(img, opts.Compress)
	if err != nil {
		return applied, err
	}

	bw := bufio.NewWriter(w)
	attr := "LV_ATTRIBUTE_" + strings.ToUpper(name)

	fmt.Fprint(bw, "#if defined(LV_LVGL_H_INCLUDE_SIMPLE)\n#include \"lvgl.h\"\n")
	fmt.Fprint(bw, "#elif defined(LV_BUILD_TEST)\n#include \"../lvgl.h\"\n")
	fmt.Fprint(bw, "#else\n#include \"lvgl/lvgl.h\"\n#endif\n\n")
	fmt.Fprint(bw, "#ifndef LV_ATTRIBUTE_MEM_ALIGN\n#define LV_ATTRIBUTE_MEM_ALIGN\n#endif\n\n")
	fmt.Fprintf(bw, "#ifndef %s\n#define %s\n#endif\n\n", attr, attr)
	fmt.Fprintf(bw, "static const\nLV_ATTRIBUTE_MEM_ALIGN LV_ATTRIBUTE_LARGE_CONST %s\n", attr)
	fmt.Fprintf(bw, "uint8_t %s_map[] = {\n", name)

	if applied == CompressNone {
		writeRows(bw, payload[:img.Stride*img.Height], img.Stride)
		if img.Format == RGB565A8 {
			fmt.Fprint(bw, "\n    /* alpha channel */\n")
			writeRows(bw, payload[img.Stride*img.Height:], img.Width)
		}
	} else {
		writeRows(bw, payload, compressedBytesLine)
	}
	fmt.Fprint(bw, "\n};\n\n")

	flags := "0"
	if applied != CompressNone {
		flags = imageFlagsCompressed
	}
	fmt.Fprintf(bw, "const lv_image_dsc_t %s = {\n", name)
	fmt.Fprint(bw, "  .header.magic = LV_IMAGE_HEADER_MAGIC,\n")
	fmt.Fprintf(bw, "  .header.cf = %s,\n", img.Format.LVGLName())
	fmt.Fprintf(bw, "  .header.flags = %s,\n", flags)
	fmt.Fprintf(bw, "  .header.w = %d,\n", img.Width)
	fmt.Fprintf(bw, "  .header.h = %d,\n", img.Height)
	fmt.Fprintf(bw, "  .header.stride = %d,\n", img.Stride)
	fmt.Fprintf(bw, "  .data_size = sizeof(%s_map),\n", name)
	fmt.Fprintf(bw, "  .data = %s_map,\n", name)
	fmt.Fprint(bw, "};\n")

	return applied, bw.Flush()
}

func writeRows(w io.Writer, data []byte, perLine int) {
	if perLine <= 0 {
		perLine = compressedBytesLine
	}
	var line strings.Builder
	for start := 0; start < len(data); start += perLine {
		end := min(start+perLine, len(data))
		line.Reset()
		line.WriteString("    ")
		for _, b := range data[start:end] {
			fmt.Fprintf(&line, "0x%02x,", b)
		}
		line.WriteByte('\n')
		_, _ = io.WriteString(w, line.String())
	}
}

// CIdentifier turns a file stem into a valid C identifier.
func CIdentifier(stem string) string {
	var b strings.Builder
	for _, r := range stem {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	out := b.String()
	if out == "" {
		return "image"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "_" + out
	}
	return out
}
