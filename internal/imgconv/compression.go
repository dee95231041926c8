package imgconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/pierrec/lz4"
)

type Compression int

const (
	CompressNone Compression = iota
	CompressRLE
	CompressLZ4
)

const (
	rleMaxCount        = 127
	rleRepeatThreshold = 16
	compressedHeaderSz = 12
)

// ErrIncompressible is returned when LZ4 cannot shrink the input.
var ErrIncompressible = errors.New("data is incompressible")

var compressionNames = map[Compression]string{
	CompressNone: "none",
	CompressRLE:  "rle",
	CompressLZ4:  "lz4",
}

func ParseCompression(value string) (Compression, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return CompressNone, nil
	}
	for method, name := range compressionNames {
		if name == trimmed {
			return method, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, value)
}

func (c Compression) String() string {
	if name, ok := compressionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Compression(%d)", int(c))
}

func (c Compression) MarshalText() ([]byte, error) {
	if _, ok := compressionNames[c]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Compression) UnmarshalText(text []byte) error {
	parsed, err := ParseCompression(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Compress returns data wrapped in the compressed-image header:
// method, compressed size and decompressed size as little-endian uint32.
// RLE pads data with zeros to a multiple of blockSize first. CompressNone
// returns a copy of data without a header.
func Compress(data []byte, method Compression, blockSize int) ([]byte, error) {
	var (
		body     []byte
		rawSize  = len(data)
		workData = data
	)
	switch method {
	case CompressNone:
		return append([]byte(nil), data...), nil
	case CompressRLE:
		if blockSize < 1 {
			blockSize = 1
		}
		if rem := len(data) % blockSize; rem != 0 {
			workData = append(append([]byte(nil), data...), make([]byte, blockSize-rem)...)
		}
		rawSize = len(workData)
		body = encodeRLE(workData, blockSize)
	case CompressLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, make([]int, 1<<16))
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			return nil, ErrIncompressible
		}
		body = dst[:n]
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, int(method))
	}

	out := make([]byte, compressedHeaderSz, compressedHeaderSz+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(method))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(body)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(rawSize))
	return append(out, body...), nil
}

// encodeRLE writes runs of blocks. A control byte n (< 0x80) is followed by one
// block repeated n times; 0x80|n is followed by n literal blocks.
func encodeRLE(data []byte, blockSize int) []byte {
	var out bytes.Buffer
	index := 0
	for index < len(data) {
		repeat := repeatCount(data[index:], blockSize)
		if repeat >= rleRepeatThreshold {
			out.WriteByte(byte(repeat))
			out.Write(data[index : index+blockSize])
			index += repeat * blockSize
			continue
		}
		literal := literalCount(data[index:], blockSize)
		out.WriteByte(byte(literal) | 0x80)
		out.Write(data[index : index+literal*blockSize])
		index += literal * blockSize
	}
	return out.Bytes()
}

func repeatCount(data []byte, blockSize int) int {
	if len(data) < blockSize {
		return 0
	}
	first := data[:blockSize]
	count := 0
	for off := 0; off+blockSize <= len(data) && count < rleMaxCount; off += blockSize {
		if !bytes.Equal(data[off:off+blockSize], first) {
			break
		}
		count++
	}
	return count
}

// literalCount counts blocks up to the next run long enough to encode as a repeat.
func literalCount(data []byte, blockSize int) int {
	count := 0
	for off := 0; off < len(data) && count < rleMaxCount; off += blockSize {
		if count > 0 && repeatCount(data[off:], blockSize) >= rleRepeatThreshold {
			break
		}
		count++
	}
	return count
}
