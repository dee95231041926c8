package imgconv

// 8x8 ordered-dither thresholds per channel, indexed by (y&7)*8 + (x&7).
// Red and blue lose three bits when packed to RGB565, green loses two.
var (
	redThreshold = [64]uint8{
		1, 7, 3, 5, 0, 8, 2, 6,
		7, 1, 5, 3, 8, 0, 6, 2,
		3, 5, 0, 8, 2, 6, 1, 7,
		5, 3, 8, 0, 6, 2, 7, 1,
		0, 8, 2, 6, 1, 7, 3, 5,
		8, 0, 6, 2, 7, 1, 5, 3,
		2, 6, 1, 7, 3, 5, 0, 8,
		6, 2, 7, 1, 5, 3, 8, 0,
	}
	greenThreshold = [64]uint8{
		1, 3, 2, 2, 3, 1, 2, 2,
		2, 2, 0, 4, 2, 2, 4, 0,
		3, 1, 2, 2, 1, 3, 2, 2,
		2, 2, 4, 0, 2, 2, 0, 4,
		1, 3, 2, 2, 3, 1, 2, 2,
		2, 2, 0, 4, 2, 2, 4, 0,
		3, 1, 2, 2, 1, 3, 2, 2,
		2, 2, 4, 0, 2, 2, 0, 4,
	}
	blueThreshold = [64]uint8{
		5, 3, 8, 0, 6, 2, 7, 1,
		3, 5, 0, 8, 2, 6, 1, 7,
		8, 0, 6, 2, 7, 1, 5, 3,
		0, 8, 2, 6, 1, 7, 3, 5,
		6, 2, 7, 1, 5, 3, 8, 0,
		2, 6, 1, 7, 3, 5, 0, 8,
		7, 1, 5, 3, 8, 0, 6, 2,
		1, 7, 3, 5, 0, 8, 2, 6,
	}
)

func ditherRGB565(x, y int, r, g, b uint8) (uint8, uint8, uint8) {
	i := (y&7)<<3 + (x & 7)
	return saturatingAdd(r, redThreshold[i]) & 0xF8,
		saturatingAdd(g, greenThreshold[i]) & 0xFC,
		saturatingAdd(b, blueThreshold[i]) & 0xF8
}

func saturatingAdd(v, delta uint8) uint8 {
	sum := uint16(v) + uint16(delta)
	if sum > 0xFF {
		return 0xFF
	}
	return uint8(sum)
}

func packRGB565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}
