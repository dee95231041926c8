package imgconv

// Codec bundles Decode and Serialize behind a value so callers can inject
// their own implementation.
type Codec struct{}

func (Codec) Decode(path string, opts DecodeOptions) (*Image, error) {
	return Decode(path, opts)
}

func (Codec) Serialize(img *Image, path string, opts SerializeOptions) (Compression, error) {
	return Serialize(img, path, opts)
}
