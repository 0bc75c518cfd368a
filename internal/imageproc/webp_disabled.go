//go:build !cgo || nowebp

package imageproc

// NewWebPEncoder without libwebp: the probe reports webp as unsupported and
// the compressor falls back to JPEG.
func NewWebPEncoder() WebPEncoder {
	return WebPEncoder{}
}
