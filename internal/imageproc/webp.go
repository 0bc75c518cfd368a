//go:build cgo && !nowebp

package imageproc

import (
	"image"
	"io"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// NewWebPEncoder returns the libwebp-backed lossy encoder.
func NewWebPEncoder() WebPEncoder {
	return WebPEncoder{Func: encodeWebP}
}

func encodeWebP(w io.Writer, img image.Image, quality float64) error {
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(jpegQuality(quality)))
	if err != nil {
		return err
	}
	return webp.Encode(w, img, opts)
}
