package imageproc

import (
	"image"
	"io"
	"math"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/disintegration/imaging"
)

// Encoder writes an image in one concrete format. Quality is in [0,1] and is
// ignored by lossless encoders.
type Encoder interface {
	MIMEType() string
	Encode(w io.Writer, img image.Image, quality float64) error
}

type JPEGEncoder struct{}

func (JPEGEncoder) MIMEType() string { return model.JPEG }

func (JPEGEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality(quality)))
}

type PNGEncoder struct{}

func (PNGEncoder) MIMEType() string { return model.PNG }

func (PNGEncoder) Encode(w io.Writer, img image.Image, _ float64) error {
	return imaging.Encode(w, img, imaging.PNG)
}

// WebPEncoder adapts an external lossy WebP implementation. With a nil Func
// the runtime has no WebP support and the capability probe reports it so.
type WebPEncoder struct {
	Func func(w io.Writer, img image.Image, quality float64) error
}

func (WebPEncoder) MIMEType() string { return model.WEBP }

func (e WebPEncoder) Encode(w io.Writer, img image.Image, quality float64) error {
	if e.Func == nil {
		return model.ErrEncoderMissing
	}
	return e.Func(w, img, quality)
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}
