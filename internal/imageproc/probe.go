package imageproc

import (
	"bytes"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// Capabilities is the cached outcome of probing the available encoders.
type Capabilities map[string]bool

func (c Capabilities) Supports(mime string) bool {
	return c[mime]
}

// Probe encodes a tiny opaque image with each encoder and keeps only those
// whose output is non-empty and sniffs as the format they claim. An encoder
// that silently hands back a PNG (or nothing) is treated as unsupported.
func Probe(encoders ...Encoder) Capabilities {
	sample := imaging.New(8, 8, color.White)
	caps := make(Capabilities, len(encoders))
	for _, enc := range encoders {
		if enc == nil {
			continue
		}
		caps[enc.MIMEType()] = probeOne(enc, sample)
	}
	return caps
}

func probeOne(enc Encoder, sample image.Image) bool {
	var buf bytes.Buffer
	if err := enc.Encode(&buf, sample, 0.5); err != nil {
		return false
	}
	return matchesFormat(buf.Bytes(), enc.MIMEType())
}

func matchesFormat(data []byte, mime string) bool {
	if len(data) == 0 {
		return false
	}
	return mimetype.Detect(data).Is(mime)
}

// SniffMIME returns the detected media type of an encoded image.
func SniffMIME(data []byte) string {
	return mimetype.Detect(data).String()
}
