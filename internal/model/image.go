package model

import (
	"encoding/base64"
	"fmt"
	"image"
	"strings"
)

type Origin string

const (
	OriginCamera  Origin = "camera"
	OriginDrawing Origin = "drawing"
	OriginUpload  Origin = "upload"
)

const (
	WEBP = "image/webp"
	JPEG = "image/jpeg"
	PNG  = "image/png"
)

var GetImageFileExt = map[string]string{
	WEBP: ".webp",
	JPEG: ".jpg",
	PNG:  ".png",
}

// InImageTypeMap - форматы, которые принимаются как сырой источник
var InImageTypeMap = map[string]bool{
	WEBP: true,
	JPEG: true,
	PNG:  true,
}

//--------------------

// RawImage is a decoded bitmap together with the baseline encoding it came from.
// It lives only for one capture/compress cycle.
type RawImage struct {
	Image    image.Image
	Origin   Origin
	Original EncodedImage
}

func (r *RawImage) Width() int {
	if r == nil || r.Image == nil {
		return 0
	}
	return r.Image.Bounds().Dx()
}

func (r *RawImage) Height() int {
	if r == nil || r.Image == nil {
		return 0
	}
	return r.Image.Bounds().Dy()
}

//--------------------

// EncodedImage - закодированная картинка, на проводе живет как data URL
type EncodedImage struct {
	MIMEType string
	Data     []byte
}

const (
	dataURLPrefix = "data:"
	base64Marker  = ";base64,"
)

func (e EncodedImage) IsZero() bool {
	return e.MIMEType == "" && len(e.Data) == 0
}

// DataURL renders the wire form data:<mime>;base64,<payload>.
func (e EncodedImage) DataURL() string {
	if e.IsZero() {
		return ""
	}
	return dataURLPrefix + e.MIMEType + base64Marker + base64.StdEncoding.EncodeToString(e.Data)
}

// Len is the length of the wire form without building it.
func (e EncodedImage) Len() int {
	if e.IsZero() {
		return 0
	}
	return len(dataURLPrefix) + len(e.MIMEType) + len(base64Marker) + base64.StdEncoding.EncodedLen(len(e.Data))
}

func ParseDataURL(s string) (EncodedImage, error) {
	if !strings.HasPrefix(s, dataURLPrefix) {
		return EncodedImage{}, fmt.Errorf("%w: missing data: prefix", ErrMalformedDataURL)
	}
	mime, payload, ok := strings.Cut(s[len(dataURLPrefix):], base64Marker)
	if !ok {
		return EncodedImage{}, fmt.Errorf("%w: only base64 data URLs are supported", ErrMalformedDataURL)
	}
	if !InImageTypeMap[mime] {
		return EncodedImage{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mime)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("%w: %v", ErrMalformedDataURL, err)
	}
	return EncodedImage{MIMEType: mime, Data: data}, nil
}

//--------------------

// CompressionParams - параметры одной попытки сжатия, собираются заново на каждую попытку
type CompressionParams struct {
	Quality   float64 `json:"quality"`
	MaxWidth  int     `json:"maxWidth"`
	MaxHeight int     `json:"maxHeight"`
	// RetryAbove enables one extra lower-quality encode of the same buffer
	// when the wire form is longer than this many bytes. Zero disables it.
	RetryAbove int `json:"retryAbove,omitempty"`
	// RetryStep and RetryFloor shape that extra encode: quality drops by the
	// step but never below the floor. Zero values take the package defaults.
	RetryStep  float64 `json:"retryStep,omitempty"`
	RetryFloor float64 `json:"retryFloor,omitempty"`
}

func (p CompressionParams) Normalized() CompressionParams {
	if p.Quality < 0 {
		p.Quality = 0
	}
	if p.Quality > 1 {
		p.Quality = 1
	}
	if p.MaxWidth < 1 {
		p.MaxWidth = 1
	}
	if p.MaxHeight < 1 {
		p.MaxHeight = 1
	}
	if p.RetryAbove < 0 {
		p.RetryAbove = 0
	}
	if p.RetryStep < 0 {
		p.RetryStep = 0
	}
	if p.RetryFloor < 0 {
		p.RetryFloor = 0
	}
	if p.RetryFloor > p.Quality {
		p.RetryFloor = p.Quality
	}
	return p
}
