// Package imageproc turns raw captures into small lossy artifacts: aspect-preserving
// downscale with a smoothing filter, preferred-format encode with a probed fallback,
// and bounded decoding of inbound images.
package imageproc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	// регистрируем декодер webp для image.Decode
	_ "golang.org/x/image/webp"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
	"github.com/disintegration/imaging"
)

const (
	DefaultMinWidth      = 80
	DefaultMinHeight     = 60
	DefaultDecodeTimeout = 5 * time.Second

	// для параметров без шага/пола повторного кодирования
	defaultRetryStep  = 0.15
	defaultRetryFloor = 0.1
)

type Compressor struct {
	preferred     Encoder
	fallback      Encoder
	active        Encoder
	degraded      bool
	caps          Capabilities
	filter        imaging.ResampleFilter
	minWidth      int
	minHeight     int
	decodeTimeout time.Duration
	decodeFn      func(io.Reader) (image.Image, error)
}

type Option func(*Compressor)

func WithMinDimensions(w, h int) Option {
	return func(c *Compressor) {
		c.minWidth, c.minHeight = w, h
	}
}

func WithDecodeTimeout(d time.Duration) Option {
	return func(c *Compressor) {
		if d > 0 {
			c.decodeTimeout = d
		}
	}
}

// WithFilter overrides the resampling filter. Anything below bilinear blurs
// thin signature strokes away, so Box and NearestNeighbor are not accepted.
func WithFilter(f imaging.ResampleFilter) Option {
	return func(c *Compressor) {
		if f.Support >= imaging.Linear.Support {
			c.filter = f
		}
	}
}

// NewCompressor probes the preferred encoder once and caches the decision.
// A nil fallback means JPEG.
func NewCompressor(preferred, fallback Encoder, opts ...Option) *Compressor {
	if fallback == nil {
		fallback = JPEGEncoder{}
	}
	c := &Compressor{
		preferred:     preferred,
		fallback:      fallback,
		filter:        imaging.CatmullRom,
		minWidth:      DefaultMinWidth,
		minHeight:     DefaultMinHeight,
		decodeTimeout: DefaultDecodeTimeout,
		decodeFn:      func(r io.Reader) (image.Image, error) { return imaging.Decode(r) },
	}
	for _, opt := range opts {
		opt(c)
	}

	c.caps = Probe(preferred, fallback)
	c.active, c.degraded = fallback, true
	if preferred != nil && c.caps.Supports(preferred.MIMEType()) {
		c.active, c.degraded = preferred, false
	}
	return c
}

// Format is the media type every compression call produces.
func (c *Compressor) Format() string {
	return c.active.MIMEType()
}

func (c *Compressor) Capabilities() Capabilities {
	return c.caps
}

// Decode materialises an encoded image. It never blocks longer than the
// configured timeout: a stalled source yields ErrDecodeTimeout.
func (c *Compressor) Decode(ctx context.Context, src model.EncodedImage, origin model.Origin) (*model.RawImage, error) {
	if len(src.Data) == 0 {
		return nil, model.ErrEmptySource
	}

	ctx, cancel := context.WithTimeout(ctx, c.decodeTimeout)
	defer cancel()

	type decoded struct {
		img image.Image
		err error
	}
	done := make(chan decoded, 1)
	go func() {
		img, err := c.decodeFn(bytes.NewReader(src.Data))
		done <- decoded{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, model.ErrDecodeTimeout
		}
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrUnsupportedFormat, res.err)
		}
		return &model.RawImage{Image: res.img, Origin: origin, Original: src}, nil
	}
}

// Compress decodes src and compresses it in one go.
func (c *Compressor) Compress(ctx context.Context, src model.EncodedImage, p model.CompressionParams) (model.EncodedImage, error) {
	raw, err := c.Decode(ctx, src, model.OriginUpload)
	if err != nil {
		return model.EncodedImage{}, err
	}
	return c.CompressRaw(ctx, raw, p)
}

// CompressRaw renders raw into the params box and encodes it. The source
// bitmap is only read, so callers may compress the same RawImage repeatedly.
func (c *Compressor) CompressRaw(ctx context.Context, raw *model.RawImage, p model.CompressionParams) (model.EncodedImage, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if raw == nil || raw.Image == nil {
		return model.EncodedImage{}, model.ErrEmptySource
	}
	p = p.Normalized()

	w, h := TargetSize(raw.Width(), raw.Height(), p, c.minWidth, c.minHeight)
	buf := render(raw.Image, w, h, c.filter)

	res, err := c.encode(ctx, buf, p.Quality)
	if err != nil {
		return model.EncodedImage{}, err
	}

	// тот же буфер, но качество ниже - оставляем меньший результат
	if p.RetryAbove > 0 && res.Len() > p.RetryAbove {
		lower := retryQuality(p)
		if retried, rErr := c.encode(ctx, buf, lower); rErr == nil && retried.Len() < res.Len() {
			res = retried
		}
	}

	logger.Debug().
		Str("origin", string(raw.Origin)).
		Int("src_w", raw.Width()).
		Int("src_h", raw.Height()).
		Int("dst_w", w).
		Int("dst_h", h).
		Float64("quality", p.Quality).
		Str("mime", res.MIMEType).
		Int("from_bytes", raw.Original.Len()).
		Int("to_bytes", res.Len()).
		Msg("Image compressed")

	return res, nil
}

func (c *Compressor) encode(ctx context.Context, img image.Image, quality float64) (model.EncodedImage, error) {
	data, err := encodeWith(c.active, img, quality)
	if err == nil {
		return model.EncodedImage{MIMEType: c.active.MIMEType(), Data: data}, nil
	}
	if c.degraded {
		return model.EncodedImage{}, fmt.Errorf("encode %s: %w", c.fallback.MIMEType(), err)
	}

	logger := mwlogger.LoggerFromContext(ctx)
	logger.Warn().Err(err).
		Str("preferred", c.active.MIMEType()).
		Str("fallback", c.fallback.MIMEType()).
		Msg("Preferred encoder failed after probe, using fallback")

	data, err = encodeWith(c.fallback, img, quality)
	if err != nil {
		return model.EncodedImage{}, fmt.Errorf("encode %s: %w", c.fallback.MIMEType(), err)
	}
	return model.EncodedImage{MIMEType: c.fallback.MIMEType(), Data: data}, nil
}

// encodeWith never returns partial output: a write error or an artifact that
// does not sniff as the requested format is reported as failure.
func encodeWith(enc Encoder, img image.Image, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := enc.Encode(&buf, img, quality); err != nil {
		return nil, err
	}
	if !matchesFormat(buf.Bytes(), enc.MIMEType()) {
		return nil, fmt.Errorf("%w: %s encoder produced %s", model.ErrEncoderMissing, enc.MIMEType(), SniffMIME(buf.Bytes()))
	}
	return buf.Bytes(), nil
}

func retryQuality(p model.CompressionParams) float64 {
	step, floor := p.RetryStep, p.RetryFloor
	if step == 0 {
		step = defaultRetryStep
	}
	if floor == 0 {
		floor = min(defaultRetryFloor, p.Quality)
	}
	return max(floor, p.Quality-step)
}
