// Package capture provides the two image sources of a customer form: a freehand
// drawing surface and a snapshot camera. Neither compresses anything; they hand
// back a RawImage with its lossless/high-quality baseline encoding.
package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/disintegration/imaging"
	"golang.org/x/image/vector"
)

const (
	DefaultCanvasWidth  = 600
	DefaultCanvasHeight = 250
	DefaultPenWidth     = 2.5

	capSegments = 12
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Stroke []Point

// Canvas accumulates strokes into a persistent transparent bitmap of fixed size.
type Canvas struct {
	mu      sync.Mutex
	width   int
	height  int
	pen     float64
	ink     color.Color
	bitmap  *image.NRGBA
	strokes int
}

type CanvasOption func(*Canvas)

func WithPen(width float64, ink color.Color) CanvasOption {
	return func(c *Canvas) {
		if width > 0 {
			c.pen = width
		}
		if ink != nil {
			c.ink = ink
		}
	}
}

func NewCanvas(width, height int, opts ...CanvasOption) *Canvas {
	if width <= 0 {
		width = DefaultCanvasWidth
	}
	if height <= 0 {
		height = DefaultCanvasHeight
	}
	c := &Canvas{
		width:  width,
		height: height,
		pen:    DefaultPenWidth,
		ink:    color.Black,
		bitmap: image.NewNRGBA(image.Rect(0, 0, width, height)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// AddStroke rasterises one pointer stroke with round joins and caps.
// Points outside the surface are clamped to its edge.
func (c *Canvas) AddStroke(s Stroke) error {
	if len(s) == 0 {
		return model.ErrInvalidStroke
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	z := vector.NewRasterizer(c.width, c.height)
	z.DrawOp = draw.Over
	r := c.pen / 2

	prev := c.clamp(s[0])
	c.dot(z, prev, r)
	for _, p := range s[1:] {
		p = c.clamp(p)
		c.segment(z, prev, p, r)
		c.dot(z, p, r)
		prev = p
	}

	z.Draw(c.bitmap, c.bitmap.Bounds(), image.NewUniform(c.ink), image.Point{})
	c.strokes++
	return nil
}

func (c *Canvas) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.strokes == 0
}

// Clear discards every stroke and returns the surface to blank.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bitmap = image.NewNRGBA(image.Rect(0, 0, c.width, c.height))
	c.strokes = 0
}

// Export snapshots the surface at its native size with a PNG baseline.
func (c *Canvas) Export() (*model.RawImage, error) {
	c.mu.Lock()
	snapshot := imaging.Clone(c.bitmap)
	c.mu.Unlock()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, snapshot, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode drawing: %w", err)
	}

	return &model.RawImage{
		Image:    snapshot,
		Origin:   model.OriginDrawing,
		Original: model.EncodedImage{MIMEType: model.PNG, Data: buf.Bytes()},
	}, nil
}

func (c *Canvas) clamp(p Point) Point {
	return Point{
		X: math.Min(math.Max(p.X, 0), float64(c.width)),
		Y: math.Min(math.Max(p.Y, 0), float64(c.height)),
	}
}

func (c *Canvas) clampXY(x, y float64) (float32, float32) {
	p := c.clamp(Point{X: x, Y: y})
	return float32(p.X), float32(p.Y)
}

// segment и dot обходят контур в одну сторону, иначе перекрытия взаимно гасятся в растеризаторе
func (c *Canvas) segment(z *vector.Rasterizer, a, b Point, r float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*r, dx/length*r

	z.MoveTo(c.clampXY(a.X+nx, a.Y+ny))
	z.LineTo(c.clampXY(b.X+nx, b.Y+ny))
	z.LineTo(c.clampXY(b.X-nx, b.Y-ny))
	z.LineTo(c.clampXY(a.X-nx, a.Y-ny))
	z.ClosePath()
}

func (c *Canvas) dot(z *vector.Rasterizer, p Point, r float64) {
	for i := 0; i <= capSegments; i++ {
		theta := -2 * math.Pi * float64(i) / capSegments
		x, y := c.clampXY(p.X+r*math.Cos(theta), p.Y+r*math.Sin(theta))
		if i == 0 {
			z.MoveTo(x, y)
			continue
		}
		z.LineTo(x, y)
	}
	z.ClosePath()
}
