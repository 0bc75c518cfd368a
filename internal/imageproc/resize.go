package imageproc

import (
	"image"
	"image/color"
	"math"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/disintegration/imaging"
)

// TargetSize scales (srcW, srcH) down into the params box keeping the aspect
// ratio. The tighter of the two axes drives the factor; nothing is upscaled.
// Each side is then held at or above its floor, the floor itself being capped
// by the source size and by the box.
func TargetSize(srcW, srcH int, p model.CompressionParams, minW, minH int) (int, int) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0
	}

	scale := 1.0
	if p.MaxWidth > 0 {
		scale = math.Min(scale, float64(p.MaxWidth)/float64(srcW))
	}
	if p.MaxHeight > 0 {
		scale = math.Min(scale, float64(p.MaxHeight)/float64(srcH))
	}

	w := int(math.Round(float64(srcW) * scale))
	h := int(math.Round(float64(srcH) * scale))

	return floorDim(w, minW, srcW, p.MaxWidth), floorDim(h, minH, srcH, p.MaxHeight)
}

func floorDim(v, floor, src, limit int) int {
	if floor > src {
		floor = src
	}
	if limit > 0 && floor > limit {
		floor = limit
	}
	if v < floor {
		v = floor
	}
	if v < 1 {
		v = 1
	}
	return v
}

// render resamples the source into a w×h opaque buffer. Lossy targets have no
// alpha, so transparent drawing surfaces are flattened onto white first.
func render(src image.Image, w, h int, filter imaging.ResampleFilter) *image.NRGBA {
	resized := imaging.Resize(src, w, h, filter)
	background := imaging.New(w, h, color.White)
	return imaging.Overlay(background, resized, image.Pt(0, 0), 1.0)
}
