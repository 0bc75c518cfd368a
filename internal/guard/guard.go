// Package guard keeps a serialised record under its byte budget by re-compressing
// the attached image with progressively stricter parameters. The escalation is
// bounded: at most three compressions, after which the best result is accepted.
package guard

import (
	"context"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
)

const MaxAttempts = 3

type Compressor interface {
	CompressRaw(ctx context.Context, raw *model.RawImage, p model.CompressionParams) (model.EncodedImage, error)
}

// Measure returns the serialised size of the record carrying img.
type Measure func(img model.EncodedImage) (int, error)

type Step struct {
	Params model.CompressionParams `json:"params"`
	Bytes  int                     `json:"bytes"`
	Kept   bool                    `json:"kept"`
}

type Result struct {
	Image    model.EncodedImage
	Bytes    int
	Attempts int
	Steps    []Step
}

// OverBudget reports whether the accepted result still exceeds the final limit.
func (r Result) OverBudget(p Profile) bool {
	return r.Bytes > p.FinalAbove
}

type Guard struct {
	compressor Compressor
}

func New(c Compressor) *Guard {
	return &Guard{compressor: c}
}

// Fit compresses raw under profile. Every step re-renders from raw itself,
// never from the previous artifact. A later step only replaces the current
// result when it is strictly smaller. Only a failure of step 0 is returned as
// an error; later failures keep what step 0 produced.
func (g *Guard) Fit(ctx context.Context, raw *model.RawImage, profile Profile, measure Measure) (Result, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	params := profile.Initial()
	img, size, err := g.attempt(ctx, raw, params, measure)
	if err != nil {
		return Result{}, err
	}
	res := Result{Image: img, Bytes: size, Attempts: 1, Steps: []Step{{Params: params, Bytes: size, Kept: true}}}

	limits := []int{profile.EscalateAbove, profile.FinalAbove}
	next := []func(model.CompressionParams) model.CompressionParams{profile.Reduced, profile.Final}

	for i, limit := range limits {
		if res.Bytes <= limit || res.Attempts >= MaxAttempts {
			break
		}

		params = next[i](params)
		res.Attempts++

		cand, candSize, err := g.attempt(ctx, raw, params, measure)
		if err != nil {
			logger.Warn().Err(err).Int("step", i+1).Msg("Escalation step failed, keeping previous result")
			res.Steps = append(res.Steps, Step{Params: params})
			break
		}

		kept := candSize < res.Bytes
		res.Steps = append(res.Steps, Step{Params: params, Bytes: candSize, Kept: kept})
		if kept {
			res.Image, res.Bytes = cand, candSize
		}

		logger.Info().
			Str("profile", profile.Name).
			Int("step", i+1).
			Float64("quality", params.Quality).
			Int("max_w", params.MaxWidth).
			Int("max_h", params.MaxHeight).
			Int("bytes", candSize).
			Bool("kept", kept).
			Msg("Payload over budget, escalated compression")
	}

	if res.OverBudget(profile) {
		logger.Warn().Str("profile", profile.Name).Int("bytes", res.Bytes).Msg("Payload still over budget after final step")
	}
	return res, nil
}

func (g *Guard) attempt(ctx context.Context, raw *model.RawImage, p model.CompressionParams, measure Measure) (model.EncodedImage, int, error) {
	img, err := g.compressor.CompressRaw(ctx, raw, p)
	if err != nil {
		return model.EncodedImage{}, 0, err
	}
	size, err := measure(img)
	if err != nil {
		return model.EncodedImage{}, 0, err
	}
	return img, size, nil
}
