package guard

import (
	"fmt"
	"math"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/creasty/defaults"
)

const (
	ProfileSignature = "signature"
	ProfileCamera    = "camera"
	ProfileUpdate    = "update"
)

// Profile is one named set of escalation knobs. Byte limits apply to the
// serialised customer record, not to the image alone.
type Profile struct {
	Name           string  `yaml:"-"`
	Quality        float64 `yaml:"quality" default:"0.3"`
	MaxWidth       int     `yaml:"max_width" default:"300"`
	MaxHeight      int     `yaml:"max_height" default:"200"`
	QualityStep    float64 `yaml:"quality_step" default:"0.15"`
	MinQuality     float64 `yaml:"min_quality" default:"0.1"`
	ShrinkFactor   float64 `yaml:"shrink_factor" default:"0.7"`
	FinalMaxWidth  int     `yaml:"final_max_width" default:"150"`
	FinalMaxHeight int     `yaml:"final_max_height" default:"100"`
	EscalateAbove  int     `yaml:"escalate_above" default:"25000"`
	FinalAbove     int     `yaml:"final_above" default:"30000"`
	RetryAbove     int     `yaml:"retry_above" default:"6000"`
}

type Profiles map[string]Profile

// NewProfile returns a profile with every unset knob defaulted.
func NewProfile(name string) Profile {
	p := Profile{Name: name}
	if err := defaults.Set(&p); err != nil {
		// теги статические, ошибка тут - баг в коде
		panic(fmt.Sprintf("guard: bad profile defaults: %v", err))
	}
	return p
}

func DefaultProfiles() Profiles {
	signature := NewProfile(ProfileSignature)

	camera := NewProfile(ProfileCamera)
	camera.Quality = 0.25
	camera.MaxWidth, camera.MaxHeight = 250, 200
	camera.RetryAbove = 8000

	update := NewProfile(ProfileUpdate)
	update.MaxWidth, update.MaxHeight = 300, 100
	update.EscalateAbove = 15000

	return Profiles{
		ProfileSignature: signature,
		ProfileCamera:    camera,
		ProfileUpdate:    update,
	}
}

// Get falls back to the signature profile, then to bare defaults.
func (ps Profiles) Get(name string) Profile {
	if p, ok := ps[name]; ok {
		return p
	}
	if p, ok := ps[ProfileSignature]; ok {
		return p
	}
	return NewProfile(name)
}

func (p Profile) Validate() error {
	switch {
	case p.Quality <= 0 || p.Quality > 1:
		return fmt.Errorf("profile %q: quality must be in (0,1]", p.Name)
	case p.MinQuality <= 0 || p.MinQuality > p.Quality:
		return fmt.Errorf("profile %q: min_quality must be in (0,quality]", p.Name)
	case p.MaxWidth <= 0 || p.MaxHeight <= 0 || p.FinalMaxWidth <= 0 || p.FinalMaxHeight <= 0:
		return fmt.Errorf("profile %q: dimensions must be positive", p.Name)
	case p.ShrinkFactor <= 0 || p.ShrinkFactor >= 1:
		return fmt.Errorf("profile %q: shrink_factor must be in (0,1)", p.Name)
	case p.EscalateAbove <= 0 || p.FinalAbove < p.EscalateAbove:
		return fmt.Errorf("profile %q: need 0 < escalate_above <= final_above", p.Name)
	}
	return nil
}

// Initial is step 0: the profile's normal parameters.
func (p Profile) Initial() model.CompressionParams {
	return model.CompressionParams{
		Quality:    p.Quality,
		MaxWidth:   p.MaxWidth,
		MaxHeight:  p.MaxHeight,
		RetryAbove: p.RetryAbove,
		RetryStep:  p.QualityStep,
		RetryFloor: p.MinQuality,
	}
}

// Reduced is step 1: lower quality (floored) and a shrunken box.
func (p Profile) Reduced(prev model.CompressionParams) model.CompressionParams {
	return model.CompressionParams{
		Quality:    math.Max(p.MinQuality, prev.Quality-p.QualityStep),
		MaxWidth:   shrink(prev.MaxWidth, p.ShrinkFactor),
		MaxHeight:  shrink(prev.MaxHeight, p.ShrinkFactor),
		RetryAbove: prev.RetryAbove,
		RetryStep:  p.QualityStep,
		RetryFloor: p.MinQuality,
	}
}

// Final is step 2: minimum quality and the smallest box.
func (p Profile) Final(prev model.CompressionParams) model.CompressionParams {
	return model.CompressionParams{
		Quality:    p.MinQuality,
		MaxWidth:   min(p.FinalMaxWidth, prev.MaxWidth),
		MaxHeight:  min(p.FinalMaxHeight, prev.MaxHeight),
		RetryAbove: prev.RetryAbove,
		RetryStep:  p.QualityStep,
		RetryFloor: p.MinQuality,
	}
}

func shrink(v int, factor float64) int {
	return max(1, int(math.Round(float64(v)*factor)))
}
