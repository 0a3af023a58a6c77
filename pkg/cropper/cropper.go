package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// epsilon absorbs float error when a scale factor lands exactly on a target edge
const epsilon = 1e-9

// Cropper implements the "cover" resize policy: scale uniformly until both
// target dimensions are met, then center crop the overflow.
type Cropper struct {
	config CropConfig
}

// CropConfig holds configuration for cover resizing
type CropConfig struct {
	Filter imaging.ResampleFilter
	Anchor imaging.Anchor
}

// DefaultConfig returns Lanczos resampling with a centered crop
func DefaultConfig() CropConfig {
	return CropConfig{
		Filter: imaging.Lanczos,
		Anchor: imaging.Center,
	}
}

// New creates a new Cropper with default configuration
func New() *Cropper {
	return &Cropper{config: DefaultConfig()}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig) *Cropper {
	return &Cropper{config: config}
}

// CoverPlan describes how a source is scaled and cropped to fill a target
type CoverPlan struct {
	Scale        float64
	ScaledWidth  int
	ScaledHeight int
	TargetWidth  int
	TargetHeight int
	OverflowX    int
	OverflowY    int
}

// PlanCover computes the scaled size and overflow for covering a
// targetW x targetH box with a srcW x srcH image. Scaled dimensions are
// rounded up so the result never leaves a gap.
func PlanCover(srcW, srcH, targetW, targetH int) (CoverPlan, error) {
	if srcW <= 0 || srcH <= 0 {
		return CoverPlan{}, fmt.Errorf("invalid source dimensions %dx%d", srcW, srcH)
	}
	if targetW <= 0 || targetH <= 0 {
		return CoverPlan{}, fmt.Errorf("invalid target dimensions %dx%d", targetW, targetH)
	}

	scale := math.Max(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))
	w := ceil(float64(srcW) * scale)
	h := ceil(float64(srcH) * scale)
	if w < targetW {
		w = targetW
	}
	if h < targetH {
		h = targetH
	}

	return CoverPlan{
		Scale:        scale,
		ScaledWidth:  w,
		ScaledHeight: h,
		TargetWidth:  targetW,
		TargetHeight: targetH,
		OverflowX:    w - targetW,
		OverflowY:    h - targetH,
	}, nil
}

// Cover returns a new targetW x targetH image filled by img. The input is
// never modified.
func (c *Cropper) Cover(img image.Image, targetW, targetH int) (*image.NRGBA, error) {
	b := img.Bounds()
	plan, err := PlanCover(b.Dx(), b.Dy(), targetW, targetH)
	if err != nil {
		return nil, err
	}

	var scaled *image.NRGBA
	if plan.ScaledWidth == b.Dx() && plan.ScaledHeight == b.Dy() {
		scaled = imaging.Clone(img)
	} else {
		scaled = imaging.Resize(img, plan.ScaledWidth, plan.ScaledHeight, c.config.Filter)
	}

	if plan.OverflowX == 0 && plan.OverflowY == 0 {
		return scaled, nil
	}
	return imaging.CropAnchor(scaled, targetW, targetH, c.config.Anchor), nil
}

// Cover resizes img with the default Cropper
func Cover(img image.Image, targetW, targetH int) (*image.NRGBA, error) {
	return New().Cover(img, targetW, targetH)
}

func ceil(v float64) int {
	return int(math.Ceil(v - epsilon))
}
