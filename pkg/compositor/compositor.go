// Package compositor fits a source image into the screen cutout of a device
// frame and layers the frame on top of it.
//
// Fitting never upscales the user's content. When the screen cutout is
// larger than the source, the whole frame is scaled down instead so the
// cutout matches the source resolution, and the paste offset is
// re-derived from the cutout's position ratio inside the frame. The source
// is then cover-resized into the (possibly scaled) cutout, pasted onto a
// transparent canvas, and the frame is alpha-blended over it so the bezel
// hides any overflow.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/deviceframe/pkg/cropper"
	"github.com/menta2k/deviceframe/pkg/processing"
	"github.com/menta2k/deviceframe/pkg/types"
)

const epsilon = 1e-9

// Layout is the geometry of one composite, computed before any pixels move.
type Layout struct {
	// FrameScaled is true when the frame bitmap is resized to the source resolution.
	FrameScaled bool
	// Scale is the ratio applied to the frame, 1 when not scaled.
	Scale float64

	FrameWidth  int
	FrameHeight int

	// ScreenWidth and ScreenHeight are the dimensions the source is covered to.
	ScreenWidth  int
	ScreenHeight int

	Left int
	Top  int
}

// Compositor fits and layers source images into device frames
type Compositor struct {
	cropper *cropper.Cropper
	filter  imaging.ResampleFilter
}

// Option configures a Compositor
type Option func(*Compositor)

// WithFilter sets the resampling filter used for both frame and source
func WithFilter(filter imaging.ResampleFilter) Option {
	return func(c *Compositor) {
		c.filter = filter
		c.cropper = cropper.NewWithConfig(cropper.CropConfig{Filter: filter, Anchor: imaging.Center})
	}
}

// New creates a Compositor using Lanczos resampling
func New(opts ...Option) *Compositor {
	c := &Compositor{
		cropper: cropper.New(),
		filter:  imaging.Lanczos,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate checks that rect is a usable screen cutout for a frameW x frameH frame.
func Validate(rect types.Rect, frameW, frameH int) error {
	switch {
	case rect.Empty():
		return fmt.Errorf("screen %dx%d has no area: %w", rect.Width, rect.Height, types.ErrInvalidGeometry)
	case rect.Right-rect.Left != rect.Width || rect.Bottom-rect.Top != rect.Height:
		return fmt.Errorf("screen size %dx%d disagrees with its edges: %w", rect.Width, rect.Height, types.ErrInvalidGeometry)
	case rect.Left < 0 || rect.Top < 0 || rect.Right > frameW || rect.Bottom > frameH:
		return fmt.Errorf("screen (%d,%d)-(%d,%d) exceeds frame %dx%d: %w",
			rect.Left, rect.Top, rect.Right, rect.Bottom, frameW, frameH, types.ErrInvalidGeometry)
	}
	return nil
}

// Plan computes the layout for fitting a srcW x srcH image into rect on a
// frameW x frameH frame. rect is in the frame's original pixel space.
func Plan(rect types.Rect, frameW, frameH, srcW, srcH int) (Layout, error) {
	if err := Validate(rect, frameW, frameH); err != nil {
		return Layout{}, err
	}
	if srcW <= 0 || srcH <= 0 {
		return Layout{}, fmt.Errorf("source %dx%d has no area: %w", srcW, srcH, types.ErrDecode)
	}

	srcMax := srcW
	if srcH > srcMax {
		srcMax = srcH
	}

	if rect.Max() <= srcMax {
		return Layout{
			Scale:        1,
			FrameWidth:   frameW,
			FrameHeight:  frameH,
			ScreenWidth:  rect.Width,
			ScreenHeight: rect.Height,
			Left:         rect.Left,
			Top:          rect.Top,
		}, nil
	}

	var newW, newH int
	var scale float64
	if rect.Height > rect.Width {
		scale = float64(srcW) / float64(rect.Width)
		newW = ceil(float64(frameW) * scale)
		newH = round(float64(frameH) * float64(newW) / float64(frameW))
	} else {
		scale = float64(srcH) / float64(rect.Height)
		newH = ceil(float64(frameH) * scale)
		newW = round(float64(frameW) * float64(newH) / float64(frameH))
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	kx := float64(newW) / float64(frameW)
	ky := float64(newH) / float64(frameH)

	return Layout{
		FrameScaled:  true,
		Scale:        scale,
		FrameWidth:   newW,
		FrameHeight:  newH,
		ScreenWidth:  max(1, ceil(float64(rect.Width)*kx)),
		ScreenHeight: max(1, ceil(float64(rect.Height)*ky)),
		Left:         round(float64(newW) * (float64(rect.Left) / float64(frameW))),
		Top:          round(float64(newH) * (float64(rect.Top) / float64(frameH))),
	}, nil
}

// Composite fits src into the screen of rec on frame and returns a new
// image the size of the (possibly scaled) frame. Neither input is modified.
func (c *Compositor) Composite(rec types.FrameRecord, frame, src image.Image) (*image.NRGBA, error) {
	fb := frame.Bounds()
	sb := src.Bounds()

	layout, err := Plan(rec.Frame, fb.Dx(), fb.Dy(), sb.Dx(), sb.Dy())
	if err != nil {
		return nil, err
	}

	var scaledFrame image.Image = frame
	if layout.FrameScaled {
		scaledFrame = imaging.Resize(frame, layout.FrameWidth, layout.FrameHeight, c.filter)
	}

	screen, err := c.cropper.Cover(src, layout.ScreenWidth, layout.ScreenHeight)
	if err != nil {
		return nil, fmt.Errorf("cover resize: %w", err)
	}

	canvas := imaging.New(layout.FrameWidth, layout.FrameHeight, color.NRGBA{})
	canvas = imaging.Paste(canvas, screen, image.Pt(layout.Left, layout.Top))
	return imaging.Overlay(canvas, scaledFrame, image.Pt(0, 0), 1.0), nil
}

// CompositeBytes decodes frame and source bytes and composites them.
// Undecodable input wraps types.ErrDecode.
func (c *Compositor) CompositeBytes(rec types.FrameRecord, frameData, srcData []byte) (*image.NRGBA, error) {
	p := processing.NewProcessor()

	frame, err := p.Decode(frameData)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", rec.RelPath, err)
	}
	src, err := p.Decode(srcData)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return c.Composite(rec, frame, src)
}

// Composite fits src into rec's screen with a default Compositor
func Composite(rec types.FrameRecord, frame, src image.Image) (*image.NRGBA, error) {
	return New().Composite(rec, frame, src)
}

func ceil(v float64) int {
	return int(math.Ceil(v - epsilon))
}

func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
