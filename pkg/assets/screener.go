package assets

import (
	"context"
	"fmt"
	"image"
	"math"
	"net/url"

	"github.com/root4loot/screener/pkg/screener"

	"github.com/menta2k/deviceframe/pkg/processing"
)

// ScreenerScreenshotter captures webpages with screener's headless browser
type ScreenerScreenshotter struct {
	processor *processing.Processor
}

// NewScreenerScreenshotter creates a screener backed Screenshotter
func NewScreenerScreenshotter() *ScreenerScreenshotter {
	return &ScreenerScreenshotter{processor: processing.NewProcessor()}
}

// Screenshot renders rawURL at the requested viewport and decodes the capture.
// screener has no cancellation hook, so a cancelled ctx abandons the capture.
func (s *ScreenerScreenshotter) Screenshot(ctx context.Context, rawURL string, opts ScreenshotOptions) (image.Image, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	type capture struct {
		img image.Image
		err error
	}
	done := make(chan capture, 1)

	go func() {
		result, err := screener.NewScreenerWithOptions(screenerOptions(opts)).CaptureScreenshot(target)
		if err != nil {
			done <- capture{err: err}
			return
		}
		img, err := s.processor.Decode([]byte(result.Image))
		done <- capture{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-done:
		return c.img, c.err
	}
}

// screenerOptions maps a viewport request onto screener's capture options.
// screener counts delays in whole seconds.
func screenerOptions(opts ScreenshotOptions) *screener.Options {
	options := screener.NewOptions()
	options.CaptureWidth = opts.Width
	options.CaptureHeight = opts.Height
	if opts.UserAgent != "" {
		options.UserAgent = opts.UserAgent
	}
	if opts.Delay > 0 {
		options.DelayBetweenCapture = int(math.Ceil(opts.Delay.Seconds()))
	}
	return options
}
