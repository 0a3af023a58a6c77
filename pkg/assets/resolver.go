// Package assets turns user supplied sources (files, image URLs and webpage
// URLs) into images, and serves frame images from a local or cached bundle.
package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/menta2k/deviceframe/internal/utils"
	"github.com/menta2k/deviceframe/pkg/processing"
	"github.com/menta2k/deviceframe/pkg/types"
)

// MobileUserAgent is sent when screenshotting webpages
const MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 9_1 like Mac OS X) AppleWebKit/601.1.46 (KHTML, like Gecko) Version/9.0 Mobile/13B143 Safari/601.1"

// ScreenshotOptions describes the viewport a webpage is rendered at
type ScreenshotOptions struct {
	Width     int
	Height    int
	UserAgent string
	Delay     time.Duration
}

// Screenshotter renders a webpage to an image
type Screenshotter interface {
	Screenshot(ctx context.Context, url string, opts ScreenshotOptions) (image.Image, error)
}

// Resolver loads source images for compositing
type Resolver struct {
	client        *http.Client
	screenshotter Screenshotter
	processor     *processing.Processor
	delay         time.Duration
	logger        *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithHTTPClient sets the client used for URL sources
func WithHTTPClient(c *http.Client) ResolverOption {
	return func(r *Resolver) { r.client = c }
}

// WithScreenshotter enables webpage sources
func WithScreenshotter(s Screenshotter) ResolverOption {
	return func(r *Resolver) { r.screenshotter = s }
}

// WithDelay waits before capturing a webpage
func WithDelay(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.delay = d }
}

// WithLogger sets the resolver logger
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver. Without a Screenshotter, webpage sources
// fail with types.ErrAssetUnavailable.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:    &http.Client{Timeout: 2 * time.Minute},
		processor: processing.NewProcessor(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve loads source as an image sized for rec. File paths are decoded
// directly. URLs are fetched; image responses are decoded and anything else
// is screenshotted as a webpage at the device's CSS viewport.
func (r *Resolver) Resolve(ctx context.Context, source string, rec types.FrameRecord) (image.Image, error) {
	if !utils.IsURL(source) {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrAssetUnavailable, err)
		}
		return r.processor.Decode(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	r.logger.Debug("fetching source", "url", source)
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", types.ErrAssetUnavailable, source, resp.StatusCode)
	}

	if isImageResponse(resp) {
		img, err := r.processor.DecodeReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		return img, nil
	}

	return r.screenshot(ctx, source, rec)
}

func (r *Resolver) screenshot(ctx context.Context, url string, rec types.FrameRecord) (image.Image, error) {
	if r.screenshotter == nil {
		return nil, fmt.Errorf("%w: %s is a webpage and no screenshotter is configured", types.ErrAssetUnavailable, url)
	}

	w, h := ViewportSize(rec)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: viewport %dx%d for %s", types.ErrInvalidGeometry, w, h, rec.RelPath)
	}

	r.logger.Info("screenshotting webpage", "url", url, "viewport", fmt.Sprintf("%dx%d", w, h))
	shot, err := r.screenshotter.Screenshot(ctx, url, ScreenshotOptions{
		Width:     w,
		Height:    h,
		UserAgent: MobileUserAgent,
		Delay:     r.delay,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot of %s failed: %w", types.ErrAssetUnavailable, url, err)
	}

	return FitViewport(shot, w, h), nil
}

// ViewportSize is the screen size of rec in CSS pixels
func ViewportSize(rec types.FrameRecord) (int, int) {
	ratio := rec.EffectivePixelRatio()
	return int(float64(rec.Frame.Width) / ratio), int(float64(rec.Frame.Height) / ratio)
}

// FitViewport scales a full-page capture to width w and keeps the top h rows
func FitViewport(img image.Image, w, h int) *image.NRGBA {
	scaled := imaging.Resize(img, w, 0, imaging.Lanczos)
	if scaled.Bounds().Dy() <= h {
		return scaled
	}
	return imaging.Crop(scaled, image.Rect(0, 0, w, h))
}

func isImageResponse(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}

// IsUnavailable reports whether err means a source or frame could not be obtained
func IsUnavailable(err error) bool {
	return errors.Is(err, types.ErrAssetUnavailable)
}
