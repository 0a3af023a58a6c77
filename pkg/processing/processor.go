package processing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/deviceframe/pkg/types"
)

// Processor handles image decoding and encoding
type Processor struct {
	config Config
}

// Config holds output encoding settings
type Config struct {
	Quality          int
	Lossless         bool
	CompressionLevel png.CompressionLevel
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		config: Config{
			Quality:          90,
			CompressionLevel: png.DefaultCompression,
		},
	}
}

// NewProcessorWithConfig creates a processor with custom encoding settings
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{config: config}
}

// Decode decodes PNG, JPEG, BMP or WebP bytes. Failures wrap types.ErrDecode.
func (p *Processor) Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty input: %w", types.ErrDecode)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}

	// Try WebP decode
	if img, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return img, nil
	}

	return nil, fmt.Errorf("%v: %w", err, types.ErrDecode)
}

// DecodeReader reads r fully and decodes it
func (p *Processor) DecodeReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return p.Decode(data)
}

// LoadImage loads an image from a file path
func (p *Processor) LoadImage(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	img, err := p.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// EncodePNG encodes img as PNG
func (p *Processor) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: p.config.CompressionLevel}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("png encoding failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode writes img to w in the given format (png, jpg/jpeg or webp)
func (p *Processor) Encode(w io.Writer, img image.Image, format string) error {
	switch NormalizeFormat(format) {
	case "webp":
		opts := &webp.Options{Lossless: p.config.Lossless, Quality: float32(p.config.Quality)}
		return webp.Encode(w, img, opts)
	case "jpeg":
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(p.config.Quality))
	default:
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(p.config.CompressionLevel))
	}
}

// SaveImage saves an image to path, choosing the format from the extension
func (p *Processor) SaveImage(img image.Image, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	if err := p.Encode(f, img, format); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// NormalizeFormat maps a user supplied format or extension to png, jpeg or webp
func NormalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpg", "jpeg":
		return "jpeg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}

// Extension returns the file extension for a normalized format
func Extension(format string) string {
	switch NormalizeFormat(format) {
	case "jpeg":
		return "jpg"
	case "webp":
		return "webp"
	default:
		return "png"
	}
}
