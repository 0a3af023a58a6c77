package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/menta2k/deviceframe/pkg/types"
)

func createTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x % 256), uint8(y % 256), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type fakeScreenshotter struct {
	width, height int
	got           ScreenshotOptions
	url           string
}

func (f *fakeScreenshotter) Screenshot(_ context.Context, url string, opts ScreenshotOptions) (image.Image, error) {
	f.got = opts
	f.url = url
	return image.NewNRGBA(image.Rect(0, 0, f.width, f.height)), nil
}

func testRecord() types.FrameRecord {
	ratio := 2.0
	return types.FrameRecord{
		RelPath:    "Phones/Test/Test Phone.png",
		Frame:      types.NewRect(10, 20, 211, 321),
		PixelRatio: &ratio,
	}
}

func newSourceServer(t *testing.T, pngData []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/image.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(pngData)
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body>hello</body></html>")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shot.png")
	if err := os.WriteFile(path, createTestPNG(t, 30, 40), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := NewResolver().Resolve(context.Background(), path, testRecord())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if img.Bounds().Dx() != 30 || img.Bounds().Dy() != 40 {
		t.Errorf("Expected 30x40, got %v", img.Bounds())
	}
}

func TestResolveFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewResolver().Resolve(context.Background(), filepath.Join(dir, "missing.png"), testRecord())
	if !errors.Is(err, types.ErrAssetUnavailable) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected unavailable not-exist error, got %v", err)
	}

	corrupt := filepath.Join(dir, "corrupt.png")
	if err := os.WriteFile(corrupt, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = NewResolver().Resolve(context.Background(), corrupt, testRecord())
	if !errors.Is(err, types.ErrDecode) {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestResolveImageURL(t *testing.T) {
	server := newSourceServer(t, createTestPNG(t, 25, 50))
	shots := &fakeScreenshotter{width: 10, height: 10}

	img, err := NewResolver(WithScreenshotter(shots)).Resolve(context.Background(), server.URL+"/image.png", testRecord())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if img.Bounds().Dx() != 25 || img.Bounds().Dy() != 50 {
		t.Errorf("Expected 25x50, got %v", img.Bounds())
	}
	if shots.url != "" {
		t.Error("image URL should not be screenshotted")
	}
}

func TestResolveWebpage(t *testing.T) {
	server := newSourceServer(t, nil)
	shots := &fakeScreenshotter{width: 100, height: 400}

	r := NewResolver(WithScreenshotter(shots), WithDelay(1500*time.Millisecond))
	img, err := r.Resolve(context.Background(), server.URL+"/page", testRecord())
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	// 201x301 screen at pixel ratio 2
	if shots.got.Width != 100 || shots.got.Height != 150 {
		t.Errorf("Expected 100x150 viewport, got %dx%d", shots.got.Width, shots.got.Height)
	}
	if shots.got.UserAgent != MobileUserAgent || shots.got.Delay != 1500*time.Millisecond {
		t.Errorf("Unexpected screenshot options: %+v", shots.got)
	}
	if img.Bounds().Dx() != 100 || img.Bounds().Dy() != 150 {
		t.Errorf("Expected capture cropped to 100x150, got %v", img.Bounds())
	}
}

func TestResolveWebpageWithoutScreenshotter(t *testing.T) {
	server := newSourceServer(t, nil)

	_, err := NewResolver().Resolve(context.Background(), server.URL+"/page", testRecord())
	if !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable, got %v", err)
	}
}

func TestResolveHTTPError(t *testing.T) {
	server := newSourceServer(t, nil)

	_, err := NewResolver().Resolve(context.Background(), server.URL+"/missing", testRecord())
	if !IsUnavailable(err) {
		t.Errorf("Expected ErrAssetUnavailable, got %v", err)
	}
}

func TestFitViewport(t *testing.T) {
	tests := []struct {
		name         string
		srcW, srcH   int
		w, h         int
		wantW, wantH int
	}{
		{"tall page cropped", 200, 1000, 100, 150, 100, 150},
		{"short page kept", 200, 100, 100, 150, 100, 50},
		{"upscaled", 50, 100, 100, 150, 100, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FitViewport(image.NewNRGBA(image.Rect(0, 0, tt.srcW, tt.srcH)), tt.w, tt.h)
			if got.Bounds().Dx() != tt.wantW || got.Bounds().Dy() != tt.wantH {
				t.Errorf("Expected %dx%d, got %v", tt.wantW, tt.wantH, got.Bounds())
			}
		})
	}
}

func TestViewportSize(t *testing.T) {
	rec := testRecord()
	if w, h := ViewportSize(rec); w != 100 || h != 150 {
		t.Errorf("Expected 100x150, got %dx%d", w, h)
	}

	rec.PixelRatio = nil
	if w, h := ViewportSize(rec); w != 201 || h != 301 {
		t.Errorf("Expected 201x301 without pixel ratio, got %dx%d", w, h)
	}
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "Phones"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Phones", "a.png"), []byte("frame"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := DirStore{Dir: dir}
	rc, err := store.Open(context.Background(), "Phones/a.png")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "frame" {
		t.Errorf("Unexpected content %q", data)
	}

	if _, err := store.Open(context.Background(), "Phones/missing.png"); !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable, got %v", err)
	}
	if _, err := store.Open(context.Background(), "../escape.png"); !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable for escaping path, got %v", err)
	}
}

type recordingProgress struct {
	fractions []float64
	completed []string
	failed    []string
}

func (p *recordingProgress) OnProgress(_ string, fraction float64) {
	p.fractions = append(p.fractions, fraction)
}

func (p *recordingProgress) OnComplete(relPath, _ string) {
	p.completed = append(p.completed, relPath)
}

func (p *recordingProgress) OnError(relPath string, _ error) {
	p.failed = append(p.failed, relPath)
}

func TestCachedStoreDownloadsOnce(t *testing.T) {
	frame := createTestPNG(t, 20, 20)
	var hits atomic.Int32
	var gotPath atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath.Store(r.URL.Path)
		w.Header().Set("Content-Length", strconv.Itoa(len(frame)))
		w.Write(frame)
	}))
	defer server.Close()

	progress := &recordingProgress{}
	cacheDir := t.TempDir()
	store := NewCachedStore(cacheDir, server.URL+"/frames", progress)

	for i := 0; i < 2; i++ {
		rc, err := store.Open(context.Background(), "Phones/Apple iPhone 6s/Gold.png")
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(data, frame) {
			t.Fatal("cached frame differs from served frame")
		}
	}

	if hits.Load() != 1 {
		t.Errorf("Expected 1 download, got %d", hits.Load())
	}
	if p, _ := gotPath.Load().(string); p != "/frames/Phones/Apple iPhone 6s/Gold.png" {
		t.Errorf("Unexpected request path %q", p)
	}
	if len(progress.completed) != 1 || len(progress.failed) != 0 {
		t.Errorf("Unexpected progress events: %+v", progress)
	}
	if n := len(progress.fractions); n == 0 || progress.fractions[n-1] != 1 {
		t.Errorf("Expected progress to reach 1, got %v", progress.fractions)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "Phones", "Apple iPhone 6s", "Gold.png")); err != nil {
		t.Errorf("Expected cached file: %v", err)
	}
}

func TestCachedStoreRemovesPartialDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("truncated"))
	}))
	defer server.Close()

	progress := &recordingProgress{}
	cacheDir := t.TempDir()
	store := NewCachedStore(cacheDir, server.URL, progress)

	_, err := store.Open(context.Background(), "Phones/partial.png")
	if !errors.Is(err, types.ErrAssetUnavailable) {
		t.Fatalf("Expected ErrAssetUnavailable, got %v", err)
	}
	for _, name := range []string{"partial.png", "partial.png.tmp"} {
		if _, err := os.Stat(filepath.Join(cacheDir, "Phones", name)); !os.IsNotExist(err) {
			t.Errorf("Expected no %s after failed download, stat err = %v", name, err)
		}
	}
	if len(progress.failed) != 1 {
		t.Errorf("Expected one error event, got %+v", progress)
	}
}

func TestCachedStoreKeepsCompleteCopyOnFailedRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("truncated"))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	path := filepath.Join(cacheDir, "a.png")
	store := NewCachedStore(cacheDir, server.URL, nil)

	// a failed download never leaves anything at the final path
	if err := store.download(context.Background(), "a.png", path); err == nil {
		t.Fatal("Expected truncated download to fail")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected nothing at %s, stat err = %v", path, err)
	}

	if err := os.WriteFile(path, []byte("complete"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.download(context.Background(), "a.png", path); err == nil {
		t.Fatal("Expected truncated download to fail")
	}
	if data, _ := os.ReadFile(path); string(data) != "complete" {
		t.Errorf("Expected existing copy untouched, got %q", data)
	}
}

func TestEnsureCatalog(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/frames/frames.json" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	store := NewCachedStore(cacheDir, server.URL+"/frames/", nil)

	for i := 0; i < 2; i++ {
		path, err := store.EnsureCatalog(context.Background())
		if err != nil {
			t.Fatalf("EnsureCatalog failed: %v", err)
		}
		if path != filepath.Join(cacheDir, CatalogFile) {
			t.Errorf("Unexpected catalog path %s", path)
		}
		if data, _ := os.ReadFile(path); string(data) != "[]" {
			t.Errorf("Unexpected catalog contents %q", data)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 catalog download, got %d", hits.Load())
	}
}

func TestEnsureCatalogUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	cacheDir := t.TempDir()
	if _, err := NewCachedStore(cacheDir, server.URL, nil).EnsureCatalog(context.Background()); !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable, got %v", err)
	}
	if _, err := NewCachedStore(cacheDir, "", nil).EnsureCatalog(context.Background()); !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable without base URL, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, CatalogFile)); !os.IsNotExist(err) {
		t.Errorf("Expected no catalog file, stat err = %v", err)
	}
}

func TestLogProgressReportsSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := os.WriteFile(path, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	p := LogProgress{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	p.OnComplete("Phones/frame.png", path)

	if out := buf.String(); !strings.Contains(out, `size="2.0 KB"`) {
		t.Errorf("Expected size in log line, got %q", out)
	}
}

func TestCachedStoreHTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	cacheDir := t.TempDir()
	store := NewCachedStore(cacheDir, server.URL, nil)

	if _, err := store.Open(context.Background(), "Phones/missing.png"); !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "Phones", "missing.png")); !os.IsNotExist(err) {
		t.Error("Expected no file after failed download")
	}
}

func TestCachedStoreWithoutBaseURL(t *testing.T) {
	store := NewCachedStore(t.TempDir(), "", nil)
	if _, err := store.Open(context.Background(), "a.png"); !errors.Is(err, types.ErrAssetUnavailable) {
		t.Errorf("Expected ErrAssetUnavailable, got %v", err)
	}
}

func TestScreenerOptions(t *testing.T) {
	options := screenerOptions(ScreenshotOptions{
		Width:     375,
		Height:    667,
		UserAgent: MobileUserAgent,
		Delay:     1500 * time.Millisecond,
	})
	if options.CaptureWidth != 375 || options.CaptureHeight != 667 {
		t.Errorf("Expected 375x667 capture, got %dx%d", options.CaptureWidth, options.CaptureHeight)
	}
	if options.UserAgent != MobileUserAgent {
		t.Errorf("Unexpected user agent %q", options.UserAgent)
	}
	if options.DelayBetweenCapture != 2 {
		t.Errorf("Expected delay rounded up to 2s, got %d", options.DelayBetweenCapture)
	}

	defaults := screenerOptions(ScreenshotOptions{Width: 320, Height: 480})
	if defaults.DelayBetweenCapture != 0 {
		t.Errorf("Expected no delay, got %d", defaults.DelayBetweenCapture)
	}
	if defaults.CaptureWidth != 320 || defaults.CaptureHeight != 480 {
		t.Errorf("Expected 320x480 capture, got %dx%d", defaults.CaptureWidth, defaults.CaptureHeight)
	}
}
