package assets

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/menta2k/deviceframe/internal/utils"
	"github.com/menta2k/deviceframe/pkg/types"
)

// CatalogFile is the catalog name inside a bundle or cache directory
const CatalogFile = "frames.json"

// FrameStore opens frame images by their catalog relPath
type FrameStore interface {
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
}

// Progress receives frame download notifications
type Progress interface {
	OnProgress(relPath string, fraction float64)
	OnComplete(relPath, path string)
	OnError(relPath string, err error)
}

// DirStore reads frames from a local bundle directory
type DirStore struct {
	Dir string
}

// Open opens relPath inside the bundle directory
func (s DirStore) Open(_ context.Context, relPath string) (io.ReadCloser, error) {
	path, err := localPath(s.Dir, relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrAssetUnavailable, err)
	}
	return f, nil
}

// CachedStore serves frames from a cache directory, downloading missing
// frames from BaseURL on first use.
type CachedStore struct {
	Dir      string
	BaseURL  string
	Client   *http.Client
	Progress Progress

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCachedStore creates a store caching frames from baseURL under dir
func NewCachedStore(dir, baseURL string, progress Progress) *CachedStore {
	return &CachedStore{
		Dir:      dir,
		BaseURL:  baseURL,
		Client:   &http.Client{Timeout: 5 * time.Minute},
		Progress: progress,
	}
}

// Open returns the cached frame, downloading it first when the cache has
// no non-empty copy.
func (s *CachedStore) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	path, err := localPath(s.Dir, relPath)
	if err != nil {
		return nil, err
	}

	lock := s.lock(relPath)
	lock.Lock()
	defer lock.Unlock()

	if !utils.FileExists(path) {
		if err := s.download(ctx, relPath, path); err != nil {
			if s.Progress != nil {
				s.Progress.OnError(relPath, err)
			}
			return nil, err
		}
		if s.Progress != nil {
			s.Progress.OnComplete(relPath, path)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrAssetUnavailable, err)
	}
	return f, nil
}

func (s *CachedStore) lock(relPath string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[relPath]
	if !ok {
		l = &sync.Mutex{}
		s.locks[relPath] = l
	}
	return l
}

// EnsureCatalog returns the cached catalog path, downloading CatalogFile
// from BaseURL when the cache has no copy yet.
func (s *CachedStore) EnsureCatalog(ctx context.Context) (string, error) {
	path := filepath.Join(s.Dir, CatalogFile)

	lock := s.lock(CatalogFile)
	lock.Lock()
	defer lock.Unlock()

	if utils.FileExists(path) {
		return path, nil
	}
	if err := s.download(ctx, CatalogFile, path); err != nil {
		return "", err
	}
	return path, nil
}

func (s *CachedStore) download(ctx context.Context, relPath, path string) error {
	if s.BaseURL == "" {
		return fmt.Errorf("%w: %s is not cached and no download URL is configured", types.ErrAssetUnavailable, relPath)
	}

	frameURL, err := url.JoinPath(s.BaseURL, relPath)
	if err != nil {
		return fmt.Errorf("invalid frame URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, frameURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", types.ErrAssetUnavailable, frameURL, resp.StatusCode)
	}

	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	// readers only ever see complete files
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	var w io.Writer = f
	if s.Progress != nil && resp.ContentLength > 0 {
		w = &progressWriter{w: f, total: resp.ContentLength, relPath: relPath, progress: s.Progress}
	}

	_, err = io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: download of %s failed: %w", types.ErrAssetUnavailable, relPath, err)
	}
	return nil
}

type progressWriter struct {
	w        io.Writer
	total    int64
	written  int64
	relPath  string
	progress Progress
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)
	p.progress.OnProgress(p.relPath, float64(p.written)/float64(p.total))
	return n, err
}

func localPath(dir, relPath string) (string, error) {
	rel := filepath.FromSlash(relPath)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: frame path %q escapes the bundle", types.ErrAssetUnavailable, relPath)
	}
	return filepath.Join(dir, rel), nil
}

// LogProgress reports download progress to a logger
type LogProgress struct {
	Logger *slog.Logger
}

func (p LogProgress) OnProgress(relPath string, fraction float64) {
	p.Logger.Debug("downloading frame", "frame", relPath, "progress", fmt.Sprintf("%.0f%%", fraction*100))
}

func (p LogProgress) OnComplete(relPath, path string) {
	attrs := []any{"frame", relPath, "path", path}
	if info, err := os.Stat(path); err == nil {
		attrs = append(attrs, "size", utils.FormatFileSize(info.Size()))
	}
	p.Logger.Info("frame downloaded", attrs...)
}

func (p LogProgress) OnError(relPath string, err error) {
	p.Logger.Error("frame download failed", "frame", relPath, "error", err)
}
