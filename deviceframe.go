// Package deviceframe places screenshots inside photographic device frames.
//
// A frame bundle is a tree of PNG device images whose screen area is
// transparent. The catalog package records where each screen is; this
// package resolves a source (image file, image URL or webpage), fits it to a
// frame's screen and composites the two.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/menta2k/deviceframe"
//		"github.com/menta2k/deviceframe/pkg/assets"
//		"github.com/menta2k/deviceframe/pkg/catalog"
//		"github.com/menta2k/deviceframe/pkg/processing"
//	)
//
//	func main() {
//		cat, err := catalog.Load("frames/frames.json")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		framer := deviceframe.New(cat, assets.DirStore{Dir: "frames"})
//		for _, rec := range framer.Find("iphone 6s gold") {
//			img, err := framer.Frame(context.Background(), "screenshot.png", rec)
//			if err != nil {
//				log.Fatal(err)
//			}
//			if err := processing.NewProcessor().SaveImage(img, deviceframe.OutputName("screenshot.png", rec)); err != nil {
//				log.Fatal(err)
//			}
//		}
//	}
//
// The package is built from these components:
//
// 1. Geometry (pkg/geometry): finds the transparent screen of a frame
// 2. Catalog (pkg/catalog): frame records and the bundle builder
// 3. Compositor (pkg/compositor): fits a screenshot to a screen and overlays the frame
// 4. Assets (pkg/assets): source resolution and frame stores
package deviceframe

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"github.com/menta2k/deviceframe/internal/utils"
	"github.com/menta2k/deviceframe/pkg/assets"
	"github.com/menta2k/deviceframe/pkg/catalog"
	"github.com/menta2k/deviceframe/pkg/compositor"
	"github.com/menta2k/deviceframe/pkg/processing"
	"github.com/menta2k/deviceframe/pkg/types"
)

// Version of the deviceframe library
const Version = "1.0.0"

// Framer composites sources into catalog frames
type Framer struct {
	catalog    *catalog.Catalog
	store      assets.FrameStore
	resolver   *assets.Resolver
	compositor *compositor.Compositor
	processor  *processing.Processor
	workers    int
	logger     *slog.Logger
}

// Option configures a Framer
type Option func(*Framer)

// WithResolver sets how sources are loaded
func WithResolver(r *assets.Resolver) Option {
	return func(f *Framer) { f.resolver = r }
}

// WithCompositor sets the compositor
func WithCompositor(c *compositor.Compositor) Option {
	return func(f *Framer) { f.compositor = c }
}

// WithWorkers sets the number of pairs framed concurrently by FrameAll
func WithWorkers(n int) Option {
	return func(f *Framer) { f.workers = n }
}

// WithLogger sets the framer logger
func WithLogger(l *slog.Logger) Option {
	return func(f *Framer) { f.logger = l }
}

// New creates a Framer over a catalog and the store holding its frame images
func New(cat *catalog.Catalog, store assets.FrameStore, opts ...Option) *Framer {
	f := &Framer{
		catalog:    cat,
		store:      store,
		resolver:   assets.NewResolver(),
		compositor: compositor.New(),
		processor:  processing.NewProcessor(),
		workers:    runtime.NumCPU(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.workers <= 0 {
		f.workers = 1
	}
	return f
}

// Result is the outcome of framing one source with one frame
type Result struct {
	Source string
	Frame  types.FrameRecord
	Image  *image.NRGBA
	Err    error
}

// Catalog returns the frame catalog
func (f *Framer) Catalog() *catalog.Catalog {
	return f.catalog
}

// Find returns the catalog frames matching every term of query
func (f *Framer) Find(query string) []types.FrameRecord {
	return f.catalog.Search(query)
}

// Frame resolves source, loads the frame image of rec and composites them.
// Errors are *types.FrameError.
func (f *Framer) Frame(ctx context.Context, source string, rec types.FrameRecord) (*image.NRGBA, error) {
	fail := func(op string, err error) error {
		return &types.FrameError{Op: op, Source: source, Frame: rec.RelPath, Err: err}
	}

	src, err := f.resolver.Resolve(ctx, source, rec)
	if err != nil {
		return nil, fail("resolve", err)
	}

	frame, err := f.loadFrame(ctx, rec)
	if err != nil {
		return nil, fail("load frame", err)
	}

	f.logger.Debug("compositing", "source", source, "frame", rec.DisplayName(),
		"source_size", fmt.Sprintf("%dx%d", src.Bounds().Dx(), src.Bounds().Dy()))

	img, err := f.compositor.Composite(rec, frame, src)
	if err != nil {
		return nil, fail("composite", err)
	}
	return img, nil
}

func (f *Framer) loadFrame(ctx context.Context, rec types.FrameRecord) (image.Image, error) {
	rc, err := f.store.Open(ctx, rec.RelPath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return f.processor.DecodeReader(rc)
}

type job struct {
	index  int
	source string
	rec    types.FrameRecord
}

// FrameAll frames every source with every record. Each pair succeeds or
// fails on its own; results are ordered by source, then frame relPath.
func (f *Framer) FrameAll(ctx context.Context, sources []string, records []types.FrameRecord) []Result {
	results := make([]Result, len(sources)*len(records))
	if len(results) == 0 {
		return results
	}

	workers := min(f.workers, len(results))
	f.logger.Info("framing", "sources", len(sources), "frames", len(records), "workers", workers)

	jobs := make(chan job)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := Result{Source: j.source, Frame: j.rec}
				if err := ctx.Err(); err != nil {
					res.Err = &types.FrameError{Op: "frame", Source: j.source, Frame: j.rec.RelPath, Err: err}
				} else {
					res.Image, res.Err = f.Frame(ctx, j.source, j.rec)
				}
				if res.Err != nil {
					f.logger.Warn("framing failed", "source", j.source, "frame", j.rec.RelPath, "error", res.Err)
				}
				results[j.index] = res
			}
		}()
	}

	i := 0
	for _, source := range sources {
		for _, rec := range records {
			jobs <- job{index: i, source: source, rec: rec}
			i++
		}
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Source != results[b].Source {
			return results[a].Source < results[b].Source
		}
		return results[a].Frame.RelPath < results[b].Frame.RelPath
	})
	return results
}

// OutputName is the file name for source framed with rec:
// "<source stem>-<display name>.png", sanitized.
func OutputName(source string, rec types.FrameRecord) string {
	return utils.GenerateOutputFilename(source, rec.DisplayName(), "", "png")
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
