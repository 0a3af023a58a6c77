package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/menta2k/deviceframe/internal/utils"
	"github.com/menta2k/deviceframe/pkg/geometry"
	"github.com/menta2k/deviceframe/pkg/processing"
	"github.com/menta2k/deviceframe/pkg/types"
)

var shadowPattern = regexp.MustCompile(`(?i)shadow`)

// Builder extracts screen geometry from a tree of frame images laid out as
// category/device/name.png and assembles frame records.
type Builder struct {
	// Workers is the number of frames processed concurrently, NumCPU when <= 0.
	Workers int
	// Limit processes only the first N frames in path order when > 0.
	Limit int
	// PixelRatios maps device name to device pixel ratio.
	PixelRatios map[string]float64
	Logger      *slog.Logger

	// open decodes one frame file; replaced in tests
	open func(path string) (image.Image, error)
}

// Result is the outcome of a catalog build
type Result struct {
	Catalog  *Catalog
	Failures []types.Failure
}

type workItem struct {
	path    string
	relPath string
}

// NewBuilder creates a Builder with default settings
func NewBuilder(pixelRatios map[string]float64, logger *slog.Logger) *Builder {
	return &Builder{
		PixelRatios: pixelRatios,
		Logger:      logger,
	}
}

// Build walks root and extracts every PNG frame. A frame that fails to
// decode or has no screen is logged and reported in Result.Failures; it
// never aborts the batch. Output order is by relPath regardless of which
// worker finishes first.
func (b *Builder) Build(ctx context.Context, root string) (*Result, error) {
	logger := b.logger()

	files, err := utils.ListFiles(root, ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to list frames in %s: %w", root, err)
	}
	sort.Strings(files)
	if b.Limit > 0 && len(files) > b.Limit {
		files = files[:b.Limit]
	}

	items := make([]workItem, 0, len(files))
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", f, err)
		}
		items = append(items, workItem{path: f, relPath: filepath.ToSlash(rel)})
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.Info("building frame catalog", "root", root, "frames", len(items), "workers", workers)

	workChan := make(chan workItem)
	resultsChan := make(chan types.FrameRecord, len(items))
	errorsChan := make(chan types.Failure, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				rec, err := b.process(work)
				if err != nil {
					logger.Warn("skipping frame", "path", work.relPath, "error", err)
					errorsChan <- types.Failure{Path: work.relPath, Err: err}
					continue
				}
				logger.Debug("extracted frame", "category", rec.Category, "device", rec.Device,
					"name", rec.Name, "shadow", rec.Shadow, "screen", fmt.Sprintf("%dx%d", rec.Frame.Width, rec.Frame.Height))
				resultsChan <- rec
			}
		}()
	}

	var cancelled error
dispatch:
	for _, item := range items {
		if cancelled = ctx.Err(); cancelled != nil {
			break
		}
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break dispatch
		case workChan <- item:
		}
	}
	close(workChan)
	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	if cancelled != nil {
		return nil, cancelled
	}

	records := make([]types.FrameRecord, 0, len(items))
	for rec := range resultsChan {
		records = append(records, rec)
	}
	var failures []types.Failure
	for f := range errorsChan {
		failures = append(failures, f)
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })

	logger.Info("frame catalog built", "frames", len(records), "failures", len(failures))

	return &Result{Catalog: New(records), Failures: failures}, nil
}

func (b *Builder) process(work workItem) (types.FrameRecord, error) {
	open := b.open
	if open == nil {
		open = processing.NewProcessor().LoadImage
	}

	img, err := open(work.path)
	if err != nil {
		return types.FrameRecord{}, err
	}
	rect, err := geometry.Extract(img)
	if err != nil {
		return types.FrameRecord{}, err
	}
	return b.Describe(work.relPath, rect), nil
}

// Describe derives the record metadata for a frame at relPath
// (category/device/name.png) with the given screen rectangle.
func (b *Builder) Describe(relPath string, rect types.Rect) types.FrameRecord {
	dir, file := pathSplit(relPath)
	name := strings.TrimSuffix(file, filepath.Ext(file))

	var category, device string
	parts := strings.Split(dir, "/")
	if len(parts) > 0 {
		category = parts[0]
	}
	if len(parts) > 1 {
		device = parts[1]
	}

	rec := types.FrameRecord{
		RelPath:  relPath,
		Category: category,
		Device:   device,
		Frame:    rect,
		Name:     name,
		Shadow:   shadowPattern.MatchString(relPath),
		Tags:     types.TagsFromName(name),
	}
	if ratio, ok := b.PixelRatios[device]; ok {
		rec.PixelRatio = &ratio
	}
	return rec
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pathSplit(relPath string) (string, string) {
	i := strings.LastIndex(relPath, "/")
	if i < 0 {
		return "", relPath
	}
	return relPath[:i], relPath[i+1:]
}

// ParsePixelRatios reads a JSON array of {"name", "pixelRatio"} rows into a
// device name lookup table.
func ParsePixelRatios(r io.Reader) (map[string]float64, error) {
	var rows []types.PixelRatio
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse pixel ratios: %w", err)
	}
	table := make(map[string]float64, len(rows))
	for _, row := range rows {
		if row.PixelRatio <= 0 {
			continue
		}
		// first entry wins
		if _, ok := table[row.Name]; !ok {
			table[row.Name] = row.PixelRatio
		}
	}
	return table, nil
}

// LoadPixelRatios reads a pixel ratio table from a file
func LoadPixelRatios(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pixel ratios: %w", err)
	}
	defer f.Close()

	return ParsePixelRatios(f)
}
