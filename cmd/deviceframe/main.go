package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/menta2k/deviceframe"
	"github.com/menta2k/deviceframe/internal/config"
	"github.com/menta2k/deviceframe/internal/utils"
	"github.com/menta2k/deviceframe/pkg/assets"
	"github.com/menta2k/deviceframe/pkg/catalog"
	"github.com/menta2k/deviceframe/pkg/processing"
	"github.com/menta2k/deviceframe/pkg/types"
)

func main() {
	var configPath, query, device string
	var catalogPath, bundleDir, cacheDir, framesURL string
	var outDir, format string
	var quality, workers int
	var lossless, list, debug, version bool
	var delay float64

	flag.StringVar(&configPath, "config", "", "config file (.json/.yaml), default "+config.GetConfigPath())
	flag.StringVar(&query, "frame", "", "frame search terms, e.g. \"iphone 6s gold\"")
	flag.StringVar(&device, "device", "", "use every frame of this device")
	flag.StringVar(&catalogPath, "catalog", "", "frames.json catalog path")
	flag.StringVar(&bundleDir, "bundle", "", "local frame bundle directory (no downloads)")
	flag.StringVar(&cacheDir, "cache-dir", "", "frame download cache directory")
	flag.StringVar(&framesURL, "frames-url", "", "base URL frames are downloaded from")
	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&format, "format", "", "output format: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")
	flag.Float64Var(&delay, "delay", 0, "delay webpage capturing in seconds")
	flag.IntVar(&workers, "workers", 0, "number of images framed concurrently")
	flag.BoolVar(&list, "list", false, "list matching frames and exit")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.BoolVar(&version, "version", false, "print version and exit")
	flag.Parse()

	if version {
		fmt.Println(deviceframe.GetVersion())
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "catalog":
			cfg.Frames.Catalog = catalogPath
		case "bundle":
			cfg.Frames.BundleDir = bundleDir
		case "cache-dir":
			cfg.Cache.Dir = cacheDir
		case "frames-url":
			cfg.Frames.BaseURL = framesURL
		case "out":
			cfg.Output.OutputDir = outDir
		case "format":
			cfg.Output.Format = format
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "delay":
			cfg.Screenshot.DelaySeconds = delay
		case "workers":
			cfg.Frames.Workers = workers
		}
	})
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.Logging.Level)
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store := frameStore(cfg, logger)
	catalogPath = cfg.CatalogPath()
	if cached, ok := store.(*assets.CachedStore); ok && cfg.Frames.Catalog == "" {
		if catalogPath, err = cached.EnsureCatalog(ctx); err != nil {
			logger.Error("failed to fetch frame catalog", "url", cfg.Frames.BaseURL, "error", err)
			os.Exit(1)
		}
	}

	cat, err := catalog.Load(catalogPath)
	if err != nil {
		logger.Error("failed to load frame catalog (build one with parse-frames)", "path", catalogPath, "error", err)
		os.Exit(1)
	}

	frames := selectFrames(cat, query, device, list)
	if list {
		for _, rec := range frames {
			fmt.Printf("%-45s %s\n", rec.DisplayName(), rec.RelPath)
		}
		return
	}
	if len(frames) == 0 {
		logger.Error("no frames selected; use -frame or -device (see -list)")
		os.Exit(1)
	}

	files, urls, err := utils.ExpandInputs(flag.Args())
	if err != nil {
		logger.Error("bad input", "error", err)
		os.Exit(1)
	}
	sources := append(files, urls...)
	if len(sources) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s -frame \"iphone 6s\" [-out dir] [-format png|jpg|webp] image.png [*.jpg] [https://example.com]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}

	resolverOpts := []assets.ResolverOption{
		assets.WithLogger(logger),
		assets.WithDelay(time.Duration(cfg.Screenshot.DelaySeconds * float64(time.Second))),
	}
	if len(urls) > 0 {
		resolverOpts = append(resolverOpts, assets.WithScreenshotter(assets.NewScreenerScreenshotter()))
	}

	framer := deviceframe.New(cat, store,
		deviceframe.WithResolver(assets.NewResolver(resolverOpts...)),
		deviceframe.WithWorkers(cfg.Frames.Workers),
		deviceframe.WithLogger(logger),
	)

	processor := processing.NewProcessorWithConfig(processing.Config{
		Quality:  cfg.Output.Quality,
		Lossless: cfg.Output.Lossless,
	})
	ext := processing.Extension(cfg.Output.Format)

	failed := 0
	results := framer.FrameAll(ctx, sources, frames)
	paths := outputPaths(results, cfg.Output.OutputDir, ext)
	for i, res := range results {
		if res.Err != nil {
			logger.Error("framing failed", "error", res.Err)
			failed++
			continue
		}
		path := paths[i]
		if err := processor.SaveImage(res.Image, path); err != nil {
			logger.Error("save failed", "path", path, "error", err)
			failed++
			continue
		}
		logger.Info("wrote", "path", path)
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if utils.FileExists(config.GetConfigPath()) {
		return config.LoadFromFile(config.GetConfigPath())
	}
	return config.Default(), nil
}

func selectFrames(cat *catalog.Catalog, query, device string, all bool) []types.FrameRecord {
	var frames []types.FrameRecord
	switch {
	case device != "":
		frames = cat.ByDevice(device)
	case query != "" || all:
		return cat.Search(query)
	default:
		return nil
	}

	if query == "" {
		return frames
	}
	var matched []types.FrameRecord
	for _, rec := range frames {
		if rec.Matches(query) {
			matched = append(matched, rec)
		}
	}
	return matched
}

// outputPaths names the output file of every result. Names are reserved in
// result order, so a later source sharing a stem gets a -2, -3, ... suffix.
func outputPaths(results []deviceframe.Result, dir, ext string) []string {
	paths := make([]string, len(results))
	used := make(map[string]bool, len(results))
	for i, res := range results {
		base := utils.GenerateOutputFilename(res.Source, res.Frame.DisplayName(), dir, ext)
		path := base
		for n := 2; used[path]; n++ {
			path = strings.TrimSuffix(base, "."+ext) + "-" + strconv.Itoa(n) + "." + ext
		}
		used[path] = true
		paths[i] = path
	}
	return paths
}

func frameStore(cfg *config.Config, logger *slog.Logger) assets.FrameStore {
	if cfg.Frames.BundleDir != "" {
		return assets.DirStore{Dir: cfg.Frames.BundleDir}
	}
	return assets.NewCachedStore(cfg.Cache.Dir, cfg.Frames.BaseURL, assets.LogProgress{Logger: logger})
}
