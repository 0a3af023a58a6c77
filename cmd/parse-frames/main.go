package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"

	"github.com/menta2k/deviceframe/pkg/catalog"
)

func main() {
	var root, pixelRatios, output string
	var write, debug bool
	var count, parallel int

	flag.StringVar(&root, "root", "", "frame bundle directory (category/device/name.png)")
	flag.StringVar(&pixelRatios, "pixel-ratios", "", "pixel ratio table JSON ([{\"name\", \"pixelRatio\"}])")
	flag.BoolVar(&write, "write", false, "write the catalog to -o")
	flag.StringVar(&output, "o", "", "catalog output path (default <root>/frames.json)")
	flag.IntVar(&count, "count", 0, "process only the first N frames, 0=all")
	flag.IntVar(&parallel, "parallel", 0, "number of workers, 0=NumCPU")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)

	if root == "" {
		fmt.Fprintf(os.Stderr, "usage: %s -root frames/ [-pixel-ratios pixel-ratios.json] [-write] [-o frames.json] [-count N] [-parallel N]\n", filepath.Base(os.Args[0]))
		os.Exit(2)
	}
	if output == "" {
		output = filepath.Join(root, "frames.json")
	}

	var ratios map[string]float64
	if pixelRatios != "" {
		var err error
		ratios, err = catalog.LoadPixelRatios(pixelRatios)
		if err != nil {
			logger.Error("failed to load pixel ratios", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	builder := catalog.NewBuilder(ratios, logger)
	builder.Workers = parallel
	builder.Limit = count

	start := time.Now()
	result, err := builder.Build(ctx, root)
	if err != nil {
		logger.Error("catalog build failed", "error", err)
		os.Exit(1)
	}

	for _, f := range result.Failures {
		logger.Warn("frame skipped", "path", f.Path, "error", f.Err)
	}
	logger.Info("processed frames", "frames", result.Catalog.Len(), "skipped", len(result.Failures),
		"took", time.Since(start).Round(100*time.Millisecond))

	if !write {
		if err := result.Catalog.WriteJSON(os.Stdout); err != nil {
			logger.Error("failed to print catalog", "error", err)
			os.Exit(1)
		}
		fmt.Println()
		return
	}

	if err := result.Catalog.Save(output); err != nil {
		logger.Error("failed to write catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("wrote catalog", "path", output)
}
