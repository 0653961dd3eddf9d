// Command inspect opens a frame dataset described by a YAML config, reports
// its size, dumps sample frames as PNG files, plots frame intensity
// statistics and converts one batch into gomlx tensors.
//
// Usage:
//
//	go run ./cmd/inspect -config frameset.yaml -dump 8 -out frames
//	go run ./cmd/inspect -write-config frameset.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Noofbiz/frameset/config"
	"github.com/Noofbiz/frameset/datasets"
	"github.com/Noofbiz/frameset/logging"
	"github.com/Noofbiz/frameset/tiling"
)

func main() {
	configPath := flag.String("config", "frameset.yaml", "path to the YAML configuration (defaults are used when missing)")
	phase := flag.String("phase", "", "override dataset.phase from the config")
	dump := flag.Int("dump", 0, "number of frames to write as PNG files")
	outDir := flag.String("out", "frames", "output directory for dumped frames and plots")
	hist := flag.String("hist", "", "if set, write a histogram of frame mean intensities to this PNG path")
	statsLimit := flag.Int("stats-limit", 2048, "maximum number of frames sampled for statistics (0 = all)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	writeConfig := flag.String("write-config", "", "write the default configuration to this path and exit")
	flag.Parse()

	logger, err := logging.New(*logLevel, *logFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(2)
	}

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			fatal(logger, "failed to write default config", err)
		}
		logger.Info("wrote default config", "path", *writeConfig)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fatal(logger, "failed to load config", err)
	}
	if *phase != "" {
		cfg.Dataset.Phase = *phase
	}

	ds, err := cfg.Open(logger)
	if err != nil {
		fatal(logger, "failed to open dataset", err)
	}
	g := ds.Geometry()
	logger.Info("dataset opened",
		"name", ds.Name(),
		"images", ds.Images(),
		"frames_per_image", ds.FramesPerImage(),
		"grid", fmt.Sprintf("%dx%d", g.Columns(), g.Rows()),
		"len", ds.Len(),
	)
	if ds.Len() == 0 {
		logger.Warn("no frames in phase", "phase", ds.Phase())
		return
	}

	ctx := context.Background()

	if *dump > 0 {
		n := min(*dump, ds.Len())
		if err := dumpFrames(ds, n, *outDir); err != nil {
			fatal(logger, "failed to dump frames", err)
		}
		logger.Info("dumped frames", "count", n, "dir", *outDir)
	}

	if *hist != "" {
		limit := ds.Len()
		if *statsLimit > 0 {
			limit = min(limit, *statsLimit)
		}
		stats, err := datasets.TileStats(ctx, ds, sampleIndices(ds.Len(), limit))
		if err != nil {
			fatal(logger, "failed to compute frame statistics", err)
		}
		if err := plotStats(stats, *hist); err != nil {
			fatal(logger, "failed to plot frame statistics", err)
		}
		logger.Info("wrote statistics plot", "path", *hist, "frames", len(stats))
	}

	if err := yieldBatch(logger, cfg.Batcher(ds)); err != nil {
		fatal(logger, "failed to build batch", err)
	}
}

// yieldBatch builds one batch of tensors and logs its shapes. An exhausted
// epoch is only a warning.
func yieldBatch(logger *slog.Logger, b *datasets.Batcher) error {
	_, inputs, labels, err := b.Yield()
	switch {
	case err == io.EOF:
		logger.Warn("batcher produced no batch", "drop_last", b.DropLast, "batch_size", b.BatchSize)
		return nil
	case err != nil:
		return err
	}
	logger.Info("built batch",
		"inputs", inputs[0].Shape().String(),
		"labels", labels[0].Shape().String(),
	)
	return nil
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

// sampleIndices spreads n indices evenly over [0, total).
func sampleIndices(total, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i * total / n
	}
	return out
}

// dumpFrames writes the first n frames of ds to dir as frame_<i>.png.
func dumpFrames(ds *datasets.FrameDataset, n int, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		tile, _, err := ds.GetItem(i)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i))
		if err := writePNG(path, stretch(tile)); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, tile *tiling.Tile) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, tile.Gray()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
