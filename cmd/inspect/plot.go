package main

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/Noofbiz/frameset/datasets"
	"github.com/Noofbiz/frameset/tiling"
)

// stretch maps the tile's value range onto [0, 255] so transformed frames
// stay visible when written as 8-bit images. Constant tiles become black.
func stretch(t *tiling.Tile) *tiling.Tile {
	out := t.Clone()
	if len(out.Pix) == 0 {
		return out
	}
	x := make([]float64, len(out.Pix))
	for i, v := range out.Pix {
		x[i] = float64(v)
	}
	lo, hi := floats.Min(x), floats.Max(x)
	if hi == lo {
		for i := range out.Pix {
			out.Pix[i] = 0
		}
		return out
	}
	floats.AddConst(-lo, x)
	floats.Scale(255/(hi-lo), x)
	for i, v := range x {
		out.Pix[i] = float32(v)
	}
	return out
}

// plotStats writes a two panel PNG: a histogram of frame means and a
// scatter of mean against standard deviation.
func plotStats(stats []datasets.TileStat, outPath string) error {
	means := make(plotter.Values, len(stats))
	spread := make(plotter.XYs, len(stats))
	for i, s := range stats {
		means[i] = s.Mean
		spread[i] = plotter.XY{X: s.Mean, Y: s.StdDev}
	}

	h := plot.New()
	h.Title.Text = "Frame mean intensity"
	h.X.Label.Text = "mean"
	h.Y.Label.Text = "frames"
	bins := min(max(len(stats)/8, 1), 64)
	hist, err := plotter.NewHist(means, bins)
	if err != nil {
		return err
	}
	hist.FillColor = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	h.Add(hist, plotter.NewGrid())

	s := plot.New()
	s.Title.Text = "Frame mean vs standard deviation"
	s.X.Label.Text = "mean"
	s.Y.Label.Text = "std-dev"
	sc, err := plotter.NewScatter(spread)
	if err != nil {
		return err
	}
	sc.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	sc.GlyphStyle.Radius = vg.Points(1.8)
	s.Add(sc, plotter.NewGrid())

	width, height := 12*vg.Inch, 5*vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 1, Cols: 2, PadX: vg.Millimeter, PadY: vg.Millimeter, PadTop: vg.Millimeter, PadBottom: vg.Millimeter, PadLeft: vg.Millimeter, PadRight: vg.Millimeter}
	canvases := plot.Align([][]*plot.Plot{{h, s}}, tiles, dc)
	h.Draw(canvases[0][0])
	s.Draw(canvases[0][1])

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
