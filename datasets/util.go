package datasets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}

// TileStat summarises the pixels of one item.
type TileStat struct {
	Index  int
	Label  string
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// TileStats loads the given items from src and computes per-tile pixel
// statistics. It stops at the first error or when ctx is done.
func TileStats(ctx context.Context, src Source, indices []int) ([]TileStat, error) {
	out := make([]TileStat, 0, len(indices))
	buf := make([]float64, 0)
	for _, idx := range indices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tile, label, err := src.GetItem(idx)
		if err != nil {
			return nil, fmt.Errorf("stats of item %d: %w", idx, err)
		}
		buf = buf[:0]
		for _, v := range tile.Pix {
			buf = append(buf, float64(v))
		}
		st := TileStat{Index: idx, Label: label}
		if len(buf) > 0 {
			st.Mean, st.StdDev = stat.MeanStdDev(buf, nil)
			st.Min, st.Max = floats.Min(buf), floats.Max(buf)
		}
		out = append(out, st)
	}
	return out, nil
}
