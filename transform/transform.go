// Package transform provides tile-to-tile pixel transforms applied by a
// dataset after a frame has been extracted.
//
// Transforms never modify their input tile; each returns a new one.
package transform

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Noofbiz/frameset/tiling"
)

// Transform maps one tile to another.
type Transform interface {
	Apply(t *tiling.Tile) (*tiling.Tile, error)
}

// Func adapts a function to the Transform interface.
type Func func(t *tiling.Tile) (*tiling.Tile, error)

// Apply implements Transform.
func (f Func) Apply(t *tiling.Tile) (*tiling.Tile, error) { return f(t) }

// Compose applies transforms left to right. Nil entries are skipped.
func Compose(ts ...Transform) Transform {
	return Func(func(t *tiling.Tile) (*tiling.Tile, error) {
		out := t
		for i, tr := range ts {
			if tr == nil {
				continue
			}
			next, err := tr.Apply(out)
			if err != nil {
				return nil, fmt.Errorf("transform %d: %w", i, err)
			}
			out = next
		}
		return out, nil
	})
}

// Normalize divides every pixel by scale. Normalize(255) maps 8-bit
// intensities to [0, 1].
func Normalize(scale float32) Transform {
	return Func(func(t *tiling.Tile) (*tiling.Tile, error) {
		if scale == 0 {
			return nil, fmt.Errorf("normalize: zero scale")
		}
		out := t.Clone()
		inv := 1 / scale
		for i := range out.Pix {
			out.Pix[i] *= inv
		}
		return out, nil
	})
}

// Standardize shifts and scales each tile to zero mean and unit standard
// deviation. Constant tiles are only centred.
func Standardize() Transform {
	return Func(func(t *tiling.Tile) (*tiling.Tile, error) {
		x := toFloat64(t.Pix)
		mean, std := stat.MeanStdDev(x, nil)
		floats.AddConst(-mean, x)
		if std > 0 && !math.IsNaN(std) {
			floats.Scale(1/std, x)
		}
		out := tiling.NewTile(t.Height, t.Width, t.Channels)
		for i, v := range x {
			out.Pix[i] = float32(v)
		}
		return out, nil
	})
}

// NoiseTransform adds independent Gaussian noise to every pixel. It is safe
// for concurrent use; calls are serialised on the random source.
type NoiseTransform struct {
	mu   sync.Mutex
	rng  *rand.Rand
	dist distuv.Normal
}

// GaussianNoise returns a transform adding N(0, sigma²) noise, seeded for
// reproducibility.
func GaussianNoise(sigma float64, seed int64) *NoiseTransform {
	return &NoiseTransform{
		rng:  rand.New(rand.NewSource(seed)),
		dist: distuv.Normal{Mu: 0, Sigma: sigma},
	}
}

// Apply implements Transform.
func (n *NoiseTransform) Apply(t *tiling.Tile) (*tiling.Tile, error) {
	out := t.Clone()
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range out.Pix {
		out.Pix[i] += float32(n.sample())
	}
	return out, nil
}

// sample draws by inverse transform so the sequence depends only on the seed.
func (n *NoiseTransform) sample() float64 {
	p := n.rng.Float64()
	for p == 0 {
		p = n.rng.Float64()
	}
	return n.dist.Quantile(p)
}

func toFloat64(pix []float32) []float64 {
	out := make([]float64, len(pix))
	for i, v := range pix {
		out[i] = float64(v)
	}
	return out
}
