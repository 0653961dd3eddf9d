package tiling

import (
	"image"
	"image/color"
	"math"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Tile is a dense float32 pixel block in [height][width][channels] order.
type Tile struct {
	Pix      []float32
	Height   int
	Width    int
	Channels int
}

// NewTile allocates a zeroed tile.
func NewTile(height, width, channels int) *Tile {
	return &Tile{
		Pix:      make([]float32, height*width*channels),
		Height:   height,
		Width:    width,
		Channels: channels,
	}
}

// Shape returns [Height, Width, Channels].
func (t *Tile) Shape() []int {
	return []int{t.Height, t.Width, t.Channels}
}

func (t *Tile) offset(y, x, c int) int {
	return (y*t.Width+x)*t.Channels + c
}

// At returns the value at row y, column x, channel c.
func (t *Tile) At(y, x, c int) float32 {
	return t.Pix[t.offset(y, x, c)]
}

// Set stores v at row y, column x, channel c.
func (t *Tile) Set(y, x, c int, v float32) {
	t.Pix[t.offset(y, x, c)] = v
}

// Clone returns a deep copy of t.
func (t *Tile) Clone() *Tile {
	c := &Tile{
		Pix:      make([]float32, len(t.Pix)),
		Height:   t.Height,
		Width:    t.Width,
		Channels: t.Channels,
	}
	copy(c.Pix, t.Pix)
	return c
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tile) SameShape(o *Tile) bool {
	return t.Height == o.Height && t.Width == o.Width && t.Channels == o.Channels
}

// Tensor converts the tile to a float32 gomlx tensor of shape
// [Height, Width, Channels].
func (t *Tile) Tensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(t.Pix, t.Height, t.Width, t.Channels)
}

// Gray renders channel 0 of the tile as an 8-bit image, rounding and
// clamping values to [0, 255]. Tiles holding normalised data should be
// rescaled first.
func (t *Tile) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			v := math.Round(float64(t.At(y, x, 0)))
			img.SetGray(x, y, color.Gray{Y: uint8(max(0, min(255, v)))})
		}
	}
	return img
}
