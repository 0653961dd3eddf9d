// Package datasets turns a phase of an image metadata table into a flat
// sequence of overlapping grayscale frames for model training.
//
// Layout and intended usage:
//
// FrameDataset
//   - Holds the metadata rows of one phase and the frame grid shared by all
//     images (every image is resized to the same size before tiling).
//   - Len() is images × frames per image; GetItem(i) decodes the image behind
//     i, cuts out its frame and returns it with the row label.
//   - Images are loaded lazily on every request; wrap the loader in an
//     imageio.CachedLoader to reuse decoded images across frames.
//
// Batcher
//   - Walks any Source in sequential or shuffled epochs, loads each batch in
//     parallel and converts it into gomlx tensors.
package datasets

import "github.com/Noofbiz/frameset/tiling"

// Source is the random-access surface consumed by a training loop.
type Source interface {
	Len() int
	GetItem(idx int) (tile *tiling.Tile, label string, err error)
}

// Dataset is the surface FrameDataset offers to training code that works on
// plain float32 examples.
type Dataset interface {
	Source
	Example(idx int) (inputs []float32, labels []float32, err error)
}

var _ Dataset = (*FrameDataset)(nil)
