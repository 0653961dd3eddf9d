package datasets

import (
	"fmt"
	"log/slog"

	"github.com/Noofbiz/frameset/imageio"
	"github.com/Noofbiz/frameset/logging"
	"github.com/Noofbiz/frameset/metadata"
	"github.com/Noofbiz/frameset/tiling"
	"github.com/Noofbiz/frameset/transform"
)

// DefaultPhase is used when FrameConfig.Phase is empty.
const DefaultPhase = "train"

// FrameConfig holds the immutable parameters of a FrameDataset.
type FrameConfig struct {
	// Phase selects the metadata rows ("train", "test", "validation", ...).
	Phase string

	// ImageSize is the size every image is resized to before tiling.
	ImageSize tiling.Size
	// FrameSize is the size of one frame.
	FrameSize tiling.Size
	// OverlaySize is the overlap between neighbouring frames.
	OverlaySize tiling.Size

	// Boundary decides what happens to frames reaching past the image edge.
	Boundary tiling.Boundary
}

// Geometry validates the frame parameters and builds the frame grid. Errors
// match both ErrConfiguration and tiling.ErrInvalidGeometry.
func (c FrameConfig) Geometry() (*tiling.Geometry, error) {
	geometry, err := tiling.NewGeometry(c.ImageSize, c.FrameSize, c.OverlaySize, c.Boundary)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return geometry, nil
}

// FrameDataset presents every overlapping frame of every image in one phase
// as a flat, randomly addressable sequence of (tile, label) pairs.
//
// Flat index i maps to image row i / FramesPerImage() and frame
// i % FramesPerImage() within that image. Images are decoded on every
// GetItem call unless the loader caches them.
//
// A FrameDataset never mutates its state after construction; GetItem is safe
// for concurrent use as long as the loader and transform are.
type FrameDataset struct {
	table          metadata.Table
	phase          string
	geometry       *tiling.Geometry
	framesPerImage int
	loader         imageio.Loader
	transform      transform.Transform
	logger         *slog.Logger
}

// Option customises a FrameDataset.
type Option func(*FrameDataset)

// WithTransform applies t to every extracted frame.
func WithTransform(t transform.Transform) Option {
	return func(d *FrameDataset) { d.transform = t }
}

// WithLogger sets the logger used at construction time.
func WithLogger(l *slog.Logger) Option {
	return func(d *FrameDataset) { d.logger = l }
}

// NewFrameDataset filters table down to cfg.Phase and prepares the frame
// grid. A nil loader reads images from the local filesystem.
func NewFrameDataset(table metadata.Table, cfg FrameConfig, loader imageio.Loader, opts ...Option) (*FrameDataset, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: metadata table is nil", ErrConfiguration)
	}
	phase := cfg.Phase
	if phase == "" {
		phase = DefaultPhase
	}

	geometry, err := cfg.Geometry()
	if err != nil {
		return nil, err
	}
	framesPerImage := geometry.FramesPerImage()
	if framesPerImage <= 0 {
		return nil, fmt.Errorf("%w: %d frames per image", ErrConfiguration, framesPerImage)
	}

	filtered, err := table.Filter(metadata.ColumnPhase, phase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	if loader == nil {
		loader = imageio.FileLoader{}
	}

	ds := &FrameDataset{
		table:          filtered,
		phase:          phase,
		geometry:       geometry,
		framesPerImage: framesPerImage,
		loader:         loader,
		logger:         logging.Discard(),
	}
	for _, opt := range opts {
		opt(ds)
	}

	ds.logger.Debug("frame dataset ready",
		"phase", phase,
		"images", filtered.Len(),
		"columns", geometry.Columns(),
		"rows", geometry.Rows(),
		"frames_per_image", framesPerImage,
		"len", ds.Len(),
		"boundary", geometry.Boundary.String(),
	)
	return ds, nil
}

// Len returns the number of frames across all images of the phase.
func (d *FrameDataset) Len() int {
	return d.table.Len() * d.framesPerImage
}

// FramesPerImage returns the number of frames cut from each image.
func (d *FrameDataset) FramesPerImage() int { return d.framesPerImage }

// Images returns the number of images in the phase.
func (d *FrameDataset) Images() int { return d.table.Len() }

// Geometry returns the frame grid shared by all images.
func (d *FrameDataset) Geometry() *tiling.Geometry { return d.geometry }

// Phase returns the phase the dataset was filtered on.
func (d *FrameDataset) Phase() string { return d.phase }

// Name returns the name of the dataset.
func (d *FrameDataset) Name() string {
	return fmt.Sprintf("FrameDataset(%s)", d.phase)
}

// Locate splits a flat index into its image row and frame index.
func (d *FrameDataset) Locate(idx int) (row, frame int, err error) {
	if idx < 0 || idx >= d.Len() {
		return 0, 0, fmt.Errorf("%w: index %d out of range [0, %d)", ErrIndexOutOfRange, idx, d.Len())
	}
	return idx / d.framesPerImage, idx % d.framesPerImage, nil
}

// Record returns the metadata row backing flat index idx.
func (d *FrameDataset) Record(idx int) (metadata.Record, error) {
	row, _, err := d.Locate(idx)
	if err != nil {
		return metadata.Record{}, err
	}
	return d.table.Row(row), nil
}

// GetItem loads the image behind idx, cuts out its frame, applies the
// transform if one is configured and returns the frame with the row label.
//
// Loader errors are returned unchanged.
func (d *FrameDataset) GetItem(idx int) (*tiling.Tile, string, error) {
	row, frame, err := d.Locate(idx)
	if err != nil {
		return nil, "", err
	}
	rec := d.table.Row(row)

	img, err := d.loader.Load(rec.Image, d.geometry.Image)
	if err != nil {
		return nil, "", err
	}
	tile := d.geometry.Extract(img, frame)

	if d.transform != nil {
		tile, err = d.transform.Apply(tile)
		if err != nil {
			return nil, "", fmt.Errorf("transform of frame %d (image %s): %w", idx, rec.Image, err)
		}
	}
	return tile, rec.Label, nil
}

// Example returns the frame pixels and the numeric label of idx. It fails
// when the label is not a number.
func (d *FrameDataset) Example(idx int) (inputs []float32, labels []float32, err error) {
	tile, label, err := d.GetItem(idx)
	if err != nil {
		return nil, nil, err
	}
	v, err := parseFloat32(label)
	if err != nil {
		return nil, nil, fmt.Errorf("label of example %d: %w", idx, err)
	}
	return tile.Pix, []float32{v}, nil
}
