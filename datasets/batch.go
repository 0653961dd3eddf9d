package datasets

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"sync"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/frameset/tiling"
)

// Batcher walks a Source in epochs and packs consecutive items into batches.
// Items of a batch are loaded in parallel by up to Workers goroutines.
//
// Batcher implements the gomlx train.Dataset shape (Name, Yield, Reset).
// Its epoch position is guarded by a mutex, but batches are meant to be
// consumed by a single training loop.
type Batcher struct {
	Source Source

	// BatchSize is the maximum number of items per batch. The last batch of
	// an epoch may be smaller.
	BatchSize int

	// Workers bounds concurrent GetItem calls. Zero uses GOMAXPROCS.
	Workers int

	// DropLast skips the trailing partial batch of an epoch.
	DropLast bool

	shuffle bool
	rand    *rand.Rand

	mu    sync.Mutex
	order []int
	next  int
}

// NewBatcher creates a Batcher over src. When shuffle is true each epoch
// visits the items in a new permutation drawn from seed.
func NewBatcher(src Source, batchSize int, shuffle bool, seed int64) *Batcher {
	if batchSize <= 0 {
		batchSize = 32
	}
	b := &Batcher{
		Source:    src,
		BatchSize: batchSize,
		shuffle:   shuffle,
		rand:      rand.New(rand.NewSource(seed)),
	}
	b.Reset()
	return b
}

// Name returns the name of the underlying source.
func (b *Batcher) Name() string {
	if n, ok := b.Source.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "Batcher"
}

// Shuffle reseeds the permutation and restarts the epoch in shuffled order.
func (b *Batcher) Shuffle(seed int64) {
	b.mu.Lock()
	b.rand.Seed(seed)
	b.shuffle = true
	b.mu.Unlock()
	b.Reset()
}

// Reset starts a new epoch.
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.Source.Len()
	if cap(b.order) < n {
		b.order = make([]int, n)
	}
	b.order = b.order[:n]
	for i := range b.order {
		b.order[i] = i
	}
	if b.shuffle {
		b.rand.Shuffle(n, func(i, j int) {
			b.order[i], b.order[j] = b.order[j], b.order[i]
		})
	}
	b.next = 0
}

// Order returns a copy of the current epoch's index order.
func (b *Batcher) Order() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]int, len(b.order))
	copy(out, b.order)
	return out
}

// nextIndices claims the indices of the next batch, or returns nil at the
// end of the epoch.
func (b *Batcher) nextIndices() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	remaining := len(b.order) - b.next
	if remaining <= 0 || (b.DropLast && remaining < b.BatchSize) {
		return nil
	}
	n := min(b.BatchSize, remaining)
	indices := make([]int, n)
	copy(indices, b.order[b.next:b.next+n])
	b.next += n
	return indices
}

// Next loads the next batch of the epoch. It returns io.EOF once the epoch
// is exhausted; call Reset to start another.
func (b *Batcher) Next(ctx context.Context) (*TileBatchFlat, error) {
	indices := b.nextIndices()
	if indices == nil {
		return nil, io.EOF
	}
	return b.Batch(ctx, indices)
}

// Batch loads the given items in parallel and packs them into a flat batch.
// The first error cancels the remaining loads.
func (b *Batcher) Batch(ctx context.Context, indices []int) (*TileBatchFlat, error) {
	tiles := make([]*tiling.Tile, len(indices))
	labels := make([]string, len(indices))

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for pos, idx := range indices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tile, label, err := b.Source.GetItem(idx)
			if err != nil {
				return fmt.Errorf("batch item %d: %w", idx, err)
			}
			tiles[pos] = tile
			labels[pos] = label
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return MakeTileBatchFlat(tiles, labels)
}

// Yield returns the next batch as gomlx tensors: inputs holds one
// [batch, height, width, channels] float32 tensor and labels one [batch]
// float32 tensor. At the end of the epoch it returns io.EOF.
func (b *Batcher) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := b.Next(context.Background())
	if err != nil {
		return nil, nil, nil, err
	}
	in, la, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	return b, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// TileBatchFlat stores a batch of equally shaped tiles in one contiguous
// buffer, batch-major.
type TileBatchFlat struct {
	Pixels    []float32
	Labels    []string
	BatchSize int
	Height    int
	Width     int
	Channels  int
}

// MakeTileBatchFlat flattens tiles into a contiguous buffer.
func MakeTileBatchFlat(tiles []*tiling.Tile, labels []string) (*TileBatchFlat, error) {
	if len(tiles) != len(labels) {
		return nil, fmt.Errorf("tiles and labels batch sizes don't match: %d != %d", len(tiles), len(labels))
	}
	if len(tiles) == 0 {
		return &TileBatchFlat{}, nil
	}

	first := tiles[0]
	size := first.Height * first.Width * first.Channels
	flat := make([]float32, len(tiles)*size)
	for i, t := range tiles {
		if !t.SameShape(first) {
			return nil, fmt.Errorf("inconsistent tile shape at example %d: expected %v, got %v",
				i, first.Shape(), t.Shape())
		}
		copy(flat[i*size:], t.Pix)
	}

	out := make([]string, len(labels))
	copy(out, labels)
	return &TileBatchFlat{
		Pixels:    flat,
		Labels:    out,
		BatchSize: len(tiles),
		Height:    first.Height,
		Width:     first.Width,
		Channels:  first.Channels,
	}, nil
}

// Tile returns a view of example i.
func (b *TileBatchFlat) Tile(i int) *tiling.Tile {
	size := b.Height * b.Width * b.Channels
	return &tiling.Tile{
		Pix:      b.Pixels[i*size : (i+1)*size],
		Height:   b.Height,
		Width:    b.Width,
		Channels: b.Channels,
	}
}

// NumericLabels parses every label as a float32.
func (b *TileBatchFlat) NumericLabels() ([]float32, error) {
	out := make([]float32, len(b.Labels))
	for i, l := range b.Labels {
		v, err := parseFloat32(l)
		if err != nil {
			return nil, fmt.Errorf("label %d (%q): %w", i, l, err)
		}
		out[i] = v
	}
	return out, nil
}

// ToGomlxTensors converts the batch to gomlx tensors. An empty batch has no
// tile shape to convert and returns ErrEmptyBatch.
func (b *TileBatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 {
		return nil, nil, ErrEmptyBatch
	}
	labels, err := b.NumericLabels()
	if err != nil {
		return nil, nil, err
	}
	inT := tensors.FromFlatDataAndDimensions(b.Pixels, b.BatchSize, b.Height, b.Width, b.Channels)
	labT := tensors.FromFlatDataAndDimensions(labels, b.BatchSize)
	return inT, labT, nil
}
