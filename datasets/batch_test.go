package datasets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/Noofbiz/frameset/tiling"
)

// constSource returns 2×2 tiles filled with the item index and labelled with
// the index as a string.
type constSource struct {
	n     int
	fail  int
	calls atomic.Int64
}

func (s *constSource) Len() int { return s.n }

func (s *constSource) GetItem(idx int) (*tiling.Tile, string, error) {
	s.calls.Add(1)
	if s.fail >= 0 && idx == s.fail {
		return nil, "", errors.New("bad item")
	}
	t := tiling.NewTile(2, 2, 1)
	for i := range t.Pix {
		t.Pix[i] = float32(idx)
	}
	return t, fmt.Sprint(idx), nil
}

func newConstSource(n int) *constSource { return &constSource{n: n, fail: -1} }

func TestBatcher_SequentialEpoch(t *testing.T) {
	src := newConstSource(32)
	b := NewBatcher(src, 10, false, 0)
	ctx := context.Background()

	var sizes []int
	seen := 0
	for {
		batch, err := b.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		sizes = append(sizes, batch.BatchSize)
		for i := 0; i < batch.BatchSize; i++ {
			if got := batch.Tile(i).At(0, 0, 0); got != float32(seen) {
				t.Fatalf("item %d of batch %d: got %v want %d", i, len(sizes)-1, got, seen)
			}
			if batch.Labels[i] != fmt.Sprint(seen) {
				t.Fatalf("label mismatch: %q vs %d", batch.Labels[i], seen)
			}
			seen++
		}
	}
	want := []int{10, 10, 10, 2}
	if fmt.Sprint(sizes) != fmt.Sprint(want) {
		t.Fatalf("batch sizes %v, want %v", sizes, want)
	}

	// The epoch stays exhausted until Reset.
	if _, err := b.Next(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF after epoch, got %v", err)
	}
	b.Reset()
	if batch, err := b.Next(ctx); err != nil || batch.BatchSize != 10 {
		t.Fatalf("expected fresh epoch after Reset, got %v", err)
	}
}

func TestBatcher_DropLast(t *testing.T) {
	b := NewBatcher(newConstSource(32), 10, false, 0)
	b.DropLast = true
	count := 0
	for {
		_, err := b.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 3 {
		t.Fatalf("expected 3 full batches, got %d", count)
	}
}

func TestBatcher_ShuffleDeterministic(t *testing.T) {
	a := NewBatcher(newConstSource(50), 8, true, 42)
	b := NewBatcher(newConstSource(50), 8, true, 42)
	oa, ob := a.Order(), b.Order()
	if fmt.Sprint(oa) != fmt.Sprint(ob) {
		t.Fatalf("same seed produced different orders")
	}

	sorted := append([]int(nil), oa...)
	sort.Ints(sorted)
	for i, v := range sorted {
		if v != i {
			t.Fatalf("order is not a permutation: %v", oa)
		}
	}

	identity := true
	for i, v := range oa {
		if v != i {
			identity = false
			break
		}
	}
	if identity {
		t.Fatalf("shuffled order equals identity")
	}

	// Reshuffling with the original seed replays the first permutation.
	a.Reset()
	a.Shuffle(42)
	if fmt.Sprint(a.Order()) != fmt.Sprint(oa) {
		t.Fatalf("Shuffle(42) did not replay the seeded order")
	}
}

func TestBatcher_ErrorPropagation(t *testing.T) {
	src := newConstSource(20)
	src.fail = 7
	b := NewBatcher(src, 10, false, 0)
	b.Workers = 2
	if _, err := b.Next(context.Background()); err == nil {
		t.Fatalf("expected error from failing item")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Batch(ctx, []int{0, 1, 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBatcher_Yield(t *testing.T) {
	b := NewBatcher(newConstSource(5), 4, false, 0)
	if b.Name() != "Batcher" {
		t.Fatalf("unexpected name %q", b.Name())
	}

	_, inputs, labels, err := b.Yield()
	if err != nil {
		t.Fatalf("Yield failed: %v", err)
	}
	if len(inputs) != 1 || len(labels) != 1 {
		t.Fatalf("expected one input and one label tensor")
	}
	if got := inputs[0].Shape().Dimensions; fmt.Sprint(got) != "[4 2 2 1]" {
		t.Fatalf("unexpected input dims %v", got)
	}
	if got := labels[0].Shape().Dimensions; fmt.Sprint(got) != "[4]" {
		t.Fatalf("unexpected label dims %v", got)
	}

	if _, _, _, err := b.Yield(); err != nil {
		t.Fatalf("second Yield failed: %v", err)
	}
	if _, _, _, err := b.Yield(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestBatcher_OverFrameDataset(t *testing.T) {
	loader := &fakeLoader{bases: map[string]int{"a": 0, "b": 100}}
	ds, err := NewFrameDataset(twoTrainRows(), squareConfig(), loader)
	if err != nil {
		t.Fatalf("NewFrameDataset failed: %v", err)
	}
	b := NewBatcher(ds, 16, true, 7)
	if b.Name() != "FrameDataset(train)" {
		t.Fatalf("unexpected name %q", b.Name())
	}
	total := 0
	for {
		batch, err := b.Next(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if batch.Height != 4 || batch.Width != 4 || batch.Channels != 1 {
			t.Fatalf("unexpected batch tile shape %dx%dx%d", batch.Height, batch.Width, batch.Channels)
		}
		total += batch.BatchSize
	}
	if total != ds.Len() {
		t.Fatalf("epoch covered %d items, want %d", total, ds.Len())
	}
}

func TestMakeTileBatchFlat(t *testing.T) {
	a := tiling.NewTile(2, 2, 1)
	b := tiling.NewTile(2, 3, 1)
	if _, err := MakeTileBatchFlat([]*tiling.Tile{a, b}, []string{"0", "1"}); err == nil {
		t.Fatalf("expected shape mismatch error")
	}
	if _, err := MakeTileBatchFlat([]*tiling.Tile{a}, []string{"0", "1"}); err == nil {
		t.Fatalf("expected length mismatch error")
	}

	a.Set(1, 1, 0, 5)
	c := tiling.NewTile(2, 2, 1)
	c.Set(0, 1, 0, 9)
	batch, err := MakeTileBatchFlat([]*tiling.Tile{a, c}, []string{"1.5", "x"})
	if err != nil {
		t.Fatalf("MakeTileBatchFlat failed: %v", err)
	}
	if len(batch.Pixels) != 8 {
		t.Fatalf("expected 8 pixels, got %d", len(batch.Pixels))
	}
	if batch.Tile(0).At(1, 1, 0) != 5 || batch.Tile(1).At(0, 1, 0) != 9 {
		t.Fatalf("tile views do not match the inputs: %v", batch.Pixels)
	}
	if _, _, err := batch.ToGomlxTensors(); err == nil {
		t.Fatalf("expected non-numeric label error")
	}

	empty, err := MakeTileBatchFlat(nil, nil)
	if err != nil {
		t.Fatalf("empty batch failed: %v", err)
	}
	if _, _, err := empty.ToGomlxTensors(); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}

	batcher := NewBatcher(newConstSource(4), 2, false, 0)
	emptyBatch, err := batcher.Batch(context.Background(), []int{})
	if err != nil {
		t.Fatalf("Batch with no indices failed: %v", err)
	}
	if emptyBatch.BatchSize != 0 {
		t.Fatalf("expected empty batch, got %d items", emptyBatch.BatchSize)
	}
	if _, _, err := emptyBatch.ToGomlxTensors(); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestTileStats(t *testing.T) {
	src := newConstSource(4)
	stats, err := TileStats(context.Background(), src, []int{1, 3})
	if err != nil {
		t.Fatalf("TileStats failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 stats, got %d", len(stats))
	}
	if s := stats[1]; s.Index != 3 || s.Label != "3" || s.Mean != 3 || s.StdDev != 0 || s.Min != 3 || s.Max != 3 {
		t.Fatalf("unexpected stat %+v", s)
	}

	src.fail = 2
	if _, err := TileStats(context.Background(), src, []int{0, 2}); err == nil {
		t.Fatalf("expected error from failing item")
	}
}
