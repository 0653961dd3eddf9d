package imageio

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/frameset/tiling"
)

// countingLoader returns a fresh image per call and records how often each
// path was loaded.
type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newCountingLoader() *countingLoader {
	return &countingLoader{calls: make(map[string]int), fail: make(map[string]bool)}
}

func (l *countingLoader) Load(path string, size tiling.Size) (*image.Gray, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[path]++
	if l.fail[path] {
		return nil, &ResourceError{Path: path, Err: errors.New("boom")}
	}
	return image.NewGray(image.Rect(0, 0, size.Width, size.Height)), nil
}

func (l *countingLoader) count(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[path]
}

var size4 = tiling.Size{Width: 4, Height: 4}

func TestCachedLoaderHits(t *testing.T) {
	base := newCountingLoader()
	c := NewCachedLoader(base, 4, 0)

	a1, err := c.Load("a", size4)
	require.NoError(t, err)
	a2, err := c.Load("a", size4)
	require.NoError(t, err)
	require.Same(t, a1, a2)
	require.Equal(t, 1, base.count("a"))

	// A different target size is a different entry.
	_, err = c.Load("a", tiling.Size{Width: 2, Height: 2})
	require.NoError(t, err)
	require.Equal(t, 2, base.count("a"))

	hits, misses := c.Stats()
	require.Equal(t, int64(1), hits)
	require.Equal(t, int64(2), misses)
	require.Equal(t, 2, c.Len())
}

func TestCachedLoaderEvictsLRU(t *testing.T) {
	base := newCountingLoader()
	c := NewCachedLoader(base, 2, 0)

	for _, p := range []string{"a", "b"} {
		_, err := c.Load(p, size4)
		require.NoError(t, err)
	}
	// Touch a so b becomes least recently used.
	_, err := c.Load("a", size4)
	require.NoError(t, err)
	_, err = c.Load("c", size4)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	_, err = c.Load("a", size4)
	require.NoError(t, err)
	require.Equal(t, 1, base.count("a"))

	_, err = c.Load("b", size4)
	require.NoError(t, err)
	require.Equal(t, 2, base.count("b"))
}

func TestCachedLoaderTTLExpiry(t *testing.T) {
	base := newCountingLoader()
	c := NewCachedLoader(base, 0, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	_, err := c.Load("a", size4)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = c.Load("a", size4)
	require.NoError(t, err)
	require.Equal(t, 1, base.count("a"))

	now = now.Add(2 * time.Minute)
	_, err = c.Load("a", size4)
	require.NoError(t, err)
	require.Equal(t, 2, base.count("a"))
}

func TestCachedLoaderDoesNotCacheErrors(t *testing.T) {
	base := newCountingLoader()
	base.fail["bad"] = true
	c := NewCachedLoader(base, 4, 0)

	for i := 0; i < 2; i++ {
		_, err := c.Load("bad", size4)
		require.ErrorIs(t, err, ErrResource)
	}
	require.Equal(t, 2, base.count("bad"))
	require.Equal(t, 0, c.Len())
}

func TestCachedLoaderPurgeAndConcurrency(t *testing.T) {
	base := newCountingLoader()
	c := NewCachedLoader(base, 8, 0)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range []string{"a", "b", "c"} {
				if _, err := c.Load(p, size4); err != nil {
					t.Errorf("Load(%s): %v", p, err)
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 3, c.Len())

	c.Purge()
	require.Equal(t, 0, c.Len())
}
