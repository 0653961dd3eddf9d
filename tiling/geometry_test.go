package tiling

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAxisCount(t *testing.T) {
	cases := []struct {
		extent, frame, overlay int
		want                   int
	}{
		{10, 4, 2, 4},
		{10, 3, 1, 5},
		{10, 10, 0, 1},
		{10, 10, 3, 1},
		{10, 5, 0, 2},
		{10, 3, 0, 4},
		{1, 1, 0, 1},
		{256, 64, 16, 5},
	}
	for _, c := range cases {
		got := AxisCount(c.extent, c.frame, c.overlay)
		require.Equal(t, c.want, got, "AxisCount(%d, %d, %d)", c.extent, c.frame, c.overlay)
	}
}

func TestAxisCountAtLeastOne(t *testing.T) {
	for extent := 1; extent <= 24; extent++ {
		for frame := 1; frame <= extent; frame++ {
			for overlay := 0; overlay < frame; overlay++ {
				n := AxisCount(extent, frame, overlay)
				require.GreaterOrEqual(t, n, 1, "AxisCount(%d, %d, %d)", extent, frame, overlay)

				// The first n-1 frames always start inside the image and the
				// grid covers the whole extent.
				stride := frame - overlay
				require.Less(t, (n-1)*stride, extent)
				require.GreaterOrEqual(t, (n-1)*stride+frame, extent)
			}
		}
	}
}

func TestNewGeometryValidation(t *testing.T) {
	img := Size{Width: 10, Height: 10}
	cases := []struct {
		name           string
		image, frame   Size
		overlay        Size
		boundary       Boundary
		wantErr        bool
		wantFramesEach int
	}{
		{"square", img, Size{4, 4}, Size{2, 2}, BoundaryPad, false, 16},
		{"frame equals overlay", img, Size{4, 4}, Size{4, 2}, BoundaryPad, true, 0},
		{"frame below overlay", img, Size{4, 3}, Size{2, 3}, BoundaryPad, true, 0},
		{"negative overlay", img, Size{4, 4}, Size{-1, 0}, BoundaryPad, true, 0},
		{"frame wider than image", img, Size{11, 4}, Size{0, 0}, BoundaryPad, true, 0},
		{"frame taller than image", img, Size{4, 11}, Size{0, 0}, BoundaryPad, true, 0},
		{"empty image", Size{0, 10}, Size{4, 4}, Size{0, 0}, BoundaryPad, true, 0},
		{"unknown boundary", img, Size{4, 4}, Size{2, 2}, Boundary(42), true, 0},
		{"reject exact fit", img, Size{4, 4}, Size{2, 2}, BoundaryReject, false, 16},
		{"reject overrun", img, Size{3, 3}, Size{1, 1}, BoundaryReject, true, 0},
		{"shift overrun", img, Size{3, 3}, Size{1, 1}, BoundaryShift, false, 25},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g, err := NewGeometry(c.image, c.frame, c.overlay, c.boundary)
			if c.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidGeometry))
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.wantFramesEach, g.FramesPerImage())
		})
	}
}

// The width axis produces columns and the height axis produces rows; frame
// indices are row-major.
func TestGeometryNonSquareAxes(t *testing.T) {
	g, err := NewGeometry(Size{Width: 12, Height: 8}, Size{Width: 6, Height: 4}, Size{Width: 2, Height: 0}, BoundaryPad)
	require.NoError(t, err)
	require.Equal(t, 3, g.Columns())
	require.Equal(t, 2, g.Rows())
	require.Equal(t, 6, g.FramesPerImage())
	require.Equal(t, Size{Width: 4, Height: 4}, g.Stride())

	want := []image.Point{
		{0, 0}, {4, 0}, {8, 0},
		{0, 4}, {4, 4}, {8, 4},
	}
	for k, p := range want {
		require.Equal(t, p, g.Offset(k), "offset of frame %d", k)
		col, row := g.Position(k)
		require.Equal(t, k, g.Index(col, row))
	}
	require.Equal(t, image.Rect(4, 4, 10, 8), g.Rect(4))
	require.False(t, g.Overruns(1))
	require.True(t, g.Overruns(2))
	require.True(t, g.Overruns(5))
}

func TestGeometryShiftKeepsFramesInside(t *testing.T) {
	g, err := NewGeometry(Size{Width: 12, Height: 8}, Size{Width: 6, Height: 4}, Size{Width: 2, Height: 0}, BoundaryShift)
	require.NoError(t, err)
	require.Equal(t, image.Pt(6, 0), g.Offset(2))
	require.Equal(t, image.Pt(6, 4), g.Offset(5))
	imgRect := image.Rect(0, 0, 12, 8)
	for k := 0; k < g.FramesPerImage(); k++ {
		require.True(t, g.Rect(k).In(imgRect), "frame %d: %v", k, g.Rect(k))
	}
}

func TestParseBoundary(t *testing.T) {
	for _, b := range []Boundary{BoundaryPad, BoundaryShift, BoundaryReject} {
		got, err := ParseBoundary(b.String())
		require.NoError(t, err)
		require.Equal(t, b, got)
	}
	got, err := ParseBoundary("")
	require.NoError(t, err)
	require.Equal(t, BoundaryPad, got)
	got, err = ParseBoundary(" Shift ")
	require.NoError(t, err)
	require.Equal(t, BoundaryShift, got)
	_, err = ParseBoundary("mirror")
	require.ErrorIs(t, err, ErrInvalidGeometry)
}

// gradient returns an image where pixel (x, y) has value y*width+x.
func gradient(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(y*width + x)})
		}
	}
	return img
}

func TestExtract(t *testing.T) {
	img := gradient(12, 8)
	g, err := NewGeometry(Size{Width: 12, Height: 8}, Size{Width: 6, Height: 4}, Size{Width: 2, Height: 0}, BoundaryPad)
	require.NoError(t, err)

	tile := g.Extract(img, 4) // offset (4, 4)
	require.Equal(t, []int{4, 6, 1}, tile.Shape())
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			require.Equal(t, float32((4+y)*12+4+x), tile.At(y, x, 0))
		}
	}
}

func TestExtractPadsOverrun(t *testing.T) {
	img := gradient(12, 8)
	g, err := NewGeometry(Size{Width: 12, Height: 8}, Size{Width: 6, Height: 4}, Size{Width: 2, Height: 0}, BoundaryPad)
	require.NoError(t, err)

	tile := g.Extract(img, 2) // offset (8, 0); columns 12 and 13 are outside
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			want := float32(0)
			if 8+x < 12 {
				want = float32(y*12 + 8 + x)
			}
			require.Equal(t, want, tile.At(y, x, 0), "pixel (%d, %d)", x, y)
		}
	}
}

func TestExtractShiftedOverrun(t *testing.T) {
	img := gradient(12, 8)
	g, err := NewGeometry(Size{Width: 12, Height: 8}, Size{Width: 6, Height: 4}, Size{Width: 2, Height: 0}, BoundaryShift)
	require.NoError(t, err)

	tile := g.Extract(img, 2) // shifted to (6, 0)
	for x := 0; x < 6; x++ {
		require.Equal(t, float32(6+x), tile.At(0, x, 0))
	}
}

func TestExtractSubImage(t *testing.T) {
	full := gradient(16, 16)
	sub := full.SubImage(image.Rect(2, 3, 12, 13)).(*image.Gray)
	g, err := NewGeometry(Size{Width: 10, Height: 10}, Size{Width: 4, Height: 4}, Size{Width: 2, Height: 2}, BoundaryPad)
	require.NoError(t, err)

	tile := g.Extract(sub, 0)
	require.Equal(t, float32(3*16+2), tile.At(0, 0, 0))
	require.Equal(t, float32(6*16+5), tile.At(3, 3, 0))
}
