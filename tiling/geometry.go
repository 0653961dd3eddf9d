// Package tiling computes how a fixed-size image is covered by overlapping
// frames and extracts single frames out of a decoded grayscale image.
//
// All sizes are expressed as Size{Width, Height}. Columns run along the
// width (x) axis and rows along the height (y) axis. A frame index k inside
// one image is row-major: k = row*Columns + col.
//
// The number of frames along one axis follows the ceiling-with-remainder
// rule
//
//	stride = frame - overlay
//	count  = (extent - overlay) / stride        (+1 if the division is inexact)
//
// which means the last frame on an axis may reach past the image edge when
// the frame does not evenly tile the image. What happens to those frames is
// decided by the Boundary policy.
package tiling

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrInvalidGeometry is returned when geometry parameters cannot produce a
// sensible tiling.
var ErrInvalidGeometry = errors.New("invalid tiling geometry")

// Size is a two dimensional extent in pixels.
type Size struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Boundary selects what happens to a frame that reaches past the image edge.
type Boundary int

const (
	// BoundaryPad keeps the frame at its stride position and fills the
	// out-of-image pixels with zeros.
	BoundaryPad Boundary = iota
	// BoundaryShift moves the frame back so it ends exactly at the image edge.
	BoundaryShift
	// BoundaryReject refuses any geometry where a frame would overrun.
	BoundaryReject
)

var boundaryNames = map[Boundary]string{
	BoundaryPad:    "pad",
	BoundaryShift:  "shift",
	BoundaryReject: "reject",
}

func (b Boundary) String() string {
	if name, ok := boundaryNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Boundary(%d)", int(b))
}

// ParseBoundary converts a policy name ("pad", "shift", "reject") to a
// Boundary. The empty string selects BoundaryPad.
func ParseBoundary(s string) (Boundary, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return BoundaryPad, nil
	}
	for b, name := range boundaryNames {
		if name == s {
			return b, nil
		}
	}
	return BoundaryPad, fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidGeometry, s)
}

// AxisCount returns the number of frames of size frame, overlapping by
// overlay pixels, needed along an axis of the given extent.
//
// The caller must guarantee frame > overlay >= 0; see NewGeometry.
func AxisCount(extent, frame, overlay int) int {
	stride := frame - overlay
	count := (extent - overlay) / stride
	if (extent-overlay)%stride != 0 {
		count++
	}
	return count
}

// Geometry describes the uniform tiling applied to every image of a dataset.
// A Geometry is immutable once created and safe for concurrent use.
type Geometry struct {
	Image    Size
	Frame    Size
	Overlay  Size
	Boundary Boundary

	columns int
	rows    int
}

// NewGeometry validates the parameters and precomputes the frame grid.
func NewGeometry(img, frame, overlay Size, boundary Boundary) (*Geometry, error) {
	if _, ok := boundaryNames[boundary]; !ok {
		return nil, fmt.Errorf("%w: unknown boundary policy %d", ErrInvalidGeometry, int(boundary))
	}
	if err := validateAxis("width", img.Width, frame.Width, overlay.Width); err != nil {
		return nil, err
	}
	if err := validateAxis("height", img.Height, frame.Height, overlay.Height); err != nil {
		return nil, err
	}

	g := &Geometry{
		Image:    img,
		Frame:    frame,
		Overlay:  overlay,
		Boundary: boundary,
		columns:  AxisCount(img.Width, frame.Width, overlay.Width),
		rows:     AxisCount(img.Height, frame.Height, overlay.Height),
	}
	if g.columns <= 0 || g.rows <= 0 {
		return nil, fmt.Errorf("%w: degenerate grid %dx%d", ErrInvalidGeometry, g.columns, g.rows)
	}

	if boundary == BoundaryReject {
		stride := g.Stride()
		if end := (g.columns-1)*stride.Width + frame.Width; end > img.Width {
			return nil, fmt.Errorf("%w: last column ends at x=%d, past image width %d",
				ErrInvalidGeometry, end, img.Width)
		}
		if end := (g.rows-1)*stride.Height + frame.Height; end > img.Height {
			return nil, fmt.Errorf("%w: last row ends at y=%d, past image height %d",
				ErrInvalidGeometry, end, img.Height)
		}
	}
	return g, nil
}

func validateAxis(axis string, extent, frame, overlay int) error {
	switch {
	case extent <= 0:
		return fmt.Errorf("%w: image %s must be positive, got %d", ErrInvalidGeometry, axis, extent)
	case overlay < 0:
		return fmt.Errorf("%w: overlay %s must be >= 0, got %d", ErrInvalidGeometry, axis, overlay)
	case frame <= overlay:
		return fmt.Errorf("%w: frame %s (%d) must be larger than overlay %s (%d)",
			ErrInvalidGeometry, axis, frame, axis, overlay)
	case frame > extent:
		return fmt.Errorf("%w: frame %s (%d) exceeds image %s (%d)",
			ErrInvalidGeometry, axis, frame, axis, extent)
	}
	return nil
}

// Columns is the number of frames along the width axis.
func (g *Geometry) Columns() int { return g.columns }

// Rows is the number of frames along the height axis.
func (g *Geometry) Rows() int { return g.rows }

// FramesPerImage is Columns()*Rows().
func (g *Geometry) FramesPerImage() int { return g.columns * g.rows }

// Stride is the distance between the origins of neighbouring frames.
func (g *Geometry) Stride() Size {
	return Size{
		Width:  g.Frame.Width - g.Overlay.Width,
		Height: g.Frame.Height - g.Overlay.Height,
	}
}

// Position splits a per-image frame index into its grid column and row.
func (g *Geometry) Position(k int) (col, row int) {
	return k % g.columns, k / g.columns
}

// Index is the inverse of Position.
func (g *Geometry) Index(col, row int) int {
	return row*g.columns + col
}

// Offset returns the pixel origin of frame k.
func (g *Geometry) Offset(k int) image.Point {
	col, row := g.Position(k)
	stride := g.Stride()
	p := image.Pt(col*stride.Width, row*stride.Height)
	if g.Boundary == BoundaryShift {
		p.X = min(p.X, g.Image.Width-g.Frame.Width)
		p.Y = min(p.Y, g.Image.Height-g.Frame.Height)
	}
	return p
}

// Rect returns the pixel rectangle covered by frame k. With BoundaryPad the
// rectangle may extend past the image.
func (g *Geometry) Rect(k int) image.Rectangle {
	p := g.Offset(k)
	return image.Rect(p.X, p.Y, p.X+g.Frame.Width, p.Y+g.Frame.Height)
}

// Overruns reports whether frame k reaches past the image edge before any
// boundary policy is applied.
func (g *Geometry) Overruns(k int) bool {
	col, row := g.Position(k)
	stride := g.Stride()
	return col*stride.Width+g.Frame.Width > g.Image.Width ||
		row*stride.Height+g.Frame.Height > g.Image.Height
}

// Extract copies frame k out of img into a new Tile of shape
// [Frame.Height, Frame.Width, 1]. Pixels outside img are left at zero.
//
// img is addressed relative to its own Bounds().Min, so sub-images work.
func (g *Geometry) Extract(img *image.Gray, k int) *Tile {
	tile := NewTile(g.Frame.Height, g.Frame.Width, 1)
	bounds := img.Bounds()
	rect := g.Rect(k).Add(bounds.Min)
	src := rect.Intersect(bounds)
	if src.Empty() {
		return tile
	}
	for y := src.Min.Y; y < src.Max.Y; y++ {
		row := img.Pix[img.PixOffset(src.Min.X, y):]
		dst := tile.Pix[(y-rect.Min.Y)*tile.Width+(src.Min.X-rect.Min.X):]
		for x := 0; x < src.Dx(); x++ {
			dst[x] = float32(row[x])
		}
	}
	return tile
}
