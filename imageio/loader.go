// Package imageio decodes dataset images into 8-bit grayscale pixels at a
// fixed target size.
package imageio

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Noofbiz/frameset/tiling"
)

// ErrResource matches every *ResourceError.
var ErrResource = errors.New("image resource unavailable")

// ResourceError reports an image that could not be read or decoded.
type ResourceError struct {
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("image %s: %v", e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrResource) match any ResourceError.
func (e *ResourceError) Is(target error) bool { return target == ErrResource }

// Loader produces a grayscale image of exactly size pixels from an image
// identifier. Implementations must be safe for concurrent use.
type Loader interface {
	Load(path string, size tiling.Size) (*image.Gray, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string, size tiling.Size) (*image.Gray, error)

// Load implements Loader.
func (f LoaderFunc) Load(path string, size tiling.Size) (*image.Gray, error) {
	return f(path, size)
}

// Interpolation selects the resampling kernel used for resizing.
type Interpolation int

const (
	NearestNeighbor Interpolation = iota
	BiLinear
	CatmullRom
)

var interpolationNames = map[Interpolation]string{
	NearestNeighbor: "nearest",
	BiLinear:        "bilinear",
	CatmullRom:      "catmullrom",
}

func (i Interpolation) String() string {
	if name, ok := interpolationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// ParseInterpolation converts a kernel name to an Interpolation. The empty
// string selects BiLinear.
func ParseInterpolation(s string) (Interpolation, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return BiLinear, nil
	}
	for i, name := range interpolationNames {
		if name == s {
			return i, nil
		}
	}
	return BiLinear, errors.Errorf("unknown interpolation %q", s)
}

func (i Interpolation) interpolator() draw.Interpolator {
	switch i {
	case NearestNeighbor:
		return draw.NearestNeighbor
	case CatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// FileLoader reads images from the local filesystem.
type FileLoader struct {
	Interpolation Interpolation
}

// Load implements Loader.
func (l FileLoader) Load(path string, size tiling.Size) (*image.Gray, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	defer file.Close()

	img, err := DecodeGray(file, size, l.Interpolation)
	if err != nil {
		return nil, &ResourceError{Path: path, Err: err}
	}
	return img, nil
}

// DecodeGray decodes any registered image format from r, converts it to
// 8-bit luma and resizes it to size.
func DecodeGray(r io.Reader, size tiling.Size, interp Interpolation) (*image.Gray, error) {
	if size.Width <= 0 || size.Height <= 0 {
		return nil, errors.Errorf("invalid target size %v", size)
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return Resize(ToGray(src), size, interp), nil
}

// ToGray converts img to an *image.Gray whose bounds start at the origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Resize scales img to size. img is returned unchanged when it already has
// the requested size.
func Resize(img *image.Gray, size tiling.Size, interp Interpolation) *image.Gray {
	b := img.Bounds()
	if b.Dx() == size.Width && b.Dy() == size.Height {
		return img
	}
	dst := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	interp.interpolator().Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
