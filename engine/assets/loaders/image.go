package loaders

import (
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	xdraw "golang.org/x/image/draw"

	// extra formats
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded picture as tightly packed RGBA8 rows.
type Image struct {
	Width  uint32
	Height uint32
	// Format is the name of the decoder that read the file, e.g. "png".
	Format string
	Pixels []byte
}

type ImageOptions struct {
	// FlipY stores the bottom row first.
	FlipY bool
	// MaxSize scales the image down so neither side exceeds it. 0 keeps the
	// original size.
	MaxSize int
}

func LoadImage(path string, opts ImageOptions) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %q", path)
	}
	defer f.Close()

	img, err := DecodeImage(f, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "image %q", path)
	}
	return img, nil
}

func DecodeImage(r io.Reader, opts ImageOptions) (*Image, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, errors.Newf("empty %s image", format)
	}

	var rgba *image.RGBA
	if opts.MaxSize > 0 && (w > opts.MaxSize || h > opts.MaxSize) {
		w, h = fit(w, h, opts.MaxSize)
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(rgba, rgba.Bounds(), src, bounds, draw.Src, nil)
	} else {
		rgba = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	}

	pixels := rgba.Pix
	if opts.FlipY {
		pixels = flipRows(pixels, w*4, h)
	}
	return &Image{
		Width:  uint32(w),
		Height: uint32(h),
		Format: format,
		Pixels: pixels,
	}, nil
}

// fit scales w and h so the longer side equals limit.
func fit(w, h, limit int) (int, int) {
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func flipRows(pix []byte, stride, rows int) []byte {
	out := make([]byte, len(pix))
	for y := 0; y < rows; y++ {
		copy(out[y*stride:(y+1)*stride], pix[(rows-1-y)*stride:(rows-y)*stride])
	}
	return out
}
