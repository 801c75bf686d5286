package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/bmp"
)

func spirvBytes(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestBytesToBytecode(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		ok    bool
	}{
		{"valid", spirvBytes(SPIRVMagic, 0x00010000, 7), true},
		{"empty", nil, false},
		{"truncated", spirvBytes(SPIRVMagic, 1)[:7], false},
		{"bad magic", spirvBytes(0xdeadbeef, 1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := BytesToBytecode(tt.input)
			if tt.ok {
				if err != nil {
					t.Fatal(err)
				}
				if len(code) != len(tt.input)/4 || code[0] != SPIRVMagic || code[2] != 7 {
					t.Errorf("code = %#x", code)
				}
				return
			}
			if !errors.Is(err, ErrNotSPIRV) {
				t.Errorf("err = %v, want ErrNotSPIRV", err)
			}
		})
	}
}

func TestLoadSPIRV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triangle.vert.spv")
	if err := os.WriteFile(path, spirvBytes(SPIRVMagic, 3), 0o644); err != nil {
		t.Fatal(err)
	}
	code, err := LoadSPIRV(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 2 {
		t.Errorf("len = %d, want 2", len(code))
	}
	if _, err := LoadSPIRV(filepath.Join(dir, "missing.spv")); err == nil {
		t.Error("missing file loaded")
	}
}

func checker() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 255, A: 255})
	img.Set(0, 1, color.NRGBA{B: 255, A: 255})
	img.Set(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	return img
}

func TestDecodeImageFormats(t *testing.T) {
	var pngBuf, bmpBuf bytes.Buffer
	if err := png.Encode(&pngBuf, checker()); err != nil {
		t.Fatal(err)
	}
	if err := bmp.Encode(&bmpBuf, checker()); err != nil {
		t.Fatal(err)
	}

	for format, data := range map[string][]byte{"png": pngBuf.Bytes(), "bmp": bmpBuf.Bytes()} {
		t.Run(format, func(t *testing.T) {
			img, err := DecodeImage(bytes.NewReader(data), ImageOptions{})
			if err != nil {
				t.Fatal(err)
			}
			if img.Format != format || img.Width != 2 || img.Height != 2 {
				t.Fatalf("decoded %s %dx%d", img.Format, img.Width, img.Height)
			}
			if len(img.Pixels) != 2*2*4 {
				t.Fatalf("pixels = %d bytes", len(img.Pixels))
			}
			// first pixel is opaque red
			if !bytes.Equal(img.Pixels[:4], []byte{255, 0, 0, 255}) {
				t.Errorf("first pixel = %v", img.Pixels[:4])
			}
		})
	}
}

func TestDecodeImageFlipAndScale(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, checker()); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeImage(bytes.NewReader(buf.Bytes()), ImageOptions{FlipY: true})
	if err != nil {
		t.Fatal(err)
	}
	// bottom left was blue
	if !bytes.Equal(img.Pixels[:4], []byte{0, 0, 255, 255}) {
		t.Errorf("first pixel after flip = %v", img.Pixels[:4])
	}

	big := image.NewNRGBA(image.Rect(0, 0, 64, 16))
	buf.Reset()
	if err := png.Encode(&buf, big); err != nil {
		t.Fatal(err)
	}
	img, err = DecodeImage(&buf, ImageOptions{MaxSize: 32})
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 32 || img.Height != 8 {
		t.Errorf("scaled to %dx%d, want 32x8", img.Width, img.Height)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage(bytes.NewReader([]byte("not an image")), ImageOptions{}); err == nil {
		t.Error("garbage decoded")
	}
}
