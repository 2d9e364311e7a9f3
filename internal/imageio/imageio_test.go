package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/RowanDark/wraith/internal/pixels"
)

func sample() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(10*x + y), G: uint8(100 + x), B: uint8(200 + y), A: 255})
		}
	}
	return img
}

func TestDecodeFormats(t *testing.T) {
	encoders := map[string]func(io.Writer, image.Image) error{
		"png":  png.Encode,
		"bmp":  bmp.Encode,
		"tiff": func(w io.Writer, m image.Image) error { return tiff.Encode(w, m, nil) },
	}
	for format, encode := range encoders {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := encode(&buf, sample()); err != nil {
				t.Fatalf("encode: %v", err)
			}
			img, err := Decode(&buf, "dir/ghost."+format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if img.Format != format {
				t.Errorf("format = %q, want %q", img.Format, format)
			}
			if img.Name != "ghost" {
				t.Errorf("name = %q", img.Name)
			}
			if img.Grid.Width() != 3 || img.Grid.Height() != 2 {
				t.Fatalf("dimensions %dx%d", img.Grid.Width(), img.Grid.Height())
			}
			if got := img.Grid.At(2, 1, pixels.Red); got != 21 {
				t.Errorf("red at (2,1) = %d, want 21", got)
			}
			if got := img.Grid.At(1, 0, pixels.Green); got != 101 {
				t.Errorf("green at (1,0) = %d, want 101", got)
			}
			if got := img.Grid.At(0, 1, pixels.Blue); got != 201 {
				t.Errorf("blue at (0,1) = %d, want 201", got)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "challenge.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, sample()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Name != "challenge" || !filepath.IsAbs(img.Path) {
		t.Errorf("unexpected name/path %q %q", img.Name, img.Path)
	}
	if !bytes.Equal(img.Raw, buf.Bytes()) {
		t.Error("raw bytes not preserved")
	}

	cfg, err := DecodeConfig(img.Raw)
	if err != nil || cfg.Width != 3 || cfg.Height != 2 || cfg.Format != "png" {
		t.Errorf("DecodeConfig = %+v, %v", cfg, err)
	}
}

func TestLoadErrors(t *testing.T) {
	var accessErr *pixels.AccessError

	_, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected AccessError for missing file, got %v", err)
	}

	_, err = DecodeBytes([]byte("definitely not an image"), "junk.bin")
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected AccessError for junk, got %v", err)
	}
	if accessErr.Source != "junk.bin" {
		t.Errorf("source = %q", accessErr.Source)
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"a/b/ghost.png":   "ghost",
		"ghost":           "ghost",
		"archive.tar.gz":  "archive.tar",
		"/tmp/.hidden":    "",
		"nested/dir/x.JP": "x",
	}
	for input, want := range tests {
		if got := Stem(input); got != want {
			t.Errorf("Stem(%q) = %q, want %q", input, got, want)
		}
	}
}
