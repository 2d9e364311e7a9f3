// Package imageio decodes image containers into pixel grids.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/RowanDark/wraith/internal/pixels"
)

// DefaultMaxBytes bounds the size of an image read from disk or a stream.
const DefaultMaxBytes = 64 << 20

// Image is a decoded input together with the bytes it came from.
type Image struct {
	// Name is the file name without directory or extension.
	Name   string
	Path   string
	Format string
	Grid   *pixels.RGBA
	Raw    []byte
}

// Load reads and decodes the image at path.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &pixels.AccessError{Source: path, Err: err}
	}
	defer f.Close()

	img, err := Decode(f, path)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		img.Path = abs
	}
	return img, nil
}

// Decode reads an image from r. source names the input in errors and
// provides Name.
func Decode(r io.Reader, source string) (*Image, error) {
	raw, err := io.ReadAll(io.LimitReader(r, DefaultMaxBytes+1))
	if err != nil {
		return nil, &pixels.AccessError{Source: source, Err: err}
	}
	if len(raw) > DefaultMaxBytes {
		return nil, &pixels.AccessError{Source: source, Err: fmt.Errorf("image larger than %d bytes", DefaultMaxBytes)}
	}
	return DecodeBytes(raw, source)
}

// DecodeBytes decodes raw, which is kept on the result without copying.
func DecodeBytes(raw []byte, source string) (*Image, error) {
	decoded, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &pixels.AccessError{Source: source, Err: fmt.Errorf("decode: %w", err)}
	}
	grid, err := pixels.FromImage(decoded)
	if err != nil {
		var accessErr *pixels.AccessError
		if errors.As(err, &accessErr) {
			accessErr.Source = source
		}
		return nil, err
	}
	return &Image{
		Name:   Stem(source),
		Path:   source,
		Format: format,
		Grid:   grid,
		Raw:    raw,
	}, nil
}

// Config is the header information of an image.
type Config struct {
	Format string
	Width  int
	Height int
}

// DecodeConfig reads only the image header.
func DecodeConfig(raw []byte) (Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Config{}, err
	}
	return Config{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
