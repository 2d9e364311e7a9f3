// Package pixels defines the read-only pixel grid the extraction engine
// consumes, independent of the image container it was decoded from.
package pixels

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Channel selects one scalar component of a pixel.
type Channel uint8

const (
	Red Channel = iota
	Green
	Blue
)

// Channels lists every channel in extraction order.
var Channels = []Channel{Red, Green, Blue}

func (c Channel) String() string {
	switch c {
	case Red:
		return "red"
	case Green:
		return "green"
	case Blue:
		return "blue"
	default:
		return fmt.Sprintf("channel(%d)", uint8(c))
	}
}

// ParseChannel resolves a channel name such as "red" or "R".
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red", "r":
		return Red, nil
	case "green", "g":
		return Green, nil
	case "blue", "b":
		return Blue, nil
	default:
		return 0, fmt.Errorf("unknown channel %q", name)
	}
}

// ParseChannels resolves a list of names. "all" expands to every channel.
func ParseChannels(names []string) ([]Channel, error) {
	out := make([]Channel, 0, len(names))
	seen := make(map[Channel]bool, len(Channels))
	for _, name := range names {
		if strings.EqualFold(strings.TrimSpace(name), "all") {
			for _, ch := range Channels {
				if !seen[ch] {
					seen[ch] = true
					out = append(out, ch)
				}
			}
			continue
		}
		ch, err := ParseChannel(name)
		if err != nil {
			return nil, err
		}
		if seen[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out, nil
}

// Grid is the read-only pixel capability handed to the engine.
type Grid interface {
	Width() int
	Height() int
	// At returns the 8-bit value of ch at (x, y). Callers keep coordinates
	// inside [0, Width()) x [0, Height()).
	At(x, y int, ch Channel) uint8
}

// AccessError reports that pixel data could not be obtained.
type AccessError struct {
	Source string
	Err    error
}

func (e *AccessError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("image access: %v", e.Err)
	}
	return fmt.Sprintf("image access %s: %v", e.Source, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// RGBA is an in-memory grid with four 8-bit samples per pixel.
type RGBA struct {
	width  int
	height int
	pix    []uint8
}

// NewRGBA allocates a zeroed width x height grid.
func NewRGBA(width, height int) (*RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, &AccessError{Err: fmt.Errorf("invalid dimensions %dx%d", width, height)}
	}
	return &RGBA{width: width, height: height, pix: make([]uint8, width*height*4)}, nil
}

func (g *RGBA) Width() int  { return g.width }
func (g *RGBA) Height() int { return g.height }

func (g *RGBA) At(x, y int, ch Channel) uint8 {
	return g.pix[(y*g.width+x)*4+int(ch)]
}

// Alpha returns the alpha sample at (x, y).
func (g *RGBA) Alpha(x, y int) uint8 {
	return g.pix[(y*g.width+x)*4+3]
}

// Set stores a pixel. It is meant for grid construction before the grid is
// shared; the engine never writes.
func (g *RGBA) Set(x, y int, r, gr, b, a uint8) {
	i := (y*g.width + x) * 4
	g.pix[i] = r
	g.pix[i+1] = gr
	g.pix[i+2] = b
	g.pix[i+3] = a
}

// FromImage copies an image.Image into an RGBA grid using non-premultiplied
// samples so LSBs survive for translucent pixels.
func FromImage(img image.Image) (*RGBA, error) {
	if img == nil {
		return nil, &AccessError{Err: fmt.Errorf("nil image")}
	}
	bounds := img.Bounds()
	grid, err := NewRGBA(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			grid.Set(x-bounds.Min.X, y-bounds.Min.Y, c.R, c.G, c.B, c.A)
		}
	}
	return grid, nil
}
