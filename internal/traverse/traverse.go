// Package traverse produces pixel visitation orders for bit extraction.
package traverse

import (
	"fmt"
	"strings"
)

// Point is a pixel coordinate.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Sequence is an ordered list of coordinates.
type Sequence []Point

// Raster returns row-major order: left to right, top to bottom.
func Raster(width, height int) (Sequence, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	seq := make(Sequence, 0, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			seq = append(seq, Point{X: x, Y: y})
		}
	}
	return seq, nil
}

// Validate reports whether seq visits every pixel of a width x height grid
// exactly once.
func Validate(seq Sequence, width, height int) error {
	if err := checkDimensions(width, height); err != nil {
		return err
	}
	if len(seq) != width*height {
		return fmt.Errorf("sequence has %d coordinates, want %d", len(seq), width*height)
	}
	seen := make([]bool, width*height)
	for i, p := range seq {
		if !inBounds(p, width, height) {
			return fmt.Errorf("coordinate %d %s outside %dx%d", i, p, width, height)
		}
		idx := p.Y*width + p.X
		if seen[idx] {
			return fmt.Errorf("coordinate %d %s repeated", i, p)
		}
		seen[idx] = true
	}
	return nil
}

// Direction is the rotational sense of a spiral walk.
type Direction uint8

const (
	Clockwise Direction = iota
	Counterclockwise
)

// Directions lists both spiral directions.
var Directions = []Direction{Clockwise, Counterclockwise}

func (d Direction) String() string {
	switch d {
	case Clockwise:
		return "clockwise"
	case Counterclockwise:
		return "counterclockwise"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// ParseDirection accepts "clockwise"/"cw" and "counterclockwise"/"ccw".
func ParseDirection(name string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "clockwise", "cw":
		return Clockwise, nil
	case "counterclockwise", "counter-clockwise", "anticlockwise", "ccw":
		return Counterclockwise, nil
	default:
		return 0, fmt.Errorf("unknown spiral direction %q", name)
	}
}

func checkDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid grid dimensions %dx%d", width, height)
	}
	return nil
}

func inBounds(p Point, width, height int) bool {
	return p.X >= 0 && p.X < width && p.Y >= 0 && p.Y < height
}
