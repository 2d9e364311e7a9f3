package traverse

import "fmt"

// SpiralOption customises Spiral.
type SpiralOption func(*spiralConfig)

type spiralConfig struct {
	start     *Point
	direction Direction
}

// WithStart overrides the default centre start point.
func WithStart(p Point) SpiralOption {
	return func(cfg *spiralConfig) {
		start := p
		cfg.start = &start
	}
}

// WithDirection selects the rotational sense of the walk.
func WithDirection(d Direction) SpiralOption {
	return func(cfg *spiralConfig) {
		cfg.direction = d
	}
}

// Leg headings in walk order. Image coordinates grow downwards, so turning
// from right to down is a clockwise turn.
var (
	clockwiseLegs        = [4]Point{{X: 1}, {Y: 1}, {X: -1}, {Y: -1}}
	counterclockwiseLegs = [4]Point{{X: 1}, {Y: -1}, {X: -1}, {Y: 1}}
)

// Spiral walks outward from the start point in square rings. Leg lengths
// grow 1,1,2,2,3,3,... and coordinates outside the grid are skipped, so a
// non-square grid is clipped without revisiting any pixel.
func Spiral(width, height int, opts ...SpiralOption) (Sequence, error) {
	if err := checkDimensions(width, height); err != nil {
		return nil, err
	}
	cfg := spiralConfig{direction: Clockwise}
	for _, opt := range opts {
		opt(&cfg)
	}

	var legs [4]Point
	switch cfg.direction {
	case Clockwise:
		legs = clockwiseLegs
	case Counterclockwise:
		legs = counterclockwiseLegs
	default:
		return nil, fmt.Errorf("unsupported spiral direction %v", cfg.direction)
	}

	pos := Point{X: width / 2, Y: height / 2}
	if cfg.start != nil {
		pos = *cfg.start
	}
	if !inBounds(pos, width, height) {
		return nil, fmt.Errorf("spiral start %s outside %dx%d", pos, width, height)
	}

	total := width * height
	seq := make(Sequence, 0, total)
	seq = append(seq, pos)

	// Any start inside the grid is fully enclosed once legs reach this length.
	maxLeg := 2*max(width, height) + 2
	for leg := 0; len(seq) < total; leg++ {
		length := leg/2 + 1
		if length > maxLeg {
			return nil, fmt.Errorf("spiral did not cover %dx%d grid (%d of %d)", width, height, len(seq), total)
		}
		heading := legs[leg%4]
		for i := 0; i < length && len(seq) < total; i++ {
			pos.X += heading.X
			pos.Y += heading.Y
			if inBounds(pos, width, height) {
				seq = append(seq, pos)
			}
		}
	}
	return seq, nil
}
