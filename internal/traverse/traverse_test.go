package traverse

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSpiralThreeByThreeClockwise(t *testing.T) {
	got, err := Spiral(3, 3)
	if err != nil {
		t.Fatalf("Spiral: %v", err)
	}
	want := Sequence{
		{1, 1}, {2, 1}, {2, 2}, {1, 2}, {0, 2}, {0, 1}, {0, 0}, {1, 0}, {2, 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("clockwise 3x3 mismatch (-want +got):\n%s", diff)
	}
}

func TestSpiralThreeByThreeCounterclockwise(t *testing.T) {
	got, err := Spiral(3, 3, WithDirection(Counterclockwise))
	if err != nil {
		t.Fatalf("Spiral: %v", err)
	}
	want := Sequence{
		{1, 1}, {2, 1}, {2, 0}, {1, 0}, {0, 0}, {0, 1}, {0, 2}, {1, 2}, {2, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("counterclockwise 3x3 mismatch (-want +got):\n%s", diff)
	}
}

func TestSpiralCoversEveryPixelOnce(t *testing.T) {
	sizes := [][2]int{
		{1, 1}, {1, 7}, {7, 1}, {2, 2}, {2, 5}, {5, 2}, {4, 4}, {3, 8},
		{8, 3}, {10, 10}, {16, 9}, {1, 64}, {31, 17},
	}
	for _, size := range sizes {
		for _, dir := range Directions {
			w, h := size[0], size[1]
			seq, err := Spiral(w, h, WithDirection(dir))
			if err != nil {
				t.Fatalf("Spiral(%d,%d,%v): %v", w, h, dir, err)
			}
			if err := Validate(seq, w, h); err != nil {
				t.Fatalf("Spiral(%d,%d,%v) invalid: %v", w, h, dir, err)
			}
		}
	}
}

func TestSpiralFromCornerStart(t *testing.T) {
	starts := []Point{{0, 0}, {4, 0}, {0, 2}, {4, 2}}
	for _, start := range starts {
		for _, dir := range Directions {
			seq, err := Spiral(5, 3, WithStart(start), WithDirection(dir))
			if err != nil {
				t.Fatalf("Spiral from %s: %v", start, err)
			}
			if seq[0] != start {
				t.Fatalf("sequence starts at %s, want %s", seq[0], start)
			}
			if err := Validate(seq, 5, 3); err != nil {
				t.Fatalf("Spiral from %s %v invalid: %v", start, dir, err)
			}
		}
	}
}

func TestSpiralDirectionOnlyChangesOrder(t *testing.T) {
	cw, err := Spiral(6, 4)
	if err != nil {
		t.Fatal(err)
	}
	ccw, err := Spiral(6, 4, WithDirection(Counterclockwise))
	if err != nil {
		t.Fatal(err)
	}
	if cw[0] != ccw[0] {
		t.Fatalf("directions must share the start point")
	}
	if cmp.Equal(cw, ccw) {
		t.Fatalf("directions produced identical orders")
	}
}

func TestSpiralRejectsBadInput(t *testing.T) {
	if _, err := Spiral(0, 3); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := Spiral(3, 3, WithStart(Point{X: 3, Y: 0})); err == nil {
		t.Fatal("expected error for out of bounds start")
	}
}

func TestRasterAndValidate(t *testing.T) {
	seq, err := Raster(3, 2)
	if err != nil {
		t.Fatalf("Raster: %v", err)
	}
	want := Sequence{{0, 0}, {1, 0}, {2, 0}, {0, 1}, {1, 1}, {2, 1}}
	if diff := cmp.Diff(want, seq); diff != "" {
		t.Fatalf("raster mismatch (-want +got):\n%s", diff)
	}

	dup := Sequence{{0, 0}, {0, 0}, {2, 0}, {0, 1}, {1, 1}, {2, 1}}
	if err := Validate(dup, 3, 2); err == nil {
		t.Fatal("expected duplicate coordinate error")
	}
	if err := Validate(seq[:5], 3, 2); err == nil {
		t.Fatal("expected length error")
	}
	oob := Sequence{{0, 0}, {1, 0}, {2, 0}, {0, 1}, {1, 1}, {3, 1}}
	if err := Validate(oob, 3, 2); err == nil {
		t.Fatal("expected bounds error")
	}
}

func TestParseDirection(t *testing.T) {
	for input, want := range map[string]Direction{
		"clockwise":        Clockwise,
		"CW":               Clockwise,
		"counterclockwise": Counterclockwise,
		"ccw":              Counterclockwise,
	} {
		got, err := ParseDirection(input)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q) = %v, %v", input, got, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatal("expected error")
	}
}
