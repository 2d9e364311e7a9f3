package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/RowanDark/wraith/internal/imageio"
	"github.com/RowanDark/wraith/internal/lsb"
	"github.com/RowanDark/wraith/internal/metadata"
	"github.com/RowanDark/wraith/internal/pixels"
	"github.com/RowanDark/wraith/internal/traverse"
)

func (a *app) runExtract(args []string) int {
	fs := a.flagSet("extract")
	channel := fs.String("channel", "red", "channel to read: red, green or blue")
	order := fs.String("order", "raster", "pixel order: raster or spiral")
	direction := fs.String("direction", "clockwise", "spiral direction: clockwise or counterclockwise")
	start := fs.String("start", "", "spiral start as x,y (defaults to the centre)")
	nullLimit := fs.Int("null-scan-limit", 0, "only honour a NUL terminator within the first n bytes (0 scans everything)")
	out := fs.String("out", "", "write the payload to this file instead of stdout")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "extract requires exactly one image path")
		return 2
	}
	ch, err := pixels.ParseChannel(*channel)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}

	img, err := imageio.Load(positional[0])
	if err != nil {
		fmt.Fprintf(a.stderr, "load image: %v\n", err)
		return 1
	}

	opts := []lsb.Option{lsb.WithNullScanLimit(*nullLimit)}
	switch strings.ToLower(*order) {
	case "raster":
	case "spiral":
		spiralOpts, err := spiralOptions(*direction, *start)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			return 2
		}
		seq, err := traverse.Spiral(img.Grid.Width(), img.Grid.Height(), spiralOpts...)
		if err != nil {
			fmt.Fprintf(a.stderr, "spiral: %v\n", err)
			return 1
		}
		opts = append(opts, lsb.WithSequence(seq))
	default:
		fmt.Fprintf(a.stderr, "unknown order %q\n", *order)
		return 2
	}

	res, err := lsb.Extract(img.Grid, ch, opts...)
	if err != nil {
		fmt.Fprintf(a.stderr, "extract: %v\n", err)
		return 1
	}
	if res.LikelyCorrupted {
		fmt.Fprintf(a.stderr, "warning: %.0f%% of the payload is non-printable\n", res.NonPrintableRatio*100)
	}
	payload := []byte(res.Text)
	if *out != "" {
		payload = res.Bytes
	}
	if err := a.writeOutput(*out, payload); err != nil {
		fmt.Fprintf(a.stderr, "write payload: %v\n", err)
		return 1
	}
	return 0
}

func spiralOptions(direction, start string) ([]traverse.SpiralOption, error) {
	d, err := traverse.ParseDirection(direction)
	if err != nil {
		return nil, err
	}
	opts := []traverse.SpiralOption{traverse.WithDirection(d)}
	if start != "" {
		p, err := parsePoint(start)
		if err != nil {
			return nil, err
		}
		opts = append(opts, traverse.WithStart(p))
	}
	return opts, nil
}

func parsePoint(s string) (traverse.Point, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return traverse.Point{}, fmt.Errorf("start %q must be x,y", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return traverse.Point{}, fmt.Errorf("start x: %w", err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return traverse.Point{}, fmt.Errorf("start y: %w", err)
	}
	return traverse.Point{X: x, Y: y}, nil
}

func (a *app) runSpiral(args []string) int {
	fs := a.flagSet("spiral")
	width := fs.Int("w", 0, "grid width")
	height := fs.Int("h", 0, "grid height")
	direction := fs.String("direction", "clockwise", "clockwise or counterclockwise")
	start := fs.String("start", "", "start point as x,y (defaults to the centre)")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 0 {
		fmt.Fprintln(a.stderr, "spiral takes no positional arguments")
		return 2
	}
	opts, err := spiralOptions(*direction, *start)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	seq, err := traverse.Spiral(*width, *height, opts...)
	if err != nil {
		fmt.Fprintln(a.stderr, err)
		return 2
	}
	for _, p := range seq {
		fmt.Fprintf(a.stdout, "%d,%d\n", p.X, p.Y)
	}
	return 0
}

func (a *app) runMetadata(args []string) int {
	fs := a.flagSet("metadata")
	positional, err := parse(fs, args)
	if err != nil {
		return 2
	}
	if len(positional) != 1 {
		fmt.Fprintln(a.stderr, "metadata requires exactly one image path")
		return 2
	}
	raw, err := a.readInput(positional[0], true)
	if err != nil {
		fmt.Fprintf(a.stderr, "read image: %v\n", err)
		return 1
	}
	report, err := metadata.Scan(positional[0], raw)
	if err != nil {
		fmt.Fprintf(a.stderr, "scan metadata: %v\n", err)
		return 1
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(a.stderr, "encode metadata: %v\n", err)
		return 1
	}
	return 0
}
