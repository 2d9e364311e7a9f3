package analyzer

import (
	"fmt"

	"github.com/RowanDark/wraith/internal/cipher"
	"github.com/RowanDark/wraith/internal/config"
	"github.com/RowanDark/wraith/internal/lsb"
	"github.com/RowanDark/wraith/internal/pixels"
	"github.com/RowanDark/wraith/internal/score"
	"github.com/RowanDark/wraith/internal/traverse"
)

// DefaultMinFragmentLength is the number of characters extracted text must
// exceed before it becomes a fragment.
const DefaultMinFragmentLength = 10

// Options controls one analysis run.
type Options struct {
	Channels        []pixels.Channel
	Directions      []traverse.Direction
	IncludeRaster   bool
	IncludeMetadata bool
	// Layers, when set, are removed from every fragment instead of
	// auto-detection.
	Layers     []cipher.Layer
	AutoDecode bool
	Method     cipher.Method
	// Key defaults to the image name when empty.
	Key string
	// Order is an explicit assembly order; nil resolves it from hints and
	// natural ID order.
	Order               []string
	Separator           string
	MinFragmentLength   int
	NullScanLimit       int
	CorruptionThreshold float64
	Workers             int
	// Markers override score.DefaultMarkers when non-nil.
	Markers []string
	// PrintableThreshold gates base64 candidates during auto-decode; zero
	// selects score.DefaultPrintableThreshold.
	PrintableThreshold float64
}

// DefaultOptions mirrors config.Default().
func DefaultOptions() Options {
	return Options{
		Channels:            append([]pixels.Channel(nil), pixels.Channels...),
		Directions:          append([]traverse.Direction(nil), traverse.Directions...),
		IncludeRaster:       true,
		IncludeMetadata:     true,
		AutoDecode:          true,
		Method:              cipher.Auto,
		MinFragmentLength:   DefaultMinFragmentLength,
		CorruptionThreshold: lsb.DefaultCorruptionThreshold,
		Workers:             4,
		PrintableThreshold:  score.DefaultPrintableThreshold,
	}
}

// OptionsFromConfig resolves the analysis section of a configuration.
func OptionsFromConfig(a config.Analysis) (Options, error) {
	channels, err := pixels.ParseChannels(a.Channels)
	if err != nil {
		return Options{}, err
	}
	dirs := make([]traverse.Direction, 0, len(a.SpiralDirections))
	for _, name := range a.SpiralDirections {
		d, err := traverse.ParseDirection(name)
		if err != nil {
			return Options{}, err
		}
		dirs = append(dirs, d)
	}
	layers, err := cipher.ParseLayers(a.Layers)
	if err != nil {
		return Options{}, err
	}
	method, err := cipher.ParseMethod(a.DecryptMethod)
	if err != nil {
		return Options{}, err
	}
	if a.Workers < 1 {
		return Options{}, fmt.Errorf("workers must be >= 1, got %d", a.Workers)
	}
	return Options{
		Channels:            channels,
		Directions:          dirs,
		IncludeRaster:       a.IncludeRaster,
		IncludeMetadata:     a.IncludeMetadata,
		Layers:              layers,
		AutoDecode:          a.AutoDecode,
		Method:              method,
		Key:                 a.Key,
		Order:               a.FragmentOrder,
		Separator:           a.Separator,
		MinFragmentLength:   a.MinFragmentLength,
		NullScanLimit:       a.NullScanLimit,
		CorruptionThreshold: a.CorruptionThreshold,
		Workers:             a.Workers,
		Markers:             a.Markers,
		PrintableThreshold:  a.PrintableThreshold,
	}, nil
}
