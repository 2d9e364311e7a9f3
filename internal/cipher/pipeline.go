package cipher

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/RowanDark/wraith/internal/score"
)

// Pipeline is an ordered chain of layers as the producer applied them.
type Pipeline struct {
	Layers []Layer
}

// Encode applies the layers first to last.
func (p Pipeline) Encode(input []byte) ([]byte, error) {
	return Encode(input, p.Layers)
}

// Decode removes the layers last to first.
func (p Pipeline) Decode(input []byte) DecodeResult {
	return Decode(input, p.Layers)
}

// Encode applies layers in order. It is the producer-side inverse of Decode.
func Encode(input []byte, layers []Layer) ([]byte, error) {
	result := bytes.Clone(input)
	for i, layer := range layers {
		codec, ok := GetCodec(layer)
		if !ok {
			return nil, fmt.Errorf("unknown layer at step %d: %s", i, layer)
		}
		result = codec.Encode(result)
	}
	if result == nil {
		result = []byte{}
	}
	return result, nil
}

// Decode unwinds layers, which are listed in the order they were applied,
// starting from the last one. A layer that fails is recorded on its step
// and the chain continues with the unchanged input. Decode never mutates
// input.
func Decode(input []byte, layers []Layer) DecodeResult {
	result := DecodeResult{
		Output: bytes.Clone(input),
		Label:  ChainLabel(layers),
		Steps:  make([]Step, 0, len(layers)),
	}
	if result.Output == nil {
		result.Output = []byte{}
	}

	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		codec, ok := GetCodec(layer)
		if !ok {
			result.Steps = append(result.Steps, Step{
				Layer: layer,
				Err:   &DecodeError{Layer: layer, Err: errors.New("no codec registered")},
			})
			continue
		}
		decoded, err := codec.Decode(result.Output)
		if err != nil {
			result.Steps = append(result.Steps, Step{Layer: layer, Err: &DecodeError{Layer: layer, Err: err}})
			continue
		}
		result.Output = decoded
		result.Steps = append(result.Steps, Step{Layer: layer, OK: true})
	}

	result.Score = score.Score(result.Output)
	return result
}
