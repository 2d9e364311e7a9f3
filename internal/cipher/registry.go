package cipher

import (
	"fmt"
	"sort"
	"sync"
)

// Codec encodes and decodes one layer.
type Codec interface {
	Layer() Layer
	Encode(input []byte) []byte
	Decode(input []byte) ([]byte, error)
}

// Global codec registry
var (
	codecRegistry = make(map[Layer]Codec)
	registryMu    sync.RWMutex
)

// RegisterCodec adds a codec to the global registry
func RegisterCodec(c Codec) error {
	if c == nil {
		return fmt.Errorf("cannot register nil codec")
	}

	layer := c.Layer()
	if layer == 0 {
		return fmt.Errorf("codec layer cannot be zero")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := codecRegistry[layer]; exists {
		return fmt.Errorf("codec %s is already registered", layer)
	}

	codecRegistry[layer] = c
	return nil
}

// GetCodec retrieves the codec for a layer
func GetCodec(layer Layer) (Codec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	c, exists := codecRegistry[layer]
	return c, exists
}

// ListCodecs returns all registered codecs ordered by layer name
func ListCodecs() []Codec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	codecs := make([]Codec, 0, len(codecRegistry))
	for _, c := range codecRegistry {
		codecs = append(codecs, c)
	}

	sort.Slice(codecs, func(i, j int) bool {
		return codecs[i].Layer().String() < codecs[j].Layer().String()
	})

	return codecs
}
