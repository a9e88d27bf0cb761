package layers

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"capsnet/tensor"
)

// Initializer fills a weight tensor from a variance-scaled distribution.
type Initializer func(t *tensor.Tensor, fanIn, fanOut int, rng *rand.Rand)

// SupportedInitializers contains the named kernel initialization schemes.
var SupportedInitializers = map[string]Initializer{
	"glorot_uniform": glorotUniform,
	"glorot_normal":  glorotNormal,
	"he_uniform":     heUniform,
	"he_normal":      heNormal,
	"zeros":          zeros,
}

// GetInitializer resolves a scheme by name.
func GetInitializer(name string) (Initializer, error) {
	init, ok := SupportedInitializers[name]
	if !ok {
		return nil, fmt.Errorf("unknown kernel initializer %q", name)
	}
	return init, nil
}

func defaultRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
}

func fill(t *tensor.Tensor, d distuv.Rander) {
	for i := range t.Data {
		t.Data[i] = d.Rand()
	}
}

func glorotUniform(t *tensor.Tensor, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn+fanOut))
	fill(t, distuv.Uniform{Min: -limit, Max: limit, Src: defaultRand(rng)})
}

func glorotNormal(t *tensor.Tensor, fanIn, fanOut int, rng *rand.Rand) {
	sigma := math.Sqrt(2.0 / float64(fanIn+fanOut))
	fill(t, distuv.Normal{Mu: 0, Sigma: sigma, Src: defaultRand(rng)})
}

func heUniform(t *tensor.Tensor, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6.0 / float64(fanIn))
	fill(t, distuv.Uniform{Min: -limit, Max: limit, Src: defaultRand(rng)})
}

func heNormal(t *tensor.Tensor, fanIn, fanOut int, rng *rand.Rand) {
	sigma := math.Sqrt(2.0 / float64(fanIn))
	fill(t, distuv.Normal{Mu: 0, Sigma: sigma, Src: defaultRand(rng)})
}

func zeros(t *tensor.Tensor, fanIn, fanOut int, rng *rand.Rand) {
	for i := range t.Data {
		t.Data[i] = 0
	}
}
