// capsinfer: capsule-network inference using saved weights.
package main

import (
	"encoding/json"
	"flag"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"

	"capsnet/nn"
	"capsnet/tensor"
	"capsnet/utils"
)

var (
	configFile  = flag.String("config", "", "Architecture TOML file (default: MNIST architecture)")
	weightsFile = flag.String("weights", "", "Weights JSON file")
	inputFile   = flag.String("input", "", "Input JSON file (flat [H*W*C] array)")
	topK        = flag.Int("topk", 3, "Top predictions to show")
	seed        = flag.Uint64("seed", 42, "Seed for demo-mode weight initialization")
	verbose     = flag.Bool("verbose", false, "Verbose output")
)

func main() {
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	utils.Verbose = *verbose

	cfg := utils.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = utils.LoadConfig(*configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("loading config")
		}
	}
	log.Debug().Int("classes", cfg.Classes).Int("routings", cfg.Routings).
		Int("capsule_dim", cfg.CapsuleDim).Msg("architecture")

	stats := &utils.TimingStats{}
	start := time.Now()
	model, err := nn.NewCapsNet(cfg, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatal().Err(err).Msg("building model")
	}
	model.Stats = stats
	stats.ModelInitTime = time.Since(start)

	if *weightsFile != "" {
		weights, err := utils.LoadWeights(*weightsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("loading weights")
		}
		if err := model.ApplyWeights(weights); err != nil {
			log.Fatal().Err(err).Msg("applying weights")
		}
		log.Info().Int("layers", len(weights.Layers)).Str("file", *weightsFile).Msg("weights loaded")
	} else {
		log.Info().Uint64("seed", *seed).Msg("no weights file, running with seeded random weights")
	}

	pixels := cfg.Input.Height * cfg.Input.Width * cfg.Input.Channels
	var inputData []float64
	if *inputFile != "" {
		raw, err := os.ReadFile(*inputFile)
		if err != nil {
			log.Fatal().Err(err).Msg("reading input")
		}
		if err := json.Unmarshal(raw, &inputData); err != nil {
			log.Fatal().Err(err).Msg("parsing input")
		}
		if len(inputData) != pixels {
			log.Fatal().Int("got", len(inputData)).Int("want", pixels).Msg("input size mismatch")
		}
	} else {
		rng := rand.New(rand.NewSource(*seed))
		inputData = make([]float64, pixels)
		for i := range inputData {
			inputData[i] = rng.Float64()
		}
		log.Info().Msg("no input file, using random demo input")
	}

	x := tensor.NewWithData(inputData)
	x, err = x.Reshape(1, cfg.Input.Height, cfg.Input.Width, cfg.Input.Channels)
	if err != nil {
		log.Fatal().Err(err).Msg("shaping input")
	}

	start = time.Now()
	lengths, _, err := model.Forward(x)
	if err != nil {
		log.Fatal().Err(err).Msg("forward pass")
	}
	stats.TotalTime = time.Since(start) + stats.ModelInitTime
	log.Info().Dur("elapsed", time.Since(start)).Msg("inference done")

	showTopK(log, lengths, *topK)
	utils.PrintTimingStats(stats, 1)
}

func showTopK(log zerolog.Logger, lengths *tensor.Tensor, k int) {
	classes := lengths.Shape[1]
	order := make([]int, classes)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return lengths.Data[order[a]] > lengths.Data[order[b]]
	})
	if k > classes {
		k = classes
	}
	for rank := 0; rank < k; rank++ {
		class := order[rank]
		log.Info().Int("rank", rank+1).Int("class", class).
			Float64("length", lengths.Data[class]).Msg("prediction")
	}
}
