// capsrecon: reconstructs a batch of inputs through the capsule network's
// mask + decoder path and writes the reconstructions as one tiled PNG.
package main

import (
	"encoding/json"
	"flag"
	"os"
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
	inputFile   = flag.String("input", "", "Input JSON file (flat [n*H*W*C] array)")
	label       = flag.Int("label", -1, "Mask by this class for every sample (-1: mask by max capsule length)")
	outFile     = flag.String("out", "reconstruction.png", "Output PNG path")
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

	cfg := utils.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = utils.LoadConfig(*configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("loading config")
		}
	}
	if *label >= cfg.Classes {
		log.Fatal().Int("label", *label).Int("classes", cfg.Classes).Msg("label out of range")
	}

	model, err := nn.NewCapsNet(cfg, rand.New(rand.NewSource(*seed)))
	if err != nil {
		log.Fatal().Err(err).Msg("building model")
	}
	if *weightsFile != "" {
		weights, err := utils.LoadWeights(*weightsFile)
		if err != nil {
			log.Fatal().Err(err).Msg("loading weights")
		}
		if err := model.ApplyWeights(weights); err != nil {
			log.Fatal().Err(err).Msg("applying weights")
		}
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
		if len(inputData) == 0 || len(inputData)%pixels != 0 {
			log.Fatal().Int("got", len(inputData)).Int("pixels_per_sample", pixels).
				Msg("input length must be a positive multiple of the sample size")
		}
	} else {
		rng := rand.New(rand.NewSource(*seed))
		inputData = make([]float64, 4*pixels)
		for i := range inputData {
			inputData[i] = rng.Float64()
		}
		log.Info().Msg("no input file, using 4 random demo samples")
	}
	batch := len(inputData) / pixels

	x := tensor.NewWithData(inputData)
	x, err = x.Reshape(batch, cfg.Input.Height, cfg.Input.Width, cfg.Input.Channels)
	if err != nil {
		log.Fatal().Err(err).Msg("shaping input")
	}

	start := time.Now()
	_, caps, err := model.Forward(x)
	if err != nil {
		log.Fatal().Err(err).Msg("forward pass")
	}

	var labels *tensor.Tensor
	if *label >= 0 {
		labels = tensor.New(batch, cfg.Classes)
		for b := 0; b < batch; b++ {
			labels.Set(1, b, *label)
		}
	}
	recon, err := model.Reconstruct(caps, labels)
	if err != nil {
		log.Fatal().Err(err).Msg("reconstruction")
	}
	log.Info().Dur("elapsed", time.Since(start)).Int("samples", batch).Msg("reconstruction done")

	imgs, err := recon.Reshape(batch, cfg.Input.Height, cfg.Input.Width*cfg.Input.Channels)
	if err != nil {
		log.Fatal().Err(err).Msg("shaping reconstructions")
	}
	grid, err := utils.CombineImages(imgs, 0, 0)
	if err != nil {
		log.Fatal().Err(err).Msg("tiling reconstructions")
	}
	if err := utils.SavePNG(grid, *outFile); err != nil {
		log.Fatal().Err(err).Msg("writing png")
	}
	log.Info().Str("file", *outFile).Ints("grid", grid.Shape).Msg("tiled image written")
}
